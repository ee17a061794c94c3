package spin

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
)

const (
	// isolationMultiplier pads the crop slightly past the measured radius
	// so the full limb of the ball survives small localization error.
	isolationMultiplier = 1.05

	// isolationMaskFactor blanks the crop just inside the ball edge,
	// dropping the high-contrast limb ring before filtering.
	isolationMaskFactor = 0.995

	// finalMaskFactor is the tighter pre-comparison mask: pixels outside
	// 92% of the radius are too foreshortened to correlate reliably.
	finalMaskFactor = 0.92
)

// isolateBall crops the grayscale image to a square around the ball,
// equalizes its histogram, and blanks everything outside the ball edge. The
// returned ball is re-centered in crop coordinates. The caller owns the Mat.
func isolateBall(img gocv.Mat, b ball.Ball) (gocv.Mat, ball.Ball, error) {
	radius := int(b.MeasuredRadius)
	pad := int(b.MeasuredRadius * isolationMultiplier)
	side := 2 * pad

	roi := image.Rect(int(b.X)-pad, int(b.Y)-pad, int(b.X)-pad+side, int(b.Y)-pad+side)
	view, _ := cvutil.SubImage(img, roi)
	defer view.Close()
	if view.Cols() < 2*radius || view.Rows() < 2*radius {
		return gocv.Mat{}, ball.Ball{}, ErrClippedBall
	}

	crop := gocv.NewMat()
	gocv.EqualizeHist(view, &crop)

	centered := b
	centered.SetCircle(ball.Circle{
		X:      float64(view.Cols()) / 2,
		Y:      float64(view.Rows()) / 2,
		Radius: b.MeasuredRadius,
	})

	masked := maskOutsideBall(crop, centered, isolationMaskFactor, 0)
	crop.Close()
	return masked, centered, nil
}

// maskOutsideBall returns a copy of the single-channel image with every
// pixel outside factor times the ball radius replaced by fill. The caller
// owns the returned Mat.
func maskOutsideBall(img gocv.Mat, b ball.Ball, factor float64, fill uint8) gocv.Mat {
	radius := int(b.MeasuredRadius * factor)
	center := image.Pt(int(b.X), int(b.Y))
	white := color.RGBA{R: 255, G: 255, B: 255}

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	gocv.Circle(&mask, center, radius, white, -1)

	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(fill), 0, 0, 0),
		img.Rows(), img.Cols(), gocv.MatTypeCV8UC1)
	img.CopyToWithMask(&out, mask)
	return out
}
