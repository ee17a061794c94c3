package spin

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// Estimator correlates dimple patterns between two ball images to recover
// the rotation that maps the first onto the second. An Estimator is safe for
// concurrent use.
type Estimator struct {
	cfg Config
	log logger.Logger
}

// NewEstimator builds an estimator with the given configuration. A nil
// logger disables logging.
func NewEstimator(cfg Config, log logger.Logger) *Estimator {
	if log == nil {
		log = logger.Nop{}
	}
	return &Estimator{cfg: cfg, log: log}
}

// RotationBetween returns the per-axis rotation, in whole degrees, that the
// ball underwent between the two captures. The images may be grayscale or
// BGR; each ball carries its localized circle and the camera viewing angles
// at capture time. The result is expressed in the deskewed frame facing
// the camera midway between the two views, with the X axis negated so
// positive X reads as backspin.
func (e *Estimator) RotationBetween(img1 gocv.Mat, b1 ball.Ball, img2 gocv.Mat, b2 ball.Ball) (Rotation, error) {
	if img1.Empty() || img2.Empty() {
		return Rotation{}, ErrEmptyImage
	}
	if b1.MeasuredRadius < 1 || b2.MeasuredRadius < 1 {
		return Rotation{}, ErrZeroRadius
	}

	gray1, err := asGray(img1)
	if err != nil {
		return Rotation{}, err
	}
	defer gray1.Close()
	gray2, err := asGray(img2)
	if err != nil {
		return Rotation{}, err
	}
	defer gray2.Close()

	crop1, c1, err := isolateBall(gray1, b1)
	if err != nil {
		return Rotation{}, err
	}
	defer crop1.Close()
	crop2, c2, err := isolateBall(gray2, b2)
	if err != nil {
		return Rotation{}, err
	}
	defer crop2.Close()

	normalizeScale(&crop1, &crop2, &c1, &c2)

	// The first ball's converged binarization threshold is reused for the
	// second so both signatures are extracted under identical contrast.
	edges1, threshold := dimpleEdges(crop1, e.cfg, -1, e.log)
	defer edges1.Close()
	edges2, _ := dimpleEdges(crop2, e.cfg, threshold, e.log)
	defer edges2.Close()

	removeReflections(&edges1, crop1, e.cfg, e.log)
	removeReflections(&edges2, crop2, e.cfg, e.log)

	masked1 := maskOutsideBall(edges1, c1, finalMaskFactor, ignoreValue)
	defer masked1.Close()
	masked2 := maskOutsideBall(edges2, c2, finalMaskFactor, ignoreValue)
	defer masked2.Close()

	// Deskew both views halfway toward each other so the correlation runs
	// in a single shared perspective.
	deltaX := (b2.CameraAngles[0] - b1.CameraAngles[0]) / 2
	deltaY := (b2.CameraAngles[1] - b1.CameraAngles[1]) / 2
	if e.cfg.LeftHanded {
		deltaY = -deltaY
	}
	deskew1 := Rotation{X: iround(deltaX), Y: iround(deltaY)}
	deskew2 := Rotation{X: iround(-deltaX), Y: iround(-deltaY)}

	rows, cols := masked1.Rows(), masked1.Cols()
	if masked2.Rows() != rows || masked2.Cols() != cols {
		return Rotation{}, fmt.Errorf("spin: ball crops disagree on size (%dx%d vs %dx%d), ball too close to the frame edge",
			cols, rows, masked2.Cols(), masked2.Rows())
	}
	pix1 := projectSphere(masked1.ToBytes(), rows, cols, c1, deskew1)
	pix2 := projectSphere(masked2.ToBytes(), rows, cols, c2, deskew2)

	coarse, ok := searchRotations(pix1, rows, cols, c1, pix2, e.cfg.Coarse, e.cfg.Workers, e.log)
	if !ok {
		return Rotation{}, ErrNoRotationFound
	}

	best := coarse
	if fine, ok := searchRotations(pix1, rows, cols, c1, pix2,
		fineSpaceAround(coarse.rot, e.cfg.Coarse), e.cfg.Workers, e.log); ok {
		best = fine
	} else {
		e.log.Warning(component, "fine rotation pass found nothing, keeping coarse result", map[string]interface{}{
			"coarseX": coarse.rot.X,
			"coarseY": coarse.rot.Y,
			"coarseZ": coarse.rot.Z,
		})
	}

	result := e.undeskew(best.rot, b1, deltaX, deltaY)
	e.log.Info(component, "rotation estimated", map[string]interface{}{
		"x":        result.X,
		"y":        result.Y,
		"z":        result.Z,
		"matches":  best.matches,
		"examined": best.examined,
	})
	return result, nil
}

// undeskew maps the rotation found in the shared deskewed frame back into
// the ball's flight frame, folding in the first camera's viewing angles plus
// the half-delta applied during deskew, and negates X so positive X spin
// reads as backspin.
func (e *Estimator) undeskew(rot Rotation, b1 ball.Ball, deltaX, deltaY float64) Rotation {
	offX := cvutil.DegToRad(b1.CameraAngles[0] + deltaX)
	offY := cvutil.DegToRad(b1.CameraAngles[1] - deltaY)
	sinX, cosX := math.Sincos(offX)
	sinY, cosY := math.Sincos(offY)

	x := float64(rot.X)
	y := float64(rot.Y)
	z := float64(rot.Z)

	normX := iround(x*cosY + z*sinY)
	normY := iround(y*cosX - z*sinX)
	normZ := iround(z*cosX*cosY) - iround(y*sinX) - iround(x*sinY)

	return Rotation{X: -normX, Y: normY, Z: normZ}
}

// asGray returns a caller-owned grayscale copy of img.
func asGray(img gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	if img.Channels() == 1 {
		img.CopyTo(&gray)
		return gray, nil
	}
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// normalizeScale equalizes apparent ball size so a pixel subtends the same
// arc in both views. The crops are squares sized from the radius; the smaller
// one is upscaled to the larger's dimensions so no dimple detail is lost from
// the sharper view.
func normalizeScale(crop1, crop2 *gocv.Mat, c1, c2 *ball.Ball) {
	if crop1.Cols() > crop2.Cols() {
		upscaleTo(crop2, c2, crop1.Cols(), crop1.Rows())
	} else if crop2.Cols() > crop1.Cols() {
		upscaleTo(crop1, c1, crop2.Cols(), crop2.Rows())
	}
}

// upscaleTo resizes the crop in place and rescales the centered ball with it.
func upscaleTo(crop *gocv.Mat, b *ball.Ball, cols, rows int) {
	scale := float64(cols) / float64(crop.Cols())
	resized := gocv.NewMat()
	gocv.Resize(*crop, &resized, image.Pt(cols, rows), 0, 0, gocv.InterpolationLinear)
	crop.Close()
	*crop = resized
	b.SetCircle(ball.Circle{
		X:      float64(cols) / 2,
		Y:      float64(rows) / 2,
		Radius: b.MeasuredRadius * scale,
	})
}

func iround(v float64) int {
	return int(math.Round(v))
}
