package detect

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// SearchCall bundles the arguments of one circle-search invocation.
type SearchCall struct {
	DP              float64
	MinDist         float64
	EdgeSensitivity float64
	Threshold       float64
	MinRadius       int
	MaxRadius       int

	// Alt selects the continuous-scoring variant; its Threshold lives in
	// (0, 1] instead of being a vote count.
	Alt bool
}

// SearchFunc produces circle candidates for a preprocessed image. The
// default is the Hough transform; an alternate detection backend (or a test
// scripting result sequences) can be injected in its place.
type SearchFunc func(img gocv.Mat, call SearchCall) []ball.Circle

// HoughSearch is the default SearchFunc.
func HoughSearch(img gocv.Mat, call SearchCall) []ball.Circle {
	method := gocv.HoughGradient
	if call.Alt {
		// gocv does not name OpenCV's HOUGH_GRADIENT_ALT; its value is 4.
		method = gocv.HoughMode(4)
	}

	found := gocv.NewMat()
	defer found.Close()

	gocv.HoughCirclesWithParams(img, &found, method,
		call.DP, call.MinDist,
		call.EdgeSensitivity, call.Threshold,
		call.MinRadius, call.MaxRadius)

	if found.Empty() || found.Cols() == 0 {
		return nil
	}

	circles := make([]ball.Circle, found.Cols())
	for i := 0; i < found.Cols(); i++ {
		circles[i] = ball.Circle{
			X:      float64(found.GetFloatAt(0, i*3)),
			Y:      float64(found.GetFloatAt(0, i*3+1)),
			Radius: float64(found.GetFloatAt(0, i*3+2)),
		}
	}
	return circles
}

// RemoveConcentricDuplicates drops, for every pair of circles sharing a
// center, the one with the smaller radius. Candidate counts are small, so
// the pairwise scan is fine.
func RemoveConcentricDuplicates(circles []ball.Circle) []ball.Circle {
	for i := 0; i < len(circles)-1; i++ {
		for j := len(circles) - 1; j > i; j-- {
			if !sameCenter(circles[i], circles[j]) {
				continue
			}
			if math.Round(circles[j].Radius) <= math.Round(circles[i].Radius) {
				circles = append(circles[:j], circles[j+1:]...)
			} else {
				circles = append(circles[:i], circles[i+1:]...)
				i--
				break
			}
		}
	}
	return circles
}

func sameCenter(a, b ball.Circle) bool {
	return math.Round(a.X) == math.Round(b.X) && math.Round(a.Y) == math.Round(b.Y)
}

// RefineAroundReference re-searches a tight region around an already
// located ball for a more precise center and radius. The crop spans 1.5x
// the reference radius and the search is restricted to a narrow radius band
// around it.
func RefineAroundReference(gray gocv.Mat, ref ball.Ball, p RefineParams, preferLargest bool, externallyStrobed bool, log logger.Logger) (ball.Circle, error) {
	if gray.Empty() {
		return ball.Circle{}, fmt.Errorf("refine: %w", ErrEmptyImage)
	}
	radius := int(math.Round(ref.Circle.Radius))
	if radius <= 0 {
		return ball.Circle{}, fmt.Errorf("refine: reference radius %d: %w", radius, ErrNoBallFound)
	}

	const subImageSizeMultiplier = 1.5
	expanded := int(subImageSizeMultiplier * float64(radius))
	cx := int(math.Round(ref.Circle.X))
	cy := int(math.Round(ref.Circle.Y))

	roi := image.Rect(cx-expanded, cy-expanded, cx+expanded, cy+expanded)
	sub, offset := cvutil.SubImage(gray, roi)
	defer sub.Close()

	work := sub.Clone()
	defer work.Close()

	if externallyStrobed {
		// Comparison-mode images are already edge-like; blur only.
		preSearch := cvutil.MakeOdd(p.PreSearchBlurSize)
		gocv.GaussianBlur(work, &work, image.Pt(preSearch, preSearch), 0, 0, gocv.BorderDefault)
	} else {
		preEdge := cvutil.MakeOdd(p.PreEdgeBlurSize)
		gocv.GaussianBlur(work, &work, image.Pt(preEdge, preEdge), 0, 0, gocv.BorderDefault)

		edges := gocv.NewMat()
		defer edges.Close()
		gocv.Canny(work, &edges, float32(p.CannyLower), float32(p.CannyUpper))

		preSearch := cvutil.MakeOdd(p.PreSearchBlurSize)
		gocv.GaussianBlur(edges, &work, image.Pt(preSearch, preSearch), 0, 0, gocv.BorderDefault)
	}

	minRadius := int(float64(radius) * p.MinRadiusRatio)
	maxRadius := int(float64(radius) * p.MaxRadiusRatio)

	log.Debug(component, "refining around reference circle", map[string]interface{}{
		"center_x":   cx,
		"center_y":   cy,
		"radius":     radius,
		"min_radius": minRadius,
		"max_radius": maxRadius,
		"dp":         p.DP,
		"threshold":  p.Threshold,
	})

	const minInterCircleDistance = 20

	circles := HoughSearch(work, SearchCall{
		DP:              p.DP,
		MinDist:         minInterCircleDistance,
		EdgeSensitivity: p.EdgeSensitivity,
		Threshold:       p.Threshold,
		MinRadius:       minRadius,
		MaxRadius:       maxRadius,
		Alt:             true,
	})
	if len(circles) == 0 {
		log.Debug(component, "targeted circle search found nothing to refine with", nil)
		return ball.Circle{}, fmt.Errorf("refine: %w", ErrNoBallFound)
	}

	// Average the first few circles; the average is only diagnostic, but
	// it surfaces drift between the detections.
	const maxCirclesToEvaluate = 3
	const maxCirclesToAverage = 4

	final := circles[0]
	var avgX, avgY, avgRadius float64
	averaged := 0
	for i, c := range circles {
		if i+1 > maxCirclesToEvaluate && i != 0 {
			break
		}
		if i+1 <= maxCirclesToAverage {
			avgX += math.Round(c.X)
			avgY += math.Round(c.Y)
			avgRadius += c.Radius
			averaged++
		}
		if c.Radius > final.Radius {
			final = c
		}
	}
	log.Debug(component, "targeted circle search", map[string]interface{}{
		"found":          len(circles),
		"average_x":      avgX / float64(averaged),
		"average_y":      avgY / float64(averaged),
		"average_radius": avgRadius / float64(averaged),
	})

	// The first circle is normally the highest-quality match.
	if !preferLargest {
		final = circles[0]
	}

	final.X += float64(offset.X)
	final.Y += float64(offset.Y)
	return final, nil
}
