package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// maxAdaptiveIterations bounds the threshold loop. The tightening/loosening
// rules terminate on their own for every reachable state but one
// (some-but-too-few circles right after a tighten); the cap keeps that state
// from spinning.
const maxAdaptiveIterations = 64

// Locator runs the adaptive ball search. Safe for concurrent use; the tuning
// tables are never mutated after construction.
type Locator struct {
	tuning Tuning
	log    logger.Logger
	search SearchFunc
}

func NewLocator(tuning Tuning, log logger.Logger) *Locator {
	return &Locator{
		tuning: tuning,
		log:    log,
		search: HoughSearch,
	}
}

// WithSearchFunc swaps the circle-search backend. Used by tests to script
// result sequences and by alternate detectors (a neural-network backend
// returns the same circle list shape).
func (l *Locator) WithSearchFunc(fn SearchFunc) *Locator {
	l.search = fn
	return l
}

// Locate finds ball candidates in a color frame and returns them ranked best
// first. ref supplies the expected color statistics and viewing angles;
// searchArea, when non-zero, restricts the expensive circle search to a
// region of interest. With reportFailures false, exhaustion is returned but
// not logged as an error (exploratory calibration probing).
func (l *Locator) Locate(img gocv.Mat, ref ball.Ball, searchArea image.Rectangle, mode Mode, preferLargest, reportFailures bool) ([]ball.Ball, error) {
	if img.Empty() {
		return nil, fmt.Errorf("locate: %w", ErrEmptyImage)
	}
	if img.Channels() == 1 {
		return nil, fmt.Errorf("locate: expecting a 3-channel color image, got 1 channel: %w", ErrEmptyImage)
	}

	p := l.tuning.ParamsFor(mode)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	var rawGray gocv.Mat
	if l.tuning.UseRefinement {
		// Preprocessing is destructive; the refinement pass wants the
		// plain grayscale frame.
		rawGray = gray.Clone()
		defer rawGray.Close()
	}

	if err := Preprocess(&gray, mode, p, l.log); err != nil {
		return nil, fmt.Errorf("locate: %w", err)
	}

	// Derive radius bounds from the frame height when unconstrained.
	minRadius := p.MinSearchRadius
	if minRadius < 0 {
		minRadius = gray.Rows() / 15
	}
	maxRadius := p.MaxSearchRadius
	if maxRadius < 0 {
		maxRadius = gray.Rows() / 6
	}
	minDist := float64(minRadius) * interCircleDistanceRatio(mode)

	// The circle search is expensive; restrict it to the expected area
	// when the caller knows one.
	searchImg := gray
	offset := image.Point{}
	if searchArea != (image.Rectangle{}) {
		sub, off := cvutil.SubImage(gray, searchArea)
		defer sub.Close()
		searchImg = sub
		offset = off
	}

	// Placed-ball searches always run the continuous-scoring variant; the
	// other modes follow the configured algorithm choice.
	alt := mode == ModePlacedBall || l.tuning.StrobedUsesAltAlgorithm

	if p.UseDynamicRadii && (mode == ModeStrobed || mode == ModeExternallyStrobed) {
		var err error
		minRadius, maxRadius, minDist, err = l.narrowRadii(searchImg, p, minRadius, maxRadius, reportFailures)
		if err != nil {
			return nil, err
		}
	}

	circles, err := l.adaptiveSearch(searchImg, p, alt, minRadius, maxRadius, minDist, reportFailures)
	if err != nil {
		return nil, err
	}

	for i := range circles {
		circles[i].X += float64(offset.X)
		circles[i].Y += float64(offset.Y)
	}

	balls, err := scoreAndRank(img, circles, ref, mode, l.log)
	if err != nil {
		if reportFailures {
			l.log.Error(component, err, map[string]interface{}{
				"mode": mode.String(),
			})
		}
		return nil, err
	}

	if l.tuning.UseRefinement {
		externallyStrobed := mode == ModeExternallyStrobed
		rp := l.tuning.RefineParamsFor(externallyStrobed)
		refined, err := RefineAroundReference(rawGray, balls[0], rp, preferLargest, externallyStrobed, l.log)
		if err != nil {
			l.log.Warning(component, "refinement pass failed, keeping unrefined best circle", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			balls[0].SetCircle(refined)
		}
	}
	return balls, nil
}

// interCircleDistanceRatio scales the minimum allowed distance between
// detections. Strobed frames hold overlapping exposures of the same ball, so
// the spacing requirement drops.
func interCircleDistanceRatio(mode Mode) float64 {
	switch mode {
	case ModeStrobed:
		return 0.3
	case ModeExternallyStrobed:
		return 0.2
	default:
		return 0.5
	}
}

// narrowRadii runs one wide-open search pass and tightens the radius bounds
// around the average of the first few detections. Balls in a strobed frame
// are all the same distance from the camera, so their radii cluster tightly.
func (l *Locator) narrowRadii(searchImg gocv.Mat, p Params, minRadius, maxRadius int, reportFailures bool) (int, int, float64, error) {
	// Odd radius bounds were producing bad circle identification.
	minRadius = cvutil.RoundToEven(float64(minRadius))
	maxRadius = cvutil.RoundToEven(float64(maxRadius))

	minDist := float64(minRadius) * 0.8

	l.log.Debug(component, "executing narrowing circle search", map[string]interface{}{
		"dp":         p.NarrowingDP,
		"min_dist":   minDist,
		"threshold":  p.NarrowingThreshold,
		"min_radius": minRadius,
		"max_radius": maxRadius,
	})

	found := l.search(searchImg, SearchCall{
		DP:              p.NarrowingDP,
		MinDist:         minDist,
		EdgeSensitivity: p.NarrowingEdgeSensitivity,
		Threshold:       p.NarrowingThreshold,
		MinRadius:       minRadius,
		MaxRadius:       maxRadius,
		Alt:             true,
	})
	if len(found) == 0 {
		if reportFailures {
			l.log.Error(component, fmt.Errorf("narrowing circle search found no balls: %w", ErrNoBallFound), nil)
		}
		return 0, 0, 0, fmt.Errorf("narrowing: %w", ErrNoBallFound)
	}
	found = RemoveConcentricDuplicates(found)

	n := p.RadiiToAverage
	if len(found) < n {
		n = len(found)
	}
	average := 0.0
	for i := 0; i < n; i++ {
		average += found[i].Radius / float64(n)
	}

	minRadius = cvutil.RoundToEven(average * p.NarrowingMinRatio)
	maxRadius = cvutil.RoundToEven(average * p.NarrowingMaxRatio)
	minDist = float64(minRadius) * 0.6

	l.log.Debug(component, "dynamically narrowed search radii", map[string]interface{}{
		"average_radius": average,
		"min_radius":     minRadius,
		"max_radius":     maxRadius,
	})
	return minRadius, maxRadius, minDist, nil
}

// adaptiveSearch drives the circle-search threshold up and down until the
// number of detections lands inside the configured window. Tightening and
// loosening follow asymmetric rules: a tighten that overshoots falls back to
// the previous result, while loosening past the limit accepts whatever was
// found last.
func (l *Locator) adaptiveSearch(searchImg gocv.Mat, p Params, alt bool, minRadius, maxRadius int, minDist float64, reportFailures bool) ([]ball.Circle, error) {
	threshold := p.StartingThreshold
	loosening := false
	var accepted []ball.Circle

	for iter := 0; iter < maxAdaptiveIterations; iter++ {
		minRadius = cvutil.RoundToEven(float64(minRadius))
		maxRadius = cvutil.RoundToEven(float64(maxRadius))

		l.log.Debug(component, "executing circle search", map[string]interface{}{
			"iteration":  iter,
			"dp":         p.DP,
			"min_dist":   minDist,
			"threshold":  threshold,
			"min_radius": minRadius,
			"max_radius": maxRadius,
			"alt":        alt,
		})

		test := l.search(searchImg, SearchCall{
			DP:              p.DP,
			MinDist:         minDist,
			EdgeSensitivity: p.EdgeSensitivity,
			Threshold:       threshold,
			MinRadius:       minRadius,
			MaxRadius:       maxRadius,
			Alt:             alt,
		})
		test = RemoveConcentricDuplicates(test)
		count := len(test)
		priorCount := len(accepted)

		l.log.Debug(component, "circle search returned", map[string]interface{}{
			"iteration": iter,
			"count":     count,
			"prior":     priorCount,
		})

		switch {
		case count >= p.MinReturnCircles && count <= p.MaxReturnCircles:
			return test, nil

		case count > p.MaxReturnCircles:
			if (priorCount == 0 && threshold != p.StartingThreshold) || threshold >= p.MaxThreshold {
				l.log.Debug(component, "could not narrow candidate count into window, accepting current result", map[string]interface{}{
					"count": count,
				})
				return test, nil
			}
			// The next pass may find nothing, so keep this result.
			accepted = test
			threshold += p.ThresholdIncrement
			loosening = false

		case count == 0 && priorCount == 0:
			if threshold <= p.MinThreshold {
				if reportFailures {
					l.log.Error(component, fmt.Errorf("adaptive search exhausted: %w", ErrNoBallFound), map[string]interface{}{
						"threshold": threshold,
					})
				}
				return nil, fmt.Errorf("adaptive search: %w", ErrNoBallFound)
			}
			threshold -= p.ThresholdIncrement
			loosening = true
			accepted = test

		case (count > 0 && priorCount == 0) || loosening:
			// Found some but fewer than wanted; keep loosening while
			// we can, otherwise this is as good as it gets.
			if threshold <= p.MinThreshold {
				l.log.Debug(component, "could not find as many candidates as hoped, accepting current result", map[string]interface{}{
					"count": count,
				})
				return test, nil
			}
			threshold -= p.ThresholdIncrement
			loosening = true
			accepted = test

		case count == 0 && priorCount > 0:
			// Over-tightened; the previous pass was the best we saw.
			l.log.Debug(component, "over-tightened, accepting previous result", map[string]interface{}{
				"prior": priorCount,
			})
			return accepted, nil

		default:
			// Some circles, below the window, right after a tighten.
			// No rule moves the threshold from here, so take what we
			// have.
			l.log.Debug(component, "accepting below-window result after tightening", map[string]interface{}{
				"count": count,
			})
			return test, nil
		}
	}

	if len(accepted) > 0 {
		l.log.Warning(component, "adaptive search hit the iteration cap, accepting fallback result", map[string]interface{}{
			"count": len(accepted),
		})
		return accepted, nil
	}
	if reportFailures {
		l.log.Error(component, fmt.Errorf("adaptive search hit the iteration cap: %w", ErrNoBallFound), nil)
	}
	return nil, fmt.Errorf("adaptive search: %w", ErrNoBallFound)
}
