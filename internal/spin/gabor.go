package spin

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// Oriented-filter bank geometry for dimple-edge extraction. The wavelength
// and aspect ratio are tuned to the ridge width of golf-ball dimples at
// typical capture resolutions.
const (
	gaborKernelSize = 21
	gaborSigma      = 1.0
	gaborLambda     = 6.0
	gaborGamma      = 0.2
	gaborPsiDeg     = 90.0
	gaborThetaStep  = 11.25

	// Binarization threshold calibration. The threshold is expressed in
	// the same 0..25.5 units the tuning work used; it is scaled by 10
	// before being applied to the 0..255 filter response.
	gaborStartThreshold = 11.0
	gaborThresholdScale = 10.0
	gaborThresholdMax   = 30.0
	gaborThresholdMin   = 2.0
	gaborCoarseStep     = 1.0
	gaborFineStep       = 0.5
	gaborFarFromBand    = 5

	// gaborMaxCalibrationPasses caps the calibration walk outright; the
	// latched direction and the [min,max] threshold range already bound
	// it for every sane configuration.
	gaborMaxCalibrationPasses = 64
)

// gaborResponse runs the full orientation sweep and returns the per-pixel
// maximum response as an 8-bit image. The caller owns the Mat.
func gaborResponse(img gocv.Mat) gocv.Mat {
	src := gocv.NewMat()
	defer src.Close()
	img.ConvertToWithParams(&src, gocv.MatTypeCV32F, 1.0/255.0, 0)

	accum := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		src.Rows(), src.Cols(), gocv.MatTypeCV32F)
	defer accum.Close()

	dest := gocv.NewMat()
	defer dest.Close()
	ksize := image.Pt(gaborKernelSize, gaborKernelSize)
	psi := cvutil.DegToRad(gaborPsiDeg)

	for theta := 0.0; theta < 360.0; theta += gaborThetaStep {
		kernel := gocv.GetGaborKernel(ksize, gaborSigma, cvutil.DegToRad(theta),
			gaborLambda, gaborGamma, psi, gocv.MatTypeCV32F)
		gocv.Filter2D(src, &dest, gocv.MatTypeCV32F, kernel,
			image.Pt(-1, -1), 0, gocv.BorderDefault)
		gocv.Max(accum, dest, &accum)
		kernel.Close()
	}

	out := gocv.NewMat()
	accum.ConvertToWithParams(&out, gocv.MatTypeCV8UC1, 255.0, 0)
	return out
}

// binarize thresholds the filter response at threshold (pre-scale units) and
// returns the binary image plus its foreground percentage.
func binarize(response gocv.Mat, threshold float64) (gocv.Mat, int) {
	bin := gocv.NewMat()
	gocv.Threshold(response, &bin, float32(threshold*gaborThresholdScale), 255,
		gocv.ThresholdBinary)
	total := bin.Rows() * bin.Cols()
	if total == 0 {
		return bin, 0
	}
	white := int(math.Round(float64(gocv.CountNonZero(bin)) * 100.0 / float64(total)))
	return bin, white
}

// dimpleEdges extracts the binarized dimple-edge signature of an isolated
// ball. With priorThreshold <= 0 the binarization threshold auto-calibrates
// until the foreground fraction lands inside the configured white-percent
// band; with a positive prior (the first ball's converged value) the
// threshold is applied as-is so both balls binarize identically. It returns
// the edge image and the threshold actually used. The caller owns the Mat.
func dimpleEdges(img gocv.Mat, cfg Config, priorThreshold float64, log logger.Logger) (gocv.Mat, float64) {
	response := gaborResponse(img)
	defer response.Close()
	return calibrate(response, cfg, priorThreshold, log)
}

// calibrate binarizes a filter response, walking the threshold into the
// white-percent band unless a prior threshold pins it.
func calibrate(response gocv.Mat, cfg Config, priorThreshold float64, log logger.Logger) (gocv.Mat, float64) {
	threshold := gaborStartThreshold
	if priorThreshold > 0 {
		threshold = priorThreshold
	}

	bin, white := binarize(response, threshold)
	if priorThreshold > 0 {
		return bin, threshold
	}

	// The walk direction is latched once: re-deciding it every pass can
	// bounce across the band forever when the response histogram piles
	// pixels into the few intensity levels between two cutoffs.
	ratchetDown := white < cfg.GaborMinWhitePercent
	for pass := 0; white < cfg.GaborMinWhitePercent || white >= cfg.GaborMaxWhitePercent; pass++ {
		if pass >= gaborMaxCalibrationPasses {
			log.Warning(component, "dimple threshold calibration hit the pass cap", map[string]interface{}{
				"threshold":    threshold,
				"whitePercent": white,
			})
			break
		}
		step := gaborCoarseStep
		if white >= cfg.GaborMinWhitePercent-gaborFarFromBand &&
			white < cfg.GaborMaxWhitePercent+gaborFarFromBand {
			step = gaborFineStep
		}
		if ratchetDown {
			threshold -= step
		} else {
			threshold += step
		}
		if threshold > gaborThresholdMax || threshold < gaborThresholdMin {
			log.Warning(component, "dimple threshold calibration ran out of range", map[string]interface{}{
				"threshold":    threshold,
				"whitePercent": white,
			})
			break
		}
		bin.Close()
		bin, white = binarize(response, threshold)
	}

	log.Debug(component, "dimple threshold calibrated", map[string]interface{}{
		"threshold":    threshold,
		"whitePercent": white,
	})
	return bin, threshold
}
