package spin

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// removeReflections stamps the ignore sentinel over strobe glare in the
// dimple-edge image. Glare is whatever the ball crop shows above the 99th
// brightness percentile (never below the configured absolute floor), grown
// by a close-then-dilate so the halo around each hotspot is excluded too.
// ballCrop is the isolated grayscale ball the edges were derived from; edges
// is modified in place.
func removeReflections(edges *gocv.Mat, ballCrop gocv.Mat, cfg Config, log logger.Logger) {
	cutoff := cvutil.IntensityPercentile(ballCrop, 0.99) - 1
	if cutoff < float64(cfg.ReflectionFloor) {
		cutoff = float64(cfg.ReflectionFloor)
	}

	glare := gocv.NewMat()
	defer glare.Close()
	gocv.InRangeWithScalar(ballCrop,
		gocv.NewScalar(cutoff, 0, 0, 0),
		gocv.NewScalar(255, 0, 0, 0), &glare)

	closeKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer closeKernel.Close()
	gocv.MorphologyEx(glare, &glare, gocv.MorphClose, closeKernel)

	dilateKernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer dilateKernel.Close()
	gocv.MorphologyEx(glare, &glare, gocv.MorphDilate, dilateKernel)

	masked := 0
	for y := 0; y < edges.Rows(); y++ {
		for x := 0; x < edges.Cols(); x++ {
			if glare.GetUCharAt(y, x) == 255 {
				edges.SetUCharAt(y, x, ignoreValue)
				masked++
			}
		}
	}

	log.Debug(component, "reflections masked", map[string]interface{}{
		"cutoff":       cutoff,
		"maskedPixels": masked,
	})
}
