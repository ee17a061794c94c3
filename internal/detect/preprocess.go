package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/cvutil"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

const component = "detect"

// Preprocess conditions a grayscale frame in place for circle search. The
// pipeline differs per capture mode, but every path ends by re-blurring an
// edge map: the gradient-based circle search wants a smooth intensity
// surface around each edge, not a binary one.
func Preprocess(img *gocv.Mat, mode Mode, p Params, log logger.Logger) error {
	if img.Empty() {
		return fmt.Errorf("preprocess: %w", ErrEmptyImage)
	}

	switch mode {
	case ModePlacedBall:
		return preprocessPlaced(img, p)
	case ModeStrobed, ModeExternallyStrobed:
		return preprocessStrobed(img, mode, p, log)
	case ModePutting:
		return preprocessPutting(img, p)
	default:
		return fmt.Errorf("preprocess called with mode %s: %w", mode, ErrInvalidMode)
	}
}

func preprocessPlaced(img *gocv.Mat, p Params) error {
	preEdge := cvutil.MakeOdd(p.PreEdgeBlurSize)
	if preEdge > 0 {
		gocv.GaussianBlur(*img, img, image.Pt(preEdge, preEdge), 0, 0, gocv.BorderDefault)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(*img, &edges, float32(p.CannyLower), float32(p.CannyUpper))

	// Blur the edges-only image back into the search image.
	preSearch := cvutil.MakeOdd(p.PreSearchBlurSize)
	gocv.GaussianBlur(edges, img, image.Pt(preSearch, preSearch), 0, 0, gocv.BorderDefault)
	return nil
}

func preprocessStrobed(img *gocv.Mat, mode Mode, p Params, log logger.Logger) error {
	if p.UseCLAHE {
		tile := p.CLAHETileSize
		clip := p.CLAHEClipLimit
		if tile < 1 {
			log.Warning(component, "CLAHE tile grid size was < 1, resetting to 1", map[string]interface{}{
				"configured": p.CLAHETileSize,
			})
			tile = 1
		}
		if clip < 1 {
			log.Warning(component, "CLAHE clip limit was < 1, resetting to 1", map[string]interface{}{
				"configured": p.CLAHEClipLimit,
			})
			clip = 1
		}

		clahe := gocv.NewCLAHEWithParams(float64(clip), image.Pt(tile, tile))
		defer clahe.Close()
		clahe.Apply(*img, img)

		log.Debug(component, "applied CLAHE equalization", map[string]interface{}{
			"tile_grid_size": tile,
			"clip_limit":     clip,
		})
	}

	preEdge := cvutil.MakeOdd(p.PreEdgeBlurSize)
	preSearch := cvutil.MakeOdd(p.PreSearchBlurSize)

	log.Debug(component, "strobed preprocessing", map[string]interface{}{
		"mode":                 mode.String(),
		"pre_edge_blur_size":   preEdge,
		"pre_search_blur_size": preSearch,
		"canny_lower":          p.CannyLower,
		"canny_upper":          p.CannyUpper,
	})

	if preEdge > 0 {
		gocv.GaussianBlur(*img, img, image.Pt(preEdge, preEdge), 0, 0, gocv.BorderDefault)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	if mode == ModeExternallyStrobed && p.PreEdgeBlurSize == 0 {
		// Comparison-mode path: a zero pre-edge blur disables edge
		// extraction entirely and searches the raw intensities.
		img.CopyTo(&edges)
	} else {
		gocv.Canny(*img, &edges, float32(p.CannyLower), float32(p.CannyUpper))
	}

	gocv.GaussianBlur(edges, img, image.Pt(preSearch, preSearch), 0, 0, gocv.BorderDefault)
	return nil
}

func preprocessPutting(img *gocv.Mat, p Params) error {
	blur := cvutil.MakeOdd(p.PreSearchBlurSize)
	gocv.MedianBlur(*img, img, blur)

	// Otsu picks the edge thresholds, so this stage carries no tuned edge
	// constants of its own.
	scratch := gocv.NewMat()
	defer scratch.Close()
	otsu := gocv.Threshold(*img, &scratch, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(*img, &edges, otsu/2, otsu)
	gocv.BitwiseNot(edges, &edges)

	gocv.GaussianBlur(edges, img, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	return nil
}
