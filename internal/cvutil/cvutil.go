// Package cvutil provides small image and math helpers shared by the
// detection and spin packages.
package cvutil

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
)

// RoundToEven rounds v to the nearest integer and forces the result even.
// Odd circle-search radius bounds were observed to destabilize detection, so
// every radius bound passes through here before a search call.
func RoundToEven(v float64) int {
	n := int(math.Round(v))
	if n%2 != 0 {
		n++
	}
	return n
}

// MakeOdd bumps a positive kernel size up to the next odd value. Gaussian
// blur kernels must be odd.
func MakeOdd(n int) int {
	if n > 0 && n%2 == 0 {
		return n + 1
	}
	return n
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SubImage returns the region of src clamped to the image bounds, together
// with the offset that translates sub-image coordinates back into full-image
// coordinates. The returned Mat is a view sharing memory with src; the
// caller owns and must Close it. A degenerate region falls back to a view of
// the whole image.
func SubImage(src gocv.Mat, roi image.Rectangle) (gocv.Mat, image.Point) {
	bounds := image.Rect(0, 0, src.Cols(), src.Rows())
	r := roi.Canon().Intersect(bounds)
	if r.Empty() {
		r = bounds
	}
	return src.Region(r), r.Min
}

// ColorDistance is the Euclidean distance between two color triplets.
func ColorDistance(a, b ball.RGB) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	d2 := a[2] - b[2]
	return math.Sqrt(d0*d0 + d1*d1 + d2*d2)
}

// BallColorStats samples the square inscribed in the circle and returns the
// per-channel mean, median, and standard deviation of the sampled pixels.
// The image must be 3-channel BGR.
func BallColorStats(img gocv.Mat, c ball.Circle) (avg, median, std ball.RGB, err error) {
	if img.Empty() {
		return avg, median, std, fmt.Errorf("color stats: empty image")
	}
	if c.Radius < 0.001 {
		return avg, median, std, fmt.Errorf("color stats: circle has zero radius")
	}

	// The inscribed square avoids sampling background at the circle edge.
	half := int(c.Radius / math.Sqrt2)
	x0 := int(c.X) - half
	y0 := int(c.Y) - half
	x1 := int(c.X) + half
	y1 := int(c.Y) + half

	var samples [3][]float64
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= img.Rows() {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= img.Cols() {
				continue
			}
			v := img.GetVecbAt(y, x)
			for ch := 0; ch < 3; ch++ {
				samples[ch] = append(samples[ch], float64(v[ch]))
			}
		}
	}

	if len(samples[0]) == 0 {
		return avg, median, std, fmt.Errorf("color stats: circle at (%.0f,%.0f) lies outside the image", c.X, c.Y)
	}

	for ch := 0; ch < 3; ch++ {
		avg[ch] = stat.Mean(samples[ch], nil)
		std[ch] = stat.StdDev(samples[ch], nil)
		sort.Float64s(samples[ch])
		median[ch] = stat.Quantile(0.5, stat.Empirical, samples[ch], nil)
	}
	return avg, median, std, nil
}

// IntensityPercentile returns the grayscale intensity at quantile q
// (0 < q <= 1) over all pixels of a single-channel image.
func IntensityPercentile(img gocv.Mat, q float64) float64 {
	vals := make([]float64, 0, img.Rows()*img.Cols())
	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Cols(); x++ {
			vals = append(vals, float64(img.GetUCharAt(y, x)))
		}
	}
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return stat.Quantile(q, stat.Empirical, vals, nil)
}
