package spin

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/digitalhand/pitrac-light-sub000/internal/ball"
	"github.com/digitalhand/pitrac-light-sub000/internal/logger"
)

// syntheticBall builds a square edge image with a random binarized dimple
// pattern inside the comparison radius and the ignore sentinel outside,
// mirroring what the masking stages hand to the rotation search.
func syntheticBall(side int, seed int64) ([]uint8, ball.Ball) {
	b := ball.Ball{}
	b.SetCircle(ball.Circle{
		X:      float64(side) / 2,
		Y:      float64(side) / 2,
		Radius: float64(side)/2 - 2,
	})

	rng := rand.New(rand.NewSource(seed))
	compare := b.MeasuredRadius * finalMaskFactor
	pix := make([]uint8, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx := float64(x) - b.X
			dy := float64(y) - b.Y
			if math.Sqrt(dx*dx+dy*dy) > compare {
				pix[y*side+x] = ignoreValue
				continue
			}
			if rng.Intn(5) < 2 {
				pix[y*side+x] = 255
			}
		}
	}
	return pix, b
}

func TestComparePixelsSkipsSentinel(t *testing.T) {
	target := []uint8{255, 0, ignoreValue, 255, 0}
	candidate := []uint8{255, 255, 255, ignoreValue, 0}

	matches, examined := comparePixels(target, candidate)

	// Indices 2 and 3 carry the sentinel on one side each.
	assert.Equal(t, 3, examined)
	assert.Equal(t, 2, matches)
}

func TestAxisRangeSteps(t *testing.T) {
	tests := []struct {
		name string
		r    AxisRange
		want int
	}{
		{"coarse x span", AxisRange{Start: -42, End: 42, Increment: 6}, 15},
		{"single point", AxisRange{Start: 5, End: 5, Increment: 1}, 1},
		{"non-divisible span", AxisRange{Start: 0, End: 10, Increment: 4}, 3},
		{"inverted", AxisRange{Start: 10, End: 0, Increment: 1}, 0},
		{"zero increment", AxisRange{Start: 0, End: 10, Increment: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.steps())
		})
	}
}

func TestEnumerateGridCoversSpace(t *testing.T) {
	space := SearchSpace{
		X: AxisRange{Start: -6, End: 6, Increment: 6},
		Y: AxisRange{Start: -5, End: 5, Increment: 5},
		Z: AxisRange{Start: 0, End: 1, Increment: 1},
	}

	grid := enumerateGrid(space)

	require.Len(t, grid, 3*3*2)
	assert.Equal(t, Rotation{X: -6, Y: -5, Z: 0}, grid[0])
	assert.Equal(t, Rotation{X: 6, Y: 5, Z: 1}, grid[len(grid)-1])
}

func TestFineSpaceAround(t *testing.T) {
	got := fineSpaceAround(Rotation{X: 12, Y: 5, Z: -8}, DefaultConfig().Coarse)

	want := SearchSpace{
		X: AxisRange{Start: 9, End: 15, Increment: 1},
		Y: AxisRange{Start: 2, End: 8, Increment: 3},
		Z: AxisRange{Start: -11, End: -5, Increment: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fine search space mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectSphereIdentity(t *testing.T) {
	pix, b := syntheticBall(61, 1)

	out := projectSphere(pix, 61, 61, b, Rotation{})

	for y := 0; y < 61; y++ {
		for x := 0; x < 61; x++ {
			dx := float64(x) - b.X
			dy := float64(y) - b.Y
			onSphere := dx*dx+dy*dy < b.MeasuredRadius*b.MeasuredRadius
			if onSphere {
				assert.Equal(t, pix[y*61+x], out[y*61+x], "pixel (%d,%d)", x, y)
			} else {
				assert.EqualValues(t, ignoreValue, out[y*61+x], "pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestSearchRotationsRecoversKnownRotation(t *testing.T) {
	pix, b := syntheticBall(61, 2)
	truth := Rotation{X: 18, Y: 10, Z: 4}
	target := projectSphere(pix, 61, 61, b, truth)
	cfg := DefaultConfig()

	coarse, ok := searchRotations(pix, 61, 61, b, target, cfg.Coarse, 4, logger.Nop{})
	require.True(t, ok)
	assert.Equal(t, truth, coarse.rot, "truth lies on the coarse grid")

	fine, ok := searchRotations(pix, 61, 61, b, target,
		fineSpaceAround(coarse.rot, cfg.Coarse), 4, logger.Nop{})
	require.True(t, ok)
	assert.Equal(t, truth, fine.rot)
	assert.Equal(t, fine.examined, fine.matches, "exact candidate reproduces the target")
}

func TestSearchRotationsOffGridLandsWithinFineResolution(t *testing.T) {
	pix, b := syntheticBall(61, 3)
	truth := Rotation{X: -15, Y: 7, Z: 11}
	target := projectSphere(pix, 61, 61, b, truth)
	cfg := DefaultConfig()

	coarse, ok := searchRotations(pix, 61, 61, b, target, cfg.Coarse, 0, logger.Nop{})
	require.True(t, ok)
	assert.LessOrEqual(t, abs(coarse.rot.X-truth.X), cfg.Coarse.X.Increment)
	assert.LessOrEqual(t, abs(coarse.rot.Y-truth.Y), cfg.Coarse.Y.Increment)
	assert.LessOrEqual(t, abs(coarse.rot.Z-truth.Z), cfg.Coarse.Z.Increment)

	fine, ok := searchRotations(pix, 61, 61, b, target,
		fineSpaceAround(coarse.rot, cfg.Coarse), 0, logger.Nop{})
	require.True(t, ok)
	assert.LessOrEqual(t, abs(fine.rot.X-truth.X), 2)
	assert.LessOrEqual(t, abs(fine.rot.Z-truth.Z), 2)
	// Y keeps a coarser increment in the fine pass.
	assert.LessOrEqual(t, abs(fine.rot.Y-truth.Y), 3)
}

func TestSearchIdenticalImagesYieldsZeroRotation(t *testing.T) {
	pix, b := syntheticBall(61, 4)
	cfg := DefaultConfig()

	// The coarse Z axis has no zero point, so only the two-pass search can
	// land on the exact identity.
	coarse, ok := searchRotations(pix, 61, 61, b, pix, cfg.Coarse, 4, logger.Nop{})
	require.True(t, ok)

	fine, ok := searchRotations(pix, 61, 61, b, pix,
		fineSpaceAround(coarse.rot, cfg.Coarse), 4, logger.Nop{})
	require.True(t, ok)
	assert.Equal(t, Rotation{}, fine.rot)
}

func TestCalibrateWalksThresholdIntoBand(t *testing.T) {
	// 40 bright, 20 mid, 40 dark pixels: 60% foreground at the starting
	// cutoff of 110, dropping to 40% once the cutoff reaches 140.
	response := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer response.Close()
	for i := 0; i < 100; i++ {
		var v uint8
		switch {
		case i < 40:
			v = 250
		case i < 60:
			v = 140
		}
		response.SetUCharAt(i/10, i%10, v)
	}

	bin, threshold := calibrate(response, DefaultConfig(), -1, logger.Nop{})
	defer bin.Close()

	assert.Equal(t, 14.0, threshold)
	recheck, white := binarize(response, threshold)
	defer recheck.Close()
	assert.Equal(t, 40, white)
}

func TestCalibrateBandGapTerminatesAtRangeBound(t *testing.T) {
	// 36% of the pixels sit just above the starting cutoff and another 8%
	// in the five intensity levels below it, so one fine step flips the
	// foreground fraction from below the band (36) straight past it (44)
	// with no threshold in between. The latched walk must run off the
	// bottom of the range instead of bouncing across the gap forever.
	response := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer response.Close()
	for i := 0; i < 100; i++ {
		var v uint8
		switch {
		case i < 36:
			v = 200
		case i < 44:
			v = 108
		}
		response.SetUCharAt(i/10, i%10, v)
	}

	bin, threshold := calibrate(response, DefaultConfig(), -1, logger.Nop{})
	defer bin.Close()

	assert.Less(t, threshold, gaborThresholdMin)
}

func TestNormalizeScaleUpscalesSmallerCrop(t *testing.T) {
	large := gocv.NewMatWithSize(80, 80, gocv.MatTypeCV8UC1)
	defer large.Close()
	small := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC1)
	defer small.Close()

	var cLarge, cSmall ball.Ball
	cLarge.SetCircle(ball.Circle{X: 40, Y: 40, Radius: 38})
	cSmall.SetCircle(ball.Circle{X: 30, Y: 30, Radius: 28})

	normalizeScale(&large, &small, &cLarge, &cSmall)

	// The sharper view keeps its resolution; the smaller crop grows.
	assert.Equal(t, 80, large.Cols())
	assert.Equal(t, 80, small.Cols())
	assert.Equal(t, 80, small.Rows())
	assert.InDelta(t, 28.0*80.0/60.0, cSmall.MeasuredRadius, 1e-9)
	assert.Equal(t, 40.0, cSmall.X)
	assert.Equal(t, 38.0, cLarge.MeasuredRadius)
}

func TestIsolateBallClippedByFrameEdge(t *testing.T) {
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()
	b := ball.Ball{}
	b.SetCircle(ball.Circle{X: 4, Y: 50, Radius: 20})

	_, _, err := isolateBall(img, b)
	assert.ErrorIs(t, err, ErrClippedBall)
}

func TestCalibratePinnedByPriorThreshold(t *testing.T) {
	response := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC1)
	defer response.Close()

	bin, threshold := calibrate(response, DefaultConfig(), 17.5, logger.Nop{})
	defer bin.Close()

	// 100% white is far outside the band, but the prior pins the threshold.
	assert.Equal(t, 17.5, threshold)
}

func TestSearchRotationsAllSentinelFails(t *testing.T) {
	side := 31
	pix := make([]uint8, side*side)
	for i := range pix {
		pix[i] = ignoreValue
	}
	b := ball.Ball{}
	b.SetCircle(ball.Circle{X: 15.5, Y: 15.5, Radius: 13})

	space := SearchSpace{
		X: AxisRange{Start: 0, End: 6, Increment: 6},
		Y: AxisRange{Start: 0, End: 0, Increment: 1},
		Z: AxisRange{Start: 0, End: 0, Increment: 1},
	}
	_, ok := searchRotations(pix, side, side, b, pix, space, 2, logger.Nop{})

	assert.False(t, ok)
}

func TestUndeskewNegatesXAtZeroAngles(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)

	got := e.undeskew(Rotation{X: 10, Y: 5, Z: -3}, ball.Ball{}, 0, 0)

	assert.Equal(t, Rotation{X: -10, Y: 5, Z: -3}, got)
}

func TestMaskOutsideBallFill(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(7, 0, 0, 0), 20, 20, gocv.MatTypeCV8UC1)
	defer img.Close()
	b := ball.Ball{}
	b.SetCircle(ball.Circle{X: 10, Y: 10, Radius: 8})

	out := maskOutsideBall(img, b, finalMaskFactor, ignoreValue)
	defer out.Close()

	assert.EqualValues(t, 7, out.GetUCharAt(10, 10))
	assert.EqualValues(t, ignoreValue, out.GetUCharAt(0, 0))
}

func TestBinarizeWhitePercent(t *testing.T) {
	response := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 10, 10, gocv.MatTypeCV8UC1)
	defer response.Close()
	for i := 0; i < 30; i++ {
		response.SetUCharAt(i/10, i%10, 200)
	}

	bin, white := binarize(response, gaborStartThreshold)
	defer bin.Close()

	assert.Equal(t, 30, white)
	assert.EqualValues(t, 255, bin.GetUCharAt(0, 0))
	assert.EqualValues(t, 0, bin.GetUCharAt(9, 9))
}

func TestRotationBetweenValidation(t *testing.T) {
	e := NewEstimator(DefaultConfig(), nil)
	empty := gocv.NewMat()
	defer empty.Close()
	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer img.Close()
	b := ball.Ball{}
	b.SetCircle(ball.Circle{X: 50, Y: 50, Radius: 20})

	_, err := e.RotationBetween(empty, b, img, b)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = e.RotationBetween(img, ball.Ball{}, img, b)
	assert.ErrorIs(t, err, ErrZeroRadius)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
