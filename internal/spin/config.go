// Package spin recovers the 3D rotation between two images of the same golf
// ball by correlating dimple patterns across simulated rotations: an oriented
// filter bank extracts a binarized dimple-edge signature from each ball, both
// views are deskewed into a common perspective, and a coarse-then-fine grid
// of candidate rotations is scored by projecting one signature onto a
// hemisphere and matching it against the other.
package spin

import "errors"

var (
	// ErrEmptyImage reports a spin call with no pixel data.
	ErrEmptyImage = errors.New("spin: empty image")

	// ErrZeroRadius reports a reference ball without a usable radius.
	ErrZeroRadius = errors.New("spin: zero-radius ball")

	// ErrClippedBall reports a ball whose isolation crop runs off the
	// frame edge, leaving too little of the ball to analyze.
	ErrClippedBall = errors.New("spin: ball crop clipped by frame edge")

	// ErrNoRotationFound reports total correlation failure: no candidate
	// rotation ever beat the initial sentinel score (no texture, bad
	// isolation, or degenerate masking).
	ErrNoRotationFound = errors.New("spin: no rotation found")
)

// component tags every log line emitted by this package.
const component = "spin"

// ignoreValue marks "do not compare" pixels. Dimple-edge images are
// binarized to {0, 255} before the sentinel is introduced, so 128 can never
// collide with legitimate data.
const ignoreValue = 128

// Rotation is a per-axis rotation in whole degrees. Positive X spin means
// the ball surface moves right to left.
type Rotation struct {
	X int
	Y int
	Z int
}

// AxisRange is an inclusive (start, end) sweep at a fixed increment.
type AxisRange struct {
	Start     int
	End       int
	Increment int
}

// steps returns how many grid points the range produces.
func (r AxisRange) steps() int {
	if r.Increment <= 0 || r.End < r.Start {
		return 0
	}
	return (r.End-r.Start)/r.Increment + 1
}

// SearchSpace is the 3D grid of candidate rotations, one range per axis.
type SearchSpace struct {
	X AxisRange
	Y AxisRange
	Z AxisRange
}

// Config is the immutable spin-estimation parameter set, constructed once at
// startup. Concurrent estimations share it without synchronization.
type Config struct {
	// Coarse is the wide first-pass rotation grid. The fine pass is
	// derived from the coarse winner and is not configured directly.
	Coarse SearchSpace

	// Dimple-edge binarization auto-calibrates until the foreground
	// fraction lands in [GaborMinWhitePercent, GaborMaxWhitePercent).
	GaborMinWhitePercent int
	GaborMaxWhitePercent int

	// ReflectionFloor is the absolute minimum brightness treated as
	// glare; the dynamic 99th-percentile cutoff never goes below it.
	ReflectionFloor int

	// LeftHanded flips the Y deskew sign for a reversed golfer
	// orientation.
	LeftHanded bool

	// Workers bounds the candidate-comparison pool; 0 means one worker
	// per CPU.
	Workers int
}

// DefaultConfig returns the empirically tuned spin parameters.
func DefaultConfig() Config {
	return Config{
		Coarse: SearchSpace{
			X: AxisRange{Start: -42, End: 42, Increment: 6},
			Y: AxisRange{Start: -30, End: 30, Increment: 5},
			Z: AxisRange{Start: -50, End: 60, Increment: 6},
		},
		GaborMinWhitePercent: 38,
		GaborMaxWhitePercent: 44,
		ReflectionFloor:      245,
	}
}
