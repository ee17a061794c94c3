// Package detect locates golf balls in camera frames. It combines a
// mode-keyed parameter strategy, Hough-based circle-search primitives, and an
// adaptive localization loop that tunes the search threshold until the number
// of returned circles falls inside a target window.
package detect

import "fmt"

// Mode identifies the capture situation the frame was taken in. The tuned
// search parameters differ substantially between modes.
type Mode int

const (
	ModeUnknown Mode = iota
	ModePlacedBall
	ModeStrobed
	ModeExternallyStrobed
	ModePutting
)

func (m Mode) String() string {
	switch m {
	case ModePlacedBall:
		return "PlacedBall"
	case ModeStrobed:
		return "Strobed"
	case ModeExternallyStrobed:
		return "ExternallyStrobed"
	case ModePutting:
		return "Putting"
	default:
		return "Unknown"
	}
}

// ParseMode maps a mode name (as produced by Mode.String) back to the enum.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "PlacedBall":
		return ModePlacedBall, nil
	case "Strobed":
		return ModeStrobed, nil
	case "ExternallyStrobed":
		return ModeExternallyStrobed, nil
	case "Putting":
		return ModePutting, nil
	case "Unknown":
		return ModeUnknown, nil
	}
	return ModeUnknown, fmt.Errorf("unknown capture mode %q", s)
}

// Params is the immutable bundle of numeric tunables driving one
// localization call. Constructed once per call from the Tuning table and
// never mutated.
type Params struct {
	// Adaptive threshold loop. The threshold is the circle-search
	// accumulator cutoff: higher demands stronger circle evidence.
	StartingThreshold  float64
	MinThreshold       float64
	MaxThreshold       float64
	ThresholdIncrement float64

	// Circle-search shape parameters.
	EdgeSensitivity float64 // gradient strength required of circle edges
	DP              float64 // accumulator resolution divisor

	// Preprocessing.
	CannyLower        float64
	CannyUpper        float64
	PreEdgeBlurSize   int
	PreSearchBlurSize int
	UseCLAHE          bool
	CLAHEClipLimit    int
	CLAHETileSize     int

	// Acceptance window for the adaptive loop.
	MinReturnCircles int
	MaxReturnCircles int

	// Radius bounds in pixels; -1 means derive from the image size.
	MinSearchRadius int
	MaxSearchRadius int

	// Dynamic radius narrowing pre-pass.
	UseDynamicRadii            bool
	RadiiToAverage             int
	NarrowingMinRatio          float64
	NarrowingMaxRatio          float64
	NarrowingThreshold         float64
	NarrowingDP                float64
	NarrowingEdgeSensitivity   float64
	NarrowingPreEdgeBlurSize   int
	NarrowingPreSearchBlurSize int
}

// RefineParams drives the bounded refinement pass around a known
// approximate circle.
type RefineParams struct {
	CannyLower        float64
	CannyUpper        float64
	PreEdgeBlurSize   int
	PreSearchBlurSize int
	EdgeSensitivity   float64
	Threshold         float64
	DP                float64
	MinRadiusRatio    float64
	MaxRadiusRatio    float64
}

// Tuning is the full, load-once-at-startup parameter table, keyed by capture
// mode. Treat as immutable for the life of the process; concurrent Locate
// calls share it without synchronization.
type Tuning struct {
	Placed            Params
	Strobed           Params
	StrobedAlt        Params
	ExternallyStrobed Params
	Putting           Params

	// StrobedUsesAltAlgorithm selects the continuous-scoring circle-search
	// variant (and the StrobedAlt parameter set) for Strobed captures.
	StrobedUsesAltAlgorithm bool

	// UseRefinement re-searches a tight region around the best-ranked
	// ball after scoring for a more precise center and radius.
	UseRefinement bool

	Refine                  RefineParams
	ExternallyStrobedRefine RefineParams
}

// DefaultTuning returns the empirically tuned parameter tables. A
// configuration document may overlay individual fields at startup; after
// that the value must never change.
func DefaultTuning() Tuning {
	narrowingCommon := struct {
		strobedMinRatio, strobedMaxRatio float64
		placedMinRatio, placedMaxRatio   float64
	}{0.8, 1.2, 0.9, 1.1}

	placed := Params{
		StartingThreshold:  40,
		MinThreshold:       30,
		MaxThreshold:       60,
		ThresholdIncrement: 4,
		EdgeSensitivity:    120.0,
		DP:                 1.5,
		CannyLower:         0.0,
		CannyUpper:         0.0,
		PreEdgeBlurSize:    5,
		PreSearchBlurSize:  11,
		UseCLAHE:           false,
		CLAHEClipLimit:     0,
		CLAHETileSize:      0,
		MinReturnCircles:   1,
		MaxReturnCircles:   4,
		MinSearchRadius:    -1,
		MaxSearchRadius:    -1,

		UseDynamicRadii:            true,
		RadiiToAverage:             3,
		NarrowingMinRatio:          narrowingCommon.placedMinRatio,
		NarrowingMaxRatio:          narrowingCommon.placedMaxRatio,
		NarrowingThreshold:         80.0,
		NarrowingDP:                2.0,
		NarrowingEdgeSensitivity:   130.0,
		NarrowingPreEdgeBlurSize:   5,
		NarrowingPreSearchBlurSize: 11,
	}

	strobed := Params{
		StartingThreshold:  40,
		MinThreshold:       30,
		MaxThreshold:       60,
		ThresholdIncrement: 4,
		EdgeSensitivity:    120.0,
		DP:                 1.5,
		CannyLower:         50,
		CannyUpper:         110,
		PreEdgeBlurSize:    5,
		PreSearchBlurSize:  13,
		UseCLAHE:           false,
		CLAHEClipLimit:     0,
		CLAHETileSize:      0,
		MinReturnCircles:   1,
		MaxReturnCircles:   12,
		MinSearchRadius:    -1,
		MaxSearchRadius:    -1,

		UseDynamicRadii:            true,
		RadiiToAverage:             3,
		NarrowingMinRatio:          narrowingCommon.strobedMinRatio,
		NarrowingMaxRatio:          narrowingCommon.strobedMaxRatio,
		NarrowingThreshold:         100.0,
		NarrowingDP:                1.8,
		NarrowingEdgeSensitivity:   130.0,
		NarrowingPreEdgeBlurSize:   5,
		NarrowingPreSearchBlurSize: 13,
	}

	// The continuous-scoring variant works with thresholds in (0, 1].
	strobedAlt := strobed
	strobedAlt.StartingThreshold = 0.95
	strobedAlt.MinThreshold = 0.6
	strobedAlt.MaxThreshold = 1.0
	strobedAlt.ThresholdIncrement = 0.05
	strobedAlt.EdgeSensitivity = 130.0
	strobedAlt.DP = 1.5
	strobedAlt.CannyLower = 35
	strobedAlt.CannyUpper = 70
	strobedAlt.PreEdgeBlurSize = 11
	strobedAlt.PreSearchBlurSize = 16
	strobedAlt.NarrowingPreEdgeBlurSize = 11
	strobedAlt.NarrowingPreSearchBlurSize = 16

	externallyStrobed := Params{
		StartingThreshold:  65,
		MinThreshold:       28,
		MaxThreshold:       100,
		ThresholdIncrement: 4,
		EdgeSensitivity:    130.0,
		DP:                 1.0,
		CannyLower:         35,
		CannyUpper:         80,
		PreEdgeBlurSize:    3,
		PreSearchBlurSize:  11,
		UseCLAHE:           true,
		CLAHEClipLimit:     6,
		CLAHETileSize:      6,
		MinReturnCircles:   3,
		MaxReturnCircles:   20,
		MinSearchRadius:    60,
		MaxSearchRadius:    80,

		UseDynamicRadii:            true,
		RadiiToAverage:             3,
		NarrowingMinRatio:          narrowingCommon.strobedMinRatio,
		NarrowingMaxRatio:          narrowingCommon.strobedMaxRatio,
		NarrowingThreshold:         0.6,
		NarrowingDP:                1.1,
		NarrowingEdgeSensitivity:   130.0,
		NarrowingPreEdgeBlurSize:   3,
		NarrowingPreSearchBlurSize: 9,
	}

	putting := Params{
		StartingThreshold:  40,
		MinThreshold:       30,
		MaxThreshold:       60,
		ThresholdIncrement: 4,
		EdgeSensitivity:    120.0,
		DP:                 1.5,
		CannyLower:         0.0,
		CannyUpper:         0.0,
		PreEdgeBlurSize:    0,
		PreSearchBlurSize:  9,
		UseCLAHE:           false,
		CLAHEClipLimit:     0,
		CLAHETileSize:      0,
		MinReturnCircles:   1,
		MaxReturnCircles:   12,
		MinSearchRadius:    -1,
		MaxSearchRadius:    -1,

		// Putting narrows like a placed ball.
		UseDynamicRadii:            true,
		RadiiToAverage:             3,
		NarrowingMinRatio:          narrowingCommon.placedMinRatio,
		NarrowingMaxRatio:          narrowingCommon.placedMaxRatio,
		NarrowingThreshold:         80.0,
		NarrowingDP:                2.0,
		NarrowingEdgeSensitivity:   130.0,
		NarrowingPreEdgeBlurSize:   0,
		NarrowingPreSearchBlurSize: 9,
	}

	return Tuning{
		Placed:                  placed,
		Strobed:                 strobed,
		StrobedAlt:              strobedAlt,
		ExternallyStrobed:       externallyStrobed,
		Putting:                 putting,
		StrobedUsesAltAlgorithm: true,
		UseRefinement:           false,
		Refine: RefineParams{
			CannyLower:        55,
			CannyUpper:        110,
			PreEdgeBlurSize:   5,
			PreSearchBlurSize: 13,
			EdgeSensitivity:   120.0,
			Threshold:         35.0,
			DP:                1.5,
			MinRadiusRatio:    0.85,
			MaxRadiusRatio:    1.10,
		},
		ExternallyStrobedRefine: RefineParams{
			CannyLower:        55,
			CannyUpper:        110,
			PreEdgeBlurSize:   5,
			PreSearchBlurSize: 13,
			EdgeSensitivity:   120.0,
			Threshold:         35.0,
			DP:                1.5,
			MinRadiusRatio:    0.85,
			MaxRadiusRatio:    1.10,
		},
	}
}

// ParamsFor returns the parameter bundle for a capture mode. It is pure and
// total: ModeUnknown resolves to the placed-ball parameters. That fallback
// mirrors long-standing behavior and deliberately masks a mis-specified mode
// rather than failing a shot mid-flight.
func (t Tuning) ParamsFor(mode Mode) Params {
	switch mode {
	case ModePlacedBall:
		return t.Placed
	case ModeStrobed:
		if t.StrobedUsesAltAlgorithm {
			return t.StrobedAlt
		}
		return t.Strobed
	case ModeExternallyStrobed:
		return t.ExternallyStrobed
	case ModePutting:
		return t.Putting
	default:
		return t.ParamsFor(ModePlacedBall)
	}
}

// UsesAltAlgorithm reports whether the mode runs the continuous-scoring
// circle-search variant instead of the discrete-vote one. Only Strobed
// captures are eligible, and only when configured to.
func (t Tuning) UsesAltAlgorithm(mode Mode) bool {
	return mode == ModeStrobed && t.StrobedUsesAltAlgorithm
}

// RefineParamsFor returns the refinement parameter set, which differs when
// operating against an externally strobed comparison environment.
func (t Tuning) RefineParamsFor(externallyStrobed bool) RefineParams {
	if externallyStrobed {
		return t.ExternallyStrobedRefine
	}
	return t.Refine
}
