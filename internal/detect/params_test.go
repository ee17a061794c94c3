package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsForUnknownMatchesPlacedBall(t *testing.T) {
	tuning := DefaultTuning()

	unknown := tuning.ParamsFor(ModeUnknown)
	placed := tuning.ParamsFor(ModePlacedBall)

	if diff := cmp.Diff(placed, unknown); diff != "" {
		t.Errorf("Unknown params differ from PlacedBall (-placed +unknown):\n%s", diff)
	}
}

func TestParamsForStrobedAlgorithmRouting(t *testing.T) {
	tuning := DefaultTuning()

	tuning.StrobedUsesAltAlgorithm = true
	if diff := cmp.Diff(tuning.StrobedAlt, tuning.ParamsFor(ModeStrobed)); diff != "" {
		t.Errorf("expected alt strobed params:\n%s", diff)
	}

	tuning.StrobedUsesAltAlgorithm = false
	if diff := cmp.Diff(tuning.Strobed, tuning.ParamsFor(ModeStrobed)); diff != "" {
		t.Errorf("expected standard strobed params:\n%s", diff)
	}
}

func TestUsesAltAlgorithm(t *testing.T) {
	tuning := DefaultTuning()
	tuning.StrobedUsesAltAlgorithm = true

	assert.True(t, tuning.UsesAltAlgorithm(ModeStrobed))
	assert.False(t, tuning.UsesAltAlgorithm(ModePlacedBall))
	assert.False(t, tuning.UsesAltAlgorithm(ModeExternallyStrobed))
	assert.False(t, tuning.UsesAltAlgorithm(ModePutting))
	assert.False(t, tuning.UsesAltAlgorithm(ModeUnknown))

	tuning.StrobedUsesAltAlgorithm = false
	assert.False(t, tuning.UsesAltAlgorithm(ModeStrobed))
}

func TestModeNames(t *testing.T) {
	modes := []Mode{ModeUnknown, ModePlacedBall, ModeStrobed, ModeExternallyStrobed, ModePutting}
	for _, m := range modes {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err, "mode %s", m)
		assert.Equal(t, m, parsed)
	}

	_, err := ParseMode("HighSpeed")
	assert.Error(t, err)
}

func TestRefineParamsFor(t *testing.T) {
	tuning := DefaultTuning()
	tuning.ExternallyStrobedRefine.Threshold = 99

	assert.Equal(t, tuning.Refine, tuning.RefineParamsFor(false))
	assert.Equal(t, tuning.ExternallyStrobedRefine, tuning.RefineParamsFor(true))
}
