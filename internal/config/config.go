// Package config loads the processing tuning document. The document is a
// JSON overlay: it starts from the built-in defaults and replaces only the
// fields it names, so a deployment ships the handful of values its cameras
// need and inherits everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/digitalhand/pitrac-light-sub000/internal/detect"
	"github.com/digitalhand/pitrac-light-sub000/internal/spin"
)

// Load reads a tuning document from path and returns the overlaid parameter
// sets. The results must be treated as immutable once returned.
func Load(path string) (detect.Tuning, spin.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return detect.Tuning{}, spin.Config{}, fmt.Errorf("config: read tuning document: %w", err)
	}
	return Parse(data)
}

// Parse overlays a JSON tuning document onto the built-in defaults. Absent
// fields keep their default values; section and field names match the Go
// field names case-insensitively.
func Parse(data []byte) (detect.Tuning, spin.Config, error) {
	tuning := detect.DefaultTuning()
	cfg := spin.DefaultConfig()

	doc := struct {
		Detection *detect.Tuning `json:"detection"`
		Spin      *spin.Config   `json:"spin"`
	}{Detection: &tuning, Spin: &cfg}

	if err := json.Unmarshal(data, &doc); err != nil {
		return detect.Tuning{}, spin.Config{}, fmt.Errorf("config: parse tuning document: %w", err)
	}
	if err := validate(tuning, cfg); err != nil {
		return detect.Tuning{}, spin.Config{}, err
	}
	return tuning, cfg, nil
}

func validate(tuning detect.Tuning, cfg spin.Config) error {
	modes := map[string]detect.Params{
		"placed":            tuning.Placed,
		"strobed":           tuning.Strobed,
		"strobedAlt":        tuning.StrobedAlt,
		"externallyStrobed": tuning.ExternallyStrobed,
		"putting":           tuning.Putting,
	}
	for name, p := range modes {
		if p.ThresholdIncrement <= 0 {
			return fmt.Errorf("config: %s: threshold increment must be positive", name)
		}
		if p.MinThreshold > p.MaxThreshold {
			return fmt.Errorf("config: %s: min threshold exceeds max", name)
		}
		if p.MinReturnCircles > p.MaxReturnCircles {
			return fmt.Errorf("config: %s: min return circles exceeds max", name)
		}
	}

	for _, axis := range []struct {
		name string
		r    spin.AxisRange
	}{
		{"x", cfg.Coarse.X},
		{"y", cfg.Coarse.Y},
		{"z", cfg.Coarse.Z},
	} {
		if axis.r.Increment <= 0 {
			return fmt.Errorf("config: spin coarse %s increment must be positive", axis.name)
		}
		if axis.r.Start > axis.r.End {
			return fmt.Errorf("config: spin coarse %s range is inverted", axis.name)
		}
	}
	if cfg.GaborMinWhitePercent >= cfg.GaborMaxWhitePercent {
		return fmt.Errorf("config: gabor white-percent band is empty")
	}
	return nil
}
