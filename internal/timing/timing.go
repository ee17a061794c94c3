// Package timing accumulates per-stage wall-clock durations so a processing
// run can report where its time went.
package timing

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Tracker records durations keyed by stage name. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	stages map[string][]time.Duration
}

func NewTracker() *Tracker {
	return &Tracker{stages: make(map[string][]time.Duration)}
}

// Track starts timing a stage and returns the function that stops it:
//
//	defer t.Track("locate")()
func (t *Tracker) Track(stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		t.mu.Lock()
		t.stages[stage] = append(t.stages[stage], elapsed)
		t.mu.Unlock()
	}
}

// Durations returns a copy of the recorded durations for a stage.
func (t *Tracker) Durations(stage string) []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	recorded := t.stages[stage]
	if recorded == nil {
		return nil
	}
	out := make([]time.Duration, len(recorded))
	copy(out, recorded)
	return out
}

// Average returns the mean duration of a stage, or zero if it never ran.
func (t *Tracker) Average(stage string) time.Duration {
	recorded := t.Durations(stage)
	if len(recorded) == 0 {
		return 0
	}
	samples := make([]float64, len(recorded))
	for i, d := range recorded {
		samples[i] = float64(d)
	}
	return time.Duration(stat.Mean(samples, nil))
}

// Summary returns per-stage run counts and mean durations, shaped for direct
// use as structured log fields.
func (t *Tracker) Summary() map[string]interface{} {
	t.mu.Lock()
	names := make([]string, 0, len(t.stages))
	for name := range t.stages {
		names = append(names, name)
	}
	t.mu.Unlock()

	fields := make(map[string]interface{}, 2*len(names))
	for _, name := range names {
		recorded := t.Durations(name)
		fields[name+"Runs"] = len(recorded)
		fields[name+"AvgMs"] = t.Average(name).Milliseconds()
	}
	return fields
}
