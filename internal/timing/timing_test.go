package timing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackRecordsDurations(t *testing.T) {
	tr := NewTracker()

	stop := tr.Track("locate")
	time.Sleep(time.Millisecond)
	stop()

	recorded := tr.Durations("locate")
	assert.Len(t, recorded, 1)
	assert.Greater(t, recorded[0], time.Duration(0))
	assert.Nil(t, tr.Durations("spin"))
}

func TestAverageOfUnknownStageIsZero(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, time.Duration(0), tr.Average("missing"))
}

func TestConcurrentTracking(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer tr.Track("stage")()
		}()
	}
	wg.Wait()

	assert.Len(t, tr.Durations("stage"), 32)
}

func TestSummaryShapesLogFields(t *testing.T) {
	tr := NewTracker()
	tr.Track("locate")()
	tr.Track("locate")()
	tr.Track("spin")()

	fields := tr.Summary()

	assert.Equal(t, 2, fields["locateRuns"])
	assert.Equal(t, 1, fields["spinRuns"])
	assert.Contains(t, fields, "locateAvgMs")
	assert.Contains(t, fields, "spinAvgMs")
}
