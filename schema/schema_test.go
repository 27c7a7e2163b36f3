package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchEventCompletionRatio(t *testing.T) {
	tests := []struct {
		name  string
		event WatchEvent
		want  float64
	}{
		{"half watched", WatchEvent{WatchSeconds: 30, VideoDuration: 60}, 0.5},
		{"fully watched", WatchEvent{WatchSeconds: 60, VideoDuration: 60}, 1.0},
		{"over-watched clips to one", WatchEvent{WatchSeconds: 90, VideoDuration: 60}, 1.0},
		{"zero watch", WatchEvent{WatchSeconds: 0, VideoDuration: 60}, 0.0},
		{"zero duration guards against division", WatchEvent{WatchSeconds: 30, VideoDuration: 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.event.CompletionRatio(), 1e-9)
		})
	}
}

func TestSessionDurationMinutes(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := Session{StartTime: start, EndTime: start.Add(90 * time.Second)}
	assert.InDelta(t, 1.5, s.DurationMinutes(), 1e-9)

	// Single-event session has zero wall-clock span.
	single := Session{StartTime: start, EndTime: start}
	assert.Zero(t, single.DurationMinutes())
}

func TestStageSummaryDropAccounting(t *testing.T) {
	s := StageSummary{
		Stage:   "normalize",
		RowsIn:  100,
		RowsOut: 90,
		Drops: map[DropReason]int{
			DropBadTimestamp:  6,
			DropOverTolerance: 4,
		},
	}

	assert.Equal(t, 10, s.DropCount())
	assert.InDelta(t, 0.1, s.DropRate(), 1e-9)

	// Empty input never divides by zero.
	empty := StageSummary{Stage: "normalize"}
	assert.Zero(t, empty.DropRate())
}

func TestPipelineOutputDropRateSummary(t *testing.T) {
	out := &PipelineOutput{
		Summaries: []StageSummary{
			{Stage: "normalize", RowsIn: 100, RowsOut: 95, Drops: map[DropReason]int{DropBadNumber: 5}},
			{Stage: "sessionize", RowsIn: 95, RowsOut: 93, Drops: map[DropReason]int{DropDuplicate: 2}},
		},
	}

	rowsIn, rowsOut, drops := out.DropRateSummary()
	assert.Equal(t, 100, rowsIn)
	assert.Equal(t, 93, rowsOut)
	assert.Equal(t, 7, drops)

	// No summaries yet means all-zero accounting.
	rowsIn, rowsOut, drops = (&PipelineOutput{}).DropRateSummary()
	assert.Zero(t, rowsIn)
	assert.Zero(t, rowsOut)
	assert.Zero(t, drops)
}
