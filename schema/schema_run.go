package schema

import "time"

// StageSummary reports row accounting for one pipeline stage. Summaries are
// collected for every stage that ran, even when a later stage fails.
type StageSummary struct {
	Stage    string             `json:"stage"`
	RowsIn   int                `json:"rows_in"`
	RowsOut  int                `json:"rows_out"`
	Drops    map[DropReason]int `json:"drops,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// DropCount returns the total rows dropped by the stage.
func (s StageSummary) DropCount() int {
	total := 0
	for _, n := range s.Drops {
		total += n
	}
	return total
}

// DropRate returns the dropped fraction of input rows, or 0 for empty input.
func (s StageSummary) DropRate() float64 {
	if s.RowsIn == 0 {
		return 0
	}
	return float64(s.DropCount()) / float64(s.RowsIn)
}

// PipelineRunRecord represents a row from the pipeline_runs table.
type PipelineRunRecord struct {
	RunID         int64
	StartTime     time.Time
	EndTime       *time.Time
	RunDurationMs *int32
	EventsIn      int32
	EventsKept    int32
	Status        RunStatus
	InputDigest   string  // sha256 of the event source contents
	ConfigParams  *string // JSON snapshot of the effective config
}
