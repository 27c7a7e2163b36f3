// Package parquet provides data structures and functions for reading watch
// events from and exporting pipeline data to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/rewatch/schema"
	"github.com/parquet-go/parquet-go"
)

// WatchEventRow represents a single watch event in Parquet form.
// Column names match the CSV event header, so both input formats share
// one normalization path.
type WatchEventRow struct {
	// ViewerID identifies the viewer who produced the event
	ViewerID string `parquet:"viewer_id,snappy"`

	// VideoID identifies the video that was watched
	VideoID string `parquet:"video_id,snappy"`

	// CreatorID identifies the creator who published the video (nullable)
	CreatorID *string `parquet:"creator_id,optional,snappy"`

	// EventTime is when playback started (stored as TIMESTAMP with nanosecond precision)
	EventTime time.Time `parquet:"event_time,snappy"`

	// WatchSeconds is the number of seconds actually watched
	WatchSeconds float64 `parquet:"watch_duration_seconds,snappy"`

	// VideoDuration is the full video length in seconds
	VideoDuration float64 `parquet:"video_duration_seconds,snappy"`

	// Completed reports whether the play counted as a completion
	Completed bool `parquet:"completed,snappy"`
}

// SessionRow represents one sessionized block of viewer activity.
type SessionRow struct {
	// SessionID is the stable per-viewer session identifier
	SessionID string `parquet:"session_id,snappy"`

	// ViewerID identifies the viewer the session belongs to
	ViewerID string `parquet:"viewer_id,snappy"`

	// StartTime is the first event time in the session
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is the last event time in the session
	EndTime time.Time `parquet:"end_time,snappy"`

	// TotalWatchSeconds is the sum of watch durations in the session
	TotalWatchSeconds float64 `parquet:"total_watch_seconds,snappy"`

	// VideoCount is the number of events in the session
	VideoCount int32 `parquet:"video_count,snappy"`

	// UniqueVideos is the number of distinct videos in the session
	UniqueVideos int32 `parquet:"unique_videos,snappy"`

	// UniqueCreators is the number of distinct creators in the session
	UniqueCreators int32 `parquet:"unique_creators,snappy"`

	// MeanCompletion is the average completion ratio across events
	MeanCompletion float64 `parquet:"mean_completion,snappy"`
}

// KPIRowRecord represents one cohort/day KPI row. Undefined metrics are
// stored as nulls, never as zeroes.
type KPIRowRecord struct {
	// CohortDate is the cohort's first-seen calendar day (UTC midnight)
	CohortDate time.Time `parquet:"cohort_date,snappy"`

	// DayOffset is the whole number of days since the cohort date
	DayOffset int32 `parquet:"day_offset,snappy"`

	// CohortSize is the fixed denominator for the cohort
	CohortSize int32 `parquet:"cohort_size,snappy"`

	// Retained is the number of cohort viewers active on this exact day
	Retained int32 `parquet:"retained,snappy"`

	// RetentionRatio is Retained / CohortSize (nullable when undefined)
	RetentionRatio *float64 `parquet:"retention_ratio,optional,snappy"`

	// AvgSessionSeconds is the mean session length for the day (nullable)
	AvgSessionSeconds *float64 `parquet:"avg_session_seconds,optional,snappy"`

	// CompletionRate is the mean completion ratio for the day (nullable)
	CompletionRate *float64 `parquet:"completion_rate,optional,snappy"`

	// DAU is the distinct active viewers on this calendar day
	DAU int32 `parquet:"dau,snappy"`

	// WAU is the distinct active viewers over the trailing seven days
	WAU int32 `parquet:"wau,snappy"`
}

// ChurnScoreRow represents one per-viewer churn prediction.
type ChurnScoreRow struct {
	// ViewerID identifies the scored viewer
	ViewerID string `parquet:"viewer_id,snappy"`

	// CohortDate is the viewer's cohort day
	CohortDate time.Time `parquet:"cohort_date,snappy"`

	// Horizon is the retention horizon in days (1, 7, 30)
	Horizon int32 `parquet:"horizon_days,snappy"`

	// ReturnProbability is the model's probability the viewer returns
	ReturnProbability float64 `parquet:"return_probability,snappy"`

	// ChurnRisk is 1 - ReturnProbability
	ChurnRisk float64 `parquet:"churn_risk,snappy"`
}

// PipelineRun represents a single pipeline run with metadata.
// This struct maps to the rewatch_pipeline_runs database table.
type PipelineRun struct {
	// RunID is the unique identifier for this pipeline run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable, stored as TIMESTAMP with nanosecond precision)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// EventsIn is the number of raw rows read from the input
	EventsIn int32 `parquet:"events_in,snappy"`

	// EventsKept is the number of rows surviving normalization
	EventsKept int32 `parquet:"events_kept,snappy"`

	// Status is the terminal state of the run (running, completed, failed)
	Status string `parquet:"status,snappy"`

	// InputDigest is the fingerprint of the input file contents
	InputDigest string `parquet:"input_digest,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ReadWatchEventsParquet reads all watch event rows from a Parquet file.
func ReadWatchEventsParquet(inputPath string) ([]WatchEventRow, error) {
	rows, err := parquet.ReadFile[WatchEventRow](inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

// writeParquet writes a slice of records to a Parquet file using struct
// schema inference from the record type's tags.
func writeParquet[T any](data []T, outputPath string) error {
	// Create the output file
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	defer func() { _ = writer.Close() }()

	// The Write method accepts a variadic slice
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	return nil
}

// WriteWatchEventsParquet writes a slice of WatchEventRow structs to a Parquet file.
func WriteWatchEventsParquet(data []WatchEventRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSessionsParquet writes a slice of SessionRow structs to a Parquet file.
func WriteSessionsParquet(data []SessionRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteKPIRowsParquet writes a slice of KPIRowRecord structs to a Parquet file.
func WriteKPIRowsParquet(data []KPIRowRecord, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteChurnScoresParquet writes a slice of ChurnScoreRow structs to a Parquet file.
func WriteChurnScoresParquet(data []ChurnScoreRow, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WritePipelineRunsParquet writes a slice of PipelineRun structs to a Parquet file.
func WritePipelineRunsParquet(data []PipelineRun, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertWatchEvents converts schema.WatchEvent values to WatchEventRow for Parquet export.
func ConvertWatchEvents(events []schema.WatchEvent) []WatchEventRow {
	result := make([]WatchEventRow, len(events))
	for i, e := range events {
		row := WatchEventRow{
			ViewerID:      e.ViewerID,
			VideoID:       e.VideoID,
			EventTime:     e.EventTime,
			WatchSeconds:  e.WatchSeconds,
			VideoDuration: e.VideoDuration,
			Completed:     e.Completed,
		}
		if e.CreatorID != "" {
			creator := e.CreatorID
			row.CreatorID = &creator
		}
		result[i] = row
	}
	return result
}

// ConvertSessions converts schema.Session values to SessionRow for Parquet export.
func ConvertSessions(sessions []schema.Session) []SessionRow {
	result := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		result[i] = SessionRow{
			SessionID:         s.SessionID,
			ViewerID:          s.ViewerID,
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			TotalWatchSeconds: s.TotalWatchSeconds,
			VideoCount:        int32(s.VideoCount),
			UniqueVideos:      int32(s.UniqueVideos),
			UniqueCreators:    int32(s.UniqueCreators),
			MeanCompletion:    s.MeanCompletion,
		}
	}
	return result
}

// metricPtr maps an undefined metric to nil so Parquet stores a null.
func metricPtr(m schema.Metric) *float64 {
	if !m.Defined {
		return nil
	}
	v := m.Value
	return &v
}

// ConvertKPIRows converts schema.KPIRow values to KPIRowRecord for Parquet export.
func ConvertKPIRows(rows []schema.KPIRow) []KPIRowRecord {
	result := make([]KPIRowRecord, len(rows))
	for i, r := range rows {
		result[i] = KPIRowRecord{
			CohortDate:        r.CohortDate,
			DayOffset:         int32(r.DayOffset),
			CohortSize:        int32(r.CohortSize),
			Retained:          int32(r.Retained),
			RetentionRatio:    metricPtr(r.RetentionRatio),
			AvgSessionSeconds: metricPtr(r.AvgSessionSeconds),
			CompletionRate:    metricPtr(r.CompletionRate),
			DAU:               int32(r.DAU),
			WAU:               int32(r.WAU),
		}
	}
	return result
}

// ConvertChurnScores converts schema.ChurnScore values to ChurnScoreRow for Parquet export.
func ConvertChurnScores(scores []schema.ChurnScore) []ChurnScoreRow {
	result := make([]ChurnScoreRow, len(scores))
	for i, s := range scores {
		result[i] = ChurnScoreRow{
			ViewerID:          s.ViewerID,
			CohortDate:        s.CohortDate,
			Horizon:           int32(s.Horizon),
			ReturnProbability: s.ReturnProbability,
			ChurnRisk:         s.ChurnRisk,
		}
	}
	return result
}

// ConvertPipelineRunRecords converts schema.PipelineRunRecord to PipelineRun for Parquet export.
func ConvertPipelineRunRecords(records []schema.PipelineRunRecord) []PipelineRun {
	result := make([]PipelineRun, len(records))
	for i, record := range records {
		result[i] = PipelineRun{
			RunID:         record.RunID,
			StartTime:     record.StartTime,
			EndTime:       record.EndTime,
			RunDurationMs: record.RunDurationMs,
			EventsIn:      record.EventsIn,
			EventsKept:    record.EventsKept,
			Status:        string(record.Status),
			InputDigest:   record.InputDigest,
			ConfigParams:  record.ConfigParams,
		}
	}
	return result
}

// MockFetchPipelineRuns generates sample PipelineRun data for demonstration.
func MockFetchPipelineRuns() []PipelineRun {
	now := time.Now()
	startTime1 := now.Add(-2 * time.Hour)
	endTime1 := now.Add(-1*time.Hour - 30*time.Minute)
	durationMs1 := int32(endTime1.Sub(startTime1).Milliseconds())
	configParams1 := `{"gap":"30 minutes","horizons":"1,7,30","tolerance":1.5}`

	startTime2 := now.Add(-24 * time.Hour)
	endTime2 := now.Add(-23 * time.Hour)
	durationMs2 := int32(endTime2.Sub(startTime2).Milliseconds())
	configParams2 := `{"gap":"15 minutes","horizons":"1,7","tolerance":1.2}`

	startTime3 := now.Add(-10 * time.Minute)
	// Note: endTime3, durationMs3, configParams3 are nil to demonstrate nullable fields

	return []PipelineRun{
		{
			RunID:         1,
			StartTime:     startTime1,
			EndTime:       &endTime1,
			RunDurationMs: &durationMs1,
			EventsIn:      120000,
			EventsKept:    118430,
			Status:        "completed",
			InputDigest:   "2f1a9c4be7d05183",
			ConfigParams:  &configParams1,
		},
		{
			RunID:         2,
			StartTime:     startTime2,
			EndTime:       &endTime2,
			RunDurationMs: &durationMs2,
			EventsIn:      98500,
			EventsKept:    97012,
			Status:        "completed",
			InputDigest:   "77aa01f3c92d6b40",
			ConfigParams:  &configParams2,
		},
		{
			RunID:         3,
			StartTime:     startTime3,
			EndTime:       nil, // Still running - nullable field
			RunDurationMs: nil, // Not yet calculated - nullable field
			EventsIn:      0,
			EventsKept:    0,
			Status:        "running",
			InputDigest:   "5c3be8d1a6f47209",
			ConfigParams:  nil, // No config stored - nullable field
		},
	}
}

// MockFetchChurnScores generates sample ChurnScoreRow data for demonstration.
func MockFetchChurnScores() []ChurnScoreRow {
	cohort := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	return []ChurnScoreRow{
		{
			ViewerID:          "u100042",
			CohortDate:        cohort,
			Horizon:           7,
			ReturnProbability: 0.82,
			ChurnRisk:         0.18,
		},
		{
			ViewerID:          "u100117",
			CohortDate:        cohort,
			Horizon:           7,
			ReturnProbability: 0.31,
			ChurnRisk:         0.69,
		},
		{
			ViewerID:          "u100233",
			CohortDate:        cohort.AddDate(0, 0, 3),
			Horizon:           30,
			ReturnProbability: 0.09,
			ChurnRisk:         0.91,
		},
	}
}
