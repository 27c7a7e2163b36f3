package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	rewatch "github.com/huangsam/rewatch/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchEventRowStructTags(t *testing.T) {
	// Verify struct tags are properly defined for parquet schema inference
	schema := parquet.SchemaOf(new(WatchEventRow))
	require.NotNil(t, schema)

	// Check that all expected columns exist
	expectedColumns := []string{
		"viewer_id",
		"video_id",
		"creator_id",
		"event_time",
		"watch_duration_seconds",
		"video_duration_seconds",
		"completed",
	}

	for _, colName := range expectedColumns {
		col, ok := schema.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col, "Column %s should not be nil", colName)
	}
}

func TestKPIRowRecordStructTags(t *testing.T) {
	// Verify struct tags are properly defined for parquet schema inference
	schema := parquet.SchemaOf(new(KPIRowRecord))
	require.NotNil(t, schema)

	// Check that all expected columns exist
	expectedColumns := []string{
		"cohort_date",
		"day_offset",
		"cohort_size",
		"retained",
		"retention_ratio",
		"avg_session_seconds",
		"completion_rate",
		"dau",
		"wau",
	}

	for _, colName := range expectedColumns {
		col, ok := schema.Lookup(colName)
		require.True(t, ok, "Column %s should exist in schema", colName)
		require.NotNil(t, col, "Column %s should not be nil", colName)
	}
}

func TestWriteAndReadWatchEventsParquet(t *testing.T) {
	// Create temporary directory for test output
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "watch_events.parquet")

	creator := "c42"
	eventTime := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	data := []WatchEventRow{
		{
			ViewerID:      "u100001",
			VideoID:       "v9001",
			CreatorID:     &creator,
			EventTime:     eventTime,
			WatchSeconds:  42.5,
			VideoDuration: 120.0,
			Completed:     false,
		},
		{
			ViewerID:      "u100002",
			VideoID:       "v9002",
			CreatorID:     nil, // events without creator metadata
			EventTime:     eventTime.Add(90 * time.Second),
			WatchSeconds:  110.0,
			VideoDuration: 115.0,
			Completed:     true,
		},
	}

	// Write data to Parquet file
	err := WriteWatchEventsParquet(data, outputPath)
	require.NoError(t, err, "Writing Parquet file should not produce error")

	// Verify file was created
	info, err := os.Stat(outputPath)
	require.NoError(t, err, "Output file should exist")
	assert.Greater(t, info.Size(), int64(0), "Output file should not be empty")

	// Read back via the reader used by the event source
	readData, err := ReadWatchEventsParquet(outputPath)
	require.NoError(t, err, "Should be able to read data")
	require.Len(t, readData, len(data), "Should read all records")

	// Verify data integrity
	for i := 0; i < len(data); i++ {
		assert.Equal(t, data[i].ViewerID, readData[i].ViewerID, "ViewerID should match")
		assert.Equal(t, data[i].VideoID, readData[i].VideoID, "VideoID should match")
		assert.WithinDuration(t, data[i].EventTime, readData[i].EventTime, time.Nanosecond, "EventTime should match within nanosecond precision")
		assert.InDelta(t, data[i].WatchSeconds, readData[i].WatchSeconds, 0.001, "WatchSeconds should match")
		assert.InDelta(t, data[i].VideoDuration, readData[i].VideoDuration, 0.001, "VideoDuration should match")
		assert.Equal(t, data[i].Completed, readData[i].Completed, "Completed should match")

		// Check nullable CreatorID field
		if data[i].CreatorID == nil {
			assert.Nil(t, readData[i].CreatorID, "CreatorID should be nil")
		} else {
			require.NotNil(t, readData[i].CreatorID, "CreatorID should not be nil")
			assert.Equal(t, *data[i].CreatorID, *readData[i].CreatorID, "CreatorID should match")
		}
	}
}

func TestWritePipelineRunsParquet(t *testing.T) {
	// Create temporary directory for test output
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "pipeline_runs.parquet")

	// Get mock data
	data := MockFetchPipelineRuns()
	require.NotEmpty(t, data, "Mock data should not be empty")

	// Write data to Parquet file
	err := WritePipelineRunsParquet(data, outputPath)
	require.NoError(t, err, "Writing Parquet file should not produce error")

	// Read back and verify data
	file, err := os.Open(outputPath)
	require.NoError(t, err, "Should be able to open output file")
	defer file.Close()

	reader := parquet.NewGenericReader[PipelineRun](file)
	defer reader.Close()

	// Read all rows
	readData := make([]PipelineRun, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err, "Should be able to read data")
	}
	assert.Equal(t, len(data), n, "Should read all records")

	// Verify data integrity
	for i := 0; i < len(data); i++ {
		assert.Equal(t, data[i].RunID, readData[i].RunID, "RunID should match")
		assert.Equal(t, data[i].EventsIn, readData[i].EventsIn, "EventsIn should match")
		assert.Equal(t, data[i].EventsKept, readData[i].EventsKept, "EventsKept should match")
		assert.Equal(t, data[i].Status, readData[i].Status, "Status should match")
		assert.Equal(t, data[i].InputDigest, readData[i].InputDigest, "InputDigest should match")

		// Check nullable fields
		if data[i].EndTime == nil {
			assert.Nil(t, readData[i].EndTime, "EndTime should be nil")
		} else {
			require.NotNil(t, readData[i].EndTime, "EndTime should not be nil")
			assert.WithinDuration(t, *data[i].EndTime, *readData[i].EndTime, time.Nanosecond, "EndTime should match within nanosecond precision")
		}

		if data[i].ConfigParams == nil {
			assert.Nil(t, readData[i].ConfigParams, "ConfigParams should be nil")
		} else {
			require.NotNil(t, readData[i].ConfigParams, "ConfigParams should not be nil")
			assert.Equal(t, *data[i].ConfigParams, *readData[i].ConfigParams, "ConfigParams should match")
		}
	}
}

func TestWriteKPIRowsParquet_EmptyData(t *testing.T) {
	// Create temporary directory for test output
	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "empty_kpi_rows.parquet")

	// Write empty data
	err := WriteKPIRowsParquet([]KPIRowRecord{}, outputPath)
	require.NoError(t, err, "Writing empty data should not produce error")

	// Verify file was created
	info, err := os.Stat(outputPath)
	require.NoError(t, err, "Output file should exist")
	assert.Greater(t, info.Size(), int64(0), "Output file should contain schema even if empty")
}

func TestWriteWatchEventsParquet_InvalidPath(t *testing.T) {
	// Try to write to invalid path
	err := WriteWatchEventsParquet([]WatchEventRow{}, "/nonexistent/directory/output.parquet")
	require.Error(t, err, "Writing to invalid path should produce error")
}

func TestReadWatchEventsParquet_MissingFile(t *testing.T) {
	_, err := ReadWatchEventsParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err, "Reading a missing file should produce error")
}

func TestConvertKPIRows(t *testing.T) {
	cohort := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []rewatch.KPIRow{
		{
			CohortDate:        cohort,
			DayOffset:         7,
			CohortSize:        100,
			Retained:          40,
			RetentionRatio:    rewatch.DefinedMetric(0.4),
			AvgSessionSeconds: rewatch.DefinedMetric(312.5),
			CompletionRate:    rewatch.DefinedMetric(0.61),
			DAU:               40,
			WAU:               85,
		},
		{
			CohortDate:        cohort,
			DayOffset:         30,
			CohortSize:        0,
			Retained:          0,
			RetentionRatio:    rewatch.UndefinedMetric(),
			AvgSessionSeconds: rewatch.UndefinedMetric(),
			CompletionRate:    rewatch.UndefinedMetric(),
		},
	}

	converted := ConvertKPIRows(rows)
	require.Len(t, converted, 2)

	// Defined metrics carry their values
	require.NotNil(t, converted[0].RetentionRatio)
	assert.InDelta(t, 0.4, *converted[0].RetentionRatio, 0.0001)
	require.NotNil(t, converted[0].AvgSessionSeconds)
	assert.InDelta(t, 312.5, *converted[0].AvgSessionSeconds, 0.0001)

	// Undefined metrics become nulls, not zeroes
	assert.Nil(t, converted[1].RetentionRatio)
	assert.Nil(t, converted[1].AvgSessionSeconds)
	assert.Nil(t, converted[1].CompletionRate)
}

func TestConvertWatchEvents(t *testing.T) {
	events := []rewatch.WatchEvent{
		{
			ViewerID:      "u1",
			VideoID:       "v1",
			CreatorID:     "c1",
			EventTime:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
			WatchSeconds:  30,
			VideoDuration: 60,
		},
		{
			ViewerID:      "u2",
			VideoID:       "v2",
			CreatorID:     "", // no creator metadata
			EventTime:     time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
			WatchSeconds:  55,
			VideoDuration: 60,
			Completed:     true,
		},
	}

	rows := ConvertWatchEvents(events)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].CreatorID)
	assert.Equal(t, "c1", *rows[0].CreatorID)
	assert.Nil(t, rows[1].CreatorID, "empty creator should convert to nil")
}

func TestMockFetchPipelineRuns(t *testing.T) {
	data := MockFetchPipelineRuns()
	require.NotEmpty(t, data, "Mock data should not be empty")
	assert.Len(t, data, 3, "Should return 3 mock records")

	// Verify the structure of mock data
	assert.Equal(t, int64(1), data[0].RunID)
	assert.NotNil(t, data[0].EndTime, "First record should have EndTime")
	assert.NotNil(t, data[0].RunDurationMs, "First record should have RunDurationMs")
	assert.NotNil(t, data[0].ConfigParams, "First record should have ConfigParams")

	// Third record should have nil nullable fields
	assert.Equal(t, int64(3), data[2].RunID)
	assert.Nil(t, data[2].EndTime, "Third record should have nil EndTime")
	assert.Nil(t, data[2].RunDurationMs, "Third record should have nil RunDurationMs")
	assert.Nil(t, data[2].ConfigParams, "Third record should have nil ConfigParams")
}
