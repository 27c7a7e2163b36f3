package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validFields returns a row that passes every validation rule.
func validFields() map[string]string {
	return map[string]string{
		schema.ColViewerID:      "u1",
		schema.ColVideoID:       "v1",
		schema.ColCreatorID:     "c1",
		schema.ColEventTime:     "2025-06-01T10:00:00Z",
		schema.ColWatchSeconds:  "45",
		schema.ColVideoDuration: "60",
		schema.ColCompleted:     "false",
	}
}

func tableWithRows(fields ...map[string]string) *schema.RawTable {
	table := &schema.RawTable{Columns: schema.RequiredColumns}
	table.Columns = append(table.Columns, schema.ColCreatorID)
	for i, f := range fields {
		table.Rows = append(table.Rows, schema.RawRecord{Fields: f, Line: i + 2})
	}
	return table
}

func testConfig() *contract.Config {
	return &contract.Config{Tolerance: contract.DefaultTolerance}
}

func TestNormalizeMissingColumns(t *testing.T) {
	table := &schema.RawTable{
		Columns: []string{schema.ColViewerID, schema.ColVideoID},
		Rows:    []schema.RawRecord{{Fields: validFields(), Line: 2}},
	}

	events, summary, err := Normalize(table, nil, testConfig())
	require.Error(t, err)

	var structural *contract.StructuralError
	require.True(t, errors.As(err, &structural))
	assert.Contains(t, structural.Subject, schema.ColEventTime)
	assert.Contains(t, structural.Subject, schema.ColCompleted)
	assert.Nil(t, events)
	assert.Equal(t, 1, summary.RowsIn)
}

func TestNormalizeEmptyTable(t *testing.T) {
	events, summary, err := Normalize(&schema.RawTable{}, nil, testConfig())
	require.Error(t, err)

	var structural *contract.StructuralError
	require.True(t, errors.As(err, &structural))
	assert.Nil(t, events)
	assert.Zero(t, summary.RowsIn)
}

func TestNormalizeValidRow(t *testing.T) {
	events, summary, err := Normalize(tableWithRows(validFields()), nil, testConfig())
	require.NoError(t, err)
	require.Len(t, events, 1)

	event := events[0]
	assert.Equal(t, "u1", event.ViewerID)
	assert.Equal(t, "v1", event.VideoID)
	assert.Equal(t, "c1", event.CreatorID)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), event.EventTime)
	assert.Equal(t, 45.0, event.WatchSeconds)
	assert.Equal(t, 60.0, event.VideoDuration)
	assert.False(t, event.Completed)
	assert.Equal(t, 1, summary.RowsIn)
	assert.Equal(t, 1, summary.RowsOut)
	assert.Zero(t, summary.DropCount())
}

func TestNormalizeRowDrops(t *testing.T) {
	tests := []struct {
		name   string
		modify func(fields map[string]string)
		reason schema.DropReason
	}{
		{
			name:   "empty viewer id",
			modify: func(f map[string]string) { f[schema.ColViewerID] = "" },
			reason: schema.DropMissingField,
		},
		{
			name:   "empty video id",
			modify: func(f map[string]string) { f[schema.ColVideoID] = "  " },
			reason: schema.DropMissingField,
		},
		{
			name:   "empty event time",
			modify: func(f map[string]string) { f[schema.ColEventTime] = "" },
			reason: schema.DropMissingField,
		},
		{
			name:   "empty watch seconds",
			modify: func(f map[string]string) { f[schema.ColWatchSeconds] = "" },
			reason: schema.DropMissingField,
		},
		{
			name:   "empty completed",
			modify: func(f map[string]string) { f[schema.ColCompleted] = "" },
			reason: schema.DropMissingField,
		},
		{
			name:   "unparseable timestamp",
			modify: func(f map[string]string) { f[schema.ColEventTime] = "June 1st 2025" },
			reason: schema.DropBadTimestamp,
		},
		{
			name:   "non numeric watch seconds",
			modify: func(f map[string]string) { f[schema.ColWatchSeconds] = "abc" },
			reason: schema.DropBadNumber,
		},
		{
			name:   "nan watch seconds",
			modify: func(f map[string]string) { f[schema.ColWatchSeconds] = "NaN" },
			reason: schema.DropBadNumber,
		},
		{
			name:   "non numeric duration",
			modify: func(f map[string]string) { f[schema.ColVideoDuration] = "sixty" },
			reason: schema.DropBadNumber,
		},
		{
			name:   "unparseable completed",
			modify: func(f map[string]string) { f[schema.ColCompleted] = "maybe" },
			reason: schema.DropBadFlag,
		},
		{
			name:   "zero duration",
			modify: func(f map[string]string) { f[schema.ColVideoDuration] = "0" },
			reason: schema.DropBadDuration,
		},
		{
			name:   "negative duration",
			modify: func(f map[string]string) { f[schema.ColVideoDuration] = "-10" },
			reason: schema.DropBadDuration,
		},
		{
			name:   "negative watch seconds",
			modify: func(f map[string]string) { f[schema.ColWatchSeconds] = "-1" },
			reason: schema.DropNegativeWatch,
		},
		{
			name: "watch beyond tolerance",
			modify: func(f map[string]string) {
				f[schema.ColWatchSeconds] = "91"
				f[schema.ColVideoDuration] = "60"
			},
			reason: schema.DropOverTolerance,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.modify(fields)

			events, summary, err := Normalize(tableWithRows(fields), nil, testConfig())
			require.NoError(t, err)
			assert.Empty(t, events)
			assert.Equal(t, 1, summary.Drops[tt.reason], "expected one %s drop, got %v", tt.reason, summary.Drops)
			assert.Zero(t, summary.RowsOut)
		})
	}
}

func TestNormalizeClipsWithinTolerance(t *testing.T) {
	fields := validFields()
	fields[schema.ColWatchSeconds] = "80"
	fields[schema.ColVideoDuration] = "60"

	// 80 <= 60 * 1.5, so the row survives with watch clipped to the duration.
	events, summary, err := Normalize(tableWithRows(fields), nil, testConfig())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 60.0, events[0].WatchSeconds)
	assert.Zero(t, summary.DropCount())
}

func TestNormalizeTimestampFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "rfc3339",
			raw:  "2025-06-01T10:00:00Z",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 fractional seconds",
			raw:  "2025-06-01T10:00:00.500Z",
			want: time.Date(2025, 6, 1, 10, 0, 0, 500000000, time.UTC),
		},
		{
			name: "rfc3339 offset converted to utc",
			raw:  "2025-06-01T12:00:00+02:00",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "space separated with offset",
			raw:  "2025-06-01 10:00:00+00:00",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "space separated naive",
			raw:  "2025-06-01 10:00:00",
			want: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields[schema.ColEventTime] = tt.raw

			events, _, err := Normalize(tableWithRows(fields), nil, testConfig())
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.True(t, events[0].EventTime.Equal(tt.want), "got %v, want %v", events[0].EventTime, tt.want)
		})
	}
}

func TestNormalizeCompletedVariants(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"True", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"False", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			fields := validFields()
			fields[schema.ColCompleted] = tt.raw

			events, _, err := Normalize(tableWithRows(fields), nil, testConfig())
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Completed)
		})
	}
}

func TestNormalizeCreatorBackfill(t *testing.T) {
	fields := validFields()
	fields[schema.ColCreatorID] = ""
	videos := []schema.VideoMetadata{
		{VideoID: "v1", CreatorID: "creator-from-sidecar"},
		{VideoID: "v2", CreatorID: "other"},
	}

	events, _, err := Normalize(tableWithRows(fields), videos, testConfig())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "creator-from-sidecar", events[0].CreatorID)
}

func TestNormalizeCreatorUnknownStaysEmpty(t *testing.T) {
	fields := validFields()
	fields[schema.ColCreatorID] = ""

	events, _, err := Normalize(tableWithRows(fields), nil, testConfig())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].CreatorID)
}

func TestNormalizeMixedRows(t *testing.T) {
	good := validFields()
	badTime := validFields()
	badTime[schema.ColEventTime] = "not-a-time"
	badWatch := validFields()
	badWatch[schema.ColWatchSeconds] = "NaN-ish"

	events, summary, err := Normalize(tableWithRows(good, badTime, badWatch), nil, testConfig())
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 3, summary.RowsIn)
	assert.Equal(t, 1, summary.RowsOut)
	assert.Equal(t, 2, summary.DropCount())
	assert.InDelta(t, 2.0/3.0, summary.DropRate(), 1e-9)
}
