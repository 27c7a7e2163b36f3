package outwriter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSessions() []schema.Session {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return []schema.Session{
		{
			SessionID:         "viewer-1-1",
			ViewerID:          "viewer-1",
			StartTime:         start,
			EndTime:           start.Add(25 * time.Minute),
			TotalWatchSeconds: 1200,
			VideoCount:        5,
			UniqueVideos:      4,
			UniqueCreators:    3,
			MeanCompletion:    0.76,
		},
		{
			SessionID:         "viewer-2-1",
			ViewerID:          "viewer-2",
			StartTime:         start.Add(time.Hour),
			EndTime:           start.Add(time.Hour + 10*time.Minute),
			TotalWatchSeconds: 300,
			VideoCount:        2,
			UniqueVideos:      2,
			UniqueCreators:    1,
			MeanCompletion:    0.4,
		},
	}
}

func TestWriteSessionTable(t *testing.T) {
	fmtFloat, intFmt := createFormatters(tablePrecision)
	cfg := &contract.Config{
		Width:        120,
		Workers:      4,
		CacheBackend: schema.SQLiteBackend,
	}

	var buf bytes.Buffer
	err := writeSessionTable(sampleSessions(), cfg, fmtFloat, intFmt, 80*time.Millisecond, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "viewer-1-1")
	assert.Contains(t, text, "2025-06-01 10:00")
	assert.Contains(t, text, "25m")
	assert.Contains(t, text, "20m00s")
	assert.Contains(t, text, "0.760")
	assert.Contains(t, text, "Showing top 2 sessions (total watch time: 25m00s)")
	assert.Contains(t, text, "Analysis completed in 80ms with 4 workers. Cache backend: sqlite")
}

func TestPrintSessionsJSON(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "sessions.json")
	cfg := &contract.Config{
		Output:     schema.JSONOut,
		OutputFile: outputFile,
	}

	err := PrintSessions(sampleSessions(), cfg, 10*time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(1), decoded[0]["rank"])
	assert.Equal(t, "viewer-1-1", decoded[0]["session_id"])
	assert.Equal(t, float64(2), decoded[1]["rank"])
}

func TestPrintSessionsCSV(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "sessions.csv")
	cfg := &contract.Config{
		Output:     schema.CSVOut,
		OutputFile: outputFile,
	}

	err := PrintSessions(sampleSessions(), cfg, 10*time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3) // header + 2 rows
	assert.Contains(t, lines[0], "session_id")
	assert.Contains(t, lines[0], "mean_completion")
	assert.Contains(t, lines[1], "viewer-1-1")
	assert.Contains(t, lines[2], "viewer-2-1")
}

func TestPrintSessionsParquetRequiresFile(t *testing.T) {
	cfg := &contract.Config{Output: schema.ParquetOut}

	err := PrintSessions(sampleSessions(), cfg, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-file")
}

func TestPrintSessionsParquet(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "sessions.parquet")
	cfg := &contract.Config{
		Output:     schema.ParquetOut,
		OutputFile: outputFile,
	}

	err := PrintSessions(sampleSessions(), cfg, time.Millisecond)
	require.NoError(t, err)

	info, err := os.Stat(outputFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
