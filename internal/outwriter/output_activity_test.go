package outwriter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleActivityReport() *schema.KPIReport {
	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	return &schema.KPIReport{
		Activity: []schema.ActivityPoint{
			{Date: day1, DAU: 10, WAU: 10, Ratio: schema.DefinedMetric(1.0)},
			{Date: day2, DAU: 4, WAU: 12, Ratio: schema.DefinedMetric(1.0 / 3.0)},
		},
	}
}

func TestWriteActivityTable(t *testing.T) {
	_, intFmt := createFormatters(tablePrecision)
	cfg := &contract.Config{
		Workers:      2,
		CacheBackend: schema.SQLiteBackend,
	}

	var buf bytes.Buffer
	err := writeActivityTable(sampleActivityReport(), cfg, intFmt, 30*time.Millisecond, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "2025-06-01")
	assert.Contains(t, text, "2025-06-02")
	assert.Contains(t, text, "0.333")
	assert.Contains(t, text, "Latest day: DAU 4, WAU 12, stickiness 0.333")
}

func TestPrintActivityJSON(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "activity.json")
	cfg := &contract.Config{
		Output:     schema.JSONOut,
		OutputFile: outputFile,
	}

	err := PrintActivity(sampleActivityReport(), cfg, time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(10), decoded[0]["dau"])
	assert.Equal(t, float64(12), decoded[1]["wau"])
}

func TestPrintActivityParquetUnsupported(t *testing.T) {
	cfg := &contract.Config{Output: schema.ParquetOut, OutputFile: "out.parquet"}

	err := PrintActivity(sampleActivityReport(), cfg, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}
