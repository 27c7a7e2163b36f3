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

func sampleKPIReport() *schema.KPIReport {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &schema.KPIReport{
		Horizons: []int{1},
		Rows: []schema.KPIRow{
			{
				CohortDate:        day,
				DayOffset:         1,
				CohortSize:        10,
				Retained:          4,
				RetentionRatio:    schema.DefinedMetric(0.4),
				AvgSessionSeconds: schema.DefinedMetric(620),
				CompletionRate:    schema.DefinedMetric(0.55),
				Dropoff: schema.DropoffDistribution{
					Q1: 0.1, Q2: 0.2, Q3: 0.3, Q4: 0.4,
					Modal: schema.QuartileQ4,
				},
				DAU:          6,
				WAU:          9,
				CreatorShare: schema.DefinedMetric(0.7),
			},
			{
				CohortDate:     day,
				DayOffset:      7,
				CohortSize:     10,
				Retained:       0,
				RetentionRatio: schema.DefinedMetric(0),
				// No sessions on the horizon day leaves these undefined
				AvgSessionSeconds: schema.UndefinedMetric(),
				CompletionRate:    schema.UndefinedMetric(),
			},
		},
		Dropoff: schema.DropoffReport{
			Below25: schema.DefinedMetric(0.1),
			Below50: schema.DefinedMetric(0.3),
			Below75: schema.DefinedMetric(0.6),
		},
	}
}

func TestWriteKPITable(t *testing.T) {
	fmtFloat, intFmt := createFormatters(tablePrecision)
	cfg := &contract.Config{
		Workers:      2,
		CacheBackend: schema.SQLiteBackend,
	}

	var buf bytes.Buffer
	err := writeKPITable(sampleKPIReport(), cfg, fmtFloat, intFmt, 60*time.Millisecond, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "2025-06-01")
	assert.Contains(t, text, "D1")
	assert.Contains(t, text, "40.0%")
	assert.Contains(t, text, "10m20s") // 620 seconds
	assert.Contains(t, text, "Q4")
	assert.Contains(t, text, "n/a") // undefined session length on the D7 row
	assert.Contains(t, text, "Drop-off before 25%/50%/75%: 10.0% / 30.0% / 60.0%")
	assert.Contains(t, text, "Showing 2 KPI rows across 1 cohorts")
}

func TestPrintKPIsJSONCarriesWholeReport(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "kpis.json")
	cfg := &contract.Config{
		Output:     schema.JSONOut,
		OutputFile: outputFile,
	}

	err := PrintKPIs(sampleKPIReport(), cfg, time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "rows")
	assert.Contains(t, decoded, "dropoff")
	assert.Contains(t, decoded, "retention")

	// Undefined metrics must surface as null, never zero
	rows := decoded["rows"].([]any)
	require.Len(t, rows, 2)
	d7 := rows[1].(map[string]any)
	assert.Nil(t, d7["avg_session_seconds"])
}

func TestPrintKPIsCSV(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "kpis.csv")
	cfg := &contract.Config{
		Output:     schema.CSVOut,
		OutputFile: outputFile,
	}

	err := PrintKPIs(sampleKPIReport(), cfg, time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3) // header + 2 rows
	assert.Contains(t, lines[0], "modal_quartile")
	assert.Contains(t, lines[1], "Q4")
	// Undefined metrics leave their CSV cells empty
	assert.Contains(t, lines[2], ",,")
}

func TestPrintKPIsParquet(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "kpis.parquet")
	cfg := &contract.Config{
		Output:     schema.ParquetOut,
		OutputFile: outputFile,
	}

	err := PrintKPIs(sampleKPIReport(), cfg, time.Millisecond)
	require.NoError(t, err)

	info, err := os.Stat(outputFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
