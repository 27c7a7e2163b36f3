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

func sampleChurnOutput() *schema.ChurnOutput {
	cohort := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	split := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	return &schema.ChurnOutput{
		Reports: []schema.ModelReport{
			{
				Horizon:   7,
				SplitDate: split,
				TrainSize: 80,
				EvalSize:  20,
				Precision: schema.DefinedMetric(0.7),
				Recall:    schema.DefinedMetric(0.6),
				F1:        schema.DefinedMetric(0.646),
				AUC:       schema.DefinedMetric(0.81),
			},
		},
		Skipped: []schema.HorizonSkip{
			{Horizon: 30, Reason: "insufficient data for horizon D30: 2 eval vectors"},
		},
		Scores: []schema.ChurnScore{
			{ViewerID: "viewer-9", CohortDate: cohort, Horizon: 7, ReturnProbability: 0.05, ChurnRisk: 0.95},
			{ViewerID: "viewer-3", CohortDate: cohort, Horizon: 7, ReturnProbability: 0.82, ChurnRisk: 0.18},
		},
	}
}

func TestWriteChurnTables(t *testing.T) {
	fmtFloat, intFmt := createFormatters(tablePrecision)
	cfg := &contract.Config{
		Width:        120,
		Workers:      4,
		CacheBackend: schema.SQLiteBackend,
		UseColors:    false,
	}

	var buf bytes.Buffer
	err := writeChurnTables(sampleChurnOutput(), cfg, fmtFloat, intFmt, 90*time.Millisecond, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "D7")
	assert.Contains(t, text, "2025-06-20")
	assert.Contains(t, text, "0.810")
	assert.Contains(t, text, "D30 skipped: insufficient data")
	assert.Contains(t, text, "viewer-9")
	assert.Contains(t, text, "Critical") // risk 0.95
	assert.Contains(t, text, "Low")      // risk 0.18
	assert.Contains(t, text, "Showing top 2 at-risk viewers across 1 trained horizons")
}

func TestWriteChurnTablesNoModels(t *testing.T) {
	churn := &schema.ChurnOutput{
		Skipped: []schema.HorizonSkip{
			{Horizon: 1, Reason: "insufficient data for horizon D1: 0 train vectors"},
		},
	}
	fmtFloat, intFmt := createFormatters(tablePrecision)
	cfg := &contract.Config{Width: 120}

	var buf bytes.Buffer
	err := writeChurnTables(churn, cfg, fmtFloat, intFmt, time.Millisecond, &buf)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "D1 skipped")
	assert.Contains(t, text, "Showing top 0 at-risk viewers across 0 trained horizons")
}

func TestPrintChurnJSON(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "churn.json")
	cfg := &contract.Config{
		Output:     schema.JSONOut,
		OutputFile: outputFile,
	}

	err := PrintChurn(sampleChurnOutput(), cfg, time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	scores := decoded["scores"].([]any)
	require.Len(t, scores, 2)
	first := scores[0].(map[string]any)
	assert.Equal(t, float64(1), first["rank"])
	assert.Equal(t, "Critical", first["label"])
	assert.Equal(t, "viewer-9", first["viewer_id"])

	skipped := decoded["skipped"].([]any)
	require.Len(t, skipped, 1)
}

func TestPrintChurnCSV(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "churn.csv")
	cfg := &contract.Config{
		Output:     schema.CSVOut,
		OutputFile: outputFile,
	}

	err := PrintChurn(sampleChurnOutput(), cfg, time.Millisecond)
	require.NoError(t, err)

	raw, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3) // header + 2 scores
	assert.Contains(t, lines[0], "churn_risk")
	assert.Contains(t, lines[1], "viewer-9")
	assert.Contains(t, lines[1], "Critical")
	assert.Contains(t, lines[2], "Low")
}

func TestPrintChurnParquet(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "churn.parquet")
	cfg := &contract.Config{
		Output:     schema.ParquetOut,
		OutputFile: outputFile,
	}

	err := PrintChurn(sampleChurnOutput(), cfg, time.Millisecond)
	require.NoError(t, err)

	info, err := os.Stat(outputFile)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
