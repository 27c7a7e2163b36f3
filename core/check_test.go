package core

import (
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var checkCohortDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// checkOutput crafts a small pipeline output with one cohort's retention.
func checkOutput(retainedD1 int) *schema.PipelineOutput {
	return &schema.PipelineOutput{
		Events: []schema.WatchEvent{
			{WatchSeconds: 30, VideoDuration: 60},
			{WatchSeconds: 60, VideoDuration: 60},
		},
		KPIs: &schema.KPIReport{
			Retention: []schema.RetentionCell{
				{CohortDate: checkCohortDate, DayOffset: 1, Retained: retainedD1, CohortSize: 10},
			},
		},
		Summaries: []schema.StageSummary{
			{
				Stage:   "normalize",
				RowsIn:  100,
				RowsOut: 90,
				Drops:   map[schema.DropReason]int{schema.DropMissingField: 10},
			},
			{Stage: "sessionize", RowsIn: 90, RowsOut: 90},
		},
	}
}

func TestBuildCheckResultAllPass(t *testing.T) {
	cfg := &contract.Config{
		RetentionFloors: map[int]float64{1: 0.5},
		MaxDropRate:     0.2,
		MinCompletion:   0.5,
	}

	result := buildCheckResult(checkOutput(8), cfg)
	require.Len(t, result.Items, 3)
	assert.True(t, result.Passed)
	for _, item := range result.Items {
		assert.True(t, item.Passed, "gate %s should pass", item.Name)
	}
}

func TestBuildCheckResultRetentionViolation(t *testing.T) {
	cfg := &contract.Config{
		RetentionFloors: map[int]float64{1: 0.5},
		MaxDropRate:     1.0, // disabled
	}

	result := buildCheckResult(checkOutput(2), cfg)
	require.Len(t, result.Items, 1)
	assert.False(t, result.Passed)
	assert.Equal(t, "D1 retention", result.Items[0].Name)
	assert.False(t, result.Items[0].Passed)
	assert.InDelta(t, 0.2, result.Items[0].Actual.Value, 1e-9)
}

func TestBuildCheckResultDropRateViolation(t *testing.T) {
	cfg := &contract.Config{MaxDropRate: 0.05}

	// 10 of 100 rows dropped across stages = 0.1 > 0.05
	result := buildCheckResult(checkOutput(8), cfg)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "drop rate", result.Items[0].Name)
	assert.False(t, result.Items[0].Passed)
	assert.False(t, result.Passed)
}

func TestBuildCheckResultCompletionViolation(t *testing.T) {
	cfg := &contract.Config{MaxDropRate: 1.0, MinCompletion: 0.9}

	// Events complete at 0.5 and 1.0, mean 0.75 < 0.9
	result := buildCheckResult(checkOutput(8), cfg)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "completion rate", result.Items[0].Name)
	assert.False(t, result.Items[0].Passed)
}

// Gates at exactly 1.0 drop rate and 0.0 completion are disabled; the result
// carries no items and passes vacuously.
func TestBuildCheckResultNoGates(t *testing.T) {
	cfg := &contract.Config{MaxDropRate: 1.0, MinCompletion: 0.0}

	result := buildCheckResult(checkOutput(8), cfg)
	assert.Empty(t, result.Items)
	assert.True(t, result.Passed)
}

// Retention floors evaluate in ascending horizon order regardless of map
// iteration order.
func TestBuildCheckResultHorizonOrdering(t *testing.T) {
	cfg := &contract.Config{
		RetentionFloors: map[int]float64{30: 0.1, 1: 0.5, 7: 0.3},
		MaxDropRate:     1.0,
	}

	result := buildCheckResult(checkOutput(8), cfg)
	require.Len(t, result.Items, 3)
	assert.Equal(t, "D1 retention", result.Items[0].Name)
	assert.Equal(t, "D7 retention", result.Items[1].Name)
	assert.Equal(t, "D30 retention", result.Items[2].Name)
}

func TestNewCheckItemDirections(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		actual    schema.Metric
		direction schema.CheckDirection
		passed    bool
	}{
		{"at least met", 0.5, schema.DefinedMetric(0.6), schema.CheckAtLeast, true},
		{"at least equal", 0.5, schema.DefinedMetric(0.5), schema.CheckAtLeast, true},
		{"at least missed", 0.5, schema.DefinedMetric(0.4), schema.CheckAtLeast, false},
		{"at most met", 0.1, schema.DefinedMetric(0.05), schema.CheckAtMost, true},
		{"at most missed", 0.1, schema.DefinedMetric(0.2), schema.CheckAtMost, false},
		{"undefined fails", 0.5, schema.UndefinedMetric(), schema.CheckAtLeast, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := newCheckItem("gate", tt.threshold, tt.actual, tt.direction)
			assert.Equal(t, tt.passed, item.Passed)
		})
	}
}

func TestMeanCompletion(t *testing.T) {
	events := []schema.WatchEvent{
		{WatchSeconds: 30, VideoDuration: 60},  // 0.5
		{WatchSeconds: 90, VideoDuration: 90},  // 1.0
		{WatchSeconds: 15, VideoDuration: 100}, // 0.15
	}

	m := meanCompletion(events)
	require.True(t, m.Defined)
	assert.InDelta(t, 0.55, m.Value, 1e-9)
}

func TestMeanCompletionEmpty(t *testing.T) {
	assert.False(t, meanCompletion(nil).Defined)
}
