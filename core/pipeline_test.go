package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/rewatch/core/churn"
	"github.com/huangsam/rewatch/core/cohort"
	"github.com/huangsam/rewatch/core/kpi"
	"github.com/huangsam/rewatch/core/normalize"
	"github.com/huangsam/rewatch/core/sessionize"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/iocache"
	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pipelineBaseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// pipelineConfig keeps churn skipping via a high sample floor so small
// fixtures exercise the full stage chain without training a model.
func pipelineConfig() *contract.Config {
	return &contract.Config{
		EventsPath:    "events.csv",
		InactivityGap: 30 * time.Minute,
		Tolerance:     1.5,
		Horizons:      []int{1, 7},
		TopCreators:   3,
		Workers:       2,
		ResultLimit:   10,
		Epochs:        10,
		LearnRate:     0.1,
		MinSamples:    1000,
		MaxDropRate:   1.0,
	}
}

// rawRow builds one valid raw record at an offset from the base time.
func rawRow(line int, viewerID string, dayOffset int, watch, duration string) schema.RawRecord {
	eventTime := pipelineBaseTime.AddDate(0, 0, dayOffset)
	return schema.RawRecord{
		Line: line,
		Fields: map[string]string{
			schema.ColViewerID:      viewerID,
			schema.ColVideoID:       fmt.Sprintf("v-%s-%d", viewerID, line),
			schema.ColCreatorID:     "c1",
			schema.ColEventTime:     eventTime.Format(time.RFC3339),
			schema.ColWatchSeconds:  watch,
			schema.ColVideoDuration: duration,
			schema.ColCompleted:     "false",
		},
	}
}

func rawColumns() []string {
	return []string{
		schema.ColViewerID,
		schema.ColVideoID,
		schema.ColCreatorID,
		schema.ColEventTime,
		schema.ColWatchSeconds,
		schema.ColVideoDuration,
		schema.ColCompleted,
	}
}

// newMockSource wires a source that serves the given table with a stable digest.
func newMockSource(table *schema.RawTable) *contract.MockEventSource {
	source := &contract.MockEventSource{}
	source.On("FetchEvents", mock.Anything, mock.Anything).Return(table, nil)
	source.On("FetchVideoMetadata", mock.Anything, mock.Anything).Return([]schema.VideoMetadata{}, nil)
	source.On("Digest", mock.Anything, mock.Anything).Return("digest", nil)
	return source
}

// newNoStoreManager wires a manager with neither cache nor run store.
func newNoStoreManager() *iocache.MockCacheManager {
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSessionStore").Return(nil)
	mgr.On("GetRunStore").Return(nil)
	return mgr
}

func TestRunPipelineEndToEnd(t *testing.T) {
	table := &schema.RawTable{
		Columns: rawColumns(),
		Rows: []schema.RawRecord{
			rawRow(1, "u1", 0, "30", "60"),
			rawRow(2, "u1", 1, "45", "90"),
			rawRow(3, "u2", 0, "60", "60"),
			rawRow(4, "bad", 0, "-5", "60"), // negative watch, dropped
		},
	}

	output, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), newMockSource(table), newNoStoreManager())
	require.NoError(t, err)

	// Every stage reports once, in pipeline order.
	stages := make([]string, 0, len(output.Summaries))
	for _, s := range output.Summaries {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{
		normalize.StageName,
		sessionize.StageName,
		cohort.StageName,
		kpi.StageName,
		churn.StageName,
	}, stages)

	assert.Len(t, output.Events, 3)
	assert.Equal(t, 4, output.Summaries[0].RowsIn)
	assert.Equal(t, 3, output.Summaries[0].RowsOut)

	// u1 has two events a day apart -> two sessions; u2 has one.
	assert.Len(t, output.Sessions, 3)
	assert.Len(t, output.Cohorts, 1) // both viewers first seen the same day

	require.NotNil(t, output.KPIs)
	assert.NotEmpty(t, output.KPIs.Retention)

	// The sample floor forces every horizon to skip rather than train.
	require.NotNil(t, output.Churn)
	assert.Empty(t, output.Churn.Reports)
	assert.Len(t, output.Churn.Skipped, 2)
}

func TestRunPipelineFetchError(t *testing.T) {
	source := &contract.MockEventSource{}
	source.On("FetchEvents", mock.Anything, mock.Anything).Return(nil, errors.New("file not found"))

	output, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), source, newNoStoreManager())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch events")
	assert.Empty(t, output.Summaries)
}

func TestRunPipelineMissingColumn(t *testing.T) {
	table := &schema.RawTable{
		Columns: []string{schema.ColViewerID, schema.ColVideoID},
		Rows:    []schema.RawRecord{rawRow(1, "u1", 0, "30", "60")},
	}

	output, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), newMockSource(table), newNoStoreManager())
	require.Error(t, err)

	// The failed stage still reports its accounting.
	require.Len(t, output.Summaries, 1)
	assert.Equal(t, normalize.StageName, output.Summaries[0].Stage)
}

func TestRunPipelineWindowFilter(t *testing.T) {
	cfg := pipelineConfig()
	cfg.StartTime = pipelineBaseTime.Add(-time.Hour)
	cfg.EndTime = pipelineBaseTime.Add(time.Hour)

	table := &schema.RawTable{
		Columns: rawColumns(),
		Rows: []schema.RawRecord{
			rawRow(1, "u1", 0, "30", "60"),
			rawRow(2, "u1", 5, "45", "90"), // outside the window
		},
	}

	output, err := RunPipeline(WithSuppressHeader(context.Background()), cfg, newMockSource(table), newNoStoreManager())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(output.Summaries), 2)
	window := output.Summaries[1]
	assert.Equal(t, windowStageName, window.Stage)
	assert.Equal(t, 2, window.RowsIn)
	assert.Equal(t, 1, window.RowsOut)
	assert.Equal(t, 1, window.Drops[schema.DropOutsideWindow])
	assert.Len(t, output.Events, 1)
}

// A failed digest disables caching for the run but never fails it.
func TestRunPipelineDigestFailure(t *testing.T) {
	table := &schema.RawTable{
		Columns: rawColumns(),
		Rows:    []schema.RawRecord{rawRow(1, "u1", 0, "30", "60")},
	}
	source := &contract.MockEventSource{}
	source.On("FetchEvents", mock.Anything, mock.Anything).Return(table, nil)
	source.On("FetchVideoMetadata", mock.Anything, mock.Anything).Return([]schema.VideoMetadata{}, nil)
	source.On("Digest", mock.Anything, mock.Anything).Return("", errors.New("unreadable"))

	output, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), source, newNoStoreManager())
	require.NoError(t, err)
	assert.Len(t, output.Events, 1)
}

func TestRunPipelineTracksCompletedRun(t *testing.T) {
	table := &schema.RawTable{
		Columns: rawColumns(),
		Rows: []schema.RawRecord{
			rawRow(1, "u1", 0, "30", "60"),
			rawRow(2, "u2", 0, "60", "60"),
		},
	}

	runStore := &iocache.MockRunStore{}
	runStore.On("BeginRun", mock.Anything, "digest", mock.Anything).Return(int64(42), nil)
	runStore.On("RecordKPIRows", int64(42), mock.Anything).Return(nil)
	runStore.On("RecordChurnScores", int64(42), mock.Anything).Return(nil)
	runStore.On("EndRun", int64(42), mock.Anything, 2, 2, schema.RunCompleted).Return(nil)

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSessionStore").Return(nil)
	mgr.On("GetRunStore").Return(runStore)

	_, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), newMockSource(table), mgr)
	require.NoError(t, err)

	runStore.AssertExpectations(t)
}

func TestRunPipelineTracksFailedRun(t *testing.T) {
	table := &schema.RawTable{
		Columns: []string{schema.ColViewerID},
		Rows:    []schema.RawRecord{rawRow(1, "u1", 0, "30", "60")},
	}

	runStore := &iocache.MockRunStore{}
	runStore.On("BeginRun", mock.Anything, "digest", mock.Anything).Return(int64(7), nil)
	runStore.On("EndRun", int64(7), mock.Anything, mock.Anything, mock.Anything, schema.RunFailed).Return(nil)

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSessionStore").Return(nil)
	mgr.On("GetRunStore").Return(runStore)

	_, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), newMockSource(table), mgr)
	require.Error(t, err)

	runStore.AssertExpectations(t)
	runStore.AssertNotCalled(t, "RecordKPIRows", mock.Anything, mock.Anything)
}

// A BeginRun failure downgrades tracking to a no-op instead of failing the run.
func TestRunPipelineTrackingUnavailable(t *testing.T) {
	table := &schema.RawTable{
		Columns: rawColumns(),
		Rows:    []schema.RawRecord{rawRow(1, "u1", 0, "30", "60")},
	}

	runStore := &iocache.MockRunStore{}
	runStore.On("BeginRun", mock.Anything, "digest", mock.Anything).Return(int64(0), errors.New("connection refused"))

	mgr := &iocache.MockCacheManager{}
	mgr.On("GetSessionStore").Return(nil)
	mgr.On("GetRunStore").Return(runStore)

	output, err := RunPipeline(WithSuppressHeader(context.Background()), pipelineConfig(), newMockSource(table), mgr)
	require.NoError(t, err)
	assert.Len(t, output.Events, 1)

	runStore.AssertNotCalled(t, "EndRun", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
