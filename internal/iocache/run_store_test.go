package iocache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunStore(t *testing.T) *RunStoreImpl {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	store, err := NewRunStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store.(*RunStoreImpl)
}

func TestRunStoreLifecycle(t *testing.T) {
	store := newTestRunStore(t)

	start := time.Now().UTC().Truncate(time.Millisecond)
	params := map[string]any{"gap": "30 minutes", "workers": 4}

	runID, err := store.BeginRun(start, "deadbeef", params)
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0), "Run ID should be assigned")

	// Run shows up as running before EndRun
	records, err := store.GetRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, runID, records[0].RunID)
	assert.Equal(t, schema.RunRunning, records[0].Status)
	assert.Equal(t, "deadbeef", records[0].InputDigest)
	assert.Nil(t, records[0].EndTime)

	end := start.Add(250 * time.Millisecond)
	require.NoError(t, store.EndRun(runID, end, 1000, 950, schema.RunCompleted))

	records, err = store.GetRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, schema.RunCompleted, records[0].Status)
	assert.Equal(t, int32(1000), records[0].EventsIn)
	assert.Equal(t, int32(950), records[0].EventsKept)
	require.NotNil(t, records[0].EndTime)
	require.NotNil(t, records[0].RunDurationMs)
	assert.Equal(t, int32(250), *records[0].RunDurationMs)
	require.NotNil(t, records[0].ConfigParams)
	assert.Contains(t, *records[0].ConfigParams, "30 minutes")
}

func TestRunStoreRecentOrdering(t *testing.T) {
	store := newTestRunStore(t)

	base := time.Now().UTC()
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := store.BeginRun(base.Add(time.Duration(i)*time.Second), "", nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// Newest first
	records, err := store.GetRecentRuns(2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ids[2], records[0].RunID)
	assert.Equal(t, ids[1], records[1].RunID)

	// Zero limit returns everything
	records, err = store.GetRecentRuns(0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRunStoreRecordsOutputs(t *testing.T) {
	store := newTestRunStore(t)

	runID, err := store.BeginRun(time.Now().UTC(), "", nil)
	require.NoError(t, err)

	cohort := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []schema.KPIRow{
		{
			CohortDate:        cohort,
			DayOffset:         1,
			CohortSize:        10,
			Retained:          4,
			RetentionRatio:    schema.DefinedMetric(0.4),
			AvgSessionSeconds: schema.DefinedMetric(120),
			CompletionRate:    schema.UndefinedMetric(), // persists as NULL
			DAU:               8,
			WAU:               10,
			CreatorShare:      schema.DefinedMetric(0.6),
		},
		{CohortDate: cohort, DayOffset: 7, CohortSize: 10, Retained: 2, DAU: 5, WAU: 9},
	}
	require.NoError(t, store.RecordKPIRows(runID, rows))

	scores := []schema.ChurnScore{
		{ViewerID: "viewer-1", CohortDate: cohort, Horizon: 7, ReturnProbability: 0.8, ChurnRisk: 0.2},
		{ViewerID: "viewer-2", CohortDate: cohort, Horizon: 7, ReturnProbability: 0.1, ChurnRisk: 0.9},
	}
	require.NoError(t, store.RecordChurnScores(runID, scores))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TableSizes[kpiRowsTable])
	assert.Equal(t, int64(2), status.TableSizes[churnScoresTable])

	// Empty slices are a no-op, not an error
	assert.NoError(t, store.RecordKPIRows(runID, nil))
	assert.NoError(t, store.RecordChurnScores(runID, nil))
}

func TestRunStoreStatus(t *testing.T) {
	store := newTestRunStore(t)

	// Empty store
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, int64(0), status.TotalRuns)

	oldest := time.Now().UTC().Add(-time.Hour)
	newest := time.Now().UTC()

	firstID, err := store.BeginRun(oldest, "", nil)
	require.NoError(t, err)
	require.NoError(t, store.EndRun(firstID, oldest.Add(time.Second), 100, 90, schema.RunCompleted))

	lastID, err := store.BeginRun(newest, "", nil)
	require.NoError(t, err)
	require.NoError(t, store.EndRun(lastID, newest.Add(time.Second), 200, 150, schema.RunCompleted))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.TotalRuns)
	assert.Equal(t, lastID, status.LastRunID)
	assert.Equal(t, int64(240), status.TotalEventsKept)
	assert.True(t, status.OldestRunTime.Before(status.LastRunTime))
}

func TestRunStoreNoneBackend(t *testing.T) {
	store, err := NewRunStore(schema.NoneBackend, "")
	require.NoError(t, err)

	runID, err := store.BeginRun(time.Now(), "", nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), runID)

	assert.NoError(t, store.EndRun(runID, time.Now(), 1, 1, schema.RunCompleted))
	assert.NoError(t, store.RecordKPIRows(runID, []schema.KPIRow{{}}))
	assert.NoError(t, store.RecordChurnScores(runID, []schema.ChurnScore{{}}))

	records, err := store.GetRecentRuns(5)
	assert.NoError(t, err)
	assert.Empty(t, records)

	status, err := store.GetStatus()
	assert.NoError(t, err)
	assert.False(t, status.Connected)

	assert.NoError(t, store.Close())
}

func TestMigrateRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	// Up to latest, then down to zero, then up again
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, -1))
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 0))
	require.NoError(t, MigrateRuns(schema.SQLiteBackend, dbPath, 1))

	// NoneBackend is rejected
	assert.Error(t, MigrateRuns(schema.NoneBackend, "", -1))
}
