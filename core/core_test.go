package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEventsCSV writes a minimal events file and returns its path. Each
// viewer gets one event per listed watch duration, spaced an hour apart.
func writeEventsCSV(t *testing.T, watchByViewer map[string][]float64) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("viewer_id,video_id,creator_id,event_time,watch_duration_seconds,video_duration_seconds,completed\n")
	for viewer, watches := range watchByViewer {
		for i, watch := range watches {
			eventTime := pipelineBaseTime.Add(time.Duration(i) * time.Hour)
			sb.WriteString(fmt.Sprintf("%s,v-%s-%d,c1,%s,%g,600,false\n",
				viewer, viewer, i, eventTime.Format(time.RFC3339), watch))
		}
	}

	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func fileConfig(eventsPath string) *contract.Config {
	cfg := pipelineConfig()
	cfg.EventsPath = eventsPath
	return cfg
}

func TestGetSessionResultsRankedAndCapped(t *testing.T) {
	path := writeEventsCSV(t, map[string][]float64{
		"u1": {100},
		"u2": {300},
		"u3": {200},
	})
	cfg := fileConfig(path)
	cfg.ResultLimit = 2

	sessions, _, err := GetSessionResults(WithSuppressHeader(context.Background()), cfg, newNoStoreManager())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "u2", sessions[0].ViewerID)
	assert.Equal(t, "u3", sessions[1].ViewerID)
}

func TestGetKPIReport(t *testing.T) {
	path := writeEventsCSV(t, map[string][]float64{
		"u1": {100, 200},
		"u2": {300},
	})

	report, _, err := GetKPIReport(WithSuppressHeader(context.Background()), fileConfig(path), newNoStoreManager())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Retention)
	assert.NotEmpty(t, report.Rows)
	assert.NotEmpty(t, report.Activity)
	assert.NotEmpty(t, report.Creators)
}

func TestGetChurnResultsSkipsSmallInput(t *testing.T) {
	path := writeEventsCSV(t, map[string][]float64{
		"u1": {100},
		"u2": {300},
	})

	churnOut, _, err := GetChurnResults(WithSuppressHeader(context.Background()), fileConfig(path), newNoStoreManager())
	require.NoError(t, err)
	require.NotNil(t, churnOut)
	assert.Empty(t, churnOut.Reports)
	assert.Len(t, churnOut.Skipped, 2) // one per configured horizon
}

func TestGetRunResultsMissingFile(t *testing.T) {
	cfg := fileConfig(filepath.Join(t.TempDir(), "absent.csv"))

	_, _, err := GetRunResults(WithSuppressHeader(context.Background()), cfg, newNoStoreManager())
	require.Error(t, err)
}

func TestGetRunResultsEndToEnd(t *testing.T) {
	path := writeEventsCSV(t, map[string][]float64{
		"u1": {100, 200},
		"u2": {300},
	})

	output, _, err := GetRunResults(WithSuppressHeader(context.Background()), fileConfig(path), newNoStoreManager())
	require.NoError(t, err)
	assert.Len(t, output.Events, 3)
	assert.NotEmpty(t, output.Sessions)
	assert.NotEmpty(t, output.Cohorts)
	require.NotNil(t, output.KPIs)
}
