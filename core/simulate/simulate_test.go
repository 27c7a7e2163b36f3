package simulate

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simStart = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func smallOptions() Options {
	return Options{
		Seed:      7,
		Viewers:   40,
		Days:      10,
		Catalog:   50,
		Creators:  5,
		StartDate: simStart,
	}
}

func TestGenerateDeterministic(t *testing.T) {
	first, _ := NewGenerator(smallOptions()).Generate()
	second, _ := NewGenerator(smallOptions()).Generate()

	require.Equal(t, len(first), len(second))
	assert.Equal(t, first, second, "same seed and start date reproduce the stream")
}

func TestGenerateSeedChangesStream(t *testing.T) {
	first, _ := NewGenerator(smallOptions()).Generate()

	opts := smallOptions()
	opts.Seed = 8
	second, _ := NewGenerator(opts).Generate()

	assert.NotEqual(t, first, second)
}

func TestGenerateEventShape(t *testing.T) {
	events, summary := NewGenerator(smallOptions()).Generate()
	require.NotEmpty(t, events)
	assert.Equal(t, len(events), summary.Events)
	assert.Equal(t, 40, summary.Viewers)

	windowEnd := simStart.AddDate(0, 0, 10)
	for _, e := range events {
		assert.NotEmpty(t, e.ViewerID)
		assert.NotEmpty(t, e.VideoID)
		assert.NotEmpty(t, e.CreatorID)
		assert.False(t, e.EventTime.Before(simStart), "event before the window start")
		assert.True(t, e.EventTime.Before(windowEnd.Add(24*time.Hour)), "event far past the window")

		assert.GreaterOrEqual(t, e.VideoDuration, 5.0)
		assert.LessOrEqual(t, e.VideoDuration, 300.0)
		assert.GreaterOrEqual(t, e.WatchSeconds, 0.0)
		if e.Completed {
			assert.GreaterOrEqual(t, e.WatchSeconds/e.VideoDuration, completedThreshold-0.02)
		}
	}
}

func TestGenerateEveryViewerAppears(t *testing.T) {
	events, _ := NewGenerator(smallOptions()).Generate()

	viewers := make(map[string]struct{})
	for _, e := range events {
		viewers[e.ViewerID] = struct{}{}
	}
	assert.Len(t, viewers, 40, "the join day guarantees at least one session per viewer")
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, "head", tierFor(0, 100).name)
	assert.Equal(t, "head", tierFor(9, 100).name)
	assert.Equal(t, "mid", tierFor(10, 100).name)
	assert.Equal(t, "mid", tierFor(39, 100).name)
	assert.Equal(t, "tail", tierFor(40, 100).name)
	assert.Equal(t, "tail", tierFor(99, 100).name)
}

func TestRunWritesFiles(t *testing.T) {
	dir := t.TempDir()
	opts := smallOptions()
	opts.EventsPath = filepath.Join(dir, "events.csv")
	opts.VideosPath = filepath.Join(dir, "videos.csv")

	summary, err := Run(opts)
	require.NoError(t, err)
	assert.Positive(t, summary.Events)

	eventsFile, err := os.Open(opts.EventsPath)
	require.NoError(t, err)
	defer func() { _ = eventsFile.Close() }()

	rows, err := csv.NewReader(eventsFile).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{
		schema.ColViewerID,
		schema.ColVideoID,
		schema.ColCreatorID,
		schema.ColEventTime,
		schema.ColWatchSeconds,
		schema.ColVideoDuration,
		schema.ColCompleted,
	}, rows[0])
	assert.Len(t, rows, summary.Events+1)

	videosFile, err := os.Open(opts.VideosPath)
	require.NoError(t, err)
	defer func() { _ = videosFile.Close() }()

	videoRows, err := csv.NewReader(videosFile).ReadAll()
	require.NoError(t, err)
	assert.Len(t, videoRows, 50+1)
	assert.Equal(t, "video_id", videoRows[0][0])
}
