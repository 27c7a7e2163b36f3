package simulate

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rewatch/internal/parquet"
	"github.com/huangsam/rewatch/schema"
)

// Run generates one synthetic log and writes the events file plus the
// video metadata sidecar. The events extension picks the format: .parquet
// writes Parquet, anything else writes CSV.
func Run(opts Options) (Summary, error) {
	g := NewGenerator(opts)
	events, summary := g.Generate()

	if err := writeEvents(g.opts.EventsPath, events); err != nil {
		return summary, fmt.Errorf("failed to write events: %w", err)
	}
	if g.opts.VideosPath != "" {
		if err := writeVideos(g.opts.VideosPath, g.catalog); err != nil {
			return summary, fmt.Errorf("failed to write videos sidecar: %w", err)
		}
	}
	return summary, nil
}

// writeEvents writes the event log in the format the events path implies.
func writeEvents(path string, events []schema.WatchEvent) error {
	if strings.ToLower(filepath.Ext(path)) == ".parquet" {
		return parquet.WriteWatchEventsParquet(parquet.ConvertWatchEvents(events), path)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	header := []string{
		schema.ColViewerID,
		schema.ColVideoID,
		schema.ColCreatorID,
		schema.ColEventTime,
		schema.ColWatchSeconds,
		schema.ColVideoDuration,
		schema.ColCompleted,
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, e := range events {
		record := []string{
			e.ViewerID,
			e.VideoID,
			e.CreatorID,
			e.EventTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(e.WatchSeconds, 'f', -1, 64),
			strconv.FormatFloat(e.VideoDuration, 'f', -1, 64),
			strconv.FormatBool(e.Completed),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeVideos writes the catalog sidecar. The tier doubles as the category
// column so the normalizer's sidecar reader picks it up unchanged.
func writeVideos(path string, catalog []catalogEntry) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	header := []string{"video_id", "creator_id", "category", "publish_time", "views", "duration_seconds"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, v := range catalog {
		record := []string{
			v.VideoID,
			v.CreatorID,
			v.tier.name,
			v.PublishTime.UTC().Format(time.RFC3339),
			strconv.FormatInt(v.Views, 10),
			strconv.FormatFloat(v.DurationSeconds, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
