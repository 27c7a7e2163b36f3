// Package normalize coerces raw string-typed event rows into validated
// watch events. Bad rows are dropped and counted per reason; only a
// structurally unreadable table is fatal.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// StageName labels this stage in summaries.
const StageName = "normalize"

// timestampLayouts are the accepted event_time formats. Exported logs use
// RFC 3339; the space-separated variant shows up in CSV dumps from older
// ingest jobs.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Normalize validates the raw event table and emits typed watch events.
// Creator attribution missing from a row is backfilled from the video
// sidecar when one is loaded. The returned summary counts every dropped
// row by reason and is valid even when the error is non-nil.
func Normalize(table *schema.RawTable, videos []schema.VideoMetadata, cfg *contract.Config) ([]schema.WatchEvent, schema.StageSummary, error) {
	start := time.Now()
	summary := schema.StageSummary{
		Stage:  StageName,
		RowsIn: len(table.Rows),
		Drops:  make(map[schema.DropReason]int),
	}

	// --- 1. Structural check: all required columns must exist ---
	if err := checkRequiredColumns(table.Columns); err != nil {
		summary.Duration = time.Since(start)
		return nil, summary, err
	}

	// --- 2. Creator lookup from the sidecar ---
	creatorByVideo := buildCreatorIndex(videos)

	// --- 3. Per-row coercion and validation ---
	events := make([]schema.WatchEvent, 0, len(table.Rows))
	for _, row := range table.Rows {
		event, reason, ok := coerceRow(row, creatorByVideo, cfg.Tolerance)
		if !ok {
			summary.Drops[reason]++
			continue
		}
		events = append(events, event)
	}

	summary.RowsOut = len(events)
	summary.Duration = time.Since(start)
	return events, summary, nil
}

// checkRequiredColumns verifies the header carries every required column.
func checkRequiredColumns(columns []string) error {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[strings.TrimSpace(c)] = struct{}{}
	}

	missing := make([]string, 0)
	for _, required := range schema.RequiredColumns {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &contract.StructuralError{
			Subject: strings.Join(missing, ", "),
			Reason:  "required column absent from input header",
		}
	}
	return nil
}

// buildCreatorIndex maps video IDs to creator IDs for attribution backfill.
func buildCreatorIndex(videos []schema.VideoMetadata) map[string]string {
	index := make(map[string]string, len(videos))
	for _, v := range videos {
		if v.VideoID != "" && v.CreatorID != "" {
			index[v.VideoID] = v.CreatorID
		}
	}
	return index
}

// coerceRow converts one raw row into a typed watch event. The boolean
// result is false when the row must be dropped, with the reason attached.
func coerceRow(row schema.RawRecord, creatorByVideo map[string]string, tolerance float64) (schema.WatchEvent, schema.DropReason, bool) {
	viewerID := strings.TrimSpace(row.Fields[schema.ColViewerID])
	videoID := strings.TrimSpace(row.Fields[schema.ColVideoID])
	if viewerID == "" || videoID == "" {
		return schema.WatchEvent{}, schema.DropMissingField, false
	}

	rawTime := strings.TrimSpace(row.Fields[schema.ColEventTime])
	if rawTime == "" {
		return schema.WatchEvent{}, schema.DropMissingField, false
	}
	eventTime, ok := parseEventTime(rawTime)
	if !ok {
		return schema.WatchEvent{}, schema.DropBadTimestamp, false
	}

	rawWatch := strings.TrimSpace(row.Fields[schema.ColWatchSeconds])
	rawDuration := strings.TrimSpace(row.Fields[schema.ColVideoDuration])
	if rawWatch == "" || rawDuration == "" {
		return schema.WatchEvent{}, schema.DropMissingField, false
	}
	watch, err := strconv.ParseFloat(rawWatch, 64)
	if err != nil || math.IsNaN(watch) || math.IsInf(watch, 0) {
		return schema.WatchEvent{}, schema.DropBadNumber, false
	}
	duration, err := strconv.ParseFloat(rawDuration, 64)
	if err != nil || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return schema.WatchEvent{}, schema.DropBadNumber, false
	}

	rawCompleted := strings.TrimSpace(row.Fields[schema.ColCompleted])
	if rawCompleted == "" {
		return schema.WatchEvent{}, schema.DropMissingField, false
	}
	completed, err := contract.ParseBoolString(rawCompleted)
	if err != nil {
		return schema.WatchEvent{}, schema.DropBadFlag, false
	}

	if duration <= 0 {
		return schema.WatchEvent{}, schema.DropBadDuration, false
	}
	if watch < 0 {
		return schema.WatchEvent{}, schema.DropNegativeWatch, false
	}
	if watch > duration*tolerance {
		return schema.WatchEvent{}, schema.DropOverTolerance, false
	}
	if watch > duration {
		// Within tolerance of the raw duration: clip instead of dropping.
		watch = duration
	}

	creatorID := strings.TrimSpace(row.Fields[schema.ColCreatorID])
	if creatorID == "" {
		creatorID = creatorByVideo[videoID]
	}

	return schema.WatchEvent{
		ViewerID:      viewerID,
		VideoID:       videoID,
		CreatorID:     creatorID,
		EventTime:     eventTime.UTC(),
		WatchSeconds:  watch,
		VideoDuration: duration,
		Completed:     completed,
	}, "", true
}

// parseEventTime tries each accepted timestamp layout in order.
func parseEventTime(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
