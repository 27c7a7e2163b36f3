// Package schema has models, constants and helpers for all parts of rewatch.
package schema

import "time"

// RawTable is the rectangular, string-typed event table handed to the
// normalizer. Columns come from the source header; rows keep their values
// untyped so the normalizer owns all coercion and validation.
type RawTable struct {
	Columns []string
	Rows    []RawRecord
}

// RawRecord is one unvalidated row keyed by column name.
type RawRecord struct {
	Fields map[string]string
	Line   int // 1-based position in the source, for drop diagnostics
}

// WatchEvent represents a single validated watch log record.
// Invariants enforced by the normalizer: WatchSeconds >= 0, VideoDuration > 0,
// WatchSeconds <= VideoDuration (clipped within the tolerance factor).
type WatchEvent struct {
	ViewerID      string    // Viewer who produced the event
	VideoID       string    // Video that was watched
	CreatorID     string    // Creator who published the video
	EventTime     time.Time // When playback started (UTC)
	WatchSeconds  float64   // Seconds actually watched
	VideoDuration float64   // Full length of the video in seconds
	Completed     bool      // Whether the play counts as a completion
}

// CompletionRatio returns watch progress clipped to [0, 1].
func (e WatchEvent) CompletionRatio() float64 {
	if e.VideoDuration <= 0 {
		return 0
	}
	ratio := e.WatchSeconds / e.VideoDuration
	if ratio > 1 {
		return 1
	}
	return ratio
}

// VideoMetadata describes one catalog entry from the video sidecar file.
// Views feeds the popularity weighting used by the watch simulator; it is
// not required for the analytics pipeline itself.
type VideoMetadata struct {
	VideoID     string    `json:"video_id"`
	CreatorID   string    `json:"creator_id"`
	PublishTime time.Time `json:"publish_time"`
	Category    string    `json:"category"`
	Views       int64     `json:"views"`
}

// Session is a contiguous run of one viewer's events where no gap between
// consecutive events exceeds the inactivity threshold. Immutable once built;
// lifetime is one pipeline run.
type Session struct {
	SessionID         string    `json:"session_id"` // "<viewer_id>-<n>", n starting at 1
	ViewerID          string    `json:"viewer_id"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	TotalWatchSeconds float64   `json:"total_watch_seconds"`
	VideoCount        int       `json:"video_count"` // events in the session
	UniqueVideos      int       `json:"unique_videos"`
	UniqueCreators    int       `json:"unique_creators"`
	MeanCompletion    float64   `json:"mean_completion"`
}

// DurationMinutes returns the wall-clock span of the session in minutes.
func (s Session) DurationMinutes() float64 {
	return s.EndTime.Sub(s.StartTime).Minutes()
}

// SessionEvent annotates a WatchEvent with the session it belongs to.
type SessionEvent struct {
	WatchEvent
	SessionID    string
	SessionStart time.Time
}

// Cohort is the set of viewers sharing the same first-seen calendar date.
// Size is fixed at creation and stays the denominator for every retention
// ratio computed against the cohort.
type Cohort struct {
	CohortDate time.Time // UTC midnight of the first-seen day
	ViewerIDs  map[string]struct{}
	Size       int
}

// CohortEvent annotates a WatchEvent with cohort alignment.
// DayOffset is floor((EventTime - CohortDate) / 24h) and is never negative
// for retained events.
type CohortEvent struct {
	WatchEvent
	CohortDate time.Time
	DayOffset  int
}
