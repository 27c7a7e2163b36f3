package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for storage.
	DatabaseBackend string

	// DropReason represents why the pipeline discarded a row.
	DropReason string

	// Quartile represents a completion-ratio bin for drop-off analysis.
	Quartile string

	// RunStatus represents the lifecycle state of a pipeline run.
	RunStatus string
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv"
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All drop reasons counted by the normalizer and sessionizer.
const (
	DropMissingField  DropReason = "missing_field"
	DropBadTimestamp  DropReason = "bad_timestamp"
	DropBadNumber     DropReason = "bad_number"
	DropBadFlag       DropReason = "bad_flag"       // completed not parseable as a boolean
	DropBadDuration   DropReason = "bad_duration"   // video_duration_seconds <= 0
	DropNegativeWatch DropReason = "negative_watch" // watch_duration_seconds < 0
	DropOverTolerance DropReason = "over_tolerance" // watch exceeds duration * tolerance
	DropDuplicate     DropReason = "duplicate"      // same (viewer, video, event_time) tuple
	DropOutsideWindow DropReason = "outside_window" // event_time outside the configured window
)

// All drop-off quartiles. A play "ends" in the quartile holding its
// completion ratio; Q4 includes fully completed plays.
const (
	QuartileQ1 Quartile = "Q1" // [0.00, 0.25)
	QuartileQ2 Quartile = "Q2" // [0.25, 0.50)
	QuartileQ3 Quartile = "Q3" // [0.50, 0.75)
	QuartileQ4 Quartile = "Q4" // [0.75, 1.00]
)

// All run statuses supported.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Column names for the input event table.
const (
	ColViewerID      = "viewer_id"
	ColVideoID       = "video_id"
	ColCreatorID     = "creator_id"
	ColEventTime     = "event_time"
	ColWatchSeconds  = "watch_duration_seconds"
	ColVideoDuration = "video_duration_seconds"
	ColCompleted     = "completed"
)

// RequiredColumns lists the columns the normalizer refuses to run without.
// ColCreatorID is deliberately absent: creator attribution is optional and
// may come from the video sidecar instead.
var RequiredColumns = []string{
	ColViewerID,
	ColVideoID,
	ColEventTime,
	ColWatchSeconds,
	ColVideoDuration,
	ColCompleted,
}

// AllQuartiles returns drop-off quartiles in ascending completion order.
var AllQuartiles = []Quartile{QuartileQ1, QuartileQ2, QuartileQ3, QuartileQ4}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// DefaultHorizons returns the day offsets at which return behavior is
// evaluated. Callers receive a fresh slice since configs may reorder it.
func DefaultHorizons() []int {
	return []int{1, 7, 30}
}
