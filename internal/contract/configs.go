package contract

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rewatch/schema"
)

// Default values for configuration.
const (
	DefaultInactivityGap = 1800 * time.Second
	DefaultTolerance     = 1.5
	DefaultTopCreators   = 3
	DefaultResultLimit   = 25
	MaxResultLimit       = 1000
	DefaultEpochs        = 200
	DefaultLearnRate     = 0.1
	DefaultMinSamples    = 10
	MaxHorizonDays       = 365
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// DateFormat is the calendar-day representation used for cohort dates.
var DateFormat = time.DateOnly

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ThresholdsRawInput holds check threshold definitions from the YAML config file.
type ThresholdsRawInput struct {
	D1         *float64 `mapstructure:"d1"`
	D7         *float64 `mapstructure:"d7"`
	D30        *float64 `mapstructure:"d30"`
	DropRate   *float64 `mapstructure:"drop_rate"`
	Completion *float64 `mapstructure:"completion"`
}

// Config holds the runtime configuration for the pipeline.
// This struct remains the "final, validated" config. It is immutable once
// built and threaded explicitly through each stage call, so stages stay
// independently testable and reentrant.
type Config struct {
	EventsPath  string
	VideosPath  string
	StartTime   time.Time // zero means no lower bound on the event window
	EndTime     time.Time // zero means no upper bound on the event window
	ResultLimit int
	Workers     int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)

	InactivityGap time.Duration // sessionization gap threshold
	Tolerance     float64       // watch vs duration tolerance factor
	Horizons      []int         // ascending, unique day offsets
	TopCreators   int           // top-N for creator contribution

	SplitDate  time.Time // churn train/eval boundary; zero selects ~80/20 by cohort order
	Epochs     int
	LearnRate  float64
	MinSamples int

	CompareMode bool
	BaseStart   time.Time
	BaseEnd     time.Time
	TargetStart time.Time
	TargetEnd   time.Time

	// RetentionFloors maps horizon -> minimum acceptable retention ratio
	// for the check command.
	RetentionFloors map[int]float64
	MaxDropRate     float64 // check gate; 1.0 disables
	MinCompletion   float64 // check gate; 0.0 disables

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	NoCache        bool

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	UseEmojis bool // Enable emojis in output headers
	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	EventsPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	VideosFile     string  `mapstructure:"videos"`
	OutputFile     string  `mapstructure:"output-file"`
	Limit          int     `mapstructure:"limit"`
	Start          string  `mapstructure:"start"`
	End            string  `mapstructure:"end"`
	Lookback       string  `mapstructure:"lookback"`
	Workers        int     `mapstructure:"workers"`
	Output         string  `mapstructure:"output"`
	Width          int     `mapstructure:"width"`
	Gap            string  `mapstructure:"gap"`
	Tolerance      float64 `mapstructure:"tolerance"`
	Horizons       string  `mapstructure:"horizons"`
	TopCreators    int     `mapstructure:"top-creators"`
	CacheBackend   string  `mapstructure:"cache-backend"`
	CacheDBConnect string  `mapstructure:"cache-db-connect"`
	NoCache        bool    `mapstructure:"no-cache"`
	RunsBackend    string  `mapstructure:"runs-backend"`
	RunsDBConnect  string  `mapstructure:"runs-db-connect"`
	Emoji          string  `mapstructure:"emoji"`
	Color          string  `mapstructure:"color"`

	// --- Fields from churnCmd.Flags() ---
	SplitDate  string  `mapstructure:"split-date"`
	Epochs     int     `mapstructure:"epochs"`
	LearnRate  float64 `mapstructure:"learn-rate"`
	MinSamples int     `mapstructure:"min-samples"`

	// --- Fields from compareCmd.Flags() ---
	BaseWindow   string `mapstructure:"base-window"`
	TargetWindow string `mapstructure:"target-window"`

	// --- Fields from checkCmd.Flags() ---
	MinRetentionStr string  `mapstructure:"min-retention"`
	MaxDropRate     float64 `mapstructure:"max-drop-rate"`
	MinCompletion   float64 `mapstructure:"min-completion"`

	// --- Check thresholds from config file ---
	Thresholds ThresholdsRawInput `mapstructure:"thresholds"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Horizons != nil {
		clone.Horizons = make([]int, len(c.Horizons))
		copy(clone.Horizons, c.Horizons)
	}
	if c.RetentionFloors != nil {
		clone.RetentionFloors = make(map[int]float64)
		maps.Copy(clone.RetentionFloors, c.RetentionFloors)
	}
	return &clone
}

// CloneWithWindow creates a copy of the Config and sets the new StartTime and EndTime.
func (c *Config) CloneWithWindow(start time.Time, end time.Time) *Config {
	clone := c.Clone()
	clone.StartTime = start
	clone.EndTime = end
	return clone
}

// HasWindow reports whether any event-time filter is configured.
func (c *Config) HasWindow() bool {
	return !c.StartTime.IsZero() || !c.EndTime.IsZero()
}

// DescribeWindow renders the configured event window for headers and reports.
func (c *Config) DescribeWindow() string {
	if !c.HasWindow() {
		return "unbounded"
	}
	start, end := "...", "..."
	if !c.StartTime.IsZero() {
		start = c.StartTime.Format(DateTimeFormat)
	}
	if !c.EndTime.IsZero() {
		end = c.EndTime.Format(DateTimeFormat)
	}
	return fmt.Sprintf("%s to %s", start, end)
}

// InWindow reports whether the given event time passes the configured filter.
func (c *Config) InWindow(t time.Time) bool {
	if !c.StartTime.IsZero() && t.Before(c.StartTime) {
		return false
	}
	if !c.EndTime.IsZero() && t.After(c.EndTime) {
		return false
	}
	return true
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	// All validation functions read from 'input' and populate 'cfg'.
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processTimeWindow(cfg, input); err != nil {
		return err
	}
	if err := processPipelineParams(cfg, input); err != nil {
		return err
	}
	if err := processModelParams(cfg, input); err != nil {
		return err
	}
	if err := processCompareMode(cfg, input); err != nil {
		return err
	}
	if err := processCheckThresholds(cfg, input); err != nil {
		return err
	}
	if err := resolveInputPaths(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run-store backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}
	cfg.NoCache = input.NoCache

	// --- Run Store Backend Validation ---
	cfg.RunsBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if cfg.RunsBackend != "" {
		if _, ok := schema.ValidDatabaseBackends[cfg.RunsBackend]; !ok {
			return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
		}
		cfg.RunsDBConnect = input.RunsDBConnect
		if err := ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
			return err
		}

		// Validate that cache and run storage use different databases
		if cfg.CacheBackend == cfg.RunsBackend && cfg.CacheBackend == schema.SQLiteBackend {
			cacheDBPath := cfg.CacheDBConnect
			if cacheDBPath == "" {
				cacheDBPath = GetCacheDBFilePath()
			}
			runsDBPath := cfg.RunsDBConnect
			if runsDBPath == "" {
				runsDBPath = GetRunsDBFilePath()
			}
			if cacheDBPath == runsDBPath {
				return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
			}
		}
	}

	return nil
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	// Parse emoji flag
	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}

	// --- 4. Backend Validation ---
	return validateBackendConfigs(cfg, input)
}

// processTimeWindow handles the event-window date parsing and validation.
// Unlike a live system, the analyzed log is historical, so the default
// window is unbounded rather than a lookback from the current clock.
func processTimeWindow(cfg *Config, input *ConfigRawInput) error {
	now := time.Now()

	parseBound := func(s string) (time.Time, error) {
		if t, err := time.Parse(DateTimeFormat, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse(DateFormat, s); err == nil {
			return t, nil
		}
		t, relErr := ParseRelativeTime(s, now)
		if relErr != nil {
			return time.Time{}, fmt.Errorf("invalid date format for '%s'. Expected ISO8601, YYYY-MM-DD or 'N [units] ago'", s)
		}
		return t, nil
	}

	// --- Process Start Time ---
	if input.Start != "" {
		t, err := parseBound(input.Start)
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
		cfg.StartTime = t
	}

	// --- Process End Time ---
	if input.End != "" {
		t, err := parseBound(input.End)
		if err != nil {
			return fmt.Errorf("invalid end: %w", err)
		}
		cfg.EndTime = t
	}

	// --- Process Lookback (relative window ending now) ---
	if input.Lookback != "" {
		if input.Start != "" {
			return fmt.Errorf("--lookback and --start are mutually exclusive")
		}
		lookback, err := ParseLookbackDuration(input.Lookback)
		if err != nil {
			return err
		}
		if cfg.EndTime.IsZero() {
			cfg.EndTime = now
		}
		cfg.StartTime = cfg.EndTime.Add(-lookback)
	}

	// --- Final Validation ---
	if !cfg.StartTime.IsZero() && !cfg.EndTime.IsZero() && cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("start time (%s) cannot be after end time (%s)",
			cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}

	return nil
}

// processPipelineParams validates the sessionization and aggregation knobs.
func processPipelineParams(cfg *Config, input *ConfigRawInput) error {
	// --- 1. Inactivity Gap ---
	gap, err := ParseLookbackDuration(input.Gap)
	if err != nil {
		return fmt.Errorf("invalid --gap: %w", err)
	}
	cfg.InactivityGap = gap

	// --- 2. Tolerance Factor ---
	if input.Tolerance < 1.0 {
		return fmt.Errorf("tolerance must be at least 1.0 (received %.2f)", input.Tolerance)
	}
	cfg.Tolerance = input.Tolerance

	// --- 3. Horizons ---
	horizons, err := ParseHorizons(input.Horizons)
	if err != nil {
		return err
	}
	cfg.Horizons = horizons

	// --- 4. Top Creators ---
	if input.TopCreators <= 0 {
		return fmt.Errorf("top-creators must be greater than 0 (received %d)", input.TopCreators)
	}
	cfg.TopCreators = input.TopCreators

	return nil
}

// processModelParams validates the churn-model hyperparameters.
func processModelParams(cfg *Config, input *ConfigRawInput) error {
	if input.SplitDate != "" {
		t, err := time.Parse(DateFormat, input.SplitDate)
		if err != nil {
			return fmt.Errorf("invalid --split-date '%s'. Expected YYYY-MM-DD", input.SplitDate)
		}
		cfg.SplitDate = schema.TruncateDay(t)
	}

	if input.Epochs <= 0 {
		return fmt.Errorf("epochs must be greater than 0 (received %d)", input.Epochs)
	}
	cfg.Epochs = input.Epochs

	if input.LearnRate <= 0 {
		return fmt.Errorf("learn-rate must be greater than 0 (received %g)", input.LearnRate)
	}
	cfg.LearnRate = input.LearnRate

	if input.MinSamples < 2 {
		return fmt.Errorf("min-samples must be at least 2 (received %d)", input.MinSamples)
	}
	cfg.MinSamples = input.MinSamples

	return nil
}

// processCompareMode handles the comparison windows.
func processCompareMode(cfg *Config, input *ConfigRawInput) error {
	base := strings.TrimSpace(input.BaseWindow)
	target := strings.TrimSpace(input.TargetWindow)

	if base == "" && target == "" {
		cfg.CompareMode = false
		return nil
	}
	cfg.CompareMode = true

	if base == "" || target == "" {
		return fmt.Errorf("must specify both --base-window and --target-window when running the compare command")
	}

	var err error
	cfg.BaseStart, cfg.BaseEnd, err = ParseDateWindow(base)
	if err != nil {
		return fmt.Errorf("invalid --base-window: %w", err)
	}
	cfg.TargetStart, cfg.TargetEnd, err = ParseDateWindow(target)
	if err != nil {
		return fmt.Errorf("invalid --target-window: %w", err)
	}

	return nil
}

// processCheckThresholds merges check gates from defaults, the config file,
// and command-line flags. Flags take precedence over the config file.
func processCheckThresholds(cfg *Config, input *ConfigRawInput) error {
	floors := make(map[int]float64)

	// Config file values first
	if input.Thresholds.D1 != nil {
		floors[1] = *input.Thresholds.D1
	}
	if input.Thresholds.D7 != nil {
		floors[7] = *input.Thresholds.D7
	}
	if input.Thresholds.D30 != nil {
		floors[30] = *input.Thresholds.D30
	}

	// Command-line flag takes precedence
	if input.MinRetentionStr != "" {
		parsed, err := parseRetentionFloorsString(input.MinRetentionStr)
		if err != nil {
			return fmt.Errorf("invalid --min-retention format: %w", err)
		}
		maps.Copy(floors, parsed)
	}

	for horizon, floor := range floors {
		if floor < 0.0 || floor > 1.0 {
			return fmt.Errorf("retention floor for D%d must be between 0.0 and 1.0 (received %.3f)", horizon, floor)
		}
	}
	cfg.RetentionFloors = floors

	cfg.MaxDropRate = input.MaxDropRate
	if input.Thresholds.DropRate != nil && input.MaxDropRate == 1.0 {
		cfg.MaxDropRate = *input.Thresholds.DropRate
	}
	if cfg.MaxDropRate < 0.0 || cfg.MaxDropRate > 1.0 {
		return fmt.Errorf("max-drop-rate must be between 0.0 and 1.0 (received %.3f)", cfg.MaxDropRate)
	}

	cfg.MinCompletion = input.MinCompletion
	if input.Thresholds.Completion != nil && input.MinCompletion == 0.0 {
		cfg.MinCompletion = *input.Thresholds.Completion
	}
	if cfg.MinCompletion < 0.0 || cfg.MinCompletion > 1.0 {
		return fmt.Errorf("min-completion must be between 0.0 and 1.0 (received %.3f)", cfg.MinCompletion)
	}

	return nil
}

// resolveInputPaths resolves the events file and optional video sidecar.
func resolveInputPaths(cfg *Config, input *ConfigRawInput) error {
	if input.EventsPathStr == "" {
		return nil // commands that need events validate this themselves
	}

	absPath, err := filepath.Abs(input.EventsPathStr)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("events file does not exist: %s", input.EventsPathStr)
	}
	if info.IsDir() {
		return fmt.Errorf("events path is a directory, expected a file: %s", input.EventsPathStr)
	}
	cfg.EventsPath = absPath

	if input.VideosFile != "" {
		absVideos, err := filepath.Abs(input.VideosFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(absVideos); err != nil {
			return fmt.Errorf("videos file does not exist: %s", input.VideosFile)
		}
		cfg.VideosPath = absVideos
	}

	return nil
}

// ParseHorizons parses a string like "1,7,30" into a sorted, deduplicated
// slice of day offsets.
func ParseHorizons(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("horizons cannot be empty")
	}

	seen := make(map[int]struct{})
	var horizons []int
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid horizon '%s': %w", part, err)
		}
		if h < 1 || h > MaxHorizonDays {
			return nil, fmt.Errorf("horizon must be between 1 and %d days (received %d)", MaxHorizonDays, h)
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		horizons = append(horizons, h)
	}

	if len(horizons) == 0 {
		return nil, fmt.Errorf("horizons cannot be empty")
	}
	slices.Sort(horizons)
	return horizons, nil
}

// ParseDateWindow parses a "YYYY-MM-DD..YYYY-MM-DD" range into window bounds.
// The end bound is inclusive of its full calendar day.
func ParseDateWindow(s string) (time.Time, time.Time, error) {
	parts := strings.Split(s, "..")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected 'YYYY-MM-DD..YYYY-MM-DD', got '%s'", s)
	}

	start, err := time.Parse(DateFormat, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window start '%s': %w", parts[0], err)
	}
	end, err := time.Parse(DateFormat, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window end '%s': %w", parts[1], err)
	}

	start = schema.TruncateDay(start)
	end = schema.TruncateDay(end).Add(24*time.Hour - time.Nanosecond)
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("window start %s is after end %s", parts[0], parts[1])
	}

	return start, end, nil
}

// ProcessProfilingConfig handles the profiling flag and sets up profiling configuration.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// parseRetentionFloorsString parses a string like "1:0.3,7:0.15,30:0.05"
// into a map of horizon to minimum retention ratio.
func parseRetentionFloorsString(s string) (map[int]float64, error) {
	floors := make(map[int]float64)

	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		keyValue := strings.Split(part, ":")
		if len(keyValue) != 2 {
			return nil, fmt.Errorf("invalid floor format '%s', expected 'horizon:value'", part)
		}

		horizon, err := strconv.Atoi(strings.TrimSpace(keyValue[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid horizon '%s': %w", keyValue[0], err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(keyValue[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid floor value '%s' for horizon %d: %w", keyValue[1], horizon, err)
		}

		floors[horizon] = value
	}

	return floors, nil
}
