// Package cmd defines the command-line interface for rewatch.
package cmd

import (
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(kpisCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(creatorsCmd)
	rootCmd.AddCommand(churnCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("videos", "", "Optional path to the video metadata file (csv or parquet)")
	rootCmd.PersistentFlags().String("end", "", "End of the event window in ISO8601 or time ago")
	rootCmd.PersistentFlags().String("start", "", "Start of the event window in ISO8601 or time ago")
	rootCmd.PersistentFlags().String("lookback", "", "Time duration to look back from now (alternative to --start)")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("gap", "30 minutes", "Inactivity gap that splits sessions (e.g. '30 minutes')")
	rootCmd.PersistentFlags().Float64("tolerance", contract.DefaultTolerance, "Allowed watch_seconds overshoot factor vs video duration")
	rootCmd.PersistentFlags().String("horizons", "1,7,30", "Comma-separated retention horizons in days")
	rootCmd.PersistentFlags().Int("top-creators", contract.DefaultTopCreators, "Top-N creators for contribution share")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Session cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().Bool("no-cache", false, "Bypass the session cache for this run")
	rootCmd.PersistentFlags().String("runs-backend", "", "Run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("emoji", "no", "Enable emojis in output headers (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of churnCmd to Viper
	churnCmd.Flags().String("split-date", "", "Cohort date boundary between train and eval sets (YYYY-MM-DD)")
	churnCmd.Flags().Int("epochs", contract.DefaultEpochs, "Gradient descent epochs for the churn model")
	churnCmd.Flags().Float64("learn-rate", contract.DefaultLearnRate, "Gradient descent learning rate")
	churnCmd.Flags().Int("min-samples", contract.DefaultMinSamples, "Minimum train/eval samples per horizon")
	if err := viper.BindPFlags(churnCmd.Flags()); err != nil {
		contract.LogFatal("Error binding churn flags", err)
	}

	// Bind all flags of compareCmd to Viper
	compareCmd.Flags().String("base-window", "", "Base window as 'start..end' dates (e.g. '2025-01-01..2025-01-31')")
	compareCmd.Flags().String("target-window", "", "Target window as 'start..end' dates")
	if err := viper.BindPFlags(compareCmd.Flags()); err != nil {
		contract.LogFatal("Error binding compare flags", err)
	}

	// Bind all flags of checkCmd to Viper
	checkCmd.Flags().String("min-retention", "", "Retention floors for CI/CD gating (format: '1:0.30,7:0.15,30:0.05')")
	checkCmd.Flags().Float64("max-drop-rate", 1.0, "Maximum acceptable normalizer drop rate")
	checkCmd.Flags().Float64("min-completion", 0.0, "Minimum acceptable overall completion rate")
	if err := viper.BindPFlags(checkCmd.Flags()); err != nil {
		contract.LogFatal("Error binding check flags", err)
	}

	// Bind all flags of simulateCmd to Viper
	simulateCmd.Flags().Uint64("seed", 42, "Deterministic seed for the event generator")
	simulateCmd.Flags().Int("viewers", 0, "Number of simulated viewers (0 = default)")
	simulateCmd.Flags().Int("days", 0, "Number of simulated days (0 = default)")
	simulateCmd.Flags().Int("catalog", 0, "Number of videos in the simulated catalog (0 = default)")
	simulateCmd.Flags().Int("creators", 0, "Number of simulated creators (0 = default)")
	simulateCmd.Flags().String("start-date", "", "First simulated day (YYYY-MM-DD, default = days before today)")
	simulateCmd.Flags().String("videos-out", "", "Optional path to also write the video catalog")
	if err := viper.BindPFlags(simulateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding simulate flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
