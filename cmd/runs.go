package cmd

import (
	"fmt"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/iocache"
	"github.com/huangsam/rewatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsSetup loads minimal configuration needed for run-store operations.
// This is used by commands that need run-store access without full shared setup.
func runsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get runs-related config values
	backendStr := viper.GetString("runs-backend")
	connStr := viper.GetString("runs-db-connect")

	// Handle empty backend as NoneBackend
	var backend schema.DatabaseBackend
	if backendStr == "" {
		backend = schema.NoneBackend
	} else {
		backend = schema.DatabaseBackend(backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// Get output-related config values (used by export command)
	outputFile := viper.GetString("output-file")

	// Initialize stores with the loaded config (no session cache for runs commands)
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	cfg.OutputFile = outputFile

	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT initialize stores or create tables,
// allowing migrations to run on a fresh database.
func runsMigrateSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get runs-related config values
	backendStr := viper.GetString("runs-backend")
	connStr := viper.GetString("runs-db-connect")

	// Handle empty backend as NoneBackend
	var backend schema.DatabaseBackend
	if backendStr == "" {
		backend = schema.NoneBackend
	} else {
		backend = schema.DatabaseBackend(backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetRunsDBFilePath()
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr

	return nil
}

// runsMigrateSetupWrapper wraps runsMigrateSetup to provide PreRunE for migrate command.
func runsMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsMigrateSetup()
}

// runsCmd focused on pipeline run tracking and exports.
//
// Note: Runs subcommands use minimal initialization (runsSetup) instead of
// the full sharedSetup used by pipeline commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage historical pipeline run tracking and exports",
	Long: `Manage historical pipeline run data used for trend tracking and reporting.

When a runs backend is configured, Rewatch records every pipeline run:
- Run metadata (timestamp, configuration, duration, input digest)
- Row accounting (events in, events kept, completion status)
- Aggregated KPI rows per cohort and horizon
- Per-viewer churn risk scores

This enables longitudinal analysis, trend detection, and data export for BI tools.

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled)

Subcommands:
  list    - Show recent pipeline runs
  status  - Show run tracking statistics
  export  - Export run data to Parquet for analytics
  clear   - Remove all tracking data
  migrate - Run database schema migrations

Examples:
  # Check tracking status
  REWATCH_RUNS_BACKEND=sqlite rewatch runs status

  # Export for analysis in pandas/DuckDB
  REWATCH_RUNS_BACKEND=sqlite rewatch runs export --output-file run-data`,
}

// runsListCmd lists recent pipeline runs.
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent pipeline runs, newest first",
	Long: `List recent pipeline runs with their status and row accounting.

Each line shows the run ID, start time, completion status, input/kept event
counts, and duration. Use --limit to control how many runs appear.

Examples:
  # Last 25 runs
  REWATCH_RUNS_BACKEND=sqlite rewatch runs list

  # Last 5 runs
  REWATCH_RUNS_BACKEND=sqlite rewatch runs list --limit 5`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		records, err := iocache.Manager.GetRunStore().GetRecentRuns(viper.GetInt("limit"))
		if err != nil {
			contract.LogFatal("Failed to list pipeline runs", err)
		}
		iocache.PrintRecentRuns(records)
	},
}

// runsClearCmd clears the run tracking data.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all historical pipeline run data",
	Long: `Delete all stored pipeline runs, KPI rows, and churn scores.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  rewatch runs export --output-file backup
  rewatch runs clear`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearRuns(cfg.RunsBackend, contract.GetRunsDBFilePath(), cfg.RunsDBConnect); err != nil {
			contract.LogFatal("Failed to clear run data", err)
		}
		fmt.Println("Run data cleared successfully.")
	},
}

// runsStatusCmd shows run tracking status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics and connection details",
	Long: `Show detailed information about historical pipeline run tracking.

Displays:
- Backend type and connection status
- Total number of runs stored
- Last and oldest run timestamps
- Total events kept across all runs
- Database table sizes

Examples:
  # Check run tracking status
  REWATCH_RUNS_BACKEND=sqlite rewatch runs status`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run store status", err)
		}
		iocache.PrintRunStoreStatus(status)
	},
}

// runsExportCmd exports run data to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pipeline run history to Parquet",
	Long: `Export all recorded pipeline runs to a Parquet file for analytics.

The output works directly with Spark, Arrow, pandas (pyarrow), and DuckDB.

Examples:
  # Export run history
  REWATCH_RUNS_BACKEND=sqlite rewatch runs export --output-file run-data`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteRunsExport(cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export run data", err)
		}
	},
}

// runsMigrateCmd runs schema migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations for run tracking",
	Long: `Apply or roll back run-store schema migrations.

Target versions:
  -1 (default) - migrate to the latest version
   0           - roll back all migrations
   N           - migrate to version N

Examples:
  # Migrate to latest
  REWATCH_RUNS_BACKEND=sqlite rewatch runs migrate

  # Roll everything back
  REWATCH_RUNS_BACKEND=sqlite rewatch runs migrate --target-version 0`,
	PreRunE: runsMigrateSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.MigrateRuns(cfg.RunsBackend, cfg.RunsDBConnect, viper.GetInt("target-version")); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
