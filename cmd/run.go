package cmd

import (
	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// runCmd executes the full pipeline and prints the run report.
var runCmd = &cobra.Command{
	Use:   "run <events-file>",
	Short: "Run the full pipeline and print the run report.",
	Long: `Run every pipeline stage over a watch-event log and print the run report.

Stages execute in order: normalize, window filter, sessionize, cohort
assignment, KPI aggregation, and churn model training. The report covers:
- Per-stage row accounting with drop reasons
- Pooled retention at each configured horizon
- Drop-off shares below the 25/50/75 percent completion thresholds
- Latest-day DAU/WAU activity
- Churn model quality per horizon

Examples:
  # Full report over an event log
  rewatch run events.csv

  # Use video metadata to catch watch-time overshoot
  rewatch run events.csv --videos videos.csv

  # Restrict to a window and export to JSON
  rewatch run events.parquet --start 2025-01-01 --end 2025-02-01 --output json

  # Record the run when a runs backend is configured
  rewatch run events.csv --runs-backend sqlite`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot run pipeline", err)
		}
		if err := core.ExecuteRun(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run pipeline", err)
		}
	},
}

// sessionsCmd ranks sessions by total watch time.
var sessionsCmd = &cobra.Command{
	Use:   "sessions <events-file>",
	Short: "Show the top sessions ranked by total watch time.",
	Long: `Sessionize the event log and rank sessions by total watch time.

A session groups one viewer's plays where consecutive starts are separated
by no more than the inactivity gap. Useful for:
- Spotting binge sessions and their dominant videos
- Sanity-checking the gap threshold against real viewing behavior
- Feeding session-level exports into downstream analysis

Examples:
  # Top sessions with the default 30 minute gap
  rewatch sessions events.csv

  # Tighter gap splits more sessions
  rewatch sessions events.csv --gap "10 minutes"

  # Export all sessions to CSV
  rewatch sessions events.csv --limit 1000 --output csv --output-file sessions.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot rank sessions", err)
		}
		if err := core.ExecuteSessions(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot rank sessions", err)
		}
	},
}
