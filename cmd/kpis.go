package cmd

import (
	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// retentionCmd prints the cohort retention table.
var retentionCmd = &cobra.Command{
	Use:   "retention <events-file>",
	Short: "Show cohort retention at each configured horizon.",
	Long: `Group viewers into daily signup cohorts and measure day-N retention.

A viewer belongs to the cohort of their first-ever event day. They count as
retained at day N when they have at least one event exactly N days later.
Cohorts too young to observe a horizon render as n/a rather than zero.

Examples:
  # Default 1/7/30 day horizons
  rewatch retention events.csv

  # Custom horizons
  rewatch retention events.csv --horizons 1,3,7,14

  # JSON export for dashboards
  rewatch retention events.csv --output json --output-file retention.json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot compute retention", err)
		}
		if err := core.ExecuteRetention(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot compute retention", err)
		}
	},
}

// kpisCmd prints per-cohort, per-day KPI rows.
var kpisCmd = &cobra.Command{
	Use:   "kpis <events-file>",
	Short: "Show per-cohort engagement KPIs at each horizon.",
	Long: `Aggregate engagement KPIs for every (cohort, day offset) pair.

Each row reports cohort size, retained viewers, retention ratio, average
session length, completion rate, drop-off quartiles, DAU/WAU on the
measured day, and the top-N creator contribution share. Zero-denominator
metrics render as n/a.

Examples:
  # KPI rows at the default horizons
  rewatch kpis events.csv

  # Wider creator share and CSV export
  rewatch kpis events.csv --top-creators 5 --output csv --output-file kpis.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot compute KPIs", err)
		}
		if err := core.ExecuteKPIs(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot compute KPIs", err)
		}
	},
}

// activityCmd prints the daily DAU/WAU series.
var activityCmd = &cobra.Command{
	Use:   "activity <events-file>",
	Short: "Show daily active viewers and the trailing 7-day WAU.",
	Long: `Print the day-by-day distinct viewer series across the event window.

DAU counts distinct viewers per calendar day; WAU counts distinct viewers
in the trailing 7-day window ending that day. The DAU/WAU ratio tracks
stickiness over time.

Examples:
  # Full daily series
  rewatch activity events.csv

  # Last two weeks only
  rewatch activity events.csv --lookback "14 days"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot compute activity", err)
		}
		if err := core.ExecuteActivity(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot compute activity", err)
		}
	},
}

// creatorsCmd prints creator watch-time contribution.
var creatorsCmd = &cobra.Command{
	Use:   "creators <events-file>",
	Short: "Show creators ranked by watch-time contribution.",
	Long: `Rank creators by their share of total watch time across the window.

The cumulative column shows how concentrated viewing is: a high top-N
cumulative share means a few creators drive most of the watch time.

Examples:
  # Creator ranking with the default top-3 share
  rewatch creators events.csv

  # Deeper ranking
  rewatch creators events.csv --limit 50 --top-creators 10`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot compute creator shares", err)
		}
		if err := core.ExecuteCreators(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot compute creator shares", err)
		}
	},
}
