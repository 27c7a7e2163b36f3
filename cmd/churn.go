package cmd

import (
	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// churnCmd trains the churn model and prints risk scores.
var churnCmd = &cobra.Command{
	Use:   "churn <events-file>",
	Short: "Train a churn model and rank viewers by churn risk.",
	Long: `Train a per-horizon logistic regression on early-lifecycle features and
score every eligible viewer's probability of not returning.

Features come from each viewer's first three lifecycle days: session count,
total watch time, completion rate, and distinct videos. Cohorts split into
train and eval sets by cohort date, so no viewer appears in both. Horizons
without enough samples are skipped with a notice instead of failing.

Examples:
  # Default 1/7/30 day horizons
  rewatch churn events.csv

  # Explicit train/eval boundary
  rewatch churn events.csv --split-date 2025-02-01

  # Tune the trainer
  rewatch churn events.csv --epochs 500 --learn-rate 0.05

  # Export the riskiest viewers
  rewatch churn events.csv --limit 100 --output csv --output-file churn.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot train churn model", err)
		}
		if err := core.ExecuteChurn(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot train churn model", err)
		}
	},
}
