package cmd

import (
	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// checkCmd focused on CI/CD policy enforcement.
var checkCmd = &cobra.Command{
	Use:   "check <events-file>",
	Short: "Enforce KPI thresholds for CI/CD pipelines (fails build on violations)",
	Long: `Run the pipeline and enforce KPI policy thresholds, exiting non-zero on
any violation.

Designed for scheduled data-quality and engagement gates:
- Retention floors per horizon catch cohort health regressions
- A maximum normalizer drop rate catches upstream data quality breaks
- A minimum completion rate catches playback or instrumentation issues

Thresholds come from flags or the 'thresholds' block of .rewatch.yaml.
Unset thresholds are not checked.

Examples:
  # Retention floors at 1/7/30 days
  rewatch check events.csv --min-retention "1:0.30,7:0.15,30:0.05"

  # Gate on input quality
  rewatch check events.csv --max-drop-rate 0.02

  # Combined engagement gate
  rewatch check events.csv --min-retention "7:0.15" --min-completion 0.4`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Policy check failed", err)
		}
		// Threshold violations exit inside ExecuteCheck
		if err := core.ExecuteCheck(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Policy check failed", err)
		}
	},
}
