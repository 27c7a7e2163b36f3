package cmd

import (
	"errors"

	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// compareCmd contrasts KPIs between two time windows.
var compareCmd = &cobra.Command{
	Use:   "compare <events-file>",
	Short: "Compare engagement KPIs between two time windows.",
	Long: `Run the pipeline twice over the same event log with different time windows
and print the KPI deltas.

Ideal for:
- Before/after views around a product launch or recommendation change
- Month-over-month engagement tracking
- Validating that an intervention actually moved retention

The comparison shows base and target values plus absolute deltas for
pooled retention, completion rate, average session length, and activity.

Examples:
  # January vs February
  rewatch compare events.csv --base-window 2025-01-01..2025-01-31 --target-window 2025-02-01..2025-02-28

  # Export the comparison
  rewatch compare events.csv --base-window 2025-01-01..2025-01-31 --target-window 2025-02-01..2025-02-28 --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot run comparison", err)
		}
		if !cfg.CompareMode {
			contract.LogFatal("Cannot run comparison", errors.New("base and target windows must be provided"))
		}
		if err := core.ExecuteCompare(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot run comparison", err)
		}
	},
}
