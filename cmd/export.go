package cmd

import (
	"github.com/huangsam/rewatch/core"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
)

// exportCmd writes the pipeline outputs to Parquet files.
var exportCmd = &cobra.Command{
	Use:   "export <events-file>",
	Short: "Export sessions, KPI rows and churn scores to Parquet.",
	Long: `Run the full pipeline and write its outputs as columnar Parquet files.

The --output-file value is used as a prefix; three files are written next to
it: <prefix>.sessions.parquet, <prefix>.kpi_rows.parquet and
<prefix>.churn_scores.parquet. Use this when downstream analysis happens in
Spark, pandas or DuckDB rather than in rewatch itself.

Examples:
  # Export everything under /tmp/rewatch.*
  rewatch export events.csv --output-file /tmp/rewatch

  # Export a single window
  rewatch export events.csv --output-file /tmp/rewatch --lookback "30 days"`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := requireEventsPath(); err != nil {
			contract.LogFatal("Cannot export pipeline outputs", err)
		}
		if err := core.ExecuteExport(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Cannot export pipeline outputs", err)
		}
	},
}
