package cmd

import (
	"fmt"
	"time"

	"github.com/huangsam/rewatch/core/simulate"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// simulateSetup loads minimal configuration for the generator. The positional
// argument is an output path, so the full events-file validation must not run.
func simulateSetup(_ *cobra.Command, _ []string) error {
	return loadConfigFile()
}

// simulateCmd generates a deterministic synthetic event log.
var simulateCmd = &cobra.Command{
	Use:   "simulate <events-out>",
	Short: "Generate a deterministic synthetic watch-event log.",
	Long: `Generate a synthetic watch-event log with realistic shape: popularity-skewed
catalog, per-viewer stickiness, multi-play sessions, and a small share of
malformed rows so the normalizer has something to reject.

The same seed always produces the same file, which makes generated data
usable in benchmarks and regression tests. The output format follows the
file extension (.csv or .parquet).

Examples:
  # Default dataset: 2000 viewers over 30 days
  rewatch simulate events.csv

  # Bigger deterministic dataset with a catalog file
  rewatch simulate events.parquet --viewers 10000 --days 60 --seed 7 --videos-out videos.csv

  # Pin the simulated date range
  rewatch simulate events.csv --start-date 2025-01-01 --days 31`,
	Args:    cobra.ExactArgs(1),
	PreRunE: simulateSetup,
	Run: func(_ *cobra.Command, args []string) {
		opts := simulate.Options{
			Seed:       viper.GetUint64("seed"),
			Viewers:    viper.GetInt("viewers"),
			Days:       viper.GetInt("days"),
			Catalog:    viper.GetInt("catalog"),
			Creators:   viper.GetInt("creators"),
			EventsPath: args[0],
			VideosPath: viper.GetString("videos-out"),
		}

		if startStr := viper.GetString("start-date"); startStr != "" {
			start, err := time.ParseInLocation(contract.DateFormat, startStr, time.UTC)
			if err != nil {
				contract.LogFatal("Invalid --start-date", err)
			}
			opts.StartDate = start
		}

		summary, err := simulate.Run(opts)
		if err != nil {
			contract.LogFatal("Cannot generate events", err)
		}

		fmt.Printf("Generated %d events for %d viewers over %d days (from %s)\n",
			summary.Events, summary.Viewers, summary.Days, summary.StartDate.Format(contract.DateFormat))
		fmt.Printf("Events written to: %s\n", summary.EventsPath)
		if summary.VideosPath != "" {
			fmt.Printf("Catalog written to: %s (%d videos)\n", summary.VideosPath, summary.Videos)
		}
	},
}
