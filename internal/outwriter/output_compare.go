package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintComparison outputs the window comparison, dispatching based on the
// output format configured.
func PrintComparison(result schema.ComparisonResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForComparison(result, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForComparison(result, cfg, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return unsupportedFormat("comparison", cfg.Output)
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeComparisonTable(result, cfg, duration, w)
		}, "Wrote comparison table")
	}
	return nil
}

// printJSONResultsForComparison marshals the schema.ComparisonResult to JSON and writes it.
func printJSONResultsForComparison(result schema.ComparisonResult, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, result)
	}, "Wrote JSON comparison")
}

// printCSVResultsForComparison writes one row per compared metric.
func printCSVResultsForComparison(result schema.ComparisonResult, cfg *contract.Config, fmtFloat func(float64) string) error {
	header := []string{
		"metric",
		"base",
		"target",
		"delta",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, d := range result.Details {
				delta := ""
				if d.Defined {
					delta = fmtFloat(d.Delta)
				}
				rec := []string{
					d.Metric,                      // Metric name
					csvMetric(d.Base, fmtFloat),   // Base value
					csvMetric(d.Target, fmtFloat), // Target value
					delta,                         // Target minus base
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV comparison")
}

// writeComparisonTable writes the metrics in a base/target/delta format.
func writeComparisonTable(result schema.ComparisonResult, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	fmt.Fprintf(writer, "Base:   %s (viewers: %d, cohorts: %d)\n",
		formatCompareWindow(result.Base.Start, result.Base.End), result.Base.Viewers, result.Base.Cohorts)
	fmt.Fprintf(writer, "Target: %s (viewers: %d, cohorts: %d)\n",
		formatCompareWindow(result.Target.Start, result.Target.End), result.Target.Viewers, result.Target.Cohorts)

	table := tablewriter.NewWriter(writer)

	// --- 1. Define Headers ---
	headers := []string{"Metric", "Base", "Target", "Delta"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	var red, green, yellow func(...any) string
	if cfg.UseColors {
		red = color.New(color.FgRed).SprintFunc()
		green = color.New(color.FgGreen).SprintFunc()
		yellow = color.New(color.FgYellow).SprintFunc()
	} else {
		red = fmt.Sprint
		green = fmt.Sprint
		yellow = fmt.Sprint
	}
	var data [][]string
	for _, d := range result.Details {
		// Every compared metric moves in the "higher is better" direction,
		// so gains render green and losses red.
		var deltaStr string
		switch {
		case !d.Defined:
			deltaStr = "n/a"
		case d.Delta > 0:
			// Explicitly add + sign
			deltaStr = green(fmt.Sprintf("+%.*f ▲", tablePrecision, d.Delta))
		case d.Delta < 0:
			// Keeps the - sign from the float
			deltaStr = red(fmt.Sprintf("%.*f ▼", tablePrecision, d.Delta))
		default:
			deltaStr = yellow(fmt.Sprintf("%.*f", tablePrecision, 0.0))
		}

		row := []string{
			d.Metric,          // Metric name
			d.Base.String(),   // Base value
			d.Target.String(), // Target value
			deltaStr,          // Target minus base
		}
		data = append(data, row)
	}

	// --- 4. Render the table ---
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(writer, "Compared %d metrics between windows\n", len(result.Details)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
