package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintActivity outputs the daily DAU/WAU series, dispatching based on the
// output format configured. The series is chronological and never truncated.
func PrintActivity(report *schema.KPIReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForActivity(report, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForActivity(report, cfg, fmtFloat, intFmt); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return unsupportedFormat("activity", cfg.Output)
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeActivityTable(report, cfg, intFmt, duration, w)
		}, "Wrote activity table")
	}
	return nil
}

// printJSONResultsForActivity handles opening the file and calling the JSON writer.
func printJSONResultsForActivity(report *schema.KPIReport, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, report.Activity)
	}, "Wrote JSON activity")
}

// printCSVResultsForActivity handles opening the file and calling the CSV writer.
func printCSVResultsForActivity(report *schema.KPIReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"date",
		"dau",
		"wau",
		"dau_wau_ratio",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, p := range report.Activity {
				rec := []string{
					schema.DayKey(p.Date),          // Calendar day
					fmt.Sprintf(intFmt, p.DAU),     // Day actives
					fmt.Sprintf(intFmt, p.WAU),     // Trailing-week actives
					csvMetric(p.Ratio, fmtFloat),   // Stickiness
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV activity")
}

// writeActivityTable generates and writes the human-readable activity series.
func writeActivityTable(report *schema.KPIReport, cfg *contract.Config, intFmt string, duration time.Duration, w io.Writer) error {
	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers ---
	headers := []string{"Date", "DAU", "WAU", "Stickiness"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	var data [][]string
	for _, p := range report.Activity {
		row := []string{
			schema.DayKey(p.Date),       // Calendar day
			fmt.Sprintf(intFmt, p.DAU),  // Day actives
			fmt.Sprintf(intFmt, p.WAU),  // Trailing-week actives
			p.Ratio.String(),            // Stickiness
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

	if latest, ok := report.LatestActivity(); ok {
		fmt.Fprintf(w, "Latest day: DAU %d, WAU %d, stickiness %s\n", latest.DAU, latest.WAU, latest.Ratio)
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
