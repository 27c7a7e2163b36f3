package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintRetention outputs the cohort retention matrix, dispatching based on the
// output format configured.
func PrintRetention(report *schema.KPIReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForRetention(report, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForRetention(report, cfg, fmtFloat, intFmt); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		// Retention cells ride along in the kpis parquet export.
		return unsupportedFormat("retention", cfg.Output)
	default:
		// Default to human-readable matrix
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRetentionTable(report, cfg, duration, w)
		}, "Wrote retention table")
	}
	return nil
}

// printJSONResultsForRetention handles opening the file and calling the JSON writer.
func printJSONResultsForRetention(report *schema.KPIReport, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, report.Retention)
	}, "Wrote JSON retention")
}

// printCSVResultsForRetention handles opening the file and calling the CSV writer.
func printCSVResultsForRetention(report *schema.KPIReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"cohort_date",
		"day_offset",
		"cohort_size",
		"retained",
		"retention_ratio",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, c := range report.Retention {
				rec := []string{
					schema.DayKey(c.CohortDate),         // Cohort day
					fmt.Sprintf(intFmt, c.DayOffset),    // Horizon offset
					fmt.Sprintf(intFmt, c.CohortSize),   // Denominator
					fmt.Sprintf(intFmt, c.Retained),     // Numerator
					csvMetric(c.Ratio, fmtFloat),        // Empty when undefined
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV retention")
}

// writeRetentionTable renders cohorts as rows and horizons as columns.
func writeRetentionTable(report *schema.KPIReport, cfg *contract.Config, duration time.Duration, w io.Writer) error {
	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers (one column per horizon) ---
	headers := []string{"Cohort", "Size"}
	for _, h := range report.Horizons {
		headers = append(headers, schema.HorizonLabel(h))
	}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	// Pivot the flat cell list into cohort rows with one cell per horizon.
	type matrixKey struct {
		day     string
		horizon int
	}
	cells := make(map[matrixKey]schema.RetentionCell, len(report.Retention))
	sizes := make(map[string]int)
	var cohortDays []string
	for _, c := range report.Retention {
		day := schema.DayKey(c.CohortDate)
		if _, seen := sizes[day]; !seen {
			cohortDays = append(cohortDays, day)
			sizes[day] = c.CohortSize
		}
		cells[matrixKey{day, c.DayOffset}] = c
	}
	sort.Strings(cohortDays)

	var data [][]string
	for _, day := range cohortDays {
		row := []string{day, strconv.Itoa(sizes[day])}
		for _, h := range report.Horizons {
			cell, ok := cells[matrixKey{day, h}]
			if !ok {
				row = append(row, "n/a")
				continue
			}
			row = append(row, cell.Ratio.Percent())
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

	// Pooled summary across all cohorts per horizon
	for _, h := range report.Horizons {
		pooled := schema.PooledRetention(report.Retention, h)
		fmt.Fprintf(w, "  %s pooled: %s\n", schema.HorizonLabel(h), pooled.Percent())
	}

	if _, err := fmt.Fprintf(w, "Showing %d cohorts across %d horizons\n", len(cohortDays), len(report.Horizons)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
