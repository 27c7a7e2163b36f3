package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/parquet"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintKPIs outputs the full KPI grid, dispatching based on the output format
// configured. Unlike the ranked views, the grid is never truncated: every
// (cohort, day offset) pair the aggregator produced is written.
func PrintKPIs(report *schema.KPIReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForKPIs(report, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForKPIs(report, cfg, fmtFloat, intFmt); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, func(path string) error {
			return parquet.WriteKPIRowsParquet(parquet.ConvertKPIRows(report.Rows), path)
		}, "Wrote Parquet KPI rows")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeKPITable(report, cfg, fmtFloat, intFmt, duration, w)
		}, "Wrote KPI table")
	}
	return nil
}

// printJSONResultsForKPIs writes the whole report, not just the grid, so JSON
// consumers get retention, drop-off, activity and creators in one document.
func printJSONResultsForKPIs(report *schema.KPIReport, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, report)
	}, "Wrote JSON KPI report")
}

// printCSVResultsForKPIs handles opening the file and calling the CSV writer.
func printCSVResultsForKPIs(report *schema.KPIReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"cohort_date",
		"day_offset",
		"cohort_size",
		"retained",
		"retention_ratio",
		"avg_session_seconds",
		"completion_rate",
		"q1_share",
		"q2_share",
		"q3_share",
		"q4_share",
		"modal_quartile",
		"dau",
		"wau",
		"creator_share",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, r := range report.Rows {
				rec := []string{
					schema.DayKey(r.CohortDate),             // Cohort day
					fmt.Sprintf(intFmt, r.DayOffset),        // Day offset
					fmt.Sprintf(intFmt, r.CohortSize),       // Cohort size
					fmt.Sprintf(intFmt, r.Retained),         // Retained viewers
					csvMetric(r.RetentionRatio, fmtFloat),   // Retention
					csvMetric(r.AvgSessionSeconds, fmtFloat),
					csvMetric(r.CompletionRate, fmtFloat),
					fmtFloat(r.Dropoff.Q1),                  // Quartile shares
					fmtFloat(r.Dropoff.Q2),
					fmtFloat(r.Dropoff.Q3),
					fmtFloat(r.Dropoff.Q4),
					string(r.Dropoff.Modal),                 // Modal quartile
					fmt.Sprintf(intFmt, r.DAU),              // Day actives
					fmt.Sprintf(intFmt, r.WAU),              // Trailing-week actives
					csvMetric(r.CreatorShare, fmtFloat),     // Top-N creator share
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV KPI rows")
}

// writeKPITable generates and writes the human-readable KPI grid.
func writeKPITable(report *schema.KPIReport, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration, w io.Writer) error {
	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers ---
	headers := []string{"Cohort", "Day", "Size", "Retained", "Retention", "Avg Session", "Completion", "Modal", "DAU", "WAU"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	var data [][]string
	for _, r := range report.Rows {
		row := []string{
			schema.DayKey(r.CohortDate),                  // Cohort day
			schema.HorizonLabel(r.DayOffset),             // Day offset
			fmt.Sprintf(intFmt, r.CohortSize),            // Cohort size
			fmt.Sprintf(intFmt, r.Retained),              // Retained viewers
			r.RetentionRatio.Percent(),                   // Retention
			formatSessionSeconds(r.AvgSessionSeconds),    // Avg session length
			r.CompletionRate.String(),                    // Completion
			string(r.Dropoff.Modal),                      // Modal quartile
			fmt.Sprintf(intFmt, r.DAU),                   // Day actives
			fmt.Sprintf(intFmt, r.WAU),                   // Trailing-week actives
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

	// Window-wide drop-off summary beneath the grid
	fmt.Fprintf(w, "Drop-off before 25%%/50%%/75%%: %s / %s / %s\n",
		report.Dropoff.Below25.Percent(), report.Dropoff.Below50.Percent(), report.Dropoff.Below75.Percent())

	if _, err := fmt.Fprintf(w, "Showing %d KPI rows across %d cohorts\n", len(report.Rows), countCohorts(report.Rows)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// formatSessionSeconds renders an average session length as a compact
// duration, keeping "n/a" for undefined metrics.
func formatSessionSeconds(m schema.Metric) string {
	if !m.Defined {
		return "n/a"
	}
	return schema.FormatWatchTime(m.Value)
}

// countCohorts counts the distinct cohort days present in the grid.
func countCohorts(rows []schema.KPIRow) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[schema.DayKey(r.CohortDate)] = struct{}{}
	}
	return len(seen)
}
