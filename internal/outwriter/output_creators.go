package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintCreators outputs creator contribution shares, dispatching based on the
// output format configured. The text table honors the result limit; CSV and
// JSON always carry the full ranking.
func PrintCreators(report *schema.KPIReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForCreators(report, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForCreators(report, cfg, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return unsupportedFormat("creator", cfg.Output)
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCreatorTable(report, cfg, duration, w)
		}, "Wrote creator table")
	}
	return nil
}

// printJSONResultsForCreators handles opening the file and calling the JSON writer.
func printJSONResultsForCreators(report *schema.KPIReport, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, report.Creators)
	}, "Wrote JSON creators")
}

// printCSVResultsForCreators handles opening the file and calling the CSV writer.
func printCSVResultsForCreators(report *schema.KPIReport, cfg *contract.Config, fmtFloat func(float64) string) error {
	header := []string{
		"rank",
		"creator_id",
		"watch_seconds",
		"watch_share",
		"cumulative_share",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, c := range report.Creators {
				rec := []string{
					strconv.Itoa(c.Rank),                 // Rank
					c.CreatorID,                          // Creator ID
					fmtFloat(c.WatchSeconds),             // Watch seconds
					csvMetric(c.Share, fmtFloat),         // Share of total
					csvMetric(c.Cumulative, fmtFloat),    // Running share
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV creators")
}

// writeCreatorTable generates and writes the human-readable creator ranking.
func writeCreatorTable(report *schema.KPIReport, cfg *contract.Config, duration time.Duration, w io.Writer) error {
	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers ---
	headers := []string{"Rank", "Creator", "Watch Time", "Share", "Cumulative"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	creators := report.Creators
	if cfg.ResultLimit > 0 && len(creators) > cfg.ResultLimit {
		creators = creators[:cfg.ResultLimit]
	}
	maxIDWidth := GetMaxTableIDWidth(cfg)
	var data [][]string
	for _, c := range creators {
		row := []string{
			strconv.Itoa(c.Rank),                        // Rank
			contract.TruncateID(c.CreatorID, maxIDWidth), // Creator ID
			schema.FormatWatchTime(c.WatchSeconds),      // Watch time
			c.Share.Percent(),                           // Share of total
			c.Cumulative.Percent(),                      // Running share
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

	if _, err := fmt.Fprintf(w, "Top %d creators drive %s of total watch time\n", report.TopN, report.TopCreatorShare.Percent()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
