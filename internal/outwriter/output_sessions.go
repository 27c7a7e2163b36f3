package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/parquet"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintSessions outputs ranked sessions, dispatching based on the output format configured.
func PrintSessions(sessions []schema.Session, cfg *contract.Config, duration time.Duration) error {
	// Create formatters using helper
	fmtFloat, intFmt := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForSessions(sessions, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForSessions(sessions, cfg, fmtFloat, intFmt); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, func(path string) error {
			return parquet.WriteSessionsParquet(parquet.ConvertSessions(sessions), path)
		}, "Wrote Parquet sessions")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSessionTable(sessions, cfg, fmtFloat, intFmt, duration, w)
		}, "Wrote session table")
	}
	return nil
}

// printJSONResultsForSessions handles opening the file and calling the JSON writer.
func printJSONResultsForSessions(sessions []schema.Session, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, schema.EnrichSessions(sessions))
	}, "Wrote JSON sessions")
}

// printCSVResultsForSessions handles opening the file and calling the CSV writer.
func printCSVResultsForSessions(sessions []schema.Session, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"rank",
		"session_id",
		"viewer_id",
		"start_time",
		"end_time",
		"duration_minutes",
		"total_watch_seconds",
		"video_count",
		"unique_videos",
		"unique_creators",
		"mean_completion",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for i, s := range sessions {
				rec := []string{
					strconv.Itoa(i + 1),                        // Rank
					s.SessionID,                                // Session ID
					s.ViewerID,                                 // Viewer ID
					s.StartTime.Format(contract.DateTimeFormat),
					s.EndTime.Format(contract.DateTimeFormat),
					fmtFloat(s.DurationMinutes()),              // Wall-clock span
					fmtFloat(s.TotalWatchSeconds),              // Watched seconds
					fmt.Sprintf(intFmt, s.VideoCount),          // Events
					fmt.Sprintf(intFmt, s.UniqueVideos),        // Distinct videos
					fmt.Sprintf(intFmt, s.UniqueCreators),      // Distinct creators
					fmtFloat(s.MeanCompletion),                 // Mean completion
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV sessions")
}

// writeSessionTable generates and writes the human-readable session table.
func writeSessionTable(sessions []schema.Session, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	// --- 1. Define Headers ---
	headers := []string{"Rank", "Session", "Start", "Length", "Watched", "Videos", "Creators", "Completion"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	maxIDWidth := GetMaxTableIDWidth(cfg)
	var data [][]string
	for i, s := range sessions {
		row := []string{
			strconv.Itoa(i + 1),                           // Rank
			contract.TruncateID(s.SessionID, maxIDWidth),  // Session ID
			s.StartTime.UTC().Format("2006-01-02 15:04"),  // Start
			fmt.Sprintf("%.0fm", s.DurationMinutes()),     // Wall-clock span
			schema.FormatWatchTime(s.TotalWatchSeconds),   // Watched
			fmt.Sprintf(intFmt, s.VideoCount),             // Events
			fmt.Sprintf(intFmt, s.UniqueCreators),         // Distinct creators
			fmtFloat(s.MeanCompletion),                    // Mean completion
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

	// Compute summary stats
	totalWatch := 0.0
	for _, s := range sessions {
		totalWatch += s.TotalWatchSeconds
	}
	if _, err := fmt.Fprintf(writer, "Showing top %d sessions (total watch time: %s)\n", len(sessions), schema.FormatWatchTime(totalWatch)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}
