package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintRunReport outputs the end-to-end pipeline report, dispatching based on
// the output format configured.
func PrintRunReport(output *schema.PipelineOutput, cfg *contract.Config, duration time.Duration) error {
	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONRunReport(output, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVRunReport(output, cfg); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		// Raw stage accounting has no parquet shape; the sessions, kpis and
		// churn commands cover columnar export.
		return unsupportedFormat("run report", cfg.Output)
	default:
		// Default to human-readable report
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRunReportText(output, cfg, duration, w)
		}, "Wrote run report")
	}
	return nil
}

// PrintStageSummaries renders per-stage row accounting on its own. The run
// command falls back to it when a stage fails, so accounting survives the error.
func PrintStageSummaries(summaries []schema.StageSummary, cfg *contract.Config) error {
	if len(summaries) == 0 {
		return nil
	}
	if cfg.UseEmojis {
		fmt.Println("🧮 Pipeline Summary:")
	} else {
		fmt.Println("Pipeline Summary:")
	}
	return writeStageSummaryTable(summaries, os.Stdout)
}

// runReportJSON is the machine-readable run summary. Raw events and
// per-viewer scores stay out; the dedicated commands export those.
type runReportJSON struct {
	Summaries       []schema.StageSummary  `json:"stage_summaries"`
	EventsKept      int                    `json:"events_kept"`
	Sessions        int                    `json:"sessions"`
	Cohorts         int                    `json:"cohorts"`
	Retention       []horizonRetentionJSON `json:"retention,omitempty"`
	Dropoff         *schema.DropoffReport  `json:"dropoff,omitempty"`
	Latest          *schema.ActivityPoint  `json:"latest_activity,omitempty"`
	TopCreatorShare schema.Metric          `json:"top_creator_share"`
	ChurnReports    []schema.ModelReport   `json:"churn_reports,omitempty"`
	ChurnSkipped    []schema.HorizonSkip   `json:"churn_skipped,omitempty"`
}

// horizonRetentionJSON is one pooled retention ratio at one horizon.
type horizonRetentionJSON struct {
	Horizon int           `json:"horizon"`
	Pooled  schema.Metric `json:"pooled_retention"`
}

// printJSONRunReport handles opening the file and calling the JSON writer.
func printJSONRunReport(output *schema.PipelineOutput, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, buildRunReportJSON(output))
	}, "Wrote JSON run report")
}

// buildRunReportJSON shapes the run summary for JSON consumers.
func buildRunReportJSON(output *schema.PipelineOutput) runReportJSON {
	report := runReportJSON{
		Summaries:  output.Summaries,
		EventsKept: len(output.Events),
		Sessions:   len(output.Sessions),
		Cohorts:    len(output.Cohorts),
	}
	if kpis := output.KPIs; kpis != nil {
		for _, h := range kpis.Horizons {
			report.Retention = append(report.Retention, horizonRetentionJSON{
				Horizon: h,
				Pooled:  schema.PooledRetention(kpis.Retention, h),
			})
		}
		report.Dropoff = &kpis.Dropoff
		if latest, ok := kpis.LatestActivity(); ok {
			report.Latest = &latest
		}
		report.TopCreatorShare = kpis.TopCreatorShare
	}
	if churn := output.Churn; churn != nil {
		report.ChurnReports = churn.Reports
		report.ChurnSkipped = churn.Skipped
	}
	return report
}

// printCSVRunReport writes stage accounting as CSV, one row per stage.
func printCSVRunReport(output *schema.PipelineOutput, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(tablePrecision)
	header := []string{
		"stage",
		"rows_in",
		"rows_out",
		"dropped",
		"drop_rate",
		"duration_ms",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for _, s := range output.Summaries {
				rec := []string{
					s.Stage,
					fmt.Sprintf(intFmt, s.RowsIn),
					fmt.Sprintf(intFmt, s.RowsOut),
					fmt.Sprintf(intFmt, s.DropCount()),
					fmtFloat(s.DropRate()),
					strconv.FormatInt(s.Duration.Milliseconds(), 10),
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV run report")
}

// writeRunReportText generates and writes the human-readable run report.
func writeRunReportText(output *schema.PipelineOutput, cfg *contract.Config, duration time.Duration, w io.Writer) error {
	if err := writeStageSummaryTable(output.Summaries, w); err != nil {
		return err
	}
	writeRunHighlights(output, w)

	if _, err := fmt.Fprintf(w, "Pipeline completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writeStageSummaryTable renders the per-stage row accounting table.
func writeStageSummaryTable(summaries []schema.StageSummary, w io.Writer) error {
	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers ---
	headers := []string{"Stage", "Rows In", "Rows Out", "Dropped", "Drop Rate", "Duration"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	fmtFloat, intFmt := createFormatters(tablePrecision)
	var data [][]string
	for _, s := range summaries {
		row := []string{
			s.Stage,
			fmt.Sprintf(intFmt, s.RowsIn),
			fmt.Sprintf(intFmt, s.RowsOut),
			fmt.Sprintf(intFmt, s.DropCount()),
			fmtFloat(s.DropRate()),
			s.Duration.String(),
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

	// Per-stage drop reasons, sorted so repeated runs emit identical lines
	for _, s := range summaries {
		if len(s.Drops) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s drops: %s\n", s.Stage, formatDropReasons(s.Drops))
	}
	return nil
}

// formatDropReasons renders a drop map as "reason=count" pairs in sorted order.
func formatDropReasons(drops map[schema.DropReason]int) string {
	reasons := make([]string, 0, len(drops))
	for r := range drops {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", r, drops[schema.DropReason(r)]))
	}
	return strings.Join(parts, ", ")
}

// writeRunHighlights prints the headline KPI lines under the stage table.
func writeRunHighlights(output *schema.PipelineOutput, w io.Writer) {
	fmt.Fprintf(w, "Sessions: %d across %d cohorts\n", len(output.Sessions), len(output.Cohorts))

	kpis := output.KPIs
	if kpis == nil {
		return
	}

	parts := make([]string, 0, len(kpis.Horizons))
	for _, h := range kpis.Horizons {
		pooled := schema.PooledRetention(kpis.Retention, h)
		parts = append(parts, fmt.Sprintf("%s %s", schema.HorizonLabel(h), pooled.Percent()))
	}
	fmt.Fprintf(w, "Retention: %s\n", strings.Join(parts, " | "))

	fmt.Fprintf(w, "Drop-off: <25%% %s | <50%% %s | <75%% %s\n",
		kpis.Dropoff.Below25.Percent(), kpis.Dropoff.Below50.Percent(), kpis.Dropoff.Below75.Percent())

	if latest, ok := kpis.LatestActivity(); ok {
		fmt.Fprintf(w, "Latest activity: %s (DAU %d, WAU %d, stickiness %s)\n",
			schema.DayKey(latest.Date), latest.DAU, latest.WAU, latest.Ratio)
	}

	fmt.Fprintf(w, "Top %d creators: %s of watch time\n", kpis.TopN, kpis.TopCreatorShare.Percent())

	if churn := output.Churn; churn != nil {
		if len(churn.Reports) > 0 {
			aucs := make([]string, 0, len(churn.Reports))
			for _, r := range churn.Reports {
				aucs = append(aucs, fmt.Sprintf("%s AUC %s", schema.HorizonLabel(r.Horizon), r.AUC))
			}
			fmt.Fprintf(w, "Churn: %s\n", strings.Join(aucs, " | "))
		}
		for _, skip := range churn.Skipped {
			fmt.Fprintf(w, "  %s skipped: %s\n", schema.HorizonLabel(skip.Horizon), skip.Reason)
		}
	}
}
