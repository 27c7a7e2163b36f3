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

// PrintChurn outputs churn model reports and at-risk viewer scores,
// dispatching based on the output format configured.
func PrintChurn(churn *schema.ChurnOutput, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(tablePrecision)

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := printJSONResultsForChurn(churn, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := printCSVResultsForChurn(churn, cfg, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return writeParquetFile(cfg.OutputFile, func(path string) error {
			return parquet.WriteChurnScoresParquet(parquet.ConvertChurnScores(churn.Scores), path)
		}, "Wrote Parquet churn scores")
	default:
		// Default to human-readable tables
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeChurnTables(churn, cfg, fmtFloat, intFmt, duration, w)
		}, "Wrote churn tables")
	}
	return nil
}

// churnJSON pairs model quality with ranked, labeled scores.
type churnJSON struct {
	Reports []schema.ModelReport        `json:"reports"`
	Skipped []schema.HorizonSkip        `json:"skipped,omitempty"`
	Scores  []schema.EnrichedChurnScore `json:"scores"`
}

// printJSONResultsForChurn handles opening the file and calling the JSON writer.
func printJSONResultsForChurn(churn *schema.ChurnOutput, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, churnJSON{
			Reports: churn.Reports,
			Skipped: churn.Skipped,
			Scores:  schema.EnrichChurnScores(churn.Scores),
		})
	}, "Wrote JSON churn results")
}

// printCSVResultsForChurn writes the per-viewer scores; model quality stays in
// the JSON and table renderings.
func printCSVResultsForChurn(churn *schema.ChurnOutput, cfg *contract.Config, fmtFloat func(float64) string) error {
	header := []string{
		"rank",
		"viewer_id",
		"cohort_date",
		"horizon",
		"return_probability",
		"churn_risk",
		"label",
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			for i, s := range churn.Scores {
				rec := []string{
					strconv.Itoa(i + 1),                 // Rank
					s.ViewerID,                          // Viewer ID
					schema.DayKey(s.CohortDate),         // Cohort day
					strconv.Itoa(s.Horizon),             // Horizon
					fmtFloat(s.ReturnProbability),       // Return probability
					fmtFloat(s.ChurnRisk),               // Churn risk
					schema.GetPlainLabel(s.ChurnRisk),   // Risk label
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV churn scores")
}

// writeChurnTables renders model quality first, then the ranked score table.
func writeChurnTables(churn *schema.ChurnOutput, cfg *contract.Config, fmtFloat func(float64) string, intFmt string, duration time.Duration, w io.Writer) error {
	if err := writeModelReportTable(churn, intFmt, w); err != nil {
		return err
	}
	if err := writeChurnScoreTable(churn.Scores, cfg, fmtFloat, w); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "Showing top %d at-risk viewers across %d trained horizons\n", len(churn.Scores), len(churn.Reports)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Analysis completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend); err != nil {
		return err
	}
	return nil
}

// writeModelReportTable renders one row per trained horizon plus skip notes.
func writeModelReportTable(churn *schema.ChurnOutput, intFmt string, w io.Writer) error {
	if len(churn.Reports) == 0 && len(churn.Skipped) == 0 {
		return nil
	}

	if len(churn.Reports) > 0 {
		table := tablewriter.NewWriter(w)

		// --- 1. Define Headers ---
		headers := []string{"Horizon", "Split", "Train", "Eval", "Precision", "Recall", "F1", "AUC"}
		table.Header(headers)

		// 2. Configure Alignment
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		// --- 3. Prepare Data Rows ---
		var data [][]string
		for _, r := range churn.Reports {
			row := []string{
				schema.HorizonLabel(r.Horizon),       // Horizon
				schema.DayKey(r.SplitDate),           // Train/eval boundary
				fmt.Sprintf(intFmt, r.TrainSize),     // Training vectors
				fmt.Sprintf(intFmt, r.EvalSize),      // Held-out vectors
				r.Precision.String(),                 // Precision
				r.Recall.String(),                    // Recall
				r.F1.String(),                        // F1
				r.AUC.String(),                       // ROC AUC
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
	}

	// Skipped horizons surface here so thin data never hides silently
	for _, skip := range churn.Skipped {
		if _, err := fmt.Fprintf(w, "  %s skipped: %s\n", schema.HorizonLabel(skip.Horizon), skip.Reason); err != nil {
			return err
		}
	}
	return nil
}

// writeChurnScoreTable renders the ranked at-risk viewer table.
func writeChurnScoreTable(scores []schema.ChurnScore, cfg *contract.Config, fmtFloat func(float64) string, w io.Writer) error {
	if len(scores) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)

	// --- 1. Define Headers ---
	headers := []string{"Rank", "Viewer", "Cohort", "Horizon", "Return Prob", "Risk", "Label"}
	table.Header(headers)

	// 2. Configure Alignment
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// --- 3. Prepare Data Rows ---
	maxIDWidth := GetMaxTableIDWidth(cfg)
	var data [][]string
	for i, s := range scores {
		label := schema.GetPlainLabel(s.ChurnRisk)
		if cfg.UseColors {
			label = contract.GetColorLabel(s.ChurnRisk)
		}
		row := []string{
			strconv.Itoa(i + 1),                         // Rank
			contract.TruncateID(s.ViewerID, maxIDWidth), // Viewer ID
			schema.DayKey(s.CohortDate),                 // Cohort day
			schema.HorizonLabel(s.Horizon),              // Horizon
			fmtFloat(s.ReturnProbability),               // Return probability
			fmtFloat(s.ChurnRisk),                       // Churn risk
			label,                                       // Risk label
		}
		data = append(data, row)
	}

	// --- 4. Render the table ---
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
