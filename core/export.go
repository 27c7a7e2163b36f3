package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/parquet"
)

// ExecuteExport runs the pipeline once and writes its sessionized, aggregated
// and scored outputs to Parquet files sharing the configured prefix.
func ExecuteExport(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	// Validate that output file is specified
	if cfg.OutputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	output, _, err := GetRunResults(WithSuppressHeader(ctx), cfg, mgr)
	if err != nil {
		return err
	}

	// --- 1. Sessions ---
	sessionsFile := cfg.OutputFile + ".sessions.parquet"
	if err := parquet.WriteSessionsParquet(parquet.ConvertSessions(output.Sessions), sessionsFile); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	fmt.Printf("Exported %d sessions to: %s\n", len(output.Sessions), sessionsFile)

	// --- 2. KPI rows ---
	kpiFile := cfg.OutputFile + ".kpi_rows.parquet"
	if err := parquet.WriteKPIRowsParquet(parquet.ConvertKPIRows(output.KPIs.Rows), kpiFile); err != nil {
		return fmt.Errorf("failed to write KPI rows: %w", err)
	}
	fmt.Printf("Exported %d KPI rows to: %s\n", len(output.KPIs.Rows), kpiFile)

	// --- 3. Churn scores ---
	scoresFile := cfg.OutputFile + ".churn_scores.parquet"
	if err := parquet.WriteChurnScoresParquet(parquet.ConvertChurnScores(output.Churn.Scores), scoresFile); err != nil {
		return fmt.Errorf("failed to write churn scores: %w", err)
	}
	fmt.Printf("Exported %d churn scores to: %s\n", len(output.Churn.Scores), scoresFile)

	fmt.Println("\nExport complete! The Parquet files can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Apache Arrow")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	fmt.Println("  - Any other Parquet-compatible tool")

	return nil
}
