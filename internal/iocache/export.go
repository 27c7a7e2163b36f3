package iocache

import (
	"errors"
	"fmt"

	"github.com/huangsam/rewatch/internal/parquet"
)

// ExecuteRunsExport exports recorded pipeline runs to a Parquet file.
func ExecuteRunsExport(outputFile string) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	// Get the run store
	store := Manager.GetRunStore()

	// Check if there's any data to export
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get run store status: %w", err)
	}

	if status.TotalRuns == 0 {
		return errors.New("no pipeline runs found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total pipeline runs: %d\n", status.TotalRuns)

	// Retrieve every recorded run
	records, err := store.GetRecentRuns(0)
	if err != nil {
		return fmt.Errorf("failed to retrieve pipeline runs: %w", err)
	}

	// Convert and write to Parquet
	parquetRuns := parquet.ConvertPipelineRunRecords(records)
	runsFile := outputFile + ".pipeline_runs.parquet"
	if err := parquet.WritePipelineRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write pipeline runs: %w", err)
	}
	fmt.Printf("Exported %d pipeline runs to: %s\n", len(parquetRuns), runsFile)

	fmt.Println("\nExport complete! The Parquet file can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Apache Arrow")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	fmt.Println("  - Any other Parquet-compatible tool")

	return nil
}
