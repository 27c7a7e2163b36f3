package iocache

import (
	"fmt"

	"github.com/huangsam/rewatch/schema"
)

// PrintCacheStatus prints session cache status information.
func PrintCacheStatus(status schema.CacheStatus) {
	fmt.Printf("Cache Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		fmt.Printf("Last Entry: %s\n", status.LastEntryTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Entry: %s\n", status.OldestEntryTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Table Size: %d bytes\n", status.TableSizeBytes)
}

// PrintRunStoreStatus prints run store status information.
func PrintRunStoreStatus(status schema.RunStoreStatus) {
	fmt.Printf("Runs Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Total Runs: %d\n", status.TotalRuns)
	if status.TotalRuns > 0 {
		fmt.Printf("Last Run ID: %d\n", status.LastRunID)
		fmt.Printf("Last Run: %s\n", status.LastRunTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Run: %s\n", status.OldestRunTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Total Events Kept: %d\n", status.TotalEventsKept)
	}
	fmt.Println("Table Sizes:")
	for table, size := range status.TableSizes {
		fmt.Printf("  %s: %d rows\n", table, size)
	}
}

// PrintRecentRuns prints a short listing of recent pipeline runs, newest first.
func PrintRecentRuns(records []schema.PipelineRunRecord) {
	if len(records) == 0 {
		fmt.Println("No pipeline runs recorded yet.")
		return
	}
	for _, r := range records {
		line := fmt.Sprintf("run %d  %s  status=%s  in=%d kept=%d",
			r.RunID, r.StartTime.Format("2006-01-02 15:04:05"), r.Status, r.EventsIn, r.EventsKept)
		if r.RunDurationMs != nil {
			line += fmt.Sprintf("  took=%dms", *r.RunDurationMs)
		}
		fmt.Println(line)
	}
}
