// Package cohort aligns watch events to first-seen calendar-day cohorts.
package cohort

import (
	"sort"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// StageName labels this stage in summaries.
const StageName = "cohort"

// Assign groups viewers by the UTC calendar day of their first event and
// tags every event with its day offset from that cohort date. Assignment
// is idempotent: re-running over already-tagged events yields the same
// cohort date per viewer.
func Assign(events []schema.WatchEvent) ([]schema.Cohort, []schema.CohortEvent, schema.StageSummary, error) {
	start := time.Now()
	summary := schema.StageSummary{
		Stage:  StageName,
		RowsIn: len(events),
		Drops:  make(map[schema.DropReason]int),
	}

	// --- 1. First-seen date per viewer ---
	cohortDates := cohortDatesByViewer(events)

	// --- 2. Cohort membership ---
	members := make(map[time.Time]map[string]struct{})
	for viewerID, date := range cohortDates {
		if members[date] == nil {
			members[date] = make(map[string]struct{})
		}
		members[date][viewerID] = struct{}{}
	}
	cohorts := make([]schema.Cohort, 0, len(members))
	for date, viewers := range members {
		cohorts = append(cohorts, schema.Cohort{
			CohortDate: date,
			ViewerIDs:  viewers,
			Size:       len(viewers),
		})
	}
	sort.Slice(cohorts, func(i, j int) bool {
		return cohorts[i].CohortDate.Before(cohorts[j].CohortDate)
	})

	// --- 3. Day offsets per event ---
	cohortEvents := make([]schema.CohortEvent, 0, len(events))
	for _, e := range events {
		date := cohortDates[e.ViewerID]
		offset := int(e.EventTime.UTC().Sub(date) / (24 * time.Hour))
		if offset < 0 {
			// Cannot happen when the cohort dates derive from these same
			// events; it means the caller fed a mismatched table.
			summary.Duration = time.Since(start)
			return nil, nil, summary, &contract.StructuralError{
				Subject: e.ViewerID,
				Reason:  "event precedes its viewer's cohort date",
			}
		}
		cohortEvents = append(cohortEvents, schema.CohortEvent{
			WatchEvent: e,
			CohortDate: date,
			DayOffset:  offset,
		})
	}

	summary.RowsOut = len(cohortEvents)
	summary.Duration = time.Since(start)
	return cohorts, cohortEvents, summary, nil
}

// cohortDatesByViewer maps each viewer to the UTC midnight of their
// earliest event.
func cohortDatesByViewer(events []schema.WatchEvent) map[string]time.Time {
	firstSeen := make(map[string]time.Time)
	for _, e := range events {
		t := e.EventTime.UTC()
		if existing, ok := firstSeen[e.ViewerID]; !ok || t.Before(existing) {
			firstSeen[e.ViewerID] = t
		}
	}
	dates := make(map[string]time.Time, len(firstSeen))
	for viewerID, t := range firstSeen {
		dates[viewerID] = schema.TruncateDay(t)
	}
	return dates
}
