package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/rewatch/core/churn"
	"github.com/huangsam/rewatch/core/cohort"
	"github.com/huangsam/rewatch/core/kpi"
	"github.com/huangsam/rewatch/core/normalize"
	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/outwriter"
	"github.com/huangsam/rewatch/schema"
)

// windowStageName labels the event-window filter in stage summaries.
const windowStageName = "window"

// RunPipeline executes the batch pipeline over the configured input:
// normalize, window filter, sessionize (cached), cohort assignment, KPI
// aggregation, and churn modeling. Stage summaries accumulate on the output
// even when a later stage fails, so callers can always report row accounting.
func RunPipeline(ctx context.Context, cfg *contract.Config, source contract.EventSource, mgr contract.CacheManager) (*schema.PipelineOutput, error) {
	if !shouldSuppressHeader(ctx) {
		outwriter.LogPipelineHeader(cfg)
	}

	output := &schema.PipelineOutput{}

	// --- 0. Fetch input and fingerprint it ---
	table, err := source.FetchEvents(ctx, cfg)
	if err != nil {
		return output, fmt.Errorf("failed to fetch events: %w", err)
	}
	videos, err := source.FetchVideoMetadata(ctx, cfg)
	if err != nil {
		return output, fmt.Errorf("failed to fetch video metadata: %w", err)
	}
	digest, err := source.Digest(ctx, cfg)
	if err != nil {
		contract.LogWarn("Input digest failed, session caching disabled for this run", err)
		digest = ""
	}

	// --- 1. Begin run tracking (if configured) ---
	tracker := beginRunTracking(cfg, mgr, digest)

	// --- 2. Normalization ---
	events, normSummary, err := normalize.Normalize(table, videos, cfg)
	output.Summaries = append(output.Summaries, normSummary)
	if err != nil {
		tracker.finish(normSummary.RowsIn, 0, schema.RunFailed)
		return output, err
	}

	// --- 3. Event-window filter ---
	if cfg.HasWindow() {
		var windowSummary schema.StageSummary
		events, windowSummary = filterWindow(events, cfg)
		output.Summaries = append(output.Summaries, windowSummary)
	}
	output.Events = events

	// --- 4. Sessionization (with caching) ---
	sessions, sessionEvents, sessSummary := cachedSessionize(cfg, events, digest, mgr)
	output.Sessions = sessions
	output.SessionEvents = sessionEvents
	output.Summaries = append(output.Summaries, sessSummary)

	// --- 5. Cohort assignment ---
	cohorts, cohortEvents, cohortSummary, err := cohort.Assign(events)
	output.Summaries = append(output.Summaries, cohortSummary)
	if err != nil {
		tracker.finish(normSummary.RowsIn, len(events), schema.RunFailed)
		return output, err
	}
	output.Cohorts = cohorts
	output.CohortEvents = cohortEvents

	// --- 6. KPI aggregation ---
	kpis, kpiSummary := kpi.Aggregate(cohorts, cohortEvents, sessions, cfg)
	output.KPIs = kpis
	output.Summaries = append(output.Summaries, kpiSummary)

	// --- 7. Churn modeling ---
	churnOut, churnSummary, err := churn.Train(cohorts, cohortEvents, sessions, cfg)
	output.Summaries = append(output.Summaries, churnSummary)
	if err != nil {
		tracker.finish(normSummary.RowsIn, len(events), schema.RunFailed)
		return output, err
	}
	output.Churn = churnOut

	// --- 8. Persist outputs and finalize tracking ---
	tracker.record(kpis.Rows, churnOut.Scores)
	tracker.finish(normSummary.RowsIn, len(events), schema.RunCompleted)

	return output, nil
}

// filterWindow drops events outside the configured window and reports the
// drops as a stage of their own, so window trimming never hides rows from
// the accounting.
func filterWindow(events []schema.WatchEvent, cfg *contract.Config) ([]schema.WatchEvent, schema.StageSummary) {
	start := time.Now()
	summary := schema.StageSummary{
		Stage:  windowStageName,
		RowsIn: len(events),
		Drops:  make(map[schema.DropReason]int),
	}

	kept := make([]schema.WatchEvent, 0, len(events))
	for _, e := range events {
		if !cfg.InWindow(e.EventTime) {
			summary.Drops[schema.DropOutsideWindow]++
			continue
		}
		kept = append(kept, e)
	}

	summary.RowsOut = len(kept)
	summary.Duration = time.Since(start)
	return kept, summary
}

// runTracker carries the run-store handle and run ID through one pipeline
// run. A missing store or failed BeginRun disables tracking without failing
// the run itself.
type runTracker struct {
	store contract.RunStore
	runID int64
}

// beginRunTracking opens a run record when a run store is configured.
func beginRunTracking(cfg *contract.Config, mgr contract.CacheManager, digest string) *runTracker {
	tracker := &runTracker{store: mgr.GetRunStore()}
	if tracker.store == nil {
		return tracker
	}

	configParams := map[string]any{
		"events_path":  cfg.EventsPath,
		"gap":          cfg.InactivityGap.String(),
		"tolerance":    cfg.Tolerance,
		"horizons":     cfg.Horizons,
		"top_creators": cfg.TopCreators,
		"workers":      cfg.Workers,
	}
	runID, err := tracker.store.BeginRun(time.Now(), digest, configParams)
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		tracker.store = nil
		return tracker
	}

	tracker.runID = runID
	return tracker
}

// record persists the run's KPI rows and churn scores.
func (t *runTracker) record(rows []schema.KPIRow, scores []schema.ChurnScore) {
	if t.store == nil || t.runID <= 0 {
		return
	}
	if err := t.store.RecordKPIRows(t.runID, rows); err != nil {
		contract.LogWarn("Failed to record KPI rows", err)
	}
	if err := t.store.RecordChurnScores(t.runID, scores); err != nil {
		contract.LogWarn("Failed to record churn scores", err)
	}
}

// finish closes the run record with its terminal status.
func (t *runTracker) finish(eventsIn, eventsKept int, status schema.RunStatus) {
	if t.store == nil || t.runID <= 0 {
		return
	}
	if err := t.store.EndRun(t.runID, time.Now(), eventsIn, eventsKept, status); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}
