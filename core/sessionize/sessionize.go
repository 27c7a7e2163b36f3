// Package sessionize reconstructs viewing sessions from validated watch
// events. Work partitions cleanly by viewer, so the package fans out per
// viewer across a bounded worker pool and reassembles results in
// deterministic viewer order.
package sessionize

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// StageName labels this stage in summaries.
const StageName = "sessionize"

// dedupKey identifies one logical play event. Re-delivered rows from
// upstream log replays share all three parts.
type dedupKey struct {
	viewerID string
	videoID  string
	unixNano int64
}

// viewerResult carries one viewer's sessions back from the worker pool.
type viewerResult struct {
	viewerID string
	sessions []schema.Session
	events   []schema.SessionEvent
}

// Sessionize groups events into per-viewer sessions split at the configured
// inactivity gap. Duplicate (viewer, video, event_time) tuples are dropped
// before sorting and counted in the summary. Events need not arrive sorted;
// ties on event_time keep their input order.
func Sessionize(events []schema.WatchEvent, cfg *contract.Config) ([]schema.Session, []schema.SessionEvent, schema.StageSummary) {
	start := time.Now()
	summary := schema.StageSummary{
		Stage:  StageName,
		RowsIn: len(events),
		Drops:  make(map[schema.DropReason]int),
	}

	// --- 1. Deduplicate, keeping the first occurrence ---
	deduped, duplicates := dedupEvents(events)
	if duplicates > 0 {
		summary.Drops[schema.DropDuplicate] = duplicates
	}

	// --- 2. Partition by viewer, preserving input order within each ---
	byViewer := make(map[string][]schema.WatchEvent)
	for _, e := range deduped {
		byViewer[e.ViewerID] = append(byViewer[e.ViewerID], e)
	}
	viewers := make([]string, 0, len(byViewer))
	for v := range byViewer {
		viewers = append(viewers, v)
	}
	sort.Strings(viewers)

	// --- 3. Fan out per viewer ---
	viewerCh := make(chan string, len(viewers))
	resultCh := make(chan viewerResult, len(viewers))
	var wg sync.WaitGroup

	for range max(1, cfg.Workers) {
		wg.Go(func() {
			for v := range viewerCh {
				sessions, sessionEvents := buildViewerSessions(v, byViewer[v], cfg.InactivityGap)
				resultCh <- viewerResult{viewerID: v, sessions: sessions, events: sessionEvents}
			}
		})
	}
	for _, v := range viewers {
		viewerCh <- v
	}
	close(viewerCh)
	wg.Wait()
	close(resultCh)

	// --- 4. Reassemble in viewer order ---
	byResult := make(map[string]viewerResult, len(viewers))
	for r := range resultCh {
		byResult[r.viewerID] = r
	}
	sessions := make([]schema.Session, 0, len(deduped))
	sessionEvents := make([]schema.SessionEvent, 0, len(deduped))
	for _, v := range viewers {
		sessions = append(sessions, byResult[v].sessions...)
		sessionEvents = append(sessionEvents, byResult[v].events...)
	}

	summary.RowsOut = len(sessionEvents)
	summary.Duration = time.Since(start)
	return sessions, sessionEvents, summary
}

// dedupEvents removes repeated (viewer, video, event_time) tuples and
// reports how many were discarded.
func dedupEvents(events []schema.WatchEvent) ([]schema.WatchEvent, int) {
	seen := make(map[dedupKey]struct{}, len(events))
	deduped := make([]schema.WatchEvent, 0, len(events))
	duplicates := 0
	for _, e := range events {
		key := dedupKey{viewerID: e.ViewerID, videoID: e.VideoID, unixNano: e.EventTime.UnixNano()}
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, e)
	}
	return deduped, duplicates
}

// buildViewerSessions walks one viewer's events chronologically and splits
// sessions where the gap between consecutive events exceeds the threshold.
// A gap exactly at the threshold stays in the same session.
func buildViewerSessions(viewerID string, events []schema.WatchEvent, gap time.Duration) ([]schema.Session, []schema.SessionEvent) {
	if len(events) == 0 {
		return nil, nil
	}

	sorted := make([]schema.WatchEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTime.Before(sorted[j].EventTime)
	})

	var sessions []schema.Session
	sessionEvents := make([]schema.SessionEvent, 0, len(sorted))

	var acc *sessionAccumulator
	for _, e := range sorted {
		if acc == nil || e.EventTime.Sub(acc.lastTime) > gap {
			if acc != nil {
				sessions = append(sessions, acc.finish())
			}
			acc = newSessionAccumulator(fmt.Sprintf("%s-%d", viewerID, len(sessions)+1), e)
		}
		acc.add(e)
		sessionEvents = append(sessionEvents, schema.SessionEvent{
			WatchEvent:   e,
			SessionID:    acc.sessionID,
			SessionStart: acc.startTime,
		})
	}
	sessions = append(sessions, acc.finish())

	return sessions, sessionEvents
}

// sessionAccumulator gathers per-session aggregates during the walk.
type sessionAccumulator struct {
	sessionID     string
	viewerID      string
	startTime     time.Time
	lastTime      time.Time
	totalWatch    float64
	videoCount    int
	videos        map[string]struct{}
	creators      map[string]struct{}
	completionSum float64
}

func newSessionAccumulator(sessionID string, first schema.WatchEvent) *sessionAccumulator {
	return &sessionAccumulator{
		sessionID: sessionID,
		viewerID:  first.ViewerID,
		startTime: first.EventTime,
		lastTime:  first.EventTime,
		videos:    make(map[string]struct{}),
		creators:  make(map[string]struct{}),
	}
}

func (a *sessionAccumulator) add(e schema.WatchEvent) {
	a.lastTime = e.EventTime
	a.totalWatch += e.WatchSeconds
	a.videoCount++
	a.videos[e.VideoID] = struct{}{}
	if e.CreatorID != "" {
		a.creators[e.CreatorID] = struct{}{}
	}
	a.completionSum += e.CompletionRatio()
}

func (a *sessionAccumulator) finish() schema.Session {
	return schema.Session{
		SessionID:         a.sessionID,
		ViewerID:          a.viewerID,
		StartTime:         a.startTime,
		EndTime:           a.lastTime,
		TotalWatchSeconds: a.totalWatch,
		VideoCount:        a.videoCount,
		UniqueVideos:      len(a.videos),
		UniqueCreators:    len(a.creators),
		MeanCompletion:    a.completionSum / float64(a.videoCount),
	}
}
