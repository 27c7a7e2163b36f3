package churn

import (
	"sort"
	"time"

	"github.com/huangsam/rewatch/schema"
)

// viewerHistory accumulates one viewer's pre-horizon activity while the
// event and session tables are walked.
type viewerHistory struct {
	cohortDate    time.Time
	plays         int
	completionSum float64
	totalWatch    float64
	creatorWatch  map[string]float64
	lastOffset    int
	maxOffset     int
	sessionCount  int
	sessionWatch  float64
	returned      bool
}

// BuildFeatures derives one vector per viewer for the given horizon, using
// only events and sessions with a day offset strictly below the horizon.
// Events at exactly the horizon offset contribute the label and nothing
// else; later events are ignored entirely. Viewers whose cohort is too
// recent for the window to reach the horizon day are excluded because
// their label cannot be observed.
func BuildFeatures(cohorts []schema.Cohort, cohortEvents []schema.CohortEvent, sessions []schema.Session, horizon int) []schema.FeatureVector {
	// --- 1. Locate the last day the window observed ---
	var lastDay time.Time
	for _, ce := range cohortEvents {
		day := schema.TruncateDay(ce.EventTime)
		if day.After(lastDay) {
			lastDay = day
		}
	}

	// --- 2. Accumulate per-viewer history below the horizon ---
	histories := make(map[string]*viewerHistory)
	for _, c := range cohorts {
		for viewerID := range c.ViewerIDs {
			histories[viewerID] = &viewerHistory{
				cohortDate:   c.CohortDate,
				creatorWatch: make(map[string]float64),
			}
		}
	}

	for _, ce := range cohortEvents {
		h, ok := histories[ce.ViewerID]
		if !ok {
			continue
		}
		if ce.DayOffset == horizon {
			h.returned = true
		}
		if ce.DayOffset >= horizon {
			continue
		}
		h.plays++
		h.completionSum += ce.CompletionRatio()
		h.totalWatch += ce.WatchSeconds
		if ce.CreatorID != "" {
			h.creatorWatch[ce.CreatorID] += ce.WatchSeconds
		}
		if ce.DayOffset > h.lastOffset {
			h.lastOffset = ce.DayOffset
		}
		if ce.DayOffset > h.maxOffset {
			h.maxOffset = ce.DayOffset
		}
	}

	for _, s := range sessions {
		h, ok := histories[s.ViewerID]
		if !ok {
			continue
		}
		offset := int(schema.TruncateDay(s.StartTime).Sub(h.cohortDate) / (24 * time.Hour))
		if offset < 0 || offset >= horizon {
			continue
		}
		h.sessionCount++
		h.sessionWatch += s.TotalWatchSeconds
		if offset > h.maxOffset {
			h.maxOffset = offset
		}
	}

	// --- 3. Emit vectors for label-observable viewers, in stable order ---
	viewerIDs := make([]string, 0, len(histories))
	for viewerID := range histories {
		viewerIDs = append(viewerIDs, viewerID)
	}
	sort.Strings(viewerIDs)

	vectors := make([]schema.FeatureVector, 0, len(viewerIDs))
	for _, viewerID := range viewerIDs {
		h := histories[viewerID]
		horizonDay := h.cohortDate.Add(time.Duration(horizon) * 24 * time.Hour)
		if horizonDay.After(lastDay) {
			continue
		}
		vectors = append(vectors, schema.FeatureVector{
			ViewerID:          viewerID,
			CohortDate:        h.cohortDate,
			Horizon:           horizon,
			SessionCount:      float64(h.sessionCount),
			AvgSessionSeconds: h.avgSessionSeconds(),
			CompletionRate:    h.completionRate(),
			RecencyDays:       h.recencyDays(horizon),
			CreatorAffinity:   h.creatorAffinity(),
			Label:             h.returned,
			MaxFeatureOffset:  h.maxOffset,
		})
	}

	sort.SliceStable(vectors, func(i, j int) bool {
		if !vectors[i].CohortDate.Equal(vectors[j].CohortDate) {
			return vectors[i].CohortDate.Before(vectors[j].CohortDate)
		}
		return vectors[i].ViewerID < vectors[j].ViewerID
	})
	return vectors
}

// avgSessionSeconds returns the mean watch time across pre-horizon sessions.
func (h *viewerHistory) avgSessionSeconds() float64 {
	if h.sessionCount == 0 {
		return 0
	}
	return h.sessionWatch / float64(h.sessionCount)
}

// completionRate returns the mean clipped completion across pre-horizon plays.
func (h *viewerHistory) completionRate() float64 {
	if h.plays == 0 {
		return 0
	}
	return h.completionSum / float64(h.plays)
}

// recencyDays returns how many days before the horizon the viewer was last
// active. Cohort-day-only viewers sit at the full horizon distance.
func (h *viewerHistory) recencyDays(horizon int) float64 {
	if h.plays == 0 {
		return float64(horizon)
	}
	return float64(horizon - h.lastOffset)
}

// creatorAffinity returns the watch-time share of the viewer's top creator.
func (h *viewerHistory) creatorAffinity() float64 {
	if h.totalWatch <= 0 {
		return 0
	}
	var best float64
	for _, w := range h.creatorWatch {
		if w > best {
			best = w
		}
	}
	return best / h.totalWatch
}
