package kpi

import (
	"sort"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// cohortOffsetKey addresses one (cohort_date, day_offset) cell.
type cohortOffsetKey struct {
	date   time.Time
	offset int
}

// playStats accumulates completion data for one cell.
type playStats struct {
	completionSum float64
	plays         int
	quartiles     map[schema.Quartile]int
}

// sessionStats accumulates session data for one cell.
type sessionStats struct {
	watchSum float64
	count    int
}

// ReportBuilder assembles a KPI report step by step. Each Compute method
// fills one section of the report and returns the builder for chaining.
type ReportBuilder struct {
	cfg          *contract.Config
	cohorts      []schema.Cohort
	cohortEvents []schema.CohortEvent
	sessions     []schema.Session
	report       *schema.KPIReport

	// Indexes collected during the build process
	returned     map[cohortOffsetKey]map[string]struct{}
	plays        map[cohortOffsetKey]*playStats
	sessionCells map[cohortOffsetKey]*sessionStats
	dayViewers   map[time.Time]map[string]struct{}
	creatorWatch map[string]float64
	globalPlays  int
	globalBins   map[schema.Quartile]int
	below25Plays int
	below50Plays int
	below75Plays int
	cohortByID   map[string]time.Time
}

// NewReportBuilder is the starting point for building a KPI report.
func NewReportBuilder(cfg *contract.Config, cohorts []schema.Cohort, cohortEvents []schema.CohortEvent, sessions []schema.Session) *ReportBuilder {
	return &ReportBuilder{
		cfg:          cfg,
		cohorts:      cohorts,
		cohortEvents: cohortEvents,
		sessions:     sessions,
		report: &schema.KPIReport{
			Horizons: append([]int(nil), cfg.Horizons...),
			TopN:     cfg.TopCreators,
		},
		returned:     make(map[cohortOffsetKey]map[string]struct{}),
		plays:        make(map[cohortOffsetKey]*playStats),
		sessionCells: make(map[cohortOffsetKey]*sessionStats),
		dayViewers:   make(map[time.Time]map[string]struct{}),
		creatorWatch: make(map[string]float64),
		globalBins:   make(map[schema.Quartile]int),
		cohortByID:   make(map[string]time.Time),
	}
}

// IndexEvents walks the event and session tables once, filling every
// accumulator the later steps read from.
func (b *ReportBuilder) IndexEvents() *ReportBuilder {
	for _, c := range b.cohorts {
		for viewerID := range c.ViewerIDs {
			b.cohortByID[viewerID] = c.CohortDate
		}
	}

	for _, ce := range b.cohortEvents {
		key := cohortOffsetKey{date: ce.CohortDate, offset: ce.DayOffset}

		if b.returned[key] == nil {
			b.returned[key] = make(map[string]struct{})
		}
		b.returned[key][ce.ViewerID] = struct{}{}

		stats := b.plays[key]
		if stats == nil {
			stats = &playStats{quartiles: make(map[schema.Quartile]int)}
			b.plays[key] = stats
		}
		ratio := ce.CompletionRatio()
		stats.completionSum += ratio
		stats.plays++
		stats.quartiles[schema.BinQuartile(ratio)]++

		b.globalPlays++
		b.globalBins[schema.BinQuartile(ratio)]++
		if ratio < 0.25 {
			b.below25Plays++
		}
		if ratio < 0.5 {
			b.below50Plays++
		}
		if ratio < 0.75 {
			b.below75Plays++
		}

		day := schema.TruncateDay(ce.EventTime)
		if b.dayViewers[day] == nil {
			b.dayViewers[day] = make(map[string]struct{})
		}
		b.dayViewers[day][ce.ViewerID] = struct{}{}

		if ce.CreatorID != "" {
			b.creatorWatch[ce.CreatorID] += ce.WatchSeconds
		}
	}

	for _, s := range b.sessions {
		cohortDate, ok := b.cohortByID[s.ViewerID]
		if !ok {
			continue
		}
		day := schema.TruncateDay(s.StartTime)
		offset := int(day.Sub(cohortDate) / (24 * time.Hour))
		key := cohortOffsetKey{date: cohortDate, offset: offset}
		cell := b.sessionCells[key]
		if cell == nil {
			cell = &sessionStats{}
			b.sessionCells[key] = cell
		}
		cell.watchSum += s.TotalWatchSeconds
		cell.count++
	}

	return b
}

// ComputeRetention fills the exact-day retention table: one cell per
// (cohort_date, horizon). An empty cohort yields undefined ratios, never 0.
func (b *ReportBuilder) ComputeRetention() *ReportBuilder {
	cells := make([]schema.RetentionCell, 0, len(b.cohorts)*len(b.cfg.Horizons))
	for _, c := range b.cohorts {
		for _, h := range b.cfg.Horizons {
			retained := len(b.returned[cohortOffsetKey{date: c.CohortDate, offset: h}])
			cell := schema.RetentionCell{
				CohortDate: c.CohortDate,
				DayOffset:  h,
				Retained:   retained,
				CohortSize: c.Size,
			}
			if c.Size > 0 {
				cell.Ratio = schema.DefinedMetric(float64(retained) / float64(c.Size))
			} else {
				cell.Ratio = schema.UndefinedMetric()
			}
			cells = append(cells, cell)
		}
	}
	b.report.Retention = cells
	return b
}

// ComputeCohortRows fills one KPI row per (cohort_date, horizon).
func (b *ReportBuilder) ComputeCohortRows() *ReportBuilder {
	retention := make(map[cohortOffsetKey]schema.Metric, len(b.report.Retention))
	for _, cell := range b.report.Retention {
		retention[cohortOffsetKey{date: cell.CohortDate, offset: cell.DayOffset}] = cell.Ratio
	}

	rows := make([]schema.KPIRow, 0, len(b.cohorts)*len(b.cfg.Horizons))
	for _, c := range b.cohorts {
		for _, h := range b.cfg.Horizons {
			key := cohortOffsetKey{date: c.CohortDate, offset: h}
			day := c.CohortDate.Add(time.Duration(h) * 24 * time.Hour)
			row := schema.KPIRow{
				CohortDate:        c.CohortDate,
				DayOffset:         h,
				CohortSize:        c.Size,
				Retained:          len(b.returned[key]),
				RetentionRatio:    retention[key],
				AvgSessionSeconds: b.avgSessionSeconds(key),
				CompletionRate:    b.completionRate(key),
				Dropoff:           b.dropoffDistribution(key),
				DAU:               len(b.dayViewers[day]),
				WAU:               b.trailingWeekViewers(day),
			}
			rows = append(rows, row)
		}
	}
	b.report.Rows = rows
	return b
}

// ComputeDropoff fills the window-wide abandonment shares.
func (b *ReportBuilder) ComputeDropoff() *ReportBuilder {
	if b.globalPlays == 0 {
		b.report.Dropoff = schema.DropoffReport{
			Below25: schema.UndefinedMetric(),
			Below50: schema.UndefinedMetric(),
			Below75: schema.UndefinedMetric(),
		}
		return b
	}
	total := float64(b.globalPlays)
	b.report.Dropoff = schema.DropoffReport{
		Below25: schema.DefinedMetric(float64(b.below25Plays) / total),
		Below50: schema.DefinedMetric(float64(b.below50Plays) / total),
		Below75: schema.DefinedMetric(float64(b.below75Plays) / total),
	}
	return b
}

// ComputeActivity fills the DAU/WAU series, one point per calendar day
// between the first and last observed activity.
func (b *ReportBuilder) ComputeActivity() *ReportBuilder {
	if len(b.dayViewers) == 0 {
		return b
	}

	days := make([]time.Time, 0, len(b.dayViewers))
	for day := range b.dayViewers {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	first, last := days[0], days[len(days)-1]

	points := make([]schema.ActivityPoint, 0, int(last.Sub(first)/(24*time.Hour))+1)
	for day := first; !day.After(last); day = day.Add(24 * time.Hour) {
		dau := len(b.dayViewers[day])
		wau := b.trailingWeekViewers(day)
		point := schema.ActivityPoint{Date: day, DAU: dau, WAU: wau}
		if wau > 0 {
			point.Ratio = schema.DefinedMetric(float64(dau) / float64(wau))
		} else {
			point.Ratio = schema.UndefinedMetric()
		}
		points = append(points, point)
	}
	b.report.Activity = points
	return b
}

// ComputeCreators fills the creator leaderboard and the cumulative share
// held by the configured top-N.
func (b *ReportBuilder) ComputeCreators() *ReportBuilder {
	var total float64
	for _, w := range b.creatorWatch {
		total += w
	}
	if total == 0 {
		b.report.TopCreatorShare = schema.UndefinedMetric()
		return b
	}

	shares := make([]schema.CreatorShare, 0, len(b.creatorWatch))
	for creatorID, watch := range b.creatorWatch {
		shares = append(shares, schema.CreatorShare{CreatorID: creatorID, WatchSeconds: watch})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].WatchSeconds != shares[j].WatchSeconds {
			return shares[i].WatchSeconds > shares[j].WatchSeconds
		}
		return shares[i].CreatorID < shares[j].CreatorID
	})

	var running float64
	for i := range shares {
		shares[i].Rank = i + 1
		share := shares[i].WatchSeconds / total
		running += share
		shares[i].Share = schema.DefinedMetric(share)
		shares[i].Cumulative = schema.DefinedMetric(running)
	}
	b.report.Creators = shares

	topN := min(b.cfg.TopCreators, len(shares))
	if topN > 0 {
		b.report.TopCreatorShare = shares[topN-1].Cumulative
	} else {
		b.report.TopCreatorShare = schema.UndefinedMetric()
	}

	// The share is window-wide, so every row carries the same value.
	for i := range b.report.Rows {
		b.report.Rows[i].CreatorShare = b.report.TopCreatorShare
	}
	return b
}

// Build finalizes the construction and returns the completed report.
func (b *ReportBuilder) Build() *schema.KPIReport {
	return b.report
}

// avgSessionSeconds returns the mean session watch time for one cell.
func (b *ReportBuilder) avgSessionSeconds(key cohortOffsetKey) schema.Metric {
	cell, ok := b.sessionCells[key]
	if !ok || cell.count == 0 {
		return schema.UndefinedMetric()
	}
	return schema.DefinedMetric(cell.watchSum / float64(cell.count))
}

// completionRate returns the mean clipped completion ratio for one cell.
func (b *ReportBuilder) completionRate(key cohortOffsetKey) schema.Metric {
	stats, ok := b.plays[key]
	if !ok || stats.plays == 0 {
		return schema.UndefinedMetric()
	}
	return schema.DefinedMetric(stats.completionSum / float64(stats.plays))
}

// dropoffDistribution returns quartile shares and the modal quartile for
// one cell. With no plays all shares are zero and the modal bin is empty.
func (b *ReportBuilder) dropoffDistribution(key cohortOffsetKey) schema.DropoffDistribution {
	stats, ok := b.plays[key]
	if !ok || stats.plays == 0 {
		return schema.DropoffDistribution{}
	}
	total := float64(stats.plays)
	dist := schema.DropoffDistribution{
		Q1: float64(stats.quartiles[schema.QuartileQ1]) / total,
		Q2: float64(stats.quartiles[schema.QuartileQ2]) / total,
		Q3: float64(stats.quartiles[schema.QuartileQ3]) / total,
		Q4: float64(stats.quartiles[schema.QuartileQ4]) / total,
	}
	best := 0
	for _, q := range schema.AllQuartiles {
		if stats.quartiles[q] > best {
			best = stats.quartiles[q]
			dist.Modal = q
		}
	}
	return dist
}

// trailingWeekViewers counts distinct viewers active in the 7 calendar
// days ending on the given day.
func (b *ReportBuilder) trailingWeekViewers(day time.Time) int {
	viewers := make(map[string]struct{})
	for d := day.Add(-6 * 24 * time.Hour); !d.After(day); d = d.Add(24 * time.Hour) {
		for v := range b.dayViewers[d] {
			viewers[v] = struct{}{}
		}
	}
	return len(viewers)
}
