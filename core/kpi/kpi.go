// Package kpi aggregates engagement KPIs from sessionized, cohort-tagged
// events: exact-day retention per horizon, per-cohort session time and
// completion, drop-off distributions, DAU/WAU activity and creator
// contribution shares.
package kpi

import (
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// StageName labels this stage in summaries.
const StageName = "kpi"

// Aggregate computes the full KPI report over one window. All ratios carry
// the undefined marker instead of 0 or NaN when their denominator is empty.
func Aggregate(cohorts []schema.Cohort, cohortEvents []schema.CohortEvent, sessions []schema.Session, cfg *contract.Config) (*schema.KPIReport, schema.StageSummary) {
	start := time.Now()

	builder := NewReportBuilder(cfg, cohorts, cohortEvents, sessions)
	report := builder.
		IndexEvents().
		ComputeRetention().
		ComputeCohortRows().
		ComputeDropoff().
		ComputeActivity().
		ComputeCreators().
		Build()

	summary := schema.StageSummary{
		Stage:    StageName,
		RowsIn:   len(cohortEvents),
		RowsOut:  len(report.Rows),
		Drops:    make(map[schema.DropReason]int),
		Duration: time.Since(start),
	}
	return report, summary
}
