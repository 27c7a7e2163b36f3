package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/outwriter"
	"github.com/huangsam/rewatch/schema"
)

// ExecuteCompare runs the pipeline over the base and target cohort windows
// and prints the KPI deltas between them.
func ExecuteCompare(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()

	// Print single header for the comparison
	outwriter.LogCompareHeader(cfg)

	result, _, err := GetCompareResults(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintComparison(result, cfg, time.Since(start))
}

// GetCompareResults runs one pipeline per comparison window and pools the
// KPIs of each side. Retention deltas are pooled per horizon: total retained
// over total cohort size, so large cohorts weigh more than small ones.
func GetCompareResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (schema.ComparisonResult, time.Duration, error) {
	start := time.Now()
	suppressCtx := WithSuppressHeader(ctx)

	baseOut, err := runCompareWindow(suppressCtx, cfg, cfg.BaseStart, cfg.BaseEnd, mgr)
	if err != nil {
		return schema.ComparisonResult{}, time.Since(start), fmt.Errorf("base window failed: %w", err)
	}
	targetOut, err := runCompareWindow(suppressCtx, cfg, cfg.TargetStart, cfg.TargetEnd, mgr)
	if err != nil {
		return schema.ComparisonResult{}, time.Since(start), fmt.Errorf("target window failed: %w", err)
	}

	result := schema.ComparisonResult{
		Base:    windowSnapshot(baseOut, cfg.BaseStart, cfg.BaseEnd),
		Target:  windowSnapshot(targetOut, cfg.TargetStart, cfg.TargetEnd),
		Details: buildComparisonDetails(baseOut, targetOut, cfg),
	}
	return result, time.Since(start), nil
}

// runCompareWindow runs the pipeline for one side of the comparison.
func runCompareWindow(ctx context.Context, cfg *contract.Config, start, end time.Time, mgr contract.CacheManager) (*schema.PipelineOutput, error) {
	cfgWindow := cfg.CloneWithWindow(start, end)
	source := contract.NewLocalFileSource()
	return RunPipeline(ctx, cfgWindow, source, mgr)
}

// windowSnapshot summarizes one side's population for the report header.
func windowSnapshot(output *schema.PipelineOutput, start, end time.Time) schema.ComparisonWindow {
	viewers := 0
	for _, c := range output.Cohorts {
		viewers += c.Size
	}
	return schema.ComparisonWindow{
		Start:   start,
		End:     end,
		Viewers: viewers,
		Cohorts: len(output.Cohorts),
	}
}

// buildComparisonDetails lines up both sides' pooled metrics. Retention is
// compared per configured horizon, followed by window-wide engagement.
func buildComparisonDetails(base, target *schema.PipelineOutput, cfg *contract.Config) []schema.ComparisonDetail {
	details := make([]schema.ComparisonDetail, 0, len(cfg.Horizons)+2)

	for _, h := range cfg.Horizons {
		details = append(details, newComparisonDetail(
			fmt.Sprintf("%s retention", schema.HorizonLabel(h)),
			schema.PooledRetention(base.KPIs.Retention, h),
			schema.PooledRetention(target.KPIs.Retention, h),
		))
	}

	details = append(details, newComparisonDetail(
		"completion rate",
		meanCompletion(base.Events),
		meanCompletion(target.Events),
	))
	details = append(details, newComparisonDetail(
		"avg session seconds",
		meanSessionSeconds(base.Sessions),
		meanSessionSeconds(target.Sessions),
	))

	return details
}

// newComparisonDetail pairs both sides of one metric. The delta is only
// meaningful when both sides are defined.
func newComparisonDetail(metric string, base, target schema.Metric) schema.ComparisonDetail {
	detail := schema.ComparisonDetail{Metric: metric, Base: base, Target: target}
	if base.Defined && target.Defined {
		detail.Delta = target.Value - base.Value
		detail.Defined = true
	}
	return detail
}

// meanSessionSeconds averages total watch seconds across sessions.
func meanSessionSeconds(sessions []schema.Session) schema.Metric {
	if len(sessions) == 0 {
		return schema.UndefinedMetric()
	}
	total := 0.0
	for _, s := range sessions {
		total += s.TotalWatchSeconds
	}
	return schema.DefinedMetric(total / float64(len(sessions)))
}
