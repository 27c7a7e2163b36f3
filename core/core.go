// Package core orchestrates the rewatch analytics pipeline: normalization,
// sessionization, cohort assignment, KPI aggregation, and churn modeling.
package core

import (
	"context"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/internal/outwriter"
	"github.com/huangsam/rewatch/schema"
)

// ExecutorFunc defines the function signature for executing pipeline commands.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error

// ExecuteRun runs the full pipeline and prints the run report: stage row
// accounting, pooled retention, drop-off, activity, and churn model quality.
func ExecuteRun(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	output, duration, err := GetRunResults(ctx, cfg, mgr)
	if err != nil {
		// Surface accounting for the stages that ran before the failure.
		if output != nil && len(output.Summaries) > 0 {
			_ = outwriter.PrintStageSummaries(output.Summaries, cfg)
		}
		return err
	}
	return outwriter.PrintRunReport(output, cfg, duration)
}

// GetRunResults runs the full pipeline against the configured events file
// and returns the raw output.
func GetRunResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.PipelineOutput, time.Duration, error) {
	start := time.Now()
	source := contract.NewLocalFileSource()
	output, err := RunPipeline(ctx, cfg, source, mgr)
	return output, time.Since(start), err
}

// ExecuteSessions prints the top sessions ranked by total watch time.
func ExecuteSessions(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	sessions, duration, err := GetSessionResults(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintSessions(sessions, cfg, duration)
}

// GetSessionResults runs the pipeline and returns the top sessions by
// total watch time, capped at the configured result limit.
func GetSessionResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) ([]schema.Session, time.Duration, error) {
	start := time.Now()
	source := contract.NewLocalFileSource()
	output, err := RunPipeline(ctx, cfg, source, mgr)
	if err != nil {
		return nil, time.Since(start), err
	}
	ranked := rankSessions(output.Sessions, cfg.ResultLimit)
	return ranked, time.Since(start), nil
}

// ExecuteRetention prints the cohort retention table.
func ExecuteRetention(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	report, duration, err := GetKPIReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintRetention(report, cfg, duration)
}

// ExecuteKPIs prints the per-cohort, per-day KPI rows.
func ExecuteKPIs(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	report, duration, err := GetKPIReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintKPIs(report, cfg, duration)
}

// ExecuteActivity prints the daily DAU/WAU activity series.
func ExecuteActivity(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	report, duration, err := GetKPIReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintActivity(report, cfg, duration)
}

// ExecuteCreators prints the creator watch-time contribution table.
func ExecuteCreators(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	report, duration, err := GetKPIReport(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintCreators(report, cfg, duration)
}

// GetKPIReport runs the pipeline and returns the aggregated KPI report.
// The retention, kpis, activity, and creators commands all read from it.
func GetKPIReport(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.KPIReport, time.Duration, error) {
	start := time.Now()
	source := contract.NewLocalFileSource()
	output, err := RunPipeline(ctx, cfg, source, mgr)
	if err != nil {
		return nil, time.Since(start), err
	}
	return output.KPIs, time.Since(start), nil
}

// ExecuteChurn prints per-horizon model reports and the riskiest viewers.
func ExecuteChurn(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	churnOut, duration, err := GetChurnResults(ctx, cfg, mgr)
	if err != nil {
		return err
	}
	return outwriter.PrintChurn(churnOut, cfg, duration)
}

// GetChurnResults runs the pipeline and returns the churn output with
// scores ranked by churn risk, capped at the configured result limit.
// Horizon reports and skip notices are never truncated.
func GetChurnResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.ChurnOutput, time.Duration, error) {
	start := time.Now()
	source := contract.NewLocalFileSource()
	output, err := RunPipeline(ctx, cfg, source, mgr)
	if err != nil {
		return nil, time.Since(start), err
	}
	churnOut := output.Churn
	churnOut.Scores = rankChurnScores(churnOut.Scores, cfg.ResultLimit)
	return churnOut, time.Since(start), nil
}
