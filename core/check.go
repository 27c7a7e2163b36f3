package core

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// ExecuteCheck runs the check command for CI/CD gating. It runs the full
// pipeline, evaluates the configured gates against its output, and returns
// a non-zero exit code if any gate fails.
func ExecuteCheck(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()

	result, _, err := GetCheckResults(ctx, cfg, mgr)
	if err != nil {
		return err
	}

	printCheckResult(result, cfg, time.Since(start))

	if !result.Passed {
		violations := 0
		for _, item := range result.Items {
			if !item.Passed {
				violations++
			}
		}
		fmt.Printf("%d violation(s) found\n", violations)
		os.Exit(1)
	}
	return nil
}

// GetCheckResults runs the pipeline and evaluates every configured gate.
func GetCheckResults(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.CheckResult, time.Duration, error) {
	start := time.Now()
	source := contract.NewLocalFileSource()
	output, err := RunPipeline(WithSuppressHeader(ctx), cfg, source, mgr)
	if err != nil {
		return nil, time.Since(start), err
	}
	return buildCheckResult(output, cfg), time.Since(start), nil
}

// buildCheckResult evaluates the configured gates against one run's output.
func buildCheckResult(output *schema.PipelineOutput, cfg *contract.Config) *schema.CheckResult {
	result := &schema.CheckResult{Passed: true}

	// --- 1. Retention floors per horizon ---
	horizons := make([]int, 0, len(cfg.RetentionFloors))
	for h := range cfg.RetentionFloors {
		horizons = append(horizons, h)
	}
	sort.Ints(horizons)
	for _, h := range horizons {
		actual := schema.PooledRetention(output.KPIs.Retention, h)
		name := fmt.Sprintf("%s retention", schema.HorizonLabel(h))
		result.Items = append(result.Items, newCheckItem(name, cfg.RetentionFloors[h], actual, schema.CheckAtLeast))
	}

	// --- 2. Aggregate drop rate across all stages ---
	if cfg.MaxDropRate < 1.0 {
		rowsIn, _, drops := output.DropRateSummary()
		actual := schema.UndefinedMetric()
		if rowsIn > 0 {
			actual = schema.DefinedMetric(float64(drops) / float64(rowsIn))
		}
		result.Items = append(result.Items, newCheckItem("drop rate", cfg.MaxDropRate, actual, schema.CheckAtMost))
	}

	// --- 3. Window-wide completion rate ---
	if cfg.MinCompletion > 0.0 {
		actual := meanCompletion(output.Events)
		result.Items = append(result.Items, newCheckItem("completion rate", cfg.MinCompletion, actual, schema.CheckAtLeast))
	}

	for _, item := range result.Items {
		if !item.Passed {
			result.Passed = false
			break
		}
	}
	return result
}

// newCheckItem evaluates one gate. An undefined actual value fails the gate;
// a silent pass would hide missing data from CI.
func newCheckItem(name string, threshold float64, actual schema.Metric, direction schema.CheckDirection) schema.CheckItem {
	item := schema.CheckItem{
		Name:      name,
		Threshold: threshold,
		Actual:    actual,
		Direction: direction,
	}
	if actual.Defined {
		switch direction {
		case schema.CheckAtLeast:
			item.Passed = actual.Value >= threshold
		case schema.CheckAtMost:
			item.Passed = actual.Value <= threshold
		}
	}
	return item
}

// meanCompletion averages completion ratios over the window's events.
func meanCompletion(events []schema.WatchEvent) schema.Metric {
	if len(events) == 0 {
		return schema.UndefinedMetric()
	}
	total := 0.0
	for _, e := range events {
		total += e.CompletionRatio()
	}
	return schema.DefinedMetric(total / float64(len(events)))
}

// printCheckResult prints the check result in a concise format suitable for CI/CD.
func printCheckResult(result *schema.CheckResult, cfg *contract.Config, duration time.Duration) {
	printCheckHeader(result, cfg, duration)

	if result.Passed {
		if cfg.UseEmojis {
			fmt.Printf("✅ All gates passed\n\n")
		} else {
			fmt.Printf("All gates passed\n\n")
		}
	} else {
		violations := 0
		for _, item := range result.Items {
			if !item.Passed {
				violations++
			}
		}
		if cfg.UseEmojis {
			fmt.Printf("❌ Policy check failed: %d violation(s) found\n\n", violations)
		} else {
			fmt.Printf("Policy check failed: %d violation(s) found\n\n", violations)
		}
	}

	printCheckItems(result.Items)
}

// printCheckHeader prints the common header information for check results.
func printCheckHeader(result *schema.CheckResult, cfg *contract.Config, duration time.Duration) {
	fmt.Println("Policy Check Results:")

	// Define labels and values for dynamic padding
	labels := []string{"Events:", "Window:", "Gates:"}
	values := []any{
		cfg.EventsPath,
		cfg.DescribeWindow(),
		len(result.Items),
	}

	// Find the longest label for consistent padding
	maxLabelLen := 0
	for _, label := range labels {
		if len(label) > maxLabelLen {
			maxLabelLen = len(label)
		}
	}

	// Print each label-value pair with consistent padding
	for i, label := range labels {
		fmt.Printf("  %-*s %v\n", maxLabelLen+1, label, values[i])
	}
	fmt.Println()

	fmt.Printf("Checked %d gates in %v\n\n", len(result.Items), duration)
}

// printCheckItems prints each gate with padded names so the values line up.
func printCheckItems(items []schema.CheckItem) {
	maxNameLen := 0
	for _, item := range items {
		if len(item.Name) > maxNameLen {
			maxNameLen = len(item.Name)
		}
	}

	for _, item := range items {
		op := ">="
		if item.Direction == schema.CheckAtMost {
			op = "<="
		}
		status := "pass"
		if !item.Passed {
			status = "FAIL"
		}
		fmt.Printf("  %-*s %s %s %.3f [%s]\n", maxNameLen+1, item.Name+":", item.Actual, op, item.Threshold, status)
	}
	fmt.Println()
}
