// Package outwriter has output and writer logic.
package outwriter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"golang.org/x/term"
)

// LogPipelineHeader prints a concise, 2-line header for each pipeline run.
func LogPipelineHeader(cfg *contract.Config) {
	// Line 1: The event source and the sessionization gap
	if cfg.UseEmojis {
		fmt.Printf("🎬 Events: %s (gap: %s)\n", eventSourceName(cfg), cfg.InactivityGap)
	} else {
		fmt.Printf("Events: %s (gap: %s)\n", eventSourceName(cfg), cfg.InactivityGap)
	}

	// Line 2: The event window under analysis
	if cfg.UseEmojis {
		fmt.Printf("📅 Window: %s\n", cfg.DescribeWindow())
	} else {
		fmt.Printf("Window: %s\n", cfg.DescribeWindow())
	}
}

// LogCompareHeader prints a concise, 2-line header for comparison runs.
func LogCompareHeader(cfg *contract.Config) {
	if cfg.UseEmojis {
		fmt.Printf("🎬 Events: %s (gap: %s)\n", eventSourceName(cfg), cfg.InactivityGap)
	} else {
		fmt.Printf("Events: %s (gap: %s)\n", eventSourceName(cfg), cfg.InactivityGap)
	}

	baseWindow := formatCompareWindow(cfg.BaseStart, cfg.BaseEnd)
	targetWindow := formatCompareWindow(cfg.TargetStart, cfg.TargetEnd)
	if cfg.UseEmojis {
		fmt.Printf("📊 Comparing: %s vs %s\n", baseWindow, targetWindow)
	} else {
		fmt.Printf("Comparing: %s vs %s\n", baseWindow, targetWindow)
	}
}

// eventSourceName shortens the events path to its base name for headers.
func eventSourceName(cfg *contract.Config) string {
	name := filepath.Base(cfg.EventsPath)
	if name == "." || name == string(filepath.Separator) {
		return cfg.EventsPath
	}
	return name
}

// formatCompareWindow renders one side of a comparison as a compact range.
func formatCompareWindow(start, end time.Time) string {
	return fmt.Sprintf("%s..%s", start.Format(contract.DateFormat), end.Format(contract.DateFormat))
}

// GetMaxTableIDWidth calculates the maximum width for viewer, session and
// creator IDs in table output based on terminal width.
func GetMaxTableIDWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		// Get terminal width
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for the fixed numeric columns with table formatting
	baseWidth := 55 // Rank + dates + counters + ratios with borders/padding

	// Calculate available space for the ID column
	available := termWidth - baseWidth
	if available < 12 {
		// Minimum reasonable ID width
		return 12
	}
	if available > 36 {
		// Maximum ID width to prevent overly wide tables
		return 36
	}
	return available
}
