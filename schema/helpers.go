package schema

import (
	"fmt"
	"time"
)

// TruncateDay truncates a timestamp to UTC midnight of its calendar day.
// Cohort dates and activity dates always pass through here so that day
// arithmetic never mixes time zones.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a day as YYYY-MM-DD for table and map keys.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// HorizonLabel formats a day offset as D1, D7, D30.
func HorizonLabel(h int) string {
	return fmt.Sprintf("D%d", h)
}

// FormatWatchTime renders seconds as a compact human duration, e.g. "4m05s".
func FormatWatchTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// PooledRetention aggregates retention cells for one horizon into a single
// ratio: total retained over total cohort size. Undefined when no cohort
// contributes a nonzero denominator.
func PooledRetention(cells []RetentionCell, horizon int) Metric {
	retained, size := 0, 0
	for _, c := range cells {
		if c.DayOffset != horizon {
			continue
		}
		retained += c.Retained
		size += c.CohortSize
	}
	if size == 0 {
		return UndefinedMetric()
	}
	return DefinedMetric(float64(retained) / float64(size))
}

// BinQuartile maps a completion ratio to its drop-off quartile.
// Ratios are clipped into [0, 1] before binning.
func BinQuartile(ratio float64) Quartile {
	switch {
	case ratio < 0.25:
		return QuartileQ1
	case ratio < 0.5:
		return QuartileQ2
	case ratio < 0.75:
		return QuartileQ3
	default:
		return QuartileQ4
	}
}
