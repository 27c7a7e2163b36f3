package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metric is a KPI value that may be undefined when its denominator is zero.
// Undefined metrics render as "n/a" and marshal as JSON null so downstream
// consumers stay explicit about missing data instead of reading 0 or NaN.
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric wraps a concrete value.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// UndefinedMetric is the zero-denominator sentinel.
func UndefinedMetric() Metric {
	return Metric{}
}

// String formats the metric with three decimals, or "n/a" when undefined.
func (m Metric) String() string {
	if !m.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", m.Value)
}

// Percent formats the metric as a percentage, or "n/a" when undefined.
func (m Metric) Percent() string {
	if !m.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", m.Value*100)
}

// MarshalJSON emits the raw value, or null when undefined.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	if err := json.Unmarshal(data, &m.Value); err != nil {
		return err
	}
	m.Defined = true
	return nil
}

// RetentionCell is one (cohort_date, horizon) retention measurement.
// Retained counts viewers with at least one event at exactly that day offset.
type RetentionCell struct {
	CohortDate time.Time `json:"cohort_date"`
	DayOffset  int       `json:"day_offset"`
	Retained   int       `json:"retained"`
	CohortSize int       `json:"cohort_size"`
	Ratio      Metric    `json:"retention_ratio"`
}

// DropoffDistribution holds the share of plays ending in each completion
// quartile plus the modal quartile. Shares sum to 1 when any play exists.
type DropoffDistribution struct {
	Q1    float64  `json:"q1"`
	Q2    float64  `json:"q2"`
	Q3    float64  `json:"q3"`
	Q4    float64  `json:"q4"`
	Modal Quartile `json:"modal"`
}

// KPIRow aggregates engagement metrics for one (cohort_date, day_offset)
// pair. DAU/WAU are measured on the calendar day cohort_date + day_offset;
// CreatorShare is the window-wide top-N cumulative share.
type KPIRow struct {
	CohortDate        time.Time           `json:"cohort_date"`
	DayOffset         int                 `json:"day_offset"`
	CohortSize        int                 `json:"cohort_size"`
	Retained          int                 `json:"retained"`
	RetentionRatio    Metric              `json:"retention_ratio"`
	AvgSessionSeconds Metric              `json:"avg_session_seconds"`
	CompletionRate    Metric              `json:"completion_rate"`
	Dropoff           DropoffDistribution `json:"dropoff_quartiles"`
	DAU               int                 `json:"dau"`
	WAU               int                 `json:"wau"`
	CreatorShare      Metric              `json:"creator_contribution_share"`
}

// DropoffReport holds the share of plays abandoned before each completion
// threshold across the full window.
type DropoffReport struct {
	Below25 Metric `json:"below_25"`
	Below50 Metric `json:"below_50"`
	Below75 Metric `json:"below_75"`
}

// ActivityPoint is one day of distinct-viewer activity. WAU covers the
// trailing 7-day window ending on Date.
type ActivityPoint struct {
	Date  time.Time `json:"date"`
	DAU   int       `json:"dau"`
	WAU   int       `json:"wau"`
	Ratio Metric    `json:"dau_wau_ratio"`
}

// CreatorShare is one creator's contribution to total watch time.
// Cumulative is the running share from rank 1 through this creator.
type CreatorShare struct {
	Rank         int     `json:"rank"`
	CreatorID    string  `json:"creator_id"`
	WatchSeconds float64 `json:"watch_seconds"`
	Share        Metric  `json:"watch_share"`
	Cumulative   Metric  `json:"cumulative_share"`
}

// KPIReport is the full output of the aggregation stage, read-only downstream.
type KPIReport struct {
	Retention       []RetentionCell `json:"retention"`
	Rows            []KPIRow        `json:"rows"`
	Dropoff         DropoffReport   `json:"dropoff"`
	Activity        []ActivityPoint `json:"activity"`
	Creators        []CreatorShare  `json:"creators"`
	TopCreatorShare Metric          `json:"top_creator_share"` // cumulative share of the top-N creators
	Horizons        []int           `json:"horizons"`
	TopN            int             `json:"top_n"`
}

// LatestActivity returns the most recent activity point, mirroring the
// latest-day DAU/WAU ratio summary. The second value is false when the
// window holds no events.
func (r *KPIReport) LatestActivity() (ActivityPoint, bool) {
	if len(r.Activity) == 0 {
		return ActivityPoint{}, false
	}
	return r.Activity[len(r.Activity)-1], true
}
