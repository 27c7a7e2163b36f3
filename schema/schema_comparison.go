package schema

import "time"

// ComparisonDetail holds base and target values for one metric with their delta.
type ComparisonDetail struct {
	Metric string  `json:"metric"`
	Base   Metric  `json:"base"`
	Target Metric  `json:"target"`
	Delta  float64 `json:"delta"`   // target - base; meaningful only when Defined
	Defined bool   `json:"defined"` // both sides were defined
}

// ComparisonWindow labels one side of a comparison.
type ComparisonWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Viewers int       `json:"viewers"`
	Cohorts int       `json:"cohorts"`
}

// ComparisonResult compares cohort KPIs between two date windows of the
// same event log. Retention deltas are pooled per horizon (sum of retained
// over sum of cohort sizes).
type ComparisonResult struct {
	Base    ComparisonWindow   `json:"base"`
	Target  ComparisonWindow   `json:"target"`
	Details []ComparisonDetail `json:"details"`
}
