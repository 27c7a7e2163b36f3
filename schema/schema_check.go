package schema

// CheckDirection says which side of the threshold passes.
type CheckDirection string

// All check directions supported.
const (
	CheckAtLeast CheckDirection = "at_least" // actual >= threshold passes
	CheckAtMost  CheckDirection = "at_most"  // actual <= threshold passes
)

// CheckItem is one gate evaluated by the check command.
type CheckItem struct {
	Name      string         `json:"name"`
	Threshold float64        `json:"threshold"`
	Actual    Metric         `json:"actual"`
	Direction CheckDirection `json:"direction"`
	Passed    bool           `json:"passed"`
}

// CheckResult holds the results of a policy check over one pipeline run.
// An undefined actual value fails its gate; a silent pass would hide
// missing data from CI.
type CheckResult struct {
	Passed bool        `json:"passed"`
	Items  []CheckItem `json:"items"`
}
