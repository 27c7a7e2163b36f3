package schema

import "time"

// FeatureNames lists model features in FeatureVector.Values order.
var FeatureNames = []string{
	"session_count",
	"avg_session_seconds",
	"completion_rate",
	"recency_days",
	"creator_affinity",
}

// FeatureVector holds one viewer's features for one horizon, built only
// from events strictly before the horizon day. Label marks whether the
// viewer produced any event at exactly the horizon offset.
type FeatureVector struct {
	ViewerID          string    `json:"viewer_id"`
	CohortDate        time.Time `json:"cohort_date"`
	Horizon           int       `json:"horizon"`
	SessionCount      float64   `json:"session_count"`
	AvgSessionSeconds float64   `json:"avg_session_seconds"`
	CompletionRate    float64   `json:"completion_rate"`
	RecencyDays       float64   `json:"recency_days"`      // days between last pre-horizon activity and the horizon
	CreatorAffinity   float64   `json:"creator_affinity"`  // watch-share concentration on the viewer's top creator
	Label             bool      `json:"returned"`          // returned at the horizon day
	MaxFeatureOffset  int       `json:"max_feature_offset"` // largest day offset any feature consumed
}

// Values returns the feature slice in FeatureNames order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.SessionCount,
		f.AvgSessionSeconds,
		f.CompletionRate,
		f.RecencyDays,
		f.CreatorAffinity,
	}
}

// ModelReport summarizes one horizon's trained classifier over the held-out
// evaluation cohorts.
type ModelReport struct {
	Horizon        int       `json:"horizon"`
	SplitDate      time.Time `json:"split_date"` // train cohorts < split <= eval cohorts
	TrainSize      int       `json:"train_size"`
	EvalSize       int       `json:"eval_size"`
	TrainPositives int       `json:"train_positives"`
	EvalPositives  int       `json:"eval_positives"`
	Precision      Metric    `json:"precision"`
	Recall         Metric    `json:"recall"`
	F1             Metric    `json:"f1"`
	AUC            Metric    `json:"auc"`
	Epochs         int       `json:"epochs"`
	Weights        []float64 `json:"weights"` // standardized-space coefficients, intercept last
}

// ChurnScore is one viewer's return-probability estimate at one horizon.
// ChurnRisk is always 1 - ReturnProbability.
type ChurnScore struct {
	ViewerID          string    `json:"viewer_id"`
	CohortDate        time.Time `json:"cohort_date"`
	Horizon           int       `json:"horizon"`
	ReturnProbability float64   `json:"return_probability"`
	ChurnRisk         float64   `json:"churn_risk"`
}

// ChurnOutput is the full output of the modeling stage: one report per
// horizon that trained, one skip notice per horizon that could not, and
// scores for every viewer the surviving models could grade.
type ChurnOutput struct {
	Reports []ModelReport  `json:"reports"`
	Skipped []HorizonSkip  `json:"skipped,omitempty"`
	Scores  []ChurnScore   `json:"scores"`
}

// HorizonSkip records a horizon whose model could not be trained, with the
// reason surfaced so the run report never hides it.
type HorizonSkip struct {
	Horizon int    `json:"horizon"`
	Reason  string `json:"reason"`
}
