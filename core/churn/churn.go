// Package churn trains one return-probability classifier per horizon from
// cohort-aligned features. Training cohorts must strictly precede
// evaluation cohorts in calendar time, and every feature is built from
// events before the horizon day, so neither split nor features can leak
// future information.
package churn

import (
	"errors"
	"sort"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// StageName labels this stage in summaries.
const StageName = "churn"

// Train fits a model per configured horizon and scores every viewer whose
// label that horizon could observe. Horizons with too little data are
// recorded as skipped rather than failing the run; a leaking temporal
// split aborts everything.
func Train(cohorts []schema.Cohort, cohortEvents []schema.CohortEvent, sessions []schema.Session, cfg *contract.Config) (*schema.ChurnOutput, schema.StageSummary, error) {
	start := time.Now()
	output := &schema.ChurnOutput{}

	for _, horizon := range cfg.Horizons {
		vectors := BuildFeatures(cohorts, cohortEvents, sessions, horizon)
		report, scores, err := trainHorizon(vectors, horizon, cfg)

		var insufficient *contract.InsufficientDataError
		if errors.As(err, &insufficient) {
			output.Skipped = append(output.Skipped, schema.HorizonSkip{Horizon: horizon, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, stageSummary(start, cohortEvents, output), err
		}
		output.Reports = append(output.Reports, *report)
		output.Scores = append(output.Scores, scores...)
	}

	return output, stageSummary(start, cohortEvents, output), nil
}

// trainHorizon fits and evaluates one horizon's model, then scores the full
// horizon universe with it.
func trainHorizon(vectors []schema.FeatureVector, horizon int, cfg *contract.Config) (*schema.ModelReport, []schema.ChurnScore, error) {
	// --- 1. Split cohorts chronologically ---
	train, eval, err := splitByCohort(vectors, horizon, cfg.SplitDate)
	if err != nil {
		return nil, nil, err
	}

	// --- 2. Guard sample counts and class presence ---
	if len(train) < cfg.MinSamples {
		return nil, nil, &contract.InsufficientDataError{Horizon: horizon, Split: "train split", Got: len(train), Need: cfg.MinSamples}
	}
	if len(eval) < cfg.MinSamples {
		return nil, nil, &contract.InsufficientDataError{Horizon: horizon, Split: "eval split", Got: len(eval), Need: cfg.MinSamples}
	}
	trainPositives := countPositives(train)
	if trainPositives == 0 {
		return nil, nil, &contract.InsufficientDataError{Horizon: horizon, Split: "train positive class", Got: 0, Need: 1}
	}
	if trainPositives == len(train) {
		return nil, nil, &contract.InsufficientDataError{Horizon: horizon, Split: "train negative class", Got: 0, Need: 1}
	}

	// --- 3. Refuse to train across a leaking boundary ---
	if err := validateSplit(train, eval); err != nil {
		return nil, nil, err
	}

	// --- 4. Fit on train, measure on eval, score everyone ---
	model := fitLogistic(train, cfg.Epochs, cfg.LearnRate)
	precision, recall, f1, auc := model.evaluate(eval)

	report := &schema.ModelReport{
		Horizon:        horizon,
		SplitDate:      eval[0].CohortDate,
		TrainSize:      len(train),
		EvalSize:       len(eval),
		TrainPositives: trainPositives,
		EvalPositives:  countPositives(eval),
		Precision:      precision,
		Recall:         recall,
		F1:             f1,
		AUC:            auc,
		Epochs:         cfg.Epochs,
		Weights:        model.weights,
	}

	scores := make([]schema.ChurnScore, 0, len(vectors))
	for _, v := range vectors {
		p := model.predict(v.Values())
		scores = append(scores, schema.ChurnScore{
			ViewerID:          v.ViewerID,
			CohortDate:        v.CohortDate,
			Horizon:           v.Horizon,
			ReturnProbability: p,
			ChurnRisk:         1 - p,
		})
	}
	return report, scores, nil
}

// splitByCohort partitions vectors so training cohorts all precede the
// boundary and evaluation cohorts start at it. A zero boundary selects the
// date that puts roughly the first 80% of cohort dates into training.
func splitByCohort(vectors []schema.FeatureVector, horizon int, boundary time.Time) (train, eval []schema.FeatureVector, err error) {
	if boundary.IsZero() {
		dates := distinctCohortDates(vectors)
		if len(dates) < 2 {
			return nil, nil, &contract.InsufficientDataError{Horizon: horizon, Split: "eval split", Got: 0, Need: 1}
		}
		cut := max(1, len(dates)*4/5)
		boundary = dates[cut]
	}

	for _, v := range vectors {
		if v.CohortDate.Before(boundary) {
			train = append(train, v)
		} else {
			eval = append(eval, v)
		}
	}
	return train, eval, nil
}

// validateSplit confirms every training cohort strictly precedes every
// evaluation cohort. Any overlap means the model would train on cohorts it
// is later judged against.
func validateSplit(train, eval []schema.FeatureVector) error {
	var maxTrain, minEval time.Time
	for _, v := range train {
		if v.CohortDate.After(maxTrain) {
			maxTrain = v.CohortDate
		}
	}
	for i, v := range eval {
		if i == 0 || v.CohortDate.Before(minEval) {
			minEval = v.CohortDate
		}
	}
	if !maxTrain.Before(minEval) {
		return &contract.TemporalLeakageError{MaxTrain: maxTrain, MinEval: minEval}
	}
	return nil
}

// distinctCohortDates returns the sorted unique cohort dates in vectors.
func distinctCohortDates(vectors []schema.FeatureVector) []time.Time {
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)
	for _, v := range vectors {
		if _, ok := seen[v.CohortDate]; ok {
			continue
		}
		seen[v.CohortDate] = struct{}{}
		dates = append(dates, v.CohortDate)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func countPositives(vectors []schema.FeatureVector) int {
	var n int
	for _, v := range vectors {
		if v.Label {
			n++
		}
	}
	return n
}

func stageSummary(start time.Time, cohortEvents []schema.CohortEvent, output *schema.ChurnOutput) schema.StageSummary {
	return schema.StageSummary{
		Stage:    StageName,
		RowsIn:   len(cohortEvents),
		RowsOut:  len(output.Scores),
		Drops:    make(map[schema.DropReason]int),
		Duration: time.Since(start),
	}
}
