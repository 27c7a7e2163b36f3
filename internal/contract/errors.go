package contract

import (
	"fmt"
	"time"
)

// StructuralError reports input the pipeline cannot process at all, such as
// a required column missing from the event table. Unlike row-level
// validation failures, which are counted and dropped, a structural error is
// fatal to the run.
type StructuralError struct {
	Subject string // column, field or invariant that failed
	Reason  string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error on %s: %s", e.Subject, e.Reason)
}

// InsufficientDataError reports a horizon whose classifier cannot be
// trained because one slice of the temporal split has too few usable
// samples. It is fatal to that horizon only; other horizons proceed.
type InsufficientDataError struct {
	Horizon int
	Split   string // which slice fell short, e.g. "train split" or "train positive class"
	Got     int
	Need    int
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for horizon D%d: %s has %d samples, need at least %d",
		e.Horizon, e.Split, e.Got, e.Need)
}

// TemporalLeakageError reports an evaluation split whose cohorts do not
// strictly follow the training cohorts in calendar time. Training on
// cohorts that overlap or postdate evaluation cohorts would leak future
// information, so this check runs before any training.
type TemporalLeakageError struct {
	MaxTrain time.Time // latest cohort date in the training split
	MinEval  time.Time // earliest cohort date in the evaluation split
}

// Error implements the error interface.
func (e *TemporalLeakageError) Error() string {
	return fmt.Sprintf("temporal leakage: evaluation cohort %s does not strictly follow training cohort %s",
		e.MinEval.Format(time.DateOnly), e.MaxTrain.Format(time.DateOnly))
}
