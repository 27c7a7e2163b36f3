package schema

// PipelineOutput is the full result of one pipeline run. Summaries cover
// every stage that ran; later fields stay nil past the stage that failed.
type PipelineOutput struct {
	Events        []WatchEvent
	Sessions      []Session
	SessionEvents []SessionEvent
	Cohorts       []Cohort
	CohortEvents  []CohortEvent
	KPIs          *KPIReport
	Churn         *ChurnOutput
	Summaries     []StageSummary
}

// DropRateSummary returns aggregate row accounting across all stages:
// rows entering the first stage, rows surviving the last, and total drops.
func (o *PipelineOutput) DropRateSummary() (rowsIn, rowsOut, drops int) {
	if len(o.Summaries) == 0 {
		return 0, 0, 0
	}
	rowsIn = o.Summaries[0].RowsIn
	rowsOut = o.Summaries[len(o.Summaries)-1].RowsOut
	for _, s := range o.Summaries {
		drops += s.DropCount()
	}
	return rowsIn, rowsOut, drops
}
