package model

// PortfolioSummary holds totals over the current project list. It is
// recomputed from the list on demand and never stored.
type PortfolioSummary struct {
	Projects        int
	TotalArea       float64
	TotalOriginal   float64
	TotalExec       float64
	TotalPaid       float64
	OverallProgress float64 // paid / exec * 100
}

// ProjectMetrics holds the figures derived from a single project.
type ProjectMetrics struct {
	OriginalUnitCost float64
	ExecUnitCost     float64
	PaidUnitCost     float64

	Variance         float64 // exec - original
	VarianceUnitCost float64
	VarianceRate     float64 // percent of original

	BillRatio float64 // paid as percent of exec
}

// OverBilled reports whether billing has passed the executed budget.
func (m ProjectMetrics) OverBilled() bool {
	return m.BillRatio > 100
}
