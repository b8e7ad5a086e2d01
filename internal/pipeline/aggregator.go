// Package pipeline turns decoded spreadsheet rows into project records and
// derives the per-project and portfolio metrics shown on screen and exported.
package pipeline

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/model"
)

// ProjectMetricsFor derives unit costs, variance and billing ratio for p.
// A zero area divides as 1; p itself is left unchanged.
func ProjectMetricsFor(p model.Project) model.ProjectMetrics {
	divisor := p.Area
	if divisor == 0 {
		divisor = 1
	}

	m := model.ProjectMetrics{
		OriginalUnitCost: p.OriginalBudget / divisor,
		ExecUnitCost:     p.ExecBudget / divisor,
		PaidUnitCost:     p.Paid / divisor,
		Variance:         p.ExecBudget - p.OriginalBudget,
	}
	m.VarianceUnitCost = m.Variance / divisor

	if p.OriginalBudget > 0 {
		m.VarianceRate = m.Variance / p.OriginalBudget * 100
	}
	if p.ExecBudget > 0 {
		m.BillRatio = p.Paid / p.ExecBudget * 100
	}
	return m
}

// Aggregate sums the project list into portfolio totals.
func Aggregate(projects []model.Project) model.PortfolioSummary {
	var s model.PortfolioSummary
	for _, p := range projects {
		s.Projects++
		s.TotalArea += p.Area
		s.TotalOriginal += p.OriginalBudget
		s.TotalExec += p.ExecBudget
		s.TotalPaid += p.Paid
	}
	if s.TotalExec > 0 {
		s.OverallProgress = s.TotalPaid / s.TotalExec * 100
	}
	return s
}

// FilterByName returns the projects whose name contains term, ignoring case.
// An empty term returns a copy of the whole list.
func FilterByName(projects []model.Project, term string) []model.Project {
	term = strings.TrimSpace(term)
	if term == "" {
		return model.Clone(projects)
	}
	result := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if containsIgnoreCase(p.Name, term) {
			result = append(result, p)
		}
	}
	return result
}

// OverBilled returns the projects whose billing exceeds the executed budget.
func OverBilled(projects []model.Project) []model.Project {
	var result []model.Project
	for _, p := range projects {
		if ProjectMetricsFor(p).OverBilled() {
			result = append(result, p)
		}
	}
	return result
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
