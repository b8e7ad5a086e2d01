package pipeline

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/cbudget/internal/model"
)

// DefaultSheetName is the worksheet name used for exports.
const DefaultSheetName = "預算執行監控報表"

// Export column labels, in output order.
const (
	ColName             = "專案名稱"
	ColArea             = "總建坪面積"
	ColOriginal         = "原編預算(萬)"
	ColOriginalUnitCost = "原編預算造價"
	ColVariance         = "差異金額(萬)"
	ColVarianceUnitCost = "差異造價"
	ColVarianceRate     = "差異率(%)"
	ColExec             = "執行預算(萬)"
	ColExecUnitCost     = "執行預算造價"
	ColPaid             = "請款累計(萬)"
	ColPaidUnitCost     = "已請款造價"
	ColBillRatio        = "請款佔比(%)"
)

// ExportField is one labelled, formatted value.
type ExportField struct {
	Label string
	Value string
}

// ExportRow is one project's export record with its fields in column order.
type ExportRow []ExportField

// Map returns the row as a label-to-value mapping.
func (r ExportRow) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, f := range r {
		m[f.Label] = f.Value
	}
	return m
}

// Values returns the row's values in column order.
func (r ExportRow) Values() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Value
	}
	return out
}

// ExportHeaders returns the export column labels in order.
func ExportHeaders() []string {
	return []string{
		ColName, ColArea,
		ColOriginal, ColOriginalUnitCost,
		ColVariance, ColVarianceUnitCost, ColVarianceRate,
		ColExec, ColExecUnitCost,
		ColPaid, ColPaidUnitCost, ColBillRatio,
	}
}

// ExportRows builds one export row per project. Stored figures are written
// as-is; derived figures are fixed to one decimal place.
func ExportRows(projects []model.Project) []ExportRow {
	rows := make([]ExportRow, 0, len(projects))
	for _, p := range projects {
		m := ProjectMetricsFor(p)
		rows = append(rows, ExportRow{
			{ColName, p.Name},
			{ColArea, rawNumber(p.Area)},
			{ColOriginal, rawNumber(p.OriginalBudget)},
			{ColOriginalUnitCost, fixed1(m.OriginalUnitCost)},
			{ColVariance, fixed1(m.Variance)},
			{ColVarianceUnitCost, fixed1(m.VarianceUnitCost)},
			{ColVarianceRate, fixed1(m.VarianceRate)},
			{ColExec, rawNumber(p.ExecBudget)},
			{ColExecUnitCost, fixed1(m.ExecUnitCost)},
			{ColPaid, rawNumber(p.Paid)},
			{ColPaidUnitCost, fixed1(m.PaidUnitCost)},
			{ColBillRatio, fixed1(m.BillRatio)},
		})
	}
	return rows
}

// ExportFileName returns the dated default file name for an export.
func ExportFileName(day time.Time, ext string) string {
	return "工程預算監控_" + day.Format("2006-01-02") + "." + ext
}

func rawNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// fixed1 formats v with exactly one decimal. Overflowed unit costs are
// written as +Inf or -Inf.
func fixed1(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(1)
}
