package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/cbudget/internal/model"
)

// ErrEmptySheet is returned when the decoded sheet has no data rows.
var ErrEmptySheet = errors.New("sheet has no data rows")

// ErrNoRecognizedColumns is returned when rows were present but none of them
// produced a project.
var ErrNoRecognizedColumns = errors.New("no recognized columns")

// NoRecognizedColumnsError carries the fragments the importer looked for.
type NoRecognizedColumnsError struct {
	Rows      int
	Fragments []string
}

func (e *NoRecognizedColumnsError) Error() string {
	return fmt.Sprintf("未能讀取有效數據，請檢查 Excel 欄位名稱（需包含：%s）", strings.Join(e.Fragments, "、"))
}

func (e *NoRecognizedColumnsError) Unwrap() error { return ErrNoRecognizedColumns }

// IngestOptions tunes Ingest. Zero values select the defaults.
type IngestOptions struct {
	Labels       LabelSet
	TotalMarkers []string
	BatchTime    time.Time
}

// IngestResult holds the output of one import batch.
type IngestResult struct {
	Projects  []model.Project
	TotalRows int
	Dropped   int
	BatchTime time.Time
}

// Ingest converts decoded rows into project records. Rows without a name and
// summary rows are dropped; survivors keep their input order. Each project id
// is the batch time in milliseconds plus the row's position in the input, so
// ids never collide within a batch.
func Ingest(rows []RawRow, opts IngestOptions) (*IngestResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	labels := opts.Labels
	if labels.IsZero() {
		labels = DefaultLabels()
	}
	markers := opts.TotalMarkers
	if len(markers) == 0 {
		markers = DefaultTotalMarkers
	}
	batch := opts.BatchTime
	if batch.IsZero() {
		batch = time.Now()
	}
	base := batch.UnixMilli()

	result := &IngestResult{
		Projects:  make([]model.Project, 0, len(rows)),
		TotalRows: len(rows),
		BatchTime: batch,
	}

	for i, row := range rows {
		name := cellText(Resolve(row, labels.Name))
		if name == "" || containsAny(name, markers) {
			result.Dropped++
			continue
		}
		result.Projects = append(result.Projects, model.Project{
			ID:             model.ID(strconv.FormatInt(base+int64(i), 10)),
			Name:           name,
			Area:           Normalize(Resolve(row, labels.Area)),
			OriginalBudget: Normalize(Resolve(row, labels.Original)),
			ExecBudget:     Normalize(Resolve(row, labels.Exec)),
			Paid:           Normalize(Resolve(row, labels.Paid)),
		})
	}

	if len(result.Projects) == 0 {
		return result, &NoRecognizedColumnsError{Rows: len(rows), Fragments: labels.Fragments()}
	}
	return result, nil
}

func cellText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
