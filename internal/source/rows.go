// Package source decodes spreadsheet files into labelled rows and encodes
// exports back into spreadsheets.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/theirongolddev/cbudget/internal/pipeline"
)

var plainNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// emptyHeader labels columns whose header cell is blank.
const emptyHeader = "__EMPTY"

// ReadFile decodes the spreadsheet at path, choosing the format by
// extension. sheet selects an xlsx worksheet; empty means the first one.
func ReadFile(path, sheet string) ([]pipeline.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadXLSX(f, sheet)
	case ".csv", ".txt":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format %q", filepath.Ext(path))
	}
}

// labelRows turns a header row plus data rows into labelled rows. Blank
// headers become __EMPTY, __EMPTY_1, ...; repeated headers get _1, _2, ...
// suffixes. Blank cells are left out of their row and rows with no values
// are skipped.
func labelRows(records [][]string) []pipeline.RawRow {
	if len(records) == 0 {
		return nil
	}
	labels := headerLabels(records[0])

	var rows []pipeline.RawRow
	for _, rec := range records[1:] {
		var row pipeline.RawRow
		for i, cell := range rec {
			if i >= len(labels) || strings.TrimSpace(cell) == "" {
				continue
			}
			row = append(row, pipeline.Cell{Label: labels[i], Value: cell})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func headerLabels(header []string) []string {
	seen := make(map[string]int, len(header))
	labels := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = emptyHeader
		}
		label := h
		if n, dup := seen[h]; dup {
			label = h + "_" + strconv.Itoa(n)
		}
		seen[h]++
		labels[i] = label
	}
	return labels
}

// cellValue returns a numeric cell value when s is a plain number, so
// spreadsheet consumers see numbers rather than text.
func cellValue(s string) any {
	if s == "" {
		return s
	}
	if !plainNumber.MatchString(s) {
		return s
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}
