package pipeline

import "strings"

// Cell is one labelled value in a raw spreadsheet row.
type Cell struct {
	Label string
	Value any
}

// RawRow is a decoded spreadsheet row with its columns in sheet order.
type RawRow []Cell

// Get returns the value of the column labelled exactly label.
func (r RawRow) Get(label string) (any, bool) {
	for _, c := range r {
		if c.Label == label {
			return c.Value, true
		}
	}
	return nil, false
}

// Resolve returns the value of the first column whose label contains any of
// the candidate fragments, ignoring case. Columns are scanned in row order
// and candidates are tried within each column, so an earlier column beats a
// higher-priority fragment. It returns "" when nothing matches.
func Resolve(row RawRow, candidates []string) any {
	for _, c := range row {
		label := strings.ToLower(c.Label)
		for _, frag := range candidates {
			if frag == "" {
				continue
			}
			if strings.Contains(label, strings.ToLower(frag)) {
				return c.Value
			}
		}
	}
	return ""
}
