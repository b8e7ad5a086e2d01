// Package model defines the construction budget records shared by every layer.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Project holds one construction project's budget and billing figures.
// Monetary fields share one unit (萬).
type Project struct {
	ID             ID      `json:"id"`
	Name           string  `json:"name"`
	Area           float64 `json:"area"`
	OriginalBudget float64 `json:"originalBudget"`
	ExecBudget     float64 `json:"execBudget"`
	Paid           float64 `json:"paid"`
}

// ID identifies a project within an import batch. Older documents stored it
// as a JSON number, so decoding accepts either form.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// Clone returns a copy of the list that shares no backing array with it.
func Clone(projects []Project) []Project {
	if projects == nil {
		return nil
	}
	out := make([]Project, len(projects))
	copy(out, projects)
	return out
}
