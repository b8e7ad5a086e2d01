package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingFloat matches the longest float literal at the start of a cell,
// so "120坪" reads as 120 and "1e3x" as 1000.
var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Normalize coerces a spreadsheet cell into a finite number. Numeric values
// pass through unchanged; anything else is read as text with thousands
// separators removed. Unreadable input yields 0.
func Normalize(raw any) float64 {
	var v float64
	switch n := raw.(type) {
	case nil:
		return 0
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int8:
		v = float64(n)
	case int16:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint8:
		v = float64(n)
	case uint16:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	case json.Number:
		v = parseLeading(n.String())
	case string:
		v = parseLeading(n)
	default:
		v = parseLeading(fmt.Sprint(n))
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseLeading(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// out of range
		return 0
	}
	return v
}
