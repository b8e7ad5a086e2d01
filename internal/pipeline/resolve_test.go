package pipeline

import "testing"

func TestResolve_ColumnOrderWins(t *testing.T) {
	row := RawRow{
		{Label: "原編造價", Value: "first"},
		{Label: "原編預算", Value: "second"},
	}
	if got := Resolve(row, []string{"原編"}); got != "first" {
		t.Errorf("Resolve = %v, want first", got)
	}

	// A lower-priority fragment in an earlier column still wins.
	row = RawRow{
		{Label: "Original Budget", Value: 1.0},
		{Label: "原編預算", Value: 2.0},
	}
	if got := Resolve(row, []string{"原編", "Original"}); got != 1.0 {
		t.Errorf("Resolve = %v, want 1", got)
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	row := RawRow{{Label: "FLOOR AREA", Value: "30"}}
	if got := Resolve(row, []string{"area"}); got != "30" {
		t.Errorf("Resolve = %v, want 30", got)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	row := RawRow{{Label: "備註", Value: "x"}}
	if got := Resolve(row, []string{"專案"}); got != "" {
		t.Errorf("Resolve = %#v, want empty string", got)
	}
	if got := Resolve(nil, []string{"專案"}); got != "" {
		t.Errorf("Resolve(nil) = %#v, want empty string", got)
	}
}

func TestRawRowGet(t *testing.T) {
	row := RawRow{{Label: "a", Value: 1}, {Label: "b", Value: 2}}
	if v, ok := row.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}
	if _, ok := row.Get("c"); ok {
		t.Error("Get(c) found a column")
	}
}
