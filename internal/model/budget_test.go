package model

import (
	"encoding/json"
	"testing"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`{"id":"abc"}`, "abc"},
		{`{"id":1717171717171}`, "1717171717171"},
		{`{"id":12.5}`, "12.5"},
		{`{"id":null}`, ""},
	}
	for _, tt := range tests {
		var p Project
		if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.in, err)
		}
		if p.ID != tt.want {
			t.Errorf("Unmarshal(%s) id = %q, want %q", tt.in, p.ID, tt.want)
		}
	}
}

func TestIDUnmarshal_Rejects(t *testing.T) {
	var p Project
	if err := json.Unmarshal([]byte(`{"id":true}`), &p); err == nil {
		t.Error("expected error for boolean id")
	}
}

func TestProjectJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Project{ID: "1", Name: "A", Area: 2, OriginalBudget: 3, ExecBudget: 4, Paid: 5})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"1","name":"A","area":2,"originalBudget":3,"execBudget":4,"paid":5}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestClone(t *testing.T) {
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
	src := []Project{{Name: "a"}}
	dst := Clone(src)
	dst[0].Name = "b"
	if src[0].Name != "a" {
		t.Error("Clone shares storage")
	}
}
