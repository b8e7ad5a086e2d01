package source

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/theirongolddev/cbudget/internal/pipeline"
)

func labels(row pipeline.RawRow) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.Label
	}
	return out
}

func TestLabelRows_Headers(t *testing.T) {
	rows := labelRows([][]string{
		{"專案", "", "金額", "金額", "", "金額"},
		{"A", "x", "1", "2", "y", "3"},
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	got := strings.Join(labels(rows[0]), ",")
	want := "專案,__EMPTY,金額,金額_1,__EMPTY_1,金額_2"
	if got != want {
		t.Errorf("labels = %s, want %s", got, want)
	}
}

func TestLabelRows_SkipsBlankCellsAndRows(t *testing.T) {
	rows := labelRows([][]string{
		{"專案", "原編預算", "原編造價"},
		{"A", "", "900"},
		{"", "  ", ""},
		{},
		{"B", "100"},
	})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// With the blank budget cell left out, the resolver falls through to
	// the next matching column.
	if v := pipeline.Resolve(rows[0], []string{"原編"}); v != "900" {
		t.Errorf("Resolve = %v, want 900", v)
	}
	if len(rows[1]) != 2 {
		t.Errorf("short row has %d cells, want 2", len(rows[1]))
	}
}

func TestReadCSV(t *testing.T) {
	data := "\ufeff專案名稱,建坪,原編預算,執行預算,請款累計\n" +
		"\"A棟\",100,\"1,000\",1100,550\n" +
		"合計,100,1000,1100,550\n"

	rows, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][0].Label != "專案名稱" {
		t.Errorf("BOM not stripped: %q", rows[0][0].Label)
	}

	res, err := pipeline.Ingest(rows, pipeline.IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Projects) != 1 || res.Projects[0].OriginalBudget != 1000 {
		t.Errorf("unexpected projects: %+v", res.Projects)
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	headers := []string{"專案名稱", "建坪", "原編預算", "執行預算", "請款累計"}
	body := [][]string{
		{"A棟", "100", "1000", "1100", "550"},
		{"B棟", "0", "500", "450", "600"},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, "", headers, body); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	names, err := SheetNames(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != pipeline.DefaultSheetName {
		t.Errorf("sheets = %v", names)
	}

	rows, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}

	res, err := pipeline.Ingest(rows, pipeline.IngestOptions{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	b := res.Projects[1]
	if b.Name != "B棟" || b.ExecBudget != 450 || b.Paid != 600 {
		t.Errorf("unexpected project: %+v", b)
	}
}

func TestWriteXLSX_NumericCells(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, "s", []string{"name", "n"}, [][]string{{"NaN", "12.5"}}); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	typ, err := f.GetCellType("s", "B2")
	if err != nil {
		t.Fatal(err)
	}
	if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
		t.Errorf("B2 type = %v, want number", typ)
	}
	name, _ := f.GetCellValue("s", "A2")
	if name != "NaN" {
		t.Errorf("A2 = %q, want text NaN", name)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, pipeline.ExportHeaders()[:2], [][]string{{"A", "1"}}); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadCSV(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := rows[0].Get(pipeline.ColName); !ok || v != "A" {
		t.Errorf("round trip lost name: %v", rows[0])
	}
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "budget.csv")
	if err := os.WriteFile(path, []byte("專案,建坪\nA,1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows", len(rows))
	}

	if _, err := ReadFile(filepath.Join(dir, "budget.pdf"), ""); err == nil {
		t.Error("expected error for missing unsupported file")
	}
}
