package pipeline

import "strings"

// LabelSet lists the header fragments that identify each project field.
// Fragments within a field are tried in order for every column.
type LabelSet struct {
	Name     []string `toml:"name,omitempty"`
	Area     []string `toml:"area,omitempty"`
	Original []string `toml:"original,omitempty"`
	Exec     []string `toml:"exec,omitempty"`
	Paid     []string `toml:"paid,omitempty"`
}

// DefaultTotalMarkers mark spreadsheet summary rows. Matching is
// case-sensitive.
var DefaultTotalMarkers = []string{"合計", "小計", "總計", "Total"}

var labelTables = map[string]LabelSet{
	"zh-TW": {
		Name:     []string{"專案", "案名", "工程", "名稱"},
		Area:     []string{"建坪", "面積", "Area"},
		Original: []string{"原編", "Original"},
		Exec:     []string{"執行", "Execution"},
		Paid:     []string{"請款", "已請", "Paid"},
	},
	"en": {
		Name:     []string{"project", "name"},
		Area:     []string{"area", "floor"},
		Original: []string{"original", "baseline"},
		Exec:     []string{"execution", "exec", "revised"},
		Paid:     []string{"paid", "billed", "invoiced"},
	},
}

// DefaultLabels returns the zh-TW construction label table.
func DefaultLabels() LabelSet {
	return LabelsFor("zh-TW")
}

// LabelsFor returns the label table for a locale, falling back to zh-TW for
// unknown locales.
func LabelsFor(locale string) LabelSet {
	ls, ok := labelTables[locale]
	if !ok {
		ls = labelTables["zh-TW"]
	}
	return ls.clone()
}

// Locales lists the built-in label tables.
func Locales() []string {
	return []string{"zh-TW", "en"}
}

// Merge returns ls with every non-empty field of override replacing its own.
func (ls LabelSet) Merge(override LabelSet) LabelSet {
	out := ls.clone()
	if len(override.Name) > 0 {
		out.Name = append([]string(nil), override.Name...)
	}
	if len(override.Area) > 0 {
		out.Area = append([]string(nil), override.Area...)
	}
	if len(override.Original) > 0 {
		out.Original = append([]string(nil), override.Original...)
	}
	if len(override.Exec) > 0 {
		out.Exec = append([]string(nil), override.Exec...)
	}
	if len(override.Paid) > 0 {
		out.Paid = append([]string(nil), override.Paid...)
	}
	return out
}

// IsZero reports whether no field has fragments.
func (ls LabelSet) IsZero() bool {
	return len(ls.Name)+len(ls.Area)+len(ls.Original)+len(ls.Exec)+len(ls.Paid) == 0
}

// Fragments returns the first fragment of each field, for diagnostics.
func (ls LabelSet) Fragments() []string {
	var out []string
	for _, f := range [][]string{ls.Name, ls.Area, ls.Original, ls.Exec, ls.Paid} {
		if len(f) > 0 {
			out = append(out, f[0])
		}
	}
	return out
}

func (ls LabelSet) clone() LabelSet {
	return LabelSet{
		Name:     append([]string(nil), ls.Name...),
		Area:     append([]string(nil), ls.Area...),
		Original: append([]string(nil), ls.Original...),
		Exec:     append([]string(nil), ls.Exec...),
		Paid:     append([]string(nil), ls.Paid...),
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
