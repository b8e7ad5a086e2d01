package cli

import (
	"math"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1000, "1,000"},
		{1234.56, "1,234.6"},
		{1234567.04, "1,234,567"},
		{-2500.25, "-2,500.3"},
		{0.05, "0.1"},
		{-0.04, "0"},
		{999.95, "1,000"},
		{math.Inf(1), "∞"},
		{math.Inf(-1), "-∞"},
		{math.NaN(), "-"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSignedPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{10, "+10%"},
		{-2.5, "-2.5%"},
		{0, "0%"},
		{0.01, "0%"},
		{12.345, "+12.3%"},
		{math.Inf(1), "+∞%"},
	}
	for _, tt := range tests {
		if got := FormatSignedPercent(tt.in); got != tt.want {
			t.Errorf("FormatSignedPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatSignedAmount(100); got != "+100" {
		t.Errorf("FormatSignedAmount(100) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{-1234567, "-1,234,567"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("abcdefghijklmnopqrstu"); got != "abcdefgh...rstu" {
		t.Errorf("MaskSecret = %q", got)
	}
	if got := MaskSecret("abc"); got != "****" {
		t.Errorf("MaskSecret = %q", got)
	}
}

func TestRenderTableAlignsWideText(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"專案", "金額"},
		Rows: [][]string{
			{"A棟", "1,000"},
			{"---"},
			{"總計", "2,000"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	w := lipgloss.Width(lines[0])
	for i, l := range lines {
		if lipgloss.Width(l) != w {
			t.Errorf("line %d width %d, want %d: %q", i, lipgloss.Width(l), w, l)
		}
	}
}

func TestRenderProgressBar(t *testing.T) {
	out := RenderProgressBar(50, 10)
	if !strings.Contains(out, "50%") {
		t.Errorf("RenderProgressBar = %q", out)
	}
	if RenderProgressBar(50, 0) != "" {
		t.Error("zero width should render nothing")
	}
}
