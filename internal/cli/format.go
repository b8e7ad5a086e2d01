// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount formats a figure with thousands separators and at most one
// decimal place, rounding half away from zero.
// e.g., 1234.56 -> "1,234.6", 1000 -> "1,000"
func FormatAmount(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	d := decimal.NewFromFloat(v).Round(1)
	s := d.Abs().String()

	intPart, frac, _ := strings.Cut(s, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return d.String()
	}
	out := FormatNumber(n)
	if frac != "" {
		out += "." + frac
	}
	if d.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// FormatPercent formats a value already expressed in percent.
// e.g., 50 -> "50%", 12.345 -> "12.3%"
func FormatPercent(pct float64) string {
	return FormatAmount(pct) + "%"
}

// FormatSignedPercent formats a percent with an explicit sign, except for
// zero. e.g., 10 -> "+10%", -2.5 -> "-2.5%", 0 -> "0%"
func FormatSignedPercent(pct float64) string {
	s := FormatPercent(pct)
	if positive(pct) {
		return "+" + s
	}
	return s
}

// FormatSignedAmount formats an amount with an explicit sign, except for zero.
func FormatSignedAmount(v float64) string {
	s := FormatAmount(v)
	if positive(v) {
		return "+" + s
	}
	return s
}

// positive reports whether v is still above zero after rounding to one
// decimal.
func positive(v float64) bool {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v > 0
	}
	return decimal.NewFromFloat(v).Round(1).Sign() > 0
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// MaskSecret shows only the ends of a credential.
func MaskSecret(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
