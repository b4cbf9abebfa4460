// Package amount parses and formats order totals.
package amount

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalid is returned when a total cannot be parsed or is negative.
var ErrInvalid = errors.New("invalid amount")

// Parse accepts "1234.50", "1,234.50" (thousands separators) and "1234,50"
// (comma decimal). A lone comma followed by one or two digits is a decimal mark.
func Parse(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalid
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		if i := strings.LastIndex(s, ","); len(s)-i-1 <= 2 {
			s = s[:i] + "." + s[i+1:]
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrInvalid
	}
	return Round(f), nil
}

// Round rounds to two decimal places.
func Round(f float64) float64 {
	return math.Round(f*100) / 100
}

// Format renders f with exactly two decimals, the form used in cache keys.
func Format(f float64) string {
	return strconv.FormatFloat(Round(f), 'f', 2, 64)
}
