package fields

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var numberCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "$", "")

// ParseInt reads a whole number written with thousands separators ("1.250", "1,250").
// Empty or unparsable text yields 0.
func ParseInt(text string) int {
	s := numberCleaner.Replace(strings.TrimSpace(text))
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ParseDecimal reads a decimal in either the es-AR ("1.234,56") or the en-US ("1,234.56")
// convention. A leading sign is allowed. Empty or unparsable text yields zero.
//
// When both separators appear the rightmost one is the decimal mark. A lone comma is a
// decimal comma. A lone dot followed by exactly three digits is read as grouping, which
// is how the statements write thousands of units.
func ParseDecimal(text string) decimal.Decimal {
	s := strings.TrimPrefix(numberCleaner.Replace(strings.TrimSpace(text)), "+")
	if s == "" {
		return decimal.Zero
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 && !strings.HasPrefix(strings.TrimLeft(s, "+-"), "0.") {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
