package fields

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02/01/06",
}

// Spreadsheet serial days: 1 is 1900-01-01 and 2958465 is 9999-12-31.
const (
	minSerialDay = 1
	maxSerialDay = 2958465
)

var serialEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseDate reads a calendar date in day-first notation, falling back to a spreadsheet
// serial day count. Text that is neither yields the zero time; check it with IsUnknownDate.
// Any time-of-day component is dropped.
func ParseDate(text string) time.Time {
	s := strings.TrimSpace(text)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t)
		}
	}
	if t, ok := parseSerialDate(s); ok {
		return t
	}
	return time.Time{}
}

// IsUnknownDate reports whether t is the sentinel ParseDate returns for unreadable text.
func IsUnknownDate(t time.Time) bool {
	return t.IsZero()
}

// parseSerialDate converts a spreadsheet day count. The format counts 1900-02-29, which
// never existed, so serial n is n-2 days after 1900-01-01 for every modern date.
func parseSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return time.Time{}, false
	}
	days := int(f)
	if days < minSerialDay || days > maxSerialDay {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, days-2), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
