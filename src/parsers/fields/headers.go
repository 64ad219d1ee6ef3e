package fields

import (
	"fmt"
	"strings"
)

// ExpectedHeader is one column a broker layout expects in its header row.
type ExpectedHeader struct {
	Label    string
	Position int
}

// Token is the part of the label used for matching: the text before the first
// '.', ':' or '(' ("Nro. de Mov." -> "Nro").
func (h ExpectedHeader) Token() string {
	label := strings.TrimSpace(h.Label)
	if i := strings.IndexAny(label, ".:("); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}

// HeaderCheck is the verdict of ValidateHeader.
type HeaderCheck struct {
	Matches  int
	Expected int
	Missing  []string
}

// OK reports whether at least half of the expected headers were found.
func (c HeaderCheck) OK() bool {
	return c.Matches >= c.Expected/2
}

func (c HeaderCheck) String() string {
	return fmt.Sprintf("header matched %d of %d expected columns (missing: %s)",
		c.Matches, c.Expected, strings.Join(c.Missing, ", "))
}

// ValidateHeader counts how many expected labels appear in row. A label matches when
// the cell at its declared position, or one column either side, contains its token
// ignoring case and accents.
func ValidateHeader(row []string, expected []ExpectedHeader) HeaderCheck {
	check := HeaderCheck{Expected: len(expected)}
	for _, h := range expected {
		if headerPresent(row, h) {
			check.Matches++
		} else {
			check.Missing = append(check.Missing, h.Label)
		}
	}
	return check
}

func headerPresent(row []string, h ExpectedHeader) bool {
	token := h.Token()
	if token == "" {
		return false
	}
	for _, pos := range []int{h.Position, h.Position - 1, h.Position + 1} {
		if pos < 0 || pos >= len(row) {
			continue
		}
		if containsFolded(row[pos], token) {
			return true
		}
	}
	return false
}
