// Package tabular reads the first table of a statement file (xlsx, legacy xls or an
// HTML export) as rows of cell text.
package tabular

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DefaultMinColumns is the width of the widest broker layout we know.
const DefaultMinColumns = 14

// Row is one table row. It is always at least as wide as the reader's minimum column count.
type Row []string

// Cell returns the trimmed text at i, or "" when i is out of range.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// RowReader walks the rows of a table once, in source order, skipping rows with no text.
//
//	for rr.Next() {
//		row := rr.Row()
//	}
//	if err := rr.Err(); err != nil { ... }
type RowReader interface {
	Next() bool
	Row() Row
	// Index is the 1-based physical row number of the current row in the source.
	Index() int
	Err() error
}

// FormatError reports a file that could not be decoded as the container its name implies.
type FormatError struct {
	FileName string
	Format   string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot read %q as %s: %v", e.FileName, e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ErrNoTable is wrapped by a FormatError when the container holds no sheet or table.
var ErrNoTable = errors.New("no table found")

// SupportedExtensions lists the file extensions Open understands.
func SupportedExtensions() []string {
	return []string{".xlsx", ".xls", ".html", ".htm"}
}

// Open reads the whole of r and returns a reader over the first sheet or table.
// The decoder is picked from the extension of fileName; a .xls file that actually
// contains HTML (as several brokers export) is read as HTML.
// Read failures are returned as is; decoding failures as *FormatError.
func Open(r io.Reader, fileName string, minColumns int) (RowReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", fileName, err)
	}
	if minColumns < 0 {
		minColumns = 0
	}

	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".xlsx":
		return openXLSX(data, fileName, minColumns)
	case ".xls":
		if looksLikeHTML(data) {
			return openHTML(data, fileName, minColumns)
		}
		return openXLS(data, fileName, minColumns)
	case ".html", ".htm":
		return openHTML(data, fileName, minColumns)
	default:
		return nil, &FormatError{FileName: fileName, Format: "table", Err: fmt.Errorf("unsupported extension %q", ext)}
	}
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<")) ||
		bytes.Contains(head, []byte("<table")) ||
		bytes.Contains(head, []byte("<html"))
}

// pad trims every cell and widens cells to width. ok is false when no cell has text.
func pad(cells []string, width int) (Row, bool) {
	ok := false
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
		if cells[i] != "" {
			ok = true
		}
	}
	if !ok {
		return nil, false
	}
	for len(cells) < width {
		cells = append(cells, "")
	}
	return Row(cells), true
}

// sliceReader serves rows that were decoded up front.
type sliceReader struct {
	rows    [][]string
	width   int
	pos     int
	current Row
	index   int
}

func newSliceReader(rows [][]string, width int) *sliceReader {
	return &sliceReader{rows: rows, width: width, pos: -1}
}

func (s *sliceReader) Next() bool {
	for s.pos+1 < len(s.rows) {
		s.pos++
		if row, ok := pad(s.rows[s.pos], s.width); ok {
			s.current = row
			s.index = s.pos + 1
			return true
		}
	}
	s.current = nil
	return false
}

func (s *sliceReader) Row() Row   { return s.current }
func (s *sliceReader) Index() int { return s.index }
func (s *sliceReader) Err() error { return nil }
