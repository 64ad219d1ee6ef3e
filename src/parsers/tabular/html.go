package tabular

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// htmlReader streams the rows of the first <table> of a document.
// Nested tables are not supported: their cells are flattened into the enclosing cell.
type htmlReader struct {
	z        *html.Tokenizer
	fileName string
	width    int

	current Row
	index   int
	rowNum  int
	done    bool
	err     error

	// openRow is set when a <tr> was consumed while finishing the previous row.
	openRow bool
	// ended is set once </table> or the end of the document was reached.
	ended bool
}

func openHTML(data []byte, fileName string, minColumns int) (RowReader, error) {
	z := html.NewTokenizer(decodeHTML(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, &FormatError{FileName: fileName, Format: "html", Err: err}
			}
			return nil, &FormatError{FileName: fileName, Format: "html", Err: ErrNoTable}
		case html.StartTagToken:
			if tok := z.Token(); tok.DataAtom == atom.Table {
				return &htmlReader{z: z, fileName: fileName, width: minColumns}, nil
			}
		}
	}
}

// decodeHTML converts a page to UTF-8 using its byte order mark or <meta> charset.
// Undeclared pages are taken as UTF-8 when they decode cleanly and as windows-1252
// otherwise; the charset sniffer only looks at the first 1024 bytes.
func decodeHTML(data []byte) io.Reader {
	enc, name, _ := charset.DetermineEncoding(data, "")
	if name == "windows-1252" && utf8.Valid(data) {
		return bytes.NewReader(data)
	}
	return enc.NewDecoder().Reader(bytes.NewReader(data))
}

func (h *htmlReader) Next() bool {
	for !h.done {
		cells, ok := h.nextRow()
		if !ok {
			h.done = true
			break
		}
		h.rowNum++
		if row, ok := pad(cells, h.width); ok {
			h.current = row
			h.index = h.rowNum
			return true
		}
	}
	h.current = nil
	return false
}

// nextRow collects the cells of the next <tr>. ok is false at the end of the table.
func (h *htmlReader) nextRow() (cells []string, ok bool) {
	if h.ended {
		return nil, false
	}
	var (
		inRow  = h.openRow
		inCell bool
		nested int
		cell   strings.Builder
	)
	h.openRow = false
	closeCell := func() {
		if inCell {
			cells = append(cells, strings.Join(strings.Fields(cell.String()), " "))
			cell.Reset()
			inCell = false
		}
	}

	for {
		tt := h.z.Next()
		switch tt {
		case html.ErrorToken:
			if err := h.z.Err(); err != nil && !errors.Is(err, io.EOF) {
				h.err = &FormatError{FileName: h.fileName, Format: "html", Err: err}
			}
			closeCell()
			h.ended = true
			return cells, inRow
		case html.TextToken:
			if inCell {
				cell.Write(h.z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := h.z.Token()
			switch tok.DataAtom {
			case atom.Table:
				nested++
			case atom.Tr:
				if nested > 0 {
					continue
				}
				if inRow {
					// Unclosed <tr>: the new one ends the current row.
					closeCell()
					h.openRow = true
					return cells, true
				}
				inRow = true
			case atom.Td, atom.Th:
				if nested > 0 {
					cell.WriteByte(' ')
					continue
				}
				if !inRow {
					inRow = true
				}
				closeCell()
				inCell = true
			case atom.Br:
				if inCell {
					cell.WriteByte(' ')
				}
			}
		case html.EndTagToken:
			tok := h.z.Token()
			switch tok.DataAtom {
			case atom.Table:
				if nested > 0 {
					nested--
					continue
				}
				closeCell()
				h.ended = true
				return cells, inRow
			case atom.Td, atom.Th:
				if nested == 0 {
					closeCell()
				} else {
					cell.WriteByte(' ')
				}
			case atom.Tr:
				if nested == 0 && inRow {
					closeCell()
					return cells, true
				}
			}
		}
	}
}

func (h *htmlReader) Row() Row   { return h.current }
func (h *htmlReader) Index() int { return h.index }
func (h *htmlReader) Err() error { return h.err }
