package tabular

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

func openXLSX(data []byte, fileName string, minColumns int) (RowReader, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{FileName: fileName, Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{FileName: fileName, Format: "xlsx", Err: ErrNoTable}
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &FormatError{FileName: fileName, Format: "xlsx", Err: err}
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	c := xlsxCells{f: f, sheet: sheet, date1904: date1904, dateStyles: map[int]bool{}}

	rows := make([][]string, len(raw))
	for i, cells := range raw {
		out := make([]string, len(cells))
		for j, v := range cells {
			out[j] = c.render(i+1, j+1, v)
		}
		rows[i] = out
	}
	return newSliceReader(rows, minColumns), nil
}

type xlsxCells struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	dateStyles map[int]bool
}

// render turns the raw stored value of a cell into the text a reader of the sheet would see.
func (c xlsxCells) render(row, col int, raw string) string {
	if raw == "" {
		return ""
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	kind, err := c.f.GetCellType(c.sheet, axis)
	if err != nil {
		return raw
	}

	switch kind {
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return "true"
		}
		return "false"
	case excelize.CellTypeError:
		return ""
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.Format("02/01/2006")
		}
		return raw
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return raw
	}

	// Unset and Number both hold a numeric value (or a cached formula result).
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	if c.isDateStyled(axis) {
		if t, err := excelize.ExcelDateToTime(v, c.date1904); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return decimalComma(v)
}

func (c xlsxCells) isDateStyled(axis string) bool {
	styleID, err := c.f.GetCellStyle(c.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := c.dateStyles[styleID]; ok {
		return isDate
	}
	isDate := false
	if style, err := c.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	c.dateStyles[styleID] = isDate
	return isDate
}

// isDateNumFmt recognizes the built-in date formats and custom formats that print a day or year.
func isDateNumFmt(id int, custom *string) bool {
	if id >= 14 && id <= 22 || id >= 45 && id <= 47 {
		return true
	}
	if custom == nil {
		return false
	}
	code := strings.ToLower(stripFormatLiterals(*custom))
	return strings.ContainsAny(code, "dy")
}

// stripFormatLiterals removes "[...]" sections and quoted text from a number format code,
// so "[Red]0.00" is not mistaken for a date.
func stripFormatLiterals(code string) string {
	var b strings.Builder
	inBracket, inQuote := false, false
	for _, r := range code {
		switch {
		case inQuote:
			inQuote = r != '"'
		case inBracket:
			inBracket = r != ']'
		case r == '"':
			inQuote = true
		case r == '[':
			inBracket = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decimalComma prints v the way the statements write numbers: no grouping, decimal comma.
func decimalComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}
