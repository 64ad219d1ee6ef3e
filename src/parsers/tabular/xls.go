package tabular

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"
)

// BIFF8 record types the decoder reads. Everything else is skipped.
const (
	recFormula    = 0x0006
	recEOF        = 0x000A
	recDateMode   = 0x0022
	recContinue   = 0x003C
	recBoundSheet = 0x0085
	recMulRK      = 0x00BD
	recXF         = 0x00E0
	recSST        = 0x00FC
	recLabelSST   = 0x00FD
	recNumber     = 0x0203
	recLabel      = 0x0204
	recBoolErr    = 0x0205
	recString     = 0x0207
	recRK         = 0x027E
	recFormat     = 0x041E
	recBOF        = 0x0809
)

const (
	biff8Version = 0x0600
	// Number format ids from 164 up are defined by the workbook itself.
	firstCustomNumFmt = 164
)

var (
	errTruncated = errors.New("truncated record")
	le           = binary.LittleEndian
)

// openXLS decodes a legacy BIFF8 workbook and reads its first worksheet. Cells are
// rendered by their stored type and number format, the same way openXLSX does.
func openXLS(data []byte, fileName string, minColumns int) (RowReader, error) {
	stream, err := workbookStream(data)
	if err != nil {
		return nil, &FormatError{FileName: fileName, Format: "xls", Err: err}
	}
	wb, err := readGlobals(stream)
	if err != nil {
		return nil, &FormatError{FileName: fileName, Format: "xls", Err: err}
	}
	rows, err := wb.readSheet(stream)
	if err != nil {
		return nil, &FormatError{FileName: fileName, Format: "xls", Err: err}
	}
	return newSliceReader(rows, minColumns), nil
}

// workbookStream extracts the BIFF stream from the compound document container.
func workbookStream(data []byte) ([]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "Workbook":
			return io.ReadAll(entry)
		case "Book":
			return nil, errors.New("BIFF5 workbooks are not supported")
		}
	}
	return nil, ErrNoTable
}

type record struct {
	typ  uint16
	data []byte
}

// recordAt reads the record starting at off and returns the offset of the next one.
func recordAt(stream []byte, off int) (record, int, error) {
	if off < 0 || off+4 > len(stream) {
		return record{}, off, errTruncated
	}
	typ := le.Uint16(stream[off:])
	end := off + 4 + int(le.Uint16(stream[off+2:]))
	if end > len(stream) {
		return record{}, off, errTruncated
	}
	return record{typ: typ, data: stream[off+4 : end]}, end, nil
}

// withContinues gathers rec and the CONTINUE records that follow it at next.
func withContinues(stream []byte, rec record, next int) ([][]byte, int) {
	segs := [][]byte{rec.data}
	for {
		cont, after, err := recordAt(stream, next)
		if err != nil || cont.typ != recContinue {
			return segs, next
		}
		segs = append(segs, cont.data)
		next = after
	}
}

type xlsWorkbook struct {
	date1904    bool
	formats     map[uint16]string
	xfFormats   []uint16
	sst         []string
	sheetOffset int
}

func readGlobals(stream []byte) (*xlsWorkbook, error) {
	bof, off, err := recordAt(stream, 0)
	if err != nil {
		return nil, err
	}
	if bof.typ != recBOF || len(bof.data) < 2 {
		return nil, errors.New("missing BOF record")
	}
	if v := le.Uint16(bof.data); v != biff8Version {
		return nil, fmt.Errorf("unsupported BIFF version %#04x", v)
	}

	wb := &xlsWorkbook{formats: map[uint16]string{}, sheetOffset: -1}
	for {
		rec, next, err := recordAt(stream, off)
		if err != nil {
			return nil, err
		}
		switch rec.typ {
		case recDateMode:
			wb.date1904 = len(rec.data) >= 2 && le.Uint16(rec.data) == 1
		case recFormat:
			if len(rec.data) < 2 {
				return nil, errTruncated
			}
			r := &biffReader{segs: [][]byte{rec.data[2:]}}
			code, err := r.unicodeString()
			if err != nil {
				return nil, fmt.Errorf("format record: %w", err)
			}
			wb.formats[le.Uint16(rec.data)] = code
		case recXF:
			if len(rec.data) < 4 {
				return nil, errTruncated
			}
			wb.xfFormats = append(wb.xfFormats, le.Uint16(rec.data[2:]))
		case recBoundSheet:
			if len(rec.data) < 6 {
				return nil, errTruncated
			}
			// Byte 5 is the sheet type; 0 is a worksheet.
			if rec.data[5] == 0 && wb.sheetOffset < 0 {
				wb.sheetOffset = int(le.Uint32(rec.data))
			}
		case recSST:
			var segs [][]byte
			segs, next = withContinues(stream, rec, next)
			if wb.sst, err = readSST(segs); err != nil {
				return nil, fmt.Errorf("shared strings: %w", err)
			}
		case recEOF:
			if wb.sheetOffset < 0 {
				return nil, ErrNoTable
			}
			return wb, nil
		}
		off = next
	}
}

func readSST(segs [][]byte) ([]string, error) {
	r := &biffReader{segs: segs}
	if _, err := r.uint32(); err != nil {
		return nil, err
	}
	unique, err := r.uint32()
	if err != nil {
		return nil, err
	}
	// Every string takes at least three bytes, which bounds a corrupt count.
	size := 0
	for _, s := range segs {
		size += len(s)
	}
	if int64(unique) > int64(size/3) {
		return nil, fmt.Errorf("%d strings declared in %d bytes", unique, size)
	}
	out := make([]string, 0, unique)
	for i := uint32(0); i < unique; i++ {
		s, err := r.unicodeString()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// sheetGrid collects cells by position; BIFF stores them in no guaranteed order.
type sheetGrid map[int]map[int]string

func (g sheetGrid) set(row, col int, text string) {
	if text == "" {
		return
	}
	if g[row] == nil {
		g[row] = map[int]string{}
	}
	g[row][col] = text
}

func (g sheetGrid) rows() [][]string {
	last := -1
	for r := range g {
		last = max(last, r)
	}
	out := make([][]string, last+1)
	for r, cols := range g {
		width := 0
		for c := range cols {
			width = max(width, c+1)
		}
		cells := make([]string, width)
		for c, text := range cols {
			cells[c] = text
		}
		out[r] = cells
	}
	return out
}

func (wb *xlsWorkbook) readSheet(stream []byte) ([][]string, error) {
	bof, off, err := recordAt(stream, wb.sheetOffset)
	if err != nil {
		return nil, err
	}
	if bof.typ != recBOF {
		return nil, errors.New("worksheet does not start with a BOF record")
	}

	grid := sheetGrid{}
	// A formula with a text result is followed by a STRING record holding it.
	pendingRow, pendingCol := -1, -1
	for {
		rec, next, err := recordAt(stream, off)
		if err != nil {
			return nil, err
		}
		d := rec.data

		switch rec.typ {
		case recEOF:
			return grid.rows(), nil
		case recNumber:
			if len(d) < 14 {
				return nil, errTruncated
			}
			row, col, xf := cellHeader(d)
			grid.set(row, col, wb.renderNumber(math.Float64frombits(le.Uint64(d[6:])), xf))
		case recRK:
			if len(d) < 10 {
				return nil, errTruncated
			}
			row, col, xf := cellHeader(d)
			grid.set(row, col, wb.renderNumber(rkValue(le.Uint32(d[6:])), xf))
		case recMulRK:
			if len(d) < 6 {
				return nil, errTruncated
			}
			row, first := int(le.Uint16(d)), int(le.Uint16(d[2:]))
			for i := 0; 4+6*i+6 <= len(d)-2; i++ {
				p := 4 + 6*i
				grid.set(row, first+i, wb.renderNumber(rkValue(le.Uint32(d[p+2:])), le.Uint16(d[p:])))
			}
		case recLabelSST:
			if len(d) < 10 {
				return nil, errTruncated
			}
			row, col, _ := cellHeader(d)
			idx := le.Uint32(d[6:])
			if int64(idx) >= int64(len(wb.sst)) {
				return nil, fmt.Errorf("shared string %d out of range", idx)
			}
			grid.set(row, col, wb.sst[idx])
		case recLabel:
			if len(d) < 6 {
				return nil, errTruncated
			}
			row, col, _ := cellHeader(d)
			text, err := (&biffReader{segs: [][]byte{d[6:]}}).unicodeString()
			if err != nil {
				return nil, fmt.Errorf("label at row %d: %w", row+1, err)
			}
			grid.set(row, col, text)
		case recBoolErr:
			if len(d) < 8 {
				return nil, errTruncated
			}
			row, col, _ := cellHeader(d)
			// Error cells render empty.
			if d[7] == 0 {
				grid.set(row, col, boolText(d[6] != 0))
			}
		case recFormula:
			if len(d) < 20 {
				return nil, errTruncated
			}
			row, col, xf := cellHeader(d)
			result := d[6:14]
			if result[6] != 0xFF || result[7] != 0xFF {
				grid.set(row, col, wb.renderNumber(math.Float64frombits(le.Uint64(result)), xf))
				break
			}
			switch result[0] {
			case 0:
				pendingRow, pendingCol = row, col
			case 1:
				grid.set(row, col, boolText(result[2] != 0))
			}
		case recString:
			if pendingRow < 0 {
				break
			}
			var segs [][]byte
			segs, next = withContinues(stream, rec, next)
			text, err := (&biffReader{segs: segs}).unicodeString()
			if err != nil {
				return nil, fmt.Errorf("formula result at row %d: %w", pendingRow+1, err)
			}
			grid.set(pendingRow, pendingCol, text)
			pendingRow, pendingCol = -1, -1
		}
		off = next
	}
}

func cellHeader(d []byte) (row, col int, xf uint16) {
	return int(le.Uint16(d)), int(le.Uint16(d[2:])), le.Uint16(d[4:])
}

// renderNumber prints date-formatted numbers as dd/mm/yyyy and any other number as
// plain decimal text.
func (wb *xlsWorkbook) renderNumber(v float64, xf uint16) string {
	if wb.isDateXF(xf) {
		if t, err := excelize.ExcelDateToTime(v, wb.date1904); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return decimalComma(v)
}

func (wb *xlsWorkbook) isDateXF(xf uint16) bool {
	if int(xf) >= len(wb.xfFormats) {
		return false
	}
	id := wb.xfFormats[xf]
	var custom *string
	if code, ok := wb.formats[id]; ok && id >= firstCustomNumFmt {
		custom = &code
	}
	return isDateNumFmt(int(id), custom)
}

// rkValue decodes the compressed RK number encoding.
func rkValue(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// biffReader reads a record body that may continue in CONTINUE records. Character
// data that crosses into a new segment restarts with an option byte giving its width.
type biffReader struct {
	segs [][]byte
	seg  int
	pos  int
}

func (r *biffReader) bytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for n > 0 {
		if r.pos >= len(r.segs[r.seg]) {
			if r.seg+1 >= len(r.segs) {
				return nil, errTruncated
			}
			r.seg, r.pos = r.seg+1, 0
			continue
		}
		take := min(n, len(r.segs[r.seg])-r.pos)
		out = append(out, r.segs[r.seg][r.pos:r.pos+take]...)
		r.pos += take
		n -= take
	}
	return out, nil
}

func (r *biffReader) skip(n int) error {
	for n > 0 {
		if r.pos >= len(r.segs[r.seg]) {
			if r.seg+1 >= len(r.segs) {
				return errTruncated
			}
			r.seg, r.pos = r.seg+1, 0
			continue
		}
		take := min(n, len(r.segs[r.seg])-r.pos)
		r.pos += take
		n -= take
	}
	return nil
}

func (r *biffReader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *biffReader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return le.Uint16(b), nil
}

func (r *biffReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

// chars reads cch characters, stored as UTF-16 when wide and as Latin-1 otherwise.
func (r *biffReader) chars(cch int, wide bool) (string, error) {
	units := make([]uint16, 0, min(cch, 1<<16))
	for cch > 0 {
		if r.pos >= len(r.segs[r.seg]) {
			if r.seg+1 >= len(r.segs) {
				return "", errTruncated
			}
			r.seg, r.pos = r.seg+1, 0
			flags, err := r.uint8()
			if err != nil {
				return "", err
			}
			wide = flags&0x01 != 0
			continue
		}
		seg := r.segs[r.seg]
		width := 1
		if wide {
			width = 2
		}
		n := min(cch, (len(seg)-r.pos)/width)
		if n == 0 {
			return "", errTruncated
		}
		for i := 0; i < n; i++ {
			if wide {
				units = append(units, le.Uint16(seg[r.pos:]))
			} else {
				units = append(units, uint16(seg[r.pos]))
			}
			r.pos += width
		}
		cch -= n
	}
	return string(utf16.Decode(units)), nil
}

// unicodeString reads a length-prefixed string with its option byte, skipping any
// rich-text runs and phonetic data that follow the characters.
func (r *biffReader) unicodeString() (string, error) {
	cch, err := r.uint16()
	if err != nil {
		return "", err
	}
	flags, err := r.uint8()
	if err != nil {
		return "", err
	}
	var runs, ext int
	if flags&0x08 != 0 {
		n, err := r.uint16()
		if err != nil {
			return "", err
		}
		runs = int(n)
	}
	if flags&0x04 != 0 {
		n, err := r.uint32()
		if err != nil {
			return "", err
		}
		ext = int(n)
	}
	s, err := r.chars(int(cch), flags&0x01 != 0)
	if err != nil {
		return "", err
	}
	if err := r.skip(4*runs + ext); err != nil {
		return "", err
	}
	return s, nil
}
