package xl

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

const worksheetHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
`

// SheetWriter mediates one population session of a sheet. Rows are
// rendered as they are appended, so the worksheet part grows in step with
// the caller's closure.
type SheetWriter struct {
	sheet   *Sheet
	out     io.Writer
	strings *SharedStrings
	done    bool
}

func newSheetWriter(sheet *Sheet, out io.Writer, ss *SharedStrings) *SheetWriter {
	return &SheetWriter{sheet: sheet, out: out, strings: ss}
}

func (sw *SheetWriter) Sheet() *Sheet {
	return sw.sheet
}

// AppendRow writes r as the next row. The row counter advances even for a
// row without cells.
func (sw *SheetWriter) AppendRow(r *Row) error {
	if sw.done {
		return ErrWriterDone
	}
	if r == nil {
		r = &Row{}
	}
	n := sw.sheet.nextRow(r)

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.B = append(b.B, `<row r="`...)
	b.B = strconv.AppendInt(b.B, int64(n), 10)
	b.B = append(b.B, '"')
	if r.Height > 0 {
		b.B = append(b.B, ` ht="`...)
		b.B = strconv.AppendFloat(b.B, float64(r.Height), 'f', -1, 32)
		b.B = append(b.B, `" customHeight="1"`...)
	}
	b.B = append(b.B, '>')
	for _, c := range r.Cells {
		b.B = sw.appendCell(b.B, c, n)
	}
	b.B = append(b.B, "</row>\n"...)

	_, err := sw.out.Write(b.B)
	return err
}

// AppendValues is shorthand for AppendRow(NewRow(values...)).
func (sw *SheetWriter) AppendValues(values ...CellValue) error {
	return sw.AppendRow(NewRow(values...))
}

// AppendBlankRows skips n rows. It does nothing once the session is over.
func (sw *SheetWriter) AppendBlankRows(n int) {
	if !sw.done {
		sw.sheet.skipRows(n)
	}
}

// MergeCells merges the range between two 1-based (column, row) positions.
// The end must not precede the start on either axis. Note the column comes
// first: MergeCells(1, 2, 3, 4) merges A2:C4, not B2:D4.
func (sw *SheetWriter) MergeCells(startCol, startRow, endCol, endRow int) error {
	if sw.done {
		return ErrWriterDone
	}
	return sw.sheet.mergeCells(startCol, startRow, endCol, endRow)
}

// MergeRange merges the range between two cell references such as "B3".
func (sw *SheetWriter) MergeRange(startRef, endRef string) error {
	c1, r1, err := ParseCellCoord(startRef)
	if err != nil {
		return err
	}
	c2, r2, err := ParseCellCoord(endRef)
	if err != nil {
		return err
	}
	return sw.MergeCells(c1, r1, c2, r2)
}

// MergeArea merges a width by height block starting at (col, row). A
// 1 by 1 area is a single cell; zero in either dimension is rejected.
func (sw *SheetWriter) MergeArea(col, row, width, height int) error {
	if width < 1 || height < 1 {
		return sw.MergeCells(col, row, col-1, row-1)
	}
	return sw.MergeCells(col, row, col+width-1, row+height-1)
}

func (sw *SheetWriter) appendCell(b []byte, c Cell, row int) []byte {
	v := c.Value
	if v.kind == KindBlank {
		return b
	}
	b = append(b, `<c r="`...)
	b = append(b, ColumnNumberAsLetters(c.Column)...)
	b = strconv.AppendInt(b, int64(row), 10)
	b = append(b, '"')
	if s := v.Style(); s != StyleDefault {
		sw.sheet.maxStyle = max(sw.sheet.maxStyle, s)
		b = append(b, ` s="`...)
		b = strconv.AppendInt(b, int64(s), 10)
		b = append(b, '"')
	}

	switch v.kind {
	case KindBool:
		b = append(b, ` t="b"><v>`...)
		if v.b {
			b = append(b, '1')
		} else {
			b = append(b, '0')
		}
		b = append(b, `</v></c>`...)
	case KindNumber, KindDate, KindDatetime, KindStyledNumber:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			b = append(b, ` t="e"><v>#NUM!</v></c>`...)
			break
		}
		b = append(b, `><v>`...)
		b = strconv.AppendFloat(b, v.f, 'f', -1, 64)
		b = append(b, `</v></c>`...)
	case KindText:
		if sw.strings != nil && sw.strings.Enabled() {
			b = append(b, ` t="s"><v>`...)
			b = strconv.AppendInt(b, int64(sw.strings.Register(v.s)), 10)
		} else {
			b = append(b, ` t="str"><v>`...)
			b = appendEscaped(b, v.s)
		}
		b = append(b, `</v></c>`...)
	case KindFormula:
		b = append(b, ` t="str"><f>`...)
		b = appendEscaped(b, strings.TrimPrefix(v.s, "="))
		b = append(b, `</f></c>`...)
	case KindSharedString:
		b = append(b, ` t="s"><v>`...)
		b = strconv.AppendInt(b, int64(v.n), 10)
		b = append(b, `</v></c>`...)
	}
	return b
}

func (sw *SheetWriter) writeHead() error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.B = append(b.B, worksheetHead...)
	if len(sw.sheet.Columns) > 0 {
		b.B = append(b.B, "<cols>\n"...)
		for i, col := range sw.sheet.Columns {
			n := int64(i + 1)
			b.B = append(b.B, `<col min="`...)
			b.B = strconv.AppendInt(b.B, n, 10)
			b.B = append(b.B, `" max="`...)
			b.B = strconv.AppendInt(b.B, n, 10)
			b.B = append(b.B, `" width="`...)
			b.B = strconv.AppendFloat(b.B, float64(col.Width), 'f', -1, 32)
			b.B = append(b.B, "\" customWidth=\"1\"/>\n"...)
		}
		b.B = append(b.B, "</cols>\n"...)
	}
	b.B = append(b.B, "<sheetData>\n"...)

	_, err := sw.out.Write(b.B)
	return err
}

func (sw *SheetWriter) writeTail() error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.B = append(b.B, "</sheetData>\n"...)
	if af := sw.sheet.autoFilter; af != nil {
		b.B = append(b.B, `<autoFilter ref="`...)
		b.B = append(b.B, af.String()...)
		b.B = append(b.B, "\"/>\n"...)
	}
	if len(sw.sheet.merged) > 0 {
		b.B = append(b.B, `<mergeCells count="`...)
		b.B = strconv.AppendInt(b.B, int64(len(sw.sheet.merged)), 10)
		b.B = append(b.B, `">`...)
		for _, m := range sw.sheet.merged {
			b.B = append(b.B, `<mergeCell ref="`...)
			b.B = append(b.B, m.String()...)
			b.B = append(b.B, `"/>`...)
		}
		b.B = append(b.B, "</mergeCells>\n"...)
	}
	b.B = append(b.B, "</worksheet>\n"...)

	_, err := sw.out.Write(b.B)
	return err
}

// write drives a full session: head, the caller's rows, tail. The writer
// rejects further rows once it returns.
func (sw *SheetWriter) write(fn func(*SheetWriter) error) error {
	defer func() { sw.done = true }()
	if err := sw.writeHead(); err != nil {
		return err
	}
	if fn != nil {
		if err := fn(sw); err != nil {
			return err
		}
	}
	return sw.writeTail()
}
