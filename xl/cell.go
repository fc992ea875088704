package xl

import (
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/type/date"
)

// CellKind identifies the variant held by a CellValue.
type CellKind int

// Cell value kinds.
const (
	KindBlank CellKind = iota
	KindBool
	KindNumber
	KindText
	KindFormula
	KindSharedString
	KindDate
	KindDatetime
	KindStyledNumber
)

// CellValue is a closed union of everything a cell can hold. Construct it
// with one of the functions below; the zero value is a single blank.
type CellValue struct {
	kind  CellKind
	b     bool
	f     float64
	s     string
	n     int // blank run length or shared string index
	style StyleID
}

func Bool(v bool) CellValue {
	return CellValue{kind: KindBool, b: v}
}

func Number(v float64) CellValue {
	return CellValue{kind: KindNumber, f: v}
}

func Int(v int64) CellValue {
	return CellValue{kind: KindNumber, f: float64(v)}
}

// Str converts host text. Text starting with '=' becomes a formula.
func Str(s string) CellValue {
	if strings.HasPrefix(s, "=") {
		return Formula(s)
	}
	return Text(s)
}

// Text is literal text, never interpreted as a formula.
func Text(s string) CellValue {
	return CellValue{kind: KindText, s: s}
}

// Formula holds a formula body. A leading '=' is dropped when the cell is
// written.
func Formula(f string) CellValue {
	return CellValue{kind: KindFormula, s: f}
}

// Empty is a single blank column.
func Empty() CellValue {
	return Blank(1)
}

// Blank skips n columns without producing cells.
func Blank(n int) CellValue {
	if n < 0 {
		n = 0
	}
	return CellValue{kind: KindBlank, n: n}
}

// SharedStringRef refers to an index already registered in the workbook's
// shared string table.
func SharedStringRef(i int) CellValue {
	return CellValue{kind: KindSharedString, n: i}
}

// DateSerial is a date given as an Excel serial number. It is written with
// the built-in date style.
func DateSerial(serial float64) CellValue {
	return CellValue{kind: KindDate, f: serial}
}

// DatetimeSerial is a date and time given as an Excel serial number.
func DatetimeSerial(serial float64) CellValue {
	return CellValue{kind: KindDatetime, f: serial}
}

// Date keeps the calendar date of t in its own location.
func Date(t time.Time) CellValue {
	return DateSerial(ExcelDateSerial(t))
}

// Datetime keeps the wall clock of t, including the fraction of the day.
func Datetime(t time.Time) CellValue {
	return DatetimeSerial(ExcelSerial(t))
}

// ProtoDate converts a google.type.Date. Dates with a zero year, month or
// day cannot be placed on the calendar and become a blank cell.
func ProtoDate(d *date.Date) CellValue {
	if d == nil || d.GetYear() == 0 || d.GetMonth() == 0 || d.GetDay() == 0 {
		return Empty()
	}
	t := time.Date(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()), 0, 0, 0, 0, time.UTC)
	return Date(t)
}

// StyledNumber is a number rendered with a cell style from CellFormats.
func StyledNumber(v float64, style StyleID) CellValue {
	return CellValue{kind: KindStyledNumber, f: v, style: style}
}

func (v CellValue) Kind() CellKind {
	return v.kind
}

// Float returns the numeric payload of number, date and styled variants.
func (v CellValue) Float() float64 {
	return v.f
}

// Content returns the text or formula payload.
func (v CellValue) Content() string {
	return v.s
}

// Span is the number of columns the value occupies: the run length for
// blanks, 1 otherwise.
func (v CellValue) Span() int {
	if v.kind == KindBlank {
		return v.n
	}
	return 1
}

// WithStyle returns a copy of v written with the given cell style. Blank
// values produce no cell and ignore it.
func (v CellValue) WithStyle(style StyleID) CellValue {
	if v.kind != KindBlank {
		v.style = style
	}
	return v
}

// Style returns the cell-xf index the value is written with, StyleDefault
// when no style attribute is emitted.
func (v CellValue) Style() StyleID {
	if v.style != StyleDefault {
		return v.style
	}
	switch v.kind {
	case KindDate:
		return StyleDate
	case KindDatetime:
		return StyleDatetime
	}
	return StyleDefault
}
