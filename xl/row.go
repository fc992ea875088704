package xl

import (
	"fmt"
	"strconv"
)

// Excel limits. They are documented here but not enforced by the writer.
const (
	MaxColumns = 16384 // XFD
	MaxRows    = 1048576
)

// Row is a transient sequence of cells. It is built by the caller and
// consumed once by SheetWriter.AppendRow.
type Row struct {
	Cells []Cell

	Height float32 // when Height=0, the sheet default is used

	cursor   int // 1-based column of the last allocated cell
	formulas []pendingFormula
}

// Cell is a value positioned at a 1-based column.
type Cell struct {
	Column int
	Value  CellValue
}

type pendingFormula struct {
	column  int
	formula string
}

// NewRow builds a row from values in order.
func NewRow(values ...CellValue) *Row {
	r := &Row{}
	for _, v := range values {
		r.AddCell(v)
	}
	return r
}

// AddCell appends v at the next column. A Blank value allocates no cell and
// only moves the cursor forward by its run length.
func (r *Row) AddCell(v CellValue) {
	if v.kind == KindBlank {
		r.cursor += v.n
		return
	}
	r.cursor++
	if v.kind == KindFormula {
		r.formulas = append(r.formulas, pendingFormula{column: r.cursor, formula: v.s})
	}
	r.Cells = append(r.Cells, Cell{Column: r.cursor, Value: v})
}

// AddEmptyCells skips n columns.
func (r *Row) AddEmptyCells(n int) {
	if n > 0 {
		r.cursor += n
	}
}

// Join appends the cells of other after the cursor, packed contiguously.
// Gaps in other are not preserved.
func (r *Row) Join(other *Row) {
	for _, c := range other.Cells {
		r.AddCell(c.Value)
	}
}

// Cursor returns the 1-based column of the last allocated position, 0 for
// an empty row.
func (r *Row) Cursor() int {
	return r.cursor
}

// ColumnNumberAsLetters converts a 1-based column number into its letter
// form: 1 is A, 26 is Z, 27 is AA, 703 is AAA. Numbers above MaxColumns
// produce letters Excel will not open.
func ColumnNumberAsLetters(n int) string {
	if n < 1 {
		panic("invalid column number")
	}
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte((n-1)%26 + 'A')
		n = (n - 1) / 26
	}
	return string(buf[i:])
}

func CellCoordAsString(col, row int) string {
	if row < 0 {
		panic("invalid row number")
	}
	return ColumnNumberAsLetters(col) + strconv.Itoa(row)
}

// ParseCellCoord is the inverse of CellCoordAsString. Lowercase letters are
// accepted; absolute markers ($) are not.
func ParseCellCoord(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) {
		ch := ref[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			break
		}
		col = col*26 + int(ch-'A'+1)
		if col > MaxColumns {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellRef, ref)
		}
		i++
	}
	if i == 0 || i == len(ref) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellRef, ref)
	}
	row, err = strconv.Atoi(ref[i:])
	if err != nil || row < 1 || ref[i] == '+' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellRef, ref)
	}
	return col, row, nil
}
