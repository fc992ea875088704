package xl

import "fmt"

// Sheet holds the state of one worksheet. Sheets are created by
// Workbook.CreateSheet and populated with Workbook.WriteSheet.
type Sheet struct {
	ID      int    // 1-based, equals the worksheet part ordinal
	Name    string // validated, unescaped
	Columns []Column

	workbook   *Workbook
	rowCount   int // number of the last row appended or skipped
	merged     []CellRange
	autoFilter *CellRange
	calcChain  []CalcEntry
	maxStyle   StyleID // highest cell style used by a row
	written    bool
}

// Column settings apply to sheet columns in the order they were added.
type Column struct {
	Width float32
}

// CellRange is a rectangular range between two cell references.
type CellRange struct {
	Start string
	End   string
}

func (r CellRange) String() string {
	return r.Start + ":" + r.End
}

// CalcEntry is one formula-bearing cell of the calc chain.
type CalcEntry struct {
	Ref     string // cell reference such as C4
	Formula string
	SheetID int
}

// AddColumn appends a column definition. Columns must be added before the
// sheet is written; they are emitted ahead of the row data.
func (s *Sheet) AddColumn(c Column) {
	s.Columns = append(s.Columns, c)
}

// AddAutoFilter places an autofilter over the given 1-based range. A range
// with a zero index, or whose start lies after its end on either axis, is
// ignored and leaves the current filter in place.
func (s *Sheet) AddAutoFilter(startCol, endCol, startRow, endRow int) {
	if startCol < 1 || startRow < 1 || endCol < startCol || endRow < startRow {
		return
	}
	s.autoFilter = &CellRange{
		Start: CellCoordAsString(startCol, startRow),
		End:   CellCoordAsString(endCol, endRow),
	}
}

// AutoFilter returns the autofilter range, if one was set.
func (s *Sheet) AutoFilter() (CellRange, bool) {
	if s.autoFilter == nil {
		return CellRange{}, false
	}
	return *s.autoFilter, true
}

// MergedCells returns the merged ranges in the order they were added.
func (s *Sheet) MergedCells() []CellRange {
	return s.merged
}

// RowCount is the number of the last row appended or skipped.
func (s *Sheet) RowCount() int {
	return s.rowCount
}

// CalcChain returns the formula cells recorded so far.
func (s *Sheet) CalcChain() []CalcEntry {
	return s.calcChain
}

// Written reports whether the sheet has been archived by its workbook.
func (s *Sheet) Written() bool {
	return s.written
}

func (s *Sheet) mergeCells(startCol, startRow, endCol, endRow int) error {
	if startCol < 1 || startRow < 1 || endCol < startCol || endRow < startRow {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d)", ErrInvalidRange, startCol, startRow, endCol, endRow)
	}
	s.merged = append(s.merged, CellRange{
		Start: CellCoordAsString(startCol, startRow),
		End:   CellCoordAsString(endCol, endRow),
	})
	return nil
}

// nextRow assigns the next row number to r and moves its formulas into the
// sheet's pending calc chain.
func (s *Sheet) nextRow(r *Row) int {
	s.rowCount++
	for _, f := range r.formulas {
		s.calcChain = append(s.calcChain, CalcEntry{
			Ref:     CellCoordAsString(f.column, s.rowCount),
			Formula: f.formula,
			SheetID: s.ID,
		})
	}
	r.formulas = nil
	return s.rowCount
}

func (s *Sheet) skipRows(n int) {
	if n > 0 {
		s.rowCount += n
	}
}

// sheetMark is the sheet state a write session may change.
type sheetMark struct {
	rowCount   int
	merged     int
	autoFilter *CellRange
	calcChain  int
	maxStyle   StyleID
}

func (s *Sheet) mark() sheetMark {
	return sheetMark{
		rowCount:   s.rowCount,
		merged:     len(s.merged),
		autoFilter: s.autoFilter,
		calcChain:  len(s.calcChain),
		maxStyle:   s.maxStyle,
	}
}

func (s *Sheet) rollback(m sheetMark) {
	s.rowCount = m.rowCount
	s.merged = s.merged[:m.merged]
	s.autoFilter = m.autoFilter
	s.calcChain = s.calcChain[:m.calcChain]
	s.maxStyle = m.maxStyle
}
