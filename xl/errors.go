package xl

import "errors"

var (
	ErrInvalidRange     = errors.New("invalid range")
	ErrInvalidCellRef   = errors.New("invalid cell reference")
	ErrInvalidSheetName = errors.New("invalid sheet name")
	ErrDuplicateSheet   = errors.New("duplicate sheet name")
	ErrForeignSheet     = errors.New("sheet belongs to another workbook")
	ErrSheetWritten     = errors.New("sheet has already been written")
	ErrClosed           = errors.New("workbook is closed")
	ErrWriterDone       = errors.New("sheet writer session is over")
	ErrUnknownStyle     = errors.New("unknown cell style")
)
