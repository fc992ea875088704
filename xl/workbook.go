package xl

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxSheetNameLength = 31

// Workbook collects sheets and style state and packages them on Close.
// A Workbook is not safe for concurrent use.
type Workbook struct {
	AppName    string
	Properties Properties

	path       string // "" for in-memory workbooks
	staging    bool
	stagingDir string

	sheets      []*Sheet
	sheetMap    map[string]*Sheet // keyed by lowercased name
	lastSheetID int

	strings   *SharedStrings
	formats   *CellFormats
	calcChain []CalcEntry
	entries   []archiveEntry
	closed    bool
	saved     bool
}

type archiveEntry struct {
	path    string
	data    []byte
	sheetID int
}

// Create returns a workbook that is saved to path on Close. Text cells go
// through the shared string table.
func Create(path string, opts ...Option) *Workbook {
	return newWorkbook(path, true, opts)
}

// CreateSimple is like Create but writes text cells inline.
func CreateSimple(path string, opts ...Option) *Workbook {
	return newWorkbook(path, false, opts)
}

// CreateInMemory returns a workbook whose Close returns the package bytes.
// Text cells are written inline unless WithSharedStrings(true) is given.
func CreateInMemory(opts ...Option) *Workbook {
	return newWorkbook("", false, opts)
}

func newWorkbook(path string, sharedStrings bool, opts []Option) *Workbook {
	wb := &Workbook{
		AppName:  "xl",
		path:     path,
		sheetMap: map[string]*Sheet{},
		strings:  NewSharedStrings(sharedStrings),
		formats:  NewCellFormats(),
	}
	for _, opt := range opts {
		opt(wb)
	}
	if wb.Properties.Identifier == uuid.Nil {
		wb.Properties.Identifier = uuid.New()
	}
	return wb
}

// CreateSheet registers a new sheet with the next id. The name is
// normalized, '/' is replaced with '-', and the result must satisfy Excel's
// naming rules.
func (wb *Workbook) CreateSheet(name string) (*Sheet, error) {
	if wb.closed {
		return nil, ErrClosed
	}
	name = SanitizeSheetName(name)
	if err := validateSheetName(name); err != nil {
		return nil, err
	}
	key := strings.ToLower(name)
	if _, exists := wb.sheetMap[key]; exists {
		return nil, fmt.Errorf("%w '%s'", ErrDuplicateSheet, name)
	}

	wb.lastSheetID++
	sheet := &Sheet{
		ID:       wb.lastSheetID,
		Name:     name,
		workbook: wb,
	}
	wb.sheets = append(wb.sheets, sheet)
	wb.sheetMap[key] = sheet
	return sheet, nil
}

// SanitizeSheetName applies the rewrites CreateSheet performs before
// validation.
func SanitizeSheetName(s string) string {
	return strings.ReplaceAll(norm.NFC.String(s), "/", "-")
}

func validateSheetName(s string) error {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return fmt.Errorf("%w: empty sheet name is not allowed", ErrInvalidSheetName)
	} else if n > maxSheetNameLength {
		return fmt.Errorf("%w: the sheet name is too long", ErrInvalidSheetName)
	}
	if strings.HasPrefix(s, "'") || strings.HasSuffix(s, "'") {
		return fmt.Errorf("%w: the first or last character of the sheet name can not be a single quote", ErrInvalidSheetName)
	}
	if xmlText(s) != s {
		return fmt.Errorf("%w: the sheet name contains characters XML cannot carry", ErrInvalidSheetName)
	}
	if strings.ContainsAny(s, ":\\/?*[]") {
		return fmt.Errorf("%w: the sheet can not contain any of the characters :\\/?*[]", ErrInvalidSheetName)
	}
	return nil
}

// WriteSheet populates sheet through fn and archives the result as
// xl/worksheets/sheet{id}.xml. Formulas appended during the session join
// the workbook calc chain. When fn fails the session is undone: nothing is
// archived, and the sheet and the shared string table return to their
// state before the call, so the sheet may be written again.
func (wb *Workbook) WriteSheet(sheet *Sheet, fn func(*SheetWriter) error) error {
	if wb.closed {
		return ErrClosed
	}
	if sheet == nil || sheet.workbook != wb {
		return ErrForeignSheet
	}
	if sheet.written {
		return fmt.Errorf("%w: '%s'", ErrSheetWritten, sheet.Name)
	}

	sheetState, stringState := sheet.mark(), wb.strings.mark()
	bb := bytes.Buffer{}
	sw := newSheetWriter(sheet, &bb, wb.strings)
	if err := sw.write(fn); err != nil {
		sheet.rollback(sheetState)
		wb.strings.rollback(stringState)
		return fmt.Errorf("write sheet '%s': %w", sheet.Name, err)
	}

	wb.calcChain = append(wb.calcChain, sheet.calcChain...)
	wb.entries = append(wb.entries, archiveEntry{
		path:    worksheetPath(sheet.ID),
		data:    bb.Bytes(),
		sheetID: sheet.ID,
	})
	sheet.written = true
	return nil
}

func worksheetPath(id int) string {
	return "xl/worksheets/sheet" + strconv.Itoa(id) + ".xml"
}

// Close renders the package. In-memory workbooks return its bytes;
// workbooks created with a path write the file and return nil. Close may
// be called once; later calls return ErrClosed.
//
// A workbook without sheets is packaged as is, with an empty sheet list.
// Excel refuses to open such a file, so create at least one sheet.
//
// Close fails with ErrUnknownStyle, leaving the workbook open, when a
// cell refers to a style that was never added.
func (wb *Workbook) Close() ([]byte, error) {
	if wb.closed {
		return nil, ErrClosed
	}

	// Sheets that were created but never populated still need a part.
	for _, sheet := range wb.sheets {
		if !sheet.written {
			if err := wb.WriteSheet(sheet, nil); err != nil {
				return nil, err
			}
		}
	}
	n := wb.formats.CellXfCount()
	for _, sheet := range wb.sheets {
		if int(sheet.maxStyle) >= n {
			return nil, fmt.Errorf("%w: sheet '%s' uses style %d, %d defined", ErrUnknownStyle, sheet.Name, sheet.maxStyle, n)
		}
	}
	wb.closed = true

	parts, err := wb.renderParts()
	if err != nil {
		return nil, err
	}

	if wb.path == "" {
		bb := bytes.Buffer{}
		if err := writeArchive(&bb, parts); err != nil {
			return nil, err
		}
		return bb.Bytes(), nil
	}

	if wb.staging {
		err = wb.saveStaged(parts)
	} else {
		err = wb.save(parts)
	}
	if err != nil {
		return nil, err
	}
	wb.saved = true
	return nil, nil
}

// renderParts returns every archive entry in package order: skeleton parts
// first, then worksheets by id.
func (wb *Workbook) renderParts() ([]archiveEntry, error) {
	w := partWriter{wb: wb}
	parts, err := w.skeleton()
	if err != nil {
		return nil, err
	}
	sheets := slices.Clone(wb.entries)
	slices.SortFunc(sheets, func(a, b archiveEntry) int {
		return a.sheetID - b.sheetID
	})
	return append(parts, sheets...), nil
}

func (wb *Workbook) save(parts []archiveEntry) error {
	bb := bytes.Buffer{}
	if err := writeArchive(&bb, parts); err != nil {
		return err
	}
	f, err := os.Create(wb.path)
	if err != nil {
		return err
	}
	if _, err := f.Write(bb.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (wb *Workbook) saveStaged(parts []archiveEntry) error {
	tmp, err := os.MkdirTemp(wb.stagingDir, "xl-stage-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := writeParts(NewDirStorage(tmp), parts); err != nil {
		return err
	}

	f, err := os.Create(wb.path)
	if err != nil {
		return err
	}
	if err := ZipDir(tmp, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeParts(st Storage, parts []archiveEntry) error {
	for _, p := range parts {
		if err := st.WriteBlob(p.path, p.data); err != nil {
			return fmt.Errorf("archive %s: %w", p.path, err)
		}
	}
	return nil
}

func writeArchive(out io.Writer, parts []archiveEntry) error {
	zs := NewZipStorage(out)
	if err := writeParts(zs, parts); err != nil {
		zs.Close()
		return err
	}
	return zs.Close()
}

// RegisterString adds s to the shared string table and returns a reference
// to it. With shared strings disabled it returns s as inline text.
func (wb *Workbook) RegisterString(s string) CellValue {
	if !wb.strings.Enabled() {
		return Text(s)
	}
	return SharedStringRef(wb.strings.Register(s))
}

func (wb *Workbook) AddNumberFormat(pattern string) NumFmtID {
	return wb.formats.AddNumberFormat(pattern)
}

func (wb *Workbook) AddFont(f Font) FontID {
	return wb.formats.AddFont(f)
}

func (wb *Workbook) AddFill(fg, bg Color) FillID {
	return wb.formats.AddFill(fg, bg)
}

func (wb *Workbook) AddBorder(b BorderFormat) BorderID {
	return wb.formats.AddBorder(b)
}

func (wb *Workbook) AddCellXf(xf CellXf) StyleID {
	return wb.formats.AddCellXf(xf)
}

func (wb *Workbook) SharedStrings() *SharedStrings {
	return wb.strings
}

func (wb *Workbook) CellFormats() *CellFormats {
	return wb.formats
}

// Sheets returns the created sheets in id order.
func (wb *Workbook) Sheets() []*Sheet {
	return wb.sheets
}

// CalcChain returns the formula cells of every written sheet.
func (wb *Workbook) CalcChain() []CalcEntry {
	return wb.calcChain
}

// Saved reports whether Close has written the workbook file.
func (wb *Workbook) Saved() bool {
	return wb.saved
}
