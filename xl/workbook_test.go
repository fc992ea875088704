package xl

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type relsDoc struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

type contentTypesDoc struct {
	Defaults []struct {
		Extension   string `xml:"Extension,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Default"`
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

type workbookDoc struct {
	Sheets []struct {
		Name    string `xml:"name,attr"`
		SheetID int    `xml:"sheetId,attr"`
		RelID   string `xml:"id,attr"`
	} `xml:"sheets>sheet"`
}

type sstDoc struct {
	Count       int `xml:"count,attr"`
	UniqueCount int `xml:"uniqueCount,attr"`
	Items       []struct {
		T struct {
			Space string `xml:"space,attr"`
			Text  string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"si"`
}

type calcChainDoc struct {
	Cells []struct {
		Ref     string `xml:"r,attr"`
		SheetID int    `xml:"i,attr"`
	} `xml:"c"`
}

type coreDoc struct {
	Title      string `xml:"title"`
	Creator    string `xml:"creator"`
	Identifier string `xml:"identifier"`
	Created    string `xml:"created"`
}

type appDoc struct {
	Application string   `xml:"Application"`
	Titles      []string `xml:"TitlesOfParts>vector>lpstr"`
}

type archive struct {
	names []string
	parts map[string][]byte
}

func openArchive(t *testing.T, data []byte) archive {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	a := archive{parts: map[string][]byte{}}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		a.names = append(a.names, f.Name)
		a.parts[f.Name] = b
	}
	return a
}

func (a archive) decode(t *testing.T, name string, v any) {
	t.Helper()
	data, ok := a.parts[name]
	require.True(t, ok, "missing part %s", name)
	require.NoError(t, xml.Unmarshal(data, v), string(data))
}

func closeInMemory(t *testing.T, wb *Workbook) archive {
	t.Helper()
	data, err := wb.Close()
	require.NoError(t, err)
	require.NotEmpty(t, data)
	return openArchive(t, data)
}

func createSheets(t *testing.T, wb *Workbook, names ...string) []*Sheet {
	t.Helper()
	var sheets []*Sheet
	for _, name := range names {
		s, err := wb.CreateSheet(name)
		require.NoError(t, err)
		sheets = append(sheets, s)
	}
	return sheets
}

func TestPackageLayout(t *testing.T) {
	wb := CreateInMemory()
	sheets := createSheets(t, wb, "One", "Two", "Three")

	// written out of order
	require.NoError(t, wb.WriteSheet(sheets[2], nil))
	require.NoError(t, wb.WriteSheet(sheets[0], nil))

	a := closeInMemory(t, wb)
	assert.Equal(t, []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"docProps/app.xml",
		"docProps/core.xml",
		"xl/workbook.xml",
		"xl/_rels/workbook.xml.rels",
		"xl/styles.xml",
		"xl/sharedStrings.xml",
		"xl/theme/theme1.xml",
		"xl/calcChain.xml",
		"xl/worksheets/sheet1.xml",
		"xl/worksheets/sheet2.xml",
		"xl/worksheets/sheet3.xml",
	}, a.names)
	assert.Equal(t, themeXML, a.parts["xl/theme/theme1.xml"])
}

func TestWorkbookRelationships(t *testing.T) {
	wb := CreateInMemory(WithSharedStrings(true))
	createSheets(t, wb, "One", "Two")
	a := closeInMemory(t, wb)

	var rels relsDoc
	a.decode(t, "xl/_rels/workbook.xml.rels", &rels)
	got := map[string]string{}
	for _, r := range rels.Rels {
		got[r.ID] = r.Target
	}
	assert.Equal(t, map[string]string{
		"rId1": "theme/theme1.xml",
		"rId2": "styles.xml",
		"rId3": "worksheets/sheet1.xml",
		"rId4": "worksheets/sheet2.xml",
		"rId5": "sharedStrings.xml",
	}, got)

	var pkg relsDoc
	a.decode(t, "_rels/.rels", &pkg)
	require.Len(t, pkg.Rels, 3)
	assert.Equal(t, "rId1", pkg.Rels[0].ID)
	assert.Equal(t, "xl/workbook.xml", pkg.Rels[0].Target)
	assert.Equal(t, "docProps/core.xml", pkg.Rels[1].Target)
	assert.Equal(t, "docProps/app.xml", pkg.Rels[2].Target)

	var book workbookDoc
	a.decode(t, "xl/workbook.xml", &book)
	require.Len(t, book.Sheets, 2)
	assert.Equal(t, "One", book.Sheets[0].Name)
	assert.Equal(t, 1, book.Sheets[0].SheetID)
	assert.Equal(t, "rId3", book.Sheets[0].RelID)
	assert.Equal(t, "Two", book.Sheets[1].Name)
	assert.Equal(t, "rId4", book.Sheets[1].RelID)
}

func TestContentTypes(t *testing.T) {
	wb := CreateInMemory()
	createSheets(t, wb, "One", "Two")
	a := closeInMemory(t, wb)

	var ct contentTypesDoc
	a.decode(t, "[Content_Types].xml", &ct)
	require.Len(t, ct.Defaults, 2)
	assert.Equal(t, "rels", ct.Defaults[0].Extension)
	assert.Equal(t, "xml", ct.Defaults[1].Extension)

	overrides := map[string]string{}
	var order []string
	for _, o := range ct.Overrides {
		overrides[o.PartName] = o.ContentType
		order = append(order, o.PartName)
	}
	assert.Equal(t, ctWorksheet, overrides["/xl/worksheets/sheet1.xml"])
	assert.Equal(t, ctWorksheet, overrides["/xl/worksheets/sheet2.xml"])
	assert.Equal(t, ctWorkbook, overrides["/xl/workbook.xml"])
	assert.Equal(t, ctStyles, overrides["/xl/styles.xml"])
	assert.Equal(t, ctSharedStrings, overrides["/xl/sharedStrings.xml"])
	assert.NotContains(t, overrides, "/xl/calcChain.xml")
	assert.Equal(t, []string{"/xl/workbook.xml", "/xl/worksheets/sheet1.xml", "/xl/worksheets/sheet2.xml"}, order[:3])
}

func TestCalcChain(t *testing.T) {
	wb := CreateInMemory()
	sheets := createSheets(t, wb, "Data", "Totals")
	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		return sw.AppendValues(Number(1), Number(2), Str("=A1+B1"))
	}))
	require.NoError(t, wb.WriteSheet(sheets[1], func(sw *SheetWriter) error {
		sw.AppendBlankRows(2)
		return sw.AppendValues(Formula("SUM(Data!A1:B1)"))
	}))

	chain := wb.CalcChain()
	require.Len(t, chain, 2)
	assert.Equal(t, CalcEntry{Ref: "C1", Formula: "=A1+B1", SheetID: 1}, chain[0])
	assert.Equal(t, CalcEntry{Ref: "A3", Formula: "SUM(Data!A1:B1)", SheetID: 2}, chain[1])

	a := closeInMemory(t, wb)

	var cc calcChainDoc
	a.decode(t, "xl/calcChain.xml", &cc)
	require.Len(t, cc.Cells, 2)
	assert.Equal(t, "C1", cc.Cells[0].Ref)
	assert.Equal(t, 1, cc.Cells[0].SheetID)
	assert.Equal(t, "A3", cc.Cells[1].Ref)
	assert.Equal(t, 2, cc.Cells[1].SheetID)

	var rels relsDoc
	a.decode(t, "xl/_rels/workbook.xml.rels", &rels)
	last := rels.Rels[len(rels.Rels)-1]
	assert.Equal(t, "rId6", last.ID)
	assert.Equal(t, "calcChain.xml", last.Target)

	var ct contentTypesDoc
	a.decode(t, "[Content_Types].xml", &ct)
	found := false
	for _, o := range ct.Overrides {
		if o.PartName == "/xl/calcChain.xml" {
			found = o.ContentType == ctCalcChain
		}
	}
	assert.True(t, found)
}

func TestSharedStringsPart(t *testing.T) {
	wb := CreateInMemory(WithSharedStrings(true))
	sheets := createSheets(t, wb, "S")
	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		if err := sw.AppendValues(Str("Name"), Str(" padded "), Str("Name")); err != nil {
			return err
		}
		return sw.AppendValues(wb.RegisterString("R&D"))
	}))
	a := closeInMemory(t, wb)

	var sst sstDoc
	a.decode(t, "xl/sharedStrings.xml", &sst)
	assert.Equal(t, 4, sst.Count)
	assert.Equal(t, 3, sst.UniqueCount)
	require.Len(t, sst.Items, 3)
	assert.Equal(t, "Name", sst.Items[0].T.Text)
	assert.Empty(t, sst.Items[0].T.Space)
	assert.Equal(t, " padded ", sst.Items[1].T.Text)
	assert.Equal(t, "preserve", sst.Items[1].T.Space)
	assert.Equal(t, "R&D", sst.Items[2].T.Text)

	sheet := string(a.parts["xl/worksheets/sheet1.xml"])
	assert.Contains(t, sheet, `<c r="C1" t="s"><v>0</v></c>`)
	assert.Contains(t, sheet, `<c r="A2" t="s"><v>2</v></c>`)
}

func TestInMemoryDefaultsToInlineStrings(t *testing.T) {
	wb := CreateInMemory()
	assert.False(t, wb.SharedStrings().Enabled())
	assert.Equal(t, KindText, wb.RegisterString("x").Kind())

	sheets := createSheets(t, wb, "S")
	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		return sw.AppendValues(Str("inline"))
	}))
	a := closeInMemory(t, wb)

	assert.Contains(t, string(a.parts["xl/worksheets/sheet1.xml"]), `<c r="A1" t="str"><v>inline</v></c>`)
	var sst sstDoc
	a.decode(t, "xl/sharedStrings.xml", &sst)
	assert.Equal(t, 0, sst.Count)
	assert.Empty(t, sst.Items)
}

func TestStylesPartFollowsRegistrations(t *testing.T) {
	wb := CreateInMemory()
	wb.AddNumberFormat("0.000")
	xf := wb.AddCellXf(CellXf{NumFmt: BaseNumFmtCustom, Font: wb.AddFont(Font{Bold: true})})
	assert.Equal(t, StyleID(3), xf)
	createSheets(t, wb, "S")
	a := closeInMemory(t, wb)

	var styles styleSheetDoc
	a.decode(t, "xl/styles.xml", &styles)
	assert.Equal(t, 4, styles.CellXfs.Count)
	assert.Equal(t, 1, styles.NumFmts.Count)
	assert.Equal(t, 2, styles.Fonts.Count)
}

func TestDocumentProperties(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	wb := CreateInMemory(
		WithAppName("report-gen"),
		WithProperties(Properties{
			Title:      "Q1 <draft>",
			Creator:    "ops",
			Created:    created,
			Identifier: id,
		}),
	)
	createSheets(t, wb, "Summary", "R&D")
	a := closeInMemory(t, wb)

	var core coreDoc
	a.decode(t, "docProps/core.xml", &core)
	assert.Equal(t, "Q1 <draft>", core.Title)
	assert.Equal(t, "ops", core.Creator)
	assert.Equal(t, "urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", core.Identifier)
	assert.Equal(t, "2024-01-02T03:04:05Z", core.Created)

	var app appDoc
	a.decode(t, "docProps/app.xml", &app)
	assert.Equal(t, "report-gen", app.Application)
	assert.Equal(t, []string{"Summary", "R&D"}, app.Titles)
}

func TestRandomIdentifier(t *testing.T) {
	a := CreateInMemory()
	b := CreateInMemory()
	assert.NotEqual(t, uuid.Nil, a.Properties.Identifier)
	assert.NotEqual(t, a.Properties.Identifier, b.Properties.Identifier)
}

func TestCreateSheetNames(t *testing.T) {
	wb := CreateInMemory()

	s, err := wb.CreateSheet("Q1/Q2")
	require.NoError(t, err)
	assert.Equal(t, "Q1-Q2", s.Name)
	assert.Equal(t, 1, s.ID)

	_, err = wb.CreateSheet("q1/q2")
	assert.ErrorIs(t, err, ErrDuplicateSheet)

	// NFC folds the decomposed form onto the precomposed one.
	_, err = wb.CreateSheet("Caf\u00e9")
	require.NoError(t, err)
	_, err = wb.CreateSheet("Cafe\u0301")
	assert.ErrorIs(t, err, ErrDuplicateSheet)

	for _, bad := range []string{"", "'quoted'", "a:b", "a[1]", "what?", "star*", `back\slash`, strings.Repeat("x", 32)} {
		_, err := wb.CreateSheet(bad)
		assert.ErrorIs(t, err, ErrInvalidSheetName, bad)
	}

	s, err = wb.CreateSheet(strings.Repeat("ж", 31))
	require.NoError(t, err)
	assert.Equal(t, 3, s.ID)
	assert.Len(t, wb.Sheets(), 3)
}

func TestWriteSheetErrors(t *testing.T) {
	wb := CreateInMemory()
	other := CreateInMemory()
	sheets := createSheets(t, wb, "Mine")
	foreign := createSheets(t, other, "Theirs")

	assert.ErrorIs(t, wb.WriteSheet(foreign[0], nil), ErrForeignSheet)
	assert.ErrorIs(t, wb.WriteSheet(nil, nil), ErrForeignSheet)

	require.NoError(t, wb.WriteSheet(sheets[0], nil))
	assert.True(t, sheets[0].Written())
	assert.ErrorIs(t, wb.WriteSheet(sheets[0], nil), ErrSheetWritten)
}

func TestWriteSheetClosureFailure(t *testing.T) {
	wb := CreateInMemory()
	sheets := createSheets(t, wb, "S")
	boom := errors.New("boom")

	err := wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		if err := sw.AppendValues(Str("=1+1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, sheets[0].Written())
	assert.Empty(t, wb.CalcChain())

	a := closeInMemory(t, wb)
	sheet := string(a.parts["xl/worksheets/sheet1.xml"])
	assert.NotContains(t, sheet, "<f>")
}

func TestWriteSheetRetryAfterFailure(t *testing.T) {
	wb := CreateInMemory(WithSharedStrings(true))
	sheets := createSheets(t, wb, "S")
	require.NoError(t, wb.WriteSheet(createSheets(t, wb, "Before")[0], func(sw *SheetWriter) error {
		return sw.AppendValues(Str("kept"))
	}))

	err := wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		if err := sw.AppendValues(Str("orphan"), Str("kept"), StyledNumber(1, 40), Str("=1+1")); err != nil {
			return err
		}
		if err := sw.MergeCells(1, 1, 2, 1); err != nil {
			return err
		}
		sw.Sheet().AddAutoFilter(1, 2, 1, 1)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, wb.SharedStrings().Count())
	assert.Equal(t, 1, wb.SharedStrings().UniqueCount())
	assert.Equal(t, 0, sheets[0].RowCount())
	assert.Empty(t, sheets[0].MergedCells())
	_, ok := sheets[0].AutoFilter()
	assert.False(t, ok)

	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		return sw.AppendValues(Str("real"))
	}))
	a := closeInMemory(t, wb)

	sheet := string(a.parts["xl/worksheets/sheet1.xml"])
	assert.Contains(t, sheet, `<row r="1"><c r="A1" t="s"><v>1</v></c></row>`)
	assert.NotContains(t, sheet, "<mergeCells")
	assert.NotContains(t, sheet, "<autoFilter")

	var sst sstDoc
	a.decode(t, "xl/sharedStrings.xml", &sst)
	assert.Equal(t, 2, sst.Count)
	assert.Equal(t, 2, sst.UniqueCount)
	require.Len(t, sst.Items, 2)
	assert.Equal(t, "kept", sst.Items[0].T.Text)
	assert.Equal(t, "real", sst.Items[1].T.Text)
}

func TestInvalidXMLCharacters(t *testing.T) {
	wb := CreateInMemory(
		WithSharedStrings(true),
		WithAppName("gen\x00"),
		WithProperties(Properties{Title: "a\x01b"}),
	)
	_, err := wb.CreateSheet("a\x01b")
	assert.ErrorIs(t, err, ErrInvalidSheetName)

	sheets := createSheets(t, wb, "S")
	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		return sw.AppendValues(Str("bell\x07"), wb.RegisterString("\x1bescape"))
	}))
	a := closeInMemory(t, wb)

	var sst sstDoc
	a.decode(t, "xl/sharedStrings.xml", &sst)
	require.Len(t, sst.Items, 2)
	assert.Equal(t, "bell", sst.Items[0].T.Text)
	assert.Equal(t, "escape", sst.Items[1].T.Text)

	var core coreDoc
	a.decode(t, "docProps/core.xml", &core)
	assert.Equal(t, "ab", core.Title)
	var app appDoc
	a.decode(t, "docProps/app.xml", &app)
	assert.Equal(t, "gen", app.Application)
}

func TestCloseRejectsUnknownStyle(t *testing.T) {
	wb := CreateInMemory()
	sheets := createSheets(t, wb, "S")
	require.NoError(t, wb.WriteSheet(sheets[0], func(sw *SheetWriter) error {
		return sw.AppendValues(StyledNumber(1, 3))
	}))

	_, err := wb.Close()
	assert.ErrorIs(t, err, ErrUnknownStyle)

	// Styles may be added after the sheet is written.
	numFmt := wb.AddNumberFormat("0.0")
	assert.Equal(t, StyleID(3), wb.AddCellXf(CellXf{NumFmt: numFmt}))
	a := closeInMemory(t, wb)
	assert.Contains(t, string(a.parts["xl/worksheets/sheet1.xml"]), `<c r="A1" s="3"><v>1</v></c>`)
}

func TestCloseTwice(t *testing.T) {
	wb := CreateInMemory()
	sheets := createSheets(t, wb, "S")
	_, err := wb.Close()
	require.NoError(t, err)

	_, err = wb.Close()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = wb.CreateSheet("Late")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, wb.WriteSheet(sheets[0], nil), ErrClosed)
}

// A workbook without sheets still packages; Excel will not open it.
func TestEmptyWorkbook(t *testing.T) {
	a := closeInMemory(t, CreateInMemory())
	var book workbookDoc
	a.decode(t, "xl/workbook.xml", &book)
	assert.Empty(t, book.Sheets)
	assert.NotContains(t, a.parts, "xl/worksheets/sheet1.xml")
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	wb := Create(path)
	populateSample(t, wb)

	data, err := wb.Close()
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.True(t, wb.Saved())

	checkSample(t, path)
}

func TestSaveStaged(t *testing.T) {
	stage := t.TempDir()
	path := filepath.Join(t.TempDir(), "staged.xlsx")
	wb := CreateSimple(path, WithStaging(stage))
	populateSample(t, wb)

	_, err := wb.Close()
	require.NoError(t, err)
	assert.True(t, wb.Saved())

	left, err := os.ReadDir(stage)
	require.NoError(t, err)
	assert.Empty(t, left)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "[Content_Types].xml", zr.File[0].Name)
	for _, f := range zr.File {
		assert.Equal(t, zip.Store, f.Method, f.Name)
	}

	checkSample(t, path)
}

func TestSaveFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.xlsx")
	wb := Create(path)
	createSheets(t, wb, "S")
	_, err := wb.Close()
	assert.Error(t, err)
	assert.False(t, wb.Saved())
}

func populateSample(t *testing.T, wb *Workbook) {
	t.Helper()
	sheets := createSheets(t, wb, "People", "R&D")
	people := sheets[0]
	people.AddColumn(Column{Width: 24})
	people.AddAutoFilter(1, 3, 1, 3)

	err := wb.WriteSheet(people, func(sw *SheetWriter) error {
		if err := sw.AppendValues(Str("Name"), Str("Age"), Str("Born")); err != nil {
			return err
		}
		if err := sw.AppendValues(Str("Ada <A&B>"), Int(36), DateSerial(41223)); err != nil {
			return err
		}
		if err := sw.AppendValues(Str("Total"), Str("=B2*2")); err != nil {
			return err
		}
		return sw.MergeCells(4, 1, 5, 2)
	})
	require.NoError(t, err)
}

func checkSample(t *testing.T, path string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"People", "R&D"}, f.GetSheetList())

	v, err := f.GetCellValue("People", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Name", v)

	v, err = f.GetCellValue("People", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Ada <A&B>", v)

	v, err = f.GetCellValue("People", "B2")
	require.NoError(t, err)
	assert.Equal(t, "36", v)

	v, err = f.GetCellValue("People", "C2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "41223", v)

	formula, err := f.GetCellFormula("People", "B3")
	require.NoError(t, err)
	assert.Equal(t, "B2*2", formula)

	merged, err := f.GetMergeCells("People")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "D1", merged[0].GetStartAxis())
	assert.Equal(t, "E2", merged[0].GetEndAxis())

	width, err := f.GetColWidth("People", "A")
	require.NoError(t, err)
	assert.InDelta(t, 24, width, 0.01)

	rows, err := f.GetRows("R&D")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
