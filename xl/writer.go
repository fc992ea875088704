package xl

import (
	"bytes"
	_ "embed"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adnsv/srw/xml"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
)

const (
	nsMain          = "http://schemas.openxmlformats.org/spreadsheetml/2006/main"
	nsRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeCoreProps      = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relTypeExtProps       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relTypeTheme          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme"
	relTypeStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relTypeWorksheet      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet"
	relTypeSharedStrings  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/sharedStrings"
	relTypeCalcChain      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/calcChain"

	ctWorkbook      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"
	ctWorksheet     = "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"
	ctTheme         = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctStyles        = "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"
	ctSharedStrings = "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"
	ctCalcChain     = "application/vnd.openxmlformats-officedocument.spreadsheetml.calcChain+xml"
	ctCoreProps     = "application/vnd.openxmlformats-package.core-properties+xml"
	ctExtProps      = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
)

// Relationship ids of xl/_rels/workbook.xml.rels. Worksheets follow the
// fixed parts, so sheet k is rId(k+SheetRelOffset) and the parts after the
// sheets are numbered from the sheet count.
const (
	RelIDTheme     = 1
	RelIDStyles    = 2
	SheetRelOffset = 2
)

// SheetRelID is the relationship id of the worksheet with the given id.
func SheetRelID(sheetID int) string {
	return relID(sheetID + SheetRelOffset)
}

func sharedStringsRelID(sheetCount int) string {
	return relID(sheetCount + SheetRelOffset + 1)
}

func calcChainRelID(sheetCount int) string {
	return relID(sheetCount + SheetRelOffset + 2)
}

func relID(n int) string {
	return "rId" + strconv.Itoa(n)
}

//go:embed theme1.xml
var themeXML []byte

type RelInfo struct {
	ID     string
	Type   string // url to schema type
	Target string // relative path
}

// partWriter renders the fixed skeleton parts from workbook state.
type partWriter struct {
	wb *Workbook
}

func (w *partWriter) skeleton() ([]archiveEntry, error) {
	styles, err := w.wb.formats.render()
	if err != nil {
		return nil, err
	}
	return []archiveEntry{
		{path: "[Content_Types].xml", data: w.contentTypes()},
		{path: "_rels/.rels", data: w.packageRels()},
		{path: "docProps/app.xml", data: w.extendedProperties()},
		{path: "docProps/core.xml", data: w.coreProperties()},
		{path: "xl/workbook.xml", data: w.workbook()},
		{path: "xl/_rels/workbook.xml.rels", data: w.workbookRels()},
		{path: "xl/styles.xml", data: styles},
		{path: "xl/sharedStrings.xml", data: w.sharedStrings()},
		{path: "xl/theme/theme1.xml", data: themeXML},
		{path: "xl/calcChain.xml", data: w.calcChain()},
	}, nil
}

func (w *partWriter) contentTypes() []byte {
	defaults := map[string]string{
		"xml":  "application/xml",
		"rels": "application/vnd.openxmlformats-package.relationships+xml",
	}

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Types")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/package/2006/content-types")
	enumerate(defaults, func(ext, ctype string) error {
		x.OTag("+Default").Attr("Extension", ext).Attr("ContentType", ctype).CTag()
		return nil
	})
	x.OTag("+Override").Attr("PartName", "/xl/workbook.xml").Attr("ContentType", ctWorkbook).CTag()
	for _, sheet := range w.wb.sheets {
		x.OTag("+Override").Attr("PartName", "/"+worksheetPath(sheet.ID)).Attr("ContentType", ctWorksheet).CTag()
	}
	x.OTag("+Override").Attr("PartName", "/xl/theme/theme1.xml").Attr("ContentType", ctTheme).CTag()
	x.OTag("+Override").Attr("PartName", "/xl/styles.xml").Attr("ContentType", ctStyles).CTag()
	x.OTag("+Override").Attr("PartName", "/xl/sharedStrings.xml").Attr("ContentType", ctSharedStrings).CTag()
	if len(w.wb.calcChain) > 0 {
		x.OTag("+Override").Attr("PartName", "/xl/calcChain.xml").Attr("ContentType", ctCalcChain).CTag()
	}
	x.OTag("+Override").Attr("PartName", "/docProps/core.xml").Attr("ContentType", ctCoreProps).CTag()
	x.OTag("+Override").Attr("PartName", "/docProps/app.xml").Attr("ContentType", ctExtProps).CTag()
	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) packageRels() []byte {
	return writeRels([]RelInfo{
		{ID: relID(1), Type: relTypeOfficeDocument, Target: "xl/workbook.xml"},
		{ID: relID(2), Type: relTypeCoreProps, Target: "docProps/core.xml"},
		{ID: relID(3), Type: relTypeExtProps, Target: "docProps/app.xml"},
	})
}

func (w *partWriter) workbookRels() []byte {
	n := w.wb.lastSheetID
	rels := []RelInfo{
		{ID: relID(RelIDTheme), Type: relTypeTheme, Target: "theme/theme1.xml"},
		{ID: relID(RelIDStyles), Type: relTypeStyles, Target: "styles.xml"},
	}
	for _, sheet := range w.wb.sheets {
		rels = append(rels, RelInfo{
			ID:     SheetRelID(sheet.ID),
			Type:   relTypeWorksheet,
			Target: strings.TrimPrefix(worksheetPath(sheet.ID), "xl/"),
		})
	}
	rels = append(rels, RelInfo{ID: sharedStringsRelID(n), Type: relTypeSharedStrings, Target: "sharedStrings.xml"})
	if len(w.wb.calcChain) > 0 {
		rels = append(rels, RelInfo{ID: calcChainRelID(n), Type: relTypeCalcChain, Target: "calcChain.xml"})
	}
	return writeRels(rels)
}

func (w *partWriter) workbook() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("workbook")
	x.Attr("xmlns", nsMain)
	x.Attr("xmlns:r", nsRelationships)

	x.OTag("+workbookPr").Attr("date1904", "false").CTag()

	x.OTag("+bookViews")
	x.OTag("+workbookView").Attr("activeTab", 0).CTag()
	x.CTag()

	x.OTag("+sheets")
	for _, sheet := range w.wb.sheets {
		x.OTag("+sheet")
		x.Attr("name", sheet.Name)
		x.Attr("sheetId", sheet.ID)
		x.Attr("r:id", SheetRelID(sheet.ID))
		x.CTag()
	}
	x.CTag()

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) sharedStrings() []byte {
	ss := w.wb.strings

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("sst")
	x.Attr("xmlns", nsMain)
	x.Attr("count", ss.Count())
	x.Attr("uniqueCount", ss.UniqueCount())

	for _, s := range ss.strings {
		x.OTag("+si")
		x.OTag("t")
		if len(strings.TrimSpace(s)) != len(s) {
			x.Attr("xml:space", "preserve")
		}
		x.String(s)
		x.CTag() // t
		x.CTag() // si
	}

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) calcChain() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("calcChain")
	x.Attr("xmlns", nsMain)
	for _, c := range w.wb.calcChain {
		x.OTag("+c").Attr("r", c.Ref).Attr("i", c.SheetID).CTag()
	}
	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) coreProperties() []byte {
	props := w.wb.Properties
	created := props.Created
	if created.IsZero() {
		created = time.Now()
	}
	stamp := created.UTC().Format(time.RFC3339)

	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("cp:coreProperties")
	x.Attr("xmlns:cp", "http://schemas.openxmlformats.org/package/2006/metadata/core-properties")
	x.Attr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	x.Attr("xmlns:dcterms", "http://purl.org/dc/terms/")
	x.Attr("xmlns:dcmitype", "http://purl.org/dc/dcmitype/")
	x.Attr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")

	if props.Title != "" {
		x.OTag("+dc:title").String(xmlText(props.Title)).CTag()
	}
	if props.Subject != "" {
		x.OTag("+dc:subject").String(xmlText(props.Subject)).CTag()
	}
	if props.Creator != "" {
		x.OTag("+dc:creator").String(xmlText(props.Creator)).CTag()
	}
	if props.Keywords != "" {
		x.OTag("+cp:keywords").String(xmlText(props.Keywords)).CTag()
	}
	if props.Description != "" {
		x.OTag("+dc:description").String(xmlText(props.Description)).CTag()
	}
	x.OTag("+dc:identifier").String(props.Identifier.URN()).CTag()

	x.OTag("+dcterms:created")
	x.Attr("xsi:type", "dcterms:W3CDTF")
	x.Write(stamp)
	x.CTag()

	x.OTag("+dcterms:modified")
	x.Attr("xsi:type", "dcterms:W3CDTF")
	x.Write(stamp)
	x.CTag()

	x.CTag()

	return bb.Bytes()
}

func (w *partWriter) extendedProperties() []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Properties")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties")
	x.Attr("xmlns:vt", "http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes")

	if w.wb.AppName != "" {
		x.OTag("+Application").String(xmlText(w.wb.AppName)).CTag()
	}

	x.OTag("+HeadingPairs")
	x.OTag("+vt:vector").Attr("size", 2).Attr("baseType", "variant")
	x.OTag("+vt:variant")
	x.OTag("vt:lpstr").String("Worksheets").CTag()
	x.CTag()
	x.OTag("+vt:variant")
	x.OTag("vt:i4").Write(len(w.wb.sheets)).CTag()
	x.CTag()
	x.CTag() // vt:vector
	x.CTag() // HeadingPairs

	x.OTag("+TitlesOfParts")
	x.OTag("+vt:vector").Attr("size", len(w.wb.sheets)).Attr("baseType", "lpstr")
	for _, sheet := range w.wb.sheets {
		x.OTag("+vt:lpstr").String(sheet.Name).CTag()
	}
	x.CTag() // vt:vector
	x.CTag() // TitlesOfParts

	x.CTag()

	return bb.Bytes()
}

func writeRels(rels []RelInfo) []byte {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("Relationships")
	x.Attr("xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	for _, info := range rels {
		x.OTag("+Relationship").Attr("Id", info.ID).Attr("Type", info.Type).Attr("Target", info.Target)
		x.CTag()
	}
	x.CTag()

	return bb.Bytes()
}

func enumerate[M ~map[K]V, K constraints.Ordered, V any](m M, callback func(k K, v V) error) error {
	keys := maps.Keys(m)
	slices.Sort(keys)
	for _, k := range keys {
		err := callback(k, m[k])
		if err != nil {
			return err
		}
	}
	return nil
}
