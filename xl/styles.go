package xl

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/adnsv/srw/xml"
)

// Identifier bases for the style tables. Ids below a base are reserved by
// the default stylesheet or by Excel's built-in number formats.
const (
	BaseNumFmtCustom = 165
	BaseFont         = 1
	BaseFill         = 2
	BaseBorder       = 1
)

// Built-in number formats referenced by the pre-seeded cell styles.
const (
	NumFmtGeneral  NumFmtID = 0
	NumFmtDate     NumFmtID = 14 // m/d/yyyy
	NumFmtDatetime NumFmtID = 22 // m/d/yyyy h:mm
)

// Pre-seeded cell styles.
const (
	StyleDefault StyleID = iota
	StyleDate
	StyleDatetime
)

type (
	NumFmtID int
	FontID   int
	FillID   int
	BorderID int
	StyleID  int // index into cellXfs
)

// Color is either a theme palette index or an explicit ARGB value.
type Color struct {
	theme   int
	argb    uint32
	isTheme bool
}

func ThemeColor(i int) Color {
	return Color{theme: i, isTheme: true}
}

func ARGB(v uint32) Color {
	return Color{argb: v}
}

func RGB(r, g, b uint8) Color {
	return Color{argb: 0xFF000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)}
}

// BorderStyle is ST_BorderStyle.
type BorderStyle string

const (
	BorderNone             BorderStyle = "none"
	BorderThin             BorderStyle = "thin"
	BorderMedium           BorderStyle = "medium"
	BorderDashed           BorderStyle = "dashed"
	BorderDotted           BorderStyle = "dotted"
	BorderThick            BorderStyle = "thick"
	BorderDouble           BorderStyle = "double"
	BorderHair             BorderStyle = "hair"
	BorderMediumDashed     BorderStyle = "mediumDashed"
	BorderDashDot          BorderStyle = "dashDot"
	BorderMediumDashDot    BorderStyle = "mediumDashDot"
	BorderDashDotDot       BorderStyle = "dashDotDot"
	BorderMediumDashDotDot BorderStyle = "mediumDashDotDot"
	BorderSlantDashDot     BorderStyle = "slantDashDot"
)

type BorderEdge struct {
	Style BorderStyle
	Color Color
}

// BorderFormat describes the four edges of a border; nil edges are empty.
type BorderFormat struct {
	Left, Right, Top, Bottom *BorderEdge
}

type HorizontalAlignment string

const (
	HAlignGeneral HorizontalAlignment = ""
	HAlignLeft    HorizontalAlignment = "left"
	HAlignCenter  HorizontalAlignment = "center"
	HAlignRight   HorizontalAlignment = "right"
	HAlignFill    HorizontalAlignment = "fill"
	HAlignJustify HorizontalAlignment = "justify"
)

type VerticalAlignment string

const (
	VAlignBottom  VerticalAlignment = ""
	VAlignTop     VerticalAlignment = "top"
	VAlignCenter  VerticalAlignment = "center"
	VAlignJustify VerticalAlignment = "justify"
)

type Alignment struct {
	Horizontal HorizontalAlignment
	Vertical   VerticalAlignment
	WrapText   bool
}

// CellXf combines table ids into one cell style. Zero ids select the
// default slot of each table.
type CellXf struct {
	NumFmt    NumFmtID
	Font      FontID
	Fill      FillID
	Border    BorderID
	Alignment *Alignment
}

type fill struct {
	fg, bg Color
}

// CellFormats owns the style tables of one workbook. Every Add call returns
// a new id; ids are never reused and are only meaningful to the instance
// that issued them.
type CellFormats struct {
	numFmts map[NumFmtID]string
	fonts   []Font
	fills   []fill
	borders []BorderFormat
	cellXfs []CellXf
}

func NewCellFormats() *CellFormats {
	return &CellFormats{
		numFmts: map[NumFmtID]string{},
		cellXfs: []CellXf{
			StyleDefault:  {NumFmt: NumFmtGeneral},
			StyleDate:     {NumFmt: NumFmtDate},
			StyleDatetime: {NumFmt: NumFmtDatetime},
		},
	}
}

// AddNumberFormat registers a custom number format pattern such as
// `"€"#,##0.00`.
func (cf *CellFormats) AddNumberFormat(pattern string) NumFmtID {
	id := NumFmtID(BaseNumFmtCustom + len(cf.numFmts))
	cf.numFmts[id] = pattern
	return id
}

func (cf *CellFormats) AddFont(f Font) FontID {
	id := FontID(BaseFont + len(cf.fonts))
	cf.fonts = append(cf.fonts, f)
	return id
}

// AddFill registers a solid pattern fill.
func (cf *CellFormats) AddFill(fg, bg Color) FillID {
	id := FillID(BaseFill + len(cf.fills))
	cf.fills = append(cf.fills, fill{fg: fg, bg: bg})
	return id
}

func (cf *CellFormats) AddBorder(b BorderFormat) BorderID {
	id := BorderID(BaseBorder + len(cf.borders))
	cf.borders = append(cf.borders, b)
	return id
}

func (cf *CellFormats) AddCellXf(xf CellXf) StyleID {
	id := StyleID(len(cf.cellXfs))
	cf.cellXfs = append(cf.cellXfs, xf)
	return id
}

// NumberFormat returns the pattern registered under id.
func (cf *CellFormats) NumberFormat(id NumFmtID) (string, bool) {
	s, ok := cf.numFmts[id]
	return s, ok
}

// CellXfCount includes the pre-seeded styles.
func (cf *CellFormats) CellXfCount() int {
	return len(cf.cellXfs)
}

func (cf *CellFormats) render() ([]byte, error) {
	bb := bytes.Buffer{}
	x := xml.NewWriter(&bb, xml.WriterConfig{Indent: xml.Indent2Spaces})
	x.XmlStandaloneDecl()

	x.OTag("styleSheet")
	x.Attr("xmlns", nsMain)

	if len(cf.numFmts) > 0 {
		x.OTag("+numFmts").Attr("count", len(cf.numFmts))
		err := enumerate(cf.numFmts, func(id NumFmtID, pattern string) error {
			x.OTag("+numFmt").Attr("numFmtId", int(id)).Attr("formatCode", pattern).CTag()
			return nil
		})
		if err != nil {
			return nil, err
		}
		x.CTag()
	}

	x.OTag("+fonts").Attr("count", BaseFont+len(cf.fonts))
	writeFont(x, &Font{})
	for i := range cf.fonts {
		writeFont(x, &cf.fonts[i])
	}
	x.CTag()

	x.OTag("+fills").Attr("count", BaseFill+len(cf.fills))
	x.OTag("+fill")
	x.OTag("+patternFill").Attr("patternType", "none").CTag()
	x.CTag()
	x.OTag("+fill")
	x.OTag("+patternFill").Attr("patternType", "gray125").CTag()
	x.CTag()
	for _, f := range cf.fills {
		x.OTag("+fill")
		x.OTag("+patternFill").Attr("patternType", "solid")
		x.OTag("+fgColor")
		writeColor(x, f.fg)
		x.CTag()
		x.OTag("+bgColor")
		writeColor(x, f.bg)
		x.CTag()
		x.CTag() // patternFill
		x.CTag() // fill
	}
	x.CTag()

	x.OTag("+borders").Attr("count", BaseBorder+len(cf.borders))
	writeBorder(x, &BorderFormat{})
	for i := range cf.borders {
		writeBorder(x, &cf.borders[i])
	}
	x.CTag()

	x.OTag("+cellStyleXfs").Attr("count", 1)
	x.OTag("+xf").Attr("numFmtId", 0).Attr("fontId", 0).Attr("fillId", 0).Attr("borderId", 0).CTag()
	x.CTag()

	x.OTag("+cellXfs").Attr("count", len(cf.cellXfs))
	for _, xf := range cf.cellXfs {
		if err := cf.checkXf(xf); err != nil {
			return nil, err
		}
		x.OTag("+xf")
		x.Attr("numFmtId", int(xf.NumFmt))
		x.Attr("fontId", int(xf.Font))
		x.Attr("fillId", int(xf.Fill))
		x.Attr("borderId", int(xf.Border))
		x.Attr("xfId", 0)
		if xf.NumFmt > 0 {
			x.Attr("applyNumberFormat", 1)
		}
		if xf.Font > 0 {
			x.Attr("applyFont", 1)
		}
		if xf.Fill > 0 {
			x.Attr("applyFill", 1)
		}
		if xf.Border > 0 {
			x.Attr("applyBorder", 1)
		}
		if a := xf.Alignment; a != nil {
			x.Attr("applyAlignment", 1)
			x.OTag("+alignment")
			if a.Horizontal != HAlignGeneral {
				x.Attr("horizontal", string(a.Horizontal))
			}
			if a.Vertical != VAlignBottom {
				x.Attr("vertical", string(a.Vertical))
			}
			if a.WrapText {
				x.Attr("wrapText", 1)
			}
			x.CTag()
		}
		x.CTag()
	}
	x.CTag()

	x.OTag("+cellStyles").Attr("count", 1)
	x.OTag("+cellStyle").Attr("name", "Normal").Attr("xfId", 0).Attr("builtinId", 0).CTag()
	x.CTag()

	x.OTag("+dxfs").Attr("count", 0).CTag()
	x.OTag("+tableStyles").Attr("count", 0).Attr("defaultTableStyle", "TableStyleMedium9").Attr("defaultPivotStyle", "PivotStyleMedium4").CTag()

	x.CTag() // styleSheet

	return bb.Bytes(), nil
}

// checkXf rejects ids that were never issued by this instance.
func (cf *CellFormats) checkXf(xf CellXf) error {
	if xf.NumFmt >= BaseNumFmtCustom {
		if _, ok := cf.numFmts[xf.NumFmt]; !ok {
			return fmt.Errorf("unknown number format id %d", xf.NumFmt)
		}
	}
	if int(xf.Font) >= BaseFont+len(cf.fonts) || xf.Font < 0 {
		return fmt.Errorf("unknown font id %d", xf.Font)
	}
	if int(xf.Fill) >= BaseFill+len(cf.fills) || xf.Fill < 0 {
		return fmt.Errorf("unknown fill id %d", xf.Fill)
	}
	if int(xf.Border) >= BaseBorder+len(cf.borders) || xf.Border < 0 {
		return fmt.Errorf("unknown border id %d", xf.Border)
	}
	return nil
}

func writeFont(x *xml.Writer, f *Font) {
	x.OTag("+font")
	if f.Bold {
		x.OTag("+b").CTag()
	}
	if f.Italic {
		x.OTag("+i").CTag()
	}
	if f.Strikethrough {
		x.OTag("+strike").CTag()
	}
	if f.Underline != UnderlineNone {
		x.OTag("+u").Attr("val", string(f.Underline)).CTag()
	}
	x.OTag("+sz").Attr("val", strconv.FormatFloat(f.size(), 'f', -1, 64)).CTag()
	x.OTag("+color")
	if f.Color != nil {
		writeColor(x, *f.Color)
	} else {
		x.Attr("theme", 1)
	}
	x.CTag()
	x.OTag("+name").Attr("val", f.name()).CTag()
	if f.name() == defaultFontName {
		x.OTag("+family").Attr("val", 2).CTag()
		x.OTag("+scheme").Attr("val", "minor").CTag()
	}
	x.CTag()
}

// writeColor adds the color attributes to the currently open tag.
func writeColor(x *xml.Writer, c Color) {
	if c.isTheme {
		x.Attr("theme", c.theme)
	} else {
		x.Attr("rgb", fmt.Sprintf("%08X", c.argb))
	}
}

// Edge order is fixed by CT_Border.
func writeBorder(x *xml.Writer, b *BorderFormat) {
	x.OTag("+border")
	x.OTag("+left")
	writeEdge(x, b.Left)
	x.CTag()
	x.OTag("+right")
	writeEdge(x, b.Right)
	x.CTag()
	x.OTag("+top")
	writeEdge(x, b.Top)
	x.CTag()
	x.OTag("+bottom")
	writeEdge(x, b.Bottom)
	x.CTag()
	x.OTag("+diagonal").CTag()
	x.CTag()
}

func writeEdge(x *xml.Writer, e *BorderEdge) {
	if e == nil || e.Style == "" || e.Style == BorderNone {
		return
	}
	x.Attr("style", string(e.Style))
	x.OTag("+color")
	writeColor(x, e.Color)
	x.CTag()
}
