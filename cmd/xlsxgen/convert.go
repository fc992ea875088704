package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/adnsv/go-xlw/xl"
	"go.alis.build/alog"
	"golang.org/x/exp/maps"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Config describes one conversion run.
type Config struct {
	Output        string
	Inputs        []string
	InlineStrings bool
	Encoding      encoding.Encoding // nil means UTF-8
	Layout        *Layout
	Header        bool
	AutoFilter    bool
	Stage         bool
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// Convert writes every input as a sheet of cfg.Output. Nothing is written
// when any input fails.
func Convert(ctx context.Context, cfg Config) error {
	opts := []xl.Option{xl.WithAppName("xlsxgen")}
	if cfg.Stage {
		opts = append(opts, xl.WithStaging(""))
	}
	var wb *xl.Workbook
	if cfg.InlineStrings {
		wb = xl.CreateSimple(cfg.Output, opts...)
	} else {
		wb = xl.Create(cfg.Output, opts...)
	}

	c := &converter{wb: wb, cfg: cfg}
	if cfg.Header {
		c.headerStyle = wb.AddCellXf(xl.CellXf{Font: wb.AddFont(xl.Font{Bold: true})})
	}
	for _, in := range cfg.Inputs {
		if err := c.addSheet(ctx, in); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
	}
	_, err := wb.Close()
	return err
}

type converter struct {
	wb          *xl.Workbook
	cfg         Config
	headerStyle xl.StyleID
}

func (c *converter) addSheet(ctx context.Context, input string) error {
	layout, _ := c.cfg.Layout.For(input)

	name := layout.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	sheet, err := c.wb.CreateSheet(name)
	if err != nil {
		return err
	}
	for _, w := range layout.Widths {
		sheet.AddColumn(xl.Column{Width: w})
	}

	columnStyles := map[int]xl.StyleID{}
	cols := maps.Keys(layout.Formats)
	slices.Sort(cols)
	for _, col := range cols {
		n, err := columnIndex(col)
		if err != nil {
			return err
		}
		numFmt := c.wb.AddNumberFormat(layout.Formats[col])
		columnStyles[n] = c.wb.AddCellXf(xl.CellXf{NumFmt: numFmt})
	}

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if c.cfg.Encoding != nil {
		r = c.cfg.Encoding.NewDecoder().Reader(f)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	width := 0
	err = c.wb.WriteSheet(sheet, func(sw *xl.SheetWriter) error {
		for {
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			first := sw.Sheet().RowCount() == 0
			row := &xl.Row{}
			for i, field := range record {
				v := parseCell(field)
				switch {
				case first && c.cfg.Header:
					v = v.WithStyle(c.headerStyle)
				case v.Kind() == xl.KindNumber:
					if s, ok := columnStyles[i+1]; ok {
						v = v.WithStyle(s)
					}
				}
				row.AddCell(v)
			}
			width = max(width, len(record))
			if err := sw.AppendRow(row); err != nil {
				return err
			}
		}
		for _, m := range layout.Merge {
			start, end, err := splitRange(m)
			if err != nil {
				return err
			}
			if err := sw.MergeRange(start, end); err != nil {
				return err
			}
		}
		if c.cfg.AutoFilter && width > 0 {
			sw.Sheet().AddAutoFilter(1, width, 1, sw.Sheet().RowCount())
		}
		return nil
	})
	if err != nil {
		return err
	}
	alog.Debugf(ctx, "sheet %q: %d rows, %d columns", sheet.Name, sheet.RowCount(), width)
	return nil
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02T15:04:05"
)

// parseCell types a CSV field.
func parseCell(s string) xl.CellValue {
	switch {
	case s == "":
		return xl.Empty()
	case strings.EqualFold(s, "true"):
		return xl.Bool(true)
	case strings.EqualFold(s, "false"):
		return xl.Bool(false)
	case strings.HasPrefix(s, "="):
		return xl.Formula(s)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return xl.Date(t)
	}
	if t, err := time.Parse(datetimeLayout, s); err == nil {
		return xl.Datetime(t)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return xl.Number(f)
	}
	return xl.Text(s)
}
