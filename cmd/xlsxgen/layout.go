package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/adnsv/go-xlw/xl"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Layout customizes the sheets produced from individual CSV inputs.
type Layout struct {
	Sheets []SheetLayout `yaml:"sheets" validate:"dive"`
}

// SheetLayout applies to the input whose base name equals Source.
type SheetLayout struct {
	Source  string            `yaml:"source" validate:"required"`
	Name    string            `yaml:"name" validate:"omitempty,max=31"`
	Widths  []float32         `yaml:"widths" validate:"dive,gt=0"`
	Merge   []string          `yaml:"merge" validate:"dive,required"`
	Formats map[string]string `yaml:"formats" validate:"dive,keys,required,alpha,endkeys,required"`
}

var validate = validator.New()

// LoadLayout reads and validates a layout file. Unknown keys are rejected.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLayout(data)
}

func ParseLayout(data []byte) (*Layout, error) {
	l := &Layout{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(l); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := validate.Struct(l); err != nil {
		return nil, err
	}
	for _, s := range l.Sheets {
		for _, m := range s.Merge {
			if _, _, err := splitRange(m); err != nil {
				return nil, fmt.Errorf("sheet %s: %w", s.Source, err)
			}
		}
		for col := range s.Formats {
			if _, err := columnIndex(col); err != nil {
				return nil, fmt.Errorf("sheet %s: %w", s.Source, err)
			}
		}
	}
	return l, nil
}

// For returns the entry matching the base name of an input path.
func (l *Layout) For(input string) (SheetLayout, bool) {
	if l == nil {
		return SheetLayout{}, false
	}
	base := filepath.Base(input)
	for _, s := range l.Sheets {
		if s.Source == base {
			return s, true
		}
	}
	return SheetLayout{}, false
}

// splitRange splits "A1:C2" into its two references and checks both.
func splitRange(r string) (string, string, error) {
	start, end, ok := strings.Cut(r, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", xl.ErrInvalidRange, r)
	}
	if _, _, err := xl.ParseCellCoord(start); err != nil {
		return "", "", err
	}
	if _, _, err := xl.ParseCellCoord(end); err != nil {
		return "", "", err
	}
	return start, end, nil
}

// columnIndex converts column letters such as "C" to a 1-based index.
func columnIndex(letters string) (int, error) {
	col, _, err := xl.ParseCellCoord(letters + "1")
	return col, err
}
