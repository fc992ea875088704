package xl

import (
	"time"

	"github.com/google/uuid"
)

// Properties are the document properties written to docProps/core.xml.
type Properties struct {
	Title       string
	Subject     string
	Creator     string
	Keywords    string
	Description string
	Created     time.Time // zero means the time of Close
	Identifier  uuid.UUID // zero means a random id chosen at construction
}

// Option configures a Workbook at construction.
type Option func(*Workbook)

// WithSharedStrings switches the shared string table on or off. When off,
// text cells are written inline.
func WithSharedStrings(enabled bool) Option {
	return func(wb *Workbook) {
		wb.strings = NewSharedStrings(enabled)
	}
}

// WithAppName sets the Application property in docProps/app.xml.
func WithAppName(name string) Option {
	return func(wb *Workbook) {
		wb.AppName = name
	}
}

func WithProperties(p Properties) Option {
	return func(wb *Workbook) {
		wb.Properties = p
	}
}

// WithStaging makes Close lay the package out as files under a temporary
// directory inside dir ("" for the system default), zip that directory
// into the destination, and remove it again. It has no effect on in-memory
// workbooks.
func WithStaging(dir string) Option {
	return func(wb *Workbook) {
		wb.staging = true
		wb.stagingDir = dir
	}
}
