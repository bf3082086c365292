// Package export generates the reference upload templates for each catalog
// category in XLSX and CSV formats.
package export

import "errors"

// Format represents the template output format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" (default when empty) or "csv".
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates the requested template format is unknown.
	ErrUnsupportedFormat = errors.New("export format not supported")
)
