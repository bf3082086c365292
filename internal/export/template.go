package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/ingest"
	"github.com/xuri/excelize/v2"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv; charset=utf-8"
)

// Template renders the reference file for category: the expected header and
// one example row. It has no side effects.
func Template(category catalog.Category, format Format) (*Result, error) {
	cols := ingest.TemplateColumns(category)
	header := make([]string, len(cols))
	example := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
		example[i] = c.Example
	}

	name := sanitizeFilename("plantilla " + category.Label())
	switch format {
	case FormatCSV:
		data, err := renderCSV(header, example)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: name + ".csv", MimeType: mimeCSV}, nil
	case FormatXLSX:
		data, err := renderXLSX(category, header, example)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: name + ".xlsx", MimeType: mimeXLSX}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func renderCSV(header, example []string) ([]byte, error) {
	var buf bytes.Buffer
	// BOM so spreadsheet apps open accents correctly.
	buf.WriteString("\xef\xbb\xbf")
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.WriteAll([][]string{header, example}); err != nil {
		return nil, fmt.Errorf("write csv template: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(category catalog.Category, header, example []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := category.Label()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	for i, values := range [][]string{header, example} {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write template row: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx template: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeFilename creates a safe filename from a title
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		}
	}
	if result == "" {
		return "plantilla"
	}
	if len(result) > 50 {
		result = result[:50]
	}
	return result
}
