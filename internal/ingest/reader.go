package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"coachcatalog/api/internal/catalog"
	"github.com/xuri/excelize/v2"
)

const maxUploadBytes = 10 << 20

// Table is a parsed tabular file: a header and its non-blank data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Supported reports whether fileName has a tabular extension.
func Supported(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// ReadTable parses a .csv or .xlsx upload. Other extensions are rejected
// before reading.
func ReadTable(fileName string, r io.Reader) (Table, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !Supported(fileName) {
		return Table{}, &catalog.ParseError{FileName: fileName, Reason: "no es un archivo tabular (usa .csv o .xlsx)"}
	}
	if r == nil {
		return Table{}, &catalog.ParseError{FileName: fileName, Reason: "archivo vacío"}
	}
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return Table{}, &catalog.ParseError{FileName: fileName, Reason: "no se pudo leer el archivo", Err: err}
	}
	if len(data) > maxUploadBytes {
		return Table{}, &catalog.ParseError{FileName: fileName, Reason: "el archivo supera los 10 MB"}
	}

	var records [][]string
	if ext == ".csv" {
		records, err = readCSV(data)
	} else {
		records, err = readWorkbook(data)
	}
	if err != nil {
		return Table{}, &catalog.ParseError{FileName: fileName, Reason: "formato dañado", Err: err}
	}

	var table Table
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if table.Header == nil {
			table.Header = trimAll(rec)
			continue
		}
		table.Rows = append(table.Rows, trimAll(rec))
	}
	return table, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as spreadsheets exported with a Spanish locale do.
func sniffDelimiter(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxUploadBytes)
	if !sc.Scan() {
		return ','
	}
	line := sc.Text()
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, c := range rec {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
