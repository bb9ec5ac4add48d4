package core

// parser.go converts an uploaded CSV or XLSX file into ordered RawRows.
//
// Text files are parsed by trying each candidate delimiter in turn until
// one yields a usable table (a header with at least two columns followed
// by at least one non-blank row). Workbooks are read from the first sheet
// only. Line numbers always refer to the physical line or sheet row the
// operator sees in their editor, with the header on line 1 when it is the
// first line of the file.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// FileFormat is the container format of an uploaded file.
type FileFormat string

const (
	FormatText     FileFormat = "text"
	FormatWorkbook FileFormat = "xlsx"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// textExtensions are always parsed as delimited text.
var textExtensions = map[string]bool{
	"":     true,
	".csv": true,
	".txt": true,
	".tsv": true,
}

// ParseResult is the parser's output for one file.
type ParseResult struct {
	Format    FileFormat
	Delimiter rune   // Delimiter that produced the rows; 0 for workbooks
	Encoding  string // Text encoding; empty for workbooks
	Sheet     string // Sheet name; empty for text files
	Headers   []string
	Rows      []RawRow
	Warnings  []Warning
}

// DetectFormat decides how a file is parsed from its name and content.
func DetectFormat(fileName string, data []byte) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xlsx" || ext == ".xlsm" {
		return FormatWorkbook, nil
	}

	mt := mimetype.Detect(data)
	if mt.Is(mimeXLSX) || mt.Is("application/zip") {
		return FormatWorkbook, nil
	}
	if textExtensions[ext] || strings.HasPrefix(mt.String(), "text/") {
		return FormatText, nil
	}

	return "", &UnsupportedFormatError{MIME: mt.String()}
}

// Parse reads every data row of the file.
//
// It returns ErrEmptyFile when the file has no data rows at all and
// ErrNoData when content exists but no delimiter produced a usable table.
// Missing canonical columns are reported as a warning, not an error.
func Parse(fileName string, data []byte) (*ParseResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	format, err := DetectFormat(fileName, data)
	if err != nil {
		return nil, err
	}

	var result *ParseResult
	switch format {
	case FormatWorkbook:
		result, err = parseWorkbook(data)
	default:
		result, err = parseText(data)
	}
	if err != nil {
		return nil, err
	}

	if missing := MissingCanonicalHeaders(result.Headers); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, f := range missing {
			labels[i] = f.Label()
		}
		result.Warnings = append(result.Warnings, Warning{
			Code:    WarnMissingHeaders,
			Message: "missing expected columns: " + strings.Join(labels, ", "),
		})
	}

	return result, nil
}

// parseText decodes the bytes and folds tryParse over the candidate delimiters.
func parseText(data []byte) (*ParseResult, error) {
	decoded, err := DecodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	if len(splitLines(decoded.Text)) < 2 {
		return nil, ErrEmptyFile
	}

	for _, d := range CandidateDelimiters {
		headers, rows := tryParse(decoded.Text, d)
		if len(rows) == 0 {
			continue
		}
		return &ParseResult{
			Format:    FormatText,
			Delimiter: d,
			Encoding:  decoded.Encoding,
			Headers:   headers,
			Rows:      rows,
		}, nil
	}

	return nil, ErrNoData
}

// tryParse parses text with one delimiter. It returns no rows when the
// attempt is not usable: the header splits into fewer than two columns or
// no non-blank data row follows it.
func tryParse(text string, delim rune) ([]string, []RawRow) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var headers []string
	var rows []RawRow

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil
		}
		if isBlankRecord(rec) {
			continue
		}

		line, _ := r.FieldPos(0)

		if headers == nil {
			if len(rec) < 2 {
				return nil, nil
			}
			headers = cleanHeaders(rec)
			continue
		}

		rows = append(rows, buildRawRow(line, headers, rec))
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return headers, rows
}

// parseWorkbook reads the first sheet of an XLSX file.
func parseWorkbook(data []byte) (*ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrEmptyFile)
	}
	sheet := sheets[0]

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, ErrEmptyFile)
	}

	var headers []string
	var rows []RawRow
	for i, rec := range records {
		if isBlankRecord(rec) {
			continue
		}
		if headers == nil {
			headers = cleanHeaders(rec)
			continue
		}
		rows = append(rows, buildRawRow(i+1, headers, rec))
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q: %w", sheet, ErrEmptyFile)
	}

	return &ParseResult{
		Format:  FormatWorkbook,
		Sheet:   sheet,
		Headers: headers,
		Rows:    rows,
	}, nil
}

// cleanHeaders trims header cells and names blank ones by position.
func cleanHeaders(rec []string) []string {
	headers := make([]string, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers[i] = h
	}
	return headers
}

// buildRawRow pairs record values with headers. Missing trailing cells are "";
// values past the last header are kept under positional column_N names.
func buildRawRow(line int, headers, rec []string) RawRow {
	cells := make([]Cell, len(headers), max(len(headers), len(rec)))
	for i, h := range headers {
		v := ""
		if i < len(rec) {
			v = rec[i]
		}
		cells[i] = Cell{Header: h, Value: v}
	}
	for i := len(headers); i < len(rec); i++ {
		cells = append(cells, Cell{Header: fmt.Sprintf("column_%d", i+1), Value: rec[i]})
	}
	return RawRow{Line: line, Cells: cells}
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
