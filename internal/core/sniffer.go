package core

// sniffer.go inspects a text file before parsing and reports problems the
// operator may want to fix. Its output is advisory: the parser never relies
// on the guessed delimiter and nothing here fails an import.

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// CandidateDelimiters lists the delimiters tried, in tie-break order.
var CandidateDelimiters = []rune{';', ',', '\t'}

// MaxReportedLines caps how many offending line numbers a warning lists.
var MaxReportedLines = 5

// Warning codes reported by the sniffer and the parser.
const (
	WarnBOM            = "bom"
	WarnNonASCII       = "non_ascii"
	WarnEncoding       = "encoding"
	WarnHeaderOnly     = "header_only"
	WarnFieldCount     = "field_count"
	WarnMissingHeaders = "missing_headers"
)

// Warning is a non-fatal observation about the uploaded file.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Message
}

// Dialect is the sniffer's view of a text file.
type Dialect struct {
	Delimiter    rune      `json:"delimiter"`
	HeaderFields int       `json:"headerFields"`
	DataLines    int       `json:"dataLines"`
	BOM          BOMKind   `json:"bom,omitempty"`
	Encoding     string    `json:"encoding"`
	NonASCII     bool      `json:"nonAscii"`
	Warnings     []Warning `json:"warnings,omitempty"`
}

// DelimiterName returns a readable name for a delimiter rune.
func DelimiterName(d rune) string {
	switch d {
	case ';':
		return "semicolon"
	case ',':
		return "comma"
	case '\t':
		return "tab"
	default:
		return fmt.Sprintf("%q", d)
	}
}

type sourceLine struct {
	num  int // 1-based physical line
	text string
}

// splitLines returns the non-blank lines of text with their physical numbers.
func splitLines(text string) []sourceLine {
	raw := strings.Split(text, "\n")
	lines := make([]sourceLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, sourceLine{num: i + 1, text: l})
	}
	return lines
}

// Sniff inspects raw file bytes and never fails.
func Sniff(data []byte) Dialect {
	d := Dialect{
		Delimiter: CandidateDelimiters[0],
		BOM:       DetectBOM(data),
		NonASCII:  !isAllASCII(data),
	}

	text := string(data)
	if decoded, err := DecodeText(data); err == nil {
		text = decoded.Text
		d.Encoding = decoded.Encoding
	} else {
		d.Encoding = "unknown"
	}

	if d.BOM != BOMNone {
		d.Warnings = append(d.Warnings, Warning{
			Code:    WarnBOM,
			Message: fmt.Sprintf("file starts with a %s byte order mark", d.BOM),
		})
	}
	if d.NonASCII {
		d.Warnings = append(d.Warnings, Warning{
			Code:    WarnNonASCII,
			Message: fmt.Sprintf("file contains non-ASCII characters (read as %s)", d.Encoding),
		})
	}
	if d.Encoding == "Windows-1252" {
		d.Warnings = append(d.Warnings, Warning{
			Code:    WarnEncoding,
			Message: "file is not valid UTF-8; it was read as Windows-1252",
		})
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		d.Warnings = append(d.Warnings, headerOnlyWarning())
		return d
	}

	d.Delimiter = likelyDelimiter(lines[0].text)
	d.HeaderFields = countFields(lines[0].text, d.Delimiter)
	d.DataLines = len(lines) - 1

	if d.DataLines == 0 {
		d.Warnings = append(d.Warnings, headerOnlyWarning())
		return d
	}

	var offending []int
	for _, l := range lines[1:] {
		if countFields(l.text, d.Delimiter) != d.HeaderFields {
			offending = append(offending, l.num)
		}
	}
	if len(offending) > 0 {
		d.Warnings = append(d.Warnings, fieldCountWarning(offending, d.HeaderFields))
	}

	return d
}

func headerOnlyWarning() Warning {
	return Warning{Code: WarnHeaderOnly, Message: "file has header only or is empty"}
}

func fieldCountWarning(lines []int, want int) Warning {
	shown := lines
	if len(shown) > MaxReportedLines {
		shown = shown[:MaxReportedLines]
	}
	nums := make([]string, len(shown))
	for i, n := range shown {
		nums[i] = fmt.Sprint(n)
	}
	msg := fmt.Sprintf("%d line(s) have a different number of fields than the header (%d): %s",
		len(lines), want, strings.Join(nums, ", "))
	if len(lines) > len(shown) {
		msg += ", ..."
	}
	return Warning{Code: WarnFieldCount, Message: msg}
}

// likelyDelimiter picks the candidate occurring most often in the header
// line. Ties go to the earlier candidate.
func likelyDelimiter(header string) rune {
	best, bestCount := CandidateDelimiters[0], -1
	for _, c := range CandidateDelimiters {
		if n := strings.Count(header, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// countFields splits a single line with CSV quoting rules.
func countFields(line string, delim rune) int {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return strings.Count(line, string(delim)) + 1
	}
	return len(fields)
}
