package core

// report.go aggregates defective rows for the error reports.
//
// Both renderers (report_text.go and report_xlsx.go) consume the same
// DefectReport so the text and workbook reports always list the same rows
// and reasons. Aggregation never mutates the session.

import (
	"fmt"
	"sort"
	"time"
)

// ReportBaseName is the file name prefix of both error reports.
const ReportBaseName = "erros_importacao"

// ReportHints are the fixed suggestions printed at the end of every report.
var ReportHints = []string{
	"Check that the header row contains the columns Name, Email, Tax ID, Company, Department and Position.",
	"Company, department and position names must match the registered names exactly; letter case is ignored.",
	"Tax ID must contain digits; dots, dashes and spaces are removed automatically.",
	"Save the file as UTF-8 CSV (semicolon, comma or tab separated) or as XLSX.",
	"Correct only the rows listed in this report and upload them again in a new file.",
}

// DefectRow is one row of the error report.
type DefectRow struct {
	Line       int
	Status     RowStatus
	Raw        RawRow
	Normalized NormalizedRow
	Reasons    []string
}

// DefectReport is the shared input of both report renderers.
type DefectReport struct {
	GeneratedAt time.Time
	FileName    string
	Counts      Counts
	Defects     []DefectRow
	Reasons     []ReasonCount // frequency desc, then reason asc
	Hints       []string
	References  References
}

// AggregateDefects collects validationError and serverError rows of a session.
// Successful rows never appear.
func AggregateDefects(s *ImportSession, now time.Time) DefectReport {
	r := DefectReport{
		GeneratedAt: now,
		FileName:    s.FileName,
		Counts:      s.Counts(),
		Reasons:     ReasonFrequencies(s.Outcomes),
		Hints:       ReportHints,
		References:  s.References,
	}

	for _, o := range s.Outcomes {
		if !o.Status.IsDefect() {
			continue
		}
		r.Defects = append(r.Defects, DefectRow{
			Line:       o.Line,
			Status:     o.Status,
			Raw:        o.Raw,
			Normalized: o.Normalized,
			Reasons:    append([]string(nil), o.Reasons...),
		})
	}

	sort.SliceStable(r.Defects, func(i, j int) bool {
		return r.Defects[i].Line < r.Defects[j].Line
	})

	return r
}

// ReasonFrequencies counts reasons across defective rows, most frequent first.
// Ties are ordered alphabetically.
func ReasonFrequencies(outcomes []RowOutcome) []ReasonCount {
	counts := make(map[string]int)
	for _, o := range outcomes {
		if !o.Status.IsDefect() {
			continue
		}
		for _, reason := range o.Reasons {
			counts[reason]++
		}
	}

	freq := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		freq = append(freq, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(freq, func(i, j int) bool {
		if freq[i].Count != freq[j].Count {
			return freq[i].Count > freq[j].Count
		}
		return freq[i].Reason < freq[j].Reason
	})
	return freq
}

// TopReasons returns at most n of the most frequent defect reasons.
func TopReasons(outcomes []RowOutcome, n int) []ReasonCount {
	freq := ReasonFrequencies(outcomes)
	if len(freq) > n {
		freq = freq[:n]
	}
	return freq
}

// ReportFileName returns the download name for a report generated at t,
// e.g. "erros_importacao_2024-05-31.xlsx".
func ReportFileName(ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", ReportBaseName, t.Format("2006-01-02"), ext)
}
