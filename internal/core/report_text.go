package core

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const textRule = "----------------------------------------------------------------"

// WriteTextReport renders the plain-text error report.
func WriteTextReport(w io.Writer, r DefectReport) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "COLLABORATOR IMPORT ERROR REPORT")
	fmt.Fprintf(bw, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "File: %s\n", r.FileName)
	fmt.Fprintf(bw, "Rows with errors: %d of %d\n", len(r.Defects), r.Counts.Total)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "SUMMARY")
	if len(r.Reasons) == 0 {
		fmt.Fprintln(bw, "  No errors.")
	}
	for _, rc := range r.Reasons {
		fmt.Fprintf(bw, "  %4dx  %s\n", rc.Count, rc.Reason)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "DETAILS")
	for _, d := range r.Defects {
		fmt.Fprintln(bw, textRule)
		fmt.Fprintf(bw, "Line %d (%s)\n", d.Line, d.Status)
		fmt.Fprintf(bw, "  Data: %s\n", dumpCells(d.Raw.Cells))
		fmt.Fprintln(bw, "  Reasons:")
		for _, reason := range d.Reasons {
			fmt.Fprintf(bw, "    - %s\n", reason)
		}
	}
	if len(r.Defects) > 0 {
		fmt.Fprintln(bw, textRule)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "SUGGESTIONS")
	for i, hint := range r.Hints {
		fmt.Fprintf(bw, "  %d. %s\n", i+1, hint)
	}

	if !r.References.Empty() {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "REFERENCE DATA")
		writeReferenceList(bw, "Companies", r.References.Companies)
		writeReferenceList(bw, "Departments", r.References.Departments)
		writeReferenceList(bw, "Positions", r.References.Positions)
	}

	return bw.Flush()
}

func writeReferenceList(w io.Writer, title string, set ReferenceSet) {
	fmt.Fprintf(w, "%s (%d):\n", title, set.Len())
	for _, name := range set.Names() {
		fmt.Fprintf(w, "  - %s\n", name)
	}
}

// dumpCells renders a raw row as "Header: value | Header: value".
func dumpCells(cells []Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprintf("%s: %s", c.Header, c.Value)
	}
	return strings.Join(parts, " | ")
}
