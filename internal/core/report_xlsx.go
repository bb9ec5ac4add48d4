package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook report.
const (
	SheetErrors      = "Errors"
	SheetReferences  = "Reference Data"
	SheetSuggestions = "Suggestions"
)

// WriteWorkbookReport renders the XLSX error report.
// The "Reference Data" sheet is only added when reference data is available.
func WriteWorkbookReport(w io.Writer, r DefectReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetErrors); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeErrorsSheet(f, r, bold); err != nil {
		return err
	}
	if !r.References.Empty() {
		if err := writeReferencesSheet(f, r.References, bold); err != nil {
			return err
		}
	}
	if err := writeSuggestionsSheet(f, r.Hints, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeErrorsSheet(f *excelize.File, r DefectReport, headerStyle int) error {
	header := []interface{}{"Line"}
	for _, field := range CanonicalFields {
		header = append(header, field.Label())
	}
	header = append(header, "Status", "Reasons")

	if err := writeHeaderRow(f, SheetErrors, header, headerStyle); err != nil {
		return err
	}

	for i, d := range r.Defects {
		row := []interface{}{d.Line}
		for _, field := range CanonicalFields {
			row = append(row, d.Normalized.Get(field))
		}
		row = append(row, string(d.Status), strings.Join(d.Reasons, "; "))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetErrors, cell, &row); err != nil {
			return fmt.Errorf("write error row %d: %w", d.Line, err)
		}
	}

	if err := f.SetColWidth(SheetErrors, "B", "H", 24); err != nil {
		return err
	}
	return f.SetColWidth(SheetErrors, "I", "I", 80)
}

func writeReferencesSheet(f *excelize.File, refs References, headerStyle int) error {
	if _, err := f.NewSheet(SheetReferences); err != nil {
		return fmt.Errorf("create sheet %q: %w", SheetReferences, err)
	}

	header := []interface{}{"Companies", "Departments", "Positions"}
	if err := writeHeaderRow(f, SheetReferences, header, headerStyle); err != nil {
		return err
	}

	columns := [][]string{refs.Companies.Names(), refs.Departments.Names(), refs.Positions.Names()}
	for col, names := range columns {
		for i, name := range names {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(SheetReferences, cell, name); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(SheetReferences, "A", "C", 32)
}

func writeSuggestionsSheet(f *excelize.File, hints []string, headerStyle int) error {
	if _, err := f.NewSheet(SheetSuggestions); err != nil {
		return fmt.Errorf("create sheet %q: %w", SheetSuggestions, err)
	}

	if err := writeHeaderRow(f, SheetSuggestions, []interface{}{"#", "Suggestion"}, headerStyle); err != nil {
		return err
	}
	for i, hint := range hints {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, hint}
		if err := f.SetSheetRow(SheetSuggestions, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(SheetSuggestions, "B", "B", 100)
}

func writeHeaderRow(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}
