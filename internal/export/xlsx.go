// Package export renders the current form layout as a spreadsheet report.
package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/extraction"
	"github.com/a3tai/pdf-form-overlay/internal/session"
)

const (
	// SheetFields lists every field, one per row
	SheetFields = "Fields"
	// SheetSummary holds per-document totals
	SheetSummary = "Summary"
)

var fieldHeader = []interface{}{
	"Page", "Kind", "Index", "Name",
	"X", "Y", "Width", "Height",
	"PDF X1", "PDF Y1", "PDF X2", "PDF Y2",
	"Value", "Checked",
}

// FieldReport builds an XLSX workbook describing layout's fields and values
func FieldReport(layout *session.Layout) ([]byte, error) {
	if layout == nil {
		return nil, fmt.Errorf("no layout to export")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetFields); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeFields(f, layout); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("create sheet %q: %w", SheetSummary, err)
	}
	if err := writeSummary(f, layout); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFields(f *excelize.File, layout *session.Layout) error {
	if err := f.SetSheetRow(SheetFields, "A1", &fieldHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetFields, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, page := range layout.Pages {
		for _, field := range page.Fields {
			values := []interface{}{
				page.Index + 1, string(field.Kind), field.Index, field.Name,
				round(field.Rect.X), round(field.Rect.Y), round(field.Rect.Width), round(field.Rect.Height),
				round(field.PDFRect.X1), round(field.PDFRect.Y1), round(field.PDFRect.X2), round(field.PDFRect.Y2),
				field.Value, "",
			}
			if field.Kind == extraction.FormFieldTypeCheckbox {
				values[13] = yesNo(field.Checked)
			}

			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(SheetFields, cell, &values); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}

	return f.SetColWidth(SheetFields, "D", "D", 24)
}

func writeSummary(f *excelize.File, layout *session.Layout) error {
	texts, boxes := layout.FieldCounts()
	edited, checked := 0, 0
	for _, page := range layout.Pages {
		for _, field := range page.Fields {
			if field.Value != "" {
				edited++
			}
			if field.Checked {
				checked++
			}
		}
	}

	rows := [][]interface{}{
		{"Session", layout.Token},
		{"Pages", len(layout.Pages)},
		{"Text fields", texts},
		{"Checkboxes", boxes},
		{"Filled text fields", edited},
		{"Checked boxes", checked},
	}
	for i, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &values); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
