package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxSheet       = "Report"
	xlsxMinColWidth = 10
	xlsxMaxColWidth = 60
)

// XLSXExporter renders datasets into a single-sheet workbook with a bold,
// filterable header row.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render produces workbook bytes for the dataset. The title lands in the
// document properties so row 1 stays the header.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if data.Title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: data.Title}); err != nil {
			return nil, fmt.Errorf("set doc props: %w", err)
		}
	}

	widths := make([]float64, len(data.Headers))
	for i, header := range data.Headers {
		if err := setCell(f, i+1, 1, header); err != nil {
			return nil, err
		}
		widths[i] = columnWidth(widths[i], header, 1.5)
	}
	for r, row := range data.Rows {
		for c, header := range data.Headers {
			value := row[header]
			if err := setCell(f, c+1, r+2, value); err != nil {
				return nil, err
			}
			widths[c] = columnWidth(widths[c], value, 0)
		}
	}

	last, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(xlsxSheet, "A1", last+"1", style)
	}
	_ = f.AutoFilter(xlsxSheet, fmt.Sprintf("A1:%s1", last), nil)
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(xlsxSheet, col, col, width)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func setCell(f *excelize.File, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellStr(xlsxSheet, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

// columnWidth widens current to fit value. Cyrillic glyphs run wider than
// the rune count suggests.
func columnWidth(current float64, value string, pad float64) float64 {
	if current < xlsxMinColWidth {
		current = xlsxMinColWidth
	}
	w := float64(utf8.RuneCountInString(value))*1.1 + pad
	if w > xlsxMaxColWidth {
		w = xlsxMaxColWidth
	}
	if w > current {
		return w
	}
	return current
}
