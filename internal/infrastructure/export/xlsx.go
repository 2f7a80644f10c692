// Package export renders member lists into downloadable documents.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
)

// SheetName is the worksheet holding the exported rows.
const SheetName = "Members"

// XLSX renders members into a single-sheet workbook.
type XLSX struct{}

// NewXLSX creates the spreadsheet exporter.
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Render writes a header row followed by one row per member.
func (XLSX) Render(w io.Writer, title string, columns []member.Column, members []domain.Member) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "backoffice"}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create number style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, col.Header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	for r, m := range members {
		for c, col := range columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, cellValue(m, col)); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
			if col.DataType == domain.DataTypeNumber {
				if err := f.SetCellStyle(SheetName, cell, cell, moneyStyle); err != nil {
					return fmt.Errorf("failed to style %s: %w", cell, err)
				}
			}
		}
	}

	if len(columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(columns))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, "A", last, 20); err != nil {
			return fmt.Errorf("failed to size columns: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// cellValue keeps numbers numeric so spreadsheets can sum them.
func cellValue(m domain.Member, col member.Column) any {
	if col.Field == member.FieldBalance {
		return m.Balance.InexactFloat64()
	}
	return member.Value(m, col.Field)
}
