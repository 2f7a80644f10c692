package export

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
)

const (
	pdfMargin    = 10.0
	pdfRowHeight = 7.0
)

// PDF renders members as a landscape A4 report.
type PDF struct {
	compress bool
}

// NewPDF creates the report exporter.
func NewPDF() *PDF {
	return &PDF{compress: true}
}

// Render writes the title, then a table whose header repeats on every page.
func (p *PDF) Render(w io.Writer, title string, columns []member.Column, members []domain.Member) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCompression(p.compress)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	colW := (pageW - 2*pdfMargin)
	if len(columns) > 0 {
		colW /= float64(len(columns))
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(221, 235, 247)
		for _, col := range columns {
			pdf.CellFormat(colW, pdfRowHeight, tr(col.Header), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d rows", len(members)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	for _, m := range members {
		if pdf.GetY()+pdfRowHeight > pageH-2*pdfMargin {
			pdf.AddPage()
			header()
		}
		for _, col := range columns {
			align := "L"
			if col.DataType == domain.DataTypeNumber {
				align = "R"
			}
			text := fit(pdf, tr(member.Value(m, col.Field)), colW-2)
			pdf.CellFormat(colW, pdfRowHeight, text, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// fit truncates s with an ellipsis so it fits in width millimetres.
// s is already translated to the single-byte core font encoding.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
