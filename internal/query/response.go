package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Response is one page of results returned by the remote data API.
type Response[T any] struct {
	Data      []T `json:"data"`
	TotalPage int `json:"totalPage"`
	PageSize  int `json:"pageSize"`
	TotalSize int `json:"totalSize"`
}

// NewResponse builds a page response, deriving the page count from the total.
func NewResponse[T any](data []T, totalSize int, p domain.PaginationState) Response[T] {
	if data == nil {
		data = []T{}
	}
	totalPage := 0
	if p.PageSize > 0 {
		totalPage = (totalSize + p.PageSize - 1) / p.PageSize
	}
	return Response[T]{
		Data:      data,
		TotalPage: totalPage,
		PageSize:  p.PageSize,
		TotalSize: totalSize,
	}
}

// ExportFormat is the file type produced by an export endpoint.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

// ParseExportFormat accepts "xlsx" and "pdf", case-insensitively.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatXLSX, FormatPDF:
		return f, nil
	case "":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidExportFormat, s)
}

// ContentType returns the MIME type of files in format f.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// ExportRequest asks the server for a file of the rows matching Filters, or
// of exactly the selected RowIDs when any are given.
type ExportRequest struct {
	Filters domain.FilterMap `json:"filters"`
	Sort    domain.SortState `json:"sort,omitempty"`
	RowIDs  []string         `json:"rowIds,omitempty"`
	Format  ExportFormat     `json:"format"`
}

// Validate checks the format and sort rules.
func (e ExportRequest) Validate() error {
	if _, err := ParseExportFormat(string(e.Format)); err != nil {
		return err
	}
	return e.Sort.Validate()
}

// HasSelection reports whether the export is restricted to selected rows.
func (e ExportRequest) HasSelection() bool {
	return len(e.RowIDs) > 0
}

// SelectedIDs returns the selected row IDs sorted and de-duplicated.
func (e ExportRequest) SelectedIDs() []string {
	ids := slices.Clone(e.RowIDs)
	slices.Sort(ids)
	return slices.Compact(ids)
}
