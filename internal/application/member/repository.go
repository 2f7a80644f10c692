package member

import (
	"context"
	"io"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Repository defines storage operations for the member directory.
type Repository interface {
	// FindMembers returns the members matching q and the total match count.
	// Filters in q have been validated against Columns; a range with one
	// missing bound is open-ended on that side. Without sort rules the
	// result is ordered by member number.
	FindMembers(ctx context.Context, q domain.MemberQuery) (*domain.MemberPage, error)
}

// Exporter renders members into a file of one format.
type Exporter interface {
	Render(w io.Writer, title string, columns []Column, members []domain.Member) error
}
