package domain

import (
	"strings"
	"time"
)

// View is a saved table view: the filter, sort, paging and column layout a
// user stored under a name for one table.
type View struct {
	ID            string          `json:"id"`
	Table         string          `json:"table"`
	Name          string          `json:"name"`
	Filters       FilterMap       `json:"filters"`
	Sort          SortState       `json:"sort,omitempty"`
	Pagination    PaginationState `json:"pagination"`
	ColumnOrder   []string        `json:"columnOrder,omitempty"`
	HiddenColumns []string        `json:"hiddenColumns,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Validate checks the fields a view needs before it can be stored.
func (v View) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return ErrViewNameRequired
	}
	if strings.TrimSpace(v.Table) == "" {
		return ErrInvalidID
	}
	if err := v.Sort.Validate(); err != nil {
		return err
	}
	return v.Pagination.Validate()
}
