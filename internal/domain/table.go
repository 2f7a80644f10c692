package domain

import (
	"fmt"
	"strings"
)

// Default pagination values shared by the table layer and the API.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PaginationState is the zero-based page position of a table.
type PaginationState struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// Validate enforces PageIndex >= 0 and PageSize > 0.
func (p PaginationState) Validate() error {
	if p.PageIndex < 0 {
		return fmt.Errorf("%w: pageIndex must be >= 0, got %d", ErrInvalidPagination, p.PageIndex)
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("%w: pageSize must be > 0, got %d", ErrInvalidPagination, p.PageSize)
	}
	return nil
}

// Offset returns the number of rows preceding the current page.
func (p PaginationState) Offset() int {
	return p.PageIndex * p.PageSize
}

// FirstPage returns the same page size positioned on the first page.
func (p PaginationState) FirstPage() PaginationState {
	p.PageIndex = 0
	return p
}

// SortDirection is the direction of one sort rule.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// IsValid reports whether d is asc or desc.
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}

// SortRule orders rows by one field.
type SortRule struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// SortState is an ordered list of sort rules, primary rule first.
type SortState []SortRule

// Validate rejects empty fields, unknown directions and repeated fields.
func (s SortState) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, rule := range s {
		if rule.Field == "" {
			return fmt.Errorf("%w: empty sort field", ErrInvalidSort)
		}
		if !rule.Direction.IsValid() {
			return fmt.Errorf("%w: direction %q for field %q", ErrInvalidSort, rule.Direction, rule.Field)
		}
		if _, dup := seen[rule.Field]; dup {
			return fmt.Errorf("%w: field %q sorted twice", ErrInvalidSort, rule.Field)
		}
		seen[rule.Field] = struct{}{}
	}
	return nil
}

// Clone returns a copy of the sort state.
func (s SortState) Clone() SortState {
	if s == nil {
		return nil
	}
	out := make(SortState, len(s))
	copy(out, s)
	return out
}

// String renders the sort state as "field:dir,field:dir".
func (s SortState) String() string {
	parts := make([]string, len(s))
	for i, rule := range s {
		parts[i] = rule.Field + ":" + string(rule.Direction)
	}
	return strings.Join(parts, ",")
}

// ParseSort parses "field:dir,field:dir". A missing direction means asc.
func ParseSort(raw string) (SortState, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var out SortState
	for part := range strings.SplitSeq(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, found := strings.Cut(part, ":")
		rule := SortRule{Field: strings.TrimSpace(field), Direction: SortAsc}
		if found {
			rule.Direction = SortDirection(strings.ToLower(strings.TrimSpace(dir)))
		}
		out = append(out, rule)
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
