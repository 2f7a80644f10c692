// Package member serves the member directory: paged, filtered listings and
// file exports of cooperative members.
package member

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/query"
)

// Default configuration values.
const (
	DefaultMaxExportRows = 10000
)

// Config holds configuration for the Service.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxExportRows   int
}

// ExportResult describes a rendered export.
type ExportResult struct {
	Filename    string
	ContentType string
	Rows        int
}

// Service provides the member listing and export operations.
type Service struct {
	repo      Repository
	exporters map[query.ExportFormat]Exporter
	config    Config
	now       func() time.Time
}

// NewService creates a new member service.
// Applies application defaults for zero or invalid config values.
func NewService(repo Repository, exporters map[query.ExportFormat]Exporter, config Config) *Service {
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = domain.DefaultPageSize
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = domain.MaxPageSize
	}
	if config.MaxExportRows <= 0 {
		config.MaxExportRows = DefaultMaxExportRows
	}

	return &Service{
		repo:      repo,
		exporters: exporters,
		config:    config,
		now:       time.Now,
	}
}

// List returns one page of members for req.
func (s *Service) List(ctx context.Context, req query.Request) (query.Response[domain.Member], error) {
	filters, err := validateFilters(req.Filters)
	if err != nil {
		return query.Response[domain.Member]{}, err
	}
	if err := validateSort(req.Sort); err != nil {
		return query.Response[domain.Member]{}, err
	}
	if err := validatePreloads(req.Preloads); err != nil {
		return query.Response[domain.Member]{}, err
	}

	pagination := req.Pagination
	if pagination.PageIndex < 0 {
		pagination.PageIndex = 0
	}
	if pagination.PageSize <= 0 {
		pagination.PageSize = s.config.DefaultPageSize
	}
	pagination.PageSize = min(pagination.PageSize, s.config.MaxPageSize)

	page, err := s.repo.FindMembers(ctx, domain.MemberQuery{
		Filters:  filters,
		Sort:     req.Sort,
		Preloads: req.Preloads,
		Limit:    pagination.PageSize,
		Offset:   pagination.Offset(),
	})
	if err != nil {
		return query.Response[domain.Member]{}, fmt.Errorf("failed to list members: %w", err)
	}

	return query.NewResponse(page.Members, page.TotalCount, pagination), nil
}

// Export renders the members selected by req into w. With row IDs only those
// members are exported; otherwise every member matching the filters is.
func (s *Service) Export(ctx context.Context, req query.ExportRequest, w io.Writer) (ExportResult, error) {
	format, err := query.ParseExportFormat(string(req.Format))
	if err != nil {
		return ExportResult{}, err
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return ExportResult{}, fmt.Errorf("%w: %s", domain.ErrInvalidExportFormat, format)
	}
	if err := validateSort(req.Sort); err != nil {
		return ExportResult{}, err
	}

	q := domain.MemberQuery{
		Sort:     req.Sort,
		Preloads: []string{PreloadBranch},
		Limit:    s.config.MaxExportRows,
	}
	if req.HasSelection() {
		q.IDs = req.SelectedIDs()
	} else {
		q.Filters, err = validateFilters(req.Filters)
		if err != nil {
			return ExportResult{}, err
		}
	}

	page, err := s.repo.FindMembers(ctx, q)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to load members for export: %w", err)
	}
	if len(page.Members) == 0 {
		return ExportResult{}, domain.ErrEmptyExport
	}

	now := s.now().UTC()
	title := fmt.Sprintf("Member Directory (%s)", now.Format("2006-01-02 15:04"))
	if err := exporter.Render(w, title, Columns, page.Members); err != nil {
		return ExportResult{}, fmt.Errorf("failed to render %s export: %w", format, err)
	}

	return ExportResult{
		Filename:    fmt.Sprintf("members-%s.%s", now.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Rows:        len(page.Members),
	}, nil
}

// validateFilters checks every filter against the column catalog and drops
// filters without operands.
func validateFilters(filters domain.FilterMap) (domain.FilterMap, error) {
	out := make(domain.FilterMap, len(filters))
	for field, d := range filters {
		col, ok := LookupColumn(field)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
		}
		if d.DataType == "" {
			d.DataType = col.DataType
		}
		if d.DataType != col.DataType {
			return nil, fmt.Errorf("%w: %q is %s, not %s", domain.ErrInvalidFilter, field, col.DataType, d.DataType)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("filter %q: %w", field, err)
		}
		d = d.Normalize()
		if !d.Active() {
			continue
		}
		if err := d.ValidateOperands(); err != nil {
			return nil, fmt.Errorf("filter %q: %w", field, err)
		}
		out[field] = d
	}
	return out, nil
}

func validateSort(sort domain.SortState) error {
	if err := sort.Validate(); err != nil {
		return err
	}
	for _, rule := range sort {
		col, ok := LookupColumn(rule.Field)
		if !ok {
			return fmt.Errorf("%w: sort on %q", domain.ErrUnknownField, rule.Field)
		}
		if !col.Sortable {
			return fmt.Errorf("%w: %q is not sortable", domain.ErrInvalidSort, rule.Field)
		}
	}
	return nil
}

func validatePreloads(preloads []string) error {
	for _, p := range preloads {
		if !slices.Contains([]string{PreloadBranch}, p) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownPreload, p)
		}
	}
	return nil
}
