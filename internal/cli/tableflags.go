package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/fetch"
	"github.com/coopdesk/backoffice/internal/filter"
	"github.com/coopdesk/backoffice/internal/table"
)

const membersTable = "members"

// tableFlags describe the member table state on the command line.
type tableFlags struct {
	filters  []string
	sort     string
	page     int
	pageSize int
	columns  []string
	preloads []string
	view     string
}

func (f *tableFlags) register(flags *pflag.FlagSet) {
	flags.StringArrayVarP(&f.filters, "filter", "f", nil,
		`filter as field=value, field:mode=value or field:range=from..to (repeatable)`)
	flags.StringVarP(&f.sort, "sort", "s", "", `sort rules as "field:dir,field:dir"`)
	flags.IntVar(&f.page, "page", 1, "page number, starting at 1")
	flags.IntVar(&f.pageSize, "page-size", domain.DefaultPageSize, "rows per page")
	flags.StringSliceVar(&f.columns, "columns", nil, "columns to show, in order (default: all)")
	flags.StringSliceVar(&f.preloads, "preload", nil, "related records to attach, e.g. branch")
	flags.StringVar(&f.view, "view", "", "start from the saved view with this id")
}

// memberColumns maps the member catalog onto table columns.
func memberColumns() []table.Column {
	columns := make([]table.Column, 0, len(member.Columns))
	for _, c := range member.Columns {
		columns = append(columns, table.Column{ID: c.Field, Header: c.Header, DataType: c.DataType, Sortable: c.Sortable})
	}
	return columns
}

// newTable builds a member table coordinator from the flags. A saved view is
// applied first; explicit flags then override it.
func (f *tableFlags) newTable(ctx context.Context, client *fetch.Client, changed func(string) bool) (*table.Coordinator[domain.Member], error) {
	filters := filter.NewStore()
	coordinator, err := table.NewCoordinator[domain.Member](memberColumns(), filters,
		func(m domain.Member) string { return m.ID },
		table.WithPageSize(f.pageSize),
		table.WithPreloads(f.preloads...),
	)
	if err != nil {
		return nil, err
	}

	if f.view != "" {
		v, err := fetch.NewViews(client, membersTable).Get(ctx, f.view)
		if err != nil {
			coordinator.Close()
			return nil, fmt.Errorf("load view %q: %w", f.view, err)
		}
		if err := coordinator.ApplyView(v); err != nil {
			coordinator.Close()
			return nil, fmt.Errorf("apply view %q: %w", f.view, err)
		}
	}

	if err := f.apply(coordinator, filters, changed); err != nil {
		coordinator.Close()
		return nil, err
	}
	return coordinator, nil
}

func (f *tableFlags) apply(c *table.Coordinator[domain.Member], filters *filter.Store, changed func(string) bool) error {
	for _, raw := range f.filters {
		field, d, err := parseFilter(raw)
		if err != nil {
			return err
		}
		filters.Set(field, d)
	}

	if changed("sort") {
		sort, err := domain.ParseSort(f.sort)
		if err != nil {
			return err
		}
		if err := c.OnSortingChange(table.To(sort)); err != nil {
			return err
		}
	}

	// Filters reset the page, so the page flags go last. A saved view keeps
	// its own page unless a flag overrides it.
	sizeSet := f.view == "" || changed("page-size")
	pageSet := f.view == "" || changed("page")
	if sizeSet || pageSet {
		if f.page < 1 {
			return fmt.Errorf("%w: --page must be >= 1", domain.ErrInvalidPagination)
		}
		err := c.OnPaginationChange(func(p domain.PaginationState) domain.PaginationState {
			if sizeSet {
				p.PageSize = f.pageSize
			}
			if pageSet {
				p.PageIndex = f.page - 1
			}
			return p
		})
		if err != nil {
			return err
		}
	}

	if len(f.columns) > 0 {
		if err := c.OnColumnOrderChange(table.To(f.columns)); err != nil {
			return err
		}
		show := make(map[string]bool, len(f.columns))
		for _, id := range f.columns {
			show[id] = true
		}
		if err := c.OnColumnVisibilityChange(func(vis map[string]bool) map[string]bool {
			next := make(map[string]bool, len(vis))
			for id := range vis {
				next[id] = show[id]
			}
			return next
		}); err != nil {
			return err
		}
	}
	return nil
}

// parseFilter parses "field=value", "field:mode=value" and
// "field:range=from..to" against the member catalog. Either range bound may
// be empty.
func parseFilter(raw string) (string, domain.FilterDescriptor, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return "", domain.FilterDescriptor{}, fmt.Errorf("%w: filter %q must look like field=value", domain.ErrInvalidFilter, raw)
	}
	field, mode, hasMode := strings.Cut(strings.TrimSpace(key), ":")

	col, ok := member.LookupColumn(field)
	if !ok {
		return "", domain.FilterDescriptor{}, fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	if !hasMode {
		mode = string(domain.DefaultMode(col.DataType))
	}

	if domain.FilterMode(mode) == domain.ModeRange {
		from, to, ok := strings.Cut(value, "..")
		if !ok {
			return "", domain.FilterDescriptor{}, fmt.Errorf("%w: range %q must look like from..to", domain.ErrInvalidFilter, value)
		}
		d, err := domain.NewRangeFilter(col.DataType, optionalScalar(from), optionalScalar(to))
		return field, d, err
	}

	d, err := domain.NewValueFilter(col.DataType, domain.FilterMode(mode), domain.Scalar(value))
	return field, d, err
}

func optionalScalar(s string) *domain.Scalar {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return domain.ScalarPtr(s)
}

// pageLabel renders "page 2 of 5 (47 members)".
func pageLabel(pageIndex, totalPage, totalSize int) string {
	if totalPage == 0 {
		return "no members"
	}
	return fmt.Sprintf("page %d of %d (%d members)", pageIndex+1, totalPage, totalSize)
}
