// Package table coordinates the state a data table shares with its rendering
// component: sorting, pagination, column layout and row selection, plus the
// filter store that drives refetches.
package table

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/filter"
	"github.com/coopdesk/backoffice/internal/query"
)

// Column describes one column of a table.
type Column struct {
	ID       string
	Header   string
	DataType domain.DataType
	Sortable bool
	Hidden   bool
}

// RowIDFunc returns the stable identifier of a row.
type RowIDFunc[T any] func(T) string

// Updater computes the next value of a piece of state from the current one.
// The rendering component passes either a computed value (To) or a function
// of the previous value, such as "next page". Updaters run under the
// coordinator's lock and must not call back into it.
type Updater[S any] func(S) S

// To returns an Updater that replaces the state with v.
func To[S any](v S) Updater[S] {
	return func(S) S { return v }
}

// State is the table state owned by the coordinator.
type State struct {
	Sorting          domain.SortState
	Pagination       domain.PaginationState
	ColumnOrder      []string
	ColumnVisibility map[string]bool
	RowSelection     Selection
}

// Clone returns a deep copy of st.
func (st State) Clone() State {
	return State{
		Sorting:          st.Sorting.Clone(),
		Pagination:       st.Pagination,
		ColumnOrder:      slices.Clone(st.ColumnOrder),
		ColumnVisibility: maps.Clone(st.ColumnVisibility),
		RowSelection:     st.RowSelection.Clone(),
	}
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	pageSize int
	sorting  domain.SortState
	preloads []string
}

// WithPageSize sets the initial page size. Defaults to domain.DefaultPageSize.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithSorting sets the initial sort rules.
func WithSorting(s domain.SortState) Option {
	return func(o *options) { o.sorting = s.Clone() }
}

// WithPreloads names the related records every request eager-loads.
func WithPreloads(preloads ...string) Option {
	return func(o *options) { o.preloads = slices.Clone(preloads) }
}

// Coordinator owns the state of one table instance.
//
// Every On*Change callback validates its input and either applies it fully or
// returns an error and leaves the state untouched. Subscribers are notified
// after each effective change, one notification at a time and in change order.
type Coordinator[T any] struct {
	columns  []Column
	byID     map[string]Column
	store    *filter.Store
	rowID    RowIDFunc[T]
	preloads []string

	mu        sync.Mutex
	state     State
	filters   domain.FilterMap
	rows      []T
	listeners map[uint64]func(State)
	nextID    uint64
	pending   []State
	notifying bool

	unsubscribe func()
}

// NewCoordinator creates a coordinator for columns backed by store.
// Close releases the store subscription.
func NewCoordinator[T any](columns []Column, store *filter.Store, rowID RowIDFunc[T], opts ...Option) (*Coordinator[T], error) {
	if store == nil {
		return nil, errors.New("table: filter store is required")
	}
	if rowID == nil {
		return nil, errors.New("table: row id func is required")
	}
	if len(columns) == 0 {
		return nil, errors.New("table: at least one column is required")
	}

	o := options{pageSize: domain.DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator[T]{
		columns:   slices.Clone(columns),
		byID:      make(map[string]Column, len(columns)),
		store:     store,
		rowID:     rowID,
		preloads:  o.preloads,
		listeners: make(map[uint64]func(State)),
	}

	order := make([]string, 0, len(columns))
	visibility := make(map[string]bool, len(columns))
	for _, col := range columns {
		if col.ID == "" {
			return nil, fmt.Errorf("%w: empty column id", domain.ErrUnknownField)
		}
		if _, dup := c.byID[col.ID]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", col.ID)
		}
		if !col.DataType.IsValid() {
			return nil, fmt.Errorf("%w: column %q has data type %q", domain.ErrInvalidFilter, col.ID, col.DataType)
		}
		c.byID[col.ID] = col
		order = append(order, col.ID)
		visibility[col.ID] = !col.Hidden
	}

	c.state = State{
		Sorting:          o.sorting,
		Pagination:       domain.PaginationState{PageIndex: 0, PageSize: o.pageSize},
		ColumnOrder:      order,
		ColumnVisibility: visibility,
		RowSelection:     NewSelection(),
	}
	if err := c.validatePagination(c.state.Pagination); err != nil {
		return nil, err
	}
	if err := c.validateSorting(c.state.Sorting); err != nil {
		return nil, err
	}

	c.filters = store.Snapshot()
	c.unsubscribe = store.Subscribe(c.filtersChanged)
	return c, nil
}

// Columns returns the column definitions in definition order.
func (c *Coordinator[T]) Columns() []Column {
	return slices.Clone(c.columns)
}

// Filters returns the filter store driving this table.
func (c *Coordinator[T]) Filters() *filter.Store {
	return c.store
}

// State returns a copy of the current state.
func (c *Coordinator[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// OnSortingChange applies a sorting update. Sorting on unknown or
// non-sortable columns is rejected.
func (c *Coordinator[T]) OnSortingChange(update Updater[domain.SortState]) error {
	c.mu.Lock()
	next := update(c.state.Sorting.Clone())
	if err := c.validateSorting(next); err != nil {
		c.mu.Unlock()
		return err
	}
	if slices.Equal(next, c.state.Sorting) {
		c.mu.Unlock()
		return nil
	}
	c.state.Sorting = next.Clone()
	c.changedLocked()
	return nil
}

// OnPaginationChange applies a pagination update.
func (c *Coordinator[T]) OnPaginationChange(update Updater[domain.PaginationState]) error {
	c.mu.Lock()
	next := update(c.state.Pagination)
	if err := c.validatePagination(next); err != nil {
		c.mu.Unlock()
		return err
	}
	if next == c.state.Pagination {
		c.mu.Unlock()
		return nil
	}
	c.state.Pagination = next
	c.changedLocked()
	return nil
}

// OnColumnOrderChange applies a column order update. Columns missing from the
// new order keep their relative definition order after the listed ones.
func (c *Coordinator[T]) OnColumnOrderChange(update Updater[[]string]) error {
	c.mu.Lock()
	next, err := c.completeOrder(update(slices.Clone(c.state.ColumnOrder)))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if slices.Equal(next, c.state.ColumnOrder) {
		c.mu.Unlock()
		return nil
	}
	c.state.ColumnOrder = next
	c.changedLocked()
	return nil
}

// OnColumnVisibilityChange applies a visibility update. Columns absent from
// the map keep their current visibility.
func (c *Coordinator[T]) OnColumnVisibilityChange(update Updater[map[string]bool]) error {
	c.mu.Lock()
	changes := update(maps.Clone(c.state.ColumnVisibility))
	for id := range changes {
		if _, ok := c.byID[id]; !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: column %q", domain.ErrUnknownField, id)
		}
	}
	next := maps.Clone(c.state.ColumnVisibility)
	maps.Copy(next, changes)
	if maps.Equal(next, c.state.ColumnVisibility) {
		c.mu.Unlock()
		return nil
	}
	c.state.ColumnVisibility = next
	c.changedLocked()
	return nil
}

// OnRowSelectionChange applies a selection update. Only rows currently loaded
// can be selected.
func (c *Coordinator[T]) OnRowSelectionChange(update Updater[Selection]) error {
	c.mu.Lock()
	next := update(c.state.RowSelection.Clone())
	if next == nil {
		next = NewSelection()
	}
	loaded := NewSelection(c.rowIDsLocked()...)
	for id := range next {
		if !loaded.Has(id) {
			c.mu.Unlock()
			return fmt.Errorf("%w: %q", domain.ErrUnknownRow, id)
		}
	}
	if next.Equal(c.state.RowSelection) {
		c.mu.Unlock()
		return nil
	}
	c.state.RowSelection = next.Clone()
	c.changedLocked()
	return nil
}

// GetRowID returns the identifier of row.
func (c *Coordinator[T]) GetRowID(row T) string {
	return c.rowID(row)
}

// SetRows replaces the loaded rows after a fetch. The row selection is
// reduced to the IDs still present.
func (c *Coordinator[T]) SetRows(rows []T) {
	c.mu.Lock()
	c.setRowsLocked(rows)
}

// SetRowsFor applies rows fetched for the query identified by key. Rows for a
// query that has since been superseded are dropped and false is returned.
func (c *Coordinator[T]) SetRowsFor(key string, rows []T) bool {
	c.mu.Lock()
	if c.requestLocked().Key() != key {
		c.mu.Unlock()
		return false
	}
	c.setRowsLocked(rows)
	return true
}

// setRowsLocked releases c.mu.
func (c *Coordinator[T]) setRowsLocked(rows []T) {
	c.rows = slices.Clone(rows)
	selection := c.state.RowSelection.Intersect(c.rowIDsLocked())
	if selection.Equal(c.state.RowSelection) {
		c.mu.Unlock()
		return
	}
	c.state.RowSelection = selection
	c.changedLocked()
}

// Rows returns the loaded rows.
func (c *Coordinator[T]) Rows() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.rows)
}

// SelectedRows returns the loaded rows that are selected, in row order.
func (c *Coordinator[T]) SelectedRows() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []T
	for _, row := range c.rows {
		if c.state.RowSelection.Has(c.rowID(row)) {
			out = append(out, row)
		}
	}
	return out
}

// VisibleColumns returns the visible columns in display order.
func (c *Coordinator[T]) VisibleColumns() []Column {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Column, 0, len(c.state.ColumnOrder))
	for _, id := range c.state.ColumnOrder {
		if c.state.ColumnVisibility[id] {
			out = append(out, c.byID[id])
		}
	}
	return out
}

// Request returns the query for the current filters, sorting and page.
func (c *Coordinator[T]) Request() query.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestLocked()
}

// QueryKey identifies the current request; it changes exactly when a refetch
// is needed.
func (c *Coordinator[T]) QueryKey() string {
	return c.Request().Key()
}

// ApplyRequest restores filters, sorting and pagination, e.g. from a saved
// view or a shared link. Invalid requests leave the table untouched.
func (c *Coordinator[T]) ApplyRequest(req query.Request) error {
	if err := c.validateFilters(req.Filters); err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.validateSorting(req.Sort); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.validatePagination(req.Pagination); err != nil {
		c.mu.Unlock()
		return err
	}
	filters := req.Filters.Clone()
	if filters == nil {
		filters = domain.FilterMap{}
	}
	// Recording the filters first keeps the store notification from
	// resetting the restored page.
	c.filters = filters
	c.state.Sorting = req.Sort.Clone()
	c.state.Pagination = req.Pagination
	c.changedLocked()

	c.store.Replace(filters)
	return nil
}

// ApplyView restores a saved view, including its column layout.
func (c *Coordinator[T]) ApplyView(v domain.View) error {
	order, err := c.completeOrder(v.ColumnOrder)
	if err != nil {
		return err
	}
	visibility := make(map[string]bool, len(c.columns))
	for _, col := range c.columns {
		visibility[col.ID] = true
	}
	for _, id := range v.HiddenColumns {
		if _, ok := c.byID[id]; !ok {
			return fmt.Errorf("%w: column %q", domain.ErrUnknownField, id)
		}
		visibility[id] = false
	}

	if err := c.ApplyRequest(query.Request{
		Filters:    v.Filters,
		Sort:       v.Sort,
		Pagination: v.Pagination,
	}); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.ColumnOrder = order
	c.state.ColumnVisibility = visibility
	c.changedLocked()
	return nil
}

// View captures the current state as a saved view named name.
func (c *Coordinator[T]) View(table, name string) domain.View {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hidden []string
	for _, id := range c.state.ColumnOrder {
		if !c.state.ColumnVisibility[id] {
			hidden = append(hidden, id)
		}
	}
	return domain.View{
		Table:         table,
		Name:          name,
		Filters:       c.filters.Clone(),
		Sort:          c.state.Sorting.Clone(),
		Pagination:    c.state.Pagination,
		ColumnOrder:   slices.Clone(c.state.ColumnOrder),
		HiddenColumns: hidden,
	}
}

// Subscribe registers fn for state notifications and returns a function that
// removes it.
func (c *Coordinator[T]) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Close detaches the coordinator from its filter store.
func (c *Coordinator[T]) Close() {
	c.unsubscribe()
}

// filtersChanged moves the table back to the first page whenever the filter
// map changes. The page size is kept.
func (c *Coordinator[T]) filtersChanged(filters domain.FilterMap) {
	c.mu.Lock()
	if filters.Equal(c.filters) {
		c.mu.Unlock()
		return
	}
	c.filters = filters
	c.state.Pagination = c.state.Pagination.FirstPage()
	c.changedLocked()
}

func (c *Coordinator[T]) requestLocked() query.Request {
	return query.Request{
		Filters:    c.filters.Clone(),
		Sort:       c.state.Sorting.Clone(),
		Pagination: c.state.Pagination,
		Preloads:   slices.Clone(c.preloads),
	}.Normalize()
}

func (c *Coordinator[T]) rowIDsLocked() []string {
	ids := make([]string, len(c.rows))
	for i, row := range c.rows {
		ids[i] = c.rowID(row)
	}
	return ids
}

func (c *Coordinator[T]) validateSorting(s domain.SortState) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, rule := range s {
		col, ok := c.byID[rule.Field]
		if !ok {
			return fmt.Errorf("%w: sort on %q", domain.ErrUnknownField, rule.Field)
		}
		if !col.Sortable {
			return fmt.Errorf("%w: column %q is not sortable", domain.ErrInvalidSort, rule.Field)
		}
	}
	return nil
}

func (c *Coordinator[T]) validatePagination(p domain.PaginationState) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.PageSize > domain.MaxPageSize {
		return fmt.Errorf("%w: pageSize must be <= %d, got %d", domain.ErrInvalidPagination, domain.MaxPageSize, p.PageSize)
	}
	return nil
}

func (c *Coordinator[T]) validateFilters(filters domain.FilterMap) error {
	for field, d := range filters {
		col, ok := c.byID[field]
		if !ok {
			return fmt.Errorf("%w: filter on %q", domain.ErrUnknownField, field)
		}
		if d.DataType != col.DataType {
			return fmt.Errorf("%w: %q is %s, filter is %s", domain.ErrInvalidFilter, field, col.DataType, d.DataType)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("filter on %q: %w", field, err)
		}
	}
	return nil
}

func (c *Coordinator[T]) completeOrder(order []string) ([]string, error) {
	seen := make(map[string]struct{}, len(c.columns))
	out := make([]string, 0, len(c.columns))
	for _, id := range order {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("%w: column %q", domain.ErrUnknownField, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("table: column %q listed twice", id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, col := range c.columns {
		if _, ok := seen[col.ID]; !ok {
			out = append(out, col.ID)
		}
	}
	return out, nil
}

// changedLocked queues a notification of the current state and delivers
// pending notifications. It must be called with c.mu held and releases it.
func (c *Coordinator[T]) changedLocked() {
	c.pending = append(c.pending, c.state.Clone())
	if c.notifying {
		c.mu.Unlock()
		return
	}
	c.notifying = true

	for len(c.pending) > 0 {
		st := c.pending[0]
		c.pending = c.pending[1:]
		listeners := make([]func(State), 0, len(c.listeners))
		for _, id := range slices.Sorted(maps.Keys(c.listeners)) {
			listeners = append(listeners, c.listeners[id])
		}
		c.mu.Unlock()

		for _, fn := range listeners {
			fn(st.Clone())
		}

		c.mu.Lock()
	}

	c.notifying = false
	c.mu.Unlock()
}
