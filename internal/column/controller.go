// Package column implements the per-column filter controller that turns
// local edits into debounced filter store updates.
package column

import (
	"fmt"
	"sync"
	"time"

	"github.com/coopdesk/backoffice/internal/debounce"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/filter"
	"github.com/coopdesk/backoffice/internal/ptr"
)

// State is the lifecycle position of a column filter.
type State int

const (
	// StateEmpty means no filter value is set.
	StateEmpty State = iota
	// StateEditing means a local edit is waiting for its debounce window.
	StateEditing
	// StateCommitted means the settled value has been pushed to the store.
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateEditing:
		return "editing"
	case StateCommitted:
		return "committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Changes reports which parts of local state a Reconcile pulled from the store.
type Changes uint8

const (
	ChangedMode Changes = 1 << iota
	ChangedValue
	ChangedFrom
	ChangedTo
)

// None reports whether nothing changed.
func (c Changes) None() bool {
	return c == 0
}

// Has reports whether all bits in o are set.
func (c Changes) Has(o Changes) bool {
	return c&o == o
}

// Range holds the bounds of a range filter. Either bound may be nil.
type Range struct {
	From *domain.Scalar
	To   *domain.Scalar
}

// Snapshot is a copy of the controller's local state.
type Snapshot struct {
	Field    string
	DataType domain.DataType
	State    State
	Mode     domain.FilterMode
	Value    *domain.Scalar
	Range    Range
}

// Option configures a Controller.
type Option func(*config)

type config struct {
	delay    time.Duration
	clock    debounce.Clock
	onChange func(Snapshot)
}

// WithDelay sets the debounce interval (default debounce.DefaultDelay).
func WithDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

// WithClock injects the clock driving the debounce timer.
func WithClock(clock debounce.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithOnChange registers a callback invoked with the new local state after
// every edit, commit or reconcile that changed it.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *config) { c.onChange = fn }
}

// draft is one debounced edit. gen ties it to the edit that produced it so a
// draft superseded by an external pull is never committed.
type draft struct {
	gen   uint64
	mode  domain.FilterMode
	value *domain.Scalar
	rng   Range
}

// Controller owns the transient filter state of one column and keeps it in
// sync with the table's filter store.
//
// Local edits flow out through the debouncer and are committed with
// Store.Set or Store.Remove. Changes made to the store by anyone else flow
// back in through Reconcile, which the controller runs on every store
// notification.
type Controller struct {
	field    string
	dataType domain.DataType
	store    *filter.Store
	onChange func(Snapshot)

	mu      sync.Mutex
	state   State
	mode    domain.FilterMode
	value   *domain.Scalar
	rng     Range
	editGen uint64
	closed  bool

	// seen is the store entry as of the last commit or pull; nil when absent.
	seen *domain.FilterDescriptor

	pending     *debounce.Value[draft]
	unsubscribe func()
}

// NewController creates the controller for field and pulls the store's
// current entry, if any, into local state.
func NewController(store *filter.Store, field string, dataType domain.DataType, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("column %q: nil filter store", field)
	}
	if field == "" {
		return nil, fmt.Errorf("%w: empty column field", domain.ErrUnknownField)
	}
	if !dataType.IsValid() {
		return nil, fmt.Errorf("%w: column %q has unknown data type %q", domain.ErrInvalidFilter, field, dataType)
	}

	cfg := config{delay: debounce.DefaultDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Controller{
		field:    field,
		dataType: dataType,
		store:    store,
		onChange: cfg.onChange,
		mode:     domain.DefaultMode(dataType),
	}

	var debounceOpts []debounce.Option
	if cfg.clock != nil {
		debounceOpts = append(debounceOpts, debounce.WithClock(cfg.clock))
	}
	c.pending = debounce.New(cfg.delay, draft{}, c.commit, debounceOpts...)

	c.Reconcile()
	c.unsubscribe = store.Subscribe(func(domain.FilterMap) { c.Reconcile() })

	return c, nil
}

// Field returns the column's field name.
func (c *Controller) Field() string {
	return c.field
}

// DataType returns the column's data type.
func (c *Controller) DataType() domain.DataType {
	return c.dataType
}

// Modes returns the modes offered for this column, default first.
func (c *Controller) Modes() []domain.FilterMode {
	return domain.ModesFor(c.dataType)
}

// SupportsRange reports whether range controls are exposed for this column.
func (c *Controller) SupportsRange() bool {
	return c.dataType.SupportsRange()
}

// SetMode switches the comparison mode. Range mode is refused for text and
// boolean columns; modes not offered for the data type are refused too.
func (c *Controller) SetMode(mode domain.FilterMode) error {
	if mode == domain.ModeRange && !c.dataType.SupportsRange() {
		return fmt.Errorf("%w: column %q is %s", domain.ErrRangeNotSupported, c.field, c.dataType)
	}
	if !mode.Supports(c.dataType) {
		return fmt.Errorf("%w: %q on column %q", domain.ErrModeNotSupported, mode, c.field)
	}

	c.edit(func() { c.mode = mode })
	return nil
}

// SetValue sets the operand used by non-range modes.
func (c *Controller) SetValue(v domain.Scalar) {
	c.edit(func() { c.value = &v })
}

// ClearValue unsets the operand used by non-range modes.
func (c *Controller) ClearValue() {
	c.edit(func() { c.value = nil })
}

// SetRange sets both range bounds; either may be nil.
func (c *Controller) SetRange(from, to *domain.Scalar) error {
	if err := c.requireRange(); err != nil {
		return err
	}
	c.edit(func() {
		c.rng.From = ptr.Clone(from)
		c.rng.To = ptr.Clone(to)
	})
	return nil
}

// SetFrom sets the lower range bound; nil clears it.
func (c *Controller) SetFrom(from *domain.Scalar) error {
	if err := c.requireRange(); err != nil {
		return err
	}
	c.edit(func() { c.rng.From = ptr.Clone(from) })
	return nil
}

// SetTo sets the upper range bound; nil clears it.
func (c *Controller) SetTo(to *domain.Scalar) error {
	if err := c.requireRange(); err != nil {
		return err
	}
	c.edit(func() { c.rng.To = ptr.Clone(to) })
	return nil
}

// Clear drops the value and range. Once the debounce window closes the field
// is removed from the store.
func (c *Controller) Clear() {
	c.edit(func() {
		c.value = nil
		c.rng = Range{}
	})
}

// Snapshot returns a copy of the local state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconcile pulls the store's entry for this column into local state when it
// was changed by someone else since the controller last saw it. Range bounds
// are compared one by one and only the differing bound is rewritten; operands
// the stored mode does not use are cleared. An entry
// that disappeared resets the column to its empty state.
//
// A pull discards any draft still waiting in the debouncer, so an edit typed
// just before a global reset is not resurrected when its timer fires.
func (c *Controller) Reconcile() Changes {
	stored, ok := c.store.Get(c.field)

	c.mu.Lock()
	if c.closed || sameEntry(c.seen, stored, ok) {
		c.mu.Unlock()
		return 0
	}

	var changes Changes
	if ok {
		seen := stored.Clone()
		c.seen = &seen
		changes = c.pullLocked(stored)
	} else {
		c.seen = nil
		changes = c.pullEmptyLocked()
	}
	c.editGen++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return changes
}

// Close unsubscribes from the store and cancels any pending commit.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pending.Close()
	c.unsubscribe()
}

func (c *Controller) pullEmptyLocked() Changes {
	var changes Changes
	if def := domain.DefaultMode(c.dataType); c.mode != def {
		c.mode = def
		changes |= ChangedMode
	}
	if c.value != nil {
		c.value = nil
		changes |= ChangedValue
	}
	if c.rng.From != nil {
		c.rng.From = nil
		changes |= ChangedFrom
	}
	if c.rng.To != nil {
		c.rng.To = nil
		changes |= ChangedTo
	}
	c.state = StateEmpty
	return changes
}

func (c *Controller) pullLocked(stored domain.FilterDescriptor) Changes {
	var changes Changes
	if c.mode != stored.Mode {
		c.mode = stored.Mode
		changes |= ChangedMode
	}

	if stored.IsRange() {
		if !ptr.Equal(c.rng.From, stored.From) {
			c.rng.From = ptr.Clone(stored.From)
			changes |= ChangedFrom
		}
		if !ptr.Equal(c.rng.To, stored.To) {
			c.rng.To = ptr.Clone(stored.To)
			changes |= ChangedTo
		}
		if c.value != nil {
			c.value = nil
			changes |= ChangedValue
		}
	} else {
		if !ptr.Equal(c.value, stored.Value) {
			c.value = ptr.Clone(stored.Value)
			changes |= ChangedValue
		}
		if c.rng.From != nil {
			c.rng.From = nil
			changes |= ChangedFrom
		}
		if c.rng.To != nil {
			c.rng.To = nil
			changes |= ChangedTo
		}
	}

	c.state = StateCommitted
	return changes
}

func (c *Controller) requireRange() error {
	if !c.dataType.SupportsRange() {
		return fmt.Errorf("%w: column %q is %s", domain.ErrRangeNotSupported, c.field, c.dataType)
	}
	return nil
}

// edit applies a local change, moves to Editing and feeds the debouncer.
func (c *Controller) edit(apply func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	apply()
	c.state = StateEditing
	c.editGen++
	d := draft{
		gen:   c.editGen,
		mode:  c.mode,
		value: ptr.Clone(c.value),
		rng:   Range{From: ptr.Clone(c.rng.From), To: ptr.Clone(c.rng.To)},
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.pending.Set(d)
	c.notify(snap)
}

// commit runs when a draft settles.
func (c *Controller) commit(d draft) {
	c.mu.Lock()
	if c.closed || d.gen != c.editGen {
		c.mu.Unlock()
		return
	}

	descriptor := domain.FilterDescriptor{
		Mode:     d.mode,
		Value:    d.value,
		From:     d.rng.From,
		To:       d.rng.To,
		DataType: c.dataType,
	}.Normalize()

	active := descriptor.Active()
	if active {
		c.state = StateCommitted
		seen := descriptor.Clone()
		c.seen = &seen
	} else {
		c.state = StateEmpty
		c.seen = nil
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	// The store notifies this controller back; Reconcile then finds the
	// entry it just wrote and changes nothing.
	if active {
		c.store.Set(c.field, descriptor)
	} else {
		c.store.Remove(c.field)
	}
	c.notify(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Field:    c.field,
		DataType: c.dataType,
		State:    c.state,
		Mode:     c.mode,
		Value:    ptr.Clone(c.value),
		Range:    Range{From: ptr.Clone(c.rng.From), To: ptr.Clone(c.rng.To)},
	}
}

func (c *Controller) notify(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

func sameEntry(seen *domain.FilterDescriptor, stored domain.FilterDescriptor, ok bool) bool {
	if seen == nil || !ok {
		return seen == nil && !ok
	}
	return seen.Equal(stored)
}
