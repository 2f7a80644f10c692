// Package filter holds the active column filters of one table instance.
package filter

import (
	"maps"
	"slices"
	"sync"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Listener receives a snapshot of the filter map after every effective mutation.
type Listener func(domain.FilterMap)

// Store is the single source of truth for the active filters of one table.
//
// The store performs no validation of descriptors; callers build them with
// the domain constructors. Every mutation that changes the map notifies all
// subscribers. Notifications are delivered one at a time in mutation order,
// and a listener may mutate the store again: nested notifications are queued
// behind the one being delivered.
type Store struct {
	mu        sync.Mutex
	filters   domain.FilterMap
	version   uint64
	listeners map[uint64]Listener
	nextID    uint64

	// pending holds snapshots not yet delivered; delivering is true while a
	// goroutine is draining it.
	pending    []domain.FilterMap
	delivering bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		filters:   make(domain.FilterMap),
		listeners: make(map[uint64]Listener),
	}
}

// Set inserts or overwrites the filter for field.
func (s *Store) Set(field string, descriptor domain.FilterDescriptor) {
	s.mu.Lock()
	if current, ok := s.filters[field]; ok && current.Equal(descriptor) {
		s.mu.Unlock()
		return
	}
	s.filters[field] = descriptor.Clone()
	s.changedLocked()
}

// Remove deletes the filter for field and returns the previous descriptor.
// The boolean is false when the field had no filter; the map is left untouched.
func (s *Store) Remove(field string) (domain.FilterDescriptor, bool) {
	s.mu.Lock()
	prev, ok := s.filters[field]
	if !ok {
		s.mu.Unlock()
		return domain.FilterDescriptor{}, false
	}
	delete(s.filters, field)
	s.changedLocked()
	return prev, true
}

// Reset clears every filter. Resetting an empty store is a no-op.
func (s *Store) Reset() {
	s.mu.Lock()
	if len(s.filters) == 0 {
		s.mu.Unlock()
		return
	}
	s.filters = make(domain.FilterMap)
	s.changedLocked()
}

// Replace swaps the whole filter map in one mutation, e.g. when a saved view is applied.
func (s *Store) Replace(filters domain.FilterMap) {
	s.mu.Lock()
	if s.filters.Equal(filters) {
		s.mu.Unlock()
		return
	}
	s.filters = filters.Clone()
	s.changedLocked()
}

// Get returns the filter for field.
func (s *Store) Get(field string) (domain.FilterDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.filters[field]
	if !ok {
		return domain.FilterDescriptor{}, false
	}
	return d.Clone(), true
}

// Snapshot returns a copy of the current filter map.
func (s *Store) Snapshot() domain.FilterMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Clone()
}

// Len returns the number of active filters.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

// Version increases by one on every effective mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. Unsubscribing is idempotent.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// changedLocked records a mutation and delivers notifications.
// It must be called with s.mu held and releases it.
func (s *Store) changedLocked() {
	s.version++
	s.pending = append(s.pending, s.filters.Clone())
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true

	for len(s.pending) > 0 {
		snapshot := s.pending[0]
		s.pending = s.pending[1:]
		listeners := make([]Listener, 0, len(s.listeners))
		for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
			listeners = append(listeners, s.listeners[id])
		}
		s.mu.Unlock()

		for _, fn := range listeners {
			fn(snapshot.Clone())
		}

		s.mu.Lock()
	}

	s.delivering = false
	s.mu.Unlock()
}
