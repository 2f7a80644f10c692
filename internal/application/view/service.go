// Package view manages saved table views.
package view

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Store persists saved views. Implementations return domain.ErrViewNotFound
// for missing views.
type Store interface {
	Save(ctx context.Context, v domain.View) error
	Get(ctx context.Context, table, id string) (domain.View, error)
	List(ctx context.Context, table string) ([]domain.View, error)
	Delete(ctx context.Context, table, id string) error
}

// Table names and view IDs become path segments and object names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidName reports whether s is usable as a table name or view ID.
func ValidName(s string) bool {
	return namePattern.MatchString(s)
}

// Service provides saved view operations.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new view service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Save stores v under its table, assigning an ID and creation time to new views.
func (s *Service) Save(ctx context.Context, v domain.View) (domain.View, error) {
	v.Name = strings.TrimSpace(v.Name)
	if err := v.Validate(); err != nil {
		return domain.View{}, err
	}
	if !ValidName(v.Table) {
		return domain.View{}, fmt.Errorf("%w: table %q", domain.ErrInvalidID, v.Table)
	}

	if v.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.View{}, fmt.Errorf("failed to generate id: %w", err)
		}
		v.ID = id.String()
	} else if !ValidName(v.ID) {
		return domain.View{}, fmt.Errorf("%w: view %q", domain.ErrInvalidID, v.ID)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now().UTC()
	}
	if v.Filters == nil {
		v.Filters = domain.FilterMap{}
	}

	if err := s.store.Save(ctx, v); err != nil {
		return domain.View{}, fmt.Errorf("failed to save view: %w", err)
	}
	return v, nil
}

// Get returns one saved view.
func (s *Service) Get(ctx context.Context, table, id string) (domain.View, error) {
	if !ValidName(table) || !ValidName(id) {
		return domain.View{}, domain.ErrViewNotFound
	}
	return s.store.Get(ctx, table, id)
}

// List returns the saved views of table, oldest first.
func (s *Service) List(ctx context.Context, table string) ([]domain.View, error) {
	if !ValidName(table) {
		return nil, fmt.Errorf("%w: table %q", domain.ErrInvalidID, table)
	}
	views, err := s.store.List(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	slices.SortFunc(views, func(a, b domain.View) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return views, nil
}

// Delete removes a saved view.
func (s *Service) Delete(ctx context.Context, table, id string) error {
	if !ValidName(table) || !ValidName(id) {
		return domain.ErrViewNotFound
	}
	return s.store.Delete(ctx, table, id)
}
