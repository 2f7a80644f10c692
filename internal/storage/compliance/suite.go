package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/application/view"
	"github.com/coopdesk/backoffice/internal/domain"
)

func newView(table, name string) domain.View {
	return domain.View{
		ID:    uuid.New().String(),
		Table: table,
		Name:  name,
		Filters: domain.FilterMap{
			"fullName": {Mode: domain.ModeContains, Value: domain.ScalarPtr("Juan"), DataType: domain.DataTypeText},
			"balance":  {Mode: domain.ModeRange, From: domain.ScalarPtr("100"), DataType: domain.DataTypeNumber},
		},
		Sort:          domain.SortState{{Field: "fullName", Direction: domain.SortAsc}},
		Pagination:    domain.PaginationState{PageIndex: 0, PageSize: 25},
		ColumnOrder:   []string{"fullName", "balance"},
		HiddenColumns: []string{"companyCode"},
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

// RunViewStoreComplianceTest runs a standard set of tests against a view.Store implementation.
// setup is a function that returns a fresh (clean) store for the test and a cleanup function.
func RunViewStoreComplianceTest(t *testing.T, setup func() (view.Store, func())) {
	t.Run("SaveAndGet", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		v := newView("members", "Juans")
		require.NoError(t, store.Save(ctx, v))

		fetched, err := store.Get(ctx, v.Table, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, fetched.ID)
		assert.Equal(t, v.Name, fetched.Name)
		assert.True(t, v.Filters.Equal(fetched.Filters))
		assert.Nil(t, fetched.Filters["balance"].To, "partial range survives storage")
		assert.Equal(t, v.Sort, fetched.Sort)
		assert.Equal(t, v.Pagination, fetched.Pagination)
		assert.Equal(t, v.ColumnOrder, fetched.ColumnOrder)
		assert.Equal(t, v.HiddenColumns, fetched.HiddenColumns)
		assert.True(t, v.CreatedAt.Equal(fetched.CreatedAt))
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		v := newView("members", "Before")
		require.NoError(t, store.Save(ctx, v))

		v.Name = "After"
		v.Filters = domain.FilterMap{}
		require.NoError(t, store.Save(ctx, v))

		fetched, err := store.Get(ctx, v.Table, v.ID)
		require.NoError(t, err)
		assert.Equal(t, "After", fetched.Name)
		assert.Empty(t, fetched.Filters)
	})

	t.Run("ListIsScopedToTable", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		a := newView("members", "A")
		b := newView("members", "B")
		other := newView("loans", "C")
		for _, v := range []domain.View{a, b, other} {
			require.NoError(t, store.Save(ctx, v))
		}

		views, err := store.List(ctx, "members")
		require.NoError(t, err)

		ids := make(map[string]bool)
		for _, v := range views {
			ids[v.ID] = true
		}
		assert.True(t, ids[a.ID])
		assert.True(t, ids[b.ID])
		assert.False(t, ids[other.ID])
	})

	t.Run("ListEmptyTable", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		views, err := store.List(context.Background(), "nothing-here")
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("Delete", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()
		ctx := context.Background()

		v := newView("members", "Gone")
		require.NoError(t, store.Save(ctx, v))
		require.NoError(t, store.Delete(ctx, v.Table, v.ID))

		_, err := store.Get(ctx, v.Table, v.ID)
		assert.ErrorIs(t, err, domain.ErrViewNotFound)

		assert.ErrorIs(t, store.Delete(ctx, v.Table, v.ID), domain.ErrViewNotFound)
	})

	t.Run("GetNonExistentView", func(t *testing.T) {
		store, teardown := setup()
		defer teardown()

		_, err := store.Get(context.Background(), "members", "non-existent-id")
		assert.ErrorIs(t, err, domain.ErrViewNotFound)
	})
}
