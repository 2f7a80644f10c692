package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/domain"
)

func TestViews_RoundTrip(t *testing.T) {
	saved := map[string]domain.View{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /views/members", func(w http.ResponseWriter, r *http.Request) {
		var v domain.View
		require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
		v.ID = "v-1"
		v.Table = "members"
		saved[v.ID] = v
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(v)
	})
	mux.HandleFunc("GET /views/members", func(w http.ResponseWriter, r *http.Request) {
		views := []domain.View{}
		for _, v := range saved {
			views = append(views, v)
		}
		json.NewEncoder(w).Encode(map[string]any{"views": views})
	})
	mux.HandleFunc("GET /views/members/{id}", func(w http.ResponseWriter, r *http.Request) {
		v, ok := saved[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"view not found"}}`))
			return
		}
		json.NewEncoder(w).Encode(v)
	})
	mux.HandleFunc("DELETE /views/members/{id}", func(w http.ResponseWriter, r *http.Request) {
		delete(saved, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	views := NewViews(client, "members")
	ctx := context.Background()

	v, err := views.Save(ctx, domain.View{
		Name:       "active-manila",
		Pagination: domain.PaginationState{PageSize: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, "v-1", v.ID)

	list, err := views.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "active-manila", list[0].Name)

	got, err := views.Get(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, 25, got.Pagination.PageSize)

	require.NoError(t, views.Delete(ctx, "v-1"))

	_, err = views.Get(ctx, "v-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, IsAPIError(err, http.StatusNotFound))
}
