package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/infrastructure/http/response"
)

// ListViewsResponse wraps the saved views of a table.
type ListViewsResponse struct {
	Views []domain.View `json:"views"`
}

// ListViews returns the saved views of a table, oldest first.
// GET /v1/views/{table}
func (h *APIHandler) ListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.views.List(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, ListViewsResponse{Views: views})
}

// SaveView stores a view. A body without an id creates a new view.
// POST /v1/views/{table}
func (h *APIHandler) SaveView(w http.ResponseWriter, r *http.Request) {
	var v domain.View
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}
	v.Table = chi.URLParam(r, "table")

	saved, err := h.views.Save(r.Context(), v)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to save view via HTTP",
			"table", v.Table,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "view saved via HTTP",
		"table", saved.Table,
		"view_id", saved.ID)

	response.Created(w, saved)
}

// GetView returns one saved view.
// GET /v1/views/{table}/{id}
func (h *APIHandler) GetView(w http.ResponseWriter, r *http.Request) {
	v, err := h.views.Get(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, v)
}

// DeleteView removes one saved view.
// DELETE /v1/views/{table}/{id}
func (h *APIHandler) DeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.views.Delete(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id")); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}
