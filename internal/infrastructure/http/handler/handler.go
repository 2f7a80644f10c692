package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/application/view"
)

// APIHandler adapts HTTP requests to the member and view services.
type APIHandler struct {
	members *member.Service
	views   *view.Service
}

// NewAPIHandler creates a new HTTP API handler.
func NewAPIHandler(members *member.Service, views *view.Service) *APIHandler {
	return &APIHandler{
		members: members,
		views:   views,
	}
}

// NewRouter mounts the versioned API routes. The result is served under /api
// by the server, behind authentication.
// Both production code and tests should use this function to ensure identical behavior.
func NewRouter(members *member.Service, views *view.Service) http.Handler {
	h := NewAPIHandler(members, views)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/members", h.ListMembers)
		r.Post("/members/export", h.ExportMembers)

		r.Get("/views/{table}", h.ListViews)
		r.Post("/views/{table}", h.SaveView)
		r.Get("/views/{table}/{id}", h.GetView)
		r.Delete("/views/{table}/{id}", h.DeleteView)
	})
	return r
}
