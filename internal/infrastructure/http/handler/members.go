package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/coopdesk/backoffice/internal/infrastructure/http/response"
	"github.com/coopdesk/backoffice/internal/query"
)

// ListMembers serves one page of the member directory.
// GET /v1/members?q=<encoded request>
func (h *APIHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	req, err := query.FromValues(r.URL.Query())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	page, err := h.members.List(r.Context(), req)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to list members via HTTP",
			"query_key", req.Key(),
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, page)
}

// ExportMembers renders the requested members as a file download.
// POST /v1/members/export
func (h *APIHandler) ExportMembers(w http.ResponseWriter, r *http.Request) {
	var req query.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	// Rendered into memory first so a failure can still produce an error response.
	var buf bytes.Buffer
	result, err := h.members.Export(r.Context(), req, &buf)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to export members via HTTP",
			"format", req.Format,
			"selected", len(req.RowIDs),
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "members exported via HTTP",
		"format", req.Format,
		"rows", result.Rows,
		"bytes", buf.Len())

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export body", "error", err)
	}
}
