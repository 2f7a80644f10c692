package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopdesk/backoffice/internal/application/member"
	"github.com/coopdesk/backoffice/internal/application/view"
	"github.com/coopdesk/backoffice/internal/domain"
	"github.com/coopdesk/backoffice/internal/infrastructure/export"
	"github.com/coopdesk/backoffice/internal/infrastructure/http/response"
	"github.com/coopdesk/backoffice/internal/query"
	"github.com/coopdesk/backoffice/internal/storage/fs"
)

// memoryRepository serves a fixed member list and records the last query.
type memoryRepository struct {
	members []domain.Member
	last    domain.MemberQuery
}

func (r *memoryRepository) FindMembers(_ context.Context, q domain.MemberQuery) (*domain.MemberPage, error) {
	r.last = q
	var out []domain.Member
	for _, m := range r.members {
		if q.IDs != nil && !slices.Contains(q.IDs, m.ID) {
			continue
		}
		out = append(out, m)
	}
	total := len(out)
	if q.Limit > 0 {
		out = out[min(q.Offset, len(out)):min(q.Offset+q.Limit, len(out))]
	}
	return &domain.MemberPage{Members: out, TotalCount: total}, nil
}

func newTestRouter(t *testing.T, members ...domain.Member) (http.Handler, *memoryRepository) {
	t.Helper()
	repo := &memoryRepository{members: members}
	memberSvc := member.NewService(repo, map[query.ExportFormat]member.Exporter{
		query.FormatXLSX: export.NewXLSX(),
		query.FormatPDF:  export.NewPDF(),
	}, member.Config{})

	store, err := fs.NewStore(t.TempDir())
	require.NoError(t, err)

	return NewRouter(memberSvc, view.NewService(store)), repo
}

func sampleMembers() []domain.Member {
	joined := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	return []domain.Member{
		{ID: "m1", MemberNo: "M-001", FullName: "Juan Dela Cruz", BranchCode: "MNL", CompanyCode: "C1", Balance: decimal.NewFromInt(1500), JoinedOn: joined, Active: true},
		{ID: "m2", MemberNo: "M-002", FullName: "Maria Santos", BranchCode: "CEB", CompanyCode: "C1", Balance: decimal.NewFromInt(250), JoinedOn: joined, Active: true},
		{ID: "m3", MemberNo: "M-003", FullName: "Jose Rizal", BranchCode: "CEB", CompanyCode: "C1", Balance: decimal.NewFromInt(10), JoinedOn: joined, Active: false},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var body response.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestListMembers(t *testing.T) {
	router, repo := newTestRouter(t, sampleMembers()...)

	req := query.NewRequest()
	req.Filters = domain.FilterMap{
		member.FieldFullName: {Mode: domain.ModeContains, Value: domain.ScalarPtr("Juan"), DataType: domain.DataTypeText},
	}
	req.Pagination = domain.PaginationState{PageIndex: 0, PageSize: 2}
	values, err := req.Values()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/members?"+values.Encode(), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var page query.Response[domain.Member]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 3, page.TotalSize)
	assert.Equal(t, 2, page.TotalPage)
	assert.Equal(t, 2, page.PageSize)

	assert.Contains(t, repo.last.Filters, member.FieldFullName)
	assert.Equal(t, 2, repo.last.Limit)
}

func TestListMembers_DefaultRequest(t *testing.T) {
	router, repo := newTestRouter(t, sampleMembers()...)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/members", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultPageSize, repo.last.Limit)
	assert.Zero(t, repo.last.Offset)
}

func TestListMembers_Errors(t *testing.T) {
	router, _ := newTestRouter(t)

	unknown := query.NewRequest()
	unknown.Filters = domain.FilterMap{
		"nickname": {Mode: domain.ModeEquals, Value: domain.ScalarPtr("x"), DataType: domain.DataTypeText},
	}
	unknownToken, err := unknown.Encode()
	require.NoError(t, err)

	badNumber := query.NewRequest()
	badNumber.Filters = domain.FilterMap{
		member.FieldBalance: {Mode: domain.ModeGreaterThan, Value: domain.ScalarPtr("lots"), DataType: domain.DataTypeNumber},
	}
	badNumberToken, err := badNumber.Encode()
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"undecodable token", "q=***", "INVALID_REQUEST"},
		{"garbage token", "q=bm90LWpzb24", "INVALID_REQUEST"},
		{"unknown field", "q=" + unknownToken, "VALIDATION_ERROR"},
		{"bad operand", "q=" + badNumberToken, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/v1/members", nil)
			r.URL.RawQuery = tt.query
			router.ServeHTTP(rec, r)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestExportMembers(t *testing.T) {
	router, repo := newTestRouter(t, sampleMembers()...)

	body := `{"filters":{},"rowIds":["m3","m1"],"format":"xlsx"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/members/export", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, query.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename=members-\d{8}-\d{6}\.xlsx$`, rec.Header().Get("Content-Disposition"))
	assert.NotZero(t, rec.Body.Len())
	assert.Equal(t, []string{"m1", "m3"}, repo.last.IDs)
}

func TestExportMembers_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown format", `{"filters":{},"format":"docx"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"nothing selected matches", `{"filters":{},"rowIds":["zz"],"format":"pdf"}`, http.StatusUnprocessableEntity, "EMPTY_EXPORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, sampleMembers()...)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/members/export", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Empty(t, rec.Header().Get("Content-Disposition"))
		})
	}
}

func TestViews_Lifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"name":"Cebu members","filters":{"branchCode":{"mode":"equals","value":"CEB","dataType":"text"}},"pagination":{"pageIndex":0,"pageSize":25}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/views/members", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saved domain.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&saved))
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "members", saved.Table)
	assert.Equal(t, "Cebu members", saved.Name)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/views/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListViewsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Views, 1)
	assert.Equal(t, saved.ID, list.Views[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/views/members/"+saved.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Filters.Equal(saved.Filters))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/views/members/"+saved.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/views/members/"+saved.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveView_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/views/members", strings.NewReader(`{"name":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", detail.Code)
	require.Len(t, detail.Details, 1)
	assert.Equal(t, "name", detail.Details[0].Field)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/views/bad.table", strings.NewReader(`{"name":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
