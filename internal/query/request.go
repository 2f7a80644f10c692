// Package query defines the wire form of a table query: the filter, sort,
// pagination and preload state a data table sends to the remote data API.
package query

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Param is the query-string parameter carrying an encoded Request.
const Param = "q"

// Request is the serialized state of one table query.
type Request struct {
	Filters    domain.FilterMap       `json:"filters"`
	Sort       domain.SortState       `json:"sort"`
	Pagination domain.PaginationState `json:"pagination"`
	Preloads   []string               `json:"preloads,omitempty"`
}

// NewRequest returns a request for the first page with the default page size.
func NewRequest() Request {
	return Request{
		Filters:    domain.FilterMap{},
		Pagination: domain.PaginationState{PageIndex: 0, PageSize: domain.DefaultPageSize},
	}
}

// Normalize returns a canonical copy: filters carry only the operands their
// mode uses, preloads are sorted and de-duplicated, nil collections become empty.
func (r Request) Normalize() Request {
	out := Request{
		Filters:    make(domain.FilterMap, len(r.Filters)),
		Sort:       r.Sort.Clone(),
		Pagination: r.Pagination,
	}
	if out.Sort == nil {
		out.Sort = domain.SortState{}
	}
	for field, d := range r.Filters {
		out.Filters[field] = d.Normalize()
	}
	if len(r.Preloads) > 0 {
		preloads := slices.Clone(r.Preloads)
		slices.Sort(preloads)
		out.Preloads = slices.Compact(preloads)
	}
	return out
}

// Validate checks pagination and sort invariants. Filter semantics are
// checked by the server against its column catalog.
func (r Request) Validate() error {
	if err := r.Pagination.Validate(); err != nil {
		return err
	}
	return r.Sort.Validate()
}

// Encode serializes the request as URL-safe base64 JSON.
func (r Request) Encode() (string, error) {
	data, err := json.Marshal(r.Normalize())
	if err != nil {
		return "", fmt.Errorf("failed to marshal query request: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a request produced by Encode. Padded base64 is accepted too.
func Decode(token string) (Request, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return Request{}, fmt.Errorf("%w: empty token", domain.ErrInvalidRequest)
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	var r Request
	if err := json.Unmarshal(data, &r); err != nil {
		return Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return r.Normalize(), nil
}

// Values returns the request as query-string values under Param.
func (r Request) Values() (url.Values, error) {
	token, err := r.Encode()
	if err != nil {
		return nil, err
	}
	return url.Values{Param: []string{token}}, nil
}

// FromValues reads a request from query-string values. A missing parameter
// yields NewRequest.
func FromValues(v url.Values) (Request, error) {
	token := v.Get(Param)
	if token == "" {
		return NewRequest(), nil
	}
	return Decode(token)
}

// Key is a deterministic identity for the request. Two requests share a key
// exactly when they would fetch the same page.
func (r Request) Key() string {
	token, err := r.Encode()
	if err != nil {
		// Every field marshals; this only guards against future types.
		return ""
	}
	return token
}
