package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Views reads and writes the saved views of one table.
type Views struct {
	client *Client
	table  string
}

// NewViews binds the saved-view endpoints of table.
func NewViews(c *Client, table string) *Views {
	return &Views{client: c, table: table}
}

func (v *Views) path(id ...string) string {
	p := "/views/" + url.PathEscape(v.table)
	if len(id) > 0 {
		p += "/" + url.PathEscape(id[0])
	}
	return p
}

// List returns every saved view of the table.
func (v *Views) List(ctx context.Context) ([]domain.View, error) {
	var out struct {
		Views []domain.View `json:"views"`
	}
	if err := v.client.doJSON(ctx, http.MethodGet, v.path(), nil, &out); err != nil {
		return nil, err
	}
	return out.Views, nil
}

// Get returns one saved view.
func (v *Views) Get(ctx context.Context, id string) (domain.View, error) {
	var out domain.View
	err := v.client.doJSON(ctx, http.MethodGet, v.path(id), nil, &out)
	return out, err
}

// Save stores view and returns it as persisted, with id and timestamps set.
func (v *Views) Save(ctx context.Context, view domain.View) (domain.View, error) {
	var out domain.View
	err := v.client.doJSON(ctx, http.MethodPost, v.path(), view, &out)
	return out, err
}

// Delete removes one saved view.
func (v *Views) Delete(ctx context.Context, id string) error {
	return v.client.doJSON(ctx, http.MethodDelete, v.path(id), nil, nil)
}

// doJSON sends in as a JSON body when non-nil and decodes the response into
// out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s body: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
