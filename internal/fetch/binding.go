package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/coopdesk/backoffice/internal/query"
	"github.com/coopdesk/backoffice/internal/table"
)

// ErrStale is returned by Refresh when a newer request was issued, or the
// table moved on, before the response arrived. The response is discarded.
var ErrStale = errors.New("stale response")

// Source serves pages and exports of rows of T. *Resource[T] implements it.
type Source[T any] interface {
	List(ctx context.Context, req query.Request) (query.Response[T], error)
	Export(ctx context.Context, req query.ExportRequest, w io.Writer) (string, error)
}

// BindingOption configures a Binding.
type BindingOption func(*bindingOptions)

type bindingOptions struct {
	logger *slog.Logger
}

// WithBindingLogger sets the logger used by Watch. Defaults to slog.Default().
func WithBindingLogger(logger *slog.Logger) BindingOption {
	return func(o *bindingOptions) { o.logger = logger }
}

// Binding keeps a table coordinator's rows in sync with a Source.
//
// Each Refresh is tagged with a generation number. A response is applied only
// if no newer Refresh was issued in the meantime and the table still asks for
// the same query; otherwise it is dropped. Failed requests leave the table and
// the last good result untouched. Rows are applied while the binding is
// locked, so coordinator subscribers must not call back into the binding
// synchronously.
type Binding[T any] struct {
	table  *table.Coordinator[T]
	source Source[T]
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	result  query.Response[T]
	loaded  bool
	lastErr error
}

// NewBinding binds coordinator to source.
func NewBinding[T any](coordinator *table.Coordinator[T], source Source[T], opts ...BindingOption) *Binding[T] {
	o := bindingOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Binding[T]{
		table:  coordinator,
		source: source,
		logger: o.logger,
	}
}

// Refresh fetches the page the table currently asks for and applies it.
func (b *Binding[T]) Refresh(ctx context.Context) (query.Response[T], error) {
	req := b.table.Request()
	key := req.Key()

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	resp, err := b.source.List(ctx, req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return query.Response[T]{}, ErrStale
	}
	if err != nil {
		if key != b.table.QueryKey() {
			return query.Response[T]{}, ErrStale
		}
		b.lastErr = err
		return query.Response[T]{}, fmt.Errorf("fetch page %d: %w", req.Pagination.PageIndex, err)
	}
	if !b.table.SetRowsFor(key, resp.Data) {
		return query.Response[T]{}, ErrStale
	}

	b.result = resp
	b.loaded = true
	b.lastErr = nil
	return resp, nil
}

// Result returns the last applied response and whether one exists.
func (b *Binding[T]) Result() (query.Response[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result, b.loaded
}

// Err returns the error of the latest applied Refresh, or nil after a success.
func (b *Binding[T]) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Watch refreshes whenever the table's query key changes, until ctx is done.
// An in-flight request is cancelled when a newer one starts.
func (b *Binding[T]) Watch(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	signal := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	unsubscribe := b.table.Subscribe(func(table.State) { signal() })
	defer unsubscribe()
	signal()

	var (
		wg      sync.WaitGroup
		cancel  context.CancelFunc = func() {}
		lastKey string
		started bool
	)
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}

		key := b.table.QueryKey()
		if started && key == lastKey {
			continue
		}
		started = true
		lastKey = key

		cancel()
		var reqCtx context.Context
		reqCtx, cancel = context.WithCancel(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.refreshLogged(reqCtx)
		}()
	}
}

func (b *Binding[T]) refreshLogged(ctx context.Context) {
	resp, err := b.Refresh(ctx)
	switch {
	case err == nil:
		b.logger.DebugContext(ctx, "table refreshed", "rows", len(resp.Data), "total", resp.TotalSize)
	case errors.Is(err, ErrStale), errors.Is(err, context.Canceled):
		b.logger.DebugContext(ctx, "dropped table response", "error", err)
	default:
		b.logger.WarnContext(ctx, "table refresh failed", "error", err)
	}
}

// Export streams a file of the current filter result into w. When rows are
// selected only those rows are exported.
func (b *Binding[T]) Export(ctx context.Context, format query.ExportFormat, w io.Writer) (string, error) {
	req := b.table.Request()
	exportReq := query.ExportRequest{
		Filters: req.Filters,
		Sort:    req.Sort,
		RowIDs:  b.table.State().RowSelection.IDs(),
		Format:  format,
	}
	if err := exportReq.Validate(); err != nil {
		return "", err
	}
	return b.source.Export(ctx, exportReq, w)
}
