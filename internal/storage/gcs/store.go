package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Store is a GCS-based implementation of view.Store.
// Views are stored as <prefix><table>/<id>.json objects.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewStore creates a new GCS store.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName, prefix string, opts ...option.ClientOption) (*Store, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		client: client,
		bucket: bucketName,
		prefix: prefix,
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) tablePrefix(table string) string {
	return s.prefix + table + "/"
}

func (s *Store) objectName(table, id string) string {
	return s.tablePrefix(table) + id + ".json"
}

// Save writes the view, replacing any previous version.
func (s *Store) Save(ctx context.Context, v domain.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	w := s.client.Bucket(s.bucket).Object(s.objectName(v.Table, v.ID)).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Get reads one view.
func (s *Store) Get(ctx context.Context, table, id string) (domain.View, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(table, id)).NewReader(ctx)
	if err != nil {
		// Use errors.Is to handle wrapped errors from GCS client
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.View{}, fmt.Errorf("%w: %s/%s", domain.ErrViewNotFound, table, id)
		}
		return domain.View{}, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	var v domain.View
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return domain.View{}, fmt.Errorf("failed to decode view: %w", err)
	}
	return v, nil
}

// List scans the table prefix for JSON objects and loads them in parallel.
func (s *Store) List(ctx context.Context, table string) ([]domain.View, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.tablePrefix(table)})

	// First, collect all object names
	var objectNames []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		if path.Ext(attrs.Name) == ".json" {
			objectNames = append(objectNames, attrs.Name)
		}
	}

	// Then, fetch objects in parallel
	var mu sync.Mutex
	views := []domain.View{}
	var wg sync.WaitGroup

	// Limit concurrency to avoid overwhelming GCS and local resources.
	const maxConcurrency = 20
	semaphore := make(chan struct{}, maxConcurrency)

	for _, name := range objectNames {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(objectName string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
			if err != nil {
				slog.WarnContext(ctx, "skipping unreadable view object", "object", objectName, "error", err)
				return
			}
			defer r.Close()

			var v domain.View
			if err := json.NewDecoder(r).Decode(&v); err != nil {
				slog.WarnContext(ctx, "skipping malformed view object", "object", objectName, "error", err)
				return
			}
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}(name)
	}

	wg.Wait()
	return views, nil
}

// Delete removes one view.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	err := s.client.Bucket(s.bucket).Object(s.objectName(table, id)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s/%s", domain.ErrViewNotFound, table, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
