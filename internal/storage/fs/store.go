package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/coopdesk/backoffice/internal/domain"
)

// Store is a filesystem-based implementation of view.Store.
// Views live at <baseDir>/<table>/<id>.json.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a new filesystem store.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) tableDir(table string) string {
	return filepath.Join(s.baseDir, table)
}

func (s *Store) getFilePath(table, id string) string {
	return filepath.Join(s.tableDir(table), id+".json")
}

// Save writes the view atomically, replacing any previous version.
func (s *Store) Save(ctx context.Context, v domain.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.tableDir(v.Table), 0o755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal view: %w", err)
	}

	// A crash mid-write leaves either the old or the new file, never a torn one.
	if err := atomic.WriteFile(s.getFilePath(v.Table, v.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Get reads one view.
func (s *Store) Get(ctx context.Context, table, id string) (domain.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.getFilePath(table, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.View{}, fmt.Errorf("%w: %s/%s", domain.ErrViewNotFound, table, id)
		}
		return domain.View{}, fmt.Errorf("failed to read file: %w", err)
	}

	var v domain.View
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.View{}, fmt.Errorf("failed to unmarshal view: %w", err)
	}
	return v, nil
}

// List scans the table directory for JSON files and loads them in parallel.
func (s *Store) List(ctx context.Context, table string) ([]domain.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.tableDir(table))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.View{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var mu sync.Mutex
	views := []domain.View{}
	var wg sync.WaitGroup

	// Limit concurrency to avoid "too many open files" on large directories.
	const maxConcurrency = 20
	semaphore := make(chan struct{}, maxConcurrency)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		wg.Add(1)
		semaphore <- struct{}{}

		go func(filename string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			path := filepath.Join(s.tableDir(table), filename)
			data, err := os.ReadFile(path)
			if err != nil {
				slog.WarnContext(ctx, "skipping unreadable view file", "path", path, "error", err)
				return
			}

			var v domain.View
			if err := json.Unmarshal(data, &v); err != nil {
				slog.WarnContext(ctx, "skipping malformed view file", "path", path, "error", err)
				return
			}
			mu.Lock()
			views = append(views, v)
			mu.Unlock()
		}(entry.Name())
	}

	wg.Wait()
	return views, nil
}

// Delete removes one view.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.getFilePath(table, id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s/%s", domain.ErrViewNotFound, table, id)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
