// Package jsonfile implements the persistence port on a single local JSON
// file. It is the default backend for personal/single-user deployments;
// every write lands on disk (atomic rename) before it returns, which is
// what the entity store's write-through discipline relies on.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store is a file-backed document store: collection -> key -> raw JSON.
type Store struct {
	mu     sync.Mutex
	path   string
	data   map[string]map[string]json.RawMessage
	logger *zap.Logger
}

// Open loads (or creates) the data file at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		data:   make(map[string]map[string]json.RawMessage),
		logger: logger,
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("data file not found, starting empty", zap.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("read data file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse data file %s: %w", path, err)
		}
	}
	return s, nil
}

// GetAll returns every item in a collection, ordered by key so results are
// stable across restarts.
func (s *Store) GetAll(_ context.Context, collection string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.data[collection]
	keys := make([]string, 0, len(col))
	for k := range col {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([][]byte, 0, len(col))
	for _, k := range keys {
		items = append(items, []byte(col[k]))
	}
	return items, nil
}

// Get returns one item by key, or (nil, nil) when absent.
func (s *Store) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.data[collection][key]
	if !ok {
		return nil, nil
	}
	return []byte(item), nil
}

// Put inserts or replaces the item under key and flushes to disk.
func (s *Store) Put(_ context.Context, collection, key string, item []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.data[collection]
	if !ok {
		col = make(map[string]json.RawMessage)
		s.data[collection] = col
	}
	prev, had := col[key]
	col[key] = json.RawMessage(item)

	if err := s.flushLocked(); err != nil {
		// Roll the map back so memory matches disk.
		if had {
			col[key] = prev
		} else {
			delete(col, key)
		}
		return err
	}
	return nil
}

// Delete removes the item under key and flushes to disk.
func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.data[collection]
	if !ok {
		return nil
	}
	prev, had := col[key]
	if !had {
		return nil
	}
	delete(col, key)

	if err := s.flushLocked(); err != nil {
		col[key] = prev
		return err
	}
	return nil
}

// Clear removes every item in a collection and flushes to disk.
func (s *Store) Clear(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data[collection]
	delete(s.data, collection)

	if err := s.flushLocked(); err != nil {
		if prev != nil {
			s.data[collection] = prev
		}
		return err
	}
	return nil
}

// ReplaceAll swaps a collection's contents in one durable write.
func (s *Store) ReplaceAll(_ context.Context, collection string, items [][]byte, keys []string) error {
	if len(items) != len(keys) {
		return fmt.Errorf("replaceAll %s: %d items, %d keys", collection, len(items), len(keys))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := make(map[string]json.RawMessage, len(items))
	for i, item := range items {
		col[keys[i]] = json.RawMessage(item)
	}

	prev := s.data[collection]
	s.data[collection] = col

	if err := s.flushLocked(); err != nil {
		if prev != nil {
			s.data[collection] = prev
		} else {
			delete(s.data, collection)
		}
		return err
	}
	return nil
}

// flushLocked writes the whole document to a temp file and renames it over
// the data file. Caller must hold s.mu.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".grana-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}
