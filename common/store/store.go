package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ErrClosed is returned by store operations after Close
var ErrClosed = errors.New("store: closed")

// Store is the record-store contract used by the ingestion repositories.
//
// Get returns nil (no error) when the record is absent. Put with
// overwrite=true replaces the entire record; with overwrite=false the given
// fields are merged into the existing record, leaving other fields
// untouched. keyField names the identifier attribute stamped into the
// record document.
type Store interface {
	Get(ctx context.Context, table, keyField, id string) (map[string]any, error)
	Put(ctx context.Context, overwrite bool, table, keyField, id string, fields map[string]any) error
	Close() error
}

// MemoryStore is an in-process Store for tests and local runs.
// Records are held as JSON documents so merge semantics match the
// persistent backends exactly.
type MemoryStore struct {
	tables map[string]map[string][]byte
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string][]byte),
	}
}

// Get retrieves a record by id
func (s *MemoryStore) Get(ctx context.Context, table, keyField, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tables == nil {
		return nil, ErrClosed
	}
	rows, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	doc, ok := rows[id]
	if !ok {
		return nil, nil
	}

	var record map[string]any
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("decode record %s/%s: %w", table, id, err)
	}
	return record, nil
}

// Put stores or merges a record
func (s *MemoryStore) Put(ctx context.Context, overwrite bool, table, keyField, id string, fields map[string]any) error {
	doc, err := encodeFields(keyField, id, fields)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", table, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables == nil {
		return ErrClosed
	}
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string][]byte)
		s.tables[table] = rows
	}

	existing, exists := rows[id]
	if overwrite || !exists {
		rows[id] = doc
		return nil
	}

	merged, err := jsonpatch.MergePatch(existing, doc)
	if err != nil {
		return fmt.Errorf("merge record %s/%s: %w", table, id, err)
	}
	rows[id] = merged
	return nil
}

// Close closes the store (for interface compatibility)
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = nil
	return nil
}

func encodeFields(keyField, id string, fields map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[keyField] = id
	return json.Marshal(doc)
}
