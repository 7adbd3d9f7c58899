package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	bolt "go.etcd.io/bbolt"
)

// BoltStore is a Store backed by an embedded bbolt database, one bucket
// per table. Suitable for single-node deployments without Postgres.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a bbolt-backed store at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get retrieves a record by id
func (s *BoltStore) Get(ctx context.Context, table, keyField, id string) (map[string]any, error) {
	var record map[string]any
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		doc := b.Get([]byte(id))
		if doc == nil {
			return nil
		}
		return json.Unmarshal(doc, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", table, id, err)
	}
	return record, nil
}

// Put stores or merges a record
func (s *BoltStore) Put(ctx context.Context, overwrite bool, table, keyField, id string, fields map[string]any) error {
	doc, err := encodeFields(keyField, id, fields)
	if err != nil {
		return fmt.Errorf("encode record %s/%s: %w", table, id, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}

		existing := b.Get([]byte(id))
		if overwrite || existing == nil {
			return b.Put([]byte(id), doc)
		}

		merged, err := jsonpatch.MergePatch(existing, doc)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), merged)
	})
	if err != nil {
		return fmt.Errorf("put record %s/%s: %w", table, id, err)
	}
	return nil
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
