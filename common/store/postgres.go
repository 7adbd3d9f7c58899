package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/carvault/ingestor/common/db"
	"github.com/jackc/pgx/v5"
)

// PostgresStore is a Store backed by a single records table keyed by
// (tbl, id) with a JSONB fields column. Merge semantics use the jsonb
// concatenation operator, which replaces top-level fields only.
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a Postgres-backed store over an existing pool
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

// Get retrieves a record by id
func (s *PostgresStore) Get(ctx context.Context, table, keyField, id string) (map[string]any, error) {
	query := `SELECT fields FROM records WHERE tbl = $1 AND id = $2`

	var record map[string]any
	err := s.db.QueryRow(ctx, query, table, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s/%s: %w", table, id, err)
	}
	return record, nil
}

// Put stores or merges a record
func (s *PostgresStore) Put(ctx context.Context, overwrite bool, table, keyField, id string, fields map[string]any) error {
	doc := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		doc[k] = v
	}
	doc[keyField] = id

	query := `
		INSERT INTO records (tbl, id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (tbl, id) DO UPDATE SET fields = records.fields || EXCLUDED.fields
	`
	if overwrite {
		query = `
			INSERT INTO records (tbl, id, fields)
			VALUES ($1, $2, $3)
			ON CONFLICT (tbl, id) DO UPDATE SET fields = EXCLUDED.fields
		`
	}

	if _, err := s.db.Exec(ctx, query, table, id, doc); err != nil {
		return fmt.Errorf("put record %s/%s: %w", table, id, err)
	}
	return nil
}

// Close is a no-op; pool lifecycle is owned by bootstrap
func (s *PostgresStore) Close() error {
	return nil
}
