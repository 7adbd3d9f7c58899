package repository

import (
	"context"
	"fmt"

	"github.com/carvault/ingestor/cmd/ingestor/models"
	"github.com/carvault/ingestor/common/store"
)

// BlockRepository handles store operations for block dedup records
type BlockRepository struct {
	store store.Store
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(store store.Store) *BlockRepository {
	return &BlockRepository{store: store}
}

// Get retrieves a block record by content ID, nil when absent
func (r *BlockRepository) Get(ctx context.Context, cid string) (*models.BlockRecord, error) {
	fields, err := r.store.Get(ctx, BlockTable, blockKeyField, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to get block record: %w", err)
	}
	if fields == nil {
		return nil, nil
	}

	record := &models.BlockRecord{}
	if err := decodeRecord(fields, record); err != nil {
		return nil, fmt.Errorf("failed to decode block record %s: %w", cid, err)
	}
	return record, nil
}

// Create writes a brand-new block record, replacing any existing record
// in full. Used only at first sighting.
func (r *BlockRepository) Create(ctx context.Context, record *models.BlockRecord) error {
	fields, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode block record %s: %w", record.CID, err)
	}

	if err := r.store.Put(ctx, true, BlockTable, blockKeyField, record.CID, fields); err != nil {
		return fmt.Errorf("failed to create block record: %w", err)
	}
	return nil
}

// UpdateOccurrences rewrites only the occurrence list of an existing
// record. Kind, payload and created_at are left untouched.
func (r *BlockRepository) UpdateOccurrences(ctx context.Context, cid string, occurrences []models.Occurrence) error {
	fields := map[string]any{
		"occurrences": occurrences,
	}
	if err := r.store.Put(ctx, false, BlockTable, blockKeyField, cid, fields); err != nil {
		return fmt.Errorf("failed to update occurrences for %s: %w", cid, err)
	}
	return nil
}
