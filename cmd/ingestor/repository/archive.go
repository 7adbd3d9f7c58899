package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/carvault/ingestor/cmd/ingestor/models"
	"github.com/carvault/ingestor/common/store"
)

// ArchiveRepository handles store operations for archive progress records
type ArchiveRepository struct {
	store store.Store
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(store store.Store) *ArchiveRepository {
	return &ArchiveRepository{store: store}
}

// Get retrieves an archive record by ID, nil when absent
func (r *ArchiveRepository) Get(ctx context.Context, archiveID string) (*models.ArchiveRecord, error) {
	fields, err := r.store.Get(ctx, ArchiveTable, archiveKeyField, archiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive record: %w", err)
	}
	if fields == nil {
		return nil, nil
	}

	record := &models.ArchiveRecord{}
	if err := decodeRecord(fields, record); err != nil {
		return nil, fmt.Errorf("failed to decode archive record %s: %w", archiveID, err)
	}
	return record, nil
}

// Reset upserts the archive record in full, discarding any partial
// progress from an earlier failed attempt.
func (r *ArchiveRepository) Reset(ctx context.Context, record *models.ArchiveRecord) error {
	fields, err := encodeRecord(record)
	if err != nil {
		return fmt.Errorf("failed to encode archive record %s: %w", record.ArchiveID, err)
	}

	if err := r.store.Put(ctx, true, ArchiveTable, archiveKeyField, record.ArchiveID, fields); err != nil {
		return fmt.Errorf("failed to reset archive record: %w", err)
	}
	return nil
}

// Complete marks the archive done with a partial update: completed,
// current_position and duration_ms only. Roots, version and the locator
// fields are not touched.
func (r *ArchiveRepository) Complete(ctx context.Context, archiveID string, totalLength uint64, duration time.Duration) error {
	fields := map[string]any{
		"completed":        true,
		"current_position": totalLength,
		"duration_ms":      duration.Milliseconds(),
	}
	if err := r.store.Put(ctx, false, ArchiveTable, archiveKeyField, archiveID, fields); err != nil {
		return fmt.Errorf("failed to complete archive record: %w", err)
	}
	return nil
}
