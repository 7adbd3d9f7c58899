package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/models"
	"github.com/carvault/ingestor/cmd/ingestor/repository"
	"github.com/carvault/ingestor/common/logger"
	"github.com/ipfs/go-cid"
)

// Merger implements the idempotent insert-or-append protocol against the
// block store. A block's payload is decoded and persisted at most once;
// every later sighting only grows its provenance list.
type Merger struct {
	blocks *repository.BlockRepository
	log    *logger.Logger
}

// NewMerger creates a new block merger
func NewMerger(blocks *repository.BlockRepository, log *logger.Logger) *Merger {
	return &Merger{
		blocks: blocks,
		log:    log,
	}
}

// RecordFirstSighting persists a brand-new block record with a single
// occurrence. Embedded child references in the decoded payload are
// normalized to canonical string form before the write. Full overwrite:
// callers use this only when no record exists.
func (m *Merger) RecordFirstSighting(ctx context.Context, archiveID string, blk *carstream.Block, kind string, decoded any) error {
	record := &models.BlockRecord{
		CID:       blk.CID.String(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Occurrences: []models.Occurrence{
			{ArchiveID: archiveID, Offset: blk.Offset, Length: blk.Length},
		},
		Data: normalizeLinks(decoded),
	}

	if err := m.blocks.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record first sighting of %s: %w", record.CID, err)
	}

	m.log.Debug("first sighting", "cid", record.CID, "kind", kind, "archive_id", archiveID)
	return nil
}

// AppendOccurrence adds one sighting to an existing record and persists
// only the re-sorted occurrence list. The stored payload is never
// re-decoded, even when the newly observed block carries raw bytes.
// (archive_id, offset) pairs are not deduplicated; the archive-level
// completed guard keeps replays from reaching here.
func (m *Merger) AppendOccurrence(ctx context.Context, existing *models.BlockRecord, archiveID string, blk *carstream.Block) error {
	occurrences := append(existing.Occurrences, models.Occurrence{
		ArchiveID: archiveID,
		Offset:    blk.Offset,
		Length:    blk.Length,
	})
	sortOccurrences(occurrences)

	if err := m.blocks.UpdateOccurrences(ctx, existing.CID, occurrences); err != nil {
		return fmt.Errorf("failed to append occurrence to %s: %w", existing.CID, err)
	}

	m.log.Debug("repeat sighting", "cid", existing.CID, "occurrences", len(occurrences))
	return nil
}

// sortOccurrences keeps the provenance list ascending by (offset,
// archive_id), regardless of the order writes actually executed in.
func sortOccurrences(occurrences []models.Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Offset != occurrences[j].Offset {
			return occurrences[i].Offset < occurrences[j].Offset
		}
		return occurrences[i].ArchiveID < occurrences[j].ArchiveID
	})
}

// normalizeLinks rewrites embedded child references (Links[].Hash) to
// canonical CID strings so persisted payloads never carry binary hashes.
func normalizeLinks(value any) any {
	node, ok := value.(map[string]any)
	if !ok {
		return value
	}
	links, ok := node["Links"].([]any)
	if !ok {
		return node
	}
	for _, l := range links {
		link, ok := l.(map[string]any)
		if !ok {
			continue
		}
		switch hash := link["Hash"].(type) {
		case cid.Cid:
			link["Hash"] = hash.String()
		case fmt.Stringer:
			link["Hash"] = hash.String()
		}
	}
	return node
}
