package models

import "time"

// ArchiveRecord tracks per-archive ingestion progress. Completed
// transitions false to true exactly once per successful run; a true value
// makes the archive idempotently skippable on reprocessing.
type ArchiveRecord struct {
	// Derived identifier: "<bucket>/<key>"
	ArchiveID string `db:"archive_id" json:"archive_id"`

	// Object storage locator
	Bucket string `db:"bucket" json:"bucket"`
	Key    string `db:"key" json:"key"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Root CIDs declared by the archive header, canonical string form
	Roots []string `db:"roots" json:"roots"`

	Version     uint64 `db:"version" json:"version"`
	TotalLength uint64 `db:"total_length" json:"total_length"`

	// Byte position reached; set to TotalLength on completion
	CurrentPosition uint64 `db:"current_position" json:"current_position"`

	Completed  bool  `db:"completed" json:"completed"`
	DurationMS int64 `db:"duration_ms" json:"duration_ms"`
}
