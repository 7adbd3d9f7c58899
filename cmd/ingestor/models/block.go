package models

import "time"

// BlockRecord is the persisted dedup record for one unique content ID.
// Kind and Data are written exactly once, at first sighting, and never
// overwritten; Occurrences grows with every sighting across archives.
type BlockRecord struct {
	// Content identifier in canonical string form (CIDv1)
	CID string `db:"cid" json:"cid"`

	// Multicodec label the payload was decoded with
	Kind string `db:"kind" json:"kind"`

	// First-sighting timestamp
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Every (archive, offset, length) the block was seen at, kept sorted
	// ascending by (offset, archive_id)
	Occurrences []Occurrence `db:"occurrences" json:"occurrences"`

	// Decoded payload; nil for raw blocks stored without a decode step
	Data any `db:"data" json:"data,omitempty"`
}

// Occurrence records one sighting of a block within an archive
type Occurrence struct {
	ArchiveID string `db:"archive_id" json:"archive_id"`
	Offset    uint64 `db:"offset" json:"offset"`
	Length    uint64 `db:"length" json:"length"`
}

// Block kinds for the codecs registered by default
const (
	KindRaw     = "raw"
	KindDagPB   = "dag-pb"
	KindDagCBOR = "dag-cbor"
)
