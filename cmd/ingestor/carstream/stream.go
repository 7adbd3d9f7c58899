// Package carstream defines the archive stream collaborator contract: an
// opened archive exposes header metadata and a finite, non-restartable
// sequence of blocks in archive order. The production reader (object
// storage, network) is wired per deployment; this package ships an
// in-memory implementation for tests and local runs.
package carstream

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Block is one entry in an archive's linear layout. Data nil means the
// block is stored raw with no decode step.
type Block struct {
	CID    cid.Cid
	Data   []byte
	Offset uint64
	Length uint64
}

// Reader is an open archive stream. Next returns io.EOF when the stream
// is exhausted; the sequence cannot be restarted.
type Reader interface {
	Roots() []cid.Cid
	Version() uint64
	TotalLength() uint64
	Position() uint64
	Next(ctx context.Context) (*Block, error)
	Close() error
}

// Opener resolves a bucket/key locator to an open archive stream
type Opener interface {
	Open(ctx context.Context, bucket, key string) (Reader, error)
}
