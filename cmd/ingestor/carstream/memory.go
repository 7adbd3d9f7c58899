package carstream

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemoryArchive holds archive content for the in-memory opener. No
// external storage calls.
type MemoryArchive struct {
	Roots   []cid.Cid
	Version uint64
	Blocks  []Block
}

// TotalLength returns the byte length covered by the archive's blocks
func (a *MemoryArchive) TotalLength() uint64 {
	var total uint64
	for _, blk := range a.Blocks {
		if end := blk.Offset + blk.Length; end > total {
			total = end
		}
	}
	return total
}

// MemoryOpener serves MemoryArchives by locator. Each Open returns a
// fresh reader; the archives themselves are immutable once added.
type MemoryOpener struct {
	archives map[string]*MemoryArchive
	mu       sync.RWMutex
}

// NewMemoryOpener creates an empty in-memory opener
func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{
		archives: make(map[string]*MemoryArchive),
	}
}

// Add registers an archive under the given locator
func (o *MemoryOpener) Add(bucket, key string, archive *MemoryArchive) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.archives[bucket+"/"+key] = archive
}

// Open returns a new reader over the archive at bucket/key
func (o *MemoryOpener) Open(ctx context.Context, bucket, key string) (Reader, error) {
	o.mu.RLock()
	archive, ok := o.archives[bucket+"/"+key]
	o.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("archive not found: %s/%s", bucket, key)
	}
	return &memoryReader{archive: archive}, nil
}

type memoryReader struct {
	archive *MemoryArchive
	next    int
	pos     uint64
}

func (r *memoryReader) Roots() []cid.Cid {
	return r.archive.Roots
}

func (r *memoryReader) Version() uint64 {
	return r.archive.Version
}

func (r *memoryReader) TotalLength() uint64 {
	return r.archive.TotalLength()
}

func (r *memoryReader) Position() uint64 {
	return r.pos
}

func (r *memoryReader) Next(ctx context.Context) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.next >= len(r.archive.Blocks) {
		return nil, io.EOF
	}
	blk := r.archive.Blocks[r.next]
	r.next++
	r.pos = blk.Offset + blk.Length
	return &blk, nil
}

func (r *memoryReader) Close() error {
	return nil
}
