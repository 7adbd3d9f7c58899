// Package codec resolves a block's declared multicodec number to a
// registered decoder and normalizes structured payloads before they are
// persisted. Decode functions themselves are injected collaborators; the
// default registry only knows the raw passthrough.
package codec

import (
	"errors"
	"fmt"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/models"
)

// Multicodec numbers for the codecs the ingestor recognizes by default
const (
	CodeRaw     uint64 = 0x55
	CodeDagPB   uint64 = 0x70
	CodeDagCBOR uint64 = 0x71
)

// ErrUnknownCodec marks a block whose declared codec has no registered
// decoder. Fatal for the archive being ingested, never silently skipped.
var ErrUnknownCodec = errors.New("no decoder registered for codec")

// DecodeFunc decodes a block payload into a structured value
type DecodeFunc func(data []byte) (any, error)

// Decoded is the result of dispatching one block
type Decoded struct {
	Kind  string
	Value any
}

type entry struct {
	label  string
	decode DecodeFunc
}

// Registry maps multicodec numbers to named decoders. Registration
// happens during startup, before ingestion begins; lookups afterwards are
// read-only.
type Registry struct {
	entries map[uint64]entry
}

// NewRegistry creates a registry with the raw passthrough registered
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[uint64]entry),
	}
	r.Register(CodeRaw, models.KindRaw, func(data []byte) (any, error) {
		return data, nil
	})
	return r
}

// Register adds or replaces the decoder for a multicodec number
func (r *Registry) Register(code uint64, label string, fn DecodeFunc) {
	r.entries[code] = entry{label: label, decode: fn}
}

// Decode resolves the decoder from the block's CID and runs it. dag-pb
// payloads get their unixfs Data field normalized to the {type, blocks}
// shape; all other kinds pass through unchanged.
func (r *Registry) Decode(blk *carstream.Block) (Decoded, error) {
	code := blk.CID.Prefix().Codec
	e, ok := r.entries[code]
	if !ok {
		return Decoded{}, fmt.Errorf("codec 0x%x: %w", code, ErrUnknownCodec)
	}

	value, err := e.decode(blk.Data)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s block %s: %w", e.label, blk.CID, err)
	}

	if e.label == models.KindDagPB {
		value = normalizeFileNode(value)
	}
	return Decoded{Kind: e.label, Value: value}, nil
}

// normalizeFileNode replaces the raw unixfs Data field of a decoded
// dag-pb node with the normalized directory/file shape. Nodes that do not
// carry a structured Data field are left untouched.
func normalizeFileNode(value any) any {
	node, ok := value.(map[string]any)
	if !ok {
		return value
	}
	data, ok := node["Data"].(map[string]any)
	if !ok {
		return node
	}
	node["Data"] = map[string]any{
		"type":   data["Type"],
		"blocks": data["Blocksizes"],
	}
	return node
}
