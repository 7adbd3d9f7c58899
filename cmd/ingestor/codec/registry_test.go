package codec

import (
	"encoding/json"
	"testing"

	"github.com/carvault/ingestor/cmd/ingestor/carstream"
	"github.com/carvault/ingestor/cmd/ingestor/models"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCID(t *testing.T, codec uint64, data []byte) cid.Cid {
	t.Helper()
	c, err := cid.Prefix{
		Version:  1,
		Codec:    codec,
		MhType:   0x12, // sha2-256
		MhLength: -1,
	}.Sum(data)
	require.NoError(t, err)
	return c
}

func TestDecode_RawPassthrough(t *testing.T) {
	r := NewRegistry()
	payload := []byte("raw bytes")
	blk := &carstream.Block{
		CID:    newCID(t, CodeRaw, payload),
		Data:   payload,
		Offset: 0,
		Length: uint64(len(payload)),
	}

	decoded, err := r.Decode(blk)
	require.NoError(t, err)
	assert.Equal(t, models.KindRaw, decoded.Kind)
	assert.Equal(t, payload, decoded.Value)
}

func TestDecode_UnknownCodecIsFatal(t *testing.T) {
	r := NewRegistry()
	payload := []byte{0xa1, 0x61, 0x61, 0x01}
	blk := &carstream.Block{
		CID:  newCID(t, CodeDagCBOR, payload),
		Data: payload,
	}

	_, err := r.Decode(blk)
	require.ErrorIs(t, err, ErrUnknownCodec)
}

func TestDecode_DagPBNormalizesFileNode(t *testing.T) {
	r := NewRegistry()
	r.Register(CodeDagPB, models.KindDagPB, func(data []byte) (any, error) {
		var node map[string]any
		if err := json.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		return node, nil
	})

	payload, err := json.Marshal(map[string]any{
		"Data": map[string]any{
			"Type":       "file",
			"Blocksizes": []any{float64(256), float64(128)},
		},
		"Links": []any{
			map[string]any{"Name": "child", "Tsize": float64(384)},
		},
	})
	require.NoError(t, err)

	blk := &carstream.Block{
		CID:  newCID(t, CodeDagPB, payload),
		Data: payload,
	}

	decoded, err := r.Decode(blk)
	require.NoError(t, err)
	assert.Equal(t, models.KindDagPB, decoded.Kind)

	node := decoded.Value.(map[string]any)
	data := node["Data"].(map[string]any)
	assert.Equal(t, "file", data["type"])
	assert.Equal(t, []any{float64(256), float64(128)}, data["blocks"])
	assert.NotContains(t, data, "Blocksizes", "raw unixfs field is replaced, not kept")
}

func TestDecode_NonFileNodePassesThroughUnchanged(t *testing.T) {
	r := NewRegistry()
	r.Register(CodeDagCBOR, models.KindDagCBOR, func(data []byte) (any, error) {
		return map[string]any{"hello": "world"}, nil
	})

	blk := &carstream.Block{
		CID:  newCID(t, CodeDagCBOR, []byte{0x01}),
		Data: []byte{0x01},
	}

	decoded, err := r.Decode(blk)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"hello": "world"}, decoded.Value)
}
