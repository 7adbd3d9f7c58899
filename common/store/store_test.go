package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}
}

func TestStore_GetAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record, err := s.Get(ctx, "blocks", "cid", "missing")
			require.NoError(t, err)
			assert.Nil(t, record)
		})
	}
}

func TestStore_PutStampsKeyField(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(ctx, true, "blocks", "cid", "bafy1", map[string]any{
				"kind": "raw",
			})
			require.NoError(t, err)

			record, err := s.Get(ctx, "blocks", "cid", "bafy1")
			require.NoError(t, err)
			assert.Equal(t, "bafy1", record["cid"])
			assert.Equal(t, "raw", record["kind"])
		})
	}
}

func TestStore_OverwriteReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, true, "archives", "archive_id", "b/k", map[string]any{
				"version":   float64(2),
				"completed": false,
				"stale":     "progress",
			}))

			require.NoError(t, s.Put(ctx, true, "archives", "archive_id", "b/k", map[string]any{
				"version":   float64(2),
				"completed": false,
			}))

			record, err := s.Get(ctx, "archives", "archive_id", "b/k")
			require.NoError(t, err)
			assert.NotContains(t, record, "stale",
				"full overwrite must discard fields not present in the new record")
		})
	}
}

func TestStore_MergeTouchesOnlyGivenFields(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, true, "archives", "archive_id", "b/k", map[string]any{
				"version":      float64(1),
				"total_length": float64(100),
				"completed":    false,
			}))

			require.NoError(t, s.Put(ctx, false, "archives", "archive_id", "b/k", map[string]any{
				"completed":        true,
				"current_position": float64(100),
			}))

			record, err := s.Get(ctx, "archives", "archive_id", "b/k")
			require.NoError(t, err)
			assert.Equal(t, true, record["completed"])
			assert.Equal(t, float64(100), record["current_position"])
			assert.Equal(t, float64(1), record["version"], "untouched fields survive a merge")
			assert.Equal(t, float64(100), record["total_length"])
		})
	}
}

func TestMemoryStore_UseAfterCloseReturnsError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, true, "blocks", "cid", "bafy1", map[string]any{
		"kind": "raw",
	}))
	require.NoError(t, s.Close())

	err := s.Put(ctx, true, "blocks", "cid", "bafy1", map[string]any{
		"kind": "raw",
	})
	require.ErrorIs(t, err, ErrClosed)

	_, err = s.Get(ctx, "blocks", "cid", "bafy1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestStore_MergeOnAbsentRecordCreatesIt(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, false, "blocks", "cid", "bafy2", map[string]any{
				"kind": "dag-pb",
			}))

			record, err := s.Get(ctx, "blocks", "cid", "bafy2")
			require.NoError(t, err)
			assert.Equal(t, "dag-pb", record["kind"])
		})
	}
}
