package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrOf(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := AddrOf([]byte("hello"))
		b := AddrOf([]byte("hello"))
		assert.Equal(t, a, b)
	})

	t.Run("distinct_content_distinct_addr", func(t *testing.T) {
		a := AddrOf([]byte("hello"))
		b := AddrOf([]byte("hellp"))
		assert.NotEqual(t, a, b)
	})

	t.Run("hex_width", func(t *testing.T) {
		// blake2b-256 renders to 64 hex characters
		assert.Len(t, string(AddrOf([]byte("x"))), 64)
	})
}

func TestNodeCodec(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		n := &Node{
			ID:     "n1",
			Labels: []string{"Person", "Admin"},
			Properties: map[string]any{
				"name":   "Freya",
				"age":    int64(31),
				"score":  1.5,
				"active": true,
				"tags":   []any{"a", "b"},
			},
			CreatedAt: created,
			UpdatedAt: created,
		}

		data, err := EncodeNode(n)
		require.NoError(t, err)

		got, err := DecodeNode(data)
		require.NoError(t, err)
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, n.Labels, got.Labels)
		assert.Equal(t, "Freya", got.Properties["name"])
		assert.Equal(t, int64(31), got.Properties["age"])
		assert.Equal(t, 1.5, got.Properties["score"])
		assert.Equal(t, true, got.Properties["active"])
		assert.Equal(t, []any{"a", "b"}, got.Properties["tags"])
		assert.True(t, got.CreatedAt.Equal(created))
	})

	t.Run("canonical_encoding_is_stable", func(t *testing.T) {
		n := &Node{
			ID:         "n1",
			Labels:     []string{"Person"},
			Properties: map[string]any{"b": int64(2), "a": int64(1), "c": int64(3)},
			CreatedAt:  time.Unix(0, 1000),
			UpdatedAt:  time.Unix(0, 2000),
		}
		first, err := EncodeNode(n)
		require.NoError(t, err)
		second, err := EncodeNode(n)
		require.NoError(t, err)
		// Same logical state must hash to the same block address.
		assert.Equal(t, AddrOf(first), AddrOf(second))
	})

	t.Run("point_property_survives", func(t *testing.T) {
		n := &Node{
			ID:         "n1",
			Labels:     []string{"City"},
			Properties: map[string]any{"location": Point{X: 10.5, Y: -3.25}},
		}
		data, err := EncodeNode(n)
		require.NoError(t, err)
		got, err := DecodeNode(data)
		require.NoError(t, err)
		assert.Equal(t, Point{X: 10.5, Y: -3.25}, got.Properties["location"])
	})

	t.Run("time_property_survives", func(t *testing.T) {
		when := time.Date(2024, 3, 9, 8, 30, 0, 123456789, time.UTC)
		n := &Node{
			ID:         "n1",
			Labels:     []string{"Event"},
			Properties: map[string]any{"at": when},
		}
		data, err := EncodeNode(n)
		require.NoError(t, err)
		got, err := DecodeNode(data)
		require.NoError(t, err)
		ts, ok := got.Properties["at"].(time.Time)
		require.True(t, ok)
		assert.True(t, ts.Equal(when))
	})
}

func TestEdgeCodec(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		e := &Edge{
			ID:         "e1",
			StartNode:  "n1",
			EndNode:    "n2",
			Type:       "KNOWS",
			Properties: map[string]any{"since": int64(2019)},
		}
		data, err := EncodeEdge(e)
		require.NoError(t, err)
		got, err := DecodeEdge(data)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, e.StartNode, got.StartNode)
		assert.Equal(t, e.EndNode, got.EndNode)
		assert.Equal(t, e.Type, got.Type)
		assert.Equal(t, int64(2019), got.Properties["since"])
	})

	t.Run("decoding_node_block_as_edge_fails", func(t *testing.T) {
		n := &Node{ID: "n1", Labels: []string{"Person"}}
		data, err := EncodeNode(n)
		require.NoError(t, err)
		_, err = DecodeEdge(data)
		assert.Error(t, err)
	})
}

func TestMemoryBlockStore(t *testing.T) {
	t.Run("put_get_has", func(t *testing.T) {
		bs := NewMemoryBlockStore()
		defer bs.Close()

		addr, err := bs.Put([]byte("content"))
		require.NoError(t, err)
		assert.Equal(t, AddrOf([]byte("content")), addr)

		ok, err := bs.Has(addr)
		require.NoError(t, err)
		assert.True(t, ok)

		data, err := bs.Get(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("content"), data)
	})

	t.Run("missing_block", func(t *testing.T) {
		bs := NewMemoryBlockStore()
		defer bs.Close()

		_, err := bs.Get(AddrOf([]byte("never stored")))
		assert.ErrorIs(t, err, ErrNotFound)

		ok, err := bs.Has(AddrOf([]byte("never stored")))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put_is_idempotent", func(t *testing.T) {
		bs := NewMemoryBlockStore()
		defer bs.Close()

		a1, err := bs.Put([]byte("dup"))
		require.NoError(t, err)
		a2, err := bs.Put([]byte("dup"))
		require.NoError(t, err)
		assert.Equal(t, a1, a2)
	})
}

func TestBadgerBlockStore(t *testing.T) {
	t.Run("persists_across_reopen", func(t *testing.T) {
		dir := t.TempDir()

		bs, err := OpenBadgerBlockStore(dir)
		require.NoError(t, err)
		addr, err := bs.Put([]byte("durable"))
		require.NoError(t, err)
		require.NoError(t, bs.Close())

		bs, err = OpenBadgerBlockStore(dir)
		require.NoError(t, err)
		defer bs.Close()

		data, err := bs.Get(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("durable"), data)
	})

	t.Run("missing_block", func(t *testing.T) {
		bs, err := OpenBadgerBlockStore(t.TempDir())
		require.NoError(t, err)
		defer bs.Close()

		_, err = bs.Get(AddrOf([]byte("nope")))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
