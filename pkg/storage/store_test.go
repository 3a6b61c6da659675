package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(NewMemoryBlockStore())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustApply(t *testing.T, s *Store, seq uint64, ops ...Op) {
	t.Helper()
	require.NoError(t, s.ApplyCommit(seq, ops))
}

func person(id NodeID, name string, age int64) *Node {
	return &Node{
		ID:         id,
		Labels:     []string{"Person"},
		Properties: map[string]any{"name": name, "age": age},
	}
}

func TestStoreApplyCommit(t *testing.T) {
	t.Run("create_and_read_back", func(t *testing.T) {
		s := newTestStore(t)
		mustApply(t, s, 1, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})

		got, err := s.GetNode("n1", SeqHead)
		require.NoError(t, err)
		assert.Equal(t, "Odin", got.Properties["name"])
		assert.Equal(t, int64(60), got.Properties["age"])
		assert.Equal(t, uint64(1), s.LatestSeq())
	})

	t.Run("rejects_non_monotonic_seq", func(t *testing.T) {
		s := newTestStore(t)
		mustApply(t, s, 5, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})
		err := s.ApplyCommit(5, []Op{{Type: OpCreateNode, Node: person("n2", "Thor", 30)}})
		assert.Error(t, err)
		err = s.ApplyCommit(3, []Op{{Type: OpCreateNode, Node: person("n3", "Loki", 28)}})
		assert.Error(t, err)
	})

	t.Run("delete_leaves_tombstone", func(t *testing.T) {
		s := newTestStore(t)
		mustApply(t, s, 1, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})
		mustApply(t, s, 2, Op{Type: OpDeleteNode, NodeID: "n1"})

		_, err := s.GetNode("n1", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)

		// Still visible in the past.
		old, err := s.GetNode("n1", 1)
		require.NoError(t, err)
		assert.Equal(t, "Odin", old.Properties["name"])
	})
}

func TestStoreAsOfReads(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})

	updated := person("n1", "Allfather", 61)
	mustApply(t, s, 2, Op{Type: OpUpdateNode, Node: updated})

	t.Run("latest_sees_update", func(t *testing.T) {
		got, err := s.GetNode("n1", SeqHead)
		require.NoError(t, err)
		assert.Equal(t, "Allfather", got.Properties["name"])
	})

	t.Run("pinned_read_sees_old_version", func(t *testing.T) {
		got, err := s.GetNode("n1", 1)
		require.NoError(t, err)
		assert.Equal(t, "Odin", got.Properties["name"])
	})

	t.Run("before_creation_not_found", func(t *testing.T) {
		_, err := s.GetNode("n1", 0)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreNodesByLabel(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1,
		Op{Type: OpCreateNode, Node: person("a", "Freya", 30)},
		Op{Type: OpCreateNode, Node: person("c", "Thor", 35)},
		Op{Type: OpCreateNode, Node: person("b", "Loki", 28)},
		Op{Type: OpCreateNode, Node: &Node{ID: "x", Labels: []string{"Place"}, Properties: map[string]any{"name": "Asgard"}}},
	)

	t.Run("filters_and_sorts_by_id", func(t *testing.T) {
		nodes, err := s.NodesByLabel("Person", SeqHead)
		require.NoError(t, err)
		require.Len(t, nodes, 3)
		assert.Equal(t, NodeID("a"), nodes[0].ID)
		assert.Equal(t, NodeID("b"), nodes[1].ID)
		assert.Equal(t, NodeID("c"), nodes[2].ID)
	})

	t.Run("relabeled_node_drops_out", func(t *testing.T) {
		relabeled := &Node{ID: "b", Labels: []string{"Giant"}, Properties: map[string]any{"name": "Loki"}}
		mustApply(t, s, 2, Op{Type: OpUpdateNode, Node: relabeled})

		nodes, err := s.NodesByLabel("Person", SeqHead)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)

		// The old view still has three.
		nodes, err = s.NodesByLabel("Person", 1)
		require.NoError(t, err)
		assert.Len(t, nodes, 3)
	})

	t.Run("unknown_label_is_empty", func(t *testing.T) {
		nodes, err := s.NodesByLabel("Ghost", SeqHead)
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}

func TestStoreEdges(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1,
		Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)},
		Op{Type: OpCreateNode, Node: person("n2", "Thor", 35)},
		Op{Type: OpCreateNode, Node: person("n3", "Loki", 28)},
		Op{Type: OpCreateEdge, Edge: &Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}},
		Op{Type: OpCreateEdge, Edge: &Edge{ID: "e2", StartNode: "n2", EndNode: "n3", Type: "KNOWS"}},
	)

	t.Run("outgoing", func(t *testing.T) {
		edges, err := s.Outgoing("n1", SeqHead)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, EdgeID("e1"), edges[0].ID)
	})

	t.Run("incoming", func(t *testing.T) {
		edges, err := s.Incoming("n3", SeqHead)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, EdgeID("e2"), edges[0].ID)
	})

	t.Run("has_relationships", func(t *testing.T) {
		has, err := s.HasRelationships("n2", SeqHead)
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("deleted_edge_invisible_but_historical", func(t *testing.T) {
		mustApply(t, s, 2, Op{Type: OpDeleteEdge, EdgeID: "e2"})

		edges, err := s.Outgoing("n2", SeqHead)
		require.NoError(t, err)
		assert.Empty(t, edges)

		edges, err = s.Outgoing("n2", 1)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	})

	t.Run("relationship_types", func(t *testing.T) {
		types, err := s.RelationshipTypes(SeqHead)
		require.NoError(t, err)
		assert.Equal(t, []string{"FATHER_OF"}, types)

		types, err = s.RelationshipTypes(1)
		require.NoError(t, err)
		assert.Equal(t, []string{"FATHER_OF", "KNOWS"}, types)
	})
}

func TestStoreCounts(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1,
		Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)},
		Op{Type: OpCreateNode, Node: person("n2", "Thor", 35)},
		Op{Type: OpCreateEdge, Edge: &Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}},
	)
	mustApply(t, s, 2, Op{Type: OpDeleteNode, NodeID: "n2"})

	nc, err := s.NodeCount(SeqHead)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nc)

	nc, err = s.NodeCount(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nc)

	ec, err := s.EdgeCount(SeqHead)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ec)
}

func TestStoreNodeHistory(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})
	mustApply(t, s, 2, Op{Type: OpUpdateNode, Node: person("n1", "Allfather", 61)})
	mustApply(t, s, 3, Op{Type: OpDeleteNode, NodeID: "n1"})

	history, err := s.NodeHistory("n1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, uint64(1), history[0].Seq)
	assert.Equal(t, "Odin", history[0].Node.Properties["name"])
	assert.Equal(t, uint64(2), history[1].Seq)
	assert.Equal(t, "Allfather", history[1].Node.Properties["name"])
	assert.True(t, history[2].Deleted)
	assert.Nil(t, history[2].Node)

	t.Run("unknown_node", func(t *testing.T) {
		_, err := s.NodeHistory("ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStoreChangeTracking(t *testing.T) {
	s := newTestStore(t)
	mustApply(t, s, 1, Op{Type: OpCreateNode, Node: person("n1", "Odin", 60)})
	mustApply(t, s, 2, Op{Type: OpUpdateNode, Node: person("n1", "Allfather", 61)})

	assert.True(t, s.nodeChangedSince("n1", 1))
	assert.False(t, s.nodeChangedSince("n1", 2))
	assert.False(t, s.nodeChangedSince("ghost", 0))

	assert.True(t, s.labelChangedSince("Person", 1))
	assert.False(t, s.labelChangedSince("Person", 2))
	assert.False(t, s.labelChangedSince("Place", 0))

	// Empty label means the whole graph.
	assert.True(t, s.labelChangedSince("", 1))
	assert.False(t, s.labelChangedSince("", 2))
}

func TestStoreContentAddressDedup(t *testing.T) {
	// Two nodes with identical state share one block; the version chains
	// stay distinct.
	blocks := NewMemoryBlockStore()
	s := NewStore(blocks)
	defer s.Close()

	n1 := &Node{ID: "same", Labels: []string{"Person"}, Properties: map[string]any{"name": "Odin"}}
	require.NoError(t, s.ApplyCommit(1, []Op{{Type: OpCreateNode, Node: n1}}))
	before := blocks.Len()

	// Same logical state committed again: no new block.
	require.NoError(t, s.ApplyCommit(2, []Op{{Type: OpUpdateNode, Node: n1}}))
	assert.Equal(t, before, blocks.Len())

	history, err := s.NodeHistory("same")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, history[0].Addr, history[1].Addr)
}
