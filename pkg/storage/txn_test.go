package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *TxManager {
	t.Helper()
	store := NewStore(NewMemoryBlockStore())
	t.Cleanup(func() { _ = store.Close() })
	return NewTxManager(store, NewCatalog(), nil)
}

// seedPerson commits one Person node and returns after the commit is
// visible.
func seedPerson(t *testing.T, m *TxManager, id NodeID, name string, age int64) {
	t.Helper()
	tx, err := m.Begin(context.Background(), ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, tx.CreateNode(person(id, name, age)))
	require.NoError(t, tx.Commit())
}

func TestTxBasics(t *testing.T) {
	t.Run("create_commit_read", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)

		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		require.NoError(t, tx.Commit())
		assert.Equal(t, TxCommitted, tx.State())

		got, err := m.Store().GetNode("n1", SeqHead)
		require.NoError(t, err)
		assert.Equal(t, "Odin", got.Properties["name"])
	})

	t.Run("read_your_writes", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), RepeatableRead)
		require.NoError(t, err)

		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		got, err := tx.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, "Odin", got.Properties["name"])

		// Not visible outside the transaction before commit.
		_, err = m.Store().GetNode("n1", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, tx.Rollback())
	})

	t.Run("rollback_leaves_no_trace", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		require.NoError(t, tx.Rollback())
		assert.Equal(t, TxAborted, tx.State())

		_, err = m.Store().GetNode("n1", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, uint64(0), m.Store().LatestSeq())
	})

	t.Run("closed_tx_rejects_everything", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.CreateNode(person("n1", "Odin", 60)), ErrTxClosed)
		assert.ErrorIs(t, tx.Commit(), ErrTxClosed)
		assert.ErrorIs(t, tx.Rollback(), ErrTxClosed)
	})

	t.Run("duplicate_create_fails", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer tx.Rollback()
		assert.ErrorIs(t, tx.CreateNode(person("n1", "Imposter", 1)), ErrAlreadyExists)
	})

	t.Run("update_missing_fails", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer tx.Rollback()
		assert.ErrorIs(t, tx.UpdateNode(person("ghost", "x", 1)), ErrNotFound)
	})

	t.Run("unknown_isolation_level", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.Begin(context.Background(), IsolationLevel("chaos"))
		assert.Error(t, err)
	})
}

func TestTxEdges(t *testing.T) {
	t.Run("create_edge_requires_endpoints", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer tx.Rollback()

		err = tx.CreateEdge(&Edge{ID: "e1", StartNode: "n1", EndNode: "ghost", Type: "KNOWS"})
		assert.ErrorIs(t, err, ErrInvalidEdge)
	})

	t.Run("edge_to_pending_node_in_same_tx", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)

		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		require.NoError(t, tx.CreateNode(person("n2", "Thor", 35)))
		require.NoError(t, tx.CreateEdge(&Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}))
		require.NoError(t, tx.Commit())

		edges, err := m.Store().Outgoing("n1", SeqHead)
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, "FATHER_OF", edges[0].Type)
	})

	t.Run("plain_delete_with_relationships_fails", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		require.NoError(t, tx.CreateNode(person("n2", "Thor", 35)))
		require.NoError(t, tx.CreateEdge(&Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}))
		require.NoError(t, tx.Commit())

		tx2, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer tx2.Rollback()
		assert.ErrorIs(t, tx2.DeleteNode("n1", false), ErrHasRelationships)
	})

	t.Run("detach_delete_removes_incident_edges", func(t *testing.T) {
		m := newTestManager(t)
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
		require.NoError(t, tx.CreateNode(person("n2", "Thor", 35)))
		require.NoError(t, tx.CreateEdge(&Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}))
		require.NoError(t, tx.Commit())

		tx2, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx2.DeleteNode("n2", true))
		require.NoError(t, tx2.Commit())

		_, err = m.Store().GetNode("n2", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = m.Store().GetEdge("e1", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)

		// n1 survives and has no relationships left.
		has, err := m.Store().HasRelationships("n1", SeqHead)
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestTxScans(t *testing.T) {
	m := newTestManager(t)
	seedPerson(t, m, "a", "Freya", 30)
	seedPerson(t, m, "b", "Loki", 28)

	t.Run("label_scan_merges_pending", func(t *testing.T) {
		tx, err := m.Begin(context.Background(), RepeatableRead)
		require.NoError(t, err)
		defer tx.Rollback()

		require.NoError(t, tx.CreateNode(person("c", "Thor", 35)))
		require.NoError(t, tx.DeleteNode("b", false))

		nodes, err := tx.NodesByLabel("Person")
		require.NoError(t, err)
		names := make(map[string]bool)
		for _, n := range nodes {
			names[n.Properties["name"].(string)] = true
		}
		assert.True(t, names["Freya"])
		assert.True(t, names["Thor"])
		assert.False(t, names["Loki"])
	})

	t.Run("empty_label_scans_all", func(t *testing.T) {
		tx, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer tx.Rollback()

		nodes, err := tx.NodesByLabel("")
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
	})
}

func TestTxIsolationLevels(t *testing.T) {
	t.Run("read_committed_sees_concurrent_commit", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		reader, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		defer reader.Rollback()

		writer, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, writer.UpdateNode(person("n1", "Allfather", 61)))
		require.NoError(t, writer.Commit())

		got, err := reader.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, "Allfather", got.Properties["name"])
	})

	t.Run("repeatable_read_pins_the_view", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		reader, err := m.Begin(context.Background(), RepeatableRead)
		require.NoError(t, err)
		defer reader.Rollback()

		writer, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, writer.UpdateNode(person("n1", "Allfather", 61)))
		require.NoError(t, writer.Commit())

		got, err := reader.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, "Odin", got.Properties["name"])

		// Same query, same answer, for the life of the transaction.
		again, err := reader.GetNode("n1")
		require.NoError(t, err)
		assert.Equal(t, "Odin", again.Properties["name"])
	})

	t.Run("snapshot_first_committer_wins", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		tx1, err := m.Begin(context.Background(), Snapshot)
		require.NoError(t, err)
		tx2, err := m.Begin(context.Background(), Snapshot)
		require.NoError(t, err)

		require.NoError(t, tx1.UpdateNode(person("n1", "ByTx1", 61)))
		require.NoError(t, tx2.UpdateNode(person("n1", "ByTx2", 62)))

		require.NoError(t, tx1.Commit())
		err = tx2.Commit()
		require.Error(t, err)
		assert.True(t, IsConflict(err))
		assert.Equal(t, TxAborted, tx2.State())

		got, err := m.Store().GetNode("n1", SeqHead)
		require.NoError(t, err)
		assert.Equal(t, "ByTx1", got.Properties["name"])
	})

	t.Run("snapshot_disjoint_writes_both_commit", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)
		seedPerson(t, m, "n2", "Thor", 35)

		tx1, err := m.Begin(context.Background(), Snapshot)
		require.NoError(t, err)
		tx2, err := m.Begin(context.Background(), Snapshot)
		require.NoError(t, err)

		require.NoError(t, tx1.UpdateNode(person("n1", "Allfather", 61)))
		require.NoError(t, tx2.UpdateNode(person("n2", "Thunderer", 36)))

		require.NoError(t, tx1.Commit())
		require.NoError(t, tx2.Commit())
	})

	t.Run("serializable_rejects_write_skew", func(t *testing.T) {
		// Classic write skew: each transaction reads the other's row and
		// writes its own. Snapshot would allow both; serializable must not.
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)
		seedPerson(t, m, "n2", "Thor", 35)

		tx1, err := m.Begin(context.Background(), Serializable)
		require.NoError(t, err)
		tx2, err := m.Begin(context.Background(), Serializable)
		require.NoError(t, err)

		_, err = tx1.GetNode("n2")
		require.NoError(t, err)
		require.NoError(t, tx1.UpdateNode(person("n1", "Odin", 100)))

		_, err = tx2.GetNode("n1")
		require.NoError(t, err)
		require.NoError(t, tx2.UpdateNode(person("n2", "Thor", 100)))

		require.NoError(t, tx1.Commit())
		err = tx2.Commit()
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("serializable_label_scan_invalidated_by_insert", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)

		tx1, err := m.Begin(context.Background(), Serializable)
		require.NoError(t, err)
		_, err = tx1.NodesByLabel("Person")
		require.NoError(t, err)
		require.NoError(t, tx1.CreateNode(&Node{ID: "tally", Labels: []string{"Tally"}, Properties: map[string]any{"count": int64(1)}}))

		// A concurrent insert into the scanned label invalidates tx1.
		tx2, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx2.CreateNode(person("n2", "Thor", 35)))
		require.NoError(t, tx2.Commit())

		err = tx1.Commit()
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("serializable_untouched_reads_commit_fine", func(t *testing.T) {
		m := newTestManager(t)
		seedPerson(t, m, "n1", "Odin", 60)
		seedPerson(t, m, "n2", "Thor", 35)

		tx1, err := m.Begin(context.Background(), Serializable)
		require.NoError(t, err)
		_, err = tx1.GetNode("n1")
		require.NoError(t, err)
		require.NoError(t, tx1.UpdateNode(person("n1", "Allfather", 61)))

		// Concurrent writer touches an unrelated node.
		tx2, err := m.Begin(context.Background(), ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx2.UpdateNode(person("n2", "Thunderer", 36)))
		require.NoError(t, tx2.Commit())

		require.NoError(t, tx1.Commit())
	})
}

func TestTxDeadline(t *testing.T) {
	t.Run("cancelled_context_aborts_operations", func(t *testing.T) {
		m := newTestManager(t)
		ctx, cancel := context.WithCancel(context.Background())
		tx, err := m.Begin(ctx, ReadCommitted)
		require.NoError(t, err)

		cancel()
		err = tx.CreateNode(person("n1", "Odin", 60))
		assert.ErrorIs(t, err, ErrTxnDeadline)
		assert.Equal(t, TxAborted, tx.State())
	})

	t.Run("cancelled_context_aborts_commit", func(t *testing.T) {
		m := newTestManager(t)
		ctx, cancel := context.WithCancel(context.Background())
		tx, err := m.Begin(ctx, ReadCommitted)
		require.NoError(t, err)
		require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))

		cancel()
		err = tx.Commit()
		assert.ErrorIs(t, err, ErrTxnDeadline)

		_, err = m.Store().GetNode("n1", SeqHead)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTxEmptyCommit(t *testing.T) {
	m := newTestManager(t)
	tx, err := m.Begin(context.Background(), Serializable)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, uint64(0), m.Store().LatestSeq())
}

func TestTxDurableCommit(t *testing.T) {
	// A WAL-backed manager recovers its commits after a restart.
	dir := t.TempDir()

	wal, err := NewWAL(dir, nil)
	require.NoError(t, err)
	store := NewStore(NewMemoryBlockStore())
	m := NewTxManager(store, NewCatalog(), wal)

	tx, err := m.Begin(context.Background(), ReadCommitted)
	require.NoError(t, err)
	require.NoError(t, tx.CreateNode(person("n1", "Odin", 60)))
	require.NoError(t, tx.CreateNode(person("n2", "Thor", 35)))
	require.NoError(t, tx.CreateEdge(&Edge{ID: "e1", StartNode: "n1", EndNode: "n2", Type: "FATHER_OF"}))
	require.NoError(t, tx.Commit())
	require.NoError(t, wal.Close())
	require.NoError(t, store.Close())

	// "Restart": fresh store, replay from the log.
	segments, err := ReadCommittedSegments(dir)
	require.NoError(t, err)

	recovered := NewStore(NewMemoryBlockStore())
	defer recovered.Close()
	require.NoError(t, Replay(recovered, segments))

	got, err := recovered.GetNode("n1", SeqHead)
	require.NoError(t, err)
	assert.Equal(t, "Odin", got.Properties["name"])

	edges, err := recovered.Outgoing("n1", SeqHead)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "FATHER_OF", edges[0].Type)
}
