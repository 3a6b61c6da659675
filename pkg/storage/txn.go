// Transaction manager.
//
// A Tx buffers its writes (with read-your-writes semantics) and applies
// them atomically at commit: constraint validation, isolation-level
// conflict detection, durable WAL append, then store apply and index
// maintenance, all inside one commit critical section. Rollback discards
// the buffer; nothing was visible.
//
// Isolation levels:
//   - ReadCommitted:  every read sees the latest committed state
//   - RepeatableRead: reads pinned to the begin sequence
//   - Serializable:   RepeatableRead + read-set validation at commit
//   - Snapshot:       begin-sequence view + first-committer-wins on the
//     write set (the first transaction through the commit lock wins; the
//     later one aborts with ConflictError)
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IsolationLevel is the concurrency-consistency contract a transaction
// requests at Begin.
type IsolationLevel string

const (
	ReadCommitted  IsolationLevel = "read_committed"
	RepeatableRead IsolationLevel = "repeatable_read"
	Serializable   IsolationLevel = "serializable"
	Snapshot       IsolationLevel = "snapshot"
)

// TxState is the transaction lifecycle state.
type TxState string

const (
	TxActive     TxState = "active"
	TxCommitting TxState = "committing"
	TxCommitted  TxState = "committed"
	TxAborted    TxState = "aborted"
)

// Transaction errors
var (
	ErrTxClosed    = errors.New("storage: transaction already closed")
	ErrUnavailable = errors.New("storage: engine is fatal-stopped and refuses transactions")
	ErrTxnDeadline = errors.New("storage: transaction deadline exceeded")
)

// TxManager creates transactions over one store+catalog+WAL triple.
type TxManager struct {
	store   *Store
	catalog *Catalog
	wal     *WAL // nil disables durability (in-memory databases, tests)

	commitMu sync.Mutex
	fatalMu  sync.RWMutex
	fatalErr error

	tracer trace.Tracer
}

// NewTxManager wires a transaction manager. wal may be nil.
func NewTxManager(store *Store, catalog *Catalog, wal *WAL) *TxManager {
	return &TxManager{
		store:   store,
		catalog: catalog,
		wal:     wal,
		tracer:  otel.Tracer("runedb/storage"),
	}
}

// Fatal returns the fatal error that stopped the engine, if any.
func (m *TxManager) Fatal() error {
	m.fatalMu.RLock()
	defer m.fatalMu.RUnlock()
	return m.fatalErr
}

func (m *TxManager) markFatal(err error) {
	m.fatalMu.Lock()
	defer m.fatalMu.Unlock()
	if m.fatalErr == nil {
		m.fatalErr = err
	}
}

// Catalog exposes the schema catalog bound to this manager.
func (m *TxManager) Catalog() *Catalog { return m.catalog }

// Store exposes the committed store (read-only use).
func (m *TxManager) Store() *Store { return m.store }

// Begin opens a transaction at the given isolation level. The context's
// deadline bounds the whole transaction: expiry aborts it cleanly.
func (m *TxManager) Begin(ctx context.Context, isolation IsolationLevel) (*Tx, error) {
	if err := m.Fatal(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch isolation {
	case ReadCommitted, RepeatableRead, Serializable, Snapshot:
	case "":
		isolation = ReadCommitted
	default:
		return nil, fmt.Errorf("storage: unknown isolation level %q", isolation)
	}

	tx := &Tx{
		id:            uuid.NewString(),
		manager:       m,
		ctx:           ctx,
		isolation:     isolation,
		state:         TxActive,
		startTime:     time.Now(),
		beginSeq:      m.store.LatestSeq(),
		pendingNodes:  make(map[NodeID]*Node),
		pendingEdges:  make(map[EdgeID]*Edge),
		deletedNodes:  make(map[NodeID]struct{}),
		deletedEdges:  make(map[EdgeID]struct{}),
		readNodes:     make(map[NodeID]struct{}),
		readEdges:     make(map[EdgeID]struct{}),
		scannedLabels: make(map[string]struct{}),
	}
	return tx, nil
}

// Tx is one transaction. Safe for use from a single goroutine (one
// transaction, one logical thread of control); internal locking only
// protects against Close/Commit races.
type Tx struct {
	mu        sync.Mutex
	id        string
	manager   *TxManager
	ctx       context.Context
	isolation IsolationLevel
	state     TxState
	startTime time.Time
	beginSeq  uint64

	ops          []Op
	pendingNodes map[NodeID]*Node
	pendingEdges map[EdgeID]*Edge
	deletedNodes map[NodeID]struct{}
	deletedEdges map[EdgeID]struct{}

	// serializable bookkeeping
	readNodes     map[NodeID]struct{}
	readEdges     map[EdgeID]struct{}
	scannedLabels map[string]struct{}
}

// ID returns the transaction's unique identifier.
func (tx *Tx) ID() string { return tx.id }

// Isolation returns the requested isolation level.
func (tx *Tx) Isolation() IsolationLevel { return tx.isolation }

// State returns the lifecycle state.
func (tx *Tx) State() TxState {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// OpCount returns the number of buffered operations.
func (tx *Tx) OpCount() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.ops)
}

// viewSeq is the committed sequence this transaction reads at.
func (tx *Tx) viewSeq() uint64 {
	if tx.isolation == ReadCommitted {
		return SeqHead
	}
	return tx.beginSeq
}

func (tx *Tx) checkUsable() error {
	if tx.state != TxActive {
		return ErrTxClosed
	}
	if err := tx.ctx.Err(); err != nil {
		// Deadline or cancellation: abort cleanly, no partial state.
		tx.rollbackLocked()
		return fmt.Errorf("%w: %v", ErrTxnDeadline, err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// GetNode reads a node with read-your-writes semantics over the
// isolation level's committed view.
func (tx *Tx) GetNode(id NodeID) (*Node, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}
	return tx.getNodeLocked(id)
}

func (tx *Tx) getNodeLocked(id NodeID) (*Node, error) {
	if _, deleted := tx.deletedNodes[id]; deleted {
		return nil, ErrNotFound
	}
	if pending, ok := tx.pendingNodes[id]; ok {
		return CopyNode(pending), nil
	}
	if tx.isolation == Serializable {
		tx.readNodes[id] = struct{}{}
	}
	return tx.manager.store.GetNode(id, tx.viewSeq())
}

// GetEdge reads an edge.
func (tx *Tx) GetEdge(id EdgeID) (*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}
	return tx.getEdgeLocked(id)
}

func (tx *Tx) getEdgeLocked(id EdgeID) (*Edge, error) {
	if _, deleted := tx.deletedEdges[id]; deleted {
		return nil, ErrNotFound
	}
	if pending, ok := tx.pendingEdges[id]; ok {
		return CopyEdge(pending), nil
	}
	if tx.isolation == Serializable {
		tx.readEdges[id] = struct{}{}
	}
	return tx.manager.store.GetEdge(id, tx.viewSeq())
}

// NodesByLabel scans the label, merging this transaction's pending
// writes over the committed view. An empty label scans all nodes.
func (tx *Tx) NodesByLabel(label string) ([]*Node, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}

	if tx.isolation == Serializable {
		tx.scannedLabels[label] = struct{}{}
	}

	var committed []*Node
	var err error
	if label == "" {
		committed, err = tx.manager.store.AllNodes(tx.viewSeq())
	} else {
		committed, err = tx.manager.store.NodesByLabel(label, tx.viewSeq())
	}
	if err != nil {
		return nil, err
	}

	out := make([]*Node, 0, len(committed)+len(tx.pendingNodes))
	for _, n := range committed {
		if _, deleted := tx.deletedNodes[n.ID]; deleted {
			continue
		}
		if pending, ok := tx.pendingNodes[n.ID]; ok {
			if label == "" || pending.HasLabel(label) {
				out = append(out, CopyNode(pending))
			}
			continue
		}
		out = append(out, n)
	}
	// Pending creations not present in the committed view.
	for id, pending := range tx.pendingNodes {
		if tx.existsCommitted(id) {
			continue
		}
		if label == "" || pending.HasLabel(label) {
			out = append(out, CopyNode(pending))
		}
	}
	return out, nil
}

func (tx *Tx) existsCommitted(id NodeID) bool {
	_, err := tx.manager.store.GetNode(id, tx.viewSeq())
	return err == nil
}

// Outgoing returns edges leaving the node, pending writes merged in.
func (tx *Tx) Outgoing(id NodeID) ([]*Edge, error) {
	return tx.incident(id, true)
}

// Incoming returns edges arriving at the node, pending writes merged in.
func (tx *Tx) Incoming(id NodeID) ([]*Edge, error) {
	return tx.incident(id, false)
}

func (tx *Tx) incident(id NodeID, out bool) ([]*Edge, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}

	var committed []*Edge
	var err error
	if out {
		committed, err = tx.manager.store.Outgoing(id, tx.viewSeq())
	} else {
		committed, err = tx.manager.store.Incoming(id, tx.viewSeq())
	}
	if err != nil {
		return nil, err
	}

	result := make([]*Edge, 0, len(committed))
	seen := make(map[EdgeID]struct{})
	for _, e := range committed {
		if _, deleted := tx.deletedEdges[e.ID]; deleted {
			continue
		}
		if pending, ok := tx.pendingEdges[e.ID]; ok {
			if (out && pending.StartNode == id) || (!out && pending.EndNode == id) {
				result = append(result, CopyEdge(pending))
				seen[e.ID] = struct{}{}
			}
			continue
		}
		result = append(result, e)
		seen[e.ID] = struct{}{}
	}
	for eid, pending := range tx.pendingEdges {
		if _, done := seen[eid]; done {
			continue
		}
		if (out && pending.StartNode == id) || (!out && pending.EndNode == id) {
			result = append(result, CopyEdge(pending))
		}
	}
	return result, nil
}

// LookupIndexed resolves label+property=value through the catalog's
// property index, then overlays this transaction's pending writes so an
// index-assisted scan never misses the transaction's own data.
func (tx *Tx) LookupIndexed(label, property string, value any) ([]*Node, error) {
	ids, err := tx.manager.catalog.Lookup(label, property, value)
	if err != nil {
		return nil, err
	}

	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return nil, err
	}
	if tx.isolation == Serializable {
		tx.scannedLabels[label] = struct{}{}
	}

	out := make([]*Node, 0, len(ids))
	emitted := make(map[NodeID]struct{})
	for _, id := range ids {
		node, err := tx.getNodeLocked(id)
		if err != nil {
			continue // deleted in-tx or not visible at this view
		}
		if node.HasLabel(label) && indexEquals(node.Properties[property], value) {
			out = append(out, node)
			emitted[id] = struct{}{}
		}
	}
	for id, pending := range tx.pendingNodes {
		if _, done := emitted[id]; done {
			continue
		}
		if pending.HasLabel(label) && indexEquals(pending.Properties[property], value) {
			out = append(out, CopyNode(pending))
		}
	}
	return out, nil
}

func indexEquals(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return indexOrder(a, b) == 0 && orderClass(a) == orderClass(b)
}

// =============================================================================
// WRITES
// =============================================================================

// CreateNode buffers a node creation. A missing ID gets a fresh UUID.
func (tx *Tx) CreateNode(node *Node) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		node.ID = NodeID(uuid.NewString())
	}

	if _, deleted := tx.deletedNodes[node.ID]; !deleted {
		if _, pending := tx.pendingNodes[node.ID]; pending {
			return ErrAlreadyExists
		}
		if tx.existsCommitted(node.ID) {
			return ErrAlreadyExists
		}
	}

	now := time.Now()
	stored := CopyNode(node)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Properties == nil {
		stored.Properties = make(map[string]any)
	}

	tx.pendingNodes[node.ID] = stored
	delete(tx.deletedNodes, node.ID)
	tx.ops = append(tx.ops, Op{Type: OpCreateNode, Node: stored})
	return nil
}

// UpdateNode buffers a full-state node update.
func (tx *Tx) UpdateNode(node *Node) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if node == nil || node.ID == "" {
		return ErrInvalidData
	}
	if _, err := tx.getNodeLocked(node.ID); err != nil {
		return err
	}

	stored := CopyNode(node)
	stored.UpdatedAt = time.Now()
	tx.pendingNodes[node.ID] = stored
	tx.ops = append(tx.ops, Op{Type: OpUpdateNode, Node: stored})
	return nil
}

// DeleteNode buffers a node deletion. Without detach, the delete fails
// while any relationship (committed or pending) is incident; with
// detach, incident relationships are deleted in the same batch.
func (tx *Tx) DeleteNode(id NodeID, detach bool) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if _, err := tx.getNodeLocked(id); err != nil {
		return err
	}

	incident := tx.incidentLocked(id)
	if len(incident) > 0 && !detach {
		return ErrHasRelationships
	}
	for _, e := range incident {
		tx.deletedEdges[e.ID] = struct{}{}
		delete(tx.pendingEdges, e.ID)
		tx.ops = append(tx.ops, Op{Type: OpDeleteEdge, EdgeID: e.ID})
	}

	tx.deletedNodes[id] = struct{}{}
	delete(tx.pendingNodes, id)
	tx.ops = append(tx.ops, Op{Type: OpDeleteNode, NodeID: id})
	return nil
}

// incidentLocked lists all edges touching the node in this tx's view.
func (tx *Tx) incidentLocked(id NodeID) []*Edge {
	var edges []*Edge
	add := func(list []*Edge) {
		for _, e := range list {
			if _, deleted := tx.deletedEdges[e.ID]; deleted {
				continue
			}
			edges = append(edges, e)
		}
	}
	if out, err := tx.manager.store.Outgoing(id, tx.viewSeq()); err == nil {
		add(out)
	}
	if in, err := tx.manager.store.Incoming(id, tx.viewSeq()); err == nil {
		add(in)
	}
	for _, pending := range tx.pendingEdges {
		if pending.StartNode == id || pending.EndNode == id {
			edges = append(edges, pending)
		}
	}
	return edges
}

// CreateEdge buffers an edge creation; both endpoints must be visible.
func (tx *Tx) CreateEdge(edge *Edge) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if edge == nil || edge.Type == "" {
		return ErrInvalidData
	}
	if edge.ID == "" {
		edge.ID = EdgeID(uuid.NewString())
	}

	if _, deleted := tx.deletedEdges[edge.ID]; !deleted {
		if _, pending := tx.pendingEdges[edge.ID]; pending {
			return ErrAlreadyExists
		}
		if _, err := tx.manager.store.GetEdge(edge.ID, tx.viewSeq()); err == nil {
			return ErrAlreadyExists
		}
	}
	if _, err := tx.getNodeLocked(edge.StartNode); err != nil {
		return ErrInvalidEdge
	}
	if _, err := tx.getNodeLocked(edge.EndNode); err != nil {
		return ErrInvalidEdge
	}

	now := time.Now()
	stored := CopyEdge(edge)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Properties == nil {
		stored.Properties = make(map[string]any)
	}

	tx.pendingEdges[edge.ID] = stored
	delete(tx.deletedEdges, edge.ID)
	tx.ops = append(tx.ops, Op{Type: OpCreateEdge, Edge: stored})
	return nil
}

// UpdateEdge buffers a full-state edge update.
func (tx *Tx) UpdateEdge(edge *Edge) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if edge == nil || edge.ID == "" {
		return ErrInvalidData
	}
	if _, err := tx.getEdgeLocked(edge.ID); err != nil {
		return err
	}

	stored := CopyEdge(edge)
	stored.UpdatedAt = time.Now()
	tx.pendingEdges[edge.ID] = stored
	tx.ops = append(tx.ops, Op{Type: OpUpdateEdge, Edge: stored})
	return nil
}

// DeleteEdge buffers an edge deletion.
func (tx *Tx) DeleteEdge(id EdgeID) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.checkUsable(); err != nil {
		return err
	}
	if _, err := tx.getEdgeLocked(id); err != nil {
		return err
	}
	tx.deletedEdges[id] = struct{}{}
	delete(tx.pendingEdges, id)
	tx.ops = append(tx.ops, Op{Type: OpDeleteEdge, EdgeID: id})
	return nil
}

// =============================================================================
// COMMIT / ROLLBACK
// =============================================================================

// Commit validates constraints, detects conflicts per the isolation
// level, durably logs the segment and applies it. On any failure the
// transaction is aborted with no visible effect.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != TxActive {
		return ErrTxClosed
	}
	if err := tx.ctx.Err(); err != nil {
		tx.rollbackLocked()
		return fmt.Errorf("%w: %v", ErrTxnDeadline, err)
	}

	m := tx.manager
	if err := m.Fatal(); err != nil {
		tx.rollbackLocked()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tx.state = TxCommitting

	_, span := m.tracer.Start(tx.ctx, "tx.commit",
		trace.WithAttributes(
			attribute.String("tx.id", tx.id),
			attribute.String("tx.isolation", string(tx.isolation)),
			attribute.Int("tx.ops", len(tx.ops)),
		))
	defer span.End()

	if len(tx.ops) == 0 {
		tx.state = TxCommitted
		return nil
	}

	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	batch := tx.captureOldStates()

	if err := m.catalog.validateBatch(batch); err != nil {
		tx.state = TxAborted
		span.RecordError(err)
		return err
	}
	if err := tx.detectConflicts(); err != nil {
		tx.state = TxAborted
		span.RecordError(err)
		return err
	}

	seq := m.store.LatestSeq() + 1
	if m.wal != nil {
		if err := m.wal.AppendCommit(tx.id, seq, tx.ops); err != nil {
			tx.state = TxAborted
			span.RecordError(err)
			return err
		}
	}

	if err := m.store.ApplyCommit(seq, tx.ops); err != nil {
		// The WAL already has the commit marker; a failed apply means the
		// in-memory state diverged from the durable log. Refuse further
		// service rather than serve inconsistent reads.
		m.markFatal(err)
		tx.state = TxAborted
		span.RecordError(err)
		return fmt.Errorf("%w: apply after WAL commit: %v", ErrUnavailable, err)
	}
	m.catalog.applyOps(batch)

	tx.state = TxCommitted
	return nil
}

// captureOldStates pairs each op with the state it replaces, tracking
// intra-batch rewrites so index maintenance sees the correct previous
// value.
func (tx *Tx) captureOldStates() []committedOp {
	cur := make(map[NodeID]*Node)
	curEdges := make(map[EdgeID]*Edge)
	batch := make([]committedOp, 0, len(tx.ops))

	for _, op := range tx.ops {
		co := committedOp{op: op}
		switch op.Type {
		case OpCreateNode:
			cur[op.Node.ID] = op.Node
		case OpUpdateNode:
			if prev, ok := cur[op.Node.ID]; ok {
				co.oldNode = prev
			} else if prev, err := tx.manager.store.GetNode(op.Node.ID, SeqHead); err == nil {
				co.oldNode = prev
			}
			cur[op.Node.ID] = op.Node
		case OpDeleteNode:
			if prev, ok := cur[op.NodeID]; ok {
				co.oldNode = prev
			} else if prev, err := tx.manager.store.GetNode(op.NodeID, SeqHead); err == nil {
				co.oldNode = prev
			}
			delete(cur, op.NodeID)
		case OpCreateEdge:
			curEdges[op.Edge.ID] = op.Edge
		case OpUpdateEdge:
			if prev, ok := curEdges[op.Edge.ID]; ok {
				co.oldEdge = prev
			} else if prev, err := tx.manager.store.GetEdge(op.Edge.ID, SeqHead); err == nil {
				co.oldEdge = prev
			}
			curEdges[op.Edge.ID] = op.Edge
		case OpDeleteEdge:
			if prev, ok := curEdges[op.EdgeID]; ok {
				co.oldEdge = prev
			} else if prev, err := tx.manager.store.GetEdge(op.EdgeID, SeqHead); err == nil {
				co.oldEdge = prev
			}
			delete(curEdges, op.EdgeID)
		}
		batch = append(batch, co)
	}
	return batch
}

// detectConflicts runs under the commit lock.
func (tx *Tx) detectConflicts() error {
	m := tx.manager

	switch tx.isolation {
	case Serializable:
		// Read-set validation: any committed change to something this
		// transaction read (or scanned) invalidates it, which prevents write
		// skew on top of the repeatable-read view.
		for id := range tx.readNodes {
			if m.store.nodeChangedSince(id, tx.beginSeq) {
				return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("read node %s changed concurrently", id)}
			}
		}
		for id := range tx.readEdges {
			if m.store.edgeChangedSince(id, tx.beginSeq) {
				return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("read relationship %s changed concurrently", id)}
			}
		}
		for label := range tx.scannedLabels {
			if m.store.labelChangedSince(label, tx.beginSeq) {
				return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("scanned label %q changed concurrently", label)}
			}
		}

	case Snapshot:
		// First-committer-wins: a concurrently committed write to any
		// entity in this write set wins; this transaction aborts.
		for _, op := range tx.ops {
			switch op.Type {
			case OpCreateNode, OpUpdateNode:
				if m.store.nodeChangedSince(op.Node.ID, tx.beginSeq) {
					return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("node %s written by a first committer", op.Node.ID)}
				}
			case OpDeleteNode:
				if m.store.nodeChangedSince(op.NodeID, tx.beginSeq) {
					return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("node %s written by a first committer", op.NodeID)}
				}
			case OpCreateEdge, OpUpdateEdge:
				if m.store.edgeChangedSince(op.Edge.ID, tx.beginSeq) {
					return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("relationship %s written by a first committer", op.Edge.ID)}
				}
			case OpDeleteEdge:
				if m.store.edgeChangedSince(op.EdgeID, tx.beginSeq) {
					return &ConflictError{TxID: tx.id, Reason: fmt.Sprintf("relationship %s written by a first committer", op.EdgeID)}
				}
			}
		}
	}
	return nil
}

// Rollback discards all buffered operations; nothing becomes visible.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != TxActive {
		return ErrTxClosed
	}
	tx.rollbackLocked()
	return nil
}

func (tx *Tx) rollbackLocked() {
	tx.ops = nil
	tx.pendingNodes = nil
	tx.pendingEdges = nil
	tx.deletedNodes = nil
	tx.deletedEdges = nil
	tx.state = TxAborted
}
