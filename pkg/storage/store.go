// Versioned graph store.
//
// The Store owns the canonical committed state of every node and
// relationship. Each committed version is one content-addressed block;
// per-entity chains of (commitSeq, blockAddr) make any historical state
// addressable, which is what the snapshot-based isolation levels read.
//
// The Store itself has no notion of transactions: TxManager validates,
// logs and then applies a batch of operations under the commit lock via
// ApplyCommit. Readers take the RLock only.
package storage

import (
	"fmt"
	"sort"
	"sync"
)

// SeqHead addresses the latest committed version in as-of reads.
const SeqHead = ^uint64(0)

// OpType identifies one mutation inside a commit batch or WAL segment.
type OpType string

const (
	OpCreateNode OpType = "create_node"
	OpUpdateNode OpType = "update_node"
	OpDeleteNode OpType = "delete_node"
	OpCreateEdge OpType = "create_edge"
	OpUpdateEdge OpType = "update_edge"
	OpDeleteEdge OpType = "delete_edge"
)

// Op is a single buffered mutation. Create/update ops carry the full new
// entity state; deletes carry only the ID.
type Op struct {
	Type   OpType `json:"op"`
	Node   *Node  `json:"node,omitempty"`
	Edge   *Edge  `json:"edge,omitempty"`
	NodeID NodeID `json:"nodeId,omitempty"`
	EdgeID EdgeID `json:"edgeId,omitempty"`
}

// entityVersion is one link of a version chain.
type entityVersion struct {
	seq     uint64
	addr    BlockAddr
	deleted bool
}

// Store is the committed graph state.
type Store struct {
	mu     sync.RWMutex
	blocks BlockStore

	nodes map[NodeID][]entityVersion
	edges map[EdgeID][]entityVersion

	// Membership maps record every id that ever carried the label or was
	// ever incident to the node. As-of reads re-resolve each candidate, so
	// stale membership costs a lookup, never a wrong answer.
	nodesByLabel map[string]map[NodeID]struct{}
	edgesByType  map[string]map[EdgeID]struct{}
	outgoing     map[NodeID]map[EdgeID]struct{}
	incoming     map[NodeID]map[EdgeID]struct{}

	seq    uint64
	closed bool
}

// NewStore creates a store over the given block store.
func NewStore(blocks BlockStore) *Store {
	return &Store{
		blocks:       blocks,
		nodes:        make(map[NodeID][]entityVersion),
		edges:        make(map[EdgeID][]entityVersion),
		nodesByLabel: make(map[string]map[NodeID]struct{}),
		edgesByType:  make(map[string]map[EdgeID]struct{}),
		outgoing:     make(map[NodeID]map[EdgeID]struct{}),
		incoming:     make(map[NodeID]map[EdgeID]struct{}),
	}
}

// LatestSeq returns the highest committed sequence number.
func (s *Store) LatestSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Close releases the store and its block store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.blocks.Close()
}

// =============================================================================
// APPLY
// =============================================================================

// ApplyCommit writes one committed batch at the given sequence number.
// The caller (TxManager) serializes commits; seq must be strictly greater
// than any previously applied sequence. Validation has already happened.
func (s *Store) ApplyCommit(seq uint64, ops []Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}
	if seq <= s.seq {
		return fmt.Errorf("storage: non-monotonic commit seq %d (latest %d)", seq, s.seq)
	}

	for _, op := range ops {
		switch op.Type {
		case OpCreateNode, OpUpdateNode:
			data, err := EncodeNode(op.Node)
			if err != nil {
				return err
			}
			addr, err := s.blocks.Put(data)
			if err != nil {
				return err
			}
			id := op.Node.ID
			s.nodes[id] = append(s.nodes[id], entityVersion{seq: seq, addr: addr})
			for _, label := range op.Node.Labels {
				if s.nodesByLabel[label] == nil {
					s.nodesByLabel[label] = make(map[NodeID]struct{})
				}
				s.nodesByLabel[label][id] = struct{}{}
			}

		case OpDeleteNode:
			id := op.NodeID
			s.nodes[id] = append(s.nodes[id], entityVersion{seq: seq, deleted: true})

		case OpCreateEdge, OpUpdateEdge:
			data, err := EncodeEdge(op.Edge)
			if err != nil {
				return err
			}
			addr, err := s.blocks.Put(data)
			if err != nil {
				return err
			}
			id := op.Edge.ID
			s.edges[id] = append(s.edges[id], entityVersion{seq: seq, addr: addr})
			if s.edgesByType[op.Edge.Type] == nil {
				s.edgesByType[op.Edge.Type] = make(map[EdgeID]struct{})
			}
			s.edgesByType[op.Edge.Type][id] = struct{}{}
			if s.outgoing[op.Edge.StartNode] == nil {
				s.outgoing[op.Edge.StartNode] = make(map[EdgeID]struct{})
			}
			s.outgoing[op.Edge.StartNode][id] = struct{}{}
			if s.incoming[op.Edge.EndNode] == nil {
				s.incoming[op.Edge.EndNode] = make(map[EdgeID]struct{})
			}
			s.incoming[op.Edge.EndNode][id] = struct{}{}

		case OpDeleteEdge:
			id := op.EdgeID
			s.edges[id] = append(s.edges[id], entityVersion{seq: seq, deleted: true})

		default:
			return fmt.Errorf("storage: unknown op type %q", op.Type)
		}
	}

	s.seq = seq
	return nil
}

// =============================================================================
// READS (as-of)
// =============================================================================

func resolveVersion(chain []entityVersion, asOf uint64) (entityVersion, bool) {
	// Chains are append-only in seq order; scan from the tail.
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].seq <= asOf {
			if chain[i].deleted {
				return entityVersion{}, false
			}
			return chain[i], true
		}
	}
	return entityVersion{}, false
}

// GetNode returns the node state visible at asOf (SeqHead for latest).
func (s *Store) GetNode(id NodeID, asOf uint64) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}
	return s.getNodeLocked(id, asOf)
}

func (s *Store) getNodeLocked(id NodeID, asOf uint64) (*Node, error) {
	v, ok := resolveVersion(s.nodes[id], asOf)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := s.blocks.Get(v.addr)
	if err != nil {
		return nil, err
	}
	return DecodeNode(data)
}

// GetEdge returns the edge state visible at asOf.
func (s *Store) GetEdge(id EdgeID, asOf uint64) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}
	return s.getEdgeLocked(id, asOf)
}

func (s *Store) getEdgeLocked(id EdgeID, asOf uint64) (*Edge, error) {
	v, ok := resolveVersion(s.edges[id], asOf)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := s.blocks.Get(v.addr)
	if err != nil {
		return nil, err
	}
	return DecodeEdge(data)
}

// NodesByLabel returns all nodes visible at asOf carrying the label.
// Results are sorted by ID for deterministic scans; query-level ordering
// beyond that is ORDER BY's job.
func (s *Store) NodesByLabel(label string, asOf uint64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	ids := make([]NodeID, 0, len(s.nodesByLabel[label]))
	for id := range s.nodesByLabel[label] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		node, err := s.getNodeLocked(id, asOf)
		if err != nil {
			continue // deleted or relabeled since membership was recorded
		}
		if node.HasLabel(label) {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// AllNodes returns every node visible at asOf, sorted by ID.
func (s *Store) AllNodes(asOf uint64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	ids := make([]NodeID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if node, err := s.getNodeLocked(id, asOf); err == nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// AllEdges returns every edge visible at asOf, sorted by ID.
func (s *Store) AllEdges(asOf uint64) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	ids := make([]EdgeID, 0, len(s.edges))
	for id := range s.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		if edge, err := s.getEdgeLocked(id, asOf); err == nil {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

// Outgoing returns edges starting at the node, visible at asOf.
func (s *Store) Outgoing(id NodeID, asOf uint64) ([]*Edge, error) {
	return s.incident(id, asOf, true)
}

// Incoming returns edges ending at the node, visible at asOf.
func (s *Store) Incoming(id NodeID, asOf uint64) ([]*Edge, error) {
	return s.incident(id, asOf, false)
}

func (s *Store) incident(id NodeID, asOf uint64, out bool) ([]*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	var set map[EdgeID]struct{}
	if out {
		set = s.outgoing[id]
	} else {
		set = s.incoming[id]
	}

	ids := make([]EdgeID, 0, len(set))
	for eid := range set {
		ids = append(ids, eid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	edges := make([]*Edge, 0, len(ids))
	for _, eid := range ids {
		edge, err := s.getEdgeLocked(eid, asOf)
		if err != nil {
			continue
		}
		if out && edge.StartNode != id {
			continue
		}
		if !out && edge.EndNode != id {
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// HasRelationships reports whether any edge incident to the node is
// visible at asOf. Plain DELETE of such a node must fail.
func (s *Store) HasRelationships(id NodeID, asOf uint64) (bool, error) {
	out, err := s.Outgoing(id, asOf)
	if err != nil {
		return false, err
	}
	if len(out) > 0 {
		return true, nil
	}
	in, err := s.Incoming(id, asOf)
	if err != nil {
		return false, err
	}
	return len(in) > 0, nil
}

// Labels returns all labels that currently have at least one visible node.
func (s *Store) Labels(asOf uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	var labels []string
	for label, ids := range s.nodesByLabel {
		for id := range ids {
			if node, err := s.getNodeLocked(id, asOf); err == nil && node.HasLabel(label) {
				labels = append(labels, label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels, nil
}

// RelationshipTypes returns all edge types with at least one visible edge.
func (s *Store) RelationshipTypes(asOf uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	var types []string
	for typ, ids := range s.edgesByType {
		for id := range ids {
			if _, err := s.getEdgeLocked(id, asOf); err == nil {
				types = append(types, typ)
				break
			}
		}
	}
	sort.Strings(types)
	return types, nil
}

// NodeCount returns the number of nodes visible at asOf.
func (s *Store) NodeCount(asOf uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStorageClosed
	}
	var n int64
	for id := range s.nodes {
		if _, ok := resolveVersion(s.nodes[id], asOf); ok {
			n++
		}
	}
	return n, nil
}

// EdgeCount returns the number of edges visible at asOf.
func (s *Store) EdgeCount(asOf uint64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStorageClosed
	}
	var n int64
	for id := range s.edges {
		if _, ok := resolveVersion(s.edges[id], asOf); ok {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// VERSION HISTORY
// =============================================================================

// NodeVersion is one historical state of a node.
type NodeVersion struct {
	Seq     uint64
	Addr    BlockAddr
	Deleted bool
	Node    *Node // nil for deletion tombstones
}

// NodeHistory returns every committed version of a node, oldest first.
// Content addressing retains prior blocks, so history is always complete.
func (s *Store) NodeHistory(id NodeID) ([]NodeVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStorageClosed
	}

	chain := s.nodes[id]
	if len(chain) == 0 {
		return nil, ErrNotFound
	}

	out := make([]NodeVersion, 0, len(chain))
	for _, v := range chain {
		nv := NodeVersion{Seq: v.seq, Addr: v.addr, Deleted: v.deleted}
		if !v.deleted {
			data, err := s.blocks.Get(v.addr)
			if err != nil {
				return nil, err
			}
			node, err := DecodeNode(data)
			if err != nil {
				return nil, err
			}
			nv.Node = node
		}
		out = append(out, nv)
	}
	return out, nil
}

// entityChangedSince reports whether the entity has a committed version
// with seq > since. Used by conflict detection.
func (s *Store) nodeChangedSince(id NodeID, since uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.nodes[id]
	return len(chain) > 0 && chain[len(chain)-1].seq > since
}

func (s *Store) edgeChangedSince(id EdgeID, since uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.edges[id]
	return len(chain) > 0 && chain[len(chain)-1].seq > since
}

// labelChangedSince reports whether any node that ever carried the label
// has a version newer than since. Serializable label-scan validation;
// the empty label stands for a whole-graph scan.
func (s *Store) labelChangedSince(label string, since uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if label == "" {
		for id := range s.nodes {
			chain := s.nodes[id]
			if len(chain) > 0 && chain[len(chain)-1].seq > since {
				return true
			}
		}
		return false
	}
	for id := range s.nodesByLabel[label] {
		chain := s.nodes[id]
		if len(chain) > 0 && chain[len(chain)-1].seq > since {
			return true
		}
	}
	return false
}
