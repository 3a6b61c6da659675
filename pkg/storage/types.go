// Package storage provides the content-addressed graph store, catalog and
// transaction manager for RuneDB.
//
// The storage layer keeps every committed node and relationship state as an
// immutable, content-addressed block (BLAKE2b-256 of the canonical
// encoding). Per-entity version chains over those blocks give the
// transaction manager cheap as-of reads for snapshot-based isolation
// levels, and prior blocks are retained for history.
//
// Layering, bottom to top:
//   - BlockStore: immutable hash-addressed blocks (memory or badger)
//   - Store: versioned node/edge state, label and adjacency maps
//   - Catalog: constraints and secondary indexes, maintained at commit
//   - WAL: durable segment log with commit markers and replay
//   - TxManager / Tx: isolation, conflict detection, constraint checks
//
// All mutation goes through a Tx; the Store is never written directly.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound         = errors.New("storage: not found")
	ErrAlreadyExists    = errors.New("storage: already exists")
	ErrInvalidID        = errors.New("storage: invalid id")
	ErrInvalidData      = errors.New("storage: invalid data")
	ErrInvalidEdge      = errors.New("storage: invalid edge: start or end node not found")
	ErrHasRelationships = errors.New("storage: node has relationships (use detach delete)")
	ErrStorageClosed    = errors.New("storage: closed")
	ErrCorrupted        = errors.New("storage: corrupted block")
	ErrRecoveryFailed   = errors.New("storage: recovery failed")
)

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph relationships.
type EdgeID string

// Node represents a vertex in the labeled property graph.
//
// Labels are an ordered set of type tags (:Person:User) and Properties is
// an open key-value map. Property values are restricted to the types the
// block codec round-trips: string, int64, float64, bool, nil, []any,
// map[string]any, Point and time.Time.
//
// Identity is stable for the node's lifetime; properties and labels may
// change across committed versions, each of which is retained as its own
// content-addressed block.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Edge represents a directed relationship between two nodes.
//
// Every edge has exactly one Type and always carries a direction
// internally; undirected query patterns are answered by traversing both
// adjacency maps. An edge cannot exist without both endpoints.
type Edge struct {
	ID         EdgeID         `json:"id"`
	StartNode  NodeID         `json:"startNode"`
	EndNode    NodeID         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Point is a 2D spatial property value, queryable through spatial indexes.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CopyNode creates a deep copy of a node.
func CopyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		ID:        n.ID,
		Labels:    make([]string, len(n.Labels)),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	copy(c.Labels, n.Labels)
	if n.Properties != nil {
		c.Properties = make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			c.Properties[k] = copyValue(v)
		}
	}
	return c
}

// CopyEdge creates a deep copy of an edge.
func CopyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	c := &Edge{
		ID:        e.ID,
		StartNode: e.StartNode,
		EndNode:   e.EndNode,
		Type:      e.Type,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.Properties != nil {
		c.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			c.Properties[k] = copyValue(v)
		}
	}
	return c
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ConstraintViolation is returned when a write breaks a declared
// constraint. It aborts the owning transaction and identifies both the
// constraint and the offending entity.
type ConstraintViolation struct {
	Constraint string // constraint name
	Kind       ConstraintKind
	Label      string
	Property   string
	EntityID   string
	Detail     string
}

func (v *ConstraintViolation) Error() string {
	return fmt.Sprintf("storage: constraint %q (%s on %s.%s) violated by %s: %s",
		v.Constraint, v.Kind, v.Label, v.Property, v.EntityID, v.Detail)
}

// ConflictError is returned at commit when isolation-level conflict
// detection rejects the transaction. The documented recovery path is for
// the caller to retry the whole transaction.
type ConflictError struct {
	TxID   string
	Reason string
}

func (c *ConflictError) Error() string {
	return fmt.Sprintf("storage: transaction %s aborted: %s (retry)", c.TxID, c.Reason)
}

// IsConflict reports whether err is a serialization/snapshot conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
