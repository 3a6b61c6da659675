// Catalog: constraints and secondary indexes.
//
// The Catalog is an explicit object owned by the database handle and
// passed into the transaction manager and executor; there is no
// process-wide schema state. Index and constraint maintenance happens
// inside the commit critical section, so a committed write is never
// visible through a scan without also being visible through every
// applicable index, and vice versa.
//
// Declaring an index or constraint backfills all existing data before the
// declaration becomes active; a backfill that finds violations (e.g.
// pre-existing duplicates under a new unique constraint) fails the
// declaration and leaves the catalog untouched.
package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
)

// ConstraintKind enumerates the supported constraint rules.
type ConstraintKind string

const (
	ConstraintUnique    ConstraintKind = "UNIQUE"
	ConstraintExists    ConstraintKind = "EXISTS"
	ConstraintType      ConstraintKind = "TYPE"
	ConstraintPredicate ConstraintKind = "PREDICATE"
)

// IndexKind enumerates the index families the catalog manages. The store
// natively maintains label and relationship-type membership, which makes
// seven index kinds available at the read interface.
type IndexKind string

const (
	IndexProperty  IndexKind = "RANGE"     // single property, ordered: equality + range
	IndexComposite IndexKind = "COMPOSITE" // multiple properties, equality on the full key
	IndexFulltext  IndexKind = "FULLTEXT"  // tokenized text, contains-style queries
	IndexSpatial   IndexKind = "POINT"     // point containment and nearest
	IndexVector    IndexKind = "VECTOR"    // embedding similarity
)

// Constraint is a declared rule on a label+property pair, evaluated
// synchronously on every write that touches a matching node.
type Constraint struct {
	Name     string
	Kind     ConstraintKind
	Label    string
	Property string

	// PropType is the required value type for TYPE constraints: one of
	// STRING, INTEGER, FLOAT, BOOLEAN, LIST, MAP, POINT, DATETIME.
	PropType string

	// Expression is a CEL predicate for PREDICATE constraints, evaluated
	// with `props` (map) and `labels` (list) bound to the written node.
	Expression string

	program cel.Program

	// unique-value tracking, maintained at commit
	values map[string]NodeID
}

// Index is the common surface of all secondary indexes.
type Index interface {
	Name() string
	Kind() IndexKind
	Label() string
	Properties() []string

	insert(n *Node)
	remove(n *Node)
}

// Catalog manages schema state for one database.
type Catalog struct {
	mu          sync.RWMutex
	constraints map[string]*Constraint
	indexes     map[string]Index
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		constraints: make(map[string]*Constraint),
		indexes:     make(map[string]Index),
	}
}

// =============================================================================
// DECLARATION
// =============================================================================

// CreateConstraint declares and backfills a constraint. existing must be
// the committed nodes the constraint applies over (the caller passes the
// latest committed view).
func (c *Catalog) CreateConstraint(con *Constraint, existing []*Node) error {
	if con == nil || con.Name == "" || con.Label == "" {
		return ErrInvalidData
	}
	if con.Kind != ConstraintPredicate && con.Property == "" {
		return ErrInvalidData
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.constraints[con.Name]; exists {
		return fmt.Errorf("storage: constraint %q %w", con.Name, ErrAlreadyExists)
	}

	if con.Kind == ConstraintPredicate {
		prg, err := compilePredicate(con.Expression)
		if err != nil {
			return fmt.Errorf("storage: constraint %q: %w", con.Name, err)
		}
		con.program = prg
	}
	if con.Kind == ConstraintUnique {
		con.values = make(map[string]NodeID)
	}

	// Backfill: the constraint must hold over existing data before it is
	// considered active.
	for _, node := range existing {
		if !node.HasLabel(con.Label) {
			continue
		}
		if err := con.check(node); err != nil {
			return err
		}
		if con.Kind == ConstraintUnique {
			if v, ok := node.Properties[con.Property]; ok && v != nil {
				key := uniqueKey(v)
				if owner, dup := con.values[key]; dup && owner != node.ID {
					return uniqueViolation(con, node, v)
				}
				con.values[key] = node.ID
			}
		}
	}

	c.constraints[con.Name] = con
	return nil
}

// DropConstraint removes a constraint by name.
func (c *Catalog) DropConstraint(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.constraints[name]; !ok {
		return ErrNotFound
	}
	delete(c.constraints, name)
	return nil
}

// IndexOptions carries kind-specific index parameters.
type IndexOptions struct {
	Dimensions int // vector indexes: expected embedding width (0 = any)
}

// CreateIndex declares and backfills an index over the existing nodes.
func (c *Catalog) CreateIndex(name string, kind IndexKind, label string, props []string, opts IndexOptions, existing []*Node) error {
	if name == "" || label == "" || len(props) == 0 {
		return ErrInvalidData
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.indexes[name]; exists {
		return fmt.Errorf("storage: index %q %w", name, ErrAlreadyExists)
	}

	var idx Index
	switch kind {
	case IndexProperty:
		if len(props) != 1 {
			return fmt.Errorf("storage: %w: range index takes exactly one property", ErrInvalidData)
		}
		idx = newPropertyIndex(name, label, props[0])
	case IndexComposite:
		if len(props) < 2 {
			return fmt.Errorf("storage: %w: composite index takes at least two properties", ErrInvalidData)
		}
		idx = newCompositeIndex(name, label, props)
	case IndexFulltext:
		if len(props) != 1 {
			return fmt.Errorf("storage: %w: fulltext index takes exactly one property", ErrInvalidData)
		}
		idx = newFulltextIndex(name, label, props[0])
	case IndexSpatial:
		if len(props) != 1 {
			return fmt.Errorf("storage: %w: point index takes exactly one property", ErrInvalidData)
		}
		idx = newSpatialIndex(name, label, props[0])
	case IndexVector:
		if len(props) != 1 {
			return fmt.Errorf("storage: %w: vector index takes exactly one property", ErrInvalidData)
		}
		idx = newVectorIndex(name, label, props[0], opts.Dimensions)
	default:
		return fmt.Errorf("storage: %w: unknown index kind %q", ErrInvalidData, kind)
	}

	// Backfill before the index is visible to lookups.
	for _, node := range existing {
		if node.HasLabel(label) {
			idx.insert(node)
		}
	}

	c.indexes[name] = idx
	return nil
}

// DropIndex removes an index by name.
func (c *Catalog) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.indexes[name]; !ok {
		return ErrNotFound
	}
	delete(c.indexes, name)
	return nil
}

// Constraints returns the declared constraints, sorted by name.
func (c *Catalog) Constraints() []*Constraint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Constraint, 0, len(c.constraints))
	for _, con := range c.constraints {
		out = append(out, con)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Indexes returns the declared indexes, sorted by name.
func (c *Catalog) Indexes() []Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Index, 0, len(c.indexes))
	for _, idx := range c.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// =============================================================================
// LOOKUPS (used by the executor's Scan operator)
// =============================================================================

// HasPropertyIndex reports whether an equality/range index covers
// label+property. The compiler uses this to plan index-assisted scans.
func (c *Catalog) HasPropertyIndex(label, property string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.propertyIndexLocked(label, property) != nil
}

func (c *Catalog) propertyIndexLocked(label, property string) *PropertyIndex {
	for _, idx := range c.indexes {
		if pi, ok := idx.(*PropertyIndex); ok && pi.label == label && pi.property == property {
			return pi
		}
	}
	return nil
}

// Lookup resolves (label, property, value) to node IDs via a property
// index. Composite keys go through LookupComposite. Returns ErrNotFound
// when no index covers the pair.
func (c *Catalog) Lookup(label, property string, value any) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pi := c.propertyIndexLocked(label, property)
	if pi == nil {
		return nil, ErrNotFound
	}
	return pi.lookup(value), nil
}

// LookupRange resolves an ordered range over an indexed property.
// Nil bounds are open.
func (c *Catalog) LookupRange(label, property string, min, max any, minIncl, maxIncl bool) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pi := c.propertyIndexLocked(label, property)
	if pi == nil {
		return nil, ErrNotFound
	}
	return pi.lookupRange(min, max, minIncl, maxIncl), nil
}

// LookupComposite resolves a full composite key to node IDs.
func (c *Catalog) LookupComposite(name string, values []any) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, ErrNotFound
	}
	ci, ok := idx.(*CompositeIndex)
	if !ok {
		return nil, fmt.Errorf("storage: index %q is not composite", name)
	}
	return ci.lookup(values), nil
}

// SearchFulltext returns IDs of nodes whose indexed property contains the
// query text (token or substring match).
func (c *Catalog) SearchFulltext(name, query string) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, ErrNotFound
	}
	fi, ok := idx.(*FulltextIndex)
	if !ok {
		return nil, fmt.Errorf("storage: index %q is not fulltext", name)
	}
	return fi.search(query), nil
}

// SearchWithin returns IDs of nodes whose indexed point lies inside the
// rectangle [minX,maxX]x[minY,maxY].
func (c *Catalog) SearchWithin(name string, minX, minY, maxX, maxY float64) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, ErrNotFound
	}
	si, ok := idx.(*SpatialIndex)
	if !ok {
		return nil, fmt.Errorf("storage: index %q is not spatial", name)
	}
	return si.within(minX, minY, maxX, maxY), nil
}

// SearchNearest returns up to k node IDs ordered by distance to p.
func (c *Catalog) SearchNearest(name string, p Point, k int) ([]NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, ErrNotFound
	}
	si, ok := idx.(*SpatialIndex)
	if !ok {
		return nil, fmt.Errorf("storage: index %q is not spatial", name)
	}
	return si.nearest(p, k), nil
}

// VectorHit is one similarity search result.
type VectorHit struct {
	ID    NodeID
	Score float32
}

// SearchVector returns up to k hits ordered by cosine similarity.
func (c *Catalog) SearchVector(name string, query []float32, k int) ([]VectorHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.indexes[name]
	if !ok {
		return nil, ErrNotFound
	}
	vi, ok := idx.(*VectorIndex)
	if !ok {
		return nil, fmt.Errorf("storage: index %q is not vector", name)
	}
	return vi.search(query, k), nil
}

// =============================================================================
// COMMIT-TIME MAINTENANCE
// =============================================================================

// committedOp pairs an op with the entity state it replaced, so indexes
// can drop stale entries. TxManager captures old states under the commit
// lock before applying.
type committedOp struct {
	op      Op
	oldNode *Node
	oldEdge *Edge
}

// applyOps updates indexes and unique-value tracking for one committed
// batch. Called inside the commit critical section, after the store
// applied the batch.
func (c *Catalog) applyOps(ops []committedOp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, co := range ops {
		switch co.op.Type {
		case OpCreateNode, OpUpdateNode:
			if co.oldNode != nil {
				c.removeNodeLocked(co.oldNode)
			}
			c.insertNodeLocked(co.op.Node)
		case OpDeleteNode:
			if co.oldNode != nil {
				c.removeNodeLocked(co.oldNode)
			}
		}
	}
}

func (c *Catalog) insertNodeLocked(n *Node) {
	for _, idx := range c.indexes {
		if n.HasLabel(idx.Label()) {
			idx.insert(n)
		}
	}
	for _, con := range c.constraints {
		if con.Kind == ConstraintUnique && n.HasLabel(con.Label) {
			if v, ok := n.Properties[con.Property]; ok && v != nil {
				con.values[uniqueKey(v)] = n.ID
			}
		}
	}
}

func (c *Catalog) removeNodeLocked(n *Node) {
	for _, idx := range c.indexes {
		if n.HasLabel(idx.Label()) {
			idx.remove(n)
		}
	}
	for _, con := range c.constraints {
		if con.Kind == ConstraintUnique && n.HasLabel(con.Label) {
			if v, ok := n.Properties[con.Property]; ok && v != nil {
				key := uniqueKey(v)
				if con.values[key] == n.ID {
					delete(con.values, key)
				}
			}
		}
	}
}
