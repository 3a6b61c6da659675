// Full-text, spatial and vector indexes.
package storage

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/viterin/vek/vek32"
)

// =============================================================================
// FULLTEXT INDEX
// =============================================================================

// FulltextIndex is a tokenized inverted index over one string property.
// Queries match whole tokens or token substrings (contains-style).
type FulltextIndex struct {
	name     string
	label    string
	property string
	tokens   map[string]map[NodeID]struct{}
	docs     map[NodeID][]string // tokens per node, for removal
}

func newFulltextIndex(name, label, property string) *FulltextIndex {
	return &FulltextIndex{
		name:     name,
		label:    label,
		property: property,
		tokens:   make(map[string]map[NodeID]struct{}),
		docs:     make(map[NodeID][]string),
	}
}

func (f *FulltextIndex) Name() string         { return f.name }
func (f *FulltextIndex) Kind() IndexKind      { return IndexFulltext }
func (f *FulltextIndex) Label() string        { return f.label }
func (f *FulltextIndex) Properties() []string { return []string{f.property} }

// tokenize lower-cases and splits on any non-letter/digit rune.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, tok := range fields {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func (f *FulltextIndex) insert(n *Node) {
	text, ok := n.Properties[f.property].(string)
	if !ok {
		return
	}
	toks := tokenize(text)
	f.docs[n.ID] = toks
	for _, tok := range toks {
		if f.tokens[tok] == nil {
			f.tokens[tok] = make(map[NodeID]struct{})
		}
		f.tokens[tok][n.ID] = struct{}{}
	}
}

func (f *FulltextIndex) remove(n *Node) {
	for _, tok := range f.docs[n.ID] {
		delete(f.tokens[tok], n.ID)
		if len(f.tokens[tok]) == 0 {
			delete(f.tokens, tok)
		}
	}
	delete(f.docs, n.ID)
}

// search returns nodes matching every query token. A query token matches
// an indexed token exactly or as a substring.
func (f *FulltextIndex) search(query string) []NodeID {
	qtoks := tokenize(query)
	if len(qtoks) == 0 {
		return nil
	}

	var result map[NodeID]struct{}
	for _, q := range qtoks {
		matches := make(map[NodeID]struct{})
		if ids, ok := f.tokens[q]; ok {
			for id := range ids {
				matches[id] = struct{}{}
			}
		}
		// substring matches across the token dictionary
		for tok, ids := range f.tokens {
			if tok != q && strings.Contains(tok, q) {
				for id := range ids {
					matches[id] = struct{}{}
				}
			}
		}
		if result == nil {
			result = matches
		} else {
			for id := range result {
				if _, ok := matches[id]; !ok {
					delete(result, id)
				}
			}
		}
		if len(result) == 0 {
			return nil
		}
	}
	return sortedIDs(result)
}

// =============================================================================
// SPATIAL INDEX
// =============================================================================

// SpatialIndex indexes one Point-valued property for containment and
// nearest-neighbour queries. Plans are rule-based and datasets single
// process, so a sorted linear structure is sufficient here.
type SpatialIndex struct {
	name     string
	label    string
	property string
	points   map[NodeID]Point
}

func newSpatialIndex(name, label, property string) *SpatialIndex {
	return &SpatialIndex{
		name:     name,
		label:    label,
		property: property,
		points:   make(map[NodeID]Point),
	}
}

func (s *SpatialIndex) Name() string         { return s.name }
func (s *SpatialIndex) Kind() IndexKind      { return IndexSpatial }
func (s *SpatialIndex) Label() string        { return s.label }
func (s *SpatialIndex) Properties() []string { return []string{s.property} }

func (s *SpatialIndex) insert(n *Node) {
	switch p := n.Properties[s.property].(type) {
	case Point:
		s.points[n.ID] = p
	case *Point:
		s.points[n.ID] = *p
	}
}

func (s *SpatialIndex) remove(n *Node) {
	delete(s.points, n.ID)
}

// within returns nodes whose point lies inside the closed rectangle.
func (s *SpatialIndex) within(minX, minY, maxX, maxY float64) []NodeID {
	hits := make(map[NodeID]struct{})
	for id, p := range s.points {
		if p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY {
			hits[id] = struct{}{}
		}
	}
	return sortedIDs(hits)
}

// nearest returns up to k node IDs ordered by euclidean distance to p,
// ties broken by ID for determinism.
func (s *SpatialIndex) nearest(p Point, k int) []NodeID {
	type hit struct {
		id   NodeID
		dist float64
	}
	hits := make([]hit, 0, len(s.points))
	for id, pt := range s.points {
		dx, dy := pt.X-p.X, pt.Y-p.Y
		hits = append(hits, hit{id: id, dist: math.Sqrt(dx*dx + dy*dy)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id < hits[j].id
	})
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	out := make([]NodeID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// =============================================================================
// VECTOR INDEX
// =============================================================================

// VectorIndex indexes one embedding-valued property ([]float32 or a list
// of numbers) for cosine-similarity search.
type VectorIndex struct {
	name       string
	label      string
	property   string
	dimensions int
	vectors    map[NodeID][]float32
}

func newVectorIndex(name, label, property string, dimensions int) *VectorIndex {
	return &VectorIndex{
		name:       name,
		label:      label,
		property:   property,
		dimensions: dimensions,
		vectors:    make(map[NodeID][]float32),
	}
}

func (v *VectorIndex) Name() string         { return v.name }
func (v *VectorIndex) Kind() IndexKind      { return IndexVector }
func (v *VectorIndex) Label() string        { return v.label }
func (v *VectorIndex) Properties() []string { return []string{v.property} }

// asVector converts a property value into a []float32 embedding.
func asVector(value any) []float32 {
	switch t := value.(type) {
	case []float32:
		out := make([]float32, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]float32, len(t))
		for i, e := range t {
			switch n := e.(type) {
			case float64:
				out[i] = float32(n)
			case int64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			default:
				return nil
			}
		}
		return out
	}
	return nil
}

func (v *VectorIndex) insert(n *Node) {
	vec := asVector(n.Properties[v.property])
	if vec == nil {
		return
	}
	if v.dimensions > 0 && len(vec) != v.dimensions {
		return
	}
	v.vectors[n.ID] = vec
}

func (v *VectorIndex) remove(n *Node) {
	delete(v.vectors, n.ID)
}

// search returns up to k hits by cosine similarity, descending. Ties
// break by ID.
func (v *VectorIndex) search(query []float32, k int) []VectorHit {
	hits := make([]VectorHit, 0, len(v.vectors))
	for id, vec := range v.vectors {
		if len(vec) != len(query) {
			continue
		}
		hits = append(hits, VectorHit{ID: id, Score: vek32.CosineSimilarity(query, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

var (
	_ Index = (*FulltextIndex)(nil)
	_ Index = (*SpatialIndex)(nil)
	_ Index = (*VectorIndex)(nil)
)
