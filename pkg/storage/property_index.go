// Single-property ordered indexes and composite indexes.
package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// indexOrder compares two indexed property values. Numbers sort before
// strings, strings before booleans, booleans before points/temporals;
// within a class the natural order applies. Returns <0, 0, >0.
func indexOrder(a, b any) int {
	ca, cb := orderClass(a), orderClass(b)
	if ca != cb {
		return ca - cb
	}
	switch ca {
	case 0: // numeric
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 1: // string
		return strings.Compare(a.(string), b.(string))
	case 2: // bool: false < true
		ba, bb := a.(bool), b.(bool)
		switch {
		case !ba && bb:
			return -1
		case ba && !bb:
			return 1
		}
		return 0
	case 3: // time
		ta, tb := a.(time.Time), b.(time.Time)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	default:
		// Points and exotic values: stable but arbitrary order by rendering.
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func orderClass(v any) int {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	case time.Time:
		return 3
	default:
		return 4
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

// uniqueKey renders a property value into a type-qualified map key, so
// int64(1) and "1" do not collide in unique-constraint tracking.
func uniqueKey(v any) string {
	switch t := v.(type) {
	case int, int32, int64:
		return fmt.Sprintf("i:%d", t)
	case float32, float64:
		return fmt.Sprintf("f:%v", toFloat(t))
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// =============================================================================
// PROPERTY INDEX (ordered, equality + range)
// =============================================================================

type propertyEntry struct {
	value any
	ids   map[NodeID]struct{}
}

// PropertyIndex is an ordered single-property index supporting equality
// and range lookups. Entries are kept sorted by indexOrder; lookups use
// binary search.
type PropertyIndex struct {
	name     string
	label    string
	property string
	entries  []*propertyEntry
}

func newPropertyIndex(name, label, property string) *PropertyIndex {
	return &PropertyIndex{name: name, label: label, property: property}
}

func (p *PropertyIndex) Name() string         { return p.name }
func (p *PropertyIndex) Kind() IndexKind      { return IndexProperty }
func (p *PropertyIndex) Label() string        { return p.label }
func (p *PropertyIndex) Properties() []string { return []string{p.property} }

// search finds the position of value; found reports an exact hit.
func (p *PropertyIndex) search(value any) (int, bool) {
	i := sort.Search(len(p.entries), func(i int) bool {
		return indexOrder(p.entries[i].value, value) >= 0
	})
	if i < len(p.entries) && indexOrder(p.entries[i].value, value) == 0 {
		return i, true
	}
	return i, false
}

func (p *PropertyIndex) insert(n *Node) {
	v, ok := n.Properties[p.property]
	if !ok || v == nil {
		return
	}
	i, found := p.search(v)
	if !found {
		entry := &propertyEntry{value: v, ids: make(map[NodeID]struct{})}
		p.entries = append(p.entries, nil)
		copy(p.entries[i+1:], p.entries[i:])
		p.entries[i] = entry
	}
	p.entries[i].ids[n.ID] = struct{}{}
}

func (p *PropertyIndex) remove(n *Node) {
	v, ok := n.Properties[p.property]
	if !ok || v == nil {
		return
	}
	i, found := p.search(v)
	if !found {
		return
	}
	delete(p.entries[i].ids, n.ID)
	if len(p.entries[i].ids) == 0 {
		p.entries = append(p.entries[:i], p.entries[i+1:]...)
	}
}

func (p *PropertyIndex) lookup(value any) []NodeID {
	i, found := p.search(value)
	if !found {
		return nil
	}
	return sortedIDs(p.entries[i].ids)
}

func (p *PropertyIndex) lookupRange(min, max any, minIncl, maxIncl bool) []NodeID {
	var out []NodeID
	for _, e := range p.entries {
		if min != nil {
			cmp := indexOrder(e.value, min)
			if cmp < 0 || (cmp == 0 && !minIncl) {
				continue
			}
		}
		if max != nil {
			cmp := indexOrder(e.value, max)
			if cmp > 0 || (cmp == 0 && !maxIncl) {
				continue
			}
		}
		out = append(out, sortedIDs(e.ids)...)
	}
	return out
}

func sortedIDs(set map[NodeID]struct{}) []NodeID {
	ids := make([]NodeID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// COMPOSITE INDEX (full-key equality)
// =============================================================================

// CompositeIndex maps the combination of several property values to node
// IDs. Only full-key lookups are supported; partial keys fall back to the
// single-property indexes or a scan.
type CompositeIndex struct {
	name       string
	label      string
	properties []string
	full       map[string]map[NodeID]struct{}
}

func newCompositeIndex(name, label string, properties []string) *CompositeIndex {
	return &CompositeIndex{
		name:       name,
		label:      label,
		properties: append([]string(nil), properties...),
		full:       make(map[string]map[NodeID]struct{}),
	}
}

func (ci *CompositeIndex) Name() string         { return ci.name }
func (ci *CompositeIndex) Kind() IndexKind      { return IndexComposite }
func (ci *CompositeIndex) Label() string        { return ci.label }
func (ci *CompositeIndex) Properties() []string { return append([]string(nil), ci.properties...) }

// compositeKey renders the ordered property values into one map key.
func compositeKey(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = uniqueKey(v)
	}
	return strings.Join(parts, "|")
}

// nodeKey extracts the full composite key from a node; ok is false when
// any keyed property is missing or null (such nodes are not indexed).
func (ci *CompositeIndex) nodeKey(n *Node) (string, bool) {
	values := make([]any, len(ci.properties))
	for i, prop := range ci.properties {
		v, ok := n.Properties[prop]
		if !ok || v == nil {
			return "", false
		}
		values[i] = v
	}
	return compositeKey(values), true
}

func (ci *CompositeIndex) insert(n *Node) {
	key, ok := ci.nodeKey(n)
	if !ok {
		return
	}
	if ci.full[key] == nil {
		ci.full[key] = make(map[NodeID]struct{})
	}
	ci.full[key][n.ID] = struct{}{}
}

func (ci *CompositeIndex) remove(n *Node) {
	key, ok := ci.nodeKey(n)
	if !ok {
		return
	}
	delete(ci.full[key], n.ID)
	if len(ci.full[key]) == 0 {
		delete(ci.full, key)
	}
}

func (ci *CompositeIndex) lookup(values []any) []NodeID {
	if len(values) != len(ci.properties) {
		return nil
	}
	return sortedIDs(ci.full[compositeKey(values)])
}

var (
	_ Index = (*PropertyIndex)(nil)
	_ Index = (*CompositeIndex)(nil)
)
