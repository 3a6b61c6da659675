// Runtime values.
//
// Every value flowing through the executor is a Value: a tagged union
// with a fixed set of kinds rather than a bare interface, so operators
// can switch on Kind without reflection. Rows bind query variables to
// Values.
package cypher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/runedb/pkg/storage"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindNode
	KindRel
	KindPath
	KindPoint
	KindTime
)

// Path is an alternating node/relationship sequence.
type Path struct {
	Nodes []*storage.Node
	Edges []*storage.Edge
}

// Value is one runtime value. Exactly the field selected by Kind is
// meaningful.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   map[string]Value
	Node  *storage.Node
	Rel   *storage.Edge
	Path  *Path
	Point storage.Point
	Time  time.Time
}

// Constructors

func Null() Value                      { return Value{Kind: KindNull} }
func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value           { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value       { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value       { return Value{Kind: KindString, Str: s} }
func ListValue(items []Value) Value    { return Value{Kind: KindList, List: items} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }
func NodeValue(n *storage.Node) Value  { return Value{Kind: KindNode, Node: n} }
func RelValue(e *storage.Edge) Value   { return Value{Kind: KindRel, Rel: e} }
func PathValue(p *Path) Value          { return Value{Kind: KindPath, Path: p} }
func PointValue(p storage.Point) Value { return Value{Kind: KindPoint, Point: p} }
func TimeValue(t time.Time) Value      { return Value{Kind: KindTime, Time: t} }

// FromAny converts a stored property value (or caller parameter) into a
// Value. Unknown types render to their string form rather than failing.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return ListValue(items)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return MapValue(m)
	case storage.Point:
		return PointValue(t)
	case *storage.Point:
		return PointValue(*t)
	case time.Time:
		return TimeValue(t)
	case *storage.Node:
		return NodeValue(t)
	case *storage.Edge:
		return RelValue(t)
	case Value:
		return t
	default:
		return StringValue(fmt.Sprint(v))
	}
}

// ToAny converts a Value back into the property / record representation.
func (v Value) ToAny() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.ToAny()
		}
		return out
	case KindNode:
		return v.Node
	case KindRel:
		return v.Rel
	case KindPath:
		return v.Path
	case KindPoint:
		return v.Point
	case KindTime:
		return v.Time
	}
	return nil
}

// IsNull reports the NULL kind.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// numeric widening for arithmetic and comparison
func (v Value) isNumber() bool { return v.Kind == KindInt || v.Kind == KindFloat }

func (v Value) asFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// String renders a value for error messages and the CLI shell.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Map[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNode:
		return fmt.Sprintf("(:%s {id: %s})", strings.Join(v.Node.Labels, ":"), v.Node.ID)
	case KindRel:
		return fmt.Sprintf("[:%s {id: %s}]", v.Rel.Type, v.Rel.ID)
	case KindPath:
		return fmt.Sprintf("path(%d nodes)", len(v.Path.Nodes))
	case KindPoint:
		return fmt.Sprintf("point({x: %v, y: %v})", v.Point.X, v.Point.Y)
	case KindTime:
		return v.Time.Format(time.RFC3339Nano)
	}
	return "?"
}

// =============================================================================
// EQUALITY AND ORDERING
// =============================================================================

// valueEquals is full equality: used by filters (= operator), DISTINCT
// and UNION row dedup. NULL is not equal to anything including NULL (the
// = operator handles NULL via ternary logic before calling this).
func valueEquals(a, b Value) bool {
	if a.isNumber() && b.isNumber() {
		return a.asFloat() == b.asFloat()
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return false
	case KindBool:
		return a.Bool == b.Bool
	case KindString:
		return a.Str == b.Str
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if a.List[i].IsNull() && b.List[i].IsNull() {
				continue // list equality treats NULL elements positionally
			}
			if !valueEquals(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.Map) != len(b.Map) {
			return false
		}
		for k, av := range a.Map {
			bv, ok := b.Map[k]
			if !ok || !valueEquals(av, bv) {
				return false
			}
		}
		return true
	case KindNode:
		return a.Node.ID == b.Node.ID
	case KindRel:
		return a.Rel.ID == b.Rel.ID
	case KindPoint:
		return a.Point == b.Point
	case KindTime:
		return a.Time.Equal(b.Time)
	}
	return false
}

// kindClass buckets kinds for cross-type ordering: within a class values
// compare naturally; across classes the class index decides. Matches the
// storage index ordering (numbers, strings, booleans, temporals, rest).
func kindClass(k ValueKind) int {
	switch k {
	case KindInt, KindFloat:
		return 0
	case KindString:
		return 1
	case KindBool:
		return 2
	case KindTime:
		return 3
	default:
		return 4
	}
}

// compareValues orders two non-NULL values: <0, 0, >0. NULL ordering is
// the sort operator's concern and never reaches here.
func compareValues(a, b Value) int {
	ca, cb := kindClass(a.Kind), kindClass(b.Kind)
	if ca != cb {
		return ca - cb
	}
	switch ca {
	case 0:
		fa, fb := a.asFloat(), b.asFloat()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 1:
		return strings.Compare(a.Str, b.Str)
	case 2:
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		}
		return 0
	case 3:
		switch {
		case a.Time.Before(b.Time):
			return -1
		case a.Time.After(b.Time):
			return 1
		}
		return 0
	default:
		return strings.Compare(a.String(), b.String())
	}
}

// =============================================================================
// FINGERPRINTS (row dedup)
// =============================================================================

// fingerprint hashes a value into the digest; structurally identical
// values produce identical digests. Each kind writes a distinct tag so
// e.g. the string "1" and the integer 1 never collide.
func (v Value) fingerprint(d *xxhash.Digest) {
	// Numbers share one tag: the integer 1 and the float 1.0 are equal
	// under valueEquals, so they must hash alike too.
	if v.isNumber() {
		_, _ = d.WriteString("num:")
		_, _ = d.WriteString(strconv.FormatFloat(v.asFloat(), 'g', -1, 64))
		return
	}
	_, _ = d.Write([]byte{byte(v.Kind)})
	switch v.Kind {
	case KindBool:
		if v.Bool {
			_, _ = d.WriteString("t")
		} else {
			_, _ = d.WriteString("f")
		}
	case KindString:
		_, _ = d.WriteString(v.Str)
	case KindList:
		_, _ = d.WriteString(strconv.Itoa(len(v.List)))
		for _, e := range v.List {
			e.fingerprint(d)
		}
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = d.WriteString(k)
			v.Map[k].fingerprint(d)
		}
	case KindNode:
		_, _ = d.WriteString(string(v.Node.ID))
	case KindRel:
		_, _ = d.WriteString(string(v.Rel.ID))
	case KindPath:
		for _, n := range v.Path.Nodes {
			_, _ = d.WriteString(string(n.ID))
		}
		for _, e := range v.Path.Edges {
			_, _ = d.WriteString(string(e.ID))
		}
	case KindPoint:
		_, _ = d.WriteString(fmt.Sprintf("%v,%v", v.Point.X, v.Point.Y))
	case KindTime:
		_, _ = d.WriteString(strconv.FormatInt(v.Time.UnixNano(), 10))
	}
}

// rowFingerprint hashes the given columns of a row, in order.
func rowFingerprint(row Row, columns []string) uint64 {
	d := xxhash.New()
	for _, col := range columns {
		v := row[col]
		v.fingerprint(d)
	}
	return d.Sum64()
}

// =============================================================================
// ROWS
// =============================================================================

// Row binds query variables (and projected aliases) to values. Operators
// extend rows immutably: bind copies before adding.
type Row map[string]Value

func (r Row) bind(name string, v Value) Row {
	out := make(Row, len(r)+1)
	for k, val := range r {
		out[k] = val
	}
	out[name] = v
	return out
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
