// Intermediate representation: the operator graph a query compiles to.
//
// Operators form a tree; each node owns its input(s). Expressions inside
// operators are AST expression nodes, validated by the compiler (unknown
// functions and arity mismatches are compile errors, so execution never
// sees them).
package cypher

// Plan is a compiled, executable query.
type Plan struct {
	Root    planOp
	Columns []string // output column order

	// ReadOnly is false when the plan contains Create/Set/Delete
	// operators; the caller uses it to decide rollback on failure.
	ReadOnly bool
}

// planOp is the operator variant marker.
type planOp interface{ op() }

// ScanOp produces one row per node carrying Label (all nodes when Label
// is empty), bound to Var. When IndexProperty is set the executor may
// resolve candidates through a property index instead of a label scan.
// A non-nil Input makes the scan a nested-loop product: every input row
// is repeated once per scanned node. Optional gives left-outer
// semantics: an input row with no matching node is emitted once with Var
// bound to NULL instead of being dropped.
type ScanOp struct {
	Input planOp

	Var         string
	Label       string
	ExtraLabels []string // labels beyond the first, checked per candidate

	// index hint lifted from an equality predicate in WHERE
	IndexProperty string
	IndexValue    Expression

	// inline property map from the pattern, checked per candidate
	Properties map[string]Expression

	Optional bool
}

// ExpandOp traverses one relationship hop (or a bounded multi-hop range)
// from SrcVar, binding EdgeVar/DstVar per match. Optional gives left-outer
// semantics: an input row with no matches is emitted once with NULL
// bindings instead of being dropped.
type ExpandOp struct {
	Input planOp

	SrcVar  string
	EdgeVar string
	DstVar  string

	Direction Direction
	Types     []string
	DstLabels []string
	DstProps  map[string]Expression

	MinHops int
	MaxHops int // 0 = unbounded when MinHops set by a var-length pattern

	VarLength bool
	Optional  bool
}

// FilterOp keeps rows whose predicate evaluates to true (ternary logic:
// false and NULL both drop the row).
type FilterOp struct {
	Input planOp
	Pred  Expression
}

// ProjectItem is one computed output column.
type ProjectItem struct {
	Alias string
	Expr  Expression
}

// ProjectOp computes the output columns. Rows keep their original
// bindings alongside the aliases so ORDER BY can reference either; the
// result stream trims to Plan.Columns.
type ProjectOp struct {
	Input    planOp
	Items    []ProjectItem
	Distinct bool
	Columns  []string
}

// AggFunc enumerates aggregate functions.
type AggFunc string

const (
	AggCount   AggFunc = "count"
	AggSum     AggFunc = "sum"
	AggAvg     AggFunc = "avg"
	AggMin     AggFunc = "min"
	AggMax     AggFunc = "max"
	AggCollect AggFunc = "collect"
)

// AggItem is one aggregate output column.
type AggItem struct {
	Alias    string
	Func     AggFunc
	Arg      Expression // nil for count(*)
	Distinct bool
	Star     bool
}

// AggregateOp partitions rows by the group items and computes the
// aggregates per partition.
type AggregateOp struct {
	Input    planOp
	GroupBy  []ProjectItem
	Aggs     []AggItem
	Columns  []string
	Distinct bool
}

// SortKey is one pre-evaluated ORDER BY key.
type SortKey struct {
	Expr       Expression
	Descending bool
}

// SortOp is a stable multi-key sort. NULL keys sort last regardless of
// direction.
type SortOp struct {
	Input planOp
	Keys  []SortKey
}

// SkipOp drops the first N rows.
type SkipOp struct {
	Input planOp
	Count Expression
}

// LimitOp stops after N rows.
type LimitOp struct {
	Input planOp
	Count Expression
}

// UnionOp concatenates two streams with identical column arity. Columns
// align positionally: right-side rows are rebound from RightColumns to
// Columns before they flow on. Without All, duplicate rows (by full-row
// equality over the output columns) are dropped.
type UnionOp struct {
	Left         planOp
	Right        planOp
	All          bool
	Columns      []string
	RightColumns []string
}

// CreateOp instantiates a pattern once per input row (or exactly once
// when Input is nil).
type CreateOp struct {
	Input   planOp
	Pattern *Pattern
}

// DeleteOp removes the entities bound to Vars. Without Detach, deleting
// a node with incident relationships fails the query.
type DeleteOp struct {
	Input  planOp
	Vars   []string
	Detach bool
}

// SetOp applies property assignments and label additions per row.
type SetOp struct {
	Input planOp
	Items []SetItem
}

func (*ScanOp) op()      {}
func (*ExpandOp) op()    {}
func (*FilterOp) op()    {}
func (*ProjectOp) op()   {}
func (*AggregateOp) op() {}
func (*SortOp) op()      {}
func (*SkipOp) op()      {}
func (*LimitOp) op()     {}
func (*UnionOp) op()     {}
func (*CreateOp) op()    {}
func (*DeleteOp) op()    {}
func (*SetOp) op()       {}
