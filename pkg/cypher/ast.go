// Abstract syntax tree for the supported query grammar.
//
// A Query is one or more SingleQuery parts joined by UNION / UNION ALL.
// Each SingleQuery is a clause list in source order: reading clauses
// (MATCH, OPTIONAL MATCH, WHERE) followed by writing clauses (CREATE,
// SET, DELETE) and/or a RETURN with its ORDER BY / SKIP / LIMIT tail.
package cypher

// Query is a complete parsed statement.
type Query struct {
	First  *SingleQuery
	Unions []*UnionPart
}

// UnionPart is one UNION [ALL] continuation.
type UnionPart struct {
	All   bool
	Query *SingleQuery
}

// SingleQuery is one union-free query part.
type SingleQuery struct {
	Clauses []Clause
}

// Clause is a marker interface over the clause variants.
type Clause interface{ clause() }

// MatchClause is MATCH or OPTIONAL MATCH with an optional WHERE.
type MatchClause struct {
	Optional bool
	Pattern  *Pattern
	Where    Expression // nil when absent
}

// CreateClause is CREATE with a pattern to instantiate.
type CreateClause struct {
	Pattern *Pattern
}

// DeleteClause is DELETE or DETACH DELETE over bound variables.
type DeleteClause struct {
	Detach    bool
	Variables []string
}

// SetClause assigns properties or adds labels.
type SetClause struct {
	Items []SetItem
}

// SetItem is one assignment: `n.prop = expr` or `n:Label`.
type SetItem struct {
	Variable string
	Property string     // empty for a label addition
	Label    string     // set when adding a label
	Value    Expression // nil for a label addition
}

// ReturnClause is RETURN with its projection list and tail modifiers.
type ReturnClause struct {
	Distinct bool
	Items    []ReturnItem
	OrderBy  []SortItem
	Skip     Expression // nil when absent
	Limit    Expression // nil when absent
}

// ReturnItem is one projected expression with its output name.
type ReturnItem struct {
	Expr  Expression
	Alias string // explicit AS alias, or the rendered expression text
}

// SortItem is one ORDER BY key.
type SortItem struct {
	Expr       Expression
	Descending bool
}

func (*MatchClause) clause()  {}
func (*CreateClause) clause() {}
func (*DeleteClause) clause() {}
func (*SetClause) clause()    {}
func (*ReturnClause) clause() {}

// =============================================================================
// PATTERNS
// =============================================================================

// Pattern is a comma-separated list of pattern paths.
type Pattern struct {
	Paths []*PatternPath
}

// PatternPath is one linear node-rel-node-... chain.
type PatternPath struct {
	Nodes []*NodePattern // len(Nodes) == len(Rels)+1
	Rels  []*RelPattern
}

// NodePattern is `(v:Label1:Label2 {prop: expr})`, all parts optional.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties map[string]Expression
}

// Direction of one relationship hop, as drawn in the pattern.
type Direction int

const (
	DirBoth     Direction = iota // -[]-
	DirOutgoing                  // -[]->
	DirIncoming                  // <-[]-
)

// RelPattern is `-[v:TYPE|OTHER*1..3 {prop: expr}]->` and friends.
type RelPattern struct {
	Variable   string
	Types      []string
	Direction  Direction
	Properties map[string]Expression

	// Variable-length bounds; nil means an unadorned single hop.
	MinHops *int
	MaxHops *int
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

// Expression is a marker interface over expression variants.
type Expression interface{ expr() }

// BinaryOp enumerates infix operators.
type BinaryOp string

const (
	OpEq         BinaryOp = "="
	OpNeq        BinaryOp = "<>"
	OpLt         BinaryOp = "<"
	OpLte        BinaryOp = "<="
	OpGt         BinaryOp = ">"
	OpGte        BinaryOp = ">="
	OpAdd        BinaryOp = "+"
	OpSub        BinaryOp = "-"
	OpMul        BinaryOp = "*"
	OpDiv        BinaryOp = "/"
	OpMod        BinaryOp = "%"
	OpAnd        BinaryOp = "AND"
	OpOr         BinaryOp = "OR"
	OpXor        BinaryOp = "XOR"
	OpIn         BinaryOp = "IN"
	OpContains   BinaryOp = "CONTAINS"
	OpStartsWith BinaryOp = "STARTS WITH"
	OpEndsWith   BinaryOp = "ENDS WITH"
)

// BinaryExpr is `left OP right`.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// UnaryExpr is `NOT x` or `-x`.
type UnaryExpr struct {
	Op string // "NOT" or "-"
	X  Expression
}

// Literal is a constant: nil, bool, int64, float64 or string.
type Literal struct {
	Value any
}

// Variable references a bound query variable.
type Variable struct {
	Name string
}

// PropertyAccess is `subject.key`.
type PropertyAccess struct {
	Subject Expression
	Key     string
}

// Parameter is `$name`, resolved from the caller's parameter map.
type Parameter struct {
	Name string
}

// FunctionCall is `name(args)`, `name(DISTINCT arg)` or `count(*)`.
type FunctionCall struct {
	Name     string // lower-cased
	Distinct bool
	Star     bool
	Args     []Expression
}

// ListExpr is `[a, b, c]`.
type ListExpr struct {
	Items []Expression
}

// MapExpr is `{k: v, ...}`.
type MapExpr struct {
	Keys   []string
	Values []Expression
}

// IsNullExpr is `x IS NULL` / `x IS NOT NULL`.
type IsNullExpr struct {
	X   Expression
	Not bool
}

// CaseWhen is one WHEN...THEN arm.
type CaseWhen struct {
	Cond   Expression
	Result Expression
}

// CaseExpr covers both forms: Subject non-nil for the simple form
// (subject compared to each WHEN value), nil for the searched form
// (each WHEN is a boolean predicate). A missing ELSE yields NULL.
type CaseExpr struct {
	Subject Expression
	Whens   []CaseWhen
	Else    Expression
}

func (*BinaryExpr) expr()     {}
func (*UnaryExpr) expr()      {}
func (*Literal) expr()        {}
func (*Variable) expr()       {}
func (*PropertyAccess) expr() {}
func (*Parameter) expr()      {}
func (*FunctionCall) expr()   {}
func (*ListExpr) expr()       {}
func (*MapExpr) expr()        {}
func (*IsNullExpr) expr()     {}
func (*CaseExpr) expr()       {}
