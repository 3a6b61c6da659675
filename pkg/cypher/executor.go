// Pull-based plan execution.
//
// Each operator compiles to an iterator; Next pulls one row at a time
// from the operator's input, so LIMIT and early errors stop upstream
// work. Sort, aggregate and distinct-union are the pipeline breakers
// that materialize their input.
package cypher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/orneryd/runedb/pkg/storage"
)

// iterator is the pull interface every operator implements. Next returns
// the next row, or ok=false at end of stream.
type iterator interface {
	Next() (Row, bool, error)
}

// Rows streams the results of an executed plan.
type Rows struct {
	Columns []string

	ctx  context.Context
	it   iterator
	done bool
}

// Next returns the next result row, trimmed to the output columns.
func (r *Rows) Next() ([]Value, bool, error) {
	if r.done {
		return nil, false, nil
	}
	if err := r.ctx.Err(); err != nil {
		r.done = true
		return nil, false, err
	}
	row, ok, err := r.it.Next()
	if err != nil || !ok {
		r.done = true
		return nil, false, err
	}
	out := make([]Value, len(r.Columns))
	for i, col := range r.Columns {
		out[i] = row[col]
	}
	return out, true, nil
}

// Collect drains the stream into a slice.
func (r *Rows) Collect() ([][]Value, error) {
	var out [][]Value
	for {
		row, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

// Execute runs a compiled plan inside the given transaction. Parameters
// are converted to runtime values up front. Write operators buffer their
// effects in the transaction; committing is the caller's decision.
func Execute(ctx context.Context, plan *Plan, tx *storage.Tx, params map[string]any) (*Rows, error) {
	ec := &evalContext{params: make(map[string]Value, len(params))}
	for k, v := range params {
		ec.params[k] = FromAny(v)
	}
	ex := &executor{ctx: ctx, tx: tx, ec: ec}
	it, err := ex.build(plan.Root)
	if err != nil {
		return nil, err
	}
	return &Rows{Columns: plan.Columns, ctx: ctx, it: it}, nil
}

type executor struct {
	ctx context.Context
	tx  *storage.Tx
	ec  *evalContext
}

func (ex *executor) build(op planOp) (iterator, error) {
	switch t := op.(type) {
	case nil:
		return &onceIter{}, nil
	case *ScanOp:
		input, err := ex.buildInput(t.Input)
		if err != nil {
			return nil, err
		}
		return &scanIter{ex: ex, op: t, input: input}, nil
	case *ExpandOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		return &expandIter{ex: ex, op: t, input: input}, nil
	case *FilterOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		return &filterIter{ex: ex, pred: t.Pred, input: input}, nil
	case *ProjectOp:
		input, err := ex.buildInput(t.Input)
		if err != nil {
			return nil, err
		}
		it := iterator(&projectIter{ex: ex, op: t, input: input})
		if t.Distinct {
			it = &distinctIter{input: it, columns: t.Columns, seen: map[uint64]bool{}}
		}
		return it, nil
	case *AggregateOp:
		input, err := ex.buildInput(t.Input)
		if err != nil {
			return nil, err
		}
		it := iterator(&aggregateIter{ex: ex, op: t, input: input})
		if t.Distinct {
			it = &distinctIter{input: it, columns: t.Columns, seen: map[uint64]bool{}}
		}
		return it, nil
	case *SortOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		return &sortIter{ex: ex, keys: t.Keys, input: input}, nil
	case *SkipOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		n, err := ex.resolveCount(t.Count, "SKIP")
		if err != nil {
			return nil, err
		}
		return &skipIter{input: input, n: n}, nil
	case *LimitOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		n, err := ex.resolveCount(t.Count, "LIMIT")
		if err != nil {
			return nil, err
		}
		return &limitIter{input: input, n: n}, nil
	case *UnionOp:
		left, err := ex.build(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := ex.build(t.Right)
		if err != nil {
			return nil, err
		}
		it := iterator(&unionIter{left: left, right: right, columns: t.Columns, rightColumns: t.RightColumns})
		if !t.All {
			it = &distinctIter{input: it, columns: t.Columns, seen: map[uint64]bool{}}
		}
		return it, nil
	case *CreateOp:
		input, err := ex.buildInput(t.Input)
		if err != nil {
			return nil, err
		}
		return &createIter{ex: ex, pattern: t.Pattern, input: input}, nil
	case *DeleteOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		return &deleteIter{
			ex: ex, vars: t.Vars, detach: t.Detach, input: input,
			doneNodes: map[storage.NodeID]bool{}, doneEdges: map[storage.EdgeID]bool{},
		}, nil
	case *SetOp:
		input, err := ex.build(t.Input)
		if err != nil {
			return nil, err
		}
		return &setIter{ex: ex, items: t.Items, input: input}, nil
	}
	return nil, fmt.Errorf("unsupported plan operator %T", op)
}

// buildInput is build with a nil input mapped to the single-empty-row
// source, for operators that start a pipeline.
func (ex *executor) buildInput(op planOp) (iterator, error) {
	if op == nil {
		return &onceIter{}, nil
	}
	return ex.build(op)
}

func (ex *executor) resolveCount(e Expression, clause string) (int64, error) {
	v, err := evalExpr(e, Row{}, ex.ec)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindInt || v.Int < 0 {
		return 0, typeErrorf(clause, "expected a non-negative integer, got %s", v.String())
	}
	return v.Int, nil
}

// onceIter yields one empty row, seeding pipelines that have no reading
// clause.
type onceIter struct{ used bool }

func (it *onceIter) Next() (Row, bool, error) {
	if it.used {
		return nil, false, nil
	}
	it.used = true
	return Row{}, true, nil
}

// =============================================================================
// SCAN
// =============================================================================

type scanIter struct {
	ex    *executor
	op    *ScanOp
	input iterator

	nodes   []*storage.Node
	loaded  bool
	row     Row
	idx     int
	matched bool
}

// load fetches the candidate set once: through the property index when
// the compiler lifted an equality hint and such an index exists,
// otherwise a label scan. The hint's predicate stays in the plan as a
// filter, so falling back never changes results.
func (it *scanIter) load() error {
	if it.loaded {
		return nil
	}
	it.loaded = true
	if it.op.IndexProperty != "" {
		value, err := evalExpr(it.op.IndexValue, Row{}, it.ex.ec)
		if err != nil {
			return err
		}
		nodes, err := it.ex.tx.LookupIndexed(it.op.Label, it.op.IndexProperty, value.ToAny())
		if err == nil {
			it.nodes = nodes
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		// no index covers label+property: plain label scan below
	}
	nodes, err := it.ex.tx.NodesByLabel(it.op.Label)
	if err != nil {
		return err
	}
	it.nodes = nodes
	return nil
}

func (it *scanIter) Next() (Row, bool, error) {
	if err := it.load(); err != nil {
		return nil, false, err
	}
	for {
		if it.row == nil {
			row, ok, err := it.input.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			it.row = row
			it.idx = 0
			it.matched = false
		}
		for it.idx < len(it.nodes) {
			node := it.nodes[it.idx]
			it.idx++
			if !hasAllLabels(node, it.op.ExtraLabels) {
				continue
			}
			match, err := nodeMatchesProps(node, it.op.Properties, it.row, it.ex.ec)
			if err != nil {
				return nil, false, err
			}
			if match {
				it.matched = true
				return it.row.bind(it.op.Var, NodeValue(node)), true, nil
			}
		}
		row := it.row
		it.row = nil
		if it.op.Optional && !it.matched {
			return row.bind(it.op.Var, Null()), true, nil
		}
	}
}

func hasAllLabels(node *storage.Node, labels []string) bool {
	for _, l := range labels {
		if !hasLabel(node, l) {
			return false
		}
	}
	return true
}

func nodeMatchesProps(node *storage.Node, props map[string]Expression, row Row, ec *evalContext) (bool, error) {
	for key, expr := range props {
		want, err := evalExpr(expr, row, ec)
		if err != nil {
			return false, err
		}
		have := FromAny(node.Properties[key])
		if want.IsNull() || have.IsNull() || !valueEquals(have, want) {
			return false, nil
		}
	}
	return true, nil
}

func edgeMatchesProps(edge *storage.Edge, props map[string]Expression, row Row, ec *evalContext) (bool, error) {
	for key, expr := range props {
		want, err := evalExpr(expr, row, ec)
		if err != nil {
			return false, err
		}
		have := FromAny(edge.Properties[key])
		if want.IsNull() || have.IsNull() || !valueEquals(have, want) {
			return false, nil
		}
	}
	return true, nil
}

// =============================================================================
// EXPAND
// =============================================================================

type expandIter struct {
	ex    *executor
	op    *ExpandOp
	input iterator

	pending []Row
}

func (it *expandIter) Next() (Row, bool, error) {
	for {
		if len(it.pending) > 0 {
			row := it.pending[0]
			it.pending = it.pending[1:]
			return row, true, nil
		}
		row, ok, err := it.input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		matches, err := it.expandRow(row)
		if err != nil {
			return nil, false, err
		}
		if len(matches) == 0 {
			if it.op.Optional {
				return it.nullRow(row), true, nil
			}
			continue
		}
		it.pending = matches
	}
}

// nullRow extends the input row with NULL for every variable this hop
// would have introduced; variables already bound keep their value.
func (it *expandIter) nullRow(row Row) Row {
	out := row.clone()
	if _, bound := out[it.op.EdgeVar]; !bound {
		out[it.op.EdgeVar] = Null()
	}
	if _, bound := out[it.op.DstVar]; !bound {
		out[it.op.DstVar] = Null()
	}
	return out
}

func (it *expandIter) expandRow(row Row) ([]Row, error) {
	src, ok := row[it.op.SrcVar]
	if !ok || src.IsNull() {
		return nil, nil
	}
	if src.Kind != KindNode {
		return nil, typeErrorf("MATCH", "cannot expand from %s binding %q", kindName(src.Kind), it.op.SrcVar)
	}
	if it.op.VarLength {
		return it.expandVarLength(row, src.Node)
	}
	return it.expandSingle(row, src.Node)
}

// hop is one traversable edge with the node it leads to.
type hop struct {
	edge *storage.Edge
	dst  storage.NodeID
}

func (it *expandIter) hops(from storage.NodeID) ([]hop, error) {
	var hops []hop
	seen := map[storage.EdgeID]bool{}
	if it.op.Direction == DirOutgoing || it.op.Direction == DirBoth {
		edges, err := it.ex.tx.Outgoing(from)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if it.typeMatches(e.Type) && !seen[e.ID] {
				seen[e.ID] = true
				hops = append(hops, hop{edge: e, dst: e.EndNode})
			}
		}
	}
	if it.op.Direction == DirIncoming || it.op.Direction == DirBoth {
		edges, err := it.ex.tx.Incoming(from)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if it.typeMatches(e.Type) && !seen[e.ID] {
				seen[e.ID] = true
				hops = append(hops, hop{edge: e, dst: e.StartNode})
			}
		}
	}
	return hops, nil
}

func (it *expandIter) typeMatches(typ string) bool {
	if len(it.op.Types) == 0 {
		return true
	}
	for _, t := range it.op.Types {
		if t == typ {
			return true
		}
	}
	return false
}

// destAccepts checks destination label / property / rebinding
// constraints against a candidate end node.
func (it *expandIter) destAccepts(row Row, node *storage.Node) (bool, error) {
	if bound, ok := row[it.op.DstVar]; ok {
		if bound.Kind != KindNode || bound.Node.ID != node.ID {
			return false, nil
		}
	}
	for _, label := range it.op.DstLabels {
		if !hasLabel(node, label) {
			return false, nil
		}
	}
	return nodeMatchesProps(node, it.op.DstProps, row, it.ex.ec)
}

func hasLabel(node *storage.Node, label string) bool {
	for _, l := range node.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (it *expandIter) expandSingle(row Row, src *storage.Node) ([]Row, error) {
	hops, err := it.hops(src.ID)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, h := range hops {
		dst, err := it.ex.tx.GetNode(h.dst)
		if err != nil {
			return nil, err
		}
		accept, err := it.destAccepts(row, dst)
		if err != nil {
			return nil, err
		}
		if !accept {
			continue
		}
		next := row.bind(it.op.EdgeVar, RelValue(h.edge))
		next[it.op.DstVar] = NodeValue(dst)
		out = append(out, next)
	}
	return out, nil
}

// expandVarLength walks paths of MinHops..MaxHops edges depth-first,
// never reusing an edge within one path. The edge variable binds to the
// list of traversed relationships.
func (it *expandIter) expandVarLength(row Row, src *storage.Node) ([]Row, error) {
	var out []Row
	usedEdges := map[storage.EdgeID]bool{}
	var pathEdges []Value

	var walk func(node *storage.Node, depth int) error
	walk = func(node *storage.Node, depth int) error {
		if depth >= it.op.MinHops {
			accept, err := it.destAccepts(row, node)
			if err != nil {
				return err
			}
			if accept {
				edges := make([]Value, len(pathEdges))
				copy(edges, pathEdges)
				next := row.bind(it.op.EdgeVar, ListValue(edges))
				next[it.op.DstVar] = NodeValue(node)
				out = append(out, next)
			}
		}
		if it.op.MaxHops != 0 && depth >= it.op.MaxHops {
			return nil
		}
		hops, err := it.hops(node.ID)
		if err != nil {
			return err
		}
		for _, h := range hops {
			if usedEdges[h.edge.ID] {
				continue
			}
			dst, err := it.ex.tx.GetNode(h.dst)
			if err != nil {
				return err
			}
			usedEdges[h.edge.ID] = true
			pathEdges = append(pathEdges, RelValue(h.edge))
			if err := walk(dst, depth+1); err != nil {
				return err
			}
			pathEdges = pathEdges[:len(pathEdges)-1]
			delete(usedEdges, h.edge.ID)
		}
		return nil
	}

	if err := walk(src, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// FILTER / PROJECT / DISTINCT
// =============================================================================

type filterIter struct {
	ex    *executor
	pred  Expression
	input iterator
}

func (it *filterIter) Next() (Row, bool, error) {
	for {
		row, ok, err := it.input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		keep, err := evalPredicate(it.pred, row, it.ex.ec)
		if err != nil {
			return nil, false, err
		}
		if keep {
			return row, true, nil
		}
	}
}

// projectIter computes the aliases on top of the existing bindings, so a
// later sort can reference either. The result stream trims to the plan
// columns.
type projectIter struct {
	ex    *executor
	op    *ProjectOp
	input iterator
}

func (it *projectIter) Next() (Row, bool, error) {
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := row.clone()
	for _, item := range it.op.Items {
		v, err := evalExpr(item.Expr, row, it.ex.ec)
		if err != nil {
			return nil, false, err
		}
		out[item.Alias] = v
	}
	return out, true, nil
}

type distinctIter struct {
	input   iterator
	columns []string
	seen    map[uint64]bool
}

func (it *distinctIter) Next() (Row, bool, error) {
	for {
		row, ok, err := it.input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		key := rowFingerprint(row, it.columns)
		if it.seen[key] {
			continue
		}
		it.seen[key] = true
		return row, true, nil
	}
}

// =============================================================================
// AGGREGATE
// =============================================================================

type aggregateIter struct {
	ex    *executor
	op    *AggregateOp
	input iterator

	groups []Row
	built  bool
	idx    int
}

type aggGroup struct {
	keys Row
	accs []aggAccumulator
}

func (it *aggregateIter) run() error {
	order := []uint64{}
	groups := map[uint64]*aggGroup{}

	for {
		row, ok, err := it.input.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		keys := Row{}
		d := xxhash.New()
		for _, item := range it.op.GroupBy {
			v, err := evalExpr(item.Expr, row, it.ex.ec)
			if err != nil {
				return err
			}
			keys[item.Alias] = v
			v.fingerprint(d)
		}
		fp := d.Sum64()

		g, ok := groups[fp]
		if !ok {
			g = &aggGroup{keys: keys, accs: make([]aggAccumulator, len(it.op.Aggs))}
			for i, item := range it.op.Aggs {
				g.accs[i] = newAccumulator(item)
			}
			groups[fp] = g
			order = append(order, fp)
		}

		for i, item := range it.op.Aggs {
			var v Value
			if item.Star {
				v = BoolValue(true)
			} else {
				v, err = evalExpr(item.Arg, row, it.ex.ec)
				if err != nil {
					return err
				}
			}
			if err := g.accs[i].add(v); err != nil {
				return err
			}
		}
	}

	// A grand aggregate (no group keys) over an empty input still
	// produces one row: count 0, sum 0, avg NULL, collect [].
	if len(order) == 0 && len(it.op.GroupBy) == 0 {
		g := &aggGroup{keys: Row{}, accs: make([]aggAccumulator, len(it.op.Aggs))}
		for i, item := range it.op.Aggs {
			g.accs[i] = newAccumulator(item)
		}
		groups[0] = g
		order = append(order, 0)
	}

	for _, fp := range order {
		g := groups[fp]
		row := g.keys.clone()
		for i, item := range it.op.Aggs {
			row[item.Alias] = g.accs[i].result()
		}
		it.groups = append(it.groups, row)
	}
	return nil
}

func (it *aggregateIter) Next() (Row, bool, error) {
	if !it.built {
		it.built = true
		if err := it.run(); err != nil {
			return nil, false, err
		}
	}
	if it.idx >= len(it.groups) {
		return nil, false, nil
	}
	row := it.groups[it.idx]
	it.idx++
	return row, true, nil
}

// =============================================================================
// SORT / SKIP / LIMIT / UNION
// =============================================================================

type sortIter struct {
	ex    *executor
	keys  []SortKey
	input iterator

	rows  []Row
	built bool
	idx   int
}

func (it *sortIter) run() error {
	type keyed struct {
		row  Row
		keys []Value
	}
	var all []keyed
	for {
		row, ok, err := it.input.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		keys := make([]Value, len(it.keys))
		for i, k := range it.keys {
			v, err := evalExpr(k.Expr, row, it.ex.ec)
			if err != nil {
				return err
			}
			keys[i] = v
		}
		all = append(all, keyed{row: row, keys: keys})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		for k, key := range it.keys {
			av, bv := a.keys[k], b.keys[k]
			// NULL keys always sort after non-NULL, regardless of
			// direction.
			switch {
			case av.IsNull() && bv.IsNull():
				continue
			case av.IsNull():
				return false
			case bv.IsNull():
				return true
			}
			cmp := compareValues(av, bv)
			if key.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})

	it.rows = make([]Row, len(all))
	for i, k := range all {
		it.rows[i] = k.row
	}
	return nil
}

func (it *sortIter) Next() (Row, bool, error) {
	if !it.built {
		it.built = true
		if err := it.run(); err != nil {
			return nil, false, err
		}
	}
	if it.idx >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.idx]
	it.idx++
	return row, true, nil
}

type skipIter struct {
	input   iterator
	n       int64
	skipped int64
}

func (it *skipIter) Next() (Row, bool, error) {
	for it.skipped < it.n {
		_, ok, err := it.input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		it.skipped++
	}
	return it.input.Next()
}

type limitIter struct {
	input iterator
	n     int64
	count int64
}

func (it *limitIter) Next() (Row, bool, error) {
	if it.count >= it.n {
		return nil, false, nil
	}
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	it.count++
	return row, true, nil
}

type unionIter struct {
	left         iterator
	right        iterator
	columns      []string
	rightColumns []string
	onRight      bool
}

func (it *unionIter) Next() (Row, bool, error) {
	if !it.onRight {
		row, ok, err := it.left.Next()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return row, true, nil
		}
		it.onRight = true
	}
	row, ok, err := it.right.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	// Right-side rows rebind to the left's column names so the output
	// aligns positionally.
	out := make(Row, len(it.columns))
	for i, col := range it.columns {
		out[col] = row[it.rightColumns[i]]
	}
	return out, true, nil
}

// =============================================================================
// WRITES
// =============================================================================

type createIter struct {
	ex      *executor
	pattern *Pattern
	input   iterator
}

func (it *createIter) Next() (Row, bool, error) {
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := row.clone()
	for _, path := range it.pattern.Paths {
		if err := it.createPath(out, path); err != nil {
			return nil, false, err
		}
	}
	return out, true, nil
}

// createPath instantiates one pattern path, reusing bound node variables
// and creating the rest.
func (it *createIter) createPath(row Row, path *PatternPath) error {
	nodes := make([]*storage.Node, len(path.Nodes))
	for i, np := range path.Nodes {
		node, err := it.resolveNode(row, np)
		if err != nil {
			return err
		}
		nodes[i] = node
	}
	for i, rp := range path.Rels {
		props, err := it.evalProps(row, rp.Properties)
		if err != nil {
			return err
		}
		start, end := nodes[i], nodes[i+1]
		if rp.Direction == DirIncoming {
			start, end = end, start
		}
		edge := &storage.Edge{
			StartNode:  start.ID,
			EndNode:    end.ID,
			Type:       rp.Types[0],
			Properties: props,
		}
		if err := it.ex.tx.CreateEdge(edge); err != nil {
			return err
		}
		if rp.Variable != "" {
			row[rp.Variable] = RelValue(edge)
		}
	}
	return nil
}

func (it *createIter) resolveNode(row Row, np *NodePattern) (*storage.Node, error) {
	if np.Variable != "" {
		if v, ok := row[np.Variable]; ok {
			if v.Kind != KindNode {
				return nil, typeErrorf("CREATE", "variable %q is bound to %s, expected a node",
					np.Variable, kindName(v.Kind))
			}
			return v.Node, nil
		}
	}
	props, err := it.evalProps(row, np.Properties)
	if err != nil {
		return nil, err
	}
	node := &storage.Node{Labels: np.Labels, Properties: props}
	if err := it.ex.tx.CreateNode(node); err != nil {
		return nil, err
	}
	if np.Variable != "" {
		row[np.Variable] = NodeValue(node)
	}
	return node, nil
}

func (it *createIter) evalProps(row Row, props map[string]Expression) (map[string]any, error) {
	if len(props) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(props))
	for key, expr := range props {
		v, err := evalExpr(expr, row, it.ex.ec)
		if err != nil {
			return nil, err
		}
		out[key] = v.ToAny()
	}
	return out, nil
}

type deleteIter struct {
	ex     *executor
	vars   []string
	detach bool
	input  iterator

	doneNodes map[storage.NodeID]bool
	doneEdges map[storage.EdgeID]bool
}

func (it *deleteIter) Next() (Row, bool, error) {
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	for _, name := range it.vars {
		v := row[name]
		switch v.Kind {
		case KindNull:
		case KindNode:
			if it.doneNodes[v.Node.ID] {
				continue
			}
			it.doneNodes[v.Node.ID] = true
			if err := it.ex.tx.DeleteNode(v.Node.ID, it.detach); err != nil {
				return nil, false, err
			}
		case KindRel:
			if it.doneEdges[v.Rel.ID] {
				continue
			}
			it.doneEdges[v.Rel.ID] = true
			if err := it.ex.tx.DeleteEdge(v.Rel.ID); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, typeErrorf("DELETE", "variable %q is bound to %s, expected a node or relationship",
				name, kindName(v.Kind))
		}
	}
	return row, true, nil
}

type setIter struct {
	ex    *executor
	items []SetItem
	input iterator
}

func (it *setIter) Next() (Row, bool, error) {
	row, ok, err := it.input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := row.clone()
	for _, item := range it.items {
		if err := it.apply(out, item); err != nil {
			return nil, false, err
		}
	}
	return out, true, nil
}

func (it *setIter) apply(row Row, item SetItem) error {
	v := row[item.Variable]
	if v.IsNull() {
		return nil
	}
	switch v.Kind {
	case KindNode:
		node := storage.CopyNode(v.Node)
		if item.Label != "" {
			if !hasLabel(node, item.Label) {
				node.Labels = append(node.Labels, item.Label)
			}
		} else {
			val, err := evalExpr(item.Value, row, it.ex.ec)
			if err != nil {
				return err
			}
			if node.Properties == nil {
				node.Properties = map[string]any{}
			}
			if val.IsNull() {
				delete(node.Properties, item.Property)
			} else {
				node.Properties[item.Property] = val.ToAny()
			}
		}
		if err := it.ex.tx.UpdateNode(node); err != nil {
			return err
		}
		row[item.Variable] = NodeValue(node)
		return nil
	case KindRel:
		if item.Label != "" {
			return typeErrorf("SET", "cannot add a label to relationship %q", item.Variable)
		}
		edge := storage.CopyEdge(v.Rel)
		val, err := evalExpr(item.Value, row, it.ex.ec)
		if err != nil {
			return err
		}
		if edge.Properties == nil {
			edge.Properties = map[string]any{}
		}
		if val.IsNull() {
			delete(edge.Properties, item.Property)
		} else {
			edge.Properties[item.Property] = val.ToAny()
		}
		if err := it.ex.tx.UpdateEdge(edge); err != nil {
			return err
		}
		row[item.Variable] = RelValue(edge)
		return nil
	}
	return typeErrorf("SET", "variable %q is bound to %s, expected a node or relationship",
		item.Variable, kindName(v.Kind))
}
