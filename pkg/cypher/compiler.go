package cypher

import (
	"fmt"
	"strings"
)

// Compile lowers a parsed query into an executable plan.
//
// Lowering walks the clause list in source order, threading a growing
// operator chain and the set of bound variables. Each MATCH path adds a
// scan for its first unbound node plus one expand per hop; WHERE becomes
// a filter after the whole chain (with an equality conjunct lifted into
// the scan as an index hint when one applies); RETURN becomes either a
// projection or an aggregation depending on whether any item aggregates.
func Compile(q *Query) (*Plan, error) {
	c := &compiler{}
	plan, err := c.compileSingle(q.First)
	if err != nil {
		return nil, err
	}
	for _, part := range q.Unions {
		c2 := &compiler{}
		right, err := c2.compileSingle(part.Query)
		if err != nil {
			return nil, err
		}
		if len(right.Columns) != len(plan.Columns) {
			return nil, compileErrorf("UNION requires the same number of columns on both sides: %d vs %d",
				len(plan.Columns), len(right.Columns))
		}
		plan = &Plan{
			Root: &UnionOp{
				Left: plan.Root, Right: right.Root, All: part.All,
				Columns: plan.Columns, RightColumns: right.Columns,
			},
			Columns:  plan.Columns,
			ReadOnly: plan.ReadOnly && right.ReadOnly,
		}
	}
	return plan, nil
}

type compiler struct {
	bound  map[string]bool
	anonID int
}

func (c *compiler) compileSingle(sq *SingleQuery) (*Plan, error) {
	c.bound = map[string]bool{}
	var (
		chain    planOp
		columns  []string
		readOnly = true
	)

	for _, clause := range sq.Clauses {
		switch cl := clause.(type) {
		case *MatchClause:
			var err error
			chain, err = c.compileMatch(chain, cl)
			if err != nil {
				return nil, err
			}

		case *CreateClause:
			if err := c.validateCreate(cl.Pattern); err != nil {
				return nil, err
			}
			chain = &CreateOp{Input: chain, Pattern: cl.Pattern}
			c.bindPatternVars(cl.Pattern)
			readOnly = false

		case *DeleteClause:
			for _, v := range cl.Variables {
				if !c.bound[v] {
					return nil, compileErrorf("DELETE references unbound variable %q", v)
				}
			}
			chain = &DeleteOp{Input: chain, Vars: cl.Variables, Detach: cl.Detach}
			readOnly = false

		case *SetClause:
			for _, item := range cl.Items {
				if !c.bound[item.Variable] {
					return nil, compileErrorf("SET references unbound variable %q", item.Variable)
				}
				if item.Value != nil {
					if err := c.validateExpr(item.Value); err != nil {
						return nil, err
					}
				}
			}
			chain = &SetOp{Input: chain, Items: cl.Items}
			readOnly = false

		case *ReturnClause:
			var err error
			chain, columns, err = c.compileReturn(chain, cl)
			if err != nil {
				return nil, err
			}
		}
	}

	return &Plan{Root: chain, Columns: columns, ReadOnly: readOnly}, nil
}

// =============================================================================
// MATCH
// =============================================================================

func (c *compiler) compileMatch(chain planOp, cl *MatchClause) (planOp, error) {
	// Scans created for this clause, by variable, so a WHERE equality
	// conjunct can be lifted into the matching scan as an index hint.
	scans := map[string]*ScanOp{}

	for _, path := range cl.Pattern.Paths {
		first := path.Nodes[0]
		srcVar := first.Variable
		if srcVar == "" {
			srcVar = c.anonVar()
		}

		if !c.bound[srcVar] {
			label := ""
			if len(first.Labels) > 0 {
				label = first.Labels[0]
			}
			if err := c.validateProps(first.Properties); err != nil {
				return nil, err
			}
			scan := &ScanOp{Input: chain, Var: srcVar, Label: label, Properties: first.Properties, Optional: cl.Optional}
			if len(first.Labels) > 1 {
				scan.ExtraLabels = first.Labels[1:]
			}
			chain = scan
			c.bound[srcVar] = true
			scans[srcVar] = scan
		} else if len(first.Labels) > 0 || len(first.Properties) > 0 {
			// Re-used variable with extra constraints in this pattern.
			var err error
			chain, err = c.boundNodeFilter(chain, srcVar, first.Labels, first.Properties)
			if err != nil {
				return nil, err
			}
		}

		for i, rel := range path.Rels {
			dst := path.Nodes[i+1]
			dstVar := dst.Variable
			if dstVar == "" {
				dstVar = c.anonVar()
			}
			edgeVar := rel.Variable
			if edgeVar == "" {
				edgeVar = c.anonVar()
			}
			if err := c.validateProps(rel.Properties); err != nil {
				return nil, err
			}
			if err := c.validateProps(dst.Properties); err != nil {
				return nil, err
			}

			minHops, maxHops, varLength := 1, 1, false
			if rel.MinHops != nil || rel.MaxHops != nil {
				varLength = true
				minHops = 1
				if rel.MinHops != nil {
					minHops = *rel.MinHops
				}
				maxHops = 0
				if rel.MaxHops != nil {
					maxHops = *rel.MaxHops
				}
				if maxHops != 0 && maxHops < minHops {
					return nil, compileErrorf("variable-length upper bound %d is below lower bound %d", maxHops, minHops)
				}
			}

			expand := &ExpandOp{
				Input:     chain,
				SrcVar:    srcVar,
				EdgeVar:   edgeVar,
				DstVar:    dstVar,
				Direction: rel.Direction,
				Types:     rel.Types,
				DstLabels: dst.Labels,
				DstProps:  dst.Properties,
				MinHops:   minHops,
				MaxHops:   maxHops,
				VarLength: varLength,
				Optional:  cl.Optional,
			}
			if rel.Properties != nil {
				// Inline relationship properties filter after the hop.
				chain = expand
				var err error
				chain, err = c.relPropsFilter(chain, edgeVar, rel.Properties)
				if err != nil {
					return nil, err
				}
			} else {
				chain = expand
			}
			c.bound[edgeVar] = true
			c.bound[dstVar] = true
			srcVar = dstVar
		}
	}

	if cl.Where != nil {
		if err := c.validateExpr(cl.Where); err != nil {
			return nil, err
		}
		c.liftIndexHint(cl.Where, scans)
		chain = &FilterOp{Input: chain, Pred: cl.Where}
	}
	return chain, nil
}

// boundNodeFilter constrains an already-bound variable that reappears in
// a pattern with labels or a property map.
func (c *compiler) boundNodeFilter(chain planOp, v string, labels []string, props map[string]Expression) (planOp, error) {
	for _, label := range labels {
		chain = &FilterOp{Input: chain, Pred: &BinaryExpr{
			Op:    OpIn,
			Left:  &Literal{Value: label},
			Right: &FunctionCall{Name: "labels", Args: []Expression{&Variable{Name: v}}},
		}}
	}
	if err := c.validateProps(props); err != nil {
		return nil, err
	}
	for key, expr := range props {
		chain = &FilterOp{Input: chain, Pred: &BinaryExpr{
			Op:    OpEq,
			Left:  &PropertyAccess{Subject: &Variable{Name: v}, Key: key},
			Right: expr,
		}}
	}
	return chain, nil
}

func (c *compiler) relPropsFilter(chain planOp, edgeVar string, props map[string]Expression) (planOp, error) {
	for key, expr := range props {
		chain = &FilterOp{Input: chain, Pred: &BinaryExpr{
			Op:    OpEq,
			Left:  &PropertyAccess{Subject: &Variable{Name: edgeVar}, Key: key},
			Right: expr,
		}}
	}
	return chain, nil
}

// liftIndexHint scans the top-level AND conjuncts of a WHERE for
// `var.prop = <literal|parameter>` where var was scanned with a label in
// this clause, and records the first such pair on the scan so the
// executor can use a property index. The filter itself stays in place.
func (c *compiler) liftIndexHint(where Expression, scans map[string]*ScanOp) {
	for _, term := range splitConjuncts(where) {
		be, ok := term.(*BinaryExpr)
		if !ok || be.Op != OpEq {
			continue
		}
		if c.tryHint(be.Left, be.Right, scans) {
			continue
		}
		c.tryHint(be.Right, be.Left, scans)
	}
}

func (c *compiler) tryHint(propSide, valueSide Expression, scans map[string]*ScanOp) bool {
	pa, ok := propSide.(*PropertyAccess)
	if !ok {
		return false
	}
	v, ok := pa.Subject.(*Variable)
	if !ok {
		return false
	}
	switch valueSide.(type) {
	case *Literal, *Parameter:
	default:
		return false
	}
	scan, ok := scans[v.Name]
	if !ok || scan.Label == "" || scan.IndexProperty != "" {
		return false
	}
	scan.IndexProperty = pa.Key
	scan.IndexValue = valueSide
	return true
}

func splitConjuncts(e Expression) []Expression {
	if be, ok := e.(*BinaryExpr); ok && be.Op == OpAnd {
		return append(splitConjuncts(be.Left), splitConjuncts(be.Right)...)
	}
	return []Expression{e}
}

// =============================================================================
// RETURN
// =============================================================================

func (c *compiler) compileReturn(chain planOp, cl *ReturnClause) (planOp, []string, error) {
	hasAgg := false
	for _, item := range cl.Items {
		agg, nested, err := c.classifyItem(item.Expr)
		if err != nil {
			return nil, nil, err
		}
		if nested {
			return nil, nil, compileErrorf("aggregate function must be the top-level expression of a return item")
		}
		if agg {
			hasAgg = true
		}
	}

	columns := make([]string, len(cl.Items))
	seen := map[string]bool{}
	for i, item := range cl.Items {
		if seen[item.Alias] {
			return nil, nil, compileErrorf("duplicate return column %q", item.Alias)
		}
		seen[item.Alias] = true
		columns[i] = item.Alias
	}

	if hasAgg {
		agg := &AggregateOp{Input: chain, Columns: columns, Distinct: cl.Distinct}
		for _, item := range cl.Items {
			if fc, ok := item.Expr.(*FunctionCall); ok {
				if fn, isAgg := aggregateFunc(fc.Name); isAgg {
					var arg Expression
					if !fc.Star {
						if len(fc.Args) != 1 {
							return nil, nil, compileErrorf("%s() expects exactly one argument, got %d", fc.Name, len(fc.Args))
						}
						arg = fc.Args[0]
						if err := c.validateExpr(arg); err != nil {
							return nil, nil, err
						}
					}
					agg.Aggs = append(agg.Aggs, AggItem{
						Alias:    item.Alias,
						Func:     fn,
						Arg:      arg,
						Distinct: fc.Distinct,
						Star:     fc.Star,
					})
					continue
				}
			}
			if err := c.validateExpr(item.Expr); err != nil {
				return nil, nil, err
			}
			agg.GroupBy = append(agg.GroupBy, ProjectItem{Alias: item.Alias, Expr: item.Expr})
		}
		chain = agg
	} else {
		proj := &ProjectOp{Input: chain, Distinct: cl.Distinct, Columns: columns}
		for _, item := range cl.Items {
			if err := c.validateExpr(item.Expr); err != nil {
				return nil, nil, err
			}
			proj.Items = append(proj.Items, ProjectItem{Alias: item.Alias, Expr: item.Expr})
		}
		chain = proj
	}
	for _, col := range columns {
		c.bound[col] = true
	}

	if len(cl.OrderBy) > 0 {
		sortOp := &SortOp{Input: chain}
		for _, key := range cl.OrderBy {
			expr := key.Expr
			if hasAgg {
				// Grouped rows carry only the output columns, so the key
				// must resolve to one of them.
				var err error
				expr, err = rewriteAggSortKey(expr, cl.Items)
				if err != nil {
					return nil, nil, err
				}
			}
			if err := c.validateExpr(expr); err != nil {
				return nil, nil, err
			}
			sortOp.Keys = append(sortOp.Keys, SortKey{Expr: expr, Descending: key.Descending})
		}
		chain = sortOp
	}
	if cl.Skip != nil {
		if err := c.validateCount(cl.Skip, "SKIP"); err != nil {
			return nil, nil, err
		}
		chain = &SkipOp{Input: chain, Count: cl.Skip}
	}
	if cl.Limit != nil {
		if err := c.validateCount(cl.Limit, "LIMIT"); err != nil {
			return nil, nil, err
		}
		chain = &LimitOp{Input: chain, Count: cl.Limit}
	}
	return chain, columns, nil
}

// rewriteAggSortKey maps an ORDER BY key after aggregation onto the
// return column it names, either by alias or by repeating the item's
// expression text (`ORDER BY count(*)`).
func rewriteAggSortKey(e Expression, items []ReturnItem) (Expression, error) {
	if v, ok := e.(*Variable); ok {
		for _, item := range items {
			if item.Alias == v.Name {
				return v, nil
			}
		}
	}
	text := exprText(e)
	for _, item := range items {
		if exprText(item.Expr) == text {
			return &Variable{Name: item.Alias}, nil
		}
	}
	return nil, compileErrorf("ORDER BY after aggregation must reference a returned column, got %s", text)
}

// classifyItem reports whether the item's top-level expression is an
// aggregate call, and whether any aggregate is buried deeper.
func (c *compiler) classifyItem(e Expression) (topAgg, nested bool, err error) {
	if fc, ok := e.(*FunctionCall); ok {
		if _, isAgg := aggregateFunc(fc.Name); isAgg {
			for _, arg := range fc.Args {
				if containsAggregate(arg) {
					return false, true, nil
				}
			}
			return true, false, nil
		}
	}
	return false, containsAggregate(e), nil
}

func containsAggregate(e Expression) bool {
	switch t := e.(type) {
	case *BinaryExpr:
		return containsAggregate(t.Left) || containsAggregate(t.Right)
	case *UnaryExpr:
		return containsAggregate(t.X)
	case *PropertyAccess:
		return containsAggregate(t.Subject)
	case *FunctionCall:
		if _, isAgg := aggregateFunc(t.Name); isAgg {
			return true
		}
		for _, arg := range t.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	case *ListExpr:
		for _, item := range t.Items {
			if containsAggregate(item) {
				return true
			}
		}
	case *MapExpr:
		for _, v := range t.Values {
			if containsAggregate(v) {
				return true
			}
		}
	case *IsNullExpr:
		return containsAggregate(t.X)
	case *CaseExpr:
		if t.Subject != nil && containsAggregate(t.Subject) {
			return true
		}
		for _, w := range t.Whens {
			if containsAggregate(w.Cond) || containsAggregate(w.Result) {
				return true
			}
		}
		if t.Else != nil {
			return containsAggregate(t.Else)
		}
	}
	return false
}

// =============================================================================
// VALIDATION
// =============================================================================

// validateExpr checks variable references and function names. Aggregate
// calls never appear here: the return-clause lowering strips them out
// before validating their arguments, so one showing up is an error.
func (c *compiler) validateExpr(e Expression) error {
	switch t := e.(type) {
	case *BinaryExpr:
		if err := c.validateExpr(t.Left); err != nil {
			return err
		}
		return c.validateExpr(t.Right)
	case *UnaryExpr:
		return c.validateExpr(t.X)
	case *Literal, *Parameter:
		return nil
	case *Variable:
		if !c.bound[t.Name] {
			return compileErrorf("unbound variable %q", t.Name)
		}
		return nil
	case *PropertyAccess:
		return c.validateExpr(t.Subject)
	case *FunctionCall:
		if _, isAgg := aggregateFunc(t.Name); isAgg {
			return compileErrorf("aggregate function %s() is not allowed here", t.Name)
		} else if _, ok := scalarFunctions[t.Name]; !ok {
			return compileErrorf("unknown function %s()", t.Name)
		}
		if t.Star && t.Name != "count" {
			return compileErrorf("%s(*) is not supported, only count(*)", t.Name)
		}
		for _, arg := range t.Args {
			if err := c.validateExpr(arg); err != nil {
				return err
			}
		}
		return nil
	case *ListExpr:
		for _, item := range t.Items {
			if err := c.validateExpr(item); err != nil {
				return err
			}
		}
		return nil
	case *MapExpr:
		for _, v := range t.Values {
			if err := c.validateExpr(v); err != nil {
				return err
			}
		}
		return nil
	case *IsNullExpr:
		return c.validateExpr(t.X)
	case *CaseExpr:
		if t.Subject != nil {
			if err := c.validateExpr(t.Subject); err != nil {
				return err
			}
		}
		for _, w := range t.Whens {
			if err := c.validateExpr(w.Cond); err != nil {
				return err
			}
			if err := c.validateExpr(w.Result); err != nil {
				return err
			}
		}
		if t.Else != nil {
			return c.validateExpr(t.Else)
		}
		return nil
	}
	return compileErrorf("unsupported expression %T", e)
}

func (c *compiler) validateProps(props map[string]Expression) error {
	for _, expr := range props {
		if err := c.validateExpr(expr); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) validateCount(e Expression, clause string) error {
	switch t := e.(type) {
	case *Literal:
		if n, ok := t.Value.(int64); ok && n >= 0 {
			return nil
		}
		return compileErrorf("%s requires a non-negative integer, got %v", clause, t.Value)
	case *Parameter:
		return nil
	}
	return compileErrorf("%s requires an integer literal or parameter", clause)
}

func (c *compiler) validateCreate(p *Pattern) error {
	for _, path := range p.Paths {
		for _, n := range path.Nodes {
			if n.Variable != "" && c.bound[n.Variable] && (len(n.Labels) > 0 || len(n.Properties) > 0) {
				return compileErrorf("variable %q already bound, CREATE cannot redeclare it with labels or properties", n.Variable)
			}
			if err := c.validateProps(n.Properties); err != nil {
				return err
			}
			// CREATE on a fresh node variable requires at least one label;
			// a bound variable just links to the existing node.
			if (n.Variable == "" || !c.bound[n.Variable]) && len(n.Labels) == 0 {
				return compileErrorf("CREATE requires at least one label on new node %s", describeNode(n))
			}
		}
		for _, r := range path.Rels {
			if r.Direction == DirBoth {
				return compileErrorf("CREATE requires a directed relationship")
			}
			if r.MinHops != nil || r.MaxHops != nil {
				return compileErrorf("CREATE cannot use a variable-length relationship")
			}
			if len(r.Types) != 1 {
				return compileErrorf("CREATE requires exactly one relationship type")
			}
			if err := c.validateProps(r.Properties); err != nil {
				return err
			}
		}
	}
	return nil
}

func describeNode(n *NodePattern) string {
	if n.Variable != "" {
		return fmt.Sprintf("(%s)", n.Variable)
	}
	return "()"
}

func (c *compiler) bindPatternVars(p *Pattern) {
	for _, path := range p.Paths {
		for _, n := range path.Nodes {
			if n.Variable != "" {
				c.bound[n.Variable] = true
			}
		}
		for _, r := range path.Rels {
			if r.Variable != "" {
				c.bound[r.Variable] = true
			}
		}
	}
}

func (c *compiler) anonVar() string {
	c.anonID++
	return fmt.Sprintf("  anon%d", c.anonID)
}

// aggregateFunc maps a lower-cased function name to its aggregate kind.
func aggregateFunc(name string) (AggFunc, bool) {
	switch strings.ToLower(name) {
	case "count":
		return AggCount, true
	case "sum":
		return AggSum, true
	case "avg":
		return AggAvg, true
	case "min":
		return AggMin, true
	case "max":
		return AggMax, true
	case "collect":
		return AggCollect, true
	}
	return "", false
}
