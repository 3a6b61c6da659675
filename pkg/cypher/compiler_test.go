package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, text string) *Plan {
	t.Helper()
	q, err := Parse(text)
	require.NoError(t, err)
	plan, err := Compile(q)
	require.NoError(t, err)
	return plan
}

func compileErr(t *testing.T, text string) error {
	t.Helper()
	q, err := Parse(text)
	require.NoError(t, err)
	_, err = Compile(q)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	return err
}

func TestCompilePlans(t *testing.T) {
	t.Run("scan_project", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) RETURN p.name")
		assert.Equal(t, []string{"p.name"}, plan.Columns)
		assert.True(t, plan.ReadOnly)
		proj, ok := plan.Root.(*ProjectOp)
		require.True(t, ok)
		scan, ok := proj.Input.(*ScanOp)
		require.True(t, ok)
		assert.Equal(t, "p", scan.Var)
		assert.Equal(t, "Person", scan.Label)
	})

	t.Run("unlabeled_scan_matches_everything", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a)-[r:KNOWS]->(b) RETURN b")
		proj := plan.Root.(*ProjectOp)
		expand, ok := proj.Input.(*ExpandOp)
		require.True(t, ok)
		scan, ok := expand.Input.(*ScanOp)
		require.True(t, ok)
		assert.Equal(t, "", scan.Label)
		assert.Empty(t, scan.ExtraLabels)
	})

	t.Run("additional_labels_checked_by_scan", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (n:Person:Admin) RETURN n")
		proj := plan.Root.(*ProjectOp)
		scan, ok := proj.Input.(*ScanOp)
		require.True(t, ok)
		assert.Equal(t, "Person", scan.Label)
		assert.Equal(t, []string{"Admin"}, scan.ExtraLabels)
	})

	t.Run("optional_bare_node_scan_is_optional", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a:Person) OPTIONAL MATCH (g:Ghost) RETURN a.name, g")
		proj := plan.Root.(*ProjectOp)
		scan, ok := proj.Input.(*ScanOp)
		require.True(t, ok)
		assert.Equal(t, "g", scan.Var)
		assert.True(t, scan.Optional)
		inner, ok := scan.Input.(*ScanOp)
		require.True(t, ok)
		assert.False(t, inner.Optional)
	})

	t.Run("expand_chain", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a.name, b.name")
		proj := plan.Root.(*ProjectOp)
		expand, ok := proj.Input.(*ExpandOp)
		require.True(t, ok)
		assert.Equal(t, "a", expand.SrcVar)
		assert.Equal(t, "r", expand.EdgeVar)
		assert.Equal(t, "b", expand.DstVar)
		assert.Equal(t, DirOutgoing, expand.Direction)
		assert.Equal(t, []string{"KNOWS"}, expand.Types)
		assert.Equal(t, []string{"Person"}, expand.DstLabels)
		assert.False(t, expand.VarLength)
		_, ok = expand.Input.(*ScanOp)
		assert.True(t, ok)
	})

	t.Run("where_becomes_filter_after_expand", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a) OPTIONAL MATCH (a)-[:KNOWS]->(b) WHERE b IS NULL RETURN a.name")
		proj := plan.Root.(*ProjectOp)
		filter, ok := proj.Input.(*FilterOp)
		require.True(t, ok)
		expand, ok := filter.Input.(*ExpandOp)
		require.True(t, ok)
		assert.True(t, expand.Optional)
	})

	t.Run("bound_variable_not_rescanned", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a:Person) MATCH (a)-[:KNOWS]->(b) RETURN b")
		proj := plan.Root.(*ProjectOp)
		expand := proj.Input.(*ExpandOp)
		// The second MATCH expands from the existing binding; only one
		// scan exists in the whole plan.
		scan, ok := expand.Input.(*ScanOp)
		require.True(t, ok)
		assert.Equal(t, "a", scan.Var)
		assert.Nil(t, scan.Input)
	})

	t.Run("index_hint_lifted_from_where", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) WHERE p.name = 'Odin' RETURN p")
		proj := plan.Root.(*ProjectOp)
		filter := proj.Input.(*FilterOp)
		scan := filter.Input.(*ScanOp)
		assert.Equal(t, "name", scan.IndexProperty)
		require.NotNil(t, scan.IndexValue)
		assert.Equal(t, "Odin", scan.IndexValue.(*Literal).Value)
	})

	t.Run("no_hint_without_label", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p) WHERE p.name = 'Odin' RETURN p")
		filter := plan.Root.(*ProjectOp).Input.(*FilterOp)
		scan := filter.Input.(*ScanOp)
		assert.Empty(t, scan.IndexProperty)
	})

	t.Run("no_hint_for_non_constant", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) WHERE p.name = p.nickname RETURN p")
		filter := plan.Root.(*ProjectOp).Input.(*FilterOp)
		scan := filter.Input.(*ScanOp)
		assert.Empty(t, scan.IndexProperty)
	})

	t.Run("aggregation_with_grouping", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) RETURN p.city, count(*), avg(p.age)")
		agg, ok := plan.Root.(*AggregateOp)
		require.True(t, ok)
		require.Len(t, agg.GroupBy, 1)
		require.Len(t, agg.Aggs, 2)
		assert.Equal(t, AggCount, agg.Aggs[0].Func)
		assert.True(t, agg.Aggs[0].Star)
		assert.Equal(t, AggAvg, agg.Aggs[1].Func)
		assert.Equal(t, []string{"p.city", "count(*)", "avg(p.age)"}, plan.Columns)
	})

	t.Run("order_skip_limit_stack", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) RETURN p.name ORDER BY p.name SKIP 1 LIMIT 2")
		limit, ok := plan.Root.(*LimitOp)
		require.True(t, ok)
		skip, ok := limit.Input.(*SkipOp)
		require.True(t, ok)
		sortOp, ok := skip.Input.(*SortOp)
		require.True(t, ok)
		_, ok = sortOp.Input.(*ProjectOp)
		assert.True(t, ok)
	})

	t.Run("order_by_aggregate_rewritten_to_column", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (p:Person) RETURN p.city, count(*) AS n ORDER BY count(*) DESC")
		sortOp := plan.Root.(*SortOp)
		v, ok := sortOp.Keys[0].Expr.(*Variable)
		require.True(t, ok)
		assert.Equal(t, "n", v.Name)
	})

	t.Run("var_length_bounds", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a)-[:KNOWS*2..4]->(b) RETURN b")
		expand := plan.Root.(*ProjectOp).Input.(*ExpandOp)
		assert.True(t, expand.VarLength)
		assert.Equal(t, 2, expand.MinHops)
		assert.Equal(t, 4, expand.MaxHops)
	})

	t.Run("union_plan", func(t *testing.T) {
		plan := mustCompile(t, "MATCH (a:Person) RETURN a.name UNION ALL MATCH (b:Bot) RETURN b.name AS name")
		union, ok := plan.Root.(*UnionOp)
		require.True(t, ok)
		assert.True(t, union.All)
		assert.Equal(t, []string{"a.name"}, plan.Columns)
	})

	t.Run("write_plan_not_readonly", func(t *testing.T) {
		plan := mustCompile(t, "CREATE (p:Person {name: 'Odin'})")
		assert.False(t, plan.ReadOnly)
		assert.Empty(t, plan.Columns)
		_, ok := plan.Root.(*CreateOp)
		assert.True(t, ok)
	})
}

func TestCompileErrors(t *testing.T) {
	t.Run("union_arity_mismatch", func(t *testing.T) {
		err := compileErr(t, "MATCH (a) RETURN a.name UNION MATCH (b) RETURN b.name, b.age")
		assert.Contains(t, err.Error(), "UNION")
	})

	t.Run("unknown_function", func(t *testing.T) {
		err := compileErr(t, "MATCH (a) RETURN frobnicate(a)")
		assert.Contains(t, err.Error(), "unknown function")
	})

	t.Run("unbound_variable_in_return", func(t *testing.T) {
		err := compileErr(t, "MATCH (a) RETURN b.name")
		assert.Contains(t, err.Error(), "unbound variable")
	})

	t.Run("unbound_delete", func(t *testing.T) {
		compileErr(t, "MATCH (a) DELETE b")
	})

	t.Run("aggregate_in_where", func(t *testing.T) {
		err := compileErr(t, "MATCH (a) WHERE count(a) > 1 RETURN a")
		assert.Contains(t, err.Error(), "aggregate")
	})

	t.Run("nested_aggregate", func(t *testing.T) {
		compileErr(t, "MATCH (a) RETURN count(a) + 1")
	})

	t.Run("create_undirected_relationship", func(t *testing.T) {
		compileErr(t, "CREATE (a:A)-[:REL]-(b:B)")
	})

	t.Run("create_without_label", func(t *testing.T) {
		compileErr(t, "CREATE (a)")
	})

	t.Run("duplicate_return_column", func(t *testing.T) {
		compileErr(t, "MATCH (a) RETURN a.name, a.name")
	})

	t.Run("bad_hop_bounds", func(t *testing.T) {
		compileErr(t, "MATCH (a)-[:KNOWS*3..2]->(b) RETURN a")
	})

	t.Run("order_by_unreturned_expression_after_aggregation", func(t *testing.T) {
		err := compileErr(t, "MATCH (a) RETURN count(*) ORDER BY a.name")
		assert.Contains(t, err.Error(), "ORDER BY")
	})

	t.Run("limit_requires_integer", func(t *testing.T) {
		compileErr(t, "MATCH (a) RETURN a LIMIT 'ten'")
	})
}
