package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, text string) *Query {
	t.Helper()
	q, err := Parse(text)
	require.NoError(t, err)
	return q
}

func firstMatch(t *testing.T, q *Query) *MatchClause {
	t.Helper()
	mc, ok := q.First.Clauses[0].(*MatchClause)
	require.True(t, ok)
	return mc
}

func TestParsePatterns(t *testing.T) {
	t.Run("node_with_labels_and_props", func(t *testing.T) {
		q := mustParse(t, "MATCH (n:Person:User {name: 'Odin', age: 60}) RETURN n")
		mc := firstMatch(t, q)
		node := mc.Pattern.Paths[0].Nodes[0]
		assert.Equal(t, "n", node.Variable)
		assert.Equal(t, []string{"Person", "User"}, node.Labels)
		require.Len(t, node.Properties, 2)
		assert.Equal(t, "Odin", node.Properties["name"].(*Literal).Value)
		assert.Equal(t, int64(60), node.Properties["age"].(*Literal).Value)
	})

	t.Run("outgoing_relationship", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[r:KNOWS]->(b) RETURN a")
		path := firstMatch(t, q).Pattern.Paths[0]
		require.Len(t, path.Rels, 1)
		rel := path.Rels[0]
		assert.Equal(t, "r", rel.Variable)
		assert.Equal(t, []string{"KNOWS"}, rel.Types)
		assert.Equal(t, DirOutgoing, rel.Direction)
		assert.Nil(t, rel.MinHops)
	})

	t.Run("incoming_relationship", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)<-[:KNOWS]-(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		assert.Equal(t, DirIncoming, rel.Direction)
	})

	t.Run("undirected_relationship", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[:KNOWS]-(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		assert.Equal(t, DirBoth, rel.Direction)
	})

	t.Run("bare_arrows", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-->(b)<--(c) RETURN a")
		path := firstMatch(t, q).Pattern.Paths[0]
		require.Len(t, path.Rels, 2)
		assert.Equal(t, DirOutgoing, path.Rels[0].Direction)
		assert.Equal(t, DirIncoming, path.Rels[1].Direction)
	})

	t.Run("alternative_types", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[:KNOWS|LIKES]->(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		assert.Equal(t, []string{"KNOWS", "LIKES"}, rel.Types)
	})

	t.Run("variable_length_bounds", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[:KNOWS*1..3]->(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		require.NotNil(t, rel.MinHops)
		require.NotNil(t, rel.MaxHops)
		assert.Equal(t, 1, *rel.MinHops)
		assert.Equal(t, 3, *rel.MaxHops)
	})

	t.Run("variable_length_exact", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[*2]->(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		assert.Equal(t, 2, *rel.MinHops)
		assert.Equal(t, 2, *rel.MaxHops)
	})

	t.Run("variable_length_unbounded", func(t *testing.T) {
		q := mustParse(t, "MATCH (a)-[*]->(b) RETURN a")
		rel := firstMatch(t, q).Pattern.Paths[0].Rels[0]
		assert.Equal(t, 1, *rel.MinHops)
		assert.Nil(t, rel.MaxHops)
	})

	t.Run("multiple_paths", func(t *testing.T) {
		q := mustParse(t, "MATCH (a:Person), (b:City) RETURN a, b")
		assert.Len(t, firstMatch(t, q).Pattern.Paths, 2)
	})

	t.Run("optional_match_with_where", func(t *testing.T) {
		q := mustParse(t, "MATCH (a) OPTIONAL MATCH (a)-[:KNOWS]->(b) WHERE b.age > 30 RETURN a")
		require.Len(t, q.First.Clauses, 3)
		mc, ok := q.First.Clauses[1].(*MatchClause)
		require.True(t, ok)
		assert.True(t, mc.Optional)
		require.NotNil(t, mc.Where)
	})
}

func TestParseExpressions(t *testing.T) {
	where := func(t *testing.T, cond string) Expression {
		t.Helper()
		q := mustParse(t, "MATCH (n) WHERE "+cond+" RETURN n")
		return firstMatch(t, q).Where
	}

	t.Run("precedence_and_over_or", func(t *testing.T) {
		e := where(t, "n.a = 1 OR n.b = 2 AND n.c = 3").(*BinaryExpr)
		assert.Equal(t, OpOr, e.Op)
		right := e.Right.(*BinaryExpr)
		assert.Equal(t, OpAnd, right.Op)
	})

	t.Run("arithmetic_precedence", func(t *testing.T) {
		e := where(t, "n.a + 2 * 3 = 7").(*BinaryExpr)
		require.Equal(t, OpEq, e.Op)
		add := e.Left.(*BinaryExpr)
		assert.Equal(t, OpAdd, add.Op)
		mul := add.Right.(*BinaryExpr)
		assert.Equal(t, OpMul, mul.Op)
	})

	t.Run("string_predicates", func(t *testing.T) {
		e := where(t, "n.name STARTS WITH 'O' AND n.name ENDS WITH 'n' AND n.name CONTAINS 'di'").(*BinaryExpr)
		assert.Equal(t, OpAnd, e.Op)
		assert.Equal(t, OpContains, e.Right.(*BinaryExpr).Op)
	})

	t.Run("is_null_and_is_not_null", func(t *testing.T) {
		e := where(t, "n.a IS NULL").(*IsNullExpr)
		assert.False(t, e.Not)
		e2 := where(t, "n.a IS NOT NULL").(*IsNullExpr)
		assert.True(t, e2.Not)
	})

	t.Run("in_list", func(t *testing.T) {
		e := where(t, "n.age IN [30, 40, 50]").(*BinaryExpr)
		assert.Equal(t, OpIn, e.Op)
		assert.Len(t, e.Right.(*ListExpr).Items, 3)
	})

	t.Run("not_and_unary_minus", func(t *testing.T) {
		e := where(t, "NOT n.flag").(*UnaryExpr)
		assert.Equal(t, "NOT", e.Op)
		e2 := where(t, "n.a = -1").(*BinaryExpr)
		assert.Equal(t, "-", e2.Right.(*UnaryExpr).Op)
	})

	t.Run("parameters", func(t *testing.T) {
		e := where(t, "n.name = $name").(*BinaryExpr)
		assert.Equal(t, "name", e.Right.(*Parameter).Name)
	})

	t.Run("function_call_lower_cased", func(t *testing.T) {
		e := where(t, "toUpper(n.name) = 'ODIN'").(*BinaryExpr)
		fc := e.Left.(*FunctionCall)
		assert.Equal(t, "toupper", fc.Name)
		assert.Len(t, fc.Args, 1)
	})

	t.Run("searched_case", func(t *testing.T) {
		q := mustParse(t, "MATCH (n) RETURN CASE WHEN n.age > 60 THEN 'old' ELSE 'young' END AS bucket")
		rc := q.First.Clauses[1].(*ReturnClause)
		ce := rc.Items[0].Expr.(*CaseExpr)
		assert.Nil(t, ce.Subject)
		require.Len(t, ce.Whens, 1)
		require.NotNil(t, ce.Else)
		assert.Equal(t, "bucket", rc.Items[0].Alias)
	})

	t.Run("simple_case", func(t *testing.T) {
		q := mustParse(t, "MATCH (n) RETURN CASE n.kind WHEN 'a' THEN 1 WHEN 'b' THEN 2 END AS k")
		ce := q.First.Clauses[1].(*ReturnClause).Items[0].Expr.(*CaseExpr)
		require.NotNil(t, ce.Subject)
		assert.Len(t, ce.Whens, 2)
		assert.Nil(t, ce.Else)
	})
}

func TestParseReturn(t *testing.T) {
	t.Run("default_aliases", func(t *testing.T) {
		q := mustParse(t, "MATCH (a) RETURN a.name, count(*)")
		rc := q.First.Clauses[1].(*ReturnClause)
		assert.Equal(t, "a.name", rc.Items[0].Alias)
		assert.Equal(t, "count(*)", rc.Items[1].Alias)
	})

	t.Run("distinct_order_skip_limit", func(t *testing.T) {
		q := mustParse(t, "MATCH (a) RETURN DISTINCT a.name ORDER BY a.name DESC, a.age SKIP 2 LIMIT 10")
		rc := q.First.Clauses[1].(*ReturnClause)
		assert.True(t, rc.Distinct)
		require.Len(t, rc.OrderBy, 2)
		assert.True(t, rc.OrderBy[0].Descending)
		assert.False(t, rc.OrderBy[1].Descending)
		assert.Equal(t, int64(2), rc.Skip.(*Literal).Value)
		assert.Equal(t, int64(10), rc.Limit.(*Literal).Value)
	})

	t.Run("count_distinct", func(t *testing.T) {
		q := mustParse(t, "MATCH (a) RETURN count(DISTINCT a.name)")
		fc := q.First.Clauses[1].(*ReturnClause).Items[0].Expr.(*FunctionCall)
		assert.True(t, fc.Distinct)
		assert.False(t, fc.Star)
	})
}

func TestParseWriteClauses(t *testing.T) {
	t.Run("create_with_relationship", func(t *testing.T) {
		q := mustParse(t, "CREATE (a:Person {name: 'Odin'})-[:KNOWS {since: 2020}]->(b:Person {name: 'Loki'})")
		cc := q.First.Clauses[0].(*CreateClause)
		path := cc.Pattern.Paths[0]
		require.Len(t, path.Nodes, 2)
		require.Len(t, path.Rels, 1)
		assert.Equal(t, []string{"KNOWS"}, path.Rels[0].Types)
	})

	t.Run("detach_delete", func(t *testing.T) {
		q := mustParse(t, "MATCH (n:Person) DETACH DELETE n")
		dc := q.First.Clauses[1].(*DeleteClause)
		assert.True(t, dc.Detach)
		assert.Equal(t, []string{"n"}, dc.Variables)
	})

	t.Run("set_property_and_label", func(t *testing.T) {
		q := mustParse(t, "MATCH (n) SET n.age = 61, n:Elder")
		sc := q.First.Clauses[1].(*SetClause)
		require.Len(t, sc.Items, 2)
		assert.Equal(t, "age", sc.Items[0].Property)
		assert.Equal(t, "Elder", sc.Items[1].Label)
		assert.Nil(t, sc.Items[1].Value)
	})
}

func TestParseUnion(t *testing.T) {
	t.Run("union_and_union_all", func(t *testing.T) {
		q := mustParse(t, "MATCH (a:Person) RETURN a.name UNION MATCH (b:Bot) RETURN b.name UNION ALL MATCH (c) RETURN c.name")
		require.Len(t, q.Unions, 2)
		assert.False(t, q.Unions[0].All)
		assert.True(t, q.Unions[1].All)
	})
}

func TestParseErrors(t *testing.T) {
	t.Run("error_reports_position", func(t *testing.T) {
		_, err := Parse("MATCH (n RETURN n")
		require.Error(t, err)
		var serr *SyntaxError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 1, serr.Line)
		assert.Equal(t, 10, serr.Column)
		assert.Contains(t, serr.Error(), "syntax error at line 1")
	})

	t.Run("unclosed_relationship", func(t *testing.T) {
		_, err := Parse("MATCH (a)-[:KNOWS->(b) RETURN a")
		require.Error(t, err)
	})

	t.Run("arrow_on_both_ends", func(t *testing.T) {
		_, err := Parse("MATCH (a)<-[:KNOWS]->(b) RETURN a")
		require.Error(t, err)
	})

	t.Run("trailing_garbage", func(t *testing.T) {
		_, err := Parse("MATCH (n) RETURN n n")
		require.Error(t, err)
	})

	t.Run("empty_query", func(t *testing.T) {
		_, err := Parse("")
		require.Error(t, err)
	})

	t.Run("case_without_when", func(t *testing.T) {
		_, err := Parse("MATCH (n) RETURN CASE END")
		require.Error(t, err)
	})
}
