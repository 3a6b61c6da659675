// Recursive descent parser.
//
// Grammar (clause order is source order):
//
//	query       := single ( UNION [ALL] single )*
//	single      := ( match | create | delete | set )* [ return ]
//	match       := [OPTIONAL] MATCH pattern [WHERE expr]
//	create      := CREATE pattern
//	delete      := [DETACH] DELETE var ( , var )*
//	set         := SET setItem ( , setItem )*
//	return      := RETURN [DISTINCT] item ( , item )*
//	               [ORDER BY key ( , key )*] [SKIP expr] [LIMIT expr]
//	pattern     := path ( , path )*
//	path        := node ( rel node )*
//	node        := ( [var] ( : label )* [props] )
//	rel         := -[detail]-> | <-[detail]- | -[detail]- | --> | <-- | --
//	detail      := [var] [: type ( | type )*] [* [min] [.. [max]]] [props]
//
// Expressions use conventional precedence: OR, XOR, AND, NOT, comparison
// (including IN / CONTAINS / STARTS WITH / ENDS WITH / IS NULL), additive,
// multiplicative, unary minus, property access, primary.
package cypher

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse turns query text into an AST. The only failure mode is a
// *SyntaxError carrying the offending position.
func Parse(text string) (*Query, error) {
	tokens, lerr := newLexer(text).tokenize()
	if lerr != nil {
		return nil, lerr
	}
	p := &parser{tokens: tokens}

	first, err := p.parseSingleQuery()
	if err != nil {
		return nil, err
	}
	q := &Query{First: first}

	for p.cur().isKw("UNION") {
		p.next()
		all := false
		if p.cur().isKw("ALL") {
			p.next()
			all = true
		}
		part, err := p.parseSingleQuery()
		if err != nil {
			return nil, err
		}
		q.Unions = append(q.Unions, &UnionPart{All: all, Query: part})
	}

	if p.cur().typ != tokenEOF {
		return nil, p.errExpected("end of query")
	}
	return q, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) cur() token  { return p.tokens[p.pos] }
func (p *parser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) errExpected(expected string) *SyntaxError {
	t := p.cur()
	found := t.literal
	if t.typ == tokenEOF {
		found = "end of input"
	}
	return &SyntaxError{Line: t.line, Column: t.column, Expected: expected, Found: found}
}

func (p *parser) expect(typ tokenType, expected string) (token, *SyntaxError) {
	if p.cur().typ != typ {
		return token{}, p.errExpected(expected)
	}
	return p.next(), nil
}

// =============================================================================
// CLAUSES
// =============================================================================

func (p *parser) parseSingleQuery() (*SingleQuery, error) {
	sq := &SingleQuery{}
	for {
		t := p.cur()
		switch {
		case t.isKw("MATCH"), t.isKw("OPTIONAL"):
			c, err := p.parseMatch()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)

		case t.isKw("CREATE"):
			p.next()
			pat, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, &CreateClause{Pattern: pat})

		case t.isKw("DELETE"), t.isKw("DETACH"):
			c, err := p.parseDelete()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)

		case t.isKw("SET"):
			c, err := p.parseSet()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)

		case t.isKw("RETURN"):
			c, err := p.parseReturn()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
			return sq, nil

		default:
			if len(sq.Clauses) == 0 {
				return nil, p.errExpected("MATCH, CREATE, DELETE, SET or RETURN")
			}
			return sq, nil
		}
	}
}

func (p *parser) parseMatch() (*MatchClause, error) {
	optional := false
	if p.cur().isKw("OPTIONAL") {
		p.next()
		optional = true
	}
	if !p.cur().isKw("MATCH") {
		return nil, p.errExpected("MATCH")
	}
	p.next()

	pat, err := p.parsePattern()
	if err != nil {
		return nil, err
	}
	mc := &MatchClause{Optional: optional, Pattern: pat}

	if p.cur().isKw("WHERE") {
		p.next()
		mc.Where, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	return mc, nil
}

func (p *parser) parseDelete() (*DeleteClause, error) {
	dc := &DeleteClause{}
	if p.cur().isKw("DETACH") {
		p.next()
		dc.Detach = true
	}
	if !p.cur().isKw("DELETE") {
		return nil, p.errExpected("DELETE")
	}
	p.next()

	for {
		v, err := p.expect(tokenIdent, "a variable to delete")
		if err != nil {
			return nil, err
		}
		dc.Variables = append(dc.Variables, v.literal)
		if p.cur().typ != tokenComma {
			return dc, nil
		}
		p.next()
	}
}

func (p *parser) parseSet() (*SetClause, error) {
	p.next() // SET
	sc := &SetClause{}
	for {
		v, err := p.expect(tokenIdent, "a variable in SET")
		if err != nil {
			return nil, err
		}
		switch p.cur().typ {
		case tokenDot:
			p.next()
			prop, err := p.expect(tokenIdent, "a property name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokenEq, "="); err != nil {
				return nil, err
			}
			val, perr := p.parseExpression()
			if perr != nil {
				return nil, perr
			}
			sc.Items = append(sc.Items, SetItem{Variable: v.literal, Property: prop.literal, Value: val})

		case tokenColon:
			p.next()
			label, err := p.expect(tokenIdent, "a label name")
			if err != nil {
				return nil, err
			}
			sc.Items = append(sc.Items, SetItem{Variable: v.literal, Label: label.literal})

		default:
			return nil, p.errExpected(". or : after SET variable")
		}

		if p.cur().typ != tokenComma {
			return sc, nil
		}
		p.next()
	}
}

func (p *parser) parseReturn() (*ReturnClause, error) {
	p.next() // RETURN
	rc := &ReturnClause{}
	if p.cur().isKw("DISTINCT") {
		p.next()
		rc.Distinct = true
	}

	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: expr, Alias: exprText(expr)}
		if p.cur().isKw("AS") {
			p.next()
			alias := p.cur()
			if alias.typ != tokenIdent && alias.typ != tokenKeyword {
				return nil, p.errExpected("an alias after AS")
			}
			p.next()
			item.Alias = alias.literal
		}
		rc.Items = append(rc.Items, item)
		if p.cur().typ != tokenComma {
			break
		}
		p.next()
	}

	if p.cur().isKw("ORDER") {
		p.next()
		if !p.cur().isKw("BY") {
			return nil, p.errExpected("BY after ORDER")
		}
		p.next()
		for {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			item := SortItem{Expr: expr}
			switch {
			case p.cur().isKw("DESC"), p.cur().isKw("DESCENDING"):
				p.next()
				item.Descending = true
			case p.cur().isKw("ASC"), p.cur().isKw("ASCENDING"):
				p.next()
			}
			rc.OrderBy = append(rc.OrderBy, item)
			if p.cur().typ != tokenComma {
				break
			}
			p.next()
		}
	}

	if p.cur().isKw("SKIP") {
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		rc.Skip = expr
	}
	if p.cur().isKw("LIMIT") {
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		rc.Limit = expr
	}
	return rc, nil
}

// =============================================================================
// PATTERNS
// =============================================================================

func (p *parser) parsePattern() (*Pattern, error) {
	pat := &Pattern{}
	for {
		path, err := p.parsePatternPath()
		if err != nil {
			return nil, err
		}
		pat.Paths = append(pat.Paths, path)
		if p.cur().typ != tokenComma {
			return pat, nil
		}
		p.next()
	}
}

func (p *parser) parsePatternPath() (*PatternPath, error) {
	path := &PatternPath{}
	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	path.Nodes = append(path.Nodes, node)

	for p.cur().typ == tokenDash || p.cur().typ == tokenArrowInL {
		rel, err := p.parseRelPattern()
		if err != nil {
			return nil, err
		}
		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		path.Rels = append(path.Rels, rel)
		path.Nodes = append(path.Nodes, next)
	}
	return path, nil
}

func (p *parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(tokenLParen, "( to start a node pattern"); err != nil {
		return nil, err
	}
	np := &NodePattern{}

	if p.cur().typ == tokenIdent {
		np.Variable = p.next().literal
	}
	for p.cur().typ == tokenColon {
		p.next()
		label, err := p.expect(tokenIdent, "a label name")
		if err != nil {
			return nil, err
		}
		np.Labels = append(np.Labels, label.literal)
	}
	if p.cur().typ == tokenLBrace {
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		np.Properties = props
	}

	if _, err := p.expect(tokenRParen, ") to close the node pattern"); err != nil {
		return nil, err
	}
	return np, nil
}

func (p *parser) parseRelPattern() (*RelPattern, error) {
	rp := &RelPattern{}

	incoming := false
	switch p.cur().typ {
	case tokenArrowInL:
		p.next()
		incoming = true
	case tokenDash:
		p.next()
	default:
		return nil, p.errExpected("- or <- to start a relationship")
	}

	if p.cur().typ == tokenLBracket {
		p.next()
		if p.cur().typ == tokenIdent {
			rp.Variable = p.next().literal
		}
		if p.cur().typ == tokenColon {
			p.next()
			for {
				typ, err := p.expect(tokenIdent, "a relationship type")
				if err != nil {
					return nil, err
				}
				rp.Types = append(rp.Types, typ.literal)
				if p.cur().typ != tokenPipe {
					break
				}
				p.next()
			}
		}
		if p.cur().typ == tokenStar {
			p.next()
			if err := p.parseHopBounds(rp); err != nil {
				return nil, err
			}
		}
		if p.cur().typ == tokenLBrace {
			props, err := p.parsePropertyMap()
			if err != nil {
				return nil, err
			}
			rp.Properties = props
		}
		if _, err := p.expect(tokenRBracket, "] to close the relationship"); err != nil {
			return nil, err
		}
	}

	// Closing side decides direction together with the opening side.
	switch p.cur().typ {
	case tokenArrowR:
		if incoming {
			return nil, p.errExpected("- after an incoming relationship")
		}
		p.next()
		rp.Direction = DirOutgoing
	case tokenDash:
		p.next()
		if incoming {
			rp.Direction = DirIncoming
		} else {
			rp.Direction = DirBoth
		}
	default:
		return nil, p.errExpected("-> or - to close the relationship")
	}
	return rp, nil
}

// parseHopBounds handles the suffix after `*`: nothing (unbounded),
// `n` (exactly n), `n..m`, `n..`, `..m`.
func (p *parser) parseHopBounds(rp *RelPattern) *SyntaxError {
	one := 1
	rp.MinHops = &one

	if p.cur().typ == tokenInteger {
		n, err := strconv.Atoi(p.next().literal)
		if err != nil || n < 0 {
			return p.errExpected("a hop count")
		}
		rp.MinHops = &n
		if p.cur().typ != tokenDotDot {
			rp.MaxHops = &n // exactly n
			return nil
		}
		p.next()
	} else if p.cur().typ == tokenDotDot {
		p.next()
	} else {
		// bare `*`: 1..unbounded
		rp.MaxHops = nil
		return nil
	}

	if p.cur().typ == tokenInteger {
		m, err := strconv.Atoi(p.next().literal)
		if err != nil || m < 0 {
			return p.errExpected("a hop count")
		}
		rp.MaxHops = &m
	}
	return nil
}

func (p *parser) parsePropertyMap() (map[string]Expression, error) {
	p.next() // {
	props := make(map[string]Expression)
	if p.cur().typ == tokenRBrace {
		p.next()
		return props, nil
	}
	for {
		key := p.cur()
		if key.typ != tokenIdent && key.typ != tokenKeyword && key.typ != tokenString {
			return nil, p.errExpected("a property name")
		}
		p.next()
		if _, err := p.expect(tokenColon, ": after property name"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		props[key.literal] = val

		if p.cur().typ == tokenComma {
			p.next()
			continue
		}
		if _, err := p.expect(tokenRBrace, "} to close the property map"); err != nil {
			return nil, err
		}
		return props, nil
	}
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

func (p *parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expression, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.cur().isKw("OR") {
		p.next()
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseXor() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().isKw("XOR") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpXor, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().isKw("AND") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expression, error) {
	if p.cur().isKw("NOT") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		t := p.cur()
		var op BinaryOp
		switch {
		case t.typ == tokenEq:
			op = OpEq
		case t.typ == tokenNeq:
			op = OpNeq
		case t.typ == tokenLt:
			op = OpLt
		case t.typ == tokenLte:
			op = OpLte
		case t.typ == tokenGt:
			op = OpGt
		case t.typ == tokenGte:
			op = OpGte
		case t.isKw("IN"):
			op = OpIn
		case t.isKw("CONTAINS"):
			op = OpContains
		case t.isKw("STARTS"):
			p.next()
			if !p.cur().isKw("WITH") {
				return nil, p.errExpected("WITH after STARTS")
			}
			op = OpStartsWith
		case t.isKw("ENDS"):
			p.next()
			if !p.cur().isKw("WITH") {
				return nil, p.errExpected("WITH after ENDS")
			}
			op = OpEndsWith
		case t.isKw("IS"):
			p.next()
			not := false
			if p.cur().isKw("NOT") {
				p.next()
				not = true
			}
			if !p.cur().isKw("NULL") {
				return nil, p.errExpected("NULL after IS")
			}
			p.next()
			left = &IsNullExpr{X: left, Not: not}
			continue
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().typ {
		case tokenPlus:
			op = OpAdd
		case tokenDash:
			op = OpSub
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().typ {
		case tokenStar:
			op = OpMul
		case tokenSlash:
			op = OpDiv
		case tokenPercent:
			op = OpMod
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expression, error) {
	if p.cur().typ == tokenDash {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().typ == tokenDot {
		p.next()
		key := p.cur()
		if key.typ != tokenIdent && key.typ != tokenKeyword {
			return nil, p.errExpected("a property name after .")
		}
		p.next()
		expr = &PropertyAccess{Subject: expr, Key: key.literal}
	}
	return expr, nil
}

func (p *parser) parsePrimary() (Expression, error) {
	t := p.cur()
	switch t.typ {
	case tokenInteger:
		p.next()
		n, err := strconv.ParseInt(t.literal, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Line: t.line, Column: t.column, Expected: "a valid integer", Found: t.literal}
		}
		return &Literal{Value: n}, nil

	case tokenFloat:
		p.next()
		f, err := strconv.ParseFloat(t.literal, 64)
		if err != nil {
			return nil, &SyntaxError{Line: t.line, Column: t.column, Expected: "a valid number", Found: t.literal}
		}
		return &Literal{Value: f}, nil

	case tokenString:
		p.next()
		return &Literal{Value: t.literal}, nil

	case tokenParameter:
		p.next()
		return &Parameter{Name: t.literal}, nil

	case tokenLParen:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, serr := p.expect(tokenRParen, ") to close the expression"); serr != nil {
			return nil, serr
		}
		return expr, nil

	case tokenLBracket:
		p.next()
		list := &ListExpr{}
		if p.cur().typ == tokenRBracket {
			p.next()
			return list, nil
		}
		for {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
			if p.cur().typ == tokenComma {
				p.next()
				continue
			}
			if _, serr := p.expect(tokenRBracket, "] to close the list"); serr != nil {
				return nil, serr
			}
			return list, nil
		}

	case tokenLBrace:
		props, err := p.parsePropertyMap()
		if err != nil {
			return nil, err
		}
		m := &MapExpr{}
		for k, v := range props {
			m.Keys = append(m.Keys, k)
			m.Values = append(m.Values, v)
		}
		sortMapExpr(m)
		return m, nil

	case tokenKeyword:
		switch t.upper() {
		case "NULL":
			p.next()
			return &Literal{Value: nil}, nil
		case "TRUE":
			p.next()
			return &Literal{Value: true}, nil
		case "FALSE":
			p.next()
			return &Literal{Value: false}, nil
		case "CASE":
			return p.parseCase()
		}
		return nil, p.errExpected("an expression")

	case tokenIdent:
		if p.peekAt(1).typ == tokenLParen {
			return p.parseFunctionCall()
		}
		p.next()
		return &Variable{Name: t.literal}, nil
	}
	return nil, p.errExpected("an expression")
}

func (p *parser) parseFunctionCall() (Expression, error) {
	name := p.next().literal
	p.next() // (
	fc := &FunctionCall{Name: strings.ToLower(name)}

	if p.cur().typ == tokenStar {
		p.next()
		fc.Star = true
		if _, err := p.expect(tokenRParen, ") after *"); err != nil {
			return nil, err
		}
		return fc, nil
	}
	if p.cur().isKw("DISTINCT") {
		p.next()
		fc.Distinct = true
	}
	if p.cur().typ == tokenRParen {
		p.next()
		return fc, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		fc.Args = append(fc.Args, arg)
		if p.cur().typ == tokenComma {
			p.next()
			continue
		}
		if _, serr := p.expect(tokenRParen, ") to close the call"); serr != nil {
			return nil, serr
		}
		return fc, nil
	}
}

func (p *parser) parseCase() (Expression, error) {
	p.next() // CASE
	ce := &CaseExpr{}

	if !p.cur().isKw("WHEN") {
		subject, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Subject = subject
	}

	for p.cur().isKw("WHEN") {
		p.next()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if !p.cur().isKw("THEN") {
			return nil, p.errExpected("THEN after WHEN condition")
		}
		p.next()
		result, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, CaseWhen{Cond: cond, Result: result})
	}
	if len(ce.Whens) == 0 {
		return nil, p.errExpected("WHEN inside CASE")
	}

	if p.cur().isKw("ELSE") {
		p.next()
		alt, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		ce.Else = alt
	}
	if !p.cur().isKw("END") {
		return nil, p.errExpected("END to close CASE")
	}
	p.next()
	return ce, nil
}

// =============================================================================
// RENDERING (default aliases)
// =============================================================================

// exprText renders an expression back to compact source form; used as the
// default output column name when RETURN has no AS alias.
func exprText(e Expression) string {
	switch t := e.(type) {
	case *Variable:
		return t.Name
	case *PropertyAccess:
		return exprText(t.Subject) + "." + t.Key
	case *Parameter:
		return "$" + t.Name
	case *Literal:
		if t.Value == nil {
			return "NULL"
		}
		if s, ok := t.Value.(string); ok {
			return "'" + s + "'"
		}
		if f, ok := t.Value.(float64); ok {
			s := strconv.FormatFloat(f, 'g', -1, 64)
			// keep float text distinct from integer text (2.0 vs 2)
			if !strings.ContainsAny(s, ".eE") {
				s += ".0"
			}
			return s
		}
		return fmt.Sprint(t.Value)
	case *FunctionCall:
		if t.Star {
			return t.Name + "(*)"
		}
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = exprText(a)
		}
		prefix := ""
		if t.Distinct {
			prefix = "DISTINCT "
		}
		return t.Name + "(" + prefix + strings.Join(args, ", ") + ")"
	case *BinaryExpr:
		return exprText(t.Left) + " " + string(t.Op) + " " + exprText(t.Right)
	case *UnaryExpr:
		if t.Op == "NOT" {
			return "NOT " + exprText(t.X)
		}
		return "-" + exprText(t.X)
	case *IsNullExpr:
		if t.Not {
			return exprText(t.X) + " IS NOT NULL"
		}
		return exprText(t.X) + " IS NULL"
	case *CaseExpr:
		return "CASE"
	case *ListExpr:
		items := make([]string, len(t.Items))
		for i, it := range t.Items {
			items[i] = exprText(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *MapExpr:
		return "{...}"
	}
	return "expr"
}

func sortMapExpr(m *MapExpr) {
	// Stable key order keeps rendered maps and fingerprints deterministic.
	for i := 1; i < len(m.Keys); i++ {
		for j := i; j > 0 && m.Keys[j] < m.Keys[j-1]; j-- {
			m.Keys[j], m.Keys[j-1] = m.Keys[j-1], m.Keys[j]
			m.Values[j], m.Values[j-1] = m.Values[j-1], m.Values[j]
		}
	}
}
