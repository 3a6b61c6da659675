// Expression evaluation with SQL-style ternary logic: NULL propagates
// through comparisons and arithmetic, and AND/OR/XOR follow three-valued
// truth tables.
package cypher

import (
	"fmt"
	"strings"
)

// evalContext carries per-execution state needed by expressions.
type evalContext struct {
	params map[string]Value
}

func evalExpr(e Expression, row Row, ec *evalContext) (Value, error) {
	switch t := e.(type) {
	case *Literal:
		return FromAny(t.Value), nil

	case *Variable:
		v, ok := row[t.Name]
		if !ok {
			return Null(), nil
		}
		return v, nil

	case *Parameter:
		v, ok := ec.params[t.Name]
		if !ok {
			return Null(), fmt.Errorf("missing parameter $%s", t.Name)
		}
		return v, nil

	case *PropertyAccess:
		return evalPropertyAccess(t, row, ec)

	case *BinaryExpr:
		return evalBinary(t, row, ec)

	case *UnaryExpr:
		return evalUnary(t, row, ec)

	case *FunctionCall:
		fn, ok := scalarFunctions[t.Name]
		if !ok {
			return Null(), typeErrorf(t.Name, "unknown function")
		}
		args := make([]Value, len(t.Args))
		for i, arg := range t.Args {
			v, err := evalExpr(arg, row, ec)
			if err != nil {
				return Null(), err
			}
			args[i] = v
		}
		return fn(args)

	case *ListExpr:
		items := make([]Value, len(t.Items))
		for i, item := range t.Items {
			v, err := evalExpr(item, row, ec)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return ListValue(items), nil

	case *MapExpr:
		m := make(map[string]Value, len(t.Keys))
		for i, k := range t.Keys {
			v, err := evalExpr(t.Values[i], row, ec)
			if err != nil {
				return Null(), err
			}
			m[k] = v
		}
		return MapValue(m), nil

	case *IsNullExpr:
		v, err := evalExpr(t.X, row, ec)
		if err != nil {
			return Null(), err
		}
		return BoolValue(v.IsNull() != t.Not), nil

	case *CaseExpr:
		return evalCase(t, row, ec)
	}
	return Null(), typeErrorf("eval", "unsupported expression %T", e)
}

func evalPropertyAccess(t *PropertyAccess, row Row, ec *evalContext) (Value, error) {
	subject, err := evalExpr(t.Subject, row, ec)
	if err != nil {
		return Null(), err
	}
	switch subject.Kind {
	case KindNull:
		return Null(), nil
	case KindNode:
		return FromAny(subject.Node.Properties[t.Key]), nil
	case KindRel:
		return FromAny(subject.Rel.Properties[t.Key]), nil
	case KindMap:
		v, ok := subject.Map[t.Key]
		if !ok {
			return Null(), nil
		}
		return v, nil
	}
	return Null(), typeErrorf(".", "property access on %s requires a node, relationship or map, got %s",
		t.Key, kindName(subject.Kind))
}

// =============================================================================
// OPERATORS
// =============================================================================

func evalBinary(t *BinaryExpr, row Row, ec *evalContext) (Value, error) {
	switch t.Op {
	case OpAnd, OpOr, OpXor:
		return evalLogical(t, row, ec)
	}

	left, err := evalExpr(t.Left, row, ec)
	if err != nil {
		return Null(), err
	}
	right, err := evalExpr(t.Right, row, ec)
	if err != nil {
		return Null(), err
	}

	switch t.Op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return evalComparison(t.Op, left, right)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return evalArithmetic(t.Op, left, right)
	case OpIn:
		return evalIn(left, right)
	case OpContains, OpStartsWith, OpEndsWith:
		return evalStringPredicate(t.Op, left, right)
	}
	return Null(), typeErrorf(string(t.Op), "unsupported operator")
}

// evalLogical applies three-valued AND/OR/XOR. AND short-circuits on a
// definite false, OR on a definite true.
func evalLogical(t *BinaryExpr, row Row, ec *evalContext) (Value, error) {
	left, err := evalExpr(t.Left, row, ec)
	if err != nil {
		return Null(), err
	}
	lb, lok, err := asBool(t.Op, left)
	if err != nil {
		return Null(), err
	}

	switch t.Op {
	case OpAnd:
		if lok && !lb {
			return BoolValue(false), nil
		}
	case OpOr:
		if lok && lb {
			return BoolValue(true), nil
		}
	}

	right, err := evalExpr(t.Right, row, ec)
	if err != nil {
		return Null(), err
	}
	rb, rok, err := asBool(t.Op, right)
	if err != nil {
		return Null(), err
	}

	switch t.Op {
	case OpAnd:
		if rok && !rb {
			return BoolValue(false), nil
		}
		if !lok || !rok {
			return Null(), nil
		}
		return BoolValue(true), nil
	case OpOr:
		if rok && rb {
			return BoolValue(true), nil
		}
		if !lok || !rok {
			return Null(), nil
		}
		return BoolValue(false), nil
	default: // XOR
		if !lok || !rok {
			return Null(), nil
		}
		return BoolValue(lb != rb), nil
	}
}

// asBool unwraps a boolean operand: (value, known). NULL is unknown;
// any other non-boolean kind is a type error.
func asBool(op BinaryOp, v Value) (bool, bool, error) {
	switch v.Kind {
	case KindNull:
		return false, false, nil
	case KindBool:
		return v.Bool, true, nil
	}
	return false, false, typeErrorf(string(op), "expected a boolean, got %s", kindName(v.Kind))
}

func evalComparison(op BinaryOp, left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	switch op {
	case OpEq:
		return BoolValue(valueEquals(left, right)), nil
	case OpNeq:
		return BoolValue(!valueEquals(left, right)), nil
	}
	// Ordering comparisons between values of different classes are
	// unknown, not errors.
	if kindClass(left.Kind) != kindClass(right.Kind) || kindClass(left.Kind) == 4 {
		return Null(), nil
	}
	cmp := compareValues(left, right)
	switch op {
	case OpLt:
		return BoolValue(cmp < 0), nil
	case OpLte:
		return BoolValue(cmp <= 0), nil
	case OpGt:
		return BoolValue(cmp > 0), nil
	default:
		return BoolValue(cmp >= 0), nil
	}
}

func evalArithmetic(op BinaryOp, left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}

	// + doubles as string and list concatenation.
	if op == OpAdd {
		if left.Kind == KindString && right.Kind == KindString {
			return StringValue(left.Str + right.Str), nil
		}
		if left.Kind == KindList && right.Kind == KindList {
			out := make([]Value, 0, len(left.List)+len(right.List))
			out = append(out, left.List...)
			out = append(out, right.List...)
			return ListValue(out), nil
		}
	}

	if !left.isNumber() || !right.isNumber() {
		return Null(), typeErrorf(string(op), "cannot apply to %s and %s",
			kindName(left.Kind), kindName(right.Kind))
	}

	if left.Kind == KindInt && right.Kind == KindInt {
		a, b := left.Int, right.Int
		switch op {
		case OpAdd:
			return IntValue(a + b), nil
		case OpSub:
			return IntValue(a - b), nil
		case OpMul:
			return IntValue(a * b), nil
		case OpDiv:
			if b == 0 {
				return Null(), typeErrorf("/", "division by zero")
			}
			return IntValue(a / b), nil
		default:
			if b == 0 {
				return Null(), typeErrorf("%%", "division by zero")
			}
			return IntValue(a % b), nil
		}
	}

	a, b := left.asFloat(), right.asFloat()
	switch op {
	case OpAdd:
		return FloatValue(a + b), nil
	case OpSub:
		return FloatValue(a - b), nil
	case OpMul:
		return FloatValue(a * b), nil
	case OpDiv:
		if b == 0 {
			return Null(), typeErrorf("/", "division by zero")
		}
		return FloatValue(a / b), nil
	default:
		return Null(), typeErrorf("%%", "modulo requires integers")
	}
}

// evalIn tests list membership. A NULL needle, a NULL haystack, or a
// miss against a list containing NULL all yield NULL.
func evalIn(needle, haystack Value) (Value, error) {
	if haystack.IsNull() {
		return Null(), nil
	}
	if haystack.Kind != KindList {
		return Null(), typeErrorf("IN", "right-hand side must be a list, got %s", kindName(haystack.Kind))
	}
	if needle.IsNull() {
		return Null(), nil
	}
	sawNull := false
	for _, item := range haystack.List {
		if item.IsNull() {
			sawNull = true
			continue
		}
		if valueEquals(needle, item) {
			return BoolValue(true), nil
		}
	}
	if sawNull {
		return Null(), nil
	}
	return BoolValue(false), nil
}

func evalStringPredicate(op BinaryOp, left, right Value) (Value, error) {
	if left.IsNull() || right.IsNull() {
		return Null(), nil
	}
	if left.Kind != KindString || right.Kind != KindString {
		return Null(), typeErrorf(string(op), "requires two strings, got %s and %s",
			kindName(left.Kind), kindName(right.Kind))
	}
	switch op {
	case OpContains:
		return BoolValue(strings.Contains(left.Str, right.Str)), nil
	case OpStartsWith:
		return BoolValue(strings.HasPrefix(left.Str, right.Str)), nil
	default:
		return BoolValue(strings.HasSuffix(left.Str, right.Str)), nil
	}
}

func evalUnary(t *UnaryExpr, row Row, ec *evalContext) (Value, error) {
	x, err := evalExpr(t.X, row, ec)
	if err != nil {
		return Null(), err
	}
	if x.IsNull() {
		return Null(), nil
	}
	switch t.Op {
	case "NOT":
		if x.Kind != KindBool {
			return Null(), typeErrorf("NOT", "expected a boolean, got %s", kindName(x.Kind))
		}
		return BoolValue(!x.Bool), nil
	case "-":
		switch x.Kind {
		case KindInt:
			return IntValue(-x.Int), nil
		case KindFloat:
			return FloatValue(-x.Float), nil
		}
		return Null(), typeErrorf("-", "expected a number, got %s", kindName(x.Kind))
	}
	return Null(), typeErrorf(t.Op, "unsupported unary operator")
}

func evalCase(t *CaseExpr, row Row, ec *evalContext) (Value, error) {
	var subject Value
	if t.Subject != nil {
		var err error
		subject, err = evalExpr(t.Subject, row, ec)
		if err != nil {
			return Null(), err
		}
	}
	for _, when := range t.Whens {
		cond, err := evalExpr(when.Cond, row, ec)
		if err != nil {
			return Null(), err
		}
		matched := false
		if t.Subject != nil {
			matched = !subject.IsNull() && !cond.IsNull() && valueEquals(subject, cond)
		} else {
			matched = cond.Kind == KindBool && cond.Bool
		}
		if matched {
			return evalExpr(when.Result, row, ec)
		}
	}
	if t.Else != nil {
		return evalExpr(t.Else, row, ec)
	}
	return Null(), nil
}

// evalPredicate evaluates a filter condition: only a definite true keeps
// the row.
func evalPredicate(e Expression, row Row, ec *evalContext) (bool, error) {
	v, err := evalExpr(e, row, ec)
	if err != nil {
		return false, err
	}
	return v.Kind == KindBool && v.Bool, nil
}

func kindName(k ValueKind) string {
	switch k {
	case KindNull:
		return "NULL"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNode:
		return "node"
	case KindRel:
		return "relationship"
	case KindPath:
		return "path"
	case KindPoint:
		return "point"
	case KindTime:
		return "datetime"
	}
	return "unknown"
}
