package cypher

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// scalarFunc evaluates one built-in function over already-evaluated
// arguments. Every function is NULL-preserving: a NULL required argument
// yields NULL (coalesce being the point of exception).
type scalarFunc func(args []Value) (Value, error)

var scalarFunctions = map[string]scalarFunc{
	"toupper":   fnToUpper,
	"tolower":   fnToLower,
	"substring": fnSubstring,
	"trim":      fnTrim,
	"ltrim":     fnLTrim,
	"rtrim":     fnRTrim,
	"split":     fnSplit,
	"reverse":   fnReverse,
	"size":      fnSize,
	"tostring":  fnToString,
	"tointeger": fnToInteger,
	"tofloat":   fnToFloat,
	"abs":       fnAbs,
	"coalesce":  fnCoalesce,
	"keys":      fnKeys,
	"id":        fnID,
	"labels":    fnLabels,
	"type":      fnType,
}

func argCount(name string, args []Value, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return typeErrorf(name, "expected %d argument(s), got %d", min, len(args))
		}
		return typeErrorf(name, "expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func stringArg(name string, v Value) (string, bool, error) {
	if v.IsNull() {
		return "", false, nil
	}
	if v.Kind != KindString {
		return "", false, typeErrorf(name, "expected a string, got %s", kindName(v.Kind))
	}
	return v.Str, true, nil
}

func fnToUpper(args []Value) (Value, error) {
	if err := argCount("toUpper", args, 1, 1); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("toUpper", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	return StringValue(strings.ToUpper(s)), nil
}

func fnToLower(args []Value) (Value, error) {
	if err := argCount("toLower", args, 1, 1); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("toLower", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	return StringValue(strings.ToLower(s)), nil
}

// fnSubstring is 1-indexed over runes, with an optional length. Indexes
// past the end yield the empty string rather than an error.
func fnSubstring(args []Value) (Value, error) {
	if err := argCount("substring", args, 2, 3); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("substring", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	if args[1].IsNull() {
		return Null(), nil
	}
	if args[1].Kind != KindInt {
		return Null(), typeErrorf("substring", "start must be an integer, got %s", kindName(args[1].Kind))
	}
	runes := []rune(s)
	start := int(args[1].Int) - 1
	if start < 0 || start >= len(runes) {
		return StringValue(""), nil
	}
	end := len(runes)
	if len(args) == 3 {
		if args[2].IsNull() {
			return Null(), nil
		}
		if args[2].Kind != KindInt {
			return Null(), typeErrorf("substring", "length must be an integer, got %s", kindName(args[2].Kind))
		}
		n := int(args[2].Int)
		if n <= 0 {
			return StringValue(""), nil
		}
		if start+n < end {
			end = start + n
		}
	}
	return StringValue(string(runes[start:end])), nil
}

func fnTrim(args []Value) (Value, error) {
	if err := argCount("trim", args, 1, 1); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("trim", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	return StringValue(strings.TrimSpace(s)), nil
}

func fnLTrim(args []Value) (Value, error) {
	if err := argCount("ltrim", args, 1, 1); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("ltrim", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	return StringValue(strings.TrimLeft(s, " \t\n\r")), nil
}

func fnRTrim(args []Value) (Value, error) {
	if err := argCount("rtrim", args, 1, 1); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("rtrim", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	return StringValue(strings.TrimRight(s, " \t\n\r")), nil
}

func fnSplit(args []Value) (Value, error) {
	if err := argCount("split", args, 2, 2); err != nil {
		return Null(), err
	}
	s, ok, err := stringArg("split", args[0])
	if err != nil || !ok {
		return Null(), err
	}
	sep, ok, err := stringArg("split", args[1])
	if err != nil || !ok {
		return Null(), err
	}
	parts := strings.Split(s, sep)
	items := make([]Value, len(parts))
	for i, p := range parts {
		items[i] = StringValue(p)
	}
	return ListValue(items), nil
}

// fnReverse flips a string (by rune) or a list.
func fnReverse(args []Value) (Value, error) {
	if err := argCount("reverse", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindString:
		runes := []rune(args[0].Str)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return StringValue(string(runes)), nil
	case KindList:
		out := make([]Value, len(args[0].List))
		for i, v := range args[0].List {
			out[len(out)-1-i] = v
		}
		return ListValue(out), nil
	}
	return Null(), typeErrorf("reverse", "expected a string or list, got %s", kindName(args[0].Kind))
}

func fnSize(args []Value) (Value, error) {
	if err := argCount("size", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindString:
		return IntValue(int64(len([]rune(args[0].Str)))), nil
	case KindList:
		return IntValue(int64(len(args[0].List))), nil
	case KindMap:
		return IntValue(int64(len(args[0].Map))), nil
	}
	return Null(), typeErrorf("size", "expected a string, list or map, got %s", kindName(args[0].Kind))
}

func fnToString(args []Value) (Value, error) {
	if err := argCount("toString", args, 1, 1); err != nil {
		return Null(), err
	}
	if args[0].IsNull() {
		return Null(), nil
	}
	return StringValue(args[0].String()), nil
}

func fnToInteger(args []Value) (Value, error) {
	if err := argCount("toInteger", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		return args[0], nil
	case KindFloat:
		return IntValue(int64(args[0].Float)), nil
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(args[0].Str), 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(strings.TrimSpace(args[0].Str), 64); ferr == nil {
				return IntValue(int64(f)), nil
			}
			return Null(), nil
		}
		return IntValue(n), nil
	}
	return Null(), typeErrorf("toInteger", "expected a number or string, got %s", kindName(args[0].Kind))
}

func fnToFloat(args []Value) (Value, error) {
	if err := argCount("toFloat", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		return FloatValue(float64(args[0].Int)), nil
	case KindFloat:
		return args[0], nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(args[0].Str), 64)
		if err != nil {
			return Null(), nil
		}
		return FloatValue(f), nil
	}
	return Null(), typeErrorf("toFloat", "expected a number or string, got %s", kindName(args[0].Kind))
}

func fnAbs(args []Value) (Value, error) {
	if err := argCount("abs", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindInt:
		if args[0].Int < 0 {
			return IntValue(-args[0].Int), nil
		}
		return args[0], nil
	case KindFloat:
		if args[0].Float < 0 {
			return FloatValue(-args[0].Float), nil
		}
		return args[0], nil
	}
	return Null(), typeErrorf("abs", "expected a number, got %s", kindName(args[0].Kind))
}

// fnCoalesce returns the first non-NULL argument.
func fnCoalesce(args []Value) (Value, error) {
	for _, v := range args {
		if !v.IsNull() {
			return v, nil
		}
	}
	return Null(), nil
}

func fnKeys(args []Value) (Value, error) {
	if err := argCount("keys", args, 1, 1); err != nil {
		return Null(), err
	}
	var names []string
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindNode:
		for k := range args[0].Node.Properties {
			names = append(names, k)
		}
	case KindRel:
		for k := range args[0].Rel.Properties {
			names = append(names, k)
		}
	case KindMap:
		for k := range args[0].Map {
			names = append(names, k)
		}
	default:
		return Null(), typeErrorf("keys", "expected a node, relationship or map, got %s", kindName(args[0].Kind))
	}
	sort.Strings(names)
	items := make([]Value, len(names))
	for i, n := range names {
		items[i] = StringValue(n)
	}
	return ListValue(items), nil
}

func fnID(args []Value) (Value, error) {
	if err := argCount("id", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindNode:
		return StringValue(string(args[0].Node.ID)), nil
	case KindRel:
		return StringValue(string(args[0].Rel.ID)), nil
	}
	return Null(), typeErrorf("id", "expected a node or relationship, got %s", kindName(args[0].Kind))
}

func fnLabels(args []Value) (Value, error) {
	if err := argCount("labels", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindNode:
		items := make([]Value, len(args[0].Node.Labels))
		for i, l := range args[0].Node.Labels {
			items[i] = StringValue(l)
		}
		return ListValue(items), nil
	}
	return Null(), typeErrorf("labels", "expected a node, got %s", kindName(args[0].Kind))
}

func fnType(args []Value) (Value, error) {
	if err := argCount("type", args, 1, 1); err != nil {
		return Null(), err
	}
	switch args[0].Kind {
	case KindNull:
		return Null(), nil
	case KindRel:
		return StringValue(args[0].Rel.Type), nil
	}
	return Null(), typeErrorf("type", "expected a relationship, got %s", kindName(args[0].Kind))
}

// =============================================================================
// AGGREGATES
// =============================================================================

// aggAccumulator folds one aggregate column over the rows of a group.
type aggAccumulator interface {
	add(v Value) error
	result() Value
}

// newAccumulator builds the accumulator for one aggregate item,
// wrapping it for DISTINCT when requested.
func newAccumulator(item AggItem) aggAccumulator {
	var acc aggAccumulator
	switch item.Func {
	case AggCount:
		acc = &countAcc{}
	case AggSum:
		acc = &sumAcc{}
	case AggAvg:
		acc = &avgAcc{}
	case AggMin:
		acc = &minMaxAcc{min: true}
	case AggMax:
		acc = &minMaxAcc{}
	default:
		acc = &collectAcc{}
	}
	if item.Distinct {
		return &distinctAcc{inner: acc, seen: map[uint64]bool{}}
	}
	return acc
}

// distinctAcc drops repeated values before forwarding to the wrapped
// accumulator. NULLs are forwarded untouched; every inner accumulator
// already ignores them.
type distinctAcc struct {
	inner aggAccumulator
	seen  map[uint64]bool
}

func (a *distinctAcc) add(v Value) error {
	if !v.IsNull() {
		d := xxhash.New()
		v.fingerprint(d)
		key := d.Sum64()
		if a.seen[key] {
			return nil
		}
		a.seen[key] = true
	}
	return a.inner.add(v)
}

func (a *distinctAcc) result() Value { return a.inner.result() }

// countAcc counts non-NULL values; count(*) feeds it a non-NULL marker
// per row.
type countAcc struct{ n int64 }

func (a *countAcc) add(v Value) error {
	if !v.IsNull() {
		a.n++
	}
	return nil
}

func (a *countAcc) result() Value { return IntValue(a.n) }

// sumAcc stays integral until a float value appears. An empty group sums
// to the integer zero.
type sumAcc struct {
	intSum   int64
	floatSum float64
	isFloat  bool
}

func (a *sumAcc) add(v Value) error {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt:
		if a.isFloat {
			a.floatSum += float64(v.Int)
		} else {
			a.intSum += v.Int
		}
		return nil
	case KindFloat:
		if !a.isFloat {
			a.isFloat = true
			a.floatSum = float64(a.intSum)
		}
		a.floatSum += v.Float
		return nil
	}
	return typeErrorf("sum", "expected a number, got %s", kindName(v.Kind))
}

func (a *sumAcc) result() Value {
	if a.isFloat {
		return FloatValue(a.floatSum)
	}
	return IntValue(a.intSum)
}

// avgAcc averages as float. An empty group averages to NULL.
type avgAcc struct {
	sum float64
	n   int64
}

func (a *avgAcc) add(v Value) error {
	switch v.Kind {
	case KindNull:
		return nil
	case KindInt, KindFloat:
		a.sum += v.asFloat()
		a.n++
		return nil
	}
	return typeErrorf("avg", "expected a number, got %s", kindName(v.Kind))
}

func (a *avgAcc) result() Value {
	if a.n == 0 {
		return Null()
	}
	return FloatValue(a.sum / float64(a.n))
}

// minMaxAcc tracks the extreme non-NULL value under compareValues.
type minMaxAcc struct {
	min  bool
	best Value
	any  bool
}

func (a *minMaxAcc) add(v Value) error {
	if v.IsNull() {
		return nil
	}
	if !a.any {
		a.best, a.any = v, true
		return nil
	}
	cmp := compareValues(v, a.best)
	if (a.min && cmp < 0) || (!a.min && cmp > 0) {
		a.best = v
	}
	return nil
}

func (a *minMaxAcc) result() Value {
	if !a.any {
		return Null()
	}
	return a.best
}

// collectAcc gathers non-NULL values in arrival order. An empty group
// collects to the empty list.
type collectAcc struct{ items []Value }

func (a *collectAcc) add(v Value) error {
	if v.IsNull() {
		return nil
	}
	a.items = append(a.items, v)
	return nil
}

func (a *collectAcc) result() Value {
	if a.items == nil {
		return ListValue([]Value{})
	}
	return ListValue(a.items)
}
