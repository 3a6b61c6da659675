// Constraint validation, run synchronously against a transaction's
// pending write set before its WAL segment is committed. Any violation
// aborts the transaction with no visible side effect.
package storage

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// compilePredicate builds a CEL program for a PREDICATE constraint.
// The expression sees `props` (the node's property map) and `labels`
// (the node's label list) and must evaluate to a boolean.
func compilePredicate(expression string) (cel.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("predicate constraint needs an expression: %w", ErrInvalidData)
	}
	env, err := cel.NewEnv(
		cel.Variable("props", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("labels", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile predicate: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("predicate must be boolean, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

// celProps renders properties into CEL-friendly values (temporals and
// points become strings/maps; numeric widths are preserved).
func celProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = celValue(v)
	}
	return out
}

func celValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case Point:
		return map[string]any{"x": t.X, "y": t.Y}
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = celValue(e)
		}
		return out
	case map[string]any:
		return celProps(t)
	default:
		return v
	}
}

// check evaluates the constraint against one node state. Unique
// constraints are handled separately because they need cross-entity
// state; this covers EXISTS, TYPE and PREDICATE.
func (con *Constraint) check(n *Node) error {
	switch con.Kind {
	case ConstraintExists:
		v, ok := n.Properties[con.Property]
		if !ok || v == nil {
			return &ConstraintViolation{
				Constraint: con.Name, Kind: con.Kind,
				Label: con.Label, Property: con.Property,
				EntityID: string(n.ID),
				Detail:   "required property is missing or null",
			}
		}

	case ConstraintType:
		v, ok := n.Properties[con.Property]
		if !ok || v == nil {
			return nil // absence is the EXISTS constraint's concern
		}
		if got := propTypeName(v); got != con.PropType {
			return &ConstraintViolation{
				Constraint: con.Name, Kind: con.Kind,
				Label: con.Label, Property: con.Property,
				EntityID: string(n.ID),
				Detail:   fmt.Sprintf("expected %s, got %s", con.PropType, got),
			}
		}

	case ConstraintPredicate:
		out, _, err := con.program.Eval(map[string]any{
			"props":  celProps(n.Properties),
			"labels": append([]string(nil), n.Labels...),
		})
		if err != nil {
			return &ConstraintViolation{
				Constraint: con.Name, Kind: con.Kind,
				Label: con.Label, Property: con.Property,
				EntityID: string(n.ID),
				Detail:   fmt.Sprintf("predicate evaluation failed: %v", err),
			}
		}
		if ok, _ := out.Value().(bool); !ok {
			return &ConstraintViolation{
				Constraint: con.Name, Kind: con.Kind,
				Label: con.Label, Property: con.Property,
				EntityID: string(n.ID),
				Detail:   fmt.Sprintf("predicate %q is false", con.Expression),
			}
		}
	}
	return nil
}

// propTypeName maps a stored property value to its declared type name.
func propTypeName(v any) string {
	switch v.(type) {
	case string:
		return "STRING"
	case int, int32, int64:
		return "INTEGER"
	case float32, float64:
		return "FLOAT"
	case bool:
		return "BOOLEAN"
	case []any:
		return "LIST"
	case map[string]any:
		return "MAP"
	case Point, *Point:
		return "POINT"
	case time.Time:
		return "DATETIME"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// validateBatch checks one transaction's write set against every declared
// constraint. Old states let unique validation release the values the
// batch overwrites or deletes before claiming new ones, so moving a value
// between nodes within one transaction is legal.
func (c *Catalog) validateBatch(ops []committedOp) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, con := range c.constraints {
		if con.Kind == ConstraintUnique {
			if err := c.validateUnique(con, ops); err != nil {
				return err
			}
			continue
		}
		for _, co := range ops {
			node := co.op.Node
			if node == nil || !node.HasLabel(con.Label) {
				continue
			}
			if err := con.check(node); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Catalog) validateUnique(con *Constraint, ops []committedOp) error {
	released := make(map[string]struct{})
	claimed := make(map[string]NodeID)

	release := func(n *Node) {
		if n == nil || !n.HasLabel(con.Label) {
			return
		}
		if v, ok := n.Properties[con.Property]; ok && v != nil {
			released[uniqueKey(v)] = struct{}{}
		}
	}

	for _, co := range ops {
		switch co.op.Type {
		case OpDeleteNode:
			release(co.oldNode)
		case OpUpdateNode:
			release(co.oldNode)
		}
	}

	for _, co := range ops {
		node := co.op.Node
		if node == nil || !node.HasLabel(con.Label) {
			continue
		}
		v, ok := node.Properties[con.Property]
		if !ok || v == nil {
			continue
		}
		key := uniqueKey(v)

		if owner, dup := claimed[key]; dup && owner != node.ID {
			return uniqueViolation(con, node, v)
		}
		if owner, exists := con.values[key]; exists && owner != node.ID {
			if _, freed := released[key]; !freed {
				return uniqueViolation(con, node, v)
			}
		}
		claimed[key] = node.ID
	}
	return nil
}

func uniqueViolation(con *Constraint, n *Node, v any) error {
	return &ConstraintViolation{
		Constraint: con.Name, Kind: ConstraintUnique,
		Label: con.Label, Property: con.Property,
		EntityID: string(n.ID),
		Detail:   fmt.Sprintf("value %v already exists", v),
	}
}
