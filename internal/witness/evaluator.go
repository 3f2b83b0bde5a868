// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package witness is the witness evaluator (C2). It recursively computes
// field values for variables from a definition map and a partial
// assignment, memoizing results into that assignment as it goes.
package witness

import (
	"errors"
	"fmt"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/field"
)

// ErrUnreachable signals that the evaluator met an expression shape the
// normalized grammar never produces, or divided by zero in the strict
// ("/") variant. Per spec.md §7 this is a fatal programmer error: it
// indicates a bug upstream of this package, not a recoverable condition,
// so callers should treat it as fatal rather than retry.
var ErrUnreachable = errors.New("witness: unreachable expression shape")

// ErrCyclicDefinition signals that PopulateVariables's definition map
// contains a cycle (v := ... v ...). The naive recursive evaluator would
// recurse without termination on such input (see DESIGN.md); this
// package instead detects the cycle on the recursion stack and fails
// with a named error pointing at the offending variable.
var ErrCyclicDefinition = errors.New("witness: cyclic variable definition")

// Evaluator holds the cloned, mutable definition map and the
// user-seeded, mutable assignment map. The definition map is cloned from
// the module at construction so memoization into assigns never aliases
// the module's own Definitions slice.
type Evaluator[T any, PT field.Elt[T]] struct {
	defs    map[ast.VariableId]ast.Expr
	assigns map[ast.VariableId]field.Value[T, PT]
	onStack map[ast.VariableId]bool
}

// New builds an Evaluator for module, seeding its assignment map with
// inputs (typically decoded from the CLI's inputs file). inputs is not
// retained; the Evaluator keeps its own copy.
func New[T any, PT field.Elt[T]](module *ast.Module, inputs map[ast.VariableId]field.Value[T, PT]) *Evaluator[T, PT] {
	defs := make(map[ast.VariableId]ast.Expr, len(module.Definitions))
	for _, d := range module.Definitions {
		defs[d.Lhs.Id] = d.Rhs
	}
	assigns := make(map[ast.VariableId]field.Value[T, PT], len(inputs))
	for k, v := range inputs {
		assigns[k] = v
	}
	return &Evaluator[T, PT]{
		defs:    defs,
		assigns: assigns,
		onStack: make(map[ast.VariableId]bool),
	}
}

// Evaluate computes the field value of expr, per spec.md §4.2's six
// rules. Results for Variable nodes are memoized into the evaluator's
// assignment map.
func (e *Evaluator[T, PT]) Evaluate(expr ast.Expr) (field.Value[T, PT], error) {
	switch x := expr.(type) {
	case ast.Constant:
		return field.MakeConstant[T, PT](x.Value), nil

	case ast.Variable:
		if v, ok := e.assigns[x.Id]; ok {
			return v, nil
		}
		def, ok := e.defs[x.Id]
		if !ok {
			return field.Unknown[T, PT](), fmt.Errorf("%w: variable %d has no definition and no input", ErrUnreachable, x.Id)
		}
		if e.onStack[x.Id] {
			return field.Unknown[T, PT](), fmt.Errorf("%w: variable %d", ErrCyclicDefinition, x.Id)
		}
		e.onStack[x.Id] = true
		v, err := e.Evaluate(def)
		delete(e.onStack, x.Id)
		if err != nil {
			return field.Unknown[T, PT](), err
		}
		e.assigns[x.Id] = v
		return v, nil

	case ast.Negate:
		v, err := e.Evaluate(x.X)
		if err != nil {
			return field.Unknown[T, PT](), err
		}
		return field.Negate[T, PT](v), nil

	case ast.Infix:
		switch x.Op {
		case ast.IntDivide, ast.Modulo:
			a, err := e.Evaluate(x.A)
			if err != nil {
				return field.Unknown[T, PT](), err
			}
			b, err := e.Evaluate(x.B)
			if err != nil {
				return field.Unknown[T, PT](), err
			}
			if x.Op == ast.IntDivide {
				v, err := field.IntDiv[T, PT](a, b)
				return v, wrapDivZero(err)
			}
			v, err := field.Mod[T, PT](a, b)
			return v, wrapDivZero(err)

		case ast.Exponentiate:
			a, err := e.Evaluate(x.A)
			if err != nil {
				return field.Unknown[T, PT](), err
			}
			expConst, ok := x.B.(ast.Constant)
			if !ok {
				return field.Unknown[T, PT](), fmt.Errorf("%w: exponent must be a constant", ErrUnreachable)
			}
			v, err := field.Pow[T, PT](a, expConst.Value)
			return v, wrapDivZero(err)

		case ast.Add, ast.Subtract, ast.Multiply, ast.Divide, ast.SafeDivide:
			a, err := e.Evaluate(x.A)
			if err != nil {
				return field.Unknown[T, PT](), err
			}
			b, err := e.Evaluate(x.B)
			if err != nil {
				return field.Unknown[T, PT](), err
			}
			op := map[ast.InfixOp]field.Op{
				ast.Add:       field.OpAdd,
				ast.Subtract:  field.OpSub,
				ast.Multiply:  field.OpMul,
				ast.Divide:    field.OpDiv,
				ast.SafeDivide: field.OpSafeDiv,
			}[x.Op]
			v, err := field.Infix[T, PT](op, a, b)
			return v, wrapDivZero(err)

		default:
			return field.Unknown[T, PT](), fmt.Errorf("%w: infix operator %s", ErrUnreachable, x.Op)
		}

	default:
		return field.Unknown[T, PT](), fmt.Errorf("%w: %T", ErrUnreachable, expr)
	}
}

func wrapDivZero(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, field.ErrDivideByZero) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}

// PopulateVariables evaluates every variable in vars against e's
// definitions and the seeded inputs, returning the full witness map. Its
// post-condition is that every entry in the returned map is a known
// field value; if evaluation of any variable fails, the first error is
// returned and the map is not fully populated.
func (e *Evaluator[T, PT]) PopulateVariables(vars []ast.VariableId) (map[ast.VariableId]field.Value[T, PT], error) {
	out := make(map[ast.VariableId]field.Value[T, PT], len(vars))
	for _, v := range vars {
		val, err := e.Evaluate(ast.Variable{Id: v})
		if err != nil {
			return nil, fmt.Errorf("witness: populate variable %d: %w", v, err)
		}
		out[v] = val
	}
	return out, nil
}
