// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package sourceio reads the already-normalized three-address module that
// an upstream parser/normalizer hands to the core (source parsing and
// algebraic simplification are an external collaborator, per spec), and
// reads the decimal-or-hex witness input files the prove command
// consumes. Both are plain JSON, encoded/decoded with encoding/json in
// the teacher's ambient style.
package sourceio

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"

	"github.com/logical-mechanism/circuitforge/internal/ast"
)

type exprJSON struct {
	Var   *int      `json:"var,omitempty"`
	Const *string   `json:"const,omitempty"`
	Neg   *exprJSON `json:"neg,omitempty"`
	Op    string    `json:"op,omitempty"`
	A     *exprJSON `json:"a,omitempty"`
	B     *exprJSON `json:"b,omitempty"`
}

var infixOps = map[string]ast.InfixOp{
	"+": ast.Add, "-": ast.Subtract, "*": ast.Multiply, "/": ast.Divide,
	"|": ast.SafeDivide, "\\": ast.IntDivide, "%": ast.Modulo, "^": ast.Exponentiate,
}

func (e *exprJSON) toExpr() (ast.Expr, error) {
	if e == nil {
		return nil, fmt.Errorf("sourceio: nil expression")
	}
	switch {
	case e.Var != nil:
		return ast.Variable{Id: ast.VariableId(*e.Var)}, nil
	case e.Const != nil:
		n := new(big.Int)
		if _, ok := n.SetString(*e.Const, 0); !ok {
			return nil, fmt.Errorf("sourceio: invalid constant literal %q", *e.Const)
		}
		return ast.Constant{Value: n}, nil
	case e.Neg != nil:
		x, err := e.Neg.toExpr()
		if err != nil {
			return nil, err
		}
		return ast.Negate{X: x}, nil
	case e.Op != "":
		op, ok := infixOps[e.Op]
		if !ok {
			return nil, fmt.Errorf("sourceio: unknown operator %q", e.Op)
		}
		a, err := e.A.toExpr()
		if err != nil {
			return nil, err
		}
		b, err := e.B.toExpr()
		if err != nil {
			return nil, err
		}
		return ast.Infix{Op: op, A: a, B: b}, nil
	default:
		return nil, fmt.Errorf("sourceio: expression has no recognized shape")
	}
}

type definitionJSON struct {
	Lhs int       `json:"lhs"`
	Rhs *exprJSON `json:"rhs"`
}

type constraintJSON struct {
	Lhs *exprJSON `json:"lhs"`
	Rhs *exprJSON `json:"rhs"`
}

type moduleJSON struct {
	Definitions []definitionJSON `json:"definitions"`
	Constraints []constraintJSON `json:"constraints"`
	Pubs        []int            `json:"pubs"`
}

// ReadModule decodes a normalized three-address module from path.
func ReadModule(path string) (*ast.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sourceio: read %s: %w", path, err)
	}
	var mj moduleJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return nil, fmt.Errorf("sourceio: parse %s: %w", path, err)
	}

	m := &ast.Module{}
	for i, d := range mj.Definitions {
		rhs, err := d.Rhs.toExpr()
		if err != nil {
			return nil, fmt.Errorf("sourceio: definition %d: %w", i, err)
		}
		m.Definitions = append(m.Definitions, ast.Definition{Lhs: ast.Pat{Id: ast.VariableId(d.Lhs)}, Rhs: rhs})
	}
	for i, c := range mj.Constraints {
		lhs, err := c.Lhs.toExpr()
		if err != nil {
			return nil, fmt.Errorf("sourceio: constraint %d lhs: %w", i, err)
		}
		rhs, err := c.Rhs.toExpr()
		if err != nil {
			return nil, fmt.Errorf("sourceio: constraint %d rhs: %w", i, err)
		}
		m.Constraints = append(m.Constraints, ast.Constraint{Lhs: lhs, Rhs: rhs})
	}
	for _, p := range mj.Pubs {
		m.Pubs = append(m.Pubs, ast.VariableId(p))
	}
	return m, nil
}

// ReadInputs decodes a mapping from VariableId (as a decimal string key)
// to a signed decimal-or-hex integer literal, the collaborator-defined
// inputs-file format spec.md leaves open.
func ReadInputs(path string) (map[ast.VariableId]*big.Int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sourceio: read %s: %w", path, err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sourceio: parse %s: %w", path, err)
	}
	out := make(map[ast.VariableId]*big.Int, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("sourceio: invalid variable id %q: %w", k, err)
		}
		n := new(big.Int)
		if _, ok := n.SetString(v, 0); !ok {
			return nil, fmt.Errorf("sourceio: invalid input value %q for variable %s", v, k)
		}
		out[ast.VariableId(id)] = n
	}
	return out, nil
}
