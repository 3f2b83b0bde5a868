// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package witness

import (
	"errors"
	"math/big"
	"testing"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/field"
)

func big64(v int64) *big.Int { return big.NewInt(v) }

func elemOf(t *testing.T, v field.Value[bn254fr.Element, *bn254fr.Element]) *big.Int {
	t.Helper()
	e := v.MustElem()
	var bi big.Int
	(&e).BigInt(&bi)
	return &bi
}

// canonicalOf gives the same non-negative, mod-p representative that a
// field element's BigInt produces, so expected values outside [0, p) (in
// particular negative ones) can be compared directly against elemOf.
func canonicalOf(want int64) *big.Int {
	return field.Canonical[bn254fr.Element, *bn254fr.Element](big64(want))
}

// {x = 3, y = x + 4, z = y * 2}: spec.md's S1.
func TestEvaluate_DefinitionChain(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Constant{Value: big64(3)}},
			{Lhs: ast.Pat{Id: 2}, Rhs: ast.Infix{Op: ast.Add, A: ast.Variable{Id: 1}, B: ast.Constant{Value: big64(4)}}},
			{Lhs: ast.Pat{Id: 3}, Rhs: ast.Infix{Op: ast.Multiply, A: ast.Variable{Id: 2}, B: ast.Constant{Value: big64(2)}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	out, err := e.PopulateVariables([]ast.VariableId{1, 2, 3})
	if err != nil {
		t.Fatalf("PopulateVariables: %v", err)
	}
	if got := elemOf(t, out[3]).Int64(); got != 14 {
		t.Fatalf("z: want 14, got %d", got)
	}
}

func TestEvaluate_SeededInputOverridesDefinition(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Constant{Value: big64(99)}},
		},
	}
	inputs := map[ast.VariableId]field.Value[bn254fr.Element, *bn254fr.Element]{
		1: field.MakeConstant[bn254fr.Element](big64(5)),
	}
	e := New[bn254fr.Element](module, inputs)

	v, err := e.Evaluate(ast.Variable{Id: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := elemOf(t, v).Int64(); got != 5 {
		t.Fatalf("want seeded input 5 to win over definition, got %d", got)
	}
}

func TestEvaluate_UndefinedVariable_IsUnreachable(t *testing.T) {
	e := New[bn254fr.Element](&ast.Module{}, nil)

	_, err := e.Evaluate(ast.Variable{Id: 42})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestEvaluate_CyclicDefinition_IsDetected(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Variable{Id: 2}},
			{Lhs: ast.Pat{Id: 2}, Rhs: ast.Variable{Id: 1}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	_, err := e.Evaluate(ast.Variable{Id: 1})
	if !errors.Is(err, ErrCyclicDefinition) {
		t.Fatalf("expected ErrCyclicDefinition, got %v", err)
	}
}

func TestEvaluate_StrictDivideByZero_IsUnreachable(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Infix{Op: ast.Divide, A: ast.Constant{Value: big64(5)}, B: ast.Constant{Value: big64(0)}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	_, err := e.Evaluate(ast.Variable{Id: 1})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected division by zero to surface as ErrUnreachable, got %v", err)
	}
}

func TestEvaluate_SafeDivideByZero_ReturnsZero(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Infix{Op: ast.SafeDivide, A: ast.Constant{Value: big64(5)}, B: ast.Constant{Value: big64(0)}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	v, err := e.Evaluate(ast.Variable{Id: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := elemOf(t, v).Int64(); got != 0 {
		t.Fatalf("safe-divide by zero: want 0, got %d", got)
	}
}

func TestEvaluate_IntDivideAndModulo_UseCanonicalRepresentatives(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Infix{Op: ast.IntDivide, A: ast.Constant{Value: big64(-7)}, B: ast.Constant{Value: big64(2)}}},
			{Lhs: ast.Pat{Id: 2}, Rhs: ast.Infix{Op: ast.Modulo, A: ast.Constant{Value: big64(-7)}, B: ast.Constant{Value: big64(2)}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	// Both operands are evaluated to field elements first, so -7 enters
	// the integer division as its canonical representative p-7, which is
	// even because p is odd.
	pMinus7 := canonicalOf(-7)

	q, err := e.Evaluate(ast.Variable{Id: 1})
	if err != nil {
		t.Fatalf("Evaluate quotient: %v", err)
	}
	if got := elemOf(t, q); got.Cmp(new(big.Int).Quo(pMinus7, big64(2))) != 0 {
		t.Fatalf("-7 \\ 2: want (p-7)/2, got %s", got)
	}

	r, err := e.Evaluate(ast.Variable{Id: 2})
	if err != nil {
		t.Fatalf("Evaluate remainder: %v", err)
	}
	if got := elemOf(t, r); got.Cmp(canonicalOf(0)) != 0 {
		t.Fatalf("-7 %% 2: want 0, got %s", got)
	}
}

func TestEvaluate_ExponentiateNegative_IsInverse(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Infix{Op: ast.Exponentiate, A: ast.Constant{Value: big64(2)}, B: ast.Constant{Value: big64(-1)}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	v, err := e.Evaluate(ast.Variable{Id: 1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	two := field.MakeConstant[bn254fr.Element](big64(2))
	product, err := field.Infix[bn254fr.Element](field.OpMul, v, two)
	if err != nil {
		t.Fatalf("Infix: %v", err)
	}
	if got := elemOf(t, product).Int64(); got != 1 {
		t.Fatalf("2^-1 * 2: want 1, got %d", got)
	}
}

func TestEvaluate_ExponentiateNonConstant_IsUnreachable(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Constant{Value: big64(2)}},
			{Lhs: ast.Pat{Id: 2}, Rhs: ast.Infix{Op: ast.Exponentiate, A: ast.Variable{Id: 1}, B: ast.Variable{Id: 1}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	_, err := e.Evaluate(ast.Variable{Id: 2})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable for non-constant exponent, got %v", err)
	}
}

func TestEvaluate_NegateAndMemoization(t *testing.T) {
	module := &ast.Module{
		Definitions: []ast.Definition{
			{Lhs: ast.Pat{Id: 1}, Rhs: ast.Constant{Value: big64(9)}},
			{Lhs: ast.Pat{Id: 2}, Rhs: ast.Negate{X: ast.Variable{Id: 1}}},
		},
	}
	e := New[bn254fr.Element](module, nil)

	v1, err := e.Evaluate(ast.Variable{Id: 2})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := elemOf(t, v1); got.Cmp(canonicalOf(-9)) != 0 {
		t.Fatalf("want -9, got %s", got)
	}

	// Second evaluation hits the memoized assignment, not the definition.
	v2, err := e.Evaluate(ast.Variable{Id: 2})
	if err != nil {
		t.Fatalf("Evaluate (memoized): %v", err)
	}
	if elemOf(t, v1).Cmp(elemOf(t, v2)) != 0 {
		t.Fatalf("memoized evaluation diverged from first evaluation")
	}
}
