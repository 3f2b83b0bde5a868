// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package synth holds the pattern catalogue shared by both gate
// emitters (C3, C4): a flat match over the outer constructors of a
// normalized constraint's two sides, deriving selector coefficients from
// the table in spec.md §4.3 instead of writing one code arm per shape.
// Backend A (internal/stdplonk) and Backend B (internal/composerplonk)
// each supply a Sink that receives the resulting rows; this package
// knows nothing about either backend's wire/handle representation.
package synth

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/field"
)

// ErrUnsupportedConstraint names a constraint shape outside the
// normalized grammar. Per spec.md §7 this is fatal: it indicates a bug
// upstream of this repo's synthesis core, not a recoverable condition.
var ErrUnsupportedConstraint = errors.New("synth: unsupported constraint shape")

// Cell is a wire reference: either a circuit variable or the
// circuit-wide zero cell shared by every gate's unused wires.
type Cell struct {
	Zero bool
	Var  ast.VariableId
}

// ZeroCell is the shared unused-wire placeholder.
func ZeroCell() Cell { return Cell{Zero: true} }

// VarCell wires a gate slot to a circuit variable.
func VarCell(id ast.VariableId) Cell { return Cell{Var: id} }

func (c Cell) String() string {
	if c.Zero {
		return "0"
	}
	return fmt.Sprintf("v%d", c.Var)
}

// GateRow is a materialized row: three wires and five selector
// coefficients satisfying q_l*a + q_r*b + q_m*a*b + q_o*c + q_c = 0 when
// the wires take their witness values.
type GateRow[T any, PT field.Elt[T]] struct {
	Wires               [3]Cell
	QL, QR, QO, QM, QC T
}

// Sink is the capability set an emitter needs from its backend: learn
// about a variable's first occurrence, emit a row, and annotate a public
// input's position. Every later occurrence of the same VariableId is
// visible to the backend directly in a GateRow's Wires, so permutation
// (copy-constraint) wiring is the backend's job, not synth's — Backend A
// (internal/stdplonk) threads its own permutation argument from repeated
// ids across rows; Backend B (internal/composerplonk) gets this for free
// from its composer's handle-sharing.
type Sink[T any, PT field.Elt[T]] interface {
	BindVariable(id ast.VariableId)
	EmitRow(row GateRow[T, PT])
	SetPublicInput(id ast.VariableId, pos int)
}

// AllowSafeDivide controls whether the "|" operator may appear in a
// constraint's RHS. Backend A never evaluates "|" (it must not appear in
// its input); Backend B supports it per spec.md §4.3.
type AllowSafeDivide bool

const (
	SafeDivideForbidden AllowSafeDivide = false
	SafeDivideAllowed   AllowSafeDivide = true
)

// EmitConstraint classifies one top-level constraint and pushes its gate
// (or, for two literal constants, its zero-wire identity gate) into
// sink. bound tracks, across the whole synthesis pass, which variables
// have already had BindVariable called for them; a variable is bound
// exactly once no matter how many gates reference it afterward,
// satisfying spec.md §8 invariant 4 (variable identity).
func EmitConstraint[T any, PT field.Elt[T]](sink Sink[T, PT], bound map[ast.VariableId]bool, c ast.Constraint, allowSafe AllowSafeDivide) error {
	row, err := buildRow[T, PT](c, allowSafe)
	if err != nil {
		return err
	}
	for _, w := range row.Wires {
		if w.Zero || bound[w.Var] {
			continue
		}
		bound[w.Var] = true
		sink.BindVariable(w.Var)
	}
	sink.EmitRow(row)
	return nil
}

// leaf is a Variable or Constant, the only two shapes legal inside an
// Infix or as the operand of Negate in the normalized grammar.
type leaf struct {
	isVar bool
	v     ast.VariableId
	c     *big.Int
}

func asLeaf(e ast.Expr) (leaf, bool) {
	switch x := e.(type) {
	case ast.Variable:
		return leaf{isVar: true, v: x.Id}, true
	case ast.Constant:
		return leaf{c: x.Value}, true
	default:
		return leaf{}, false
	}
}

func (l leaf) cell() Cell {
	if l.isVar {
		return VarCell(l.v)
	}
	return ZeroCell()
}

func isVariable(e ast.Expr) bool {
	_, ok := e.(ast.Variable)
	return ok
}

func isSimple(e ast.Expr) bool {
	switch e.(type) {
	case ast.Variable, ast.Constant:
		return true
	default:
		return false
	}
}

// buildRow implements the full pattern catalogue of spec.md §4.3 as a
// derivation from constraint shape rather than one arm per table row.
//
// The table's final row covers "c1 on LHS, any RHS": symmetric, move c1
// into q_c and apply the RHS pattern. This falls out of preferring a
// variable target below (so "v1 = c2+v3" and "c2+v3 = v1" synthesize
// identically) and, once neither side is a variable, treating whichever
// side is a bare constant as the target — its value folds into q_c via
// linearRow (or the dedicated per-shape folding in buildInfixRow's
// multiply/divide arms) instead of occupying a wire.
func buildRow[T any, PT field.Elt[T]](c ast.Constraint, allowSafe AllowSafeDivide) (GateRow[T, PT], error) {
	lhs, rhs := c.Lhs, c.Rhs

	// c1 = c2: a zero-wire identity gate, satisfiable independent of any
	// witness iff q_c works out to zero (see SPEC_FULL.md §D.1 on scenario
	// S4, `0 = 1`, which compiles but never verifies).
	if lc, ok := lhs.(ast.Constant); ok {
		if rc, ok := rhs.(ast.Constant); ok {
			diff, err := field.Infix[T, PT](field.OpSub, field.MakeConstant[T, PT](lc.Value), field.MakeConstant[T, PT](rc.Value))
			if err != nil {
				return GateRow[T, PT]{}, fmt.Errorf("%w: %v", ErrUnsupportedConstraint, err)
			}
			row := GateRow[T, PT]{Wires: [3]Cell{ZeroCell(), ZeroCell(), ZeroCell()}}
			row.QC = diff.MustElem()
			return row, nil
		}
	}

	target, other := lhs, rhs
	switch {
	case isVariable(lhs):
	case isVariable(rhs):
		target, other = rhs, lhs
	case isSimple(lhs):
		target, other = lhs, rhs
	case isSimple(rhs):
		target, other = rhs, lhs
	default:
		return GateRow[T, PT]{}, fmt.Errorf("%w: neither side is a bare variable or constant", ErrUnsupportedConstraint)
	}

	targetLeaf, _ := asLeaf(target)

	// every wire starts on the shared zero cell; the arms below overwrite
	// only the slots they use.
	row := GateRow[T, PT]{Wires: [3]Cell{ZeroCell(), ZeroCell(), ZeroCell()}}
	var one T
	PT(&one).SetOne()

	switch o := other.(type) {
	case ast.Variable, ast.Constant:
		oLeaf, _ := asLeaf(other)
		row.Wires[0] = targetLeaf.cell()
		row.QL = one
		if oLeaf.isVar {
			row.Wires[1] = oLeaf.cell()
			PT(&row.QR).Neg(&one)
		} else {
			row.QC = negConst[T, PT](oLeaf)
		}

	case ast.Negate:
		inner, ok := asLeaf(o.X)
		if !ok {
			return GateRow[T, PT]{}, fmt.Errorf("%w: negation of non-leaf", ErrUnsupportedConstraint)
		}
		// target = -inner  ->  target + inner = 0. linearRow folds
		// whichever of target/inner is a bare constant into q_c, so this
		// covers a variable or a constant target identically.
		if err := linearRow[T, PT](&row, []weighted[T]{{one, targetLeaf}, {one, inner}}); err != nil {
			return GateRow[T, PT]{}, err
		}

	case ast.Infix:
		a, aok := asLeaf(o.A)
		b, bok := asLeaf(o.B)
		if !aok || !bok {
			return GateRow[T, PT]{}, fmt.Errorf("%w: infix operand is not a leaf", ErrUnsupportedConstraint)
		}
		if err := buildInfixRow[T, PT](&row, targetLeaf, o.Op, a, b, allowSafe); err != nil {
			return GateRow[T, PT]{}, err
		}

	default:
		return GateRow[T, PT]{}, fmt.Errorf("%w: %#v", ErrUnsupportedConstraint, other)
	}

	return row, nil
}

// weighted is one term of a linear combination: coeff*term, where term is
// either a variable (occupying the next free wire slot) or a constant
// (folded into the accumulated q_c).
type weighted[T any] struct {
	coeff T
	term  leaf
}

// linearRow distributes terms across a gate's three wire slots in order,
// assigning q_l/q_r/q_o to each variable term's coefficient and summing
// every constant term's coeff*value into q_c. At most three terms may be
// variables; callers that also need a product term (q_m) build it
// directly rather than calling linearRow. base, if given, seeds q_c
// before any constant term is folded in.
func linearRow[T any, PT field.Elt[T]](row *GateRow[T, PT], terms []weighted[T], base ...T) error {
	var qc T
	if len(base) > 0 {
		qc = base[0]
	}
	slot := 0
	for _, t := range terms {
		if t.term.isVar {
			if slot > 2 {
				return fmt.Errorf("%w: more than three variables in one gate", ErrUnsupportedConstraint)
			}
			switch slot {
			case 0:
				row.Wires[0], row.QL = t.term.cell(), t.coeff
			case 1:
				row.Wires[1], row.QR = t.term.cell(), t.coeff
			case 2:
				row.Wires[2], row.QO = t.term.cell(), t.coeff
			}
			slot++
			continue
		}
		contrib, err := field.Infix[T, PT](field.OpMul, field.Known[T, PT](t.coeff), field.MakeConstant[T, PT](t.term.c))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedConstraint, err)
		}
		sum, err := field.Infix[T, PT](field.OpAdd, field.Known[T, PT](qc), contrib)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedConstraint, err)
		}
		qc = sum.MustElem()
	}
	row.QC = qc
	return nil
}

// buildInfixRow derives the gate for "target = a <op> b". target is
// usually a bare variable, but per spec.md §4.3's final table row it may
// also be a bare constant (buildRow's target/other selection only
// prefers a variable, it does not require one) — every arm below folds
// a constant target into q_c instead of assigning it a wire. Add and
// Subtract reduce to a three-term linear combination; Multiply needs a
// genuine q_m product only when both a and b are variables, otherwise it
// reduces to a scaled linear term; Divide cross-multiplies into
// target*b - a = 0 when b is a variable (linear in b when target is a
// known constant instead), or scales by b's inverse when b is a known
// nonzero constant. SafeDivide matches Divide in every shape except a
// literal zero constant denominator, where spec.md requires the gate to
// force target to zero instead of failing to compile.
func buildInfixRow[T any, PT field.Elt[T]](row *GateRow[T, PT], target leaf, op ast.InfixOp, a, b leaf, allowSafe AllowSafeDivide) error {
	var one, negOne T
	PT(&one).SetOne()
	PT(&negOne).Neg(&one)

	switch op {
	case ast.Add, ast.Subtract:
		// target = a + b  ->  target - a - b = 0
		// target = a - b  ->  target - a + b = 0
		bCoeff := negOne
		if op == ast.Subtract {
			bCoeff = one
		}
		return linearRow[T, PT](row, []weighted[T]{{one, target}, {negOne, a}, {bCoeff, b}})

	case ast.Multiply:
		if a.isVar && b.isVar {
			row.Wires[0] = a.cell()
			row.Wires[1] = b.cell()
			if target.isVar {
				// (a, b, target) | q_m=-1, q_o=1: target - a*b = 0
				row.Wires[2] = target.cell()
				row.QM = negOne
				row.QO = one
				return nil
			}
			// constant target: a*b - target = 0, target has no wire.
			row.QM = one
			row.QC = negConst[T, PT](target)
			return nil
		}
		if !a.isVar && !b.isVar {
			prod, err := field.Infix[T, PT](field.OpMul, field.MakeConstant[T, PT](a.c), field.MakeConstant[T, PT](b.c))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnsupportedConstraint, err)
			}
			var negProd T
			pv := prod.MustElem()
			PT(&negProd).Neg(&pv)
			return linearRow[T, PT](row, []weighted[T]{{one, target}}, negProd)
		}
		coeffLeaf, varLeaf := a, b
		if a.isVar {
			coeffLeaf, varLeaf = b, a
		}
		coeff := field.MakeConstant[T, PT](coeffLeaf.c).MustElem()
		var negCoeff T
		PT(&negCoeff).Neg(&coeff)
		return linearRow[T, PT](row, []weighted[T]{{one, target}, {negCoeff, varLeaf}})

	case ast.Divide, ast.SafeDivide:
		safe := op == ast.SafeDivide
		if safe && !bool(allowSafe) {
			return fmt.Errorf("%w: safe-divide not permitted in this backend", ErrUnsupportedConstraint)
		}

		if !b.isVar {
			if b.c.Sign() == 0 {
				if !safe {
					return fmt.Errorf("%w: division by literal zero", ErrUnsupportedConstraint)
				}
				*row = GateRow[T, PT]{Wires: [3]Cell{ZeroCell(), ZeroCell(), ZeroCell()}}
				if target.isVar {
					row.Wires[0] = target.cell()
					row.QL = one
					return nil
				}
				// constant target: the forced-zero witness value must
				// equal target's own constant, or the gate never holds.
				row.QC = field.MakeConstant[T, PT](target.c).MustElem()
				return nil
			}
			be := field.MakeConstant[T, PT](b.c).MustElem()
			var inv T
			PT(&inv).Inverse(&be)
			if !a.isVar {
				q, err := field.Infix[T, PT](field.OpMul, field.MakeConstant[T, PT](a.c), field.Known[T, PT](inv))
				if err != nil {
					return fmt.Errorf("%w: %v", ErrUnsupportedConstraint, err)
				}
				var negQ T
				qv := q.MustElem()
				PT(&negQ).Neg(&qv)
				return linearRow[T, PT](row, []weighted[T]{{one, target}}, negQ)
			}
			var negInv T
			PT(&negInv).Neg(&inv)
			return linearRow[T, PT](row, []weighted[T]{{one, target}, {negInv, a}})
		}

		// variable denominator: target*b - a = 0. "/" and "|" share this
		// gate; a witness-level zero denominator under "|" evaluates to
		// target=0 (field.Infix's OpSafeDiv) but that witness value must
		// still satisfy this same gate, so it only holds when a is zero too.
		if target.isVar {
			row.Wires[0] = target.cell()
			row.Wires[1] = b.cell()
			row.QM = one
			if a.isVar {
				row.Wires[2] = a.cell()
				row.QO = negOne
			} else {
				row.QC = negConst[T, PT](a)
			}
			return nil
		}
		// constant target: target*b - a = 0 is linear in b since target's
		// value is already known, so it folds through linearRow like every
		// other constant-target arm instead of using q_m.
		tCoeff := field.MakeConstant[T, PT](target.c).MustElem()
		return linearRow[T, PT](row, []weighted[T]{{tCoeff, b}, {negOne, a}})

	default:
		return fmt.Errorf("%w: infix operator %s inside compound expression", ErrUnsupportedConstraint, op)
	}
}

func negConst[T any, PT field.Elt[T]](l leaf) T {
	v := field.MakeConstant[T, PT](l.c)
	e := v.MustElem()
	var out T
	PT(&out).Neg(&e)
	return out
}
