// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package field is the field-arithmetic adapter (C1). It converts
// between signed arbitrary-precision integers and elements of a backend's
// prime field, and implements the small set of operations the witness
// evaluator and gate emitters need: negate, add, sub, mul, div, safe-div,
// int-div, mod, pow.
//
// The adapter is generic over the concrete field element type so that
// Backend A (bn254/fr, standard-Plonk) and Backend B (bls12-381/fr,
// composer-Plonk) share every line of this package instead of
// duplicating it. gnark-crypto's per-curve fr.Element types are generated
// from the same template and expose an identical method set, which is
// exactly what the Elt constraint below requires.
package field

import "math/big"

// Elt is satisfied by *fr.Element for every curve gnark-crypto ships
// (bn254, bls12-381, ...): all are generated from the same field-element
// template and share this method set.
type Elt[T any] interface {
	*T
	SetBigInt(*big.Int) *T
	BigInt(*big.Int) *big.Int
	Add(a, b *T) *T
	Sub(a, b *T) *T
	Mul(a, b *T) *T
	Neg(a *T) *T
	Inverse(a *T) *T
	Exp(a T, e *big.Int) *T
	IsZero() bool
	SetZero() *T
	SetOne() *T
	Equal(a *T) bool
}

// Value is a field element or the distinguished "unknown" marker. Unknown
// and known values form a sum; every arithmetic operation on an unknown
// operand propagates unknown rather than panicking, per spec: unknown
// witness slots are legal right up until PopulateVariables runs.
type Value[T any, PT Elt[T]] struct {
	known bool
	v     T
}

// Unknown returns the unknown marker for T.
func Unknown[T any, PT Elt[T]]() Value[T, PT] {
	return Value[T, PT]{}
}

// Known wraps a concrete field element as a known Value.
func Known[T any, PT Elt[T]](v T) Value[T, PT] {
	return Value[T, PT]{known: true, v: v}
}

// IsUnknown reports whether v carries no field element yet.
func (v Value[T, PT]) IsUnknown() bool { return !v.known }

// Elem returns the underlying field element and true, or the zero value
// and false if v is unknown.
func (v Value[T, PT]) Elem() (T, bool) { return v.v, v.known }

// MustElem returns the underlying field element, panicking if v is
// unknown. Callers that have already checked IsUnknown, or that are
// downstream of PopulateVariables's post-condition, use this.
func (v Value[T, PT]) MustElem() T {
	if !v.known {
		panic("field: value is unknown")
	}
	return v.v
}

// Canonical returns a mod p as a non-negative big-integer, where p is the
// field's modulus (implicit in T via PT's arithmetic).
func Canonical[T any, PT Elt[T]](a *big.Int) *big.Int {
	var e T
	PT(&e).SetBigInt(a)
	out := new(big.Int)
	PT(&e).BigInt(out)
	return out
}

// MakeConstant maps a signed big-integer c to a field element by taking
// |c| modulo p and negating when c < 0. It must behave identically to
// Canonical composed with embedding, which SetBigInt already guarantees
// for gnark-crypto's Element (it reduces negative big.Int values
// correctly), but the |c|-then-negate path is spelled out explicitly so
// the sign handling matches the evaluator's Negate case bit for bit.
func MakeConstant[T any, PT Elt[T]](c *big.Int) Value[T, PT] {
	var e T
	abs := new(big.Int).Abs(c)
	PT(&e).SetBigInt(abs)
	if c.Sign() < 0 {
		PT(&e).Neg(&e)
	}
	return Known[T, PT](e)
}

// Negate returns (-a) mod p. Unknown propagates.
func Negate[T any, PT Elt[T]](a Value[T, PT]) Value[T, PT] {
	ae, ok := a.Elem()
	if !ok {
		return Unknown[T, PT]()
	}
	var out T
	PT(&out).Neg(&ae)
	return Known[T, PT](out)
}

// ErrDivideByZero is returned by strict division (and by Pow on a zero
// base with a negative exponent) when the denominator is zero mod p.
var ErrDivideByZero = errDivideByZero{}

type errDivideByZero struct{}

func (errDivideByZero) Error() string { return "field: division by zero" }

// Infix evaluates one of the field's binary operators. op must be one of
// Add, Sub, Mul, Div, or SafeDiv; IntDiv and Mod are integer (not field)
// operations and are handled separately by the evaluator, and Equal is a
// constraint shape, never an evaluable expression — callers must not pass
// it here.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpSafeDiv
)

func Infix[T any, PT Elt[T]](op Op, a, b Value[T, PT]) (Value[T, PT], error) {
	ae, aok := a.Elem()
	be, bok := b.Elem()
	if !aok || !bok {
		return Unknown[T, PT](), nil
	}
	var out T
	switch op {
	case OpAdd:
		PT(&out).Add(&ae, &be)
	case OpSub:
		PT(&out).Sub(&ae, &be)
	case OpMul:
		PT(&out).Mul(&ae, &be)
	case OpDiv:
		if PT(&be).IsZero() {
			return Unknown[T, PT](), ErrDivideByZero
		}
		var inv T
		PT(&inv).Inverse(&be)
		PT(&out).Mul(&ae, &inv)
	case OpSafeDiv:
		if PT(&be).IsZero() {
			return Known[T, PT](out), nil // out is the field's zero value
		}
		var inv T
		PT(&inv).Inverse(&be)
		PT(&out).Mul(&ae, &inv)
	default:
		panic("field: invalid Infix op")
	}
	return Known[T, PT](out), nil
}

// IntDiv computes the integer quotient of the operands' canonical
// (non-negative) representatives, then re-embeds the result as a field
// element; a negative constant such as -7 therefore enters as p-7. This is
// legal only inside witness definitions (spec.md §4.1); it is never a
// gate-emittable operator.
func IntDiv[T any, PT Elt[T]](a, b Value[T, PT]) (Value[T, PT], error) {
	ai, bi, ok := canonicalPair[T, PT](a, b)
	if !ok {
		return Unknown[T, PT](), nil
	}
	if bi.Sign() == 0 {
		return Unknown[T, PT](), ErrDivideByZero
	}
	q := new(big.Int).Quo(ai, bi)
	return MakeConstant[T, PT](q), nil
}

// Mod computes the integer remainder of the operands' canonical
// (non-negative) representatives, then re-embeds the result as a field
// element.
func Mod[T any, PT Elt[T]](a, b Value[T, PT]) (Value[T, PT], error) {
	ai, bi, ok := canonicalPair[T, PT](a, b)
	if !ok {
		return Unknown[T, PT](), nil
	}
	if bi.Sign() == 0 {
		return Unknown[T, PT](), ErrDivideByZero
	}
	r := new(big.Int).Rem(ai, bi)
	return MakeConstant[T, PT](r), nil
}

func canonicalPair[T any, PT Elt[T]](a, b Value[T, PT]) (*big.Int, *big.Int, bool) {
	ae, aok := a.Elem()
	be, bok := b.Elem()
	if !aok || !bok {
		return nil, nil, false
	}
	ai := new(big.Int)
	PT(&ae).BigInt(ai)
	bi := new(big.Int)
	PT(&be).BigInt(bi)
	return ai, bi, true
}

// Pow computes field exponentiation. When exp is negative the result is
// the inverse of base^|exp|, which fails if base is zero.
func Pow[T any, PT Elt[T]](base Value[T, PT], exp *big.Int) (Value[T, PT], error) {
	be, ok := base.Elem()
	if !ok {
		return Unknown[T, PT](), nil
	}
	if exp.Sign() >= 0 {
		var out T
		PT(&out).Exp(be, exp)
		return Known[T, PT](out), nil
	}
	if PT(&be).IsZero() {
		return Unknown[T, PT](), ErrDivideByZero
	}
	var powed T
	PT(&powed).Exp(be, new(big.Int).Neg(exp))
	var out T
	PT(&out).Inverse(&powed)
	return Known[T, PT](out), nil
}
