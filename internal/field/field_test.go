// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package field

import (
	"math/big"
	"testing"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

func big64(v int64) *big.Int { return big.NewInt(v) }

func TestMakeConstant_SignHandling(t *testing.T) {
	pos := MakeConstant[bn254fr.Element](big64(7))
	neg := MakeConstant[bn254fr.Element](big64(-7))

	sum, err := Infix[bn254fr.Element](OpAdd, pos, neg)
	if err != nil {
		t.Fatalf("Infix: %v", err)
	}
	e := sum.MustElem()
	if !e.IsZero() {
		t.Fatalf("7 + (-7) should be zero, got %s", e.String())
	}
}

func TestInfix_DivByZero_Strict(t *testing.T) {
	a := MakeConstant[bn254fr.Element](big64(5))
	zero := MakeConstant[bn254fr.Element](big64(0))

	if _, err := Infix[bn254fr.Element](OpDiv, a, zero); err != ErrDivideByZero {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestInfix_SafeDivByZero_ReturnsZero(t *testing.T) {
	a := MakeConstant[bn254fr.Element](big64(5))
	zero := MakeConstant[bn254fr.Element](big64(0))

	res, err := Infix[bn254fr.Element](OpSafeDiv, a, zero)
	if err != nil {
		t.Fatalf("SafeDiv by zero must not error: %v", err)
	}
	if !res.MustElem().IsZero() {
		t.Fatalf("SafeDiv by zero must yield 0")
	}
}

func TestInfix_UnknownPropagates(t *testing.T) {
	a := Unknown[bn254fr.Element]()
	b := MakeConstant[bn254fr.Element](big64(3))

	res, err := Infix[bn254fr.Element](OpAdd, a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsUnknown() {
		t.Fatalf("expected unknown to propagate")
	}
}

func TestPow_NegativeExponent(t *testing.T) {
	base := MakeConstant[bn254fr.Element](big64(2))
	res, err := Pow[bn254fr.Element](base, big64(-3))
	if err != nil {
		t.Fatalf("Pow: %v", err)
	}

	var eight, inv bn254fr.Element
	eight.SetInt64(8)
	inv.Inverse(&eight)
	if !res.MustElem().Equal(&inv) {
		t.Fatalf("2^-3 mismatch: got %s want %s", res.MustElem().String(), inv.String())
	}
}

func TestPow_ZeroBaseNegativeExponent(t *testing.T) {
	base := MakeConstant[bn254fr.Element](big64(0))
	if _, err := Pow[bn254fr.Element](base, big64(-1)); err != ErrDivideByZero {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestIntDivAndMod_SignedOperands(t *testing.T) {
	a := MakeConstant[bn254fr.Element](big64(-7))
	b := MakeConstant[bn254fr.Element](big64(2))

	// The operands are taken as canonical representatives, so -7 enters
	// as p-7, which is even because p is odd.
	pMinus7 := Canonical[bn254fr.Element](big64(-7))

	q, err := IntDiv[bn254fr.Element](a, b)
	if err != nil {
		t.Fatalf("IntDiv: %v", err)
	}
	want := MakeConstant[bn254fr.Element](new(big.Int).Quo(pMinus7, big64(2)))
	if !q.MustElem().Equal(refOf(want)) {
		t.Fatalf("-7 \\ 2 = %s, want (p-7)/2", q.MustElem().String())
	}

	r, err := Mod[bn254fr.Element](a, b)
	if err != nil {
		t.Fatalf("Mod: %v", err)
	}
	wantR := MakeConstant[bn254fr.Element](big64(0))
	if !r.MustElem().Equal(refOf(wantR)) {
		t.Fatalf("-7 %% 2 = %s, want 0", r.MustElem().String())
	}
}

func refOf(v Value[bn254fr.Element, *bn254fr.Element]) *bn254fr.Element {
	e := v.MustElem()
	return &e
}

func TestCanonical_NonNegative(t *testing.T) {
	c := Canonical[bn254fr.Element](big64(-1))
	if c.Sign() < 0 {
		t.Fatalf("Canonical must return a non-negative representative, got %s", c.String())
	}
}
