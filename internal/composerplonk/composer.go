// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package composerplonk is Backend B: composer-Plonk over bls12-381,
// proved with gnark's Groth16 backend. Where stdplonk exposes raw
// selector cells directly, this package fronts the same
// internal/synth pattern catalogue with a Composer: a per-synthesis
// registry from VariableId to a stable handle, so that every downstream
// gate referencing a given variable automatically shares its cell and
// no explicit copy constraint ever needs to be written out.
package composerplonk

import "github.com/logical-mechanism/circuitforge/internal/ast"

// Handle is the composer's opaque reference to a registered variable.
// It is backed directly by the VariableId upstream assigned, since the
// composer never needs an identity distinct from that id — registering
// a VariableId and looking up its Handle are the same operation.
type Handle ast.VariableId

// Composer tracks which variables have been registered (bound to a
// handle) in first-sighting order, plus the positions assigned to
// public-input gates so a caller can later annotate a proof's
// public-input vector with variable identity.
type Composer struct {
	order      []ast.VariableId
	registered map[ast.VariableId]bool
	publics    []PublicSlot
}

// PublicSlot names the VariableId occupying one position of the
// public-input vector, in emission order.
type PublicSlot struct {
	Id       ast.VariableId
	Position int
}

func NewComposer() *Composer {
	return &Composer{registered: map[ast.VariableId]bool{}}
}

// Register binds id to a handle the first time it is seen; later calls
// for the same id are no-ops, which is what makes wire-sharing implicit.
func (c *Composer) Register(id ast.VariableId) Handle {
	if !c.registered[id] {
		c.registered[id] = true
		c.order = append(c.order, id)
	}
	return Handle(id)
}

// Registered reports whether id already has a handle.
func (c *Composer) Registered(id ast.VariableId) bool { return c.registered[id] }

// Order returns every registered VariableId in first-binding order.
func (c *Composer) Order() []ast.VariableId { return c.order }

// MarkPublic records that id occupies position pos of the public-input
// vector. Called once per public variable, in the module's public-list
// order (spec.md's ordering guarantee for Backend B).
func (c *Composer) MarkPublic(id ast.VariableId, pos int) {
	c.publics = append(c.publics, PublicSlot{Id: id, Position: pos})
}

// PublicLayout returns the recorded public-input slots in emission
// order, the auxiliary operation spec.md describes for annotating a
// proof's public-input vector with variable identity and expected
// value (the expected value itself comes from the module's witness map
// at export time; this layout only carries positions and identities).
func (c *Composer) PublicLayout() []PublicSlot {
	out := make([]PublicSlot, len(c.publics))
	copy(out, c.publics)
	return out
}
