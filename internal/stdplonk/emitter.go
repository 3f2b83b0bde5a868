// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package stdplonk is Backend A: raw-selector Plonk over bn254. It
// walks a circuit.Module's constraints through internal/synth's pattern
// catalogue, collects the resulting gate rows, and bridges them into a
// gnark frontend.Circuit so the rest of keygen/prove/verify is gnark's
// own backend/plonk machinery.
package stdplonk

import (
	"fmt"
	"sort"

	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/rs/zerolog/log"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/synth"
)

// Padding is Backend A's constant added to the constraint count before
// taking log2 to get k, per spec.md §4.3.
const Padding = 8

// Row is Backend A's concrete gate row type.
type Row = synth.GateRow[bn254fr.Element, *bn254fr.Element]

// Emitter accumulates gate rows and the first-binding order of every
// variable while walking a module's constraints. It implements
// synth.Sink directly; there is no copy-constraint bookkeeping here
// beyond recording first occurrence, since the permutation argument
// itself is built from repeated VariableIds across Rows by circuit.go.
type Emitter struct {
	Rows     []Row
	varOrder []ast.VariableId
	bound    map[ast.VariableId]bool
	pubs     map[ast.VariableId]int
}

func newEmitter() *Emitter {
	return &Emitter{bound: map[ast.VariableId]bool{}, pubs: map[ast.VariableId]int{}}
}

func (e *Emitter) BindVariable(id ast.VariableId) {
	e.varOrder = append(e.varOrder, id)
}

func (e *Emitter) EmitRow(row Row) {
	e.Rows = append(e.Rows, row)
}

func (e *Emitter) SetPublicInput(id ast.VariableId, pos int) {
	e.pubs[id] = pos
}

// PublicLayout lists every public variable's identity and its position
// in the public-input vector, ordered by position.
func (e *Emitter) PublicLayout() []PublicSlot {
	out := make([]PublicSlot, 0, len(e.pubs))
	for id, pos := range e.pubs {
		out = append(out, PublicSlot{Id: id, Position: pos})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// PublicSlot names one public variable's position in the public-input
// vector, mirroring composerplonk.PublicSlot for the CLI's benefit.
type PublicSlot struct {
	Id       ast.VariableId
	Position int
}

// Synthesize walks m's constraints in order, emitting one gate per
// spec.md §4.3 (Backend A never evaluates "|", so SafeDivideForbidden is
// passed through unconditionally). The first row pins the circuit-wide
// zero cell: a gate with selectors (0, 1, 0, 0, 0) over a single fresh
// variable forced to zero, matching spec.md's "arbitrary but must force
// the cell's value to 0" wording.
func Synthesize(m *circuit.Module[bn254fr.Element, *bn254fr.Element]) (*Emitter, error) {
	e := newEmitter()
	zero := ast.VariableId(-1)
	e.bound[zero] = true
	e.varOrder = append(e.varOrder, zero)
	var zeroRow Row
	var one bn254fr.Element
	one.SetOne()
	zeroRow.Wires[0] = synth.ZeroCell()
	zeroRow.Wires[1] = synth.VarCell(zero)
	zeroRow.Wires[2] = synth.ZeroCell()
	zeroRow.QR = one
	e.Rows = append(e.Rows, zeroRow)

	for i, c := range m.Source.Constraints {
		if err := synth.EmitConstraint[bn254fr.Element, *bn254fr.Element](e, e.bound, c, synth.SafeDivideForbidden); err != nil {
			return nil, fmt.Errorf("stdplonk: constraint %d: %w", i, err)
		}
	}
	for i, p := range m.Source.Pubs {
		e.SetPublicInput(p, i)
	}
	log.Debug().Int("gates", len(e.Rows)).Int("variables", len(e.varOrder)).Msg("stdplonk synthesis complete")
	return e, nil
}
