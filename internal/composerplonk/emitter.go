// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package composerplonk

import (
	"fmt"
	"math/bits"

	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/rs/zerolog/log"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/synth"
)

// Row is Backend B's concrete gate row type.
type Row = synth.GateRow[bls12381fr.Element, *bls12381fr.Element]

// Emitter fronts a Composer with the synth.Sink methods the pattern
// catalogue needs. Unlike stdplonk, there is no explicit zero-pinning
// gate: an unused wire is simply the field's zero constant, and the
// composer's implicit wire-sharing means no copy constraint ever needs
// to be written out by hand.
type Emitter struct {
	Rows     []Row
	composer *Composer
	bound    map[ast.VariableId]bool
}

func newEmitter() *Emitter {
	return &Emitter{composer: NewComposer(), bound: map[ast.VariableId]bool{}}
}

func (e *Emitter) BindVariable(id ast.VariableId) { e.composer.Register(id) }
func (e *Emitter) EmitRow(row Row)                { e.Rows = append(e.Rows, row) }
func (e *Emitter) SetPublicInput(id ast.VariableId, pos int) {
	e.composer.Register(id)
	e.composer.MarkPublic(id, pos)
}

// Composer exposes the underlying registry, e.g. for PublicLayout().
func (e *Emitter) Composer() *Composer { return e.composer }

// Padding computes Backend B's PADDING per spec.md §4.3: |pubs| + 4,
// rounded up to the next power of two.
func Padding(numPubs int) int {
	n := numPubs + 4
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Synthesize walks m's constraints in order through the shared pattern
// catalogue, allowing "|" (safe-divide) since Backend B defines it,
// then registers every public variable's position via SetPublicInput.
func Synthesize(m *circuit.Module[bls12381fr.Element, *bls12381fr.Element]) (*Emitter, error) {
	e := newEmitter()
	for i, c := range m.Source.Constraints {
		if err := synth.EmitConstraint[bls12381fr.Element, *bls12381fr.Element](e, e.bound, c, synth.SafeDivideAllowed); err != nil {
			return nil, fmt.Errorf("composerplonk: constraint %d: %w", i, err)
		}
	}
	for i, p := range m.Source.Pubs {
		e.SetPublicInput(p, i)
	}
	log.Debug().Int("gates", len(e.Rows)).Int("variables", len(e.composer.Order())).Msg("composerplonk synthesis complete")
	return e, nil
}
