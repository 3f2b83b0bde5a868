// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package circuit owns the parsed Module, the per-variable witness map,
// the circuit-size parameter k, and the encode/decode of all persistent
// state (C5).
package circuit

import (
	"fmt"
	"math/bits"

	"github.com/rs/zerolog/log"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/field"
	"github.com/logical-mechanism/circuitforge/internal/witness"
)

// Module owns its ast.Module and witness map exclusively. Gate emission
// borrows it read-only; PopulateVariables is the only method that
// mutates the witness map, and it does so exactly once in the module's
// lifecycle (constructed, optionally populated, then synthesized).
type Module[T any, PT field.Elt[T]] struct {
	Source  *ast.Module
	Witness map[ast.VariableId]field.Value[T, PT]
	K       uint

	populated bool
}

// New collects every VariableId mentioned anywhere in src, initializes
// the witness map to unknown for each, and computes k as the smallest
// non-negative integer with 2^k >= len(src.Constraints) + padding.
// Backend A uses padding 8; Backend B uses len(src.Pubs)+4 rounded up to
// the next power of two (callers pass the already-computed padding
// value for their backend; see internal/stdplonk and
// internal/composerplonk for the two call sites).
func New[T any, PT field.Elt[T]](src *ast.Module, padding int) *Module[T, PT] {
	vars := src.Variables()
	w := make(map[ast.VariableId]field.Value[T, PT], len(vars))
	for _, v := range vars {
		w[v] = field.Unknown[T, PT]()
	}
	k := smallestK(len(src.Constraints) + padding)
	log.Debug().Int("constraints", len(src.Constraints)).Int("padding", padding).Uint("k", k).Msg("circuit module constructed")
	return &Module[T, PT]{Source: src, Witness: w, K: k}
}

func smallestK(n int) uint {
	if n <= 1 {
		return 0
	}
	return uint(bits.Len(uint(n - 1)))
}

// PopulateVariables fills the witness map from the module's definitions
// plus inputs. It is a programmer error to call it twice on the same
// Module; the second call returns an error rather than silently
// re-deriving the witness, since spec.md's lifecycle mutates the witness
// map exactly once.
func (m *Module[T, PT]) PopulateVariables(inputs map[ast.VariableId]field.Value[T, PT]) error {
	if m.populated {
		return fmt.Errorf("circuit: PopulateVariables already ran for this module")
	}
	ev := witness.New[T, PT](m.Source, inputs)
	vars := m.Source.Variables()
	vals, err := ev.PopulateVariables(vars)
	if err != nil {
		return fmt.Errorf("circuit: populate variables: %w", err)
	}
	m.Witness = vals
	m.populated = true
	log.Debug().Int("variables", len(vals)).Msg("witness populated")
	return nil
}

// VariableValue returns the witness value for id, or the unknown marker
// if id has not been populated or is not part of the module.
func (m *Module[T, PT]) VariableValue(id ast.VariableId) field.Value[T, PT] {
	if v, ok := m.Witness[id]; ok {
		return v
	}
	return field.Unknown[T, PT]()
}
