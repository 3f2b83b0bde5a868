// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package stdplonk

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/synth"
)

// slot locates one variable's frontend.Variable: either the Public or
// the Private slice, at the given index.
type slot struct {
	public bool
	idx    int
}

func newLayout(varOrder []ast.VariableId, pubs map[ast.VariableId]int) (map[ast.VariableId]slot, int, int) {
	layout := make(map[ast.VariableId]slot, len(varOrder))
	var nPub, nPriv int
	for _, id := range varOrder {
		if _, ok := pubs[id]; ok {
			layout[id] = slot{public: true, idx: nPub}
			nPub++
			continue
		}
		layout[id] = slot{public: false, idx: nPriv}
		nPriv++
	}
	return layout, nPub, nPriv
}

// gateCircuit bridges Backend A's raw selector rows onto gnark's
// high-level frontend.API: each row's q_l*a + q_r*b + q_m*a*b + q_o*c +
// q_c = 0 is asserted directly as an arithmetic expression, rather than
// poking gnark's constraint system at a lower level.
type gateCircuit struct {
	Public  []frontend.Variable `gnark:",public"`
	Private []frontend.Variable

	rows   []Row
	layout map[ast.VariableId]slot
}

func (c *gateCircuit) cellVar(cell synth.Cell) frontend.Variable {
	if cell.Zero {
		return 0
	}
	s := c.layout[cell.Var]
	if s.public {
		return c.Public[s.idx]
	}
	return c.Private[s.idx]
}

func (c *gateCircuit) Define(api frontend.API) error {
	for _, row := range c.rows {
		a := c.cellVar(row.Wires[0])
		b := c.cellVar(row.Wires[1])
		cc := c.cellVar(row.Wires[2])

		ql := elemToVar(row.QL)
		qr := elemToVar(row.QR)
		qo := elemToVar(row.QO)
		qm := elemToVar(row.QM)
		qc := elemToVar(row.QC)

		sum := api.Mul(ql, a)
		sum = api.Add(sum, api.Mul(qr, b))
		sum = api.Add(sum, api.Mul(qm, api.Mul(a, b)))
		sum = api.Add(sum, api.Mul(qo, cc))
		sum = api.Add(sum, qc)

		api.AssertIsEqual(sum, 0)
	}
	return nil
}

func elemToVar(e bn254fr.Element) frontend.Variable {
	var bi big.Int
	e.BigInt(&bi)
	return frontend.Variable(&bi)
}

func newShape(e *Emitter) (*gateCircuit, map[ast.VariableId]slot) {
	layout, nPub, nPriv := newLayout(e.varOrder, e.pubs)
	return &gateCircuit{
		Public:  make([]frontend.Variable, nPub),
		Private: make([]frontend.Variable, nPriv),
		rows:    e.Rows,
		layout:  layout,
	}, layout
}

// assignment builds a full witness assignment from m's populated
// witness map, following the same variable layout as newShape.
func assignment(e *Emitter, m *circuit.Module[bn254fr.Element, *bn254fr.Element]) (*gateCircuit, error) {
	shape, layout := newShape(e)
	for i := range shape.Public {
		shape.Public[i] = 0
	}
	for i := range shape.Private {
		shape.Private[i] = 0
	}
	for _, id := range e.varOrder {
		if id < 0 {
			continue // the synthetic zero cell carries no witness entry
		}
		v := m.VariableValue(id)
		if v.IsUnknown() {
			return nil, fmt.Errorf("stdplonk: variable %d has no witness value", id)
		}
		val := elemToVar(v.MustElem())
		s := layout[id]
		if s.public {
			shape.Public[s.idx] = val
		} else {
			shape.Private[s.idx] = val
		}
	}
	return shape, nil
}

// Keygen compiles the circuit shape and derives a proving/verifying key
// pair from an unsafe developer KZG SRS. Production deployments should
// load a real perpetual-powers-of-tau file instead; Backend B
// (internal/composerplonk/ceremony.go) has the multi-party setup for
// that, plonk's universal SRS has no Backend-A equivalent yet.
func Keygen(e *Emitter) (plonk.ProvingKey, plonk.VerifyingKey, error) {
	shape, _ := newShape(e)
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), scs.NewBuilder, shape)
	if err != nil {
		return nil, nil, fmt.Errorf("stdplonk: compile: %w", err)
	}
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("stdplonk: unsafe srs: %w", err)
	}
	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		return nil, nil, fmt.Errorf("stdplonk: setup: %w", err)
	}
	return pk, vk, nil
}

// Prove recompiles the circuit shape, builds the full witness assignment
// from m, and produces a serialized proof under pk.
func Prove(e *Emitter, m *circuit.Module[bn254fr.Element, *bn254fr.Element], pk plonk.ProvingKey) ([]byte, error) {
	shape, _ := newShape(e)
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), scs.NewBuilder, shape)
	if err != nil {
		return nil, fmt.Errorf("stdplonk: compile: %w", err)
	}
	full, err := assignment(e, m)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(full, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("stdplonk: new witness: %w", err)
	}
	proof, err := plonk.Prove(ccs, pk, w)
	if err != nil {
		return nil, fmt.Errorf("stdplonk: prove: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("stdplonk: serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify rebuilds the public witness from m's known inputs and checks
// proofBytes against vk.
func Verify(e *Emitter, m *circuit.Module[bn254fr.Element, *bn254fr.Element], vk plonk.VerifyingKey, proofBytes []byte) error {
	full, err := assignment(e, m)
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(full, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("stdplonk: new witness: %w", err)
	}
	pub, err := w.Public()
	if err != nil {
		return fmt.Errorf("stdplonk: public witness: %w", err)
	}
	proof := plonk.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("stdplonk: deserialize proof: %w", err)
	}
	if err := plonk.Verify(proof, vk, pub); err != nil {
		return fmt.Errorf("stdplonk: verify: %w", err)
	}
	return nil
}
