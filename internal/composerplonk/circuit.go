// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package composerplonk

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/backend/groth16"
	backendwitness "github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/synth"
)

type slot struct {
	public bool
	idx    int
}

func newLayout(e *Emitter) map[ast.VariableId]slot {
	pub := map[ast.VariableId]bool{}
	for _, s := range e.composer.PublicLayout() {
		pub[s.Id] = true
	}
	layout := make(map[ast.VariableId]slot, len(e.composer.Order()))
	var nPub, nPriv int
	for _, id := range e.composer.Order() {
		if pub[id] {
			layout[id] = slot{public: true, idx: nPub}
			nPub++
			continue
		}
		layout[id] = slot{public: false, idx: nPriv}
		nPriv++
	}
	return layout
}

func countSlots(layout map[ast.VariableId]slot) (nPub, nPriv int) {
	for _, s := range layout {
		if s.public {
			if s.idx+1 > nPub {
				nPub = s.idx + 1
			}
		} else if s.idx+1 > nPriv {
			nPriv = s.idx + 1
		}
	}
	return
}

// gateCircuit is the Groth16-side twin of stdplonk's gateCircuit: same
// selector-algebra bridge, different curve and backend.
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

func elemToVar(e bls12381fr.Element) frontend.Variable {
	var bi big.Int
	e.BigInt(&bi)
	return frontend.Variable(&bi)
}

func newShape(e *Emitter) (*gateCircuit, map[ast.VariableId]slot) {
	layout := newLayout(e)
	nPub, nPriv := countSlots(layout)
	return &gateCircuit{
		Public:  make([]frontend.Variable, nPub),
		Private: make([]frontend.Variable, nPriv),
		rows:    e.Rows,
		layout:  layout,
	}, layout
}

func assignment(e *Emitter, m *circuit.Module[bls12381fr.Element, *bls12381fr.Element]) (*gateCircuit, error) {
	shape, layout := newShape(e)
	for i := range shape.Public {
		shape.Public[i] = 0
	}
	for i := range shape.Private {
		shape.Private[i] = 0
	}
	for _, id := range e.composer.Order() {
		v := m.VariableValue(id)
		if v.IsUnknown() {
			return nil, fmt.Errorf("composerplonk: variable %d has no witness value", id)
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

// Keygen compiles the circuit shape to R1CS and runs gnark's direct (non-
// ceremony) Groth16 setup. For production deployments the multi-party
// ceremony in ceremony.go derives the same keys without a trusted dealer.
func Keygen(e *Emitter) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	shape, _ := newShape(e)
	ccs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, shape)
	if err != nil {
		return nil, nil, fmt.Errorf("composerplonk: compile: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("composerplonk: setup: %w", err)
	}
	return pk, vk, nil
}

// Prove recompiles the circuit, builds the full witness assignment from
// m, and produces a serialized Groth16 proof under pk.
func Prove(e *Emitter, m *circuit.Module[bls12381fr.Element, *bls12381fr.Element], pk groth16.ProvingKey) ([]byte, error) {
	shape, _ := newShape(e)
	ccs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, shape)
	if err != nil {
		return nil, fmt.Errorf("composerplonk: compile: %w", err)
	}
	full, err := assignment(e, m)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(full, ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("composerplonk: new witness: %w", err)
	}
	proof, err := groth16.Prove(ccs, pk, w)
	if err != nil {
		return nil, fmt.Errorf("composerplonk: prove: %w", err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("composerplonk: serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify rebuilds the public witness from m's known inputs and checks
// proofBytes against vk.
func Verify(e *Emitter, m *circuit.Module[bls12381fr.Element, *bls12381fr.Element], vk groth16.VerifyingKey, proofBytes []byte) error {
	full, err := assignment(e, m)
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(full, ecc.BLS12_381.ScalarField())
	if err != nil {
		return fmt.Errorf("composerplonk: new witness: %w", err)
	}
	pub, err := w.Public()
	if err != nil {
		return fmt.Errorf("composerplonk: public witness: %w", err)
	}
	proof := groth16.NewProof(ecc.BLS12_381)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("composerplonk: deserialize proof: %w", err)
	}
	if err := groth16.Verify(proof, vk, pub); err != nil {
		return fmt.Errorf("composerplonk: verify: %w", err)
	}
	return nil
}

// PublicWitness rebuilds m's public witness vector, for callers that
// need it beyond Verify's own pass/fail answer (export.go's JSON dump).
func PublicWitness(e *Emitter, m *circuit.Module[bls12381fr.Element, *bls12381fr.Element]) (backendwitness.Witness, error) {
	full, err := assignment(e, m)
	if err != nil {
		return nil, err
	}
	w, err := frontend.NewWitness(full, ecc.BLS12_381.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("composerplonk: new witness: %w", err)
	}
	pub, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("composerplonk: public witness: %w", err)
	}
	return pub, nil
}
