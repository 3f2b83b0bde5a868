// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// export.go renders a Groth16 verifying key, proof, and public witness as
// the compressed-hex JSON triple on-chain verifiers commonly expect,
// adapted from the teacher's own export helpers for this backend's gate
// circuit instead of its hash-commitment protocol.
package composerplonk

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	blsfr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bls "github.com/consensys/gnark/backend/groth16/bls12-381"
	backend_witness "github.com/consensys/gnark/backend/witness"
)

type VKJSON struct {
	NPublic int      `json:"nPublic"`
	VkAlpha string   `json:"vkAlpha"`
	VkBeta  string   `json:"vkBeta"`
	VkGamma string   `json:"vkGamma"`
	VkDelta string   `json:"vkDelta"`
	VkIC    []string `json:"vkIC"`
}

type ProofJSON struct {
	PiA string `json:"piA"`
	PiB string `json:"piB"`
	PiC string `json:"piC"`
}

type PublicJSON struct {
	Inputs []string `json:"inputs"`
}

func exportProof(proof groth16.Proof) (ProofJSON, error) {
	p, ok := proof.(*groth16bls.Proof)
	if !ok {
		return ProofJSON{}, fmt.Errorf("composerplonk: unexpected proof type %T", proof)
	}
	piA, err := g1CompressedHex(p.Ar)
	if err != nil {
		return ProofJSON{}, err
	}
	piB, err := g2CompressedHex(p.Bs)
	if err != nil {
		return ProofJSON{}, err
	}
	piC, err := g1CompressedHex(p.Krs)
	if err != nil {
		return ProofJSON{}, err
	}
	return ProofJSON{PiA: piA, PiB: piB, PiC: piC}, nil
}

func exportVK(vk groth16.VerifyingKey, nPublic int) (VKJSON, error) {
	v, ok := vk.(*groth16bls.VerifyingKey)
	if !ok {
		return VKJSON{}, fmt.Errorf("composerplonk: unexpected vk type %T", vk)
	}
	if nPublic < 0 || len(v.G1.K) < nPublic+1 {
		return VKJSON{}, fmt.Errorf("composerplonk: vk IC too short: len(IC)=%d, need %d", len(v.G1.K), nPublic+1)
	}
	vkAlpha, err := g1CompressedHex(v.G1.Alpha)
	if err != nil {
		return VKJSON{}, err
	}
	vkBeta, err := g2CompressedHex(v.G2.Beta)
	if err != nil {
		return VKJSON{}, err
	}
	vkGamma, err := g2CompressedHex(v.G2.Gamma)
	if err != nil {
		return VKJSON{}, err
	}
	vkDelta, err := g2CompressedHex(v.G2.Delta)
	if err != nil {
		return VKJSON{}, err
	}
	ic := make([]string, 0, nPublic+1)
	for i := 0; i < nPublic+1; i++ {
		h, err := g1CompressedHex(v.G1.K[i])
		if err != nil {
			return VKJSON{}, err
		}
		ic = append(ic, h)
	}
	return VKJSON{NPublic: nPublic, VkAlpha: vkAlpha, VkBeta: vkBeta, VkGamma: vkGamma, VkDelta: vkDelta, VkIC: ic}, nil
}

// exportPublicInputs reads the public witness vector as decimal strings,
// with a reflective fallback for witness implementations that don't
// expose a concrete []blsfr.Element.
func exportPublicInputs(pub backend_witness.Witness) ([]string, error) {
	vecAny := pub.Vector()
	if v, ok := vecAny.([]blsfr.Element); ok {
		out := make([]string, len(v))
		for i := range v {
			var bi big.Int
			v[i].BigInt(&bi)
			out[i] = bi.String()
		}
		return out, nil
	}

	rv := reflect.ValueOf(vecAny)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("composerplonk: unexpected public witness vector type %T", vecAny)
	}
	out := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i)
		var bi big.Int
		m := ev.MethodByName("BigInt")
		if ev.CanAddr() {
			if addrM := ev.Addr().MethodByName("BigInt"); addrM.IsValid() {
				m = addrM
			}
		}
		if !m.IsValid() {
			return nil, fmt.Errorf("composerplonk: public input element %d has no BigInt method", i)
		}
		m.Call([]reflect.Value{reflect.ValueOf(&bi)})
		out[i] = bi.String()
	}
	return out, nil
}

// ExportJSON writes vk.json, proof.json, and public.json under dir in
// the compressed-hex shape an on-chain Groth16 verifier expects.
func ExportJSON(vk groth16.VerifyingKey, proof groth16.Proof, pub backend_witness.Witness, dir string) error {
	pj, err := exportProof(proof)
	if err != nil {
		return err
	}
	pubRaw, err := exportPublicInputs(pub)
	if err != nil {
		return err
	}

	v, ok := vk.(*groth16bls.VerifyingKey)
	if !ok {
		return fmt.Errorf("composerplonk: unexpected vk type %T", vk)
	}
	icCap := len(v.G1.K) - 1

	inputs := pubRaw
	if len(pubRaw) > 0 && (pubRaw[0] == "0" || pubRaw[0] == "1") && len(pubRaw)-1 <= icCap {
		inputs = pubRaw[1:]
	}
	if len(inputs) > icCap {
		return fmt.Errorf("composerplonk: public inputs too long: got %d, vk IC capacity %d", len(inputs), icCap)
	}

	vkj, err := exportVK(vk, len(inputs))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	write := func(name string, v any) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if err := write("vk.json", vkj); err != nil {
		return err
	}
	if err := write("proof.json", pj); err != nil {
		return err
	}
	return write("public.json", PublicJSON{Inputs: inputs})
}

func g1CompressedHex(p bls12381.G1Affine) (string, error) {
	b := p.Bytes()
	if len(b) != 48 {
		return "", fmt.Errorf("composerplonk: unexpected G1 compressed length %d", len(b))
	}
	return hex.EncodeToString(b[:]), nil
}

func g2CompressedHex(p bls12381.G2Affine) (string, error) {
	b := p.Bytes()
	if len(b) != 96 {
		return "", fmt.Errorf("composerplonk: unexpected G2 compressed length %d", len(b))
	}
	return hex.EncodeToString(b[:]), nil
}
