// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// main.go
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381fr "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark/backend/groth16"

	"github.com/logical-mechanism/circuitforge/internal/artifact"
	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/composerplonk"
	"github.com/logical-mechanism/circuitforge/internal/field"
	"github.com/logical-mechanism/circuitforge/internal/sourceio"
)

var codec = circuit.LimbCodec[bls12381fr.Element, *bls12381fr.Element]{NumLimbs: 8}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Stdin))
}

func run(args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: composerplonk <compile|prove|verify|ceremony> [flags]")
		return 2
	}

	switch args[0] {
	case "compile":
		return cmdCompile(args[1:], stdout, stderr)
	case "prove":
		return cmdProve(args[1:], stdout, stderr, stdin)
	case "verify":
		return cmdVerify(args[1:], stdout, stderr)
	case "ceremony":
		return cmdCeremony(args[1:], stdout, stderr)
	default:
		fmt.Fprintln(stderr, "error: unknown command", args[0])
		return 2
	}
}

func cmdCompile(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compile", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var sourcePath, outputPath string
	cmd.StringVar(&sourcePath, "source", "", "path to the normalized source module (JSON)")
	cmd.StringVar(&outputPath, "output", "", "path to write the circuit blob")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if sourcePath == "" {
		fmt.Fprintln(stderr, "error: -source is required")
		cmd.Usage()
		return 2
	}
	if outputPath == "" {
		fmt.Fprintln(stderr, "error: -output is required")
		cmd.Usage()
		return 2
	}

	src, err := sourceio.ReadModule(sourcePath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	m := circuit.New[bls12381fr.Element](src, composerplonk.Padding(len(src.Pubs)))
	e, err := composerplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	pk, vk, err := composerplonk.Keygen(e)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	var pkBuf, vkBuf bytes.Buffer
	if _, err := pk.WriteTo(&pkBuf); err != nil {
		fmt.Fprintln(stderr, "error: serialize proving key:", err)
		return 1
	}
	if _, err := vk.WriteTo(&vkBuf); err != nil {
		fmt.Fprintln(stderr, "error: serialize verifying key:", err)
		return 1
	}

	moduleBytes, err := circuit.Encode[bls12381fr.Element](m, codec)
	if err != nil {
		fmt.Fprintln(stderr, "error: encode circuit module:", err)
		return 1
	}

	blob := artifact.WriteCircuitBlob(pkBuf.Bytes(), vkBuf.Bytes(), moduleBytes)
	if err := os.WriteFile(outputPath, blob, 0o644); err != nil {
		fmt.Fprintln(stderr, "error: write circuit blob:", err)
		return 1
	}

	fmt.Fprintln(stdout, "wrote circuit blob to", outputPath)
	return 0
}

func cmdProve(args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := flag.NewFlagSet("prove", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var circuitPath, outputPath, inputsPath string
	cmd.StringVar(&circuitPath, "circuit", "", "path to the circuit blob")
	cmd.StringVar(&outputPath, "output", "", "path to write the proof blob")
	cmd.StringVar(&inputsPath, "inputs", "", "path to the witness inputs file (defaults to <circuit>.inputs)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if circuitPath == "" {
		fmt.Fprintln(stderr, "error: -circuit is required")
		cmd.Usage()
		return 2
	}
	if outputPath == "" {
		fmt.Fprintln(stderr, "error: -output is required")
		cmd.Usage()
		return 2
	}

	blob, err := os.ReadFile(circuitPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	pkBytes, _, moduleBytes, err := artifact.ReadCircuitBlob(blob)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	m, err := circuit.Decode[bls12381fr.Element](moduleBytes, codec)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	raw, err := loadInputs(circuitPath, inputsPath, stdin, stdout)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	inputs := make(map[ast.VariableId]field.Value[bls12381fr.Element, *bls12381fr.Element], len(raw))
	for id, v := range raw {
		inputs[id] = field.MakeConstant[bls12381fr.Element](v)
	}
	if err := m.PopulateVariables(inputs); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	e, err := composerplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	pk := groth16.NewProvingKey(ecc.BLS12_381)
	if _, err := pk.ReadFrom(bytes.NewReader(pkBytes)); err != nil {
		fmt.Fprintln(stderr, "error: deserialize proving key:", err)
		return 1
	}

	proofBytes, err := composerplonk.Prove(e, m, pk)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if err := os.WriteFile(outputPath, artifact.WriteProofBlob(proofBytes), 0o644); err != nil {
		fmt.Fprintln(stderr, "error: write proof blob:", err)
		return 1
	}

	fmt.Fprintln(stdout, "wrote proof blob to", outputPath)
	return 0
}

func cmdVerify(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var circuitPath, proofPath, exportDir string
	cmd.StringVar(&circuitPath, "circuit", "", "path to the circuit blob")
	cmd.StringVar(&proofPath, "proof", "", "path to the proof blob")
	cmd.StringVar(&exportDir, "export", "", "optional directory to write vk.json/proof.json/public.json")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if circuitPath == "" {
		fmt.Fprintln(stderr, "error: -circuit is required")
		cmd.Usage()
		return 2
	}
	if proofPath == "" {
		fmt.Fprintln(stderr, "error: -proof is required")
		cmd.Usage()
		return 2
	}

	blob, err := os.ReadFile(circuitPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	_, vkBytes, moduleBytes, err := artifact.ReadCircuitBlob(blob)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	m, err := circuit.Decode[bls12381fr.Element](moduleBytes, codec)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	e, err := composerplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	vk := groth16.NewVerifyingKey(ecc.BLS12_381)
	if _, err := vk.ReadFrom(bytes.NewReader(vkBytes)); err != nil {
		fmt.Fprintln(stderr, "error: deserialize verifying key:", err)
		return 1
	}

	proofBlob, err := os.ReadFile(proofPath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	proofBytes, err := artifact.ReadProofBlob(proofBlob)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if err := composerplonk.Verify(e, m, vk, proofBytes); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintln(stdout, "ok")

	if exportDir != "" {
		proof := groth16.NewProof(ecc.BLS12_381)
		if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
			fmt.Fprintln(stderr, "error: deserialize proof for export:", err)
			return 1
		}
		pub, err := composerplonk.PublicWitness(e, m)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if err := composerplonk.ExportJSON(vk, proof, pub, exportDir); err != nil {
			fmt.Fprintln(stderr, "error: export:", err)
			return 1
		}
		fmt.Fprintln(stdout, "wrote vk.json, proof.json, public.json to", exportDir)
	}

	for _, slot := range e.Composer().PublicLayout() {
		v := m.VariableValue(slot.Id)
		if v.IsUnknown() {
			continue
		}
		elem := v.MustElem()
		var bi big.Int
		(&elem).BigInt(&bi)
		fmt.Fprintf(stdout, "public[%d] variable %d = %s\n", slot.Position, slot.Id, bi.String())
	}
	return 0
}

// cmdCeremony drives the Backend B multi-party Groth16 setup in
// internal/composerplonk/ceremony.go: a circuit-independent Phase 1
// (powers of tau) followed by a circuit-specific Phase 2, each a chain
// of file-based contributions under -dir. This is the trusted-setup
// path for a production deployment; cmdCompile's direct
// composerplonk.Keygen remains available for development and testing
// where a single-party setup is acceptable.
func cmdCeremony(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: composerplonk ceremony <init|contribute1|contribute2|verify1|verify2|finalize1|finalize2> [flags]")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdCeremonyInit(args[1:], stdout, stderr)
	case "contribute1":
		return cmdCeremonyContribute(args[1:], stdout, stderr, 1)
	case "contribute2":
		return cmdCeremonyContribute(args[1:], stdout, stderr, 2)
	case "verify1":
		return cmdCeremonyVerify(args[1:], stdout, stderr, 1)
	case "verify2":
		return cmdCeremonyVerify(args[1:], stdout, stderr, 2)
	case "finalize1":
		return cmdCeremonyFinalize(args[1:], stdout, stderr, 1)
	case "finalize2":
		return cmdCeremonyFinalize(args[1:], stdout, stderr, 2)
	default:
		fmt.Fprintln(stderr, "error: unknown ceremony command", args[0])
		return 2
	}
}

func cmdCeremonyInit(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("ceremony init", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var sourcePath, dir string
	var force bool
	cmd.StringVar(&sourcePath, "source", "", "path to the normalized source module (JSON)")
	cmd.StringVar(&dir, "dir", "", "ceremony working directory")
	cmd.BoolVar(&force, "force", false, "overwrite an existing ceremony in -dir")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if sourcePath == "" || dir == "" {
		fmt.Fprintln(stderr, "error: -source and -dir are required")
		cmd.Usage()
		return 2
	}

	src, err := sourceio.ReadModule(sourcePath)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	m := circuit.New[bls12381fr.Element](src, composerplonk.Padding(len(src.Pubs)))
	e, err := composerplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if err := composerplonk.CeremonyInit(dir, e, force); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintln(stdout, "initialized ceremony in", dir)
	return 0
}

func cmdCeremonyContribute(args []string, stdout, stderr io.Writer, phase int) int {
	cmd := flag.NewFlagSet(fmt.Sprintf("ceremony contribute%d", phase), flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dir string
	cmd.StringVar(&dir, "dir", "", "ceremony working directory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(stderr, "error: -dir is required")
		cmd.Usage()
		return 2
	}

	contribute := composerplonk.CeremonyContributePhase1
	if phase == 2 {
		contribute = composerplonk.CeremonyContributePhase2
	}
	idx, hash, err := contribute(dir)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintf(stdout, "phase %d contribution %d: %s\n", phase, idx, hash)
	return 0
}

func cmdCeremonyVerify(args []string, stdout, stderr io.Writer, phase int) int {
	cmd := flag.NewFlagSet(fmt.Sprintf("ceremony verify%d", phase), flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dir string
	cmd.StringVar(&dir, "dir", "", "ceremony working directory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(stderr, "error: -dir is required")
		cmd.Usage()
		return 2
	}

	verify := composerplonk.CeremonyVerifyPhase1
	if phase == 2 {
		verify = composerplonk.CeremonyVerifyPhase2
	}
	n, err := verify(dir)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintf(stdout, "phase %d: %d contributions verified\n", phase, n)
	return 0
}

func cmdCeremonyFinalize(args []string, stdout, stderr io.Writer, phase int) int {
	cmd := flag.NewFlagSet(fmt.Sprintf("ceremony finalize%d", phase), flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dir, beaconHex string
	cmd.StringVar(&dir, "dir", "", "ceremony working directory")
	cmd.StringVar(&beaconHex, "beacon", "", "hex-encoded public randomness sealing this phase")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" || beaconHex == "" {
		fmt.Fprintln(stderr, "error: -dir and -beacon are required")
		cmd.Usage()
		return 2
	}
	beacon, err := hex.DecodeString(strings.TrimPrefix(beaconHex, "0x"))
	if err != nil {
		fmt.Fprintln(stderr, "error: invalid -beacon:", err)
		return 2
	}

	finalize := composerplonk.CeremonyFinalizePhase1
	if phase == 2 {
		finalize = composerplonk.CeremonyFinalizePhase2
	}
	if err := finalize(dir, beacon); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if phase == 1 {
		fmt.Fprintln(stdout, "phase 1 finalized; phase 2 initialized in", dir)
	} else {
		fmt.Fprintln(stdout, "phase 2 finalized; wrote pk.bin and vk.bin to", dir)
	}
	return 0
}

// loadInputs follows spec's "-inputs omitted: try <circuit>.inputs; else
// prompt interactively" rule.
func loadInputs(circuitPath, inputsPath string, stdin io.Reader, stdout io.Writer) (map[ast.VariableId]*big.Int, error) {
	if inputsPath != "" {
		return sourceio.ReadInputs(inputsPath)
	}
	defaultPath := circuitPath + ".inputs"
	if _, err := os.Stat(defaultPath); err == nil {
		return sourceio.ReadInputs(defaultPath)
	}
	return promptInputs(stdin, stdout)
}

// promptInputs reads "id value" pairs from stdin, one per line, until a
// blank line ends the session.
func promptInputs(stdin io.Reader, stdout io.Writer) (map[ast.VariableId]*big.Int, error) {
	fmt.Fprintln(stdout, "enter witness inputs as \"<variable id> <value>\", blank line to finish:")
	out := make(map[ast.VariableId]*big.Int)
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed input line %q (want \"<id> <value>\")", line)
		}
		id := new(big.Int)
		if _, ok := id.SetString(fields[0], 0); !ok {
			return nil, fmt.Errorf("invalid variable id %q", fields[0])
		}
		v := new(big.Int)
		if _, ok := v.SetString(fields[1], 0); !ok {
			return nil, fmt.Errorf("invalid value %q", fields[1])
		}
		out[ast.VariableId(id.Int64())] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
