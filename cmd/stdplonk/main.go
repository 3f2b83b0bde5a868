// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// main.go
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	bn254fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/plonk"

	"github.com/logical-mechanism/circuitforge/internal/artifact"
	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/circuit"
	"github.com/logical-mechanism/circuitforge/internal/field"
	"github.com/logical-mechanism/circuitforge/internal/sourceio"
	"github.com/logical-mechanism/circuitforge/internal/stdplonk"
)

var codec = circuit.LEBytesCodec[bn254fr.Element, *bn254fr.Element]{ByteLen: 32}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Stdin))
}

func run(args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "usage: stdplonk <compile|prove|verify> [flags]")
		return 2
	}

	switch args[0] {
	case "compile":
		return cmdCompile(args[1:], stdout, stderr)
	case "prove":
		return cmdProve(args[1:], stdout, stderr, stdin)
	case "verify":
		return cmdVerify(args[1:], stdout, stderr)
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

	m := circuit.New[bn254fr.Element](src, stdplonk.Padding)
	e, err := stdplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	pk, vk, err := stdplonk.Keygen(e)
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

	moduleBytes, err := circuit.Encode[bn254fr.Element](m, codec)
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

	m, err := circuit.Decode[bn254fr.Element](moduleBytes, codec)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	raw, err := loadInputs(circuitPath, inputsPath, stdin, stdout)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	inputs := make(map[ast.VariableId]field.Value[bn254fr.Element, *bn254fr.Element], len(raw))
	for id, v := range raw {
		inputs[id] = field.MakeConstant[bn254fr.Element](v)
	}
	if err := m.PopulateVariables(inputs); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	e, err := stdplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	pk := plonk.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(bytes.NewReader(pkBytes)); err != nil {
		fmt.Fprintln(stderr, "error: deserialize proving key:", err)
		return 1
	}

	proofBytes, err := stdplonk.Prove(e, m, pk)
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

	var circuitPath, proofPath string
	cmd.StringVar(&circuitPath, "circuit", "", "path to the circuit blob")
	cmd.StringVar(&proofPath, "proof", "", "path to the proof blob")
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

	m, err := circuit.Decode[bn254fr.Element](moduleBytes, codec)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	e, err := stdplonk.Synthesize(m)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	vk := plonk.NewVerifyingKey(ecc.BN254)
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

	if err := stdplonk.Verify(e, m, vk, proofBytes); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintln(stdout, "ok")
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
