// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_NoArgs(t *testing.T) {
	var out, errb bytes.Buffer
	code := run([]string{}, &out, &errb, strings.NewReader(""))
	if code != 2 {
		t.Fatalf("want 2 got %d", code)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errb bytes.Buffer
	code := run([]string{"wat"}, &out, &errb, strings.NewReader(""))
	if code != 2 {
		t.Fatalf("want 2 got %d", code)
	}
}

func TestRun_Compile_MissingSource(t *testing.T) {
	var out, errb bytes.Buffer
	code := run([]string{"compile", "-output", "x"}, &out, &errb, strings.NewReader(""))
	if code != 2 {
		t.Fatalf("want 2 got %d", code)
	}
	if !strings.Contains(errb.String(), "-source is required") {
		t.Fatalf("unexpected stderr: %q", errb.String())
	}
}

// sourceModule is {x = 3, y = x + 4, z = y * 2}, public z: spec.md's S1.
const sourceModule = `{
	"definitions": [
		{"lhs": 1, "rhs": {"const": "3"}},
		{"lhs": 2, "rhs": {"op": "+", "a": {"var": 1}, "b": {"const": "4"}}},
		{"lhs": 3, "rhs": {"op": "*", "a": {"var": 2}, "b": {"const": "2"}}}
	],
	"constraints": [
		{"lhs": {"var": 1}, "rhs": {"const": "3"}},
		{"lhs": {"var": 2}, "rhs": {"op": "+", "a": {"var": 1}, "b": {"const": "4"}}},
		{"lhs": {"var": 3}, "rhs": {"op": "*", "a": {"var": 2}, "b": {"const": "2"}}}
	],
	"pubs": [3]
}`

func TestRun_CompileProveVerify_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "module.json")
	writeFile(t, sourcePath, sourceModule)

	circuitPath := filepath.Join(dir, "circuit.blob")
	var out, errb bytes.Buffer
	code := run([]string{"compile", "-source", sourcePath, "-output", circuitPath}, &out, &errb, strings.NewReader(""))
	if code != 0 {
		t.Fatalf("compile failed: code=%d stderr=%q", code, errb.String())
	}

	inputsPath := filepath.Join(dir, "circuit.blob.inputs")
	writeFile(t, inputsPath, `{"1": "3"}`)

	proofPath := filepath.Join(dir, "proof.blob")
	out.Reset()
	errb.Reset()
	code = run([]string{"prove", "-circuit", circuitPath, "-output", proofPath}, &out, &errb, strings.NewReader(""))
	if code != 0 {
		t.Fatalf("prove failed: code=%d stderr=%q", code, errb.String())
	}

	out.Reset()
	errb.Reset()
	code = run([]string{"verify", "-circuit", circuitPath, "-proof", proofPath}, &out, &errb, strings.NewReader(""))
	if code != 0 {
		t.Fatalf("verify failed: code=%d stderr=%q", code, errb.String())
	}
	if !strings.Contains(out.String(), "ok") {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
