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

func TestRun_Compile_MissingOutput(t *testing.T) {
	var out, errb bytes.Buffer
	code := run([]string{"compile", "-source", "x"}, &out, &errb, strings.NewReader(""))
	if code != 2 {
		t.Fatalf("want 2 got %d", code)
	}
	if !strings.Contains(errb.String(), "-output is required") {
		t.Fatalf("unexpected stderr: %q", errb.String())
	}
}

// sourceModule is {x = 3, y = x + 4, z = y * 2}, public z: spec.md's S1,
// run through Backend B's composer/Groth16 path instead of Backend A's.
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

	exportDir := filepath.Join(dir, "export")
	out.Reset()
	errb.Reset()
	code = run([]string{"verify", "-circuit", circuitPath, "-proof", proofPath, "-export", exportDir}, &out, &errb, strings.NewReader(""))
	if code != 0 {
		t.Fatalf("verify failed: code=%d stderr=%q", code, errb.String())
	}
	if !strings.Contains(out.String(), "ok") {
		t.Fatalf("unexpected stdout: %q", out.String())
	}
	if !strings.Contains(out.String(), "public[0] variable 3") {
		t.Fatalf("expected public layout annotation in stdout, got %q", out.String())
	}
	for _, name := range []string{"vk.json", "proof.json", "public.json"} {
		if _, err := os.Stat(filepath.Join(exportDir, name)); err != nil {
			t.Fatalf("expected export to write %s: %v", name, err)
		}
	}
}

func TestRun_Ceremony_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "module.json")
	writeFile(t, sourcePath, sourceModule)
	ceremonyDir := filepath.Join(dir, "ceremony")

	run := func(args ...string) (int, string, string) {
		var out, errb bytes.Buffer
		code := run(args, &out, &errb, strings.NewReader(""))
		return code, out.String(), errb.String()
	}

	if code, _, errb := run("ceremony", "init", "-source", sourcePath, "-dir", ceremonyDir); code != 0 {
		t.Fatalf("ceremony init failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "contribute1", "-dir", ceremonyDir); code != 0 {
		t.Fatalf("ceremony contribute1 failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "verify1", "-dir", ceremonyDir); code != 0 {
		t.Fatalf("ceremony verify1 failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "finalize1", "-dir", ceremonyDir, "-beacon", "deadbeef"); code != 0 {
		t.Fatalf("ceremony finalize1 failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "contribute2", "-dir", ceremonyDir); code != 0 {
		t.Fatalf("ceremony contribute2 failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "verify2", "-dir", ceremonyDir); code != 0 {
		t.Fatalf("ceremony verify2 failed: code=%d stderr=%q", code, errb)
	}
	if code, _, errb := run("ceremony", "finalize2", "-dir", ceremonyDir, "-beacon", "0xcafef00d"); code != 0 {
		t.Fatalf("ceremony finalize2 failed: code=%d stderr=%q", code, errb)
	}
	for _, name := range []string{"pk.bin", "vk.bin"} {
		if _, err := os.Stat(filepath.Join(ceremonyDir, name)); err != nil {
			t.Fatalf("expected ceremony to write %s: %v", name, err)
		}
	}
}

func TestRun_Ceremony_UnknownSubcommand(t *testing.T) {
	var out, errb bytes.Buffer
	code := run([]string{"ceremony", "wat"}, &out, &errb, strings.NewReader(""))
	if code != 2 {
		t.Fatalf("want 2 got %d", code)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
