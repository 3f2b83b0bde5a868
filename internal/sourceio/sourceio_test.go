// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package sourceio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/logical-mechanism/circuitforge/internal/ast"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "module.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestReadModule_S1(t *testing.T) {
	path := writeTemp(t, `{
		"definitions": [
			{"lhs": 1, "rhs": {"const": "3"}},
			{"lhs": 2, "rhs": {"op": "+", "a": {"var": 1}, "b": {"const": "4"}}}
		],
		"constraints": [
			{"lhs": {"var": 1}, "rhs": {"const": "3"}},
			{"lhs": {"var": 2}, "rhs": {"op": "+", "a": {"var": 1}, "b": {"const": "4"}}},
			{"lhs": {"var": 3}, "rhs": {"op": "*", "a": {"var": 2}, "b": {"const": "2"}}}
		],
		"pubs": [3]
	}`)

	m, err := ReadModule(path)
	if err != nil {
		t.Fatalf("ReadModule: %v", err)
	}
	if len(m.Definitions) != 2 {
		t.Fatalf("want 2 definitions, got %d", len(m.Definitions))
	}
	if len(m.Constraints) != 3 {
		t.Fatalf("want 3 constraints, got %d", len(m.Constraints))
	}
	if len(m.Pubs) != 1 || m.Pubs[0] != ast.VariableId(3) {
		t.Fatalf("want pubs [3], got %v", m.Pubs)
	}

	add, ok := m.Definitions[1].Rhs.(ast.Infix)
	if !ok || add.Op != ast.Add {
		t.Fatalf("definition 2 rhs: want Infix(+), got %#v", m.Definitions[1].Rhs)
	}
}

func TestReadModule_NegatedExpression(t *testing.T) {
	path := writeTemp(t, `{
		"definitions": [
			{"lhs": 1, "rhs": {"neg": {"const": "5"}}}
		],
		"constraints": [],
		"pubs": []
	}`)

	m, err := ReadModule(path)
	if err != nil {
		t.Fatalf("ReadModule: %v", err)
	}
	neg, ok := m.Definitions[0].Rhs.(ast.Negate)
	if !ok {
		t.Fatalf("want Negate, got %#v", m.Definitions[0].Rhs)
	}
	c, ok := neg.X.(ast.Constant)
	if !ok || c.Value.Int64() != 5 {
		t.Fatalf("want Constant(5) inside Negate, got %#v", neg.X)
	}
}

func TestReadModule_UnknownOperator(t *testing.T) {
	path := writeTemp(t, `{
		"definitions": [{"lhs": 1, "rhs": {"op": "??", "a": {"const": "1"}, "b": {"const": "2"}}}],
		"constraints": [],
		"pubs": []
	}`)

	if _, err := ReadModule(path); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestReadModule_InvalidConstantLiteral(t *testing.T) {
	path := writeTemp(t, `{
		"definitions": [{"lhs": 1, "rhs": {"const": "not-a-number"}}],
		"constraints": [],
		"pubs": []
	}`)

	if _, err := ReadModule(path); err == nil {
		t.Fatalf("expected error for invalid constant literal")
	}
}

func TestReadModule_MissingFile(t *testing.T) {
	if _, err := ReadModule(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReadInputs_DecimalAndHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inputs.json")
	if err := os.WriteFile(path, []byte(`{"1": "42", "2": "0x2a", "3": "-7"}`), 0o644); err != nil {
		t.Fatalf("write inputs file: %v", err)
	}

	in, err := ReadInputs(path)
	if err != nil {
		t.Fatalf("ReadInputs: %v", err)
	}
	if in[1].Int64() != 42 {
		t.Fatalf("var 1: want 42, got %s", in[1].String())
	}
	if in[2].Int64() != 42 {
		t.Fatalf("var 2 (hex 0x2a): want 42, got %s", in[2].String())
	}
	if in[3].Int64() != -7 {
		t.Fatalf("var 3: want -7, got %s", in[3].String())
	}
}

func TestReadInputs_InvalidVariableId(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inputs.json")
	if err := os.WriteFile(path, []byte(`{"x": "1"}`), 0o644); err != nil {
		t.Fatalf("write inputs file: %v", err)
	}
	if _, err := ReadInputs(path); err == nil {
		t.Fatalf("expected error for non-numeric variable id")
	}
}

func TestReadInputs_InvalidValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inputs.json")
	if err := os.WriteFile(path, []byte(`{"1": "nope"}`), 0o644); err != nil {
		t.Fatalf("write inputs file: %v", err)
	}
	if _, err := ReadInputs(path); err == nil {
		t.Fatalf("expected error for invalid value literal")
	}
}
