// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package artifact

import "testing"

func TestCircuitBlob_RoundTrip(t *testing.T) {
	pk := []byte("proving-key-bytes")
	vk := []byte("verifying-key-bytes")
	module := []byte("encoded-module-bytes")

	blob := WriteCircuitBlob(pk, vk, module)
	gotPk, gotVk, gotModule, err := ReadCircuitBlob(blob)
	if err != nil {
		t.Fatalf("read circuit blob: %v", err)
	}
	if string(gotPk) != string(pk) || string(gotVk) != string(vk) || string(gotModule) != string(module) {
		t.Fatalf("round trip mismatch: pk=%q vk=%q module=%q", gotPk, gotVk, gotModule)
	}
}

func TestCircuitBlob_EmptySections(t *testing.T) {
	blob := WriteCircuitBlob(nil, nil, []byte("m"))
	pk, vk, module, err := ReadCircuitBlob(blob)
	if err != nil {
		t.Fatalf("read circuit blob: %v", err)
	}
	if len(pk) != 0 || len(vk) != 0 || string(module) != "m" {
		t.Fatalf("unexpected sections: pk=%v vk=%v module=%q", pk, vk, module)
	}
}

func TestReadCircuitBlob_RejectsBadMagic(t *testing.T) {
	if _, _, _, err := ReadCircuitBlob([]byte("not a blob")); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestProofBlob_RoundTrip(t *testing.T) {
	proof := []byte("serialized-proof-transcript")
	blob := WriteProofBlob(proof)
	got, err := ReadProofBlob(blob)
	if err != nil {
		t.Fatalf("read proof blob: %v", err)
	}
	if string(got) != string(proof) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, proof)
	}
}

func TestReadProofBlob_RejectsBadMagic(t *testing.T) {
	if _, err := ReadProofBlob([]byte("nope")); err == nil {
		t.Fatal("expected error for bad magic")
	}
}
