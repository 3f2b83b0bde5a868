// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package artifact frames the on-disk circuit and proof blobs the CLI
// commands read and write: backend-specific public-parameter bytes
// (gnark's native pk/vk serialization) concatenated with the encoded
// CircuitModule, and a length-prefixed proof transcript. This framing
// sits above internal/circuit's codec, which only knows how to encode
// the module itself.
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var circuitMagic = [4]byte{'C', 'F', 'C', 'B'}
var proofMagic = [4]byte{'C', 'F', 'P', 'B'}

const formatVersion = 1

func writeSection(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("artifact: section length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("artifact: section body: %w", err)
	}
	return b, nil
}

// WriteCircuitBlob frames a proving key, a verifying key, and an encoded
// CircuitModule into one file, per spec.md's "backend-specific public
// parameters followed by the encoded CircuitModule" circuit-blob layout.
func WriteCircuitBlob(pk, vk, module []byte) []byte {
	var buf bytes.Buffer
	buf.Write(circuitMagic[:])
	buf.WriteByte(formatVersion)
	writeSection(&buf, pk)
	writeSection(&buf, vk)
	writeSection(&buf, module)
	return buf.Bytes()
}

// ReadCircuitBlob is the inverse of WriteCircuitBlob.
func ReadCircuitBlob(blob []byte) (pk, vk, module []byte, err error) {
	if len(blob) < 5 || !bytes.Equal(blob[:4], circuitMagic[:]) {
		return nil, nil, nil, fmt.Errorf("artifact: not a circuit blob")
	}
	if blob[4] != formatVersion {
		return nil, nil, nil, fmt.Errorf("artifact: unsupported circuit blob version %d", blob[4])
	}
	r := bytes.NewReader(blob[5:])
	if pk, err = readSection(r); err != nil {
		return nil, nil, nil, err
	}
	if vk, err = readSection(r); err != nil {
		return nil, nil, nil, err
	}
	if module, err = readSection(r); err != nil {
		return nil, nil, nil, err
	}
	return pk, vk, module, nil
}

// WriteProofBlob frames a serialized proof transcript as a length-
// prefixed byte vector, per spec.md's proof-blob description.
func WriteProofBlob(proof []byte) []byte {
	var buf bytes.Buffer
	buf.Write(proofMagic[:])
	buf.WriteByte(formatVersion)
	writeSection(&buf, proof)
	return buf.Bytes()
}

// ReadProofBlob is the inverse of WriteProofBlob.
func ReadProofBlob(blob []byte) ([]byte, error) {
	if len(blob) < 5 || !bytes.Equal(blob[:4], proofMagic[:]) {
		return nil, fmt.Errorf("artifact: not a proof blob")
	}
	if blob[4] != formatVersion {
		return nil, fmt.Errorf("artifact: unsupported proof blob version %d", blob[4])
	}
	r := bytes.NewReader(blob[5:])
	return readSection(r)
}
