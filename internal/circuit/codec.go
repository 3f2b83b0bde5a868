// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package circuit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/logical-mechanism/circuitforge/internal/ast"
	"github.com/logical-mechanism/circuitforge/internal/field"
)

// ErrDecode wraps every failure that occurs while decoding a circuit
// blob. Its message always includes which field of the layout could not
// be decoded, per spec.md §7.
var ErrDecode = fmt.Errorf("circuit: decode error")

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

var magic = [4]byte{'C', 'F', 'M', 'D'}

const formatVersion = 1

// ElemCodec encodes and decodes a single field element to/from a fixed
// number of bytes. Backend A uses LEBytesCodec (little-endian bytes
// of the canonical representative); Backend B uses LimbCodec (canonical
// representative decomposed into 32-bit big-endian limbs, least
// significant limb first).
type ElemCodec[T any, PT field.Elt[T]] interface {
	Size() int
	Encode(e T) []byte
	Decode(b []byte) (T, error)
}

// LEBytesCodec is Backend A's field-element wire format.
type LEBytesCodec[T any, PT field.Elt[T]] struct {
	// ByteLen is the canonical byte length of the field's modulus,
	// e.g. 32 for bn254/fr.
	ByteLen int
}

func (c LEBytesCodec[T, PT]) Size() int { return c.ByteLen }

func (c LEBytesCodec[T, PT]) Encode(e T) []byte {
	var bi big.Int
	PT(&e).BigInt(&bi)
	be := bi.Bytes()
	out := make([]byte, c.ByteLen)
	for i := 0; i < len(be) && i < c.ByteLen; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

func (c LEBytesCodec[T, PT]) Decode(b []byte) (T, error) {
	var zero T
	if len(b) != c.ByteLen {
		return zero, decodeErrorf("field element: want %d bytes, got %d", c.ByteLen, len(b))
	}
	be := make([]byte, len(b))
	for i, bb := range b {
		be[len(b)-1-i] = bb
	}
	bi := new(big.Int).SetBytes(be)
	var e T
	PT(&e).SetBigInt(bi)
	return e, nil
}

// LimbCodec is Backend B's field-element wire format: the canonical
// representative decomposed into NumLimbs big-endian uint32 limbs,
// ordered least-significant limb first.
type LimbCodec[T any, PT field.Elt[T]] struct {
	NumLimbs int
}

func (c LimbCodec[T, PT]) Size() int { return c.NumLimbs * 4 }

func (c LimbCodec[T, PT]) Encode(e T) []byte {
	var bi big.Int
	PT(&e).BigInt(&bi)
	full := make([]byte, c.Size())
	be := bi.Bytes()
	for i := 0; i < len(be) && i < len(full); i++ {
		full[len(full)-1-i] = be[len(be)-1-i]
	}
	out := make([]byte, c.Size())
	for limb := 0; limb < c.NumLimbs; limb++ {
		srcEnd := len(full) - limb*4
		srcStart := srcEnd - 4
		copy(out[limb*4:limb*4+4], full[srcStart:srcEnd])
	}
	return out
}

func (c LimbCodec[T, PT]) Decode(b []byte) (T, error) {
	var zero T
	if len(b) != c.Size() {
		return zero, decodeErrorf("field element: want %d bytes, got %d", c.Size(), len(b))
	}
	full := make([]byte, c.Size())
	for limb := 0; limb < c.NumLimbs; limb++ {
		dstEnd := len(full) - limb*4
		dstStart := dstEnd - 4
		copy(full[dstStart:dstEnd], b[limb*4:limb*4+4])
	}
	bi := new(big.Int).SetBytes(full)
	var e T
	PT(&e).SetBigInt(bi)
	return e, nil
}

// --- low-level primitive writer/reader ---

type writer struct{ buf bytes.Buffer }

func (w *writer) u8(v byte)       { w.buf.WriteByte(v) }
func (w *writer) u32(v uint32)    { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *writer) i64(v int64)     { var b [8]byte; binary.BigEndian.PutUint64(b[:], uint64(v)); w.buf.Write(b[:]) }
func (w *writer) bytes(b []byte)  { w.u32(uint32(len(b))); w.buf.Write(b) }
func (w *writer) bigInt(v *big.Int) {
	if v.Sign() < 0 {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.bytes(new(big.Int).Abs(v).Bytes())
}

type reader struct {
	r   *bytes.Reader
	err error
}

func (r *reader) fail(field string, err error) {
	if r.err == nil {
		r.err = decodeErrorf("%s: %v", field, err)
	}
}

func (r *reader) u8() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail("byte", err)
		return 0
	}
	return b
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail("uint32", err)
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail("int64", err)
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:]))
}

func (r *reader) bytesN() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.fail("bytes", err)
		return nil
	}
	return b
}

func (r *reader) bigInt() *big.Int {
	sign := r.u8()
	mag := r.bytesN()
	if r.err != nil {
		return nil
	}
	v := new(big.Int).SetBytes(mag)
	if sign == 1 {
		v.Neg(v)
	}
	return v
}

// --- Expr encoding ---

const (
	tagConstant byte = iota
	tagVariable
	tagNegate
	tagInfix
)

func writeExpr(w *writer, e ast.Expr) error {
	switch x := e.(type) {
	case ast.Constant:
		w.u8(tagConstant)
		w.bigInt(x.Value)
	case ast.Variable:
		w.u8(tagVariable)
		w.i64(int64(x.Id))
	case ast.Negate:
		w.u8(tagNegate)
		if err := writeExpr(w, x.X); err != nil {
			return err
		}
	case ast.Infix:
		w.u8(tagInfix)
		w.u8(byte(x.Op))
		if err := writeExpr(w, x.A); err != nil {
			return err
		}
		if err := writeExpr(w, x.B); err != nil {
			return err
		}
	default:
		return fmt.Errorf("circuit: encode: unknown expression type %T", e)
	}
	return nil
}

func readExpr(r *reader) ast.Expr {
	if r.err != nil {
		return nil
	}
	switch r.u8() {
	case tagConstant:
		return ast.Constant{Value: r.bigInt()}
	case tagVariable:
		return ast.Variable{Id: ast.VariableId(r.i64())}
	case tagNegate:
		return ast.Negate{X: readExpr(r)}
	case tagInfix:
		op := ast.InfixOp(r.u8())
		a := readExpr(r)
		b := readExpr(r)
		return ast.Infix{Op: op, A: a, B: b}
	default:
		r.fail("expr", fmt.Errorf("unknown tag"))
		return nil
	}
}

// --- Module (ast.Module + witness + k) encoding ---

// Encode serializes m's source module, witness map, and k into a stable
// binary layout using codec for field elements.
func Encode[T any, PT field.Elt[T]](m *Module[T, PT], codec ElemCodec[T, PT]) ([]byte, error) {
	w := &writer{}
	w.buf.Write(magic[:])
	w.u8(formatVersion)

	src := m.Source
	w.u32(uint32(len(src.Definitions)))
	for _, d := range src.Definitions {
		w.i64(int64(d.Lhs.Id))
		if err := writeExpr(w, d.Rhs); err != nil {
			return nil, err
		}
	}

	w.u32(uint32(len(src.Constraints)))
	for _, c := range src.Constraints {
		if err := writeExpr(w, c.Lhs); err != nil {
			return nil, err
		}
		if err := writeExpr(w, c.Rhs); err != nil {
			return nil, err
		}
	}

	w.u32(uint32(len(src.Pubs)))
	for _, p := range src.Pubs {
		w.i64(int64(p))
	}

	w.i64(int64(m.K))

	w.u32(uint32(len(m.Witness)))
	// deterministic order: sort is unnecessary if callers always iterate
	// variables via Source.Variables(); to guarantee byte-identical
	// round trips regardless of map iteration order, encode in that
	// canonical order instead of ranging the map directly.
	for _, id := range src.Variables() {
		v, ok := m.Witness[id]
		w.i64(int64(id))
		if !ok || v.IsUnknown() {
			w.u8(0)
			continue
		}
		w.u8(1)
		elem, _ := v.Elem()
		w.buf.Write(codec.Encode(elem))
	}

	return w.buf.Bytes(), nil
}

// Decode is the inverse of Encode.
func Decode[T any, PT field.Elt[T]](blob []byte, codec ElemCodec[T, PT]) (*Module[T, PT], error) {
	if len(blob) < 5 || !bytes.Equal(blob[:4], magic[:]) {
		return nil, decodeErrorf("magic: not a circuit blob")
	}
	r := &reader{r: bytes.NewReader(blob[4:])}
	version := r.u8()
	if r.err != nil {
		return nil, r.err
	}
	if version != formatVersion {
		return nil, decodeErrorf("version: unsupported version %d", version)
	}

	src := &ast.Module{}

	nDefs := r.u32()
	for i := uint32(0); i < nDefs && r.err == nil; i++ {
		id := ast.VariableId(r.i64())
		rhs := readExpr(r)
		src.Definitions = append(src.Definitions, ast.Definition{Lhs: ast.Pat{Id: id}, Rhs: rhs})
	}

	nCons := r.u32()
	for i := uint32(0); i < nCons && r.err == nil; i++ {
		lhs := readExpr(r)
		rhs := readExpr(r)
		src.Constraints = append(src.Constraints, ast.Constraint{Lhs: lhs, Rhs: rhs})
	}

	nPubs := r.u32()
	for i := uint32(0); i < nPubs && r.err == nil; i++ {
		src.Pubs = append(src.Pubs, ast.VariableId(r.i64()))
	}

	k := r.i64()

	nWitness := r.u32()
	witnessMap := make(map[ast.VariableId]field.Value[T, PT], nWitness)
	for i := uint32(0); i < nWitness && r.err == nil; i++ {
		id := ast.VariableId(r.i64())
		known := r.u8()
		if known == 0 {
			witnessMap[id] = field.Unknown[T, PT]()
			continue
		}
		if r.err != nil {
			break
		}
		raw := make([]byte, codec.Size())
		if _, err := io.ReadFull(r.r, raw); err != nil {
			r.fail("witness element", err)
			break
		}
		elem, err := codec.Decode(raw)
		if err != nil {
			r.fail("witness element", err)
			break
		}
		witnessMap[id] = field.Known[T, PT](elem)
	}

	if r.err != nil {
		return nil, r.err
	}

	// A blob written before PopulateVariables ran (as compile writes it)
	// carries only unknown values and can still be populated once.
	populated := false
	for _, v := range witnessMap {
		if !v.IsUnknown() {
			populated = true
			break
		}
	}

	return &Module[T, PT]{
		Source:    src,
		Witness:   witnessMap,
		K:         uint(k),
		populated: populated,
	}, nil
}
