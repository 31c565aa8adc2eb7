// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package bytereader provides a little-endian cursor over an in-memory byte slice
// along with the matching append-style encoders.
package bytereader

import (
	"encoding/binary"
	"math"

	"zb.256lights.llc/luaudec/internal/decerr"
)

// Reader reads primitive values from a byte slice.
// Every successful read advances the position by the number of bytes consumed.
// A failed read leaves the position unchanged.
type Reader struct {
	s   []byte
	pos int
}

// New returns a new [Reader] positioned at the start of s.
func New(s []byte) *Reader {
	return &Reader{s: s}
}

// Pos returns the current byte offset.
func (r *Reader) Pos() int {
	return r.pos
}

// SetPos moves the cursor to the given byte offset.
// Offsets past the end of the data are permitted;
// the next read will fail with [decerr.UnexpectedEndOfData].
func (r *Reader) SetPos(pos int) {
	r.pos = max(pos, 0)
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return max(len(r.s)-r.pos, 0)
}

func (r *Reader) need(n int, what string) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, decerr.AtOffset(decerr.StageRead, decerr.UnexpectedEndOfData, r.pos,
			"%s needs %d bytes, %d remain", what, n, r.Len())
	}
	b := r.s[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.need(1, "byte")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a single signed byte.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadUint8()
	return int8(b), err
}

// ReadUint16 reads a little-endian 16-bit unsigned integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.need(2, "uint16")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian 16-bit signed integer.
func (r *Reader) ReadInt16() (int16, error) {
	x, err := r.ReadUint16()
	return int16(x), err
}

// ReadUint32 reads a little-endian 32-bit unsigned integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.need(4, "uint32")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian 32-bit signed integer.
func (r *Reader) ReadInt32() (int32, error) {
	x, err := r.ReadUint32()
	return int32(x), err
}

// ReadUint64 reads a little-endian 64-bit unsigned integer.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.need(8, "uint64")
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64 reads a little-endian 64-bit signed integer.
func (r *Reader) ReadInt64() (int64, error) {
	x, err := r.ReadUint64()
	return int64(x), err
}

// ReadFloat32 reads a little-endian IEEE 754 single-precision number.
func (r *Reader) ReadFloat32() (float32, error) {
	x, err := r.ReadUint32()
	return math.Float32frombits(x), err
}

// ReadFloat64 reads a little-endian IEEE 754 double-precision number.
func (r *Reader) ReadFloat64() (float64, error) {
	x, err := r.ReadUint64()
	return math.Float64frombits(x), err
}

// ReadBytes reads a run of n bytes.
// The returned slice aliases the underlying data.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.need(n, "byte run")
}

// ReadBool reads a byte that must be 0 or 1.
// Any other value fails with [decerr.MalformedData].
func (r *Reader) ReadBool() (bool, error) {
	start := r.pos
	b, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		r.pos = start
		return false, decerr.AtOffset(decerr.StageRead, decerr.MalformedData, start,
			"boolean byte %#02x is not 0 or 1", b)
	}
}

// ReadVarUint reads a compressed unsigned integer:
// little-endian groups of 7 bits where the high bit of each byte
// signals that another byte follows.
// There is no limit on the number of bytes;
// bits beyond the 64th are discarded.
func (r *Reader) ReadVarUint() (uint64, error) {
	start := r.pos
	var x uint64
	var shift uint
	for {
		b, err := r.ReadUint8()
		if err != nil {
			r.pos = start
			return 0, decerr.AtOffset(decerr.StageRead, decerr.UnexpectedEndOfData, start,
				"compressed integer truncated after %d bytes", r.Len())
		}
		if shift < 64 {
			x |= uint64(b&0x7f) << shift
		}
		if b&0x80 == 0 {
			return x, nil
		}
		shift += 7
	}
}

// ReadVarInt reads a compressed unsigned integer
// and checks that it fits in an int no larger than limit.
func (r *Reader) ReadVarInt(limit int) (int, error) {
	start := r.pos
	x, err := r.ReadVarUint()
	if err != nil {
		return 0, err
	}
	if x > uint64(limit) {
		r.pos = start
		return 0, decerr.AtOffset(decerr.StageRead, decerr.MalformedData, start,
			"count %d exceeds limit %d", x, limit)
	}
	return int(x), nil
}

// ReadString reads a compressed-integer length followed by that many bytes.
func (r *Reader) ReadString() (string, error) {
	start := r.pos
	n, err := r.ReadVarInt(r.Len())
	if err != nil {
		if de, ok := err.(*decerr.Error); ok && de.Kind == decerr.MalformedData {
			return "", decerr.AtOffset(decerr.StageRead, decerr.UnexpectedEndOfData, start,
				"string length exceeds remaining data")
		}
		return "", err
	}
	b, err := r.need(n, "string")
	if err != nil {
		r.pos = start
		return "", err
	}
	return string(b), nil
}
