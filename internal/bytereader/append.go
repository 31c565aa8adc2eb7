// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package bytereader

import (
	"encoding/binary"
	"math"
)

// AppendVarUint appends x to buf in the encoding read by [*Reader.ReadVarUint].
func AppendVarUint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// AppendString appends a length-prefixed string to buf.
func AppendString(buf []byte, s string) []byte {
	buf = AppendVarUint(buf, uint64(len(s)))
	return append(buf, s...)
}

// AppendBool appends a 0 or 1 byte.
func AppendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// AppendUint32 appends a little-endian 32-bit integer.
func AppendUint32(buf []byte, x uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, x)
}

// AppendFloat32 appends a little-endian IEEE 754 single-precision number.
func AppendFloat32(buf []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
}

// AppendFloat64 appends a little-endian IEEE 754 double-precision number.
func AppendFloat64(buf []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
}
