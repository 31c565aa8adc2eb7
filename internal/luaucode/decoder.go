// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"fmt"
	"strings"
)

// An OpcodeDecoder maps a raw opcode byte found in a chunk
// to the logical [OpCode] it stands for.
// Only the opcode byte is affected;
// operand bits and auxiliary words are never rewritten.
type OpcodeDecoder interface {
	DecodeOpcode(raw uint8) OpCode
}

// An OpcodeEncoder is the inverse of an [OpcodeDecoder].
// It is used when writing chunks.
type OpcodeEncoder interface {
	EncodeOpcode(op OpCode) uint8
}

// IdentityDecoder is the [OpcodeDecoder] for chunks
// whose opcode bytes are already logical opcodes.
type IdentityDecoder struct{}

// DecodeOpcode returns OpCode(raw).
func (IdentityDecoder) DecodeOpcode(raw uint8) OpCode { return OpCode(raw) }

// EncodeOpcode returns uint8(op).
func (IdentityDecoder) EncodeOpcode(op OpCode) uint8 { return uint8(op) }

// MultiplicativeDecoder undoes an encoding that stores
// each opcode multiplied by a constant modulo 256.
// K is the multiplier applied while decoding
// and must be odd for the mapping to be a permutation.
type MultiplicativeDecoder struct {
	K uint8
}

// RobloxDecoder is the [MultiplicativeDecoder] for Roblox client bytecode,
// which stores each opcode multiplied by 227.
var RobloxDecoder = MultiplicativeDecoder{K: 203}

// DecodeOpcode returns raw × K mod 256.
func (d MultiplicativeDecoder) DecodeOpcode(raw uint8) OpCode {
	return OpCode(raw * d.K)
}

// EncodeOpcode returns op × K⁻¹ mod 256.
// EncodeOpcode panics if K is even.
func (d MultiplicativeDecoder) EncodeOpcode(op OpCode) uint8 {
	return uint8(op) * inverseMod256(d.K)
}

// inverseMod256 returns the multiplicative inverse of an odd k modulo 256.
func inverseMod256(k uint8) uint8 {
	if k%2 == 0 {
		panic("even multiplier has no inverse modulo 256")
	}
	// Newton's iteration doubles the number of correct low bits each step.
	// k is its own inverse modulo 8.
	x := k
	for range 3 {
		x *= 2 - k*x
	}
	return x
}

// DecodeWord32 returns word with its low byte passed through dec.
func DecodeWord32(dec OpcodeDecoder, word uint32) uint32 {
	return word&^0xff | uint32(dec.DecodeOpcode(uint8(word)))
}

// DecodeWord64 returns word with its low byte passed through dec.
func DecodeWord64(dec OpcodeDecoder, word uint64) uint64 {
	return word&^0xff | uint64(dec.DecodeOpcode(uint8(word)))
}

// Decoder names accepted by [DecoderByName].
const (
	DefaultDecoderName = "default"
	RobloxDecoderName  = "roblox"
)

// DecoderByName returns the named opcode decoding strategy.
// The empty string is equivalent to [DefaultDecoderName].
func DecoderByName(name string) (OpcodeDecoder, error) {
	switch strings.ToLower(name) {
	case "", DefaultDecoderName, "identity":
		return IdentityDecoder{}, nil
	case RobloxDecoderName:
		return RobloxDecoder, nil
	default:
		return nil, fmt.Errorf("unknown opcode decoder %q (want %q or %q)",
			name, DefaultDecoderName, RobloxDecoderName)
	}
}

// EncoderFor returns the [OpcodeEncoder] that undoes dec.
// If dec does not implement [OpcodeEncoder],
// EncoderFor builds the inverse mapping by tabulating dec,
// which fails if dec is not a permutation.
func EncoderFor(dec OpcodeDecoder) (OpcodeEncoder, error) {
	if enc, ok := dec.(OpcodeEncoder); ok {
		return enc, nil
	}
	var table tableEncoder
	var seen [256]bool
	for raw := range 256 {
		op := dec.DecodeOpcode(uint8(raw))
		if seen[op] {
			return nil, fmt.Errorf("opcode decoder maps two bytes to %v", op)
		}
		seen[op] = true
		table[op] = uint8(raw)
	}
	return &table, nil
}

type tableEncoder [256]uint8

func (t *tableEncoder) EncodeOpcode(op OpCode) uint8 {
	return t[op]
}
