// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import "fmt"

// Instruction is a single 32-bit instruction word.
// The opcode occupies the low byte.
// The remaining 24 bits are interpreted according to [OpCode.OpMode].
type Instruction uint32

// ABCInstruction returns a new [Instruction] with the given operands.
// ABCInstruction panics if the [OpCode] given does not use
// [OpModeNone], [OpModeA], [OpModeAB], or [OpModeABC].
func ABCInstruction(op OpCode, a, b, c uint8) Instruction {
	switch op.OpMode() {
	case OpModeNone, OpModeA, OpModeAB, OpModeABC:
	default:
		panic("ABCInstruction with invalid OpCode")
	}
	return Instruction(op) |
		Instruction(a)<<8 |
		Instruction(b)<<16 |
		Instruction(c)<<24
}

// ADInstruction returns a new [OpModeAD] [Instruction]
// with the given arguments.
// ADInstruction panics if the [OpCode] given
// does not return [OpModeAD] from [OpCode.OpMode].
func ADInstruction(op OpCode, a uint8, d int16) Instruction {
	if op.OpMode() != OpModeAD {
		panic("ADInstruction with invalid OpCode")
	}
	return Instruction(op) |
		Instruction(a)<<8 |
		Instruction(uint16(d))<<16
}

// EInstruction returns a new [OpModeE] [Instruction].
// EInstruction panics if the [OpCode] given
// does not return [OpModeE] from [OpCode.OpMode]
// or e does not fit in a signed 24-bit integer.
func EInstruction(op OpCode, e int32) Instruction {
	if op.OpMode() != OpModeE {
		panic("EInstruction with invalid OpCode")
	}
	if e < -(1<<23) || e >= 1<<23 {
		panic("E argument out of range")
	}
	return Instruction(op) | Instruction(uint32(e)<<8)
}

// OpCode returns the instruction's type.
func (i Instruction) OpCode() OpCode {
	return OpCode(i)
}

// ArgA returns the A operand (bits 8-15).
func (i Instruction) ArgA() uint8 {
	return uint8(i >> 8)
}

// ArgB returns the B operand (bits 16-23).
func (i Instruction) ArgB() uint8 {
	return uint8(i >> 16)
}

// ArgC returns the C operand (bits 24-31).
func (i Instruction) ArgC() uint8 {
	return uint8(i >> 24)
}

// ArgD returns the signed 16-bit D operand (bits 16-31).
func (i Instruction) ArgD() int16 {
	return int16(i >> 16)
}

// ArgE returns the signed 24-bit E operand (bits 8-31).
func (i Instruction) ArgE() int32 {
	return int32(i) >> 8
}

// JumpOffset returns the offset of a jump relative to the instruction
// that follows it.
func (i Instruction) JumpOffset() (_ int, ok bool) {
	op := i.OpCode()
	if !op.IsJump() {
		return 0, false
	}
	if op.OpMode() == OpModeE {
		return int(i.ArgE()), true
	}
	return int(i.ArgD()), true
}

// String decodes the instruction
// and formats it in a manner similar to `luau --compile=text`.
func (i Instruction) String() string {
	op := i.OpCode()
	switch op.OpMode() {
	case OpModeNone:
		return op.String()
	case OpModeA:
		return fmt.Sprintf("%-11s %d", op, i.ArgA())
	case OpModeAB:
		return fmt.Sprintf("%-11s %d %d", op, i.ArgA(), i.ArgB())
	case OpModeABC:
		return fmt.Sprintf("%-11s %d %d %d", op, i.ArgA(), i.ArgB(), i.ArgC())
	case OpModeAD:
		return fmt.Sprintf("%-11s %d %d", op, i.ArgA(), i.ArgD())
	case OpModeE:
		return fmt.Sprintf("%-11s %d", op, i.ArgE())
	default:
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
}

// Context is the location of a decoded instruction.
type Context struct {
	// PC is the index of the instruction's first word in [Function.Code].
	PC int
	// Line is the source line the instruction was compiled from,
	// or 0 if the function has no line information.
	Line int
}

// Decoded is an [Instruction] together with its auxiliary word and location.
type Decoded struct {
	Instruction
	// Aux is the auxiliary word.
	// It is only meaningful if [OpCode.HasAux] reports true.
	Aux uint32
	Context
}

// Next returns the program counter of the instruction that follows d.
func (d Decoded) Next() int {
	return d.PC + d.OpCode().Size()
}

// Target returns the program counter that a jump instruction transfers control to.
// Offsets are relative to the word after the instruction
// (an auxiliary word, if any, is not skipped).
func (d Decoded) Target() (_ int, ok bool) {
	off, ok := d.JumpOffset()
	if !ok {
		return 0, false
	}
	return d.PC + 1 + off, true
}
