// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

//go:generate go tool stringer -type=OpCode,OpMode -linecomment -output=opcode_string.go

package luaucode

// OpCode is an enumeration of [Instruction] types.
type OpCode uint8

// IsValid reports whether the opcode is one of the known instructions.
func (op OpCode) IsValid() bool {
	return op <= maxOpCode
}

func (op OpCode) props() byte {
	if !op.IsValid() {
		return 0
	}
	return opProps[op]
}

// OpMode returns the operand layout of an [Instruction] that uses the opcode.
func (op OpCode) OpMode() OpMode {
	return OpMode(op.props() & 7)
}

// HasAux reports whether the instruction is followed by an auxiliary word.
// The auxiliary word occupies its own program counter slot.
func (op OpCode) HasAux() bool {
	return op.props()&(1<<3) != 0
}

// IsJump reports whether the instruction transfers control
// to a target computed from its D (or E) operand.
func (op OpCode) IsJump() bool {
	return op.props()&(1<<4) != 0
}

// IsConditional reports whether the instruction
// only jumps when its condition holds.
func (op OpCode) IsConditional() bool {
	return op.props()&(1<<5) != 0
}

// Size returns the number of words the instruction occupies.
func (op OpCode) Size() int {
	if op.HasAux() {
		return 2
	}
	return 1
}

// Defined [OpCode] values.
const (
	// no operation
	OpNop OpCode = 0 // NOP
	// debugger break
	OpBreak OpCode = 1 // BREAK
	// A R[A] := nil
	OpLoadNil OpCode = 2 // LOADNIL
	// A B C R[A] := B != 0; pc += C
	OpLoadB OpCode = 3 // LOADB
	// A D R[A] := D
	OpLoadN OpCode = 4 // LOADN
	// A D R[A] := K[D]
	OpLoadK OpCode = 5 // LOADK
	// A B R[A] := R[B]
	OpMove OpCode = 6 // MOVE
	// A aux R[A] := _G[K[aux]]
	OpGetGlobal OpCode = 7 // GETGLOBAL
	// A aux _G[K[aux]] := R[A]
	OpSetGlobal OpCode = 8 // SETGLOBAL
	// A B R[A] := U[B]
	OpGetUpval OpCode = 9 // GETUPVAL
	// A B U[B] := R[A]
	OpSetUpval OpCode = 10 // SETUPVAL
	// A close upvalues >= R[A]
	OpCloseUpvals OpCode = 11 // CLOSEUPVALS
	// A D aux R[A] := import(K[D])
	OpGetImport OpCode = 12 // GETIMPORT
	// A B C R[A] := R[B][R[C]]
	OpGetTable OpCode = 13 // GETTABLE
	// A B C R[B][R[C]] := R[A]
	OpSetTable OpCode = 14 // SETTABLE
	// A B aux R[A] := R[B][K[aux]]
	OpGetTableKS OpCode = 15 // GETTABLEKS
	// A B aux R[B][K[aux]] := R[A]
	OpSetTableKS OpCode = 16 // SETTABLEKS
	// A B C R[A] := R[B][C+1]
	OpGetTableN OpCode = 17 // GETTABLEN
	// A B C R[B][C+1] := R[A]
	OpSetTableN OpCode = 18 // SETTABLEN
	// A D R[A] := closure(P[D])
	OpNewClosure OpCode = 19 // NEWCLOSURE
	// A B aux R[A+1] := R[B]; R[A] := R[B][K[aux]]
	OpNameCall OpCode = 20 // NAMECALL
	// A B C R[A], ..., R[A+C-2] := R[A](R[A+1], ..., R[A+B-1])
	OpCall OpCode = 21 // CALL
	// A B return R[A], ..., R[A+B-2]
	OpReturn OpCode = 22 // RETURN
	// D pc += D
	OpJump OpCode = 23 // JUMP
	// D pc += D
	OpJumpBack OpCode = 24 // JUMPBACK
	// A D if R[A] then pc += D
	OpJumpIf OpCode = 25 // JUMPIF
	// A D if not R[A] then pc += D
	OpJumpIfNot OpCode = 26 // JUMPIFNOT
	// A D aux if R[A] == R[aux] then pc += D
	OpJumpIfEq OpCode = 27 // JUMPIFEQ
	// A D aux if R[A] <= R[aux] then pc += D
	OpJumpIfLe OpCode = 28 // JUMPIFLE
	// A D aux if R[A] < R[aux] then pc += D
	OpJumpIfLt OpCode = 29 // JUMPIFLT
	// A D aux if R[A] ~= R[aux] then pc += D
	OpJumpIfNotEq OpCode = 30 // JUMPIFNOTEQ
	// A D aux if not (R[A] <= R[aux]) then pc += D
	OpJumpIfNotLe OpCode = 31 // JUMPIFNOTLE
	// A D aux if not (R[A] < R[aux]) then pc += D
	OpJumpIfNotLt OpCode = 32 // JUMPIFNOTLT
	// A B C R[A] := R[B] + R[C]
	OpAdd OpCode = 33 // ADD
	// A B C R[A] := R[B] - R[C]
	OpSub OpCode = 34 // SUB
	// A B C R[A] := R[B] * R[C]
	OpMul OpCode = 35 // MUL
	// A B C R[A] := R[B] / R[C]
	OpDiv OpCode = 36 // DIV
	// A B C R[A] := R[B] % R[C]
	OpMod OpCode = 37 // MOD
	// A B C R[A] := R[B] ^ R[C]
	OpPow OpCode = 38 // POW
	// A B C R[A] := R[B] + K[C]
	OpAddK OpCode = 39 // ADDK
	// A B C R[A] := R[B] - K[C]
	OpSubK OpCode = 40 // SUBK
	// A B C R[A] := R[B] * K[C]
	OpMulK OpCode = 41 // MULK
	// A B C R[A] := R[B] / K[C]
	OpDivK OpCode = 42 // DIVK
	// A B C R[A] := R[B] % K[C]
	OpModK OpCode = 43 // MODK
	// A B C R[A] := R[B] ^ K[C]
	OpPowK OpCode = 44 // POWK
	// A B C R[A] := R[B] and R[C]
	OpAnd OpCode = 45 // AND
	// A B C R[A] := R[B] or R[C]
	OpOr OpCode = 46 // OR
	// A B C R[A] := R[B] and K[C]
	OpAndK OpCode = 47 // ANDK
	// A B C R[A] := R[B] or K[C]
	OpOrK OpCode = 48 // ORK
	// A B C R[A] := R[B] .. ... .. R[C]
	OpConcat OpCode = 49 // CONCAT
	// A B R[A] := not R[B]
	OpNot OpCode = 50 // NOT
	// A B R[A] := -R[B]
	OpMinus OpCode = 51 // MINUS
	// A B R[A] := #R[B]
	OpLength OpCode = 52 // LENGTH
	// A B aux R[A] := {}
	OpNewTable OpCode = 53 // NEWTABLE
	// A D R[A] := copy(K[D])
	OpDupTable OpCode = 54 // DUPTABLE
	// A B C aux R[A][aux+i-1] := R[B+i-1], 1 <= i <= C-1
	OpSetList OpCode = 55 // SETLIST
	// A D prepare numeric loop over R[A] (limit), R[A+1] (step), R[A+2] (index); exit to D
	OpForNPrep OpCode = 56 // FORNPREP
	// A D step R[A+2]; if in range then pc += D
	OpForNLoop OpCode = 57 // FORNLOOP
	// A D aux R[A+3], ..., R[A+2+aux&0xff] := R[A](R[A+1], R[A+2]); if R[A+3] ~= nil then pc += D
	OpForGLoop OpCode = 58 // FORGLOOP
	// A D prepare ipairs-style loop; pc += D
	OpForGPrepINext OpCode = 59 // FORGPREP_INEXT
	// A B aux builtin call hint
	OpFastCall3 OpCode = 60 // FASTCALL3
	// A D prepare pairs-style loop; pc += D
	OpForGPrepNext OpCode = 61 // FORGPREP_NEXT
	// native code entry
	OpNativeCall OpCode = 62 // NATIVECALL
	// A B R[A], ..., R[A+B-2] := ...
	OpGetVarArgs OpCode = 63 // GETVARARGS
	// A D R[A] := closure(K[D])
	OpDupClosure OpCode = 64 // DUPCLOSURE
	// A prepare variadic frame with A fixed parameters
	OpPrepVarArgs OpCode = 65 // PREPVARARGS
	// A aux R[A] := K[aux]
	OpLoadKX OpCode = 66 // LOADKX
	// E pc += E
	OpJumpX OpCode = 67 // JUMPX
	// A C builtin call hint
	OpFastCall OpCode = 68 // FASTCALL
	// E coverage counter
	OpCoverage OpCode = 69 // COVERAGE
	// A B capture R[B] or U[B] into the preceding closure
	OpCapture OpCode = 70 // CAPTURE
	// A B C R[A] := K[B] - R[C]
	OpSubRK OpCode = 71 // SUBRK
	// A B C R[A] := K[B] / R[C]
	OpDivRK OpCode = 72 // DIVRK
	// A B C builtin call hint
	OpFastCall1 OpCode = 73 // FASTCALL1
	// A B C aux builtin call hint
	OpFastCall2 OpCode = 74 // FASTCALL2
	// A B C aux builtin call hint
	OpFastCall2K OpCode = 75 // FASTCALL2K
	// A D prepare generic loop; pc += D
	OpForGPrep OpCode = 76 // FORGPREP
	// A D aux if (R[A] == nil) ~= aux>>31 then pc += D
	OpJumpXEqKNil OpCode = 77 // JUMPXEQKNIL
	// A D aux if (R[A] == (aux&1 == 1)) ~= aux>>31 then pc += D
	OpJumpXEqKB OpCode = 78 // JUMPXEQKB
	// A D aux if (R[A] == K[aux&0xffffff]) ~= aux>>31 then pc += D
	OpJumpXEqKN OpCode = 79 // JUMPXEQKN
	// A D aux if (R[A] == K[aux&0xffffff]) ~= aux>>31 then pc += D
	OpJumpXEqKS OpCode = 80 // JUMPXEQKS
	// A B C R[A] := R[B] // R[C]
	OpIDiv OpCode = 81 // IDIV
	// A B C R[A] := R[B] // K[C]
	OpIDivK OpCode = 82 // IDIVK

	maxOpCode = OpIDivK
)

var opProps = [...]byte{
	OpNop:           0b00000000 | byte(OpModeNone),
	OpBreak:         0b00000000 | byte(OpModeNone),
	OpLoadNil:       0b00000000 | byte(OpModeA),
	OpLoadB:         0b00000000 | byte(OpModeABC),
	OpLoadN:         0b00000000 | byte(OpModeAD),
	OpLoadK:         0b00000000 | byte(OpModeAD),
	OpMove:          0b00000000 | byte(OpModeAB),
	OpGetGlobal:     0b00001000 | byte(OpModeA),
	OpSetGlobal:     0b00001000 | byte(OpModeA),
	OpGetUpval:      0b00000000 | byte(OpModeAB),
	OpSetUpval:      0b00000000 | byte(OpModeAB),
	OpCloseUpvals:   0b00000000 | byte(OpModeA),
	OpGetImport:     0b00001000 | byte(OpModeAD),
	OpGetTable:      0b00000000 | byte(OpModeABC),
	OpSetTable:      0b00000000 | byte(OpModeABC),
	OpGetTableKS:    0b00001000 | byte(OpModeABC),
	OpSetTableKS:    0b00001000 | byte(OpModeABC),
	OpGetTableN:     0b00000000 | byte(OpModeABC),
	OpSetTableN:     0b00000000 | byte(OpModeABC),
	OpNewClosure:    0b00000000 | byte(OpModeAD),
	OpNameCall:      0b00001000 | byte(OpModeABC),
	OpCall:          0b00000000 | byte(OpModeABC),
	OpReturn:        0b00000000 | byte(OpModeAB),
	OpJump:          0b00010000 | byte(OpModeAD),
	OpJumpBack:      0b00010000 | byte(OpModeAD),
	OpJumpIf:        0b00110000 | byte(OpModeAD),
	OpJumpIfNot:     0b00110000 | byte(OpModeAD),
	OpJumpIfEq:      0b00111000 | byte(OpModeAD),
	OpJumpIfLe:      0b00111000 | byte(OpModeAD),
	OpJumpIfLt:      0b00111000 | byte(OpModeAD),
	OpJumpIfNotEq:   0b00111000 | byte(OpModeAD),
	OpJumpIfNotLe:   0b00111000 | byte(OpModeAD),
	OpJumpIfNotLt:   0b00111000 | byte(OpModeAD),
	OpAdd:           0b00000000 | byte(OpModeABC),
	OpSub:           0b00000000 | byte(OpModeABC),
	OpMul:           0b00000000 | byte(OpModeABC),
	OpDiv:           0b00000000 | byte(OpModeABC),
	OpMod:           0b00000000 | byte(OpModeABC),
	OpPow:           0b00000000 | byte(OpModeABC),
	OpAddK:          0b00000000 | byte(OpModeABC),
	OpSubK:          0b00000000 | byte(OpModeABC),
	OpMulK:          0b00000000 | byte(OpModeABC),
	OpDivK:          0b00000000 | byte(OpModeABC),
	OpModK:          0b00000000 | byte(OpModeABC),
	OpPowK:          0b00000000 | byte(OpModeABC),
	OpAnd:           0b00000000 | byte(OpModeABC),
	OpOr:            0b00000000 | byte(OpModeABC),
	OpAndK:          0b00000000 | byte(OpModeABC),
	OpOrK:           0b00000000 | byte(OpModeABC),
	OpConcat:        0b00000000 | byte(OpModeABC),
	OpNot:           0b00000000 | byte(OpModeAB),
	OpMinus:         0b00000000 | byte(OpModeAB),
	OpLength:        0b00000000 | byte(OpModeAB),
	OpNewTable:      0b00001000 | byte(OpModeAB),
	OpDupTable:      0b00000000 | byte(OpModeAD),
	OpSetList:       0b00001000 | byte(OpModeABC),
	OpForNPrep:      0b00010000 | byte(OpModeAD),
	OpForNLoop:      0b00010000 | byte(OpModeAD),
	OpForGLoop:      0b00011000 | byte(OpModeAD),
	OpForGPrepINext: 0b00010000 | byte(OpModeAD),
	OpFastCall3:     0b00001000 | byte(OpModeABC),
	OpForGPrepNext:  0b00010000 | byte(OpModeAD),
	OpNativeCall:    0b00000000 | byte(OpModeNone),
	OpGetVarArgs:    0b00000000 | byte(OpModeAB),
	OpDupClosure:    0b00000000 | byte(OpModeAD),
	OpPrepVarArgs:   0b00000000 | byte(OpModeA),
	OpLoadKX:        0b00001000 | byte(OpModeA),
	OpJumpX:         0b00010000 | byte(OpModeE),
	OpFastCall:      0b00000000 | byte(OpModeABC),
	OpCoverage:      0b00000000 | byte(OpModeE),
	OpCapture:       0b00000000 | byte(OpModeAB),
	OpSubRK:         0b00000000 | byte(OpModeABC),
	OpDivRK:         0b00000000 | byte(OpModeABC),
	OpFastCall1:     0b00000000 | byte(OpModeABC),
	OpFastCall2:     0b00001000 | byte(OpModeABC),
	OpFastCall2K:    0b00001000 | byte(OpModeABC),
	OpForGPrep:      0b00010000 | byte(OpModeAD),
	OpJumpXEqKNil:   0b00111000 | byte(OpModeAD),
	OpJumpXEqKB:     0b00111000 | byte(OpModeAD),
	OpJumpXEqKN:     0b00111000 | byte(OpModeAD),
	OpJumpXEqKS:     0b00111000 | byte(OpModeAD),
	OpIDiv:          0b00000000 | byte(OpModeABC),
	OpIDivK:         0b00000000 | byte(OpModeABC),
}

// OpMode is an enumeration of [Instruction] operand layouts.
type OpMode uint8

// Operand layouts.
const (
	OpModeNone OpMode = iota // none
	OpModeA                  // A
	OpModeAB                 // AB
	OpModeABC                // ABC
	OpModeAD                 // AD
	OpModeE                  // E
)
