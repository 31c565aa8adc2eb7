// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"fmt"
	"iter"
)

// Supported range of chunk versions.
const (
	MinVersion = 3
	MaxVersion = 5
)

// Supported range of type encoding versions for typed chunks.
const (
	MinTypesVersion = 1
	MaxTypesVersion = 3
)

// IsSupported reports whether chunks of the given version can be loaded.
func IsSupported(version int) bool {
	return MinVersion <= version && version <= MaxVersion
}

// IsTyped reports whether chunks of the given version
// carry a types version byte and per-function type information.
func IsTyped(version int) bool {
	return version >= 4
}

// Chunk is a deserialized bytecode chunk.
type Chunk struct {
	Version uint8
	// TypesVersion is only meaningful if [IsTyped] reports true for Version.
	TypesVersion uint8

	// Symbols is the chunk's string table.
	Symbols []string
	// UserdataTypes is the userdata type remapping table
	// stored in chunks with types version 3.
	UserdataTypes []UserdataType
	// Functions is the flat list of function prototypes.
	// Nested functions are referenced by index.
	Functions []*Function
	// Main is the index of the entry point in Functions.
	Main int
}

// UserdataType is an entry in a chunk's userdata type remapping table.
type UserdataType struct {
	// Index is the 0-based userdata type index used in type information.
	Index int
	// Name is the name of the host type.
	Name string
}

// Symbol returns the symbol at the given 0-based index.
func (c *Chunk) Symbol(i int) (_ string, ok bool) {
	if i < 0 || i >= len(c.Symbols) {
		return "", false
	}
	return c.Symbols[i], true
}

// ConstantString returns the string value of a function's string constant.
func (c *Chunk) ConstantString(f *Function, k int) (_ string, ok bool) {
	if k < 0 || k >= len(f.Constants) {
		return "", false
	}
	sym, ok := f.Constants[k].Symbol()
	if !ok {
		return "", false
	}
	return c.Symbol(sym)
}

// Function is a function prototype.
type Function struct {
	// MaxStackSize is the number of registers needed by this function.
	MaxStackSize uint8
	// NumParams is the number of fixed (named) parameters.
	NumParams   uint8
	NumUpvalues uint8
	IsVararg    bool
	// Flags is the function flag byte of typed chunks.
	Flags uint8
	// TypeInfo is the opaque type information block of typed chunks.
	TypeInfo []byte

	// Code is the instruction stream.
	// Auxiliary words are stored in the slot after the instruction that uses them.
	Code      []Instruction
	Constants []Constant
	// Children holds the indices in [Chunk.Functions]
	// of the prototypes that NEWCLOSURE may instantiate.
	Children []int

	// Debug information:

	LineDefined int
	// DebugName is the function's name or the empty string if anonymous.
	DebugName string
	LineInfo  LineInfo
	// LocalVariables is the list of named locals, or nil if stripped.
	LocalVariables []LocalVariable
	// UpvalueNames is the list of upvalue names, or nil if stripped.
	UpvalueNames []string
}

// LocalVariable is the debug description of a named local.
type LocalVariable struct {
	Name     string
	Register uint8
	// StartPC is the first instruction where the variable is live.
	StartPC int
	// EndPC is the first instruction where the variable is dead.
	EndPC int
}

// LocalName returns the name of the local variable the given register represents
// at the given instruction,
// or the empty string if none is known.
func (f *Function) LocalName(register uint8, pc int) string {
	for _, v := range f.LocalVariables {
		if v.Register == register && v.StartPC <= pc && pc < v.EndPC {
			return v.Name
		}
	}
	return ""
}

// Decode returns the instruction whose first word is at pc.
func (f *Function) Decode(pc int) (Decoded, error) {
	if pc < 0 || pc >= len(f.Code) {
		return Decoded{}, fmt.Errorf("pc %d out of range [0, %d)", pc, len(f.Code))
	}
	d := Decoded{
		Instruction: f.Code[pc],
		Context: Context{
			PC:   pc,
			Line: f.LineInfo.At(pc),
		},
	}
	if d.OpCode().HasAux() {
		if pc+1 >= len(f.Code) {
			return Decoded{}, fmt.Errorf("pc %d: %v missing auxiliary word", pc, d.OpCode())
		}
		d.Aux = uint32(f.Code[pc+1])
	}
	return d, nil
}

// Instructions returns an iterator over the function's instructions,
// skipping auxiliary words.
// Iteration stops at the first instruction that cannot be decoded.
func (f *Function) Instructions() iter.Seq[Decoded] {
	return func(yield func(Decoded) bool) {
		for pc := 0; pc < len(f.Code); {
			d, err := f.Decode(pc)
			if err != nil || !yield(d) {
				return
			}
			pc = d.Next()
		}
	}
}
