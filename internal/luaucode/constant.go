// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// ConstantKind is an enumeration of [Constant] types.
// The values match the tag bytes used in the binary format.
type ConstantKind uint8

// Constant kinds.
const (
	ConstantNil     ConstantKind = 0
	ConstantBoolean ConstantKind = 1
	ConstantNumber  ConstantKind = 2
	ConstantString  ConstantKind = 3
	ConstantImport  ConstantKind = 4
	ConstantTable   ConstantKind = 5
	ConstantClosure ConstantKind = 6
	ConstantVector  ConstantKind = 7
)

func (k ConstantKind) String() string {
	switch k {
	case ConstantNil:
		return "nil"
	case ConstantBoolean:
		return "boolean"
	case ConstantNumber:
		return "number"
	case ConstantString:
		return "string"
	case ConstantImport:
		return "import"
	case ConstantTable:
		return "table"
	case ConstantClosure:
		return "closure"
	case ConstantVector:
		return "vector"
	default:
		return fmt.Sprintf("ConstantKind(%d)", uint8(k))
	}
}

// Constant is an entry in a function's constant pool.
// The zero value is a nil constant.
type Constant struct {
	kind ConstantKind
	// n holds the boolean (0 or 1), number,
	// or the index for string and closure constants.
	n    float64
	ints []int
	vec  [4]float32
}

// BoolConstant returns a boolean [Constant].
func BoolConstant(b bool) Constant {
	c := Constant{kind: ConstantBoolean}
	if b {
		c.n = 1
	}
	return c
}

// NumberConstant returns a number [Constant].
func NumberConstant(f float64) Constant {
	return Constant{kind: ConstantNumber, n: f}
}

// StringConstant returns a [Constant] that refers to
// the 0-based index of a string in [Chunk.Symbols].
func StringConstant(symbol int) Constant {
	return Constant{kind: ConstantString, n: float64(symbol)}
}

// ImportConstant returns a [Constant] for a chain of global accesses
// (e.g. `math.floor`).
// Each element is the index of an earlier string constant in the same pool.
// ImportConstant panics if given fewer than 1 or more than 3 indices.
func ImportConstant(path ...int) Constant {
	if len(path) < 1 || len(path) > maxImportPath {
		panic("ImportConstant path must have 1-3 elements")
	}
	return Constant{kind: ConstantImport, ints: slices.Clone(path)}
}

// TableConstant returns a [Constant] that describes the shape of a table
// by its keys.
// Each key is the index of an earlier constant in the same pool.
func TableConstant(keys ...int) Constant {
	return Constant{kind: ConstantTable, ints: slices.Clone(keys)}
}

// ClosureConstant returns a [Constant] that refers to
// the 0-based index of a function in [Chunk.Functions].
func ClosureConstant(function int) Constant {
	return Constant{kind: ConstantClosure, n: float64(function)}
}

// VectorConstant returns a vector [Constant].
func VectorConstant(x, y, z, w float32) Constant {
	return Constant{kind: ConstantVector, vec: [4]float32{x, y, z, w}}
}

// Kind returns the type of the constant.
func (c Constant) Kind() ConstantKind {
	return c.kind
}

// IsNil reports whether c is the nil constant.
func (c Constant) IsNil() bool {
	return c.kind == ConstantNil
}

// Bool returns the value of a boolean constant.
func (c Constant) Bool() (_ bool, ok bool) {
	return c.n != 0, c.kind == ConstantBoolean
}

// Number returns the value of a number constant.
func (c Constant) Number() (_ float64, ok bool) {
	if c.kind != ConstantNumber {
		return 0, false
	}
	return c.n, true
}

// Symbol returns the symbol table index of a string constant.
func (c Constant) Symbol() (_ int, ok bool) {
	if c.kind != ConstantString {
		return 0, false
	}
	return int(c.n), true
}

// ImportPath returns the constant indices of an import constant's path.
func (c Constant) ImportPath() []int {
	if c.kind != ConstantImport {
		return nil
	}
	return slices.Clone(c.ints)
}

// TableKeys returns the constant indices of a table constant's keys.
func (c Constant) TableKeys() []int {
	if c.kind != ConstantTable {
		return nil
	}
	return slices.Clone(c.ints)
}

// Function returns the function index of a closure constant.
func (c Constant) Function() (_ int, ok bool) {
	if c.kind != ConstantClosure {
		return 0, false
	}
	return int(c.n), true
}

// Vector returns the components of a vector constant.
func (c Constant) Vector() (_ [4]float32, ok bool) {
	return c.vec, c.kind == ConstantVector
}

// Equal reports whether c and c2 are the same constant.
// Numbers are compared bitwise, so NaN constants equal themselves.
func (c Constant) Equal(c2 Constant) bool {
	if c.kind != c2.kind {
		return false
	}
	switch c.kind {
	case ConstantNil:
		return true
	case ConstantNumber:
		return math.Float64bits(c.n) == math.Float64bits(c2.n)
	case ConstantImport, ConstantTable:
		return slices.Equal(c.ints, c2.ints)
	case ConstantVector:
		for i := range c.vec {
			if math.Float32bits(c.vec[i]) != math.Float32bits(c2.vec[i]) {
				return false
			}
		}
		return true
	default:
		return c.n == c2.n
	}
}

// String returns a debugging representation of the constant.
// String constants are shown by index because resolving them needs the symbol table.
func (c Constant) String() string {
	switch c.kind {
	case ConstantNil:
		return "nil"
	case ConstantBoolean:
		return strconv.FormatBool(c.n != 0)
	case ConstantNumber:
		return strconv.FormatFloat(c.n, 'g', -1, 64)
	case ConstantString:
		return fmt.Sprintf("string#%d", int(c.n))
	case ConstantImport:
		return fmt.Sprintf("import%v", c.ints)
	case ConstantTable:
		return fmt.Sprintf("table%v", c.ints)
	case ConstantClosure:
		return fmt.Sprintf("closure#%d", int(c.n))
	case ConstantVector:
		return fmt.Sprintf("vector(%g, %g, %g, %g)", c.vec[0], c.vec[1], c.vec[2], c.vec[3])
	default:
		return c.kind.String()
	}
}

const maxImportPath = 3

// encodeImport packs an import path into the 32-bit word used in the binary format:
// the element count in bits 30-31 followed by up to three 10-bit constant indices.
func encodeImport(path []int) (uint32, error) {
	if len(path) < 1 || len(path) > maxImportPath {
		return 0, fmt.Errorf("import path has %d elements", len(path))
	}
	word := uint32(len(path)) << 30
	for i, id := range path {
		if id < 0 || id > 0x3ff {
			return 0, fmt.Errorf("import path element %d out of range", id)
		}
		word |= uint32(id) << (20 - 10*i)
	}
	return word, nil
}

// decodeImport unpacks an import word.
func decodeImport(word uint32) []int {
	n := int(word >> 30)
	path := make([]int, n)
	for i := range path {
		path[i] = int(word>>(20-10*i)) & 0x3ff
	}
	return path
}
