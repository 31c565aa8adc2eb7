// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package ir

import "fmt"

// Slot is a register number within one function's activation frame.
type Slot uint8

// Expr is a value computed by an instruction.
// Operands of lifted instructions are always "shallow":
// a [SlotRef] or a value that needs no registers.
// Later passes substitute SlotRefs with the expressions that defined them,
// so the same types describe both lifted operands and recovered source expressions.
type Expr interface {
	isExpr()
}

// SlotRef reads the current value of a register.
type SlotRef struct {
	Slot Slot
}

// Nil is the nil literal.
type Nil struct{}

// Boolean is a boolean literal.
type Boolean struct {
	Value bool
}

// Number is a number literal.
type Number struct {
	Value float64
}

// String is a string literal.
type String struct {
	Value string
}

// Vector is a vector literal.
type Vector struct {
	X, Y, Z, W float32
}

// VarArgs is the `...` expression.
type VarArgs struct{}

// Global reads a global variable.
type Global struct {
	Name string
}

// Import reads a chain of global accesses like `math.floor`.
type Import struct {
	Path []string
}

// Upvalue reads one of the function's upvalues.
type Upvalue struct {
	Index int
}

// Index is a table access `Table[Key]`.
type Index struct {
	Table Expr
	Key   Expr
}

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Unary is a unary operation.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Concat is a string concatenation of two or more operands.
type Concat struct {
	Operands []Expr
}

// NewTable is a table constructor.
// Lifting fills in only the size hints and template keys;
// Items and Fields are populated when stores into the new table
// are folded into the constructor.
type NewTable struct {
	ArraySize int
	HashSize  int
	// Keys is the key template of a DUPTABLE.
	Keys []Expr

	Items []Expr
	// ItemsVarTail is true if the last item expands to multiple values.
	ItemsVarTail bool
	Fields       []Field
}

// Field is a keyed entry of a table constructor.
type Field struct {
	Key   Expr
	Value Expr
}

// Closure instantiates a nested function.
type Closure struct {
	// Function is the index of the prototype in [luaucode.Chunk.Functions].
	Function int
	Captures []Capture
}

// CaptureKind is the way a closure captures a variable.
type CaptureKind uint8

// Capture kinds, matching the operand A of CAPTURE.
const (
	// CaptureValue copies the current value of a register.
	CaptureValue CaptureKind = 0
	// CaptureReference shares a register that may be reassigned.
	CaptureReference CaptureKind = 1
	// CaptureUpvalue forwards one of the enclosing function's upvalues.
	CaptureUpvalue CaptureKind = 2
)

func (k CaptureKind) String() string {
	switch k {
	case CaptureValue:
		return "val"
	case CaptureReference:
		return "ref"
	case CaptureUpvalue:
		return "upval"
	default:
		return fmt.Sprintf("CaptureKind(%d)", uint8(k))
	}
}

// Capture is a variable captured by a [Closure].
type Capture struct {
	Kind CaptureKind
	// Index is a register for CaptureValue and CaptureReference
	// or an upvalue index for CaptureUpvalue.
	Index int
	// Var is the captured local variable.
	// It is nil until registers are resolved to variables.
	Var *Local
}

// Local is a recovered local variable.
// Locals are compared by identity.
type Local struct {
	// ID is unique among the locals of a function.
	ID   int
	Slot Slot
	// Name is the variable's name from debug information
	// or the empty string if unknown.
	Name string
}

// Paren truncates a multi-valued expression to its first value.
type Paren struct {
	Value Expr
}

// CallExpr is a function call used as a value.
type CallExpr struct {
	// Func is the called value. It is nil for method calls.
	Func Expr
	// Object and Method are set for method calls `Object:Method(Args)`.
	Object Expr
	Method string
	Args   []Expr
	// VarTail is true if the last argument expands to multiple values.
	VarTail bool
}

func (SlotRef) isExpr()   {}
func (Nil) isExpr()       {}
func (Boolean) isExpr()   {}
func (Number) isExpr()    {}
func (String) isExpr()    {}
func (Vector) isExpr()    {}
func (VarArgs) isExpr()   {}
func (Global) isExpr()    {}
func (Import) isExpr()    {}
func (Upvalue) isExpr()   {}
func (*Index) isExpr()    {}
func (*Binary) isExpr()   {}
func (*Unary) isExpr()    {}
func (*Concat) isExpr()   {}
func (*NewTable) isExpr() {}
func (*Closure) isExpr()  {}
func (*CallExpr) isExpr() {}
func (*Local) isExpr()    {}
func (*Paren) isExpr()    {}

// BinaryOp is an enumeration of binary operators.
type BinaryOp uint8

// Binary operators.
const (
	OpAdd BinaryOp = 1 + iota
	OpSub
	OpMul
	OpDiv
	OpIDiv
	OpMod
	OpPow
	OpAnd
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// String returns the operator's source token.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpIDiv:
		return "//"
	case OpMod:
		return "%"
	case OpPow:
		return "^"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpEq:
		return "=="
	case OpNe:
		return "~="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return fmt.Sprintf("BinaryOp(%d)", uint8(op))
	}
}

// Precedence returns the operator's binding strength.
// Higher values bind tighter.
func (op BinaryOp) Precedence() int {
	switch op {
	case OpOr:
		return 1
	case OpAnd:
		return 2
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return 3
	case OpAdd, OpSub:
		return 5
	case OpMul, OpDiv, OpIDiv, OpMod:
		return 6
	case OpPow:
		return 8
	default:
		return 0
	}
}

// RightAssociative reports whether the operator groups right to left.
func (op BinaryOp) RightAssociative() bool {
	return op == OpPow
}

// ConcatPrecedence is the binding strength of `..`, which is right associative.
const ConcatPrecedence = 4

// UnaryPrecedence is the binding strength of the unary operators.
const UnaryPrecedence = 7

// UnaryOp is an enumeration of unary operators.
type UnaryOp uint8

// Unary operators.
const (
	OpNot UnaryOp = 1 + iota
	OpNeg
	OpLen
)

// String returns the operator's source token.
func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "not"
	case OpNeg:
		return "-"
	case OpLen:
		return "#"
	default:
		return fmt.Sprintf("UnaryOp(%d)", uint8(op))
	}
}

// WalkSlots calls f for every register read by e, in evaluation order.
func WalkSlots(e Expr, f func(Slot)) {
	switch e := e.(type) {
	case SlotRef:
		f(e.Slot)
	case *Index:
		WalkSlots(e.Table, f)
		WalkSlots(e.Key, f)
	case *Binary:
		WalkSlots(e.Left, f)
		WalkSlots(e.Right, f)
	case *Unary:
		WalkSlots(e.Operand, f)
	case *Paren:
		WalkSlots(e.Value, f)
	case *Concat:
		for _, x := range e.Operands {
			WalkSlots(x, f)
		}
	case *NewTable:
		for _, x := range e.Items {
			WalkSlots(x, f)
		}
		for _, fld := range e.Fields {
			WalkSlots(fld.Key, f)
			WalkSlots(fld.Value, f)
		}
	case *Closure:
		for _, c := range e.Captures {
			if c.Kind != CaptureUpvalue {
				f(Slot(c.Index))
			}
		}
	case *CallExpr:
		if e.Func != nil {
			WalkSlots(e.Func, f)
		}
		if e.Object != nil {
			WalkSlots(e.Object, f)
		}
		for _, x := range e.Args {
			WalkSlots(x, f)
		}
	}
}

// Inspect traverses e in evaluation order.
// It calls f for each expression node;
// if f returns false, Inspect skips the node's children.
// The variables captured by a [Closure] are not visited.
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	switch e := e.(type) {
	case *Index:
		Inspect(e.Table, f)
		Inspect(e.Key, f)
	case *Binary:
		Inspect(e.Left, f)
		Inspect(e.Right, f)
	case *Unary:
		Inspect(e.Operand, f)
	case *Paren:
		Inspect(e.Value, f)
	case *Concat:
		for _, x := range e.Operands {
			Inspect(x, f)
		}
	case *NewTable:
		for _, x := range e.Items {
			Inspect(x, f)
		}
		for _, fld := range e.Fields {
			Inspect(fld.Key, f)
			Inspect(fld.Value, f)
		}
	case *CallExpr:
		Inspect(e.Func, f)
		Inspect(e.Object, f)
		for _, x := range e.Args {
			Inspect(x, f)
		}
	}
}

// Pure reports whether evaluating e can neither fail
// nor observe or cause side effects.
// Register reads, literals, and closure construction are pure.
// Upvalue and global reads are not, since a call or store may change them.
func Pure(e Expr) bool {
	switch e := e.(type) {
	case SlotRef, Nil, Boolean, Number, String, Vector, VarArgs:
		return true
	case *Local, *Closure:
		return true
	case *Paren:
		return Pure(e.Value)
	case *NewTable:
		for _, x := range e.Items {
			if !Pure(x) {
				return false
			}
		}
		for _, fld := range e.Fields {
			if !Pure(fld.Key) || !Pure(fld.Value) {
				return false
			}
		}
		return true
	case *Unary:
		return e.Op == OpNot && Pure(e.Operand)
	case *Binary:
		return (e.Op == OpAnd || e.Op == OpOr) && Pure(e.Left) && Pure(e.Right)
	default:
		return false
	}
}

// MultiValued reports whether e can produce more than one value
// when it appears last in an argument or return list.
func MultiValued(e Expr) bool {
	switch e.(type) {
	case *CallExpr, VarArgs:
		return true
	default:
		return false
	}
}
