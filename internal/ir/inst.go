// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package ir

import "zb.256lights.llc/luaudec/internal/luaucode"

// Inst is a lifted instruction.
// Every instruction records the location of the bytecode it came from.
type Inst interface {
	Pos() luaucode.Context
}

// Assign stores a single value into a register.
type Assign struct {
	Context luaucode.Context
	Dest    Slot
	Value   Expr
}

// SetGlobal stores into a global variable.
type SetGlobal struct {
	Context luaucode.Context
	Name    string
	Value   Expr
}

// SetUpvalue stores into one of the function's upvalues.
type SetUpvalue struct {
	Context luaucode.Context
	Index   int
	Value   Expr
}

// SetIndex performs `Table[Key] = Value`.
type SetIndex struct {
	Context luaucode.Context
	Table   Expr
	Key     Expr
	Value   Expr
}

// Call calls a function and stores its results
// in consecutive registers starting at Base.
type Call struct {
	Context luaucode.Context
	Base    Slot
	// Func is the called value. It is nil for method calls.
	Func Expr
	// Object and Method are set for method calls.
	Object Expr
	Method string
	Args   []Expr
	// VarTail is true if the last argument expands to multiple values.
	VarTail bool
	// Results is the number of results kept,
	// or -1 if all results are passed to the next instruction.
	Results int
}

// LoadVarArgs copies the function's variadic arguments
// into consecutive registers starting at Base.
type LoadVarArgs struct {
	Context luaucode.Context
	Base    Slot
	// Count is the number of values,
	// or -1 if all of them are passed to the next instruction.
	Count int
}

// SetList stores values into the array part of a table
// starting at the 1-based index Start.
type SetList struct {
	Context luaucode.Context
	Table   Slot
	Start   int
	Values  []Expr
	VarTail bool
}

// Return returns from the function.
type Return struct {
	Context luaucode.Context
	Values  []Expr
	VarTail bool
}

// CloseUpvalues closes upvalues that refer to registers From and above.
type CloseUpvalues struct {
	Context luaucode.Context
	From    Slot
}

// ForGenPrep prepares the generator, state, and control registers
// of a generic for loop starting at Base.
type ForGenPrep struct {
	Context luaucode.Context
	Base    Slot
}

func (i *Assign) Pos() luaucode.Context        { return i.Context }
func (i *SetGlobal) Pos() luaucode.Context     { return i.Context }
func (i *SetUpvalue) Pos() luaucode.Context    { return i.Context }
func (i *SetIndex) Pos() luaucode.Context      { return i.Context }
func (i *Call) Pos() luaucode.Context          { return i.Context }
func (i *LoadVarArgs) Pos() luaucode.Context   { return i.Context }
func (i *SetList) Pos() luaucode.Context       { return i.Context }
func (i *Return) Pos() luaucode.Context        { return i.Context }
func (i *CloseUpvalues) Pos() luaucode.Context { return i.Context }
func (i *ForGenPrep) Pos() luaucode.Context    { return i.Context }

// Defs returns the registers that inst writes.
// A multi-value result (Results or Count of -1) defines only its base register.
func Defs(inst Inst) []Slot {
	switch inst := inst.(type) {
	case *Assign:
		return []Slot{inst.Dest}
	case *Call:
		return slotRange(inst.Base, inst.Results)
	case *LoadVarArgs:
		return slotRange(inst.Base, inst.Count)
	default:
		return nil
	}
}

func slotRange(base Slot, n int) []Slot {
	if n < 0 {
		return []Slot{base}
	}
	slots := make([]Slot, 0, n)
	for i := range n {
		slots = append(slots, base+Slot(i))
	}
	return slots
}

// Uses returns the registers that inst reads, in evaluation order.
// The same register may appear more than once.
func Uses(inst Inst) []Slot {
	var uses []Slot
	add := func(s Slot) { uses = append(uses, s) }
	switch inst := inst.(type) {
	case *Assign:
		WalkSlots(inst.Value, add)
	case *SetGlobal:
		WalkSlots(inst.Value, add)
	case *SetUpvalue:
		WalkSlots(inst.Value, add)
	case *SetIndex:
		WalkSlots(inst.Table, add)
		WalkSlots(inst.Key, add)
		WalkSlots(inst.Value, add)
	case *Call:
		if inst.Func != nil {
			WalkSlots(inst.Func, add)
		}
		if inst.Object != nil {
			WalkSlots(inst.Object, add)
		}
		for _, arg := range inst.Args {
			WalkSlots(arg, add)
		}
	case *SetList:
		add(inst.Table)
		for _, v := range inst.Values {
			WalkSlots(v, add)
		}
	case *Return:
		for _, v := range inst.Values {
			WalkSlots(v, add)
		}
	case *ForGenPrep:
		add(inst.Base)
		add(inst.Base + 1)
		add(inst.Base + 2)
	}
	return uses
}
