// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"fmt"

	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/luaucode"
)

// Function is a lifted function prototype.
type Function struct {
	// Index is the prototype's index in [luaucode.Chunk.Functions].
	Index int
	Proto *luaucode.Function
	// Blocks is the function's control-flow graph
	// ordered by starting program counter.
	// Blocks[0] is the entry block.
	// Every block is reachable from the entry.
	Blocks []*Block
}

// Block is a basic block.
type Block struct {
	// ID is the block's index in [Function.Blocks].
	ID int
	// Start and End are the half-open range of program counters
	// the block was lifted from.
	Start int
	End   int
	Insts []Inst
	// Cond is the branch predicate of a block with two successors.
	Cond *Condition
	// Succs is the list of successor block IDs.
	// For a conditional block, Succs[0] is taken when Cond holds
	// and Succs[1] is the fallthrough.
	Succs []int
	Preds []int
}

// Terminal reports whether the block ends the function.
func (b *Block) Terminal() bool {
	return len(b.Succs) == 0
}

// CondOp is an enumeration of branch predicates.
type CondOp uint8

// Branch predicates.
const (
	// CondTruthy holds if Left is neither nil nor false.
	CondTruthy CondOp = 1 + iota
	// CondEq holds if Left == Right.
	CondEq
	// CondLt holds if Left < Right.
	CondLt
	// CondLe holds if Left <= Right.
	CondLe
	// CondForNumPrep holds if a numeric for loop runs zero times.
	// The loop's limit, step, and index are in Base, Base+1, and Base+2.
	CondForNumPrep
	// CondForNumLoop holds if a numeric for loop continues.
	CondForNumLoop
	// CondForGenLoop holds if a generic for loop continues.
	// The loop variables start at Base+3.
	CondForGenLoop
)

func (op CondOp) String() string {
	switch op {
	case CondTruthy:
		return "truthy"
	case CondEq:
		return "eq"
	case CondLt:
		return "lt"
	case CondLe:
		return "le"
	case CondForNumPrep:
		return "fornprep"
	case CondForNumLoop:
		return "fornloop"
	case CondForGenLoop:
		return "forgloop"
	default:
		return fmt.Sprintf("CondOp(%d)", uint8(op))
	}
}

// IsLoop reports whether the predicate is part of a for loop.
func (op CondOp) IsLoop() bool {
	return op == CondForNumPrep || op == CondForNumLoop || op == CondForGenLoop
}

// Condition is the branch predicate of a conditional block.
type Condition struct {
	Context luaucode.Context
	Op      CondOp
	// Negated inverts the predicate.
	Negated bool
	Left    Expr
	Right   Expr

	// Base is the first register of a for loop's control registers.
	Base Slot
	// VarCount is the number of variables of a generic for loop.
	VarCount int
}

// Uses returns the registers that evaluating c reads.
// The control registers that a for loop keeps to itself
// are reported only by the instruction that prepares the loop.
func (c *Condition) Uses() []Slot {
	var uses []Slot
	add := func(s Slot) { uses = append(uses, s) }
	switch c.Op {
	case CondForNumPrep:
		// Initial value, limit, step: the order they are computed in.
		add(c.Base + 2)
		add(c.Base)
		add(c.Base + 1)
	case CondForNumLoop, CondForGenLoop:
	default:
		if c.Left != nil {
			WalkSlots(c.Left, add)
		}
		if c.Right != nil {
			WalkSlots(c.Right, add)
		}
	}
	return uses
}

// Defs returns the registers that evaluating c writes.
// For loops define their visible variables.
func (c *Condition) Defs() []Slot {
	switch c.Op {
	case CondForNumPrep, CondForNumLoop:
		return []Slot{c.Base + 2}
	case CondForGenLoop:
		defs := make([]Slot, 0, c.VarCount)
		for i := range c.VarCount {
			defs = append(defs, c.Base+3+Slot(i))
		}
		return defs
	default:
		return nil
	}
}

// CheckEdges verifies that every block has zero, one, or two successors,
// that two successors imply a condition,
// and that predecessor lists agree with successor lists.
func (f *Function) CheckEdges() error {
	npreds := make([]int, len(f.Blocks))
	for i, b := range f.Blocks {
		if b.ID != i {
			return f.violation(b, "block ID %d at position %d", b.ID, i)
		}
		switch len(b.Succs) {
		case 0, 1:
			if b.Cond != nil {
				return f.violation(b, "condition on block with %d successors", len(b.Succs))
			}
		case 2:
			if b.Cond == nil {
				return f.violation(b, "two successors without a condition")
			}
		default:
			return f.violation(b, "%d successors", len(b.Succs))
		}
		for _, s := range b.Succs {
			if s < 0 || s >= len(f.Blocks) {
				return f.violation(b, "successor %d out of range", s)
			}
			npreds[s]++
		}
	}
	for i, b := range f.Blocks {
		if len(b.Preds) != npreds[i] {
			return f.violation(b, "%d predecessors recorded, %d edges found", len(b.Preds), npreds[i])
		}
	}
	return nil
}

func (f *Function) violation(b *Block, format string, args ...any) error {
	return decerr.AtPC(decerr.StageLift, decerr.InvariantViolation, f.Index, b.Start,
		"block %d: %s", b.ID, fmt.Sprintf(format, args...))
}

// computePreds fills in Preds from Succs.
// A block with a conditional edge pair to the same target
// lists that predecessor twice.
func (f *Function) computePreds() {
	for _, b := range f.Blocks {
		b.Preds = b.Preds[:0]
	}
	for _, b := range f.Blocks {
		for _, s := range b.Succs {
			f.Blocks[s].Preds = append(f.Blocks[s].Preds, b.ID)
		}
	}
}
