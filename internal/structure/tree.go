// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import (
	"slices"

	"zb.256lights.llc/luaudec/internal/ir"
)

// Function is a structured function.
type Function struct {
	// Index is the prototype's index in the chunk.
	Index int
	// Name is the function's debug name or the empty string.
	Name     string
	Params   []*ir.Local
	IsVararg bool
	// IsEntry is true for the chunk's main function.
	IsEntry bool
	// NumUpvalues is the number of upvalues the function captures.
	NumUpvalues int
	// UpvalueNames are the upvalue names from debug information, if present.
	UpvalueNames []string
	Body         *Block
}

// Block is a sequence of statements that forms a scope.
type Block struct {
	Stmts []Stmt
}

// Stmt is a statement.
type Stmt interface {
	isStmt()
}

// Assign stores values into one or more targets.
// Targets are [*ir.Local], [ir.Global], [ir.Upvalue], or [*ir.Index] expressions.
// If Local is true, the statement declares its targets,
// which are then all [*ir.Local].
type Assign struct {
	Local   bool
	Targets []ir.Expr
	// Values may be empty for a declaration.
	Values []ir.Expr
}

// CallStmt is a function call whose results are discarded.
type CallStmt struct {
	Call *ir.CallExpr
}

// Return returns from the function.
type Return struct {
	Values []ir.Expr
}

// If is a conditional statement.
// Else is nil if there is no else branch.
type If struct {
	Cond ir.Expr
	Then *Block
	Else *Block
}

// While is a loop that tests its condition before each iteration.
type While struct {
	Cond ir.Expr
	Body *Block
}

// Repeat is a loop that tests its condition after each iteration.
// The condition is evaluated in the scope of Body.
type Repeat struct {
	Body *Block
	Cond ir.Expr
}

// NumericFor is a `for v = start, limit, step do` loop.
// Step is nil if it is the default of 1.
type NumericFor struct {
	Var   *ir.Local
	Start ir.Expr
	Limit ir.Expr
	Step  ir.Expr
	Body  *Block
}

// GenericFor is a `for vars in values do` loop.
type GenericFor struct {
	Vars   []*ir.Local
	Values []ir.Expr
	Body   *Block
}

// Break exits the innermost loop.
type Break struct{}

// Continue skips to the next iteration of the innermost loop.
type Continue struct{}

func (*Assign) isStmt()     {}
func (*CallStmt) isStmt()   {}
func (*Return) isStmt()     {}
func (*If) isStmt()         {}
func (*While) isStmt()      {}
func (*Repeat) isStmt()     {}
func (*NumericFor) isStmt() {}
func (*GenericFor) isStmt() {}
func (*Break) isStmt()      {}
func (*Continue) isStmt()   {}

// Terminates reports whether control never falls off the end of the block.
func (b *Block) Terminates() bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	switch s := b.Stmts[len(b.Stmts)-1].(type) {
	case *Return, *Break, *Continue:
		return true
	case *If:
		return s.Else != nil && s.Then.Terminates() && s.Else.Terminates()
	default:
		return false
	}
}

// Loops calls f for every loop statement in the block, including nested ones.
func (b *Block) Loops(f func(Stmt)) {
	walkStmts(b, func(s Stmt) {
		switch s.(type) {
		case *While, *Repeat, *NumericFor, *GenericFor:
			f(s)
		}
	})
}

// Walk calls f for every statement in the block in pre-order,
// including the statements of nested scopes.
func (b *Block) Walk(f func(Stmt)) {
	walkStmts(b, f)
}

// Exprs returns the expressions that appear directly in s,
// including assignment targets but not the contents of nested scopes.
func Exprs(s Stmt) []ir.Expr {
	switch s := s.(type) {
	case *Assign:
		return append(slices.Clip(s.Targets), s.Values...)
	case *CallStmt:
		return []ir.Expr{s.Call}
	case *Return:
		return s.Values
	case *If:
		return []ir.Expr{s.Cond}
	case *While:
		return []ir.Expr{s.Cond}
	case *Repeat:
		return []ir.Expr{s.Cond}
	case *NumericFor:
		exprs := []ir.Expr{s.Var, s.Start, s.Limit}
		if s.Step != nil {
			exprs = append(exprs, s.Step)
		}
		return exprs
	case *GenericFor:
		exprs := make([]ir.Expr, 0, len(s.Vars)+len(s.Values))
		for _, v := range s.Vars {
			exprs = append(exprs, v)
		}
		return append(exprs, s.Values...)
	default:
		return nil
	}
}

// walkStmts calls f for every statement in b in pre-order.
func walkStmts(b *Block, f func(Stmt)) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		f(s)
		for _, child := range childBlocks(s) {
			walkStmts(child, f)
		}
	}
}

// childBlocks returns the nested scopes of s.
func childBlocks(s Stmt) []*Block {
	switch s := s.(type) {
	case *If:
		if s.Else != nil {
			return []*Block{s.Then, s.Else}
		}
		return []*Block{s.Then}
	case *While:
		return []*Block{s.Body}
	case *Repeat:
		return []*Block{s.Body}
	case *NumericFor:
		return []*Block{s.Body}
	case *GenericFor:
		return []*Block{s.Body}
	default:
		return nil
	}
}
