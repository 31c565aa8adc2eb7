// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import "zb.256lights.llc/luaudec/internal/ir"

// simplify applies local rewrites to a structured function body.
func simplify(f *Function) {
	if n := len(f.Body.Stmts); n > 0 {
		if ret, ok := f.Body.Stmts[n-1].(*Return); ok && len(ret.Values) == 0 {
			f.Body.Stmts = f.Body.Stmts[:n-1]
		}
	}
	simplifyBlock(f.Body)
}

func simplifyBlock(b *Block) {
	for i, s := range b.Stmts {
		for _, child := range childBlocks(s) {
			simplifyBlock(child)
		}
		if a := booleanAssign(s); a != nil {
			b.Stmts[i] = a
		}
	}
}

// booleanAssign rewrites
//
//	if c then v = true else v = false end
//
// to `v = c` when c is known to produce a boolean.
// It returns nil if s does not have that form.
func booleanAssign(s Stmt) *Assign {
	stmt, ok := s.(*If)
	if !ok || stmt.Else == nil || !isBoolean(stmt.Cond) {
		return nil
	}
	v1, b1, ok1 := assignsBoolean(stmt.Then)
	v2, b2, ok2 := assignsBoolean(stmt.Else)
	if !ok1 || !ok2 || v1 != v2 || b1 == b2 {
		return nil
	}
	value := stmt.Cond
	if !b1 {
		// negate only preserves truthiness.
		if n := negate(value); isBoolean(n) {
			value = n
		} else {
			value = &ir.Unary{Op: ir.OpNot, Operand: value}
		}
	}
	return &Assign{Targets: []ir.Expr{v1}, Values: []ir.Expr{value}}
}

// assignsBoolean reports whether b consists of a single assignment
// of a boolean literal to a variable.
func assignsBoolean(b *Block) (*ir.Local, bool, bool) {
	if len(b.Stmts) != 1 {
		return nil, false, false
	}
	a, ok := b.Stmts[0].(*Assign)
	if !ok || a.Local || len(a.Targets) != 1 || len(a.Values) != 1 {
		return nil, false, false
	}
	v, ok := a.Targets[0].(*ir.Local)
	if !ok {
		return nil, false, false
	}
	lit, ok := a.Values[0].(ir.Boolean)
	if !ok {
		return nil, false, false
	}
	return v, lit.Value, true
}

// isBoolean reports whether e always evaluates to true or false.
func isBoolean(e ir.Expr) bool {
	switch e := e.(type) {
	case ir.Boolean:
		return true
	case *ir.Unary:
		return e.Op == ir.OpNot
	case *ir.Binary:
		switch e.Op {
		case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
			return true
		case ir.OpAnd, ir.OpOr:
			return isBoolean(e.Left) && isBoolean(e.Right)
		}
	}
	return false
}
