// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import (
	"slices"

	"zb.256lights.llc/luaudec/internal/ir"
)

// scopePos is the position of a statement in a block.
type scopePos struct {
	block *Block
	index int
}

// declarer places `local` declarations.
type declarer struct {
	declared map[*ir.Local]bool
	// refs maps each variable to the paths of the statements that mention it.
	// A path lists the enclosing statements from the function body inward.
	refs  map[*ir.Local][][]scopePos
	order []*ir.Local
}

// declareLocals declares every variable in the innermost block
// that encloses all references to it.
// The first assignment to a variable becomes its declaration if possible.
// Variables for which hoist reports true are declared in the function body.
func declareLocals(f *Function, hoist func(*ir.Local) bool) {
	d := &declarer{
		declared: make(map[*ir.Local]bool),
		refs:     make(map[*ir.Local][][]scopePos),
	}
	for _, p := range f.Params {
		d.declared[p] = true
	}
	d.walk(f.Body, nil)

	type group struct {
		index  int
		locals []*ir.Local
	}
	groups := make(map[*Block][]*group)
	var blocks []*Block
	for _, l := range d.order {
		if d.declared[l] {
			continue
		}
		paths := d.refs[l]
		depth := 0
		if !hoist(l) {
			depth = commonDepth(paths)
		}
		b := paths[0][depth].block
		index := paths[0][depth].index
		for _, p := range paths[1:] {
			index = min(index, p[depth].index)
		}
		gs, seen := groups[b]
		if !seen {
			blocks = append(blocks, b)
		}
		i := slices.IndexFunc(gs, func(g *group) bool { return g.index == index })
		if i < 0 {
			gs = append(gs, &group{index: index})
			i = len(gs) - 1
		}
		gs[i].locals = append(gs[i].locals, l)
		groups[b] = gs
	}

	for _, b := range blocks {
		gs := groups[b]
		slices.SortFunc(gs, func(g1, g2 *group) int { return g2.index - g1.index })
		for _, g := range gs {
			rest := g.locals
			if g.index < len(b.Stmts) {
				if a, ok := b.Stmts[g.index].(*Assign); ok && canDeclare(a, rest) {
					a.Local = true
					rest = slices.DeleteFunc(rest, func(l *ir.Local) bool {
						return slices.Contains(a.Targets, ir.Expr(l))
					})
				}
			}
			if len(rest) == 0 {
				continue
			}
			decl := &Assign{Local: true}
			for _, l := range rest {
				decl.Targets = append(decl.Targets, l)
			}
			b.Stmts = slices.Insert(b.Stmts, g.index, Stmt(decl))
		}
	}
}

// commonDepth returns the depth of the innermost block
// that contains every path.
func commonDepth(paths [][]scopePos) int {
	depth := 0
	for {
		next := depth + 1
		for _, p := range paths {
			if len(p) <= next || p[next].block != paths[0][next].block {
				return depth
			}
		}
		depth = next
	}
}

// canDeclare reports whether a can become the declaration
// of all of its targets, which must be among locals.
func canDeclare(a *Assign, locals []*ir.Local) bool {
	if a.Local || len(a.Values) == 0 {
		return false
	}
	for _, t := range a.Targets {
		l, ok := t.(*ir.Local)
		if !ok || !slices.Contains(locals, l) {
			return false
		}
		for _, v := range a.Values {
			// `local function f` may refer to itself.
			if _, isClosure := v.(*ir.Closure); isClosure && len(a.Targets) == 1 {
				continue
			}
			if reads(v, l) {
				return false
			}
		}
	}
	return true
}

func (d *declarer) walk(b *Block, path []scopePos) {
	for i, s := range b.Stmts {
		p := append(slices.Clip(path), scopePos{b, i})
		var exprs []ir.Expr
		switch s := s.(type) {
		case *Assign:
			if s.Local {
				for _, t := range s.Targets {
					d.declare(t.(*ir.Local))
				}
			}
			exprs = append(exprs, s.Targets...)
			exprs = append(exprs, s.Values...)
		case *CallStmt:
			exprs = append(exprs, s.Call)
		case *Return:
			exprs = append(exprs, s.Values...)
		case *If:
			exprs = append(exprs, s.Cond)
		case *While:
			exprs = append(exprs, s.Cond)
		case *Repeat:
			d.walk(s.Body, p)
			end := append(slices.Clip(p), scopePos{s.Body, len(s.Body.Stmts)})
			d.refer(s.Cond, end)
			continue
		case *NumericFor:
			d.declare(s.Var)
			exprs = append(exprs, s.Start, s.Limit, s.Step)
		case *GenericFor:
			for _, v := range s.Vars {
				d.declare(v)
			}
			exprs = append(exprs, s.Values...)
		}
		for _, x := range exprs {
			d.refer(x, p)
		}
		for _, child := range childBlocks(s) {
			d.walk(child, p)
		}
	}
}

func (d *declarer) declare(l *ir.Local) {
	d.declared[l] = true
}

// refer records the variables mentioned in x as referenced at path.
func (d *declarer) refer(x ir.Expr, path []scopePos) {
	ir.Inspect(x, func(e ir.Expr) bool {
		switch e := e.(type) {
		case *ir.Local:
			d.add(e, path)
		case *ir.Closure:
			for _, c := range e.Captures {
				if c.Var != nil {
					d.add(c.Var, path)
				}
			}
		}
		return true
	})
}

func (d *declarer) add(l *ir.Local, path []scopePos) {
	if _, ok := d.refs[l]; !ok {
		d.order = append(d.order, l)
	}
	d.refs[l] = append(d.refs[l], path)
}
