// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import (
	"fmt"
	"slices"

	"zb.256lights.llc/luaudec/internal/bitset"
	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/worklist"
)

// node is a basic block in the graph being structured.
// Conditions of adjacent blocks may be merged into one node.
type node struct {
	block *ir.Block
	res   *blockResult
	cond  ir.Expr
	succs []int
	preds []int
	dead  bool
}

func (n *node) start() int { return n.block.Start }

type loopKind int

const (
	loopWhile loopKind = 1 + iota
	loopRepeat
	loopForever
	// loopFor is a numeric or generic for loop.
	loopFor
)

// loopFrame describes the innermost loop around a statement sequence.
type loopFrame struct {
	kind loopKind
	// exit is the block control reaches after the loop, or -1.
	exit int
	// cont is the block a continue statement jumps to.
	cont int
}

type structurer struct {
	df       *dataflow
	nodes    []*node
	done     []bool
	building []bool
}

func newStructurer(df *dataflow, results []*blockResult) *structurer {
	s := &structurer{
		df:       df,
		done:     make([]bool, len(results)),
		building: make([]bool, len(results)),
	}
	for _, b := range df.fn.Blocks {
		s.nodes = append(s.nodes, &node{
			block: b,
			res:   results[b.ID],
			cond:  results[b.ID].cond,
			succs: slices.Clone(b.Succs),
		})
	}
	s.computePreds()
	return s
}

func (s *structurer) computePreds() {
	for _, n := range s.nodes {
		n.preds = n.preds[:0]
	}
	for i, n := range s.nodes {
		if n.dead {
			continue
		}
		for _, t := range n.succs {
			s.nodes[t].preds = append(s.nodes[t].preds, i)
		}
	}
}

func (s *structurer) errorf(id int, format string, args ...any) error {
	return decerr.AtPC(decerr.StageStructure, decerr.InvariantViolation, s.df.fn.Index, s.nodes[id].start(),
		"block %d: %s", id, fmt.Sprintf(format, args...))
}

// mergeConditions combines a conditional block
// with a following conditional block that has no statements of its own,
// recovering `and` and `or` in conditions.
func (s *structurer) mergeConditions() {
	for changed := true; changed; {
		changed = false
		for i, a := range s.nodes {
			if a.dead || a.cond == nil || a.succs[0] == a.succs[1] {
				continue
			}
			for side := range 2 {
				if s.mergeInto(i, side) {
					changed = true
					break
				}
			}
		}
	}
}

// mergeInto merges the successor of a on the given side into a.
func (s *structurer) mergeInto(ai, side int) bool {
	a := s.nodes[ai]
	bi := a.succs[side]
	b := s.nodes[bi]
	if bi == ai || b.cond == nil || len(b.res.stmts) > 0 || len(b.preds) != 1 || b.start() <= a.start() {
		return false
	}
	x, y := b.succs[0], b.succs[1]
	if x == y || x == ai || y == ai || x == bi || y == bi {
		return false
	}
	// toB holds when a transfers control to b.
	toB := a.cond
	if side == 1 {
		toB = negate(a.cond)
	}
	other := a.succs[1-side]
	switch other {
	case x:
		a.cond = orExpr(negate(toB), b.cond)
	case y:
		a.cond = &ir.Binary{Op: ir.OpAnd, Left: toB, Right: b.cond}
	default:
		return false
	}
	a.succs = []int{x, y}
	b.dead = true
	b.succs = nil
	s.computePreds()
	return true
}

func orExpr(left, right ir.Expr) ir.Expr {
	return &ir.Binary{Op: ir.OpOr, Left: left, Right: right}
}

// isLoopControl reports whether n is the test at the bottom of a for loop.
func (n *node) isLoopControl() bool {
	c := n.block.Cond
	return c != nil && (c.Op == ir.CondForNumLoop || c.Op == ir.CondForGenLoop)
}

// latch returns the source of the last back-edge into h, or -1 if h is not a loop head.
func (s *structurer) latch(h int) int {
	latch := -1
	for _, p := range s.nodes[h].preds {
		pn := s.nodes[p]
		if pn.start() < s.nodes[h].start() || pn.isLoopControl() {
			continue
		}
		if latch < 0 || pn.start() > s.nodes[latch].start() {
			latch = p
		}
	}
	return latch
}

// seq structures the blocks starting at cur
// until control reaches follow or leaves the sequence.
// top is true for the outermost sequence of a loop body or function.
func (s *structurer) seq(cur, follow int, lp *loopFrame, top bool) (*Block, error) {
	out := new(Block)
	first := top
	for cur >= 0 && cur != follow {
		if lp != nil {
			if cur == lp.exit {
				out.Stmts = append(out.Stmts, new(Break))
				return out, nil
			}
			if cur == lp.cont {
				switch {
				case lp.kind == loopRepeat || lp.kind == loopFor:
					if !top {
						out.Stmts = append(out.Stmts, new(Continue))
						return out, nil
					}
					if err := s.visit(cur); err != nil {
						return nil, err
					}
					out.Stmts = append(out.Stmts, s.nodes[cur].res.stmts...)
					return out, nil
				case first:
					// The loop body starts at its head.
				case top:
					return out, nil
				default:
					out.Stmts = append(out.Stmts, new(Continue))
					return out, nil
				}
			}
		}
		first = false

		n := s.nodes[cur]
		if !s.building[cur] {
			if latch := s.latch(cur); latch >= 0 {
				stmt, next, err := s.loop(cur, latch)
				if err != nil {
					return nil, err
				}
				out.Stmts = append(out.Stmts, stmt)
				cur = next
				continue
			}
		}
		if err := s.visit(cur); err != nil {
			return nil, err
		}
		out.Stmts = append(out.Stmts, n.res.stmts...)

		switch {
		case n.res.forNum != nil:
			stmt, next, err := s.numericFor(cur)
			if err != nil {
				return nil, err
			}
			out.Stmts = append(out.Stmts, stmt)
			cur = next
			continue
		case n.res.forGen != nil:
			stmt, next, err := s.genericFor(cur)
			if err != nil {
				return nil, err
			}
			out.Stmts = append(out.Stmts, stmt)
			cur = next
			continue
		}

		switch len(n.succs) {
		case 0:
			return out, nil
		case 1:
			cur = n.succs[0]
		case 2:
			next, terminal, err := s.branch(out, cur, follow, lp)
			if err != nil {
				return nil, err
			}
			if terminal {
				return out, nil
			}
			cur = next
		default:
			return nil, s.errorf(cur, "%d successors", len(n.succs))
		}
	}
	return out, nil
}

// checkVisited verifies that no statements were left out of the tree.
func (s *structurer) checkVisited() error {
	for id, n := range s.nodes {
		if !n.dead && !s.done[id] && len(n.res.stmts) > 0 {
			return s.errorf(id, "block not reached by structured control flow")
		}
	}
	return nil
}

func (s *structurer) visit(id int) error {
	if s.done[id] {
		return s.errorf(id, "reached by more than one structured path")
	}
	s.done[id] = true
	return nil
}

// branch structures the conditional block id, appending to out.
// It returns the block where the sequence continues,
// or terminal = true if control cannot fall out of the statement.
func (s *structurer) branch(out *Block, id, follow int, lp *loopFrame) (next int, terminal bool, err error) {
	n := s.nodes[id]
	c := n.cond
	if c == nil {
		return 0, false, s.errorf(id, "two successors without a condition")
	}
	t, f := n.succs[0], n.succs[1]

	if lp != nil && lp.exit >= 0 && t != f {
		switch lp.exit {
		case t:
			out.Stmts = append(out.Stmts, &If{Cond: c, Then: &Block{Stmts: []Stmt{new(Break)}}})
			return f, false, nil
		case f:
			out.Stmts = append(out.Stmts, &If{Cond: negate(c), Then: &Block{Stmts: []Stmt{new(Break)}}})
			return t, false, nil
		}
	}

	stops := []int{follow}
	if lp != nil {
		stops = append(stops, lp.exit, lp.cont)
	}
	rt, rf := s.reach(t, stops), s.reach(f, stops)
	if j := s.join(rt, rf, n.start()); j >= 0 {
		var stmt *If
		switch j {
		case f:
			then, err := s.seq(t, j, lp, false)
			if err != nil {
				return 0, false, err
			}
			stmt = &If{Cond: c, Then: then}
		case t:
			then, err := s.seq(f, j, lp, false)
			if err != nil {
				return 0, false, err
			}
			stmt = &If{Cond: negate(c), Then: then}
		default:
			then, err := s.seq(f, j, lp, false)
			if err != nil {
				return 0, false, err
			}
			els, err := s.seq(t, j, lp, false)
			if err != nil {
				return 0, false, err
			}
			stmt = &If{Cond: negate(c), Then: then, Else: els}
		}
		out.Stmts = append(out.Stmts, stmt)
		return j, false, nil
	}

	// The arms never meet again.
	// One of them ends in a return, break, or continue
	// and becomes a guard clause.
	guard, rest, guardCond := f, t, negate(c)
	if continues(rf, follow, lp) || (!continues(rt, follow, lp) && s.nodes[t].start() < s.nodes[f].start()) {
		guard, rest, guardCond = t, f, c
	}
	then, err := s.seq(guard, follow, lp, false)
	if err != nil {
		return 0, false, err
	}
	if rn := s.nodes[rest]; len(rn.succs) == 0 && !s.done[rest] && (lp == nil || rest != lp.cont) {
		els, err := s.seq(rest, follow, lp, false)
		if err != nil {
			return 0, false, err
		}
		out.Stmts = append(out.Stmts, &If{Cond: guardCond, Then: then, Else: els})
		return 0, true, nil
	}
	out.Stmts = append(out.Stmts, &If{Cond: guardCond, Then: then})
	return rest, false, nil
}

// continues reports whether a reach set includes
// the place control goes when a sequence ends normally.
func continues(r *bitset.Set, follow int, lp *loopFrame) bool {
	return r.Has(follow) || (lp != nil && r.Has(lp.cont))
}

// reach returns the blocks reachable from start
// without passing through any of the stop blocks.
// Stop blocks that are reached are included.
func (s *structurer) reach(start int, stops []int) *bitset.Set {
	r := new(bitset.Set)
	if start < 0 {
		return r
	}
	work := worklist.Of(start)
	for {
		id, ok := work.Pop()
		if !ok {
			return r
		}
		r.Add(id)
		if slices.Contains(stops, id) {
			continue
		}
		for _, succ := range s.nodes[id].succs {
			if succ >= 0 && !r.Has(succ) {
				work.Push(succ)
			}
		}
	}
}

// join returns the earliest block in both reach sets
// that starts after pc, or -1.
// A while loop's head precedes its body,
// so it is never the join point of a branch inside the body.
func (s *structurer) join(a, b *bitset.Set, pc int) int {
	best := -1
	for id := range a.All() {
		st := s.nodes[id].start()
		if b.Has(id) && st > pc && (best < 0 || st < s.nodes[best].start()) {
			best = id
		}
	}
	return best
}

// loop structures the loop with head h whose last back-edge comes from latch.
// It returns the loop statement and the block after the loop, or -1.
func (s *structurer) loop(h, latch int) (Stmt, int, error) {
	s.building[h] = true
	defer func() { s.building[h] = false }()

	hn, ln := s.nodes[h], s.nodes[latch]
	lo, hi := hn.start(), ln.block.End
	inside := func(id int) bool {
		st := s.nodes[id].start()
		return lo <= st && st < hi
	}

	// Test at the bottom.
	if len(ln.succs) == 2 && ln.cond != nil && !ln.isLoopControl() {
		var until ir.Expr
		exit := -1
		switch {
		case ln.succs[0] == h && !inside(ln.succs[1]):
			until, exit = negate(ln.cond), ln.succs[1]
		case ln.succs[1] == h && !inside(ln.succs[0]):
			until, exit = ln.cond, ln.succs[0]
		}
		if exit >= 0 {
			body, err := s.seq(h, -1, &loopFrame{kind: loopRepeat, exit: exit, cont: latch}, true)
			if err != nil {
				return nil, 0, err
			}
			return &Repeat{Body: body, Cond: until}, exit, nil
		}
	}

	// Test at the top.
	if len(hn.succs) == 2 && hn.cond != nil && len(hn.res.stmts) == 0 && hn.res.forNum == nil {
		var cond ir.Expr
		bodyStart, exit := -1, -1
		switch {
		case inside(hn.succs[0]) && !inside(hn.succs[1]):
			cond, bodyStart, exit = hn.cond, hn.succs[0], hn.succs[1]
		case inside(hn.succs[1]) && !inside(hn.succs[0]):
			cond, bodyStart, exit = negate(hn.cond), hn.succs[1], hn.succs[0]
		}
		if exit >= 0 && bodyStart != h {
			if err := s.visit(h); err != nil {
				return nil, 0, err
			}
			body, err := s.seq(bodyStart, -1, &loopFrame{kind: loopWhile, exit: exit, cont: h}, true)
			if err != nil {
				return nil, 0, err
			}
			return &While{Cond: cond, Body: body}, exit, nil
		}
	}

	// No test: leave only through break (or return).
	exit := -1
	for id, n := range s.nodes {
		if n.dead || !inside(id) {
			continue
		}
		for _, t := range n.succs {
			if !inside(t) && (exit < 0 || s.nodes[t].start() < s.nodes[exit].start()) {
				exit = t
			}
		}
	}
	body, err := s.seq(h, -1, &loopFrame{kind: loopForever, exit: exit, cont: h}, true)
	if err != nil {
		return nil, 0, err
	}
	return &While{Cond: ir.Boolean{Value: true}, Body: body}, exit, nil
}

// numericFor structures the numeric for loop prepared by block id.
func (s *structurer) numericFor(id int) (Stmt, int, error) {
	n := s.nodes[id]
	body, exit := n.succs[1], n.succs[0]
	cont := -1
	for i, ln := range s.nodes {
		c := ln.block.Cond
		if !ln.dead && c != nil && c.Op == ir.CondForNumLoop && c.Base == n.block.Cond.Base && ln.succs[0] == body {
			cont = i
			break
		}
	}
	// cont stays -1 if the body never reaches the end of an iteration.
	h := n.res.forNum
	bodyBlock, err := s.seq(body, -1, &loopFrame{kind: loopFor, exit: exit, cont: cont}, true)
	if err != nil {
		return nil, 0, err
	}
	return &NumericFor{
		Var:   h.v,
		Start: h.start,
		Limit: h.limit,
		Step:  h.step,
		Body:  bodyBlock,
	}, exit, nil
}

// genericFor structures the generic for loop prepared by block id.
func (s *structurer) genericFor(id int) (Stmt, int, error) {
	n := s.nodes[id]
	if len(n.succs) != 1 {
		return nil, 0, s.errorf(id, "generic for loop preparation with %d successors", len(n.succs))
	}
	g := n.succs[0]
	gn := s.nodes[g]
	if c := gn.block.Cond; c == nil || c.Op != ir.CondForGenLoop {
		return nil, 0, s.errorf(id, "generic for loop preparation does not jump to a loop instruction")
	}
	var vars []*ir.Local
	for _, d := range s.df.defsAt[useSite{g, len(gn.block.Insts)}] {
		vars = append(vars, s.df.local(d))
	}
	body, exit := gn.succs[0], gn.succs[1]
	bodyBlock, err := s.seq(body, -1, &loopFrame{kind: loopFor, exit: exit, cont: g}, true)
	if err != nil {
		return nil, 0, err
	}
	return &GenericFor{
		Vars:   vars,
		Values: n.res.forGen,
		Body:   bodyBlock,
	}, exit, nil
}
