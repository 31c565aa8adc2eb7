// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import (
	"cmp"
	"slices"

	"zb.256lights.llc/luaudec/internal/ir"
)

// blockResult is the statement-level translation of one basic block.
type blockResult struct {
	stmts []Stmt
	// cond is the expression that selects Succs[0].
	// It is nil for unconditional blocks and for-loop blocks.
	cond   ir.Expr
	forNum *numericForHeader
	// forGen is set for a block that ends by preparing a generic for loop.
	forGen []ir.Expr
}

type numericForHeader struct {
	v                  *ir.Local
	start, limit, step ir.Expr
}

// pending is a computed value that has not been written out yet
// because it may be substituted into its only use.
type pending struct {
	// order is the ID of the first definition;
	// definition IDs increase in program order within a block.
	order int
	defs  []int
	expr  ir.Expr
	pure  bool
	// truncate is set for a single value taken from a multi-valued expression.
	truncate bool
}

// openTable is a table constructor statement that can still absorb stores.
type openTable struct {
	def    int
	local  *ir.Local
	table  *ir.NewTable
	folded []useSite
}

// blockBuilder translates the instructions of one basic block to statements.
type blockBuilder struct {
	df      *dataflow
	opts    *Options
	block   *ir.Block
	st      *slotState
	index   int
	pending map[int]*pending
	open    *openTable
	out     []Stmt
	// selfDef is the definition a closure under construction is stored into,
	// or -1.
	selfDef int
}

func (df *dataflow) buildBlock(b *ir.Block, opts *Options) *blockResult {
	bb := &blockBuilder{
		df:      df,
		opts:    opts,
		block:   b,
		st:      df.entryState(b.ID),
		pending: make(map[int]*pending),
		selfDef: -1,
	}
	res := new(blockResult)
	for i, inst := range b.Insts {
		bb.index = i
		if bb.open != nil {
			if bb.fold(inst) {
				bb.define()
				continue
			}
			bb.closeTable()
		}
		bb.inst(inst, res)
	}
	bb.index = len(b.Insts)
	bb.closeTable()
	if b.Cond != nil {
		bb.condition(b.Cond, res)
	}
	bb.flush(bb.pendingList())
	res.stmts = bb.out
	return res
}

func (bb *blockBuilder) site() useSite {
	return useSite{bb.block.ID, bb.index}
}

// define records the definitions made at the current position.
func (bb *blockBuilder) define() {
	for _, id := range bb.df.defsAt[bb.site()] {
		bb.st.define(bb.df.defs[id].slot, id)
	}
}

func (bb *blockBuilder) inst(inst ir.Inst, res *blockResult) {
	bb.prepare(ir.Uses(inst))
	ids := bb.df.defsAt[bb.site()]
	switch inst := inst.(type) {
	case *ir.Assign:
		id := ids[0]
		bb.selfDef = id
		v := bb.resolve(inst.Value)
		bb.selfDef = -1
		bb.define()
		switch {
		case bb.df.inlinable(id):
			bb.addPending(ids, v, false)
		case bb.df.dead(id) && !bb.df.named(id) && bb.pure(v):
		default:
			l := bb.df.local(id)
			bb.emit(&Assign{Targets: []ir.Expr{l}, Values: []ir.Expr{v}}, l)
			if t, ok := v.(*ir.NewTable); ok {
				bb.open = &openTable{def: id, local: l, table: t}
			}
		}
	case *ir.Call:
		call := &ir.CallExpr{
			Func:    bb.resolveOpt(inst.Func),
			Object:  bb.resolveOpt(inst.Object),
			Method:  inst.Method,
			Args:    bb.resolveList(inst.Args, inst.VarTail),
			VarTail: inst.VarTail,
		}
		bb.define()
		bb.results(ids, call, inst.Base, inst.Results)
	case *ir.LoadVarArgs:
		bb.define()
		bb.results(ids, ir.VarArgs{}, inst.Base, inst.Count)
	case *ir.SetGlobal:
		v := bb.resolve(inst.Value)
		bb.emit(&Assign{Targets: []ir.Expr{ir.Global{Name: inst.Name}}, Values: []ir.Expr{v}})
	case *ir.SetUpvalue:
		v := bb.resolve(inst.Value)
		bb.emit(&Assign{Targets: []ir.Expr{ir.Upvalue{Index: inst.Index}}, Values: []ir.Expr{v}})
	case *ir.SetIndex:
		t := bb.resolve(inst.Table)
		k := bb.resolve(inst.Key)
		v := bb.resolve(inst.Value)
		bb.emit(&Assign{Targets: []ir.Expr{&ir.Index{Table: t, Key: k}}, Values: []ir.Expr{v}})
	case *ir.SetList:
		bb.setList(inst)
	case *ir.Return:
		bb.emit(&Return{Values: bb.resolveList(inst.Values, inst.VarTail)})
	case *ir.ForGenPrep:
		res.forGen = bb.forGenValues(inst.Base)
		bb.flush(bb.impure())
	case *ir.CloseUpvalues:
		// Scopes end implicitly in source.
	}
}

// results handles the values produced by a call or a varargs load.
func (bb *blockBuilder) results(ids []int, x ir.Expr, base ir.Slot, n int) {
	call, isCall := x.(*ir.CallExpr)
	switch {
	case len(ids) == 0:
		if isCall {
			bb.emit(&CallStmt{Call: call})
		}
	case len(ids) == 1:
		id := ids[0]
		switch {
		case bb.df.inlinable(id):
			bb.addPending(ids, x, n == 1)
		case bb.df.dead(id) && !bb.df.named(id) && isCall:
			bb.emit(&CallStmt{Call: call})
		case bb.df.dead(id) && !bb.df.named(id):
		default:
			l := bb.df.local(id)
			bb.emit(&Assign{Targets: []ir.Expr{l}, Values: []ir.Expr{x}}, l)
		}
	case bb.forGenOperands(ids, base):
		bb.addPending(ids, x, false)
	default:
		allDead := true
		for _, id := range ids {
			if !bb.df.dead(id) || bb.df.named(id) {
				allDead = false
				break
			}
		}
		if allDead && isCall {
			bb.emit(&CallStmt{Call: call})
			return
		}
		targets := make([]ir.Expr, 0, len(ids))
		locals := make([]*ir.Local, 0, len(ids))
		for _, id := range ids {
			l := bb.df.local(id)
			targets = append(targets, l)
			locals = append(locals, l)
		}
		bb.emit(&Assign{Targets: targets, Values: []ir.Expr{x}}, locals...)
	}
}

// forGenOperands reports whether the given definitions
// are exactly the three operands of a following generic for loop
// and nothing else reads them.
func (bb *blockBuilder) forGenOperands(ids []int, base ir.Slot) bool {
	if len(ids) != 3 {
		return false
	}
	var site useSite
	for i, id := range ids {
		if !bb.df.inlinable(id) {
			return false
		}
		u := bb.df.web(id).uses[0]
		if i == 0 {
			site = u
		} else if u != site {
			return false
		}
	}
	insts := bb.df.fn.Blocks[site.block].Insts
	if site.index >= len(insts) {
		return false
	}
	prep, ok := insts[site.index].(*ir.ForGenPrep)
	return ok && prep.Base == base
}

func (bb *blockBuilder) forGenValues(base ir.Slot) []ir.Expr {
	var values []ir.Expr
	var last *pending
	for i := range 3 {
		s := base + ir.Slot(i)
		if p := bb.pendingAt(s); p != nil && p == last {
			continue
		} else if p != nil {
			last = p
		} else if last != nil && bb.consumedBy(last, s) {
			continue
		}
		values = append(values, bb.read(s, i == 2))
	}
	for len(values) > 1 {
		if _, isNil := values[len(values)-1].(ir.Nil); !isNil || ir.MultiValued(values[len(values)-2]) {
			break
		}
		values = values[:len(values)-1]
	}
	return values
}

// consumedBy reports whether register s holds a value of p.
func (bb *blockBuilder) consumedBy(p *pending, s ir.Slot) bool {
	r := bb.st[s]
	return len(r) == 1 && slices.Contains(p.defs, r[0])
}

func (bb *blockBuilder) setList(inst *ir.SetList) {
	t := bb.read(inst.Table, false)
	values := bb.resolveList(inst.Values, inst.VarTail)
	if !inst.VarTail {
		for i, v := range values {
			key := ir.Number{Value: float64(inst.Start + i)}
			bb.emit(&Assign{Targets: []ir.Expr{&ir.Index{Table: t, Key: key}}, Values: []ir.Expr{v}})
		}
		return
	}
	tmp := bb.df.temp(inst.Table)
	bb.emit(&Assign{
		Local:   true,
		Targets: []ir.Expr{tmp},
		Values:  []ir.Expr{&ir.NewTable{Items: values, ItemsVarTail: true}},
	})
	bb.emit(&CallStmt{Call: &ir.CallExpr{
		Func: ir.Import{Path: []string{"table", "move"}},
		Args: []ir.Expr{
			tmp,
			ir.Number{Value: 1},
			&ir.Unary{Op: ir.OpLen, Operand: tmp},
			ir.Number{Value: float64(inst.Start)},
			t,
		},
	}})
}

func (bb *blockBuilder) condition(c *ir.Condition, res *blockResult) {
	bb.prepare(c.Uses())
	switch c.Op {
	case ir.CondForNumPrep:
		h := &numericForHeader{
			start: bb.read(c.Base+2, false),
			limit: bb.read(c.Base, false),
			step:  bb.read(c.Base+1, false),
		}
		if n, ok := h.step.(ir.Number); ok && n.Value == 1 {
			h.step = nil
		}
		bb.define()
		h.v = bb.df.local(bb.df.defsAt[bb.site()][0])
		res.forNum = h
	case ir.CondForNumLoop, ir.CondForGenLoop:
		bb.define()
	default:
		left := bb.resolve(c.Left)
		var right ir.Expr
		if c.Right != nil {
			right = bb.resolve(c.Right)
		}
		res.cond = conditionExpr(c, left, right)
	}
	bb.flush(bb.impure())
}

// conditionExpr returns the expression that holds when a branch is taken.
func conditionExpr(c *ir.Condition, left, right ir.Expr) ir.Expr {
	var e ir.Expr
	switch c.Op {
	case ir.CondTruthy:
		e = left
	case ir.CondEq:
		op := ir.OpEq
		if c.Negated {
			op = ir.OpNe
		}
		return &ir.Binary{Op: op, Left: left, Right: right}
	case ir.CondLt:
		e = &ir.Binary{Op: ir.OpLt, Left: left, Right: right}
	case ir.CondLe:
		e = &ir.Binary{Op: ir.OpLe, Left: left, Right: right}
	}
	if c.Negated {
		return negate(e)
	}
	return e
}

// negate returns the logical complement of e.
func negate(e ir.Expr) ir.Expr {
	switch e := e.(type) {
	case *ir.Unary:
		if e.Op == ir.OpNot {
			return e.Operand
		}
	case *ir.Binary:
		switch e.Op {
		case ir.OpEq:
			return &ir.Binary{Op: ir.OpNe, Left: e.Left, Right: e.Right}
		case ir.OpNe:
			return &ir.Binary{Op: ir.OpEq, Left: e.Left, Right: e.Right}
		case ir.OpAnd, ir.OpOr:
			// De Morgan's laws, when they do not add negations.
			if negatesCleanly(e.Left) || negatesCleanly(e.Right) {
				op := ir.OpOr
				if e.Op == ir.OpOr {
					op = ir.OpAnd
				}
				return &ir.Binary{Op: op, Left: negate(e.Left), Right: negate(e.Right)}
			}
		}
	case ir.Boolean:
		return ir.Boolean{Value: !e.Value}
	}
	return &ir.Unary{Op: ir.OpNot, Operand: e}
}

// negatesCleanly reports whether negate(e) has no more negations than e.
func negatesCleanly(e ir.Expr) bool {
	switch e := e.(type) {
	case ir.Boolean:
		return true
	case *ir.Unary:
		return e.Op == ir.OpNot
	case *ir.Binary:
		switch e.Op {
		case ir.OpEq, ir.OpNe:
			return true
		case ir.OpAnd, ir.OpOr:
			return negatesCleanly(e.Left) && negatesCleanly(e.Right)
		}
	}
	return false
}

// fold tries to move a store into the open table constructor.
func (bb *blockBuilder) fold(inst ir.Inst) bool {
	o := bb.open
	switch inst := inst.(type) {
	case *ir.SetList:
		if !bb.holds(inst.Table, o.def) || inst.Start != len(o.table.Items)+1 || o.table.ItemsVarTail {
			return false
		}
		if !bb.canFold(ir.Uses(inst)[1:]) {
			return false
		}
		o.table.Items = append(o.table.Items, bb.resolveList(inst.Values, inst.VarTail)...)
		o.table.ItemsVarTail = inst.VarTail
	case *ir.SetIndex:
		if !bb.opts.InlineTables {
			return false
		}
		t, ok := inst.Table.(ir.SlotRef)
		if !ok || !bb.holds(t.Slot, o.def) {
			return false
		}
		var uses []ir.Slot
		add := func(s ir.Slot) { uses = append(uses, s) }
		ir.WalkSlots(inst.Key, add)
		ir.WalkSlots(inst.Value, add)
		if !bb.canFold(uses) {
			return false
		}
		k := bb.resolve(inst.Key)
		v := bb.resolve(inst.Value)
		o.table.Fields = append(o.table.Fields, ir.Field{Key: k, Value: v})
	default:
		return false
	}
	o.folded = append(o.folded, bb.site())
	return true
}

// holds reports whether register s holds exactly the given definition.
func (bb *blockBuilder) holds(s ir.Slot, id int) bool {
	r := bb.st[s]
	return len(r) == 1 && r[0] == id
}

// canFold reports whether values read from the given registers
// can be evaluated inside the open table constructor.
func (bb *blockBuilder) canFold(uses []ir.Slot) bool {
	for _, s := range uses {
		if slices.Contains(bb.st[s], bb.open.def) {
			return false
		}
	}
	consumed, queued := bb.plan(uses)
	return len(queued) == 0 && slices.IsSortedFunc(consumed, byOrder)
}

// closeTable ends the open table constructor.
// A table whose remaining use is later in the block becomes pending again.
func (bb *blockBuilder) closeTable() {
	o := bb.open
	if o == nil {
		return
	}
	bb.open = nil
	if len(o.folded) == 0 || o.local.Name != "" {
		return
	}
	w := bb.df.web(o.def)
	if w.defs != 1 || w.undefined || w.captured {
		return
	}
	var rest []useSite
	for _, u := range w.uses {
		if !slices.Contains(o.folded, u) {
			rest = append(rest, u)
		}
	}
	if len(rest) != 1 || rest[0].block != bb.block.ID || rest[0].index < bb.index {
		return
	}
	bb.out = bb.out[:len(bb.out)-1]
	bb.addPending([]int{o.def}, o.table, false)
}

func (bb *blockBuilder) addPending(ids []int, x ir.Expr, truncate bool) {
	p := &pending{
		order:    ids[0],
		defs:     ids,
		expr:     x,
		pure:     bb.pure(x),
		truncate: truncate,
	}
	for _, id := range ids {
		bb.pending[id] = p
	}
}

// pure reports whether x can be moved past other statements.
// Reading a captured variable is impure, since a call may assign it.
func (bb *blockBuilder) pure(x ir.Expr) bool {
	if !ir.Pure(x) {
		return false
	}
	pure := true
	ir.Inspect(x, func(e ir.Expr) bool {
		if l, ok := e.(*ir.Local); ok && bb.df.capturedLocal(l) {
			pure = false
		}
		return pure
	})
	return pure
}

func (bb *blockBuilder) pendingAt(s ir.Slot) *pending {
	r := bb.st[s]
	if len(r) != 1 {
		return nil
	}
	return bb.pending[r[0]]
}

// pendingList returns the pending values in program order.
func (bb *blockBuilder) pendingList() []*pending {
	var list []*pending
	for _, p := range bb.pending {
		if !slices.Contains(list, p) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, byOrder)
	return list
}

// impure returns the pending values with side effects in program order.
func (bb *blockBuilder) impure() []*pending {
	return slices.DeleteFunc(bb.pendingList(), func(p *pending) bool { return p.pure })
}

func byOrder(a, b *pending) int {
	return cmp.Compare(a.order, b.order)
}

// plan returns the effectful pending values that reading the given registers consumes
// (in the order they are read)
// and the effectful pending values it leaves behind.
func (bb *blockBuilder) plan(uses []ir.Slot) (consumed, queued []*pending) {
	for _, s := range uses {
		if p := bb.pendingAt(s); p != nil && !p.pure && !slices.Contains(consumed, p) {
			consumed = append(consumed, p)
		}
	}
	for _, p := range bb.impure() {
		if !slices.Contains(consumed, p) {
			queued = append(queued, p)
		}
	}
	return consumed, queued
}

// prepare writes out pending values as needed
// so that an instruction reading the given registers
// evaluates side effects in their original order.
// Effectful values that the instruction consumes
// must be read in program order,
// and no other effectful pending value may fall between them.
func (bb *blockBuilder) prepare(uses []ir.Slot) {
	consumed, queued := bb.plan(uses)
	if len(consumed) == 0 {
		return
	}
	first := slices.MinFunc(consumed, byOrder).order
	last := slices.MaxFunc(consumed, byOrder).order
	conflict := !slices.IsSortedFunc(consumed, byOrder)
	for _, q := range queued {
		if q.order > first {
			conflict = true
			break
		}
	}
	if !conflict {
		return
	}
	list := slices.Clone(consumed)
	for _, q := range queued {
		if q.order < last {
			list = append(list, q)
		}
	}
	slices.SortFunc(list, byOrder)
	bb.flush(list)
}

// flush writes out the given pending values as assignments to their variables.
func (bb *blockBuilder) flush(list []*pending) {
	for _, p := range list {
		targets := make([]ir.Expr, 0, len(p.defs))
		for _, id := range p.defs {
			delete(bb.pending, id)
			targets = append(targets, bb.df.local(id))
		}
		bb.out = append(bb.out, &Assign{Targets: targets, Values: []ir.Expr{p.expr}})
	}
}

// emit appends a statement that assigns the given variables.
func (bb *blockBuilder) emit(s Stmt, assigned ...*ir.Local) {
	bb.flush(bb.impure())
	for _, l := range assigned {
		var stale []*pending
		for _, p := range bb.pendingList() {
			if reads(p.expr, l) {
				stale = append(stale, p)
			}
		}
		bb.flush(stale)
	}
	bb.out = append(bb.out, s)
}

// reads reports whether evaluating x reads variable l.
func reads(x ir.Expr, l *ir.Local) bool {
	found := false
	ir.Inspect(x, func(e ir.Expr) bool {
		switch e := e.(type) {
		case *ir.Local:
			found = found || e == l
		case *ir.Closure:
			for _, c := range e.Captures {
				found = found || c.Var == l
			}
		}
		return !found
	})
	return found
}

// read returns the expression for the current value of register s.
// last is true if the value is the last of a list,
// where a multi-valued expression would expand.
func (bb *blockBuilder) read(s ir.Slot, last bool) ir.Expr {
	r := bb.st[s]
	if len(r) == 1 {
		if p := bb.pending[r[0]]; p != nil {
			for _, id := range p.defs {
				delete(bb.pending, id)
			}
			if last && p.truncate {
				return &ir.Paren{Value: p.expr}
			}
			return p.expr
		}
	}
	return bb.df.local(r[0])
}

func (bb *blockBuilder) resolveOpt(x ir.Expr) ir.Expr {
	if x == nil {
		return nil
	}
	return bb.resolve(x)
}

// resolveList resolves an argument, return, or constructor list.
func (bb *blockBuilder) resolveList(list []ir.Expr, varTail bool) []ir.Expr {
	out := make([]ir.Expr, 0, len(list))
	for i, x := range list {
		if ref, ok := x.(ir.SlotRef); ok && i == len(list)-1 && !varTail {
			out = append(out, bb.read(ref.Slot, true))
			continue
		}
		out = append(out, bb.resolve(x))
	}
	return out
}

// resolve replaces register reads in x
// with pending values or variables.
func (bb *blockBuilder) resolve(x ir.Expr) ir.Expr {
	switch x := x.(type) {
	case ir.SlotRef:
		return bb.read(x.Slot, false)
	case *ir.Index:
		t := bb.resolve(x.Table)
		return &ir.Index{Table: t, Key: bb.resolve(x.Key)}
	case *ir.Binary:
		left := bb.resolve(x.Left)
		return &ir.Binary{Op: x.Op, Left: left, Right: bb.resolve(x.Right)}
	case *ir.Unary:
		return &ir.Unary{Op: x.Op, Operand: bb.resolve(x.Operand)}
	case *ir.Paren:
		return &ir.Paren{Value: bb.resolve(x.Value)}
	case *ir.Concat:
		c := &ir.Concat{Operands: make([]ir.Expr, 0, len(x.Operands))}
		for _, op := range x.Operands {
			c.Operands = append(c.Operands, bb.resolve(op))
		}
		return c
	case *ir.NewTable:
		t := &ir.NewTable{
			ArraySize:    x.ArraySize,
			HashSize:     x.HashSize,
			Keys:         x.Keys,
			Items:        bb.resolveList(x.Items, x.ItemsVarTail),
			ItemsVarTail: x.ItemsVarTail,
		}
		for _, f := range x.Fields {
			k := bb.resolve(f.Key)
			t.Fields = append(t.Fields, ir.Field{Key: k, Value: bb.resolve(f.Value)})
		}
		return t
	case *ir.Closure:
		c := &ir.Closure{Function: x.Function, Captures: slices.Clone(x.Captures)}
		for i := range c.Captures {
			capt := &c.Captures[i]
			if capt.Kind == ir.CaptureUpvalue {
				continue
			}
			if bb.selfDef >= 0 && bb.df.defs[bb.selfDef].slot == ir.Slot(capt.Index) {
				capt.Var = bb.df.local(bb.selfDef)
				continue
			}
			switch v := bb.read(ir.Slot(capt.Index), false).(type) {
			case *ir.Local:
				capt.Var = v
			default:
				capt.Var = bb.df.local(bb.st[capt.Index][0])
			}
		}
		return c
	case *ir.CallExpr:
		return &ir.CallExpr{
			Func:    bb.resolveOpt(x.Func),
			Object:  bb.resolveOpt(x.Object),
			Method:  x.Method,
			Args:    bb.resolveList(x.Args, x.VarTail),
			VarTail: x.VarTail,
		}
	default:
		return x
	}
}
