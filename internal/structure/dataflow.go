// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package structure

import (
	"zb.256lights.llc/luaudec/internal/bitset"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/worklist"
)

const numSlots = 256

// entryBlock is the block number of definitions that exist on function entry.
const entryBlock = -1

// def is a single write to a register.
type def struct {
	block int
	// index is the instruction index within the block,
	// or len(Insts) for a write by the block's condition.
	index int
	slot  ir.Slot
	// namePC is the program counter at which a named local
	// holding this value would become visible.
	namePC int
	// param is true for the definitions of parameters.
	param bool
}

// web is a maximal set of definitions and uses of a register
// that must refer to the same variable:
// any two definitions that reach a common use are in the same web.
type web struct {
	// defs counts definitions other than "undefined on entry".
	defs int
	// undefined is true if a use can observe the register's value on entry.
	undefined bool
	uses      []useSite
	captured  bool
	local     *ir.Local
}

type useSite struct {
	block int
	index int
}

// dataflow is the result of a reaching definitions analysis
// over a lifted function.
type dataflow struct {
	fn     *ir.Function
	defs   []def
	parent []int
	// defsAt maps a block and instruction index
	// to the IDs of the definitions made there.
	defsAt map[useSite][]int
	in     []*bitset.Set
	webs   map[int]*web
	// localWebs maps variables back to their webs.
	localWebs map[*ir.Local]*web
	nextID    int
}

func analyze(fn *ir.Function) *dataflow {
	df := &dataflow{
		fn:        fn,
		defsAt:    make(map[useSite][]int),
		localWebs: make(map[*ir.Local]*web),
	}
	numParams := int(fn.Proto.NumParams)
	for s := range numSlots {
		df.addDef(def{
			block: entryBlock,
			slot:  ir.Slot(s),
			param: s < numParams,
		})
	}
	for _, b := range fn.Blocks {
		for i, inst := range b.Insts {
			pc := inst.Pos().PC
			next := pc + 1
			if d, err := fn.Proto.Decode(pc); err == nil {
				next = d.Next()
			}
			for _, s := range ir.Defs(inst) {
				df.addDef(def{block: b.ID, index: i, slot: s, namePC: next})
			}
		}
		if b.Cond != nil {
			namePC := b.End
			if b.Cond.Op.IsLoop() {
				namePC = df.bodyStart(b)
			}
			for _, s := range b.Cond.Defs() {
				df.addDef(def{block: b.ID, index: len(b.Insts), slot: s, namePC: namePC})
			}
		}
	}

	df.solve()
	df.buildWebs()
	return df
}

// bodyStart returns the first program counter of the body of a for loop
// controlled by b.
func (df *dataflow) bodyStart(b *ir.Block) int {
	switch b.Cond.Op {
	case ir.CondForNumPrep:
		return df.fn.Blocks[b.Succs[1]].Start
	default:
		return df.fn.Blocks[b.Succs[0]].Start
	}
}

func (df *dataflow) addDef(d def) {
	id := len(df.defs)
	df.defs = append(df.defs, d)
	df.parent = append(df.parent, id)
	if d.block != entryBlock {
		k := useSite{d.block, d.index}
		df.defsAt[k] = append(df.defsAt[k], id)
	}
}

// solve computes the definitions that reach the start of each block.
func (df *dataflow) solve() {
	n := len(df.fn.Blocks)
	gen := make([]*bitset.Set, n)
	kill := make([]*bitset.Set, n)
	out := make([]*bitset.Set, n)
	df.in = make([]*bitset.Set, n)

	defsOfSlot := make([]*bitset.Set, numSlots)
	for s := range defsOfSlot {
		defsOfSlot[s] = new(bitset.Set)
	}
	for id, d := range df.defs {
		defsOfSlot[d.slot].Add(id)
	}
	for _, b := range df.fn.Blocks {
		gen[b.ID] = new(bitset.Set)
		kill[b.ID] = new(bitset.Set)
		var last [numSlots]int
		var written bitset.Set
		for id, d := range df.defs {
			if d.block == b.ID {
				last[d.slot] = id
				written.Add(int(d.slot))
			}
		}
		for s := range written.All() {
			gen[b.ID].Add(last[s])
			kill[b.ID].UnionWith(defsOfSlot[s])
		}
		df.in[b.ID] = new(bitset.Set)
		out[b.ID] = gen[b.ID].Clone()
	}
	for id, d := range df.defs {
		if d.block == entryBlock {
			df.in[0].Add(id)
		}
	}

	work := new(worklist.Queue)
	for _, b := range df.fn.Blocks {
		work.Push(b.ID)
	}
	for {
		id, ok := work.Pop()
		if !ok {
			break
		}
		b := df.fn.Blocks[id]
		for _, p := range b.Preds {
			df.in[id].UnionWith(out[p])
		}
		o := df.in[id].Clone()
		o.DifferenceWith(kill[id])
		o.UnionWith(gen[id])
		if o.Equal(out[id]) {
			continue
		}
		out[id] = o
		work.Push(b.Succs...)
	}
}

// slotState tracks the definitions of each register
// that reach a point in a block.
type slotState [numSlots][]int

func (df *dataflow) entryState(block int) *slotState {
	st := new(slotState)
	for id := range df.in[block].All() {
		s := df.defs[id].slot
		st[s] = append(st[s], id)
	}
	return st
}

func (st *slotState) define(s ir.Slot, id int) {
	st[s] = append(st[s][:0:0], id)
}

// walk calls use for every register read in the function
// with the definitions that reach it
// and keeps st up to date with definitions.
func (df *dataflow) walk(use func(site useSite, s ir.Slot, reaching []int, captured bool)) {
	for _, b := range df.fn.Blocks {
		st := df.entryState(b.ID)
		for i, inst := range b.Insts {
			site := useSite{b.ID, i}
			captures := capturedSlots(inst)
			var self []ir.Slot
			for _, s := range ir.Uses(inst) {
				if captures.Has(int(s)) && isSelfCapture(inst, s) {
					self = append(self, s)
					continue
				}
				use(site, s, st[s], captures.Has(int(s)))
			}
			for _, id := range df.defsAt[site] {
				st.define(df.defs[id].slot, id)
			}
			// A closure stored into a register it captures
			// sees its own value (`local function f`).
			for _, s := range self {
				use(site, s, st[s], true)
			}
		}
		if b.Cond != nil {
			site := useSite{b.ID, len(b.Insts)}
			for _, s := range b.Cond.Uses() {
				use(site, s, st[s], false)
			}
		}
	}
}

// capturedSlots returns the registers that inst captures in a closure.
func capturedSlots(inst ir.Inst) *bitset.Set {
	a, ok := inst.(*ir.Assign)
	if !ok {
		return nil
	}
	c, ok := a.Value.(*ir.Closure)
	if !ok {
		return nil
	}
	captures := new(bitset.Set)
	for _, capt := range c.Captures {
		if capt.Kind != ir.CaptureUpvalue {
			captures.Add(capt.Index)
		}
	}
	return captures
}

// isSelfCapture reports whether inst stores a closure into register s
// while capturing s.
func isSelfCapture(inst ir.Inst, s ir.Slot) bool {
	a, ok := inst.(*ir.Assign)
	return ok && a.Dest == s
}

func (df *dataflow) find(id int) int {
	for df.parent[id] != id {
		df.parent[id] = df.parent[df.parent[id]]
		id = df.parent[id]
	}
	return id
}

func (df *dataflow) union(a, b int) {
	ra, rb := df.find(a), df.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	df.parent[rb] = ra
}

func (df *dataflow) buildWebs() {
	df.walk(func(_ useSite, _ ir.Slot, reaching []int, _ bool) {
		for _, id := range reaching[1:] {
			df.union(reaching[0], id)
		}
	})
	df.webs = make(map[int]*web)
	for id, d := range df.defs {
		w := df.web(id)
		if d.block != entryBlock || d.param {
			w.defs++
		}
	}
	df.walk(func(site useSite, _ ir.Slot, reaching []int, captured bool) {
		w := df.web(reaching[0])
		w.uses = append(w.uses, site)
		if captured {
			w.captured = true
		}
		for _, id := range reaching {
			if d := df.defs[id]; d.block == entryBlock && !d.param {
				w.undefined = true
			}
		}
	})
}

// web returns the web that contains the given definition.
func (df *dataflow) web(id int) *web {
	root := df.find(id)
	w := df.webs[root]
	if w == nil {
		w = new(web)
		df.webs[root] = w
	}
	return w
}

// local returns the variable that holds the value of the given definition.
func (df *dataflow) local(id int) *ir.Local {
	w := df.web(id)
	if w.local == nil {
		root := df.find(id)
		w.local = &ir.Local{
			ID:   df.nextID,
			Slot: df.defs[id].slot,
		}
		df.nextID++
		df.localWebs[w.local] = w
		for other := range df.defs {
			if df.find(other) == root {
				if name := df.name(other); name != "" {
					w.local.Name = name
					break
				}
			}
		}
	}
	return w.local
}

// capturedLocal reports whether a closure captures l.
func (df *dataflow) capturedLocal(l *ir.Local) bool {
	w := df.localWebs[l]
	return w != nil && w.captured
}

// temp returns a new unnamed variable that belongs to no web.
func (df *dataflow) temp(s ir.Slot) *ir.Local {
	l := &ir.Local{ID: df.nextID, Slot: s}
	df.nextID++
	return l
}

// named reports whether the variable holding the given definition has a name.
func (df *dataflow) named(id int) bool {
	return df.local(id).Name != ""
}

// name returns the debug name of the variable
// that receives the given definition.
func (df *dataflow) name(id int) string {
	d := df.defs[id]
	if d.block == entryBlock {
		if !d.param {
			return ""
		}
		return df.fn.Proto.LocalName(uint8(d.slot), 0)
	}
	return df.fn.Proto.LocalName(uint8(d.slot), d.namePC)
}

// inlinable reports whether the value of the given definition
// can be substituted into its only use.
func (df *dataflow) inlinable(id int) bool {
	d := df.defs[id]
	if d.block == entryBlock {
		return false
	}
	w := df.web(id)
	if w.defs != 1 || w.undefined || w.captured || len(w.uses) != 1 {
		return false
	}
	u := w.uses[0]
	if u.block != d.block || u.index <= d.index {
		return false
	}
	return df.name(id) == ""
}

// dead reports whether the value of the given definition is never read.
func (df *dataflow) dead(id int) bool {
	return len(df.web(id).uses) == 0
}
