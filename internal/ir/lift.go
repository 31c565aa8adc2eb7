// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"context"
	"fmt"
	"slices"

	"zb.256lights.llc/luaudec/internal/bitset"
	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/worklist"
	"zombiezen.com/go/log"
)

// Lift translates the function prototype at the given index of chunk
// into a control-flow graph of IR instructions.
// Blocks that cannot be reached from the entry are dropped with a warning.
func Lift(ctx context.Context, chunk *luaucode.Chunk, index int) (*Function, error) {
	if index < 0 || index >= len(chunk.Functions) {
		return nil, decerr.New(decerr.StageLift, decerr.InvariantViolation, "function %d out of range", index)
	}
	l := &lifter{
		chunk: chunk,
		proto: chunk.Functions[index],
		index: index,
	}
	if err := l.decode(); err != nil {
		return nil, err
	}
	if err := l.pairNameCalls(); err != nil {
		return nil, err
	}
	if len(l.code) == 0 {
		return nil, l.errorf(decerr.InvariantViolation, 0, "function has no instructions")
	}
	leaders, err := l.findLeaders()
	if err != nil {
		return nil, err
	}
	blocks, err := l.split(leaders)
	if err != nil {
		return nil, err
	}
	blocks = l.dropUnreachable(ctx, blocks)

	f := &Function{
		Index:  index,
		Proto:  l.proto,
		Blocks: blocks,
	}
	for _, b := range f.Blocks {
		if err := l.liftBlock(b); err != nil {
			return nil, err
		}
	}
	f.computePreds()
	if err := f.CheckEdges(); err != nil {
		return nil, err
	}
	log.Debugf(ctx, "Lifted function %d: %d blocks, %d instructions", index, len(f.Blocks), len(l.code))
	return f, nil
}

// lifter is the per-function state of [Lift].
type lifter struct {
	chunk *luaucode.Chunk
	proto *luaucode.Function
	index int

	// code is the decoded instruction stream.
	code []luaucode.Decoded
	// at maps a program counter to its index in code,
	// or -1 if the word is an auxiliary word.
	at []int

	// top is the base register of a pending multi-value result, or -1.
	top int
	// nameCalls maps the program counter of a CALL
	// to the NAMECALL that prepared it.
	nameCalls map[int]luaucode.Decoded
}

func (l *lifter) errorf(kind decerr.Kind, pc int, format string, args ...any) *decerr.Error {
	return decerr.AtPC(decerr.StageLift, kind, l.index, pc, format, args...)
}

func (l *lifter) decode() error {
	l.at = make([]int, len(l.proto.Code))
	for pc := range l.at {
		l.at[pc] = -1
	}
	for pc := 0; pc < len(l.proto.Code); {
		d, err := l.proto.Decode(pc)
		if err != nil {
			return l.errorf(decerr.MalformedData, pc, "%v", err)
		}
		l.at[pc] = len(l.code)
		l.code = append(l.code, d)
		pc = d.Next()
	}
	return nil
}

// pairNameCalls matches every NAMECALL with the CALL that consumes it.
// Argument setup may branch, so the pair can be in different blocks.
// Method calls in arguments nest, so pending NAMECALLs form a stack.
func (l *lifter) pairNameCalls() error {
	var pending []luaucode.Decoded
	for _, d := range l.code {
		switch d.OpCode() {
		case luaucode.OpNameCall:
			pending = append(pending, d)
		case luaucode.OpCall:
			if len(pending) == 0 {
				continue
			}
			nc := pending[len(pending)-1]
			switch a := d.ArgA(); {
			case a > nc.ArgA():
				// Plain call in an argument.
			case a == nc.ArgA():
				if l.nameCalls == nil {
					l.nameCalls = make(map[int]luaucode.Decoded)
				}
				l.nameCalls[d.PC] = nc
				pending = pending[:len(pending)-1]
			default:
				return l.errorf(decerr.InvariantViolation, d.PC, "CALL %d follows NAMECALL %d", a, nc.ArgA())
			}
		}
	}
	if len(pending) > 0 {
		return l.errorf(decerr.InvariantViolation, pending[len(pending)-1].PC, "NAMECALL without CALL")
	}
	return nil
}

// target returns the validated destination of a branch.
func (l *lifter) target(d luaucode.Decoded, pc int) (int, error) {
	if pc < 0 || pc >= len(l.at) {
		return 0, l.errorf(decerr.InvariantViolation, d.PC, "%v jumps to pc %d outside [0, %d)", d.OpCode(), pc, len(l.at))
	}
	if l.at[pc] < 0 {
		return 0, l.errorf(decerr.InvariantViolation, d.PC, "%v jumps into the auxiliary word at pc %d", d.OpCode(), pc)
	}
	return pc, nil
}

// branchTarget returns the destination of d if d transfers control.
func (l *lifter) branchTarget(d luaucode.Decoded) (_ int, ok bool, err error) {
	var pc int
	switch op := d.OpCode(); {
	case op == luaucode.OpLoadB:
		if d.ArgC() == 0 {
			return 0, false, nil
		}
		pc = d.PC + 1 + int(d.ArgC())
	case op.IsJump():
		pc, _ = d.Target()
	default:
		return 0, false, nil
	}
	pc, err = l.target(d, pc)
	if err != nil {
		return 0, false, err
	}
	return pc, true, nil
}

// findLeaders returns the set of program counters that start a basic block.
func (l *lifter) findLeaders() (*bitset.Set, error) {
	leaders := bitset.Of(0)
	for _, d := range l.code {
		t, isBranch, err := l.branchTarget(d)
		if err != nil {
			return nil, err
		}
		if isBranch {
			leaders.Add(t)
		}
		if (isBranch || d.OpCode() == luaucode.OpReturn) && d.Next() < len(l.at) {
			leaders.Add(d.Next())
		}
	}
	return leaders, nil
}

// split partitions the instruction stream at leaders
// and connects the resulting blocks.
func (l *lifter) split(leaders *bitset.Set) ([]*Block, error) {
	var blocks []*Block
	blockAt := make(map[int]int)
	for pc := range leaders.All() {
		blockAt[pc] = len(blocks)
		blocks = append(blocks, &Block{ID: len(blocks), Start: pc})
	}
	for i, b := range blocks {
		if i+1 < len(blocks) {
			b.End = blocks[i+1].Start
		} else {
			b.End = len(l.at)
		}
	}

	for _, b := range blocks {
		last := l.lastInBlock(b)
		op := last.OpCode()
		t, isBranch, err := l.branchTarget(last)
		if err != nil {
			return nil, err
		}
		fallthroughBlock := func() (int, error) {
			if b.End >= len(l.at) {
				return 0, l.errorf(decerr.InvariantViolation, last.PC, "control falls off the end of the function")
			}
			return blockAt[b.End], nil
		}
		switch {
		case op == luaucode.OpReturn:
		case op.IsConditional() || op == luaucode.OpForNPrep || op == luaucode.OpForNLoop || op == luaucode.OpForGLoop:
			next, err := fallthroughBlock()
			if err != nil {
				return nil, err
			}
			b.Succs = []int{blockAt[t], next}
		case isBranch:
			b.Succs = []int{blockAt[t]}
		default:
			next, err := fallthroughBlock()
			if err != nil {
				return nil, err
			}
			b.Succs = []int{next}
		}
	}
	return blocks, nil
}

func (l *lifter) lastInBlock(b *Block) luaucode.Decoded {
	i := l.at[b.End-1]
	if i < 0 {
		// Back up over an auxiliary word.
		i = l.at[b.End-2]
	}
	return l.code[i]
}

// dropUnreachable removes blocks not reachable from the entry
// and renumbers the remaining blocks.
func (l *lifter) dropUnreachable(ctx context.Context, blocks []*Block) []*Block {
	reached := bitset.Of(0)
	work := worklist.Of(0)
	for {
		id, ok := work.Pop()
		if !ok {
			break
		}
		for _, s := range blocks[id].Succs {
			if !reached.Has(s) {
				reached.Add(s)
				work.Push(s)
			}
		}
	}
	if reached.Len() == len(blocks) {
		return blocks
	}

	newID := make([]int, len(blocks))
	kept := blocks[:0:0]
	for _, b := range blocks {
		if !reached.Has(b.ID) {
			log.Warnf(ctx, "Function %d: dropping unreachable code at pc %d-%d", l.index, b.Start, b.End-1)
			newID[b.ID] = -1
			continue
		}
		newID[b.ID] = len(kept)
		kept = append(kept, b)
	}
	for _, b := range kept {
		b.ID = newID[b.ID]
		for i, s := range b.Succs {
			b.Succs[i] = newID[s]
		}
	}
	return kept
}

// liftBlock translates the instructions of b.
func (l *lifter) liftBlock(b *Block) error {
	l.top = -1
	first := l.at[b.Start]
	end := len(l.code)
	if b.End < len(l.at) {
		end = l.at[b.End]
	}
	for i := first; i < end; i++ {
		d := l.code[i]
		if d.OpCode() == luaucode.OpNewClosure || d.OpCode() == luaucode.OpDupClosure {
			n := 0
			for i+1+n < end && l.code[i+1+n].OpCode() == luaucode.OpCapture {
				n++
			}
			if err := l.liftClosure(b, d, l.code[i+1:i+1+n]); err != nil {
				return err
			}
			i += n
			continue
		}
		if err := l.liftInst(b, d); err != nil {
			return err
		}
	}
	if len(b.Succs) == 2 && b.Cond == nil {
		return l.errorf(decerr.InvariantViolation, b.End-1, "conditional block without a predicate")
	}
	return nil
}

func (l *lifter) liftClosure(b *Block, d luaucode.Decoded, captures []luaucode.Decoded) error {
	c := &Closure{Function: -1}
	switch d.OpCode() {
	case luaucode.OpNewClosure:
		child := int(d.ArgD())
		if child < 0 || child >= len(l.proto.Children) {
			return l.errorf(decerr.MalformedData, d.PC, "child function %d out of range", child)
		}
		c.Function = l.proto.Children[child]
	case luaucode.OpDupClosure:
		k, err := l.constantAt(d, int(d.ArgD()))
		if err != nil {
			return err
		}
		fn, ok := k.Function()
		if !ok {
			return l.errorf(decerr.MalformedData, d.PC, "DUPCLOSURE of %v constant", k.Kind())
		}
		c.Function = fn
	}
	for _, capt := range captures {
		kind := CaptureKind(capt.ArgA())
		if kind > CaptureUpvalue {
			return l.errorf(decerr.MalformedData, capt.PC, "unknown capture type %d", kind)
		}
		c.Captures = append(c.Captures, Capture{Kind: kind, Index: int(capt.ArgB())})
	}
	if c.Function >= 0 && c.Function < len(l.chunk.Functions) {
		if want := int(l.chunk.Functions[c.Function].NumUpvalues); want != len(c.Captures) {
			return l.errorf(decerr.InvariantViolation, d.PC, "closure of function %d has %d captures (expected %d)", c.Function, len(c.Captures), want)
		}
	}
	b.Insts = append(b.Insts, &Assign{Context: d.Context, Dest: Slot(d.ArgA()), Value: c})
	return nil
}

func (l *lifter) constantAt(d luaucode.Decoded, k int) (luaucode.Constant, error) {
	if k < 0 || k >= len(l.proto.Constants) {
		return luaucode.Constant{}, l.errorf(decerr.MalformedData, d.PC, "constant %d out of range", k)
	}
	return l.proto.Constants[k], nil
}

// constant converts the constant with index k to an expression.
func (l *lifter) constant(d luaucode.Decoded, k int) (Expr, error) {
	c, err := l.constantAt(d, k)
	if err != nil {
		return nil, err
	}
	switch c.Kind() {
	case luaucode.ConstantNil:
		return Nil{}, nil
	case luaucode.ConstantBoolean:
		v, _ := c.Bool()
		return Boolean{v}, nil
	case luaucode.ConstantNumber:
		v, _ := c.Number()
		return Number{v}, nil
	case luaucode.ConstantString:
		sym, _ := c.Symbol()
		s, ok := l.chunk.Symbol(sym)
		if !ok {
			return nil, l.errorf(decerr.MalformedData, d.PC, "constant %d refers to symbol %d out of range", k, sym)
		}
		return String{s}, nil
	case luaucode.ConstantImport:
		var path []string
		for _, id := range c.ImportPath() {
			s, ok := l.chunk.ConstantString(l.proto, id)
			if !ok {
				return nil, l.errorf(decerr.MalformedData, d.PC, "import constant %d refers to non-string constant %d", k, id)
			}
			path = append(path, s)
		}
		return Import{Path: path}, nil
	case luaucode.ConstantTable:
		t := new(NewTable)
		for _, key := range c.TableKeys() {
			kx, err := l.constant(d, key)
			if err != nil {
				return nil, err
			}
			t.Keys = append(t.Keys, kx)
		}
		t.HashSize = len(t.Keys)
		return t, nil
	case luaucode.ConstantClosure:
		fn, _ := c.Function()
		return &Closure{Function: fn}, nil
	case luaucode.ConstantVector:
		v, _ := c.Vector()
		return Vector{v[0], v[1], v[2], v[3]}, nil
	default:
		return nil, l.errorf(decerr.MalformedData, d.PC, "constant %d has unknown kind %v", k, c.Kind())
	}
}

// stringConstant returns the string value of constant k.
func (l *lifter) stringConstant(d luaucode.Decoded, k int) (string, error) {
	x, err := l.constant(d, k)
	if err != nil {
		return "", err
	}
	s, ok := x.(String)
	if !ok {
		return "", l.errorf(decerr.MalformedData, d.PC, "%v expects a string constant (got %T)", d.OpCode(), x)
	}
	return s.Value, nil
}

// openRange returns references to registers from start up to the pending
// multi-value result.
func (l *lifter) openRange(d luaucode.Decoded, start int) ([]Expr, error) {
	if l.top < 0 {
		return nil, l.errorf(decerr.InvariantViolation, d.PC, "%v uses multiple results but none are pending", d.OpCode())
	}
	if l.top < start {
		return nil, l.errorf(decerr.InvariantViolation, d.PC, "%v multiple results start at %d before operand %d", d.OpCode(), l.top, start)
	}
	exprs := slotRefs(start, l.top-start+1)
	l.top = -1
	return exprs, nil
}

func slotRefs(start, n int) []Expr {
	if n <= 0 {
		return nil
	}
	exprs := make([]Expr, 0, n)
	for i := range n {
		exprs = append(exprs, SlotRef{Slot(start + i)})
	}
	return exprs
}

var arithOps = map[luaucode.OpCode]BinaryOp{
	luaucode.OpAdd:  OpAdd,
	luaucode.OpSub:  OpSub,
	luaucode.OpMul:  OpMul,
	luaucode.OpDiv:  OpDiv,
	luaucode.OpMod:  OpMod,
	luaucode.OpPow:  OpPow,
	luaucode.OpIDiv: OpIDiv,
	luaucode.OpAnd:  OpAnd,
	luaucode.OpOr:   OpOr,

	luaucode.OpAddK:  OpAdd,
	luaucode.OpSubK:  OpSub,
	luaucode.OpMulK:  OpMul,
	luaucode.OpDivK:  OpDiv,
	luaucode.OpModK:  OpMod,
	luaucode.OpPowK:  OpPow,
	luaucode.OpIDivK: OpIDiv,
	luaucode.OpAndK:  OpAnd,
	luaucode.OpOrK:   OpOr,

	luaucode.OpSubRK: OpSub,
	luaucode.OpDivRK: OpDiv,
}

func (l *lifter) assign(b *Block, d luaucode.Decoded, dest uint8, value Expr) {
	b.Insts = append(b.Insts, &Assign{Context: d.Context, Dest: Slot(dest), Value: value})
}

// liftInst translates a single instruction
// other than a closure construction.
func (l *lifter) liftInst(b *Block, d luaucode.Decoded) error {
	a, bArg, c := d.ArgA(), d.ArgB(), d.ArgC()
	ra := SlotRef{Slot(a)}
	rb := SlotRef{Slot(bArg)}
	rc := SlotRef{Slot(c)}

	switch op := d.OpCode(); op {
	case luaucode.OpNop, luaucode.OpBreak, luaucode.OpCoverage, luaucode.OpPrepVarArgs, luaucode.OpNativeCall,
		luaucode.OpFastCall, luaucode.OpFastCall1, luaucode.OpFastCall2, luaucode.OpFastCall2K, luaucode.OpFastCall3,
		luaucode.OpJump, luaucode.OpJumpBack, luaucode.OpJumpX:
		// No effect on the recovered program.
	case luaucode.OpLoadNil:
		l.assign(b, d, a, Nil{})
	case luaucode.OpLoadB:
		l.assign(b, d, a, Boolean{bArg != 0})
	case luaucode.OpLoadN:
		l.assign(b, d, a, Number{float64(d.ArgD())})
	case luaucode.OpLoadK, luaucode.OpLoadKX, luaucode.OpGetImport:
		k := int(d.ArgD())
		if op == luaucode.OpLoadKX {
			k = int(d.Aux)
		}
		x, err := l.constant(d, k)
		if err != nil {
			return err
		}
		l.assign(b, d, a, x)
	case luaucode.OpMove:
		l.assign(b, d, a, rb)
	case luaucode.OpGetGlobal:
		name, err := l.stringConstant(d, int(d.Aux))
		if err != nil {
			return err
		}
		l.assign(b, d, a, Global{name})
	case luaucode.OpSetGlobal:
		name, err := l.stringConstant(d, int(d.Aux))
		if err != nil {
			return err
		}
		b.Insts = append(b.Insts, &SetGlobal{Context: d.Context, Name: name, Value: ra})
	case luaucode.OpGetUpval:
		l.assign(b, d, a, Upvalue{int(bArg)})
	case luaucode.OpSetUpval:
		b.Insts = append(b.Insts, &SetUpvalue{Context: d.Context, Index: int(bArg), Value: ra})
	case luaucode.OpCloseUpvals:
		b.Insts = append(b.Insts, &CloseUpvalues{Context: d.Context, From: Slot(a)})
	case luaucode.OpGetTable:
		l.assign(b, d, a, &Index{Table: rb, Key: rc})
	case luaucode.OpSetTable:
		b.Insts = append(b.Insts, &SetIndex{Context: d.Context, Table: rb, Key: rc, Value: ra})
	case luaucode.OpGetTableKS, luaucode.OpSetTableKS:
		key, err := l.stringConstant(d, int(d.Aux))
		if err != nil {
			return err
		}
		if op == luaucode.OpGetTableKS {
			l.assign(b, d, a, &Index{Table: rb, Key: String{key}})
		} else {
			b.Insts = append(b.Insts, &SetIndex{Context: d.Context, Table: rb, Key: String{key}, Value: ra})
		}
	case luaucode.OpGetTableN:
		l.assign(b, d, a, &Index{Table: rb, Key: Number{float64(c) + 1}})
	case luaucode.OpSetTableN:
		b.Insts = append(b.Insts, &SetIndex{Context: d.Context, Table: rb, Key: Number{float64(c) + 1}, Value: ra})
	case luaucode.OpNameCall:
		if obj := int(d.ArgB()); obj >= int(a)+2 {
			// The arguments may overwrite the object register,
			// so read it here.
			method, err := l.stringConstant(d, int(d.Aux))
			if err != nil {
				return err
			}
			b.Insts = append(b.Insts,
				&Assign{Context: d.Context, Dest: Slot(a) + 1, Value: SlotRef{Slot(obj)}},
				&Assign{Context: d.Context, Dest: Slot(a), Value: &Index{Table: SlotRef{Slot(a) + 1}, Key: String{method}}},
			)
		}
	case luaucode.OpCall:
		return l.liftCall(b, d)
	case luaucode.OpReturn:
		ret := &Return{Context: d.Context}
		if bArg == 0 {
			values, err := l.openRange(d, int(a))
			if err != nil {
				return err
			}
			ret.Values, ret.VarTail = values, true
		} else {
			ret.Values = slotRefs(int(a), int(bArg)-1)
		}
		b.Insts = append(b.Insts, ret)
	case luaucode.OpGetVarArgs:
		count := int(bArg) - 1
		if count < 0 {
			l.top = int(a)
		}
		b.Insts = append(b.Insts, &LoadVarArgs{Context: d.Context, Base: Slot(a), Count: count})
	case luaucode.OpAdd, luaucode.OpSub, luaucode.OpMul, luaucode.OpDiv, luaucode.OpMod, luaucode.OpPow,
		luaucode.OpIDiv, luaucode.OpAnd, luaucode.OpOr:
		l.assign(b, d, a, &Binary{Op: arithOps[op], Left: rb, Right: rc})
	case luaucode.OpAddK, luaucode.OpSubK, luaucode.OpMulK, luaucode.OpDivK, luaucode.OpModK, luaucode.OpPowK,
		luaucode.OpIDivK, luaucode.OpAndK, luaucode.OpOrK:
		k, err := l.constant(d, int(c))
		if err != nil {
			return err
		}
		l.assign(b, d, a, &Binary{Op: arithOps[op], Left: rb, Right: k})
	case luaucode.OpSubRK, luaucode.OpDivRK:
		k, err := l.constant(d, int(bArg))
		if err != nil {
			return err
		}
		l.assign(b, d, a, &Binary{Op: arithOps[op], Left: k, Right: rc})
	case luaucode.OpConcat:
		if c < bArg {
			return l.errorf(decerr.MalformedData, d.PC, "CONCAT range %d..%d is empty", bArg, c)
		}
		l.assign(b, d, a, &Concat{Operands: slotRefs(int(bArg), int(c-bArg)+1)})
	case luaucode.OpNot:
		l.assign(b, d, a, &Unary{Op: OpNot, Operand: rb})
	case luaucode.OpMinus:
		l.assign(b, d, a, &Unary{Op: OpNeg, Operand: rb})
	case luaucode.OpLength:
		l.assign(b, d, a, &Unary{Op: OpLen, Operand: rb})
	case luaucode.OpNewTable:
		t := &NewTable{ArraySize: int(d.Aux)}
		if bArg > 0 {
			t.HashSize = 1 << (bArg - 1)
		}
		l.assign(b, d, a, t)
	case luaucode.OpDupTable:
		x, err := l.constant(d, int(d.ArgD()))
		if err != nil {
			return err
		}
		if _, ok := x.(*NewTable); !ok {
			return l.errorf(decerr.MalformedData, d.PC, "DUPTABLE of non-table constant %d", d.ArgD())
		}
		l.assign(b, d, a, x)
	case luaucode.OpSetList:
		sl := &SetList{Context: d.Context, Table: Slot(a), Start: int(d.Aux)}
		if c == 0 {
			values, err := l.openRange(d, int(bArg))
			if err != nil {
				return err
			}
			sl.Values, sl.VarTail = values, true
		} else {
			sl.Values = slotRefs(int(bArg), int(c)-1)
		}
		b.Insts = append(b.Insts, sl)
	case luaucode.OpForGPrep, luaucode.OpForGPrepNext, luaucode.OpForGPrepINext:
		b.Insts = append(b.Insts, &ForGenPrep{Context: d.Context, Base: Slot(a)})
	case luaucode.OpForNPrep:
		b.Cond = &Condition{Context: d.Context, Op: CondForNumPrep, Base: Slot(a)}
	case luaucode.OpForNLoop:
		b.Cond = &Condition{Context: d.Context, Op: CondForNumLoop, Base: Slot(a)}
	case luaucode.OpForGLoop:
		b.Cond = &Condition{Context: d.Context, Op: CondForGenLoop, Base: Slot(a), VarCount: int(d.Aux & 0xff)}
	case luaucode.OpJumpIf, luaucode.OpJumpIfNot:
		b.Cond = &Condition{Context: d.Context, Op: CondTruthy, Negated: op == luaucode.OpJumpIfNot, Left: ra}
	case luaucode.OpJumpIfEq, luaucode.OpJumpIfNotEq,
		luaucode.OpJumpIfLe, luaucode.OpJumpIfNotLe,
		luaucode.OpJumpIfLt, luaucode.OpJumpIfNotLt:
		cond := &Condition{Context: d.Context, Left: ra, Right: SlotRef{Slot(d.Aux)}}
		switch op {
		case luaucode.OpJumpIfEq, luaucode.OpJumpIfNotEq:
			cond.Op = CondEq
		case luaucode.OpJumpIfLe, luaucode.OpJumpIfNotLe:
			cond.Op = CondLe
		default:
			cond.Op = CondLt
		}
		cond.Negated = op == luaucode.OpJumpIfNotEq || op == luaucode.OpJumpIfNotLe || op == luaucode.OpJumpIfNotLt
		b.Cond = cond
	case luaucode.OpJumpXEqKNil, luaucode.OpJumpXEqKB, luaucode.OpJumpXEqKN, luaucode.OpJumpXEqKS:
		cond := &Condition{Context: d.Context, Op: CondEq, Negated: d.Aux>>31 != 0, Left: ra}
		switch op {
		case luaucode.OpJumpXEqKNil:
			cond.Right = Nil{}
		case luaucode.OpJumpXEqKB:
			cond.Right = Boolean{d.Aux&1 != 0}
		default:
			k, err := l.constant(d, int(d.Aux&0xffffff))
			if err != nil {
				return err
			}
			cond.Right = k
		}
		b.Cond = cond
	case luaucode.OpCapture:
		return l.errorf(decerr.InvariantViolation, d.PC, "CAPTURE outside of closure construction")
	default:
		return l.errorf(decerr.MalformedData, d.PC, "unhandled opcode %v", op)
	}
	return nil
}

func (l *lifter) liftCall(b *Block, d luaucode.Decoded) error {
	a, nargs, nresults := int(d.ArgA()), int(d.ArgB())-1, int(d.ArgC())-1
	call := &Call{
		Context: d.Context,
		Base:    Slot(a),
		Func:    SlotRef{Slot(a)},
		Results: nresults,
	}
	if nargs < 0 {
		args, err := l.openRange(d, a+1)
		if err != nil {
			return err
		}
		call.Args, call.VarTail = args, true
	} else {
		call.Args = slotRefs(a+1, nargs)
	}

	if nc, ok := l.nameCalls[d.PC]; ok && int(nc.ArgB()) < a+2 {
		method, err := l.stringConstant(nc, int(nc.Aux))
		if err != nil {
			return err
		}
		if len(call.Args) == 0 {
			return l.errorf(decerr.InvariantViolation, d.PC, "method call without self argument")
		}
		call.Func = nil
		call.Object = SlotRef{Slot(nc.ArgB())}
		call.Method = method
		call.Args = slices.Delete(call.Args, 0, 1)
	}
	if nresults < 0 {
		l.top = a
	}
	b.Insts = append(b.Insts, call)
	return nil
}

// String formats the condition for debugging.
func (c *Condition) String() string {
	if c.Op.IsLoop() {
		return fmt.Sprintf("%v r%d", c.Op, c.Base)
	}
	not := ""
	if c.Negated {
		not = "not "
	}
	return fmt.Sprintf("%s%v", not, c.Op)
}
