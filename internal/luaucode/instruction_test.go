// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"slices"
	"testing"
)

func TestInstructionOperands(t *testing.T) {
	i := ABCInstruction(OpAdd, 1, 2, 250)
	if got := i.OpCode(); got != OpAdd {
		t.Errorf("OpCode() = %v; want ADD", got)
	}
	if i.ArgA() != 1 || i.ArgB() != 2 || i.ArgC() != 250 {
		t.Errorf("ArgA(), ArgB(), ArgC() = %d, %d, %d; want 1, 2, 250", i.ArgA(), i.ArgB(), i.ArgC())
	}

	j := ADInstruction(OpJumpBack, 0, -5)
	if got := j.ArgD(); got != -5 {
		t.Errorf("ArgD() = %d; want -5", got)
	}
	if off, ok := j.JumpOffset(); !ok || off != -5 {
		t.Errorf("JumpOffset() = %d, %t; want -5, true", off, ok)
	}

	x := EInstruction(OpJumpX, -(1 << 23))
	if got := x.ArgE(); got != -(1 << 23) {
		t.Errorf("ArgE() = %d; want %d", got, -(1 << 23))
	}
	x = EInstruction(OpJumpX, 1<<23-1)
	if got := x.ArgE(); got != 1<<23-1 {
		t.Errorf("ArgE() = %d; want %d", got, 1<<23-1)
	}

	if _, ok := ABCInstruction(OpMove, 0, 1, 0).JumpOffset(); ok {
		t.Error("MOVE reports a jump offset")
	}
}

func TestDecodedTarget(t *testing.T) {
	f := &Function{
		Code: []Instruction{
			ADInstruction(OpJumpIfEq, 0, 2),
			1,
			ADInstruction(OpLoadN, 0, 1),
			ABCInstruction(OpReturn, 0, 1, 0),
			ADInstruction(OpJumpBack, 0, -5),
		},
	}
	tests := []struct {
		pc     int
		next   int
		target int
		jump   bool
	}{
		{pc: 0, next: 2, target: 3, jump: true},
		{pc: 2, next: 3},
		{pc: 4, next: 5, target: 0, jump: true},
	}
	for _, test := range tests {
		d, err := f.Decode(test.pc)
		if err != nil {
			t.Errorf("Decode(%d): %v", test.pc, err)
			continue
		}
		if got := d.Next(); got != test.next {
			t.Errorf("Decode(%d).Next() = %d; want %d", test.pc, got, test.next)
		}
		target, ok := d.Target()
		if ok != test.jump || (ok && target != test.target) {
			t.Errorf("Decode(%d).Target() = %d, %t; want %d, %t", test.pc, target, ok, test.target, test.jump)
		}
	}
	if d, _ := f.Decode(0); d.Aux != 1 {
		t.Errorf("Decode(0).Aux = %d; want 1", d.Aux)
	}

	var pcs []int
	for d := range f.Instructions() {
		pcs = append(pcs, d.PC)
	}
	if want := []int{0, 2, 3, 4}; !slices.Equal(pcs, want) {
		t.Errorf("Instructions() pcs = %v; want %v", pcs, want)
	}
}

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		op   OpCode
		want string
	}{
		{OpNop, "NOP"},
		{OpForGPrepINext, "FORGPREP_INEXT"},
		{OpIDivK, "IDIVK"},
		{OpCode(200), "OpCode(200)"},
	}
	for _, test := range tests {
		if got := test.op.String(); got != test.want {
			t.Errorf("OpCode(%d).String() = %q; want %q", uint8(test.op), got, test.want)
		}
	}
	if OpCode(200).IsValid() {
		t.Error("OpCode(200).IsValid() = true")
	}
}
