// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package ir

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/testcontext"
	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func abc(op luaucode.OpCode, a, b, c uint8) luaucode.Instruction {
	return luaucode.ABCInstruction(op, a, b, c)
}

func ad(op luaucode.OpCode, a uint8, d int16) luaucode.Instruction {
	return luaucode.ADInstruction(op, a, d)
}

func at(pc int) luaucode.Context {
	return luaucode.Context{PC: pc}
}

func singleFunctionChunk(f *luaucode.Function, symbols ...string) *luaucode.Chunk {
	return &luaucode.Chunk{
		Version:   5,
		Symbols:   symbols,
		Functions: []*luaucode.Function{f},
	}
}

var diffOptions = cmp.Options{
	cmpopts.EquateEmpty(),
	cmpopts.IgnoreFields(Function{}, "Proto"),
}

func TestLift(t *testing.T) {
	tests := []struct {
		name  string
		chunk *luaucode.Chunk
		want  *Function
	}{
		{
			name: "ReturnConstant",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 1,
				Code: []luaucode.Instruction{
					ad(luaucode.OpLoadK, 0, 0),
					abc(luaucode.OpReturn, 0, 2, 0),
				},
				Constants: []luaucode.Constant{luaucode.NumberConstant(5)},
			}),
			want: &Function{Blocks: []*Block{{
				ID:    0,
				Start: 0,
				End:   2,
				Insts: []Inst{
					&Assign{Context: at(0), Dest: 0, Value: Number{5}},
					&Return{Context: at(1), Values: []Expr{SlotRef{0}}},
				},
			}}},
		},
		{
			name: "IfElse",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 2,
				NumParams:    1,
				Code: []luaucode.Instruction{
					ad(luaucode.OpJumpIfNot, 0, 2),
					ad(luaucode.OpLoadN, 1, 1),
					abc(luaucode.OpReturn, 1, 2, 0),
					ad(luaucode.OpLoadN, 1, 2),
					abc(luaucode.OpReturn, 1, 2, 0),
				},
			}),
			want: &Function{Blocks: []*Block{
				{
					ID:    0,
					Start: 0,
					End:   1,
					Cond:  &Condition{Context: at(0), Op: CondTruthy, Negated: true, Left: SlotRef{0}},
					Succs: []int{2, 1},
				},
				{
					ID:    1,
					Start: 1,
					End:   3,
					Insts: []Inst{
						&Assign{Context: at(1), Dest: 1, Value: Number{1}},
						&Return{Context: at(2), Values: []Expr{SlotRef{1}}},
					},
					Preds: []int{0},
				},
				{
					ID:    2,
					Start: 3,
					End:   5,
					Insts: []Inst{
						&Assign{Context: at(3), Dest: 1, Value: Number{2}},
						&Return{Context: at(4), Values: []Expr{SlotRef{1}}},
					},
					Preds: []int{0},
				},
			}},
		},
		{
			name: "MethodCall",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 4,
				NumParams:    1,
				Code: []luaucode.Instruction{
					abc(luaucode.OpNameCall, 1, 0, 0),
					0, // aux: constant 0
					ad(luaucode.OpLoadK, 3, 1),
					abc(luaucode.OpCall, 1, 3, 1),
					abc(luaucode.OpReturn, 0, 1, 0),
				},
				Constants: []luaucode.Constant{
					luaucode.StringConstant(0),
					luaucode.NumberConstant(42),
				},
			}, "Fire"),
			want: &Function{Blocks: []*Block{{
				ID:    0,
				Start: 0,
				End:   5,
				Insts: []Inst{
					&Assign{Context: at(2), Dest: 3, Value: Number{42}},
					&Call{
						Context: at(3),
						Base:    1,
						Object:  SlotRef{0},
						Method:  "Fire",
						Args:    []Expr{SlotRef{3}},
						Results: 0,
					},
					&Return{Context: at(4)},
				},
			}}},
		},
		{
			// obj:Foo(x or 1)
			name: "MethodCallWithBranchingArgument",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 5,
				NumParams:    2,
				Code: []luaucode.Instruction{
					abc(luaucode.OpNameCall, 2, 0, 0),
					0, // aux: constant 0
					abc(luaucode.OpMove, 4, 1, 0),
					ad(luaucode.OpJumpIf, 4, 1),
					ad(luaucode.OpLoadN, 4, 1),
					abc(luaucode.OpCall, 2, 3, 1),
					abc(luaucode.OpReturn, 0, 1, 0),
				},
				Constants: []luaucode.Constant{luaucode.StringConstant(0)},
			}, "Foo"),
			want: &Function{Blocks: []*Block{
				{
					ID:    0,
					Start: 0,
					End:   4,
					Insts: []Inst{
						&Assign{Context: at(2), Dest: 4, Value: SlotRef{1}},
					},
					Cond:  &Condition{Context: at(3), Op: CondTruthy, Left: SlotRef{4}},
					Succs: []int{2, 1},
				},
				{
					ID:    1,
					Start: 4,
					End:   5,
					Insts: []Inst{
						&Assign{Context: at(4), Dest: 4, Value: Number{1}},
					},
					Succs: []int{2},
					Preds: []int{0},
				},
				{
					ID:    2,
					Start: 5,
					End:   7,
					Insts: []Inst{
						&Call{
							Context: at(5),
							Base:    2,
							Object:  SlotRef{0},
							Method:  "Foo",
							Args:    []Expr{SlotRef{4}},
							Results: 0,
						},
						&Return{Context: at(6)},
					},
					Preds: []int{0, 1},
				},
			}},
		},
		{
			// a:m(a:n())
			name: "NestedMethodCall",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 5,
				NumParams:    1,
				Code: []luaucode.Instruction{
					abc(luaucode.OpNameCall, 1, 0, 0),
					0, // aux: constant 0
					abc(luaucode.OpNameCall, 3, 0, 0),
					1, // aux: constant 1
					abc(luaucode.OpCall, 3, 2, 2),
					abc(luaucode.OpCall, 1, 3, 1),
					abc(luaucode.OpReturn, 0, 1, 0),
				},
				Constants: []luaucode.Constant{
					luaucode.StringConstant(0),
					luaucode.StringConstant(1),
				},
			}, "m", "n"),
			want: &Function{Blocks: []*Block{{
				ID:    0,
				Start: 0,
				End:   7,
				Insts: []Inst{
					&Call{
						Context: at(4),
						Base:    3,
						Object:  SlotRef{0},
						Method:  "n",
						Results: 1,
					},
					&Call{
						Context: at(5),
						Base:    1,
						Object:  SlotRef{0},
						Method:  "m",
						Args:    []Expr{SlotRef{3}},
						Results: 0,
					},
					&Return{Context: at(6)},
				},
			}}},
		},
		{
			name: "MultipleResults",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 2,
				Code: []luaucode.Instruction{
					abc(luaucode.OpGetGlobal, 0, 0, 0),
					0, // aux: constant 0
					abc(luaucode.OpGetVarArgs, 1, 0, 0),
					abc(luaucode.OpCall, 0, 0, 0),
					abc(luaucode.OpReturn, 0, 0, 0),
				},
				IsVararg:  true,
				Constants: []luaucode.Constant{luaucode.StringConstant(0)},
			}, "f"),
			want: &Function{Blocks: []*Block{{
				ID:    0,
				Start: 0,
				End:   5,
				Insts: []Inst{
					&Assign{Context: at(0), Dest: 0, Value: Global{"f"}},
					&LoadVarArgs{Context: at(2), Base: 1, Count: -1},
					&Call{
						Context: at(3),
						Base:    0,
						Func:    SlotRef{0},
						Args:    []Expr{SlotRef{1}},
						VarTail: true,
						Results: -1,
					},
					&Return{Context: at(4), Values: []Expr{SlotRef{0}}, VarTail: true},
				},
			}}},
		},
		{
			name: "NumericFor",
			chunk: singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 4,
				Code: []luaucode.Instruction{
					ad(luaucode.OpLoadN, 2, 1),
					ad(luaucode.OpLoadN, 0, 10),
					ad(luaucode.OpLoadN, 1, 1),
					ad(luaucode.OpForNPrep, 0, 2),
					abc(luaucode.OpMove, 3, 2, 0),
					ad(luaucode.OpForNLoop, 0, -2),
					abc(luaucode.OpReturn, 0, 1, 0),
				},
			}),
			want: &Function{Blocks: []*Block{
				{
					ID:    0,
					Start: 0,
					End:   4,
					Insts: []Inst{
						&Assign{Context: at(0), Dest: 2, Value: Number{1}},
						&Assign{Context: at(1), Dest: 0, Value: Number{10}},
						&Assign{Context: at(2), Dest: 1, Value: Number{1}},
					},
					Cond:  &Condition{Context: at(3), Op: CondForNumPrep, Base: 0},
					Succs: []int{2, 1},
				},
				{
					ID:    1,
					Start: 4,
					End:   6,
					Insts: []Inst{
						&Assign{Context: at(4), Dest: 3, Value: SlotRef{2}},
					},
					Cond:  &Condition{Context: at(5), Op: CondForNumLoop, Base: 0},
					Succs: []int{1, 2},
					Preds: []int{0, 1},
				},
				{
					ID:    2,
					Start: 6,
					End:   7,
					Insts: []Inst{
						&Return{Context: at(6)},
					},
					Preds: []int{0, 1},
				},
			}},
		},
		{
			name: "Closure",
			chunk: &luaucode.Chunk{
				Version: 5,
				Functions: []*luaucode.Function{
					{
						NumUpvalues: 2,
						Code:        []luaucode.Instruction{abc(luaucode.OpReturn, 0, 1, 0)},
					},
					{
						MaxStackSize: 2,
						NumUpvalues:  1,
						Code: []luaucode.Instruction{
							ad(luaucode.OpNewClosure, 1, 0),
							abc(luaucode.OpCapture, 1, 0, 0),
							abc(luaucode.OpCapture, 2, 0, 0),
							abc(luaucode.OpReturn, 1, 2, 0),
						},
						Children: []int{0},
					},
				},
				Main: 1,
			},
			want: &Function{Blocks: []*Block{{
				ID:    0,
				Start: 0,
				End:   4,
				Insts: []Inst{
					&Assign{Context: at(0), Dest: 1, Value: &Closure{
						Function: 0,
						Captures: []Capture{
							{Kind: CaptureReference, Index: 0},
							{Kind: CaptureUpvalue, Index: 0},
						},
					}},
					&Return{Context: at(3), Values: []Expr{SlotRef{1}}},
				},
			}}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testcontext.New(t)
			got, err := Lift(ctx, test.chunk, test.chunk.Main)
			if err != nil {
				t.Fatal(err)
			}
			test.want.Index = test.chunk.Main
			if diff := cmp.Diff(test.want, got, diffOptions); diff != "" {
				t.Errorf("Lift (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLiftDropsUnreachable(t *testing.T) {
	ctx := testcontext.New(t)
	chunk := singleFunctionChunk(&luaucode.Function{
		MaxStackSize: 1,
		Code: []luaucode.Instruction{
			abc(luaucode.OpReturn, 0, 1, 0),
			abc(luaucode.OpLoadNil, 0, 0, 0),
			abc(luaucode.OpReturn, 0, 2, 0),
		},
	})
	f, err := Lift(ctx, chunk, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Blocks) != 1 {
		t.Errorf("len(f.Blocks) = %d; want 1", len(f.Blocks))
	}
}

func TestLiftErrors(t *testing.T) {
	tests := []struct {
		name   string
		code   []luaucode.Instruction
		wantPC int
	}{
		{
			name: "JumpPastEnd",
			code: []luaucode.Instruction{
				ad(luaucode.OpJump, 0, 10),
				abc(luaucode.OpReturn, 0, 1, 0),
			},
			wantPC: 0,
		},
		{
			name: "JumpBeforeStart",
			code: []luaucode.Instruction{
				abc(luaucode.OpReturn, 0, 1, 0),
				ad(luaucode.OpJumpBack, 0, -5),
			},
			wantPC: 1,
		},
		{
			name: "JumpIntoAux",
			code: []luaucode.Instruction{
				ad(luaucode.OpJump, 0, 1),
				abc(luaucode.OpGetGlobal, 0, 0, 0),
				0,
				abc(luaucode.OpReturn, 0, 1, 0),
			},
			wantPC: 0,
		},
		{
			name: "FallsOffEnd",
			code: []luaucode.Instruction{
				abc(luaucode.OpLoadNil, 0, 0, 0),
			},
			wantPC: 0,
		},
		{
			name: "OpenResultsWithoutProducer",
			code: []luaucode.Instruction{
				abc(luaucode.OpReturn, 0, 0, 0),
			},
			wantPC: 0,
		},
		{
			name: "NameCallWithoutCall",
			code: []luaucode.Instruction{
				abc(luaucode.OpNameCall, 0, 0, 0),
				0, // aux: constant 0
				abc(luaucode.OpReturn, 0, 1, 0),
			},
			wantPC: 0,
		},
		{
			name: "StrayCapture",
			code: []luaucode.Instruction{
				abc(luaucode.OpCapture, 0, 0, 0),
				abc(luaucode.OpReturn, 0, 1, 0),
			},
			wantPC: 0,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ctx := testcontext.New(t)
			chunk := singleFunctionChunk(&luaucode.Function{
				MaxStackSize: 1,
				Code:         test.code,
				Constants:    []luaucode.Constant{luaucode.StringConstant(0)},
			}, "g")
			f, err := Lift(ctx, chunk, 0)
			if err == nil {
				t.Fatalf("Lift(...) = %+v, <nil>; want error", f)
			}
			if !errors.Is(err, decerr.InvariantViolation) {
				t.Errorf("Lift(...) error = %v; want InvariantViolation", err)
			}
			var e *decerr.Error
			if !errors.As(err, &e) {
				t.Fatalf("Lift(...) error is %T; want *decerr.Error", err)
			}
			if e.Stage != decerr.StageLift || e.Function != 0 || e.PC != test.wantPC {
				t.Errorf("error at stage %v function %d pc %d; want lift function 0 pc %d", e.Stage, e.Function, e.PC, test.wantPC)
			}
		})
	}
}

// TestEdgeInvariant lifts every prefix-terminated variation of a small
// branchy program and checks the edge invariant on the result.
func TestEdgeInvariant(t *testing.T) {
	programs := [][]luaucode.Instruction{
		{
			ad(luaucode.OpJumpIf, 0, 1),
			ad(luaucode.OpJump, 0, 1),
			abc(luaucode.OpLoadB, 1, 1, 1),
			abc(luaucode.OpLoadB, 1, 0, 0),
			abc(luaucode.OpReturn, 1, 2, 0),
		},
		{
			ad(luaucode.OpJumpIfEq, 0, 2),
			1,
			ad(luaucode.OpJumpBack, 0, -3),
			abc(luaucode.OpReturn, 0, 1, 0),
		},
		{
			ad(luaucode.OpJumpXEqKNil, 0, 1),
			1 << 31,
			abc(luaucode.OpReturn, 0, 1, 0),
			abc(luaucode.OpReturn, 0, 1, 0),
		},
	}
	for i, code := range programs {
		ctx := testcontext.New(t)
		chunk := singleFunctionChunk(&luaucode.Function{MaxStackSize: 2, NumParams: 2, Code: code})
		f, err := Lift(ctx, chunk, 0)
		if err != nil {
			t.Errorf("program %d: %v", i, err)
			continue
		}
		if err := f.CheckEdges(); err != nil {
			t.Errorf("program %d: %v", i, err)
		}
		for _, b := range f.Blocks {
			if n := len(b.Succs); n > 2 || (n == 2) != (b.Cond != nil) {
				t.Errorf("program %d: block %d has %d successors and condition %v", i, b.ID, n, b.Cond)
			}
		}
	}
}

func TestCheckEdges(t *testing.T) {
	f := &Function{Blocks: []*Block{
		{ID: 0, Succs: []int{1, 1}},
		{ID: 1, Preds: []int{0, 0}},
	}}
	err := f.CheckEdges()
	if !errors.Is(err, decerr.InvariantViolation) {
		t.Errorf("CheckEdges() = %v; want InvariantViolation", err)
	}
}
