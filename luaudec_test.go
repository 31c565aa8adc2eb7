// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaudec

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/testcontext"
	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func mainChunk(numParams uint8, code []luaucode.Instruction, constants ...luaucode.Constant) *luaucode.Chunk {
	return &luaucode.Chunk{
		Version:      5,
		TypesVersion: 1,
		Functions: []*luaucode.Function{{
			MaxStackSize: 2,
			NumParams:    numParams,
			Code:         code,
			Constants:    constants,
		}},
	}
}

func marshal(tb testing.TB, chunk *luaucode.Chunk) []byte {
	tb.Helper()
	data, err := chunk.MarshalBinary()
	if err != nil {
		tb.Fatal(err)
	}
	return data
}

func decompile(tb testing.TB, data []byte, opts *Options, format Format) string {
	tb.Helper()
	ctx := testcontext.New(tb)
	result, err := Decode(ctx, bytes.NewReader(data), opts)
	if err != nil {
		tb.Fatal("Decode:", err)
	}
	sb := new(strings.Builder)
	if err := Render(sb, result, format); err != nil {
		tb.Fatal("Render:", err)
	}
	return sb.String()
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		chunk *luaucode.Chunk
		opts  *Options
		want  string
	}{
		{
			name: "ReturnConstant",
			chunk: mainChunk(0, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpLoadN, 0, 5),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 2, 0),
			}),
			want: "return 5\n",
		},
		{
			name: "IfElse",
			chunk: mainChunk(1, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 0, 2),
				luaucode.ADInstruction(luaucode.OpLoadN, 1, 1),
				luaucode.ABCInstruction(luaucode.OpReturn, 1, 2, 0),
				luaucode.ADInstruction(luaucode.OpLoadN, 1, 2),
				luaucode.ABCInstruction(luaucode.OpReturn, 1, 2, 0),
			}),
			want: "if l_0 then\n\treturn 1\nelse\n\treturn 2\nend\n",
		},
		{
			name: "While",
			chunk: mainChunk(1, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 0, 2),
				luaucode.ABCInstruction(luaucode.OpSubK, 0, 0, 0),
				luaucode.ADInstruction(luaucode.OpJumpBack, 0, -3),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
			}, luaucode.NumberConstant(1)),
			want: "while l_0 do\n\tl_0 = l_0 - 1\nend\n",
		},
		{
			name: "IfInsideWhile",
			chunk: mainChunk(2, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 0, 3),
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 1, 1),
				luaucode.ADInstruction(luaucode.OpLoadN, 0, 1),
				luaucode.ADInstruction(luaucode.OpJumpBack, 0, -4),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
			}),
			want: "while l_0 do\n\tif l_1 then\n\t\tl_0 = 1\n\tend\nend\n",
		},
		{
			name: "IfElseInsideWhile",
			chunk: mainChunk(2, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 0, 5),
				luaucode.ADInstruction(luaucode.OpJumpIfNot, 1, 2),
				luaucode.ADInstruction(luaucode.OpLoadN, 0, 1),
				luaucode.ADInstruction(luaucode.OpJump, 0, 1),
				luaucode.ADInstruction(luaucode.OpLoadN, 0, 2),
				luaucode.ADInstruction(luaucode.OpJumpBack, 0, -6),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
			}),
			want: "while l_0 do\n\tif l_1 then\n\t\tl_0 = 1\n\telse\n\t\tl_0 = 2\n\tend\nend\n",
		},
		{
			name: "HeaderComment",
			chunk: mainChunk(0, []luaucode.Instruction{
				luaucode.ADInstruction(luaucode.OpLoadN, 0, 5),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 2, 0),
			}),
			opts: &Options{HeaderComment: true},
			want: "-- Decompiled with luaudec\n-- Luau bytecode version 5, types version 1\n\nreturn 5\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := decompile(t, marshal(t, test.chunk), test.opts, FormatSource)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("source (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeMethodCallWithBranchingArgument(t *testing.T) {
	// obj:Foo(x or 1)
	chunk := &luaucode.Chunk{
		Version: 5,
		Symbols: []string{"Foo"},
		Functions: []*luaucode.Function{{
			MaxStackSize: 5,
			NumParams:    2,
			Code: []luaucode.Instruction{
				luaucode.ABCInstruction(luaucode.OpNameCall, 2, 0, 0),
				0, // aux: constant 0
				luaucode.ABCInstruction(luaucode.OpMove, 4, 1, 0),
				luaucode.ADInstruction(luaucode.OpJumpIf, 4, 1),
				luaucode.ADInstruction(luaucode.OpLoadN, 4, 1),
				luaucode.ABCInstruction(luaucode.OpCall, 2, 3, 1),
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
			},
			Constants: []luaucode.Constant{luaucode.StringConstant(0)},
		}},
	}
	got := decompile(t, marshal(t, chunk), nil, FormatSource)
	if !strings.Contains(got, "l_0:Foo(") {
		t.Errorf("source = %q; want call to l_0:Foo", got)
	}
}

func TestDecodeRoblox(t *testing.T) {
	chunk := mainChunk(0, []luaucode.Instruction{
		luaucode.ADInstruction(luaucode.OpLoadN, 0, 5),
		luaucode.ABCInstruction(luaucode.OpReturn, 0, 2, 0),
	})
	data, err := chunk.AppendBinary(nil, luaucode.RobloxDecoder)
	if err != nil {
		t.Fatal(err)
	}
	got := decompile(t, data, &Options{OpcodeDecoder: "roblox"}, FormatSource)
	if want := "return 5\n"; got != want {
		t.Errorf("source = %q; want %q", got, want)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	ctx := testcontext.New(t)
	_, err := Decode(ctx, bytes.NewReader([]byte{7, 0, 0, 0}), nil)
	if !errors.Is(err, UnsupportedVersion) {
		t.Fatalf("Decode(...) error = %v; want UnsupportedVersion", err)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Decode(...) error = %v (%T); want *Error", err, err)
	}
	if e.Offset != 0 {
		t.Errorf("Decode(...) error offset = %d; want 0", e.Offset)
	}
}

func TestDecodeForwardTableReference(t *testing.T) {
	chunk := &luaucode.Chunk{
		Version: 3,
		Symbols: []string{"k"},
		Functions: []*luaucode.Function{{
			MaxStackSize: 1,
			Code: []luaucode.Instruction{
				luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
			},
			Constants: []luaucode.Constant{
				luaucode.StringConstant(0),
				luaucode.TableConstant(0, 5),
			},
		}},
	}
	ctx := testcontext.New(t)
	_, err := Decode(ctx, bytes.NewReader(marshal(t, chunk)), nil)
	if !errors.Is(err, MalformedData) {
		t.Fatalf("Decode(...) error = %v; want MalformedData", err)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Decode(...) error = %v (%T); want *Error", err, err)
	}
	if e.IndexName != "constant" || e.Index != 1 {
		t.Errorf("Decode(...) error = %v; want error citing constant 1", err)
	}
}

func TestDecodeUnknownDecoder(t *testing.T) {
	ctx := testcontext.New(t)
	data := marshal(t, mainChunk(0, []luaucode.Instruction{
		luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
	}))
	if _, err := Decode(ctx, bytes.NewReader(data), &Options{OpcodeDecoder: "xyzzy"}); err == nil {
		t.Error("Decode(...) did not return an error")
	}
}

func TestDecodeDeterministic(t *testing.T) {
	// local function add(a, b) return a + b end
	// local function sub(a, b) return a - b end
	// return add, sub
	child := func(op luaucode.OpCode) *luaucode.Function {
		return &luaucode.Function{
			MaxStackSize: 3,
			NumParams:    2,
			Code: []luaucode.Instruction{
				luaucode.ABCInstruction(op, 2, 0, 1),
				luaucode.ABCInstruction(luaucode.OpReturn, 2, 2, 0),
			},
		}
	}
	chunk := &luaucode.Chunk{
		Version: 3,
		Functions: []*luaucode.Function{
			child(luaucode.OpAdd),
			child(luaucode.OpSub),
			{
				MaxStackSize: 2,
				IsVararg:     true,
				Code: []luaucode.Instruction{
					luaucode.ABCInstruction(luaucode.OpPrepVarArgs, 0, 0, 0),
					luaucode.ADInstruction(luaucode.OpNewClosure, 0, 0),
					luaucode.ADInstruction(luaucode.OpNewClosure, 1, 1),
					luaucode.ABCInstruction(luaucode.OpReturn, 0, 3, 0),
				},
				Children: []int{0, 1},
			},
		},
		Main: 2,
	}
	data := marshal(t, chunk)
	for _, format := range Formats() {
		t.Run(format.String(), func(t *testing.T) {
			first := decompile(t, data, &Options{Concurrency: 4}, format)
			if first == "" {
				t.Fatal("empty output")
			}
			for range 10 {
				if got := decompile(t, data, &Options{Concurrency: 4}, format); got != first {
					t.Fatalf("output changed between runs (-first +got):\n%s", cmp.Diff(first, got))
				}
			}
		})
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	ctx := testcontext.New(t)
	data := marshal(t, mainChunk(0, []luaucode.Instruction{
		luaucode.ABCInstruction(luaucode.OpReturn, 0, 1, 0),
	}))
	result, err := Decode(ctx, bytes.NewReader(data), nil)
	if err != nil {
		t.Fatal(err)
	}
	sb := new(strings.Builder)
	err = Render(sb, result, "pdf")
	if !errors.Is(err, RenderError) {
		t.Errorf("Render(..., \"pdf\") = %v; want RenderError", err)
	}
	if sb.Len() > 0 {
		t.Errorf("Render(..., \"pdf\") wrote %q", sb.String())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		s    string
		want Format
	}{
		{"source", FormatSource},
		{"IR", FormatIR},
		{"listing", FormatIR},
		{"dot", FormatDot},
		{"graph", FormatDot},
	}
	for _, test := range tests {
		got, err := ParseFormat(test.s)
		if got != test.want || err != nil {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q, <nil>", test.s, got, err, test.want)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, RenderError) {
		t.Errorf("ParseFormat(\"pdf\") error = %v; want RenderError", err)
	}
}
