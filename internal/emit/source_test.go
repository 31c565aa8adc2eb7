// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/structure"
)

func block(stmts ...structure.Stmt) *structure.Block {
	return &structure.Block{Stmts: stmts}
}

func ret(values ...ir.Expr) *structure.Return {
	return &structure.Return{Values: values}
}

func num(v float64) ir.Number {
	return ir.Number{Value: v}
}

func global(name string) ir.Global {
	return ir.Global{Name: name}
}

func str(s string) ir.String {
	return ir.String{Value: s}
}

func render(tb testing.TB, opts *Options, funcs ...*structure.Function) string {
	tb.Helper()
	chunk := &luaucode.Chunk{Version: 5, TypesVersion: 1}
	for i, f := range funcs {
		f.Index = i
		chunk.Functions = append(chunk.Functions, new(luaucode.Function))
	}
	sb := new(strings.Builder)
	if err := Source(sb, chunk, funcs, opts); err != nil {
		tb.Fatal(err)
	}
	return sb.String()
}

func TestSource(t *testing.T) {
	p := &ir.Local{ID: 0, Slot: 0}
	x := &ir.Local{ID: 1, Slot: 1, Name: "x"}
	i := &ir.Local{ID: 2, Slot: 2, Name: "i"}
	k := &ir.Local{ID: 3, Slot: 3, Name: "k"}
	v := &ir.Local{ID: 4, Slot: 4, Name: "v"}

	tests := []struct {
		name  string
		funcs []*structure.Function
		opts  *Options
		want  string
	}{
		{
			name:  "ReturnConstant",
			funcs: []*structure.Function{{Body: block(ret(num(5)))}},
			want:  "return 5\n",
		},
		{
			name: "IfElse",
			funcs: []*structure.Function{{
				Params: []*ir.Local{p},
				Body: block(&structure.If{
					Cond: p,
					Then: block(ret(num(1))),
					Else: block(ret(num(2))),
				}),
			}},
			want: "if l_0 then\n\treturn 1\nelse\n\treturn 2\nend\n",
		},
		{
			name: "While",
			funcs: []*structure.Function{{
				Params: []*ir.Local{p},
				Body: block(&structure.While{
					Cond: p,
					Body: block(&structure.Assign{
						Targets: []ir.Expr{p},
						Values:  []ir.Expr{&ir.Binary{Op: ir.OpSub, Left: p, Right: num(1)}},
					}),
				}),
			}},
			want: "while l_0 do\n\tl_0 = l_0 - 1\nend\n",
		},
		{
			name: "ElseIf",
			funcs: []*structure.Function{{
				Body: block(&structure.If{
					Cond: global("a"),
					Then: block(ret(num(1))),
					Else: block(&structure.If{
						Cond: global("b"),
						Then: block(ret(num(2))),
						Else: block(ret(num(3))),
					}),
				}),
			}},
			want: "if a then\n\treturn 1\nelseif b then\n\treturn 2\nelse\n\treturn 3\nend\n",
		},
		{
			name: "Loops",
			funcs: []*structure.Function{{
				Body: block(
					&structure.NumericFor{
						Var:   i,
						Start: num(10),
						Limit: num(1),
						Step:  num(-1),
						Body:  block(&structure.CallStmt{Call: &ir.CallExpr{Func: global("print"), Args: []ir.Expr{i}}}),
					},
					&structure.GenericFor{
						Vars:   []*ir.Local{k, v},
						Values: []ir.Expr{&ir.CallExpr{Func: global("pairs"), Args: []ir.Expr{global("t")}}},
						Body: block(&structure.If{
							Cond: v,
							Then: block(&structure.Continue{}),
						}, &structure.Break{}),
					},
					&structure.Repeat{
						Body: block(&structure.CallStmt{Call: &ir.CallExpr{Func: global("step")}}),
						Cond: &ir.CallExpr{Func: global("done")},
					},
				),
			}},
			want: "for i = 10, 1, -1 do\n" +
				"\tprint(i)\n" +
				"end\n" +
				"for k, v in pairs(t) do\n" +
				"\tif v then\n" +
				"\t\tcontinue\n" +
				"\tend\n" +
				"\tbreak\n" +
				"end\n" +
				"repeat\n" +
				"\tstep()\n" +
				"until done()\n",
		},
		{
			name: "LocalFunction",
			funcs: []*structure.Function{
				{Body: block(
					&structure.Assign{Local: true, Targets: []ir.Expr{x}, Values: []ir.Expr{num(1)}},
					&structure.Assign{
						Local:   true,
						Targets: []ir.Expr{&ir.Local{ID: 5, Slot: 2, Name: "f"}},
						Values: []ir.Expr{&ir.Closure{
							Function: 1,
							Captures: []ir.Capture{{Kind: ir.CaptureReference, Index: 1, Var: x}},
						}},
					},
				)},
				{Body: block(ret(ir.Upvalue{Index: 0}))},
			},
			want: "local x = 1\nlocal function f()\n\treturn x\nend\n",
		},
		{
			name: "Method",
			funcs: func() []*structure.Function {
				self := &ir.Local{ID: 0, Slot: 0, Name: "self"}
				amount := &ir.Local{ID: 1, Slot: 1, Name: "amount"}
				balance := &ir.Index{Table: self, Key: str("balance")}
				return []*structure.Function{
					{Body: block(&structure.Assign{
						Targets: []ir.Expr{&ir.Index{Table: global("Account"), Key: str("deposit")}},
						Values:  []ir.Expr{&ir.Closure{Function: 1}},
					})},
					{
						Params: []*ir.Local{self, amount},
						Body: block(&structure.Assign{
							Targets: []ir.Expr{balance},
							Values:  []ir.Expr{&ir.Binary{Op: ir.OpAdd, Left: balance, Right: amount}},
						}),
					},
				}
			}(),
			want: "function Account:deposit(amount)\n\tself.balance = self.balance + amount\nend\n",
		},
		{
			name: "AnonymousFunction",
			funcs: []*structure.Function{
				{Body: block(&structure.CallStmt{Call: &ir.CallExpr{
					Func: global("spawn"),
					Args: []ir.Expr{&ir.Closure{Function: 1}},
				}})},
				{
					Params:   []*ir.Local{{ID: 0, Slot: 0, Name: "a"}},
					IsVararg: true,
					Body:     block(ret(ir.VarArgs{})),
				},
			},
			want: "spawn(function(a, ...)\n\treturn ...\nend)\n",
		},
		{
			name: "Precedence",
			funcs: []*structure.Function{{Body: block(ret(
				&ir.Binary{Op: ir.OpMul, Left: &ir.Binary{Op: ir.OpAdd, Left: global("a"), Right: global("b")}, Right: global("c")},
				&ir.Binary{Op: ir.OpSub, Left: global("a"), Right: &ir.Binary{Op: ir.OpSub, Left: global("b"), Right: global("c")}},
				&ir.Binary{Op: ir.OpPow, Left: num(2), Right: &ir.Binary{Op: ir.OpPow, Left: num(3), Right: num(4)}},
				&ir.Binary{Op: ir.OpPow, Left: &ir.Binary{Op: ir.OpPow, Left: num(2), Right: num(3)}, Right: num(4)},
				&ir.Unary{Op: ir.OpNeg, Operand: &ir.Binary{Op: ir.OpPow, Left: global("x"), Right: num(2)}},
				&ir.Unary{Op: ir.OpNot, Operand: &ir.Binary{Op: ir.OpEq, Left: global("a"), Right: global("b")}},
				&ir.Unary{Op: ir.OpNeg, Operand: &ir.Unary{Op: ir.OpNeg, Operand: global("x")}},
				&ir.Binary{Op: ir.OpOr, Left: &ir.Binary{Op: ir.OpAnd, Left: global("a"), Right: global("b")}, Right: global("c")},
				&ir.Binary{Op: ir.OpSub, Left: global("a"), Right: num(-3)},
				&ir.Concat{Operands: []ir.Expr{global("a"), global("b"), &ir.Binary{Op: ir.OpAdd, Left: num(1), Right: num(2)}}},
				&ir.Unary{Op: ir.OpLen, Operand: &ir.Index{Table: &ir.Index{Table: global("t"), Key: str("x")}, Key: num(1)}},
				&ir.CallExpr{Object: str("s"), Method: "upper"},
				&ir.Paren{Value: &ir.CallExpr{Func: global("f")}},
			))}},
			want: "return (a + b) * c, a - (b - c), 2 ^ 3 ^ 4, (2 ^ 3) ^ 4, -x ^ 2, not (a == b), - -x, " +
				"a and b or c, a - -3, a .. b .. 1 + 2, #t.x[1], (\"s\"):upper(), (f())\n",
		},
		{
			name: "Literals",
			funcs: []*structure.Function{{Body: block(ret(
				num(0.5),
				num(1e100),
				num(math.Inf(1)),
				ir.Nil{},
				ir.Boolean{Value: false},
				str("a\"b\\c\n\x01é\xff"),
				&ir.Index{Table: global("t"), Key: str("end")},
				global("not a name"),
				ir.Import{Path: []string{"math", "floor"}},
				ir.Vector{X: 1, Y: 2, Z: 3},
			))}},
			want: "return 0.5, 1e+100, math.huge, nil, false, \"a\\\"b\\\\c\\n\\001é\\255\", " +
				"t[\"end\"], _G[\"not a name\"], math.floor, vector.create(1, 2, 3)\n",
		},
		{
			name: "Tables",
			funcs: []*structure.Function{{Body: block(ret(
				&ir.NewTable{},
				&ir.NewTable{Items: []ir.Expr{num(1), num(2), num(3)}},
				&ir.NewTable{
					Items: []ir.Expr{num(1)},
					Fields: []ir.Field{
						{Key: str("x"), Value: num(3)},
						{Key: str("not valid"), Value: ir.Boolean{Value: true}},
						{Key: num(10), Value: str("ten")},
					},
				},
			))}},
			want: "return {}, {1, 2, 3}, {\n" +
				"\t1,\n" +
				"\tx = 3,\n" +
				"\t[\"not valid\"] = true,\n" +
				"\t[10] = \"ten\",\n" +
				"}\n",
		},
		{
			name: "GuessNames",
			opts: &Options{GuessVariableNames: true},
			funcs: []*structure.Function{{Body: block(
				&structure.Assign{
					Local:   true,
					Targets: []ir.Expr{&ir.Local{ID: 0, Slot: 0}},
					Values: []ir.Expr{&ir.CallExpr{
						Object: global("game"),
						Method: "GetService",
						Args:   []ir.Expr{str("Players")},
					}},
				},
				&structure.Assign{
					Local:   true,
					Targets: []ir.Expr{&ir.Local{ID: 1, Slot: 1}},
					Values: []ir.Expr{&ir.CallExpr{
						Object: global("game"),
						Method: "GetService",
						Args:   []ir.Expr{str("Players")},
					}},
				},
				&structure.Assign{
					Local:   true,
					Targets: []ir.Expr{&ir.Local{ID: 2, Slot: 2}},
					Values: []ir.Expr{&ir.CallExpr{
						Func: global("require"),
						Args: []ir.Expr{&ir.Index{Table: global("script"), Key: str("Util")}},
					}},
				},
				&structure.Assign{
					Local:   true,
					Targets: []ir.Expr{&ir.Local{ID: 3, Slot: 3}},
					Values:  []ir.Expr{&ir.Index{Table: global("script"), Key: str("Parent")}},
				},
				&structure.Assign{
					Local:   true,
					Targets: []ir.Expr{&ir.Local{ID: 4, Slot: 4}},
					Values:  []ir.Expr{num(4)},
				},
			)}},
			want: "local Players = game:GetService(\"Players\")\n" +
				"local Players_2 = game:GetService(\"Players\")\n" +
				"local Util = require(script.Util)\n" +
				"local parent = script.Parent\n" +
				"local l_4 = 4\n",
		},
		{
			name: "NameCollisions",
			funcs: []*structure.Function{{Body: block(
				&structure.Assign{Local: true, Targets: []ir.Expr{&ir.Local{ID: 0, Slot: 0, Name: "print"}}, Values: []ir.Expr{global("print")}},
				&structure.Assign{Local: true, Targets: []ir.Expr{&ir.Local{ID: 1, Slot: 1, Name: "x"}}, Values: []ir.Expr{num(1)}},
				&structure.Assign{Local: true, Targets: []ir.Expr{&ir.Local{ID: 2, Slot: 1, Name: "x"}}, Values: []ir.Expr{num(2)}},
			)}},
			want: "local print_2 = print\nlocal x = 1\nlocal x_2 = 2\n",
		},
		{
			name: "RenameUpvalues",
			opts: &Options{RenameUpvalues: true},
			funcs: []*structure.Function{
				{Body: block(
					&structure.Assign{Local: true, Targets: []ir.Expr{p}, Values: []ir.Expr{num(0)}},
					ret(&ir.Closure{
						Function: 1,
						Captures: []ir.Capture{{Kind: ir.CaptureReference, Index: 0, Var: p}},
					}),
				)},
				{
					UpvalueNames: []string{"count"},
					Body: block(
						&structure.Assign{
							Targets: []ir.Expr{ir.Upvalue{Index: 0}},
							Values:  []ir.Expr{&ir.Binary{Op: ir.OpAdd, Left: ir.Upvalue{Index: 0}, Right: num(1)}},
						},
						ret(ir.Upvalue{Index: 0}),
					),
				},
			},
			want: "local count = 0\nreturn function()\n\tcount = count + 1\n\treturn count\nend\n",
		},
		{
			name: "Interpolation",
			opts: &Options{PreferStringInterpolation: true},
			funcs: []*structure.Function{{Body: block(ret(
				&ir.Concat{Operands: []ir.Expr{str("Hello, "), global("name"), str("!")}},
				&ir.CallExpr{Object: str("%* has {%*}%%"), Method: "format", Args: []ir.Expr{global("a"), global("b")}},
				&ir.Concat{Operands: []ir.Expr{global("a"), global("b")}},
				&ir.CallExpr{Object: str("%d"), Method: "format", Args: []ir.Expr{global("n")}},
			))}},
			want: "return `Hello, {name}!`, `{a} has \\{{b}\\}%`, a .. b, (\"%d\"):format(n)\n",
		},
		{
			name:  "HeaderComment",
			opts:  &Options{HeaderComment: true},
			funcs: []*structure.Function{{Body: block(ret(num(5)))}},
			want:  "-- Decompiled with luaudec\n-- Luau bytecode version 5, types version 1\n\nreturn 5\n",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := render(t, test.opts, test.funcs...)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Source(...) (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSourceDeterministic(t *testing.T) {
	build := func() []*structure.Function {
		a := &ir.Local{ID: 0, Slot: 0}
		b := &ir.Local{ID: 1, Slot: 1}
		return []*structure.Function{{Body: block(
			&structure.Assign{Local: true, Targets: []ir.Expr{a, b}, Values: []ir.Expr{&ir.CallExpr{Func: global("f")}}},
			ret(&ir.Binary{Op: ir.OpAdd, Left: a, Right: b}),
		)}}
	}
	first := render(t, nil, build()...)
	for range 10 {
		if got := render(t, nil, build()...); got != first {
			t.Fatalf("output changed between runs:\n%s\nvs.\n%s", first, got)
		}
	}
}

func TestSourceMissingFunction(t *testing.T) {
	chunk := &luaucode.Chunk{Version: 5, Functions: []*luaucode.Function{{}}}
	funcs := []*structure.Function{{Body: block(ret(&ir.Closure{Function: 7}))}}
	sb := new(strings.Builder)
	err := Source(sb, chunk, funcs, nil)
	if !errors.Is(err, decerr.RenderError) {
		t.Errorf("Source(...) = %v; want %v", err, decerr.RenderError)
	}
	if sb.Len() > 0 {
		t.Errorf("Source(...) wrote %q after failing", sb.String())
	}
}
