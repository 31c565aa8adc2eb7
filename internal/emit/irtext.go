// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"fmt"
	"strconv"
	"strings"

	"zb.256lights.llc/luaudec/internal/ir"
)

// formatInst returns the listing text of a lifted instruction.
func formatInst(inst ir.Inst) string {
	sb := new(strings.Builder)
	switch inst := inst.(type) {
	case *ir.Assign:
		fmt.Fprintf(sb, "r%d = ", inst.Dest)
		writeIRExpr(sb, inst.Value)
	case *ir.SetGlobal:
		fmt.Fprintf(sb, "setglobal %s = ", inst.Name)
		writeIRExpr(sb, inst.Value)
	case *ir.SetUpvalue:
		fmt.Fprintf(sb, "u%d = ", inst.Index)
		writeIRExpr(sb, inst.Value)
	case *ir.SetIndex:
		writeIRExpr(sb, inst.Table)
		sb.WriteString("[")
		writeIRExpr(sb, inst.Key)
		sb.WriteString("] = ")
		writeIRExpr(sb, inst.Value)
	case *ir.Call:
		writeResults(sb, inst.Base, inst.Results)
		sb.WriteString("call ")
		writeCall(sb, inst.Func, inst.Object, inst.Method, inst.Args, inst.VarTail)
	case *ir.LoadVarArgs:
		writeResults(sb, inst.Base, inst.Count)
		sb.WriteString("...")
	case *ir.SetList:
		fmt.Fprintf(sb, "setlist r%d[%d...] = ", inst.Table, inst.Start)
		writeIRList(sb, inst.Values, inst.VarTail)
	case *ir.Return:
		sb.WriteString("return")
		if len(inst.Values) > 0 {
			sb.WriteString(" ")
			writeIRList(sb, inst.Values, inst.VarTail)
		}
	case *ir.CloseUpvalues:
		fmt.Fprintf(sb, "close r%d", inst.From)
	case *ir.ForGenPrep:
		fmt.Fprintf(sb, "forgprep r%d", inst.Base)
	default:
		fmt.Fprintf(sb, "%T", inst)
	}
	return sb.String()
}

// formatCond returns the listing text of a block's branch predicate.
func formatCond(c *ir.Condition) string {
	sb := new(strings.Builder)
	if c.Negated {
		sb.WriteString("not ")
	}
	switch c.Op {
	case ir.CondTruthy:
		writeIRExpr(sb, c.Left)
	case ir.CondEq, ir.CondLt, ir.CondLe:
		op := map[ir.CondOp]string{ir.CondEq: "==", ir.CondLt: "<", ir.CondLe: "<="}[c.Op]
		writeIRExpr(sb, c.Left)
		sb.WriteString(" " + op + " ")
		writeIRExpr(sb, c.Right)
	case ir.CondForGenLoop:
		fmt.Fprintf(sb, "%v r%d (%d vars)", c.Op, c.Base, c.VarCount)
	default:
		fmt.Fprintf(sb, "%v r%d", c.Op, c.Base)
	}
	return sb.String()
}

func writeResults(sb *strings.Builder, base ir.Slot, n int) {
	switch {
	case n < 0:
		fmt.Fprintf(sb, "r%d... = ", base)
	case n == 1:
		fmt.Fprintf(sb, "r%d = ", base)
	case n > 1:
		fmt.Fprintf(sb, "r%d..r%d = ", base, int(base)+n-1)
	}
}

func writeCall(sb *strings.Builder, fn, obj ir.Expr, method string, args []ir.Expr, varTail bool) {
	if obj != nil {
		writeIRExpr(sb, obj)
		sb.WriteString(":")
		sb.WriteString(method)
	} else {
		writeIRExpr(sb, fn)
	}
	sb.WriteString("(")
	writeIRList(sb, args, varTail)
	sb.WriteString(")")
}

func writeIRList(sb *strings.Builder, list []ir.Expr, varTail bool) {
	for i, x := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeIRExpr(sb, x)
	}
	if varTail {
		sb.WriteString("...")
	}
}

// writeIRExpr writes e fully parenthesized,
// so that the listing never depends on operator precedence.
func writeIRExpr(sb *strings.Builder, e ir.Expr) {
	switch e := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case ir.SlotRef:
		fmt.Fprintf(sb, "r%d", e.Slot)
	case ir.Nil:
		sb.WriteString("nil")
	case ir.Boolean:
		sb.WriteString(strconv.FormatBool(e.Value))
	case ir.Number:
		sb.WriteString(formatNumber(e.Value))
	case ir.String:
		sb.WriteString(quote(e.Value))
	case ir.Vector:
		fmt.Fprintf(sb, "vector(%g, %g, %g, %g)", e.X, e.Y, e.Z, e.W)
	case ir.VarArgs:
		sb.WriteString("...")
	case ir.Global:
		sb.WriteString("global ")
		sb.WriteString(e.Name)
	case ir.Import:
		sb.WriteString("import ")
		sb.WriteString(strings.Join(e.Path, "."))
	case ir.Upvalue:
		fmt.Fprintf(sb, "u%d", e.Index)
	case *ir.Local:
		fmt.Fprintf(sb, "v%d", e.ID)
	case *ir.Index:
		writeIRExpr(sb, e.Table)
		sb.WriteString("[")
		writeIRExpr(sb, e.Key)
		sb.WriteString("]")
	case *ir.Binary:
		sb.WriteString("(")
		writeIRExpr(sb, e.Left)
		sb.WriteString(" " + e.Op.String() + " ")
		writeIRExpr(sb, e.Right)
		sb.WriteString(")")
	case *ir.Unary:
		sb.WriteString("(")
		sb.WriteString(e.Op.String())
		if e.Op == ir.OpNot {
			sb.WriteString(" ")
		}
		writeIRExpr(sb, e.Operand)
		sb.WriteString(")")
	case *ir.Concat:
		sb.WriteString("concat(")
		writeIRList(sb, e.Operands, false)
		sb.WriteString(")")
	case *ir.Paren:
		sb.WriteString("(")
		writeIRExpr(sb, e.Value)
		sb.WriteString(")")
	case *ir.NewTable:
		if len(e.Keys) > 0 {
			sb.WriteString("duptable{")
			writeIRList(sb, e.Keys, false)
			sb.WriteString("}")
		} else {
			fmt.Fprintf(sb, "newtable(%d, %d)", e.ArraySize, e.HashSize)
		}
	case *ir.Closure:
		fmt.Fprintf(sb, "closure f%d", e.Function)
		if len(e.Captures) > 0 {
			sb.WriteString(" [")
			for i, c := range e.Captures {
				if i > 0 {
					sb.WriteString(", ")
				}
				if c.Kind == ir.CaptureUpvalue {
					fmt.Fprintf(sb, "%v u%d", c.Kind, c.Index)
				} else {
					fmt.Fprintf(sb, "%v r%d", c.Kind, c.Index)
				}
			}
			sb.WriteString("]")
		}
	case *ir.CallExpr:
		writeCall(sb, e.Func, e.Object, e.Method, e.Args, e.VarTail)
	default:
		fmt.Fprintf(sb, "%T", e)
	}
}
