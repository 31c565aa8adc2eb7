// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"bytes"
	"fmt"
	"io"

	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
)

// Listing writes the lifted instructions of every function in the chunk,
// grouped by basic block,
// in a format similar to `luac -l`.
// funcs is indexed like chunk.Functions.
// Nothing is written if an error occurs.
func Listing(w io.Writer, chunk *luaucode.Chunk, funcs []*ir.Function) error {
	buf := new(bytes.Buffer)
	for i, f := range funcs {
		if f == nil {
			return decerr.New(decerr.StageRender, decerr.RenderError, "function %d was not lifted", i)
		}
		if i > 0 {
			buf.WriteString("\n")
		}
		listFunction(buf, chunk, f)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return decerr.Wrap(decerr.StageRender, decerr.RenderError, err)
	}
	return nil
}

func listFunction(buf *bytes.Buffer, chunk *luaucode.Chunk, f *ir.Function) {
	proto := f.Proto
	ifElse := func(b bool, t, f string) string {
		if b {
			return t
		} else {
			return f
		}
	}
	plural := func(n int, unit string, unitPlural string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %s", n, unitPlural)
	}

	name := proto.DebugName
	if name == "" {
		name = "anonymous"
	}
	fmt.Fprintf(buf, "%s %d <%s:%d> (%s, %s)\n",
		ifElse(f.Index == chunk.Main, "main", "function"),
		f.Index,
		name,
		proto.LineDefined,
		plural(len(proto.Code), "word", "words"),
		plural(len(f.Blocks), "block", "blocks"),
	)
	fmt.Fprintf(buf, "%d%s %s, %s, %s, %s, %s\n",
		proto.NumParams,
		ifElse(proto.IsVararg, "+", ""),
		ifElse(proto.NumParams == 1, "param", "params"),
		plural(int(proto.MaxStackSize), "slot", "slots"),
		plural(int(proto.NumUpvalues), "upvalue", "upvalues"),
		plural(len(proto.Constants), "constant", "constants"),
		plural(len(proto.Children), "function", "functions"),
	)

	for _, b := range f.Blocks {
		fmt.Fprintf(buf, "B%d [%d, %d)", b.ID, b.Start, b.End)
		if len(b.Preds) > 0 {
			buf.WriteString(" <-")
			for _, p := range b.Preds {
				fmt.Fprintf(buf, " B%d", p)
			}
		}
		buf.WriteString("\n")
		for _, inst := range b.Insts {
			listLine(buf, proto, inst.Pos(), formatInst(inst))
		}
		switch {
		case b.Cond != nil:
			listLine(buf, proto, b.Cond.Context,
				fmt.Sprintf("if %s goto B%d else B%d", formatCond(b.Cond), b.Succs[0], b.Succs[1]))
		case len(b.Succs) == 1:
			fmt.Fprintf(buf, "\t\t\tgoto B%d\n", b.Succs[0])
		}
	}
}

// listLine writes one instruction line with its program counter,
// source line, and the bytecode it was lifted from.
func listLine(buf *bytes.Buffer, proto *luaucode.Function, ctx luaucode.Context, text string) {
	fmt.Fprintf(buf, "\t%d\t", ctx.PC)
	if proto.LineInfo.Len() > 0 {
		fmt.Fprintf(buf, "[%d]\t", ctx.Line)
	} else {
		buf.WriteString("[-]\t")
	}
	buf.WriteString(text)
	if ctx.PC >= 0 && ctx.PC < len(proto.Code) {
		fmt.Fprintf(buf, "\t; %v", proto.Code[ctx.PC])
	}
	buf.WriteString("\n")
}
