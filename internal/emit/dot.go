// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
)

// Graph writes the control-flow graphs of every function in the chunk
// in the Graphviz DOT language.
// Each function is a cluster subgraph;
// each basic block is a node labeled with its instructions.
// funcs is indexed like chunk.Functions.
// Nothing is written if an error occurs.
func Graph(w io.Writer, chunk *luaucode.Chunk, funcs []*ir.Function) error {
	buf := new(bytes.Buffer)
	buf.WriteString("digraph chunk {\n")
	buf.WriteString("\tnode [shape=box, fontname=\"monospace\"];\n")
	for i, f := range funcs {
		if f == nil {
			return decerr.New(decerr.StageRender, decerr.RenderError, "function %d was not lifted", i)
		}
		graphFunction(buf, chunk, f)
	}
	buf.WriteString("}\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return decerr.Wrap(decerr.StageRender, decerr.RenderError, err)
	}
	return nil
}

func graphFunction(buf *bytes.Buffer, chunk *luaucode.Chunk, f *ir.Function) {
	label := fmt.Sprintf("function %d", f.Index)
	if f.Proto.DebugName != "" {
		label += " " + f.Proto.DebugName
	}
	if f.Index == chunk.Main {
		label += " (main)"
	}
	fmt.Fprintf(buf, "\tsubgraph cluster_f%d {\n", f.Index)
	fmt.Fprintf(buf, "\t\tlabel=%s;\n", dotString(label))
	for _, b := range f.Blocks {
		text := new(strings.Builder)
		fmt.Fprintf(text, "B%d [%d, %d)\n", b.ID, b.Start, b.End)
		for _, inst := range b.Insts {
			fmt.Fprintf(text, "%d: %s\n", inst.Pos().PC, formatInst(inst))
		}
		if b.Cond != nil {
			fmt.Fprintf(text, "%d: if %s\n", b.Cond.Context.PC, formatCond(b.Cond))
		}
		fmt.Fprintf(buf, "\t\t%s [label=%s];\n", dotNode(f, b.ID), dotLabel(text.String()))
	}
	for _, b := range f.Blocks {
		for i, s := range b.Succs {
			fmt.Fprintf(buf, "\t\t%s -> %s", dotNode(f, b.ID), dotNode(f, s))
			if len(b.Succs) == 2 {
				fmt.Fprintf(buf, " [label=%q]", [2]string{"T", "F"}[i])
			}
			buf.WriteString(";\n")
		}
	}
	buf.WriteString("\t}\n")
}

func dotNode(f *ir.Function, block int) string {
	return fmt.Sprintf("f%d_b%d", f.Index, block)
}

// dotString quotes s as a DOT string.
func dotString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

// dotLabel quotes a multi-line node label with left-justified lines.
func dotLabel(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\l`).Replace(s) + `"`
}
