// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package emit renders decompiled chunks as Luau source,
// as a listing of lifted instructions,
// or as a Graphviz graph of basic blocks.
package emit

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/structure"
)

// Options is the set of parameters to [Source].
type Options struct {
	// PreferStringInterpolation renders concatenations that involve string literals
	// and `string.format` calls that only use `%*`
	// as interpolated strings.
	PreferStringInterpolation bool
	// GuessVariableNames names variables without debug names
	// after the values they are initialized with.
	GuessVariableNames bool
	// RenameUpvalues names captured variables
	// after the upvalue names in the capturing function's debug information.
	RenameUpvalues bool
	// HeaderComment starts the output with a comment describing the chunk.
	HeaderComment bool
}

// Source writes the chunk as Luau source.
// funcs holds the structured form of each function prototype
// and is indexed like chunk.Functions.
// Nested functions are written inline where they are instantiated;
// prototypes that the entry point never instantiates
// are written after it.
// Nothing is written if an error occurs.
func Source(w io.Writer, chunk *luaucode.Chunk, funcs []*structure.Function, opts *Options) error {
	if opts == nil {
		opts = new(Options)
	}
	if chunk.Main < 0 || chunk.Main >= len(funcs) || funcs[chunk.Main] == nil {
		return decerr.New(decerr.StageRender, decerr.RenderError, "entry point %d has no structured function", chunk.Main)
	}
	p := &printer{
		opts:    opts,
		funcs:   funcs,
		names:   newNamer(opts.GuessVariableNames),
		printed: make([]bool, len(funcs)),
	}
	p.names.reserveGlobals(funcs)
	if opts.RenameUpvalues {
		p.names.hintUpvalues(funcs)
	}

	if opts.HeaderComment {
		fmt.Fprintf(&p.buf, "-- Decompiled with luaudec\n-- Luau bytecode version %d", chunk.Version)
		if luaucode.IsTyped(int(chunk.Version)) {
			fmt.Fprintf(&p.buf, ", types version %d", chunk.TypesVersion)
		}
		p.buf.WriteString("\n\n")
	}
	p.mainFunction(chunk.Main)
	for i, f := range funcs {
		if f == nil || p.printed[i] || p.err != nil {
			continue
		}
		p.buf.WriteString("\n")
		p.orphanFunction(i)
	}
	if p.err != nil {
		return p.err
	}
	if _, err := w.Write(p.buf.Bytes()); err != nil {
		return decerr.Wrap(decerr.StageRender, decerr.RenderError, err)
	}
	return nil
}

type printer struct {
	buf    bytes.Buffer
	opts   *Options
	funcs  []*structure.Function
	names  *namer
	indent int
	scope  *scope
	// active is the stack of functions being printed.
	active  []int
	printed []bool
	err     error
}

// scope is a function being printed.
type scope struct {
	fn *structure.Function
	// closure is the expression that instantiates fn,
	// or nil if the function is printed on its own.
	closure *ir.Closure
	parent  *scope
}

func (p *printer) fail(format string, args ...any) {
	if p.err == nil {
		p.err = decerr.New(decerr.StageRender, decerr.RenderError, format, args...)
	}
}

// function returns the structured function with the given prototype index
// and marks it as printed.
func (p *printer) function(i int) *structure.Function {
	if i < 0 || i >= len(p.funcs) || p.funcs[i] == nil {
		p.fail("closure refers to missing function %d", i)
		return nil
	}
	if slices.Contains(p.active, i) {
		p.fail("function %d instantiates itself", i)
		return nil
	}
	p.printed[i] = true
	return p.funcs[i]
}

func (p *printer) mainFunction(i int) {
	f := p.function(i)
	if f == nil {
		return
	}
	p.active = append(p.active, i)
	p.scope = &scope{fn: f}
	for _, s := range f.Body.Stmts {
		p.stmt(s)
	}
	p.scope = nil
	p.active = p.active[:0]
}

// orphanFunction writes a function that no closure in the chunk instantiates.
func (p *printer) orphanFunction(i int) {
	f := p.function(i)
	if f == nil {
		return
	}
	fmt.Fprintf(&p.buf, "-- function %d is not instantiated by the entry point\n", i)
	name := f.Name
	if !isName(name) {
		name = fmt.Sprintf("function_%d", i)
	}
	fmt.Fprintf(&p.buf, "local function %s", p.names.unique(name))
	p.functionBody(i, nil, false)
	p.buf.WriteString("\n")
}

// functionBody writes the parameter list, body, and "end" of a function.
func (p *printer) functionBody(index int, c *ir.Closure, method bool) {
	f := p.function(index)
	if f == nil {
		return
	}
	p.active = append(p.active, index)
	p.scope = &scope{fn: f, closure: c, parent: p.scope}
	defer func() {
		p.scope = p.scope.parent
		p.active = p.active[:len(p.active)-1]
	}()

	params := f.Params
	if method && len(params) > 0 {
		p.names.declare(params[0], nil)
		params = params[1:]
	}
	p.buf.WriteString("(")
	for i, param := range params {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		p.buf.WriteString(p.names.declare(param, nil))
	}
	if f.IsVararg {
		if len(params) > 0 {
			p.buf.WriteString(", ")
		}
		p.buf.WriteString("...")
	}
	p.buf.WriteString(")\n")
	p.block(f.Body)
	p.startLine()
	p.buf.WriteString("end")
}

func (p *printer) startLine() {
	for range p.indent {
		p.buf.WriteByte('\t')
	}
}

func (p *printer) block(b *structure.Block) {
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s structure.Stmt) {
	p.startLine()
	switch s := s.(type) {
	case *structure.Assign:
		p.assign(s)
	case *structure.CallStmt:
		if p.prefixNeedsParens(s.Call) {
			// Keeps the call from continuing the previous statement.
			p.buf.WriteString(";")
		}
		p.call(s.Call)
	case *structure.Return:
		p.buf.WriteString("return")
		if len(s.Values) > 0 {
			p.buf.WriteString(" ")
			p.exprList(s.Values)
		}
	case *structure.If:
		p.ifStmt(s)
	case *structure.While:
		p.buf.WriteString("while ")
		p.expr(s.Cond, precLowest)
		p.buf.WriteString(" do\n")
		p.block(s.Body)
		p.startLine()
		p.buf.WriteString("end")
	case *structure.Repeat:
		p.buf.WriteString("repeat\n")
		p.block(s.Body)
		p.startLine()
		p.buf.WriteString("until ")
		p.expr(s.Cond, precLowest)
	case *structure.NumericFor:
		p.buf.WriteString("for ")
		p.buf.WriteString(p.names.declare(s.Var, nil))
		p.buf.WriteString(" = ")
		p.expr(s.Start, precLowest)
		p.buf.WriteString(", ")
		p.expr(s.Limit, precLowest)
		if s.Step != nil {
			p.buf.WriteString(", ")
			p.expr(s.Step, precLowest)
		}
		p.buf.WriteString(" do\n")
		p.block(s.Body)
		p.startLine()
		p.buf.WriteString("end")
	case *structure.GenericFor:
		p.buf.WriteString("for ")
		for i, v := range s.Vars {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.buf.WriteString(p.names.declare(v, nil))
		}
		p.buf.WriteString(" in ")
		p.exprList(s.Values)
		p.buf.WriteString(" do\n")
		p.block(s.Body)
		p.startLine()
		p.buf.WriteString("end")
	case *structure.Break:
		p.buf.WriteString("break")
	case *structure.Continue:
		p.buf.WriteString("continue")
	default:
		p.fail("unhandled statement %T", s)
	}
	p.buf.WriteString("\n")
}

func (p *printer) ifStmt(s *structure.If) {
	p.buf.WriteString("if ")
	p.expr(s.Cond, precLowest)
	p.buf.WriteString(" then\n")
	p.block(s.Then)
	for els := s.Else; els != nil; {
		if len(els.Stmts) == 1 {
			if nested, ok := els.Stmts[0].(*structure.If); ok {
				p.startLine()
				p.buf.WriteString("elseif ")
				p.expr(nested.Cond, precLowest)
				p.buf.WriteString(" then\n")
				p.block(nested.Then)
				els = nested.Else
				continue
			}
		}
		p.startLine()
		p.buf.WriteString("else\n")
		p.block(els)
		break
	}
	p.startLine()
	p.buf.WriteString("end")
}

func (p *printer) assign(s *structure.Assign) {
	if len(s.Targets) == 1 && len(s.Values) == 1 {
		if c, ok := s.Values[0].(*ir.Closure); ok {
			if l, isLocal := s.Targets[0].(*ir.Local); s.Local && isLocal {
				p.buf.WriteString("local function ")
				p.buf.WriteString(p.names.declare(l, nil))
				p.functionBody(c.Function, c, false)
				return
			}
			if name, method, ok := p.functionName(s.Targets[0], c); ok {
				p.buf.WriteString("function ")
				p.buf.WriteString(name)
				p.functionBody(c.Function, c, method)
				return
			}
		}
	}

	if s.Local {
		p.buf.WriteString("local ")
	}
	for i, t := range s.Targets {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		if l, ok := t.(*ir.Local); ok && s.Local {
			var value ir.Expr
			if i < len(s.Values) && (i < len(s.Values)-1 || len(s.Targets) == len(s.Values)) {
				value = s.Values[i]
			}
			p.buf.WriteString(p.names.declare(l, value))
			continue
		}
		p.expr(t, precPrimary)
	}
	if len(s.Values) > 0 {
		p.buf.WriteString(" = ")
		p.exprList(s.Values)
	}
}

// functionName returns the dotted name to use in a `function name()` statement
// that assigns c to target.
// method is true if the name ends in a method and the first parameter is implicit.
func (p *printer) functionName(target ir.Expr, c *ir.Closure) (name string, method bool, ok bool) {
	var path []string
	for x := target; ; {
		switch e := x.(type) {
		case ir.Global:
			if !isName(e.Name) {
				return "", false, false
			}
			path = append(path, e.Name)
		case *ir.Index:
			k, isString := e.Key.(ir.String)
			if !isString || !isName(k.Value) {
				return "", false, false
			}
			path = append(path, k.Value)
			x = e.Table
			continue
		default:
			return "", false, false
		}
		break
	}
	if len(path) > 1 && c.Function >= 0 && c.Function < len(p.funcs) {
		if f := p.funcs[c.Function]; f != nil && len(f.Params) > 0 && f.Params[0].Name == "self" {
			method = true
		}
	}
	slices.Reverse(path)
	sep := "."
	name = path[0]
	for i, elem := range path[1:] {
		if method && i == len(path)-2 {
			sep = ":"
		}
		name += sep + elem
	}
	return name, method, true
}

// upvalueName returns the name of the current function's i'th upvalue.
func (p *printer) upvalueName(sc *scope, i int) string {
	if sc == nil {
		return fmt.Sprintf("u_%d", i)
	}
	if sc.closure != nil && i < len(sc.closure.Captures) {
		capt := sc.closure.Captures[i]
		switch {
		case capt.Kind == ir.CaptureUpvalue:
			return p.upvalueName(sc.parent, capt.Index)
		case capt.Var != nil:
			return p.names.name(capt.Var)
		}
	}
	if p.opts.RenameUpvalues && i < len(sc.fn.UpvalueNames) && isName(sc.fn.UpvalueNames[i]) {
		return sc.fn.UpvalueNames[i]
	}
	return fmt.Sprintf("u_%d", i)
}
