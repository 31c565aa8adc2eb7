// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"zb.256lights.llc/luaudec/internal/ir"
)

// Expression precedence levels beyond the operators in package ir.
const (
	precLowest = 0
	// precSimple is a literal or constructor:
	// it never needs parentheses as an operand
	// but cannot be called or indexed directly.
	precSimple = 9
	// precPrimary is a name, index, call, or parenthesized expression.
	precPrimary = 10
)

func (p *printer) precedence(e ir.Expr) int {
	switch e := e.(type) {
	case *ir.CallExpr:
		if p.opts.PreferStringInterpolation {
			if _, ok := formatParts(e); ok {
				return precSimple
			}
		}
		return precPrimary
	case *ir.Binary:
		return e.Op.Precedence()
	case *ir.Concat:
		return ir.ConcatPrecedence
	case *ir.Unary:
		return ir.UnaryPrecedence
	case ir.Number:
		switch {
		case math.IsNaN(e.Value):
			return ir.OpDiv.Precedence()
		case math.Signbit(e.Value):
			return ir.UnaryPrecedence
		case math.IsInf(e.Value, 1):
			return precPrimary
		default:
			return precSimple
		}
	case ir.Nil, ir.Boolean, ir.String, ir.VarArgs, *ir.NewTable, *ir.Closure:
		return precSimple
	default:
		return precPrimary
	}
}

// prefixNeedsParens reports whether the called expression of call
// must be parenthesized.
func (p *printer) prefixNeedsParens(call *ir.CallExpr) bool {
	prefix := call.Func
	if call.Object != nil {
		prefix = call.Object
	}
	return p.precedence(prefix) < precPrimary
}

// expr writes e, parenthesized if it binds less tightly than prec.
func (p *printer) expr(e ir.Expr, prec int) {
	if p.precedence(e) < prec {
		p.buf.WriteString("(")
		p.exprNoParens(e)
		p.buf.WriteString(")")
		return
	}
	p.exprNoParens(e)
}

func (p *printer) exprNoParens(e ir.Expr) {
	switch e := e.(type) {
	case ir.Nil:
		p.buf.WriteString("nil")
	case ir.Boolean:
		p.buf.WriteString(strconv.FormatBool(e.Value))
	case ir.Number:
		p.buf.WriteString(formatNumber(e.Value))
	case ir.String:
		p.buf.WriteString(quote(e.Value))
	case ir.Vector:
		fmt.Fprintf(&p.buf, "vector.create(%s, %s, %s",
			formatNumber(float64(e.X)), formatNumber(float64(e.Y)), formatNumber(float64(e.Z)))
		if e.W != 0 {
			p.buf.WriteString(", ")
			p.buf.WriteString(formatNumber(float64(e.W)))
		}
		p.buf.WriteString(")")
	case ir.VarArgs:
		p.buf.WriteString("...")
	case ir.Global:
		p.global(e.Name)
	case ir.Import:
		for i, elem := range e.Path {
			if i == 0 {
				p.global(elem)
			} else {
				p.field(elem)
			}
		}
	case ir.Upvalue:
		p.buf.WriteString(p.upvalueName(p.scope, e.Index))
	case *ir.Local:
		p.buf.WriteString(p.names.name(e))
	case ir.SlotRef:
		fmt.Fprintf(&p.buf, "r%d", e.Slot)
	case *ir.Index:
		p.expr(e.Table, precPrimary)
		if k, ok := e.Key.(ir.String); ok {
			p.field(k.Value)
		} else {
			p.buf.WriteString("[")
			p.expr(e.Key, precLowest)
			p.buf.WriteString("]")
		}
	case *ir.Binary:
		prec := e.Op.Precedence()
		left, right := prec, prec+1
		if e.Op.RightAssociative() {
			left, right = prec+1, prec
		}
		p.expr(e.Left, left)
		p.buf.WriteString(" ")
		p.buf.WriteString(e.Op.String())
		p.buf.WriteString(" ")
		p.expr(e.Right, right)
	case *ir.Unary:
		p.buf.WriteString(e.Op.String())
		switch {
		case e.Op == ir.OpNot:
			p.buf.WriteString(" ")
		case e.Op == ir.OpNeg && startsWithMinus(e.Operand):
			// "--" would start a comment.
			p.buf.WriteString(" ")
		}
		p.expr(e.Operand, ir.UnaryPrecedence)
	case *ir.Concat:
		if p.opts.PreferStringInterpolation && p.interpolateConcat(e) {
			return
		}
		for i, x := range e.Operands {
			if i > 0 {
				p.buf.WriteString(" .. ")
			}
			prec := ir.ConcatPrecedence + 1
			if i == len(e.Operands)-1 {
				prec = ir.ConcatPrecedence
			}
			p.expr(x, prec)
		}
	case *ir.Paren:
		p.buf.WriteString("(")
		p.expr(e.Value, precLowest)
		p.buf.WriteString(")")
	case *ir.CallExpr:
		if p.opts.PreferStringInterpolation && p.interpolateFormat(e) {
			return
		}
		p.call(e)
	case *ir.NewTable:
		p.table(e)
	case *ir.Closure:
		p.buf.WriteString("function")
		p.functionBody(e.Function, e, false)
	default:
		p.fail("unhandled expression %T", e)
	}
}

func (p *printer) exprList(list []ir.Expr) {
	for i, x := range list {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		p.expr(x, precLowest)
	}
}

func (p *printer) call(c *ir.CallExpr) {
	if c.Object != nil {
		p.expr(c.Object, precPrimary)
		p.buf.WriteString(":")
		p.buf.WriteString(c.Method)
	} else {
		p.expr(c.Func, precPrimary)
	}
	p.buf.WriteString("(")
	p.exprList(c.Args)
	p.buf.WriteString(")")
}

func (p *printer) global(name string) {
	if isName(name) {
		p.buf.WriteString(name)
		return
	}
	p.buf.WriteString("_G[")
	p.buf.WriteString(quote(name))
	p.buf.WriteString("]")
}

// field writes an index by a constant string key.
func (p *printer) field(name string) {
	if isName(name) {
		p.buf.WriteString(".")
		p.buf.WriteString(name)
		return
	}
	p.buf.WriteString("[")
	p.buf.WriteString(quote(name))
	p.buf.WriteString("]")
}

func (p *printer) table(t *ir.NewTable) {
	if len(t.Items) == 0 && len(t.Fields) == 0 {
		p.buf.WriteString("{}")
		return
	}
	if len(t.Fields) == 0 {
		p.buf.WriteString("{")
		p.exprList(t.Items)
		p.buf.WriteString("}")
		return
	}
	p.buf.WriteString("{\n")
	p.indent++
	for _, x := range t.Items {
		p.startLine()
		p.expr(x, precLowest)
		p.buf.WriteString(",\n")
	}
	for _, f := range t.Fields {
		p.startLine()
		if k, ok := f.Key.(ir.String); ok && isName(k.Value) {
			p.buf.WriteString(k.Value)
		} else {
			p.buf.WriteString("[")
			p.expr(f.Key, precLowest)
			p.buf.WriteString("]")
		}
		p.buf.WriteString(" = ")
		p.expr(f.Value, precLowest)
		p.buf.WriteString(",\n")
	}
	p.indent--
	p.startLine()
	p.buf.WriteString("}")
}

// interpolateConcat writes a concatenation that mixes string literals
// with other values as an interpolated string.
func (p *printer) interpolateConcat(c *ir.Concat) bool {
	var hasString, hasValue bool
	for _, x := range c.Operands {
		if _, ok := x.(ir.String); ok {
			hasString = true
		} else {
			hasValue = true
		}
	}
	if !hasString || !hasValue {
		return false
	}
	p.buf.WriteString("`")
	for _, x := range c.Operands {
		if s, ok := x.(ir.String); ok {
			p.buf.WriteString(escape(s.Value, '`'))
		} else {
			p.interpolated(x)
		}
	}
	p.buf.WriteString("`")
	return true
}

// interpolateFormat writes `("...%*..."):format(args)`
// as an interpolated string.
func (p *printer) interpolateFormat(c *ir.CallExpr) bool {
	parts, ok := formatParts(c)
	if !ok {
		return false
	}
	p.buf.WriteString("`")
	for i, part := range parts {
		if i > 0 {
			p.interpolated(c.Args[i-1])
		}
		p.buf.WriteString(escape(part, '`'))
	}
	p.buf.WriteString("`")
	return true
}

// formatParts returns the literal text between the arguments
// of a string.format method call on a literal
// that only uses "%*" verbs.
func formatParts(c *ir.CallExpr) ([]string, bool) {
	format, ok := c.Object.(ir.String)
	if !ok || c.Method != "format" || c.VarTail {
		return nil, false
	}
	parts, ok := splitFormat(format.Value)
	if !ok || len(parts) != len(c.Args)+1 {
		return nil, false
	}
	return parts, true
}

func (p *printer) interpolated(x ir.Expr) {
	p.buf.WriteString("{")
	if _, isTable := x.(*ir.NewTable); isTable {
		// "{{" is not allowed in an interpolated string.
		p.buf.WriteString("(")
		p.expr(x, precLowest)
		p.buf.WriteString(")")
	} else {
		p.expr(x, precLowest)
	}
	p.buf.WriteString("}")
}

// splitFormat splits a format string at its "%*" verbs.
// It reports false if the string uses any other verb.
func splitFormat(format string) ([]string, bool) {
	var parts []string
	sb := new(strings.Builder)
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			sb.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return nil, false
		}
		i++
		switch format[i] {
		case '%':
			sb.WriteByte('%')
		case '*':
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			return nil, false
		}
	}
	return append(parts, sb.String()), true
}

func startsWithMinus(e ir.Expr) bool {
	switch e := e.(type) {
	case *ir.Unary:
		return e.Op == ir.OpNeg
	case ir.Number:
		return math.Signbit(e.Value) && !math.IsNaN(e.Value)
	default:
		return false
	}
}

// formatNumber returns the shortest source literal for v.
func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "math.huge"
	case math.IsInf(v, -1):
		return "-math.huge"
	case math.IsNaN(v):
		return "0 / 0"
	case v == math.Trunc(v) && math.Abs(v) < 1e16:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// quote returns s as a double-quoted string literal.
func quote(s string) string {
	return `"` + escape(s, '"') + `"`
}

// escape returns s as the contents of a string literal delimited by q.
// Valid UTF-8 is kept as is.
func escape(s string, q byte) string {
	sb := new(strings.Builder)
	for i := 0; i < len(s); {
		c, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case c == utf8.RuneError && size == 1:
			fmt.Fprintf(sb, "\\%03d", s[i])
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(sb, "\\%03d", c)
		case c == rune(q):
			sb.WriteByte('\\')
			sb.WriteByte(q)
		case q == '`' && (c == '{' || c == '}'):
			sb.WriteByte('\\')
			sb.WriteRune(c)
		default:
			sb.WriteString(s[i : i+size])
		}
		i += size
	}
	return sb.String()
}
