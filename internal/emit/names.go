// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package emit

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/structure"
)

var keywords = []string{
	"and", "break", "do", "else", "elseif", "end",
	"false", "for", "function", "if", "in", "local",
	"nil", "not", "or", "repeat", "return", "then",
	"true", "until", "while",
}

// contextualKeywords are valid names that are still confusing to read as variables.
var contextualKeywords = []string{"continue", "export", "type", "typeof"}

// namer assigns a distinct source name to every variable in a chunk.
type namer struct {
	guess bool
	taken map[string]bool
	names map[*ir.Local]string
	// hints are preferred names for variables without debug names.
	hints map[*ir.Local]string
}

func newNamer(guess bool) *namer {
	n := &namer{
		guess: guess,
		taken: make(map[string]bool),
		names: make(map[*ir.Local]string),
		hints: make(map[*ir.Local]string),
	}
	for _, kw := range keywords {
		n.taken[kw] = true
	}
	for _, kw := range contextualKeywords {
		n.taken[kw] = true
	}
	return n
}

// reserveGlobals prevents variables from shadowing
// any global that the functions mention.
func (n *namer) reserveGlobals(funcs []*structure.Function) {
	for _, f := range funcs {
		if f == nil {
			continue
		}
		f.Body.Walk(func(s structure.Stmt) {
			for _, x := range structure.Exprs(s) {
				ir.Inspect(x, func(e ir.Expr) bool {
					switch e := e.(type) {
					case ir.Global:
						n.taken[e.Name] = true
					case ir.Import:
						if len(e.Path) > 0 {
							n.taken[e.Path[0]] = true
						}
					}
					return true
				})
			}
		})
	}
}

// hintUpvalues names each unnamed variable that a closure captures
// after the closure's debug name for the upvalue.
func (n *namer) hintUpvalues(funcs []*structure.Function) {
	for _, f := range funcs {
		if f == nil {
			continue
		}
		f.Body.Walk(func(s structure.Stmt) {
			for _, x := range structure.Exprs(s) {
				ir.Inspect(x, func(e ir.Expr) bool {
					c, ok := e.(*ir.Closure)
					if !ok || c.Function < 0 || c.Function >= len(funcs) || funcs[c.Function] == nil {
						return true
					}
					upnames := funcs[c.Function].UpvalueNames
					for i, capt := range c.Captures {
						if capt.Var == nil || capt.Var.Name != "" || i >= len(upnames) || upnames[i] == "" {
							continue
						}
						if _, exists := n.hints[capt.Var]; !exists {
							n.hints[capt.Var] = upnames[i]
						}
					}
					return true
				})
			}
		})
	}
}

// declare names l, using the value it is first assigned to guess a name.
// value may be nil.
// If l already has a name, declare returns it.
func (n *namer) declare(l *ir.Local, value ir.Expr) string {
	if name, ok := n.names[l]; ok {
		return name
	}
	base := sanitize(l.Name)
	if base == "" {
		base = sanitize(n.hints[l])
	}
	if base == "" && n.guess && value != nil {
		base = sanitize(guessName(value))
	}
	if base == "" {
		base = fmt.Sprintf("l_%d", l.Slot)
	}
	name := n.unique(base)
	n.names[l] = name
	return name
}

// name returns the name of l, assigning one if needed.
func (n *namer) name(l *ir.Local) string {
	return n.declare(l, nil)
}

func (n *namer) unique(base string) string {
	if !n.taken[base] {
		n.taken[base] = true
		return base
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if !n.taken[name] {
			n.taken[name] = true
			return name
		}
	}
}

// guessName derives a variable name from the value it is initialized with.
func guessName(e ir.Expr) string {
	switch e := e.(type) {
	case *ir.CallExpr:
		if e.Method == "GetService" && len(e.Args) == 1 {
			if s, ok := e.Args[0].(ir.String); ok {
				return s.Value
			}
		}
		if g, ok := e.Func.(ir.Global); ok && g.Name == "require" && len(e.Args) == 1 {
			return requireName(e.Args[0])
		}
	case *ir.Index:
		if k, ok := e.Key.(ir.String); ok {
			return lowerFirst(k.Value)
		}
	case ir.Import:
		if len(e.Path) > 1 {
			return lowerFirst(e.Path[len(e.Path)-1])
		}
	}
	return ""
}

// requireName returns the name of the module a require call loads.
func requireName(arg ir.Expr) string {
	switch arg := arg.(type) {
	case *ir.Index:
		if k, ok := arg.Key.(ir.String); ok {
			return k.Value
		}
	case ir.Import:
		if len(arg.Path) > 0 {
			return arg.Path[len(arg.Path)-1]
		}
	case ir.Global:
		return arg.Name
	case ir.String:
		s := strings.TrimSuffix(strings.TrimSuffix(arg.Value, ".lua"), ".luau")
		if i := strings.LastIndexAny(s, "/."); i >= 0 {
			s = s[i+1:]
		}
		return s
	}
	return ""
}

func lowerFirst(s string) string {
	c, size := utf8.DecodeRuneInString(s)
	if c >= 'A' && c <= 'Z' {
		return string(c-'A'+'a') + s[size:]
	}
	return s
}

// sanitize converts s into an identifier
// by replacing characters that may not appear in one.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	sb := new(strings.Builder)
	for _, c := range s {
		if isIdentByte(c) {
			sb.WriteRune(c)
		} else {
			sb.WriteByte('_')
		}
	}
	name := sb.String()
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func isIdentByte(c rune) bool {
	return c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// isName reports whether s can be written as a bare name.
func isName(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for _, c := range s {
		if !isIdentByte(c) {
			return false
		}
	}
	return !slices.Contains(keywords, s)
}
