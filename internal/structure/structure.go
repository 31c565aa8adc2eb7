// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package structure recovers statements, expressions, and control constructs
// from lifted functions.
//
// Registers are first grouped into variables
// using reaching definitions:
// all the writes that can reach a common read belong to one variable.
// Single-use temporaries are then substituted into their readers
// without moving side effects past each other.
// Finally, the control-flow graph is folded into loops and conditionals.
package structure

import (
	"context"

	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zombiezen.com/go/log"
)

// Options is the set of parameters to [Build].
type Options struct {
	// InlineTables folds keyed stores that follow a table construction
	// into the table constructor.
	// Array stores are always folded.
	InlineTables bool
}

// Build structures a lifted function.
func Build(ctx context.Context, fn *ir.Function, chunk *luaucode.Chunk, opts *Options) (*Function, error) {
	if opts == nil {
		opts = new(Options)
	}
	df := analyze(fn)
	results := make([]*blockResult, len(fn.Blocks))
	for _, b := range fn.Blocks {
		results[b.ID] = df.buildBlock(b, opts)
	}

	s := newStructurer(df, results)
	s.mergeConditions()
	body, err := s.seq(0, -1, nil, true)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisited(); err != nil {
		return nil, err
	}

	proto := fn.Proto
	f := &Function{
		Index:        fn.Index,
		Name:         proto.DebugName,
		IsVararg:     proto.IsVararg,
		IsEntry:      fn.Index == chunk.Main,
		NumUpvalues:  int(proto.NumUpvalues),
		UpvalueNames: proto.UpvalueNames,
		Body:         body,
	}
	for i := range int(proto.NumParams) {
		f.Params = append(f.Params, df.local(i))
	}
	simplify(f)
	declareLocals(f, func(l *ir.Local) bool {
		w := df.localWebs[l]
		return w != nil && w.undefined
	})

	nloops := 0
	f.Body.Loops(func(Stmt) { nloops++ })
	log.Debugf(ctx, "Structured function %d: %d variables, %d loops", fn.Index, df.nextID, nloops)
	return f, nil
}
