// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package luaudec decompiles Luau bytecode chunks.
//
// [Decode] reads a chunk and recovers the structure of every function in it.
// [Render] then writes the result as Luau source,
// as a listing of lifted instructions,
// or as a Graphviz control-flow graph.
package luaudec

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"zb.256lights.llc/luaudec/internal/decerr"
	"zb.256lights.llc/luaudec/internal/emit"
	"zb.256lights.llc/luaudec/internal/ir"
	"zb.256lights.llc/luaudec/internal/luaucode"
	"zb.256lights.llc/luaudec/internal/structure"
	"zombiezen.com/go/log"
)

// Options is the set of parameters to [Decode].
// The zero value decompiles with default settings.
type Options struct {
	// PreferStringInterpolation renders string.format calls
	// and concatenations as backtick strings where possible.
	PreferStringInterpolation bool `json:"preferStringInterpolation,omitempty"`
	// GuessVariableNames names unnamed locals after the values assigned to them.
	GuessVariableNames bool `json:"guessVariableNames,omitempty"`
	// InlineTableConstructors folds keyed stores that follow a table construction
	// into the table constructor.
	InlineTableConstructors bool `json:"inlineTableConstructors,omitempty"`
	// RenameUpvalues names upvalues after the debug names stored in the chunk.
	RenameUpvalues bool `json:"renameUpvalues,omitempty"`
	// HeaderComment starts the source output with a comment
	// naming the chunk's bytecode version.
	HeaderComment bool `json:"headerComment,omitempty"`
	// OpcodeDecoder is the name of the strategy used to map stored opcode bytes
	// to logical opcodes.
	// The empty string means "default".
	// See [DecoderNames] for the accepted values.
	OpcodeDecoder string `json:"opcodeDecoder,omitempty"`
	// Concurrency is the maximum number of functions processed at once.
	// Zero or a negative number means [runtime.GOMAXPROCS].
	Concurrency int `json:"concurrency,omitempty"`
}

// DecoderNames returns the names accepted in [Options.OpcodeDecoder].
func DecoderNames() []string {
	return []string{luaucode.DefaultDecoderName, luaucode.RobloxDecoderName}
}

// CheckDecoder returns an error if name is not accepted
// in [Options.OpcodeDecoder].
func CheckDecoder(name string) error {
	_, err := luaucode.DecoderByName(name)
	return err
}

// A Result is a successfully decoded chunk.
// It is immutable and may be rendered any number of times.
type Result struct {
	chunk      *luaucode.Chunk
	lifted     []*ir.Function
	structured []*structure.Function
	opts       Options
}

// Version returns the chunk's bytecode version.
func (r *Result) Version() int {
	return int(r.chunk.Version)
}

// NumFunctions returns the number of function prototypes in the chunk.
func (r *Result) NumFunctions() int {
	return len(r.chunk.Functions)
}

// Main returns the index of the chunk's entry point function.
func (r *Result) Main() int {
	return r.chunk.Main
}

// Decode reads a bytecode chunk from r and recovers its functions.
// Any error returned from Decode wraps an [*Error]
// unless it was caused by reading from r.
// Decode never returns a partial result.
func Decode(ctx context.Context, r io.Reader, opts *Options) (*Result, error) {
	if opts == nil {
		opts = new(Options)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return DecodeBytes(ctx, data, opts)
}

// DecodeBytes is like [Decode] but reads the chunk from a byte slice.
func DecodeBytes(ctx context.Context, data []byte, opts *Options) (*Result, error) {
	if opts == nil {
		opts = new(Options)
	}
	dec, err := luaucode.DecoderByName(opts.OpcodeDecoder)
	if err != nil {
		return nil, fmt.Errorf("decode: %v", err)
	}
	chunk, err := luaucode.Unmarshal(data, dec)
	if err != nil {
		return nil, err
	}
	log.Debugf(ctx, "Loaded chunk: version %d, types version %d, %d symbols, %d functions, main %d",
		chunk.Version, chunk.TypesVersion, len(chunk.Symbols), len(chunk.Functions), chunk.Main)

	result := &Result{
		chunk:      chunk,
		lifted:     make([]*ir.Function, len(chunk.Functions)),
		structured: make([]*structure.Function, len(chunk.Functions)),
		opts:       *opts,
	}
	sopts := &structure.Options{
		InlineTables: opts.InlineTableConstructors,
	}
	process := func(i int) error {
		lifted, err := ir.Lift(ctx, chunk, i)
		if err != nil {
			return err
		}
		structured, err := structure.Build(ctx, lifted, chunk, sopts)
		if err != nil {
			if e, ok := err.(*decerr.Error); ok {
				return e.InFunction(i)
			}
			return err
		}
		result.lifted[i] = lifted
		result.structured[i] = structured
		return nil
	}

	// The entry point goes first so that a broken main function
	// is reported without waiting on the rest of the chunk.
	if err := process(chunk.Main); err != nil {
		return nil, err
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	errs := make([]error, len(chunk.Functions))
	grp := new(errgroup.Group)
	grp.SetLimit(limit)
	for i := range chunk.Functions {
		if i == chunk.Main {
			continue
		}
		grp.Go(func() error {
			errs[i] = process(i)
			return errs[i]
		})
	}
	if grp.Wait() != nil {
		// Report the failure with the lowest index
		// so that the error does not depend on scheduling.
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// Format is an output format accepted by [Render].
type Format string

// Output formats.
const (
	// FormatSource is Luau source code.
	FormatSource Format = "source"
	// FormatIR is a listing of the lifted instructions of every function,
	// grouped by basic block.
	FormatIR Format = "ir"
	// FormatDot is the control-flow graph of every function
	// in the Graphviz DOT language.
	FormatDot Format = "dot"
)

// Formats returns the formats accepted by [Render].
func Formats() []Format {
	return []Format{FormatSource, FormatIR, FormatDot}
}

// ParseFormat returns the format with the given name.
// "listing" is accepted as an alias for [FormatIR]
// and "graph" as an alias for [FormatDot].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatSource, FormatIR, FormatDot:
		return f, nil
	case "listing":
		return FormatIR, nil
	case "graph":
		return FormatDot, nil
	default:
		return "", decerr.New(decerr.StageRender, decerr.RenderError, "unknown format %q", s)
	}
}

// String returns string(f).
func (f Format) String() string {
	return string(f)
}

// Render writes the decoded chunk to w in the given format.
// Nothing is written to w if an error is returned.
func Render(w io.Writer, result *Result, format Format) error {
	switch format {
	case FormatSource:
		return emit.Source(w, result.chunk, result.structured, &emit.Options{
			PreferStringInterpolation: result.opts.PreferStringInterpolation,
			GuessVariableNames:        result.opts.GuessVariableNames,
			RenameUpvalues:            result.opts.RenameUpvalues,
			HeaderComment:             result.opts.HeaderComment,
		})
	case FormatIR:
		return emit.Listing(w, result.chunk, result.lifted)
	case FormatDot:
		return emit.Graph(w, result.chunk, result.lifted)
	default:
		return decerr.New(decerr.StageRender, decerr.RenderError, "unsupported format %q", format)
	}
}
