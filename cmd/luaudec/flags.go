// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"zb.256lights.llc/luaudec"
)

// addDecodeFlags registers the flags shared by every command that decodes bytecode.
func addDecodeFlags(fs *pflag.FlagSet, opts *runOptions) {
	fs.Var((*decoderFlag)(&opts.decode.OpcodeDecoder), "decoder", "opcode `strategy` ("+strings.Join(luaudec.DecoderNames(), " or ")+")")
	fs.IntVarP(&opts.decode.Concurrency, "jobs", "j", opts.decode.Concurrency, "maximum `number` of functions to process at once")
	fs.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the cache database")
}

var (
	_ pflag.Value = formatFlag{}
	_ pflag.Value = (*decoderFlag)(nil)
)

// formatFlag is the implementation of [github.com/spf13/pflag.Value]
// for an output format restricted to a set of allowed formats.
type formatFlag struct {
	format  *luaudec.Format
	allowed []luaudec.Format
}

func (f formatFlag) Type() string { return "format" }
func (f formatFlag) Get() any     { return *f.format }

func (f formatFlag) String() string {
	if f.format == nil {
		return ""
	}
	return f.format.String()
}

func (f formatFlag) Set(s string) error {
	// Only literal names are accepted, not the aliases [luaudec.ParseFormat] knows.
	format := luaudec.Format(s)
	if !slices.Contains(f.allowed, format) {
		names := make([]string, len(f.allowed))
		for i, a := range f.allowed {
			names[i] = a.String()
		}
		return fmt.Errorf("unknown format %q (must be one of %s)", s, strings.Join(names, ", "))
	}
	*f.format = format
	return nil
}

// decoderFlag is the implementation of [github.com/spf13/pflag.Value]
// for [luaudec.Options.OpcodeDecoder].
type decoderFlag string

func (f *decoderFlag) Type() string  { return "decoder" }
func (f decoderFlag) String() string { return string(f) }
func (f decoderFlag) Get() any       { return string(f) }

func (f *decoderFlag) Set(s string) error {
	if err := luaudec.CheckDecoder(s); err != nil {
		return err
	}
	*f = decoderFlag(strings.ToLower(s))
	return nil
}
