// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"
	"zb.256lights.llc/luaudec"
)

func newDisassembleCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "disassemble [options]",
		Short:                 "list lifted instructions or the control-flow graph",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := &runOptions{
		format: luaudec.FormatIR,
		decode: luaudec.Options{
			OpcodeDecoder: g.Decompile.OpcodeDecoder,
			Concurrency:   g.Decompile.Concurrency,
		},
	}
	c.Flags().StringVarP(&opts.inputFilename, "input", "i", "-", "input `file` (- for stdin)")
	c.Flags().StringVarP(&opts.outputFilename, "output", "o", "-", "output `file` (- for stdout)")
	c.Flags().VarP(formatFlag{
		format:  &opts.format,
		allowed: []luaudec.Format{luaudec.FormatIR, luaudec.FormatDot},
	}, "format", "f", "output `format` (ir or dot)")
	addDecodeFlags(c.Flags(), opts)
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), g, opts)
	}
	return c
}
