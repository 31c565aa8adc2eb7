// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"
	"zb.256lights.llc/luaudec"
)

func newDecompileCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "decompile [options] [FILE]",
		Short:                 "decompile Luau bytecode to source",
		DisableFlagsInUseLine: true,
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := &runOptions{
		format: luaudec.FormatSource,
		decode: g.Decompile,
	}
	c.Flags().StringVarP(&opts.outputFilename, "output", "o", "-", "output `file`")
	c.Flags().BoolVar(&opts.decode.PreferStringInterpolation, "interpolate", opts.decode.PreferStringInterpolation, "prefer interpolated strings")
	c.Flags().BoolVar(&opts.decode.GuessVariableNames, "guess-names", opts.decode.GuessVariableNames, "name variables after their values")
	c.Flags().BoolVar(&opts.decode.InlineTableConstructors, "inline-tables", opts.decode.InlineTableConstructors, "fold keyed stores into table constructors")
	c.Flags().BoolVar(&opts.decode.RenameUpvalues, "rename-upvalues", opts.decode.RenameUpvalues, "use debug names for upvalues")
	c.Flags().BoolVar(&opts.decode.HeaderComment, "header", opts.decode.HeaderComment, "start output with a comment naming the bytecode version")
	addDecodeFlags(c.Flags(), opts)
	c.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			opts.inputFilename = args[0]
		}
		return run(cmd.Context(), g, opts)
	}
	return c
}
