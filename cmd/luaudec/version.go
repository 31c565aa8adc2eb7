// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// luaudecVersion is the version string filled in by the linker (e.g. "1.2.3").
var luaudecVersion string

func newVersionCommand() *cobra.Command {
	c := &cobra.Command{
		Use:                   "version",
		Short:                 "show version information",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), versionText())
		return err
	}
	return c
}

func versionText() string {
	firstLine := "luaudec"
	version := luaudecVersion
	if version == "" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	if version == "" {
		firstLine += " (version unknown)"
	} else {
		firstLine += " version " + version
	}
	return fmt.Sprintf("%s\nBytecode:     Luau versions 3 to 5\nGo:           %s\nSystem:       %s/%s\nCPUs:         %d\n",
		firstLine, runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}
