// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	"go4.org/xdgdir"
)

func cacheDir() string {
	if dir := xdgdir.Cache.Path(); dir != "" {
		return dir
	}
	dir, _ := os.UserCacheDir()
	return dir
}

// configDirs returns the directories to search for configuration files
// in decreasing order of precedence.
func configDirs() []string {
	return xdgdir.Config.SearchPaths()
}
