// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luaudec"
)

func writeConfigFiles(tb testing.TB, contents ...string) []string {
	tb.Helper()
	dir := tb.TempDir()
	var paths []string
	for i, c := range contents {
		path := filepath.Join(dir, "config"+string(rune('1'+i))+".jwcc")
		if err := os.WriteFile(path, []byte(c), 0o666); err != nil {
			tb.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestDefaultGlobalConfig(t *testing.T) {
	got := defaultGlobalConfig()
	if got.CacheSize != defaultCacheSize {
		t.Errorf("defaultGlobalConfig().CacheSize = %d; want %d", got.CacheSize, defaultCacheSize)
	}
}

func TestGlobalConfigMergeFiles(t *testing.T) {
	paths := writeConfigFiles(t,
		`{
			// Comments and trailing commas are allowed.
			"debug": true,
			"cacheDB": "/foo/cache.db",
			"decompile": {"guessVariableNames": true, "opcodeDecoder": "roblox"},
		}`,
		`{"cacheDB": "/bar/cache.db", "decompile": {"headerComment": true}, "futureOption": [1, 2]}`,
	)
	paths = append(paths, filepath.Join(filepath.Dir(paths[0]), "missing.jwcc"))

	g := &globalConfig{CacheSize: 5}
	if err := g.mergeFiles(slices.Values(paths)); err != nil {
		t.Fatal("mergeFiles:", err)
	}
	want := &globalConfig{
		Debug:     true,
		CacheDB:   "/bar/cache.db",
		CacheSize: 5,
		Decompile: luaudec.Options{
			GuessVariableNames: true,
			HeaderComment:      true,
			OpcodeDecoder:      "roblox",
		},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestGlobalConfigBadDecoder(t *testing.T) {
	paths := writeConfigFiles(t, `{"decompile": {"opcodeDecoder": "xyzzy"}}`)
	g := new(globalConfig)
	if err := g.mergeFiles(slices.Values(paths)); err == nil {
		t.Error("mergeFiles did not return an error")
	}
}

func TestGlobalConfigNotObject(t *testing.T) {
	paths := writeConfigFiles(t, `[]`)
	g := new(globalConfig)
	if err := g.mergeFiles(slices.Values(paths)); err == nil {
		t.Error("mergeFiles did not return an error")
	}
}
