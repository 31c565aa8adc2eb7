// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tailscale/hujson"
	"zb.256lights.llc/luaudec"
)

// defaultCacheSize is the default number of outputs kept in the cache database.
const defaultCacheSize = 1000

type globalConfig struct {
	Debug     bool            `json:"debug"`
	CacheDB   string          `json:"cacheDB"`
	CacheSize int             `json:"cacheSize"`
	Decompile luaudec.Options `json:"decompile"`
}

func defaultGlobalConfig() *globalConfig {
	g := &globalConfig{
		CacheSize: defaultCacheSize,
	}
	if cd := cacheDir(); cd != "" {
		g.CacheDB = filepath.Join(cd, "luaudec", "cache.db")
	}
	return g
}

func (g *globalConfig) mergeEnvironment() {
	if path, ok := os.LookupEnv("LUAUDEC_CACHE_DB"); ok {
		g.CacheDB = path
	}
}

func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}
	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (g *globalConfig) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("config must be an object not a %v", got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "debug":
			if err := jsonv2.UnmarshalDecode(in, &g.Debug); err != nil {
				return fmt.Errorf("unmarshal config.debug: %w", err)
			}
		case "cacheDB":
			if err := jsonv2.UnmarshalDecode(in, &g.CacheDB); err != nil {
				return fmt.Errorf("unmarshal config.cacheDB: %w", err)
			}
		case "cacheSize":
			if err := jsonv2.UnmarshalDecode(in, &g.CacheSize); err != nil {
				return fmt.Errorf("unmarshal config.cacheSize: %w", err)
			}
		case "decompile":
			// Fields not present in this file keep their current values.
			if err := jsonv2.UnmarshalDecode(in, &g.Decompile); err != nil {
				return fmt.Errorf("unmarshal config.decompile: %w", err)
			}
			if err := luaudec.CheckDecoder(g.Decompile.OpcodeDecoder); err != nil {
				return fmt.Errorf("unmarshal config.decompile.opcodeDecoder: %w", err)
			}
		default:
			if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
				return fmt.Errorf("unmarshal config: unknown field %q", k)
			}
			if err := in.SkipValue(); err != nil {
				return err
			}
		}
	}
}

// configSearchPaths returns the configuration files to read
// in increasing order of precedence.
func configSearchPaths() iter.Seq[string] {
	return func(yield func(string) bool) {
		dirs := configDirs()
		for i := len(dirs) - 1; i >= 0; i-- {
			if !yield(filepath.Join(dirs[i], "luaudec", "config.jwcc")) {
				return
			}
		}
	}
}
