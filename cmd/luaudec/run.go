// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dsnet/compress/bzip2"
	"golang.org/x/term"
	"zb.256lights.llc/luaudec"
	"zb.256lights.llc/luaudec/internal/outcache"
	"zombiezen.com/go/log"
)

type runOptions struct {
	inputFilename  string
	outputFilename string
	format         luaudec.Format
	decode         luaudec.Options
	noCache        bool
}

// run decodes the input file and writes it in the requested format.
func run(ctx context.Context, g *globalConfig, opts *runOptions) error {
	data, err := readInput(opts.inputFilename)
	if err != nil {
		return err
	}
	output, err := renderCached(ctx, g, data, opts)
	if err != nil {
		return err
	}
	return writeOutput(opts.outputFilename, output)
}

// readInput reads the named file, or standard input if name is empty or "-".
// Input compressed with bzip2 is decompressed.
func readInput(name string) ([]byte, error) {
	var data []byte
	var err error
	if name == "" || name == "-" {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("refusing to read bytecode from a terminal. Pass --input or redirect stdin.")
		}
		data, err = io.ReadAll(os.Stdin)
		name = "stdin"
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, err
	}
	// "BZh" cannot be the start of a chunk:
	// 'B' is not a supported bytecode version.
	if bytes.HasPrefix(data, []byte("BZh")) {
		r, err := bzip2.NewReader(bytes.NewReader(data), nil)
		if err != nil {
			return nil, fmt.Errorf("read %s: %v", name, err)
		}
		defer r.Close()
		data, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %v", name, err)
		}
	}
	return data, nil
}

// writeOutput writes data to the named file,
// or standard output if name is empty or "-".
func writeOutput(name string, data []byte) error {
	if name == "" || name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(name, data, 0o666)
}

// renderCached returns the rendered output for data,
// consulting the cache database if one is configured.
func renderCached(ctx context.Context, g *globalConfig, data []byte, opts *runOptions) ([]byte, error) {
	if g.CacheDB == "" || opts.noCache {
		return render(ctx, data, opts)
	}
	cache, err := outcache.Open(g.CacheDB)
	if err != nil {
		log.Warnf(ctx, "Cache unavailable: %v", err)
		return render(ctx, data, opts)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Errorf(ctx, "%v", err)
		}
	}()

	keyParams := opts.decode
	keyParams.Concurrency = 0
	key, err := outcache.Key(data, opts.format.String(), keyParams)
	if err != nil {
		return nil, err
	}
	if output, found, err := cache.Get(ctx, key); err != nil {
		log.Warnf(ctx, "%v", err)
	} else if found {
		log.Debugf(ctx, "Using cached output %s", key)
		return output, nil
	}

	output, err := render(ctx, data, opts)
	if err != nil {
		return nil, err
	}
	if err := cache.Put(ctx, key, opts.format.String(), output); err != nil {
		log.Warnf(ctx, "%v", err)
		return output, nil
	}
	if err := cache.Trim(ctx, g.CacheSize); err != nil {
		log.Warnf(ctx, "%v", err)
	}
	return output, nil
}

func render(ctx context.Context, data []byte, opts *runOptions) ([]byte, error) {
	result, err := luaudec.DecodeBytes(ctx, data, &opts.decode)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if err := luaudec.Render(buf, result, opts.format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
