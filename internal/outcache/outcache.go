// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package outcache provides a persistent cache of decompiler output
// stored in a SQLite database.
package outcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dsnet/compress/bzip2"
	jsonv2 "github.com/go-json-experiment/json"
	"zombiezen.com/go/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Cache is a handle to a cache database.
// It is safe to use from multiple goroutines.
type Cache struct {
	pool *sqlitemigration.Pool
	now  func() time.Time
}

// Open opens the cache database at the given path,
// creating it and its parent directories if they do not exist.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, fmt.Errorf("open cache: %v", err)
	}
	var schema sqlitemigration.Schema
	for i := 1; ; i++ {
		migration, err := fs.ReadFile(sqlFiles(), fmt.Sprintf("schema/%02d.sql", i))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("open cache: read migrations: %v", err)
		}
		schema.Migrations = append(schema.Migrations, string(migration))
	}
	return &Cache{
		pool: sqlitemigration.NewPool(path, schema, sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PoolSize:    1,
			PrepareConn: prepareConn,
		}),
		now: time.Now,
	}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode=wal;", nil); err != nil {
		return fmt.Errorf("enable write-ahead logging: %v", err)
	}
	return nil
}

// Close releases all resources associated with the cache.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// Key returns the cache key for rendering input in the given format
// with the given parameters.
// params is marshaled as JSON, so it must be JSON-serializable.
func Key(input []byte, format string, params any) (string, error) {
	paramsJSON, err := jsonv2.Marshal(params, jsonv2.Deterministic(true))
	if err != nil {
		return "", fmt.Errorf("compute cache key: %v", err)
	}
	h := sha256.New()
	writeField(h, input)
	writeField(h, []byte(format))
	writeField(h, paramsJSON)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeField writes a length-prefixed byte string to w
// so that adjacent fields cannot be confused.
func writeField(w io.Writer, b []byte) {
	fmt.Fprintf(w, "%d:", len(b))
	w.Write(b)
}

// Get returns the output stored for key.
// If there is no such entry, Get returns (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) (_ []byte, found bool, err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("read cache: %v", err)
	}
	defer c.pool.Put(conn)

	var compressed []byte
	size := int64(-1)
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "get.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key": key,
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			compressed = make([]byte, stmt.GetLen("data"))
			stmt.GetBytes("data", compressed)
			size = stmt.GetInt64("size")
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("read cache %s: %v", key, err)
	}
	if size < 0 {
		return nil, false, nil
	}
	data, err := decompress(compressed, size)
	if err != nil {
		// A corrupt entry is treated as a miss. Put will overwrite it.
		log.Warnf(ctx, "Cache entry %s is corrupt: %v", key, err)
		return nil, false, nil
	}

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "touch.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key": key,
			":now": c.now().Unix(),
		},
	})
	if err != nil {
		log.Warnf(ctx, "Update cache entry %s: %v", key, err)
	}
	return data, true, nil
}

// Put stores the output for key, replacing any existing entry.
func (c *Cache) Put(ctx context.Context, key, format string, data []byte) error {
	compressed, err := compress(data)
	if err != nil {
		return fmt.Errorf("write cache %s: %v", key, err)
	}
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("write cache: %v", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "put.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":key":    key,
			":format": format,
			":data":   compressed,
			":size":   int64(len(data)),
			":now":    c.now().Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("write cache %s: %v", key, err)
	}
	log.Debugf(ctx, "Cached %s output %s (%d bytes, %d compressed)", format, key, len(data), len(compressed))
	return nil
}

// Trim removes all but the keep most recently used entries.
func (c *Cache) Trim(ctx context.Context, keep int) (err error) {
	if keep < 0 {
		keep = 0
	}
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("trim cache: %v", err)
	}
	defer c.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "trim.sql", &sqlitex.ExecOptions{
		Named: map[string]any{
			":keep": int64(keep),
		},
	})
	if err != nil {
		return fmt.Errorf("trim cache: %v", err)
	}
	if n := conn.Changes(); n > 0 {
		log.Debugf(ctx, "Trimmed %d cache entries", n)
	}
	return nil
}

// Len returns the number of entries in the cache.
func (c *Cache) Len(ctx context.Context) (int, error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %v", err)
	}
	defer c.pool.Put(conn)

	var n int
	err = sqlitex.ExecuteTransientFS(conn, sqlFiles(), "count.sql", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = int(stmt.GetInt64("n"))
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %v", err)
	}
	return n, nil
}

func compress(data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := bzip2.NewWriter(buf, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maxCompressionRatio bounds the expected ratio of output size to compressed size.
const maxCompressionRatio = 64

func decompress(compressed []byte, size int64) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(compressed), nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	// size comes from the database, so it only bounds the preallocation.
	data := make([]byte, 0, min(size, int64(len(compressed))*maxCompressionRatio))
	buf := bytes.NewBuffer(data)
	if _, err := io.Copy(buf, io.LimitReader(r, size+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) != size {
		return nil, fmt.Errorf("decompressed %d bytes (expected %d)", buf.Len(), size)
	}
	return buf.Bytes(), nil
}

//go:embed sql
var rawSQLFiles embed.FS

func sqlFiles() fs.FS {
	fsys, err := fs.Sub(rawSQLFiles, "sql")
	if err != nil {
		panic(err)
	}
	return fsys
}
