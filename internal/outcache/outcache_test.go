// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package outcache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luaudec/internal/testcontext"
	"zombiezen.com/go/log/testlog"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func openTestCache(tb testing.TB) *Cache {
	tb.Helper()
	c, err := Open(filepath.Join(tb.TempDir(), "cache", "outputs.db"))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := c.Close(); err != nil {
			tb.Error(err)
		}
	})
	return c
}

func TestGetPut(t *testing.T) {
	ctx := testcontext.New(t)
	c := openTestCache(t)

	if got, found, err := c.Get(ctx, "missing"); got != nil || found || err != nil {
		t.Errorf("Get(ctx, \"missing\") = %q, %t, %v; want <nil>, false, <nil>", got, found, err)
	}

	want := []byte(strings.Repeat("local x = 1\n", 100))
	if err := c.Put(ctx, "k1", "source", want); err != nil {
		t.Fatal(err)
	}
	got, found, err := c.Get(ctx, "k1")
	if err != nil || !found {
		t.Fatalf("Get(ctx, \"k1\") = _, %t, %v; want _, true, <nil>", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get(ctx, \"k1\") (-want +got):\n%s", diff)
	}

	want2 := []byte("return 5\n")
	if err := c.Put(ctx, "k1", "source", want2); err != nil {
		t.Fatal(err)
	}
	got, _, err = c.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want2, got); diff != "" {
		t.Errorf("after overwrite, Get(ctx, \"k1\") (-want +got):\n%s", diff)
	}
}

func TestPutEmpty(t *testing.T) {
	ctx := testcontext.New(t)
	c := openTestCache(t)
	if err := c.Put(ctx, "empty", "ir", nil); err != nil {
		t.Fatal(err)
	}
	got, found, err := c.Get(ctx, "empty")
	if len(got) != 0 || !found || err != nil {
		t.Errorf("Get(ctx, \"empty\") = %q, %t, %v; want \"\", true, <nil>", got, found, err)
	}
}

func TestGetCorruptSize(t *testing.T) {
	ctx := testcontext.New(t)
	c := openTestCache(t)
	if err := c.Put(ctx, "k1", "source", []byte("return 5\n")); err != nil {
		t.Fatal(err)
	}
	conn, err := c.pool.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = sqlitex.ExecuteTransient(conn, `UPDATE "outputs" SET "size" = :size WHERE "key" = :key;`, &sqlitex.ExecOptions{
		Named: map[string]any{
			":key":  "k1",
			":size": int64(1) << 50,
		},
	})
	c.pool.Put(conn)
	if err != nil {
		t.Fatal(err)
	}

	if got, found, err := c.Get(ctx, "k1"); got != nil || found || err != nil {
		t.Errorf("Get(ctx, \"k1\") = %q, %t, %v; want <nil>, false, <nil>", got, found, err)
	}
}

func TestTrim(t *testing.T) {
	ctx := testcontext.New(t)
	c := openTestCache(t)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		now = now.Add(time.Second)
		if err := c.Put(ctx, key, "source", []byte(key)); err != nil {
			t.Fatal(err)
		}
	}
	// Using "a" makes "b" the least recently used entry.
	now = now.Add(time.Second)
	if _, _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}

	if err := c.Trim(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if n, err := c.Len(ctx); n != 2 || err != nil {
		t.Errorf("after Trim(ctx, 2), Len(ctx) = %d, %v; want 2, <nil>", n, err)
	}
	for key, want := range map[string]bool{"a": true, "b": false, "c": true} {
		if _, found, err := c.Get(ctx, key); found != want || err != nil {
			t.Errorf("after Trim(ctx, 2), Get(ctx, %q) = _, %t, %v; want _, %t, <nil>", key, found, err, want)
		}
	}
}

func TestKey(t *testing.T) {
	type params struct {
		A bool `json:"a"`
		B bool `json:"b"`
	}
	base, err := Key([]byte("chunk"), "source", params{A: true})
	if err != nil {
		t.Fatal(err)
	}
	if again, err := Key([]byte("chunk"), "source", params{A: true}); again != base || err != nil {
		t.Errorf("Key is not stable: %q, %v; want %q", again, err, base)
	}
	others := []struct {
		input  string
		format string
		params params
	}{
		{"chunk2", "source", params{A: true}},
		{"chunk", "ir", params{A: true}},
		{"chunk", "source", params{B: true}},
		{"chunksource", "", params{A: true}},
	}
	for _, o := range others {
		got, err := Key([]byte(o.input), o.format, o.params)
		if err != nil {
			t.Error(err)
			continue
		}
		if got == base {
			t.Errorf("Key(%q, %q, %+v) = %q, same as base", o.input, o.format, o.params, got)
		}
	}
}
