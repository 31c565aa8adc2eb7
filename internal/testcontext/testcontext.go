// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package testcontext provides contexts for tests
// that route the decompiler's log output to the test log.
package testcontext

import (
	"context"
	"testing"
	"time"

	"zombiezen.com/go/log/testlog"
)

// New returns a context that associates the test logger with the test.
// The context is canceled when the test finishes
// or when the test's deadline passes, whichever is first.
func New(tb testing.TB) context.Context {
	ctx := tb.Context()
	if d, ok := deadline(tb); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, d)
		tb.Cleanup(cancel)
	}
	return testlog.WithTB(ctx, tb)
}

func deadline(x any) (deadline time.Time, ok bool) {
	d, ok := x.(interface {
		Deadline() (deadline time.Time, ok bool)
	})
	if !ok {
		return time.Time{}, false
	}
	return d.Deadline()
}
