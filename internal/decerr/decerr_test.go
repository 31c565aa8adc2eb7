// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package decerr

import (
	"errors"
	"io"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := error(AtOffset(StageDeserialize, MalformedData, 12, "bad tag"))
	if !errors.Is(err, MalformedData) {
		t.Errorf("errors.Is(%v, MalformedData) = false; want true", err)
	}
	if errors.Is(err, UnexpectedEndOfData) {
		t.Errorf("errors.Is(%v, UnexpectedEndOfData) = true; want false", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Offset != 12 {
		t.Errorf("errors.As(%v) offset = %d; want 12", err, e.Offset)
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := Wrap(StageRender, RenderError, io.ErrClosedPipe)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("errors.Is(%v, io.ErrClosedPipe) = false; want true", err)
	}
	if !errors.Is(err, RenderError) {
		t.Errorf("errors.Is(%v, RenderError) = false; want true", err)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{
			err:  AtOffset(StageDeserialize, UnsupportedVersion, 0, "version 7"),
			want: "deserialize: unsupported version at offset 0: version 7",
		},
		{
			err:  AtPC(StageLift, InvariantViolation, 2, 17, "jump target 99 out of range"),
			want: "lift: invariant violation at function 2, pc 17: jump target 99 out of range",
		},
		{
			err:  AtOffset(StageDeserialize, MalformedData, 40, "table key").WithIndex("constant", 5),
			want: "deserialize: malformed data at offset 40, constant 5: table key",
		},
		{
			err:  New(StageRender, RenderError, "unknown format %q", "xml"),
			want: `render: render error: unknown format "xml"`,
		},
	}
	for _, test := range tests {
		if got := test.err.Error(); got != test.want {
			t.Errorf("Error() = %q; want %q", got, test.want)
		}
	}
}

func TestInFunctionKeepsExisting(t *testing.T) {
	err := AtPC(StageLift, InvariantViolation, 3, 0, "x")
	if got := err.InFunction(9).Function; got != 3 {
		t.Errorf("InFunction(9).Function = %d; want 3", got)
	}
	err = New(StageLift, InvariantViolation, "x")
	if got := err.InFunction(9).Function; got != 9 {
		t.Errorf("InFunction(9).Function = %d; want 9", got)
	}
}

func TestWithin(t *testing.T) {
	inner := AtOffset(StageRead, UnexpectedEndOfData, 9, "need 4 bytes")
	err := Within(StageDeserialize, "constant value", inner)
	if got, want := err.Error(), "deserialize: unexpected end of data at offset 9: constant value: need 4 bytes"; got != want {
		t.Errorf("Within(...).Error() = %q; want %q", got, want)
	}
	if inner.Stage != StageRead || inner.Msg != "need 4 bytes" {
		t.Errorf("Within modified its argument: %+v", inner)
	}

	wrapped := Within(StageDeserialize, "symbol", io.ErrUnexpectedEOF)
	if !errors.Is(wrapped, MalformedData) || !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Errorf("Within(..., io.ErrUnexpectedEOF) = %v; want MalformedData wrapping io.ErrUnexpectedEOF", wrapped)
	}
}
