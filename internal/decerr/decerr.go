// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package decerr defines the error taxonomy shared by the decompiler stages.
//
// Every failure carries a [Kind] and the [Stage] it originated in,
// plus whatever location is known (byte offset, function, program counter, table index)
// so that a user sees which byte or instruction was at fault.
// Kinds implement [error] so that callers can test with [errors.Is]:
//
//	if errors.Is(err, decerr.MalformedData) { ... }
package decerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a category of decompilation failure.
type Kind int

// Error kinds.
const (
	// UnexpectedEndOfData means the input ended in the middle of a read.
	UnexpectedEndOfData Kind = 1 + iota
	// MalformedData means a field holds an invalid value.
	MalformedData
	// UnsupportedVersion means the chunk version or types version is out of range.
	UnsupportedVersion
	// InvariantViolation means an internal consistency check failed
	// during lifting or structuring.
	InvariantViolation
	// RenderError means output could not be produced.
	RenderError
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case UnexpectedEndOfData:
		return "unexpected end of data"
	case MalformedData:
		return "malformed data"
	case UnsupportedVersion:
		return "unsupported version"
	case InvariantViolation:
		return "invariant violation"
	case RenderError:
		return "render error"
	default:
		return fmt.Sprintf("decerr.Kind(%d)", int(k))
	}
}

// Error returns k.String().
// Kinds are errors so that [errors.Is] can match an [*Error] against its kind.
func (k Kind) Error() string {
	return k.String()
}

// Stage is the pipeline stage that produced an error.
type Stage int

// Pipeline stages.
const (
	StageRead Stage = iota
	StageDeserialize
	StageLift
	StageStructure
	StageRender
)

func (s Stage) String() string {
	switch s {
	case StageRead:
		return "read"
	case StageDeserialize:
		return "deserialize"
	case StageLift:
		return "lift"
	case StageStructure:
		return "structure"
	case StageRender:
		return "render"
	default:
		return fmt.Sprintf("decerr.Stage(%d)", int(s))
	}
}

// Unknown is the value used for location fields of an [Error] that do not apply.
const Unknown = -1

// Error is a decompilation failure.
type Error struct {
	Kind  Kind
	Stage Stage

	// Offset is the byte offset into the input, or [Unknown].
	Offset int
	// Function is the index of the function prototype, or [Unknown].
	Function int
	// PC is the instruction index within the function, or [Unknown].
	PC int
	// Index is a constant or symbol table index, or [Unknown].
	// IndexName says what kind of table it indexes (e.g. "constant").
	Index     int
	IndexName string

	Msg string
	Err error
}

// New returns a new error with all location fields set to [Unknown].
func New(stage Stage, kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:     kind,
		Stage:    stage,
		Offset:   Unknown,
		Function: Unknown,
		PC:       Unknown,
		Index:    Unknown,
		Msg:      fmt.Sprintf(format, args...),
	}
}

// AtOffset returns a new error that occurred at the given byte offset.
func AtOffset(stage Stage, kind Kind, offset int, format string, args ...any) *Error {
	e := New(stage, kind, format, args...)
	e.Offset = offset
	return e
}

// AtPC returns a new error that occurred at the given instruction of a function.
func AtPC(stage Stage, kind Kind, function, pc int, format string, args ...any) *Error {
	e := New(stage, kind, format, args...)
	e.Function = function
	e.PC = pc
	return e
}

// Wrap returns an error of the given kind that wraps err.
func Wrap(stage Stage, kind Kind, err error) *Error {
	e := New(stage, kind, "%v", err)
	e.Err = err
	return e
}

// Within returns a copy of err attributed to the given stage
// with field prepended to its message.
// If err is not an [*Error], it is wrapped as [MalformedData].
func Within(stage Stage, field string, err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		e = Wrap(stage, MalformedData, err)
	}
	e2 := new(Error)
	*e2 = *e
	e2.Stage = stage
	if field != "" {
		if e2.Msg == "" {
			e2.Msg = field
		} else {
			e2.Msg = field + ": " + e2.Msg
		}
	}
	return e2
}

// WithIndex returns a copy of e that refers to the given table index.
func (e *Error) WithIndex(name string, i int) *Error {
	e2 := new(Error)
	*e2 = *e
	e2.IndexName = name
	e2.Index = i
	return e2
}

// InFunction returns a copy of e attributed to the given function
// if e does not already name one.
func (e *Error) InFunction(function int) *Error {
	if e.Function != Unknown {
		return e
	}
	e2 := new(Error)
	*e2 = *e
	e2.Function = function
	return e2
}

// Error formats the error as "stage: kind at location: message".
func (e *Error) Error() string {
	sb := new(strings.Builder)
	sb.WriteString(e.Stage.String())
	sb.WriteString(": ")
	sb.WriteString(e.Kind.String())
	var loc []string
	if e.Offset != Unknown {
		loc = append(loc, fmt.Sprintf("offset %d", e.Offset))
	}
	if e.Function != Unknown {
		loc = append(loc, fmt.Sprintf("function %d", e.Function))
	}
	if e.PC != Unknown {
		loc = append(loc, fmt.Sprintf("pc %d", e.PC))
	}
	if e.Index != Unknown {
		name := e.IndexName
		if name == "" {
			name = "index"
		}
		loc = append(loc, fmt.Sprintf("%s %d", name, e.Index))
	}
	if len(loc) > 0 {
		sb.WriteString(" at ")
		sb.WriteString(strings.Join(loc, ", "))
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

// Is reports whether target is e's [Kind].
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}
