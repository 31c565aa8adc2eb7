// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaudec

import "zb.256lights.llc/luaudec/internal/decerr"

// Error is the type of errors returned by [Decode] and [Render].
// Use [errors.Is] with an [ErrorKind] to classify an error
// and [errors.As] to retrieve the offset, function, and program counter
// it refers to.
type Error = decerr.Error

// ErrorKind is the classification of an [*Error].
// ErrorKind implements error so that it can be the target of [errors.Is].
type ErrorKind = decerr.Kind

// Error kinds.
const (
	// UnexpectedEndOfData means the chunk ended in the middle of a value.
	UnexpectedEndOfData = decerr.UnexpectedEndOfData
	// MalformedData means a value in the chunk was invalid.
	MalformedData = decerr.MalformedData
	// UnsupportedVersion means the chunk's bytecode version
	// or types version is not supported.
	UnsupportedVersion = decerr.UnsupportedVersion
	// InvariantViolation means the chunk's code could not be analyzed,
	// usually because of a jump outside the function
	// or an impossible control-flow shape.
	InvariantViolation = decerr.InvariantViolation
	// RenderError means the output could not be produced or written.
	RenderError = decerr.RenderError
)

// Unknown is the value of an [*Error]'s location fields
// when the location does not apply.
const Unknown = decerr.Unknown
