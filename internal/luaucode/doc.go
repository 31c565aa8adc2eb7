// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package luaucode provides an in-memory model of compiled Luau bytecode
// along with its binary encoding.
//
// A [Chunk] is loaded with [Unmarshal] (or [*Chunk.UnmarshalBinary]),
// which validates the whole chunk before returning it.
// Vendor-specific opcode encodings are undone by an [OpcodeDecoder].
package luaucode
