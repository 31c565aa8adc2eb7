// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"fmt"
	"iter"
	"math"
	"slices"

	"zb.256lights.llc/luaudec/internal/bytereader"
	"zb.256lights.llc/luaudec/internal/decerr"
)

// maxLineGapLog2 is the largest interval size exponent accepted in a chunk.
const maxLineGapLog2 = 31

// LineInfo maps instruction addresses to source lines.
// The zero value has no line information.
//
// The instruction stream is divided into intervals of 2^GapLog2 words.
// Each interval stores an absolute baseline line
// and every word stores an 8-bit offset from its interval's baseline.
type LineInfo struct {
	GapLog2   uint8
	offsets   []uint8
	baselines []int32
}

// NewLineInfo returns a [LineInfo] with one line per code word.
// It returns an error if a line is more than 255 lines
// after the smallest line in its interval.
func NewLineInfo(gapLog2 uint8, lines []int) (LineInfo, error) {
	if gapLog2 > maxLineGapLog2 {
		return LineInfo{}, fmt.Errorf("interval exponent %d too large", gapLog2)
	}
	n := len(lines)
	info := LineInfo{
		GapLog2:   gapLog2,
		offsets:   make([]uint8, n),
		baselines: make([]int32, numLineIntervals(n, gapLog2)),
	}
	for i := range info.baselines {
		start := i << gapLog2
		end := min(start+1<<gapLog2, n)
		b := slices.Min(lines[start:end])
		if b < math.MinInt32 || b > math.MaxInt32 {
			return LineInfo{}, fmt.Errorf("line %d out of range", b)
		}
		info.baselines[i] = int32(b)
	}
	for pc, line := range lines {
		off := line - int(info.baselines[pc>>gapLog2])
		if off > 0xff {
			return LineInfo{}, fmt.Errorf("line %d at pc %d too far from interval baseline %d",
				line, pc, info.baselines[pc>>gapLog2])
		}
		info.offsets[pc] = uint8(off)
	}
	return info, nil
}

// Len returns the number of instruction words with line information.
func (info LineInfo) Len() int {
	return len(info.offsets)
}

// At returns the line of the instruction at pc
// or 0 if unknown.
func (info LineInfo) At(pc int) int {
	if pc < 0 || pc >= len(info.offsets) {
		return 0
	}
	return int(info.baselines[pc>>info.GapLog2]) + int(info.offsets[pc])
}

// All returns an iterator over the sequence's line numbers.
// (The index is the instruction address.)
func (info LineInfo) All() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for pc := range info.offsets {
			if !yield(pc, info.At(pc)) {
				return
			}
		}
	}
}

// Equal reports whether info and other map every instruction to the same line.
func (info LineInfo) Equal(other LineInfo) bool {
	if info.Len() != other.Len() {
		return false
	}
	for pc := range info.offsets {
		if info.At(pc) != other.At(pc) {
			return false
		}
	}
	return true
}

func numLineIntervals(sizecode int, gapLog2 uint8) int {
	if sizecode == 0 {
		return 0
	}
	return (sizecode-1)>>gapLog2 + 1
}

// loadLineInfo reads the line information block
// that follows the has-line-info flag.
func loadLineInfo(r *bytereader.Reader, sizecode int) (LineInfo, error) {
	start := r.Pos()
	gapLog2, err := r.ReadUint8()
	if err != nil {
		return LineInfo{}, decerr.Within(decerr.StageDeserialize, "line gap", err)
	}
	if gapLog2 > maxLineGapLog2 {
		return LineInfo{}, decerr.AtOffset(decerr.StageDeserialize, decerr.MalformedData, start,
			"line gap: interval exponent %d too large", gapLog2)
	}
	deltas, err := r.ReadBytes(sizecode)
	if err != nil {
		return LineInfo{}, decerr.Within(decerr.StageDeserialize, "line offsets", err)
	}
	info := LineInfo{
		GapLog2:   gapLog2,
		offsets:   make([]uint8, sizecode),
		baselines: make([]int32, numLineIntervals(sizecode, gapLog2)),
	}
	var offset uint8
	for pc, d := range deltas {
		offset += d
		info.offsets[pc] = offset
	}
	var last int32
	for i := range info.baselines {
		x, err := r.ReadInt32()
		if err != nil {
			return LineInfo{}, decerr.Within(decerr.StageDeserialize, "line baselines", err)
		}
		last += x
		info.baselines[i] = last
	}
	return info, nil
}

// appendBinary appends the line information block (without the flag byte).
func (info LineInfo) appendBinary(dst []byte) []byte {
	dst = append(dst, info.GapLog2)
	var prev uint8
	for _, off := range info.offsets {
		dst = append(dst, off-prev)
		prev = off
	}
	var last int32
	for _, b := range info.baselines {
		dst = bytereader.AppendUint32(dst, uint32(b-last))
		last = b
	}
	return dst
}
