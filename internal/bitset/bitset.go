// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package bitset provides a dense set of small non-negative integers,
// used for register and basic block sets in dataflow analyses.
package bitset

import (
	"fmt"
	"iter"
	"math/bits"
	"slices"
	"strings"
)

const wordSize = 64

// Set is a bitmap with O(1) lookup, insertion, and deletion.
// The zero value is an empty set.
type Set struct {
	words []uint64
}

// Of returns a new set that contains the arguments passed to it.
func Of(elem ...int) *Set {
	s := new(Set)
	for _, x := range elem {
		s.Add(x)
	}
	return s
}

// Add adds x to the set.
// Add panics if x is negative.
func (s *Set) Add(x int) {
	if x < 0 {
		panic("bitset: negative element")
	}
	i := x / wordSize
	if i >= len(s.words) {
		s.words = slices.Grow(s.words, i-len(s.words)+1)
		s.words = s.words[:cap(s.words)]
	}
	s.words[i] |= 1 << (x % wordSize)
}

// Has reports whether the set contains x.
func (s *Set) Has(x int) bool {
	if s == nil || x < 0 {
		return false
	}
	i := x / wordSize
	if i >= len(s.words) {
		return false
	}
	return s.words[i]&(1<<(x%wordSize)) != 0
}

// Delete removes x from the set if present.
func (s *Set) Delete(x int) {
	if s == nil || x < 0 {
		return
	}
	i := x / wordSize
	if i < len(s.words) {
		s.words[i] &^= 1 << (x % wordSize)
	}
}

// Clear removes all elements from the set.
func (s *Set) Clear() {
	if s != nil {
		clear(s.words)
	}
}

// Clone returns a new set that contains the same elements as s.
func (s *Set) Clone() *Set {
	if s == nil {
		return new(Set)
	}
	return &Set{slices.Clone(s.words)}
}

// Len returns the number of elements in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, word := range s.words {
		total += bits.OnesCount64(word)
	}
	return total
}

// UnionWith adds every element of other to s
// and reports whether s changed.
func (s *Set) UnionWith(other *Set) bool {
	if other == nil {
		return false
	}
	if len(other.words) > len(s.words) {
		s.words = append(s.words, make([]uint64, len(other.words)-len(s.words))...)
	}
	changed := false
	for i, w := range other.words {
		if s.words[i]|w != s.words[i] {
			s.words[i] |= w
			changed = true
		}
	}
	return changed
}

// DifferenceWith removes every element of other from s.
func (s *Set) DifferenceWith(other *Set) {
	if s == nil || other == nil {
		return
	}
	for i := range min(len(s.words), len(other.words)) {
		s.words[i] &^= other.words[i]
	}
}

// Equal reports whether s and other contain the same elements.
func (s *Set) Equal(other *Set) bool {
	var a, b []uint64
	if s != nil {
		a = s.words
	}
	if other != nil {
		b = other.words
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	for i, w := range a {
		var w2 uint64
		if i < len(b) {
			w2 = b[i]
		}
		if w != w2 {
			return false
		}
	}
	return true
}

// All returns an iterator of the elements of s in ascending order.
func (s *Set) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		if s == nil {
			return
		}
		for i, w := range s.words {
			for w != 0 {
				j := bits.TrailingZeros64(w)
				if !yield(i*wordSize + j) {
					return
				}
				w &^= 1 << j
			}
		}
	}
}

// String formats the set like "{1 4 7}".
func (s *Set) String() string {
	sb := new(strings.Builder)
	sb.WriteString("{")
	first := true
	for x := range s.All() {
		if !first {
			sb.WriteString(" ")
		}
		first = false
		fmt.Fprint(sb, x)
	}
	sb.WriteString("}")
	return sb.String()
}
