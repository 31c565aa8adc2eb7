// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package bitset

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSet(t *testing.T) {
	s := Of(3, 64, 200)
	if got, want := slices.Collect(s.All()), []int{3, 64, 200}; !cmp.Equal(want, got) {
		t.Errorf("All() = %v; want %v", got, want)
	}
	if !s.Has(64) || s.Has(65) || s.Has(-1) || s.Has(1000) {
		t.Errorf("Has reports wrong membership for %v", s)
	}
	s.Delete(64)
	if s.Has(64) {
		t.Error("Has(64) = true after Delete(64)")
	}
	if got, want := s.Len(), 2; got != want {
		t.Errorf("Len() = %d; want %d", got, want)
	}
	if got, want := s.String(), "{3 200}"; got != want {
		t.Errorf("String() = %q; want %q", got, want)
	}
}

func TestUnionWith(t *testing.T) {
	s := Of(1)
	if !s.UnionWith(Of(1, 130)) {
		t.Error("UnionWith added elements but reported no change")
	}
	if s.UnionWith(Of(130)) {
		t.Error("UnionWith of subset reported change")
	}
	if got, want := slices.Collect(s.All()), []int{1, 130}; !cmp.Equal(want, got) {
		t.Errorf("after union, All() = %v; want %v", got, want)
	}
	s.DifferenceWith(Of(1))
	if got, want := slices.Collect(s.All()), []int{130}; !cmp.Equal(want, got) {
		t.Errorf("after difference, All() = %v; want %v", got, want)
	}
}

func TestEqual(t *testing.T) {
	a := Of(5)
	b := Of(5, 300)
	b.Delete(300)
	if !a.Equal(b) || !b.Equal(a) {
		t.Errorf("%v and %v reported unequal", a, b)
	}
	var empty *Set
	if !empty.Equal(new(Set)) {
		t.Error("nil set not equal to empty set")
	}
	if a.Equal(Of(6)) {
		t.Error("{5} equal to {6}")
	}
}
