// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package luaucode

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/luaudec/internal/bytereader"
)

func TestLineInfo(t *testing.T) {
	tests := []struct {
		gapLog2 uint8
		lines   []int
	}{
		{0, []int{}},
		{0, []int{1}},
		{2, []int{10, 10, 11, 200, 9, 9, 9}},
		{24, []int{5, 4, 3, 2, 1}},
		{1, []int{1000000, 1000100, 7}},
	}
	for _, test := range tests {
		info, err := NewLineInfo(test.gapLog2, test.lines)
		if err != nil {
			t.Errorf("NewLineInfo(%d, %v): %v", test.gapLog2, test.lines, err)
			continue
		}
		var got []int
		for _, line := range info.All() {
			got = append(got, line)
		}
		if !slices.Equal(got, test.lines) {
			t.Errorf("NewLineInfo(%d, %v).All() = %v", test.gapLog2, test.lines, got)
		}

		data := info.appendBinary(nil)
		r := bytereader.New(data)
		decoded, err := loadLineInfo(r, len(test.lines))
		if err != nil {
			t.Errorf("loadLineInfo(appendBinary(%v)): %v", test.lines, err)
			continue
		}
		if r.Len() != 0 {
			t.Errorf("loadLineInfo(appendBinary(%v)) left %d bytes", test.lines, r.Len())
		}
		if diff := cmp.Diff(info, decoded); diff != "" {
			t.Errorf("line info (-want +got):\n%s", diff)
		}
	}
}

func TestLineInfoTooFar(t *testing.T) {
	if _, err := NewLineInfo(1, []int{1, 257}); err == nil {
		t.Error("NewLineInfo(1, [1 257]) did not return an error")
	}
	if _, err := NewLineInfo(0, []int{1, 257}); err != nil {
		t.Errorf("NewLineInfo(0, [1 257]): %v", err)
	}
}
