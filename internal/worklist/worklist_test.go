// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package worklist

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func drain(q *Queue) []int {
	var got []int
	for {
		x, ok := q.Pop()
		if !ok {
			return got
		}
		got = append(got, x)
	}
}

func TestQueue(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *Queue
		want  []int
	}{
		{
			name:  "Nil",
			setup: func() *Queue { return nil },
			want:  []int{},
		},
		{
			name:  "Empty",
			setup: func() *Queue { return new(Queue) },
			want:  []int{},
		},
		{
			name:  "Of",
			setup: func() *Queue { return Of(3, 1, 2) },
			want:  []int{3, 1, 2},
		},
		{
			name: "Duplicates",
			setup: func() *Queue {
				q := Of(1, 2, 1)
				q.Push(2, 3)
				return q
			},
			want: []int{1, 2, 3},
		},
		{
			name: "RequeueAfterPop",
			setup: func() *Queue {
				q := Of(1, 2)
				q.Pop()
				q.Push(1)
				return q
			},
			want: []int{2, 1},
		},
		{
			name: "WrapAround",
			setup: func() *Queue {
				q := new(Queue)
				for i := range 100 {
					q.Push(i)
					if i%2 == 1 {
						q.Pop()
					}
				}
				return q
			},
			want: func() []int {
				var want []int
				for i := 50; i < 100; i++ {
					want = append(want, i)
				}
				return want
			}(),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q := test.setup()
			if got, want := q.Len(), len(test.want); got != want {
				t.Errorf("q.Len() = %d; want %d", got, want)
			}
			for _, x := range test.want {
				if !q.Has(x) {
					t.Errorf("q.Has(%d) = false; want true", x)
				}
			}
			var got []int
			if q != nil {
				got = drain(q)
			}
			if diff := cmp.Diff(test.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("popped (-want +got):\n%s", diff)
			}
		})
	}
}
