// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package worklist provides a first-in first-out queue of small integers
// for iterative graph algorithms.
package worklist

import (
	"slices"

	"zb.256lights.llc/luaudec/internal/bitset"
)

// A Queue is a FIFO queue of non-negative integers
// that holds each integer at most once at a time.
// The zero value is an empty queue.
type Queue struct {
	ring   []int
	start  int
	n      int
	queued bitset.Set
}

// Of returns a new queue containing the given elements in order.
func Of(elems ...int) *Queue {
	q := new(Queue)
	q.Push(elems...)
	return q
}

// Len returns the number of elements in the queue.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return q.n
}

// Has reports whether x is in the queue.
func (q *Queue) Has(x int) bool {
	return q != nil && q.queued.Has(x)
}

// Push adds the elements to the back of the queue
// unless they are already queued.
func (q *Queue) Push(elems ...int) {
	for _, x := range elems {
		if q.queued.Has(x) {
			continue
		}
		q.grow(1)
		q.ring[q.index(q.n)] = x
		q.n++
		q.queued.Add(x)
	}
}

// Pop removes the element at the front of the queue and returns it.
// ok is false if the queue is empty.
func (q *Queue) Pop() (x int, ok bool) {
	if q.Len() == 0 {
		return 0, false
	}
	x = q.ring[q.start]
	q.start++
	if q.start == len(q.ring) {
		q.start = 0
	}
	q.n--
	if q.n == 0 {
		q.start = 0
	}
	q.queued.Delete(x)
	return x, true
}

func (q *Queue) index(i int) int {
	i += q.start
	if i >= len(q.ring) {
		i -= len(q.ring)
	}
	return i
}

// grow guarantees space for another n elements.
func (q *Queue) grow(n int) {
	if q.n+n <= len(q.ring) {
		return
	}
	end := q.start + q.n
	var s1, s2 []int
	if end <= len(q.ring) {
		s1 = q.ring[q.start:end]
	} else {
		s1, s2 = q.ring[q.start:], q.ring[:end-len(q.ring)]
	}
	q.ring = slices.Grow(append(slices.Clip(s1), s2...), n)
	// Always make len(q.ring) == cap(q.ring).
	// slices.Grow may add more capacity than requested.
	q.ring = q.ring[:cap(q.ring)]
	q.start = 0
}
