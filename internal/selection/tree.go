// Package selection provides a selection tree: a heap of entry indices, ordered by an
// external comparison, which tracks the smallest of a set of entries as they advance.
package selection

import (
	"container/heap"
)

// Tree tracks the minimum of a set of entries identified by index. The entries themselves
// live outside of the Tree, which never stores or copies them.
type Tree struct {
	h *indexHeap
}

type indexHeap struct {
	indices []int
	less    func(a int, b int) bool
}

func (h *indexHeap) Len() int {
	return len(h.indices)
}

func (h *indexHeap) Less(i, j int) bool {
	return h.less(h.indices[i], h.indices[j])
}

func (h *indexHeap) Swap(i, j int) {
	h.indices[i], h.indices[j] = h.indices[j], h.indices[i]
}

func (h *indexHeap) Push(x interface{}) {
	h.indices = append(h.indices, x.(int))
}

func (h *indexHeap) Pop() interface{} {
	n := len(h.indices)
	x := h.indices[n-1]
	h.indices = h.indices[:n-1]
	return x
}

// New builds a Tree over the given entry indices in O(n), ordered by less
func New(indices []int, less func(a int, b int) bool) *Tree {
	h := &indexHeap{indices: make([]int, len(indices)), less: less}
	copy(h.indices, indices)
	heap.Init(h)
	return &Tree{h: h}
}

// Peek returns the index of the current minimum entry. The second result is false if the Tree is empty.
func (t *Tree) Peek() (int, bool) {
	if len(t.h.indices) == 0 {
		return -1, false
	}
	return t.h.indices[0], true
}

// Advance restores the ordering after the current minimum entry's value has changed
func (t *Tree) Advance() {
	if len(t.h.indices) > 0 {
		heap.Fix(t.h, 0)
	}
}

// Pop removes the current minimum entry, returning its index
func (t *Tree) Pop() (int, bool) {
	if len(t.h.indices) == 0 {
		return -1, false
	}
	return heap.Pop(t.h).(int), true
}

// Remove removes an arbitrary entry from the Tree, returning false if it was not present
func (t *Tree) Remove(index int) bool {
	for i, idx := range t.h.indices {
		if idx == index {
			heap.Remove(t.h, i)
			return true
		}
	}
	return false
}

// IsEmpty returns true iff no entries remain
func (t *Tree) IsEmpty() bool {
	return len(t.h.indices) == 0
}

// Len returns the number of entries remaining
func (t *Tree) Len() int {
	return len(t.h.indices)
}
