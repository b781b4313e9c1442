// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package cache

import (
	"sync"
	"time"
)

// PriorityEntry is a node in a PriorityHeap, keyed by an integer priority
// (higher first) and, within equal priority, a scheduled time (earlier
// first).
type PriorityEntry[T any] struct {
	Key          string
	Value        T
	Priority     int
	ScheduledFor time.Time
	index        int
}

// PriorityHeap is a binary heap ordered by (priority desc, scheduled time
// asc) — the pop order required of a priority queue: the highest-priority,
// earliest-scheduled entry comes out first. The heap is not stable:
// entries equal in both fields pop in no defined order, not necessarily
// insertion order.
//
// Structurally this mirrors MinHeap: a backing slice, a parallel map for
// O(1) key lookup, and the same bubble-up/bubble-down/remove-at machinery,
// generalized to a two-key comparator instead of a bare timestamp.
type PriorityHeap[T any] struct {
	mu    sync.RWMutex
	heap  []*PriorityEntry[T]
	byKey map[string]*PriorityEntry[T]
}

// NewPriorityHeap creates an empty priority heap.
func NewPriorityHeap[T any]() *PriorityHeap[T] {
	return &PriorityHeap[T]{
		heap:  make([]*PriorityEntry[T], 0),
		byKey: make(map[string]*PriorityEntry[T]),
	}
}

// less reports whether entry a must pop before entry b.
func less[T any](a, b *PriorityEntry[T]) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.ScheduledFor.Before(b.ScheduledFor)
}

// Push inserts an entry. If the key already exists its priority/schedule
// are updated in place and the heap is re-fixed.
func (h *PriorityHeap[T]) Push(key string, value T, priority int, scheduledFor time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byKey[key]; ok {
		existing.Value = value
		existing.Priority = priority
		existing.ScheduledFor = scheduledFor
		h.fix(existing.index)
		return
	}

	entry := &PriorityEntry[T]{
		Key:          key,
		Value:        value,
		Priority:     priority,
		ScheduledFor: scheduledFor,
		index:        len(h.heap),
	}
	h.heap = append(h.heap, entry)
	h.byKey[key] = entry
	h.bubbleUp(entry.index)
}

// Pop removes and returns the top entry, or nil if empty.
func (h *PriorityHeap[T]) Pop() *PriorityEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.popTop()
}

// Peek returns the top entry without removing it.
func (h *PriorityHeap[T]) Peek() *PriorityEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.heap) == 0 {
		return nil
	}
	return h.heap[0]
}

// Remove removes an entry by key, returning it or nil if absent.
func (h *PriorityHeap[T]) Remove(key string) *PriorityEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.byKey[key]
	if !ok {
		return nil
	}
	return h.removeAt(entry.index)
}

// Len returns the number of entries.
func (h *PriorityHeap[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.heap)
}

// All returns all entries in no particular order.
func (h *PriorityHeap[T]) All() []*PriorityEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*PriorityEntry[T], len(h.heap))
	copy(out, h.heap)
	return out
}

func (h *PriorityHeap[T]) popTop() *PriorityEntry[T] {
	if len(h.heap) == 0 {
		return nil
	}
	return h.removeAt(0)
}

func (h *PriorityHeap[T]) removeAt(i int) *PriorityEntry[T] {
	n := len(h.heap) - 1
	entry := h.heap[i]
	delete(h.byKey, entry.Key)

	if i == n {
		h.heap = h.heap[:n]
		return entry
	}

	h.heap[i] = h.heap[n]
	h.heap[i].index = i
	h.heap = h.heap[:n]
	h.fix(i)
	return entry
}

func (h *PriorityHeap[T]) fix(i int) {
	if h.bubbleUp(i) {
		return
	}
	h.bubbleDown(i)
}

func (h *PriorityHeap[T]) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h.heap[i], h.heap[parent]) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *PriorityHeap[T]) bubbleDown(i int) {
	n := len(h.heap)
	for {
		top := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && less(h.heap[left], h.heap[top]) {
			top = left
		}
		if right < n && less(h.heap[right], h.heap[top]) {
			top = right
		}
		if top == i {
			break
		}
		h.swap(i, top)
		i = top
	}
}

func (h *PriorityHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}
