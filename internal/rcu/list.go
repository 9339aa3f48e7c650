// Package rcu provides a copy-on-write list: many readers iterate an
// immutable snapshot while rare writers publish a replacement node and
// retire the old one through a hazard-pointer domain.
package rcu

import (
	"unsafe"

	"sync/atomic"

	"github.com/wayneeseguin/flexlog/internal/hazard"
)

type node[T any] struct {
	items []T
}

// List is a versioned snapshot list of T. The published node's items slice
// is never mutated, so readers never observe a partially-built list.
//
// Remove compares items with ==; T's dynamic type must be comparable
// (interface values holding pointers, as the sink lists do, are fine).
type List[T any] struct {
	head   atomic.Pointer[node[T]]
	domain *hazard.Domain
	owned  bool
}

// NewList creates a list backed by the given hazard domain. Passing nil
// gives the list a private domain.
func NewList[T any](domain *hazard.Domain) *List[T] {
	l := &List[T]{domain: domain}
	if l.domain == nil {
		l.domain = hazard.NewDomain()
		l.owned = true
	}
	return l
}

// ReadHandle pins one snapshot of the list for iteration. Callers must
// Release the handle when done; the items slice is invalid afterwards.
type ReadHandle[T any] struct {
	guard hazard.Guard
	node  *node[T]
}

// Items returns the pinned snapshot. The returned slice must not be mutated
// or retained past Release.
func (h *ReadHandle[T]) Items() []T {
	if h.node == nil {
		return nil
	}
	return h.node.items
}

// Len returns the number of items in the pinned snapshot.
func (h *ReadHandle[T]) Len() int { return len(h.Items()) }

// Release withdraws the hazard protection.
func (h *ReadHandle[T]) Release() {
	h.node = nil
	h.guard.Release()
}

// Read acquires a protected snapshot of the current head. The protect /
// re-read dance guarantees the pinned node was still published at the
// moment protection became visible to writers.
func (l *List[T]) Read() ReadHandle[T] {
	h := ReadHandle[T]{guard: l.domain.Guard()}
	for {
		head := l.head.Load()
		if head == nil {
			return h
		}
		h.guard.Protect(unsafe.Pointer(head))
		if l.head.Load() == head {
			h.node = head
			return h
		}
		h.guard.Clear()
	}
}

// Add appends item, publishing a new snapshot.
func (l *List[T]) Add(item T) {
	for {
		old := l.head.Load()
		fresh := &node[T]{items: appendCopy(oldItems(old), item)}
		if l.head.CompareAndSwap(old, fresh) {
			l.retire(old)
			return
		}
	}
}

// AddRange appends every item in items, publishing a single new snapshot.
func (l *List[T]) AddRange(items []T) {
	if len(items) == 0 {
		return
	}
	for {
		old := l.head.Load()
		existing := oldItems(old)
		merged := make([]T, 0, len(existing)+len(items))
		merged = append(merged, existing...)
		merged = append(merged, items...)
		fresh := &node[T]{items: merged}
		if l.head.CompareAndSwap(old, fresh) {
			l.retire(old)
			return
		}
	}
}

// Remove deletes the first entry equal to item, reporting whether one was
// found.
func (l *List[T]) Remove(item T) bool {
	for {
		old := l.head.Load()
		if old == nil || len(old.items) == 0 {
			return false
		}

		idx := -1
		for i, existing := range old.items {
			if any(existing) == any(item) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}

		remaining := make([]T, 0, len(old.items)-1)
		remaining = append(remaining, old.items[:idx]...)
		remaining = append(remaining, old.items[idx+1:]...)
		fresh := &node[T]{items: remaining}
		if l.head.CompareAndSwap(old, fresh) {
			l.retire(old)
			return true
		}
	}
}

// Clear unpublishes the list.
func (l *List[T]) Clear() {
	old := l.head.Swap(nil)
	l.retire(old)
}

// Len returns the size of the current snapshot. The value is advisory: a
// writer may publish a new snapshot immediately after.
func (l *List[T]) Len() int {
	if head := l.head.Load(); head != nil {
		return len(head.items)
	}
	return 0
}

// Snapshot copies the current items into a fresh slice the caller owns.
func (l *List[T]) Snapshot() []T {
	h := l.Read()
	defer h.Release()
	items := h.Items()
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// Domain exposes the hazard domain backing this list.
func (l *List[T]) Domain() *hazard.Domain { return l.domain }

func (l *List[T]) retire(n *node[T]) {
	if n == nil {
		return
	}
	l.domain.Retire(unsafe.Pointer(n), func(p unsafe.Pointer) {
		// Drop the snapshot's references early instead of waiting for the
		// retired-list scan to let go of the node itself.
		(*node[T])(p).items = nil
	})
}

func oldItems[T any](n *node[T]) []T {
	if n == nil {
		return nil
	}
	return n.items
}

func appendCopy[T any](items []T, extra T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	out = append(out, extra)
	return out
}
