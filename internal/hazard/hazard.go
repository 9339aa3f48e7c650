// Package hazard implements a hazard-pointer reclamation domain for the
// lock-free structures in this module (the logger registry and the
// copy-on-write sink lists).
//
// A reader announces the node it is about to dereference by storing its
// address into a hazard slot; a writer that unlinks a node retires it to the
// domain instead of dropping it, and the domain defers recycling until no
// slot holds the address. The garbage collector makes use-after-free
// impossible in Go, but the domain still bounds how long unlinked nodes keep
// their contents reachable and gives retired nodes a deterministic recycling
// point through their deleters.
package hazard

import (
	"fmt"
	"sort"
	"sync/atomic"
	"unsafe"
)

const (
	// MaxHazardPointers bounds the number of concurrently held guards across
	// the domain. Exceeding it is a configuration error.
	MaxHazardPointers = 100

	// ScanThreshold is the retired-node count that triggers a cleanup scan.
	ScanThreshold = 1000
)

type slot struct {
	claimed atomic.Bool
	ptr     unsafe.Pointer
}

type retiredNode struct {
	ptr     unsafe.Pointer
	deleter func(unsafe.Pointer)
	epoch   uint64
	next    *retiredNode
}

// Domain is a reclamation domain: a fixed table of hazard slots plus a
// retired list awaiting a safe recycling point. The zero value is not usable;
// construct with NewDomain.
type Domain struct {
	slots [MaxHazardPointers]slot

	retired      atomic.Pointer[retiredNode]
	retireEpoch  atomic.Uint64
	retiredCount atomic.Uint64
}

// NewDomain creates an empty domain.
func NewDomain() *Domain {
	return &Domain{}
}

// Guard returns an inactive guard bound to this domain. A guard claims a
// hazard slot lazily on its first Protect and owns it until Release.
func (d *Domain) Guard() Guard {
	return Guard{domain: d, index: -1}
}

// claimSlot reserves a free hazard slot for a guard. Exhaustion is fatal:
// the domain hosts more simultaneous readers than it was configured for.
func (d *Domain) claimSlot() int {
	for i := range d.slots {
		if d.slots[i].claimed.CompareAndSwap(false, true) {
			return i
		}
	}
	panic(fmt.Sprintf("hazard: out of hazard pointers (max %d); raise MaxHazardPointers for this reader count", MaxHazardPointers))
}

// Retire hands an unlinked node to the domain. The deleter runs once no
// hazard slot holds ptr; it must be safe to call from any goroutine.
func (d *Domain) Retire(ptr unsafe.Pointer, deleter func(unsafe.Pointer)) {
	node := &retiredNode{
		ptr:     ptr,
		deleter: deleter,
		epoch:   d.retireEpoch.Add(1),
	}

	for {
		old := d.retired.Load()
		node.next = old
		if d.retired.CompareAndSwap(old, node) {
			break
		}
	}

	if d.retiredCount.Add(1) >= ScanThreshold {
		d.TryCleanup()
	}
}

// TryCleanup scans the hazard slots and recycles every retired node whose
// address is not announced by any of them. Nodes observed as protected
// survive into the next scan; the operation is best-effort by design.
func (d *Domain) TryCleanup() {
	// Reset the counter up front so concurrent retirers do not pile into
	// redundant scans.
	d.retiredCount.Store(0)

	var protected []uintptr
	for i := range d.slots {
		if p := atomic.LoadPointer(&d.slots[i].ptr); p != nil {
			protected = append(protected, uintptr(p))
		}
	}
	sort.Slice(protected, func(i, j int) bool { return protected[i] < protected[j] })

	nodes := d.retired.Swap(nil)
	if nodes == nil {
		return
	}

	var deferred, reclaim *retiredNode
	for nodes != nil {
		current := nodes
		nodes = nodes.next

		if containsPointer(protected, current.ptr) {
			current.next = deferred
			deferred = current
		} else {
			current.next = reclaim
			reclaim = current
		}
	}

	if deferred != nil {
		last := deferred
		count := uint64(1)
		for last.next != nil {
			last = last.next
			count++
		}
		for {
			old := d.retired.Load()
			last.next = old
			if d.retired.CompareAndSwap(old, deferred) {
				break
			}
		}
		d.retiredCount.Add(count)
	}

	for reclaim != nil {
		current := reclaim
		reclaim = reclaim.next
		if current.deleter != nil {
			current.deleter(current.ptr)
		}
	}
}

// Drain recycles every retired node regardless of hazard slots. Only valid
// during teardown, after all readers have stopped.
func (d *Domain) Drain() {
	nodes := d.retired.Swap(nil)
	for nodes != nil {
		current := nodes
		nodes = nodes.next
		if current.deleter != nil {
			current.deleter(current.ptr)
		}
	}
	d.retiredCount.Store(0)
}

// RetiredCount returns the approximate number of nodes awaiting reclamation.
func (d *Domain) RetiredCount() uint64 {
	var n uint64
	for node := d.retired.Load(); node != nil; node = node.next {
		n++
	}
	return n
}

func containsPointer(sorted []uintptr, p unsafe.Pointer) bool {
	target := uintptr(p)
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= target })
	return i < len(sorted) && sorted[i] == target
}

// Guard is a single hazard pointer: it can announce one protected address at
// a time. Guards are not safe for concurrent use; each reader uses its own.
type Guard struct {
	domain *Domain
	index  int
	active bool
}

// Protect announces ptr as in-use and returns it. The store is immediately
// visible to retirers: sync/atomic operations are sequentially consistent,
// which supplies the full fence the protocol needs between the announcement
// and the caller's validating re-read.
func (g *Guard) Protect(ptr unsafe.Pointer) unsafe.Pointer {
	if ptr == nil {
		return nil
	}
	if g.index < 0 {
		g.index = g.domain.claimSlot()
	}
	atomic.StorePointer(&g.domain.slots[g.index].ptr, ptr)
	g.active = true
	return ptr
}

// Clear withdraws the current announcement but keeps the slot claimed for
// fast re-protection.
func (g *Guard) Clear() {
	if g.active {
		atomic.StorePointer(&g.domain.slots[g.index].ptr, nil)
		g.active = false
	}
}

// Release withdraws the announcement and returns the slot to the domain.
// The guard may be reused afterwards; it will claim a fresh slot.
func (g *Guard) Release() {
	g.Clear()
	if g.index >= 0 {
		g.domain.slots[g.index].claimed.Store(false)
		g.index = -1
	}
}
