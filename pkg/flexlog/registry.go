package flexlog

import (
	"sync/atomic"
	"unsafe"

	"github.com/wayneeseguin/flexlog/internal/hazard"
)

// numBuckets is a power of two so the hash folds with a bitmask.
const numBuckets = 1 << 8

type loggerEntry struct {
	name   string
	logger *Logger
	next   atomic.Pointer[loggerEntry]
}

// loggerMap is a lock-free chained hash table from name to Logger. Bucket
// heads and next pointers are atomic; unlinked entries are retired through
// the shared hazard domain so a concurrent reader never walks into a
// recycled node.
//
// A *Logger returned by find stays valid until removeEntry or clear: logger
// removal is a caller-coordinated, rare operation (see Manager.RemoveLogger).
type loggerMap struct {
	buckets [numBuckets]atomic.Pointer[loggerEntry]
	domain  *hazard.Domain
}

func newLoggerMap(domain *hazard.Domain) *loggerMap {
	return &loggerMap{domain: domain}
}

// bucketIndexFor hashes name with FNV-1a 64 and XOR-folds the high half for
// better avalanche before masking.
func bucketIndexFor(name string) int {
	const (
		offsetBasis = 0xcbf29ce484222325
		prime       = 0x100000001b3
	)
	hash := uint64(offsetBasis)
	for i := 0; i < len(name); i++ {
		hash ^= uint64(name[i])
		hash *= prime
	}
	hash ^= hash >> 32
	return int(hash & (numBuckets - 1))
}

// find walks the bucket chain under alternating hazard guards: the next
// entry is protected and its link revalidated before protection on the
// current entry is dropped.
func (m *loggerMap) find(name string) *Logger {
	if name == "" {
		return nil
	}
	idx := bucketIndexFor(name)

	g1 := m.domain.Guard()
	g2 := m.domain.Guard()
	defer g1.Release()
	defer g2.Release()

restart:
	for {
		head := m.buckets[idx].Load()
		if head == nil {
			return nil
		}
		g1.Protect(unsafe.Pointer(head))
		if m.buckets[idx].Load() != head {
			continue
		}

		current := head
		cur, nxt := &g1, &g2
		for {
			if current.name == name {
				return current.logger
			}
			next := current.next.Load()
			if next == nil {
				return nil
			}
			nxt.Protect(unsafe.Pointer(next))
			if current.next.Load() != next {
				continue restart
			}
			cur.Clear()
			cur, nxt = nxt, cur
			current = next
		}
	}
}

func (m *loggerMap) contains(name string) bool {
	return m.find(name) != nil
}

// insert prepends a new entry and returns its logger. Duplicate names are
// the caller's concern; find returns the most recent insertion first.
func (m *loggerMap) insert(name string, logger *Logger) *Logger {
	idx := bucketIndexFor(name)
	entry := &loggerEntry{name: name, logger: logger}

	for {
		old := m.buckets[idx].Load()
		entry.next.Store(old)
		if m.buckets[idx].CompareAndSwap(old, entry) {
			return entry.logger
		}
	}
}

// removeEntry unlinks the first entry with the given name and retires it.
// Returns false when no entry matched a full traversal.
func (m *loggerMap) removeEntry(name string) bool {
	idx := bucketIndexFor(name)

	gCur := m.domain.Guard()
	gNext := m.domain.Guard()
	defer gCur.Release()
	defer gNext.Release()

restart:
	for {
		var prev *loggerEntry
		current := m.buckets[idx].Load()

		for current != nil {
			gCur.Protect(unsafe.Pointer(current))
			if prev == nil {
				if m.buckets[idx].Load() != current {
					continue restart
				}
			} else if prev.next.Load() != current {
				continue restart
			}

			next := current.next.Load()
			gNext.Protect(unsafe.Pointer(next))

			if current.name == name {
				if prev == nil {
					if !m.buckets[idx].CompareAndSwap(current, next) {
						continue restart
					}
				} else if !prev.next.CompareAndSwap(current, next) {
					continue restart
				}
				gCur.Clear()
				m.retireEntry(current)
				return true
			}

			prev = current
			current = next
			gCur, gNext = gNext, gCur
		}
		return false
	}
}

func (m *loggerMap) retireEntry(entry *loggerEntry) {
	m.domain.Retire(unsafe.Pointer(entry), func(p unsafe.Pointer) {
		e := (*loggerEntry)(p)
		e.logger = nil
		e.next.Store(nil)
	})
}

// clear severs every chain and deletes entries directly, without hazard
// retirement. Only valid during teardown, after all readers have stopped.
func (m *loggerMap) clear() {
	for i := range m.buckets {
		current := m.buckets[i].Swap(nil)
		for current != nil {
			next := current.next.Load()
			current.logger = nil
			current.next.Store(nil)
			current = next
		}
	}
}

// count walks every chain; advisory under concurrency.
func (m *loggerMap) count() int {
	n := 0
	for i := range m.buckets {
		for e := m.buckets[i].Load(); e != nil; e = e.next.Load() {
			n++
		}
	}
	return n
}

// forEach visits every logger; advisory under concurrency.
func (m *loggerMap) forEach(fn func(*Logger)) {
	for i := range m.buckets {
		for e := m.buckets[i].Load(); e != nil; e = e.next.Load() {
			if e.logger != nil {
				fn(e.logger)
			}
		}
	}
}
