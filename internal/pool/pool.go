// Package pool implements the recyclable message slab pool. Storage is a
// vector of chunks whose slots never move, fronted by a set of small local
// cache shards. Acquisition is lock-free except when a new chunk must be
// allocated; release is driven by the message reference count.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

func defaultShardCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 4 {
		n = 4
	}
	return n
}

const (
	// InitialCapacity is the slot count of the first chunk.
	InitialCapacity = 1024

	// GrowthFactor doubles each appended chunk.
	GrowthFactor = 2

	// LocalCacheSize is the slot count of each local cache shard.
	LocalCacheSize = 64

	// DefaultScanLimit bounds how many leading slots of a chunk the
	// lock-free acquisition path inspects.
	DefaultScanLimit = 16
)

var messageSize = unsafe.Sizeof(types.Message{})

type chunk struct {
	messages []types.Message
	used     []atomic.Bool
	base     uintptr
	end      uintptr
}

func newChunk(size int) *chunk {
	c := &chunk{
		messages: make([]types.Message, size),
		used:     make([]atomic.Bool, size),
	}
	c.base = uintptr(unsafe.Pointer(&c.messages[0]))
	c.end = c.base + uintptr(size)*messageSize
	return c
}

func (c *chunk) contains(addr uintptr) bool {
	return addr >= c.base && addr < c.end
}

func (c *chunk) index(addr uintptr) int {
	return int((addr - c.base) / messageSize)
}

// localShard is the Go rendition of a per-thread cache: a fixed reservoir
// of slots in separate storage from the shared chunks. Goroutines have no
// stable identity, so shards are picked round-robin rather than by thread.
type localShard struct {
	messages [LocalCacheSize]types.Message
	used     [LocalCacheSize]atomic.Bool
	inUse    atomic.Int64
	base     uintptr
	end      uintptr
}

func newLocalShard() *localShard {
	s := &localShard{}
	s.base = uintptr(unsafe.Pointer(&s.messages[0]))
	s.end = s.base + LocalCacheSize*messageSize
	return s
}

// Option configures a MessagePool.
type Option func(*MessagePool)

// WithInitialCapacity overrides the first chunk's slot count.
func WithInitialCapacity(n int) Option {
	return func(p *MessagePool) {
		if n > 0 {
			p.initialCapacity = n
		}
	}
}

// WithScanLimit overrides how many leading slots of each chunk the
// lock-free path scans before moving on.
func WithScanLimit(n int) Option {
	return func(p *MessagePool) {
		if n > 0 {
			p.scanLimit = n
		}
	}
}

// WithLocalShards overrides the number of local cache shards.
func WithLocalShards(n int) Option {
	return func(p *MessagePool) {
		if n > 0 {
			p.shardCount = n
		}
	}
}

// WithGrowthDisabled pins the pool at its initial capacity. Acquire returns
// nil once every slot is in use. Intended for exhaustion tests.
func WithGrowthDisabled() Option {
	return func(p *MessagePool) { p.growthDisabled = true }
}

// MessagePool recycles message records across goroutines.
type MessagePool struct {
	chunks atomic.Pointer[[]*chunk]
	growMu sync.Mutex

	shards    []*localShard
	nextShard atomic.Uint64
	nextChunk atomic.Uint64

	size     atomic.Int64
	capacity atomic.Int64
	peak     atomic.Int64

	initialCapacity int
	scanLimit       int
	shardCount      int
	growthDisabled  bool
}

// NewMessagePool creates a pool with one chunk of InitialCapacity slots.
func NewMessagePool(opts ...Option) *MessagePool {
	p := &MessagePool{
		initialCapacity: InitialCapacity,
		scanLimit:       DefaultScanLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.shardCount == 0 {
		p.shardCount = defaultShardCount()
	}

	p.shards = make([]*localShard, p.shardCount)
	for i := range p.shards {
		p.shards[i] = newLocalShard()
	}

	first := []*chunk{newChunk(p.initialCapacity)}
	p.chunks.Store(&first)
	p.capacity.Store(int64(p.initialCapacity))
	return p
}

// Acquire claims a free message slot, transitioning it Pooled -> Active
// with a reference count of one. Returns nil when the pool is exhausted and
// growth is disabled or allocation is impossible.
func (p *MessagePool) Acquire() *types.Message {
	// Fast path: local cache shards, completely lock-free.
	if m := p.acquireFromLocalCache(); m != nil {
		activate(m)
		return m
	}

	// Medium path: bounded scan over the shared chunks, starting from a
	// round-robin chunk to spread contention.
	chunks := *p.chunks.Load()
	start := int(p.nextChunk.Add(1) % uint64(len(chunks)))
	for i := 0; i < len(chunks); i++ {
		c := chunks[(start+i)%len(chunks)]
		limit := len(c.messages)
		if limit > p.scanLimit {
			limit = p.scanLimit
		}
		for j := 0; j < limit; j++ {
			if c.used[j].CompareAndSwap(false, true) {
				p.noteAcquired()
				m := &c.messages[j]
				activate(m)
				return m
			}
		}
	}

	// Slow path: grow under the chunk mutex.
	p.growMu.Lock()
	defer p.growMu.Unlock()

	// Another goroutine may have freed a slot or grown the pool while we
	// waited for the lock; recheck everything before allocating.
	for _, s := range p.shards {
		for i := 0; i < LocalCacheSize; i++ {
			if s.used[i].CompareAndSwap(false, true) {
				s.inUse.Add(1)
				m := &s.messages[i]
				activate(m)
				return m
			}
		}
	}
	chunks = *p.chunks.Load()
	for _, c := range chunks {
		for j := range c.messages {
			if c.used[j].CompareAndSwap(false, true) {
				p.noteAcquired()
				m := &c.messages[j]
				activate(m)
				return m
			}
		}
	}

	if p.growthDisabled {
		return nil
	}

	last := chunks[len(chunks)-1]
	fresh := newChunk(len(last.messages) * GrowthFactor)
	fresh.used[0].Store(true)

	grown := make([]*chunk, len(chunks), len(chunks)+1)
	copy(grown, chunks)
	grown = append(grown, fresh)
	p.chunks.Store(&grown)

	p.capacity.Add(int64(len(fresh.messages)))
	p.noteAcquired()

	m := &fresh.messages[0]
	activate(m)
	return m
}

// Release starts returning a message to the pool. The transition to
// Releasing happens exactly once; redundant calls are no-ops. The caller's
// reference is dropped, and if it was the last the slot is finalized
// immediately; otherwise finalization happens at the last ReleaseRef.
func (p *MessagePool) Release(m *types.Message) {
	if m == nil {
		return
	}
	if !m.CasState(types.StateActive, types.StateReleasing) {
		return
	}
	if m.ReleaseRef() {
		p.FinalizeRelease(m)
	}
}

// FinalizeRelease resets a fully drained message and reopens its slot.
// The message must be in StateReleasing.
func (p *MessagePool) FinalizeRelease(m *types.Message) {
	if m == nil || m.State() != types.StateReleasing {
		return
	}

	addr := uintptr(unsafe.Pointer(m))

	for _, s := range p.shards {
		if addr >= s.base && addr < s.end {
			idx := int((addr - s.base) / messageSize)
			m.ResetContents()
			s.used[idx].Store(false)
			s.inUse.Add(-1)
			return
		}
	}

	chunks := *p.chunks.Load()
	for _, c := range chunks {
		if c.contains(addr) {
			idx := c.index(addr)
			m.ResetContents()
			if c.used[idx].Swap(false) {
				p.size.Add(-1)
			}
			return
		}
	}
}

// TryShrink removes trailing chunks whose every slot is free, when shared
// usage is at or below threshold (a fraction, e.g. 0.33) and more than one
// chunk exists.
func (p *MessagePool) TryShrink(threshold float64) {
	p.growMu.Lock()
	defer p.growMu.Unlock()

	if p.UsagePercentage() > threshold*100 {
		return
	}

	chunks := *p.chunks.Load()
	kept := len(chunks)
	for kept > 1 {
		c := chunks[kept-1]
		empty := true
		for i := range c.used {
			if c.used[i].Load() {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		p.capacity.Add(-int64(len(c.messages)))
		kept--
	}

	if kept < len(chunks) {
		trimmed := make([]*chunk, kept)
		copy(trimmed, chunks[:kept])
		p.chunks.Store(&trimmed)
	}
}

// Size returns the number of shared slots currently in use.
func (p *MessagePool) Size() int64 { return p.size.Load() }

// Capacity returns the total shared slot count.
func (p *MessagePool) Capacity() int64 { return p.capacity.Load() }

// PeakUsage returns the highest observed shared usage.
func (p *MessagePool) PeakUsage() int64 { return p.peak.Load() }

// LocalInUse returns the number of occupied local-cache slots.
func (p *MessagePool) LocalInUse() int64 {
	var n int64
	for _, s := range p.shards {
		n += s.inUse.Load()
	}
	return n
}

// UsagePercentage returns shared usage as a percentage of capacity.
func (p *MessagePool) UsagePercentage() float64 {
	capacity := p.capacity.Load()
	if capacity == 0 {
		return 0
	}
	return float64(p.size.Load()) / float64(capacity) * 100
}

func (p *MessagePool) acquireFromLocalCache() *types.Message {
	s := p.shards[p.nextShard.Add(1)%uint64(len(p.shards))]
	for i := 0; i < LocalCacheSize; i++ {
		if s.used[i].CompareAndSwap(false, true) {
			s.inUse.Add(1)
			return &s.messages[i]
		}
	}
	return nil
}

func (p *MessagePool) noteAcquired() {
	size := p.size.Add(1)
	if size > p.peak.Load() {
		p.peak.Store(size)
	}
}

func activate(m *types.Message) {
	m.SetState(types.StateActive)
	m.SetRefCount(1)
}
