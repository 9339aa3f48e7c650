// Package queue provides a bounded, lock-free, multiple-producer /
// multiple-consumer ring of message pointers using sequence-numbered slots.
package queue

import (
	"sync/atomic"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// DefaultCapacity is used when a ring is constructed with capacity 0.
const DefaultCapacity = 1024

type slot struct {
	sequence atomic.Uint64
	message  *types.Message
	_        [48]byte // keep neighbouring slots off the same cache line
}

// Ring is a fixed-capacity circular buffer. Capacity is rounded up to a
// power of two so positions map to slots with a bitmask.
//
// Slot protocol: an empty slot at position p carries sequence == p, a
// published slot carries p+1, and after consumption the slot reopens with
// p+capacity.
type Ring struct {
	slots []slot
	mask  uint64

	_        [64]byte
	producer atomic.Uint64
	_        [64]byte
	consumer atomic.Uint64
	_        [64]byte
	peak     atomic.Uint64
}

// NewRing creates a ring holding at least capacity messages.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	size := roundUpPow2(uint64(capacity))
	r := &Ring{
		slots: make([]slot, size),
		mask:  size - 1,
	}
	for i := range r.slots {
		r.slots[i].sequence.Store(uint64(i))
	}
	return r
}

// TryEnqueue publishes message, returning false when the ring is full, the
// message is nil, or another producer won the slot (callers may retry).
func (r *Ring) TryEnqueue(message *types.Message) bool {
	if message == nil {
		return false
	}

	pos := r.producer.Load()
	s := &r.slots[pos&r.mask]

	if s.sequence.Load() != pos {
		return false
	}

	if !r.producer.CompareAndSwap(pos, pos+1) {
		return false
	}

	s.message = message
	s.sequence.Store(pos + 1)

	if size := r.Len(); uint64(size) > r.peak.Load() {
		r.peak.Store(uint64(size))
	}
	return true
}

// TryDequeue pops the oldest published message, or nil when the ring is
// empty or another consumer won the slot.
func (r *Ring) TryDequeue() *types.Message {
	pos := r.consumer.Load()
	s := &r.slots[pos&r.mask]

	if s.sequence.Load() != pos+1 {
		return nil
	}

	if !r.consumer.CompareAndSwap(pos, pos+1) {
		return nil
	}

	message := s.message
	s.message = nil
	s.sequence.Store(pos + uint64(len(r.slots)))
	return message
}

// DequeueAll drains every currently available message into out, returning
// the extended slice and the number drained.
func (r *Ring) DequeueAll(out []*types.Message) ([]*types.Message, int) {
	n := 0
	for {
		m := r.TryDequeue()
		if m == nil {
			return out, n
		}
		out = append(out, m)
		n++
	}
}

// Len returns the number of published, unconsumed messages.
func (r *Ring) Len() int {
	p := r.producer.Load()
	c := r.consumer.Load()
	if p >= c {
		return int(p - c)
	}
	return len(r.slots) - int(c-p)
}

// IsEmpty reports whether the ring currently holds no messages.
func (r *Ring) IsEmpty() bool {
	return r.producer.Load() == r.consumer.Load()
}

// Cap returns the (rounded) capacity.
func (r *Ring) Cap() int { return len(r.slots) }

// Usage returns the current fill percentage (0..100).
func (r *Ring) Usage() float64 {
	return float64(r.Len()) / float64(len(r.slots)) * 100
}

// PeakUsage returns the highest observed fill level.
func (r *Ring) PeakUsage() uint64 { return r.peak.Load() }

// ResetPeakUsage clears the peak statistic.
func (r *Ring) ResetPeakUsage() { r.peak.Store(0) }

func roundUpPow2(v uint64) uint64 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
