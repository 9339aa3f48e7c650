// Package workers runs the consumer side of the pipeline: N worker
// goroutines, each draining its own priority queue and invoking the owning
// logger's processing on every message.
package workers

import (
	"container/heap"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/flexlog/internal/pool"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

// flushPollInterval is how often Flush re-checks the pending counts.
const flushPollInterval = 10 * time.Millisecond

type queueItem struct {
	message  *types.Message
	priority uint8
	seq      uint64
}

// itemHeap orders by priority (higher first), then by enqueue sequence so
// records within the same priority band keep FIFO order.
type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(queueItem)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type queueData struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   itemHeap
	pending int
	nextSeq uint64
	retired bool
}

func newQueueData() *queueData {
	q := &queueData{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

type worker struct {
	done chan struct{}
}

// Pool is the worker pool. Enqueue distributes messages round-robin over
// the per-worker queues; each worker drains only its own queue.
type Pool struct {
	_        [64]byte
	running  atomic.Bool
	_        [64]byte
	flushing atomic.Bool
	_        [64]byte

	nextQueue atomic.Uint64

	queues  atomic.Pointer[[]*queueData]
	workers []worker

	resizeMu sync.Mutex

	messages *pool.MessagePool
}

// NewPool starts workerCount workers (at least one), each with a private
// queue. messages is used to release and finalize records.
func NewPool(messages *pool.MessagePool, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{messages: messages}
	p.running.Store(true)

	queues := make([]*queueData, workerCount)
	for i := range queues {
		queues[i] = newQueueData()
	}
	p.queues.Store(&queues)

	p.workers = make([]worker, workerCount)
	for i := range p.workers {
		p.workers[i] = worker{done: make(chan struct{})}
		go p.run(queues[i], p.workers[i].done)
	}
	return p
}

// Enqueue hands a message to a worker queue. When the pool is not running,
// is flushing, or the message is not Active, the message is released back
// to its pool instead.
func (p *Pool) Enqueue(m *types.Message, priority uint8) {
	if m == nil {
		return
	}
	if !p.running.Load() || p.flushing.Load() || !m.IsActive() {
		p.messages.Release(m)
		return
	}

	m.AddRef()

	queues := *p.queues.Load()
	q := queues[p.nextQueue.Add(1)%uint64(len(queues))]

	q.mu.Lock()
	heap.Push(&q.items, queueItem{message: m, priority: priority, seq: q.nextSeq})
	q.nextSeq++
	q.pending++
	q.mu.Unlock()
	q.cond.Signal()
}

// Pending returns the total number of queued, unprocessed messages.
func (p *Pool) Pending() int {
	total := 0
	for _, q := range *p.queues.Load() {
		q.mu.Lock()
		total += q.pending
		q.mu.Unlock()
	}
	return total
}

// WorkerCount returns the number of live workers.
func (p *Pool) WorkerCount() int {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()
	return len(p.workers)
}

// IsRunning reports whether the pool accepts messages.
func (p *Pool) IsRunning() bool { return p.running.Load() }

// Flush wakes every worker and polls until all queues drain or the timeout
// expires. A timeout is reported to stderr, not returned as an error.
func (p *Pool) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	total := 0
	for _, q := range *p.queues.Load() {
		q.mu.Lock()
		total += q.pending
		q.mu.Unlock()
		q.cond.Signal()
	}
	if total == 0 {
		return
	}

	for time.Now().Before(deadline) {
		time.Sleep(flushPollInterval)
		if p.Pending() == 0 {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "flexlog: worker pool flush timed out with %d messages remaining\n", p.Pending())
}

// Shutdown stops the pool. When flush is set, queued messages are processed
// before workers exit. Joins observe a shared deadline; a worker that does
// not exit in time is abandoned with a warning. Idempotent.
func (p *Pool) Shutdown(flush bool, timeout time.Duration) {
	wasRunning := p.running.Swap(false)
	if !wasRunning {
		return
	}

	if flush {
		p.flushing.Store(true)
		p.Flush(timeout)
		p.flushing.Store(false)
	}

	queues := *p.queues.Load()
	for _, q := range queues {
		q.cond.Broadcast()
	}

	deadline := time.Now().Add(timeout)
	p.resizeMu.Lock()
	workers := p.workers
	p.resizeMu.Unlock()

	for _, w := range workers {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprintln(os.Stderr, "flexlog: worker join timeout during pool shutdown")
			continue
		}
		select {
		case <-w.done:
		case <-time.After(remaining):
			fmt.Fprintln(os.Stderr, "flexlog: worker join timeout during pool shutdown")
		}
	}
}

// Resize changes the worker count. Shrinking joins the excess workers but
// keeps their queues so queue indices stay valid; growing appends queues
// and workers. Returns false when the pool is not running.
func (p *Pool) Resize(workerCount int) bool {
	if workerCount < 1 {
		workerCount = 1
	}

	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	if !p.running.Load() {
		return false
	}

	current := len(p.workers)
	if workerCount == current {
		return true
	}

	queues := *p.queues.Load()

	if workerCount < current {
		// Excess workers see their queue's retired flag set, finish their
		// queue, and exit.
		for i := workerCount; i < current; i++ {
			queues[i].mu.Lock()
			queues[i].retired = true
			queues[i].mu.Unlock()
			queues[i].cond.Broadcast()
			<-p.workers[i].done
		}
		p.workers = p.workers[:workerCount]
		// Queues are retained; Enqueue only targets the first
		// len(workers) of them after the swap below.
		live := make([]*queueData, workerCount)
		copy(live, queues[:workerCount])
		p.queues.Store(&live)
		return true
	}

	grown := make([]*queueData, current, workerCount)
	copy(grown, queues)
	for i := current; i < workerCount; i++ {
		q := newQueueData()
		grown = append(grown, q)
		w := worker{done: make(chan struct{})}
		p.workers = append(p.workers, w)
		go p.run(q, w.done)
	}
	p.queues.Store(&grown)
	return true
}

func (p *Pool) run(q *queueData, done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !p.stopRequested(q) {
			q.cond.Wait()
		}
		if len(q.items) == 0 && p.stopRequested(q) {
			q.mu.Unlock()
			break
		}
		item := heap.Pop(&q.items).(queueItem)
		q.pending--
		q.mu.Unlock()

		p.process(item.message)
	}

	// Drain whatever is left without processing: release references and
	// finalize so the slots return to the pool.
	q.mu.Lock()
	for len(q.items) > 0 {
		item := heap.Pop(&q.items).(queueItem)
		q.pending--
		if item.message == nil {
			continue
		}
		p.messages.Release(item.message)
		if item.message.ReleaseRef() && item.message.State() == types.StateReleasing {
			p.messages.FinalizeRelease(item.message)
		}
	}
	q.mu.Unlock()
}

func (p *Pool) stopRequested(q *queueData) bool {
	if q.retired {
		return true
	}
	return !p.running.Load() && !p.flushing.Load()
}

func (p *Pool) process(m *types.Message) {
	if m == nil {
		return
	}
	if m.IsActive() {
		if m.Logger != nil {
			m.Logger.ProcessMessage(m)
		} else {
			// Nobody can process an orphaned message; drop it.
			p.messages.Release(m)
		}
	}
	if m.ReleaseRef() && m.State() == types.StateReleasing {
		p.messages.FinalizeRelease(m)
	}
}
