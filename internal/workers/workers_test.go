package workers

import (
	"container/heap"
	"sync"
	"testing"
	"time"

	"github.com/wayneeseguin/flexlog/internal/pool"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

// stubProcessor records processed messages and releases them, as the real
// logger does at the end of its processing.
type stubProcessor struct {
	mu        sync.Mutex
	processed []string
	pool      *pool.MessagePool
	block     chan struct{} // when non-nil, the first message waits here
	blocked   chan struct{}
	once      sync.Once
}

func (s *stubProcessor) ProcessMessage(m *types.Message) {
	if s.block != nil {
		s.once.Do(func() {
			close(s.blocked)
			<-s.block
		})
	}
	s.mu.Lock()
	s.processed = append(s.processed, m.Text())
	s.mu.Unlock()
	s.pool.Release(m)
}

func (s *stubProcessor) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.processed))
	copy(out, s.processed)
	return out
}

func makeMessage(p *pool.MessagePool, proc types.Processor, text string, level types.Level) *types.Message {
	m := p.Acquire()
	if m == nil {
		panic("pool exhausted in test setup")
	}
	m.Storage.Store(text)
	m.Level = level
	m.Logger = proc
	return m
}

// waitFor polls cond until it holds or the deadline passes. Flush returns
// when the queues are empty, which is an instant before the last popped
// message finishes processing.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func TestHeapOrdersByPriorityThenFIFO(t *testing.T) {
	var h itemHeap
	push := func(pri uint8, seq uint64) {
		heap.Push(&h, queueItem{priority: pri, seq: seq})
	}
	push(2, 0)
	push(4, 1)
	push(2, 2)
	push(3, 3)
	push(4, 4)

	var got []queueItem
	for h.Len() > 0 {
		got = append(got, heap.Pop(&h).(queueItem))
	}

	wantSeq := []uint64{1, 4, 3, 0, 2}
	for i, item := range got {
		if item.seq != wantSeq[i] {
			t.Fatalf("pop %d: seq = %d, want %d (priority %d)", i, item.seq, wantSeq[i], item.priority)
		}
	}
}

func TestProcessesEnqueuedMessages(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{pool: mp}
	wp := NewPool(mp, 2)
	defer wp.Shutdown(false, time.Second)

	for i := 0; i < 100; i++ {
		wp.Enqueue(makeMessage(mp, proc, "m", types.LevelInfo), uint8(types.LevelInfo))
	}
	wp.Flush(5 * time.Second)

	waitFor(t, func() bool { return len(proc.names()) == 100 })
	if got := len(proc.names()); got != 100 {
		t.Fatalf("processed %d messages, want 100", got)
	}

	waitFor(t, func() bool { return mp.Size()+mp.LocalInUse() == 0 })
	if mp.Size()+mp.LocalInUse() != 0 {
		t.Errorf("pool still holds slots after processing: shared=%d local=%d", mp.Size(), mp.LocalInUse())
	}
}

func TestPriorityOrderOnSingleWorker(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{
		pool:    mp,
		block:   make(chan struct{}),
		blocked: make(chan struct{}),
	}
	wp := NewPool(mp, 1)
	defer wp.Shutdown(false, time.Second)

	// Occupy the worker so the next three messages queue up together.
	wp.Enqueue(makeMessage(mp, proc, "gate", types.LevelInfo), uint8(types.LevelInfo))
	<-proc.blocked

	wp.Enqueue(makeMessage(mp, proc, "a", types.LevelInfo), uint8(types.LevelInfo))
	wp.Enqueue(makeMessage(mp, proc, "b", types.LevelWarn), uint8(types.LevelWarn))
	wp.Enqueue(makeMessage(mp, proc, "c", types.LevelError), uint8(types.LevelError))
	close(proc.block)

	wp.Flush(5 * time.Second)
	waitFor(t, func() bool { return len(proc.names()) == 4 })

	got := proc.names()
	want := []string{"gate", "c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("processed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed %v, want %v", got, want)
		}
	}
}

func TestEnqueueAfterShutdownReleasesMessage(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{pool: mp}
	wp := NewPool(mp, 1)
	wp.Shutdown(false, time.Second)

	m := makeMessage(mp, proc, "late", types.LevelInfo)
	wp.Enqueue(m, 0)

	if m.State() != types.StatePooled {
		t.Errorf("late message state = %v, want pooled", m.State())
	}
	if len(proc.names()) != 0 {
		t.Error("late message must not be processed")
	}
}

func TestEnqueueNilLoggerDropsWithoutProcessing(t *testing.T) {
	mp := pool.NewMessagePool()
	wp := NewPool(mp, 1)
	defer wp.Shutdown(false, time.Second)

	m := mp.Acquire()
	m.Storage.Store("orphan")
	// No logger attached: the worker must release it without crashing.
	wp.Enqueue(m, 0)
	wp.Flush(5 * time.Second)

	waitFor(t, func() bool { return mp.Size()+mp.LocalInUse() == 0 })
	if mp.Size()+mp.LocalInUse() != 0 {
		t.Error("orphan message not returned to the pool")
	}
}

func TestFlushWithNothingPendingReturnsImmediately(t *testing.T) {
	mp := pool.NewMessagePool()
	wp := NewPool(mp, 2)
	defer wp.Shutdown(false, time.Second)

	start := time.Now()
	wp.Flush(5 * time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("empty flush took %v", elapsed)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	mp := pool.NewMessagePool()
	wp := NewPool(mp, 2)
	wp.Shutdown(true, time.Second)
	wp.Shutdown(true, time.Second) // must not hang or panic
	if wp.IsRunning() {
		t.Error("pool reports running after shutdown")
	}
}

func TestShutdownWithFlushProcessesBacklog(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{pool: mp}
	wp := NewPool(mp, 4)

	for i := 0; i < 500; i++ {
		wp.Enqueue(makeMessage(mp, proc, "m", types.LevelInfo), uint8(types.LevelInfo))
	}
	wp.Shutdown(true, 10*time.Second)

	if got := len(proc.names()); got != 500 {
		t.Fatalf("processed %d messages, want 500", got)
	}
}

func TestResize(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{pool: mp}
	wp := NewPool(mp, 2)
	defer wp.Shutdown(false, time.Second)

	if !wp.Resize(4) {
		t.Fatal("grow resize failed")
	}
	if wp.WorkerCount() != 4 {
		t.Errorf("WorkerCount() = %d, want 4", wp.WorkerCount())
	}

	if !wp.Resize(1) {
		t.Fatal("shrink resize failed")
	}
	if wp.WorkerCount() != 1 {
		t.Errorf("WorkerCount() = %d, want 1", wp.WorkerCount())
	}

	// Resize(0) is coerced to one worker.
	if !wp.Resize(0) {
		t.Fatal("Resize(0) failed")
	}
	if wp.WorkerCount() != 1 {
		t.Errorf("WorkerCount() after Resize(0) = %d, want 1", wp.WorkerCount())
	}

	// The pool still processes after resizing.
	for i := 0; i < 50; i++ {
		wp.Enqueue(makeMessage(mp, proc, "m", types.LevelInfo), uint8(types.LevelInfo))
	}
	wp.Flush(5 * time.Second)
	waitFor(t, func() bool { return len(proc.names()) == 50 })
	if got := len(proc.names()); got != 50 {
		t.Fatalf("processed %d messages after resize, want 50", got)
	}
}

func TestResizeAfterShutdownFails(t *testing.T) {
	mp := pool.NewMessagePool()
	wp := NewPool(mp, 1)
	wp.Shutdown(false, time.Second)
	if wp.Resize(4) {
		t.Error("resize must fail on a stopped pool")
	}
}

func TestConcurrentProducers(t *testing.T) {
	mp := pool.NewMessagePool()
	proc := &stubProcessor{pool: mp}
	wp := NewPool(mp, 2)
	defer wp.Shutdown(false, time.Second)

	const producers = 2
	const perProducer = 1000

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				wp.Enqueue(makeMessage(mp, proc, "m", types.LevelInfo), uint8(types.LevelInfo))
			}
		}()
	}
	wg.Wait()
	wp.Flush(10 * time.Second)

	waitFor(t, func() bool { return len(proc.names()) == producers*perProducer })
	if got := len(proc.names()); got != producers*perProducer {
		t.Fatalf("processed %d messages, want %d", got, producers*perProducer)
	}
}
