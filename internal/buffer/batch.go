// Package buffer provides batched writing for sinks that want to coalesce
// small records into fewer underlying writes.
package buffer

import (
	"errors"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned when operations are attempted on a closed BatchWriter.
var ErrClosed = errors.New("batch writer is closed")

// BatchWriter coalesces writes and flushes when the pending byte count or
// entry count crosses its limits, or when the flush interval elapses.
type BatchWriter struct {
	mu            sync.Mutex
	out           io.Writer
	pending       [][]byte
	pendingBytes  int
	maxBytes      int
	maxCount      int
	flushInterval time.Duration
	flushTimer    *time.Timer
	closed        bool
}

// NewBatchWriter wraps out. maxBytes and maxCount bound the batch; a
// non-zero flushInterval flushes idle batches on a timer.
func NewBatchWriter(out io.Writer, maxBytes, maxCount int, flushInterval time.Duration) *BatchWriter {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	if maxCount <= 0 {
		maxCount = 100
	}
	bw := &BatchWriter{
		out:           out,
		pending:       make([][]byte, 0, maxCount),
		maxBytes:      maxBytes,
		maxCount:      maxCount,
		flushInterval: flushInterval,
	}
	if flushInterval > 0 {
		bw.flushTimer = time.AfterFunc(flushInterval, bw.timedFlush)
	}
	return bw
}

// Write queues data, flushing the batch when a limit is crossed. The data
// is copied; callers may reuse the slice.
func (bw *BatchWriter) Write(data []byte) (int, error) {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	if bw.closed {
		return 0, ErrClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	bw.pending = append(bw.pending, buf)
	bw.pendingBytes += len(buf)

	if bw.pendingBytes >= bw.maxBytes || len(bw.pending) >= bw.maxCount {
		return len(data), bw.flushLocked()
	}

	if bw.flushTimer != nil {
		bw.flushTimer.Reset(bw.flushInterval)
	}
	return len(data), nil
}

// Flush writes out everything queued.
func (bw *BatchWriter) Flush() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.flushLocked()
}

// Close flushes and stops the timer. Further writes fail with ErrClosed.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return nil
	}
	bw.closed = true
	if bw.flushTimer != nil {
		bw.flushTimer.Stop()
	}
	return bw.flushLocked()
}

// PendingBytes returns the queued byte count.
func (bw *BatchWriter) PendingBytes() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return bw.pendingBytes
}

func (bw *BatchWriter) flushLocked() error {
	if len(bw.pending) == 0 {
		return nil
	}
	for _, buf := range bw.pending {
		if _, err := bw.out.Write(buf); err != nil {
			return err
		}
	}
	bw.pending = bw.pending[:0]
	bw.pendingBytes = 0
	return nil
}

func (bw *BatchWriter) timedFlush() {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return
	}
	_ = bw.flushLocked()
	if bw.flushTimer != nil {
		bw.flushTimer.Reset(bw.flushInterval)
	}
}
