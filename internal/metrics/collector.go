// Package metrics collects runtime counters for the logging pipeline.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Collector accumulates message and pool statistics. All methods are safe
// for concurrent use; counters are monotonic unless reset.
type Collector struct {
	messagesByLevel sync.Map // map[uint8]*atomic.Uint64
	messagesDropped atomic.Uint64
	messagesQueued  atomic.Uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// TrackMessage records one message accepted at the given level.
func (c *Collector) TrackMessage(level uint8) {
	counter, ok := c.messagesByLevel.Load(level)
	if !ok {
		counter, _ = c.messagesByLevel.LoadOrStore(level, &atomic.Uint64{})
	}
	counter.(*atomic.Uint64).Add(1)
	c.messagesQueued.Add(1)
}

// TrackDropped records one message lost to pool exhaustion or shutdown.
func (c *Collector) TrackDropped() {
	c.messagesDropped.Add(1)
}

// Snapshot is a point-in-time view of the pipeline's counters and gauges.
type Snapshot struct {
	// Message counts
	MessagesLogged  map[uint8]uint64 `json:"messages_logged"`
	MessagesQueued  uint64           `json:"messages_queued"`
	MessagesDropped uint64           `json:"messages_dropped"`

	// Worker pool gauges
	PendingMessages int `json:"pending_messages"`
	WorkerCount     int `json:"worker_count"`

	// Message pool gauges
	PoolSize        int64   `json:"pool_size"`
	PoolCapacity    int64   `json:"pool_capacity"`
	PoolPeakUsage   int64   `json:"pool_peak_usage"`
	PoolUtilization float64 `json:"pool_utilization"`

	// Registry / configuration
	LoggerCount   int    `json:"logger_count"`
	ConfigVersion uint64 `json:"config_version"`
}

// Gauges carries the point-in-time values the collector cannot observe on
// its own; the caller supplies them when taking a snapshot.
type Gauges struct {
	PendingMessages int
	WorkerCount     int
	PoolSize        int64
	PoolCapacity    int64
	PoolPeakUsage   int64
	LoggerCount     int
	ConfigVersion   uint64
}

// Snapshot merges the collector's counters with the supplied gauges.
func (c *Collector) Snapshot(g Gauges) Snapshot {
	s := Snapshot{
		MessagesLogged:  make(map[uint8]uint64),
		MessagesQueued:  c.messagesQueued.Load(),
		MessagesDropped: c.messagesDropped.Load(),
		PendingMessages: g.PendingMessages,
		WorkerCount:     g.WorkerCount,
		PoolSize:        g.PoolSize,
		PoolCapacity:    g.PoolCapacity,
		PoolPeakUsage:   g.PoolPeakUsage,
		LoggerCount:     g.LoggerCount,
		ConfigVersion:   g.ConfigVersion,
	}
	if g.PoolCapacity > 0 {
		s.PoolUtilization = float64(g.PoolSize) / float64(g.PoolCapacity)
	}
	c.messagesByLevel.Range(func(k, v interface{}) bool {
		s.MessagesLogged[k.(uint8)] = v.(*atomic.Uint64).Load()
		return true
	})
	return s
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.messagesByLevel.Range(func(k, _ interface{}) bool {
		c.messagesByLevel.Delete(k)
		return true
	})
	c.messagesDropped.Store(0)
	c.messagesQueued.Store(0)
}
