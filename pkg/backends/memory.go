package backends

import (
	"sync"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// CapturedRecord is a fully-copied view of one record as the sink saw it.
// Nothing in it aliases pooled message storage.
type CapturedRecord struct {
	Timestamp time.Time
	Name      string
	Level     types.Level
	Message   string
	Formatted []byte
	Data      types.StructuredData
}

// MemorySink captures records for tests and programmatic inspection.
type MemorySink struct {
	mu      sync.Mutex
	records []CapturedRecord
	flushes int
}

// NewMemorySink creates an empty capture sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Output implements types.Sink; the record is copied before the call returns.
func (s *MemorySink) Output(msg *types.Message, formatter types.Formatter) {
	rec := CapturedRecord{
		Timestamp: msg.Timestamp,
		Name:      msg.Name,
		Level:     msg.Level,
		Message:   msg.Text(),
	}
	if formatter != nil {
		if data, err := formatter.Format(msg); err == nil {
			rec.Formatted = data
		}
	}
	if len(msg.Data) > 0 {
		rec.Data = make(types.StructuredData, len(msg.Data))
		for k, v := range msg.Data {
			rec.Data[k] = v
		}
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

// Flush implements types.Sink.
func (s *MemorySink) Flush() error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

// Records returns a copy of everything captured so far.
func (s *MemorySink) Records() []CapturedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CapturedRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Count returns the number of captured records.
func (s *MemorySink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// FlushCount returns how many times Flush has been called.
func (s *MemorySink) FlushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Clear drops all captured records.
func (s *MemorySink) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}
