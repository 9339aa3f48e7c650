package types

import (
	"runtime"
	"sync/atomic"
	"time"
)

// MessageState tracks where a pooled message is in its lifecycle.
// A message moves Pooled -> Active -> Releasing -> Pooled and nowhere else.
type MessageState uint32

const (
	// StatePooled means the message sits in the pool and holds no external references
	StatePooled MessageState = iota
	// StateActive means the message is in use; refcount >= 1 and all views are valid
	StateActive
	// StateReleasing means the message is draining references before returning to the pool
	StateReleasing
)

// String returns the name of the state.
func (s MessageState) String() string {
	switch s {
	case StatePooled:
		return "pooled"
	case StateActive:
		return "active"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// SourceLocation identifies the call site that produced a log record.
type SourceLocation struct {
	File     string `json:"file,omitempty"`
	Function string `json:"function,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// CaptureSource records the caller's location. skip counts stack frames
// above the caller of CaptureSource, as in runtime.Caller.
func CaptureSource(skip int) SourceLocation {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return SourceLocation{}
	}
	loc := SourceLocation{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// StructuredData carries optional key/value payload attached to a message.
type StructuredData map[string]interface{}

// Processor consumes a message on a worker goroutine. A Logger is the only
// processor in normal operation; the indirection keeps the message type free
// of an import cycle with the logger package.
type Processor interface {
	ProcessMessage(*Message)
}

// Message is the unit traveling from producers through the worker pool to
// the sinks. Messages are pool-owned: they are acquired from a MessagePool,
// pinned in memory while Active, and recycled once the last reference drops.
//
// Field access is only safe while the message is Active and the accessor
// holds a reference.
type Message struct {
	Timestamp time.Time
	Name      string
	Level     Level
	Source    SourceLocation
	Storage   StringStorage
	Logger    Processor
	Data      StructuredData

	refCount atomic.Int32
	state    atomic.Uint32
}

// Body returns a view of the message payload bytes.
func (m *Message) Body() []byte { return m.Storage.Bytes() }

// Text returns the message payload as a string (copies).
func (m *Message) Text() string { return m.Storage.String() }

// AddRef takes an additional reference on the message.
func (m *Message) AddRef() { m.refCount.Add(1) }

// ReleaseRef drops one reference and reports whether it was the last.
// When it returns true and the message is in StateReleasing, the caller must
// hand the message back to the pool for finalization.
func (m *Message) ReleaseRef() bool { return m.refCount.Add(-1) == 0 }

// RefCount returns the current reference count.
func (m *Message) RefCount() int32 { return m.refCount.Load() }

// SetRefCount overwrites the reference count. Reserved for the message pool.
func (m *Message) SetRefCount(n int32) { m.refCount.Store(n) }

// State returns the current lifecycle state.
func (m *Message) State() MessageState { return MessageState(m.state.Load()) }

// SetState overwrites the lifecycle state. Reserved for the message pool.
func (m *Message) SetState(s MessageState) { m.state.Store(uint32(s)) }

// CasState atomically transitions from one state to another, reporting
// success. Reserved for the message pool.
func (m *Message) CasState(from, to MessageState) bool {
	return m.state.CompareAndSwap(uint32(from), uint32(to))
}

// IsActive reports whether the message is valid for use.
func (m *Message) IsActive() bool { return m.State() == StateActive }

// ResetContents clears every field that carries a borrow or allocation so
// the next acquirer sees a clean slate, then parks the message in
// StatePooled with a zero refcount. Reserved for the message pool.
func (m *Message) ResetContents() {
	m.Timestamp = time.Time{}
	m.Name = ""
	m.Level = LevelInfo
	m.Source = SourceLocation{}
	m.Storage.Reset()
	m.Logger = nil
	m.Data = nil

	m.SetState(StatePooled)
	m.SetRefCount(0)
}

// Formatter turns a message into its byte representation. Implementations
// must be side-effect-free with respect to the message.
type Formatter interface {
	Format(msg *Message) ([]byte, error)
}

// Sink is an output endpoint consuming log records. Output is called by
// worker goroutines; implementations must be re-entrant across different
// messages but may serialize internally on I/O. A sink must not retain the
// message pointer beyond the Output call.
type Sink interface {
	Output(msg *Message, formatter Formatter)
	Flush() error
}
