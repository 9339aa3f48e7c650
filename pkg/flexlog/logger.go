package flexlog

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/flexlog/internal/rcu"
	"github.com/wayneeseguin/flexlog/pkg/formatters"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

// formatterBox keeps atomic.Value happy: the stored concrete type stays
// formatterBox even as the formatter implementation changes.
type formatterBox struct {
	f types.Formatter
}

// Logger is a named logging channel: it filters by level, builds messages
// from the shared pool, and hands them to the worker pool. A logger's
// lifetime equals that of its registry entry; see Manager.RemoveLogger for
// the removal protocol.
type Logger struct {
	name      string
	level     atomic.Uint32
	formatter atomic.Value // formatterBox
	sinks     *rcu.List[types.Sink]

	dropped   atomic.Uint64
	processed atomic.Uint64

	manager *Manager
}

func newLogger(manager *Manager, name string, level types.Level, format types.LogFormat) *Logger {
	l := &Logger{
		name:    name,
		sinks:   rcu.NewList[types.Sink](manager.hazardDomain),
		manager: manager,
	}
	l.level.Store(uint32(level))
	l.formatter.Store(formatterBox{f: formatters.New(format)})
	return l
}

// Name returns the logger's name.
func (l *Logger) Name() string { return l.name }

// Level returns the minimum level this logger emits.
func (l *Logger) Level() types.Level { return types.Level(l.level.Load()) }

// SetLevel sets the minimum level this logger emits.
func (l *Logger) SetLevel(level types.Level) { l.level.Store(uint32(level)) }

// IsLevelEnabled reports whether a record at level would pass the filter.
func (l *Logger) IsLevelEnabled(level types.Level) bool {
	return level >= l.Level() && level < types.LevelOff
}

// Formatter returns the formatter used for this logger's records.
func (l *Logger) Formatter() types.Formatter {
	return l.formatter.Load().(formatterBox).f
}

// SetFormatter replaces the formatter.
func (l *Logger) SetFormatter(f types.Formatter) {
	if f != nil {
		l.formatter.Store(formatterBox{f: f})
	}
}

// SetLogFormat replaces the formatter with the default formatter for kind.
func (l *Logger) SetLogFormat(kind types.LogFormat) {
	l.formatter.Store(formatterBox{f: formatters.New(kind)})
}

// RegisterSink appends a sink to this logger. Nil sinks are ignored.
func (l *Logger) RegisterSink(sink types.Sink) {
	if sink != nil {
		l.sinks.Add(sink)
	}
}

// RegisterSinks appends several sinks at once.
func (l *Logger) RegisterSinks(sinks []types.Sink) {
	filtered := make([]types.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	l.sinks.AddRange(filtered)
}

// RemoveSink deletes the first matching sink, reporting whether one was
// found.
func (l *Logger) RemoveSink(sink types.Sink) bool {
	return l.sinks.Remove(sink)
}

// Sinks returns a copy of the current sink list.
func (l *Logger) Sinks() []types.Sink {
	return l.sinks.Snapshot()
}

// DroppedMessages returns how many records this logger lost to pool
// exhaustion or shutdown.
func (l *Logger) DroppedMessages() uint64 { return l.dropped.Load() }

// ResetDroppedMessages zeroes the dropped counter.
func (l *Logger) ResetDroppedMessages() { l.dropped.Store(0) }

// ProcessedMessages returns how many records this logger has enqueued.
func (l *Logger) ProcessedMessages() uint64 { return l.processed.Load() }

// Log emits message at level, reporting whether it was accepted. Empty
// messages and levels outside the filter are rejected.
func (l *Logger) Log(level types.Level, message string) bool {
	if message == "" || !l.IsLevelEnabled(level) {
		return false
	}
	return l.emit(level, message, nil, 2)
}

// LogData emits message with attached structured data.
func (l *Logger) LogData(level types.Level, message string, data types.StructuredData) bool {
	if !l.IsLevelEnabled(level) {
		return false
	}
	return l.emit(level, message, data, 2)
}

// Trace logs at LevelTrace.
func (l *Logger) Trace(message string) bool { return l.logAt(types.LevelTrace, message) }

// Debug logs at LevelDebug.
func (l *Logger) Debug(message string) bool { return l.logAt(types.LevelDebug, message) }

// Info logs at LevelInfo.
func (l *Logger) Info(message string) bool { return l.logAt(types.LevelInfo, message) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(message string) bool { return l.logAt(types.LevelWarn, message) }

// Error logs at LevelError.
func (l *Logger) Error(message string) bool { return l.logAt(types.LevelError, message) }

// Fatal logs at LevelFatal. It does not exit the process.
func (l *Logger) Fatal(message string) bool { return l.logAt(types.LevelFatal, message) }

// Tracef logs a formatted message at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelTrace, format, args...)
}

// Debugf logs a formatted message at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelDebug, format, args...)
}

// Infof logs a formatted message at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelInfo, format, args...)
}

// Warnf logs a formatted message at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelWarn, format, args...)
}

// Errorf logs a formatted message at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelError, format, args...)
}

// Fatalf logs a formatted message at LevelFatal. It does not exit the
// process.
func (l *Logger) Fatalf(format string, args ...interface{}) bool {
	return l.logfAt(types.LevelFatal, format, args...)
}

func (l *Logger) logAt(level types.Level, message string) bool {
	if message == "" || !l.IsLevelEnabled(level) {
		return false
	}
	return l.emit(level, message, nil, 3)
}

func (l *Logger) logfAt(level types.Level, format string, args ...interface{}) bool {
	if !l.IsLevelEnabled(level) {
		return false
	}
	message := fmt.Sprintf(format, args...)
	if message == "" {
		return false
	}
	return l.emit(level, message, nil, 3)
}

// emit builds a pooled message and enqueues it. calldepth is handed to
// types.CaptureSource and counts the frames from emit up to the user call
// site: 2 from Log, 3 from Info and the other helpers via logAt.
func (l *Logger) emit(level types.Level, message string, data types.StructuredData, calldepth int) bool {
	m := l.manager.messagePool.Acquire()
	if m == nil {
		l.dropped.Add(1)
		l.manager.collector.TrackDropped()
		return false
	}

	m.Timestamp = time.Now()
	m.Name = l.name
	m.Level = level
	m.Source = types.CaptureSource(calldepth)
	m.Storage.Store(message)
	m.Logger = l
	if len(data) > 0 {
		copied := make(types.StructuredData, len(data))
		for k, v := range data {
			copied[k] = v
		}
		m.Data = copied
	}

	wp := l.manager.workers()
	if wp == nil {
		l.manager.messagePool.Release(m)
		l.dropped.Add(1)
		l.manager.collector.TrackDropped()
		return false
	}

	wp.Enqueue(m, uint8(level))
	l.processed.Add(1)
	l.manager.collector.TrackMessage(uint8(level))
	return true
}

// ProcessMessage runs on a worker goroutine: it hands the message to every
// sink in the current snapshot and releases the message back to the pool.
func (l *Logger) ProcessMessage(m *types.Message) {
	if m == nil || !m.IsActive() {
		return
	}

	handle := l.sinks.Read()
	formatter := l.Formatter()
	for _, sink := range handle.Items() {
		if sink != nil {
			sink.Output(m, formatter)
		}
	}
	handle.Release()

	l.manager.messagePool.Release(m)
}

// Flush asks every sink in the current snapshot to flush.
func (l *Logger) Flush() {
	handle := l.sinks.Read()
	for _, sink := range handle.Items() {
		if sink != nil {
			_ = sink.Flush()
		}
	}
	handle.Release()
}
