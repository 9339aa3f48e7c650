package flexlog

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/wayneeseguin/flexlog/internal/hazard"
	"github.com/wayneeseguin/flexlog/internal/metrics"
	"github.com/wayneeseguin/flexlog/internal/pool"
	"github.com/wayneeseguin/flexlog/internal/rcu"
	"github.com/wayneeseguin/flexlog/internal/workers"
	"github.com/wayneeseguin/flexlog/pkg/backends"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

type managerState uint32

const (
	stateUninitialized managerState = iota
	stateInitializing
	stateRunning
	stateShuttingDown
	stateShutDown
)

func (s managerState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitializing:
		return "initializing"
	case stateRunning:
		return "running"
	case stateShuttingDown:
		return "shutting-down"
	case stateShutDown:
		return "shut-down"
	default:
		return "unknown"
	}
}

// DefaultShutdownTimeout bounds Shutdown when the caller passes 0.
const DefaultShutdownTimeout = 5 * time.Second

// Manager owns the process-wide logging machinery: the hazard domain shared
// by every lock-free structure, the message pool, the logger registry, the
// worker pool, and the global sink list. Its lifecycle is an atomic state
// machine: Uninitialized -> Initializing -> Running -> ShuttingDown ->
// ShutDown.
//
// Most programs use the shared Instance; NewManager exists so tests and
// embedders can run isolated pipelines.
type Manager struct {
	state atomic.Uint32

	initOnce sync.Once
	initErr  error

	hazardDomain *hazard.Domain
	messagePool  *pool.MessagePool
	loggers      *loggerMap
	workerPool   atomic.Pointer[workers.Pool]
	globalSinks  *rcu.List[types.Sink]
	collector    *metrics.Collector

	registerMu sync.Mutex

	defaultLevel      atomic.Uint32
	defaultFormat     atomic.Uint32
	defaultLoggerName atomic.Pointer[string]
	threadPoolSize    atomic.Int64
	configVersion     atomic.Uint64

	errorHandler ErrorHandler
}

var (
	instance     *Manager
	instanceOnce sync.Once
)

// Instance returns the process-wide manager, constructing it on first use.
// The instance never moves; references into it are stable for the life of
// the process.
func Instance() *Manager {
	instanceOnce.Do(func() {
		instance = NewManager()
	})
	return instance
}

// NewManager creates an uninitialized manager.
func NewManager() *Manager {
	m := &Manager{
		hazardDomain: hazard.NewDomain(),
		errorHandler: StderrErrorHandler,
	}
	m.globalSinks = rcu.NewList[types.Sink](m.hazardDomain)
	m.collector = metrics.NewCollector()
	m.defaultLevel.Store(uint32(types.LevelInfo))
	m.defaultFormat.Store(uint32(types.FormatPattern))
	name := DefaultLoggerName
	m.defaultLoggerName.Store(&name)
	return m
}

// Initialize brings the manager to Running with the default configuration.
// Only the first call does work; subsequent calls return the first outcome.
func (m *Manager) Initialize() error {
	return m.InitializeWithConfig(DefaultConfig())
}

// InitializeWithConfig brings the manager to Running. Construction order:
// message pool, registry, worker pool, then the default logger.
func (m *Manager) InitializeWithConfig(cfg Config) error {
	m.initOnce.Do(func() {
		m.initErr = m.initialize(cfg)
	})
	return m.initErr
}

func (m *Manager) initialize(cfg Config) error {
	if !m.casState(stateUninitialized, stateInitializing) {
		return &Error{
			Code:  ErrCodeInvalidState,
			Op:    "initialize",
			State: m.currentState().String(),
		}
	}

	if cfg.ErrorHandler != nil {
		m.errorHandler = cfg.ErrorHandler
	}
	if cfg.DefaultLoggerName != "" {
		name := cfg.DefaultLoggerName
		m.defaultLoggerName.Store(&name)
	}
	m.defaultLevel.Store(uint32(cfg.DefaultLevel))
	m.defaultFormat.Store(uint32(cfg.DefaultFormat))

	var poolOpts []pool.Option
	if cfg.PoolInitialCapacity > 0 {
		poolOpts = append(poolOpts, pool.WithInitialCapacity(cfg.PoolInitialCapacity))
	}
	if cfg.PoolScanLimit > 0 {
		poolOpts = append(poolOpts, pool.WithScanLimit(cfg.PoolScanLimit))
	}
	if cfg.PoolLocalShards > 0 {
		poolOpts = append(poolOpts, pool.WithLocalShards(cfg.PoolLocalShards))
	}
	if cfg.DisablePoolGrowth {
		poolOpts = append(poolOpts, pool.WithGrowthDisabled())
	}
	m.messagePool = pool.NewMessagePool(poolOpts...)

	m.loggers = newLoggerMap(m.hazardDomain)

	workerCount := cfg.WorkerCount
	if n := m.threadPoolSize.Load(); n > 0 {
		workerCount = int(n)
	}
	if workerCount < 1 {
		workerCount = defaultWorkerCount()
	}
	m.threadPoolSize.Store(int64(workerCount))
	m.workerPool.Store(workers.NewPool(m.messagePool, workerCount))

	if err := m.createDefaultLogger(cfg.DefaultSinks); err != nil {
		m.teardown(false, 0)
		m.state.Store(uint32(stateUninitialized))
		return pkgerrors.Wrap(err, "flexlog: initialization failed")
	}

	m.state.Store(uint32(stateRunning))
	return nil
}

func (m *Manager) createDefaultLogger(sinks []types.Sink) error {
	name := *m.defaultLoggerName.Load()
	logger := newLogger(m, name, m.DefaultLevel(), m.DefaultFormat())
	if len(sinks) == 0 {
		logger.RegisterSink(backends.NewConsoleSink(backends.DefaultConsoleOptions()))
	} else {
		logger.RegisterSinks(sinks)
	}
	m.loggers.insert(name, logger)
	return nil
}

// Shutdown stops the pipeline. With wait set, queued records are flushed
// within timeout first. Only valid from Running; other states return an
// error naming the observed state. A zero timeout selects
// DefaultShutdownTimeout.
func (m *Manager) Shutdown(wait bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	if !m.casState(stateRunning, stateShuttingDown) {
		return &Error{
			Code:  ErrCodeInvalidState,
			Op:    "shutdown",
			State: m.currentState().String(),
		}
	}

	m.teardown(wait, timeout)
	m.state.Store(uint32(stateShutDown))
	return nil
}

// teardown releases the worker pool, registry and global sinks. Shared
// between Shutdown, failed initialization, and ShutdownAll.
func (m *Manager) teardown(wait bool, timeout time.Duration) {
	if wp := m.workerPool.Swap(nil); wp != nil {
		if wait {
			wp.Flush(timeout)
		}
		wp.Shutdown(wait, timeout)
		if remaining := wp.Pending(); remaining > 0 {
			m.reportError("shutdown", fmt.Sprintf("%d messages abandoned at shutdown", remaining), nil, SeverityHigh)
		}
	}
	if m.loggers != nil {
		m.loggers.clear()
	}
	m.globalSinks.Clear()
	m.hazardDomain.Drain()
}

// ShutdownAll forces a best-effort shutdown from any state except ShutDown.
// Used as the destructor path; errors are not reported.
func (m *Manager) ShutdownAll() {
	if m.currentState() == stateShutDown {
		return
	}
	m.teardown(true, DefaultShutdownTimeout)
	m.state.Store(uint32(stateShutDown))
}

// IsRunning reports whether the manager accepts work.
func (m *Manager) IsRunning() bool { return m.currentState() == stateRunning }

// RegisterLogger returns the logger named name, creating it when missing.
// A new logger inherits the default level, the default format, and every
// currently registered global sink.
func (m *Manager) RegisterLogger(name string) (*Logger, error) {
	if m.currentState() != stateRunning {
		return nil, &Error{Code: ErrCodeNotRunning, Op: "register_logger", State: m.currentState().String()}
	}
	if name == "" {
		return nil, &Error{Code: ErrCodeEmptyName, Op: "register_logger"}
	}

	if existing := m.loggers.find(name); existing != nil {
		return existing, nil
	}

	// Lookups stay lock-free; only the insert path serializes, so two
	// racing registrations of one name cannot both publish an entry.
	m.registerMu.Lock()
	defer m.registerMu.Unlock()
	if existing := m.loggers.find(name); existing != nil {
		return existing, nil
	}

	logger := newLogger(m, name, m.DefaultLevel(), m.DefaultFormat())
	logger.RegisterSinks(m.globalSinks.Snapshot())
	return m.loggers.insert(name, logger), nil
}

// GetLogger returns the logger named name, registering it when missing.
func (m *Manager) GetLogger(name string) (*Logger, error) {
	if m.currentState() == stateRunning {
		if logger := m.loggers.find(name); logger != nil {
			return logger, nil
		}
	}
	return m.RegisterLogger(name)
}

// DefaultLogger returns the logger created at initialization.
func (m *Manager) DefaultLogger() (*Logger, error) {
	return m.GetLogger(*m.defaultLoggerName.Load())
}

// HasLogger reports whether a logger with this name exists.
func (m *Manager) HasLogger(name string) bool {
	if m.currentState() != stateRunning || name == "" {
		return false
	}
	return m.loggers.contains(name)
}

// RemoveLogger unlinks a logger from the registry. The default logger
// cannot be removed. Callers must ensure no producer still reaches the
// logger: its storage is recycled once all in-flight readers finish.
func (m *Manager) RemoveLogger(name string) bool {
	if m.currentState() != stateRunning || name == *m.defaultLoggerName.Load() {
		return false
	}
	return m.loggers.removeEntry(name)
}

// RegisterSink appends a sink to the global list. Loggers created from now
// on inherit it; existing loggers are not retroactively updated.
func (m *Manager) RegisterSink(sink types.Sink) {
	if m.currentState() != stateRunning || sink == nil {
		return
	}
	m.globalSinks.Add(sink)
	m.bumpConfig()
}

// GlobalSinks returns a copy of the global sink list.
func (m *Manager) GlobalSinks() []types.Sink { return m.globalSinks.Snapshot() }

// DefaultLevel returns the level copied into new loggers.
func (m *Manager) DefaultLevel() types.Level { return types.Level(m.defaultLevel.Load()) }

// SetDefaultLevel changes the level copied into new loggers.
func (m *Manager) SetDefaultLevel(level types.Level) {
	m.defaultLevel.Store(uint32(level))
	m.bumpConfig()
}

// DefaultFormat returns the format copied into new loggers.
func (m *Manager) DefaultFormat() types.LogFormat { return types.LogFormat(m.defaultFormat.Load()) }

// SetDefaultFormat changes the format copied into new loggers.
func (m *Manager) SetDefaultFormat(format types.LogFormat) {
	m.defaultFormat.Store(uint32(format))
	m.bumpConfig()
}

// DefaultLoggerName returns the name of the logger created at
// initialization.
func (m *Manager) DefaultLoggerName() string { return *m.defaultLoggerName.Load() }

// SetDefaultLoggerName changes which logger DefaultLogger resolves.
func (m *Manager) SetDefaultLoggerName(name string) {
	if name == "" {
		return
	}
	m.defaultLoggerName.Store(&name)
	m.bumpConfig()
}

// SetThreadPoolSize records the worker count used at initialization.
// After initialization, use ResizeThreadPool.
func (m *Manager) SetThreadPoolSize(n int) {
	if n > 0 {
		m.threadPoolSize.Store(int64(n))
	}
}

// ThreadPoolSize returns the current worker count.
func (m *Manager) ThreadPoolSize() int {
	if wp := m.workerPool.Load(); wp != nil {
		return wp.WorkerCount()
	}
	return int(m.threadPoolSize.Load())
}

// ResizeThreadPool changes the live worker count. Returns false when the
// pipeline is not running.
func (m *Manager) ResizeThreadPool(n int) bool {
	wp := m.workerPool.Load()
	if wp == nil {
		return false
	}
	if wp.Resize(n) {
		m.threadPoolSize.Store(int64(wp.WorkerCount()))
		m.bumpConfig()
		return true
	}
	return false
}

// MessagePool exposes the shared message pool.
func (m *Manager) MessagePool() *pool.MessagePool { return m.messagePool }

// ConfigVersion returns a counter incremented by every configuration
// change. Observability only; nothing blocks on it.
func (m *Manager) ConfigVersion() uint64 { return m.configVersion.Load() }

// Metrics returns a snapshot of pipeline counters and gauges.
func (m *Manager) Metrics() metrics.Snapshot {
	g := metrics.Gauges{ConfigVersion: m.configVersion.Load()}
	if wp := m.workerPool.Load(); wp != nil {
		g.PendingMessages = wp.Pending()
		g.WorkerCount = wp.WorkerCount()
	}
	if m.messagePool != nil {
		g.PoolSize = m.messagePool.Size()
		g.PoolCapacity = m.messagePool.Capacity()
		g.PoolPeakUsage = m.messagePool.PeakUsage()
	}
	if m.loggers != nil {
		g.LoggerCount = m.loggers.count()
	}
	return m.collector.Snapshot(g)
}

// FlushAll flushes the worker pool, then every logger's sinks.
func (m *Manager) FlushAll(timeout time.Duration) {
	if wp := m.workerPool.Load(); wp != nil {
		wp.Flush(timeout)
	}
	if m.loggers != nil {
		m.loggers.forEach(func(l *Logger) { l.Flush() })
	}
}

// workers returns the live worker pool, or nil after shutdown.
func (m *Manager) workers() *workers.Pool { return m.workerPool.Load() }

func (m *Manager) reportError(op, message string, err error, level ErrorLevel) {
	if m.errorHandler != nil {
		m.errorHandler(LogError{Op: op, Message: message, Err: err, Level: level, Time: time.Now()})
	}
}

func (m *Manager) bumpConfig() { m.configVersion.Add(1) }

func (m *Manager) currentState() managerState { return managerState(m.state.Load()) }

func (m *Manager) casState(from, to managerState) bool {
	return m.state.CompareAndSwap(uint32(from), uint32(to))
}
