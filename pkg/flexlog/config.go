package flexlog

import (
	"os"
	"runtime"
	"strconv"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// DefaultLoggerName is the name of the logger created at initialization.
const DefaultLoggerName = "main"

// Config carries everything Initialize needs. Zero values select defaults.
type Config struct {
	// DefaultLevel is copied into loggers created after initialization.
	DefaultLevel types.Level

	// DefaultFormat selects the formatter new loggers start with.
	DefaultFormat types.LogFormat

	// DefaultLoggerName overrides the name of the logger created during
	// initialization.
	DefaultLoggerName string

	// WorkerCount sizes the worker pool. 0 means max(1, NumCPU/2).
	WorkerCount int

	// PoolInitialCapacity sizes the message pool's first chunk. 0 keeps
	// the pool default.
	PoolInitialCapacity int

	// PoolScanLimit bounds the lock-free per-chunk scan. 0 keeps the pool
	// default.
	PoolScanLimit int

	// PoolLocalShards sets the number of local cache shards. 0 keeps the
	// pool default.
	PoolLocalShards int

	// DisablePoolGrowth pins the pool at its initial capacity so
	// exhaustion becomes observable. Intended for tests.
	DisablePoolGrowth bool

	// DefaultSinks are attached to the default logger. Nil means a
	// console sink.
	DefaultSinks []types.Sink

	// ErrorHandler receives internal pipeline failures. Nil means stderr.
	ErrorHandler ErrorHandler
}

// DefaultConfig resolves the configuration from built-in defaults and the
// FLEXLOG_WORKERS / FLEXLOG_LEVEL environment variables.
func DefaultConfig() Config {
	cfg := Config{
		DefaultLevel:      types.LevelInfo,
		DefaultFormat:     types.FormatPattern,
		DefaultLoggerName: DefaultLoggerName,
		WorkerCount:       defaultWorkerCount(),
	}
	if v := os.Getenv("FLEXLOG_LEVEL"); v != "" {
		if level, err := types.ParseLevel(v); err == nil {
			cfg.DefaultLevel = level
		}
	}
	return cfg
}

func defaultWorkerCount() int {
	if v := os.Getenv("FLEXLOG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}
