package flexlog

import (
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// Initialize brings the shared manager to Running with defaults.
func Initialize() error { return Instance().Initialize() }

// InitializeWithConfig brings the shared manager to Running.
func InitializeWithConfig(cfg Config) error { return Instance().InitializeWithConfig(cfg) }

// Shutdown stops the shared manager, flushing first when wait is set.
func Shutdown(wait bool, timeout time.Duration) error { return Instance().Shutdown(wait, timeout) }

// GetLogger returns (registering if needed) a named logger from the shared
// manager.
func GetLogger(name string) (*Logger, error) { return Instance().GetLogger(name) }

// RegisterLogger registers a named logger on the shared manager.
func RegisterLogger(name string) (*Logger, error) { return Instance().RegisterLogger(name) }

// HasLogger reports whether the shared manager knows this name.
func HasLogger(name string) bool { return Instance().HasLogger(name) }

// RemoveLogger removes a named logger from the shared manager.
func RemoveLogger(name string) bool { return Instance().RemoveLogger(name) }

// RegisterSink appends a sink to the shared manager's global list.
func RegisterSink(sink types.Sink) { Instance().RegisterSink(sink) }

// SetDefaultLevel changes the level inherited by new loggers.
func SetDefaultLevel(level types.Level) { Instance().SetDefaultLevel(level) }

// SetDefaultFormat changes the format inherited by new loggers.
func SetDefaultFormat(format types.LogFormat) { Instance().SetDefaultFormat(format) }

// Trace logs through the default logger.
func Trace(message string) bool { return defaultLog(types.LevelTrace, message) }

// Debug logs through the default logger.
func Debug(message string) bool { return defaultLog(types.LevelDebug, message) }

// Info logs through the default logger.
func Info(message string) bool { return defaultLog(types.LevelInfo, message) }

// Warn logs through the default logger.
func Warn(message string) bool { return defaultLog(types.LevelWarn, message) }

// ErrorLog logs through the default logger.
func ErrorLog(message string) bool { return defaultLog(types.LevelError, message) }

// Fatal logs through the default logger. It does not exit the process.
func Fatal(message string) bool { return defaultLog(types.LevelFatal, message) }

func defaultLog(level types.Level, message string) bool {
	logger, err := Instance().DefaultLogger()
	if err != nil {
		return false
	}
	return logger.Log(level, message)
}
