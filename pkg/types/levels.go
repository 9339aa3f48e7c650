package types

import (
	"fmt"
	"strings"
)

// Level represents the severity of a log message.
// Levels are totally ordered: Trace < Debug < Info < Warn < Error < Fatal < Off.
type Level uint8

const (
	// LevelTrace is used for very fine-grained diagnostic output
	LevelTrace Level = iota
	// LevelDebug is used for detailed debugging information
	LevelDebug
	// LevelInfo is used for general informational messages
	LevelInfo
	// LevelWarn is used for potentially harmful situations
	LevelWarn
	// LevelError is used for error events that still allow the application to continue
	LevelError
	// LevelFatal is used for severe errors that will likely abort the application
	LevelFatal
	// LevelOff disables all logging when used as a filter level.
	// Messages must never be emitted at LevelOff.
	LevelOff
)

var levelStrings = [...]string{
	"TRACE",
	"DEBUG",
	"INFO",
	"WARN",
	"ERROR",
	"FATAL",
	"OFF",
}

// String returns the canonical upper-case name of the level.
func (l Level) String() string {
	if int(l) < len(levelStrings) {
		return levelStrings[l]
	}
	return "UNKNOWN"
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l <= LevelOff
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	case "OFF":
		return LevelOff, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LogFormat selects the output representation produced by a formatter.
type LogFormat uint8

const (
	// FormatPattern outputs logs using a token-based pattern (default)
	FormatPattern LogFormat = iota
	// FormatJSON outputs logs as line-delimited JSON objects
	FormatJSON
	// FormatGELF outputs logs in Graylog Extended Log Format
	FormatGELF
	// FormatLogstash outputs logs as Logstash events
	FormatLogstash
	// FormatCloudWatch outputs logs as AWS CloudWatch Logs JSON
	FormatCloudWatch
	// FormatElasticsearch outputs logs as Elasticsearch documents
	FormatElasticsearch
	// FormatOpenTelemetry outputs logs as OTLP-style log records
	FormatOpenTelemetry
	// FormatSplunk outputs logs as Splunk (HEC) events
	FormatSplunk
	// FormatXML outputs logs as XML documents
	FormatXML
)

// String returns the name of the format.
func (f LogFormat) String() string {
	switch f {
	case FormatPattern:
		return "pattern"
	case FormatJSON:
		return "json"
	case FormatGELF:
		return "gelf"
	case FormatLogstash:
		return "logstash"
	case FormatCloudWatch:
		return "cloudwatch"
	case FormatElasticsearch:
		return "elasticsearch"
	case FormatOpenTelemetry:
		return "opentelemetry"
	case FormatSplunk:
		return "splunk"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}
