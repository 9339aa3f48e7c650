// Package formatters provides the byte-representation side of the pipeline:
// a token-based pattern formatter and several structured variants, selected
// through a small factory.
package formatters

import (
	"os"
	"time"
)

// Options controls fields shared by all formatters.
type Options struct {
	// TimestampFormat is a time.Format layout for pattern output and
	// structured variants that carry an RFC-style timestamp.
	TimestampFormat string

	// IncludeSource adds the file:line call site where the format supports it.
	IncludeSource bool

	// HostName is stamped into structured outputs that require a host field.
	// Empty means "resolve from the operating system once, at construction".
	HostName string

	// Service identity carried by the structured variants.
	Application    string
	Environment    string
	ServiceName    string
	ServiceVersion string

	// TimeZone converts timestamps before formatting. Nil means local time.
	TimeZone *time.Location
}

// DefaultOptions returns the options every formatter starts from.
func DefaultOptions() Options {
	return Options{
		TimestampFormat: "2006-01-02 15:04:05.000",
		IncludeSource:   false,
		Application:     "flexlog",
		Environment:     "production",
		ServiceVersion:  "1.0.0",
	}
}

// resolveHost fills HostName from the operating system when unset.
func (o *Options) resolveHost() {
	if o.HostName != "" {
		return
	}
	if host, err := os.Hostname(); err == nil {
		o.HostName = host
	} else {
		o.HostName = "unknown"
	}
}

func (o Options) stamp(t time.Time) string {
	if o.TimeZone != nil {
		t = t.In(o.TimeZone)
	}
	return t.Format(o.TimestampFormat)
}
