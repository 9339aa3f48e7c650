package formatters

import (
	"encoding/json"
	"path/filepath"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// CloudWatchFormatter renders messages as AWS CloudWatch Logs JSON events.
type CloudWatchFormatter struct {
	Options Options

	// LogGroup and LogStream are stamped into every event as set.
	// NewCloudWatchFormatter sets LogStream to the resolved host name.
	LogGroup  string
	LogStream string

	// IncludePlainText carries the message as a plain "message" field.
	IncludePlainText bool
}

// NewCloudWatchFormatter creates a CloudWatch formatter with defaults.
func NewCloudWatchFormatter() *CloudWatchFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
	opts.resolveHost()
	return &CloudWatchFormatter{
		Options:          opts,
		LogGroup:         "application-logs",
		LogStream:        opts.HostName,
		IncludePlainText: true,
	}
}

// Format marshals the message as one CloudWatch event line.
func (f *CloudWatchFormatter) Format(msg *types.Message) ([]byte, error) {
	event := map[string]interface{}{
		"timestamp":  f.Options.stamp(msg.Timestamp.UTC()),
		"logGroup":   f.LogGroup,
		"logStream":  f.LogStream,
		"host":       f.Options.HostName,
		"level":      msg.Level.String(),
		"levelValue": int(msg.Level),
		"logger":     msg.Name,
		"app":        f.Options.Application,
		"env":        f.Options.Environment,
	}
	if f.IncludePlainText {
		event["message"] = msg.Text()
	}
	if f.Options.IncludeSource && msg.Source.File != "" {
		event["location"] = map[string]interface{}{
			"file":     filepath.Base(msg.Source.File),
			"line":     msg.Source.Line,
			"function": msg.Source.Function,
		}
	}
	if len(msg.Data) > 0 {
		event["fields"] = msg.Data
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ContentType returns the MIME type of the produced payload.
func (f *CloudWatchFormatter) ContentType() string { return "application/json" }
