package formatters

import (
	"encoding/json"
	"math"
	"path/filepath"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// SplunkFormatter renders messages as Splunk events, by default framed for
// the HTTP Event Collector (time/source/sourcetype envelope around an
// event object).
type SplunkFormatter struct {
	Options Options

	UseHEC     bool
	Source     string
	SourceType string
	Index      string
}

// NewSplunkFormatter creates a Splunk formatter with defaults.
func NewSplunkFormatter() *SplunkFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = time.RFC3339Nano
	opts.resolveHost()
	return &SplunkFormatter{
		Options:    opts,
		UseHEC:     true,
		Source:     opts.Application,
		SourceType: "flexlog:log",
	}
}

// Format marshals the message as one Splunk event line.
func (f *SplunkFormatter) Format(msg *types.Message) ([]byte, error) {
	event := map[string]interface{}{
		"message":     msg.Text(),
		"logger_name": msg.Name,
		"level":       msg.Level.String(),
		"level_value": int(msg.Level),
		"application": f.Options.Application,
		"environment": f.Options.Environment,
	}
	if f.Options.IncludeSource && msg.Source.File != "" {
		event["file"] = filepath.Base(msg.Source.File)
		event["line"] = msg.Source.Line
		event["function"] = msg.Source.Function
	}
	if len(msg.Data) > 0 {
		event["fields"] = msg.Data
	}

	var payload map[string]interface{}
	if f.UseHEC {
		// HEC carries epoch seconds with millisecond precision.
		epoch := math.Round(float64(msg.Timestamp.UnixNano())/1e6) / 1e3
		payload = map[string]interface{}{
			"time":       epoch,
			"source":     f.Source,
			"sourcetype": f.SourceType,
			"host":       f.Options.HostName,
			"event":      event,
		}
		if f.Index != "" {
			payload["index"] = f.Index
		}
	} else {
		payload = event
		payload["timestamp"] = f.Options.stamp(msg.Timestamp)
		payload["host"] = f.Options.HostName
		payload["source"] = f.Source
		payload["sourcetype"] = f.SourceType
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ContentType returns the MIME type of the produced payload.
func (f *SplunkFormatter) ContentType() string { return "application/json" }
