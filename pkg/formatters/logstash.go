package formatters

import (
	"encoding/json"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// LogstashFormatter renders messages as Logstash events (@timestamp /
// @version envelope with flattened fields).
type LogstashFormatter struct {
	Options Options
}

// NewLogstashFormatter creates a Logstash formatter.
func NewLogstashFormatter() *LogstashFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = time.RFC3339Nano
	return &LogstashFormatter{Options: opts}
}

// Format marshals the message as one Logstash event line.
func (f *LogstashFormatter) Format(msg *types.Message) ([]byte, error) {
	event := map[string]interface{}{
		"@timestamp": f.Options.stamp(msg.Timestamp),
		"@version":   "1",
		"message":    msg.Text(),
		"level":      msg.Level.String(),
		"logger":     msg.Name,
	}
	for k, v := range msg.Data {
		switch k {
		case "@timestamp", "@version", "message", "level", "logger":
			event["fields."+k] = v
		default:
			event[k] = v
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
