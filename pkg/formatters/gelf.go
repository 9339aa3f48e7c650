package formatters

import (
	"encoding/json"
	"strconv"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// GelfFormatter renders messages as GELF 1.1 payloads.
type GelfFormatter struct {
	Options Options
}

// NewGelfFormatter creates a GELF formatter. The host field resolves from
// the OS when Options.HostName is empty.
func NewGelfFormatter() *GelfFormatter {
	opts := DefaultOptions()
	opts.resolveHost()
	return &GelfFormatter{Options: opts}
}

// gelfLevel maps the internal level ordering onto syslog severities, which
// GELF inherits (lower is more severe).
func gelfLevel(level types.Level) int {
	switch level {
	case types.LevelFatal:
		return 2 // critical
	case types.LevelError:
		return 3 // error
	case types.LevelWarn:
		return 4 // warning
	case types.LevelInfo:
		return 6 // informational
	default:
		return 7 // debug
	}
}

// Format marshals the message as one GELF line.
func (f *GelfFormatter) Format(msg *types.Message) ([]byte, error) {
	payload := map[string]interface{}{
		"version":       "1.1",
		"host":          f.Options.HostName,
		"short_message": msg.Text(),
		"timestamp":     float64(msg.Timestamp.UnixNano()) / 1e9,
		"level":         gelfLevel(msg.Level),
		"_logger":       msg.Name,
	}
	if msg.Source.File != "" {
		payload["_file"] = msg.Source.File
		payload["_line"] = strconv.Itoa(msg.Source.Line)
	}
	for k, v := range msg.Data {
		// Additional GELF fields are underscore-prefixed; "_id" is reserved.
		if k == "id" {
			k = "id_"
		}
		payload["_"+k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
