package formatters

import (
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// JSONFormatter renders messages as line-delimited JSON objects.
type JSONFormatter struct {
	Options Options
}

// NewJSONFormatter creates a JSON formatter with default options.
func NewJSONFormatter() *JSONFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = time.RFC3339Nano
	return &JSONFormatter{Options: opts}
}

type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger"`
	Message   string                 `json:"message"`
	Source    string                 `json:"source,omitempty"`
	Function  string                 `json:"function,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Format marshals the message as one JSON line.
func (f *JSONFormatter) Format(msg *types.Message) ([]byte, error) {
	entry := jsonEntry{
		Timestamp: f.Options.stamp(msg.Timestamp),
		Level:     msg.Level.String(),
		Logger:    msg.Name,
		Message:   msg.Text(),
	}
	if f.Options.IncludeSource && msg.Source.File != "" {
		entry.Source = filepath.Base(msg.Source.File) + ":" + itoa(msg.Source.Line)
		entry.Function = msg.Source.Function
	}
	if len(msg.Data) > 0 {
		entry.Fields = msg.Data
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
