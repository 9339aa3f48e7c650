package formatters

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// ElasticsearchFormatter renders messages as Elasticsearch documents,
// optionally in bulk-API framing (action line followed by the document).
type ElasticsearchFormatter struct {
	Options Options

	// IndexTemplate names the target index; {application} and {date}
	// expand at format time.
	IndexTemplate string
	DocType       string
	UseBulkFormat bool
}

// NewElasticsearchFormatter creates an Elasticsearch formatter with
// defaults.
func NewElasticsearchFormatter() *ElasticsearchFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = time.RFC3339Nano
	opts.resolveHost()
	return &ElasticsearchFormatter{
		Options:       opts,
		IndexTemplate: "{application}-{date}",
		DocType:       "_doc",
	}
}

// IndexName expands the index template for the given instant.
func (f *ElasticsearchFormatter) IndexName(now time.Time) string {
	name := f.IndexTemplate
	name = strings.ReplaceAll(name, "{application}", f.Options.Application)
	name = strings.ReplaceAll(name, "{date}", now.Format("2006.01.02"))
	return name
}

// Format marshals the message as one document line, or as two bulk-API
// lines when UseBulkFormat is set.
func (f *ElasticsearchFormatter) Format(msg *types.Message) ([]byte, error) {
	doc := map[string]interface{}{
		"@timestamp":  f.Options.stamp(msg.Timestamp),
		"message":     msg.Text(),
		"logger_name": msg.Name,
		"level":       msg.Level.String(),
		"level_value": int(msg.Level),
		"application": f.Options.Application,
		"environment": f.Options.Environment,
		"host":        f.Options.HostName,
	}
	if f.Options.ServiceName != "" {
		doc["service"] = map[string]interface{}{
			"name":    f.Options.ServiceName,
			"version": f.Options.ServiceVersion,
		}
	}
	if f.Options.IncludeSource && msg.Source.File != "" {
		doc["log"] = map[string]interface{}{
			"origin": map[string]interface{}{
				"file":     filepath.Base(msg.Source.File),
				"function": msg.Source.Function,
				"line":     msg.Source.Line,
			},
		}
	}
	if len(msg.Data) > 0 {
		doc["fields"] = msg.Data
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	if !f.UseBulkFormat {
		return append(body, '\n'), nil
	}

	action, err := json.Marshal(map[string]interface{}{
		"index": map[string]interface{}{
			"_index": f.IndexName(msg.Timestamp),
			"_type":  f.DocType,
		},
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(action) + len(body) + 2)
	buf.Write(action)
	buf.WriteByte('\n')
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ContentType returns the MIME type of the produced payload.
func (f *ElasticsearchFormatter) ContentType() string { return "application/json" }
