package formatters

import (
	"fmt"
	"strconv"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// New returns a formatter for the given format kind with default options.
func New(kind types.LogFormat) types.Formatter {
	switch kind {
	case types.FormatJSON:
		return NewJSONFormatter()
	case types.FormatGELF:
		return NewGelfFormatter()
	case types.FormatLogstash:
		return NewLogstashFormatter()
	case types.FormatCloudWatch:
		return NewCloudWatchFormatter()
	case types.FormatElasticsearch:
		return NewElasticsearchFormatter()
	case types.FormatOpenTelemetry:
		return NewOpenTelemetryFormatter()
	case types.FormatSplunk:
		return NewSplunkFormatter()
	case types.FormatXML:
		return NewXMLFormatter()
	default:
		return NewPatternFormatter("")
	}
}

// NewByName resolves a formatter by name: "pattern", "json", "gelf",
// "logstash", "cloudwatch", "elasticsearch", "opentelemetry", "splunk" or
// "xml".
func NewByName(name string) (types.Formatter, error) {
	switch name {
	case "pattern", "text", "":
		return NewPatternFormatter(""), nil
	case "json":
		return NewJSONFormatter(), nil
	case "gelf":
		return NewGelfFormatter(), nil
	case "logstash":
		return NewLogstashFormatter(), nil
	case "cloudwatch":
		return NewCloudWatchFormatter(), nil
	case "elasticsearch", "elastic":
		return NewElasticsearchFormatter(), nil
	case "opentelemetry", "otel":
		return NewOpenTelemetryFormatter(), nil
	case "splunk":
		return NewSplunkFormatter(), nil
	case "xml":
		return NewXMLFormatter(), nil
	}
	return nil, fmt.Errorf("unknown formatter %q", name)
}

func itoa(n int) string { return strconv.Itoa(n) }
