package formatters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// OpenTelemetryFormatter renders messages as OTLP-style log records: a
// resource block with service attributes, an instrumentation scope, and a
// logs array carrying severity, body and typed attributes.
type OpenTelemetryFormatter struct {
	Options Options

	SchemaURL              string
	UseOtelSeverity        bool
	InstrumentationScope   string
	InstrumentationVersion string

	// IncludeTraceContext stamps trace_id / span_id into each record.
	IncludeTraceContext bool
	TraceID             string
	SpanID              string
}

// NewOpenTelemetryFormatter creates an OTLP formatter with defaults.
func NewOpenTelemetryFormatter() *OpenTelemetryFormatter {
	opts := DefaultOptions()
	opts.resolveHost()
	return &OpenTelemetryFormatter{
		Options:                opts,
		SchemaURL:              "https://opentelemetry.io/schemas/1.18.0",
		UseOtelSeverity:        true,
		InstrumentationScope:   "flexlog-logger",
		InstrumentationVersion: "1.0.0",
	}
}

// otelSeverityNumber maps levels onto the OTel 1-24 range (TRACE3, DEBUG3,
// INFO3, WARN3, ERROR3, FATAL3).
func otelSeverityNumber(level types.Level) int {
	switch level {
	case types.LevelTrace:
		return 3
	case types.LevelDebug:
		return 7
	case types.LevelInfo:
		return 11
	case types.LevelWarn:
		return 15
	case types.LevelError:
		return 19
	case types.LevelFatal:
		return 23
	default:
		return 11
	}
}

func otelSeverityText(level types.Level) string {
	switch level {
	case types.LevelTrace:
		return "TRACE"
	case types.LevelDebug:
		return "DEBUG"
	case types.LevelInfo:
		return "INFO"
	case types.LevelWarn:
		return "WARN"
	case types.LevelError:
		return "ERROR"
	case types.LevelFatal:
		return "FATAL"
	default:
		return "INFO"
	}
}

// otelAttributeValue wraps a structured-data value in the OTLP typed-value
// envelope.
func otelAttributeValue(v interface{}) map[string]interface{} {
	switch val := v.(type) {
	case nil:
		return map[string]interface{}{"string_value": "null"}
	case string:
		return map[string]interface{}{"string_value": val}
	case bool:
		return map[string]interface{}{"bool_value": val}
	case int:
		return map[string]interface{}{"int_value": int64(val)}
	case int32:
		return map[string]interface{}{"int_value": int64(val)}
	case int64:
		return map[string]interface{}{"int_value": val}
	case uint:
		return map[string]interface{}{"int_value": int64(val)}
	case uint64:
		return map[string]interface{}{"int_value": int64(val)}
	case float32:
		return map[string]interface{}{"double_value": float64(val)}
	case float64:
		return map[string]interface{}{"double_value": val}
	default:
		return map[string]interface{}{"string_value": fmt.Sprintf("%v", val)}
	}
}

// Format marshals the message as one OTLP-style line.
func (f *OpenTelemetryFormatter) Format(msg *types.Message) ([]byte, error) {
	record := map[string]interface{}{
		"time_unix_nano":          msg.Timestamp.UnixNano(),
		"observed_time_unix_nano": time.Now().UnixNano(),
		"body": map[string]interface{}{
			"string_value": msg.Text(),
		},
	}
	if f.UseOtelSeverity {
		record["severity_number"] = otelSeverityNumber(msg.Level)
		record["severity_text"] = otelSeverityText(msg.Level)
	} else {
		record["severity_text"] = msg.Level.String()
	}
	if f.IncludeTraceContext && f.TraceID != "" {
		record["trace_id"] = f.TraceID
		record["span_id"] = f.SpanID
	}

	attributes := []map[string]interface{}{
		{"key": "logger.name", "value": otelAttributeValue(msg.Name)},
	}
	if f.Options.IncludeSource && msg.Source.File != "" {
		attributes = append(attributes,
			map[string]interface{}{"key": "code.filepath", "value": otelAttributeValue(msg.Source.File)},
			map[string]interface{}{"key": "code.function", "value": otelAttributeValue(msg.Source.Function)},
			map[string]interface{}{"key": "code.lineno", "value": otelAttributeValue(msg.Source.Line)},
		)
	}
	for k, v := range msg.Data {
		attributes = append(attributes, map[string]interface{}{
			"key":   k,
			"value": otelAttributeValue(v),
		})
	}
	record["attributes"] = attributes

	resourceAttrs := map[string]interface{}{
		"service.namespace":      f.Options.Application,
		"service.instance.id":    f.Options.HostName,
		"deployment.environment": f.Options.Environment,
	}
	if f.Options.ServiceName != "" {
		resourceAttrs["service.name"] = f.Options.ServiceName
		resourceAttrs["service.version"] = f.Options.ServiceVersion
	}

	payload := map[string]interface{}{
		"resource": map[string]interface{}{
			"attributes": resourceAttrs,
		},
		"schema_url": f.SchemaURL,
		"scope": map[string]interface{}{
			"name":    f.InstrumentationScope,
			"version": f.InstrumentationVersion,
		},
		"logs": []interface{}{record},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// ContentType returns the MIME type of the produced payload.
func (f *OpenTelemetryFormatter) ContentType() string { return "application/json" }
