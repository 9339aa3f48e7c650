package formatters

import (
	"strings"
	"testing"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

func sampleMessage() *types.Message {
	m := &types.Message{
		Timestamp: time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC),
		Name:      "api",
		Level:     types.LevelWarn,
		Source:    types.SourceLocation{File: "/src/server/handler.go", Function: "server.Handle", Line: 42},
		Data:      types.StructuredData{"request_id": "r-123", "attempt": 2},
	}
	m.Storage.Store("upstream timeout")
	return m
}

func TestDefaultPattern(t *testing.T) {
	f := NewPatternFormatter("")
	f.Options.TimeZone = time.UTC

	out, err := f.Format(sampleMessage())
	if err != nil {
		t.Fatal(err)
	}
	want := "[2025-03-14 09:26:53.589] [WARN] [api] upstream timeout"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}
}

func TestPatternTokens(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"{level}", "WARN"},
		{"{name}", "api"},
		{"{message}", "upstream timeout"},
		{"{source}", "handler.go:42"},
		{"{function}", "server.Handle"},
		{"{line}", "42"},
		{"{custom:request_id}", "r-123"},
		{"{custom:attempt}", "2"},
		{"{custom:missing}", ""},
		{"plain text", "plain text"},
		{"{unknown}", "{unknown}"},
		{"a {level} b {name} c", "a WARN b api c"},
		{"{level", "{level"},
	}
	for _, tt := range tests {
		f := NewPatternFormatter(tt.pattern)
		out, err := f.Format(sampleMessage())
		if err != nil {
			t.Fatalf("pattern %q: %v", tt.pattern, err)
		}
		if string(out) != tt.expected {
			t.Errorf("pattern %q = %q, want %q", tt.pattern, out, tt.expected)
		}
	}
}

func TestPatternTimestampFormat(t *testing.T) {
	f := NewPatternFormatter("{timestamp}")
	f.Options.TimestampFormat = "2006-01-02"
	f.Options.TimeZone = time.UTC

	out, _ := f.Format(sampleMessage())
	if string(out) != "2025-03-14" {
		t.Errorf("timestamp = %q, want 2025-03-14", out)
	}
}

func TestPatternLongMessage(t *testing.T) {
	f := NewPatternFormatter("{message}")
	m := &types.Message{}
	payload := strings.Repeat("x", 500)
	m.Storage.Store(payload)
	out, _ := f.Format(m)
	if string(out) != payload {
		t.Error("long (heap-backed) payload mangled")
	}
}
