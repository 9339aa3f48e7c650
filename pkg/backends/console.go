// Package backends contains the sink implementations shipped with the
// module: console, file (with rotation), in-memory capture, and NATS.
package backends

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// TerminalCapabilities describes what the attached terminal supports.
type TerminalCapabilities struct {
	SupportsColor   bool
	SupportsRGB     bool
	SupportsUnicode bool
	ColorDepth      int // 0=none, 1=4bit, 2=8bit, 3=24bit
	TerminalType    string
}

// ConsoleOptions configures a ConsoleSink.
type ConsoleOptions struct {
	// MaxMessageLength truncates oversized records before writing.
	MaxMessageLength int

	// ForceCapabilities bypasses detection, mainly for tests.
	ForceCapabilities *TerminalCapabilities
}

// DefaultConsoleOptions returns the options a bare NewConsoleSink uses.
func DefaultConsoleOptions() ConsoleOptions {
	return ConsoleOptions{MaxMessageLength: 16384}
}

// ConsoleSink writes formatted records to the terminal: Error and Fatal
// records to stderr, everything else to stdout. Records are colorized by
// level when the terminal supports it.
type ConsoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer

	options    ConsoleOptions
	caps       TerminalCapabilities
	errorCount atomic.Uint64
}

// NewConsoleSink creates a console sink and detects the terminal's
// capabilities from the environment.
func NewConsoleSink(options ConsoleOptions) *ConsoleSink {
	if options.MaxMessageLength <= 0 {
		options.MaxMessageLength = DefaultConsoleOptions().MaxMessageLength
	}
	s := &ConsoleSink{
		out:     os.Stdout,
		errOut:  os.Stderr,
		options: options,
	}
	if options.ForceCapabilities != nil {
		s.caps = *options.ForceCapabilities
	} else {
		s.caps = detectTerminalCapabilities(os.Stdout.Fd())
	}
	return s
}

// SetStreams redirects output, mainly for tests.
func (s *ConsoleSink) SetStreams(out, errOut io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if out != nil {
		s.out = out
	}
	if errOut != nil {
		s.errOut = errOut
	}
}

// Capabilities returns the detected (or forced) terminal capabilities.
func (s *ConsoleSink) Capabilities() TerminalCapabilities { return s.caps }

// ErrorCount returns the number of failed writes.
func (s *ConsoleSink) ErrorCount() uint64 { return s.errorCount.Load() }

// Output implements types.Sink.
func (s *ConsoleSink) Output(msg *types.Message, formatter types.Formatter) {
	data, err := formatter.Format(msg)
	if err != nil {
		s.errorCount.Add(1)
		return
	}

	line := sanitizeForTerminal(string(data), s.options.MaxMessageLength, s.caps.SupportsUnicode)
	if s.caps.SupportsColor {
		line = levelColor(msg.Level) + line + ansiReset
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	s.mu.Lock()
	w := s.out
	if msg.Level >= types.LevelError {
		w = s.errOut
	}
	_, err = io.WriteString(w, line)
	s.mu.Unlock()

	if err != nil {
		s.errorCount.Add(1)
	}
}

// Flush implements types.Sink. Standard streams are unbuffered here, so
// there is nothing to do.
func (s *ConsoleSink) Flush() error { return nil }

const ansiReset = "\x1b[0m"

func levelColor(level types.Level) string {
	switch level {
	case types.LevelTrace:
		return "\x1b[90m" // bright black
	case types.LevelDebug:
		return "\x1b[36m" // cyan
	case types.LevelInfo:
		return "\x1b[32m" // green
	case types.LevelWarn:
		return "\x1b[33m" // yellow
	case types.LevelError:
		return "\x1b[31m" // red
	case types.LevelFatal:
		return "\x1b[35m" // magenta
	default:
		return ""
	}
}

// sanitizeForTerminal strips control bytes that could corrupt the terminal
// and truncates oversized records. On terminals without unicode support,
// non-ASCII runes degrade to "?".
func sanitizeForTerminal(text string, maxLen int, unicodeOK bool) string {
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20:
			// Drop control bytes.
		case r > 0x7e && !unicodeOK:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// detectTerminalCapabilities inspects the standard environment variables
// and the output descriptor. NO_COLOR wins over everything except
// FORCE_COLOR; a non-terminal stdout disables color unless forced.
func detectTerminalCapabilities(fd uintptr) TerminalCapabilities {
	caps := TerminalCapabilities{
		TerminalType:    os.Getenv("TERM"),
		SupportsUnicode: unicodeLocale(),
	}

	force := os.Getenv("FORCE_COLOR")
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor && force == "" {
		return caps
	}

	tty := isTerminal(fd)
	if !tty && force == "" {
		return caps
	}

	term := caps.TerminalType
	if term == "dumb" && force == "" {
		return caps
	}

	caps.SupportsColor = true
	caps.ColorDepth = 1

	if strings.Contains(term, "256color") {
		caps.ColorDepth = 2
	}

	colorterm := os.Getenv("COLORTERM")
	if colorterm == "truecolor" || colorterm == "24bit" {
		caps.SupportsRGB = true
		caps.ColorDepth = 3
	}

	// Terminals that advertise truecolor without COLORTERM.
	switch os.Getenv("TERM_PROGRAM") {
	case "iTerm.app", "vscode", "WezTerm", "Hyper":
		caps.SupportsRGB = true
		caps.ColorDepth = 3
	}
	if os.Getenv("WT_SESSION") != "" {
		caps.SupportsRGB = true
		caps.ColorDepth = 3
	}

	// FORCE_COLOR levels follow the conventional 1/2/3 scale.
	switch force {
	case "2":
		caps.ColorDepth = 2
	case "3":
		caps.SupportsRGB = true
		caps.ColorDepth = 3
	}

	return caps
}

func unicodeLocale() bool {
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return strings.Contains(strings.ToUpper(v), "UTF-8") || strings.Contains(strings.ToUpper(v), "UTF8")
		}
	}
	return false
}
