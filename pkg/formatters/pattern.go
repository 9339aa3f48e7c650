package formatters

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// DefaultPattern is the layout used when none is supplied.
const DefaultPattern = "[{timestamp}] [{level}] [{name}] {message}"

// PatternFormatter renders messages through a token pattern. Recognized
// tokens: {timestamp} {level} {name} {message} {source} {function} {line}
// and {custom:key}, which resolves key against the message's structured
// data. Unknown tokens pass through verbatim.
type PatternFormatter struct {
	Options  Options
	segments []segment
}

type segmentKind uint8

const (
	segLiteral segmentKind = iota
	segTimestamp
	segLevel
	segName
	segMessage
	segSource
	segFunction
	segLine
	segCustom
)

type segment struct {
	kind    segmentKind
	literal string // literal text, or the key for segCustom
}

// NewPatternFormatter compiles pattern once; an empty pattern selects
// DefaultPattern.
func NewPatternFormatter(pattern string) *PatternFormatter {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &PatternFormatter{
		Options:  DefaultOptions(),
		segments: compilePattern(pattern),
	}
}

// Format renders the message according to the compiled pattern.
func (f *PatternFormatter) Format(msg *types.Message) ([]byte, error) {
	var b strings.Builder
	b.Grow(64 + msg.Storage.Len())

	for _, seg := range f.segments {
		switch seg.kind {
		case segLiteral:
			b.WriteString(seg.literal)
		case segTimestamp:
			b.WriteString(f.Options.stamp(msg.Timestamp))
		case segLevel:
			b.WriteString(msg.Level.String())
		case segName:
			b.WriteString(msg.Name)
		case segMessage:
			b.Write(msg.Body())
		case segSource:
			b.WriteString(filepath.Base(msg.Source.File))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(msg.Source.Line))
		case segFunction:
			b.WriteString(msg.Source.Function)
		case segLine:
			b.WriteString(strconv.Itoa(msg.Source.Line))
		case segCustom:
			if msg.Data != nil {
				if v, ok := msg.Data[seg.literal]; ok {
					fmt.Fprintf(&b, "%v", v)
				}
			}
		}
	}

	return []byte(b.String()), nil
}

func compilePattern(pattern string) []segment {
	var segs []segment
	rest := pattern
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			break
		}
		closing += open

		if open > 0 {
			segs = append(segs, segment{kind: segLiteral, literal: rest[:open]})
		}

		token := rest[open+1 : closing]
		switch {
		case token == "timestamp":
			segs = append(segs, segment{kind: segTimestamp})
		case token == "level":
			segs = append(segs, segment{kind: segLevel})
		case token == "name":
			segs = append(segs, segment{kind: segName})
		case token == "message":
			segs = append(segs, segment{kind: segMessage})
		case token == "source":
			segs = append(segs, segment{kind: segSource})
		case token == "function":
			segs = append(segs, segment{kind: segFunction})
		case token == "line":
			segs = append(segs, segment{kind: segLine})
		case strings.HasPrefix(token, "custom:"):
			segs = append(segs, segment{kind: segCustom, literal: strings.TrimPrefix(token, "custom:")})
		default:
			segs = append(segs, segment{kind: segLiteral, literal: rest[open : closing+1]})
		}

		rest = rest[closing+1:]
	}
	if rest != "" {
		segs = append(segs, segment{kind: segLiteral, literal: rest})
	}
	return segs
}
