package formatters

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// XMLFormatter renders messages as XML documents. Structured data becomes
// <field name="..."> children under a <data> element.
type XMLFormatter struct {
	Options Options

	RootElement        string
	FieldElement       string
	IncludeDeclaration bool

	// UseCDATA wraps the message body instead of entity-escaping it.
	UseCDATA bool
}

// NewXMLFormatter creates an XML formatter with defaults.
func NewXMLFormatter() *XMLFormatter {
	opts := DefaultOptions()
	opts.TimestampFormat = time.RFC3339Nano
	opts.resolveHost()
	return &XMLFormatter{
		Options:            opts,
		RootElement:        "log",
		FieldElement:       "field",
		IncludeDeclaration: true,
		UseCDATA:           true,
	}
}

// Format renders the message as one XML document.
func (f *XMLFormatter) Format(msg *types.Message) ([]byte, error) {
	var b strings.Builder
	b.Grow(256 + msg.Storage.Len())

	if f.IncludeDeclaration {
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	}
	b.WriteByte('<')
	b.WriteString(f.RootElement)
	b.WriteByte('>')

	writeElement(&b, "timestamp", f.Options.stamp(msg.Timestamp))
	b.WriteString("<message>")
	if f.UseCDATA {
		writeCDATA(&b, msg.Text())
	} else {
		writeXMLEscaped(&b, msg.Text())
	}
	b.WriteString("</message>")
	b.WriteString("<logger>")
	writeXMLEscaped(&b, msg.Name)
	b.WriteString("</logger>")
	writeElement(&b, "level", msg.Level.String())
	writeElement(&b, "level_value", strconv.Itoa(int(msg.Level)))
	writeElement(&b, "application", f.Options.Application)
	writeElement(&b, "environment", f.Options.Environment)
	writeElement(&b, "host", f.Options.HostName)

	if f.Options.IncludeSource && msg.Source.File != "" {
		b.WriteString("<location>")
		writeElement(&b, "file", filepath.Base(msg.Source.File))
		writeElement(&b, "line", strconv.Itoa(msg.Source.Line))
		writeElement(&b, "function", msg.Source.Function)
		b.WriteString("</location>")
	}

	if len(msg.Data) > 0 {
		keys := make([]string, 0, len(msg.Data))
		for k := range msg.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("<data>")
		for _, k := range keys {
			b.WriteByte('<')
			b.WriteString(f.FieldElement)
			b.WriteString(` name="`)
			writeXMLEscaped(&b, k)
			b.WriteString(`">`)
			writeXMLEscaped(&b, fmt.Sprintf("%v", msg.Data[k]))
			b.WriteString("</")
			b.WriteString(f.FieldElement)
			b.WriteByte('>')
		}
		b.WriteString("</data>")
	}

	b.WriteString("</")
	b.WriteString(f.RootElement)
	b.WriteString(">\n")

	return []byte(b.String()), nil
}

// ContentType returns the MIME type of the produced payload.
func (f *XMLFormatter) ContentType() string { return "application/xml" }

func writeElement(b *strings.Builder, name, value string) {
	b.WriteByte('<')
	b.WriteString(name)
	b.WriteByte('>')
	writeXMLEscaped(b, value)
	b.WriteString("</")
	b.WriteString(name)
	b.WriteByte('>')
}

func writeXMLEscaped(b *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '\'':
			b.WriteString("&apos;")
		case '"':
			b.WriteString("&quot;")
		default:
			if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
				fmt.Fprintf(b, "&#%d;", r)
			} else {
				b.WriteRune(r)
			}
		}
	}
}

// writeCDATA wraps s in a CDATA section, splitting any "]]>" occurrences
// so the section cannot terminate early.
func writeCDATA(b *strings.Builder, s string) {
	b.WriteString("<![CDATA[")
	b.WriteString(strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>"))
	b.WriteString("]]>")
}
