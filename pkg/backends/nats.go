package backends

import (
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/wayneeseguin/flexlog/pkg/types"
)

// NATSSink publishes formatted records to a NATS subject. Delivery is
// fire-and-forget: publish failures are counted, not propagated.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	owned   bool

	errorCount     atomic.Uint64
	publishedCount atomic.Uint64
}

// NewNATSSink connects to the given server URL (comma-separated list
// accepted) and targets subject. Extra options are passed through to
// nats.Connect.
func NewNATSSink(url, subject string, opts ...nats.Option) (*NATSSink, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats sink: empty subject")
	}
	options := append([]nats.Option{nats.Name("flexlog-nats-sink")}, opts...)
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("nats sink: connect: %w", err)
	}
	return &NATSSink{conn: conn, subject: subject, owned: true}, nil
}

// NewNATSSinkWithConn wraps an existing connection. The caller keeps
// ownership of the connection; Close will not touch it.
func NewNATSSinkWithConn(conn *nats.Conn, subject string) (*NATSSink, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats sink: nil connection")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats sink: empty subject")
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Output implements types.Sink.
func (s *NATSSink) Output(msg *types.Message, formatter types.Formatter) {
	data, err := formatter.Format(msg)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.errorCount.Add(1)
		return
	}
	s.publishedCount.Add(1)
}

// Flush implements types.Sink; it forces buffered publishes onto the wire.
func (s *NATSSink) Flush() error {
	return s.conn.Flush()
}

// Close drains and closes the connection if this sink created it.
func (s *NATSSink) Close() error {
	if !s.owned || s.conn.IsClosed() {
		return nil
	}
	return s.conn.Drain()
}

// ErrorCount returns the number of failed publishes.
func (s *NATSSink) ErrorCount() uint64 { return s.errorCount.Load() }

// PublishedCount returns the number of successful publishes.
func (s *NATSSink) PublishedCount() uint64 { return s.publishedCount.Load() }
