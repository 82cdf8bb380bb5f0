// SPDX-License-Identifier: MIT
// Package natspub publishes session events to a NATS subject hierarchy:
// progress reports on "<subject>.progress" and results on "<subject>.result".
package natspub

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	applog "timegrapher/internal/log"
	"timegrapher/internal/transport"

	"github.com/nats-io/nats.go"
)

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements transport.Transport over a NATS connection.
type Publisher struct {
	conn    conn
	subject string

	mu     sync.Mutex
	closed bool
}

// Connect dials the NATS server at url. It keeps reconnecting in the background
// after the initial connection succeeds.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("timegrapher"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				applog.Warnf("NATSPublisher: Disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			applog.Infof("NATSPublisher: Reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	applog.Infof("NATSPublisher: Publishing to %s.* on %s", subject, nc.ConnectedUrl())
	return newPublisher(nc, subject), nil
}

func newPublisher(c conn, subject string) *Publisher {
	return &Publisher{conn: c, subject: subject}
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(ev transport.Event) string {
	if ev.Kind == "" {
		return p.subject
	}
	return p.subject + "." + ev.Kind
}

// Send publishes data as JSON. Events go to their kind's subject, anything else
// to the base subject.
func (p *Publisher) Send(data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return transport.ErrClosed
	}

	subject := p.subject
	payload := data
	if ev, ok := data.(transport.Event); ok {
		subject = p.Subject(ev)
		payload = ev.Payload
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", subject, err)
	}
	if err := p.conn.Publish(subject, b); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}

var _ transport.Transport = (*Publisher)(nil)
