// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Send on a transport that has been closed.
var ErrClosed = errors.New("transport closed")

// Event kinds published by a measurement session.
const (
	KindProgress = "progress"
	KindResult   = "result"
)

// Event is the envelope every transport receives. Payload is a progress report
// or a final result and must be JSON serialisable.
type Event struct {
	Kind    string `json:"type"`
	Payload any    `json:"data"`
}

// Transport defines a generic interface for publishing session events.
// Implementations must be safe for concurrent use and must not block the caller
// for longer than a local write.
type Transport interface {
	Send(data any) error
	Close() error
}

// Fanout sends every event to each transport in order. A failing transport does
// not stop delivery to the others.
type Fanout []Transport

// Send delivers data to all transports and joins their errors.
func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all transports and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
