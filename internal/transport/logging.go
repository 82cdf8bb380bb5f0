// SPDX-License-Identifier: MIT
package transport

import (
	applog "timegrapher/internal/log"
)

// LoggingTransport implements the Transport interface by writing events to the
// application log. Progress goes to debug, results to info.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received event.
func (lt *LoggingTransport) Send(data any) error {
	ev, ok := data.(Event)
	if !ok {
		applog.Debugf("LoggingTransport: %T %+v", data, data)
		return nil
	}
	if ev.Kind == KindResult {
		applog.Infof("LoggingTransport: result %+v", ev.Payload)
	} else {
		applog.Debugf("LoggingTransport: %s %+v", ev.Kind, ev.Payload)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
