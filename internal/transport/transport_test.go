// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"testing"

	"timegrapher/pkg/utils"
)

type failingTransport struct{ err error }

func (f failingTransport) Send(any) error { return f.err }
func (f failingTransport) Close() error   { return f.err }

func TestFanoutDeliversPastFailures(t *testing.T) {
	boom := errors.New("boom")
	first, last := &utils.MockTransport{}, &utils.MockTransport{}
	f := Fanout{first, failingTransport{boom}, last}

	ev := Event{Kind: KindProgress, Payload: 1}
	if err := f.Send(ev); !errors.Is(err, boom) {
		t.Errorf("Fanout.Send() error = %v, want it to wrap boom", err)
	}
	for i, mt := range []*utils.MockTransport{first, last} {
		if sent := mt.Sent(); len(sent) != 1 || sent[0] != ev {
			t.Errorf("transport %d received %v, want [%v]", i, sent, ev)
		}
	}

	if err := f.Close(); !errors.Is(err, boom) {
		t.Errorf("Fanout.Close() error = %v, want it to wrap boom", err)
	}
	if !first.Closed || !last.Closed {
		t.Error("Fanout.Close() skipped a transport")
	}
}

func TestFanoutEmpty(t *testing.T) {
	var f Fanout
	if err := f.Send(Event{}); err != nil {
		t.Errorf("empty Fanout.Send() = %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("empty Fanout.Close() = %v", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	for _, data := range []any{
		Event{Kind: KindProgress, Payload: "p"},
		Event{Kind: KindResult, Payload: "r"},
		42,
	} {
		if err := lt.Send(data); err != nil {
			t.Errorf("LoggingTransport.Send(%v) = %v", data, err)
		}
	}
	if err := lt.Close(); err != nil {
		t.Errorf("LoggingTransport.Close() = %v", err)
	}
}
