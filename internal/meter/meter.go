// SPDX-License-Identifier: MIT
/*
Package meter runs measurement sessions: it pairs an audio.Source with a fresh
detector per session, pumps blocks from the source into the detector on its own
goroutine, throttles progress reports on the session's sample clock and delivers
exactly one result per completed session.

Lifecycle:
- Start begins a session, stopping any session already running
- The session completes on its own at the configured length, or when the source
  runs out of audio, and fires OnResult once
- Stop cancels without a result and fires OnCancel
*/
package meter

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"timegrapher/internal/audio"
	"timegrapher/internal/config"
	"timegrapher/internal/detector"
	applog "timegrapher/internal/log"
	"timegrapher/internal/transport"

	"github.com/google/uuid"
)

// Progress is the periodic report of a running session.
type Progress struct {
	SessionID        string          `json:"sessionId"`
	SecondsRemaining int             `json:"secondsRemaining"`
	Elapsed          float64         `json:"elapsed"`
	Ticks            int             `json:"ticks"`
	Level            float64         `json:"level"`
	Phase            detector.Phase  `json:"state"`
	Stats            *detector.Stats `json:"stats,omitempty"`
}

// Callbacks receive session events on the meter's pump goroutine, except OnError
// for start failures and OnCancel, which run on the caller of Start and Stop.
// Any field may be nil.
//
// Callbacks of consecutive sessions never overlap: a session started while the
// previous one is still inside OnResult delivers nothing until that returns.
// Running and Snapshot may be called from any callback. OnResult may call Start
// or Stop. OnProgress, OnError and OnCancel must not: Stop waits for the pump
// that runs OnProgress, and the other two run with the meter locked.
type Callbacks struct {
	OnProgress func(Progress)
	OnResult   func(detector.Result)
	OnError    func(error)
	OnCancel   func()
}

// Option configures a Meter.
type Option func(*Meter)

// WithTransport publishes progress and results to t.
func WithTransport(t transport.Transport) Option {
	return func(m *Meter) {
		m.transports = append(m.transports, t)
	}
}

// Meter controls measurement sessions on one source. At most one session runs at
// a time.
type Meter struct {
	source     audio.Source
	cfg        config.DetectorConfig
	transports transport.Fanout

	mu       sync.Mutex // Serialises Start and Stop.
	session  atomic.Pointer[session]
	snapshot atomic.Pointer[Progress]
}

type session struct {
	id       string
	det      *detector.Detector
	cb       Callbacks
	active   atomic.Bool
	done     chan struct{}
	cancel   chan struct{}
	prev     <-chan struct{} // Pump of the session before this one.
	reported bool
	last     float64 // Elapsed seconds at the last progress report.
}

// New creates a meter for source.
func New(source audio.Source, cfg config.DetectorConfig, opts ...Option) *Meter {
	m := &Meter{
		source: source,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a new session. A session already running is stopped first, as
// with Stop. Errors from the source are passed to cb.OnError and returned; the
// meter is then idle.
func (m *Meter) Start(cb Callbacks) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev <-chan struct{}
	if old := m.session.Load(); old != nil {
		prev = old.done
	}
	if err := m.stopLocked(); err != nil {
		applog.Warnf("Meter: Error stopping previous session: %v", err)
	}

	fail := func(err error) error {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	det, err := detector.New(m.source.SampleRate(), m.cfg)
	if err != nil {
		return fail(err)
	}

	blocks, err := m.source.Start()
	if err != nil {
		return fail(fmt.Errorf("failed to start audio source: %w", err))
	}

	s := &session{
		id:     uuid.NewString(),
		det:    det,
		cb:     cb,
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
		prev:   prev,
	}
	s.active.Store(true)
	m.session.Store(s)
	m.snapshot.Store(nil)

	applog.Infof("Meter: Session %s started (%.0f Hz, %.0fs)", s.id, m.source.SampleRate(), m.cfg.SessionSeconds)
	go m.pump(s, blocks)
	return nil
}

// Stop cancels the running session, if any. No result is delivered for a
// cancelled session; OnCancel fires instead once the pump has exited.
func (m *Meter) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked()
}

func (m *Meter) stopLocked() error {
	s := m.session.Swap(nil)
	if s == nil {
		return nil
	}

	// A session that already completed on its own has stopped its source and
	// may still be inside OnResult on the pump goroutine.
	if !s.active.CompareAndSwap(true, false) {
		return nil
	}

	close(s.cancel)
	err := m.source.Stop()
	<-s.done

	applog.Infof("Meter: Session %s cancelled", s.id)
	if s.cb.OnCancel != nil {
		s.cb.OnCancel()
	}
	return err
}

// Running reports whether a session is in progress.
func (m *Meter) Running() bool {
	s := m.session.Load()
	return s != nil && s.active.Load()
}

// Snapshot returns the last progress report of the current or most recent
// session.
func (m *Meter) Snapshot() (Progress, bool) {
	p := m.snapshot.Load()
	if p == nil {
		return Progress{}, false
	}
	return *p, true
}

func (m *Meter) pump(s *session, blocks <-chan audio.Block) {
	defer close(s.done)

	if s.prev != nil {
		select {
		case <-s.prev:
		case <-s.cancel:
		}
	}

	for block := range blocks {
		if !s.active.Load() {
			continue // Drain until the source closes the channel.
		}

		s.det.Skip(block.Dropped)
		step := s.det.Process(block.Samples)
		if step.Done {
			m.complete(s)
			return
		}
		m.report(s, step)
	}

	// The source ran out before the session length.
	m.complete(s)
}

// report emits progress on the first block and whenever the sample clock has
// advanced by at least the progress interval since the last report.
func (m *Meter) report(s *session, step detector.Step) {
	elapsed := s.det.Elapsed()
	if s.reported && elapsed-s.last < m.cfg.ProgressInterval.Seconds() {
		return
	}
	s.reported = true
	s.last = elapsed

	p := Progress{
		SessionID:        s.id,
		SecondsRemaining: int(math.Ceil(s.det.Remaining())),
		Elapsed:          elapsed,
		Ticks:            s.det.TickCount(),
		Level:            s.det.Level(),
		Phase:            s.det.Phase(),
		Stats:            step.Stats,
	}
	m.snapshot.Store(&p)

	m.publish(transport.KindProgress, p)
	if s.cb.OnProgress != nil {
		s.cb.OnProgress(p)
	}
}

// complete finalises a session that ended on its own. It does nothing if the
// session was cancelled concurrently.
func (m *Meter) complete(s *session) {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	if err := m.source.Stop(); err != nil {
		applog.Warnf("Meter: Error stopping audio source: %v", err)
	}

	result := s.det.Finish()
	result.SessionID = s.id

	m.publish(transport.KindResult, result)
	if s.cb.OnResult != nil {
		s.cb.OnResult(result)
	}
}

func (m *Meter) publish(kind string, payload any) {
	if len(m.transports) == 0 {
		return
	}
	if err := m.transports.Send(transport.Event{Kind: kind, Payload: payload}); err != nil {
		applog.Debugf("Meter: Publish %s: %v", kind, err)
	}
}
