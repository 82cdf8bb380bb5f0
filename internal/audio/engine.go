// SPDX-License-Identifier: MIT
/*
Package audio implements the capture pipeline that feeds the tick detector:
- Mono float32 capture using PortAudio (no host AGC, echo cancellation or noise suppression)
- High-pass + gain conditioning inside the audio callback
- Lock-free hand-off of fixed-size blocks over a channel
- WAV file replay through the same conditioning for offline analysis

Thread Safety:
- The PortAudio callback never blocks and never allocates
- Blocks come from a pre-allocated ring sized so a block is not reused while queued
- Overruns are counted and reported on the next delivered block
*/
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"timegrapher/internal/config"
	applog "timegrapher/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Engine is the live microphone Source.
type Engine struct {
	// Core configuration and state.
	config  *config.Config
	running atomic.Bool
	mu      sync.Mutex // Serialises Start/Stop.

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Signal conditioning.
	conditioner *Conditioner

	// Hand-off to the consumer. Only the callback touches ring, next and dropped
	// while the stream runs.
	ring    [][]float32
	next    int
	dropped int
	blocks  chan Block
	overrun atomic.Int64 // Total frames dropped in the current run.
}

var _ Source = (*Engine)(nil)

// NewEngine resolves the configured input device and pre-allocates the block
// ring. It fails with ErrCapability when no usable input device exists.
func NewEngine(cfg *config.Config) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapability, err)
	}

	// Consumer holds one block, the queue holds QueueDepth, the callback fills one.
	ring := make([][]float32, cfg.Audio.QueueDepth+2)
	for i := range ring {
		ring[i] = make([]float32, cfg.Audio.FramesPerBuffer)
	}

	engine := &Engine{
		config:      cfg,
		inputDevice: inputDevice,
		conditioner: NewConditioner(cfg.Audio.SampleRate, cfg.Capture.HighPassHz, cfg.Capture.HighPassQ, cfg.Capture.Gain),
		ring:        ring,
	}

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Engine: Using input device %q (%.0f Hz, %d frames/buffer, gain %.0fx, high-pass %.0f Hz)",
		inputDevice.Name, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer, cfg.Capture.Gain, cfg.Capture.HighPassHz)

	return engine, nil
}

// SampleRate returns the stream's sample rate in Hz.
func (e *Engine) SampleRate() float64 {
	return e.config.Audio.SampleRate
}

// Start opens a mono input stream and begins delivering blocks.
func (e *Engine) Start() (<-chan Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream != nil {
		return nil, ErrRunning
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	e.conditioner.Reset()
	e.blocks = make(chan Block, e.config.Audio.QueueDepth)
	e.next = 0
	e.dropped = 0
	e.overrun.Store(0)

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return nil, classifyOpenError(err)
	}

	// CRITICAL: Start of real-time audio processing. From here PortAudio calls
	// processInputStream on its own thread.
	e.running.Store(true)
	if err := stream.Start(); err != nil {
		e.running.Store(false)
		stream.Close()
		return nil, classifyOpenError(err)
	}
	e.inputStream = stream

	return e.blocks, nil
}

// Stop halts the stream, releases it and closes the block channel. Safe to
// call when not started and from the consumer of the block channel.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inputStream == nil {
		return nil
	}

	e.running.Store(false)

	var firstErr error
	if err := e.inputStream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := e.inputStream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	e.inputStream = nil

	// The callback cannot run any more once Stop has returned.
	close(e.blocks)

	if n := e.overrun.Load(); n > 0 {
		applog.Warnf("Engine: %d frames dropped because the detector fell behind", n)
	}

	return firstErr
}

// Overrun returns the number of frames dropped in the current or last run.
func (e *Engine) Overrun() int64 {
	return e.overrun.Load()
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
// - Never blocks: a full queue drops the block and counts its frames
func (e *Engine) processInputStream(in []float32) {
	if !e.running.Load() {
		return
	}

	buf := e.ring[e.next]
	if len(in) > len(buf) {
		in = in[:len(buf)]
	}
	buf = buf[:len(in)]
	copy(buf, in)
	e.conditioner.Process(buf)

	select {
	case e.blocks <- Block{Samples: buf, Dropped: e.dropped}:
		e.dropped = 0
		e.next = (e.next + 1) % len(e.ring)
	default:
		e.dropped += len(in)
		e.overrun.Add(int64(len(in)))
	}
}
