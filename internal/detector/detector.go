// SPDX-License-Identifier: MIT
/*
Package detector implements the acoustic tick detector and rate estimator.

A Detector consumes conditioned mono blocks, registers a tick whenever a block's
peak clears the amplitude threshold and the debounce spacing, and walks the state
machine

	DETECTING -> MEASURING -> FINISHED

DETECTING infers the BPH standard from the early tick spacing (LockOn). Once
locked the detector stays in MEASURING for the rest of the session and reports
live rate and beat error on every block. The session ends on its sample clock,
so live capture, file replay and synthetic tests behave identically.

Per-block work is O(ticks) and the detector never blocks; it is not safe for
concurrent use and expects blocks strictly in order.
*/
package detector

import (
	"errors"
	"fmt"
	"math"

	"timegrapher/internal/config"
	applog "timegrapher/internal/log"
)

const (
	lockAfterSeconds = 2.0 // No lock attempts before this much audio.
	minLockTicks     = 6
)

// ErrInvalidSampleRate is returned by New for a non-positive sample rate.
var ErrInvalidSampleRate = errors.New("sample rate must be positive")

// Step reports what a single Process call changed.
type Step struct {
	Accepted bool   // A tick was registered from this block.
	Locked   bool   // Lock-on succeeded on this block.
	Stats    *Stats // Live statistics, set while measuring.
	Done     bool   // The session reached its length and is finished.
}

// Detector holds the state of one measurement session. Create a fresh one per
// attempt with New.
type Detector struct {
	threshold  float64
	sessionLen float64
	sampleRate float64

	state    State
	ticks    []float64
	lastTick float64
	samples  int64
	level    float64
}

// New creates a detector already in DETECTING.
func New(sampleRate float64, cfg config.DetectorConfig) (*Detector, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) {
		return nil, fmt.Errorf("%w, got %f", ErrInvalidSampleRate, sampleRate)
	}

	// A 30s session at the fastest standard is 300 ticks.
	capacity := int(cfg.SessionSeconds*float64(Standards[len(Standards)-1])/3600) + 1
	if capacity < minResultTicks {
		capacity = minResultTicks
	}

	return &Detector{
		threshold:  cfg.Threshold,
		sessionLen: cfg.SessionSeconds,
		sampleRate: sampleRate,
		state:      Detecting{MinInterval: cfg.InitialMinInterval},
		ticks:      make([]float64, 0, capacity),
	}, nil
}

// Peak returns the largest absolute sample value and the index of its first
// occurrence. An empty block yields (0, 0).
func Peak(samples []float32) (float64, int) {
	var peak float64
	index := 0
	for i, s := range samples {
		a := math.Abs(float64(s))
		if a > peak {
			peak = a
			index = i
		}
	}
	return peak, index
}

// Process runs the per-block algorithm. Blocks arriving after the session has
// finished are ignored.
func (d *Detector) Process(samples []float32) Step {
	switch d.state.(type) {
	case Finished:
		return Step{Done: true}
	case Idle:
		return Step{}
	}

	var step Step

	peak, index := Peak(samples)
	d.level = peak
	if peak > d.threshold {
		t := float64(d.samples+int64(index)) / d.sampleRate
		if t-d.lastTick > d.MinInterval() {
			d.ticks = append(d.ticks, t)
			d.lastTick = t
			step.Accepted = true
		}
	}
	d.samples += int64(len(samples))

	elapsed := d.Elapsed()
	if _, detecting := d.state.(Detecting); detecting && elapsed > lockAfterSeconds && len(d.ticks) >= minLockTicks {
		if lock, ok := LockOn(d.ticks); ok {
			d.state = Measuring{Lock: lock, MinInterval: lock.RefInterval * lockedDebounceRate}
			step.Locked = true
			applog.Infof("Detector: Locked %d BPH (observed %.1f) after %.2fs, %d ticks",
				lock.BPH, lock.ObservedBPH, elapsed, len(d.ticks))
		}
	}

	if m, measuring := d.state.(Measuring); measuring {
		if stats, ok := Estimate(d.ticks, m.Lock); ok {
			step.Stats = &stats
		}
	}

	if elapsed >= d.sessionLen {
		d.Finish()
		step.Done = true
	}

	return step
}

// Skip advances the sample clock over frames that never reached the detector.
func (d *Detector) Skip(frames int) {
	if frames > 0 {
		d.samples += int64(frames)
	}
}

// Finish ends the session and returns the final result. It is called by Process
// at the session length and may be called earlier when the input runs out.
// Repeated calls return the same result.
func (d *Detector) Finish() Result {
	if f, ok := d.state.(Finished); ok {
		return f.Result
	}

	var lock *Lock
	if m, ok := d.state.(Measuring); ok {
		lock = &m.Lock
	}
	result := finalize(d.ticks, lock)
	d.state = Finished{Result: result}

	if result.Error != "" {
		applog.Warnf("Detector: Session finished with %d ticks: %s", len(d.ticks), result.Error)
	} else {
		applog.Infof("Detector: Session finished: %s", result.Stats())
	}
	return result
}

// State returns the current state machine position.
func (d *Detector) State() State { return d.state }

// Phase returns the reporting tag of the current state.
func (d *Detector) Phase() Phase { return d.state.Phase() }

// MinInterval returns the debounce spacing currently in force.
func (d *Detector) MinInterval() float64 {
	switch s := d.state.(type) {
	case Detecting:
		return s.MinInterval
	case Measuring:
		return s.MinInterval
	default:
		return 0
	}
}

// Ticks returns a copy of the accepted tick times in seconds.
func (d *Detector) Ticks() []float64 {
	out := make([]float64, len(d.ticks))
	copy(out, d.ticks)
	return out
}

// TickCount returns the number of accepted ticks.
func (d *Detector) TickCount() int { return len(d.ticks) }

// Level returns the peak amplitude of the last processed block.
func (d *Detector) Level() float64 { return d.level }

// Elapsed returns the session time in seconds on the sample clock.
func (d *Detector) Elapsed() float64 {
	return float64(d.samples) / d.sampleRate
}

// Remaining returns the seconds left until the session length, never negative.
func (d *Detector) Remaining() float64 {
	return math.Max(0, d.sessionLen-d.Elapsed())
}

// SampleRate returns the rate the detector was created for.
func (d *Detector) SampleRate() float64 { return d.sampleRate }
