// SPDX-License-Identifier: MIT
package detector

import (
	"errors"
	"math"
)

var (
	// ErrNotEnoughClicks is reported when a session ends with fewer than ten ticks.
	ErrNotEnoughClicks = errors.New("Not enough clicks detected. Volume too low?")
	// ErrLockFailed is reported when a session ends without locking a BPH standard.
	ErrLockFailed = errors.New("Could not lock BPH. Signal too noisy?")
)

const minResultTicks = 10

// Result is the record handed to the caller when a session completes. Either
// Error is set or the measurement fields are.
type Result struct {
	SessionID string  `json:"sessionId,omitempty"`
	BPH       int     `json:"bph,omitempty"`
	BPHActual int     `json:"bphActual,omitempty"`
	Rate      float64 `json:"rate"`
	BeatError float64 `json:"beatError"`
	Ticks     int     `json:"ticks"`
	Error     string  `json:"error,omitempty"`
}

// Err returns the sentinel matching an error record, or nil for a measurement.
func (r Result) Err() error {
	switch r.Error {
	case "":
		return nil
	case ErrNotEnoughClicks.Error():
		return ErrNotEnoughClicks
	case ErrLockFailed.Error():
		return ErrLockFailed
	default:
		return errors.New(r.Error)
	}
}

// Stats returns the measurement part of a successful result.
func (r Result) Stats() Stats {
	return Stats{BPH: r.BPH, Rate: r.Rate, BeatError: r.BeatError}
}

func errorResult(err error, ticks int) Result {
	return Result{Error: err.Error(), Ticks: ticks}
}

// finalize builds the result for a finished session. lock is nil when the session
// never reached MEASURING; one last lock-on is attempted in that case.
func finalize(ticks []float64, lock *Lock) Result {
	if len(ticks) < minResultTicks {
		return errorResult(ErrNotEnoughClicks, len(ticks))
	}

	if lock == nil {
		l, ok := LockOn(ticks)
		if !ok {
			return errorResult(ErrLockFailed, len(ticks))
		}
		lock = &l
	}

	stats, _ := Estimate(ticks, *lock)
	return Result{
		BPH:       lock.BPH,
		BPHActual: int(math.Round(lock.ObservedBPH)),
		Rate:      stats.Rate,
		BeatError: stats.BeatError,
		Ticks:     len(ticks),
	}
}
