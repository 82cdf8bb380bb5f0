// SPDX-License-Identifier: MIT
package meter

import (
	"context"
	"errors"

	"timegrapher/internal/detector"
)

// ErrCancelled is returned by Measure when another caller stops the session
// before it completes.
var ErrCancelled = errors.New("measurement cancelled")

// Measure runs one session to completion and returns its result. onProgress may
// be nil. Cancelling ctx stops the session and returns ctx.Err().
func (m *Meter) Measure(ctx context.Context, onProgress func(Progress)) (detector.Result, error) {
	results := make(chan detector.Result, 1)
	cancelled := make(chan struct{})

	err := m.Start(Callbacks{
		OnProgress: onProgress,
		OnResult:   func(r detector.Result) { results <- r },
		OnCancel:   func() { close(cancelled) },
	})
	if err != nil {
		return detector.Result{}, err
	}

	select {
	case r := <-results:
		return r, nil
	case <-cancelled:
		return detector.Result{}, ErrCancelled
	case <-ctx.Done():
		m.Stop()
		return detector.Result{}, ctx.Err()
	}
}
