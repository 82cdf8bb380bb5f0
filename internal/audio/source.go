// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrCapability means the host cannot provide a microphone stream at all:
	// no audio subsystem, no input device, or an unusable device.
	ErrCapability = errors.New("microphone capture not supported")
	// ErrPermission means an input exists but the host refused access to it.
	ErrPermission = errors.New("microphone access denied")
	// ErrRunning is returned by Start on a source that is already delivering.
	ErrRunning = errors.New("source already started")
)

// Block is one conditioned mono buffer. Samples are nominally in [-1, 1]; the
// conditioning gain can push loud clicks past full scale.
type Block struct {
	Samples []float32
	// Dropped counts frames lost to a full queue immediately before this block.
	Dropped int
}

// Source delivers conditioned blocks in order at a constant sample rate.
//
// Start opens the underlying input and returns the channel blocks arrive on. The
// channel is closed when the input ends or after Stop. Stop is idempotent and
// releases every resource Start acquired. A source may be started again after
// it has been stopped.
type Source interface {
	Start() (<-chan Block, error)
	SampleRate() float64
	Stop() error
}
