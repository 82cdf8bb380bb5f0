// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// ClickLength is the number of samples in a synthetic click.
const ClickLength = 24

// MockTransport implements the Transport interface for testing.
type MockTransport struct {
	mu       sync.Mutex
	Messages []any
	Closed   bool
}

// Send stores the message for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Messages...)
}

// UniformTicks returns n tick times starting at start and spaced by interval.
func UniformTicks(start, interval float64, n int) []float64 {
	ticks := make([]float64, n)
	for i := range ticks {
		ticks[i] = start + float64(i)*interval
	}
	return ticks
}

// AlternatingTicks returns n tick times whose spacing alternates between a and b,
// starting with a.
func AlternatingTicks(start, a, b float64, n int) []float64 {
	ticks := make([]float64, n)
	t := start
	for i := range ticks {
		ticks[i] = t
		if i%2 == 0 {
			t += a
		} else {
			t += b
		}
	}
	return ticks
}

// CycleTicks returns tick times following a repeating pattern of intervals
// until the end time is reached.
func CycleTicks(start, end float64, pattern []float64) []float64 {
	var ticks []float64
	for t, i := start, 0; t < end; i++ {
		ticks = append(ticks, t)
		t += pattern[i%len(pattern)]
	}
	return ticks
}

// TickTrain renders a decaying click at every tick time into a signal of the
// given duration. The first sample of each click is its loudest, so a tick is
// detected exactly at round(t*sampleRate).
func TickTrain(ticks []float64, duration, sampleRate, amplitude float64) []float32 {
	signal := make([]float32, int(math.Round(duration*sampleRate)))
	for _, t := range ticks {
		start := int(math.Round(t * sampleRate))
		for k := 0; k < ClickLength && start+k < len(signal); k++ {
			if start+k < 0 {
				continue
			}
			sign := 1.0
			if k%2 == 1 {
				sign = -1.0
			}
			signal[start+k] += float32(sign * amplitude * math.Exp(-float64(k)/4))
		}
	}
	return signal
}

// Blocks splits a signal into consecutive buffers of the given size. The last
// buffer may be shorter.
func Blocks(signal []float32, frames int) [][]float32 {
	var blocks [][]float32
	for i := 0; i < len(signal); i += frames {
		end := min(i+frames, len(signal))
		blocks = append(blocks, signal[i:end])
	}
	return blocks
}

// GenerateSineWave returns size samples of a unit-amplitude sine.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2 * math.Pi * frequency * t))
	}
	return buffer
}

// PeakAbs returns the largest absolute sample value.
func PeakAbs(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	return peak
}
