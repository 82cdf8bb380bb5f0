// SPDX-License-Identifier: MIT
package audio

import "math"

// Conditioner emphasises percussive clicks before detection: a second-order
// high-pass (RBJ cookbook biquad, direct form I) followed by a fixed gain. State
// carries across blocks so the filter is continuous over the whole stream.
type Conditioner struct {
	gain float64

	// Normalised coefficients (a0 == 1).
	b0, b1, b2 float64
	a1, a2     float64

	// Filter memory.
	x1, x2 float64
	y1, y2 float64
}

// NewConditioner designs the high-pass for the given sample rate. The cutoff is
// clamped just below Nyquist.
func NewConditioner(sampleRate, cutoffHz, q, gain float64) *Conditioner {
	nyquist := sampleRate / 2
	if cutoffHz >= nyquist {
		cutoffHz = nyquist * 0.99
	}
	if q <= 0 {
		q = math.Sqrt2 / 2
	}

	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha

	return &Conditioner{
		gain: gain,
		b0:   (1 + cosw) / 2 / a0,
		b1:   -(1 + cosw) / a0,
		b2:   (1 + cosw) / 2 / a0,
		a1:   -2 * cosw / a0,
		a2:   (1 - alpha) / a0,
	}
}

// Process filters and amplifies buf in place.
// Performance Critical (Hot Path): no allocations, runs inside the audio callback.
func (c *Conditioner) Process(buf []float32) {
	for i, s := range buf {
		x := float64(s)
		y := c.b0*x + c.b1*c.x1 + c.b2*c.x2 - c.a1*c.y1 - c.a2*c.y2
		c.x2, c.x1 = c.x1, x
		c.y2, c.y1 = c.y1, y
		buf[i] = float32(y * c.gain)
	}
}

// Reset clears the filter memory, e.g. before a new session.
func (c *Conditioner) Reset() {
	c.x1, c.x2, c.y1, c.y2 = 0, 0, 0, 0
}

// Gain returns the linear gain applied after filtering.
func (c *Conditioner) Gain() float64 { return c.gain }
