// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"timegrapher/pkg/utils"
)

const testSampleRate = 44100

func newTestConditioner() *Conditioner {
	return NewConditioner(testSampleRate, 200, math.Sqrt2/2, 50)
}

// steadyPeak returns the peak of the second half of the filtered signal, after
// the filter transient has settled.
func steadyPeak(c *Conditioner, signal []float32) float64 {
	c.Process(signal)
	return utils.PeakAbs(signal[len(signal)/2:])
}

func TestConditionerRejectsDC(t *testing.T) {
	c := newTestConditioner()
	signal := make([]float32, testSampleRate)
	for i := range signal {
		signal[i] = 0.5
	}

	if peak := steadyPeak(c, signal); peak > 1e-3 {
		t.Errorf("DC residue after high-pass = %f, want ~0", peak)
	}
}

func TestConditionerFrequencyResponse(t *testing.T) {
	tests := []struct {
		name    string
		freq    float64
		minGain float64
		maxGain float64
	}{
		{"Mains hum attenuated", 50, 0, 50 * 0.1},
		{"Cutoff at -3 dB", 200, 50 * 0.65, 50 * 0.75},
		{"Click band passes with gain", 4000, 50 * 0.95, 50 * 1.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConditioner()
			gain := steadyPeak(c, utils.GenerateSineWave(testSampleRate, testSampleRate, tt.freq))
			if gain < tt.minGain || gain > tt.maxGain {
				t.Errorf("gain at %.0f Hz = %.2f, want [%.2f, %.2f]", tt.freq, gain, tt.minGain, tt.maxGain)
			}
		})
	}
}

func TestConditionerStateCarriesAcrossBlocks(t *testing.T) {
	signal := utils.GenerateSineWave(4096, testSampleRate, 1000)

	whole := append([]float32(nil), signal...)
	newTestConditioner().Process(whole)

	split := append([]float32(nil), signal...)
	c := newTestConditioner()
	for _, block := range utils.Blocks(split, 300) {
		c.Process(block)
	}

	for i := range whole {
		if whole[i] != split[i] {
			t.Fatalf("sample %d differs: whole %f, blocks %f", i, whole[i], split[i])
		}
	}
}

func TestConditionerReset(t *testing.T) {
	c := newTestConditioner()
	c.Process(utils.GenerateSineWave(1024, testSampleRate, 1000))
	c.Reset()

	silence := make([]float32, 64)
	c.Process(silence)
	if peak := utils.PeakAbs(silence); peak != 0 {
		t.Errorf("output after Reset = %f, want silence", peak)
	}
}

func TestConditionerClampsCutoff(t *testing.T) {
	c := NewConditioner(8000, 6000, 0, 1)
	signal := utils.GenerateSineWave(1024, 8000, 1000)
	c.Process(signal)
	for i, s := range signal {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			t.Fatalf("sample %d = %f with a cutoff above Nyquist", i, s)
		}
	}
}

func TestConditionerAllocations(t *testing.T) {
	c := newTestConditioner()
	buf := utils.GenerateSineWave(2048, testSampleRate, 1000)
	allocs := testing.AllocsPerRun(100, func() {
		c.Process(buf)
	})
	if allocs > 0 {
		t.Errorf("Conditioner.Process() allocations = %.1f, want 0", allocs)
	}
}

func BenchmarkConditioner(b *testing.B) {
	c := newTestConditioner()
	buf := utils.GenerateSineWave(2048, testSampleRate, 1000)
	for b.Loop() {
		c.Process(buf)
	}
}
