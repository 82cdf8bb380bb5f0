// SPDX-License-Identifier: MIT
package detector

import (
	"fmt"
	"math"
	"testing"

	"timegrapher/pkg/utils"
)

var lock28800 = Lock{BPH: 28800, RefInterval: 0.125, ObservedBPH: 28800}

func TestRate(t *testing.T) {
	tests := []struct {
		name  string
		ticks []float64
		want  float64
	}{
		{"On time", utils.UniformTicks(0, 0.125, 100), 0},
		{"Fast watch gains", utils.UniformTicks(0, 0.1249, 100), 69.2},
		{"Slow watch loses", utils.UniformTicks(0, 0.1251, 100), -69.1},
		{"Single tick", []float64{1}, 0},
		{"Zero span", []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := round1(Rate(tt.ticks, 0.125))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Rate() = %.1f, want %.1f", got, tt.want)
			}
		})
	}
}

func TestRateSign(t *testing.T) {
	for _, iv := range []float64{0.12, 0.124, 0.1249} {
		if r := Rate(utils.UniformTicks(0, iv, 50), 0.125); r <= 0 {
			t.Errorf("Rate() for %.4fs intervals = %f, want positive", iv, r)
		}
	}
	for _, iv := range []float64{0.1251, 0.126, 0.13} {
		if r := Rate(utils.UniformTicks(0, iv, 50), 0.125); r >= 0 {
			t.Errorf("Rate() for %.4fs intervals = %f, want negative", iv, r)
		}
	}
}

func TestBeatError(t *testing.T) {
	tests := []struct {
		name  string
		ticks []float64
		want  float64
	}{
		{"Symmetric", utils.UniformTicks(0, 0.125, 40), 0},
		{"Short then long", utils.AlternatingTicks(0, 0.10, 0.15, 41), 50.0},
		{"Long then short", utils.AlternatingTicks(0, 0.15, 0.10, 41), 50.0},
		{"Mild asymmetry", utils.AlternatingTicks(0, 0.12, 0.13, 41), 10.0},
		{"Too few ticks", utils.AlternatingTicks(0, 0.10, 0.15, 4), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := round1(BeatError(tt.ticks, 0.125))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("BeatError() = %.1f, want %.1f", got, tt.want)
			}
		})
	}
}

func TestBeatErrorSkipsOutliersKeepingParity(t *testing.T) {
	// 0.12/0.13 alternation with one missed beat (0.25) in the middle. The
	// missed beat is dropped but later intervals keep their position.
	ticks := utils.AlternatingTicks(0, 0.12, 0.13, 20)
	ticks = append(ticks, ticks[len(ticks)-1]+0.25)
	for i := range 20 {
		iv := 0.12
		if i%2 == 1 {
			iv = 0.13
		}
		ticks = append(ticks, ticks[len(ticks)-1]+iv)
	}

	got := round1(BeatError(ticks, 0.125))
	if math.Abs(got-10.0) > 1e-9 {
		t.Errorf("BeatError() = %.1f, want 10.0", got)
	}
}

func TestEstimate(t *testing.T) {
	if _, ok := Estimate([]float64{1}, lock28800); ok {
		t.Error("Estimate() succeeded with a single tick")
	}
	if _, ok := Estimate(utils.UniformTicks(0, 0.125, 10), Lock{}); ok {
		t.Error("Estimate() succeeded without a reference interval")
	}

	stats, ok := Estimate(utils.AlternatingTicks(0, 0.10, 0.15, 41), lock28800)
	if !ok {
		t.Fatal("Estimate() failed")
	}
	if stats.BPH != 28800 {
		t.Errorf("Estimate() BPH = %d, want 28800", stats.BPH)
	}
	if stats.BeatError != 50.0 {
		t.Errorf("Estimate() BeatError = %.1f, want 50.0", stats.BeatError)
	}
	if math.Abs(stats.Rate) > 1e-9 {
		t.Errorf("Estimate() Rate = %.1f, want 0.0", stats.Rate)
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{BPH: 21600, Rate: 4.2, BeatError: 0.8}
	if got, want := s.String(), "21600 bph, +4.2 s/d, 0.8 ms"; got != want {
		t.Errorf("Stats.String() = %q, want %q", got, want)
	}
}

func TestRound1(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.26, 1.3},
		{0.05, 0.1},
		{-0.05, -0.1},
		{-0.04, 0},
		{-0.0001, 0},
		{0, 0},
	}

	for _, tt := range tests {
		got := round1(tt.in)
		if got != tt.want || math.Signbit(got) != math.Signbit(tt.want) {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEstimateSlightlySlowIsPositiveZero(t *testing.T) {
	stats, ok := Estimate(utils.UniformTicks(0, 0.12500001, 11), lock28800)
	if !ok {
		t.Fatal("Estimate() failed")
	}
	if stats.Rate != 0 || math.Signbit(stats.Rate) {
		t.Errorf("Estimate() Rate = %v, want +0", stats.Rate)
	}
	if got := fmt.Sprintf("%+.1f", stats.Rate); got != "+0.0" {
		t.Errorf("Rate renders as %q, want +0.0", got)
	}
}
