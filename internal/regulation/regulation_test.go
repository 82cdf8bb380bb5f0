// SPDX-License-Identifier: MIT
package regulation

import (
	"math"
	"testing"

	"timegrapher/internal/detector"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPositions(t *testing.T) {
	want := []string{"DU", "DD", "CU", "CD", "CR", "CL"}
	if len(Positions) != len(want) {
		t.Fatalf("got %d positions, want %d", len(Positions), len(want))
	}
	for i, abbr := range want {
		if Positions[i].Abbr != abbr {
			t.Errorf("position %d = %s, want %s", i, Positions[i].Abbr, abbr)
		}
	}
	if got := Positions[0].String(); got != "Dial Up (DU)" {
		t.Errorf("Positions[0].String() = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name       string
		beatErrors []float64
		rates      []float64
		want       CycleStats
	}{
		{"Empty", nil, nil, CycleStats{}},
		{
			"Six positions",
			[]float64{0.2, 0.4, 0.3, 0.3, 0.5, 0.1},
			[]float64{4, 2, -1, -3, 6, 0},
			CycleStats{AvgBeatError: 0.3, AvgRate: 8.0 / 6, MaxRate: 6, MinRate: -3, Variation: 9, Readings: 6},
		},
		{
			"Single reading",
			[]float64{0.8},
			[]float64{-2.5},
			CycleStats{AvgBeatError: 0.8, AvgRate: -2.5, MaxRate: -2.5, MinRate: -2.5, Variation: 0, Readings: 1},
		},
		{
			"Rates only",
			nil,
			[]float64{1, 3},
			CycleStats{AvgRate: 2, MaxRate: 3, MinRate: 1, Variation: 2, Readings: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.beatErrors, tt.rates)
			if !near(got.AvgBeatError, tt.want.AvgBeatError) || !near(got.AvgRate, tt.want.AvgRate) ||
				got.MaxRate != tt.want.MaxRate || got.MinRate != tt.want.MinRate ||
				!near(got.Variation, tt.want.Variation) || got.Readings != tt.want.Readings {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCycleAddIgnoresErrors(t *testing.T) {
	var c Cycle
	if !c.Add(Positions[0], detector.Result{BPH: 28800, Rate: 3, BeatError: 0.4}) {
		t.Error("Add() rejected a measurement")
	}
	if c.Add(Positions[1], detector.Result{Error: detector.ErrLockFailed.Error()}) {
		t.Error("Add() kept an error record")
	}
	c.Add(Positions[2], detector.Result{BPH: 28800, Rate: -1, BeatError: 0.2})

	if len(c.Readings) != 2 {
		t.Fatalf("cycle has %d readings, want 2", len(c.Readings))
	}
	if c.Readings[1].Position.Abbr != "CU" {
		t.Errorf("second reading position = %s, want CU", c.Readings[1].Position.Abbr)
	}

	s := c.Stats()
	if !near(s.AvgRate, 1) || !near(s.AvgBeatError, 0.3) || s.Variation != 4 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestAggregate(t *testing.T) {
	a := Cycle{Number: 1}
	a.Add(Positions[0], detector.Result{Rate: 2, BeatError: 0.2})
	a.Add(Positions[1], detector.Result{Rate: 4, BeatError: 0.4})

	b := Cycle{Number: 2}
	b.Add(Positions[0], detector.Result{Rate: -1, BeatError: 0.5})

	empty := Cycle{Number: 3}

	got := Aggregate([]Cycle{a, b, empty})
	if got.RateCycles != 2 || got.BeatCycles != 2 {
		t.Errorf("Aggregate() counted %d/%d cycles, want 2/2", got.RateCycles, got.BeatCycles)
	}
	if !near(got.AvgRate, 1) || !near(got.AvgBeatError, 0.4) {
		t.Errorf("Aggregate() = %+v, want avg rate 1 and beat error 0.4", got)
	}

	if zero := Aggregate(nil); zero != (Totals{}) {
		t.Errorf("Aggregate(nil) = %+v, want zero", zero)
	}
}

func TestCycleStatsString(t *testing.T) {
	s := CycleStats{AvgBeatError: 0.25, AvgRate: 1.5, MaxRate: 6, MinRate: -3, Variation: 9}
	want := "Avg Beat Error: 0.25 ms | Avg Rate: +1.5 s/d | Best: +6.0 s/d | Worst: -3.0 s/d | Delta: 9.0 s/d"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
