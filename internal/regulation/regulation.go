// SPDX-License-Identifier: MIT
// Package regulation summarises measurements taken across the standard watch
// positions into a regulation cycle.
package regulation

import (
	"fmt"
	"math"

	"timegrapher/internal/detector"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Position is a physical orientation of the watch during a measurement.
type Position struct {
	Name string
	Abbr string
}

func (p Position) String() string { return fmt.Sprintf("%s (%s)", p.Name, p.Abbr) }

// Positions lists the six standard positions in measuring order.
var Positions = []Position{
	{"Dial Up", "DU"},
	{"Dial Down", "DD"},
	{"Crown Up", "CU"},
	{"Crown Down", "CD"},
	{"Crown Right", "CR"},
	{"Crown Left", "CL"},
}

// Reading is one successful measurement in a position.
type Reading struct {
	Position Position
	Result   detector.Result
}

// Cycle collects the readings of one pass through the positions.
type Cycle struct {
	Number   int
	Readings []Reading
}

// Add records r for position p. Error records are ignored; Add reports whether
// the reading was kept.
func (c *Cycle) Add(p Position, r detector.Result) bool {
	if r.Error != "" {
		return false
	}
	c.Readings = append(c.Readings, Reading{Position: p, Result: r})
	return true
}

// Rates returns the rate of every reading in order.
func (c Cycle) Rates() []float64 {
	out := make([]float64, len(c.Readings))
	for i, r := range c.Readings {
		out[i] = r.Result.Rate
	}
	return out
}

// BeatErrors returns the beat error of every reading in order.
func (c Cycle) BeatErrors() []float64 {
	out := make([]float64, len(c.Readings))
	for i, r := range c.Readings {
		out[i] = r.Result.BeatError
	}
	return out
}

// Stats summarises the cycle's readings.
func (c Cycle) Stats() CycleStats {
	return Summarize(c.BeatErrors(), c.Rates())
}

// CycleStats are the aggregate figures of one cycle. MaxRate is the best
// position and MinRate the worst.
type CycleStats struct {
	AvgBeatError float64 `json:"avgBeatError"`
	AvgRate      float64 `json:"avgRate"`
	MaxRate      float64 `json:"maxRate"`
	MinRate      float64 `json:"minRate"`
	Variation    float64 `json:"variation"`
	Readings     int     `json:"readings"`
}

func (s CycleStats) String() string {
	return fmt.Sprintf("Avg Beat Error: %.2f ms | Avg Rate: %+.1f s/d | Best: %+.1f s/d | Worst: %+.1f s/d | Delta: %.1f s/d",
		s.AvgBeatError, s.AvgRate, s.MaxRate, s.MinRate, s.Variation)
}

// Summarize computes the cycle figures. Beat errors and rates are averaged
// independently; empty inputs yield zero values.
func Summarize(beatErrors, rates []float64) CycleStats {
	var s CycleStats
	if len(beatErrors) > 0 {
		s.AvgBeatError = stat.Mean(beatErrors, nil)
	}
	if len(rates) > 0 {
		s.AvgRate = stat.Mean(rates, nil)
		s.MaxRate = floats.Max(rates)
		s.MinRate = floats.Min(rates)
		s.Variation = math.Abs(s.MaxRate - s.MinRate)
		s.Readings = len(rates)
	}
	return s
}

// Totals average the per-cycle figures across several cycles.
type Totals struct {
	AvgRate      float64 `json:"avgRate"`
	AvgBeatError float64 `json:"avgBeatError"`
	RateCycles   int     `json:"rateCycles"`
	BeatCycles   int     `json:"beatCycles"`
}

// Aggregate averages the cycle averages of every cycle that has readings.
func Aggregate(cycles []Cycle) Totals {
	var rates, beatErrors []float64
	for _, c := range cycles {
		if len(c.Readings) == 0 {
			continue
		}
		s := c.Stats()
		rates = append(rates, s.AvgRate)
		beatErrors = append(beatErrors, s.AvgBeatError)
	}

	t := Totals{RateCycles: len(rates), BeatCycles: len(beatErrors)}
	if len(rates) > 0 {
		t.AvgRate = stat.Mean(rates, nil)
	}
	if len(beatErrors) > 0 {
		t.AvgBeatError = stat.Mean(beatErrors, nil)
	}
	return t
}
