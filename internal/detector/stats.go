// SPDX-License-Identifier: MIT
package detector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	secondsPerDay      = 86400
	beatErrorTolerance = 0.3 // Intervals within 30% of refInterval count towards beat error.
	minBeatErrorTicks  = 5
	minStatisticsTicks = 2
)

// Stats are the live measurements against a locked standard.
type Stats struct {
	BPH       int     `json:"bph"`
	Rate      float64 `json:"rate"`      // Seconds per day, positive when running fast.
	BeatError float64 `json:"beatError"` // Milliseconds between alternating half-periods.
}

// String renders the stats the way a timegrapher display shows them.
func (s Stats) String() string {
	return fmt.Sprintf("%d bph, %+.1f s/d, %.1f ms", s.BPH, s.Rate, s.BeatError)
}

// Estimate computes rate and beat error from all ticks collected so far. It
// reports false when there are fewer than two ticks.
func Estimate(ticks []float64, lock Lock) (Stats, bool) {
	if len(ticks) < minStatisticsTicks || lock.RefInterval <= 0 {
		return Stats{}, false
	}
	return Stats{
		BPH:       lock.BPH,
		Rate:      round1(Rate(ticks, lock.RefInterval)),
		BeatError: round1(BeatError(ticks, lock.RefInterval)),
	}, true
}

// Rate returns the daily deviation in seconds. The drift is the expected time for
// the observed number of beats minus the actual elapsed time, so a watch whose
// ticks come early reports a positive rate.
func Rate(ticks []float64, refInterval float64) float64 {
	if len(ticks) < minStatisticsTicks {
		return 0
	}
	count := float64(len(ticks) - 1)
	expected := count * refInterval
	actual := ticks[len(ticks)-1] - ticks[0]
	if actual <= 0 {
		return 0
	}
	drift := expected - actual
	return (drift / actual) * secondsPerDay
}

// BeatError returns the asymmetry in milliseconds between intervals ending on even
// and odd tick positions. Intervals further than 30% from refInterval are skipped
// but keep their position, so parity always follows the original tick sequence.
func BeatError(ticks []float64, refInterval float64) float64 {
	if len(ticks) < minBeatErrorTicks {
		return 0
	}

	even := make([]float64, 0, len(ticks)/2)
	odd := make([]float64, 0, len(ticks)/2)
	for i := 1; i < len(ticks); i++ {
		v := ticks[i] - ticks[i-1]
		if math.Abs(v-refInterval) >= refInterval*beatErrorTolerance {
			continue
		}
		if i%2 == 0 {
			even = append(even, v)
		} else {
			odd = append(odd, v)
		}
	}
	if len(even) == 0 || len(odd) == 0 {
		return 0
	}
	return math.Abs(stat.Mean(even, nil)-stat.Mean(odd, nil)) * 1000
}

// round1 rounds half away from zero to one decimal place. Values that round to
// zero come back as +0 so they never print as "-0.0".
func round1(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}
