// SPDX-License-Identifier: MIT
package detector

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Standards is the ordered reference list of beats-per-hour values for mechanical
// movements. Lock-on only ever selects one of these.
var Standards = [...]int{14400, 18000, 19800, 21600, 25200, 28800, 36000}

const (
	minLockIntervals   = 5    // Intervals (and valid intervals) needed to attempt a lock.
	outlierTolerance   = 0.2  // Valid intervals lie within 20% of the median.
	lockToleranceBPH   = 2000 // Max |observed - standard| for a lock.
	lockedDebounceRate = 0.85 // minInterval = 0.85 x refInterval once locked.
)

// Intervals returns the spacing between temporally adjacent ticks. The result has
// len(ticks)-1 entries, or none for fewer than two ticks.
func Intervals(ticks []float64) []float64 {
	if len(ticks) < 2 {
		return nil
	}
	out := make([]float64, len(ticks)-1)
	for i := 1; i < len(ticks); i++ {
		out[i-1] = ticks[i] - ticks[i-1]
	}
	return out
}

// LowerMedian returns the element at the floor-of-half index of the sorted values.
// The two middle values of an even-length input are never averaged. The input is
// not modified. Returns 0 for an empty slice.
func LowerMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// NearestStandard returns the entry of Standards closest to observed. On equal
// distance the earlier entry wins.
func NearestStandard(observed float64) int {
	best := Standards[0]
	for _, s := range Standards[1:] {
		if math.Abs(float64(s)-observed) < math.Abs(float64(best)-observed) {
			best = s
		}
	}
	return best
}

// LockOn tries to infer the BPH standard from the tick sequence. It returns false
// when there is not yet enough clean data or the observed rate is too far from
// every standard; the caller keeps collecting and retries later.
func LockOn(ticks []float64) (Lock, bool) {
	intervals := Intervals(ticks)
	if len(intervals) < minLockIntervals {
		return Lock{}, false
	}

	median := LowerMedian(intervals)
	valid := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if math.Abs(iv-median) < median*outlierTolerance {
			valid = append(valid, iv)
		}
	}
	if len(valid) < minLockIntervals {
		return Lock{}, false
	}

	avg := stat.Mean(valid, nil)
	if avg <= 0 {
		return Lock{}, false
	}
	observed := (1 / avg) * 3600

	standard := NearestStandard(observed)
	if math.Abs(observed-float64(standard)) >= lockToleranceBPH {
		return Lock{}, false
	}

	return Lock{
		BPH:         standard,
		RefInterval: 3600 / float64(standard),
		ObservedBPH: observed,
	}, true
}
