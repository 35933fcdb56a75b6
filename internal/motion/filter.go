package motion

import (
	"fmt"
	"sort"
)

const (
	medianHalfWindow = 2
	minFilterWindow  = 2*medianHalfWindow + 1
)

// MedianFilter is a per-axis sliding-window median filter.
type MedianFilter struct {
	// HalfWindow is the number of neighbours taken on each side. Zero
	// selects the default of 2.
	HalfWindow int
}

// FilterStats reports how a Filter call went.
type FilterStats struct {
	// Degraded counts samples that were passed through unfiltered.
	Degraded int
	// LastErr is the most recent per-sample failure.
	LastErr error
}

// Filter returns a denoised copy of samples of the same length. Inputs
// shorter than the window are returned unchanged. A sample whose filtered
// value cannot be computed is passed through as-is.
func (f MedianFilter) Filter(samples []Sample) ([]Sample, FilterStats) {
	var stats FilterStats
	out := make([]Sample, len(samples))
	copy(out, samples)

	half := f.HalfWindow
	if half <= 0 {
		half = medianHalfWindow
	}
	if len(samples) < 2*half+1 || len(samples) < minFilterWindow {
		return out, stats
	}

	xs := make([]float64, 0, 2*half+1)
	ys := make([]float64, 0, 2*half+1)
	zs := make([]float64, 0, 2*half+1)
	for i := range samples {
		filtered, err := filterAt(samples, i, half, xs[:0], ys[:0], zs[:0])
		if err != nil {
			stats.Degraded++
			stats.LastErr = err
			continue
		}
		out[i] = filtered
	}
	return out, stats
}

func filterAt(samples []Sample, i, half int, xs, ys, zs []float64) (s Sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("median filter sample %d: %v", i, r)
		}
	}()

	lo := i - half
	if lo < 0 {
		lo = 0
	}
	hi := i + half
	if hi > len(samples)-1 {
		hi = len(samples) - 1
	}
	for j := lo; j <= hi; j++ {
		xs = append(xs, samples[j].X)
		ys = append(ys, samples[j].Y)
		zs = append(zs, samples[j].Z)
	}

	s = NewSample(median(xs), median(ys), median(zs), samples[i].Timestamp)
	if !s.finite() {
		return samples[i], fmt.Errorf("median filter sample %d: non-finite result", i)
	}
	return s, nil
}

// median sorts vals in place. Even-length inputs use the mean of the two
// middle values.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}
