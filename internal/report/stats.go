// Package report builds sensor summary reports from the scene store:
// per-stage counts, distributional statistics over durations and sizes,
// and per-plugin outcomes.
package report

import (
	"math"
	"sort"
	"time"
)

// Distribution summarizes a series of float64 samples.
type Distribution struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// Describe computes a Distribution over samples. An empty series yields a
// zero distribution.
func Describe(samples []float64) Distribution {
	if len(samples) == 0 {
		return Distribution{}
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	var sq float64
	for _, v := range sorted {
		d := v - mean
		sq += d * d
	}

	return Distribution{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Median: median(sorted),
		StdDev: math.Sqrt(sq / float64(len(sorted))),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// DescribeDurations computes a Distribution in seconds.
func DescribeDurations(durations []time.Duration) Distribution {
	samples := make([]float64, 0, len(durations))
	for _, d := range durations {
		samples = append(samples, d.Seconds())
	}
	return Describe(samples)
}
