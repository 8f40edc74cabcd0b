// Package stats provides the summary statistics the analysis tooling expects
// over a set of measured iteration durations: mean, sample standard deviation
// and standard error.
package stats

import (
	"math"
	"time"

	"github.com/mtheof04/Ade-Scripts/internal/domain/run"
)

// Summary holds summary statistics over one metric, in seconds.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	StdErr float64 `json:"std_err"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
}

// Calculate computes summary statistics over values. The standard deviation
// is the sample standard deviation (n-1 denominator), matching how the
// per-iteration execution times have historically been analyzed.
func Calculate(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	s := Summary{
		N:   n,
		Min: values[0],
		Max: values[0],
	}
	for _, v := range values {
		s.Sum += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = s.Sum / float64(n)

	if n > 1 {
		var sq float64
		for _, v := range values {
			d := v - s.Mean
			sq += d * d
		}
		s.StdDev = math.Sqrt(sq / float64(n-1))
		s.StdErr = s.StdDev / math.Sqrt(float64(n))
	}

	return s
}

// FromIterations computes duration statistics over recorded iterations.
func FromIterations(iterations []run.IterationResult) Summary {
	values := make([]float64, len(iterations))
	for i, it := range iterations {
		values[i] = it.Duration.Seconds()
	}
	return Calculate(values)
}

// FromDurations computes statistics over raw durations.
func FromDurations(durations []time.Duration) Summary {
	values := make([]float64, len(durations))
	for i, d := range durations {
		values[i] = d.Seconds()
	}
	return Calculate(values)
}
