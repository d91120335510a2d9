// Package health derives trend metrics from a swarm's probe history. All
// functions are pure: the same snapshot and history always produce the same
// scores.
package health

import "math"

// Sample is one historical observation, as stored. Slices passed to this
// package are ordered newest first.
type Sample struct {
	Timestamp  int64
	TotalPeers int
	Seeders    int
	Leechers   int
}

type Metrics struct {
	Growth    float64
	Shrink    float64
	Exploding float64
}

// Weights caps each component of the exploding score. The defaults are
// empirical; no single factor may dominate the composite.
type Weights struct {
	WindowHours     float64
	GrowthCap       float64
	AccelerationCap float64
	DensityCap      float64
	ScaleCap        float64
}

var DefaultWeights = Weights{
	WindowHours:     24,
	GrowthCap:       50,
	AccelerationCap: 30,
	DensityCap:      20,
	ScaleCap:        20,
}

// Growth is the percent change against the most recent prior sample,
// rounded to two decimals. Fewer than two prior samples mean no baseline:
// growth is 0. Escaping zero peers counts as full (100%) growth rather than
// an undefined ratio.
func Growth(currentPeers int, previous []Sample) float64 {
	if len(previous) < 2 {
		return 0
	}
	prev := previous[0].TotalPeers
	if prev == 0 {
		if currentPeers > 0 {
			return 100
		}
		return 0
	}
	growth := float64(currentPeers-prev) / float64(prev) * 100
	return math.Round(growth*100) / 100
}

// Shrink reports decline as a non-negative magnitude; a growing swarm
// shrinks by 0.
func Shrink(currentPeers int, previous []Sample) float64 {
	return math.Max(0, -Growth(currentPeers, previous))
}

// ExplodingScore estimates the likelihood of rapid sustained growth on a
// 0-100 scale. It needs at least three prior samples, at least two of them
// inside the trailing window ending at now (sample time, not wall clock).
func ExplodingScore(currentPeers int, previous []Sample, now int64, w Weights) float64 {
	if len(previous) < 3 {
		return 0
	}

	windowStart := now - int64(w.WindowHours*3600)
	var recent []Sample
	for _, s := range previous {
		if s.Timestamp >= windowStart {
			recent = append(recent, s)
		}
	}
	if len(recent) < 2 {
		return 0
	}

	// Per-adjacent-pair growth rates, newest pair first
	var rates []float64
	for i := 0; i < len(recent)-1; i++ {
		prev := recent[i+1].TotalPeers
		curr := recent[i].TotalPeers
		if prev > 0 {
			rates = append(rates, float64(curr-prev)/float64(prev)*100)
		}
	}
	if len(rates) == 0 {
		return 0
	}

	var sum float64
	for _, r := range rates {
		sum += r
	}
	avgGrowth := sum / float64(len(rates))

	acceleration := 0.0
	if len(rates) >= 2 {
		acceleration = rates[0] - rates[len(rates)-1]
	}

	score := clamp(avgGrowth, 0, w.GrowthCap) +
		clamp(acceleration, 0, w.AccelerationCap) +
		math.Min(w.DensityCap, float64(len(recent))*2) +
		math.Min(w.ScaleCap, math.Log10(math.Max(1, float64(currentPeers)))*5)

	return clamp(score, 0, 100)
}

// Compute bundles all three metrics for one snapshot.
func Compute(currentPeers int, previous []Sample, now int64, w Weights) Metrics {
	exploding := ExplodingScore(currentPeers, previous, now, w)
	return Metrics{
		Growth:    Growth(currentPeers, previous),
		Shrink:    Shrink(currentPeers, previous),
		Exploding: math.Round(exploding*100) / 100,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
