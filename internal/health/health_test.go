package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func samplesAt(now int64, totals ...int) []Sample {
	// Newest first, 1h apart
	out := make([]Sample, len(totals))
	for i, total := range totals {
		out[i] = Sample{Timestamp: now - int64(i+1)*3600, TotalPeers: total}
	}
	return out
}

func TestGrowth(t *testing.T) {
	now := time.Now().Unix()

	t.Run("no history", func(t *testing.T) {
		assert.Equal(t, 0.0, Growth(150, nil))
		assert.Equal(t, 0.0, Growth(150, samplesAt(now, 100)))
	})

	t.Run("basic percent change", func(t *testing.T) {
		assert.Equal(t, 50.0, Growth(150, samplesAt(now, 100, 80)))
		assert.Equal(t, -20.0, Growth(80, samplesAt(now, 100, 90)))
	})

	t.Run("escaping zero is full growth", func(t *testing.T) {
		assert.Equal(t, 100.0, Growth(5, samplesAt(now, 0, 3)))
		assert.Equal(t, 0.0, Growth(0, samplesAt(now, 0, 3)))
	})

	t.Run("rounded to two decimals", func(t *testing.T) {
		// (1 remaining of 3) -> -66.666...
		assert.Equal(t, -66.67, Growth(1, samplesAt(now, 3, 3)))
	})
}

func TestShrink(t *testing.T) {
	now := time.Now().Unix()
	assert.Equal(t, 20.0, Shrink(80, samplesAt(now, 100, 90)))
	assert.Equal(t, 0.0, Shrink(130, samplesAt(now, 100, 90)))
	assert.Equal(t, 0.0, Shrink(50, nil))
}

func TestExplodingScoreGates(t *testing.T) {
	now := time.Now().Unix()
	w := DefaultWeights

	// Fewer than 3 prior samples
	assert.Equal(t, 0.0, ExplodingScore(100, samplesAt(now, 50, 40), now, w))

	// Three prior samples but all outside the 24h window
	old := []Sample{
		{Timestamp: now - 30*3600, TotalPeers: 50},
		{Timestamp: now - 31*3600, TotalPeers: 40},
		{Timestamp: now - 32*3600, TotalPeers: 30},
	}
	assert.Equal(t, 0.0, ExplodingScore(100, old, now, w))

	// All prior totals zero: no computable pair rates
	assert.Equal(t, 0.0, ExplodingScore(100, samplesAt(now, 0, 0, 0), now, w))
}

func TestExplodingScoreRange(t *testing.T) {
	now := time.Now().Unix()
	w := DefaultWeights

	cases := [][]int{
		{100, 50, 25, 12, 6},
		{1000000, 1, 1, 1},
		{1, 1000000, 5, 90000},
		{3, 2, 1, 1, 1, 1, 1, 1, 1, 1},
		{0, 0, 5, 0},
	}
	for _, totals := range cases {
		for _, current := range []int{0, 1, 5, 1000, 1 << 30} {
			score := ExplodingScore(current, samplesAt(now, totals...), now, w)
			assert.GreaterOrEqual(t, score, 0.0, "totals %v current %d", totals, current)
			assert.LessOrEqual(t, score, 100.0, "totals %v current %d", totals, current)
		}
	}
}

func TestExplodingScoreRewardsSustainedGrowth(t *testing.T) {
	now := time.Now().Unix()
	w := DefaultWeights

	growing := samplesAt(now, 80, 40, 20, 10)
	flat := samplesAt(now, 10, 10, 10, 10)

	assert.Greater(t,
		ExplodingScore(160, growing, now, w),
		ExplodingScore(10, flat, now, w))
}

func TestCompute(t *testing.T) {
	now := time.Now().Unix()
	m := Compute(150, samplesAt(now, 100, 80, 60), now, DefaultWeights)
	assert.Equal(t, 50.0, m.Growth)
	assert.Equal(t, 0.0, m.Shrink)
	assert.GreaterOrEqual(t, m.Exploding, 0.0)
	assert.LessOrEqual(t, m.Exploding, 100.0)

	// Determinism
	again := Compute(150, samplesAt(now, 100, 80, 60), now, DefaultWeights)
	assert.Equal(t, m, again)
}
