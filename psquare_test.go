package reactor

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantileEstimator_ConvergesOnUniformDistribution(t *testing.T) {
	src := rand.New(rand.NewSource(1))

	var samples []float64
	e := newQuantileEstimator(0.50)
	for i := 0; i < 10000; i++ {
		x := src.Float64() * 100
		samples = append(samples, x)
		e.Update(x)
	}

	sort.Float64s(samples)
	exact := samples[len(samples)/2]

	require.InDelta(t, exact, e.Quantile(), 2.0)
}

func TestQuantileEstimator_ExactBelowFiveSamples(t *testing.T) {
	e := newQuantileEstimator(0.50)
	require.Zero(t, e.Quantile())

	e.Update(3)
	e.Update(1)
	e.Update(2)

	// median of {1,2,3} is 2.
	require.Equal(t, float64(2), e.Quantile())
}

func TestQuantileEstimator_ClampsOutOfRangePercentile(t *testing.T) {
	require.Equal(t, float64(0), newQuantileEstimator(-1).p)
	require.Equal(t, float64(1), newQuantileEstimator(2).p)
}

func TestPSquareMultiQuantile_TracksAllPercentilesTogether(t *testing.T) {
	m := newPSquareMultiQuantile(0.50, 0.90, 0.99)

	for i := 1; i <= 1000; i++ {
		m.Update(float64(i))
	}

	require.InDelta(t, 500, m.Quantile(0), 30)
	require.InDelta(t, 900, m.Quantile(1), 30)
	require.InDelta(t, 990, m.Quantile(2), 30)
	require.Equal(t, float64(1000), m.Max())
}

func TestPSquareMultiQuantile_QuantileOutOfRangeReturnsZero(t *testing.T) {
	m := newPSquareMultiQuantile(0.50)
	m.Update(1)
	require.Zero(t, m.Quantile(-1))
	require.Zero(t, m.Quantile(1))
}

func TestPSquareMultiQuantile_EmptyMaxReportsZeroNotSentinel(t *testing.T) {
	m := newPSquareMultiQuantile(0.50)
	require.Zero(t, m.Max())
}
