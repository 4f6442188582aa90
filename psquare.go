package reactor

import "math"

// quantileEstimator streams a single quantile using Jain & Chlamtac's P²
// algorithm (1985, "The P² Algorithm for Dynamic Calculation of Quantiles
// and Histograms Without Storing Observations"): five markers are nudged
// toward their ideal positions on every observation, giving O(1) updates
// and O(1) reads without retaining the sample. LatencyMetrics is the only
// caller; trimmed to just the surface it exercises (Update, Quantile) —
// no Count/Max/Reset at this level, since callback-latency bookkeeping
// owns its own sum/count/max alongside this estimator.
type quantileEstimator struct {
	p float64

	q  [5]float64 // marker heights
	n  [5]int     // marker positions
	np [5]float64 // desired marker positions
	dn [5]float64 // increments for the desired positions

	count int
	seed  [5]float64 // first 5 observations, buffered until markers initialize
}

func newQuantileEstimator(p float64) *quantileEstimator {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &quantileEstimator{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (e *quantileEstimator) Update(x float64) {
	e.count++

	if e.count <= 5 {
		e.seed[e.count-1] = x
		if e.count == 5 {
			e.seedMarkers()
		}
		return
	}

	var k int
	switch {
	case x < e.q[0]:
		e.q[0] = x
		k = 0
	case x >= e.q[4]:
		e.q[4] = x
		k = 3
	default:
		for k = 0; k < 4; k++ {
			if e.q[k] <= x && x < e.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		e.n[i]++
	}
	for i := 0; i < 5; i++ {
		e.np[i] += e.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := e.np[i] - float64(e.n[i])
		if (d >= 1 && e.n[i+1]-e.n[i] > 1) || (d <= -1 && e.n[i-1]-e.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qp := e.parabolic(i, sign)
			if e.q[i-1] < qp && qp < e.q[i+1] {
				e.q[i] = qp
			} else {
				e.q[i] = e.linear(i, sign)
			}
			e.n[i] += sign
		}
	}
}

// seedMarkers initializes marker heights/positions from the first 5
// observations, sorted ascending.
func (e *quantileEstimator) seedMarkers() {
	for i := 1; i < 5; i++ {
		key := e.seed[i]
		j := i - 1
		for j >= 0 && e.seed[j] > key {
			e.seed[j+1] = e.seed[j]
			j--
		}
		e.seed[j+1] = key
	}

	for i := 0; i < 5; i++ {
		e.q[i] = e.seed[i]
		e.n[i] = i
	}
	e.np = [5]float64{0, 2 * e.p, 4 * e.p, 2 + 2*e.p, 4}
}

func (e *quantileEstimator) parabolic(i, d int) float64 {
	df := float64(d)
	ni, niPrev, niNext := float64(e.n[i]), float64(e.n[i-1]), float64(e.n[i+1])
	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (e.q[i+1] - e.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (e.q[i] - e.q[i-1]) / (ni - niPrev)
	return e.q[i] + term1*(term2+term3)
}

func (e *quantileEstimator) linear(i, d int) float64 {
	if d == 1 {
		return e.q[i] + (e.q[i+1]-e.q[i])/float64(e.n[i+1]-e.n[i])
	}
	return e.q[i] - (e.q[i]-e.q[i-1])/float64(e.n[i]-e.n[i-1])
}

// Quantile returns the current estimate. Below 5 observations the markers
// haven't seeded yet, so it falls back to an exact sort of the buffered
// seed values.
func (e *quantileEstimator) Quantile() float64 {
	if e.count == 0 {
		return 0
	}
	if e.count < 5 {
		sorted := make([]float64, e.count)
		copy(sorted, e.seed[:e.count])
		for i := 1; i < e.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(e.count-1) * e.p)
		if index >= e.count {
			index = e.count - 1
		}
		return sorted[index]
	}
	return e.q[2]
}

// pSquareMultiQuantile drives one quantileEstimator per tracked percentile
// off a single stream of observations, plus the running max LatencyMetrics
// needs alongside its percentiles. Count/Sum/Mean live on LatencyMetrics
// itself, not here — this type only ever sees Update/Quantile/Max from
// metrics.go, so that's all it exposes.
type pSquareMultiQuantile struct {
	estimators []*quantileEstimator
	max        float64
}

func newPSquareMultiQuantile(percentiles ...float64) *pSquareMultiQuantile {
	m := &pSquareMultiQuantile{
		estimators: make([]*quantileEstimator, len(percentiles)),
		max:        -math.MaxFloat64,
	}
	for i, p := range percentiles {
		m.estimators[i] = newQuantileEstimator(p)
	}
	return m
}

func (m *pSquareMultiQuantile) Update(x float64) {
	if x > m.max {
		m.max = x
	}
	for _, est := range m.estimators {
		est.Update(x)
	}
}

// Quantile returns the estimate for the i-th configured percentile, or 0
// if i is out of range.
func (m *pSquareMultiQuantile) Quantile(i int) float64 {
	if i < 0 || i >= len(m.estimators) {
		return 0
	}
	return m.estimators[i].Quantile()
}

func (m *pSquareMultiQuantile) Max() float64 {
	if m.max == -math.MaxFloat64 {
		return 0
	}
	return m.max
}
