package reactor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for a Reactor. Metrics are optional,
// low-overhead, and thread-safe; attach via WithMetrics.
//
// Thread Safety: all Metrics methods are safe to call from any goroutine,
// including from a foreign thread under thread_enter.
type Metrics struct {
	// Callback tracks how long user callbacks take to return.
	Callback LatencyMetrics

	// SlowCallbacks counts callbacks that exceeded the reactor's configured
	// max-blocking duration.
	SlowCallbacks atomic.Int64

	// WaitCycles counts completed backend.wait calls, regardless of whether
	// they returned any readiness.
	WaitCycles atomic.Int64

	// DispatchedEvents counts callback invocations across all dispatch
	// batches.
	DispatchedEvents atomic.Int64

	// MechanismSwitches counts completed set_mechanism calls.
	MechanismSwitches atomic.Int64
}

// NewMetrics returns a zero-valued Metrics ready to attach via WithMetrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// LatencyMetrics tracks a latency distribution with percentiles, using the
// P-Square algorithm for O(1) streaming percentile estimation.
type LatencyMetrics struct {
	psquare *pSquareMultiQuantile

	mu sync.RWMutex

	// sampleSize-entry rolling buffer kept for exact percentiles while the
	// sample count is too small for the P-Square estimators to have
	// converged.
	sampleIdx   int
	sampleCount int
	samples     [sampleSize]time.Duration

	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration

	Mean time.Duration
	Sum  time.Duration
}

const sampleSize = 1000

// Record records a latency sample. Called after every callback invocation
// when a Metrics collector is attached.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.psquare == nil {
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}
	l.psquare.Update(float64(duration))

	if l.sampleCount >= sampleSize {
		old := l.samples[l.sampleIdx]
		l.Sum -= old
	}

	l.samples[l.sampleIdx] = duration
	l.Sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample recomputes the cached percentile fields and returns the number of
// samples used.
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return 0
	}

	if count < 5 || l.psquare == nil {
		sorted := make([]time.Duration, count)
		copy(sorted, l.samples[:count])
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		l.P50 = sorted[percentileIndex(count, 50)]
		l.P90 = sorted[percentileIndex(count, 90)]
		l.P95 = sorted[percentileIndex(count, 95)]
		l.P99 = sorted[percentileIndex(count, 99)]
		l.Max = sorted[count-1]
		l.Mean = l.Sum / time.Duration(count)
		return count
	}

	l.P50 = time.Duration(l.psquare.Quantile(0))
	l.P90 = time.Duration(l.psquare.Quantile(1))
	l.P95 = time.Duration(l.psquare.Quantile(2))
	l.P99 = time.Duration(l.psquare.Quantile(3))
	l.Max = time.Duration(l.psquare.Max())
	l.Mean = l.Sum / time.Duration(count)
	return count
}

func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}
