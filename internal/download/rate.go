package download

import "time"

// DefaultRateWindow is the sampling window used when none is configured.
const DefaultRateWindow = 3 * time.Second

type rateSample struct {
	t     time.Time
	total int64
}

// RateTracker computes a smoothed bytes-per-second estimate from a
// stream of (timestamp, total bytes) samples over a rolling window.
// It is not safe for concurrent use; each transfer session owns one.
type RateTracker struct {
	window  time.Duration
	samples []rateSample
}

// NewRateTracker creates a tracker with the given rolling window.
func NewRateTracker(window time.Duration) *RateTracker {
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateTracker{window: window}
}

// Sample records one observation and returns the current rate estimate.
// Degenerate input (fewer than two samples, zero or negative elapsed
// time, byte counts going backwards) yields 0, never a negative rate.
func (rt *RateTracker) Sample(t time.Time, totalBytes int64) int64 {
	rt.samples = append(rt.samples, rateSample{t: t, total: totalBytes})

	// Drop samples that fell out of the window, always keeping the
	// newest one.
	cutoff := t.Add(-rt.window)
	i := 0
	for i < len(rt.samples)-1 && rt.samples[i].t.Before(cutoff) {
		i++
	}
	rt.samples = rt.samples[i:]

	return rt.rate()
}

func (rt *RateTracker) rate() int64 {
	if len(rt.samples) < 2 {
		return 0
	}
	first := rt.samples[0]
	last := rt.samples[len(rt.samples)-1]

	elapsed := last.t.Sub(first.t)
	delta := last.total - first.total
	if elapsed <= 0 || delta <= 0 {
		return 0
	}
	return int64(float64(delta) / elapsed.Seconds())
}
