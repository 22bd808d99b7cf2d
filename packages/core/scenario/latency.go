package scenario

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxLatencyUs is the largest latency the histogram tracks, in microseconds.
const maxLatencyUs = 60_000_000

// Latency summarizes the response times of the steps that were sent.
type Latency struct {
	Count int64
	Min   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

type latencyRecorder struct {
	histogram *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{histogram: hdrhistogram.New(1, maxLatencyUs, 3)}
}

func (l *latencyRecorder) Record(d time.Duration) {
	// Record latency in microseconds
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	_ = l.histogram.RecordValue(us)
}

func (l *latencyRecorder) Summary() Latency {
	if l.histogram.TotalCount() == 0 {
		return Latency{}
	}
	return Latency{
		Count: l.histogram.TotalCount(),
		Min:   time.Duration(l.histogram.Min()) * time.Microsecond,
		Mean:  time.Duration(l.histogram.Mean()) * time.Microsecond,
		P50:   time.Duration(l.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(l.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(l.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(l.histogram.Max()) * time.Microsecond,
	}
}
