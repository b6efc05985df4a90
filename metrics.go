package crc32c

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting integrity metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Checksum and Combine are not instrumented; only verification paths
// report here.
type MetricsCollector interface {
	// RecordVerify is called after each verification.
	// bytes is the amount of data checksummed, err is nil if it matched.
	RecordVerify(bytes int, duration time.Duration, err error)

	// RecordScrub is called after each scrub pass.
	RecordScrub(scanned, corrupt int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordVerify(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordScrub(int, int, time.Duration)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	VerifyCount      atomic.Int64
	VerifyBytes      atomic.Int64
	VerifyMismatches atomic.Int64
	VerifyTotalNanos atomic.Int64
	ScrubCount       atomic.Int64
	ScrubScanned     atomic.Int64
	ScrubCorrupt     atomic.Int64
	ScrubTotalNanos  atomic.Int64
}

// RecordVerify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVerify(bytes int, duration time.Duration, err error) {
	b.VerifyCount.Add(1)
	b.VerifyBytes.Add(int64(bytes))
	b.VerifyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.VerifyMismatches.Add(1)
	}
}

// RecordScrub implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScrub(scanned, corrupt int, duration time.Duration) {
	b.ScrubCount.Add(1)
	b.ScrubScanned.Add(int64(scanned))
	b.ScrubCorrupt.Add(int64(corrupt))
	b.ScrubTotalNanos.Add(duration.Nanoseconds())
}

// MetricsStats is a point-in-time snapshot of BasicMetricsCollector.
type MetricsStats struct {
	VerifyCount      int64
	VerifyBytes      int64
	VerifyMismatches int64
	AvgVerifyNanos   int64
	ScrubCount       int64
	ScrubScanned     int64
	ScrubCorrupt     int64
}

// GetStats returns a snapshot of the collected metrics.
func (b *BasicMetricsCollector) GetStats() MetricsStats {
	s := MetricsStats{
		VerifyCount:      b.VerifyCount.Load(),
		VerifyBytes:      b.VerifyBytes.Load(),
		VerifyMismatches: b.VerifyMismatches.Load(),
		ScrubCount:       b.ScrubCount.Load(),
		ScrubScanned:     b.ScrubScanned.Load(),
		ScrubCorrupt:     b.ScrubCorrupt.Load(),
	}
	if s.VerifyCount > 0 {
		s.AvgVerifyNanos = b.VerifyTotalNanos.Load() / s.VerifyCount
	}
	return s
}
