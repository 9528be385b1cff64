package flagcube

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAllocate is called after shared storage was allocated.
	// bytes is the memory reserved, err is nil if successful.
	RecordAllocate(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each load of pre-existing flags that
	// reached the source.
	RecordLoad(duration time.Duration, err error)

	// RecordPublish is called after each publish that reached the sink.
	// flaggedRows is the number of rows rejected in the published slot.
	RecordPublish(flaggedRows int, duration time.Duration, err error)

	// RecordFree is called when the last agent released shared storage.
	RecordFree(bytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)            {}
func (NoopMetricsCollector) RecordPublish(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordFree(int64)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount     atomic.Int64
	AllocateErrors    atomic.Int64
	AllocatedBytes    atomic.Int64
	LoadCount         atomic.Int64
	LoadErrors        atomic.Int64
	LoadTotalNanos    atomic.Int64
	PublishCount      atomic.Int64
	PublishErrors     atomic.Int64
	PublishTotalNanos atomic.Int64
	FlaggedRows       atomic.Int64
	FreeCount         atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(bytes int64, _ time.Duration, err error) {
	b.AllocateCount.Add(1)
	if err != nil {
		b.AllocateErrors.Add(1)
		return
	}
	b.AllocatedBytes.Add(bytes)
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordPublish implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPublish(flaggedRows int, duration time.Duration, err error) {
	b.PublishCount.Add(1)
	b.PublishTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PublishErrors.Add(1)
		return
	}
	b.FlaggedRows.Add(int64(flaggedRows))
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree(bytes int64) {
	b.FreeCount.Add(1)
	b.AllocatedBytes.Add(-bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:   b.AllocateCount.Load(),
		AllocateErrors:  b.AllocateErrors.Load(),
		AllocatedBytes:  b.AllocatedBytes.Load(),
		LoadCount:       b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		LoadAvgNanos:    avgNanos(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		PublishCount:    b.PublishCount.Load(),
		PublishErrors:   b.PublishErrors.Load(),
		PublishAvgNanos: avgNanos(b.PublishTotalNanos.Load(), b.PublishCount.Load()),
		FlaggedRows:     b.FlaggedRows.Load(),
		FreeCount:       b.FreeCount.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount   int64
	AllocateErrors  int64
	AllocatedBytes  int64
	LoadCount       int64
	LoadErrors      int64
	LoadAvgNanos    int64
	PublishCount    int64
	PublishErrors   int64
	PublishAvgNanos int64
	FlaggedRows     int64
	FreeCount       int64
}
