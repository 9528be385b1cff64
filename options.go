package flagcube

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/flagcube/resource"
)

// WideMode controls when the wide storage strategy is used.
type WideMode uint8

const (
	// WideAuto uses wide storage only when agents and correlations do not fit
	// a flag word.
	WideAuto WideMode = iota
	// WideForce always uses wide storage.
	WideForce
	// WideDisabled never uses wide storage; allocation fails with
	// ErrCapacityExceeded when a flag word is too small.
	WideDisabled
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	ioLimit          int64
	rc               *resource.Controller
	wideMode         WideMode
	timeWindow       int
	source           Source
	sink             Sink
	workers          int
}

// Option configures a Shared flag store.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &flagcube.BasicMetricsCollector{}
//	shared, _ := flagcube.NewShared(shape, flagcube.WithMetricsCollector(metrics))
//	// ... run agents ...
//	stats := metrics.GetStats()
//	fmt.Printf("Publishes: %d, flagged rows: %d\n", stats.PublishCount, stats.FlaggedRows)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := flagcube.NewJSONLogger(slog.LevelInfo)
//	shared, _ := flagcube.NewShared(shape, flagcube.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit bounds the memory reserved for flag storage.
//
// When the full compact grid does not fit, the time dimension is held in a
// ring of the largest depth that does. Ignored if WithResourceController is
// also set.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithIOLimit throttles frame traffic to the source and sink.
// Ignored if WithResourceController is also set.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithResourceController shares a resource controller between stores.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithWideMode selects the storage strategy policy.
func WithWideMode(m WideMode) Option {
	return func(o *options) {
		o.wideMode = m
	}
}

// WithTimeWindow holds at most n time slots of compact storage at once.
// Time index t lives in ring slot t % n; moving to a time index that maps to
// an occupied slot resets it to the conservative state.
func WithTimeWindow(n int) Option {
	return func(o *options) {
		o.timeWindow = n
	}
}

// WithSource configures where Load reads pre-existing flags from.
func WithSource(src Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithSink configures where Publish writes merged flags to.
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithWorkers bounds the goroutines used by ForEachBaseline.
// If n <= 0, GOMAXPROCS is used.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if o.rc == nil && (o.memoryLimit > 0 || o.ioLimit > 0) {
		o.rc = resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			IOLimitBytesPerSec: o.ioLimit,
		})
	}
	return o
}
