package gridgo

import (
	"log/slog"

	"github.com/hupe1980/gridgo/codec"
	"github.com/hupe1980/gridgo/resource"
)

type options struct {
	codec              codec.Codec
	codecSet           bool
	metricsCollector   MetricsCollector
	logger             *Logger
	resourceController *resource.Controller
	classicModel       bool
	readOnly           bool
}

// Option configures a dataset at Create or Open.
type Option func(*options)

// WithCodec configures the payload codec used for attribute objects.
// Create stamps the codec's name into the manifest; Open takes the codec
// from the manifest and ignores this option. Without this option Create
// picks codec.Default, or codec.Classic for classic-model datasets.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
		o.codecSet = true
	}
}

// WithClassicModel creates the dataset under the classic compatibility
// model: classic-era types only, no groups or user-defined types, at most
// one unlimited dimension, and no implicit definition mode. Open ignores
// this option; the manifest decides.
func WithClassicModel() Option {
	return func(o *options) {
		o.classicModel = true
	}
}

// ReadOnly opens the dataset for inspection only. Every mutation fails with
// ErrReadOnly and Close does not commit.
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
	}
}

// WithResourceConfig bounds the commit path: bytes of encoded payloads in
// flight, concurrent store writers, and store write throughput.
//
// Example:
//
//	ds, _ := gridgo.Create(ctx, store, gridgo.WithResourceConfig(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	    MaxCommitWorkers: 8,
//	}))
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceController = resource.NewController(cfg)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &gridgo.BasicMetricsCollector{}
//	ds, _ := gridgo.Create(ctx, store, gridgo.WithMetricsCollector(metrics))
//	// ... use ds ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Avg latency: %dns\n", stats.PutCount, stats.PutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := gridgo.NewJSONLogger(slog.LevelInfo)
//	ds, _ := gridgo.Open(ctx, store, gridgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
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

func applyOptions(optFns []Option) options {
	o := options{
		codec:              codec.Default,
		metricsCollector:   NoopMetricsCollector{},
		logger:             NoopLogger(),
		resourceController: resource.NewController(resource.Config{}),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
