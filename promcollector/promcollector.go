// Package promcollector provides a Prometheus implementation of the
// gridgo.MetricsCollector interface.
//
// Usage:
//
//	collector := promcollector.New(prometheus.DefaultRegisterer)
//	ds, err := gridgo.Create(ctx, store, gridgo.WithMetricsCollector(collector))
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/gridgo"
)

// Collector implements gridgo.MetricsCollector on Prometheus primitives.
type Collector struct {
	opsTotal    *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	rangeClamps prometheus.Counter
	commitAttrs prometheus.Counter
}

var _ gridgo.MetricsCollector = (*Collector)(nil)

// New creates a Collector and registers its metrics with reg. It panics on
// duplicate registration, like promauto; use one Collector per registry.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gridgo_attr_operations_total",
				Help: "Total number of attribute operations",
			},
			[]string{"operation", "status"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gridgo_attr_operation_duration_seconds",
				Help:    "Duration of attribute operations in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
			[]string{"operation"},
		),
		rangeClamps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gridgo_range_clamps_total",
				Help: "Total number of conversions that clamped at least one element",
			},
		),
		commitAttrs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gridgo_commit_attributes_total",
				Help: "Total number of attribute objects written by commits",
			},
		),
	}
	reg.MustRegister(c.opsTotal, c.opDuration, c.rangeClamps, c.commitAttrs)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) record(op string, duration time.Duration, err error) {
	c.opsTotal.WithLabelValues(op, status(err)).Inc()
	c.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordAttrGet implements gridgo.MetricsCollector.
func (c *Collector) RecordAttrGet(duration time.Duration, err error) {
	c.record("get", duration, err)
}

// RecordAttrPut implements gridgo.MetricsCollector.
func (c *Collector) RecordAttrPut(duration time.Duration, err error) {
	c.record("put", duration, err)
}

// RecordAttrRename implements gridgo.MetricsCollector.
func (c *Collector) RecordAttrRename(duration time.Duration, err error) {
	c.record("rename", duration, err)
}

// RecordAttrDelete implements gridgo.MetricsCollector.
func (c *Collector) RecordAttrDelete(duration time.Duration, err error) {
	c.record("delete", duration, err)
}

// RecordRangeClamp implements gridgo.MetricsCollector.
func (c *Collector) RecordRangeClamp() {
	c.rangeClamps.Inc()
}

// RecordCommit implements gridgo.MetricsCollector.
func (c *Collector) RecordCommit(attrs int, duration time.Duration, err error) {
	c.record("commit", duration, err)
	c.commitAttrs.Add(float64(attrs))
}
