package gridgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promcollector package ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordAttrGet is called after each attribute read.
	// duration is the total time taken, err is nil if successful.
	// A range-flagged read counts as successful.
	RecordAttrGet(duration time.Duration, err error)

	// RecordAttrPut is called after each attribute write.
	RecordAttrPut(duration time.Duration, err error)

	// RecordAttrRename is called after each attribute rename.
	RecordAttrRename(duration time.Duration, err error)

	// RecordAttrDelete is called after each attribute delete.
	RecordAttrDelete(duration time.Duration, err error)

	// RecordRangeClamp is called whenever a conversion clamps at least one
	// element.
	RecordRangeClamp()

	// RecordCommit is called after each metadata commit.
	// attrs is the number of attribute objects written, duration is the
	// total time taken.
	RecordCommit(attrs int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAttrGet(time.Duration, error)     {}
func (NoopMetricsCollector) RecordAttrPut(time.Duration, error)     {}
func (NoopMetricsCollector) RecordAttrRename(time.Duration, error)  {}
func (NoopMetricsCollector) RecordAttrDelete(time.Duration, error)  {}
func (NoopMetricsCollector) RecordRangeClamp()                      {}
func (NoopMetricsCollector) RecordCommit(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	GetCount        atomic.Int64
	GetErrors       atomic.Int64
	GetTotalNanos   atomic.Int64
	PutCount        atomic.Int64
	PutErrors       atomic.Int64
	PutTotalNanos   atomic.Int64
	RenameCount     atomic.Int64
	RenameErrors    atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	RangeClamps     atomic.Int64
	CommitCount     atomic.Int64
	CommitErrors    atomic.Int64
	CommitAttrs     atomic.Int64
	CommitTotalNano atomic.Int64
}

// RecordAttrGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAttrGet(duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordAttrPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAttrPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordAttrRename implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAttrRename(duration time.Duration, err error) {
	b.RenameCount.Add(1)
	if err != nil {
		b.RenameErrors.Add(1)
	}
}

// RecordAttrDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAttrDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordRangeClamp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeClamp() {
	b.RangeClamps.Add(1)
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(attrs int, duration time.Duration, err error) {
	b.CommitCount.Add(1)
	b.CommitAttrs.Add(int64(attrs))
	b.CommitTotalNano.Add(duration.Nanoseconds())
	if err != nil {
		b.CommitErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		GetCount:     b.GetCount.Load(),
		GetErrors:    b.GetErrors.Load(),
		GetAvgNanos:  avg(b.GetTotalNanos.Load(), b.GetCount.Load()),
		PutCount:     b.PutCount.Load(),
		PutErrors:    b.PutErrors.Load(),
		PutAvgNanos:  avg(b.PutTotalNanos.Load(), b.PutCount.Load()),
		RenameCount:  b.RenameCount.Load(),
		RenameErrors: b.RenameErrors.Load(),
		DeleteCount:  b.DeleteCount.Load(),
		DeleteErrors: b.DeleteErrors.Load(),
		RangeClamps:  b.RangeClamps.Load(),
		CommitCount:  b.CommitCount.Load(),
		CommitErrors: b.CommitErrors.Load(),
		CommitAttrs:  b.CommitAttrs.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	GetCount     int64
	GetErrors    int64
	GetAvgNanos  int64
	PutCount     int64
	PutErrors    int64
	PutAvgNanos  int64
	RenameCount  int64
	RenameErrors int64
	DeleteCount  int64
	DeleteErrors int64
	RangeClamps  int64
	CommitCount  int64
	CommitErrors int64
	CommitAttrs  int64
}
