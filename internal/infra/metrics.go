package infra

import (
	"sync/atomic"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	snapshotsFetched  atomic.Uint64
	snapshotsApplied  atomic.Uint64
	tradesProcessed   atomic.Uint64
	duplicatesDropped atomic.Uint64
	sequenceGaps      atomic.Uint64
	reconnects        atomic.Uint64
	errorsTotal       atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSnapshotFetched records a REST snapshot fetch.
func (m *Metrics) RecordSnapshotFetched() {
	m.snapshotsFetched.Add(1)
}

// RecordSnapshotApplied records a snapshot applied to a book.
func (m *Metrics) RecordSnapshotApplied() {
	m.snapshotsApplied.Add(1)
}

// RecordTrade records a processed public trade.
func (m *Metrics) RecordTrade() {
	m.tradesProcessed.Add(1)
}

// RecordDuplicateDropped records a deduplicated trade/execution id.
func (m *Metrics) RecordDuplicateDropped() {
	m.duplicatesDropped.Add(1)
}

// RecordSequenceGap records a detected out-of-sequence depth update.
func (m *Metrics) RecordSequenceGap() {
	m.sequenceGaps.Add(1)
}

// RecordReconnect records a stream reconnection attempt.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time copy for reporting.
type MetricsSnapshot struct {
	SnapshotsFetched  uint64
	SnapshotsApplied  uint64
	TradesProcessed   uint64
	DuplicatesDropped uint64
	SequenceGaps      uint64
	Reconnects        uint64
	ErrorsTotal       uint64
	ActiveConnections int32
}

// Snapshot returns a consistent-enough copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SnapshotsFetched:  m.snapshotsFetched.Load(),
		SnapshotsApplied:  m.snapshotsApplied.Load(),
		TradesProcessed:   m.tradesProcessed.Load(),
		DuplicatesDropped: m.duplicatesDropped.Load(),
		SequenceGaps:      m.sequenceGaps.Load(),
		Reconnects:        m.reconnects.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		ActiveConnections: m.activeConnections.Load(),
	}
}
