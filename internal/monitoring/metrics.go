// Package monitoring provides lightweight in-memory operational counters:
// requests sent, settlements, rollbacks, token volumes, and a snapshot of
// chain status fed by the network status stream.
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects client-side operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	requests atomic.Int64 // send attempts
	settled  atomic.Int64 // successful settlements
	failed   atomic.Int64 // failed sends (reservation released or refused)
	deposits atomic.Int64 // successful funding operations

	totalInputTokens  atomic.Int64
	totalOutputTokens atomic.Int64
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startedAt: time.Now()}
}

// RecordSend records one send attempt and its outcome.
func (mc *MetricsCollector) RecordSend(settled bool, inputTokens, outputTokens int) {
	mc.requests.Add(1)
	if settled {
		mc.settled.Add(1)
		mc.totalInputTokens.Add(int64(inputTokens))
		mc.totalOutputTokens.Add(int64(outputTokens))
	} else {
		mc.failed.Add(1)
	}
}

// RecordDeposit records one successful funding operation.
func (mc *MetricsCollector) RecordDeposit() {
	mc.deposits.Add(1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime       time.Duration
	Requests     int64
	Settled      int64
	Failed       int64
	Deposits     int64
	InputTokens  int64
	OutputTokens int64
}

// Snapshot returns the current counter values.
func (mc *MetricsCollector) Snapshot() Snapshot {
	return Snapshot{
		Uptime:       time.Since(mc.startedAt),
		Requests:     mc.requests.Load(),
		Settled:      mc.settled.Load(),
		Failed:       mc.failed.Load(),
		Deposits:     mc.deposits.Load(),
		InputTokens:  mc.totalInputTokens.Load(),
		OutputTokens: mc.totalOutputTokens.Load(),
	}
}
