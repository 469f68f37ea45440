package monitoring

import (
	"sync"
	"time"
)

// NetworkStats is the last known chain status, updated from status stream
// events. ActiveProviders comes from the model registry rather than the
// stream.
type NetworkStats struct {
	mu sync.RWMutex

	blockHeight     int64
	latencyMillis   int64
	totalRequests   int64
	activeProviders int
	updatedAt       time.Time
}

// NewNetworkStats creates an empty stats holder.
func NewNetworkStats() *NetworkStats {
	return &NetworkStats{}
}

// ApplyStatus records a chain status event.
func (ns *NetworkStats) ApplyStatus(blockHeight, latencyMillis, totalRequests int64) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.blockHeight = blockHeight
	ns.latencyMillis = latencyMillis
	ns.totalRequests = totalRequests
	ns.updatedAt = time.Now()
}

// SetActiveProviders records the provider count from the registry.
func (ns *NetworkStats) SetActiveProviders(n int) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.activeProviders = n
}

// StatsSnapshot is a read-only copy of the network stats.
type StatsSnapshot struct {
	BlockHeight     int64
	LatencyMillis   int64
	TotalRequests   int64
	ActiveProviders int
	UpdatedAt       time.Time
	Connected       bool
}

// Snapshot returns the current stats. Connected is true once at least one
// status event has been applied.
func (ns *NetworkStats) Snapshot() StatsSnapshot {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return StatsSnapshot{
		BlockHeight:     ns.blockHeight,
		LatencyMillis:   ns.latencyMillis,
		TotalRequests:   ns.totalRequests,
		ActiveProviders: ns.activeProviders,
		UpdatedAt:       ns.updatedAt,
		Connected:       !ns.updatedAt.IsZero(),
	}
}
