// Package metrics tracks per-process invocation counters and rolling
// latency statistics for the tool server.
//
// The Collector is the only piece of shared mutable state in the server.
// Every mutation goes through Record under a single mutex; Snapshot copies
// all fields under the same mutex so readers never observe a partial update.
package metrics

import (
	"sync"
	"time"
)

// latencyWindow is the number of recent invocation latencies kept for the
// rolling average. Older samples are evicted FIFO.
const latencyWindow = 1000

// Collector accumulates invocation metrics. It is safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	startTime time.Time

	requestsTotal     uint64
	requestsSucceeded uint64
	requestsFailed    uint64
	perTool           map[string]uint64

	// Fixed-capacity ring of recent latencies.
	latencies []time.Duration
	head      int
	count     int
	sum       time.Duration
}

// Snapshot is an immutable copy of the collector state at one instant.
type Snapshot struct {
	RequestsTotal     uint64
	RequestsSucceeded uint64
	RequestsFailed    uint64
	PerTool           map[string]uint64
	AverageLatency    time.Duration
	StartTime         time.Time
	Uptime            time.Duration
}

// SuccessRate returns the percentage of successful requests, or 100 when no
// requests have been recorded yet.
func (s Snapshot) SuccessRate() float64 {
	if s.RequestsTotal == 0 {
		return 100.0
	}

	return float64(s.RequestsSucceeded) / float64(s.RequestsTotal) * 100.0
}

// NewCollector creates a Collector with its start time set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		perTool:   make(map[string]uint64, 16),
		latencies: make([]time.Duration, latencyWindow),
	}
}

// Record accounts for one dispatched invocation. It increments the total,
// exactly one of the success/failure counters, and the per-tool counter,
// then folds elapsed into the rolling latency window.
func (c *Collector) Record(success bool, elapsed time.Duration, toolName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsTotal++

	if success {
		c.requestsSucceeded++
	} else {
		c.requestsFailed++
	}

	if toolName != "" {
		c.perTool[toolName]++
	}

	if c.count == latencyWindow {
		// Ring is full, evict the oldest sample.
		c.sum -= c.latencies[c.head]
	} else {
		c.count++
	}

	c.latencies[c.head] = elapsed
	c.sum += elapsed
	c.head = (c.head + 1) % latencyWindow
}

// Snapshot returns a consistent copy of all counters. Uptime is computed
// against the collector's start time at the moment of the call.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	perTool := make(map[string]uint64, len(c.perTool))
	for name, n := range c.perTool {
		perTool[name] = n
	}

	var avg time.Duration
	if c.count > 0 {
		avg = c.sum / time.Duration(c.count)
	}

	return Snapshot{
		RequestsTotal:     c.requestsTotal,
		RequestsSucceeded: c.requestsSucceeded,
		RequestsFailed:    c.requestsFailed,
		PerTool:           perTool,
		AverageLatency:    avg,
		StartTime:         c.startTime,
		Uptime:            time.Since(c.startTime),
	}
}
