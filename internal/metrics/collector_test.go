package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()

	c.Record(true, 10*time.Millisecond, "echo")
	c.Record(true, 20*time.Millisecond, "echo")
	c.Record(false, 30*time.Millisecond, "calculate")

	snap := c.Snapshot()
	require.Equal(t, uint64(3), snap.RequestsTotal)
	require.Equal(t, uint64(2), snap.RequestsSucceeded)
	require.Equal(t, uint64(1), snap.RequestsFailed)
	require.Equal(t, uint64(2), snap.PerTool["echo"])
	require.Equal(t, uint64(1), snap.PerTool["calculate"])
	require.Equal(t, 20*time.Millisecond, snap.AverageLatency)
}

func TestCollectorLatencyWindowEviction(t *testing.T) {
	c := NewCollector()

	// Fill the window with 1ms samples, then push it out with 3ms samples.
	for range latencyWindow {
		c.Record(true, time.Millisecond, "t")
	}
	require.Equal(t, time.Millisecond, c.Snapshot().AverageLatency)

	for range latencyWindow {
		c.Record(true, 3*time.Millisecond, "t")
	}

	snap := c.Snapshot()
	require.Equal(t, 3*time.Millisecond, snap.AverageLatency)
	require.Equal(t, uint64(2*latencyWindow), snap.RequestsTotal)
}

func TestSnapshotIdempotentExceptUptime(t *testing.T) {
	c := NewCollector()
	c.Record(true, time.Millisecond, "echo")

	first := c.Snapshot()
	second := c.Snapshot()

	require.Equal(t, first.RequestsTotal, second.RequestsTotal)
	require.Equal(t, first.RequestsSucceeded, second.RequestsSucceeded)
	require.Equal(t, first.RequestsFailed, second.RequestsFailed)
	require.Equal(t, first.PerTool, second.PerTool)
	require.Equal(t, first.AverageLatency, second.AverageLatency)
	require.Equal(t, first.StartTime, second.StartTime)
	require.GreaterOrEqual(t, second.Uptime, first.Uptime)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCollector()
	c.Record(true, time.Millisecond, "echo")

	snap := c.Snapshot()
	snap.PerTool["echo"] = 99

	require.Equal(t, uint64(1), c.Snapshot().PerTool["echo"])
}

func TestSuccessRate(t *testing.T) {
	c := NewCollector()
	require.Equal(t, 100.0, c.Snapshot().SuccessRate())

	c.Record(true, time.Millisecond, "a")
	c.Record(true, time.Millisecond, "a")
	c.Record(false, time.Millisecond, "a")
	c.Record(false, time.Millisecond, "a")

	require.Equal(t, 50.0, c.Snapshot().SuccessRate())
}

func TestCollectorConcurrentRecord(t *testing.T) {
	// Run with -race: concurrent Record and Snapshot calls must not
	// interleave partial updates.
	c := NewCollector()

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			tool := fmt.Sprintf("tool%d", n%2)
			for range 100 {
				c.Record(n%2 == 0, time.Millisecond, tool)
				_ = c.Snapshot()
			}
		}(i)
	}

	wg.Wait()

	snap := c.Snapshot()
	require.Equal(t, uint64(800), snap.RequestsTotal)
	require.Equal(t, snap.RequestsTotal, snap.RequestsSucceeded+snap.RequestsFailed)
}
