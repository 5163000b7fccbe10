package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestWorkerPool_Shutdown_WaitsForAllJobs tests that Shutdown blocks until
// every submitted job has executed.
func TestWorkerPool_Shutdown_WaitsForAllJobs(t *testing.T) {
	pool := NewWorkerPool(4, 32)

	var completed atomic.Int32
	for i := 0; i < 32; i++ {
		pool.Submit(func() {
			completed.Add(1)
		})
	}
	pool.Shutdown()

	assert.Equal(t, int32(32), completed.Load())
	assert.Equal(t, 4, pool.Size())
}

// TestWorkerPool_BoundsConcurrency tests that no more jobs run at once
// than there are workers.
func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2, 8)

	var current, peak atomic.Int32
	for i := 0; i < 8; i++ {
		pool.Submit(func() {
			running := current.Add(1)
			for {
				seen := peak.Load()
				if running <= seen || peak.CompareAndSwap(seen, running) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
	}
	pool.Shutdown()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

// TestWorkerPool_QueueDepthRaisedToWorkers tests the queue floor so a full
// submission never deadlocks against a tiny queue.
func TestWorkerPool_QueueDepthRaisedToWorkers(t *testing.T) {
	pool := NewWorkerPool(3, 0)

	var completed atomic.Int32
	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			completed.Add(1)
		})
	}
	pool.Shutdown()

	assert.Equal(t, int32(3), completed.Load())
}
