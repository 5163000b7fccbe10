package utils

import (
	"sync"
)

// Job represents one unit of work executed by the pool.
type Job struct {
	Task func()
}

// WorkerPool executes jobs across a fixed number of workers. The queue is
// sized by the caller so an entire batch can be submitted before any worker
// finishes, keeping the submitting goroutine free to wait for completion.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	waitGroup sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of workers and queue
// capacity. A queueDepth smaller than workers is raised to workers.
func NewWorkerPool(workers, queueDepth int) *WorkerPool {
	if queueDepth < workers {
		queueDepth = workers
	}

	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, queueDepth),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue until it is closed.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		job.Task()
	}
}

// Submit adds a new job to the pool.
func (wp *WorkerPool) Submit(task func()) {
	wp.jobQueue <- Job{Task: task}
}

// Size returns the number of workers in the pool.
func (wp *WorkerPool) Size() int {
	return wp.workers
}

// Shutdown closes the queue and blocks until every submitted job has run.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
