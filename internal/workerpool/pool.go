// Package workerpool provides the bounded executor behind segment upload
// dispatch. Uploads are I/O-bound and bursty (several segments can appear in
// one manifest pass); the pool caps concurrent transfers without ever
// blocking the dispatching loop.
package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("workerpool")

// Task is a unit of work submitted to the pool.
type Task func()

// Pool runs submitted tasks on a fixed set of goroutines with a bounded
// queue. Submission is always non-blocking.
type Pool struct {
	queue     chan Task
	wg        sync.WaitGroup
	accepting atomic.Bool
	stopOnce  sync.Once
}

// New starts a pool of workers goroutines with a queue of queueSize.
func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queue: make(chan Task, queueSize)}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Debug("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues a task without blocking. Returns false if the pool has
// shut down or the queue is full; the task is then never run. wg.Add happens
// before the enqueue attempt so Shutdown cannot race past an in-flight
// submission.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected")
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued and in-flight work to
// finish, bounded by ctx. The queue is closed afterwards so workers exit.
func (p *Pool) Shutdown(ctx context.Context) {
	p.stopOnce.Do(func() {
		p.accepting.Store(false)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			log.Debug("worker pool drained")
		case <-ctx.Done():
			log.Warn("worker pool drain timed out")
		}

		close(p.queue)
	})
}

func (p *Pool) worker() {
	for task := range p.queue {
		p.runTask(task)
	}
}

// runTask executes one task with panic recovery; wg.Done pairs with the
// wg.Add in Submit.
func (p *Pool) runTask(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
