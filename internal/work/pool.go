// internal/work/pool.go

// Package work runs deferred jobs on a shared set of goroutines.
// Jobs from different devices may run concurrently; a single
// DelayedWork never overlaps itself.
package work

import (
	"errors"
	"sync"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("work: pool closed")

const queueDepth = 64

// Pool is a fixed set of worker goroutines shared by all devices.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	queue  chan func()
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines. workers < 1 means one.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{queue: make(chan func(), queueDepth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for fn := range p.queue {
		fn()
	}
}

// Submit queues fn. It blocks while the queue is full.
func (p *Pool) Submit(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.queue <- fn
	return nil
}

// Close stops accepting jobs, runs what is queued and waits for the
// workers to exit. Safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
