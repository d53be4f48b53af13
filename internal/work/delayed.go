// internal/work/delayed.go
package work

import (
	"sync"
	"time"
)

// DelayedWork is a job that runs on a Pool after a delay.
//
// At most one instance is pending and at most one is running. The job
// may reschedule itself from within fn.
type DelayedWork struct {
	pool *Pool
	fn   func()

	mu      sync.Mutex
	idle    *sync.Cond
	timer   *time.Timer
	gen     uint64
	pending bool
	running bool
	blocked int
	dead    bool
}

// NewDelayedWork binds fn to pool. Nothing is scheduled yet.
func NewDelayedWork(pool *Pool, fn func()) *DelayedWork {
	w := &DelayedWork{pool: pool, fn: fn}
	w.idle = sync.NewCond(&w.mu)
	return w
}

// Schedule arms the job to run after d unless it is already pending,
// being cancelled or closed. Reports whether it was armed.
func (w *DelayedWork) Schedule(d time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending || w.blocked > 0 || w.dead {
		return false
	}
	w.arm(d)
	return true
}

// Modify re-arms the job to run after d, replacing any pending delay.
// Reports whether a pending instance was replaced.
func (w *DelayedWork) Modify(d time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.blocked > 0 || w.dead {
		return false
	}
	was := w.disarm()
	w.arm(d)
	return was
}

// Pending reports whether the job is armed.
func (w *DelayedWork) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Flush runs a pending job immediately on the caller's goroutine and
// waits for it. Without a pending job it only waits for a running
// instance to finish. Reports whether the job ran.
func (w *DelayedWork) Flush() bool {
	w.mu.Lock()
	if !w.pending || w.dead {
		w.waitIdle()
		w.mu.Unlock()
		return false
	}
	w.disarm()
	w.waitIdle()
	w.running = true
	w.mu.Unlock()

	w.fn()

	w.mu.Lock()
	w.running = false
	w.idle.Broadcast()
	w.mu.Unlock()
	return true
}

// Cancel disarms the job and waits for a running instance to finish.
// Reschedules attempted by that instance are ignored. Reports whether a
// pending instance was removed.
func (w *DelayedWork) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocked++
	was := w.disarm()
	w.waitIdle()
	w.blocked--
	return was
}

// Close cancels the job for good.
func (w *DelayedWork) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dead = true
	w.disarm()
	w.waitIdle()
}

// ---- internals (w.mu held) ----

func (w *DelayedWork) arm(d time.Duration) {
	w.pending = true
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(max(d, 0), func() { w.submit(gen) })
}

func (w *DelayedWork) disarm() bool {
	if !w.pending {
		return false
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	w.pending = false
	return true
}

func (w *DelayedWork) waitIdle() {
	for w.running {
		w.idle.Wait()
	}
}

// ---- execution ----

func (w *DelayedWork) submit(gen uint64) {
	if err := w.pool.Submit(func() { w.run(gen) }); err != nil {
		w.mu.Lock()
		if w.gen == gen {
			w.pending = false
		}
		w.mu.Unlock()
	}
}

func (w *DelayedWork) run(gen uint64) {
	w.mu.Lock()
	w.waitIdle()
	if !w.pending || w.gen != gen {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.running = true
	w.mu.Unlock()

	w.fn()

	w.mu.Lock()
	w.running = false
	w.idle.Broadcast()
	w.mu.Unlock()
}
