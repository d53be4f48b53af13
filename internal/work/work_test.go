// internal/work/work_test.go
package work

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedule_Runs(t *testing.T) {
	pool := NewPool(2)
	defer pool.Close()

	var runs atomic.Int32
	w := NewDelayedWork(pool, func() { runs.Add(1) })
	defer w.Close()

	if !w.Schedule(0) {
		t.Fatalf("expected Schedule to arm")
	}
	waitFor(t, func() bool { return runs.Load() == 1 })
	if w.Pending() {
		t.Fatalf("expected nothing pending after run")
	}
}

func TestSchedule_NoopWhenPending(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	w := NewDelayedWork(pool, func() {})
	defer w.Close()

	if !w.Schedule(time.Hour) {
		t.Fatalf("first Schedule should arm")
	}
	if w.Schedule(0) {
		t.Fatalf("second Schedule should be a no-op")
	}
	if !w.Modify(time.Hour) {
		t.Fatalf("Modify should report the replaced instance")
	}
}

func TestFlush_RunsPendingOnCaller(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	var runs atomic.Int32
	w := NewDelayedWork(pool, func() { runs.Add(1) })
	defer w.Close()

	w.Schedule(time.Hour)
	if !w.Flush() {
		t.Fatalf("expected Flush to run pending work")
	}
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
	if w.Pending() {
		t.Fatalf("Flush should consume the pending instance")
	}
	if w.Flush() {
		t.Fatalf("Flush without pending work should not run")
	}
}

func TestCancel_WaitsForRunning(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	var w *DelayedWork
	w = NewDelayedWork(pool, func() {
		close(started)
		<-release
		finished.Store(true)
		w.Schedule(0)
	})
	defer w.Close()

	w.Schedule(0)
	<-started

	done := make(chan struct{})
	go func() {
		w.Cancel()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Cancel returned while work was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done

	if !finished.Load() {
		t.Fatalf("Cancel returned before work finished")
	}
	if w.Pending() {
		t.Fatalf("self-reschedule during Cancel must be ignored")
	}
}

func TestClose_StopsSelfRescheduling(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	var runs atomic.Int32
	var w *DelayedWork
	w = NewDelayedWork(pool, func() {
		runs.Add(1)
		w.Schedule(time.Millisecond)
	})

	w.Schedule(0)
	waitFor(t, func() bool { return runs.Load() >= 3 })
	w.Close()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Fatalf("work ran after Close")
	}
	if w.Schedule(0) {
		t.Fatalf("Schedule after Close should be a no-op")
	}
}

func TestNoOverlap(t *testing.T) {
	pool := NewPool(4)
	defer pool.Close()

	var active, peak atomic.Int32
	var runs atomic.Int32
	var w *DelayedWork
	w = NewDelayedWork(pool, func() {
		cur := active.Add(1)
		if cur > peak.Load() {
			peak.Store(cur)
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		if runs.Add(1) < 10 {
			w.Schedule(0)
		}
	})
	defer w.Close()

	w.Schedule(0)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Modify(0)
			w.Flush()
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return runs.Load() >= 10 })

	if peak.Load() != 1 {
		t.Fatalf("expected no overlapping runs, peak=%d", peak.Load())
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool := NewPool(1)
	pool.Close()
	if err := pool.Submit(func() {}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestEvery_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ticks atomic.Int32

	done := make(chan struct{})
	go func() {
		Every(ctx, time.Millisecond, func(time.Time) {
			if ticks.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Every did not return after cancel")
	}
}
