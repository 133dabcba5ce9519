package js

import (
	"sync"
)

// Job is a host completion delivered back to the engine thread.
type Job func() error

// Enqueue delivers the completion of one outstanding operation. It must be called exactly once.
type Enqueue func(Job)

// EventLoop is the host reactor. Background goroutines register outstanding
// operations with EnqueueJob and deliver their completions; the engine thread
// collects ready completions with Poll and runs them one at a time.
type EventLoop struct {
	cond    *sync.Cond
	ready   []Job    // completions waiting for the engine thread
	pending int      // registered operations not yet completed
	cleanup []func() // run in reverse order on Stop
	stopped bool
}

// NewEventLoop create a new EventLoop instance
func NewEventLoop() *EventLoop {
	return &EventLoop{cond: sync.NewCond(new(sync.Mutex))}
}

// EnqueueJob registers an outstanding operation and returns the function that
// delivers its completion. The function is safe to call from any goroutine.
// Usage:
//
//	enqueue := loop.EnqueueJob()
//	go func() {
//		data, err := os.ReadFile(name)
//		enqueue(func() error {
//			if err != nil {
//				return reject(err)
//			}
//			return resolve(string(data))
//		})
//	}()
func (e *EventLoop) EnqueueJob() Enqueue {
	e.cond.L.Lock()
	called := false
	e.pending++
	e.cond.L.Unlock()
	return func(job Job) {
		e.cond.L.Lock()
		defer e.cond.L.Unlock()
		if called {
			panic("Enqueue already called")
		}
		called = true
		e.pending--
		if !e.stopped {
			e.ready = append(e.ready, job)
		}
		e.cond.Signal()
	}
}

// Poll returns the completions that are ready, in delivery order. When none is
// ready but operations are outstanding it blocks until one is delivered.
// It returns nil once the reactor is idle or stopped.
func (e *EventLoop) Poll() []Job {
	e.cond.L.Lock()
	defer e.cond.L.Unlock()
	for len(e.ready) == 0 && e.pending > 0 && !e.stopped {
		e.cond.Wait()
	}
	if e.stopped {
		return nil
	}
	ready := e.ready
	e.ready = nil
	return ready
}

// Idle reports whether no operation is outstanding and no completion is waiting.
func (e *EventLoop) Idle() bool {
	e.cond.L.Lock()
	defer e.cond.L.Unlock()
	return e.stopped || (e.pending == 0 && len(e.ready) == 0)
}

// Pending returns the number of outstanding operations.
func (e *EventLoop) Pending() int {
	e.cond.L.Lock()
	defer e.cond.L.Unlock()
	return e.pending
}

// Cleanup add a function to execute when the loop stops. eg: close resources...
// A cleanup added after Stop runs immediately.
func (e *EventLoop) Cleanup(fn func()) {
	e.cond.L.Lock()
	if e.stopped {
		e.cond.L.Unlock()
		fn()
		return
	}
	e.cleanup = append(e.cleanup, fn)
	e.cond.L.Unlock()
}

// Stop releases the loop: cleanups run once in reverse order, a blocked Poll
// returns, and completions delivered afterward are dropped.
func (e *EventLoop) Stop() {
	e.cond.L.Lock()
	if e.stopped {
		e.cond.L.Unlock()
		return
	}
	e.stopped = true
	e.ready = nil
	cleanup := e.cleanup
	e.cleanup = nil
	e.cond.Broadcast()
	e.cond.L.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		cleanup[i]()
	}
}
