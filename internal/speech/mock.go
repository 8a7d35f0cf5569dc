package speech

import (
	"sync"
	"time"
)

// MockEngine is a scripted engine for tests. Completion is driven manually
// through CompleteNext/FailNext so tests control exactly when the
// scheduler's completion handler runs.
type MockEngine struct {
	mu          sync.Mutex
	requests    []Request
	pending     func(Result)
	stale       func(Result)
	cancelCount int
	closed      bool
}

// NewMockEngine creates an idle mock engine.
func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

// Speak records the request and holds its completion callback until the
// test fires it.
func (e *MockEngine) Speak(req Request, done func(Result)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.pending != nil {
		return ErrEngineBusy
	}
	e.requests = append(e.requests, req)
	e.pending = done
	return nil
}

// Cancel aborts the in-flight request. The callback moves to a stale slot
// so tests can simulate a completion that races past the cancellation; see
// CompleteStale.
func (e *MockEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelCount++
	e.stale = e.pending
	e.pending = nil
}

// Close marks the engine unusable.
func (e *MockEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.pending = nil
	e.stale = nil
	return nil
}

// CompleteNext fires the held completion callback with the given measured
// duration. Returns false when no request is in flight. The callback runs
// on the caller's goroutine, outside the engine's lock.
func (e *MockEngine) CompleteNext(duration time.Duration) bool {
	e.mu.Lock()
	done := e.pending
	e.pending = nil
	e.mu.Unlock()
	if done == nil {
		return false
	}
	done(Result{Duration: duration})
	return true
}

// FailNext fires the held completion callback with an error.
func (e *MockEngine) FailNext(err error) bool {
	e.mu.Lock()
	done := e.pending
	e.pending = nil
	e.mu.Unlock()
	if done == nil {
		return false
	}
	done(Result{Err: err})
	return true
}

// CompleteStale fires the callback of the most recently cancelled request,
// simulating a completion that arrives after the cancellation. Returns
// false when no cancelled request is held.
func (e *MockEngine) CompleteStale(duration time.Duration) bool {
	e.mu.Lock()
	done := e.stale
	e.stale = nil
	e.mu.Unlock()
	if done == nil {
		return false
	}
	done(Result{Duration: duration})
	return true
}

// Requests returns a copy of every request seen, in order.
func (e *MockEngine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Request, len(e.requests))
	copy(out, e.requests)
	return out
}

// LastRequest returns the most recent request, or a zero Request.
func (e *MockEngine) LastRequest() Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return Request{}
	}
	return e.requests[len(e.requests)-1]
}

// InFlight reports whether a request is awaiting completion.
func (e *MockEngine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// CancelCount returns how many times Cancel was called.
func (e *MockEngine) CancelCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelCount
}
