package speech

import (
	"strings"
	"sync"
	"time"
)

// defaultSimulatedWPM approximates an average narration pace.
const defaultSimulatedWPM = 150.0

// SimulatedEngine speaks silently: each request completes on a timer sized
// to the text at a configurable words-per-minute pace. Useful for demos and
// machines without a synthesizer installed.
type SimulatedEngine struct {
	wpm float64

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewSimulatedEngine creates a timer-driven engine. A non-positive wpm uses
// the default pace.
func NewSimulatedEngine(wpm float64) *SimulatedEngine {
	if wpm <= 0 {
		wpm = defaultSimulatedWPM
	}
	return &SimulatedEngine{wpm: wpm}
}

// Speak schedules a completion after the simulated speaking time.
func (e *SimulatedEngine) Speak(req Request, done func(Result)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.timer != nil {
		return ErrEngineBusy
	}

	d := e.duration(req)
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		e.mu.Lock()
		if e.timer == t {
			e.timer = nil
		}
		e.mu.Unlock()
		// May still fire after Cancel; callers suppress stale
		// completions per the Engine contract.
		done(Result{Duration: d})
	})
	e.timer = t
	return nil
}

// Cancel stops the pending completion, if any.
func (e *SimulatedEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Close cancels any pending completion and marks the engine unusable.
func (e *SimulatedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.closed = true
	return nil
}

// duration sizes the simulated speaking time to the text and rate.
func (e *SimulatedEngine) duration(req Request) time.Duration {
	words := len(strings.Fields(req.Text))
	if words == 0 {
		words = 1
	}
	rate := req.Rate
	if rate <= 0 {
		rate = 1.0
	}
	seconds := float64(words) * 60.0 / (e.wpm * rate)
	return time.Duration(seconds * float64(time.Second))
}
