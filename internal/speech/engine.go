// Package speech defines the speech engine boundary: an asynchronous
// primitive that accepts text plus voice parameters and reports completion
// with measured timing. The scheduler treats engines as black boxes.
package speech

import (
	"errors"
	"time"

	"github.com/speakdown/speakdown/internal/utterance"
)

// Common engine errors.
var (
	// ErrEngineClosed is returned when speaking through a closed engine.
	ErrEngineClosed = errors.New("speech engine is closed")

	// ErrEngineBusy is returned when an engine that plays one request at
	// a time receives a second one.
	ErrEngineBusy = errors.New("speech engine is busy")

	// ErrSynthesisFailed wraps synthesis subprocess failures.
	ErrSynthesisFailed = errors.New("synthesis failed")
)

// Request is one synthesis-and-playback job.
type Request struct {
	Text  string
	Voice utterance.Voice
	Rate  float64 // speed multiplier, 1.0 = normal
}

// Result reports the outcome of a request.
type Result struct {
	// Duration is the measured playback time. Zero when Err is set.
	Duration time.Duration
	Err      error
}

// Engine synthesizes and plays one request at a time.
//
// Speak must return promptly; done is invoked exactly once from a different
// goroutine when playback finishes or fails, never from within Speak
// itself. A done callback may still fire after Cancel: callers suppress
// stale completions themselves.
type Engine interface {
	Speak(req Request, done func(Result)) error

	// Cancel aborts the in-flight request, if any.
	Cancel()

	// Close releases engine resources. The engine is unusable afterward.
	Close() error
}
