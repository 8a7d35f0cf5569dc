// Package scheduler drives playback: it pulls utterances from the queue,
// hands them to the speech engine, advances the reading position on
// completion, triggers chunk refill, and answers navigation commands.
//
// All mutation runs under one mutex, so queue and position state behave as
// a single logical thread of control. Engine completion callbacks re-enter
// through the same lock; a generation counter discards completions that
// belong to a cancelled playback epoch.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/speakdown/speakdown/internal/chunker"
	"github.com/speakdown/speakdown/internal/interject"
	"github.com/speakdown/speakdown/internal/queue"
	"github.com/speakdown/speakdown/internal/section"
	"github.com/speakdown/speakdown/internal/speech"
	"github.com/speakdown/speakdown/internal/utterance"
)

const (
	// DefaultLookahead is how many utterances stay queued ahead of
	// playback before the chunker is asked for more.
	DefaultLookahead = 3

	// MinSpeed and MaxSpeed clamp the playback rate multiplier.
	MinSpeed = 0.5
	MaxSpeed = 2.0

	// fallbackCharsPerSecond estimates rewind distance when no measured
	// timing exists yet. Roughly 150 words per minute of average prose.
	fallbackCharsPerSecond = 15.0
)

// Observers receives playback signals for presentation layers. Callbacks
// run on the scheduler's goroutine while it holds its lock; they must
// return quickly and must not call back into the Scheduler.
type Observers struct {
	// OnStateChange fires on every lifecycle transition.
	OnStateChange func(old, new State)

	// OnPosition fires when the reading position advances or jumps.
	OnPosition func(pos int)

	// OnSectionChange fires when narration crosses into a new section.
	OnSectionChange func(prev, cur int)

	// OnInterjection fires when an announcement utterance starts playing.
	OnInterjection func(u utterance.Utterance)

	// OnTelemetry fires once per completed utterance.
	OnTelemetry func(t Telemetry)
}

// Telemetry is the per-utterance performance record.
type Telemetry struct {
	Text           string
	Section        int
	Interjection   bool
	Duration       time.Duration
	CharsPerSecond float64
	CompletedAt    time.Time
}

// Snapshot is a point-in-time view of playback for polling consumers.
type Snapshot struct {
	State        State
	Position     int
	Section      int
	Speed        float64
	QueueDepth   int
	RecycleDepth int
}

// Options configures a Scheduler. Zero values use defaults.
type Options struct {
	Lookahead       int
	ChunkSize       int
	RecycleCapacity int

	// ContextReplayDepth is how many recently narrated utterances are
	// replayed after a spoken note completes, so the listener regains
	// their place. Zero disables context replay.
	ContextReplayDepth int

	Observers Observers
}

// Scheduler owns one playback session over one document at a time.
type Scheduler struct {
	mu sync.Mutex

	engine    speech.Engine
	machine   *machine
	queue     *queue.Manager
	coord     *interject.Coordinator
	chunker   *chunker.Chunker
	doc       *section.Document
	observers Observers

	lookahead    int
	chunkSize    int
	contextDepth int

	pos     int
	sect    int
	speed   float64
	gen     uint64 // playback epoch, bumped on every cancellation
	playing *utterance.Utterance
	// retryArmed marks an utterance parked at the queue front because the
	// engine was still tearing down a cancelled request. The cancelled
	// epoch's stale completion is the signal to start it.
	retryArmed bool
	history    []Telemetry
}

// New creates a scheduler bound to an engine. No document is loaded; the
// scheduler starts idle.
func New(engine speech.Engine, opts Options) *Scheduler {
	lookahead := opts.Lookahead
	if lookahead < 1 {
		lookahead = DefaultLookahead
	}
	return &Scheduler{
		engine:       engine,
		machine:      newMachine(),
		queue:        queue.NewManager(opts.RecycleCapacity),
		coord:        interject.NewCoordinator(),
		observers:    opts.Observers,
		lookahead:    lookahead,
		chunkSize:    opts.ChunkSize,
		contextDepth: opts.ContextReplayDepth,
		speed:        1.0,
		sect:         -1,
	}
}

// Load starts a session over doc, resuming from the given character
// offset. Any previous session's queue and replay history are dropped.
// The offset is clamped to the document; at or past end-of-text the
// session completes immediately rather than erroring.
func (s *Scheduler) Load(doc *section.Document, resumeAt int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelInflightLocked()
	s.queue.ResetAll()
	s.coord.Reset()

	s.doc = doc
	s.chunker = chunker.New(doc, s.chunkSize)
	if resumeAt < 0 {
		resumeAt = 0
	}
	if resumeAt > doc.Len() {
		resumeAt = doc.Len()
	}
	s.chunker.SeekTo(resumeAt)
	s.setPositionLocked(resumeAt)
	s.sect = -1

	s.transitionLocked(StatePreparing)
	s.refillLocked()
	log.Debug("document loaded",
		"chars", doc.Len(), "sections", len(doc.Sections), "resumeAt", resumeAt)

	if s.queue.PendingLen() == 0 && s.chunker.Exhausted() {
		s.transitionLocked(StateCompleted)
	}
}

// Play begins or resumes playback. From idle with a document still loaded
// (after a Stop) it re-prepares from the current position. No-op while
// already playing, after completion, or when no document is loaded.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return
	}
	switch s.machine.state() {
	case StateIdle:
		s.chunker.SeekTo(s.pos)
		s.transitionLocked(StatePreparing)
		s.refillLocked()
		if s.queue.PendingLen() == 0 && s.chunker.Exhausted() {
			s.transitionLocked(StateCompleted)
			return
		}
		s.transitionLocked(StatePlaying)
		s.startNextLocked()
	case StatePreparing, StatePaused:
		s.transitionLocked(StatePlaying)
		s.startNextLocked()
	}
}

// Pause suspends playback. The in-flight utterance is cancelled and
// reinserted at the queue front so Play resumes it from its start.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.state() != StatePlaying {
		return
	}
	if u := s.cancelInflightLocked(); u != nil {
		s.queue.InsertFront(*u)
	}
	s.transitionLocked(StatePaused)
}

// Stop ends the session: in-flight synthesis is cancelled, the queue and
// replay history are cleared, and the scheduler returns to idle. The
// document stays loaded, so Play restarts from the stop position. A stale
// completion arriving afterward is ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.machine.state() == StateIdle {
		return
	}
	s.cancelInflightLocked()
	s.queue.ResetAll()
	s.coord.Reset()
	s.transitionLocked(StateIdle)
}

// Rewind jumps back the given number of seconds. Recent playback is
// replayed from the recycle history at urgent priority without
// resynthesis; when history runs short, the position is estimated from
// measured speaking rate and the document is re-chunked. Never rewinds
// past position zero.
func (s *Scheduler) Rewind(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || seconds <= 0 {
		return
	}
	wasPlaying := s.machine.state() == StatePlaying
	interrupted := s.cancelInflightLocked()

	if replay := s.queue.FindReplayUtterances(seconds); len(replay) > 0 {
		// Urgent front inserts keep the replay batch ahead of queued
		// content; equal-priority inserts dequeue in insertion order, so
		// inserting oldest-first preserves chronology.
		if interrupted != nil {
			s.queue.InsertFront(*interrupted)
		}
		for _, u := range replay {
			u.Priority = utterance.PriorityUrgent
			u.Performance = nil
			s.queue.InsertFront(u)
		}
		s.setPositionLocked(replay[0].Start)
		log.Debug("rewind from history", "seconds", seconds, "utterances", len(replay))
	} else {
		target := s.pos - int(seconds*s.charsPerSecondLocked())
		if target < 0 {
			target = 0
		}
		s.queue.ClearMainQueue()
		s.chunker.SeekTo(target)
		s.setPositionLocked(target)
		s.refillLocked()
		log.Debug("rewind by estimate", "seconds", seconds, "target", target)
	}

	if s.machine.state() == StateCompleted {
		s.transitionLocked(StatePreparing)
	}
	if wasPlaying {
		s.transitionLocked(StatePlaying)
		s.startNextLocked()
	}
}

// RepeatLast speaks the most recently completed narration utterance again,
// straight from the replay history, then continues where playback was.
// No-op before anything has been narrated.
func (s *Scheduler) RepeatLast() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return
	}
	last := s.queue.LastMainContentUtterance()
	if last == nil {
		return
	}
	wasPlaying := s.machine.state() == StatePlaying
	if interrupted := s.cancelInflightLocked(); interrupted != nil {
		s.queue.InsertFront(*interrupted)
	}
	u := *last
	u.Priority = utterance.PriorityUrgent
	u.Performance = nil
	s.queue.InsertFront(u)
	s.setPositionLocked(u.Start)
	log.Debug("repeating last utterance", "text", u.Text)

	if s.machine.state() == StateCompleted {
		s.transitionLocked(StatePreparing)
	}
	if wasPlaying {
		s.startNextLocked()
	}
}

// SkipToNextSection jumps to the start of the following section. Clamped:
// a no-op when already in the last section.
func (s *Scheduler) SkipToNextSection() { s.skipTo(+1) }

// SkipToPreviousSection jumps to the start of the previous section, or to
// the start of the current one when already in the first.
func (s *Scheduler) SkipToPreviousSection() { s.skipTo(-1) }

func (s *Scheduler) skipTo(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil || len(s.doc.Sections) == 0 {
		return
	}
	cur := s.doc.SectionAt(s.pos)
	if cur < 0 {
		cur = len(s.doc.Sections) - 1
	}
	target := cur + delta
	if target < 0 {
		target = 0
	}
	if target >= len(s.doc.Sections) {
		return
	}

	wasPlaying := s.machine.state() == StatePlaying
	s.cancelInflightLocked()
	s.queue.ClearMainQueue()
	start := s.doc.Sections[target].Start
	s.chunker.SeekTo(start)
	s.setPositionLocked(start)
	s.refillLocked()
	log.Debug("section skip", "from", cur, "to", target, "pos", start)

	if s.machine.state() == StateCompleted {
		s.transitionLocked(StatePreparing)
	}
	if wasPlaying {
		s.transitionLocked(StatePlaying)
		s.startNextLocked()
	}
}

// SetSpeed sets the playback rate multiplier, clamped to the valid range.
// It applies to subsequently started utterances, not the in-flight one.
func (s *Scheduler) SetSpeed(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rate < MinSpeed {
		rate = MinSpeed
	}
	if rate > MaxSpeed {
		rate = MaxSpeed
	}
	s.speed = rate
}

// Speed returns the current playback rate multiplier.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.state()
}

// Snapshot returns a consistent view of playback for polling consumers.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:        s.machine.state(),
		Position:     s.pos,
		Section:      s.sect,
		Speed:        s.speed,
		QueueDepth:   s.queue.PendingLen(),
		RecycleDepth: s.queue.RecycleLen(),
	}
}

// Telemetry returns the per-utterance performance records collected so
// far, oldest first.
func (s *Scheduler) Telemetry() []Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Telemetry, len(s.history))
	copy(out, s.history)
	return out
}

// QueueStats exposes the queue manager's counters.
func (s *Scheduler) QueueStats() queue.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.GetStats()
}

// Note arms a spoken note to be announced at the next utterance boundary.
func (s *Scheduler) Note(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.Defer(utterance.Event{Kind: utterance.EventNote, Text: text, Section: s.sect})
}

// startNextLocked dequeues and speaks the next utterance, refilling from
// the chunker first. Transitions to completed when nothing remains.
func (s *Scheduler) startNextLocked() {
	s.retryArmed = false
	s.refillLocked()
	for _, a := range s.coord.CollectBoundary(nil, s.queue.PeekNext()) {
		s.queue.InsertFront(a)
	}

	u := s.queue.DequeueNext()
	if u == nil {
		s.transitionLocked(StateCompleted)
		return
	}

	if u.IsInterjection {
		if s.observers.OnInterjection != nil {
			s.observers.OnInterjection(*u)
		}
	} else if u.Section != s.sect {
		prev := s.sect
		s.sect = u.Section
		if s.observers.OnSectionChange != nil {
			s.observers.OnSectionChange(prev, s.sect)
		}
	}

	s.playing = u
	gen := s.gen
	started := *u
	err := s.engine.Speak(speech.Request{
		Text:  u.Text,
		Voice: u.Voice,
		Rate:  s.speed,
	}, func(res speech.Result) {
		s.onFinished(gen, started, res)
	})
	if err != nil {
		s.playing = nil
		if errors.Is(err, speech.ErrEngineBusy) {
			// The engine is still tearing down a cancelled request. Park
			// the utterance; the cancelled epoch's stale completion will
			// signal that the slot is free.
			s.queue.InsertFront(started)
			s.retryArmed = true
			log.Debug("engine busy, retry armed", "text", started.Text)
			return
		}
		log.Error("engine rejected utterance", "error", err)
		s.failLocked()
	}
}

// onFinished is the engine completion callback. Completions from a
// cancelled epoch are dropped so a stale callback can never advance the
// position after a stop or jump.
func (s *Scheduler) onFinished(gen uint64, u utterance.Utterance, res speech.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		log.Debug("dropping stale completion", "text", u.Text)
		// The stale report means the engine just freed its slot; start
		// the utterance parked by an earlier busy rejection.
		if s.retryArmed && s.machine.state() == StatePlaying && s.playing == nil {
			s.startNextLocked()
		}
		return
	}
	s.playing = nil

	if res.Err != nil {
		log.Error("utterance failed", "error", res.Err, "text", u.Text)
		s.failLocked()
		return
	}

	perf := utterance.Measure(len(u.Text), res.Duration, time.Now())
	s.queue.MoveToRecycle(u, perf)
	t := Telemetry{
		Text:           u.Text,
		Section:        u.Section,
		Interjection:   u.IsInterjection,
		Duration:       perf.ActualDuration,
		CharsPerSecond: perf.CharsPerSecond,
		CompletedAt:    perf.CompletedAt,
	}
	s.history = append(s.history, t)
	if s.observers.OnTelemetry != nil {
		s.observers.OnTelemetry(t)
	}

	if !u.IsInterjection {
		s.setPositionLocked(u.End)
	} else if o := u.Metadata.Origin; o != nil && o.Kind == utterance.EventNote {
		// A note cut into the narration out of band; replay the last few
		// narrated utterances so the listener regains their place.
		s.replayContextLocked()
	}

	s.refillLocked()
	for _, a := range s.coord.CollectBoundary(&u, s.queue.PeekNext()) {
		s.queue.InsertFront(a)
	}

	// Back-to-back handoff: starting the next utterance inside the
	// completion handler is what eliminates audible gaps.
	if s.machine.state() == StatePlaying {
		s.startNextLocked()
	}
}

// refillLocked tops the queue up to the lookahead depth from the chunker.
func (s *Scheduler) refillLocked() {
	if s.chunker == nil {
		return
	}
	for s.queue.PendingLen() < s.lookahead && !s.chunker.Exhausted() {
		batch := s.chunker.Next(s.lookahead - s.queue.PendingLen())
		if len(batch) == 0 {
			break
		}
		s.queue.EnqueueAll(batch)
	}
}

// cancelInflightLocked aborts the current utterance, bumps the playback
// epoch so its completion is ignored, and returns it for requeueing.
func (s *Scheduler) cancelInflightLocked() *utterance.Utterance {
	s.gen++
	u := s.playing
	s.playing = nil
	if u != nil {
		s.engine.Cancel()
	}
	return u
}

// replayContextLocked reinserts the last few narrated utterances at urgent
// priority so they play again before queued content. No-op when the replay
// history holds no narration yet.
func (s *Scheduler) replayContextLocked() {
	replay := s.queue.ContextReplayUtterances(s.contextDepth)
	if len(replay) == 0 {
		return
	}
	for _, u := range replay {
		u.Priority = utterance.PriorityUrgent
		u.Performance = nil
		s.queue.InsertFront(u)
	}
	s.setPositionLocked(replay[0].Start)
	log.Debug("context replay", "utterances", len(replay))
}

// failLocked reports a transient engine failure and auto-recovers to idle
// without touching queue or replay invariants.
func (s *Scheduler) failLocked() {
	s.transitionLocked(StateError)
	s.transitionLocked(StateIdle)
}

// charsPerSecondLocked averages measured narration speed, falling back to
// a typical prose rate before any timing data exists.
func (s *Scheduler) charsPerSecondLocked() float64 {
	var total float64
	var n int
	for _, t := range s.history {
		if t.Interjection || t.CharsPerSecond <= 0 {
			continue
		}
		total += t.CharsPerSecond
		n++
	}
	if n == 0 {
		return fallbackCharsPerSecond
	}
	return total / float64(n)
}

func (s *Scheduler) setPositionLocked(pos int) {
	if pos == s.pos {
		return
	}
	s.pos = pos
	if s.observers.OnPosition != nil {
		s.observers.OnPosition(pos)
	}
}

func (s *Scheduler) transitionLocked(to State) {
	old := s.machine.state()
	if old == to {
		return
	}
	if !s.machine.transition(to) {
		log.Warn("invalid state transition", "from", old, "to", to)
		return
	}
	log.Debug("state transition", "from", old, "to", to)
	if s.observers.OnStateChange != nil {
		s.observers.OnStateChange(old, to)
	}
}
