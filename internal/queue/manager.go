// Package queue owns the forward playback queue and the recycle history of
// completed utterances. The forward queue is FIFO with priority front
// insertion; the recycle history is a bounded ring used to reconstruct
// recent playback for instant rewind without resynthesis.
package queue

import (
	"container/heap"
	"time"

	"github.com/speakdown/speakdown/internal/ring"
	"github.com/speakdown/speakdown/internal/utterance"
)

// DefaultRecycleCapacity bounds the replay history.
const DefaultRecycleCapacity = 10

// Stats tracks queue activity for telemetry and debugging.
type Stats struct {
	TotalEnqueued  int64
	TotalDequeued  int64
	TotalRecycled  int64
	FrontInsertion int64
	CurrentSize    int
	PeakSize       int
	LastEnqueue    time.Time
	LastDequeue    time.Time
}

// Manager holds pending utterances and the recycle history. It is not safe
// for concurrent mutation; the scheduler serializes all access.
type Manager struct {
	front   frontHeap
	main    []utterance.Utterance
	recycle *ring.Buffer[utterance.Utterance]
	seq     uint64
	stats   Stats
}

// NewManager creates a manager with the given recycle capacity. Values
// below one fall back to the default.
func NewManager(recycleCapacity int) *Manager {
	if recycleCapacity < 1 {
		recycleCapacity = DefaultRecycleCapacity
	}
	m := &Manager{recycle: ring.New[utterance.Utterance](recycleCapacity)}
	heap.Init(&m.front)
	return m
}

// Enqueue appends an utterance to the back of the main queue.
func (m *Manager) Enqueue(u utterance.Utterance) {
	m.main = append(m.main, u)
	m.noteEnqueue()
}

// EnqueueAll appends utterances in order to the back of the main queue.
func (m *Manager) EnqueueAll(utts []utterance.Utterance) {
	for _, u := range utts {
		m.Enqueue(u)
	}
}

// InsertFront places an utterance ahead of the FIFO order. This is the
// priority preemption mechanism: higher priorities dequeue first, and
// equal-priority insertions keep their insertion order.
func (m *Manager) InsertFront(u utterance.Utterance) {
	m.seq++
	heap.Push(&m.front, frontItem{u: u, seq: m.seq})
	m.stats.FrontInsertion++
	m.noteEnqueue()
}

// DequeueNext pops the next utterance: front insertions first, then the
// main FIFO. Returns nil on an empty queue, which signals "request more
// from the chunker" rather than an error.
func (m *Manager) DequeueNext() *utterance.Utterance {
	var u utterance.Utterance
	switch {
	case m.front.Len() > 0:
		u = heap.Pop(&m.front).(frontItem).u
	case len(m.main) > 0:
		u = m.main[0]
		m.main = m.main[1:]
	default:
		return nil
	}
	m.stats.TotalDequeued++
	m.stats.LastDequeue = time.Now()
	m.stats.CurrentSize = m.pendingLen()
	return &u
}

// PeekNext returns the next utterance without removing it, or nil. The
// returned pointer references the queued element itself, so consuming its
// pending events through it is visible to the queue; it is invalidated by
// the next queue mutation.
func (m *Manager) PeekNext() *utterance.Utterance {
	if m.front.Len() > 0 {
		return &m.front[0].u
	}
	if len(m.main) > 0 {
		return &m.main[0]
	}
	return nil
}

// PendingLen returns the number of queued utterances.
func (m *Manager) PendingLen() int { return m.pendingLen() }

// MoveToRecycle files a finished utterance with its measured performance
// into the replay history, evicting the oldest entry when full.
func (m *Manager) MoveToRecycle(u utterance.Utterance, perf utterance.Performance) {
	p := perf
	u.Performance = &p
	m.recycle.Append(u)
	m.stats.TotalRecycled++
}

// FindReplayUtterances walks the recycle history newest to oldest,
// accumulating measured durations until the requested span is covered or
// the history is exhausted. The matched slice is returned oldest-first so
// it can be re-queued directly. Returns nil when the history is empty.
func (m *Manager) FindReplayUtterances(seconds float64) []utterance.Utterance {
	if m.recycle.IsEmpty() {
		return nil
	}
	var matched []utterance.Utterance
	var accumulated float64
	for _, u := range m.recycle.Reversed() {
		matched = append(matched, u)
		if u.Performance != nil {
			accumulated += u.Performance.ActualDuration.Seconds()
		}
		if accumulated >= seconds {
			break
		}
	}
	// Reverse to chronological order.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// LastMainContentUtterance returns the most recently recycled utterance
// that is not an interjection, used to re-establish context after an
// announcement. Returns nil when no such history exists.
func (m *Manager) LastMainContentUtterance() *utterance.Utterance {
	for _, u := range m.recycle.Reversed() {
		if !u.IsInterjection {
			c := u
			return &c
		}
	}
	return nil
}

// ContextReplayUtterances returns up to depth main-content utterances from
// the recycle history, oldest-first. Fewer are returned when insufficient
// history exists; never an error.
func (m *Manager) ContextReplayUtterances(depth int) []utterance.Utterance {
	if depth <= 0 {
		return nil
	}
	var matched []utterance.Utterance
	for _, u := range m.recycle.Reversed() {
		if u.IsInterjection {
			continue
		}
		matched = append(matched, u)
		if len(matched) == depth {
			break
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// RecycleLen returns the number of entries in the replay history.
func (m *Manager) RecycleLen() int { return m.recycle.Len() }

// ClearMainQueue drops all pending utterances, keeping the replay history.
func (m *Manager) ClearMainQueue() {
	m.front = m.front[:0]
	heap.Init(&m.front)
	m.main = m.main[:0]
	m.stats.CurrentSize = 0
}

// ResetAll drops pending and recycled state entirely, used on stop or
// document reload.
func (m *Manager) ResetAll() {
	m.ClearMainQueue()
	m.recycle.Clear()
	m.seq = 0
}

// GetStats returns a copy of the current statistics.
func (m *Manager) GetStats() Stats {
	s := m.stats
	s.CurrentSize = m.pendingLen()
	return s
}

func (m *Manager) pendingLen() int {
	return m.front.Len() + len(m.main)
}

func (m *Manager) noteEnqueue() {
	m.stats.TotalEnqueued++
	m.stats.LastEnqueue = time.Now()
	size := m.pendingLen()
	m.stats.CurrentSize = size
	if size > m.stats.PeakSize {
		m.stats.PeakSize = size
	}
}
