// Package utterance defines the speakable unit model: a span of document
// text with scheduling priority, voice selection, and post-playback
// performance data.
package utterance

import (
	"time"

	"github.com/speakdown/speakdown/internal/section"
)

// Priority orders utterances for scheduling. Higher values cut in line.
type Priority int

const (
	// PriorityBackground is for prefetched filler content.
	PriorityBackground Priority = iota

	// PriorityNormal is standard sequential narration.
	PriorityNormal

	// PriorityInterjection is a deferred contextual announcement.
	PriorityInterjection

	// PriorityUrgent is user-initiated navigation (rewind replay).
	PriorityUrgent

	// PriorityCritical is reserved for cancellation notices.
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityNormal:
		return "normal"
	case PriorityInterjection:
		return "interjection"
	case PriorityUrgent:
		return "urgent"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Voice selects the speaking voice for a single utterance.
type Voice int

const (
	// VoiceNarration is the main reading voice.
	VoiceNarration Voice = iota

	// VoiceAnnouncement is the contrasting voice used for interjections.
	VoiceAnnouncement
)

// String returns the lowercase name of the voice.
func (v Voice) String() string {
	if v == VoiceAnnouncement {
		return "announcement"
	}
	return "narration"
}

// EventKind tags an interjection event variant.
type EventKind int

const (
	// EventCodeBlockStart announces entry into a code block. Played
	// before the block's placeholder utterance starts.
	EventCodeBlockStart EventKind = iota

	// EventCodeBlockEnd announces exit from a code block. Played after
	// the block's placeholder utterance completes.
	EventCodeBlockEnd

	// EventNote carries arbitrary announcement text.
	EventNote
)

// Event is a pending interjection attached to an utterance's metadata.
// Each event is consumed exactly once by the interjection coordinator.
type Event struct {
	Kind     EventKind
	Language string // normalized language tag, empty for untagged code
	Section  int    // index of the triggering section
	Text     string // announcement text for EventNote
}

// Metadata carries content context for an utterance.
type Metadata struct {
	Kind      section.Kind
	Language  string
	Skippable bool
	Pending   []Event

	// Origin is the event an announcement utterance was synthesized from.
	// Nil for narration utterances.
	Origin *Event
}

// Performance records measured playback data, absent until the utterance
// finishes playing.
type Performance struct {
	ActualDuration time.Duration
	CharsPerSecond float64
	CompletedAt    time.Time
}

// Measure builds performance data for a completed utterance.
func Measure(textLen int, duration time.Duration, completedAt time.Time) Performance {
	p := Performance{ActualDuration: duration, CompletedAt: completedAt}
	if duration > 0 {
		p.CharsPerSecond = float64(textLen) / duration.Seconds()
	}
	return p
}

// Utterance is one speakable unit of text with its position range in the
// master document. Created by the chunker, owned by the queue manager while
// pending, moved to the recycle history on completion.
type Utterance struct {
	// Text is what the speech engine receives. For skippable sections
	// this is a placeholder, not the section content.
	Text string

	// Start and End are character offsets into the document text.
	Start int
	End   int

	// Section is the index of the originating content section.
	Section int

	// IsInterjection marks announcement utterances that do not advance
	// the reading position.
	IsInterjection bool

	Priority Priority
	Voice    Voice
	Metadata Metadata

	// Performance is nil until playback completes.
	Performance *Performance
}

// Span returns the character length covered by the utterance.
func (u Utterance) Span() int { return u.End - u.Start }
