// Package interject decides when contextual announcements may cut into the
// narration. Announcements never interrupt an utterance mid-speech: they
// are deferred to the natural completion boundary, then inserted at the
// front of the queue in the announcement voice.
package interject

import (
	"fmt"

	"github.com/speakdown/speakdown/internal/utterance"
)

// Coordinator holds announcements that are waiting for an utterance
// boundary. It is driven entirely by the scheduler's completion events and
// holds no goroutines of its own.
type Coordinator struct {
	// deferred events armed outside a boundary (user notes, external
	// signals), played at the next boundary in arrival order.
	deferred []utterance.Event
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Defer arms an event to be announced at the next utterance boundary.
func (c *Coordinator) Defer(e utterance.Event) {
	c.deferred = append(c.deferred, e)
}

// HasDeferred reports whether any events are waiting for a boundary.
func (c *Coordinator) HasDeferred() bool { return len(c.deferred) > 0 }

// Reset drops any armed events, used on stop or reload.
func (c *Coordinator) Reset() {
	c.deferred = nil
}

// CollectBoundary is called at an utterance boundary with the utterance
// that just finished and the one about to play (either may be nil). It
// consumes pending events exactly once and returns the announcement
// utterances to insert at the queue front, in the order their triggering
// sections occurred:
//
//   - exit events of the finished utterance (a code block just ended),
//   - events deferred since the last boundary,
//   - entry events of the upcoming utterance (a code block is next).
func (c *Coordinator) CollectBoundary(finished, next *utterance.Utterance) []utterance.Utterance {
	var out []utterance.Utterance

	if finished != nil && !finished.IsInterjection {
		remaining := finished.Metadata.Pending[:0]
		for _, e := range finished.Metadata.Pending {
			if e.Kind == utterance.EventCodeBlockEnd {
				out = append(out, c.announcement(e, finished.End))
			} else {
				remaining = append(remaining, e)
			}
		}
		finished.Metadata.Pending = remaining
	}

	if len(c.deferred) > 0 {
		anchor := 0
		if finished != nil {
			anchor = finished.End
		}
		for _, e := range c.deferred {
			out = append(out, c.announcement(e, anchor))
		}
		c.deferred = nil
	}

	if next != nil && !next.IsInterjection {
		remaining := next.Metadata.Pending[:0]
		for _, e := range next.Metadata.Pending {
			if e.Kind == utterance.EventCodeBlockStart {
				out = append(out, c.announcement(e, next.Start))
			} else {
				remaining = append(remaining, e)
			}
		}
		next.Metadata.Pending = remaining
	}

	return out
}

// announcement synthesizes the speakable utterance for an event. The
// announcement voice applies to this single utterance; narration resumes
// with the next one.
func (c *Coordinator) announcement(e utterance.Event, anchor int) utterance.Utterance {
	origin := e
	return utterance.Utterance{
		Text:           announcementText(e),
		Start:          anchor,
		End:            anchor,
		Section:        e.Section,
		IsInterjection: true,
		Priority:       utterance.PriorityInterjection,
		Voice:          utterance.VoiceAnnouncement,
		Metadata: utterance.Metadata{
			Language: e.Language,
			Origin:   &origin,
		},
	}
}

// announcementText renders the spoken form of an event.
func announcementText(e utterance.Event) string {
	switch e.Kind {
	case utterance.EventCodeBlockStart:
		if e.Language != "" {
			return fmt.Sprintf("%s code block begins", e.Language)
		}
		return "code block begins"
	case utterance.EventCodeBlockEnd:
		return "code block ends"
	case utterance.EventNote:
		return e.Text
	default:
		return e.Text
	}
}
