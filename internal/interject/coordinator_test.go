package interject

import (
	"strings"
	"testing"

	"github.com/speakdown/speakdown/internal/utterance"
)

func placeholder(lang string, sect int) *utterance.Utterance {
	return &utterance.Utterance{
		Text:    "[" + lang + " code]",
		Section: sect,
		Metadata: utterance.Metadata{
			Skippable: true,
			Language:  lang,
			Pending: []utterance.Event{
				{Kind: utterance.EventCodeBlockStart, Language: lang, Section: sect},
				{Kind: utterance.EventCodeBlockEnd, Language: lang, Section: sect},
			},
		},
	}
}

func TestEntryAnnouncementBeforePlaceholder(t *testing.T) {
	c := NewCoordinator()
	finished := &utterance.Utterance{Text: "prose", End: 40}
	next := placeholder("python", 2)

	got := c.CollectBoundary(finished, next)
	if len(got) != 1 {
		t.Fatalf("got %d announcements, want 1", len(got))
	}
	a := got[0]
	if !strings.Contains(a.Text, "python") {
		t.Errorf("announcement %q should name the language", a.Text)
	}
	if a.Priority != utterance.PriorityInterjection {
		t.Errorf("priority = %s, want interjection", a.Priority)
	}
	if a.Voice != utterance.VoiceAnnouncement {
		t.Errorf("voice = %s, want announcement", a.Voice)
	}
	if !a.IsInterjection {
		t.Error("announcement should be flagged as interjection")
	}

	// The entry event is consumed exactly once; the exit event stays.
	if len(next.Metadata.Pending) != 1 ||
		next.Metadata.Pending[0].Kind != utterance.EventCodeBlockEnd {
		t.Errorf("remaining pending = %v, want only the exit event", next.Metadata.Pending)
	}

	// A second boundary with the same upcoming utterance announces nothing.
	if again := c.CollectBoundary(nil, next); len(again) != 0 {
		t.Errorf("re-collection produced %d announcements, want 0", len(again))
	}
}

func TestExitAnnouncementAfterPlaceholder(t *testing.T) {
	c := NewCoordinator()
	ph := placeholder("go", 1)
	// Entry already consumed at the previous boundary.
	c.CollectBoundary(nil, ph)

	got := c.CollectBoundary(ph, nil)
	if len(got) != 1 {
		t.Fatalf("got %d announcements, want 1", len(got))
	}
	if got[0].Text != "code block ends" {
		t.Errorf("exit announcement = %q, want \"code block ends\"", got[0].Text)
	}
	if len(ph.Metadata.Pending) != 0 {
		t.Errorf("pending events remain after consumption: %v", ph.Metadata.Pending)
	}
}

func TestUntaggedCodeAnnouncement(t *testing.T) {
	c := NewCoordinator()
	next := placeholder("", 0)

	got := c.CollectBoundary(nil, next)
	if len(got) != 1 || got[0].Text != "code block begins" {
		t.Errorf("announcement = %v, want generic \"code block begins\"", got)
	}
}

func TestDeferredNotePlaysAtBoundary(t *testing.T) {
	c := NewCoordinator()
	c.Defer(utterance.Event{Kind: utterance.EventNote, Text: "bookmark saved"})
	if !c.HasDeferred() {
		t.Error("note should be armed")
	}

	finished := &utterance.Utterance{Text: "prose", End: 10}
	got := c.CollectBoundary(finished, nil)
	if len(got) != 1 || got[0].Text != "bookmark saved" {
		t.Errorf("got %v, want the deferred note", got)
	}
	if c.HasDeferred() {
		t.Error("note should be consumed after the boundary")
	}
}

func TestBoundaryOrdering(t *testing.T) {
	// Exit of the finished block plays before the entry of the next one.
	c := NewCoordinator()
	first := placeholder("go", 1)
	second := placeholder("rust", 3)
	c.CollectBoundary(nil, first) // consume first's entry

	got := c.CollectBoundary(first, second)
	if len(got) != 2 {
		t.Fatalf("got %d announcements, want 2", len(got))
	}
	if got[0].Text != "code block ends" {
		t.Errorf("first announcement = %q, want the exit", got[0].Text)
	}
	if !strings.Contains(got[1].Text, "rust") {
		t.Errorf("second announcement = %q, want the rust entry", got[1].Text)
	}
}

func TestInterjectionsCarryNoEvents(t *testing.T) {
	c := NewCoordinator()
	announcement := &utterance.Utterance{
		Text:           "go code block begins",
		IsInterjection: true,
	}
	next := placeholder("go", 1)
	c.CollectBoundary(nil, next) // consume entry

	// Completing the announcement itself must not re-trigger anything.
	if got := c.CollectBoundary(announcement, next); len(got) != 0 {
		t.Errorf("announcement completion produced %v, want nothing", got)
	}
}

func TestReset(t *testing.T) {
	c := NewCoordinator()
	c.Defer(utterance.Event{Kind: utterance.EventNote, Text: "gone"})
	c.Reset()
	if c.HasDeferred() {
		t.Error("Reset should drop armed events")
	}
}
