// Package chunker turns typed content sections into speakable utterances on
// demand. Chunks never cross a section boundary; long prose sections are
// split near sentence boundaries to bound per-utterance latency, and
// skippable sections are replaced by a short placeholder with attached
// interjection events.
package chunker

import (
	"fmt"
	"strings"
	"time"

	"github.com/speakdown/speakdown/internal/section"
	"github.com/speakdown/speakdown/internal/utterance"
)

// DefaultTargetChunkSize is the preferred speakable chunk length in
// characters. Splits are biased toward sentence boundaries, so real chunks
// land near this size rather than exactly on it.
const DefaultTargetChunkSize = 220

// minTargetChunkSize guards against degenerate configurations.
const minTargetChunkSize = 80

// Chunker produces utterances lazily from a document. It holds no mutable
// shared state beyond its own cursor; it is a pure producer invoked on
// demand by the scheduler.
type Chunker struct {
	doc    *section.Document
	target int
	pos    int // next character offset to produce from
	sect   int // index of the section containing pos
}

// New creates a chunker over the document. A targetSize below the minimum
// falls back to the default.
func New(doc *section.Document, targetSize int) *Chunker {
	if targetSize < minTargetChunkSize {
		targetSize = DefaultTargetChunkSize
	}
	return &Chunker{doc: doc, target: targetSize}
}

// SeekTo repositions the cursor to the given character offset, clamped to
// the document. Subsequent chunks are produced from the containing section
// onward.
func (c *Chunker) SeekTo(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > c.doc.Len() {
		pos = c.doc.Len()
	}
	c.pos = pos
	c.sect = len(c.doc.Sections)
	if idx := c.doc.SectionAt(pos); idx >= 0 {
		c.sect = idx
	}
}

// Exhausted reports whether the entire document has been chunked.
func (c *Chunker) Exhausted() bool {
	return c.sect >= len(c.doc.Sections)
}

// Position returns the offset the next produced utterance will start at or
// after.
func (c *Chunker) Position() int { return c.pos }

// Next produces up to max utterances, advancing the cursor. Returns nil
// when the document is exhausted.
func (c *Chunker) Next(max int) []utterance.Utterance {
	var out []utterance.Utterance
	for len(out) < max && c.sect < len(c.doc.Sections) {
		s := c.doc.Sections[c.sect]
		if c.pos < s.Start {
			// Skip the separator gap between sections.
			c.pos = s.Start
		}
		if c.pos >= s.End {
			c.sect++
			continue
		}

		if s.Skippable {
			out = append(out, c.placeholder(s))
			c.pos = s.End
			c.sect++
			continue
		}

		end := nextChunkEnd(c.doc.Text, c.pos, s.End, c.target)
		text := strings.TrimSpace(c.doc.Text[c.pos:end])
		if text != "" {
			out = append(out, utterance.Utterance{
				Text:     text,
				Start:    c.pos,
				End:      end,
				Section:  c.sect,
				Priority: utterance.PriorityNormal,
				Voice:    utterance.VoiceNarration,
				Metadata: utterance.Metadata{Kind: s.Kind},
			})
		}
		c.pos = end
		if c.pos >= s.End {
			c.sect++
		}
	}
	return out
}

// placeholder builds the announcement stand-in for a skippable section,
// with entry and exit events attached for the interjection coordinator.
func (c *Chunker) placeholder(s section.Section) utterance.Utterance {
	lang := NormalizeLanguage(s.Info)
	text := "[code]"
	if lang != "" {
		text = fmt.Sprintf("[%s code]", lang)
	}
	start := c.pos
	if start < s.Start {
		start = s.Start
	}
	return utterance.Utterance{
		Text:     text,
		Start:    start,
		End:      s.End,
		Section:  c.sect,
		Priority: utterance.PriorityNormal,
		Voice:    utterance.VoiceNarration,
		Metadata: utterance.Metadata{
			Kind:      s.Kind,
			Language:  lang,
			Skippable: true,
			Pending: []utterance.Event{
				{Kind: utterance.EventCodeBlockStart, Language: lang, Section: c.sect},
				{Kind: utterance.EventCodeBlockEnd, Language: lang, Section: c.sect},
			},
		},
	}
}

// NormalizeLanguage extracts a speakable language tag from a fence info
// string. Matching is case-insensitive and permissive about symbols so tags
// like "C++" and "c#" survive; anything else is dropped.
func NormalizeLanguage(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	tag := strings.ToLower(fields[0])
	var sb strings.Builder
	for _, r := range tag {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '+', r == '#', r == '.', r == '-':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// EstimateDuration estimates speaking time for text at a typical narration
// rate, used when no measured performance data exists.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	const wordsPerMinute = 150.0
	seconds := float64(words) * 60.0 / wordsPerMinute
	return time.Duration(seconds * float64(time.Second))
}
