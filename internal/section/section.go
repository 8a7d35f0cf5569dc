// Package section models a document as a plain-text buffer with an ordered
// list of typed, contiguous content sections, and extracts that structure
// from markdown.
package section

import (
	"errors"
	"fmt"
)

// Kind identifies the structural type of a content section.
type Kind int

const (
	// KindHeader is a heading of any level.
	KindHeader Kind = iota
	// KindParagraph is a regular prose paragraph.
	KindParagraph
	// KindCodeBlock is a fenced or indented code block.
	KindCodeBlock
	// KindList is a bullet or ordered list.
	KindList
	// KindBlockquote is a quoted block.
	KindBlockquote
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindParagraph:
		return "paragraph"
	case KindCodeBlock:
		return "code"
	case KindList:
		return "list"
	case KindBlockquote:
		return "blockquote"
	default:
		return "unknown"
	}
}

// Section is a typed span of the document's plain-text buffer. Sections are
// immutable once produced, ordered, and non-overlapping.
type Section struct {
	// Start is the inclusive character offset into the plain text.
	Start int

	// End is the exclusive character offset. Always greater than Start.
	End int

	// Kind is the structural type of the span.
	Kind Kind

	// Level is the heading level for KindHeader, zero otherwise.
	Level int

	// Skippable marks technical content that is announced rather than
	// read verbatim.
	Skippable bool

	// Info is the raw fence info string for code blocks ("python",
	// "c++"), empty when the fence carried no tag.
	Info string
}

// Span returns the character length of the section.
func (s Section) Span() int { return s.End - s.Start }

// ErrNoSections indicates a document with no readable content.
var ErrNoSections = errors.New("document contains no sections")

// Document pairs the full plain-text buffer with its ordered sections.
type Document struct {
	Text     string
	Sections []Section
}

// Len returns the length of the plain-text buffer.
func (d *Document) Len() int { return len(d.Text) }

// SectionAt returns the index of the section containing the given character
// offset, or the nearest following section for offsets inside a separator
// gap. Returns -1 when the offset is at or past the end of the document.
func (d *Document) SectionAt(pos int) int {
	if pos < 0 {
		pos = 0
	}
	for i, s := range d.Sections {
		if pos < s.End {
			return i
		}
	}
	return -1
}

// Validate checks the ordering invariant: every section is non-empty and
// starts at or after the previous section's end.
func (d *Document) Validate() error {
	if len(d.Sections) == 0 {
		return ErrNoSections
	}
	prevEnd := 0
	for i, s := range d.Sections {
		if s.End <= s.Start {
			return fmt.Errorf("section %d: end %d not after start %d", i, s.End, s.Start)
		}
		if s.Start < prevEnd {
			return fmt.Errorf("section %d: start %d overlaps previous end %d", i, s.Start, prevEnd)
		}
		if s.End > len(d.Text) {
			return fmt.Errorf("section %d: end %d past text length %d", i, s.End, len(d.Text))
		}
		prevEnd = s.End
	}
	return nil
}
