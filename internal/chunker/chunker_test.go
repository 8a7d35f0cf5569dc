package chunker

import (
	"strings"
	"testing"

	"github.com/speakdown/speakdown/internal/section"
	"github.com/speakdown/speakdown/internal/utterance"
)

// buildDoc assembles a document from section contents with the standard
// two-character separator gap.
func buildDoc(parts []section.Section, texts []string) *section.Document {
	var sb strings.Builder
	var sections []section.Section
	for i, text := range texts {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		s := parts[i]
		s.Start = sb.Len()
		sb.WriteString(text)
		s.End = sb.Len()
		sections = append(sections, s)
	}
	return &section.Document{Text: sb.String(), Sections: sections}
}

func TestSectionBoundaryIntegrity(t *testing.T) {
	doc := buildDoc(
		[]section.Section{
			{Kind: section.KindParagraph},
			{Kind: section.KindParagraph},
		},
		[]string{
			"First section first sentence. First section second sentence.",
			"Second section text that continues for a while longer here.",
		},
	)

	c := New(doc, minTargetChunkSize)
	utts := c.Next(100)
	if len(utts) < 2 {
		t.Fatalf("expected at least 2 utterances, got %d", len(utts))
	}

	boundary := doc.Sections[0].End
	for _, u := range utts {
		if u.Start < boundary && u.End > boundary {
			t.Errorf("utterance [%d,%d) crosses section boundary at %d",
				u.Start, u.End, boundary)
		}
	}
}

func TestLongParagraphSplitsAtSentences(t *testing.T) {
	sentence := "This sentence is repeated to make a very long paragraph indeed. "
	text := strings.TrimSpace(strings.Repeat(sentence, 12))
	doc := buildDoc(
		[]section.Section{{Kind: section.KindParagraph}},
		[]string{text},
	)

	c := New(doc, DefaultTargetChunkSize)
	utts := c.Next(100)
	if len(utts) < 2 {
		t.Fatalf("long paragraph should split into multiple chunks, got %d", len(utts))
	}
	for i, u := range utts {
		if !strings.HasSuffix(strings.TrimSpace(u.Text), ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, u.Text)
		}
		if u.Section != 0 {
			t.Errorf("chunk %d section = %d, want 0", i, u.Section)
		}
	}
	// Chunks must tile the section without gaps.
	if utts[0].Start != 0 {
		t.Errorf("first chunk starts at %d, want 0", utts[0].Start)
	}
	for i := 1; i < len(utts); i++ {
		if utts[i].Start != utts[i-1].End {
			t.Errorf("gap between chunk %d end %d and chunk %d start %d",
				i-1, utts[i-1].End, i, utts[i].Start)
		}
	}
}

func TestShortSectionSingleUtterance(t *testing.T) {
	doc := buildDoc(
		[]section.Section{{Kind: section.KindHeader, Level: 1}},
		[]string{"Introduction"},
	)

	utts := New(doc, DefaultTargetChunkSize).Next(10)
	if len(utts) != 1 {
		t.Fatalf("sub-sentence section should yield exactly 1 utterance, got %d", len(utts))
	}
	if utts[0].Text != "Introduction" {
		t.Errorf("Text = %q, want \"Introduction\"", utts[0].Text)
	}
}

func TestCodeBlockPlaceholder(t *testing.T) {
	doc := buildDoc(
		[]section.Section{
			{Kind: section.KindParagraph},
			{Kind: section.KindCodeBlock, Skippable: true, Info: "Python"},
		},
		[]string{
			"Some prose before the code.",
			"print(\"hello\")\nprint(\"world\")",
		},
	)

	utts := New(doc, DefaultTargetChunkSize).Next(10)
	if len(utts) != 2 {
		t.Fatalf("got %d utterances, want 2", len(utts))
	}

	ph := utts[1]
	if ph.Text != "[python code]" {
		t.Errorf("placeholder text = %q, want \"[python code]\"", ph.Text)
	}
	if strings.Contains(ph.Text, "print") {
		t.Error("placeholder must not contain verbatim code")
	}
	if !ph.Metadata.Skippable || ph.Metadata.Language != "python" {
		t.Errorf("metadata = %+v, want skippable python", ph.Metadata)
	}
	if len(ph.Metadata.Pending) != 2 {
		t.Fatalf("pending events = %d, want 2", len(ph.Metadata.Pending))
	}
	if ph.Metadata.Pending[0].Kind != utterance.EventCodeBlockStart ||
		ph.Metadata.Pending[1].Kind != utterance.EventCodeBlockEnd {
		t.Error("pending events should be start then end")
	}
	if ph.End != doc.Sections[1].End {
		t.Errorf("placeholder End = %d, want section end %d", ph.End, doc.Sections[1].End)
	}
}

func TestUntaggedCodeBlock(t *testing.T) {
	doc := buildDoc(
		[]section.Section{{Kind: section.KindCodeBlock, Skippable: true}},
		[]string{"x := 1"},
	)

	utts := New(doc, DefaultTargetChunkSize).Next(10)
	if len(utts) != 1 {
		t.Fatalf("got %d utterances, want 1", len(utts))
	}
	if utts[0].Text != "[code]" {
		t.Errorf("untagged placeholder = %q, want \"[code]\"", utts[0].Text)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Python", "python"},
		{"C++", "c++"},
		{"c#", "c#"},
		{"objective-c", "objective-c"},
		{"python title=example", "python"},
		{"", ""},
		{"   ", ""},
		{"F*&^!", "f"},
	}
	for _, tc := range cases {
		if got := NormalizeLanguage(tc.in); got != tc.want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnterminatedFenceExtendsToEnd(t *testing.T) {
	doc, err := section.Parse([]byte("Intro paragraph here.\n\n```go\nfunc main() {\nfmt.Println(1)\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	utts := New(doc, DefaultTargetChunkSize).Next(10)
	last := utts[len(utts)-1]
	if last.Text != "[go code]" {
		t.Errorf("last utterance = %q, want \"[go code]\"", last.Text)
	}
	if last.End != doc.Len() {
		t.Errorf("unterminated block End = %d, want document end %d", last.End, doc.Len())
	}
}

func TestSeekTo(t *testing.T) {
	doc := buildDoc(
		[]section.Section{
			{Kind: section.KindParagraph},
			{Kind: section.KindParagraph},
		},
		[]string{
			"First section sentence.",
			"Second section sentence.",
		},
	)

	c := New(doc, DefaultTargetChunkSize)
	c.SeekTo(doc.Sections[1].Start)
	utts := c.Next(10)
	if len(utts) != 1 {
		t.Fatalf("got %d utterances after seek, want 1", len(utts))
	}
	if utts[0].Section != 1 {
		t.Errorf("Section = %d, want 1", utts[0].Section)
	}

	// Seeking past the end exhausts the chunker.
	c.SeekTo(doc.Len() + 100)
	if !c.Exhausted() {
		t.Error("chunker should be exhausted after seeking past end")
	}
	if got := c.Next(10); got != nil {
		t.Errorf("Next after end = %v, want nil", got)
	}
}

func TestEstimateDuration(t *testing.T) {
	if d := EstimateDuration(""); d <= 0 {
		t.Error("empty text should still have positive duration")
	}
	short := EstimateDuration("one two three")
	long := EstimateDuration(strings.Repeat("word ", 100))
	if long <= short {
		t.Error("longer text should have longer estimated duration")
	}
}
