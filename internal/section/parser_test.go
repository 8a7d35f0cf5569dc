package section

import (
	"strings"
	"testing"
)

const sampleDoc = "# Getting Started\n\n" +
	"This is the first paragraph. It has two sentences.\n\n" +
	"```python\nprint(\"hello\")\n```\n\n" +
	"- first item\n- second item\n\n" +
	"> a quoted thought\n"

func TestParseKindsInOrder(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantKinds := []Kind{KindHeader, KindParagraph, KindCodeBlock, KindList, KindBlockquote}
	if len(doc.Sections) != len(wantKinds) {
		t.Fatalf("got %d sections, want %d", len(doc.Sections), len(wantKinds))
	}
	for i, k := range wantKinds {
		if doc.Sections[i].Kind != k {
			t.Errorf("section %d kind = %s, want %s", i, doc.Sections[i].Kind, k)
		}
	}
}

func TestParseInvariants(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	// Sections must be ordered and non-overlapping.
	for i := 1; i < len(doc.Sections); i++ {
		if doc.Sections[i].Start < doc.Sections[i-1].End {
			t.Errorf("section %d overlaps section %d", i, i-1)
		}
	}
}

func TestParseCodeBlock(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var code *Section
	for i := range doc.Sections {
		if doc.Sections[i].Kind == KindCodeBlock {
			code = &doc.Sections[i]
			break
		}
	}
	if code == nil {
		t.Fatal("no code section found")
	}
	if code.Info != "python" {
		t.Errorf("code Info = %q, want \"python\"", code.Info)
	}
	if !code.Skippable {
		t.Error("code section should be skippable")
	}
	if got := doc.Text[code.Start:code.End]; !strings.Contains(got, "print") {
		t.Errorf("code span = %q, want the raw code content", got)
	}
}

func TestParseHeaderLevel(t *testing.T) {
	doc, err := Parse([]byte("## Second Level\n\nBody text here.\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Sections[0].Kind != KindHeader || doc.Sections[0].Level != 2 {
		t.Errorf("got kind=%s level=%d, want header level 2",
			doc.Sections[0].Kind, doc.Sections[0].Level)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse([]byte("\n\n  \n")); err != ErrNoSections {
		t.Errorf("Parse(empty) error = %v, want ErrNoSections", err)
	}
}

func TestSectionAt(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := doc.SectionAt(0); got != 0 {
		t.Errorf("SectionAt(0) = %d, want 0", got)
	}
	// An offset inside the separator gap resolves to the following section.
	gap := doc.Sections[0].End
	if got := doc.SectionAt(gap); got != 1 {
		t.Errorf("SectionAt(%d) = %d, want 1", gap, got)
	}
	if got := doc.SectionAt(doc.Len()); got != -1 {
		t.Errorf("SectionAt(end) = %d, want -1", got)
	}
	if got := doc.SectionAt(-5); got != 0 {
		t.Errorf("SectionAt(-5) = %d, want 0 (clamped)", got)
	}
}
