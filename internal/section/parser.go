package section

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Parse converts markdown into a Document: a plain-text buffer plus the
// ordered section list over it. Sections are separated by a two-character
// gap in the buffer so offsets stay contiguous in section order without
// adjacent sections running together when spoken.
func Parse(source []byte) (*Document, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	var sections []Section

	add := func(kind Kind, level int, info, content string, skippable bool) {
		content = strings.TrimRight(content, "\n")
		if strings.TrimSpace(content) == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		start := b.Len()
		b.WriteString(content)
		sections = append(sections, Section{
			Start:     start,
			End:       b.Len(),
			Kind:      kind,
			Level:     level,
			Skippable: skippable,
			Info:      info,
		})
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			add(KindHeader, n.Level, "", inlineText(n, source), false)
		case *ast.Paragraph, *ast.TextBlock:
			add(KindParagraph, 0, "", inlineText(node, source), false)
		case *ast.FencedCodeBlock:
			info := ""
			if lang := n.Language(source); lang != nil {
				info = string(lang)
			}
			add(KindCodeBlock, 0, info, blockLines(n, source), true)
		case *ast.CodeBlock:
			add(KindCodeBlock, 0, "", blockLines(node, source), true)
		case *ast.List:
			add(KindList, 0, "", listText(n, source), false)
		case *ast.Blockquote:
			add(KindBlockquote, 0, "", inlineText(n, source), false)
		default:
			// Thematic breaks, raw HTML and other non-speakable
			// blocks produce no section.
		}
	}

	if len(sections) == 0 {
		return nil, ErrNoSections
	}
	return &Document{Text: b.String(), Sections: sections}, nil
}

// inlineText flattens the inline content of a block subtree into plain
// text, dropping markdown formatting.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte(' ')
				}
			case *ast.String:
				sb.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(node)
	return strings.TrimSpace(sb.String())
}

// blockLines returns the raw source lines of a leaf block, used for code
// block content.
func blockLines(node ast.Node, source []byte) string {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// listText joins the items of a list, one item per line.
func listText(list *ast.List, source []byte) string {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		if t := inlineText(item, source); t != "" {
			items = append(items, t)
		}
	}
	return strings.Join(items, "\n")
}
