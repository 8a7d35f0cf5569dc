package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/speakdown/speakdown/internal/scheduler"
)

const statusBarHeight = 2

var (
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#343433", Dark: "#C1C6B2"}).
			Background(lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#353533"})

	stateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	announceStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#8E8D8B", Dark: "#8E8D8B"})

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

const helpLine = "space play/pause · ← rewind · a again · [ prev · ] next · +/- speed · s stop · q quit"

func stateGlyph(s scheduler.State) string {
	switch s {
	case scheduler.StatePlaying:
		return "▶"
	case scheduler.StatePaused:
		return "❚❚"
	case scheduler.StatePreparing:
		return "…"
	case scheduler.StateCompleted:
		return "✓"
	case scheduler.StateError:
		return "!"
	default:
		return "■"
	}
}

// statusView renders the two-line bar under the viewport: playback status,
// then key help.
func (m Model) statusView() string {
	state := stateStyle.Render(stateGlyph(m.snap.State) + " " + m.snap.State.String())

	var parts []string
	if m.doc != nil && len(m.doc.Sections) > 0 {
		cur := m.snap.Section
		if cur < 0 {
			cur = 0
		}
		parts = append(parts, fmt.Sprintf("§ %d/%d", cur+1, len(m.doc.Sections)))
		parts = append(parts, fmt.Sprintf("%s/%s chars",
			humanize.Comma(int64(m.snap.Position)),
			humanize.Comma(int64(m.doc.Len()))))
	}
	parts = append(parts, fmt.Sprintf("%.2gx", m.snap.Speed))
	if m.announcement != "" {
		parts = append(parts, announceStyle.Render("♪ "+m.announcement))
	}
	if m.err != nil {
		parts = append(parts, announceStyle.Render(m.err.Error()))
	}

	info := " " + strings.Join(parts, " · ")
	bar := state + statusBarStyle.
		Width(max(0, m.width-lipgloss.Width(state))).
		Render(info)

	return bar + "\n" + helpStyle.Width(m.width).Render(" "+helpLine)
}
