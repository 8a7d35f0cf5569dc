// Package ui provides the read-along terminal interface: a scrolling
// rendered view of the document with a playback status bar that follows the
// narration.
package ui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/speakdown/speakdown/internal/scheduler"
	"github.com/speakdown/speakdown/internal/section"
	"github.com/speakdown/speakdown/internal/utterance"
)

type (
	// notifyMsg signals that playback state changed and the snapshot
	// should be refreshed.
	notifyMsg struct{}

	// announceMsg carries the text of an interjection as it plays.
	announceMsg string

	// reloadMsg asks for the file to be re-read from disk.
	reloadMsg struct{}
)

// Bridge forwards scheduler observer callbacks into the Bubble Tea message
// loop. Callbacks only post to a buffered channel, so they return promptly
// as the scheduler requires.
type Bridge struct {
	ch chan tea.Msg
}

// NewBridge creates a bridge with room for a burst of signals.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan tea.Msg, 64)}
}

// Observers returns the callback set to hand to scheduler.Options.
func (b *Bridge) Observers() scheduler.Observers {
	return scheduler.Observers{
		OnStateChange:   func(_, _ scheduler.State) { b.post(notifyMsg{}) },
		OnPosition:      func(int) { b.post(notifyMsg{}) },
		OnSectionChange: func(_, _ int) { b.post(notifyMsg{}) },
		OnInterjection:  func(u utterance.Utterance) { b.post(announceMsg(u.Text)) },
		OnTelemetry:     func(scheduler.Telemetry) { b.post(notifyMsg{}) },
	}
}

func (b *Bridge) post(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default: // drop rather than stall the scheduler
	}
}

// Model is the Bubble Tea model for a reading session.
type Model struct {
	cfg     Config
	sched   *scheduler.Scheduler
	doc     *section.Document
	content string

	viewport viewport.Model
	width    int
	height   int
	ready    bool

	bridge  *Bridge
	watcher *fsnotify.Watcher

	snap         scheduler.Snapshot
	announcement string
	err          error
}

// NewProgram assembles the model and wraps it in a Bubble Tea program.
func NewProgram(cfg Config, sched *scheduler.Scheduler, doc *section.Document, content string, bridge *Bridge) *tea.Program {
	m := Model{
		cfg:     cfg.withDefaults(),
		sched:   sched,
		doc:     doc,
		content: content,
		bridge:  bridge,
		snap:    sched.Snapshot(),
	}
	if w, err := fsnotify.NewWatcher(); err == nil {
		m.watcher = w
	} else {
		log.Error("error creating fsnotify watcher", "error", err)
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

// Init starts the observer listener and the file watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.watchFile())
}

// listen blocks on the bridge channel and feeds one signal per command.
func (m Model) listen() tea.Cmd {
	if m.bridge == nil {
		return nil
	}
	return func() tea.Msg { return <-m.bridge.ch }
}

// watchFile waits for the document to change on disk: watch the directory,
// match events on the file itself.
func (m Model) watchFile() tea.Cmd {
	if m.watcher == nil || m.cfg.Path == "" {
		return nil
	}
	dir := filepath.Dir(m.cfg.Path)
	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "dir", dir, "error", err)
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok || event.Name != m.cfg.Path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				return reloadMsg{}
			case err, ok := <-m.watcher.Errors:
				if !ok {
					continue
				}
				log.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-statusBarHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - statusBarHeight
		}
		m.viewport.SetContent(m.render())
		m.followNarration()
		return m, nil

	case notifyMsg:
		m.snap = m.sched.Snapshot()
		m.followNarration()
		return m, m.listen()

	case announceMsg:
		m.announcement = string(msg)
		m.snap = m.sched.Snapshot()
		return m, m.listen()

	case reloadMsg:
		return m.reload()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.sched.Stop()
		if m.watcher != nil {
			_ = m.watcher.Close()
		}
		return m, tea.Quit

	case " ":
		if m.snap.State == scheduler.StatePlaying {
			m.sched.Pause()
		} else {
			m.sched.Play()
		}

	case "s":
		m.sched.Stop()

	case "left", "r":
		m.sched.Rewind(m.cfg.RewindSeconds)

	case "a":
		m.sched.RepeatLast()

	case "]", "n":
		m.sched.SkipToNextSection()

	case "[", "p":
		m.sched.SkipToPreviousSection()

	case "+", "=":
		m.sched.SetSpeed(m.sched.Speed() + m.cfg.SpeedStep)

	case "-":
		m.sched.SetSpeed(m.sched.Speed() - m.cfg.SpeedStep)

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.snap = m.sched.Snapshot()
	return m, nil
}

// reload re-reads the document from disk and restarts the session at the
// nearest valid position.
func (m Model) reload() (tea.Model, tea.Cmd) {
	source, err := os.ReadFile(m.cfg.Path)
	if err != nil {
		m.err = fmt.Errorf("reload: %w", err)
		return m, m.watchFile()
	}
	doc, err := section.Parse(source)
	if err != nil {
		m.err = fmt.Errorf("reload: %w", err)
		return m, m.watchFile()
	}

	wasPlaying := m.snap.State == scheduler.StatePlaying
	resumeAt := m.snap.Position
	if resumeAt > doc.Len() {
		resumeAt = 0
	}
	m.doc = doc
	m.content = string(source)
	m.err = nil
	m.sched.Load(doc, resumeAt)
	if wasPlaying {
		m.sched.Play()
	}
	m.snap = m.sched.Snapshot()
	if m.ready {
		m.viewport.SetContent(m.render())
	}
	log.Info("document reloaded", "path", m.cfg.Path, "resumeAt", resumeAt)
	return m, m.watchFile()
}

// render produces the on-screen document text.
func (m Model) render() string {
	if !m.cfg.GlamourEnabled {
		return m.content
	}
	width := m.width
	if m.cfg.GlamourMaxWidth > 0 && int(m.cfg.GlamourMaxWidth) < width {
		width = int(m.cfg.GlamourMaxWidth)
	}
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	}
	if m.cfg.GlamourStyle == "auto" || m.cfg.GlamourStyle == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(m.cfg.GlamourStyle))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Error("glamour renderer", "error", err)
		return m.content
	}
	out, err := r.Render(m.content)
	if err != nil {
		log.Error("glamour render", "error", err)
		return m.content
	}
	return out
}

// followNarration keeps the narrated region roughly centered in view.
func (m *Model) followNarration() {
	if !m.ready || m.doc == nil || m.doc.Len() == 0 {
		return
	}
	frac := float64(m.snap.Position) / float64(m.doc.Len())
	target := int(frac*float64(m.viewport.TotalLineCount())) - m.viewport.Height/2
	if target < 0 {
		target = 0
	}
	m.viewport.SetYOffset(target)
}

// View renders the document plus the status bar.
func (m Model) View() string {
	if !m.ready {
		return "\n  loading…"
	}
	return m.viewport.View() + "\n" + m.statusView()
}
