package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type SubtitleMsg struct {
	Original        string
	Translated      string
	SourceLang      string
	TranslateFailed bool
}
type AudioLevelMsg struct{ Level float64 }
type PausedMsg struct{ Paused bool }
type StatusMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type ThresholdMsg struct{ Value float64 }
type tickMsg time.Time

// levelScale maps mean-amplitude energy to a full meter. Speech on a
// loopback source usually peaks around a couple thousand.
const levelScale = 2500.0

// tuiActions are invoked from Update on key presses. They must not
// block; the pipeline methods they call are quick.
type tuiActions struct {
	ThresholdDelta func(delta float64)
	Toggle         func()
	CopyLast       func()
	SelectDevice   func()
}

const historySize = 4

type subtitleEntry struct {
	original   string
	translated string
	sourceLang string
}

type tuiModel struct {
	actions tuiActions

	paused          bool
	frame           int
	audioLevel      float64
	threshold       float64
	count           int
	original        string
	translated      string
	sourceLang      string
	translateFailed bool
	history         []subtitleEntry
	statusLine      string
	deviceLine      string
	copied          bool
	width, height   int
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

var (
	liveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	originalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	transStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	failStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterHotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func NewTUIProgram(actions tuiActions, threshold float64) *tea.Program {
	m := tuiModel{actions: actions, threshold: threshold}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "+":
			if m.actions.ThresholdDelta != nil {
				m.actions.ThresholdDelta(10)
			}
		case "down", "-":
			if m.actions.ThresholdDelta != nil {
				m.actions.ThresholdDelta(-10)
			}
		case " ":
			if m.actions.Toggle != nil {
				m.actions.Toggle()
			}
		case "ctrl+y":
			if m.actions.CopyLast != nil {
				m.actions.CopyLast()
				m.copied = true
			}
		case "ctrl+g":
			if m.actions.SelectDevice != nil {
				m.actions.SelectDevice()
			}
		}

	case tickMsg:
		m.frame++
		// Decay so the meter falls between frames.
		m.audioLevel *= 0.8
		return m, tuiTick()

	case SubtitleMsg:
		if m.original != "" {
			m.history = append(m.history, subtitleEntry{
				original:   m.original,
				translated: m.translated,
				sourceLang: m.sourceLang,
			})
			if len(m.history) > historySize {
				m.history = m.history[1:]
			}
		}
		m.count++
		m.original = msg.Original
		m.translated = msg.Translated
		m.sourceLang = msg.SourceLang
		m.translateFailed = msg.TranslateFailed
		m.copied = false

	case AudioLevelMsg:
		if !m.paused {
			m.audioLevel = m.audioLevel*0.5 + msg.Level*0.5
		}

	case PausedMsg:
		m.paused = msg.Paused
		if m.paused {
			m.audioLevel = 0
		}

	case StatusMsg:
		m.statusLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case ThresholdMsg:
		m.threshold = msg.Value
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	if m.paused {
		b.WriteString(pausedStyle.Render("⏸ PAUSED") + "\n")
	} else {
		b.WriteString(liveStyle.Render("● LIVE") + "\n")
	}

	b.WriteString(m.renderMeter() + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("threshold %.0f (↑/↓ to adjust)", m.threshold)) + "\n")

	if m.statusLine != "" {
		b.WriteString(dimStyle.Render(m.statusLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(dimStyle.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")

	wrapWidth := m.width - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	for _, e := range m.history {
		line := e.original
		if e.translated != "" {
			line += "  ·  " + e.translated
		}
		for _, wrapped := range wrapText(line, wrapWidth) {
			b.WriteString(faintStyle.Render(wrapped) + "\n")
		}
	}
	if len(m.history) > 0 {
		b.WriteString("\n")
	}

	if m.original == "" {
		b.WriteString(dimStyle.Render("Waiting for speech...") + "\n")
	} else {
		b.WriteString(dimStyle.Render(fmt.Sprintf("#%d [%s]", m.count, m.sourceLang)) + "\n")
		for _, line := range wrapText(m.original, wrapWidth) {
			b.WriteString(originalStyle.Render(line) + "\n")
		}
		switch {
		case m.translateFailed:
			b.WriteString(failStyle.Render("(translation unavailable)") + "\n")
		case m.translated != "":
			for i, line := range wrapText(m.translated, wrapWidth) {
				b.WriteString(transStyle.Render(line))
				if i == len(wrapText(m.translated, wrapWidth))-1 && m.copied {
					b.WriteString(" " + copiedStyle.Render("[✓ copied]"))
				}
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("space pause/resume · ctrl+y copy · ctrl+g device · ctrl+c quit") + "\n")
	b.WriteString(faintStyle.Render("duosub " + version))

	return b.String()
}

func (m tuiModel) renderMeter() string {
	const meterWidth = 40

	level := m.audioLevel / levelScale
	if level > 1 {
		level = 1
	}
	filled := int(level * meterWidth)
	thresholdPos := int(m.threshold / levelScale * meterWidth)
	if thresholdPos >= meterWidth {
		thresholdPos = meterWidth - 1
	}

	var b strings.Builder
	for i := 0; i < meterWidth; i++ {
		switch {
		case i == thresholdPos:
			b.WriteString(dimStyle.Render("|"))
		case i < filled && i >= thresholdPos:
			b.WriteString(meterHotStyle.Render("█"))
		case i < filled:
			b.WriteString(meterOnStyle.Render("█"))
		default:
			b.WriteString(faintStyle.Render("·"))
		}
	}
	return b.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	runes := []rune(text)
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}

// tuiSink forwards pipeline events into the Bubble Tea program.
type tuiSink struct{}

func (tuiSink) Subtitle(original, translated, sourceLang string, translateFailed bool) {
	tuiSend(SubtitleMsg{
		Original:        original,
		Translated:      translated,
		SourceLang:      sourceLang,
		TranslateFailed: translateFailed,
	})
}

func (tuiSink) AudioLevel(level float64) { tuiSend(AudioLevelMsg{Level: level}) }
func (tuiSink) Paused(paused bool)       { tuiSend(PausedMsg{Paused: paused}) }
func (tuiSink) StatusLine(text string)   { tuiSend(StatusMsg{Text: text}) }
