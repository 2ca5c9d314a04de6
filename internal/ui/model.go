// ABOUTME: Bubbletea model for the mixer console
// ABOUTME: Lists streams and maps keys to mixer operations
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sendspin/mixbus/pkg/mixer"
)

const (
	refreshInterval = 250 * time.Millisecond
	volumeStep      = 0.1
	maxVolume       = 2.0
)

// Controller is the mixer surface the console drives
type Controller interface {
	GetAllStreamsInfo() []mixer.StreamInfo
	PauseStream(id string)
	ResumeStream(id string)
	StopStream(id string)
	SetStreamVolume(id string, volume float64)
	FadeOutAndPause(id string, d time.Duration) error
	FadeInAndResume(id string, d time.Duration) error
	CrossfadeStreams(outID, inID string, d time.Duration) error
}

// Model represents the console state
type Model struct {
	ctrl Controller
	fade time.Duration

	streams  []mixer.StreamInfo
	selected int

	// Event bus
	connected  bool
	brokerAddr string

	message string
	isError bool

	quitting bool
	quitChan chan struct{}

	width  int
	height int
}

type tickMsg time.Time

// StatusMsg updates the event bus line
type StatusMsg struct {
	Connected  *bool
	BrokerAddr string
}

// NewModel creates a console model; fade is used for f and c
func NewModel(ctrl Controller, fade time.Duration) Model {
	return Model{
		ctrl:     ctrl,
		fade:     fade,
		quitChan: make(chan struct{}, 1),
	}
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh loop
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.refresh()
		return m, tickEvery()
	case StatusMsg:
		if msg.Connected != nil {
			m.connected = *msg.Connected
		}
		if msg.BrokerAddr != "" {
			m.brokerAddr = msg.BrokerAddr
		}
	}

	return m, nil
}

func (m *Model) refresh() {
	m.streams = m.ctrl.GetAllStreamsInfo()
	if m.selected >= len(m.streams) {
		m.selected = len(m.streams) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m Model) current() (mixer.StreamInfo, bool) {
	if m.selected < 0 || m.selected >= len(m.streams) {
		return mixer.StreamInfo{}, false
	}
	return m.streams[m.selected], true
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.streams)-1 {
			m.selected++
		}
		return m, nil
	}

	info, ok := m.current()
	if !ok {
		return m, nil
	}

	var err error
	switch msg.String() {
	case " ":
		if info.Paused {
			m.ctrl.ResumeStream(info.ID)
			m.setMessage("resumed " + info.ID)
		} else {
			m.ctrl.PauseStream(info.ID)
			m.setMessage("paused " + info.ID)
		}
	case "f":
		if info.Paused {
			err = m.ctrl.FadeInAndResume(info.ID, m.fade)
		} else {
			err = m.ctrl.FadeOutAndPause(info.ID, m.fade)
		}
		if err == nil {
			m.setMessage("fading " + info.ID)
		}
	case "+", "=":
		m.ctrl.SetStreamVolume(info.ID, clampVolume(info.BaseVolume+volumeStep))
	case "-":
		m.ctrl.SetStreamVolume(info.ID, clampVolume(info.BaseVolume-volumeStep))
	case "c":
		if len(m.streams) < 2 {
			m.setError("crossfade needs a second stream")
			break
		}
		next := m.streams[(m.selected+1)%len(m.streams)]
		err = m.ctrl.CrossfadeStreams(info.ID, next.ID, m.fade)
		if err == nil {
			m.setMessage(fmt.Sprintf("crossfading %s -> %s", info.ID, next.ID))
		}
	case "x":
		m.ctrl.StopStream(info.ID)
		m.setMessage("stopped " + info.ID)
	default:
		return m, nil
	}

	if err != nil {
		m.setError(err.Error())
	}
	m.refresh()
	return m, nil
}

func (m *Model) setMessage(s string) {
	m.message = s
	m.isError = false
}

func (m *Model) setError(s string) {
	m.message = s
	m.isError = true
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	// Keep steps on tenths
	return float64(int(v*10+0.5)) / 10
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	fadeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

// View renders the console
func (m Model) View() string {
	if m.quitting {
		return "Shutting down mixer...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Mixbus"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Events: "))
	if m.connected {
		b.WriteString(valueStyle.Render("connected to " + m.brokerAddr))
	} else {
		b.WriteString(valueStyle.Render("disconnected"))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("Streams (%d)", len(m.streams))))
	b.WriteString("\n\n")

	if len(m.streams) == 0 {
		b.WriteString(valueStyle.Render("  No streams"))
		b.WriteString("\n")
	}
	for i, info := range m.streams {
		line := renderStream(info)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(valueStyle.Render("  " + line))
		}
		b.WriteString("\n")
		if info.FadeState != mixer.FadeNone {
			b.WriteString(fadeStyle.Render(fmt.Sprintf("    %s [%s] %3.0f%%",
				info.FadeState, renderBar(info.FadeProgress, 1, 10), info.FadeProgress*100)))
			b.WriteString("\n")
		}
	}

	if m.message != "" {
		b.WriteString("\n")
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(valueStyle.Render(m.message))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Select  space:Pause  f:Fade  +/-:Volume  c:Crossfade  x:Stop  q:Quit"))

	return b.String()
}

func renderStream(info mixer.StreamInfo) string {
	state := "playing"
	switch {
	case info.Ended:
		state = "ended"
	case info.Paused:
		state = "paused"
	}

	title := info.Metadata["title"]
	if title == "" {
		title = "(untitled)"
	}

	timing := formatDuration(info.Elapsed)
	if info.Duration > 0 {
		timing += " / -" + formatDuration(info.Remaining)
	}

	return fmt.Sprintf("%-10s %-24s %-8s [%s] %3.0f%%  %s",
		info.ID, truncate(title, 24), state,
		renderBar(info.Volume, maxVolume, 10), info.Volume*100, timing)
}

// Utility functions
func renderBar(value, max float64, width int) string {
	filled := int(value / max * float64(width))
	if filled > width {
		filled = width
	}
	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
