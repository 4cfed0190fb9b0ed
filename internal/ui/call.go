package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"example.com/meetease/pkg/peer"
)

const refreshInterval = 250 * time.Millisecond

// Controller is the part of a call the screen drives. *client.Call
// satisfies it.
type Controller interface {
	ToggleAudio() (bool, error)
	ToggleVideo() (bool, error)
	ShareScreen(ctx context.Context) error
	StopScreenShare() error
	Sharing() bool
	LeaveRoom() error
	State() peer.State
	Done() <-chan struct{}
	Err() error
}

type keyMap struct {
	Audio  key.Binding
	Video  key.Binding
	Screen key.Binding
	Leave  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Audio, k.Video, k.Screen, k.Leave}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var callKeys = keyMap{
	Audio:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "mute mic")),
	Video:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "mute camera")),
	Screen: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "share screen")),
	Leave:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "leave")),
}

type tickMsg time.Time

type callEndedMsg struct{ err error }

type shareMsg struct {
	started bool
	err     error
}

// CallModel is the live call screen.
type CallModel struct {
	call    Controller
	roomID  string
	level   func() float64
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	state      peer.State
	audioMuted bool
	videoMuted bool
	sharing    bool
	notice     string
	left       bool
	ended      bool
	err        error
}

// NewCallModel builds the screen for a joined call. level reports the
// remote audio level in dBFS and may be nil.
func NewCallModel(call Controller, roomID string, level func() float64) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		call:    call,
		roomID:  roomID,
		level:   level,
		keys:    callKeys,
		help:    help.New(),
		spinner: s,
		state:   call.State(),
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick(), waitEnded(m.call))
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitEnded(call Controller) tea.Cmd {
	return func() tea.Msg {
		<-call.Done()
		return callEndedMsg{err: call.Err()}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.state = m.call.State()
		m.sharing = m.call.Sharing()
		if m.ended {
			return m, nil
		}
		return m, tick()

	case shareMsg:
		if msg.err != nil {
			m.notice = "screen share: " + msg.err.Error()
		} else {
			m.notice = ""
			m.sharing = msg.started
		}
		return m, nil

	case callEndedMsg:
		m.ended = true
		m.err = msg.err
		m.state = peer.StateClosed
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CallModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		if err := m.call.LeaveRoom(); err != nil {
			m.notice = err.Error()
		}
		m.left = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Audio):
		muted, err := m.call.ToggleAudio()
		m.report(err)
		if err == nil {
			m.audioMuted = muted
		}

	case key.Matches(msg, m.keys.Video):
		muted, err := m.call.ToggleVideo()
		m.report(err)
		if err == nil {
			m.videoMuted = muted
		}

	case key.Matches(msg, m.keys.Screen):
		call := m.call
		if call.Sharing() {
			return m, func() tea.Msg {
				return shareMsg{started: false, err: call.StopScreenShare()}
			}
		}
		m.notice = "starting screen share..."
		return m, func() tea.Msg {
			err := call.ShareScreen(context.Background())
			return shareMsg{started: err == nil, err: err}
		}
	}
	return m, nil
}

func (m *CallModel) report(err error) {
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// Left reports whether the user left with q.
func (m *CallModel) Left() bool { return m.left }

// Err is why the call ended on its own.
func (m *CallModel) Err() error { return m.err }

func (m *CallModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Room %s", IconRoom, m.roomID)))
	b.WriteString("\n")

	switch m.state {
	case peer.StateConnected:
		b.WriteString(SuccessStyle.Render(IconPeer + " connected"))
	case peer.StateClosed:
		b.WriteString(MutedStyle.Render("call ended"))
	default:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), "waiting for the other participant..."))
	}
	b.WriteString("\n\n")

	b.WriteString(indicator(IconMic, "mic", !m.audioMuted))
	b.WriteString("  ")
	b.WriteString(indicator(IconCamera, "camera", !m.videoMuted))
	b.WriteString("  ")
	b.WriteString(indicator(IconScreen, "screen", m.sharing))
	b.WriteString("\n")

	if m.level != nil && m.state == peer.StateConnected {
		b.WriteString("\nremote audio " + LevelStyle.Render(LevelBar(m.level(), 20)))
		b.WriteString("\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + WarningStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return CallBoxStyle.Render(b.String())
}

func indicator(icon, label string, on bool) string {
	if on {
		return icon + " " + OnStyle.Render(label)
	}
	return icon + " " + OffStyle.Render(label)
}

// LevelBar draws a dBFS level from -60 (empty) to 0 (full).
func LevelBar(dbfs float64, width int) string {
	const floor = -60.0
	frac := (dbfs - floor) / -floor
	frac = math.Max(0, math.Min(1, frac))
	filled := int(math.Round(frac * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RunCall shows the call screen until the user leaves or the call ends.
func RunCall(call Controller, roomID string, level func() float64) (*CallModel, error) {
	model := NewCallModel(call, roomID, level)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return model, fmt.Errorf("call screen: %w", err)
	}
	return final.(*CallModel), nil
}
