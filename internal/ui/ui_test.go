package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/meetease/client"
	"example.com/meetease/pkg/peer"
)

type fakeCall struct {
	audioMuted bool
	videoMuted bool
	sharing    bool
	shareErr   error
	left       bool
	state      peer.State
	done       chan struct{}
	err        error
}

func newFakeCall() *fakeCall {
	return &fakeCall{state: peer.StateNegotiating, done: make(chan struct{})}
}

func (f *fakeCall) ToggleAudio() (bool, error) {
	f.audioMuted = !f.audioMuted
	return f.audioMuted, nil
}

func (f *fakeCall) ToggleVideo() (bool, error) {
	f.videoMuted = !f.videoMuted
	return f.videoMuted, nil
}

func (f *fakeCall) ShareScreen(ctx context.Context) error {
	if f.shareErr != nil {
		return f.shareErr
	}
	f.sharing = true
	return nil
}

func (f *fakeCall) StopScreenShare() error {
	f.sharing = false
	return nil
}

func (f *fakeCall) Sharing() bool         { return f.sharing }
func (f *fakeCall) State() peer.State     { return f.state }
func (f *fakeCall) Done() <-chan struct{} { return f.done }
func (f *fakeCall) Err() error            { return f.err }
func (f *fakeCall) LeaveRoom() error      { f.left = true; return nil }

func press(m *CallModel, k string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	return cmd
}

func TestCallModelToggles(t *testing.T) {
	call := newFakeCall()
	m := NewCallModel(call, "abc12345", nil)

	press(m, "a")
	assert.True(t, call.audioMuted)
	assert.True(t, m.audioMuted)

	press(m, "v")
	press(m, "v")
	assert.False(t, call.videoMuted)
	assert.False(t, m.videoMuted)

	view := m.View()
	assert.Contains(t, view, "abc12345")
	assert.Contains(t, view, "waiting for the other participant")
}

func TestCallModelScreenShare(t *testing.T) {
	call := newFakeCall()
	m := NewCallModel(call, "abc12345", nil)

	cmd := press(m, "s")
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.True(t, call.sharing)
	assert.True(t, m.sharing)

	cmd = press(m, "s")
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.False(t, call.sharing)
	assert.False(t, m.sharing)

	call.shareErr = errors.New("display refused")
	cmd = press(m, "s")
	m.Update(cmd())
	assert.False(t, m.sharing)
	assert.Contains(t, m.View(), "display refused")
}

func TestCallModelLeave(t *testing.T) {
	call := newFakeCall()
	m := NewCallModel(call, "abc12345", nil)

	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, call.left)
	assert.True(t, m.Left())
}

func TestCallModelEndsWithCall(t *testing.T) {
	call := newFakeCall()
	call.err = peer.ErrPeerLeft
	close(call.done)
	m := NewCallModel(call, "abc12345", nil)

	msg := waitEnded(call)()
	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.Err(), peer.ErrPeerLeft)
	assert.False(t, m.Left())
}

func TestCallModelShowsLevelWhenConnected(t *testing.T) {
	call := newFakeCall()
	call.state = peer.StateConnected
	m := NewCallModel(call, "abc12345", func() float64 { return 0 })

	m.Update(tickMsg(time.Now()))
	view := m.View()
	assert.Contains(t, view, "connected")
	assert.Contains(t, view, "remote audio")
}

func TestLevelBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), LevelBar(-96, 10))
	assert.Equal(t, strings.Repeat("█", 10), LevelBar(0, 10))
	assert.Equal(t, strings.Repeat("█", 5)+strings.Repeat("░", 5), LevelBar(-30, 10))
}

func TestSummaryView(t *testing.T) {
	view := SummaryView(client.Summary{
		RoomID:        "abc12345",
		ParticipantID: "p-alice",
		RemotePeer:    "p-bob",
		Role:          peer.RoleOfferer,
		Duration:      90 * time.Second,
		AudioMuted:    true,
		Stats:         peer.Stats{CandidatesSent: 3, NegotiationRounds: 1},
		Err:           peer.ErrPeerLeft,
	})

	for _, want := range []string{"abc12345", "p-alice", "p-bob", "offerer", "1m30s", "muted"} {
		assert.Contains(t, view, want)
	}
}
