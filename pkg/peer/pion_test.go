package peer

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/meetease/pkg/signaling"
)

func pionSession(t *testing.T, id string, ch signaling.Channel) *Session {
	t.Helper()
	s, err := New(Options{ParticipantID: id, Channel: ch})
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func audioTrack(t *testing.T, id string) webrtc.TrackLocal {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, id, "stream")
	require.NoError(t, err)
	return track
}

func TestPionOfferAnswerRoundTrip(t *testing.T) {
	chA, chB := signaling.Pipe()
	a := pionSession(t, "a", chA)
	b := pionSession(t, "b", chB)

	camA := videoTrack(t, "camera-a")
	require.NoError(t, a.Start(context.Background(), audioTrack(t, "mic-a"), camA))
	require.NoError(t, b.Start(context.Background(), audioTrack(t, "mic-b"), videoTrack(t, "camera-b")))

	require.Eventually(t, func() bool {
		return a.State() == StateConnected && b.State() == StateConnected
	}, 10*time.Second, 20*time.Millisecond)

	assert.Equal(t, RoleOfferer, a.Role())
	assert.Equal(t, RoleAnswerer, b.Role())
	assert.Equal(t, "b", a.RemotePeer())
	assert.Equal(t, "a", b.RemotePeer())

	require.NotNil(t, a.RemoteDescription())
	require.NotNil(t, b.RemoteDescription())
	assert.Equal(t, b.LocalDescription().SDP, a.RemoteDescription().SDP)
	assert.Equal(t, a.LocalDescription().SDP, b.RemoteDescription().SDP)
	assert.Equal(t, webrtc.SDPTypeAnswer, a.RemoteDescription().Type)
	assert.Equal(t, webrtc.SDPTypeOffer, b.RemoteDescription().Type)

	screen := videoTrack(t, "screen-a")
	previous, err := a.ReplaceOutboundVideo(screen)
	require.NoError(t, err)
	assert.Same(t, camA, previous)
	assert.Same(t, screen, a.OutboundVideo())

	require.NoError(t, a.RestoreOutboundVideo())
	assert.Same(t, camA, a.OutboundVideo())
	assert.Equal(t, 1, a.Stats().NegotiationRounds)

	require.NoError(t, a.Stop())
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("remote session did not see the bye")
	}
	assert.ErrorIs(t, b.Err(), ErrPeerLeft)
}
