package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/meetease/pkg/peer"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"MEET_RELAY_URL", "MEET_WEB_URL", "STUN_SERVER", "TURN_SERVER",
		"TURN_USERNAME", "TURN_PASSWORD", "MEET_CAMERA", "MEET_MICROPHONE",
		"MEET_SCREEN", "MEET_NEGOTIATION_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, DefaultSTUN, cfg.STUNServer)
	assert.Empty(t, cfg.TURNServer)
	assert.Empty(t, cfg.Camera)
	assert.Equal(t, DefaultNegotiationTimeout, cfg.NegotiationTimeout)
	assert.Equal(t, "http://localhost:5173/room/abc12345", cfg.RoomLink("abc12345"))

	assert.Equal(t, peer.DefaultICEServers, cfg.ICEServers())
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEET_RELAY_URL", "wss://relay.example.com/ws")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")
	t.Setenv("MEET_MICROPHONE", "tone")

	cfg, err := Load(Options{STUNServer: "stun:flag.example.com:3478"})
	require.NoError(t, err)

	assert.Equal(t, "wss://relay.example.com/ws", cfg.RelayURL, "env beats default")
	assert.Equal(t, "stun:flag.example.com:3478", cfg.STUNServer, "flag beats env")
	assert.Equal(t, MicrophoneTone, cfg.Microphone)
}

func TestLoadTURN(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURN_USERNAME", "meet")
	t.Setenv("TURN_PASSWORD", "secret")

	cfg, err := Load(Options{TURNServer: "turn.example.com"})
	require.NoError(t, err)

	servers := cfg.ICEServers()
	require.Len(t, servers, 2)
	assert.Equal(t, []string{
		"turn:turn.example.com:3478?transport=udp",
		"turn:turn.example.com:3478?transport=tcp",
		"turns:turn.example.com:5349?transport=tcp",
	}, servers[1].URLs)
	assert.Equal(t, "meet", servers[1].Username)
	assert.Equal(t, "secret", servers[1].Credential)

	cfg.TURNServer = "turn:turn.example.com:443?transport=tcp"
	assert.Equal(t, []string{cfg.TURNServer}, cfg.GetTURNServers())
}

func TestLoadNegotiationTimeout(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{in: "45s", want: 45 * time.Second},
		{in: "10", want: 10 * time.Second},
		{in: "0", want: -1},
		{in: "-5s", err: true},
		{in: "soon", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("MEET_NEGOTIATION_TIMEOUT", tc.in)

			cfg, err := Load(Options{})
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.NegotiationTimeout)
		})
	}
}

func TestLoadRejectsRelayScheme(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{RelayURL: "ftp://relay.example.com"})
	require.Error(t, err)
}
