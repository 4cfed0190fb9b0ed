package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"

	"example.com/meetease/client"
	"example.com/meetease/pkg/peer"
)

// Default configuration values
const (
	DefaultRelayURL           = "ws://localhost:8080/ws"
	DefaultWebURL             = "http://localhost:5173"
	DefaultSTUN               = peer.DefaultSTUNServer
	DefaultNegotiationTimeout = 30 * time.Second

	// MicrophoneTone selects the generated 440 Hz tone instead of a file.
	MicrophoneTone = "tone"
)

// Config holds the meet client configuration
type Config struct {
	// RelayURL is the websocket base of the signaling relay
	RelayURL string

	// WebURL is where room links point
	WebURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Capture: IVF files for camera and screen, an Ogg file or "tone" for
	// the microphone. Empty means synthetic.
	Camera     string
	Microphone string
	Screen     string

	// NegotiationTimeout is negative when disabled
	NegotiationTimeout time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL           string
	WebURL             string
	STUNServer         string
	TURNServer         string
	TURNUser           string
	TURNPass           string
	Camera             string
	Microphone         string
	Screen             string
	NegotiationTimeout string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		RelayURL:   resolve(opts.RelayURL, "MEET_RELAY_URL", DefaultRelayURL),
		WebURL:     resolve(opts.WebURL, "MEET_WEB_URL", DefaultWebURL),
		STUNServer: resolve(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: resolve(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   resolve(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   resolve(opts.TURNPass, "TURN_PASSWORD", ""),
		Camera:     resolve(opts.Camera, "MEET_CAMERA", ""),
		Microphone: resolve(opts.Microphone, "MEET_MICROPHONE", ""),
		Screen:     resolve(opts.Screen, "MEET_SCREEN", ""),
	}

	relay, err := url.Parse(cfg.RelayURL)
	if err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	switch relay.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("relay url %q: scheme must be ws, wss, http or https", cfg.RelayURL)
	}

	timeout, err := parseTimeout(resolve(opts.NegotiationTimeout, "MEET_NEGOTIATION_TIMEOUT", ""))
	if err != nil {
		return nil, err
	}
	cfg.NegotiationTimeout = timeout

	return cfg, nil
}

func resolve(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return fallback
}

// parseTimeout accepts a Go duration or plain seconds. Zero disables the
// timeout.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return DefaultNegotiationTimeout, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		secs, serr := strconv.Atoi(s)
		if serr != nil {
			return 0, fmt.Errorf("negotiation timeout %q: %w", s, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d < 0 {
		return 0, fmt.Errorf("negotiation timeout %q is negative", s)
	}
	if d == 0 {
		return -1, nil
	}
	return d, nil
}

// RoomLink returns the shareable link for a room ID
func (c *Config) RoomLink(roomID string) string {
	return client.RoomLink(c.WebURL, roomID)
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?transport=") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// ICEServers builds the pion ICE server list
func (c *Config) ICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if c.STUNServer != "" {
		servers = append(servers, webrtc.ICEServer{URLs: []string{c.STUNServer}})
	}
	if turn := c.GetTURNServers(); len(turn) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}
