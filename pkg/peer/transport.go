package peer

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServer is the public STUN server calls use unless configured
// otherwise.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// DefaultICEServers is the static ICE configuration for Options.ICEServers.
// A session given no servers gathers host candidates only.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{DefaultSTUNServer}},
}

// Sender is the outbound half of an attached track.
type Sender interface {
	Track() webrtc.TrackLocal
	ReplaceTrack(track webrtc.TrackLocal) error
}

// Events is the dispatch table of a transport. It is supplied once when the
// transport is created and never reassigned.
type Events struct {
	OnTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	// OnICECandidate receives nil when gathering is complete.
	OnICECandidate    func(candidate *webrtc.ICECandidateInit)
	OnConnectionState func(state webrtc.PeerConnectionState)
}

// Transport is the peer connection a Session drives.
type Transport interface {
	AddTrack(track webrtc.TrackLocal) (Sender, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	Close() error
}

// TransportFactory creates a transport bound to the given events.
type TransportFactory func(events Events) (Transport, error)

// PionTransport is a Transport backed by a pion PeerConnection.
type PionTransport struct {
	pc *webrtc.PeerConnection
}

var _ Transport = (*PionTransport)(nil)

// PionFactory returns a TransportFactory using the given ICE servers.
func PionFactory(iceServers []webrtc.ICEServer) TransportFactory {
	return func(events Events) (Transport, error) {
		return NewPionTransport(iceServers, events)
	}
}

// NewPionTransport creates a peer connection with Opus and VP8 registered
// and wires events into it. An empty server list gathers host candidates
// only.
func NewPionTransport(iceServers []webrtc.ICEServer, events Events) (*PionTransport, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}
	if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeVP8,
			ClockRate: 90000,
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if events.OnICECandidate == nil {
			return
		}
		if c == nil {
			events.OnICECandidate(nil)
			return
		}
		init := c.ToJSON()
		events.OnICECandidate(&init)
	})
	if events.OnTrack != nil {
		pc.OnTrack(events.OnTrack)
	}
	if events.OnConnectionState != nil {
		pc.OnConnectionStateChange(events.OnConnectionState)
	}

	return &PionTransport{pc: pc}, nil
}

func (t *PionTransport) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}

	// Read and discard RTCP packets
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	return sender, nil
}

func (t *PionTransport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

func (t *PionTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

func (t *PionTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(desc)
}

func (t *PionTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(desc)
}

func (t *PionTransport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

func (t *PionTransport) Close() error {
	return t.pc.Close()
}
