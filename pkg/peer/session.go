// Package peer drives one WebRTC peer connection through offer/answer
// negotiation over a signaling channel.
//
// All negotiation steps and locally discovered candidates funnel through a
// single FIFO worker, so no two description commits are ever in flight for
// the same session. Every step re-checks the session generation after each
// transport call and drops its result once the session has been stopped.
package peer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"example.com/meetease/pkg/signaling"
)

const (
	DefaultNegotiationTimeout = 30 * time.Second

	byeTimeout = time.Second
)

type Options struct {
	// ParticipantID identifies this side of the call. The participant with
	// the smaller id makes the offer.
	ParticipantID string
	// Channel is owned by the session from Start on and closed by Stop.
	Channel signaling.Channel

	// NewTransport defaults to a pion transport using ICEServers.
	NewTransport TransportFactory
	ICEServers   []webrtc.ICEServer

	// NegotiationTimeout bounds the time to reach StateConnected. Zero
	// means DefaultNegotiationTimeout, a negative value disables it.
	NegotiationTimeout time.Duration

	Logger        *slog.Logger
	OnRemoteTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	OnStateChange func(state State)
}

// Session is the negotiation state machine of one peer connection. A
// session is used for a single call: once closed it stays closed.
type Session struct {
	id            string
	channel       signaling.Channel
	newTransport  TransportFactory
	timeout       time.Duration
	log           *slog.Logger
	onRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onStateChange func(State)

	steps  *stepQueue
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	state      State
	phase      Phase
	role       Role
	generation uint64
	closed     bool
	err        error
	transport  Transport
	remoteID   string
	greeted    map[string]bool
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription

	// Candidates that arrived before the remote description, and local ones
	// gathered before the local description was committed.
	pendingRemote []webrtc.ICECandidateInit
	pendingLocal  []webrtc.ICECandidateInit

	videoSender Sender
	camera      webrtc.TrackLocal
	stats       Stats
	timer       *time.Timer
}

func New(opts Options) (*Session, error) {
	if opts.ParticipantID == "" {
		return nil, errors.New("peer: participant id is required")
	}
	if opts.Channel == nil {
		return nil, errors.New("peer: signaling channel is required")
	}

	newTransport := opts.NewTransport
	if newTransport == nil {
		newTransport = PionFactory(opts.ICEServers)
	}
	timeout := opts.NegotiationTimeout
	if timeout == 0 {
		timeout = DefaultNegotiationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:            opts.ParticipantID,
		channel:       opts.Channel,
		newTransport:  newTransport,
		timeout:       timeout,
		log:           logger.With("participant", opts.ParticipantID),
		onRemoteTrack: opts.OnRemoteTrack,
		onStateChange: opts.OnStateChange,
		steps:         newStepQueue(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		greeted:       make(map[string]bool),
	}, nil
}

// Start creates the transport, attaches tracks and announces this
// participant on the channel. The first video track becomes the outbound
// camera that RestoreOutboundVideo returns to.
func (s *Session) Start(ctx context.Context, tracks ...webrtc.TrackLocal) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionStarted
	}

	transport, err := s.newTransport(Events{
		OnTrack:           s.handleRemoteTrack,
		OnICECandidate:    s.handleLocalCandidate,
		OnConnectionState: s.handleConnectionState,
	})
	if err != nil {
		s.mu.Unlock()
		err = wrapError("create transport", err, "")
		s.shutdown(err, false)
		return err
	}
	s.transport = transport

	for _, track := range tracks {
		sender, err := transport.AddTrack(track)
		if err != nil {
			s.mu.Unlock()
			err = wrapError("add track", err, track.ID())
			s.shutdown(err, false)
			return err
		}
		if track.Kind() == webrtc.RTPCodecTypeVideo && s.videoSender == nil {
			s.videoSender = sender
			s.camera = track
		}
	}

	s.state = StateNegotiating
	if s.timeout > 0 {
		s.timer = time.AfterFunc(s.timeout, s.negotiationExpired)
	}
	s.mu.Unlock()

	s.log.Debug("session started", "tracks", len(tracks))
	s.notifyState(StateNegotiating)

	go s.steps.run()
	go s.watchChannel()
	s.channel.OnMessage(s.receive)

	hello, err := signaling.NewHello(s.id)
	if err == nil {
		err = s.channel.Send(ctx, hello)
	}
	if err != nil {
		err = wrapError("send hello", err, "")
		s.fail(err)
		return err
	}
	return nil
}

// Stop closes the transport and the channel. It does not wait for a step in
// flight; that step's result is discarded. Stop is idempotent.
func (s *Session) Stop() error {
	s.shutdown(nil, true)
	return nil
}

// ReplaceOutboundVideo swaps the track on the outbound video sender in
// place, without renegotiation, and returns the track it replaced.
func (s *Session) ReplaceOutboundVideo(track webrtc.TrackLocal) (webrtc.TrackLocal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.videoSender == nil {
		return nil, ErrNoVideoSender
	}

	previous := s.videoSender.Track()
	if err := s.videoSender.ReplaceTrack(track); err != nil {
		return nil, wrapError("replace video", err, track.ID())
	}
	s.log.Info("outbound video replaced", "track", track.ID())
	return previous, nil
}

// RestoreOutboundVideo puts the camera track back on the video sender. It
// is a no-op once the session is closed.
func (s *Session) RestoreOutboundVideo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.videoSender == nil || s.videoSender.Track() == s.camera {
		return nil
	}
	if err := s.videoSender.ReplaceTrack(s.camera); err != nil {
		return wrapError("restore video", err, s.camera.ID())
	}
	s.log.Info("outbound video restored", "track", s.camera.ID())
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// RemotePeer is the participant id the session is bound to, if any.
func (s *Session) RemotePeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

func (s *Session) LocalDescription() *webrtc.SessionDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDescription(s.local)
}

func (s *Session) RemoteDescription() *webrtc.SessionDescription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyDescription(s.remote)
}

// OutboundVideo is the track currently on the video sender.
func (s *Session) OutboundVideo() webrtc.TrackLocal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoSender == nil {
		return nil
	}
	return s.videoSender.Track()
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Done is closed when the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err is why the session closed; nil after Stop.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func copyDescription(d *webrtc.SessionDescription) *webrtc.SessionDescription {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (s *Session) fail(err error) {
	s.shutdown(err, !errors.Is(err, ErrPeerLeft))
}

func (s *Session) shutdown(cause error, sayBye bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	started := s.state != StateIdle
	s.closed = true
	s.generation++
	s.err = cause
	s.state = StateClosed
	s.phase = PhaseNone
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	transport := s.transport
	s.mu.Unlock()

	s.steps.stop()

	if started && sayBye {
		if bye, err := signaling.NewBye(s.id); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), byeTimeout)
			if err := s.channel.Send(ctx, bye); err != nil {
				s.log.Debug("bye not sent", "error", err)
			}
			cancel()
		}
	}

	s.cancel()
	if transport != nil {
		if err := transport.Close(); err != nil {
			s.log.Debug("transport close failed", "error", err)
		}
	}
	if err := s.channel.Close(); err != nil {
		s.log.Debug("channel close failed", "error", err)
	}
	close(s.done)

	if cause != nil {
		s.log.Warn("session closed", "error", cause)
	} else {
		s.log.Info("session closed")
	}
	s.notifyState(StateClosed)
}

func (s *Session) notifyState(state State) {
	if s.onStateChange != nil {
		s.onStateChange(state)
	}
}

// live reports whether results of a step begun at gen may still be applied.
func (s *Session) live(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.generation == gen
}

func (s *Session) watchChannel() {
	select {
	case <-s.channel.Done():
		if err := s.channel.Err(); err != nil {
			s.fail(wrapError("signaling", err, ""))
		}
	case <-s.done:
	}
}

func (s *Session) negotiationExpired() {
	s.steps.push(func() {
		if s.State() != StateNegotiating {
			return
		}
		s.fail(wrapError("negotiate", ErrNegotiationTimeout, s.timeout.String()))
	})
}

func (s *Session) markConnected() {
	s.mu.Lock()
	s.state = StateConnected
	s.phase = PhaseNone
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	role, remote := s.role, s.remoteID
	s.mu.Unlock()

	s.log.Info("negotiation complete", "role", role, "remote", remote)
	s.notifyState(StateConnected)
}

// send transmits on the channel. A failed send ends the session.
func (s *Session) send(gen uint64, op string, msg signaling.Message) bool {
	if !s.live(gen) {
		return false
	}
	if err := s.channel.Send(s.ctx, msg); err != nil {
		if s.live(gen) {
			s.fail(wrapError(op, err, ""))
		}
		return false
	}
	return true
}
