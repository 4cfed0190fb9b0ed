// Package client is the call controller: it joins a room by wiring local
// capture, the signaling channel and a peer session together, and exposes
// mute, screen share and leave to the UI.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"example.com/meetease/pkg/media"
	"example.com/meetease/pkg/peer"
	"example.com/meetease/pkg/signaling"
)

// DialFunc opens the signaling channel for a room.
type DialFunc func(ctx context.Context, roomID string) (signaling.Channel, error)

type Options struct {
	// RelayURL is the websocket base of the relay, e.g. ws://localhost:8080/ws.
	RelayURL   string
	ICEServers []webrtc.ICEServer

	// Camera captures microphone and camera; Display captures the screen.
	// Both default to synthetic devices.
	Camera      media.Device
	Display     media.Device
	Constraints media.Constraints

	// ParticipantID defaults to a random UUID.
	ParticipantID      string
	NegotiationTimeout time.Duration
	Logger             *slog.Logger

	OnRemoteTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	OnStateChange func(state peer.State)

	// Dial and NewTransport replace the websocket and pion defaults.
	Dial         DialFunc
	NewTransport peer.TransportFactory
}

// Call is one participant's side of a call. A Call joins at most one room;
// once left it cannot be reused.
type Call struct {
	opts    Options
	id      string
	base    *slog.Logger
	log     *slog.Logger
	camera  *media.Source
	display *media.Source
	dial    DialFunc
	done    chan struct{}

	mu            sync.Mutex
	joining       bool
	joined        bool
	startingShare bool
	ended         bool
	roomID        string
	session       *peer.Session
	local         *media.Stream
	screen        *media.Stream
	audioMuted    bool
	videoMuted    bool
	joinedAt      time.Time
	leftAt        time.Time
	err           error
}

func New(opts Options) *Call {
	if opts.ParticipantID == "" {
		opts.ParticipantID = uuid.NewString()
	}
	if opts.Camera == nil {
		opts.Camera = &media.SyntheticDevice{}
	}
	if opts.Display == nil {
		opts.Display = &media.SyntheticDevice{}
	}
	if !opts.Constraints.Audio && !opts.Constraints.Video {
		opts.Constraints = media.Constraints{Audio: true, Video: true}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Call{
		opts:    opts,
		id:      opts.ParticipantID,
		base:    logger,
		log:     logger.With("participant", opts.ParticipantID),
		camera:  media.NewSource(opts.Camera),
		display: media.NewSource(opts.Display),
		dial:    opts.Dial,
		done:    make(chan struct{}),
	}
	if c.dial == nil {
		c.dial = c.dialRelay
	}
	return c
}

func (c *Call) dialRelay(ctx context.Context, roomID string) (signaling.Channel, error) {
	conn, err := signaling.Dial(ctx, c.opts.RelayURL, roomID, signaling.DialOptions{Logger: c.opts.Logger})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// JoinRoom acquires local media, connects to the room and starts
// negotiating. Anything acquired is released again if a later step fails.
func (c *Call) JoinRoom(ctx context.Context, room string) error {
	roomID, err := ParseRoomInput(room)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.ended:
		c.mu.Unlock()
		return ErrCallEnded
	case c.joined || c.joining:
		c.mu.Unlock()
		return ErrAlreadyInCall
	}
	c.joining = true
	c.mu.Unlock()

	session, stream, err := c.connect(ctx, roomID)

	c.mu.Lock()
	c.joining = false
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.joined = true
	c.roomID = roomID
	c.session = session
	c.local = stream
	c.joinedAt = time.Now()
	c.mu.Unlock()

	c.log.Info("joined room", "room", roomID)
	go c.watch(session)
	return nil
}

func (c *Call) connect(ctx context.Context, roomID string) (*peer.Session, *media.Stream, error) {
	stream, err := c.camera.Acquire(ctx, c.opts.Constraints)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire media: %w", err)
	}

	ch, err := c.dial(ctx, roomID)
	if err != nil {
		c.camera.Release(stream)
		return nil, nil, fmt.Errorf("connect to room %s: %w", roomID, err)
	}

	session, err := peer.New(peer.Options{
		ParticipantID:      c.id,
		Channel:            ch,
		NewTransport:       c.opts.NewTransport,
		ICEServers:         c.opts.ICEServers,
		NegotiationTimeout: c.opts.NegotiationTimeout,
		// The session tags its lines with the participant itself.
		Logger:             c.base.With("room", roomID),
		OnRemoteTrack:      c.opts.OnRemoteTrack,
		OnStateChange:      c.opts.OnStateChange,
	})
	if err != nil {
		ch.Close()
		c.camera.Release(stream)
		return nil, nil, err
	}

	tracks := make([]webrtc.TrackLocal, 0, len(stream.Tracks()))
	for _, t := range stream.Tracks() {
		tracks = append(tracks, t)
	}
	if err := session.Start(ctx, tracks...); err != nil {
		session.Stop()
		c.camera.Release(stream)
		return nil, nil, fmt.Errorf("start session: %w", err)
	}
	return session, stream, nil
}

// watch ends the call when the session closes on its own.
func (c *Call) watch(session *peer.Session) {
	<-session.Done()
	if err := session.Err(); err != nil {
		c.log.Warn("call ended", "error", err)
		c.end(err)
	}
}

// LeaveRoom stops the session, then releases capture. Leaving twice is a
// no-op.
func (c *Call) LeaveRoom() error {
	c.mu.Lock()
	joined := c.joined
	c.mu.Unlock()

	if !joined {
		return ErrNotInCall
	}
	c.end(nil)
	return nil
}

func (c *Call) end(cause error) {
	c.mu.Lock()
	if !c.joined || c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.err = cause
	c.leftAt = time.Now()
	session, local, screen, roomID := c.session, c.local, c.screen, c.roomID
	c.screen = nil
	c.mu.Unlock()

	// The session goes first so no late negotiation step can touch a
	// stopped track.
	session.Stop()
	c.display.Release(screen)
	c.camera.Release(local)

	close(c.done)
	c.log.Info("left room", "room", roomID)
}

// ToggleAudio flips the microphone and reports whether it is now muted.
func (c *Call) ToggleAudio() (bool, error) {
	return c.toggle(media.KindAudio)
}

// ToggleVideo flips the camera and reports whether it is now muted.
func (c *Call) ToggleVideo() (bool, error) {
	return c.toggle(media.KindVideo)
}

func (c *Call) toggle(kind media.Kind) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || c.ended {
		return false, ErrNotInCall
	}
	muted := media.ToggleTrackKind(c.local, kind)
	if kind == media.KindAudio {
		c.audioMuted = muted
	} else {
		c.videoMuted = muted
	}
	return muted, nil
}

// ShareScreen captures the display and sends it in place of the camera.
// When the screen track ends on its own the camera is put back.
func (c *Call) ShareScreen(ctx context.Context) error {
	c.mu.Lock()
	if !c.joined || c.ended {
		c.mu.Unlock()
		return ErrNotInCall
	}
	if c.screen != nil || c.startingShare {
		c.mu.Unlock()
		return ErrAlreadySharing
	}
	c.startingShare = true
	session := c.session
	c.mu.Unlock()

	stream, err := c.startShare(ctx, session)

	c.mu.Lock()
	c.startingShare = false
	if err == nil && c.ended {
		err = ErrNotInCall
	}
	if err != nil {
		c.mu.Unlock()
		c.display.Release(stream)
		return err
	}
	c.screen = stream
	c.mu.Unlock()

	c.log.Info("screen share started")
	stream.VideoTrack().OnEnded(func() { c.screenEnded(stream) })
	return nil
}

func (c *Call) startShare(ctx context.Context, session *peer.Session) (*media.Stream, error) {
	stream, err := c.display.Acquire(ctx, media.Constraints{Video: true})
	if err != nil {
		return nil, fmt.Errorf("acquire display: %w", err)
	}
	track := stream.VideoTrack()
	if track == nil {
		return stream, media.ErrNoVideoTrack
	}
	if _, err := session.ReplaceOutboundVideo(track); err != nil {
		return stream, err
	}
	return stream, nil
}

// StopScreenShare puts the camera back and releases the display.
func (c *Call) StopScreenShare() error {
	c.mu.Lock()
	stream, session := c.screen, c.session
	c.screen = nil
	c.mu.Unlock()

	if stream == nil {
		return nil
	}
	err := session.RestoreOutboundVideo()
	c.display.Release(stream)
	c.log.Info("screen share stopped")
	return err
}

func (c *Call) screenEnded(stream *media.Stream) {
	c.mu.Lock()
	if c.screen != stream {
		c.mu.Unlock()
		return
	}
	c.screen = nil
	session := c.session
	c.mu.Unlock()

	if err := session.RestoreOutboundVideo(); err != nil {
		c.log.Warn("camera not restored", "error", err)
	}
	c.display.Release(stream)
	c.log.Info("screen share ended")
}

func (c *Call) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen != nil
}

func (c *Call) ParticipantID() string { return c.id }

func (c *Call) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// State is the negotiation state of the call's session.
func (c *Call) State() peer.State {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return peer.StateIdle
	}
	return session.State()
}

// LocalStream is the camera/microphone stream, for local preview.
func (c *Call) LocalStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// OutboundVideo is the track the remote side currently receives as video.
func (c *Call) OutboundVideo() webrtc.TrackLocal {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.OutboundVideo()
}

// Done is closed when the call has ended, by LeaveRoom or by failure.
func (c *Call) Done() <-chan struct{} { return c.done }

// Err is why the call ended; nil after LeaveRoom.
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Summary describes the call so far.
type Summary struct {
	RoomID        string
	ParticipantID string
	RemotePeer    string
	Role          peer.Role
	State         peer.State
	Duration      time.Duration
	AudioMuted    bool
	VideoMuted    bool
	Sharing       bool
	Stats         peer.Stats
	Err           error
}

func (c *Call) Summary() Summary {
	c.mu.Lock()
	s := Summary{
		RoomID:        c.roomID,
		ParticipantID: c.id,
		AudioMuted:    c.audioMuted,
		VideoMuted:    c.videoMuted,
		Sharing:       c.screen != nil,
		Err:           c.err,
	}
	switch {
	case !c.leftAt.IsZero():
		s.Duration = c.leftAt.Sub(c.joinedAt)
	case !c.joinedAt.IsZero():
		s.Duration = time.Since(c.joinedAt)
	}
	session := c.session
	c.mu.Unlock()

	if session != nil {
		s.RemotePeer = session.RemotePeer()
		s.Role = session.Role()
		s.State = session.State()
		s.Stats = session.Stats()
	}
	return s
}
