package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
)

// Kind is the media kind of a track (audio or video).
type Kind = webrtc.RTPCodecType

const (
	KindAudio = webrtc.RTPCodecTypeAudio
	KindVideo = webrtc.RTPCodecTypeVideo
)

var (
	opusCapability = webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    2,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}
	vp8Capability = webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}
)

// Track is a local capture track. It satisfies webrtc.TrackLocal so it can
// be handed straight to a peer connection sender, and pumps frames from its
// FrameSource at the source's cadence until stopped or the source ends.
type Track struct {
	*webrtc.TrackLocalStaticSample

	source  FrameSource
	enabled atomic.Bool
	logger  *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	ended    chan struct{}

	mu       sync.Mutex
	finished bool
	onEnded  []func()
}

// NewTrack creates a track of the given kind fed by source and starts
// pumping frames. The track starts enabled.
func NewTrack(kind Kind, source FrameSource, streamID string) (*Track, error) {
	var capability webrtc.RTPCodecCapability
	switch kind {
	case KindAudio:
		capability = opusCapability
	case KindVideo:
		capability = vp8Capability
	default:
		return nil, fmt.Errorf("media: unsupported track kind %s", kind)
	}

	id := fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8])
	local, err := webrtc.NewTrackLocalStaticSample(capability, id, streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	t := &Track{
		TrackLocalStaticSample: local,
		source:                 source,
		logger:                 slog.Default().With("track", id),
		stop:                   make(chan struct{}),
		ended:                  make(chan struct{}),
	}
	t.enabled.Store(true)

	go t.pump()
	return t, nil
}

// Enabled reports whether the track is currently sending media.
func (t *Track) Enabled() bool {
	return t.enabled.Load()
}

// SetEnabled mutes or unmutes the track. The track stays attached to any
// sender; muted audio sends silence and muted video sends nothing.
func (t *Track) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Stop ends the track and releases its source. Safe to call more than once.
func (t *Track) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.ended
}

// Ended is closed once the track has stopped for any reason.
func (t *Track) Ended() <-chan struct{} {
	return t.ended
}

// OnEnded registers fn to run once when the track ends. If the track has
// already ended fn runs immediately.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		fn()
		return
	}
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

func (t *Track) pump() {
	defer t.finish()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-timer.C:
		}

		frame, err := t.source.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("frame source failed", "error", err)
			}
			return
		}

		data := frame.Data
		if !t.enabled.Load() {
			data = nil
			if s, ok := t.source.(silencer); ok {
				data = s.Silence()
			}
		}

		if data != nil {
			if err := t.WriteSample(pionmedia.Sample{Data: data, Duration: frame.Duration}); err != nil {
				t.logger.Debug("write sample", "error", err)
			}
		}

		timer.Reset(frame.Duration)
	}
}

func (t *Track) finish() {
	if err := t.source.Close(); err != nil {
		t.logger.Debug("close frame source", "error", err)
	}

	t.mu.Lock()
	t.finished = true
	handlers := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()

	close(t.ended)
	for _, fn := range handlers {
		fn()
	}
}
