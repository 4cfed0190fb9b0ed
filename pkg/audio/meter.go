package audio

import (
	"math"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// SilenceDBFS is reported when no audio has been decoded yet.
const SilenceDBFS = -96.0

// LevelMeter decodes a remote Opus track and keeps its latest RMS level.
type LevelMeter struct {
	decoder *OpusDecoder

	mu      sync.Mutex
	level   float64
	packets int64
}

func NewLevelMeter() (*LevelMeter, error) {
	dec, err := NewOpusDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &LevelMeter{decoder: dec, level: SilenceDBFS}, nil
}

// Watch reads the track until it ends. Run it in its own goroutine.
func (m *LevelMeter) Watch(track *webrtc.TrackRemote) error {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return err
		}
		m.Feed(pkt)
	}
}

// Feed decodes one RTP packet. Undecodable payloads are skipped.
func (m *LevelMeter) Feed(pkt *rtp.Packet) {
	if len(pkt.Payload) == 0 {
		return
	}

	pcm, err := m.decoder.Decode(pkt.Payload)
	if err != nil || len(pcm) == 0 {
		return
	}

	var sum float64
	for _, s := range pcm {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(pcm)))

	level := SilenceDBFS
	if rms > 0 {
		level = math.Max(20*math.Log10(rms), SilenceDBFS)
	}

	m.mu.Lock()
	m.level = level
	m.packets++
	m.mu.Unlock()
}

// Level returns the most recent level in dBFS.
func (m *LevelMeter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *LevelMeter) Packets() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packets
}
