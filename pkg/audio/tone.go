package audio

import (
	"math"
	"time"

	"example.com/meetease/pkg/media"
)

// ToneSource is a synthetic microphone: a sine tone Opus-encoded in 20ms
// frames. A zero Frequency produces silence.
type ToneSource struct {
	Frequency float64
	// Amplitude is a fraction of full scale, 0..1.
	Amplitude float64

	encoder *OpusEncoder
	phase   float64
	pcm     []int16
	silence []byte
}

// NewToneSource builds a tone at freq Hz and the given amplitude.
func NewToneSource(freq, amplitude float64) (*ToneSource, error) {
	enc, err := NewOpusEncoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}

	silence, err := enc.Encode(make([]int16, FrameSize*Channels))
	if err != nil {
		return nil, err
	}

	return &ToneSource{
		Frequency: freq,
		Amplitude: amplitude,
		encoder:   enc,
		pcm:       make([]int16, FrameSize*Channels),
		silence:   silence,
	}, nil
}

func (s *ToneSource) ReadFrame() (media.Frame, error) {
	step := 2 * math.Pi * s.Frequency / SampleRate
	peak := s.Amplitude * math.MaxInt16

	for i := 0; i < FrameSize; i++ {
		sample := int16(peak * math.Sin(s.phase))
		s.pcm[i*Channels] = sample
		s.pcm[i*Channels+1] = sample
		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}

	data, err := s.encoder.Encode(s.pcm)
	if err != nil {
		return media.Frame{}, err
	}
	return media.Frame{Data: data, Duration: 20 * time.Millisecond}, nil
}

// Silence is sent in place of the tone while the track is muted.
func (s *ToneSource) Silence() []byte {
	return s.silence
}

func (s *ToneSource) Close() error { return nil }
