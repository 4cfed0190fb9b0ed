// Package audio wraps libopus for the call's synthetic microphone and the
// remote audio level meter.
package audio

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

const (
	SampleRate = 48000
	Channels   = 2
	// FrameSize is samples per channel in one 20ms frame.
	FrameSize = 960

	maxPacketSize = 1275
	// Opus can carry up to 60ms per frame.
	maxFrameSamples = 2880
)

// OpusEncoder encodes interleaved int16 PCM to Opus
type OpusEncoder struct {
	encoder  *opus.Encoder
	channels int
}

// NewOpusEncoder creates an encoder tuned for voice
func NewOpusEncoder(sampleRate, channels int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(64000); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w", err)
	}

	return &OpusEncoder{encoder: enc, channels: channels}, nil
}

// Encode encodes one frame of PCM
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	data := make([]byte, maxPacketSize)
	n, err := e.encoder.Encode(pcm, data)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}

// OpusDecoder decodes Opus packets to interleaved int16 PCM
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
}

func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &OpusDecoder{decoder: dec, channels: channels}, nil
}

// Decode decodes one packet
func (d *OpusDecoder) Decode(packet []byte) ([]int16, error) {
	pcm := make([]int16, maxFrameSamples*d.channels)
	n, err := d.decoder.Decode(packet, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n*d.channels], nil
}
