package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	// Opus frames are 20ms at 48kHz.
	audioFrameDuration = 20 * time.Millisecond
	videoFrameDuration = time.Second / 30

	opusSampleRate = 48000
)

// opusSilence is a single 20ms Opus frame of digital silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Frame is one encoded media frame and how long it plays for.
type Frame struct {
	Data     []byte
	Duration time.Duration
}

// FrameSource produces encoded frames for a Track. ReadFrame returns io.EOF
// when the source has reached its natural end.
type FrameSource interface {
	ReadFrame() (Frame, error)
	Close() error
}

// silencer is implemented by sources that can stand in a muted frame while
// the track is disabled. Sources without it send nothing while disabled.
type silencer interface {
	Silence() []byte
}

// SilenceSource emits Opus silence forever, or for Limit frames if set.
type SilenceSource struct {
	Limit int
	sent  int
}

func (s *SilenceSource) ReadFrame() (Frame, error) {
	if s.Limit > 0 && s.sent >= s.Limit {
		return Frame{}, io.EOF
	}
	s.sent++
	return Frame{Data: opusSilence, Duration: audioFrameDuration}, nil
}

func (s *SilenceSource) Silence() []byte { return opusSilence }

func (s *SilenceSource) Close() error { return nil }

// PatternSource emits a fixed VP8 payload at 30fps. It stands in for a
// camera or screen when no recording is configured.
type PatternSource struct {
	Limit int
	Label string
	sent  int
}

func (p *PatternSource) ReadFrame() (Frame, error) {
	if p.Limit > 0 && p.sent >= p.Limit {
		return Frame{}, io.EOF
	}
	p.sent++
	// 10-byte VP8 keyframe header (320x240) followed by a frame counter so
	// consecutive payloads differ.
	data := []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a, 0x40, 0x01, 0xf0, 0x00}
	data = append(data, byte(p.sent>>8), byte(p.sent))
	return Frame{Data: data, Duration: videoFrameDuration}, nil
}

func (p *PatternSource) Close() error { return nil }

// IVFSource reads VP8 frames from an IVF file.
type IVFSource struct {
	file     *os.File
	reader   *ivfreader.IVFReader
	duration time.Duration
}

// OpenIVF opens an IVF recording. Only VP8 streams are accepted.
func OpenIVF(path string) (*IVFSource, error) {
	f, err := openCaptureFile(path)
	if err != nil {
		return nil, err
	}

	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, path, err)
	}
	if header.FourCC != "VP80" {
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported codec %q", ErrDeviceUnavailable, path, header.FourCC)
	}

	duration := videoFrameDuration
	if header.TimebaseDenominator != 0 {
		duration = time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	}

	return &IVFSource{file: f, reader: reader, duration: duration}, nil
}

func (s *IVFSource) ReadFrame() (Frame, error) {
	data, _, err := s.reader.ParseNextFrame()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data, Duration: s.duration}, nil
}

func (s *IVFSource) Close() error {
	return s.file.Close()
}

// OggSource reads Opus pages from an Ogg file.
type OggSource struct {
	file    *os.File
	reader  *oggreader.OggReader
	granule uint64
}

// OpenOgg opens an Ogg/Opus recording.
func OpenOgg(path string) (*OggSource, error) {
	f, err := openCaptureFile(path)
	if err != nil {
		return nil, err
	}

	reader, _, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, path, err)
	}
	return &OggSource{file: f, reader: reader}, nil
}

func (s *OggSource) ReadFrame() (Frame, error) {
	page, header, err := s.reader.ParseNextPage()
	if err != nil {
		return Frame{}, err
	}

	duration := audioFrameDuration
	if header.GranulePosition > s.granule {
		samples := header.GranulePosition - s.granule
		if s.granule != 0 {
			duration = time.Duration(samples) * time.Second / opusSampleRate
		}
		s.granule = header.GranulePosition
	}
	return Frame{Data: page, Duration: duration}, nil
}

func (s *OggSource) Silence() []byte { return opusSilence }

func (s *OggSource) Close() error {
	return s.file.Close()
}

func openCaptureFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, os.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
}
