package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SyntheticDevice produces generated frames. Audio and Video build a fresh
// FrameSource per capture; nil means Opus silence and a VP8 test pattern.
// Err, when set, is returned from every Open to simulate a refused device.
type SyntheticDevice struct {
	Audio func() FrameSource
	Video func() FrameSource
	Err   error
}

func (d *SyntheticDevice) Open(ctx context.Context, c Constraints) (*Stream, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audio := d.Audio
	if audio == nil {
		audio = func() FrameSource { return &SilenceSource{} }
	}
	video := d.Video
	if video == nil {
		video = func() FrameSource { return &PatternSource{} }
	}

	var sources []kindSource
	if c.Audio {
		sources = append(sources, kindSource{KindAudio, audio()})
	}
	if c.Video {
		sources = append(sources, kindSource{KindVideo, video()})
	}
	return buildStream(sources)
}

// FileDevice replays recordings: VideoPath is an IVF (VP8) file and
// AudioPath an Ogg (Opus) file. An empty path falls back to the synthetic
// source for that kind. NewAudio, when set, builds the microphone source
// instead of AudioPath.
type FileDevice struct {
	VideoPath string
	AudioPath string
	NewAudio  func() (FrameSource, error)
}

func (d *FileDevice) Open(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sources []kindSource
	closeAll := func() {
		for _, s := range sources {
			s.source.Close()
		}
	}

	if c.Audio {
		var src FrameSource = &SilenceSource{}
		switch {
		case d.NewAudio != nil:
			generated, err := d.NewAudio()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
			}
			src = generated
		case d.AudioPath != "":
			ogg, err := OpenOgg(d.AudioPath)
			if err != nil {
				return nil, err
			}
			src = ogg
		}
		sources = append(sources, kindSource{KindAudio, src})
	}

	if c.Video {
		var src FrameSource = &PatternSource{}
		if d.VideoPath != "" {
			ivf, err := OpenIVF(d.VideoPath)
			if err != nil {
				closeAll()
				return nil, err
			}
			src = ivf
		}
		sources = append(sources, kindSource{KindVideo, src})
	}

	return buildStream(sources)
}

type kindSource struct {
	kind   Kind
	source FrameSource
}

func buildStream(sources []kindSource) (*Stream, error) {
	streamID := "stream-" + uuid.NewString()[:8]

	var tracks []*Track
	for i, s := range sources {
		t, err := NewTrack(s.kind, s.source, streamID)
		if err != nil {
			for _, created := range tracks {
				created.Stop()
			}
			for _, rest := range sources[i:] {
				rest.source.Close()
			}
			return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		tracks = append(tracks, t)
	}
	return NewStream(streamID, tracks...), nil
}
