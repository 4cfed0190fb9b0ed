package media

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acquire(t *testing.T, src *Source) *Stream {
	t.Helper()
	stream, err := src.Acquire(context.Background(), Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	return stream
}

func TestAcquireProducesAudioAndVideo(t *testing.T) {
	src := NewSource(&SyntheticDevice{})
	stream := acquire(t, src)
	defer src.Release(stream)

	require.Len(t, stream.Tracks(), 2)
	assert.Len(t, stream.AudioTracks(), 1)
	assert.Len(t, stream.VideoTracks(), 1)
	assert.Equal(t, KindVideo, stream.VideoTrack().Kind())
	assert.Equal(t, 1, src.Active())
}

func TestReleaseStopsTracksAndIsIdempotent(t *testing.T) {
	src := NewSource(&SyntheticDevice{})
	stream := acquire(t, src)

	src.Release(stream)
	src.Release(stream)

	assert.Equal(t, 0, src.Active())
	for _, track := range stream.Tracks() {
		select {
		case <-track.Ended():
		default:
			t.Fatalf("track %s still running after release", track.ID())
		}
	}
}

func TestToggleTwiceRestoresStateAndIdentity(t *testing.T) {
	src := NewSource(&SyntheticDevice{})
	stream := acquire(t, src)
	defer src.Release(stream)

	before := stream.AudioTracks()[0]
	require.True(t, before.Enabled())

	assert.True(t, ToggleTrackKind(stream, KindAudio))
	assert.False(t, before.Enabled())
	assert.True(t, stream.VideoTrack().Enabled(), "video must not be affected")

	assert.False(t, ToggleTrackKind(stream, KindAudio))
	assert.True(t, before.Enabled())
	assert.Same(t, before, stream.AudioTracks()[0])
}

func TestToggleWithoutTracksReportsMuted(t *testing.T) {
	src := NewSource(&SyntheticDevice{})
	stream, err := src.Acquire(context.Background(), Constraints{Audio: true})
	require.NoError(t, err)
	defer src.Release(stream)

	assert.True(t, ToggleTrackKind(stream, KindVideo))
	assert.True(t, ToggleTrackKind(nil, KindAudio))
}

func TestAcquireErrors(t *testing.T) {
	t.Run("permission denied", func(t *testing.T) {
		src := NewSource(&SyntheticDevice{Err: ErrPermissionDenied})
		_, err := src.Acquire(context.Background(), Constraints{Audio: true, Video: true})
		assert.ErrorIs(t, err, ErrPermissionDenied)
		assert.Equal(t, 0, src.Active())
	})

	t.Run("missing recording", func(t *testing.T) {
		dir := t.TempDir()
		src := NewSource(&FileDevice{VideoPath: filepath.Join(dir, "missing.ivf")})
		_, err := src.Acquire(context.Background(), Constraints{Video: true})
		assert.ErrorIs(t, err, ErrDeviceUnavailable)
	})

	t.Run("generated microphone fails", func(t *testing.T) {
		dev := &FileDevice{NewAudio: func() (FrameSource, error) { return nil, errors.New("no encoder") }}
		_, err := NewSource(dev).Acquire(context.Background(), Constraints{Audio: true, Video: true})
		assert.ErrorIs(t, err, ErrDeviceUnavailable)
	})

	t.Run("no kinds requested", func(t *testing.T) {
		src := NewSource(&SyntheticDevice{})
		_, err := src.Acquire(context.Background(), Constraints{})
		assert.ErrorIs(t, err, ErrInvalidConstraints)
	})
}

func TestTrackEndsNaturally(t *testing.T) {
	dev := &SyntheticDevice{Video: func() FrameSource { return &PatternSource{Limit: 2} }}
	src := NewSource(dev)
	stream, err := src.Acquire(context.Background(), Constraints{Video: true})
	require.NoError(t, err)
	defer src.Release(stream)

	ended := make(chan struct{})
	stream.VideoTrack().OnEnded(func() { close(ended) })

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("track did not end after its source ran out")
	}

	called := false
	stream.VideoTrack().OnEnded(func() { called = true })
	assert.True(t, called, "handlers registered after the end run immediately")
}
