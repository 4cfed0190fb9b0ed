// Package media owns local capture: acquiring a stream from a device,
// muting tracks in place and releasing the device when the call ends.
package media

import (
	"context"
	"sync"
)

// Constraints selects which kinds of track a capture should produce.
type Constraints struct {
	Audio bool
	Video bool
}

// Device is a capture device (camera+microphone, or a display).
type Device interface {
	Open(ctx context.Context, c Constraints) (*Stream, error)
}

// Source acquires streams from a device and keeps track of the ones that
// have not been released yet.
type Source struct {
	device Device

	mu     sync.Mutex
	active map[*Stream]struct{}
}

func NewSource(device Device) *Source {
	return &Source{
		device: device,
		active: make(map[*Stream]struct{}),
	}
}

// Acquire opens the device. Failures are ErrPermissionDenied or
// ErrDeviceUnavailable (or ErrInvalidConstraints).
func (s *Source) Acquire(ctx context.Context, c Constraints) (*Stream, error) {
	if !c.Audio && !c.Video {
		return nil, ErrInvalidConstraints
	}

	stream, err := s.device.Open(ctx, c)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[stream] = struct{}{}
	s.mu.Unlock()
	return stream, nil
}

// Release stops every track of stream. Releasing twice is a no-op.
func (s *Source) Release(stream *Stream) {
	if stream == nil {
		return
	}

	s.mu.Lock()
	_, ok := s.active[stream]
	delete(s.active, stream)
	s.mu.Unlock()

	if ok {
		stream.stopAll()
	}
}

// Active returns the number of streams acquired and not yet released.
func (s *Source) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ToggleTrackKind flips enabled on every track of kind and returns whether
// the kind is now muted. Tracks are never stopped or replaced. A stream with
// no track of that kind, or no stream at all, reports muted.
func ToggleTrackKind(stream *Stream, kind Kind) bool {
	if stream == nil {
		return true
	}
	tracks := stream.byKind(kind)
	if len(tracks) == 0 {
		return true
	}

	enable := !tracks[0].Enabled()
	for _, t := range tracks {
		t.SetEnabled(enable)
	}
	return !enable
}
