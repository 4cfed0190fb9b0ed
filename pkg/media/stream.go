package media

// Stream groups the tracks produced by one capture.
type Stream struct {
	id     string
	tracks []*Track
}

// NewStream wraps already created tracks into a stream.
func NewStream(id string, tracks ...*Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string {
	return s.id
}

// Tracks returns every track in capture order.
func (s *Stream) Tracks() []*Track {
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) AudioTracks() []*Track {
	return s.byKind(KindAudio)
}

func (s *Stream) VideoTracks() []*Track {
	return s.byKind(KindVideo)
}

// VideoTrack returns the first video track, or nil.
func (s *Stream) VideoTrack() *Track {
	for _, t := range s.tracks {
		if t.Kind() == KindVideo {
			return t
		}
	}
	return nil
}

func (s *Stream) byKind(kind Kind) []*Track {
	var out []*Track
	for _, t := range s.tracks {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}

func (s *Stream) stopAll() {
	for _, t := range s.tracks {
		t.Stop()
	}
}
