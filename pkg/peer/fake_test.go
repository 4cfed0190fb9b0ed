package peer

import (
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
)

type fakeSender struct {
	mu    sync.Mutex
	track webrtc.TrackLocal
}

func (f *fakeSender) Track() webrtc.TrackLocal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.track
}

func (f *fakeSender) ReplaceTrack(track webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.track = track
	return nil
}

// fakeTransport records every call. CreateAnswer can be held open with
// answerGate to simulate a slow negotiation step.
type fakeTransport struct {
	events Events

	answerStarted chan struct{}
	answerGate    chan struct{}

	mu     sync.Mutex
	calls  []string
	addErr error
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeTransport) has(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeTransport) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	f.record("add-track " + track.Kind().String())
	return &fakeSender{track: track}, nil
}

func (f *fakeTransport) CreateOffer() (webrtc.SessionDescription, error) {
	f.record("create-offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 fake-offer"}, nil
}

func (f *fakeTransport) CreateAnswer() (webrtc.SessionDescription, error) {
	f.record("create-answer")
	if f.answerStarted != nil {
		close(f.answerStarted)
	}
	if f.answerGate != nil {
		<-f.answerGate
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 fake-answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(desc webrtc.SessionDescription) error {
	f.record("set-local " + desc.Type.String())
	return nil
}

func (f *fakeTransport) SetRemoteDescription(desc webrtc.SessionDescription) error {
	f.record("set-remote " + desc.Type.String())
	return nil
}

func (f *fakeTransport) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.record("add-candidate " + c.Candidate)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addErr
}

func (f *fakeTransport) Close() error {
	f.record("close")
	return nil
}
