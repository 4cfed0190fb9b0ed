package peer

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"example.com/meetease/pkg/signaling"
)

func (s *Session) receive(msg signaling.Message) {
	s.steps.push(func() { s.handleMessage(msg) })
}

func (s *Session) handleMessage(msg signaling.Message) {
	switch msg.Type {
	case signaling.TypeHello:
		s.handleHello(msg)
	case signaling.TypeBye:
		s.handleBye(msg)
	case signaling.TypeOffer:
		s.handleOffer(msg)
	case signaling.TypeAnswer:
		s.handleAnswer(msg)
	case signaling.TypeCandidate:
		s.handleRemoteCandidate(msg)
	default:
		s.log.Debug("ignoring signaling message", "type", msg.Type)
	}
}

func (s *Session) handleHello(msg signaling.Message) {
	id, err := msg.Participant()
	if err != nil {
		s.log.Warn("bad hello", "error", err)
		return
	}
	if id == s.id {
		return
	}

	s.mu.Lock()
	if s.remoteID != "" && s.remoteID != id {
		s.mu.Unlock()
		s.log.Warn("ignoring extra participant", "remote", id, "bound", s.remoteID)
		return
	}
	s.remoteID = id

	reply := !s.greeted[id]
	s.greeted[id] = true

	offer := false
	if s.role == RoleUndecided {
		if s.id < id {
			s.role = RoleOfferer
			offer = true
		} else {
			s.role = RoleAnswerer
		}
	}
	role := s.role
	gen := s.generation
	s.mu.Unlock()

	s.log.Info("remote participant", "remote", id, "role", role)

	if reply {
		hello, err := signaling.NewHello(s.id)
		if err != nil || !s.send(gen, "send hello", hello) {
			return
		}
	}
	if offer {
		s.makeOffer(gen)
	}
}

func (s *Session) handleBye(msg signaling.Message) {
	id, err := msg.Participant()
	if err != nil {
		s.log.Warn("bad bye", "error", err)
		return
	}

	s.mu.Lock()
	remote := s.remoteID
	s.mu.Unlock()

	// Only the participant bound by hello can end the session.
	if remote == "" || remote != id {
		s.log.Debug("ignoring bye", "from", id, "bound", remote)
		return
	}
	s.fail(wrapError("remote", ErrPeerLeft, id))
}

func (s *Session) makeOffer(gen uint64) {
	offer, err := s.transport.CreateOffer()
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("create offer", err))
		return
	}

	err = s.transport.SetLocalDescription(offer)
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("set local description", err))
		return
	}

	s.mu.Lock()
	s.local = &offer
	s.phase = PhaseLocalOfferSent
	s.stats.NegotiationRounds++
	held := s.takePendingLocal()
	s.mu.Unlock()

	msg, err := signaling.NewDescription(offer)
	if err != nil {
		s.fail(negotiationError("encode offer", err))
		return
	}
	if !s.send(gen, "send offer", msg) {
		return
	}
	s.log.Debug("offer sent")
	s.sendCandidates(gen, held)
}

func (s *Session) handleOffer(msg signaling.Message) {
	offer, err := msg.Description()
	if err != nil {
		s.fail(negotiationError("handle offer", err))
		return
	}

	s.mu.Lock()
	if s.role == RoleOfferer {
		s.mu.Unlock()
		s.log.Warn("ignoring offer from answerer")
		return
	}
	s.role = RoleAnswerer
	renegotiating := s.state == StateConnected
	s.state = StateNegotiating
	s.phase = PhaseRemoteOfferReceived
	gen := s.generation
	s.mu.Unlock()

	if renegotiating {
		s.log.Info("renegotiation requested by remote")
		s.notifyState(StateNegotiating)
	}

	err = s.transport.SetRemoteDescription(offer)
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("set remote description", err))
		return
	}
	s.commitRemote(gen, offer)

	answer, err := s.transport.CreateAnswer()
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("create answer", err))
		return
	}

	err = s.transport.SetLocalDescription(answer)
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("set local description", err))
		return
	}

	s.mu.Lock()
	s.local = &answer
	s.stats.NegotiationRounds++
	held := s.takePendingLocal()
	s.mu.Unlock()

	reply, err := signaling.NewDescription(answer)
	if err != nil {
		s.fail(negotiationError("encode answer", err))
		return
	}
	if !s.send(gen, "send answer", reply) {
		return
	}
	s.sendCandidates(gen, held)
	s.markConnected()
}

func (s *Session) handleAnswer(msg signaling.Message) {
	answer, err := msg.Description()
	if err != nil {
		s.fail(negotiationError("handle answer", err))
		return
	}

	s.mu.Lock()
	if s.role != RoleOfferer || s.phase != PhaseLocalOfferSent {
		phase := s.phase
		s.mu.Unlock()
		s.fail(wrapError("handle answer", ErrNegotiation, fmt.Sprintf("unexpected in phase %s", phase)))
		return
	}
	gen := s.generation
	s.mu.Unlock()

	err = s.transport.SetRemoteDescription(answer)
	if !s.live(gen) {
		return
	}
	if err != nil {
		s.fail(negotiationError("set remote description", err))
		return
	}
	s.commitRemote(gen, answer)
	s.markConnected()
}

// commitRemote records the remote description and applies candidates that
// arrived ahead of it, in arrival order.
func (s *Session) commitRemote(gen uint64, desc webrtc.SessionDescription) {
	s.mu.Lock()
	s.remote = &desc
	pending := s.pendingRemote
	s.pendingRemote = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		s.log.Debug("flushing buffered candidates", "count", len(pending))
	}
	for _, c := range pending {
		if !s.live(gen) {
			return
		}
		s.addCandidate(c)
	}
}

func (s *Session) handleRemoteCandidate(msg signaling.Message) {
	candidate, err := msg.Candidate()
	if err != nil {
		s.mu.Lock()
		s.stats.CandidatesFailed++
		s.mu.Unlock()
		s.log.Warn("dropping candidate", "error", wrapError("decode candidate", ErrCandidate, err.Error()))
		return
	}

	s.mu.Lock()
	s.stats.CandidatesReceived++
	if s.remote == nil {
		s.pendingRemote = append(s.pendingRemote, candidate)
		s.stats.CandidatesBuffered++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.addCandidate(candidate)
}

// addCandidate failures are logged and counted; negotiation continues.
func (s *Session) addCandidate(c webrtc.ICECandidateInit) {
	if err := s.transport.AddICECandidate(c); err != nil {
		s.mu.Lock()
		s.stats.CandidatesFailed++
		s.mu.Unlock()
		s.log.Warn("candidate rejected", "error", wrapError("add candidate", ErrCandidate, err.Error()))
	}
}

// handleLocalCandidate is called by the transport from its own goroutine.
func (s *Session) handleLocalCandidate(c *webrtc.ICECandidateInit) {
	if c == nil {
		s.log.Debug("candidate gathering complete")
		return
	}
	candidate := *c
	s.steps.push(func() { s.sendLocalCandidate(candidate) })
}

func (s *Session) sendLocalCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.local == nil {
		s.pendingLocal = append(s.pendingLocal, c)
		s.mu.Unlock()
		return
	}
	gen := s.generation
	s.mu.Unlock()

	s.sendCandidates(gen, []webrtc.ICECandidateInit{c})
}

func (s *Session) sendCandidates(gen uint64, candidates []webrtc.ICECandidateInit) {
	for _, c := range candidates {
		msg, err := signaling.NewCandidate(c)
		if err != nil {
			s.log.Warn("cannot encode candidate", "error", err)
			continue
		}
		if !s.send(gen, "send candidate", msg) {
			return
		}
		s.mu.Lock()
		s.stats.CandidatesSent++
		s.mu.Unlock()
	}
}

// takePendingLocal must be called with s.mu held.
func (s *Session) takePendingLocal() []webrtc.ICECandidateInit {
	held := s.pendingLocal
	s.pendingLocal = nil
	return held
}

func (s *Session) handleRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	s.log.Info("remote track", "kind", track.Kind(), "id", track.ID())
	if s.onRemoteTrack != nil {
		s.onRemoteTrack(track, receiver)
	}
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	s.log.Debug("connection state", "state", state.String())
	if state == webrtc.PeerConnectionStateFailed {
		s.steps.push(func() {
			s.fail(wrapError("connection", ErrTransportFailed, state.String()))
		})
	}
}
