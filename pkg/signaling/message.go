// Package signaling carries offer/answer/candidate messages between the two
// participants of a room over an ordered, reliable channel.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Message types on the wire.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "ice-candidate"

	// Role assignment: each participant announces itself on join and
	// says goodbye on leave.
	TypeHello = "hello"
	TypeBye   = "bye"
)

// Message is one signaling frame. Data is opaque to the channel.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DescriptionPayload is the data of offer and answer messages.
type DescriptionPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// CandidatePayload is the data of ice-candidate messages.
type CandidatePayload struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// ParticipantPayload is the data of hello and bye messages.
type ParticipantPayload struct {
	ParticipantID string `json:"participantId"`
}

// NewDescription wraps an offer or answer.
func NewDescription(desc webrtc.SessionDescription) (Message, error) {
	var typ string
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		typ = TypeOffer
	case webrtc.SDPTypeAnswer:
		typ = TypeAnswer
	default:
		return Message{}, fmt.Errorf("%w: cannot send %s description", ErrMalformedMessage, desc.Type)
	}
	return newMessage(typ, DescriptionPayload{Type: typ, SDP: desc.SDP})
}

// NewCandidate wraps a locally gathered ICE candidate.
func NewCandidate(c webrtc.ICECandidateInit) (Message, error) {
	return newMessage(TypeCandidate, CandidatePayload{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	})
}

func NewHello(participantID string) (Message, error) {
	return newMessage(TypeHello, ParticipantPayload{ParticipantID: participantID})
}

func NewBye(participantID string) (Message, error) {
	return newMessage(TypeBye, ParticipantPayload{ParticipantID: participantID})
}

func newMessage(typ string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return Message{Type: typ, Data: data}, nil
}

// Description decodes an offer or answer. A missing sdp, or a payload type
// that disagrees with the message type, is ErrMalformedMessage.
func (m Message) Description() (webrtc.SessionDescription, error) {
	if m.Type != TypeOffer && m.Type != TypeAnswer {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %q is not a description", ErrMalformedMessage, m.Type)
	}

	var p struct {
		Type *string `json:"type"`
		SDP  *string `json:"sdp"`
	}
	if err := m.decode(&p); err != nil {
		return webrtc.SessionDescription{}, err
	}
	if p.SDP == nil || *p.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s without sdp", ErrMalformedMessage, m.Type)
	}
	if p.Type != nil && *p.Type != m.Type {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s carries %q description", ErrMalformedMessage, m.Type, *p.Type)
	}

	return webrtc.SessionDescription{Type: webrtc.NewSDPType(m.Type), SDP: *p.SDP}, nil
}

// Candidate decodes an ice-candidate message. An empty candidate string is
// the end-of-candidates marker and is returned as is.
func (m Message) Candidate() (webrtc.ICECandidateInit, error) {
	if m.Type != TypeCandidate {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: %q is not a candidate", ErrMalformedMessage, m.Type)
	}

	var p struct {
		Candidate *string `json:"candidate"`
		CandidatePayload
	}
	if err := m.decode(&p); err != nil {
		return webrtc.ICECandidateInit{}, err
	}
	if p.Candidate == nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: candidate field missing", ErrMalformedMessage)
	}

	return webrtc.ICECandidateInit{
		Candidate:        *p.Candidate,
		SDPMid:           p.SDPMid,
		SDPMLineIndex:    p.SDPMLineIndex,
		UsernameFragment: p.UsernameFragment,
	}, nil
}

// Participant decodes a hello or bye message.
func (m Message) Participant() (string, error) {
	var p ParticipantPayload
	if err := m.decode(&p); err != nil {
		return "", err
	}
	if p.ParticipantID == "" {
		return "", fmt.Errorf("%w: %s without participantId", ErrMalformedMessage, m.Type)
	}
	return p.ParticipantID, nil
}

func (m Message) decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrMalformedMessage, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedMessage, m.Type, err)
	}
	return nil
}
