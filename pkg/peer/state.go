package peer

// State is the negotiation state of a session.
type State int

const (
	StateIdle State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Phase tells which side started the current negotiation round.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseLocalOfferSent
	PhaseRemoteOfferReceived
)

func (p Phase) String() string {
	switch p {
	case PhaseLocalOfferSent:
		return "local-offer-sent"
	case PhaseRemoteOfferReceived:
		return "remote-offer-received"
	default:
		return "none"
	}
}

// Role is decided once the remote participant is known.
type Role int

const (
	RoleUndecided Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "undecided"
	}
}

// Stats counts negotiation traffic for one session.
type Stats struct {
	CandidatesSent     int
	CandidatesReceived int
	CandidatesBuffered int
	CandidatesFailed   int
	NegotiationRounds  int
}
