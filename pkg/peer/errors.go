package peer

import (
	"errors"
	"fmt"
)

var (
	ErrNegotiation        = errors.New("negotiation failed")
	ErrCandidate          = errors.New("ice candidate rejected")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionStarted     = errors.New("session already started")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrPeerLeft           = errors.New("remote participant left")
	ErrTransportFailed    = errors.New("peer connection failed")
	ErrNoVideoSender      = errors.New("no outbound video sender")
)

// Error records the negotiation step that failed.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errors carrying a transport error keep it reachable for errors.Is.
func negotiationError(op string, err error) *Error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrNegotiation, err)}
}

func wrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
