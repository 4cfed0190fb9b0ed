package signaling

import "errors"

var (
	// ErrChannelClosed is returned by Send after Close, or after the
	// connection went away.
	ErrChannelClosed = errors.New("signaling channel closed")

	// ErrTransport wraps failures of the underlying connection.
	ErrTransport = errors.New("signaling transport error")

	// ErrMalformedMessage is returned when a payload cannot be decoded.
	ErrMalformedMessage = errors.New("malformed signaling message")

	// ErrRoomFull is returned by Dial when the relay rejects the join
	// because the room already has its participants.
	ErrRoomFull = errors.New("room is full")
)
