package client

import "errors"

var (
	ErrNotInCall      = errors.New("not in a call")
	ErrAlreadyInCall  = errors.New("already in a call")
	ErrCallEnded      = errors.New("call has ended")
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrAlreadySharing = errors.New("screen is already shared")
)
