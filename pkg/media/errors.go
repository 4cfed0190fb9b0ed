package media

import "errors"

var (
	// ErrPermissionDenied is returned when the capture device refuses access.
	ErrPermissionDenied = errors.New("media: permission denied")

	// ErrDeviceUnavailable is returned when the capture device cannot be opened.
	ErrDeviceUnavailable = errors.New("media: device unavailable")

	// ErrInvalidConstraints is returned when neither audio nor video is requested.
	ErrInvalidConstraints = errors.New("media: constraints request no tracks")

	ErrNoVideoTrack = errors.New("media: stream has no video track")
)
