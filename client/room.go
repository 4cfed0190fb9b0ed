package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"example.com/meetease/pkg/signaling"
)

// NewRoomID returns a fresh room id: the first eight characters of a
// random UUID.
func NewRoomID() string {
	return uuid.NewString()[:8]
}

// ParseRoomInput accepts a bare room id or a room link such as
// https://meet.example.com/room/3f2a9c1b.
func ParseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)

	if strings.Contains(input, "/") {
		path := input
		if u, err := url.Parse(input); err == nil && u.Path != "" {
			path = u.Path
		}
		path = strings.TrimSuffix(path, "/")
		i := strings.LastIndex(path, "/room/")
		if i < 0 {
			return "", fmt.Errorf("%w: %q is not a room link", ErrInvalidRoomID, input)
		}
		input = path[i+len("/room/"):]
	}

	if !signaling.ValidRoomID(input) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoomID, input)
	}
	return input, nil
}

// RoomLink builds the shareable link for roomID under baseURL.
func RoomLink(baseURL, roomID string) string {
	return strings.TrimSuffix(baseURL, "/") + "/room/" + roomID
}
