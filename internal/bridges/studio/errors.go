package studio

import "errors"

// Domain errors for the studio bridge package.
var (
	// ErrNotConnected is returned when publishing while the broker is unreachable.
	ErrNotConnected = errors.New("studio: mqtt not connected")

	// ErrInvalidReport is returned when a playback report cannot be parsed.
	ErrInvalidReport = errors.New("studio: invalid playback report")
)
