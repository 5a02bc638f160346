package ingest

import "errors"

var (
	// ErrInvalidRunningOrder is returned when a running order fails validation.
	ErrInvalidRunningOrder = errors.New("ingest: invalid running order")

	// ErrPlaylistMismatch is returned when a rundown is re-imported into another playlist.
	ErrPlaylistMismatch = errors.New("ingest: rundown belongs to another playlist")
)
