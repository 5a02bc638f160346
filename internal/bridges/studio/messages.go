package studio

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/playout-core/internal/playout"
)

// FunctionMessage is sent to a peripheral device to execute a function.
// Topic: playout/device/{device_id}/function
type FunctionMessage struct {
	// ID uniquely identifies this call for correlation in device logs.
	ID string `json:"id"`

	DeviceID  string         `json:"device_id"`
	Function  string         `json:"function"`
	Args      map[string]any `json:"args,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PlaybackReport is sent by playout hardware when playback changes.
// Topic: playout/studio/{studio_id}/playback
//
//	{"playlistId": "pl1", "changes": [{"type": "partPlaybackStarted", ...}]}
type PlaybackReport struct {
	PlaylistID string          `json:"playlistId"`
	Changes    json.RawMessage `json:"changes"`
}

// ParsePlaybackReport decodes a playback report payload.
func ParsePlaybackReport(payload []byte) (string, []playout.PlaybackChange, error) {
	var r PlaybackReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	if r.PlaylistID == "" {
		return "", nil, fmt.Errorf("%w: missing playlistId", ErrInvalidReport)
	}
	if len(r.Changes) == 0 {
		return r.PlaylistID, nil, nil
	}
	changes, err := playout.DecodePlaybackChanges(r.Changes)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	return r.PlaylistID, changes, nil
}
