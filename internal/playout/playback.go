package playout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PlaybackChange is one playback report from the playout hardware.
//
// The set of variants is closed: only this package can add one, and every
// PlaybackVisitor must handle all of them.
type PlaybackChange interface {
	Accept(v PlaybackVisitor) error
	sealed()
}

// PlaybackVisitor handles each PlaybackChange variant.
type PlaybackVisitor interface {
	PartPlaybackStarted(c PartPlaybackStarted) error
	PartPlaybackStopped(c PartPlaybackStopped) error
	PiecePlaybackStarted(c PiecePlaybackStarted) error
	PiecePlaybackStopped(c PiecePlaybackStopped) error
	TriggerRegeneration(c TriggerRegeneration) error
}

// PartPlaybackStarted reports a part instance going on air.
type PartPlaybackStarted struct {
	PartInstanceID string
	Time           int64
}

// PartPlaybackStopped reports a part instance leaving air.
type PartPlaybackStopped struct {
	PartInstanceID string
	Time           int64
}

// PiecePlaybackStarted reports a piece instance starting.
type PiecePlaybackStarted struct {
	PartInstanceID  string
	PieceInstanceID string
	Time            int64
}

// PiecePlaybackStopped reports a piece instance stopping.
type PiecePlaybackStopped struct {
	PartInstanceID  string
	PieceInstanceID string
	Time            int64
}

// TriggerRegeneration asks for the timeline to be rebuilt without a state change.
type TriggerRegeneration struct {
	Reason string
}

func (c PartPlaybackStarted) Accept(v PlaybackVisitor) error  { return v.PartPlaybackStarted(c) }
func (c PartPlaybackStopped) Accept(v PlaybackVisitor) error  { return v.PartPlaybackStopped(c) }
func (c PiecePlaybackStarted) Accept(v PlaybackVisitor) error { return v.PiecePlaybackStarted(c) }
func (c PiecePlaybackStopped) Accept(v PlaybackVisitor) error { return v.PiecePlaybackStopped(c) }
func (c TriggerRegeneration) Accept(v PlaybackVisitor) error  { return v.TriggerRegeneration(c) }

func (PartPlaybackStarted) sealed()  {}
func (PartPlaybackStopped) sealed()  {}
func (PiecePlaybackStarted) sealed() {}
func (PiecePlaybackStopped) sealed() {}
func (TriggerRegeneration) sealed()  {}

// Wire type names of the playback changes.
const (
	TypePartPlaybackStarted  = "partPlaybackStarted"
	TypePartPlaybackStopped  = "partPlaybackStopped"
	TypePiecePlaybackStarted = "piecePlaybackStarted"
	TypePiecePlaybackStopped = "piecePlaybackStopped"
	TypeTriggerRegeneration  = "triggerRegeneration"
)

// ErrUnknownPlaybackChange is returned when decoding an unknown change type.
var ErrUnknownPlaybackChange = errors.New("playout: unknown playback change type")

type playbackEnvelope struct {
	Type            string `json:"type"`
	PartInstanceID  string `json:"partInstanceId,omitempty"`
	PieceInstanceID string `json:"pieceInstanceId,omitempty"`
	Time            int64  `json:"time,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// DecodePlaybackChanges parses a JSON array of playback changes.
func DecodePlaybackChanges(data []byte) ([]PlaybackChange, error) {
	var envs []playbackEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("decoding playback changes: %w", err)
	}
	out := make([]PlaybackChange, 0, len(envs))
	for i, e := range envs {
		var c PlaybackChange
		switch e.Type {
		case TypePartPlaybackStarted:
			c = PartPlaybackStarted{PartInstanceID: e.PartInstanceID, Time: e.Time}
		case TypePartPlaybackStopped:
			c = PartPlaybackStopped{PartInstanceID: e.PartInstanceID, Time: e.Time}
		case TypePiecePlaybackStarted:
			c = PiecePlaybackStarted{PartInstanceID: e.PartInstanceID, PieceInstanceID: e.PieceInstanceID, Time: e.Time}
		case TypePiecePlaybackStopped:
			c = PiecePlaybackStopped{PartInstanceID: e.PartInstanceID, PieceInstanceID: e.PieceInstanceID, Time: e.Time}
		case TypeTriggerRegeneration:
			c = TriggerRegeneration{Reason: e.Reason}
		default:
			return nil, fmt.Errorf("%w: %q at index %d", ErrUnknownPlaybackChange, e.Type, i)
		}
		out = append(out, c)
	}
	return out, nil
}

// EncodePlaybackChanges renders changes in the form DecodePlaybackChanges reads.
func EncodePlaybackChanges(changes []PlaybackChange) ([]byte, error) {
	enc := &envelopeEncoder{}
	for _, c := range changes {
		if err := c.Accept(enc); err != nil {
			return nil, err
		}
	}
	return json.Marshal(enc.out)
}

type envelopeEncoder struct {
	out []playbackEnvelope
}

func (e *envelopeEncoder) PartPlaybackStarted(c PartPlaybackStarted) error {
	e.out = append(e.out, playbackEnvelope{Type: TypePartPlaybackStarted, PartInstanceID: c.PartInstanceID, Time: c.Time})
	return nil
}

func (e *envelopeEncoder) PartPlaybackStopped(c PartPlaybackStopped) error {
	e.out = append(e.out, playbackEnvelope{Type: TypePartPlaybackStopped, PartInstanceID: c.PartInstanceID, Time: c.Time})
	return nil
}

func (e *envelopeEncoder) PiecePlaybackStarted(c PiecePlaybackStarted) error {
	e.out = append(e.out, playbackEnvelope{Type: TypePiecePlaybackStarted, PartInstanceID: c.PartInstanceID, PieceInstanceID: c.PieceInstanceID, Time: c.Time})
	return nil
}

func (e *envelopeEncoder) PiecePlaybackStopped(c PiecePlaybackStopped) error {
	e.out = append(e.out, playbackEnvelope{Type: TypePiecePlaybackStopped, PartInstanceID: c.PartInstanceID, PieceInstanceID: c.PieceInstanceID, Time: c.Time})
	return nil
}

func (e *envelopeEncoder) TriggerRegeneration(c TriggerRegeneration) error {
	e.out = append(e.out, playbackEnvelope{Type: TypeTriggerRegeneration, Reason: c.Reason})
	return nil
}
