package model

// Orphaned reasons for a PartInstance without a live Part.
const (
	OrphanedAdlibPart = "adlib-part"
	OrphanedDeleted   = "deleted"
)

// PartInstance is a playback occurrence of a Part.
type PartInstance struct {
	ID           string `json:"_id"`
	PlaylistID   string `json:"playlistId"`
	RundownID    string `json:"rundownId"`
	SegmentID    string `json:"segmentId"`
	ActivationID string `json:"playlistActivationId"`

	TakeCount int  `json:"takeCount"`
	IsTaken   bool `json:"isTaken"`
	Rehearsal bool `json:"rehearsal"`

	// Reset marks the instance as history after a playlist reset.
	Reset bool `json:"reset"`

	// ConsumesQueuedSegmentID is set when this instance was selected from the queued segment.
	ConsumesQueuedSegmentID bool `json:"consumesQueuedSegmentId,omitempty"`

	Orphaned string `json:"orphaned,omitempty"`

	// Part is frozen at creation.
	Part Part `json:"part"`

	Timings PartInstanceTimings `json:"timings"`
}

// DocID implements docstore.Identifiable.
func (p PartInstance) DocID() string { return p.ID }

// PartInstanceTimings holds millisecond timestamps; nil means unknown.
type PartInstanceTimings struct {
	SetAsNext               *int64 `json:"setAsNext,omitempty"`
	Take                    *int64 `json:"take,omitempty"`
	TakeOut                 *int64 `json:"takeOut,omitempty"`
	PlannedStartedPlayback  *int64 `json:"plannedStartedPlayback,omitempty"`
	PlannedStoppedPlayback  *int64 `json:"plannedStoppedPlayback,omitempty"`
	ReportedStartedPlayback *int64 `json:"reportedStartedPlayback,omitempty"`
	ReportedStoppedPlayback *int64 `json:"reportedStoppedPlayback,omitempty"`
}

// StartedPlayback returns the reported start, falling back to the planned one.
func (t PartInstanceTimings) StartedPlayback() *int64 {
	if t.ReportedStartedPlayback != nil {
		return t.ReportedStartedPlayback
	}
	return t.PlannedStartedPlayback
}

// PieceInstance is a playback occurrence of a Piece within a PartInstance.
type PieceInstance struct {
	ID             string `json:"_id"`
	PlaylistID     string `json:"playlistId"`
	RundownID      string `json:"rundownId"`
	PartInstanceID string `json:"partInstanceId"`
	ActivationID   string `json:"playlistActivationId"`

	Reset bool `json:"reset"`

	// Piece is frozen at creation.
	Piece Piece `json:"piece"`

	Infinite *PieceInstanceInfinite `json:"infinite,omitempty"`

	PlannedStartedPlayback  *int64 `json:"plannedStartedPlayback,omitempty"`
	PlannedStoppedPlayback  *int64 `json:"plannedStoppedPlayback,omitempty"`
	ReportedStartedPlayback *int64 `json:"reportedStartedPlayback,omitempty"`
	ReportedStoppedPlayback *int64 `json:"reportedStoppedPlayback,omitempty"`
}

// DocID implements docstore.Identifiable.
func (p PieceInstance) DocID() string { return p.ID }

// PieceInstanceInfinite links a continuing infinite to the instance it started from.
type PieceInstanceInfinite struct {
	// InfiniteInstanceID is shared by every continuation of one infinite.
	InfiniteInstanceID string `json:"infiniteInstanceId"`
	InfinitePieceID    string `json:"infinitePieceId"`

	// FromPreviousPart is set on continuations, not on the originating instance.
	FromPreviousPart bool `json:"fromPreviousPart"`
}

// IsContinuation reports whether the instance continues an infinite that
// began in an earlier PartInstance.
func (p PieceInstance) IsContinuation() bool {
	return p.Infinite != nil && p.Infinite.FromPreviousPart
}
