package model

// PieceLifespan says how far a piece survives across part boundaries.
type PieceLifespan string

const (
	LifespanWithinPart        PieceLifespan = "part-only"
	LifespanOutOnSegmentEnd   PieceLifespan = "segment-end"
	LifespanOutOnRundownEnd   PieceLifespan = "rundown-end"
	LifespanOutOnShowStyleEnd PieceLifespan = "showstyle-end"
)

// IsInfinite reports whether the lifespan extends past the owning part.
func (l PieceLifespan) IsInfinite() bool {
	return l != "" && l != LifespanWithinPart
}

// PieceType distinguishes ordinary pieces from transitions.
type PieceType string

const (
	PieceTypeNormal        PieceType = "normal"
	PieceTypeInTransition  PieceType = "in-transition"
	PieceTypeOutTransition PieceType = "out-transition"
)

// Piece is a single playable element inside a part.
type Piece struct {
	ID             string `json:"_id"`
	StartRundownID string `json:"startRundownId"`
	StartSegmentID string `json:"startSegmentId"`
	StartPartID    string `json:"startPartId"`
	Name           string `json:"name"`

	Enable   PieceEnable   `json:"enable"`
	Lifespan PieceLifespan `json:"lifespan"`
	Type     PieceType     `json:"pieceType,omitempty"`

	SourceLayerID string `json:"sourceLayerId"`
	OutputLayerID string `json:"outputLayerId"`

	Invalid bool `json:"invalid,omitempty"`

	// HasSideEffects pieces are never considered ended early.
	HasSideEffects bool `json:"hasSideEffects,omitempty"`

	TimelineObjects []TimelineObject `json:"timelineObjects,omitempty"`
}

// DocID implements docstore.Identifiable.
func (p Piece) DocID() string { return p.ID }

// IsInTransition reports whether the piece is an in-transition.
func (p Piece) IsInTransition() bool { return p.Type == PieceTypeInTransition }

// PieceEnable is the piece's window relative to its part, in milliseconds.
type PieceEnable struct {
	Start    int64  `json:"start"`
	Duration *int64 `json:"duration,omitempty"`
}
