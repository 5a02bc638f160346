package model

// Rundown is one imported running order inside a playlist.
type Rundown struct {
	ID         string `json:"_id"`
	PlaylistID string `json:"playlistId"`
	StudioID   string `json:"studioId"`
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
}

// DocID implements docstore.Identifiable.
func (r Rundown) DocID() string { return r.ID }

// Segment is a rank-ordered group of parts within a rundown.
type Segment struct {
	ID         string  `json:"_id"`
	RundownID  string  `json:"rundownId"`
	PlaylistID string  `json:"playlistId"`
	Name       string  `json:"name"`
	Rank       float64 `json:"rank"`
	IsHidden   bool    `json:"isHidden,omitempty"`
}

// DocID implements docstore.Identifiable.
func (s Segment) DocID() string { return s.ID }

// Part is the template of a playable unit.
type Part struct {
	ID         string  `json:"_id"`
	RundownID  string  `json:"rundownId"`
	SegmentID  string  `json:"segmentId"`
	PlaylistID string  `json:"playlistId"`
	Title      string  `json:"title"`
	Rank       float64 `json:"rank"`

	// Invalid parts are never selected for playback.
	Invalid bool `json:"invalid"`

	// AutoNext advances to the next part when ExpectedDuration elapses.
	AutoNext bool `json:"autoNext,omitempty"`

	// DisableNextInTransition suppresses the in-transition of the part after this one.
	DisableNextInTransition bool `json:"disableNextInTransition,omitempty"`

	// ClassesForNext are offered to keyframes of the following part.
	ClassesForNext []string `json:"classesForNext,omitempty"`

	// ExpectedDuration in milliseconds, 0 when unknown.
	ExpectedDuration int64 `json:"expectedDuration,omitempty"`
}

// DocID implements docstore.Identifiable.
func (p Part) DocID() string { return p.ID }

// IsPlayable reports whether the part may be selected.
func (p Part) IsPlayable() bool { return !p.Invalid }
