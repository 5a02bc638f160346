package model

// RundownPlaylist is the on-air aggregate controlling playback order
// across one or more rundowns.
type RundownPlaylist struct {
	ID       string `json:"_id"`
	StudioID string `json:"studioId"`
	Name     string `json:"name"`

	// ActivationID is set only while the playlist is active.
	ActivationID string `json:"activationId,omitempty"`
	Rehearsal    bool   `json:"rehearsal"`
	Loop         bool   `json:"loop"`

	CurrentPartInfo  *SelectedPartInstance `json:"currentPartInfo"`
	NextPartInfo     *SelectedPartInstance `json:"nextPartInfo"`
	PreviousPartInfo *SelectedPartInstance `json:"previousPartInfo"`

	QueuedSegmentID string     `json:"queuedSegmentId,omitempty"`
	QuickLoop       *QuickLoop `json:"quickLoop,omitempty"`

	// RundownIDsInOrder fixes rundown order; unlisted rundowns follow by id.
	RundownIDsInOrder []string `json:"rundownIdsInOrder"`

	LastTakeTime *int64 `json:"lastTakeTime,omitempty"`
	ResetTime    *int64 `json:"resetTime,omitempty"`
}

// DocID implements docstore.Identifiable.
func (p RundownPlaylist) DocID() string { return p.ID }

// IsActive reports whether the playlist holds an activation id.
func (p RundownPlaylist) IsActive() bool { return p.ActivationID != "" }

// State names the playlist's activation state.
func (p RundownPlaylist) State() string {
	switch {
	case !p.IsActive():
		return "inactive"
	case p.Rehearsal:
		return "rehearsal"
	default:
		return "active"
	}
}

// CurrentPartInstanceID returns the current pointer or "".
func (p RundownPlaylist) CurrentPartInstanceID() string { return p.CurrentPartInfo.partInstanceID() }

// NextPartInstanceID returns the next pointer or "".
func (p RundownPlaylist) NextPartInstanceID() string { return p.NextPartInfo.partInstanceID() }

// PreviousPartInstanceID returns the previous pointer or "".
func (p RundownPlaylist) PreviousPartInstanceID() string { return p.PreviousPartInfo.partInstanceID() }

// SelectedPartInstance is one of the current/next/previous pointers.
type SelectedPartInstance struct {
	PartInstanceID          string `json:"partInstanceId"`
	RundownID               string `json:"rundownId"`
	ManuallySelected        bool   `json:"manuallySelected"`
	ConsumesQueuedSegmentID bool   `json:"consumesQueuedSegmentId"`
}

func (s *SelectedPartInstance) partInstanceID() string {
	if s == nil {
		return ""
	}
	return s.PartInstanceID
}

// QuickLoop replays a stretch of the show between two parts.
type QuickLoop struct {
	Enabled     bool   `json:"enabled"`
	StartPartID string `json:"startPartId"`
	EndPartID   string `json:"endPartId"`
}
