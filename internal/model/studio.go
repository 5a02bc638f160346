package model

// LookaheadMode selects how a layer previews upcoming content.
type LookaheadMode string

const (
	LookaheadNone      LookaheadMode = "none"
	LookaheadPreload   LookaheadMode = "preload"
	LookaheadWhenClear LookaheadMode = "whenClear"
)

// Studio is the physical studio a playlist plays out in.
type Studio struct {
	ID                string                  `json:"_id"`
	Name              string                  `json:"name"`
	Settings          StudioSettings          `json:"settings"`
	Mappings          map[string]LayerMapping `json:"mappings"`
	PeripheralDevices []PeripheralDevice      `json:"peripheralDevices,omitempty"`
}

// DocID implements docstore.Identifiable.
func (s Studio) DocID() string { return s.ID }

// StudioSettings holds per-studio playout policy.
type StudioSettings struct {
	// AllowRundownResetOnAir permits resetting an active playlist.
	AllowRundownResetOnAir bool `json:"allowRundownResetOnAir"`
}

// LayerMapping routes a timeline layer to a device and configures lookahead.
type LayerMapping struct {
	Device        string        `json:"device"`
	LookaheadMode LookaheadMode `json:"lookahead"`

	// LookaheadDepth is the number of future objects wanted (at least 1).
	LookaheadDepth int `json:"lookaheadDepth"`

	// LookaheadMaxSearchDistance is how many parts to search. Nil or -1 and
	// lower mean the engine default.
	LookaheadMaxSearchDistance *int `json:"lookaheadMaxSearchDistance,omitempty"`
}

// PeripheralDevice is a playout device notified on activation changes.
type PeripheralDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OnActivate   string `json:"onActivate,omitempty"`
	OnDeactivate string `json:"onDeactivate,omitempty"`
}
