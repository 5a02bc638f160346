package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/playout-core/internal/model"
)

// RunningOrder is the YAML document accepted by the importer.
type RunningOrder struct {
	Studio   *StudioDef  `yaml:"studio,omitempty"`
	Playlist PlaylistDef `yaml:"playlist"`
	Rundown  RundownDef  `yaml:"rundown"`
}

// StudioDef describes the studio and its lookahead mappings.
type StudioDef struct {
	ID                     string                `yaml:"id"`
	Name                   string                `yaml:"name"`
	AllowRundownResetOnAir bool                  `yaml:"allowRundownResetOnAir"`
	Mappings               map[string]MappingDef `yaml:"mappings"`
	PeripheralDevices      []DeviceDef           `yaml:"peripheralDevices"`
}

// MappingDef configures lookahead on one layer.
type MappingDef struct {
	Device            string `yaml:"device"`
	Lookahead         string `yaml:"lookahead"`
	LookaheadDepth    int    `yaml:"lookaheadDepth"`
	MaxSearchDistance *int   `yaml:"lookaheadMaxSearchDistance"`
}

// DeviceDef is a peripheral device notified on activation changes.
type DeviceDef struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	OnActivate   string `yaml:"onActivate"`
	OnDeactivate string `yaml:"onDeactivate"`
}

// PlaylistDef names the playlist the rundown joins. It is created on first import.
type PlaylistDef struct {
	ID       string `yaml:"id"`
	StudioID string `yaml:"studioId"`
	Name     string `yaml:"name"`
	Loop     bool   `yaml:"loop"`
}

// RundownDef is the imported rundown.
type RundownDef struct {
	ID         string       `yaml:"id"`
	ExternalID string       `yaml:"externalId"`
	Name       string       `yaml:"name"`
	Segments   []SegmentDef `yaml:"segments"`
}

// SegmentDef is a segment; its rank is its position in the file.
type SegmentDef struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	Hidden bool      `yaml:"hidden"`
	Parts  []PartDef `yaml:"parts"`
}

// PartDef is a part; its rank is its position in the segment.
type PartDef struct {
	ID                      string     `yaml:"id"`
	Title                   string     `yaml:"title"`
	Invalid                 bool       `yaml:"invalid"`
	AutoNext                bool       `yaml:"autoNext"`
	ExpectedDuration        int64      `yaml:"expectedDuration"`
	DisableNextInTransition bool       `yaml:"disableNextInTransition"`
	ClassesForNext          []string   `yaml:"classesForNext"`
	Pieces                  []PieceDef `yaml:"pieces"`
}

// PieceDef is a piece inside a part.
type PieceDef struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	SourceLayer    string      `yaml:"sourceLayer"`
	OutputLayer    string      `yaml:"outputLayer"`
	Start          int64       `yaml:"start"`
	Duration       *int64      `yaml:"duration"`
	Lifespan       string      `yaml:"lifespan"`
	Type           string      `yaml:"type"`
	Invalid        bool        `yaml:"invalid"`
	HasSideEffects bool        `yaml:"hasSideEffects"`
	Objects        []ObjectDef `yaml:"objects"`
}

// ObjectDef is an authored timeline object.
type ObjectDef struct {
	ID              string         `yaml:"id"`
	Layer           string         `yaml:"layer"`
	Priority        float64        `yaml:"priority"`
	Content         map[string]any `yaml:"content"`
	Classes         []string       `yaml:"classes"`
	NeedsStartDelay bool           `yaml:"needsStartDelay"`
	Keyframes       []KeyframeDef  `yaml:"keyframes"`
}

// KeyframeDef overrides object content while its condition holds.
type KeyframeDef struct {
	ID                string         `yaml:"id"`
	IsTransition      bool           `yaml:"isTransition"`
	PreviousPartClass string         `yaml:"previousPartClass"`
	Content           map[string]any `yaml:"content"`
}

// Parse decodes and validates a running order. Unknown keys are rejected.
func Parse(r io.Reader) (*RunningOrder, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ro RunningOrder
	if err := dec.Decode(&ro); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidRunningOrder)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRunningOrder, err)
	}
	if err := ro.Validate(); err != nil {
		return nil, err
	}
	return &ro, nil
}

// ParseFile reads and parses a running order file.
func ParseFile(path string) (*RunningOrder, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied import path
	if err != nil {
		return nil, fmt.Errorf("opening running order: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks ids, enums and uniqueness. All problems are joined.
func (ro *RunningOrder) Validate() error {
	var errs []error
	add := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf(format, a...))
	}

	if ro.Playlist.ID == "" {
		add("playlist.id is required")
	}
	if ro.Rundown.ID == "" {
		add("rundown.id is required")
	}
	if ro.Studio != nil {
		if ro.Studio.ID == "" {
			add("studio.id is required when studio is given")
		}
		if ro.Playlist.StudioID != "" && ro.Studio.ID != "" && ro.Playlist.StudioID != ro.Studio.ID {
			add("playlist.studioId %q does not match studio.id %q", ro.Playlist.StudioID, ro.Studio.ID)
		}
		for layer, m := range ro.Studio.Mappings {
			switch model.LookaheadMode(m.Lookahead) {
			case "", model.LookaheadNone, model.LookaheadPreload, model.LookaheadWhenClear:
			default:
				add("studio.mappings.%s: unknown lookahead mode %q", layer, m.Lookahead)
			}
			if m.LookaheadDepth < 0 {
				add("studio.mappings.%s: lookaheadDepth must not be negative", layer)
			}
		}
	}
	if ro.StudioID() == "" {
		add("playlist.studioId or studio.id is required")
	}

	seen := map[string]bool{}
	unique := func(kind, id string) {
		if id == "" {
			add("%s without id", kind)
			return
		}
		key := kind + ":" + id
		if _, dup := seen[key]; dup {
			add("duplicate %s id %q", kind, id)
		}
		seen[key] = true
	}

	for _, seg := range ro.Rundown.Segments {
		unique("segment", seg.ID)
		for _, part := range seg.Parts {
			unique("part", part.ID)
			for _, piece := range part.Pieces {
				unique("piece", piece.ID)
				switch model.PieceLifespan(piece.Lifespan) {
				case "", model.LifespanWithinPart, model.LifespanOutOnSegmentEnd,
					model.LifespanOutOnRundownEnd, model.LifespanOutOnShowStyleEnd:
				default:
					add("piece %q: unknown lifespan %q", piece.ID, piece.Lifespan)
				}
				switch model.PieceType(piece.Type) {
				case "", model.PieceTypeNormal, model.PieceTypeInTransition, model.PieceTypeOutTransition:
				default:
					add("piece %q: unknown type %q", piece.ID, piece.Type)
				}
				if piece.SourceLayer == "" {
					add("piece %q: sourceLayer is required", piece.ID)
				}
				if piece.Duration != nil && *piece.Duration < 0 {
					add("piece %q: duration must not be negative", piece.ID)
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRunningOrder, errors.Join(errs...))
	}
	return nil
}

// StudioID returns the studio the playlist plays in.
func (ro *RunningOrder) StudioID() string {
	if ro.Playlist.StudioID != "" {
		return ro.Playlist.StudioID
	}
	if ro.Studio != nil {
		return ro.Studio.ID
	}
	return ""
}
