package model

import "maps"

// TimelineObject is both a piece's authored content and the lookahead output.
type TimelineObject struct {
	ID       string         `json:"id"`
	Layer    string         `json:"layer"`
	Enable   TimelineEnable `json:"enable"`
	Priority float64        `json:"priority"`
	Content  map[string]any `json:"content,omitempty"`

	Keyframes []Keyframe `json:"keyframes,omitempty"`
	Classes   []string   `json:"classes,omitempty"`
	Disabled  bool       `json:"disabled,omitempty"`

	// NeedsStartDelay delays the following lookahead object's start.
	NeedsStartDelay bool `json:"needsStartDelay,omitempty"`

	IsLookahead       bool   `json:"isLookahead,omitempty"`
	LookaheadForLayer string `json:"lookaheadForLayer,omitempty"`
	PartInstanceID    string `json:"partInstanceId,omitempty"`
	PieceInstanceID   string `json:"pieceInstanceId,omitempty"`
	InfiniteID        string `json:"infinitePieceInstanceId,omitempty"`
}

// Clone returns a copy that shares no mutable state with o.
func (o TimelineObject) Clone() TimelineObject {
	c := o
	c.Content = cloneContent(o.Content)
	if o.Enable.Start != nil {
		start := *o.Enable.Start
		c.Enable.Start = &start
	}
	if o.Keyframes != nil {
		c.Keyframes = make([]Keyframe, len(o.Keyframes))
		for i, kf := range o.Keyframes {
			kf.Content = cloneContent(kf.Content)
			c.Keyframes[i] = kf
		}
	}
	if o.Classes != nil {
		c.Classes = append([]string(nil), o.Classes...)
	}
	return c
}

// TimelineEnable describes when an object is enabled.
// Start is absolute (ms); StartRef and End reference other objects,
// e.g. "#obj1.end + 2000"; While is a boolean expression such as "1".
type TimelineEnable struct {
	Start    *int64 `json:"start,omitempty"`
	StartRef string `json:"startRef,omitempty"`
	End      string `json:"end,omitempty"`
	While    string `json:"while,omitempty"`
}

// Keyframe overrides an object's content while its condition holds.
type Keyframe struct {
	ID        string            `json:"id"`
	Condition KeyframeCondition `json:"condition"`
	Content   map[string]any    `json:"content,omitempty"`
}

// KeyframeCondition is the subset of conditions lookahead understands.
type KeyframeCondition struct {
	// IsTransition matches while the part is transitioning in.
	IsTransition bool `json:"isTransition,omitempty"`

	// PreviousPartClass additionally requires the previous part to offer this class.
	PreviousPartClass string `json:"previousPartClass,omitempty"`
}

// cloneContent deep-copies nested maps and slices of a content payload.
func cloneContent(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := maps.Clone(in)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneContent(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	default:
		return v
	}
}
