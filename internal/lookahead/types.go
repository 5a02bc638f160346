package lookahead

import "github.com/nerrad567/playout-core/internal/model"

const (
	// DefaultSearchDistance is used when neither the layer nor the input sets one.
	DefaultSearchDistance = 10

	// ObjectPriority is the priority of timed lookahead objects.
	ObjectPriority = 0.1

	// StartDelay is added after an object flagged NeedsStartDelay, in ms.
	StartDelay int64 = 40

	// endedGrace is how long past its planned end a piece is still considered playing.
	endedGrace int64 = 1000

	// LayerSuffix is appended to preload lookahead layers.
	LayerSuffix = "_lookahead"
)

// PartInstanceInfo is a part instance and its piece instances.
type PartInstanceInfo struct {
	Instance model.PartInstance
	Pieces   []model.PieceInstance

	// OnTimeline is true when the instance is playing or will auto-advance.
	OnTimeline bool
}

// FuturePart is an upcoming part and its piece templates.
type FuturePart struct {
	Part   model.Part
	Pieces []model.Piece
}

// Input is everything Compute looks at.
type Input struct {
	// Now is the wall clock in ms, used to decide which pieces have ended.
	Now int64

	Current *PartInstanceInfo
	Next    *PartInstanceInfo

	// FutureParts are the playable parts after Next, in playback order.
	FutureParts []FuturePart

	Mappings map[string]model.LayerMapping

	// DefaultSearchDistance replaces layer distances of -1 and lower.
	// Zero or less means DefaultSearchDistance.
	DefaultSearchDistance int
}

// LayerResult is the lookahead for one mapped layer.
type LayerResult struct {
	Layer  string                 `json:"layer"`
	Mode   model.LookaheadMode    `json:"mode"`
	Timed  []model.TimelineObject `json:"timed"`
	Future []model.TimelineObject `json:"future"`
}

// Result holds one LayerResult per lookahead layer, ordered by layer name.
type Result struct {
	Layers []LayerResult `json:"layers"`
}

// Layer returns the result for a layer.
func (r Result) Layer(name string) (LayerResult, bool) {
	for _, l := range r.Layers {
		if l.Layer == name {
			return l, true
		}
	}
	return LayerResult{}, false
}

// Objects flattens every layer's timed then future objects.
func (r Result) Objects() []model.TimelineObject {
	var out []model.TimelineObject
	for _, l := range r.Layers {
		out = append(out, l.Timed...)
		out = append(out, l.Future...)
	}
	return out
}
