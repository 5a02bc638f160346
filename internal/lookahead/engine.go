package lookahead

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/nerrad567/playout-core/internal/model"
)

// candidate is a piece that may contribute a lookahead object.
type candidate struct {
	piece           model.Piece
	partInstanceID  string
	pieceInstanceID string
	infiniteID      string

	// start is the absolute start when already known.
	start *int64
}

func (c candidate) owner() string {
	if c.pieceInstanceID != "" {
		return c.pieceInstanceID
	}
	return c.piece.ID
}

// found is an object picked for a layer before its enable is assigned.
type found struct {
	obj  model.TimelineObject
	from candidate
}

// Compute returns the lookahead for every layer mapped with preload or whenClear.
func Compute(in Input) Result {
	layers := make([]string, 0, len(in.Mappings))
	for name, m := range in.Mappings {
		switch m.LookaheadMode {
		case model.LookaheadPreload, model.LookaheadWhenClear:
			layers = append(layers, name)
		}
	}
	sort.Strings(layers)

	res := Result{Layers: make([]LayerResult, 0, len(layers))}
	for _, layer := range layers {
		res.Layers = append(res.Layers, computeLayer(in, layer, in.Mappings[layer]))
	}
	return res
}

// SearchDistance returns the number of future parts searched for a layer.
func SearchDistance(m model.LayerMapping, fallback int) int {
	if fallback <= 0 {
		fallback = DefaultSearchDistance
	}
	if m.LookaheadMaxSearchDistance == nil || *m.LookaheadMaxSearchDistance <= -1 {
		return fallback
	}
	return *m.LookaheadMaxSearchDistance
}

// TargetCount returns the number of future objects wanted for a layer.
func TargetCount(m model.LayerMapping) int {
	return max(m.LookaheadDepth, 1)
}

func computeLayer(in Input, layer string, m model.LayerMapping) LayerResult {
	target := TargetCount(m)
	distance := SearchDistance(m, in.DefaultSearchDistance)

	var (
		timed, future []found
		previousPart  *model.Part
	)

	for _, info := range []*PartInstanceInfo{in.Current, in.Next} {
		if info == nil {
			continue
		}
		if !info.OnTimeline && distance <= 0 {
			break
		}
		objs := findObjectsForPart(layer, previousPart, instanceCandidates(in.Now, info))
		if info.OnTimeline {
			timed = append(timed, objs...)
		} else {
			future = append(future, objs...)
		}
		part := info.Instance.Part
		previousPart = &part
	}

	searched := in.FutureParts[:min(max(distance, 0), len(in.FutureParts))]
	for _, fp := range searched {
		if len(future) >= target {
			break
		}
		future = append(future, findObjectsForPart(layer, previousPart, partCandidates(fp))...)
		part := fp.Part
		previousPart = &part
	}
	if len(future) > target {
		future = future[:target]
	}

	outLayer := layer
	if m.LookaheadMode == model.LookaheadPreload {
		outLayer = layer + LayerSuffix
	}

	res := LayerResult{
		Layer:  layer,
		Mode:   m.LookaheadMode,
		Timed:  make([]model.TimelineObject, 0, len(timed)),
		Future: make([]model.TimelineObject, 0, len(future)),
	}

	for i, f := range timed {
		obj := finish(f, layer, outLayer)
		obj.Priority = ObjectPriority
		if i == 0 {
			start := in.Now
			if f.from.start != nil {
				start = *f.from.start
			}
			obj.Enable = model.TimelineEnable{Start: &start}
		} else {
			prev := res.Timed[i-1]
			ref := "#" + prev.ID + ".end"
			if prev.NeedsStartDelay {
				ref += fmt.Sprintf(" + %d", StartDelay)
			}
			obj.Enable = model.TimelineEnable{StartRef: ref}
		}
		res.Timed = append(res.Timed, obj)
	}

	n := len(future)
	for i, f := range future {
		obj := finish(f, layer, outLayer)
		obj.Priority = ObjectPriority / float64(n+1) * float64(n-i)
		obj.Enable = model.TimelineEnable{While: "1"}
		if m.LookaheadMode == model.LookaheadWhenClear {
			switch {
			case i > 0:
				obj.Disabled = true
			case len(res.Timed) > 0:
				obj.Enable = model.TimelineEnable{StartRef: "#" + res.Timed[len(res.Timed)-1].ID + ".end"}
			}
		}
		res.Future = append(res.Future, obj)
	}
	return res
}

// finish stamps provenance onto a picked object.
func finish(f found, layer, outLayer string) model.TimelineObject {
	obj := f.obj
	obj.ID = "lookahead_" + layer + "_" + f.from.owner() + "_" + obj.ID
	obj.Layer = outLayer
	obj.IsLookahead = true
	obj.LookaheadForLayer = layer
	obj.PartInstanceID = f.from.partInstanceID
	obj.PieceInstanceID = f.from.pieceInstanceID
	obj.InfiniteID = f.from.infiniteID
	obj.Keyframes = nil
	obj.Disabled = false
	return obj
}

// instanceCandidates lists the piece instances of a part instance that still need lookahead.
func instanceCandidates(now int64, info *PartInstanceInfo) []candidate {
	startedAt := info.Instance.Timings.StartedPlayback()
	var nowInPart int64
	started := info.OnTimeline && startedAt != nil
	if started {
		nowInPart = now - *startedAt
	}

	out := make([]candidate, 0, len(info.Pieces))
	for _, pi := range info.Pieces {
		if pi.Reset || pi.Piece.Invalid || pi.IsContinuation() {
			continue
		}
		if definitelyEnded(pi, started, nowInPart) {
			continue
		}
		c := candidate{
			piece:           pi.Piece,
			partInstanceID:  info.Instance.ID,
			pieceInstanceID: pi.ID,
		}
		if pi.Infinite != nil {
			c.infiniteID = pi.Infinite.InfiniteInstanceID
		}
		switch {
		case pi.ReportedStartedPlayback != nil:
			v := *pi.ReportedStartedPlayback
			c.start = &v
		case startedAt != nil:
			v := *startedAt + pi.Piece.Enable.Start
			c.start = &v
		}
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

func partCandidates(fp FuturePart) []candidate {
	out := make([]candidate, 0, len(fp.Pieces))
	for _, p := range fp.Pieces {
		if p.Invalid {
			continue
		}
		out = append(out, candidate{piece: p})
	}
	sortCandidates(out)
	return out
}

func sortCandidates(cs []candidate) {
	slices.SortStableFunc(cs, func(a, b candidate) int {
		if a.piece.Enable.Start != b.piece.Enable.Start {
			if a.piece.Enable.Start < b.piece.Enable.Start {
				return -1
			}
			return 1
		}
		return strings.Compare(a.owner(), b.owner())
	})
}

// definitelyEnded reports whether a piece instance can no longer be on air.
func definitelyEnded(pi model.PieceInstance, started bool, nowInPart int64) bool {
	if pi.ReportedStoppedPlayback != nil {
		return true
	}
	if !started || pi.Piece.HasSideEffects {
		return false
	}
	d := pi.Piece.Enable.Duration
	return d != nil && pi.Piece.Enable.Start+*d+endedGrace < nowInPart
}

// findObjectsForPart picks at most one object per candidate on layer.
func findObjectsForPart(layer string, previousPart *model.Part, cands []candidate) []found {
	type picked struct {
		c   candidate
		obj model.TimelineObject
	}
	var onLayer []picked
	for _, c := range cands {
		for _, obj := range c.piece.TimelineObjects {
			if obj.Layer == layer {
				onLayer = append(onLayer, picked{c: c, obj: obj})
				break
			}
		}
	}
	if len(onLayer) == 0 {
		return nil
	}

	hasTransition := false
	if previousPart != nil && !previousPart.DisableNextInTransition {
		for _, p := range onLayer {
			if p.c.piece.IsInTransition() {
				hasTransition = true
				break
			}
		}
	}

	var classes []string
	if previousPart != nil {
		classes = previousPart.ClassesForNext
	}

	out := make([]found, 0, len(onLayer))
	for _, p := range onLayer {
		// A piece at 0 is covered by the transition.
		if hasTransition && !p.c.piece.IsInTransition() && p.c.piece.Enable.Start == 0 {
			continue
		}
		obj := p.obj.Clone()
		if hasTransition {
			if kf, ok := transitionKeyframe(obj.Keyframes, classes); ok {
				if obj.Content == nil {
					obj.Content = make(map[string]any, len(kf.Content))
				}
				maps.Copy(obj.Content, kf.Content)
			}
		}
		out = append(out, found{obj: obj, from: p.c})
	}
	return out
}

// transitionKeyframe returns the first keyframe matching a transition from a
// part offering classes.
func transitionKeyframe(kfs []model.Keyframe, classes []string) (model.Keyframe, bool) {
	for _, kf := range kfs {
		if !kf.Condition.IsTransition {
			continue
		}
		if kf.Condition.PreviousPartClass != "" && !slices.Contains(classes, kf.Condition.PreviousPartClass) {
			continue
		}
		return kf, true
	}
	return model.Keyframe{}, false
}
