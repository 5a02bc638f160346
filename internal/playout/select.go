package playout

import (
	"slices"

	"github.com/nerrad567/playout-core/internal/model"
)

// SelectedPart is a candidate for the next pointer.
type SelectedPart struct {
	Part model.Part

	// Index is the part's position in the ordered part list.
	Index int

	// ConsumesQueuedSegment is set when the part was picked from the queued segment.
	ConsumesQueuedSegment bool
}

// SelectNextPart picks the part to play after ref.
//
// parts must be every part of the playlist in playback order, including
// unplayable ones; segments likewise. A nil ref selects from the start.
// Order of precedence:
//
//  1. the first playable part of the queued segment, unless ref plays
//     inside it; a take that consumes the queue clears it
//  2. the quick loop start, when ref is the quick loop end
//  3. the next playable part after ref
//  4. a wrap to the start when the playlist or quick loop loops
func SelectNextPart(playlist model.RundownPlaylist, ref *model.PartInstance, segments []model.Segment, parts []model.Part) (SelectedPart, bool) {
	firstPlayable := func(from, to int, cond func(model.Part) bool) (SelectedPart, bool) {
		for i := max(from, 0); i < min(to, len(parts)); i++ {
			p := parts[i]
			if p.IsPlayable() && (cond == nil || cond(p)) {
				return SelectedPart{Part: p, Index: i}, true
			}
		}
		return SelectedPart{}, false
	}

	searchFrom := 0
	if ref != nil {
		searchFrom = searchStart(ref, segments, parts)
	}

	next, ok := firstPlayable(searchFrom, len(parts), nil)

	if queued := playlist.QueuedSegmentID; queued != "" {
		if ref == nil || ref.SegmentID != queued {
			inQueued := func(p model.Part) bool { return p.SegmentID == queued }
			if q, found := firstPlayable(0, len(parts), inQueued); found {
				q.ConsumesQueuedSegment = true
				return q, true
			}
		}
	}

	ql := playlist.QuickLoop
	quickLoop := ql != nil && ql.Enabled && ql.StartPartID != ""
	if quickLoop && ref != nil && ref.Part.ID == ql.EndPartID {
		if start, found := firstPlayable(0, len(parts), func(p model.Part) bool { return p.ID == ql.StartPartID }); found {
			return start, true
		}
	}

	if !ok && ref != nil {
		switch {
		case playlist.Loop:
			next, ok = firstPlayable(0, searchFrom, nil)
		case quickLoop:
			next, ok = firstPlayable(0, len(parts), func(p model.Part) bool { return p.ID == ql.StartPartID })
		}
	}
	return next, ok
}

// searchStart returns the index after ref. A ref whose part is no longer
// in the list continues from the first part of a later segment.
func searchStart(ref *model.PartInstance, segments []model.Segment, parts []model.Part) int {
	if i := indexOfPart(parts, ref.Part.ID); i >= 0 {
		return i + 1
	}

	segIdx := slices.IndexFunc(segments, func(s model.Segment) bool { return s.ID == ref.SegmentID })
	if segIdx < 0 {
		return 0
	}
	for _, seg := range segments[segIdx+1:] {
		if i := slices.IndexFunc(parts, func(p model.Part) bool { return p.SegmentID == seg.ID }); i >= 0 {
			return i
		}
	}
	return len(parts)
}

func indexOfPart(parts []model.Part, id string) int {
	return slices.IndexFunc(parts, func(p model.Part) bool { return p.ID == id })
}

// OrderedPartsAfterPlayhead returns up to count playable parts following
// the next part instance (or current when there is no next), honouring the
// queued segment, the loop flag and the quick loop. No part is listed twice.
func OrderedPartsAfterPlayhead(playlist model.RundownPlaylist, current, next *model.PartInstance, segments []model.Segment, parts []model.Part, count int) []model.Part {
	if count <= 0 {
		return nil
	}

	// A next instance that already consumed the queue is followed by adjacency.
	if next != nil && next.ConsumesQueuedSegmentID {
		playlist.QueuedSegmentID = ""
	}
	ref := next
	if ref == nil {
		ref = current
	}

	sel, ok := SelectNextPart(playlist, ref, segments, parts)
	if !ok {
		return nil
	}

	playable := make([]model.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsPlayable() {
			playable = append(playable, p)
		}
	}
	idx := indexOfPart(playable, sel.Part.ID)
	if idx < 0 {
		return nil
	}

	ql := playlist.QuickLoop
	loopStart := -1
	if ql != nil && ql.Enabled && ql.StartPartID != "" {
		loopStart = indexOfPart(playable, ql.StartPartID)
	}

	out := make([]model.Part, 0, count)
	seen := make(map[string]bool, count)
	for i := idx; len(out) < count; {
		if i >= len(playable) {
			switch {
			case playlist.Loop:
				i = 0
			case loopStart >= 0:
				i = loopStart
			default:
				return out
			}
		}
		p := playable[i]
		if seen[p.ID] {
			break
		}
		seen[p.ID] = true
		out = append(out, p)

		if loopStart >= 0 && p.ID == ql.EndPartID {
			i = loopStart
		} else {
			i++
		}
	}
	return out
}
