package playout

import (
	"context"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/model"
)

func requireActive(pc *cache.PlayoutCache) (model.RundownPlaylist, error) {
	playlist := pc.Playlist.Doc()
	if !playlist.IsActive() {
		return playlist, userError(CodeInactiveRundown, nil, "rundown %q is not active", playlist.Name)
	}
	return playlist, nil
}

// SetNextPart manually selects partID as next.
func (e *Engine) SetNextPart(ctx context.Context, pc *cache.PlayoutCache, partID string) error {
	if _, err := requireActive(pc); err != nil {
		return err
	}
	part, ok := pc.Parts.FindOne(partID)
	if !ok {
		return userError(CodePartNotFound, map[string]any{"partId": partID}, "part %q not found", partID)
	}
	if !part.IsPlayable() {
		return userError(CodePartNotPlayable, map[string]any{"partId": partID}, "part %q is not playable", partID)
	}

	sel := SelectedPart{Part: part, Index: indexOfPart(pc.OrderedParts(), partID)}
	if err := e.setNext(ctx, pc, &sel, true); err != nil {
		return err
	}
	e.queueTimelineUpdate(pc)
	return nil
}

// MoveNextPart moves next relative to the next part (or current when there
// is no next) and returns the new next part id.
//
// A non-zero segmentDelta moves across visible segments first, skipping
// segments without playable parts, and partDelta then offsets from that
// segment's first playable part. Otherwise partDelta moves within the
// reference part's segment. The current part is never a target.
func (e *Engine) MoveNextPart(ctx context.Context, pc *cache.PlayoutCache, partDelta, segmentDelta int) (string, error) {
	if _, err := requireActive(pc); err != nil {
		return "", err
	}
	noTarget := func(reason string) error {
		return userError(CodeMoveNextPartNoTarget,
			map[string]any{"partDelta": partDelta, "segmentDelta": segmentDelta},
			"cannot move next part: %s", reason)
	}
	if partDelta == 0 && segmentDelta == 0 {
		return "", noTarget("no movement requested")
	}

	ref, ok := pc.NextPartInstance()
	if !ok {
		if ref, ok = pc.CurrentPartInstance(); !ok {
			return "", noTarget("no next or current part")
		}
	}
	cur, hasCur := pc.CurrentPartInstance()

	parts := pc.OrderedParts()
	var considered []model.Segment
	for _, s := range pc.OrderedSegments() {
		if s.ID == ref.SegmentID || !s.IsHidden {
			considered = append(considered, s)
		}
	}

	candidatesIn := func(segmentID, keep string) []model.Part {
		var out []model.Part
		for _, p := range parts {
			if p.SegmentID != segmentID {
				continue
			}
			if p.ID == keep || (p.IsPlayable() && !(hasCur && p.ID == cur.Part.ID)) {
				out = append(out, p)
			}
		}
		return out
	}

	var (
		target model.Part
		found  bool
	)
	if segmentDelta != 0 {
		refSeg := -1
		for i, s := range considered {
			if s.ID == ref.SegmentID {
				refSeg = i
				break
			}
		}
		if refSeg < 0 {
			return "", noTarget("reference segment not found")
		}
		step := 1
		if segmentDelta < 0 {
			step = -1
		}
		for i := refSeg + segmentDelta; i >= 0 && i < len(considered); i += step {
			list := candidatesIn(considered[i].ID, "")
			if len(list) == 0 {
				continue
			}
			if partDelta >= 0 && partDelta < len(list) {
				target, found = list[partDelta], true
			}
			break
		}
	} else {
		list := candidatesIn(ref.SegmentID, ref.Part.ID)
		if i := indexOfPart(list, ref.Part.ID); i >= 0 {
			if j := i + partDelta; j >= 0 && j < len(list) {
				target, found = list[j], true
			}
		}
	}
	if !found || !target.IsPlayable() {
		return "", noTarget("no playable part in that direction")
	}

	sel := SelectedPart{Part: target, Index: indexOfPart(parts, target.ID)}
	if err := e.setNext(ctx, pc, &sel, true); err != nil {
		return "", err
	}
	e.queueTimelineUpdate(pc)
	return target.ID, nil
}

// firstPlayableInSegment validates segmentID and returns its first playable part.
func firstPlayableInSegment(pc *cache.PlayoutCache, segmentID string) (SelectedPart, error) {
	if _, ok := pc.Segments.FindOne(segmentID); !ok {
		return SelectedPart{}, userError(CodeSegmentNotFound, map[string]any{"segmentId": segmentID}, "segment %q not found", segmentID)
	}
	for i, p := range pc.OrderedParts() {
		if p.SegmentID == segmentID && p.IsPlayable() {
			return SelectedPart{Part: p, Index: i}, nil
		}
	}
	return SelectedPart{}, userError(CodeSegmentNoPlayableParts, map[string]any{"segmentId": segmentID}, "segment %q has no playable parts", segmentID)
}

// SetNextSegment sets next to the first playable part of segmentID and
// clears any queued segment.
func (e *Engine) SetNextSegment(ctx context.Context, pc *cache.PlayoutCache, segmentID string) error {
	if _, err := requireActive(pc); err != nil {
		return err
	}
	sel, err := firstPlayableInSegment(pc, segmentID)
	if err != nil {
		return err
	}
	if err := e.setNext(ctx, pc, &sel, true); err != nil {
		return err
	}
	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) { p.QueuedSegmentID = "" }); err != nil {
		return err
	}
	e.queueTimelineUpdate(pc)
	return nil
}

// QueueNextSegment queues segmentID to play after the current part. Queuing
// the segment on air has no effect on selection. An empty segmentID clears
// the queue. A next part chosen automatically is re-selected so it reflects
// the queue; a manual choice is kept.
func (e *Engine) QueueNextSegment(ctx context.Context, pc *cache.PlayoutCache, segmentID string) error {
	playlist, err := requireActive(pc)
	if err != nil {
		return err
	}
	if segmentID != "" {
		if _, err := firstPlayableInSegment(pc, segmentID); err != nil {
			return err
		}
	}
	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) { p.QueuedSegmentID = segmentID }); err != nil {
		return err
	}

	if playlist.NextPartInfo == nil || !playlist.NextPartInfo.ManuallySelected {
		var ref *model.PartInstance
		if cur, ok := pc.CurrentPartInstance(); ok {
			ref = &cur
		}
		if err := e.selectAndSetNext(ctx, pc, ref); err != nil {
			return err
		}
	}
	e.queueTimelineUpdate(pc)
	return nil
}
