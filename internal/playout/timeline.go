package playout

import (
	"context"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/model"
)

// LookaheadInput assembles the lookahead input from the cache. An inactive
// playlist yields an input with no mapped layers.
func (e *Engine) LookaheadInput(ctx context.Context, pc *cache.PlayoutCache) (lookahead.Input, error) {
	playlist := pc.Playlist.Doc()
	in := lookahead.Input{
		Now:                   e.now(),
		DefaultSearchDistance: e.cfg.LookaheadDefaultDistance,
	}
	if !playlist.IsActive() {
		return in, nil
	}
	in.Mappings = pc.Studio.Mappings

	var curPtr, nextPtr *model.PartInstance
	cur, hasCur := pc.CurrentPartInstance()
	if hasCur {
		curPtr = &cur
		in.Current = &lookahead.PartInstanceInfo{
			Instance:   cur,
			Pieces:     pc.PieceInstancesOf(cur.ID),
			OnTimeline: true,
		}
	}
	if next, ok := pc.NextPartInstance(); ok {
		nextPtr = &next
		in.Next = &lookahead.PartInstanceInfo{
			Instance:   next,
			Pieces:     pc.PieceInstancesOf(next.ID),
			OnTimeline: hasCur && cur.Part.AutoNext,
		}
	}

	distance := 0
	for _, m := range in.Mappings {
		if m.LookaheadMode == model.LookaheadPreload || m.LookaheadMode == model.LookaheadWhenClear {
			distance = max(distance, lookahead.SearchDistance(m, e.cfg.LookaheadDefaultDistance))
		}
	}

	parts := OrderedPartsAfterPlayhead(playlist, curPtr, nextPtr, pc.OrderedSegments(), pc.OrderedParts(), distance)
	if len(parts) == 0 {
		return in, nil
	}

	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ID)
	}
	pieces, err := pc.FetchPieces(ctx, ids...)
	if err != nil {
		return in, err
	}
	byPart := make(map[string][]model.Piece, len(parts))
	for _, p := range pieces {
		byPart[p.StartPartID] = append(byPart[p.StartPartID], p)
	}
	for _, p := range parts {
		in.FutureParts = append(in.FutureParts, lookahead.FuturePart{Part: p, Pieces: byPart[p.ID]})
	}
	return in, nil
}

// Lookahead computes the lookahead of the cached playlist.
func (e *Engine) Lookahead(ctx context.Context, pc *cache.PlayoutCache) (lookahead.Result, error) {
	in, err := e.LookaheadInput(ctx, pc)
	if err != nil {
		return lookahead.Result{}, err
	}
	return lookahead.Compute(in), nil
}

// TimelineState builds the timeline update for the cached playlist.
func (e *Engine) TimelineState(ctx context.Context, pc *cache.PlayoutCache) (TimelineUpdate, error) {
	res, err := e.Lookahead(ctx, pc)
	if err != nil {
		return TimelineUpdate{}, err
	}
	playlist := pc.Playlist.Doc()
	return TimelineUpdate{
		StudioID:               playlist.StudioID,
		PlaylistID:             playlist.ID,
		ActivationID:           playlist.ActivationID,
		Rehearsal:              playlist.Rehearsal,
		CurrentPartInstanceID:  playlist.CurrentPartInstanceID(),
		NextPartInstanceID:     playlist.NextPartInstanceID(),
		PreviousPartInstanceID: playlist.PreviousPartInstanceID(),
		Lookahead:              res,
		GeneratedAt:            e.now(),
	}, nil
}

// queueTimelineUpdate computes the timeline from the final cache state as
// the job commits and publishes it once the commit succeeded.
func (e *Engine) queueTimelineUpdate(pc *cache.PlayoutCache) {
	if e.timeline == nil {
		return
	}
	var update TimelineUpdate
	pc.Defer(func(ctx context.Context) error {
		var err error
		update, err = e.TimelineState(ctx, pc)
		return err
	})
	pc.DeferAfterSave(func(ctx context.Context) error {
		if err := e.timeline.PublishTimeline(ctx, update); err != nil {
			e.logger.Warn("timeline publish failed", "playlist_id", pc.PlaylistID, "error", err)
		}
		return nil
	})
}
