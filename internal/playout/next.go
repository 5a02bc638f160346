package playout

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/model"
)

// selectAndSetNext recomputes the next pointer from ref.
func (e *Engine) selectAndSetNext(ctx context.Context, pc *cache.PlayoutCache, ref *model.PartInstance) error {
	sel, ok := SelectNextPart(pc.Playlist.Doc(), ref, pc.OrderedSegments(), pc.OrderedParts())
	if !ok {
		return e.setNext(ctx, pc, nil, false)
	}
	return e.setNext(ctx, pc, &sel, false)
}

// setNext points next at sel, creating a fresh part instance. A nil sel
// clears next. An untaken instance previously set as next is discarded.
func (e *Engine) setNext(ctx context.Context, pc *cache.PlayoutCache, sel *SelectedPart, manual bool) error {
	if old, ok := pc.NextPartInstance(); ok && !old.IsTaken {
		if sel != nil && old.Part.ID == sel.Part.ID {
			if err := pc.PartInstances.Update(old.ID, func(pi *model.PartInstance) {
				pi.ConsumesQueuedSegmentID = sel.ConsumesQueuedSegment
			}); err != nil {
				return err
			}
			old.ConsumesQueuedSegmentID = sel.ConsumesQueuedSegment
			return pc.Playlist.Update(func(p *model.RundownPlaylist) {
				p.NextPartInfo = selectedInfo(old, manual)
			})
		}
		discardInstance(pc, old.ID)
	}

	if sel == nil {
		return pc.Playlist.Update(func(p *model.RundownPlaylist) { p.NextPartInfo = nil })
	}

	inst, err := e.createPartInstance(ctx, pc, *sel)
	if err != nil {
		return err
	}
	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) {
		p.NextPartInfo = selectedInfo(inst, manual)
	}); err != nil {
		return err
	}

	e.logger.Debug("next part set",
		"playlist_id", pc.PlaylistID,
		"part_id", sel.Part.ID,
		"part_instance_id", inst.ID,
		"manual", manual,
	)

	bc := e.blueprintContext(pc)
	if err := e.blueprint.OnSetAsNext(ctx, bc); err != nil {
		return fmt.Errorf("blueprint onSetAsNext: %w", err)
	}
	return nil
}

func selectedInfo(inst model.PartInstance, manual bool) *model.SelectedPartInstance {
	return &model.SelectedPartInstance{
		PartInstanceID:          inst.ID,
		RundownID:               inst.RundownID,
		ManuallySelected:        manual,
		ConsumesQueuedSegmentID: inst.ConsumesQueuedSegmentID,
	}
}

// discardInstance physically removes a part instance that never went on air.
func discardInstance(pc *cache.PlayoutCache, partInstanceID string) {
	pc.PartInstances.Remove(partInstanceID)
	pc.PieceInstances.RemoveAll(func(p model.PieceInstance) bool {
		return p.PartInstanceID == partInstanceID
	})
}

// createPartInstance inserts a part instance for sel with its piece
// instances and the infinites continuing from the current part instance.
func (e *Engine) createPartInstance(ctx context.Context, pc *cache.PlayoutCache, sel SelectedPart) (model.PartInstance, error) {
	playlist := pc.Playlist.Doc()
	now := e.now()

	inst := model.PartInstance{
		ID:                      model.NewID(sel.Part.ID),
		PlaylistID:              pc.PlaylistID,
		RundownID:               sel.Part.RundownID,
		SegmentID:               sel.Part.SegmentID,
		ActivationID:            playlist.ActivationID,
		Rehearsal:               playlist.Rehearsal,
		ConsumesQueuedSegmentID: sel.ConsumesQueuedSegment,
		Part:                    sel.Part,
		Timings:                 model.PartInstanceTimings{SetAsNext: &now},
	}

	pieces, err := pc.FetchPieces(ctx, sel.Part.ID)
	if err != nil {
		return model.PartInstance{}, err
	}

	var created []model.PieceInstance
	usedLayers := make(map[string]bool)
	for _, p := range pieces {
		if p.Invalid {
			continue
		}
		pi := model.PieceInstance{
			ID:             inst.ID + "_" + p.ID,
			PlaylistID:     pc.PlaylistID,
			RundownID:      inst.RundownID,
			PartInstanceID: inst.ID,
			ActivationID:   playlist.ActivationID,
			Piece:          p,
		}
		if p.Lifespan.IsInfinite() {
			pi.Infinite = &model.PieceInstanceInfinite{InfiniteInstanceID: pi.ID, InfinitePieceID: p.ID}
		}
		if p.SourceLayerID != "" {
			usedLayers[p.SourceLayerID] = true
		}
		created = append(created, pi)
	}

	if current, ok := pc.CurrentPartInstance(); ok {
		for _, prev := range pc.PieceInstancesOf(current.ID) {
			if !continuesInto(prev, current, inst) || prev.ReportedStoppedPlayback != nil || usedLayers[prev.Piece.SourceLayerID] {
				continue
			}
			created = append(created, continuation(prev, inst))
		}
	}

	if err := pc.PartInstances.Insert(inst); err != nil {
		return model.PartInstance{}, err
	}
	for _, pi := range created {
		if err := pc.PieceInstances.Insert(pi); err != nil {
			return model.PartInstance{}, err
		}
	}
	return inst, nil
}

// continuesInto reports whether an infinite piece instance of from lives on in to.
func continuesInto(pi model.PieceInstance, from, to model.PartInstance) bool {
	switch pi.Piece.Lifespan {
	case model.LifespanOutOnSegmentEnd:
		return from.SegmentID == to.SegmentID
	case model.LifespanOutOnRundownEnd:
		return from.RundownID == to.RundownID
	case model.LifespanOutOnShowStyleEnd:
		return true
	default:
		return false
	}
}

func continuation(prev model.PieceInstance, into model.PartInstance) model.PieceInstance {
	infID, pieceID := prev.ID, prev.Piece.ID
	if prev.Infinite != nil {
		infID, pieceID = prev.Infinite.InfiniteInstanceID, prev.Infinite.InfinitePieceID
	}

	piece := prev.Piece
	piece.Enable.Start = 0

	return model.PieceInstance{
		ID:                      into.ID + "_" + infID,
		PlaylistID:              into.PlaylistID,
		RundownID:               into.RundownID,
		PartInstanceID:          into.ID,
		ActivationID:            into.ActivationID,
		Piece:                   piece,
		Infinite:                &model.PieceInstanceInfinite{InfiniteInstanceID: infID, InfinitePieceID: pieceID, FromPreviousPart: true},
		PlannedStartedPlayback:  prev.PlannedStartedPlayback,
		ReportedStartedPlayback: prev.ReportedStartedPlayback,
	}
}

func (e *Engine) blueprintContext(pc *cache.PlayoutCache) BlueprintContext {
	bc := BlueprintContext{Playlist: pc.Playlist.Doc()}
	if cur, ok := pc.CurrentPartInstance(); ok {
		bc.Current = &cur
	}
	if next, ok := pc.NextPartInstance(); ok {
		bc.Next = &next
	}
	return bc
}
