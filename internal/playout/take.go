package playout

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/model"
)

// Take promotes the next part instance to current and selects a new next.
//
// fromPartInstanceID must name the current part instance ("" when nothing
// is on air yet) so a stale client cannot take twice.
func (e *Engine) Take(ctx context.Context, pc *cache.PlayoutCache, fromPartInstanceID string) error {
	playlist := pc.Playlist.Doc()
	if !playlist.IsActive() {
		return userError(CodeInactiveRundown, nil, "rundown %q is not active", playlist.Name)
	}
	if cur := playlist.CurrentPartInstanceID(); cur != fromPartInstanceID {
		return userError(CodeTakeFromIncorrectPart,
			map[string]any{"current": cur, "from": fromPartInstanceID},
			"take from %q does not match current part instance %q", fromPartInstanceID, cur)
	}
	if playlist.NextPartInfo == nil {
		return userError(CodeTakeNoNextPart, nil, "rundown %q has no next part", playlist.Name)
	}

	now := e.now()
	if cur, ok := pc.CurrentPartInstance(); ok {
		span := e.cfg.MinimumTakeSpan.Milliseconds()
		if last := playlist.LastTakeTime; last != nil && span > 0 && now-*last < span {
			return userError(CodeTakeRateLimit,
				map[string]any{"duration": span},
				"take ignored, takes must be at least %dms apart", span)
		}
		if e.inAutonextGuard(cur, now) {
			return userError(CodeTakeCloseToAutonext, nil, "take is too close to the automatic advance")
		}
	}

	if err := e.take(ctx, pc, now); err != nil {
		return err
	}
	e.queueTimelineUpdate(pc)
	return nil
}

// inAutonextGuard reports whether now falls in the guard window before
// cur automatically advances.
func (e *Engine) inAutonextGuard(cur model.PartInstance, now int64) bool {
	guard := e.cfg.AutonextGuard.Milliseconds()
	if !cur.Part.AutoNext || cur.Part.ExpectedDuration <= 0 || guard <= 0 {
		return false
	}
	start := cur.Timings.StartedPlayback()
	if start == nil {
		return false
	}
	end := *start + cur.Part.ExpectedDuration
	return now > end-guard && now <= end
}

// take performs the pointer shuffle without any guard.
func (e *Engine) take(ctx context.Context, pc *cache.PlayoutCache, now int64) error {
	playlist := pc.Playlist.Doc()
	taking, ok := pc.NextPartInstance()
	if !ok {
		return integrityError("next part instance %q of playlist %q is not loaded", playlist.NextPartInstanceID(), playlist.ID)
	}
	cur, hasCur := pc.CurrentPartInstance()

	takeCount := 0
	if hasCur {
		takeCount = cur.TakeCount + 1
	}
	if err := pc.PartInstances.Update(taking.ID, func(pi *model.PartInstance) {
		pi.IsTaken = true
		pi.TakeCount = takeCount
		pi.Timings.Take = &now
		pi.Timings.PlannedStartedPlayback = &now
	}); err != nil {
		return err
	}
	if _, err := pc.PieceInstances.UpdateAll(
		func(p model.PieceInstance) bool { return p.PartInstanceID == taking.ID && p.PlannedStartedPlayback == nil },
		func(p *model.PieceInstance) {
			start := now + p.Piece.Enable.Start
			p.PlannedStartedPlayback = &start
		},
	); err != nil {
		return err
	}

	if hasCur {
		if err := pc.PartInstances.Update(cur.ID, func(pi *model.PartInstance) {
			pi.Timings.TakeOut = &now
			if pi.Timings.PlannedStoppedPlayback == nil {
				pi.Timings.PlannedStoppedPlayback = &now
			}
		}); err != nil {
			return err
		}
		if _, err := pc.PieceInstances.UpdateAll(
			func(p model.PieceInstance) bool { return p.PartInstanceID == cur.ID && p.PlannedStoppedPlayback == nil },
			func(p *model.PieceInstance) { p.PlannedStoppedPlayback = &now },
		); err != nil {
			return err
		}
	}

	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) {
		p.PreviousPartInfo = p.CurrentPartInfo
		p.CurrentPartInfo = p.NextPartInfo
		p.NextPartInfo = nil
		p.LastTakeTime = &now
		if taking.ConsumesQueuedSegmentID {
			p.QueuedSegmentID = ""
		}
	}); err != nil {
		return err
	}

	e.logger.Info("take",
		"playlist_id", playlist.ID,
		"part_instance_id", taking.ID,
		"part_id", taking.Part.ID,
		"take_count", takeCount,
	)

	if err := e.blueprint.OnTake(ctx, e.blueprintContext(pc)); err != nil {
		return fmt.Errorf("blueprint onTake: %w", err)
	}

	taken, _ := pc.PartInstances.FindOne(taking.ID)
	return e.selectAndSetNext(ctx, pc, &taken)
}
