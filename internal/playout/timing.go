package playout

import (
	"context"
	"fmt"
	"slices"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/model"
)

// Inconsistency kinds reported by OnPlaybackChanged.
const (
	InconsistencyUnknownPartInstance  = "unknownPartInstance"
	InconsistencyUnknownPieceInstance = "unknownPieceInstance"
	InconsistencyStopWithoutStart     = "stopWithoutStart"
)

// Inconsistency is a playback report that could not be applied cleanly.
// It is logged and returned, never treated as a failure.
type Inconsistency struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// OnPlaybackChanged records hardware playback reports.
//
// Only the earliest reported start and stop of each instance is kept. A
// start report for the next part instance while the current part
// auto-advances performs the take the hardware already made.
func (e *Engine) OnPlaybackChanged(ctx context.Context, pc *cache.PlayoutCache, changes []PlaybackChange) ([]Inconsistency, error) {
	tr := &timingTracker{e: e, ctx: ctx, pc: pc}
	for _, c := range changes {
		if err := c.Accept(tr); err != nil {
			return tr.issues, err
		}
	}

	for _, issue := range tr.issues {
		e.logger.Warn("playback inconsistency",
			"playlist_id", pc.PlaylistID,
			"kind", issue.Kind,
			"id", issue.ID,
			"message", issue.Message,
		)
	}

	if e.timings != nil {
		for _, id := range tr.started {
			inst, ok := pc.PartInstances.FindOne(id)
			if !ok || inst.Timings.ReportedStartedPlayback == nil {
				continue
			}
			timing := PartTiming{
				PlaylistID:     pc.PlaylistID,
				PartInstanceID: inst.ID,
				PartID:         inst.Part.ID,
				Planned:        inst.Timings.PlannedStartedPlayback,
				Reported:       *inst.Timings.ReportedStartedPlayback,
			}
			pc.DeferAfterSave(func(context.Context) error {
				e.timings.RecordPartTiming(timing)
				return nil
			})
		}
	}
	e.queueTimelineUpdate(pc)
	return tr.issues, nil
}

// timingTracker applies playback changes to one cache.
type timingTracker struct {
	e       *Engine
	ctx     context.Context
	pc      *cache.PlayoutCache
	issues  []Inconsistency
	started []string
}

var _ PlaybackVisitor = (*timingTracker)(nil)

func (t *timingTracker) report(kind, id, format string, a ...any) {
	t.issues = append(t.issues, Inconsistency{Kind: kind, ID: id, Message: fmt.Sprintf(format, a...)})
}

// earliest returns the pointer to keep and whether it changed.
func earliest(existing *int64, at int64) (*int64, bool) {
	if existing != nil && *existing <= at {
		return existing, false
	}
	return &at, true
}

func (t *timingTracker) livePartInstance(id string) (model.PartInstance, bool) {
	inst, ok := t.pc.PartInstances.FindOne(id)
	if !ok || inst.Reset {
		t.report(InconsistencyUnknownPartInstance, id, "part instance %q is not live", id)
		return model.PartInstance{}, false
	}
	return inst, true
}

func (t *timingTracker) livePieceInstance(id string) (model.PieceInstance, bool) {
	inst, ok := t.pc.PieceInstances.FindOne(id)
	if !ok || inst.Reset {
		t.report(InconsistencyUnknownPieceInstance, id, "piece instance %q is not live", id)
		return model.PieceInstance{}, false
	}
	return inst, true
}

func (t *timingTracker) PartPlaybackStarted(c PartPlaybackStarted) error {
	inst, ok := t.livePartInstance(c.PartInstanceID)
	if !ok {
		return nil
	}

	playlist := t.pc.Playlist.Doc()
	if playlist.IsActive() && c.PartInstanceID == playlist.NextPartInstanceID() {
		if cur, hasCur := t.pc.CurrentPartInstance(); hasCur && cur.Part.AutoNext {
			t.e.logger.Info("implicit take on autonext",
				"playlist_id", playlist.ID,
				"part_instance_id", c.PartInstanceID,
			)
			if err := t.e.take(t.ctx, t.pc, c.Time); err != nil {
				return err
			}
			inst, _ = t.pc.PartInstances.FindOne(c.PartInstanceID)
		}
	}

	kept, changed := earliest(inst.Timings.ReportedStartedPlayback, c.Time)
	if !changed {
		return nil
	}
	if err := t.pc.PartInstances.Update(inst.ID, func(pi *model.PartInstance) {
		pi.Timings.ReportedStartedPlayback = kept
	}); err != nil {
		return err
	}
	if !slices.Contains(t.started, inst.ID) {
		t.started = append(t.started, inst.ID)
	}
	return nil
}

func (t *timingTracker) PartPlaybackStopped(c PartPlaybackStopped) error {
	inst, ok := t.livePartInstance(c.PartInstanceID)
	if !ok {
		return nil
	}
	if inst.Timings.ReportedStartedPlayback == nil {
		t.report(InconsistencyStopWithoutStart, inst.ID, "part instance %q stopped without starting", inst.ID)
	}
	kept, changed := earliest(inst.Timings.ReportedStoppedPlayback, c.Time)
	if !changed {
		return nil
	}
	return t.pc.PartInstances.Update(inst.ID, func(pi *model.PartInstance) {
		pi.Timings.ReportedStoppedPlayback = kept
	})
}

func (t *timingTracker) PiecePlaybackStarted(c PiecePlaybackStarted) error {
	inst, ok := t.livePieceInstance(c.PieceInstanceID)
	if !ok {
		return nil
	}
	kept, changed := earliest(inst.ReportedStartedPlayback, c.Time)
	if !changed {
		return nil
	}
	return t.pc.PieceInstances.Update(inst.ID, func(pi *model.PieceInstance) {
		pi.ReportedStartedPlayback = kept
	})
}

func (t *timingTracker) PiecePlaybackStopped(c PiecePlaybackStopped) error {
	inst, ok := t.livePieceInstance(c.PieceInstanceID)
	if !ok {
		return nil
	}
	if inst.ReportedStartedPlayback == nil {
		t.report(InconsistencyStopWithoutStart, inst.ID, "piece instance %q stopped without starting", inst.ID)
	}
	kept, changed := earliest(inst.ReportedStoppedPlayback, c.Time)
	if !changed {
		return nil
	}
	return t.pc.PieceInstances.Update(inst.ID, func(pi *model.PieceInstance) {
		pi.ReportedStoppedPlayback = kept
	})
}

func (t *timingTracker) TriggerRegeneration(c TriggerRegeneration) error {
	t.e.logger.Debug("timeline regeneration requested", "playlist_id", t.pc.PlaylistID, "reason", c.Reason)
	return nil
}
