package playout

import (
	"context"
	"strings"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/model"
)

// ActivationMode is the mode requested alongside a reset.
type ActivationMode string

const (
	ActivationNone      ActivationMode = ""
	ActivationActive    ActivationMode = "active"
	ActivationRehearsal ActivationMode = "rehearsal"
)

// ResetOptions controls Reset.
type ResetOptions struct {
	// Activate re-activates the playlist after the reset.
	Activate ActivationMode

	// Force allows resetting an active playlist regardless of studio settings.
	Force bool
}

// Activate puts the playlist on air, or switches an active playlist
// between rehearsal and live.
//
// Fails with RundownAlreadyActiveNames when another playlist of the studio
// is active, and RundownAlreadyActive when this one already is in the
// requested mode.
func (e *Engine) Activate(ctx context.Context, pc *cache.PlayoutCache, rehearsal bool) error {
	if err := e.activate(ctx, pc, rehearsal); err != nil {
		return err
	}
	e.queueTimelineUpdate(pc)
	return nil
}

func (e *Engine) activate(ctx context.Context, pc *cache.PlayoutCache, rehearsal bool) error {
	others, err := pc.ActivePlaylistsInStudio(ctx)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		names := make([]string, 0, len(others))
		for _, p := range others {
			names = append(names, p.Name)
		}
		return userError(CodeRundownAlreadyActiveNames,
			map[string]any{"names": names},
			"only one rundown can be active at the same time, active: %s", strings.Join(names, ", "))
	}

	playlist := pc.Playlist.Doc()
	if playlist.IsActive() {
		if playlist.Rehearsal == rehearsal {
			return userError(CodeRundownAlreadyActive, nil, "rundown %q is already active", playlist.Name)
		}
		e.logger.Info("switching playlist mode", "playlist_id", playlist.ID, "rehearsal", rehearsal)
		return pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Rehearsal = rehearsal })
	}

	activationID := model.NewActivationID()
	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) {
		p.ActivationID = activationID
		p.Rehearsal = rehearsal
	}); err != nil {
		return err
	}
	e.logger.Info("playlist activated",
		"playlist_id", playlist.ID,
		"activation_id", activationID,
		"rehearsal", rehearsal,
	)

	if playlist.CurrentPartInfo == nil {
		if err := e.selectAndSetNext(ctx, pc, nil); err != nil {
			return err
		}
	}

	e.notifyDevices(pc, func(d model.PeripheralDevice) string { return d.OnActivate }, map[string]any{
		"playlistId": playlist.ID, "activationId": activationID, "rehearsal": rehearsal,
	})
	return nil
}

// Deactivate takes the playlist off air. Instances that were taken are left
// as history; the untaken next instance is discarded.
func (e *Engine) Deactivate(ctx context.Context, pc *cache.PlayoutCache) error {
	playlist := pc.Playlist.Doc()
	if !playlist.IsActive() {
		return userError(CodeInactiveRundown, nil, "rundown %q is not active", playlist.Name)
	}

	now := e.now()
	if cur, ok := pc.CurrentPartInstance(); ok {
		if err := pc.PartInstances.Update(cur.ID, func(pi *model.PartInstance) {
			if pi.Timings.TakeOut == nil {
				pi.Timings.TakeOut = &now
			}
			if pi.Timings.PlannedStoppedPlayback == nil {
				pi.Timings.PlannedStoppedPlayback = &now
			}
		}); err != nil {
			return err
		}
	}
	if next, ok := pc.NextPartInstance(); ok && !next.IsTaken {
		discardInstance(pc, next.ID)
	}

	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) {
		p.ActivationID = ""
		p.Rehearsal = false
		p.CurrentPartInfo = nil
		p.NextPartInfo = nil
		p.PreviousPartInfo = nil
		p.QueuedSegmentID = ""
	}); err != nil {
		return err
	}
	e.logger.Info("playlist deactivated", "playlist_id", playlist.ID, "activation_id", playlist.ActivationID)

	e.notifyDevices(pc, func(d model.PeripheralDevice) string { return d.OnDeactivate }, map[string]any{
		"playlistId": playlist.ID,
	})
	e.queueTimelineUpdate(pc)
	return nil
}

// Reset marks every part and piece instance of the playlist as reset and
// clears the pointers. An active playlist may only be reset when the studio
// allows it or opts.Force is set; it then gets a fresh next part.
func (e *Engine) Reset(ctx context.Context, pc *cache.PlayoutCache, opts ResetOptions) error {
	playlist := pc.Playlist.Doc()
	if playlist.IsActive() && !opts.Force && !pc.Studio.Settings.AllowRundownResetOnAir {
		return userError(CodeRundownResetWhileActive, nil, "rundown %q cannot be reset while active", playlist.Name)
	}

	now := e.now()
	markReset := func(pi *model.PartInstance) { pi.Reset = true }
	if _, err := pc.PartInstances.UpdateAll(func(p model.PartInstance) bool { return !p.Reset }, markReset); err != nil {
		return err
	}
	if _, err := pc.PieceInstances.UpdateAll(
		func(p model.PieceInstance) bool { return !p.Reset },
		func(p *model.PieceInstance) { p.Reset = true },
	); err != nil {
		return err
	}

	if err := pc.Playlist.Update(func(p *model.RundownPlaylist) {
		p.CurrentPartInfo = nil
		p.NextPartInfo = nil
		p.PreviousPartInfo = nil
		p.QueuedSegmentID = ""
		p.LastTakeTime = nil
		p.ResetTime = &now
	}); err != nil {
		return err
	}
	e.logger.Info("playlist reset", "playlist_id", playlist.ID, "was_active", playlist.IsActive())

	switch {
	case opts.Activate != ActivationNone:
		rehearsal := opts.Activate == ActivationRehearsal
		if pc.Playlist.Doc().IsActive() {
			if err := pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Rehearsal = rehearsal }); err != nil {
				return err
			}
			if err := e.selectAndSetNext(ctx, pc, nil); err != nil {
				return err
			}
		} else if err := e.activate(ctx, pc, rehearsal); err != nil {
			return err
		}
	case playlist.IsActive():
		if err := e.selectAndSetNext(ctx, pc, nil); err != nil {
			return err
		}
	}

	e.queueTimelineUpdate(pc)
	return nil
}

// notifyDevices calls each peripheral device's function after commit.
func (e *Engine) notifyDevices(pc *cache.PlayoutCache, function func(model.PeripheralDevice) string, args map[string]any) {
	if e.devices == nil {
		return
	}
	for _, d := range pc.Studio.PeripheralDevices {
		fn := function(d)
		if fn == "" {
			continue
		}
		pc.DeferAfterSave(func(ctx context.Context) error {
			if err := e.devices.ExecuteFunction(ctx, d.ID, fn, args); err != nil {
				e.logger.Warn("device function failed", "device_id", d.ID, "function", fn, "error", err)
			}
			return nil
		})
	}
}
