package jobs

import (
	"context"
	"time"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/playout"
)

func playlistJob(kind Kind, playlistID string) job {
	return job{kind: kind, scope: lock.Playlist(playlistID), playlistID: playlistID}
}

// activationJob gates on the playlist's studio.
func (r *Runner) activationJob(ctx context.Context, kind Kind, playlistID string) (job, error) {
	studioID, err := r.studioOf(ctx, playlistID)
	if err != nil {
		return job{}, err
	}
	j := playlistJob(kind, playlistID)
	j.gateKey = studioID
	return j, nil
}

// ActivateRundownPlaylist puts a playlist on air, or switches it between
// rehearsal and live.
func (r *Runner) ActivateRundownPlaylist(ctx context.Context, playlistID string, rehearsal bool) error {
	j, err := r.activationJob(ctx, KindActivate, playlistID)
	if err != nil {
		r.finish(playlistJob(KindActivate, playlistID), time.Now(), err)
		return err
	}
	return r.runPlayout(ctx, j, func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.Activate(ctx, pc, rehearsal)
	})
}

// DeactivateRundownPlaylist takes a playlist off air.
func (r *Runner) DeactivateRundownPlaylist(ctx context.Context, playlistID string) error {
	return r.runPlayout(ctx, playlistJob(KindDeactivate, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.Deactivate(ctx, pc)
	})
}

// ResetRundownPlaylist resets a playlist, optionally activating it again.
// With an activation mode it is gated like ActivateRundownPlaylist.
func (r *Runner) ResetRundownPlaylist(ctx context.Context, playlistID string, opts playout.ResetOptions) error {
	j := playlistJob(KindReset, playlistID)
	if opts.Activate != playout.ActivationNone {
		var err error
		if j, err = r.activationJob(ctx, KindReset, playlistID); err != nil {
			r.finish(playlistJob(KindReset, playlistID), time.Now(), err)
			return err
		}
	}
	return r.runPlayout(ctx, j, func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.Reset(ctx, pc, opts)
	})
}

// TakeNextPart takes the next part on air. fromPartInstanceID must match the
// current part instance when given.
func (r *Runner) TakeNextPart(ctx context.Context, playlistID, fromPartInstanceID string) error {
	return r.runPlayout(ctx, playlistJob(KindTake, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.Take(ctx, pc, fromPartInstanceID)
	})
}

// SetNextPart sets the next part manually.
func (r *Runner) SetNextPart(ctx context.Context, playlistID, partID string) error {
	return r.runPlayout(ctx, playlistJob(KindSetNextPart, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.SetNextPart(ctx, pc, partID)
	})
}

// MoveNextPart moves the next part by part and segment offsets and returns
// the new next part id.
func (r *Runner) MoveNextPart(ctx context.Context, playlistID string, partDelta, segmentDelta int) (string, error) {
	var partID string
	err := r.runPlayout(ctx, playlistJob(KindMoveNextPart, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		var err error
		partID, err = r.engine.MoveNextPart(ctx, pc, partDelta, segmentDelta)
		return err
	})
	return partID, err
}

// SetNextSegment sets the first playable part of a segment as next.
func (r *Runner) SetNextSegment(ctx context.Context, playlistID, segmentID string) error {
	return r.runPlayout(ctx, playlistJob(KindSetNextSegment, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.SetNextSegment(ctx, pc, segmentID)
	})
}

// QueueNextSegment queues a segment to follow the current one. An empty
// segmentID clears the queue.
func (r *Runner) QueueNextSegment(ctx context.Context, playlistID, segmentID string) error {
	return r.runPlayout(ctx, playlistJob(KindQueueNextSegment, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		return r.engine.QueueNextSegment(ctx, pc, segmentID)
	})
}

// OnPlayoutPlaybackChanged applies hardware playback reports.
func (r *Runner) OnPlayoutPlaybackChanged(ctx context.Context, playlistID string, changes []playout.PlaybackChange) ([]playout.Inconsistency, error) {
	var inconsistencies []playout.Inconsistency
	err := r.runPlayout(ctx, playlistJob(KindPlayback, playlistID), func(ctx context.Context, pc *cache.PlayoutCache) error {
		var err error
		inconsistencies, err = r.engine.OnPlaybackChanged(ctx, pc, changes)
		return err
	})
	return inconsistencies, err
}
