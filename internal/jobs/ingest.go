package jobs

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/ingest"
	"github.com/nerrad567/playout-core/internal/lock"
)

// ImportRundown stages and commits a running order under the rundown lock.
func (r *Runner) ImportRundown(ctx context.Context, ro *ingest.RunningOrder) (ingest.Result, error) {
	j := job{
		kind:       KindImport,
		scope:      lock.Rundown(ro.Rundown.ID),
		playlistID: ro.Playlist.ID,
		rundownID:  ro.Rundown.ID,
	}

	var res ingest.Result
	err := r.run(ctx, j, func(ctx context.Context, lk *lock.Lock) error {
		rc, err := cache.CreateRundownCache(ctx, r.store, lk, ro.Rundown.ID)
		if err != nil {
			return err
		}
		rc.SetLogger(r.logger)
		if res, err = ingest.Apply(ctx, rc, ro); err != nil {
			rc.Discard()
			return err
		}
		if _, err := rc.SaveAllToDatabase(ctx); err != nil {
			return fmt.Errorf("committing import: %w", err)
		}
		return nil
	})
	if err != nil {
		return ingest.Result{}, err
	}
	r.logger.Info("rundown imported",
		"rundown_id", res.RundownID,
		"playlist_id", res.PlaylistID,
		"segments", res.Segments,
		"parts", res.Parts,
		"pieces", res.Pieces,
		"removed", res.Removed)
	return res, nil
}
