package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

// GetPlaylist returns the stored playlist. The read takes no lock.
func (r *Runner) GetPlaylist(ctx context.Context, playlistID string) (model.RundownPlaylist, error) {
	pl, err := docstore.FindOneAs[model.RundownPlaylist](ctx, r.store, model.CollectionPlaylists, docstore.ByID(playlistID))
	if errors.Is(err, docstore.ErrNotFound) {
		return model.RundownPlaylist{}, playout.NewUserError(playout.CodePlaylistNotFound, "playlist %s not found", playlistID)
	}
	if err != nil {
		return model.RundownPlaylist{}, fmt.Errorf("loading playlist: %w", err)
	}
	return pl, nil
}

// StudioPlaylists returns the playlists of a studio ordered by id.
func (r *Runner) StudioPlaylists(ctx context.Context, studioID string) ([]model.RundownPlaylist, error) {
	pls, err := docstore.FindAs[model.RundownPlaylist](ctx, r.store, model.CollectionPlaylists, docstore.Filter{"studioId": studioID})
	if err != nil {
		return nil, fmt.Errorf("loading playlists: %w", err)
	}
	return pls, nil
}

// Lookahead computes the playlist's lookahead without changing anything.
func (r *Runner) Lookahead(ctx context.Context, playlistID string) (lookahead.Result, error) {
	j := playlistJob(KindLookahead, playlistID)
	j.readOnly = true

	var res lookahead.Result
	err := r.runPlayout(ctx, j, func(ctx context.Context, pc *cache.PlayoutCache) error {
		var err error
		res, err = r.engine.Lookahead(ctx, pc)
		return err
	})
	return res, err
}

// Status is a consistent snapshot of a playlist's on-air state.
type Status struct {
	Playlist      model.RundownPlaylist `json:"playlist"`
	Current       *model.PartInstance   `json:"current,omitempty"`
	Next          *model.PartInstance   `json:"next,omitempty"`
	Previous      *model.PartInstance   `json:"previous,omitempty"`
	QueuedSegment *model.Segment        `json:"queuedSegment,omitempty"`
}

// PlaylistStatus reads the playlist and its selected part instances under
// the playlist lock.
func (r *Runner) PlaylistStatus(ctx context.Context, playlistID string) (Status, error) {
	j := playlistJob(KindStatus, playlistID)
	j.readOnly = true

	var st Status
	err := r.runPlayout(ctx, j, func(_ context.Context, pc *cache.PlayoutCache) error {
		st.Playlist = pc.Playlist.Doc()
		if pi, ok := pc.CurrentPartInstance(); ok {
			st.Current = &pi
		}
		if pi, ok := pc.NextPartInstance(); ok {
			st.Next = &pi
		}
		if pi, ok := pc.PreviousPartInstance(); ok {
			st.Previous = &pi
		}
		if id := st.Playlist.QueuedSegmentID; id != "" {
			if seg, ok := pc.Segments.FindOne(id); ok {
				st.QueuedSegment = &seg
			}
		}
		return nil
	})
	return st, err
}
