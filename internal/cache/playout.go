package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
)

// PlayoutCache is the working set of a playout job on one playlist.
type PlayoutCache struct {
	*Cache

	PlaylistID string
	Playlist   *Object[model.RundownPlaylist]
	Studio     model.Studio

	Rundowns *ReadOnlyCollection[model.Rundown]
	Segments *ReadOnlyCollection[model.Segment]
	Parts    *ReadOnlyCollection[model.Part]

	PartInstances  *Collection[model.PartInstance]
	PieceInstances *Collection[model.PieceInstance]
}

// CreatePlayoutCache loads the playlist and everything playout needs from it.
//
// lk must be the held playlist lock for playlistID. Only instances not yet
// reset are loaded.
func CreatePlayoutCache(ctx context.Context, store docstore.Store, lk *lock.Lock, playlistID string) (*PlayoutCache, error) {
	if err := checkLock(lk, lock.Playlist(playlistID)); err != nil {
		return nil, err
	}

	playlist, err := docstore.FindOneAs[model.RundownPlaylist](ctx, store, model.CollectionPlaylists, docstore.ByID(playlistID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, playlistID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading playlist: %w", err)
	}

	studio, err := docstore.FindOneAs[model.Studio](ctx, store, model.CollectionStudios, docstore.ByID(playlist.StudioID))
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		studio = model.Studio{ID: playlist.StudioID}
	case err != nil:
		return nil, fmt.Errorf("loading studio: %w", err)
	}

	rundowns, err := docstore.FindAs[model.Rundown](ctx, store, model.CollectionRundowns, docstore.Filter{"playlistId": playlistID})
	if err != nil {
		return nil, fmt.Errorf("loading rundowns: %w", err)
	}
	rundownIDs := make([]string, 0, len(rundowns))
	for _, r := range rundowns {
		rundownIDs = append(rundownIDs, r.ID)
	}

	segments, err := docstore.FindAs[model.Segment](ctx, store, model.CollectionSegments, docstore.Filter{"rundownId": rundownIDs})
	if err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	parts, err := docstore.FindAs[model.Part](ctx, store, model.CollectionParts, docstore.Filter{"rundownId": rundownIDs})
	if err != nil {
		return nil, fmt.Errorf("loading parts: %w", err)
	}

	live := docstore.Filter{"playlistId": playlistID, "reset": false}
	partInstances, err := docstore.FindAs[model.PartInstance](ctx, store, model.CollectionPartInstances, live)
	if err != nil {
		return nil, fmt.Errorf("loading part instances: %w", err)
	}
	pieceInstances, err := docstore.FindAs[model.PieceInstance](ctx, store, model.CollectionPieceInstances, live)
	if err != nil {
		return nil, fmt.Errorf("loading piece instances: %w", err)
	}

	pc := &PlayoutCache{
		Cache:      newCache(store, lk),
		PlaylistID: playlistID,
		Studio:     studio,
		Rundowns:   NewReadOnlyCollection(model.CollectionRundowns, rundowns),
		Segments:   NewReadOnlyCollection(model.CollectionSegments, segments),
		Parts:      NewReadOnlyCollection(model.CollectionParts, parts),
	}
	if pc.Playlist, err = NewObject(model.CollectionPlaylists, playlist); err != nil {
		return nil, err
	}
	if pc.PartInstances, err = NewCollection(model.CollectionPartInstances, partInstances); err != nil {
		return nil, err
	}
	if pc.PieceInstances, err = NewCollection(model.CollectionPieceInstances, pieceInstances); err != nil {
		return nil, err
	}

	pc.register(pc.Playlist)
	pc.register(pc.PartInstances)
	pc.register(pc.PieceInstances)
	return pc, nil
}

// OrderedRundowns returns the playlist's rundowns in playback order.
func (pc *PlayoutCache) OrderedRundowns() []model.Rundown {
	return model.OrderRundowns(pc.Playlist.Doc(), pc.Rundowns.All())
}

// OrderedSegments returns every segment in playback order.
func (pc *PlayoutCache) OrderedSegments() []model.Segment {
	return model.OrderSegments(pc.Playlist.Doc(), pc.Rundowns.All(), pc.Segments.All())
}

// OrderedParts returns every part in playback order.
func (pc *PlayoutCache) OrderedParts() []model.Part {
	return model.OrderParts(pc.OrderedSegments(), pc.Parts.All())
}

// CurrentPartInstance returns the instance the current pointer names.
func (pc *PlayoutCache) CurrentPartInstance() (model.PartInstance, bool) {
	return pc.partInstance(pc.Playlist.Doc().CurrentPartInstanceID())
}

// NextPartInstance returns the instance the next pointer names.
func (pc *PlayoutCache) NextPartInstance() (model.PartInstance, bool) {
	return pc.partInstance(pc.Playlist.Doc().NextPartInstanceID())
}

// PreviousPartInstance returns the instance the previous pointer names.
func (pc *PlayoutCache) PreviousPartInstance() (model.PartInstance, bool) {
	return pc.partInstance(pc.Playlist.Doc().PreviousPartInstanceID())
}

func (pc *PlayoutCache) partInstance(id string) (model.PartInstance, bool) {
	if id == "" {
		return model.PartInstance{}, false
	}
	return pc.PartInstances.FindOne(id)
}

// PieceInstancesOf returns the piece instances of one part instance ordered by id.
func (pc *PlayoutCache) PieceInstancesOf(partInstanceID string) []model.PieceInstance {
	return pc.PieceInstances.Find(func(p model.PieceInstance) bool {
		return p.PartInstanceID == partInstanceID
	})
}

// FetchPieces reads the piece templates of the given parts from the store.
func (pc *PlayoutCache) FetchPieces(ctx context.Context, partIDs ...string) ([]model.Piece, error) {
	if len(partIDs) == 0 {
		return nil, nil
	}
	pieces, err := docstore.FindAs[model.Piece](ctx, pc.store, model.CollectionPieces, docstore.Filter{"startPartId": partIDs})
	if err != nil {
		return nil, fmt.Errorf("loading pieces: %w", err)
	}
	return pieces, nil
}

// ActivePlaylistsInStudio returns the other active playlists of the studio.
func (pc *PlayoutCache) ActivePlaylistsInStudio(ctx context.Context) ([]model.RundownPlaylist, error) {
	all, err := docstore.FindAs[model.RundownPlaylist](ctx, pc.store, model.CollectionPlaylists, docstore.Filter{"studioId": pc.Studio.ID})
	if err != nil {
		return nil, fmt.Errorf("loading studio playlists: %w", err)
	}
	var active []model.RundownPlaylist
	for _, p := range all {
		if p.ID != pc.PlaylistID && p.IsActive() {
			active = append(active, p)
		}
	}
	return active, nil
}
