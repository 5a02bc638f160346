package cache

import (
	"context"
	"fmt"

	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
)

// RundownCache is the working set of an ingest job on one rundown.
//
// The rundown itself may not exist yet. Playlists is writable only so a
// missing playlist can be created; existing playlists belong to playout jobs.
// Studios starts empty and only holds studio definitions staged by PutStudio.
type RundownCache struct {
	*Cache

	RundownID string

	Rundowns  *Collection[model.Rundown]
	Segments  *Collection[model.Segment]
	Parts     *Collection[model.Part]
	Pieces    *Collection[model.Piece]
	Playlists *Collection[model.RundownPlaylist]
	Studios   *Collection[model.Studio]
}

// CreateRundownCache loads one rundown and its contents under the held rundown lock.
func CreateRundownCache(ctx context.Context, store docstore.Store, lk *lock.Lock, rundownID string) (*RundownCache, error) {
	if err := checkLock(lk, lock.Rundown(rundownID)); err != nil {
		return nil, err
	}

	rundowns, err := docstore.FindAs[model.Rundown](ctx, store, model.CollectionRundowns, docstore.ByID(rundownID))
	if err != nil {
		return nil, fmt.Errorf("loading rundown: %w", err)
	}
	byRundown := docstore.Filter{"rundownId": rundownID}
	segments, err := docstore.FindAs[model.Segment](ctx, store, model.CollectionSegments, byRundown)
	if err != nil {
		return nil, fmt.Errorf("loading segments: %w", err)
	}
	parts, err := docstore.FindAs[model.Part](ctx, store, model.CollectionParts, byRundown)
	if err != nil {
		return nil, fmt.Errorf("loading parts: %w", err)
	}
	pieces, err := docstore.FindAs[model.Piece](ctx, store, model.CollectionPieces, docstore.Filter{"startRundownId": rundownID})
	if err != nil {
		return nil, fmt.Errorf("loading pieces: %w", err)
	}

	rc := &RundownCache{Cache: newCache(store, lk), RundownID: rundownID}
	if rc.Rundowns, err = NewCollection(model.CollectionRundowns, rundowns); err != nil {
		return nil, err
	}
	if rc.Segments, err = NewCollection(model.CollectionSegments, segments); err != nil {
		return nil, err
	}
	if rc.Parts, err = NewCollection(model.CollectionParts, parts); err != nil {
		return nil, err
	}
	if rc.Pieces, err = NewCollection(model.CollectionPieces, pieces); err != nil {
		return nil, err
	}
	if rc.Playlists, err = NewCollection[model.RundownPlaylist](model.CollectionPlaylists, nil); err != nil {
		return nil, err
	}
	if rc.Studios, err = NewCollection[model.Studio](model.CollectionStudios, nil); err != nil {
		return nil, err
	}

	rc.register(rc.Studios)
	rc.register(rc.Playlists)
	rc.register(rc.Rundowns)
	rc.register(rc.Segments)
	rc.register(rc.Parts)
	rc.register(rc.Pieces)
	return rc, nil
}

// Rundown returns the cached rundown if it exists.
func (rc *RundownCache) Rundown() (model.Rundown, bool) {
	return rc.Rundowns.FindOne(rc.RundownID)
}

// EnsurePlaylist stages creation of playlist if the store does not hold it.
func (rc *RundownCache) EnsurePlaylist(ctx context.Context, playlist model.RundownPlaylist) (bool, error) {
	if _, ok := rc.Playlists.FindOne(playlist.ID); ok {
		return false, nil
	}
	existing, err := rc.store.Find(ctx, model.CollectionPlaylists, docstore.ByID(playlist.ID))
	if err != nil {
		return false, fmt.Errorf("loading playlist: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err := rc.Playlists.Insert(playlist); err != nil {
		return false, err
	}
	return true, nil
}

// PutStudio stages an upsert of a studio definition.
func (rc *RundownCache) PutStudio(studio model.Studio) error {
	if _, ok := rc.Studios.FindOne(studio.ID); ok {
		return rc.Studios.Replace(studio)
	}
	return rc.Studios.Insert(studio)
}
