package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
)

// recordingStore counts bulk writes on top of a MemoryStore.
type recordingStore struct {
	*docstore.MemoryStore

	mu      sync.Mutex
	writes  map[string][][]docstore.WriteOp
	failFor string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		MemoryStore: docstore.NewMemoryStore(),
		writes:      make(map[string][][]docstore.WriteOp),
	}
}

func (r *recordingStore) BulkWrite(ctx context.Context, collection string, ops []docstore.WriteOp) (docstore.BulkResult, error) {
	r.mu.Lock()
	r.writes[collection] = append(r.writes[collection], ops)
	fail := r.failFor == collection
	r.mu.Unlock()
	if fail {
		return docstore.BulkResult{}, errors.New("disk full")
	}
	return r.MemoryStore.BulkWrite(ctx, collection, ops)
}

func (r *recordingStore) totalWrites() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.writes {
		n += len(w)
	}
	return n
}

func (r *recordingStore) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = make(map[string][][]docstore.WriteOp)
}

func seed(t *testing.T, store docstore.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionStudios, model.Studio{ID: "studio0", Name: "Studio"}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionPlaylists, model.RundownPlaylist{ID: "pl1", StudioID: "studio0", Name: "Evening"}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionRundowns, model.Rundown{ID: "rd1", PlaylistID: "pl1", StudioID: "studio0"}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionSegments, model.Segment{ID: "segA", RundownID: "rd1", PlaylistID: "pl1", Rank: 0}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionParts, model.Part{ID: "A0", RundownID: "rd1", SegmentID: "segA", PlaylistID: "pl1", Rank: 0}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionParts, model.Part{ID: "A1", RundownID: "rd1", SegmentID: "segA", PlaylistID: "pl1", Rank: 1}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionPartInstances, model.PartInstance{ID: "pi_old", PlaylistID: "pl1", RundownID: "rd1", Reset: true}))
	require.NoError(t, docstore.InsertAs(ctx, store, model.CollectionPartInstances, model.PartInstance{ID: "pi_live", PlaylistID: "pl1", RundownID: "rd1"}))
}

func acquire(t *testing.T, scope lock.Scope) *lock.Lock {
	t.Helper()
	_, lk, err := lock.NewManager().Acquire(context.Background(), scope)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lk.Release() })
	return lk
}

func newPlayoutCache(t *testing.T, store docstore.Store) *PlayoutCache {
	t.Helper()
	pc, err := CreatePlayoutCache(context.Background(), store, acquire(t, lock.Playlist("pl1")), "pl1")
	require.NoError(t, err)
	return pc
}

func TestCreatePlayoutCache_Loads(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)

	pc := newPlayoutCache(t, store)

	require.Equal(t, "Evening", pc.Playlist.Doc().Name)
	require.Equal(t, "studio0", pc.Studio.ID)
	require.Len(t, pc.Parts.All(), 2)

	_, ok := pc.PartInstances.FindOne("pi_old")
	require.False(t, ok, "reset instances are not loaded")
	_, ok = pc.PartInstances.FindOne("pi_live")
	require.True(t, ok)

	ordered := pc.OrderedParts()
	require.Equal(t, "A0", ordered[0].ID)
	require.Equal(t, "A1", ordered[1].ID)
}

func TestCreatePlayoutCache_RequiresMatchingLock(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	ctx := context.Background()

	_, err := CreatePlayoutCache(ctx, store, nil, "pl1")
	require.ErrorIs(t, err, ErrLockNotHeld)

	_, err = CreatePlayoutCache(ctx, store, acquire(t, lock.Playlist("other")), "pl1")
	require.ErrorIs(t, err, ErrLockNotHeld)

	_, err = CreatePlayoutCache(ctx, store, acquire(t, lock.Rundown("pl1")), "pl1")
	require.ErrorIs(t, err, ErrLockNotHeld)

	released := acquire(t, lock.Playlist("pl1"))
	require.NoError(t, released.Release())
	_, err = CreatePlayoutCache(ctx, store, released, "pl1")
	require.ErrorIs(t, err, ErrLockNotHeld)
}

func TestCreatePlayoutCache_MissingPlaylist(t *testing.T) {
	store := newRecordingStore()
	_, err := CreatePlayoutCache(context.Background(), store, acquire(t, lock.Playlist("nope")), "nope")
	require.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestSaveAllToDatabase_MinimalDiff(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	ctx := context.Background()
	pc := newPlayoutCache(t, store)

	require.NoError(t, pc.PartInstances.Insert(model.PartInstance{ID: "pi_new", PlaylistID: "pl1", RundownID: "rd1"}))
	require.True(t, pc.PartInstances.Remove("pi_live"))
	require.NoError(t, pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Name = "Late" }))

	stats, err := pc.SaveAllToDatabase(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.BulkWrites)
	require.Equal(t, 2, stats.Upserted)
	require.Equal(t, 1, stats.Deleted)

	ops := store.writes[model.CollectionPartInstances]
	require.Len(t, ops, 1)
	require.Len(t, ops[0], 2)
	require.Equal(t, docstore.OpReplace, ops[0][0].Kind)
	require.Equal(t, "pi_new", ops[0][0].Doc.ID)
	require.Equal(t, docstore.OpDeleteMany, ops[0][1].Kind)
	require.Equal(t, []string{"pi_live"}, ops[0][1].IDs)
	require.Empty(t, store.writes[model.CollectionPieceInstances], "unchanged collections are not written")

	got, err := docstore.FindOneAs[model.RundownPlaylist](ctx, store, model.CollectionPlaylists, docstore.ByID("pl1"))
	require.NoError(t, err)
	require.Equal(t, "Late", got.Name)

	store.reset()
	_, err = pc.SaveAllToDatabase(ctx)
	require.NoError(t, err)
	require.Zero(t, store.totalWrites(), "second save must not write")
}

func TestSaveAllToDatabase_UpdateBackToOriginalIsNotWritten(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	pc := newPlayoutCache(t, store)

	require.NoError(t, pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Name = "Other" }))
	require.NoError(t, pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Name = "Evening" }))
	require.NoError(t, pc.AssertNoChanges())

	_, err := pc.SaveAllToDatabase(context.Background())
	require.NoError(t, err)
	require.Zero(t, store.totalWrites())
}

func TestSaveAllToDatabase_InsertThenRemoveIsNoOp(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	pc := newPlayoutCache(t, store)

	require.NoError(t, pc.PieceInstances.Insert(model.PieceInstance{ID: "tmp", PlaylistID: "pl1"}))
	require.True(t, pc.PieceInstances.Remove("tmp"))

	_, err := pc.SaveAllToDatabase(context.Background())
	require.NoError(t, err)
	require.Zero(t, store.totalWrites())
}

func TestDeferredOrdering(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	pc := newPlayoutCache(t, store)

	var order []string
	pc.DeferAfterSave(func(context.Context) error { order = append(order, "after1"); return nil })
	pc.Defer(func(context.Context) error { order = append(order, "defer1"); return nil })
	pc.Defer(func(context.Context) error {
		order = append(order, "defer2")
		// Mutations from deferred work are part of the save.
		return pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Loop = true })
	})
	pc.DeferAfterSave(func(context.Context) error { order = append(order, "after2"); return errors.New("ignored") })
	pc.DeferAfterSave(func(context.Context) error { order = append(order, "after3"); return nil })

	require.Error(t, pc.AssertNoChanges())

	_, err := pc.SaveAllToDatabase(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"defer1", "defer2", "after1", "after2", "after3"}, order)

	got, err := docstore.FindOneAs[model.RundownPlaylist](context.Background(), store, model.CollectionPlaylists, docstore.ByID("pl1"))
	require.NoError(t, err)
	require.True(t, got.Loop)
	require.NoError(t, pc.AssertNoChanges())
}

func TestDeferFailureAbortsSave(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	pc := newPlayoutCache(t, store)

	afterRan := false
	require.NoError(t, pc.Playlist.Update(func(p *model.RundownPlaylist) { p.Name = "Changed" }))
	pc.Defer(func(context.Context) error { return errors.New("boom") })
	pc.DeferAfterSave(func(context.Context) error { afterRan = true; return nil })

	_, err := pc.SaveAllToDatabase(context.Background())
	require.Error(t, err)
	require.False(t, afterRan)
	require.Zero(t, store.totalWrites())
}

func TestWriteFailureSkipsAfterSave(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	store.failFor = model.CollectionPartInstances
	pc := newPlayoutCache(t, store)

	afterRan := false
	require.NoError(t, pc.PartInstances.Update("pi_live", func(p *model.PartInstance) { p.TakeCount = 3 }))
	pc.DeferAfterSave(func(context.Context) error { afterRan = true; return nil })

	_, err := pc.SaveAllToDatabase(context.Background())
	require.Error(t, err)
	require.False(t, afterRan)

	var pending *UnsavedChangesError
	require.ErrorAs(t, pc.AssertNoChanges(), &pending)
	require.Equal(t, PendingDocuments, pending.Kind)
	require.Equal(t, model.CollectionPartInstances, pending.Name)
}

func TestSaveRequiresHeldLock(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	pc := newPlayoutCache(t, store)

	require.NoError(t, pc.Lock().Release())
	_, err := pc.SaveAllToDatabase(context.Background())
	require.ErrorIs(t, err, ErrLockNotHeld)
}

func TestAssertNoChanges_NamesKind(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlayoutCache)
		kind   PendingKind
	}{
		{
			name: "document",
			mutate: func(pc *PlayoutCache) {
				_ = pc.PieceInstances.Insert(model.PieceInstance{ID: "x", PlaylistID: "pl1"})
			},
			kind: PendingDocuments,
		},
		{
			name:   "deferred",
			mutate: func(pc *PlayoutCache) { pc.Defer(func(context.Context) error { return nil }) },
			kind:   PendingDeferred,
		},
		{
			name:   "after save",
			mutate: func(pc *PlayoutCache) { pc.DeferAfterSave(func(context.Context) error { return nil }) },
			kind:   PendingAfterSave,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			seed(t, store)
			pc := newPlayoutCache(t, store)
			require.NoError(t, pc.AssertNoChanges())

			tt.mutate(pc)

			var pending *UnsavedChangesError
			require.ErrorAs(t, pc.AssertNoChanges(), &pending)
			require.Equal(t, tt.kind, pending.Kind)
			require.Contains(t, pending.Error(), "cache:")
		})
	}
}

func TestCollection_ReadsAreCopies(t *testing.T) {
	coll, err := NewCollection("partInstances", []model.PartInstance{{ID: "a", Part: model.Part{ClassesForNext: []string{"x"}}}})
	require.NoError(t, err)

	doc, ok := coll.FindOne("a")
	require.True(t, ok)
	doc.Part.ClassesForNext[0] = "mutated"
	doc.TakeCount = 9

	again, _ := coll.FindOne("a")
	require.Equal(t, "x", again.Part.ClassesForNext[0])
	require.Zero(t, again.TakeCount)
	require.False(t, coll.IsModified())
}

func TestCollection_Errors(t *testing.T) {
	coll, err := NewCollection("parts", []model.Part{{ID: "a"}})
	require.NoError(t, err)

	require.ErrorIs(t, coll.Insert(model.Part{ID: "a"}), ErrDocumentExists)
	require.ErrorIs(t, coll.Update("missing", func(*model.Part) {}), ErrDocumentNotFound)
	require.ErrorIs(t, coll.Update("a", func(p *model.Part) { p.ID = "b" }), ErrIDChanged)
	require.False(t, coll.Remove("missing"))

	// Removed then reinserted documents become a replace.
	require.True(t, coll.Remove("a"))
	require.NoError(t, coll.Insert(model.Part{ID: "a", Title: "again"}))
	ops := coll.pendingOps()
	require.Len(t, ops, 1)
	require.Equal(t, docstore.OpReplace, ops[0].Kind)
}

func TestCollection_UpdateAllAndRemoveAll(t *testing.T) {
	coll, err := NewCollection("pieceInstances", []model.PieceInstance{
		{ID: "p1", PartInstanceID: "a"},
		{ID: "p2", PartInstanceID: "a"},
		{ID: "p3", PartInstanceID: "b"},
	})
	require.NoError(t, err)

	inA := func(p model.PieceInstance) bool { return p.PartInstanceID == "a" }
	n, err := coll.UpdateAll(inA, func(p *model.PieceInstance) { p.Reset = true })
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, 1, coll.RemoveAll(func(p model.PieceInstance) bool { return p.ID == "p3" }))
	require.Len(t, coll.Find(nil), 2)
	for _, p := range coll.Find(nil) {
		require.True(t, p.Reset)
	}
}

func TestRundownCache_EnsurePlaylist(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	ctx := context.Background()

	rc, err := CreateRundownCache(ctx, store, acquire(t, lock.Rundown("rd1")), "rd1")
	require.NoError(t, err)

	rd, ok := rc.Rundown()
	require.True(t, ok)
	require.Equal(t, "pl1", rd.PlaylistID)
	require.Len(t, rc.Parts.Find(nil), 2)

	created, err := rc.EnsurePlaylist(ctx, model.RundownPlaylist{ID: "pl1", StudioID: "studio0"})
	require.NoError(t, err)
	require.False(t, created, "existing playlist is left alone")

	created, err = rc.EnsurePlaylist(ctx, model.RundownPlaylist{ID: "pl2", StudioID: "studio0"})
	require.NoError(t, err)
	require.True(t, created)

	_, err = rc.SaveAllToDatabase(ctx)
	require.NoError(t, err)
	require.Len(t, store.writes[model.CollectionPlaylists], 1)
}

func TestRundownCache_PutStudio(t *testing.T) {
	store := newRecordingStore()
	seed(t, store)
	ctx := context.Background()

	rc, err := CreateRundownCache(ctx, store, acquire(t, lock.Rundown("rd1")), "rd1")
	require.NoError(t, err)

	require.NoError(t, rc.PutStudio(model.Studio{ID: "studio0", Name: "first"}))
	require.NoError(t, rc.PutStudio(model.Studio{ID: "studio0", Name: "Studio A"}))
	_, err = rc.SaveAllToDatabase(ctx)
	require.NoError(t, err)

	got, err := docstore.FindOneAs[model.Studio](ctx, store, model.CollectionStudios, docstore.ByID("studio0"))
	require.NoError(t, err)
	require.Equal(t, "Studio A", got.Name)
	require.Len(t, store.writes[model.CollectionStudios], 1)
}
