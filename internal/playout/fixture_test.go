package playout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/cache"
	"github.com/nerrad567/playout-core/internal/docstore"
	"github.com/nerrad567/playout-core/internal/lock"
	"github.com/nerrad567/playout-core/internal/model"
)

const (
	studioID   = "studio0"
	playlistID = "pl1"
	layerVT    = "vt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingTimeline struct {
	mu      sync.Mutex
	updates []TimelineUpdate
}

func (r *recordingTimeline) PublishTimeline(_ context.Context, u TimelineUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *recordingTimeline) last(t *testing.T) TimelineUpdate {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.updates, "no timeline published")
	return r.updates[len(r.updates)-1]
}

func (r *recordingTimeline) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

type recordingDevices struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingDevices) ExecuteFunction(_ context.Context, deviceID, function string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deviceID+":"+function)
	return nil
}

type recordingTimings struct {
	mu      sync.Mutex
	timings []PartTiming
}

func (r *recordingTimings) RecordPartTiming(t PartTiming) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = append(r.timings, t)
}

// fixture is a studio with one playlist: segment A (A0, A1) then segment B (B0).
// Every part has one piece on the vt layer.
type fixture struct {
	t        *testing.T
	store    *docstore.MemoryStore
	locks    *lock.Manager
	clock    *fakeClock
	timeline *recordingTimeline
	devices  *recordingDevices
	timings  *recordingTimings
	engine   *Engine
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    docstore.NewMemoryStore(),
		locks:    lock.NewManager(),
		clock:    newFakeClock(),
		timeline: &recordingTimeline{},
		devices:  &recordingDevices{},
		timings:  &recordingTimings{},
	}
	f.engine = NewEngine(cfg, Deps{
		Devices:  f.devices,
		Timeline: f.timeline,
		Timings:  f.timings,
		Clock:    f.clock.Now,
	})

	insert(t, f.store, model.CollectionStudios, model.Studio{
		ID:   studioID,
		Name: "Studio A",
		Mappings: map[string]model.LayerMapping{
			layerVT: {Device: "server0", LookaheadMode: model.LookaheadPreload, LookaheadDepth: 2},
		},
		PeripheralDevices: []model.PeripheralDevice{{ID: "dev1", Name: "Router", OnActivate: "standby", OnDeactivate: "off"}},
	})
	insert(t, f.store, model.CollectionPlaylists, model.RundownPlaylist{
		ID:                playlistID,
		StudioID:          studioID,
		Name:              "Evening News",
		RundownIDsInOrder: []string{"rd1"},
	})
	insert(t, f.store, model.CollectionRundowns, model.Rundown{ID: "rd1", PlaylistID: playlistID, StudioID: studioID, Name: "Evening News"})

	f.addSegment("segA", 0)
	f.addPart("A0", "segA", 0)
	f.addPart("A1", "segA", 1)
	f.addSegment("segB", 1)
	f.addPart("B0", "segB", 0)
	return f
}

func insert[T docstore.Identifiable](t *testing.T, store docstore.Store, collection string, doc T) {
	t.Helper()
	require.NoError(t, docstore.InsertAs(context.Background(), store, collection, doc))
}

func (f *fixture) addSegment(id string, rank float64) {
	insert(f.t, f.store, model.CollectionSegments, model.Segment{ID: id, RundownID: "rd1", PlaylistID: playlistID, Name: id, Rank: rank})
}

func (f *fixture) addPart(id, segmentID string, rank float64) {
	insert(f.t, f.store, model.CollectionParts, model.Part{
		ID: id, RundownID: "rd1", SegmentID: segmentID, PlaylistID: playlistID, Title: id, Rank: rank,
	})
	f.addPiece(model.Piece{
		ID:             "piece_" + id,
		StartRundownID: "rd1",
		StartSegmentID: segmentID,
		StartPartID:    id,
		Lifespan:       model.LifespanWithinPart,
		SourceLayerID:  layerVT,
		TimelineObjects: []model.TimelineObject{
			{ID: "obj_" + id, Layer: layerVT, Content: map[string]any{"clip": id}},
		},
	})
}

func (f *fixture) addPiece(p model.Piece) {
	insert(f.t, f.store, model.CollectionPieces, p)
}

func (f *fixture) updatePart(id string, fn func(*model.Part)) {
	ctx := context.Background()
	p, err := docstore.FindOneAs[model.Part](ctx, f.store, model.CollectionParts, docstore.ByID(id))
	require.NoError(f.t, err)
	fn(&p)
	require.NoError(f.t, docstore.ReplaceAllAs(ctx, f.store, model.CollectionParts, []model.Part{p}))
}

func (f *fixture) updatePlaylist(fn func(*model.RundownPlaylist)) {
	p := f.playlistDoc(playlistID)
	fn(&p)
	require.NoError(f.t, docstore.ReplaceAllAs(context.Background(), f.store, model.CollectionPlaylists, []model.RundownPlaylist{p}))
}

// doOn runs fn inside a locked cache and commits when it succeeds.
func (f *fixture) doOn(id string, fn func(ctx context.Context, pc *cache.PlayoutCache) error) error {
	ctx, lk, err := f.locks.Acquire(context.Background(), lock.Playlist(id))
	require.NoError(f.t, err)
	defer func() { require.NoError(f.t, lk.Release()) }()

	pc, err := cache.CreatePlayoutCache(ctx, f.store, lk, id)
	require.NoError(f.t, err)
	if err := fn(ctx, pc); err != nil {
		return err
	}
	_, err = pc.SaveAllToDatabase(ctx)
	require.NoError(f.t, err)
	require.NoError(f.t, pc.AssertNoChanges())
	return nil
}

func (f *fixture) do(fn func(ctx context.Context, pc *cache.PlayoutCache) error) error {
	return f.doOn(playlistID, fn)
}

func (f *fixture) activate(rehearsal bool) error {
	return f.do(func(ctx context.Context, pc *cache.PlayoutCache) error {
		return f.engine.Activate(ctx, pc, rehearsal)
	})
}

func (f *fixture) deactivate() error {
	return f.do(func(ctx context.Context, pc *cache.PlayoutCache) error {
		return f.engine.Deactivate(ctx, pc)
	})
}

func (f *fixture) take(from string) error {
	return f.do(func(ctx context.Context, pc *cache.PlayoutCache) error {
		return f.engine.Take(ctx, pc, from)
	})
}

func (f *fixture) takeCurrent() error {
	return f.take(f.playlist().CurrentPartInstanceID())
}

func (f *fixture) playback(changes ...PlaybackChange) []Inconsistency {
	var issues []Inconsistency
	require.NoError(f.t, f.do(func(ctx context.Context, pc *cache.PlayoutCache) error {
		var err error
		issues, err = f.engine.OnPlaybackChanged(ctx, pc, changes)
		return err
	}))
	return issues
}

func (f *fixture) playlistDoc(id string) model.RundownPlaylist {
	p, err := docstore.FindOneAs[model.RundownPlaylist](context.Background(), f.store, model.CollectionPlaylists, docstore.ByID(id))
	require.NoError(f.t, err)
	return p
}

func (f *fixture) playlist() model.RundownPlaylist {
	return f.playlistDoc(playlistID)
}

func (f *fixture) partInstance(id string) model.PartInstance {
	inst, err := docstore.FindOneAs[model.PartInstance](context.Background(), f.store, model.CollectionPartInstances, docstore.ByID(id))
	require.NoError(f.t, err)
	return inst
}

func (f *fixture) partOf(instanceID string) string {
	if instanceID == "" {
		return ""
	}
	return f.partInstance(instanceID).Part.ID
}

func (f *fixture) currentPart() string { return f.partOf(f.playlist().CurrentPartInstanceID()) }
func (f *fixture) nextPart() string    { return f.partOf(f.playlist().NextPartInstanceID()) }

func (f *fixture) partInstances(filter docstore.Filter) []model.PartInstance {
	filter["playlistId"] = playlistID
	out, err := docstore.FindAs[model.PartInstance](context.Background(), f.store, model.CollectionPartInstances, filter)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) pieceInstances(filter docstore.Filter) []model.PieceInstance {
	filter["playlistId"] = playlistID
	out, err := docstore.FindAs[model.PieceInstance](context.Background(), f.store, model.CollectionPieceInstances, filter)
	require.NoError(f.t, err)
	return out
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsUserError(err), "want user error, got %v", err)
	require.Equal(t, code, ErrorCode(err), err.Error())
}
