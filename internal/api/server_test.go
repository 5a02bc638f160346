package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/database"
	"github.com/nerrad567/playout-core/internal/infrastructure/logging"
	"github.com/nerrad567/playout-core/internal/ingest"
	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeRunner records the jobs it receives. Methods it does not override
// panic through the nil embedded interface.
type fakeRunner struct {
	JobRunner

	mu    sync.Mutex
	calls []string
	err   error

	playlists []model.RundownPlaylist
	changes   []playout.PlaybackChange
	imported  *ingest.RunningOrder
	reset     playout.ResetOptions
}

func (f *fakeRunner) record(format string, a ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, a...))
	return f.err
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRunner) GetPlaylist(_ context.Context, id string) (model.RundownPlaylist, error) {
	if err := f.record("get %s", id); err != nil {
		return model.RundownPlaylist{}, err
	}
	return model.RundownPlaylist{ID: id, StudioID: "studio-a", Name: "Evening News"}, nil
}

func (f *fakeRunner) StudioPlaylists(_ context.Context, studioID string) ([]model.RundownPlaylist, error) {
	return f.playlists, f.record("studio-playlists %s", studioID)
}

func (f *fakeRunner) ActivateRundownPlaylist(_ context.Context, id string, rehearsal bool) error {
	return f.record("activate %s rehearsal=%t", id, rehearsal)
}

func (f *fakeRunner) DeactivateRundownPlaylist(_ context.Context, id string) error {
	return f.record("deactivate %s", id)
}

func (f *fakeRunner) ResetRundownPlaylist(_ context.Context, id string, opts playout.ResetOptions) error {
	f.mu.Lock()
	f.reset = opts
	f.mu.Unlock()
	return f.record("reset %s", id)
}

func (f *fakeRunner) TakeNextPart(_ context.Context, id, from string) error {
	return f.record("take %s from=%s", id, from)
}

func (f *fakeRunner) SetNextPart(_ context.Context, id, partID string) error {
	return f.record("next-part %s %s", id, partID)
}

func (f *fakeRunner) MoveNextPart(_ context.Context, id string, partDelta, segmentDelta int) (string, error) {
	if err := f.record("move-next %s %d %d", id, partDelta, segmentDelta); err != nil {
		return "", err
	}
	return "story2", nil
}

func (f *fakeRunner) SetNextSegment(_ context.Context, id, segmentID string) error {
	return f.record("next-segment %s %s", id, segmentID)
}

func (f *fakeRunner) QueueNextSegment(_ context.Context, id, segmentID string) error {
	return f.record("queue-segment %s %q", id, segmentID)
}

func (f *fakeRunner) OnPlayoutPlaybackChanged(_ context.Context, id string, changes []playout.PlaybackChange) ([]playout.Inconsistency, error) {
	f.mu.Lock()
	f.changes = changes
	f.mu.Unlock()
	return nil, f.record("playback %s", id)
}

func (f *fakeRunner) ImportRundown(_ context.Context, ro *ingest.RunningOrder) (ingest.Result, error) {
	f.mu.Lock()
	f.imported = ro
	f.mu.Unlock()
	if err := f.record("import %s", ro.Rundown.ID); err != nil {
		return ingest.Result{}, err
	}
	return ingest.Result{RundownID: ro.Rundown.ID, PlaylistID: ro.Playlist.ID, PlaylistCreated: true}, nil
}

// fakeJobLog returns a fixed page and remembers the filter it was asked for.
type fakeJobLog struct {
	filter audit.Filter
}

func (f *fakeJobLog) Record(context.Context, *audit.Entry) error { return nil }

func (f *fakeJobLog) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.filter = filter
	return &audit.ListResult{
		Entries: []audit.Entry{{ID: "j1", Kind: "take", PlaylistID: "evening", Outcome: audit.OutcomeOK}},
		Total:   1,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// testServer creates a Server around a fake runner with a running hub.
func testServer(t *testing.T, runner *fakeRunner, mutate func(*Deps)) *Server {
	t.Helper()

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, Issuer: "playoutd", AccessTokenTTL: 15},
		},
		Logger:  log,
		Jobs:    runner,
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(ctx)

	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

// =============================================================================
// Construction and health
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Output: "stderr"}, "test")

	_, err := New(Deps{Jobs: &fakeRunner{}})
	assert.Error(t, err)

	_, err = New(Deps{Logger: log})
	assert.Error(t, err)

	_, err = New(Deps{Logger: log, Jobs: &fakeRunner{}, Config: config.APIConfig{AuthEnabled: true}})
	assert.Error(t, err, "auth without a secret")
}

func TestHealth(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv.buildRouter(), http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), `"version":"test"`)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestMiddleware(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"https://gallery.example"}
	})
	h := srv.buildRouter()

	rec := do(t, h, http.MethodGet, "/health", "", http.Header{"X-Request-Id": {"take-42"}})
	assert.Equal(t, "take-42", rec.Header().Get("X-Request-Id"))

	rec = do(t, h, http.MethodOptions, "/api/v1/playlists/pl1/take", "", http.Header{"Origin": {"https://gallery.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://gallery.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = do(t, h, http.MethodGet, "/health", "", http.Header{"Origin": {"https://elsewhere.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	big := `{"partId":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec = do(t, h, http.MethodPost, "/api/v1/playlists/pl1/next-part", big, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_Dependencies(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, func(d *Deps) { d.MQTT = connected(false) })
	rec := do(t, srv.buildRouter(), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"mqtt":"disconnected"`)

	db, err := database.Open(config.DatabaseConfig{Path: database.MemoryPath, BusyTimeout: 1})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	srv = testServer(t, &fakeRunner{}, func(d *Deps) {
		d.MQTT = connected(true)
		d.DB = db.DB
	})
	rec = do(t, srv.buildRouter(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
}

func TestStartWaitClose(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.HealthCheck(context.Background()))

	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	taken := testServer(t, &fakeRunner{}, func(d *Deps) { d.Config.Port = srv.Addr().(*net.TCPAddr).Port })
	assert.Error(t, taken.Start(context.Background()), "port already bound")

	require.NoError(t, srv.Close())
	assert.NoError(t, srv.Wait())
}

func TestHealthCheck_NotStarted(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)
	assert.Error(t, srv.HealthCheck(context.Background()))
	assert.NoError(t, srv.Close())
}

func TestMetrics(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, func(d *Deps) { d.MQTT = connected(true) })

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m SystemMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "test", m.Version)
	require.NotNil(t, m.MQTT)
	assert.True(t, m.MQTT.Connected)
	assert.Nil(t, m.Database)
	assert.Nil(t, m.Studio)
	assert.Positive(t, m.Runtime.Goroutines)
}

func TestMetrics_Studio(t *testing.T) {
	runner := &fakeRunner{playlists: []model.RundownPlaylist{
		{ID: "morning", StudioID: "studio-a"},
		{ID: "evening", StudioID: "studio-a", ActivationID: "act-1", Rehearsal: true},
	}}
	srv := testServer(t, runner, func(d *Deps) { d.StudioID = "studio-a" })

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m SystemMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.NotNil(t, m.Studio)
	assert.Equal(t, StudioMetrics{ID: "studio-a", Playlists: 2, OnAir: "evening", Rehearsal: true}, *m.Studio)
	assert.Contains(t, runner.Calls(), "studio-playlists studio-a")

	runner.err = errors.New("store offline")
	rec = do(t, srv.buildRouter(), http.MethodGet, "/api/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "store offline", m.Studio.Error)
}

type connected bool

func (c connected) IsConnected() bool { return bool(c) }

// =============================================================================
// Job routes
// =============================================================================

func TestJobRoutes(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		call   string
	}{
		{"activate", "/activate", `{"rehearsal":true}`, http.StatusNoContent, "activate evening rehearsal=true"},
		{"activate without body", "/activate", "", http.StatusNoContent, "activate evening rehearsal=false"},
		{"deactivate", "/deactivate", "", http.StatusNoContent, "deactivate evening"},
		{"reset", "/reset", `{"activate":"rehearsal","force":true}`, http.StatusNoContent, "reset evening"},
		{"take", "/take", `{"fromPartInstanceId":"pi-1"}`, http.StatusNoContent, "take evening from=pi-1"},
		{"first take", "/take", `{}`, http.StatusNoContent, "take evening from="},
		{"set next part", "/next-part", `{"partId":"story1"}`, http.StatusNoContent, "next-part evening story1"},
		{"move next", "/move-next", `{"partDelta":1}`, http.StatusOK, "move-next evening 1 0"},
		{"set next segment", "/next-segment", `{"segmentId":"weather"}`, http.StatusNoContent, "next-segment evening weather"},
		{"queue segment", "/queue-segment", `{"segmentId":"weather"}`, http.StatusNoContent, `queue-segment evening "weather"`},
		{"clear queued segment", "/queue-segment", `{"segmentId":""}`, http.StatusNoContent, `queue-segment evening ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv := testServer(t, runner, nil)

			rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening"+tt.path, tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, []string{tt.call}, runner.Calls())
		})
	}
}

func TestReset_PassesOptions(t *testing.T) {
	runner := &fakeRunner{}
	srv := testServer(t, runner, nil)

	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening/reset", `{"activate":"active","force":true}`, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, playout.ResetOptions{Activate: playout.ActivationActive, Force: true}, runner.reset)
}

func TestMoveNext_ReturnsPart(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)

	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening/move-next", `{"segmentDelta":-1}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"partId":"story2"}`, rec.Body.String())
}

func TestGetPlaylist(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/playlists/evening", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pl model.RundownPlaylist
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pl))
	assert.Equal(t, "evening", pl.ID)
	assert.Equal(t, "studio-a", pl.StudioID)
}

func TestStudioPlaylists(t *testing.T) {
	runner := &fakeRunner{playlists: []model.RundownPlaylist{{ID: "evening"}, {ID: "late"}}}
	srv := testServer(t, runner, nil)

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/studios/studio-a/playlists", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Equal(t, []string{"studio-playlists studio-a"}, runner.Calls())
}

func TestPlayback_DecodesChanges(t *testing.T) {
	runner := &fakeRunner{}
	srv := testServer(t, runner, nil)

	body := `{"changes":[{"type":"partPlaybackStarted","partInstanceId":"pi-1","time":1000}]}`
	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening/playback", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"inconsistencies":[]}`, rec.Body.String())

	require.Len(t, runner.changes, 1)
	assert.Equal(t, playout.PartPlaybackStarted{PartInstanceID: "pi-1", Time: 1000}, runner.changes[0])
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"malformed json", "/take", `{`, ErrCodeBadRequest},
		{"unknown field", "/take", `{"from":"pi-1"}`, ErrCodeBadRequest},
		{"missing part", "/next-part", `{}`, ErrCodeValidation},
		{"missing segment", "/next-segment", `{}`, ErrCodeValidation},
		{"zero move", "/move-next", `{}`, ErrCodeValidation},
		{"bad activation mode", "/reset", `{"activate":"live"}`, ErrCodeValidation},
		{"no changes", "/playback", `{}`, ErrCodeValidation},
		{"unknown change", "/playback", `{"changes":[{"type":"explode"}]}`, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			srv := testServer(t, runner, nil)

			rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening"+tt.path, tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Empty(t, runner.Calls(), "job must not be submitted")
		})
	}
}

func TestJobErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			"state conflict",
			playout.NewUserError(playout.CodeTakeFromIncorrectPart, "take from pi-0 but pi-1 is on air"),
			http.StatusConflict,
			string(playout.CodeTakeFromIncorrectPart),
		},
		{
			"wrapped user error",
			fmt.Errorf("job take: %w", playout.NewUserError(playout.CodeInactiveRundown, "not active")),
			http.StatusConflict,
			string(playout.CodeInactiveRundown),
		},
		{
			"not found",
			playout.NewUserError(playout.CodePlaylistNotFound, "playlist evening not found"),
			http.StatusNotFound,
			string(playout.CodePlaylistNotFound),
		},
		{
			"invalid target",
			playout.NewUserError(playout.CodePartNotPlayable, "part is invalid"),
			http.StatusBadRequest,
			string(playout.CodePartNotPlayable),
		},
		{
			"not dispatched",
			fmt.Errorf("%w: acquiring playlist lock: context canceled", jobs.ErrNotDispatched),
			http.StatusServiceUnavailable,
			ErrCodeNotDispatched,
		},
		{
			"infrastructure",
			errors.New("saving part instances: disk full"),
			http.StatusInternalServerError,
			ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &fakeRunner{err: tt.err}, nil)

			rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/playlists/evening/take", `{}`, nil)
			require.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "disk full", "infrastructure detail leaked")
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, rec.Header().Get("X-Request-Id"), body.RequestID)
			}
		})
	}
}

// =============================================================================
// Import and job log
// =============================================================================

const lateShow = `
playlist: {id: late, studioId: studio-a, name: Late Show}
rundown:
  id: late-1
  segments:
    - id: monologue
      parts: [{id: mono1}]
`

func TestImportRundown(t *testing.T) {
	runner := &fakeRunner{}
	srv := testServer(t, runner, nil)

	rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/rundowns", lateShow, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, runner.imported)
	assert.Equal(t, "late", runner.imported.Playlist.ID)
	assert.Contains(t, rec.Body.String(), `"late-1"`)
}

func TestImportRundown_Errors(t *testing.T) {
	t.Run("invalid document", func(t *testing.T) {
		runner := &fakeRunner{}
		srv := testServer(t, runner, nil)

		rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/rundowns", "rundown: [", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, ErrCodeValidation, decodeError(t, rec).Code)
		assert.Empty(t, runner.Calls())
	})

	t.Run("playlist mismatch", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("%w: late-1 is in evening", ingest.ErrPlaylistMismatch)}
		srv := testServer(t, runner, nil)

		rec := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/rundowns", lateShow, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "playlist_mismatch", decodeError(t, rec).Code)
	})
}

func TestListJobs(t *testing.T) {
	log := &fakeJobLog{}
	srv := testServer(t, &fakeRunner{}, func(d *Deps) { d.JobLog = log })

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/jobs?kind=take&playlist_id=evening&outcome=ok&limit=10&offset=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.Filter{Kind: "take", PlaylistID: "evening", Outcome: audit.OutcomeOK, Limit: 10, Offset: 5}, log.filter)

	var res audit.ListResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Total)
}

func TestListJobs_NotConfigured(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, nil)

	rec := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Authentication
// =============================================================================

func withAuth(d *Deps) { d.Config.AuthEnabled = true }

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestAuthMiddleware(t *testing.T) {
	srv := testServer(t, &fakeRunner{}, withAuth)
	router := srv.buildRouter()

	valid, err := IssueToken(srv.secCfg.JWT, "director", time.Now())
	require.NoError(t, err)
	expired, err := IssueToken(srv.secCfg.JWT, "director", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	otherIssuer, err := IssueToken(config.JWTConfig{Secret: testSecret, Issuer: "elsewhere"}, "director", time.Now())
	require.NoError(t, err)
	otherSecret, err := IssueToken(config.JWTConfig{Secret: "another-secret-of-sufficient-length", Issuer: "playoutd"}, "director", time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"not bearer", http.Header{"Authorization": []string{"Basic abc"}}, http.StatusUnauthorized},
		{"garbage", bearer("not-a-jwt"), http.StatusUnauthorized},
		{"expired", bearer(expired), http.StatusUnauthorized},
		{"wrong issuer", bearer(otherIssuer), http.StatusUnauthorized},
		{"wrong secret", bearer(otherSecret), http.StatusUnauthorized},
		{"valid", bearer(valid), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/v1/playlists/evening/take", `{}`, tt.header)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is public")
}

func TestParseToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: testSecret, Issuer: "playoutd", AccessTokenTTL: 5}
	now := time.Now()

	token, err := IssueToken(cfg, "director", now)
	require.NoError(t, err)

	subject, err := ParseToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "director", subject)

	_, err = IssueToken(config.JWTConfig{}, "director", now)
	assert.Error(t, err, "missing secret")

	_, err = ParseToken(cfg, token+"x")
	assert.Error(t, err)
}
