package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/infrastructure/config"
	"github.com/nerrad567/playout-core/internal/infrastructure/logging"
	"github.com/nerrad567/playout-core/internal/ingest"
	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/lookahead"
	"github.com/nerrad567/playout-core/internal/model"
	"github.com/nerrad567/playout-core/internal/playout"
)

// shutdownGrace bounds how long Close waits for in-flight jobs to answer.
const shutdownGrace = 10 * time.Second

// JobRunner submits playout and ingest jobs. It is implemented by
// *jobs.Runner.
type JobRunner interface {
	GetPlaylist(ctx context.Context, playlistID string) (model.RundownPlaylist, error)
	StudioPlaylists(ctx context.Context, studioID string) ([]model.RundownPlaylist, error)
	PlaylistStatus(ctx context.Context, playlistID string) (jobs.Status, error)
	Lookahead(ctx context.Context, playlistID string) (lookahead.Result, error)

	ActivateRundownPlaylist(ctx context.Context, playlistID string, rehearsal bool) error
	DeactivateRundownPlaylist(ctx context.Context, playlistID string) error
	ResetRundownPlaylist(ctx context.Context, playlistID string, opts playout.ResetOptions) error
	TakeNextPart(ctx context.Context, playlistID, fromPartInstanceID string) error
	SetNextPart(ctx context.Context, playlistID, partID string) error
	MoveNextPart(ctx context.Context, playlistID string, partDelta, segmentDelta int) (string, error)
	SetNextSegment(ctx context.Context, playlistID, segmentID string) error
	QueueNextSegment(ctx context.Context, playlistID, segmentID string) error
	OnPlayoutPlaybackChanged(ctx context.Context, playlistID string, changes []playout.PlaybackChange) ([]playout.Inconsistency, error)

	ImportRundown(ctx context.Context, ro *ingest.RunningOrder) (ingest.Result, error)
}

var _ JobRunner = (*jobs.Runner)(nil)

// ConnectionChecker reports broker connectivity for the metrics endpoint.
type ConnectionChecker interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Jobs     JobRunner
	JobLog   audit.Repository  // optional: enables GET /jobs
	MQTT     ConnectionChecker // optional: reported by /metrics
	DB       *sql.DB           // optional: pool stats reported by /metrics
	Hub      *Hub              // if set, the server uses this hub instead of creating its own
	StudioID string            // optional: studio summarised by /metrics
	Version  string
}

// Server exposes the job runner over HTTP and streams committed
// timelines over WebSocket.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	jobs      JobRunner
	jobLog    audit.Repository
	mqtt      ConnectionChecker
	db        *sql.DB
	studioID  string
	version   string
	startTime time.Time
	hub       *Hub
	tickets   *ticketStore

	server   *http.Server
	listener net.Listener
	served   chan error
	cancel   context.CancelFunc
}

// New checks deps. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Jobs == nil:
		return nil, errors.New("job runner is required")
	case deps.Config.AuthEnabled && deps.Security.JWT.Secret == "":
		return nil, errors.New("jwt secret is required when auth is enabled")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		jobs:      deps.Jobs,
		jobLog:    deps.JobLog,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		studioID:  deps.StudioID,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
		tickets:   newTicketStore(),
	}, nil
}

// Start binds the listen address and serves in the background. A bind
// failure, such as the port being taken by another playoutd, is returned
// here rather than logged later. Without an injected hub, Start runs its
// own until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var bg context.Context
	bg, s.cancel = context.WithCancel(ctx)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(bg)
	}
	go s.cleanTicketsLoop(bg)

	s.listener = ln
	s.served = make(chan error, 1)
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", true)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server listening", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.served <- err
	}()
	return nil
}

// Addr is the bound address, useful when api.port is 0. Nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Wait blocks until the server stops serving and returns why. It is nil
// after a Close.
func (s *Server) Wait() error {
	if s.served == nil {
		return nil
	}
	return <-s.served
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close stops accepting requests and waits up to shutdownGrace for
// in-flight ones. Hijacked WebSocket connections are closed by the hub.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.listener == nil {
		return errors.New("api server not started")
	}
	return nil
}
