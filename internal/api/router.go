package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/api/v1/ws"

// buildRouter mounts /health and the WebSocket at the root and the job
// surface under /api/v1. Every /api/v1 route except health needs a bearer
// token when auth is enabled.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/health", s.handleHealth)

	// The WebSocket checks its own ticket.
	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}
	r.Get(wsPath, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Get("/studios/{id}/playlists", s.handleListStudioPlaylists)

			r.Route("/playlists/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPlaylist)
				r.Get("/status", s.handlePlaylistStatus)
				r.Get("/lookahead", s.handleLookahead)

				r.Post("/activate", s.handleActivate)
				r.Post("/deactivate", s.handleDeactivate)
				r.Post("/reset", s.handleReset)
				r.Post("/take", s.handleTake)
				r.Post("/next-part", s.handleSetNextPart)
				r.Post("/move-next", s.handleMoveNextPart)
				r.Post("/next-segment", s.handleSetNextSegment)
				r.Post("/queue-segment", s.handleQueueNextSegment)
				r.Post("/playback", s.handlePlayback)
			})

			r.Post("/rundowns", s.handleImportRundown)
			r.Get("/jobs", s.handleListJobs)
		})
	})

	return r
}

// healthPingTimeout bounds the database probe behind /health.
const healthPingTimeout = 2 * time.Second

// handleHealth answers 503 when the database is unreachable, since no job
// can commit without it. A lost broker only degrades the service: jobs
// still run but devices stop receiving timelines.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	checks := map[string]string{}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status, code = "unavailable", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if s.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if code == http.StatusOK {
				status = "degraded"
			}
		}
	}

	body := map[string]any{"status": status, "version": s.version}
	if len(checks) > 0 {
		body["checks"] = checks
	}
	writeJSON(w, code, body)
}
