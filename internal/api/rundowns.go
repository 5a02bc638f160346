package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/playout-core/internal/audit"
	"github.com/nerrad567/playout-core/internal/ingest"
)

// handleImportRundown accepts a YAML running order and imports it as one
// ingest job. The response reports how many documents were written.
func (s *Server) handleImportRundown(w http.ResponseWriter, r *http.Request) {
	ro, err := ingest.Parse(r.Body)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	res, err := s.jobs.ImportRundown(r.Context(), ro)
	switch {
	case errors.Is(err, ingest.ErrPlaylistMismatch):
		writeError(w, http.StatusConflict, "playlist_mismatch", err.Error())
		return
	case errors.Is(err, ingest.ErrInvalidRunningOrder):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.writeJobError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.PlaylistCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// handleListJobs returns paginated job log entries with optional filters.
//
// Query parameters:
//   - kind: filter by job kind (take, activate, import, ...)
//   - playlist_id: filter by playlist
//   - outcome: ok, user_error or failed
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobLog == nil {
		writeNotFound(w, "job log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Kind:       q.Get("kind"),
		PlaylistID: q.Get("playlist_id"),
		Outcome:    audit.Outcome(q.Get("outcome")),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.jobLog.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list job log", "error", err)
		writeInternalError(w, "failed to list job log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
