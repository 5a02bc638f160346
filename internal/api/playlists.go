package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/playout-core/internal/playout"
)

// activateRequest is the body of POST /playlists/{id}/activate.
type activateRequest struct {
	Rehearsal bool `json:"rehearsal"`
}

// resetRequest is the body of POST /playlists/{id}/reset.
type resetRequest struct {
	Activate playout.ActivationMode `json:"activate"`
	Force    bool                   `json:"force"`
}

// takeRequest is the body of POST /playlists/{id}/take.
type takeRequest struct {
	FromPartInstanceID string `json:"fromPartInstanceId"`
}

// nextPartRequest is the body of POST /playlists/{id}/next-part.
type nextPartRequest struct {
	PartID string `json:"partId"`
}

// moveNextRequest is the body of POST /playlists/{id}/move-next.
type moveNextRequest struct {
	PartDelta    int `json:"partDelta"`
	SegmentDelta int `json:"segmentDelta"`
}

// segmentRequest is the body of the next-segment and queue-segment routes.
type segmentRequest struct {
	SegmentID string `json:"segmentId"`
}

// playbackRequest is the body of POST /playlists/{id}/playback.
type playbackRequest struct {
	Changes json.RawMessage `json:"changes"`
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleListStudioPlaylists(w http.ResponseWriter, r *http.Request) {
	pls, err := s.jobs.StudioPlaylists(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"playlists": pls,
		"count":     len(pls),
	})
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := s.jobs.GetPlaylist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

func (s *Server) handlePlaylistStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.jobs.PlaylistStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLookahead(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Lookahead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.respond(w, r, s.jobs.ActivateRundownPlaylist(r.Context(), chi.URLParam(r, "id"), req.Rehearsal))
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.jobs.DeactivateRundownPlaylist(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	switch req.Activate {
	case playout.ActivationNone, playout.ActivationActive, playout.ActivationRehearsal:
	default:
		writeValidationError(w, `activate must be "", "active" or "rehearsal"`)
		return
	}
	opts := playout.ResetOptions{Activate: req.Activate, Force: req.Force}
	s.respond(w, r, s.jobs.ResetRundownPlaylist(r.Context(), chi.URLParam(r, "id"), opts))
}

func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	var req takeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.respond(w, r, s.jobs.TakeNextPart(r.Context(), chi.URLParam(r, "id"), req.FromPartInstanceID))
}

func (s *Server) handleSetNextPart(w http.ResponseWriter, r *http.Request) {
	var req nextPartRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PartID == "" {
		writeValidationError(w, "partId is required")
		return
	}
	s.respond(w, r, s.jobs.SetNextPart(r.Context(), chi.URLParam(r, "id"), req.PartID))
}

func (s *Server) handleMoveNextPart(w http.ResponseWriter, r *http.Request) {
	var req moveNextRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PartDelta == 0 && req.SegmentDelta == 0 {
		writeValidationError(w, "partDelta or segmentDelta must be non-zero")
		return
	}
	partID, err := s.jobs.MoveNextPart(r.Context(), chi.URLParam(r, "id"), req.PartDelta, req.SegmentDelta)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partId": partID})
}

func (s *Server) handleSetNextSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SegmentID == "" {
		writeValidationError(w, "segmentId is required")
		return
	}
	s.respond(w, r, s.jobs.SetNextSegment(r.Context(), chi.URLParam(r, "id"), req.SegmentID))
}

// handleQueueNextSegment queues a segment. An empty segmentId clears the queue.
func (s *Server) handleQueueNextSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	s.respond(w, r, s.jobs.QueueNextSegment(r.Context(), chi.URLParam(r, "id"), req.SegmentID))
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	var req playbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Changes) == 0 {
		writeValidationError(w, "changes is required")
		return
	}
	changes, err := playout.DecodePlaybackChanges(req.Changes)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	inconsistencies, err := s.jobs.OnPlayoutPlaybackChanged(r.Context(), chi.URLParam(r, "id"), changes)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	if inconsistencies == nil {
		inconsistencies = []playout.Inconsistency{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inconsistencies": inconsistencies})
}

// respond finishes a job that has no result body.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
