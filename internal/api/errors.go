package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/playout-core/internal/jobs"
	"github.com/nerrad567/playout-core/internal/playout"
)

// Error is the body of an error response, wrapped as {"error": {...}}.
// Playout user errors keep their own code and message args so a client
// can localise them; RequestID is set on internal errors for log lookup.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Args      map[string]any `json:"args,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

type errorResponse struct {
	Error Error `json:"error"`
}

const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeUnauthorized  = "unauthorised"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeNotDispatched = "not_dispatched"
	ErrCodeRateLimited   = "rate_limited"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// The client may have gone; nothing useful to do with the error.
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: Error{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
}

// writeValidationError is for a body that parsed but makes no sense.
func writeValidationError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, ErrCodeValidation, msg)
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, msg)
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, msg)
}

func writeInternalError(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, msg)
}

// statusForCode maps a playout user error code to its HTTP status.
func statusForCode(code playout.Code) int {
	switch code {
	case playout.CodePlaylistNotFound, playout.CodePartNotFound, playout.CodeSegmentNotFound:
		return http.StatusNotFound
	case playout.CodePartNotPlayable, playout.CodeSegmentNoPlayableParts, playout.CodeMoveNextPartNoTarget:
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

// writeJobError reports the failure of a job. User errors keep their code;
// anything else is logged and hidden behind internal_error.
func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *playout.UserError
	if errors.As(err, &ue) {
		writeJSON(w, statusForCode(ue.Code), errorResponse{Error: Error{
			Code:    string(ue.Code),
			Message: ue.Message,
			Args:    ue.Args,
		}})
		return
	}

	if errors.Is(err, jobs.ErrNotDispatched) {
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotDispatched, "job was not dispatched")
		return
	}

	reqID := middleware.GetReqID(r.Context())
	s.logger.Error("job failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", reqID,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: Error{
		Code:      ErrCodeInternal,
		Message:   "internal server error",
		RequestID: reqID,
	}})
}
