package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/scan"
	"github.com/librarrarian/dashboard/internal/store"
)

// Problem is the structured error body returned to callers, mirroring
// spec.md §7's error kinds with a machine-readable code plus request
// correlation (grounded on the teacher's internal/api/errors.go APIError).
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func (p *Problem) Error() string { return p.Message }

var (
	ErrUnauthorized = &Problem{Code: "UNAUTHENTICATED", Message: "authentication required"}
	ErrForbidden    = &Problem{Code: "FORBIDDEN", Message: "access denied"}
	ErrBadInput     = &Problem{Code: "INVALID_INPUT", Message: "invalid request"}
	ErrBusy         = &Problem{Code: "BUSY", Message: "a scan is already running"}
	ErrInternal     = &Problem{Code: "INTERNAL", Message: "an internal error occurred"}
)

// respondProblem writes a Problem response, stamping the request id from
// context (spec.md §7 "never leaks existence of resources" — messages stay
// generic for auth failures).
func respondProblem(w http.ResponseWriter, r *http.Request, status int, base *Problem, details ...any) {
	out := &Problem{
		Code:      base.Code,
		Message:   base.Message,
		RequestID: log.RequestIDFromContext(r.Context()),
	}
	if len(details) > 0 {
		out.Details = details[0]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		http.Error(w, out.Message, status)
	}
}

// respondJSON writes a successful JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError maps a store/session/scan sentinel error onto the HTTP
// status table of spec.md §7, falling back to 500 for anything unmapped.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondProblem(w, r, http.StatusNotFound, &Problem{Code: "NOT_FOUND", Message: "resource not found"})
	case errors.Is(err, store.ErrRegistrationConflict):
		respondProblem(w, r, http.StatusConflict, &Problem{Code: "REGISTRATION_CONFLICT", Message: "hostname already registered by a live session"})
	case errors.Is(err, store.ErrSessionInvalid):
		respondProblem(w, r, http.StatusForbidden, &Problem{Code: "SESSION_INVALID", Message: "session token does not match"})
	case errors.Is(err, store.ErrMissingSession):
		respondProblem(w, r, http.StatusUnauthorized, &Problem{Code: "MISSING_SESSION", Message: "hostname and session_token are required"})
	case errors.Is(err, store.ErrQueueEmpty):
		respondJSON(w, http.StatusOK, map[string]any{})
	case errors.Is(err, store.ErrUnavailable):
		respondProblem(w, r, http.StatusServiceUnavailable, &Problem{Code: "UNAVAILABLE", Message: "datastore temporarily unavailable"})
	case errors.Is(err, scan.ErrScanBusy):
		respondProblem(w, r, http.StatusConflict, ErrBusy)
	default:
		log.FromContext(r.Context()).Error().Err(err).Msg("unhandled API error")
		respondProblem(w, r, http.StatusInternalServerError, ErrInternal)
	}
}
