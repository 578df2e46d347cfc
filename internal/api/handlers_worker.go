package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/store"
)

// registerWorkerRequest is spec.md §6's POST /api/register_worker payload.
type registerWorkerRequest struct {
	Hostname     string `json:"hostname" validate:"required"`
	SessionToken string `json:"session_token" validate:"required,len=64,hexadecimal"`
	Version      string `json:"version" validate:"required"`
}

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req registerWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}

	if err := s.sessions.Register(r.Context(), req.Hostname, req.SessionToken, req.Version); err != nil {
		if err == store.ErrRegistrationConflict {
			respondProblem(w, r, http.StatusConflict, &Problem{
				Code:    "REGISTRATION_CONFLICT",
				Message: "hostname " + req.Hostname + " is already registered by a live session",
			})
			return
		}
		writeStoreError(w, r, err)
		return
	}

	log.WithComponent("api").Info().Str("hostname", req.Hostname).Str("version", req.Version).Msg("worker registered")
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requestJobRequest is spec.md §6's POST /api/request_job payload.
type requestJobRequest struct {
	Hostname     string `json:"hostname" validate:"required"`
	SessionToken string `json:"session_token" validate:"required"`
}

func (s *Server) handleRequestJob(w http.ResponseWriter, r *http.Request) {
	var req requestJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.sessions.Validate(r.Context(), req.Hostname, req.SessionToken); err != nil {
		writeStoreError(w, r, err)
		return
	}

	job, err := s.queue.Claim(r.Context(), req.Hostname)
	if err != nil {
		if err == store.ErrQueueEmpty {
			respondJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"job_id":   job.ID,
		"filepath": job.Filepath,
		"job_type": job.JobType,
	})
}

// updateJobRequest is spec.md §6's POST /api/update_job/{id} payload.
type updateJobRequest struct {
	Hostname     string `json:"hostname" validate:"required"`
	SessionToken string `json:"session_token" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=completed failed"`
	OriginalSize int64  `json:"original_size"`
	NewSize      int64  `json:"new_size"`
	Reason       string `json:"reason"`
	Log          string `json:"log"`
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	jobID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}

	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}
	if err := s.sessions.Validate(r.Context(), req.Hostname, req.SessionToken); err != nil {
		writeStoreError(w, r, err)
		return
	}

	switch req.Status {
	case "completed":
		err = s.queue.Complete(r.Context(), jobID, store.CompletionResult{
			Worker:       req.Hostname,
			OriginalSize: req.OriginalSize,
			NewSize:      req.NewSize,
		})
	case "failed":
		err = s.queue.Fail(r.Context(), jobID, req.Reason, req.Log)
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "job updated"})
}

// handleWorkerHealth is spec.md §6's GET /api/health readiness probe.
func (s *Server) handleWorkerHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.health.Ready(r.Context(), false)
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// heartbeatRequest carries the per-job progress fields a worker reports on
// every poll (spec.md §3's Node.progress/fps/current_file/total_duration/
// job_start_time, refreshed or cleared per job). The controller replies with
// the operator-issued command so the worker learns of pause/resume/quit
// without a separate poll.
type heartbeatRequest struct {
	Hostname      string  `json:"hostname" validate:"required"`
	SessionToken  string  `json:"session_token" validate:"required"`
	Status        string  `json:"status" validate:"required,oneof=booting idle running encoding cleaning renaming paused finishing"`
	Progress      float64 `json:"progress"`
	FPS           float64 `json:"fps"`
	CurrentFile   string  `json:"current_file"`
	TotalDuration float64 `json:"total_duration"`
	JobStartTime  *time.Time `json:"job_start_time,omitempty"`
}

// handleHeartbeat implements the worker poll that keeps last_heartbeat fresh
// and publishes per-job progress (spec.md §3, §4.3's "Heartbeat… updates
// heartbeat columns only"). The reply surfaces the node's current command so
// a worker observes an operator's pause/resume/quit without a distinct call.
func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}
	if err := s.sessions.Validate(r.Context(), req.Hostname, req.SessionToken); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if err := s.store.Heartbeat(r.Context(), req.Hostname, store.HeartbeatFields{
		Status:        store.NodeStatus(req.Status),
		Progress:      req.Progress,
		FPS:           req.FPS,
		CurrentFile:   req.CurrentFile,
		TotalDuration: req.TotalDuration,
		JobStartTime:  req.JobStartTime,
	}); err != nil {
		writeStoreError(w, r, err)
		return
	}

	node, err := s.store.GetNode(r.Context(), req.Hostname)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"command": string(node.Command)})
}

// handleGetSettings is spec.md §6's GET /api/settings, shared by both
// audiences: a worker authenticates with hostname+session_token query
// params and gets the wrapped per-key shape plus the controller version; an
// operator authenticates with cookie or API key and gets the flat snapshot.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	hostname := r.URL.Query().Get("hostname")
	token := r.URL.Query().Get("session_token")

	if hostname != "" || token != "" {
		if err := s.sessions.Validate(r.Context(), hostname, token); err != nil {
			writeStoreError(w, r, err)
			return
		}
		all, err := s.settings.All(r.Context())
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		wrapped := make(map[string]map[string]string, len(all))
		for k, v := range all {
			wrapped[k] = map[string]string{"setting_value": v}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"settings":          wrapped,
			"dashboard_version": s.cfg.Version,
		})
		return
	}

	if !s.operatorAuthorized(r) {
		respondProblem(w, r, http.StatusUnauthorized, ErrUnauthorized)
		return
	}
	all, err := s.settings.All(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, all)
}
