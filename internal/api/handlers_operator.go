package api

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/librarrarian/dashboard/internal/config"
	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/platform/paths"
	"github.com/librarrarian/dashboard/internal/providers/plex"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// nodeView adds the derived fields spec.md §3/§9 asks for (liveness,
// version mismatch) that don't live in the stored row.
type nodeView struct {
	store.Node
	Live             bool `json:"live"`
	VersionMismatch  bool `json:"version_mismatch"`
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]nodeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView{
			Node:            n,
			Live:            store.IsLive(n, config.HeartbeatFreshness),
			VersionMismatch: n.Version != s.cfg.Version,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type nodeCommandRequest struct {
	Command string `json:"command" validate:"required,oneof=idle running paused quit"`
}

// handleNodeCommand sets the operator-issued command a worker reads on its
// next poll. Per DESIGN.md's resolution of spec.md §9's open question, a
// "quit" command only flips this column; removing the row is a separate,
// explicit delete action.
func (s *Server) handleNodeCommand(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	var req nodeCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}
	if err := s.store.SetCommand(r.Context(), hostname, store.NodeCommand(req.Command)); err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "command set"})
}

// handleBulkNodeCommand applies one command to every registered node
// (spec.md §6 "per-node commands … bulk variants").
func (s *Server) handleBulkNodeCommand(w http.ResponseWriter, r *http.Request) {
	var req nodeCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}

	nodes, err := s.store.ListNodes(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	applied := 0
	for _, n := range nodes {
		if err := s.store.SetCommand(r.Context(), n.Hostname, store.NodeCommand(req.Command)); err != nil {
			writeStoreError(w, r, err)
			return
		}
		applied++
	}
	respondJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	if err := s.store.DeleteNode(r.Context(), hostname); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter store.JobFilter
	if v := q.Get("status"); v != "" {
		st := store.JobStatus(v)
		filter.Status = &st
	}
	if v := q.Get("job_type"); v != "" {
		jt := store.JobType(v)
		filter.JobType = &jt
	}

	page := store.Page{Limit: 100}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Offset = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page.Limit = n
		}
	}

	jobs, err := s.queue.List(r.Context(), filter, page)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.queue.Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRequeueJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.queue.Requeue(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "requeued"})
}

// handleDrainRenames runs one ArrJobProcessor pass immediately instead of
// waiting out the 60s drain interval.
func (s *Server) handleDrainRenames(w http.ResponseWriter, r *http.Request) {
	if err := s.arrjobs.DrainNow(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "rename jobs drained"})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.queue.Clear(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

// handleScanMedia starts a manual media scan. A manual trigger always runs
// with force=true: existing Jobs/EncodedFile membership does not suppress
// candidates, only the timer-driven scheduler scans incrementally.
func (s *Server) handleScanMedia(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.MediaScan(detachedContext(), true); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("media scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "media scan started"})
}

func (s *Server) handleScanSonarrRename(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.SonarrRenameScan(detachedContext()); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("sonarr rename scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "sonarr rename scan started"})
}

func (s *Server) handleScanSonarrQuality(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.SonarrQualityScan(detachedContext()); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("sonarr quality scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "sonarr quality scan started"})
}

func (s *Server) handleScanRadarrRename(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.RadarrRenameScan(detachedContext()); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("radarr rename scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "radarr rename scan started"})
}

func (s *Server) handleScanLidarrRename(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.LidarrRenameScan(detachedContext()); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("lidarr rename scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "lidarr rename scan started"})
}

func (s *Server) handleScanCleanup(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.scan.CleanupScan(detachedContext()); err != nil {
			apiLogger := log.WithComponent("api")
			apiLogger.Warn().Err(err).Msg("cleanup scan trigger returned early")
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "cleanup scan started"})
}

func (s *Server) handleScanCancel(w http.ResponseWriter, r *http.Request) {
	s.scan.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{"message": "cancel requested"})
}

func (s *Server) handleScanProgress(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.scan.Snapshot())
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.ListHistory(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearHistory(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	freshnessSeconds := int64(config.HeartbeatFreshness.Seconds())
	f, err := s.store.ListFailures(r.Context(), freshnessSeconds)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, f)
}

func (s *Server) handleClearFailures(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearFailures(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	for k, v := range updates {
		if err := s.settings.PutString(r.Context(), k, v); err != nil {
			writeStoreError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "settings updated"})
}

// handleListFolders lists the immediate subdirectories of each configured
// media root, for the operator to pick internal_scan_paths from (spec.md §6
// "internal folder list"). Roots outside the MEDIA_PATHS allow-list are
// never walked.
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	type folder struct {
		Root string `json:"root"`
		Name string `json:"name"`
	}
	var out []folder
	for _, root := range s.cfg.MediaPaths {
		if err := paths.ValidateContained(root, s.cfg.MediaPaths); err != nil {
			continue
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			continue // an unreadable root is skipped, not fatal
		}
		for _, e := range entries {
			if e.IsDir() {
				out = append(out, folder{Root: root, Name: e.Name()})
			}
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlexLibraries(w http.ResponseWriter, r *http.Request) {
	if s.plex == nil {
		respondProblem(w, r, http.StatusServiceUnavailable, &Problem{Code: "PLEX_NOT_CONFIGURED", Message: "plex is not configured"})
		return
	}
	libs, err := s.plex.ListLibraries(r.Context())
	if err != nil {
		respondProblem(w, r, http.StatusBadGateway, &Problem{Code: "PROVIDER_ERROR", Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, libs)
}

type plexLoginRequest struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	Token   string `json:"token" validate:"required"`
}

// handlePlexLogin verifies a Plex server URL/token pair and persists it to
// settings. The running scan orchestrator picks the connection up on the
// next controller restart; the verification here uses a transient client so
// a bad token is rejected before it is stored.
func (s *Server) handlePlexLogin(w http.ResponseWriter, r *http.Request) {
	var req plexLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}

	probe := plex.New(req.BaseURL, req.Token)
	if _, err := probe.ListLibraries(r.Context()); err != nil {
		respondProblem(w, r, http.StatusBadGateway, &Problem{Code: "PROVIDER_ERROR", Message: err.Error()})
		return
	}

	if err := s.settings.PutString(r.Context(), settings.KeyPlexBaseURL, req.BaseURL); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := s.settings.PutString(r.Context(), settings.KeyPlexToken, req.Token); err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleProviderTest implements spec.md §6's "Arr connection test" (and its
// Plex analogue) as one handler keyed by the {provider} path segment.
func (s *Server) handleProviderTest(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var err error
	switch provider {
	case "plex":
		if s.plex == nil {
			err = errNotConfigured
			break
		}
		_, err = s.plex.ListLibraries(r.Context())
	case "sonarr":
		if s.sonarr == nil {
			err = errNotConfigured
			break
		}
		_, err = s.sonarr.ListSeries(r.Context())
	case "radarr":
		if s.radarr == nil {
			err = errNotConfigured
			break
		}
		_, err = s.radarr.ListMovies(r.Context())
	case "lidarr":
		if s.lidarr == nil {
			err = errNotConfigured
			break
		}
		_, err = s.lidarr.ListArtists(r.Context())
	default:
		respondProblem(w, r, http.StatusNotFound, &Problem{Code: "UNKNOWN_PROVIDER", Message: "unknown provider " + provider})
		return
	}

	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleProviderStats reports item counts per provider (spec.md §6 "Arr
// stats"): series for Sonarr, movies for Radarr, artists for Lidarr,
// libraries for Plex.
func (s *Server) handleProviderStats(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var count int
	var err error
	switch provider {
	case "plex":
		if s.plex == nil {
			err = errNotConfigured
			break
		}
		libs, lerr := s.plex.ListLibraries(r.Context())
		count, err = len(libs), lerr
	case "sonarr":
		if s.sonarr == nil {
			err = errNotConfigured
			break
		}
		series, serr := s.sonarr.ListSeries(r.Context())
		count, err = len(series), serr
	case "radarr":
		if s.radarr == nil {
			err = errNotConfigured
			break
		}
		movies, merr := s.radarr.ListMovies(r.Context())
		count, err = len(movies), merr
	case "lidarr":
		if s.lidarr == nil {
			err = errNotConfigured
			break
		}
		artists, aerr := s.lidarr.ListArtists(r.Context())
		count, err = len(artists), aerr
	default:
		respondProblem(w, r, http.StatusNotFound, &Problem{Code: "UNKNOWN_PROVIDER", Message: "unknown provider " + provider})
		return
	}

	if err != nil {
		respondProblem(w, r, http.StatusBadGateway, &Problem{Code: "PROVIDER_ERROR", Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"provider": provider, "items": count})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Export(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc store.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	if err := s.store.Import(r.Context(), doc); err != nil {
		writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "import complete"})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	files, err := s.backup.List()
	if err != nil {
		respondProblem(w, r, http.StatusInternalServerError, ErrInternal)
		return
	}
	respondJSON(w, http.StatusOK, files)
}

func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.backup.RunOnce(r.Context()); err != nil {
		respondProblem(w, r, http.StatusInternalServerError, ErrInternal, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"message": "backup created"})
}

func (s *Server) handleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := s.backup.Path(name)
	if err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	http.ServeFile(w, r, path)
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.backup.Delete(name); err != nil {
		respondProblem(w, r, http.StatusBadRequest, ErrBadInput, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDiagnosticLogs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, log.GetRecentLogs())
}
