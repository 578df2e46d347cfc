// Package api exposes the controller's HTTP/JSON surface: worker-facing
// registration and job dispatch endpoints, and operator-facing node,
// job, scan, settings and backup management (spec.md §6, §4.8).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarrarian/dashboard/internal/arrjobs"
	"github.com/librarrarian/dashboard/internal/backup"
	"github.com/librarrarian/dashboard/internal/config"
	chimw "github.com/librarrarian/dashboard/internal/control/middleware"
	"github.com/librarrarian/dashboard/internal/health"
	"github.com/librarrarian/dashboard/internal/providers/lidarr"
	"github.com/librarrarian/dashboard/internal/providers/plex"
	"github.com/librarrarian/dashboard/internal/providers/radarr"
	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/queue"
	"github.com/librarrarian/dashboard/internal/scan"
	"github.com/librarrarian/dashboard/internal/session"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// Server holds every dependency the HTTP handlers need. It carries no
// business logic of its own beyond request parsing and response shaping;
// the real work lives in the packages it wires together.
type Server struct {
	cfg config.Config

	store    *store.Store
	sessions *session.Registry
	settings *settings.Accessor
	queue    *queue.Queue
	scan     *scan.Orchestrator
	backup   *backup.Scheduler
	health   *health.Manager
	arrjobs  *arrjobs.Processor

	plex   *plex.Client
	sonarr *sonarr.Client
	radarr *radarr.Client
	lidarr *lidarr.Client

	validate *validator.Validate

	jwtSecret         []byte
	localPasswordHash []byte
}

// Deps bundles the constructed components cmd/dashboard wires together.
type Deps struct {
	Config   config.Config
	Store    *store.Store
	Sessions *session.Registry
	Settings *settings.Accessor
	Queue    *queue.Queue
	Scan     *scan.Orchestrator
	Backup   *backup.Scheduler
	Health   *health.Manager
	ArrJobs  *arrjobs.Processor

	Plex   *plex.Client
	Sonarr *sonarr.Client
	Radarr *radarr.Client
	Lidarr *lidarr.Client
}

// New constructs a Server from its dependencies. The local operator password
// is bcrypt-hashed once here so login comparisons never see the config
// plaintext.
func New(d Deps) *Server {
	var pwHash []byte
	if d.Config.LocalPasswordPlain != "" {
		pwHash, _ = bcrypt.GenerateFromPassword([]byte(d.Config.LocalPasswordPlain), bcrypt.DefaultCost)
	}
	return &Server{
		cfg:       d.Config,
		store:     d.Store,
		sessions:  d.Sessions,
		settings:  d.Settings,
		queue:     d.Queue,
		scan:      d.Scan,
		backup:    d.Backup,
		health:    d.Health,
		arrjobs:   d.ArrJobs,
		plex:      d.Plex,
		sonarr:    d.Sonarr,
		radarr:    d.Radarr,
		lidarr:    d.Lidarr,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		jwtSecret:         []byte(d.Config.APIKey),
		localPasswordHash: pwHash,
	}
}

// Router builds the full chi router: the canonical ingress middleware stack
// from internal/control/middleware, followed by the worker and operator
// route groups.
func (s *Server) Router() *chi.Mux {
	r := chimw.NewRouter(chimw.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "dashboard",
		EnableLogging:         true,
		EnableRateLimit:       true,
		RateLimitEnabled:      true,
		RateLimitGlobalRPS:    100,
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) { s.health.ServeHealth(w, req) })
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) { s.health.ServeReady(w, req) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		// Login and logout are the only handlers outside the auth gate
		// (spec.md §4.8).
		api.Post("/login", s.handleLogin)
		api.Post("/logout", s.handleLogout)

		api.Group(func(authed chi.Router) {
			authed.Use(s.requireAPIKey)

			authed.Post("/register_worker", s.handleRegisterWorker)
			authed.Post("/request_job", s.handleRequestJob)
			authed.Post("/update_job/{id}", s.handleUpdateJob)
			authed.Post("/heartbeat", s.handleHeartbeat)
			authed.Get("/health", s.handleWorkerHealth)
			// GET /settings serves both audiences: a worker identifies
			// itself via session query params, an operator via the usual
			// cookie/API key (spec.md §6 lists it in both tables).
			authed.Get("/settings", s.handleGetSettings)

			authed.Group(func(op chi.Router) {
				op.Use(s.requireOperator)

				op.Get("/nodes", s.handleListNodes)
				op.Post("/nodes/command", s.handleBulkNodeCommand)
				op.Post("/nodes/{hostname}/command", s.handleNodeCommand)
				op.Delete("/nodes/{hostname}", s.handleDeleteNode)

				op.Post("/jobs/drain_renames", s.handleDrainRenames)
				op.Get("/jobs", s.handleListJobs)
				op.Delete("/jobs/{id}", s.handleDeleteJob)
				op.Post("/jobs/{id}/requeue", s.handleRequeueJob)
				op.Post("/jobs/clear", s.handleClearQueue)

				op.Post("/scan/media", s.handleScanMedia)
				op.Post("/scan/sonarr/rename", s.handleScanSonarrRename)
				op.Post("/scan/sonarr/quality", s.handleScanSonarrQuality)
				op.Post("/scan/radarr/rename", s.handleScanRadarrRename)
				op.Post("/scan/lidarr/rename", s.handleScanLidarrRename)
				op.Post("/scan/cleanup", s.handleScanCleanup)
				op.Post("/scan/cancel", s.handleScanCancel)
				op.Get("/scan/progress", s.handleScanProgress)

				op.Get("/history", s.handleListHistory)
				op.Delete("/history", s.handleClearHistory)
				op.Get("/failures", s.handleListFailures)
				op.Delete("/failures", s.handleClearFailures)

				op.Put("/settings", s.handlePutSettings)

				op.Get("/folders", s.handleListFolders)

				op.Get("/plex/libraries", s.handlePlexLibraries)
				op.Post("/plex/login", s.handlePlexLogin)
				op.Get("/providers/{provider}/test", s.handleProviderTest)
				op.Get("/providers/{provider}/stats", s.handleProviderStats)

				op.Get("/export", s.handleExport)
				op.Post("/import", s.handleImport)

				op.Get("/backups", s.handleListBackups)
				op.Post("/backups", s.handleTriggerBackup)
				op.Get("/backups/{name}", s.handleDownloadBackup)
				op.Delete("/backups/{name}", s.handleDeleteBackup)

				op.Get("/diagnostics/logs", s.handleDiagnosticLogs)
			})
		})
	})

	return r
}

// now is overridable indirection for session/cookie expiry math in tests;
// production code always uses time.Now.
var now = time.Now
