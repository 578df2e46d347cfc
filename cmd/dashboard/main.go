// Command dashboard runs the controller: the worker-session registry, job
// queue, scan orchestrator and HTTP API described in SPEC_FULL.md.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/librarrarian/dashboard/internal/api"
	"github.com/librarrarian/dashboard/internal/arrjobs"
	"github.com/librarrarian/dashboard/internal/backup"
	"github.com/librarrarian/dashboard/internal/config"
	"github.com/librarrarian/dashboard/internal/health"
	dashlog "github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/metrics"
	"github.com/librarrarian/dashboard/internal/posthook"
	"github.com/librarrarian/dashboard/internal/providers/lidarr"
	"github.com/librarrarian/dashboard/internal/providers/plex"
	"github.com/librarrarian/dashboard/internal/providers/radarr"
	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/queue"
	"github.com/librarrarian/dashboard/internal/scan"
	"github.com/librarrarian/dashboard/internal/session"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
	"github.com/librarrarian/dashboard/internal/store/migrate"
	"github.com/librarrarian/dashboard/internal/telemetry"
	"github.com/librarrarian/dashboard/internal/version"
)

// readinessMarkerPath is written once schema migrations complete; the
// health.FileChecker registered against it is what makes /readyz and the
// worker-facing /api/health report ready (spec.md §4.8).
const readinessMarkerPath = "/tmp/dashboard-ready"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	dashlog.Configure(dashlog.Config{
		Level:   "info",
		Service: "dashboard",
		Version: version.Version,
	})
	logger := dashlog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(version.Version)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("startup checks failed")
	}

	environment := "production"
	if cfg.DevMode {
		environment = "development"
	}
	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	tracerProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        otlpEndpoint != "",
		ServiceName:    "dashboard",
		ServiceVersion: version.Version,
		Environment:    environment,
		ExporterType:   "grpc",
		Endpoint:       otlpEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	st, err := store.Open(ctx, cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer st.Close()

	if err := migrate.Run(ctx, st.Pool()); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	// Readiness (spec.md §4.8: "ready only once migrations have completed")
	// is gated on this marker via health.NewFileChecker below; write it once
	// migrations succeed, not before.
	if err := os.WriteFile(readinessMarkerPath, []byte("ok"), 0o644); err != nil {
		logger.Fatal().Err(err).Msg("failed to write readiness marker")
	}

	acc := settings.New(st)
	sessions := session.New(st)

	var plexClient *plex.Client
	if base := acc.GetString(ctx, settings.KeyPlexBaseURL, ""); base != "" {
		plexClient = plex.New(base, acc.GetString(ctx, settings.KeyPlexToken, ""))
	}
	var sonarrClient *sonarr.Client
	if base := acc.GetString(ctx, settings.KeySonarrBaseURL, ""); base != "" {
		sonarrClient = sonarr.New(base, acc.GetString(ctx, settings.KeySonarrAPIKey, ""))
	}
	var radarrClient *radarr.Client
	if base := acc.GetString(ctx, settings.KeyRadarrBaseURL, ""); base != "" {
		radarrClient = radarr.New(base, acc.GetString(ctx, settings.KeyRadarrAPIKey, ""))
	}
	var lidarrClient *lidarr.Client
	if base := acc.GetString(ctx, settings.KeyLidarrBaseURL, ""); base != "" {
		lidarrClient = lidarr.New(base, acc.GetString(ctx, settings.KeyLidarrAPIKey, ""))
	}

	orchestrator := scan.New(st, acc, scan.Clients{
		Plex:   plexClient,
		Sonarr: sonarrClient,
		Radarr: radarrClient,
		Lidarr: lidarrClient,
	})
	hook := posthook.New(acc, plexClient, sonarrClient, radarrClient)
	q := queue.New(st, acc, hook)

	processor := arrjobs.New(st, sonarrClient, radarrClient, lidarrClient)
	backupScheduler := backup.New(st, acc, "/var/lib/dashboard/backups")

	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewFileChecker("startup-marker", readinessMarkerPath))
	healthMgr.RegisterChecker(health.NewLiveNodesChecker(func() int {
		nodes, err := st.ListNodes(ctx)
		if err != nil {
			return 0
		}
		live := 0
		for _, n := range nodes {
			if store.IsLive(n, config.HeartbeatFreshness) {
				live++
			}
		}
		metrics.SetLiveNodes(float64(live))
		return live
	}))
	if plexClient != nil {
		healthMgr.RegisterChecker(health.NewProviderChecker("plex", func(c context.Context) error {
			_, err := plexClient.ListLibraries(c)
			return err
		}))
	}
	if sonarrClient != nil {
		healthMgr.RegisterChecker(health.NewProviderChecker("sonarr", func(c context.Context) error {
			_, err := sonarrClient.ListSeries(c)
			return err
		}))
	}

	srv := api.New(api.Deps{
		Config:   cfg,
		Store:    st,
		Sessions: sessions,
		Settings: acc,
		Queue:    q,
		Scan:     orchestrator,
		Backup:   backupScheduler,
		Health:   healthMgr,
		ArrJobs:  processor,
		Plex:     plexClient,
		Sonarr:   sonarrClient,
		Radarr:   radarrClient,
		Lidarr:   lidarrClient,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orchestrator.RunMediaScanScheduler(gctx)
	})
	g.Go(func() error {
		return processor.Run(gctx)
	})
	g.Go(func() error {
		return backupScheduler.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}
