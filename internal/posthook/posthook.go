// Package posthook implements PostCompleteHook (spec.md §4.7): best-effort
// follow-up actions fired after a successful transcode completion. All steps
// are best-effort; failures are logged, never propagated back to the job.
package posthook

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/providers/plex"
	"github.com/librarrarian/dashboard/internal/providers/radarr"
	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/settings"
)

// settleDelay mirrors the scan package's fixed pause between a rescan
// command and reading the provider's rename list (spec.md §4.7 "~3 s").
const settleDelay = 3 * time.Second

// Hook fires Plex refresh and conditional Sonarr/Radarr rescan-then-rename
// after a transcode completes.
type Hook struct {
	settings *settings.Accessor
	plex     *plex.Client
	sonarr   *sonarr.Client
	radarr   *radarr.Client
}

func New(acc *settings.Accessor, plexClient *plex.Client, sonarrClient *sonarr.Client, radarrClient *radarr.Client) *Hook {
	return &Hook{settings: acc, plex: plexClient, sonarr: sonarrClient, radarr: radarrClient}
}

// OnTranscodeCompleted runs the full best-effort sequence for a completed
// transcode of filepath (spec.md §4.7). It never returns an error; all
// failures are logged only.
func (h *Hook) OnTranscodeCompleted(ctx context.Context, filepath string) {
	logger := log.WithComponent("post-complete-hook").With().Str("filepath", filepath).Logger()

	h.refreshPlex(ctx, logger)

	if h.sonarr != nil && h.settings.GetBool(ctx, settings.KeySonarrAutoRenameAfterJob, false) {
		h.renameViaSonarr(ctx, filepath, logger)
	}
	if h.radarr != nil && h.settings.GetBool(ctx, settings.KeyRadarrAutoRenameAfterJob, false) {
		h.renameViaRadarr(ctx, filepath, logger)
	}
}

// refreshPlex triggers a fire-and-forget library refresh across every known
// library; errors are logged, not fatal (spec.md §4.7 step 1).
func (h *Hook) refreshPlex(ctx context.Context, logger zerolog.Logger) {
	if h.plex == nil {
		return
	}
	libraries, err := h.plex.ListLibraries(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("plex library list failed")
		return
	}
	for _, lib := range libraries {
		if err := h.plex.RefreshLibrary(ctx, lib.Key); err != nil {
			logger.Warn().Err(err).Str("library", lib.Title).Msg("plex refresh failed")
		}
	}
}

// renameViaSonarr looks the file up in Sonarr, rescans its series, waits the
// settle delay, and renames it if it still appears in the rename list
// (spec.md §4.7 steps a-d).
func (h *Hook) renameViaSonarr(ctx context.Context, filepath string, logger zerolog.Logger) {
	series, found, err := h.sonarr.FindSeriesByPath(ctx, filepath)
	if err != nil || !found {
		return
	}
	if err := h.sonarr.TriggerRescan(ctx, series.ID); err != nil {
		logger.Warn().Err(err).Msg("sonarr rescan failed")
		return
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}
	candidates, err := h.sonarr.RenameList(ctx, series.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("sonarr rename list failed")
		return
	}
	for _, c := range candidates {
		if c.ExistingPath == filepath {
			if err := h.sonarr.RenameFiles(ctx, series.ID, []int64{c.EpisodeFileID}); err != nil {
				logger.Warn().Err(err).Msg("sonarr rename failed")
			}
			return
		}
	}
}

// renameViaRadarr is renameViaSonarr's Radarr analogue.
func (h *Hook) renameViaRadarr(ctx context.Context, filepath string, logger zerolog.Logger) {
	movie, found, err := h.radarr.FindMovieByPath(ctx, filepath)
	if err != nil || !found {
		return
	}
	if err := h.radarr.TriggerRescan(ctx, movie.ID); err != nil {
		logger.Warn().Err(err).Msg("radarr rescan failed")
		return
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return
	}
	candidates, err := h.radarr.RenameList(ctx, movie.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("radarr rename list failed")
		return
	}
	for _, c := range candidates {
		if c.ExistingPath == filepath {
			if err := h.radarr.RenameFiles(ctx, movie.ID, []int64{c.MovieFileID}); err != nil {
				logger.Warn().Err(err).Msg("radarr rename failed")
			}
			return
		}
	}
}
