// Package settings wraps the store's duck-typed string settings dictionary
// in typed accessors, applying defaults at the boundary rather than storing
// them (spec.md §9 design note: "callers are responsible for not reading
// settings in tight inner loops" — each accessor hits the database once).
package settings

import (
	"context"
	"strconv"
	"time"

	"github.com/librarrarian/dashboard/internal/store"
)

// Keys used across the system. Centralized here so providers, the scan
// orchestrator, and the API handlers agree on spelling.
const (
	KeyPauseJobDistribution = "pause_job_distribution"
	KeyArrSSLVerify         = "arr_ssl_verify"
	KeyScanIntervalMinutes  = "rescan_delay_minutes"
	KeyBackupRetentionDays  = "backup_retention_days"
	KeyDevMode              = "dev_mode"

	KeyMediaScannerType    = "media_scanner_type"
	KeyInternalScanPaths   = "internal_scan_paths"
	KeyAllowHEVC           = "allow_hevc"
	KeyAllowAV1            = "allow_av1_reencode"
	KeyAllowVP9            = "allow_vp9_reencode"

	KeyPlexBaseURL  = "plex_base_url"
	KeyPlexToken    = "plex_token"
	KeySonarrBaseURL = "sonarr_base_url"
	KeySonarrAPIKey  = "sonarr_api_key"
	KeySonarrSendToQueue         = "sonarr_send_to_queue"
	KeySonarrAutoRenameAfterJob  = "sonarr_auto_rename_after_transcode"
	KeyRadarrBaseURL = "radarr_base_url"
	KeyRadarrAPIKey  = "radarr_api_key"
	KeyRadarrSendToQueue        = "radarr_send_to_queue"
	KeyRadarrAutoRenameAfterJob = "radarr_auto_rename_after_transcode"
	KeyLidarrBaseURL = "lidarr_base_url"
	KeyLidarrAPIKey  = "lidarr_api_key"
	KeyLidarrSendToQueue = "lidarr_send_to_queue"

	KeyCleanupPlexLibraries = "cleanup_plex_libraries"
	KeyCleanupPathRewriteFrom = "cleanup_path_rewrite_from"
	KeyCleanupPathRewriteTo   = "cleanup_path_rewrite_to"
)

// Accessor reads typed settings from a Store, falling back to a caller
// supplied default when unset or unparseable.
type Accessor struct {
	store *store.Store
}

func New(st *store.Store) *Accessor {
	return &Accessor{store: st}
}

// GetBool returns the boolean value of key, or def if unset or not a valid
// bool (a corrupted setting must never fail an operation, only fall back).
func (a *Accessor) GetBool(ctx context.Context, key string, def bool) bool {
	raw, ok, err := a.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// GetInt returns the integer value of key, or def if unset or not a valid
// integer.
func (a *Accessor) GetInt(ctx context.Context, key string, def int) int {
	raw, ok, err := a.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// GetDurationMinutes returns key interpreted as a whole number of minutes,
// or def if unset or invalid.
func (a *Accessor) GetDurationMinutes(ctx context.Context, key string, def time.Duration) time.Duration {
	raw, ok, err := a.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return time.Duration(minutes) * time.Minute
}

// GetString returns the raw string value of key, or def if unset.
func (a *Accessor) GetString(ctx context.Context, key, def string) string {
	raw, ok, err := a.store.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	return raw
}

// PutBool stores a boolean as "true"/"false".
func (a *Accessor) PutBool(ctx context.Context, key string, v bool) error {
	return a.store.PutSetting(ctx, key, strconv.FormatBool(v))
}

// PutInt stores an integer as its decimal string.
func (a *Accessor) PutInt(ctx context.Context, key string, v int) error {
	return a.store.PutSetting(ctx, key, strconv.Itoa(v))
}

// PutString stores a raw string value.
func (a *Accessor) PutString(ctx context.Context, key, v string) error {
	return a.store.PutSetting(ctx, key, v)
}

// All returns the full key-value snapshot, unconverted (spec.md §6 GET
// /api/settings returns the dictionary as-is for display).
func (a *Accessor) All(ctx context.Context) (map[string]string, error) {
	return a.store.AllSettings(ctx)
}
