// Package scan implements ScanOrchestrator (spec.md §4.5): a set of
// mutually-exclusive scanners that discover transcode candidates and
// internal rename/quality-mismatch work, publishing a single progress
// snapshot while they run.
package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/metrics"
	"github.com/librarrarian/dashboard/internal/providers/lidarr"
	"github.com/librarrarian/dashboard/internal/providers/plex"
	"github.com/librarrarian/dashboard/internal/providers/radarr"
	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// Source identifies which media source a scan concerns.
type Source string

const (
	SourcePlex     Source = "plex"
	SourceInternal Source = "internal"
	SourceSonarr   Source = "sonarr"
	SourceRadarr   Source = "radarr"
	SourceLidarr   Source = "lidarr"
)

// Kind identifies which scan operation is running within a source.
type Kind string

const (
	KindMedia   Kind = "media"
	KindRename  Kind = "rename"
	KindQuality Kind = "quality"
)

// Progress is the single read-mostly snapshot published by whichever
// scanner currently holds the exclusion lock (spec.md §4.5, §5).
type Progress struct {
	IsRunning   bool
	ScanSource  Source
	ScanType    Kind
	CurrentStep string
	TotalSteps  int
	Step        int
	ProgressPct float64
}

// busyErr signals a Busy scan: a business-layer condition, not a storage
// failure, so it is kept distinct from the store's sentinel errors.
type busyErr struct{}

func (busyErr) Error() string { return "a scan is already running" }

// ErrScanBusy is returned by every scan method when the exclusion lock is
// already held.
var ErrScanBusy error = busyErr{}

// Orchestrator owns the scan exclusion lock and the progress snapshot.
// Exactly one scan of any kind runs at a time, process-wide.
type Orchestrator struct {
	store    *store.Store
	settings *settings.Accessor

	plex   *plex.Client
	sonarr *sonarr.Client
	radarr *radarr.Client
	lidarr *lidarr.Client

	exclusion *semaphore.Weighted

	mu       sync.RWMutex
	progress Progress

	cancel atomic.Bool
}

// Clients bundles the optional external provider clients. A nil client
// disables the scans that depend on it.
type Clients struct {
	Plex   *plex.Client
	Sonarr *sonarr.Client
	Radarr *radarr.Client
	Lidarr *lidarr.Client
}

func New(st *store.Store, acc *settings.Accessor, clients Clients) *Orchestrator {
	return &Orchestrator{
		store:     st,
		settings:  acc,
		plex:      clients.Plex,
		sonarr:    clients.Sonarr,
		radarr:    clients.Radarr,
		lidarr:    clients.Lidarr,
		exclusion: semaphore.NewWeighted(1),
	}
}

// Snapshot returns a copy of the current progress state. Many concurrent
// readers are safe; a single scanner goroutine is the only writer.
func (o *Orchestrator) Snapshot() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

// Cancel requests cooperative cancellation of the running scan, if any. The
// scan observes this flag at per-item loop boundaries (spec.md §4.5, §5).
func (o *Orchestrator) Cancel() {
	o.cancel.Store(true)
}

func (o *Orchestrator) cancelled() bool {
	return o.cancel.Load()
}

// run is the common envelope every scan kind goes through: acquire the
// exclusion lock (non-blocking — a second concurrent attempt is Busy),
// publish the initial snapshot, run fn, then release and reset.
func (o *Orchestrator) run(ctx context.Context, src Source, kind Kind, totalSteps int, fn func(ctx context.Context, publish func(step int, current string, pct float64)) error) error {
	if !o.exclusion.TryAcquire(1) {
		return ErrScanBusy
	}
	o.cancel.Store(false)

	o.mu.Lock()
	o.progress = Progress{IsRunning: true, ScanSource: src, ScanType: kind, TotalSteps: totalSteps}
	o.mu.Unlock()

	logger := log.WithComponent("scan").With().Str("source", string(src)).Str("type", string(kind)).Logger()
	logger.Info().Msg("scan started")
	start := time.Now()

	publish := func(step int, current string, pct float64) {
		o.mu.Lock()
		o.progress.Step = step
		o.progress.CurrentStep = current
		o.progress.ProgressPct = pct
		o.mu.Unlock()
	}

	err := fn(ctx, publish)

	o.mu.Lock()
	if o.cancelled() {
		o.progress.CurrentStep = "Scan cancelled by user."
	} else if err != nil {
		o.progress.CurrentStep = "Scan failed: " + err.Error()
	} else {
		o.progress.CurrentStep = "Scan complete."
	}
	o.progress.IsRunning = false
	o.mu.Unlock()

	o.exclusion.Release(1)
	elapsed := time.Since(start)
	metrics.ObserveScanDuration(string(src), string(kind), elapsed.Seconds())
	logger.Info().Err(err).Dur("elapsed", elapsed).Msg("scan finished")
	return err
}
