// Package arrjobs implements ArrJobProcessor (spec.md §4.6): a periodic
// drain of internal Rename Job rows, dispatching the appropriate provider's
// RenameFiles command.
package arrjobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/librarrarian/dashboard/internal/log"
	"github.com/librarrarian/dashboard/internal/metrics"
	"github.com/librarrarian/dashboard/internal/providers/lidarr"
	"github.com/librarrarian/dashboard/internal/providers/radarr"
	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/scan"
	"github.com/librarrarian/dashboard/internal/store"
)

// DrainInterval is the fixed period between drain passes (spec.md §4.6
// "every 60 s").
const DrainInterval = 60 * time.Second

// Processor drains Rename Job / pending rows and dispatches the matching
// provider command.
type Processor struct {
	store  *store.Store
	sonarr *sonarr.Client
	radarr *radarr.Client
	lidarr *lidarr.Client
}

func New(st *store.Store, sonarrClient *sonarr.Client, radarrClient *radarr.Client, lidarrClient *lidarr.Client) *Processor {
	return &Processor{store: st, sonarr: sonarrClient, radarr: radarrClient, lidarr: lidarrClient}
}

// Run loops at DrainInterval, draining every eligible Rename Job on each
// tick, until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	logger := log.WithComponent("arr-job-processor")
	ticker := time.NewTicker(DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("rename job drain pass failed")
			}
		}
	}
}

// DrainNow runs a single drain pass immediately, outside the ticker. Used
// by the operator API so a queued rename does not have to wait out the
// interval.
func (p *Processor) DrainNow(ctx context.Context) error {
	return p.drainOnce(ctx)
}

// drainOnce claims and processes every currently-eligible Rename Job,
// stopping when the queue reports empty.
func (p *Processor) drainOnce(ctx context.Context) error {
	for {
		job, err := p.store.ClaimOneInternalJob(ctx)
		if err != nil {
			if errors.Is(err, store.ErrQueueEmpty) {
				return nil
			}
			return err
		}
		p.process(ctx, job)
	}
}

// process dispatches the provider call for one claimed job and records its
// outcome (spec.md §4.6: success → completed, any failure → failed).
func (p *Processor) process(ctx context.Context, job store.Job) {
	logger := log.WithComponent("arr-job-processor").With().Int64("job_id", job.ID).Logger()

	var meta scan.RenameMetadata
	if err := json.Unmarshal(job.Metadata, &meta); err != nil {
		p.fail(ctx, job.ID, fmt.Sprintf("invalid rename metadata: %v", err))
		return
	}

	var callErr error
	switch meta.Source {
	case "sonarr":
		if p.sonarr == nil || meta.SeriesID == 0 || meta.EpisodeFileID == 0 {
			callErr = fmt.Errorf("missing sonarr identity fields in metadata")
		} else {
			callErr = p.sonarr.RenameFiles(ctx, meta.SeriesID, []int64{meta.EpisodeFileID})
		}
	case "radarr":
		if p.radarr == nil || meta.MovieID == 0 || meta.MovieFileID == 0 {
			callErr = fmt.Errorf("missing radarr identity fields in metadata")
		} else {
			callErr = p.radarr.RenameFiles(ctx, meta.MovieID, []int64{meta.MovieFileID})
		}
	case "lidarr":
		if p.lidarr == nil || meta.ArtistID == 0 || meta.TrackFileID == 0 {
			callErr = fmt.Errorf("missing lidarr identity fields in metadata")
		} else {
			callErr = p.lidarr.RenameFiles(ctx, meta.ArtistID, []int64{meta.TrackFileID})
		}
	default:
		callErr = fmt.Errorf("unknown rename source %q", meta.Source)
	}

	if callErr != nil {
		logger.Warn().Err(callErr).Msg("rename job failed")
		metrics.RecordArrJobOutcome(meta.Source, "failed")
		p.fail(ctx, job.ID, callErr.Error())
		return
	}

	if err := p.store.CompleteInternalJob(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("failed to mark rename job completed")
		return
	}
	metrics.RecordArrJobOutcome(meta.Source, "completed")
}

func (p *Processor) fail(ctx context.Context, jobID int64, reason string) {
	if err := p.store.FailJob(ctx, jobID, reason, ""); err != nil {
		failLogger := log.WithComponent("arr-job-processor")
		failLogger.Error().Err(err).Int64("job_id", jobID).Msg("failed to record rename job failure")
	}
}
