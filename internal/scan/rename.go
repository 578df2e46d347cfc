package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/librarrarian/dashboard/internal/providers/sonarr"
	"github.com/librarrarian/dashboard/internal/settings"
	"github.com/librarrarian/dashboard/internal/store"
)

// settleDelay is the fixed pause between triggering a provider rescan and
// reading its rename list (spec.md §4.5).
const settleDelay = 3 * time.Second

// RenameMetadata is stored on awaiting_approval Rename Job rows so
// ArrJobProcessor can reconstruct the provider call
// (spec.md §3 "rename jobs carry external IDs").
type RenameMetadata struct {
	Source        string `json:"source"`
	SeriesID      int64  `json:"seriesId,omitempty"`
	MovieID       int64  `json:"movieId,omitempty"`
	ArtistID      int64  `json:"artistId,omitempty"`
	EpisodeFileID int64  `json:"episodeFileId,omitempty"`
	MovieFileID   int64  `json:"movieFileId,omitempty"`
	TrackFileID   int64  `json:"trackFileId,omitempty"`
}

// SonarrRenameScan rescans every series and either queues an
// awaiting_approval Rename Job per candidate, or calls RenameFiles
// synchronously, per sonarr_send_to_queue (spec.md §4.5).
func (o *Orchestrator) SonarrRenameScan(ctx context.Context) error {
	if o.sonarr == nil {
		return fmt.Errorf("no Sonarr connection configured")
	}
	sendToQueue := o.settings.GetBool(ctx, settings.KeySonarrSendToQueue, true)

	return o.run(ctx, SourceSonarr, KindRename, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		series, err := o.sonarr.ListSeries(ctx)
		if err != nil {
			return err
		}
		for i, s := range series {
			if o.cancelled() {
				break
			}
			publish(i+1, s.Title, float64(i+1)/float64(max(len(series), 1))*100)

			if err := o.sonarr.TriggerRescan(ctx, s.ID); err != nil {
				continue // one series failing does not abort the scan
			}
			select {
			case <-time.After(settleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			candidates, err := o.sonarr.RenameList(ctx, s.ID)
			if err != nil {
				continue
			}
			for _, c := range candidates {
				meta := RenameMetadata{Source: "sonarr", SeriesID: c.SeriesID, EpisodeFileID: c.EpisodeFileID}
				if sendToQueue {
					if err := o.insertRenameJob(ctx, c.ExistingPath, meta, store.JobAwaitingApproval); err != nil {
						return err
					}
				} else if err := o.sonarr.RenameFiles(ctx, s.ID, []int64{c.EpisodeFileID}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RadarrRenameScan is SonarrRenameScan's Radarr analogue, keyed on movies
// (spec.md §4.5).
func (o *Orchestrator) RadarrRenameScan(ctx context.Context) error {
	if o.radarr == nil {
		return fmt.Errorf("no Radarr connection configured")
	}
	sendToQueue := o.settings.GetBool(ctx, settings.KeyRadarrSendToQueue, true)

	return o.run(ctx, SourceRadarr, KindRename, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		movies, err := o.radarr.ListMovies(ctx)
		if err != nil {
			return err
		}
		for i, m := range movies {
			if o.cancelled() {
				break
			}
			publish(i+1, m.Title, float64(i+1)/float64(max(len(movies), 1))*100)

			if err := o.radarr.TriggerRescan(ctx, m.ID); err != nil {
				continue
			}
			select {
			case <-time.After(settleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			candidates, err := o.radarr.RenameList(ctx, m.ID)
			if err != nil {
				continue
			}
			for _, c := range candidates {
				meta := RenameMetadata{Source: "radarr", MovieID: c.MovieID, MovieFileID: c.MovieFileID}
				if sendToQueue {
					if err := o.insertRenameJob(ctx, c.ExistingPath, meta, store.JobAwaitingApproval); err != nil {
						return err
					}
				} else if err := o.radarr.RenameFiles(ctx, m.ID, []int64{c.MovieFileID}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// LidarrRenameScan is SonarrRenameScan's Lidarr analogue, keyed on artists
// (spec.md §4.5).
func (o *Orchestrator) LidarrRenameScan(ctx context.Context) error {
	if o.lidarr == nil {
		return fmt.Errorf("no Lidarr connection configured")
	}
	sendToQueue := o.settings.GetBool(ctx, settings.KeyLidarrSendToQueue, true)

	return o.run(ctx, SourceLidarr, KindRename, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		artists, err := o.lidarr.ListArtists(ctx)
		if err != nil {
			return err
		}
		for i, a := range artists {
			if o.cancelled() {
				break
			}
			publish(i+1, a.Name, float64(i+1)/float64(max(len(artists), 1))*100)

			if err := o.lidarr.TriggerRescan(ctx, a.ID); err != nil {
				continue
			}
			select {
			case <-time.After(settleDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			candidates, err := o.lidarr.RenameList(ctx, a.ID)
			if err != nil {
				continue
			}
			for _, c := range candidates {
				meta := RenameMetadata{Source: "lidarr", ArtistID: c.ArtistID, TrackFileID: c.TrackFileID}
				if sendToQueue {
					if err := o.insertRenameJob(ctx, c.ExistingPath, meta, store.JobAwaitingApproval); err != nil {
						return err
					}
				} else if err := o.lidarr.RenameFiles(ctx, a.ID, []int64{c.TrackFileID}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (o *Orchestrator) insertRenameJob(ctx context.Context, filepath string, meta RenameMetadata, status store.JobStatus) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return o.store.InsertJob(ctx, filepath, store.JobRename, status, raw)
}

// QualityMismatchMetadata is stored on Quality Mismatch jobs: the file's
// current quality plus the target from the owning series' quality profile
// (spec.md §4.5 — "the mismatched file quality and the profile's target
// quality as metadata"). Operator-review-only; never auto-dispatched.
type QualityMismatchMetadata struct {
	Source         string `json:"source"`
	SeriesID       int64  `json:"seriesId"`
	EpisodeFileID  int64  `json:"episodeFileId"`
	CurrentQuality string `json:"currentQuality"`
	TargetProfile  string `json:"targetProfile,omitempty"`
	TargetCutoff   int64  `json:"targetCutoff,omitempty"`
}

// qualityMismatchMeta builds one Quality Mismatch job's metadata. profile is
// the zero value when the series references a profile the profile list does
// not contain; the target fields are then omitted rather than fabricated.
func qualityMismatchMeta(seriesID int64, f sonarr.EpisodeFile, profile sonarr.QualityProfile) ([]byte, error) {
	return json.Marshal(QualityMismatchMetadata{
		Source:         "sonarr",
		SeriesID:       seriesID,
		EpisodeFileID:  f.ID,
		CurrentQuality: f.Quality.Quality.Name,
		TargetProfile:  profile.Name,
		TargetCutoff:   profile.Cutoff,
	})
}

// SonarrQualityScan creates a Quality Mismatch job for every episode file
// whose quality has not met its profile's cutoff (spec.md §4.5).
func (o *Orchestrator) SonarrQualityScan(ctx context.Context) error {
	if o.sonarr == nil {
		return fmt.Errorf("no Sonarr connection configured")
	}

	return o.run(ctx, SourceSonarr, KindQuality, 0, func(ctx context.Context, publish func(int, string, float64)) error {
		profiles, err := o.sonarr.ListQualityProfiles(ctx)
		if err != nil {
			return err
		}
		profileByID := make(map[int64]sonarr.QualityProfile, len(profiles))
		for _, p := range profiles {
			profileByID[p.ID] = p
		}

		series, err := o.sonarr.ListSeries(ctx)
		if err != nil {
			return err
		}
		for i, s := range series {
			if o.cancelled() {
				break
			}
			publish(i+1, s.Title, float64(i+1)/float64(max(len(series), 1))*100)

			files, err := o.sonarr.EpisodeFilesBySeries(ctx, s.ID)
			if err != nil {
				continue
			}
			for _, f := range files {
				if !f.QualityCutoffNotMet {
					continue
				}
				raw, err := qualityMismatchMeta(s.ID, f, profileByID[s.QualityProfileID])
				if err != nil {
					return err
				}
				path := f.Path
				if path == "" {
					path = fmt.Sprintf("%s#%d", s.Path, f.ID)
				}
				if err := o.store.InsertJob(ctx, path, store.JobQualityMismatch, store.JobPending, raw); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
