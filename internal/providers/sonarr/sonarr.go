// Package sonarr is a thin client over Sonarr's v3 API, scoped to the calls
// ScanOrchestrator, ArrJobProcessor and PostCompleteHook need (spec.md §4.5,
// §4.6, §4.7, §6).
package sonarr

import (
	"context"
	"fmt"
	"time"

	"github.com/librarrarian/dashboard/internal/providers/shared"
)

type Client struct {
	http *shared.Client
}

func New(baseURL, apiKey string) *Client {
	c := shared.NewClient(shared.Config{
		Name:          "sonarr",
		BaseURL:       baseURL,
		Timeout:       20 * time.Second,
		RatePerSecond: 4,
		Burst:         2,
	})
	c.SetHeader("X-Api-Key", apiKey)
	return &Client{http: c}
}

// Series is the subset of Sonarr's series resource the scanners need.
type Series struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Path             string `json:"path"`
	QualityProfileID int64  `json:"qualityProfileId"`
}

// RenameCandidate is one entry from Sonarr's /rename endpoint.
type RenameCandidate struct {
	SeriesID     int64  `json:"seriesId"`
	EpisodeFileID int64 `json:"episodeFileId"`
	ExistingPath string `json:"existingPath"`
	NewPath      string `json:"newPath"`
}

// EpisodeFile is the subset needed for quality-mismatch detection.
type EpisodeFile struct {
	ID                  int64  `json:"id"`
	SeriesID            int64  `json:"seriesId"`
	Path                string `json:"path"`
	QualityCutoffNotMet bool   `json:"qualityCutoffNotMet"`
	Quality             struct {
		Quality struct {
			Name string `json:"name"`
		} `json:"quality"`
	} `json:"quality"`
}

// QualityProfile is Sonarr's target-quality definition.
type QualityProfile struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Cutoff   int64  `json:"cutoff"`
}

func (c *Client) ListSeries(ctx context.Context) ([]Series, error) {
	var out []Series
	if err := c.http.Do(ctx, "GET", "/api/v3/series", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerRescan issues a RescanSeries command and returns immediately;
// callers apply the settle delay themselves (spec.md §4.5).
func (c *Client) TriggerRescan(ctx context.Context, seriesID int64) error {
	return c.http.Do(ctx, "POST", "/api/v3/command", map[string]any{
		"name":     "RescanSeries",
		"seriesId": seriesID,
	}, nil)
}

// RenameList returns the pending rename candidates for a series.
func (c *Client) RenameList(ctx context.Context, seriesID int64) ([]RenameCandidate, error) {
	var out []RenameCandidate
	path := fmt.Sprintf("/api/v3/rename?seriesId=%d", seriesID)
	if err := c.http.Do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameFiles submits the RenameFiles command for the given episode file
// ids (spec.md §4.6).
func (c *Client) RenameFiles(ctx context.Context, seriesID int64, episodeFileIDs []int64) error {
	return c.http.Do(ctx, "POST", "/api/v3/command", map[string]any{
		"name":     "RenameFiles",
		"seriesId": seriesID,
		"files":    episodeFileIDs,
	}, nil)
}

func (c *Client) ListQualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var out []QualityProfile
	if err := c.http.Do(ctx, "GET", "/api/v3/qualityprofile", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EpisodeFilesBySeries returns every episode file for a series, including
// its quality-cutoff status.
func (c *Client) EpisodeFilesBySeries(ctx context.Context, seriesID int64) ([]EpisodeFile, error) {
	var out []EpisodeFile
	path := fmt.Sprintf("/api/v3/episodefile?seriesId=%d", seriesID)
	if err := c.http.Do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindSeriesByPath locates the series owning a file path, for
// PostCompleteHook's lookup-then-rename flow.
func (c *Client) FindSeriesByPath(ctx context.Context, path string) (Series, bool, error) {
	all, err := c.ListSeries(ctx)
	if err != nil {
		return Series{}, false, err
	}
	for _, s := range all {
		if len(path) >= len(s.Path) && path[:len(s.Path)] == s.Path {
			return s, true, nil
		}
	}
	return Series{}, false, nil
}
