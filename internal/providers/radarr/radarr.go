// Package radarr is a thin client over Radarr's v3 API, keyed on movies
// rather than series (spec.md §4.5 "Radarr and Lidarr rename scans.
// Analogous to Sonarr-rename").
package radarr

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
		Name:          "radarr",
		BaseURL:       baseURL,
		Timeout:       20 * time.Second,
		RatePerSecond: 4,
		Burst:         2,
	})
	c.SetHeader("X-Api-Key", apiKey)
	return &Client{http: c}
}

type Movie struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

type RenameCandidate struct {
	MovieID     int64  `json:"movieId"`
	MovieFileID int64  `json:"movieFileId"`
	ExistingPath string `json:"existingPath"`
	NewPath      string `json:"newPath"`
}

func (c *Client) ListMovies(ctx context.Context) ([]Movie, error) {
	var out []Movie
	if err := c.http.Do(ctx, "GET", "/api/v3/movie", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TriggerRescan(ctx context.Context, movieID int64) error {
	return c.http.Do(ctx, "POST", "/api/v3/command", map[string]any{
		"name":    "RescanMovie",
		"movieId": movieID,
	}, nil)
}

func (c *Client) RenameList(ctx context.Context, movieID int64) ([]RenameCandidate, error) {
	var out []RenameCandidate
	path := fmt.Sprintf("/api/v3/rename?movieId=%d", movieID)
	if err := c.http.Do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameFiles submits the RenameFiles command for the given movie file ids
// (spec.md §4.6).
func (c *Client) RenameFiles(ctx context.Context, movieID int64, movieFileIDs []int64) error {
	return c.http.Do(ctx, "POST", "/api/v3/command", map[string]any{
		"name":    "RenameFiles",
		"movieId": movieID,
		"files":   movieFileIDs,
	}, nil)
}

// FindMovieByPath locates the movie owning a file path, for
// PostCompleteHook's lookup-then-rename flow.
func (c *Client) FindMovieByPath(ctx context.Context, path string) (Movie, bool, error) {
	all, err := c.ListMovies(ctx)
	if err != nil {
		return Movie{}, false, err
	}
	for _, m := range all {
		if len(path) >= len(m.Path) && path[:len(m.Path)] == m.Path {
			return m, true, nil
		}
	}
	return Movie{}, false, nil
}
