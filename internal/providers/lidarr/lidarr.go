// Package lidarr is a thin client over Lidarr's v1 API, keyed on artists
// (spec.md §4.5, §4.6: "Lidarr (API v1)").
package lidarr

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
		Name:          "lidarr",
		BaseURL:       baseURL,
		Timeout:       20 * time.Second,
		RatePerSecond: 4,
		Burst:         2,
	})
	c.SetHeader("X-Api-Key", apiKey)
	return &Client{http: c}
}

type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"artistName"`
	Path string `json:"path"`
}

type RenameCandidate struct {
	ArtistID    int64  `json:"artistId"`
	TrackFileID int64  `json:"trackFileId"`
	ExistingPath string `json:"existingPath"`
	NewPath      string `json:"newPath"`
}

func (c *Client) ListArtists(ctx context.Context) ([]Artist, error) {
	var out []Artist
	if err := c.http.Do(ctx, "GET", "/api/v1/artist", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TriggerRescan(ctx context.Context, artistID int64) error {
	return c.http.Do(ctx, "POST", "/api/v1/command", map[string]any{
		"name":     "RescanArtist",
		"artistId": artistID,
	}, nil)
}

func (c *Client) RenameList(ctx context.Context, artistID int64) ([]RenameCandidate, error) {
	var out []RenameCandidate
	path := fmt.Sprintf("/api/v1/rename?artistId=%d", artistID)
	if err := c.http.Do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameFiles submits the RenameFiles command for the given track file ids
// (spec.md §4.6).
func (c *Client) RenameFiles(ctx context.Context, artistID int64, trackFileIDs []int64) error {
	return c.http.Do(ctx, "POST", "/api/v1/command", map[string]any{
		"name":     "RenameFiles",
		"artistId": artistID,
		"files":    trackFileIDs,
	}, nil)
}
