// Package plex is a thin client over a Plex Media Server, scoped to library
// enumeration, media reload (for codec/path discovery) and library refresh
// (spec.md §4.5 media scan, §4.7 PostCompleteHook).
package plex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/librarrarian/dashboard/internal/providers/shared"
)

type Client struct {
	http  *shared.Client
	token string
}

func New(baseURL, token string) *Client {
	c := shared.NewClient(shared.Config{
		Name:          "plex",
		BaseURL:       baseURL,
		Timeout:       15 * time.Second,
		RatePerSecond: 5,
		Burst:         3,
	})
	return &Client{http: c, token: token}
}

// Library is one Plex library section.
type Library struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Media is one playable item within a library, reloaded to expose its
// primary codec and on-disk path.
type Media struct {
	RatingKey string `json:"ratingKey"`
	Codec     string `json:"videoCodec"`
	FilePath  string `json:"file"`
}

func (c *Client) withToken(path string) string {
	sep := "?"
	if strings.ContainsRune(path, '?') {
		sep = "&"
	}
	return fmt.Sprintf("%s%sX-Plex-Token=%s", path, sep, c.token)
}

func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var resp struct {
		MediaContainer struct {
			Directory []Library `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := c.http.Do(ctx, "GET", c.withToken("/library/sections"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// LibraryMedia enumerates every item in a library section, already reloaded
// with codec and path details (spec.md §4.5 "Plex: enumerate libraries; for
// each video, reload to obtain its primary media codec and on-disk path").
func (c *Client) LibraryMedia(ctx context.Context, libraryKey string) ([]Media, error) {
	var resp struct {
		MediaContainer struct {
			Metadata []Media `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	path := fmt.Sprintf("/library/sections/%s/all", libraryKey)
	if err := c.http.Do(ctx, "GET", c.withToken(path), nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// RefreshLibrary fires a library update request; PostCompleteHook treats
// failures as fire-and-forget (spec.md §4.7).
func (c *Client) RefreshLibrary(ctx context.Context, libraryKey string) error {
	path := fmt.Sprintf("/library/sections/%s/refresh", libraryKey)
	return c.http.Do(ctx, "GET", c.withToken(path), nil, nil)
}
