// Package songlink is a minimal client for the song.link (Odesli)
// cross-platform link API. One unauthenticated GET per lookup.
package songlink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.song.link/v1-alpha.1"

// Song is the resolved metadata and per-platform links for one track.
type Song struct {
	Title      string
	Artist     string
	ArtworkURL string
	PageURL    string
	AppleMusic string
	YouTube    string
	Spotify    string
}

// Client calls the song.link API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a song.link client.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type linksResponse struct {
	EntityUniqueID     string `json:"entityUniqueId"`
	PageURL            string `json:"pageUrl"`
	EntitiesByUniqueID map[string]struct {
		Title        string `json:"title"`
		ArtistName   string `json:"artistName"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"entitiesByUniqueId"`
	LinksByPlatform map[string]struct {
		URL string `json:"url"`
	} `json:"linksByPlatform"`
}

// Lookup resolves a track URL from any supported platform into unified
// metadata and platform links.
func (c *Client) Lookup(ctx context.Context, trackURL string) (*Song, error) {
	endpoint := fmt.Sprintf("%s/links?url=%s&songIfSingle=true", c.baseURL, url.QueryEscape(trackURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build songlink request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("songlink request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("songlink returned status %d", resp.StatusCode)
	}

	var body linksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode songlink response: %w", err)
	}

	song := &Song{PageURL: body.PageURL}
	if entity, ok := body.EntitiesByUniqueID[body.EntityUniqueID]; ok {
		song.Title = entity.Title
		song.Artist = entity.ArtistName
		song.ArtworkURL = entity.ThumbnailURL
	}
	if link, ok := body.LinksByPlatform["appleMusic"]; ok {
		song.AppleMusic = link.URL
	}
	if link, ok := body.LinksByPlatform["youtube"]; ok {
		song.YouTube = link.URL
	}
	if link, ok := body.LinksByPlatform["spotify"]; ok {
		song.Spotify = link.URL
	}

	if song.Title == "" {
		return nil, fmt.Errorf("songlink response has no track metadata")
	}
	return song, nil
}
