package spotify

import (
	"context"
	"fmt"
)

const maxTracksPerRequest = 100

// CreatePlaylist creates a playlist owned by the given user and returns the
// provider-assigned playlist id.
func (c *Client) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (string, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist playlistResponse
	if err := c.post(ctx, accessToken, "/users/"+userID+"/playlists", body, &playlist); err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}
	if playlist.ID == "" {
		return "", fmt.Errorf("%w: playlist response missing id", ErrMalformedResponse)
	}
	return playlist.ID, nil
}

// AddTracksToPlaylist appends tracks to a playlist. The provider accepts at
// most 100 uris per request, so large sets are sent in batches.
func (c *Client) AddTracksToPlaylist(ctx context.Context, accessToken, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	uris := make([]string, len(trackIDs))
	for i, id := range trackIDs {
		uris[i] = "spotify:track:" + id
	}

	for i := 0; i < len(uris); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(uris))
		body := map[string]any{
			"uris":     uris[i:end],
			"position": i,
		}
		if err := c.post(ctx, accessToken, "/playlists/"+playlistID+"/tracks", body, nil); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, err)
		}
	}
	return nil
}
