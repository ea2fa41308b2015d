// Package similar builds track recommendations by crossing the metadata
// provider's similarity listing with the streaming provider's catalog.
package similar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

// SimilarityFetcher reads the metadata provider's similar-tracks listing.
type SimilarityFetcher interface {
	SimilarTracks(ctx context.Context, p lastfm.SimilarParams) ([]lastfm.SimilarTrack, error)
}

// CatalogSearcher resolves an artist and title to a streaming catalog entry.
type CatalogSearcher interface {
	SearchTrack(ctx context.Context, accessToken, artist, title string) (*spotify.TrackResult, error)
}

// TokenSource yields a valid access token for a user.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context, userID string) (string, error)
}

// Recommendation is a similar track resolved against the streaming catalog.
type Recommendation struct {
	SpotifyID  string         `json:"spotifyId"`
	MBID       string         `json:"mbid"`
	Title      string         `json:"title"`
	Artist     string         `json:"artist"`
	Match      float64        `json:"match"`
	DurationMs int            `json:"duration"`
	Images     []lastfm.Image `json:"images"`
}

// Service answers similar-track queries.
type Service struct {
	tokens     TokenSource
	similarity SimilarityFetcher
	catalog    CatalogSearcher
	logger     *log.Logger
}

// New creates a similar-tracks service.
func New(tokens TokenSource, similarity SimilarityFetcher, catalog CatalogSearcher, logger *log.Logger) *Service {
	return &Service{tokens: tokens, similarity: similarity, catalog: catalog, logger: logger}
}

// Similar returns tracks similar to the given seed, each resolved to a
// streaming catalog id. Similar tracks with no catalog match are dropped,
// so the result may be shorter than the metadata provider's listing.
func (s *Service) Similar(ctx context.Context, userID string, p lastfm.SimilarParams) ([]Recommendation, error) {
	accessToken, err := s.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.similarity.SimilarTracks(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("fetching similar tracks: %w", err)
	}

	// One catalog search per candidate, in parallel. The indexed slice
	// keeps the provider's similarity order through the fan-out.
	results := make([]*Recommendation, len(candidates))
	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			match, err := s.catalog.SearchTrack(ctx, accessToken, candidate.Artist.Name, candidate.Title)
			if errors.Is(err, spotify.ErrNoMatch) {
				return
			}
			if err != nil {
				s.logger.Warn("catalog search failed",
					"artist", candidate.Artist.Name, "title", candidate.Title, "err", err)
				return
			}
			results[i] = &Recommendation{
				SpotifyID:  match.ID,
				MBID:       candidate.MBID,
				Title:      candidate.Title,
				Artist:     candidate.Artist.Name,
				Match:      candidate.Match,
				DurationMs: candidate.DurationMs,
				Images:     candidate.Images,
			}
		}()
	}
	wg.Wait()

	recommendations := make([]Recommendation, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			recommendations = append(recommendations, *r)
		}
	}
	return recommendations, nil
}
