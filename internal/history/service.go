// Package history reconciles freshly observed plays from the streaming
// provider against the local ledger: it deduplicates, enriches unseen tracks
// through the metadata cache, and records new entries.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

// DefaultConcurrency bounds the parallel enrichment fetches in one pass.
const DefaultConcurrency = 5

// TokenSource yields a valid access token for a user, refreshing when
// needed.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context, userID string) (string, error)
}

// PlaysFetcher reads the streaming provider's recently-played feed.
type PlaysFetcher interface {
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]spotify.PlayObservation, error)
}

// MetadataFetcher looks up track metadata at the metadata provider.
type MetadataFetcher interface {
	TrackInfo(ctx context.Context, artist, title string) (*lastfm.Track, error)
}

// Service is the listening-history reconciler.
type Service struct {
	tokens      TokenSource
	plays       PlaysFetcher
	metadata    MetadataFetcher
	cache       db.TrackCacheStore
	ledger      db.HistoryStore
	logger      *log.Logger
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets the number of concurrent per-play enrichment tasks.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a reconciler.
func New(tokens TokenSource, plays PlaysFetcher, metadata MetadataFetcher, cache db.TrackCacheStore, ledger db.HistoryStore, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		tokens:      tokens,
		plays:       plays,
		metadata:    metadata,
		cache:       cache,
		ledger:      ledger,
		logger:      logger,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileRecent fetches up to limit recent plays, records unseen ones in
// the ledger and returns the enriched plays in provider order. The returned
// list reflects what was observed now, whether or not an entry was newly
// recorded. Plays the metadata provider cannot resolve are skipped; partial
// results are normal, not an error.
func (s *Service) ReconcileRecent(ctx context.Context, userID string, limit int) ([]db.PlayedTrack, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	accessToken, err := s.tokens.EnsureAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	observations, err := s.plays.RecentlyPlayed(ctx, accessToken, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching recent plays: %w", err)
	}
	if len(observations) == 0 {
		return []db.PlayedTrack{}, nil
	}

	// Enrichment for independent plays runs concurrently; each play's own
	// cache-miss, fetch, cache-write, ledger-write sequence stays ordered.
	results := make([]*db.PlayedTrack, len(observations))

	type workItem struct {
		index int
		obs   spotify.PlayObservation
	}
	workCh := make(chan workItem, len(observations))
	for i, obs := range observations {
		workCh <- workItem{index: i, obs: obs}
	}
	close(workCh)

	var wg sync.WaitGroup
	for range s.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workCh {
				play, err := s.reconcileOne(ctx, userID, work.obs)
				if err != nil {
					s.logger.Warn("reconciling play failed",
						"user", userID, "track", work.obs.TrackID, "err", err)
					continue
				}
				results[work.index] = play
			}
		}()
	}
	wg.Wait()

	plays := make([]db.PlayedTrack, 0, len(observations))
	for _, play := range results {
		if play != nil {
			plays = append(plays, *play)
		}
	}
	return plays, nil
}

// reconcileOne enriches a single observation and records it in the ledger.
// A nil play with nil error means an enrichment miss: the play is skipped.
func (s *Service) reconcileOne(ctx context.Context, userID string, obs spotify.PlayObservation) (*db.PlayedTrack, error) {
	meta, err := s.lookupMetadata(ctx, obs)
	if errors.Is(err, lastfm.ErrTrackNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry := db.HistoryEntry{
		UserID:     userID,
		TrackID:    obs.TrackID,
		PlayedAtMs: obs.PlayedAtMs,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording play: %w", err)
	}

	return &db.PlayedTrack{Track: *meta, PlayedAtMs: obs.PlayedAtMs}, nil
}

// lookupMetadata serves metadata from the cache, falling back to the
// metadata provider on a miss. The provider lookup is by artist and title;
// the result is cached under the streaming provider's track id so later
// lookups for the same track hit.
func (s *Service) lookupMetadata(ctx context.Context, obs spotify.PlayObservation) (*db.TrackMetadata, error) {
	cached, err := s.cache.Get(ctx, obs.TrackID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("reading track cache: %w", err)
	}

	track, err := s.metadata.TrackInfo(ctx, obs.Artist, obs.Title)
	if err != nil {
		return nil, err
	}

	meta := &db.TrackMetadata{
		SpotifyID:  obs.TrackID,
		MBID:       track.MBID,
		Title:      track.Title,
		DurationMs: obs.DurationMs,
		Artist:     db.ArtistRef(track.Artist),
		Album: db.AlbumRef{
			MBID:   track.Album.MBID,
			Title:  track.Album.Title,
			Images: convertImages(track.Album.Images),
		},
		Genres: track.Genres,
	}
	if err := s.cache.Put(ctx, meta); err != nil {
		return nil, fmt.Errorf("writing track cache: %w", err)
	}
	return meta, nil
}

// List reads the ledger newest-first with an optional played-at cursor.
func (s *Service) List(ctx context.Context, userID string, limit int, before *int64) ([]db.PlayedTrack, error) {
	plays, err := s.ledger.ListDescending(ctx, userID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	if plays == nil {
		plays = []db.PlayedTrack{}
	}
	return plays, nil
}

func convertImages(images []lastfm.Image) []db.CoverImage {
	converted := make([]db.CoverImage, 0, len(images))
	for _, img := range images {
		converted = append(converted, db.CoverImage{URL: img.URL, Size: img.Size})
	}
	return converted
}
