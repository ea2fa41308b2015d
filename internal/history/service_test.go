package history

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

type staticTokens struct{}

func (staticTokens) EnsureAccessToken(context.Context, string) (string, error) {
	return "token", nil
}

type fakePlays struct {
	observations []spotify.PlayObservation
}

func (f *fakePlays) RecentlyPlayed(_ context.Context, _ string, limit int) ([]spotify.PlayObservation, error) {
	if limit < len(f.observations) {
		return f.observations[:limit], nil
	}
	return f.observations, nil
}

type fakeMetadata struct {
	calls   int32
	tracks  map[string]*lastfm.Track
	missing map[string]bool
}

func (f *fakeMetadata) TrackInfo(_ context.Context, artist, title string) (*lastfm.Track, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.missing[title] {
		return nil, lastfm.ErrTrackNotFound
	}
	track, ok := f.tracks[title]
	if !ok {
		return nil, lastfm.ErrTrackNotFound
	}
	return track, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func observation(trackID, title, artist string, playedAtMs int64) spotify.PlayObservation {
	return spotify.PlayObservation{
		TrackID:    trackID,
		Title:      title,
		Artist:     artist,
		Album:      "Album",
		DurationMs: 200000,
		PlayedAtMs: playedAtMs,
	}
}

func lastfmTrack(mbid, title, artist string) *lastfm.Track {
	return &lastfm.Track{
		MBID:   mbid,
		Title:  title,
		Artist: lastfm.Artist{Name: artist},
		Album:  lastfm.Album{Title: "Album"},
		Genres: []string{"rock"},
	}
}

func TestService_ReconcileRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("second pass returns the same plays without refetching", func(t *testing.T) {
		store := db.NewMemory()
		plays := &fakePlays{observations: []spotify.PlayObservation{
			observation("t1", "Song One", "Band A", 2000),
			observation("t2", "Song Two", "Band B", 1000),
		}}
		metadata := &fakeMetadata{tracks: map[string]*lastfm.Track{
			"Song One": lastfmTrack("m1", "Song One", "Band A"),
			"Song Two": lastfmTrack("m2", "Song Two", "Band B"),
		}}
		service := New(staticTokens{}, plays, metadata, store.TrackCache(), store.History(), testLogger())

		first, err := service.ReconcileRecent(ctx, "user-1", 10)
		if err != nil {
			t.Fatalf("ReconcileRecent() error = %v", err)
		}
		if len(first) != 2 {
			t.Fatalf("first pass returned %d plays, want 2", len(first))
		}
		// Provider order is preserved.
		if first[0].Track.SpotifyID != "t1" || first[1].Track.SpotifyID != "t2" {
			t.Errorf("order = [%s %s], want [t1 t2]", first[0].Track.SpotifyID, first[1].Track.SpotifyID)
		}
		if first[0].Track.MBID != "m1" || len(first[0].Track.Genres) != 1 {
			t.Errorf("first[0].Track = %+v, want enriched metadata", first[0].Track)
		}

		second, err := service.ReconcileRecent(ctx, "user-1", 10)
		if err != nil {
			t.Fatalf("second ReconcileRecent() error = %v", err)
		}
		// Already-recorded plays still come back; the result reflects what
		// was observed now.
		if len(second) != 2 {
			t.Errorf("second pass returned %d plays, want 2", len(second))
		}
		if n := atomic.LoadInt32(&metadata.calls); n != 2 {
			t.Errorf("metadata fetches = %d, want 2 (cache must absorb the second pass)", n)
		}

		ledger, err := store.History().ListDescending(ctx, "user-1", 10, nil)
		if err != nil {
			t.Fatalf("ListDescending() error = %v", err)
		}
		if len(ledger) != 2 {
			t.Errorf("ledger holds %d entries, want 2", len(ledger))
		}
	})

	t.Run("enrichment miss skips the play entirely", func(t *testing.T) {
		store := db.NewMemory()
		plays := &fakePlays{observations: []spotify.PlayObservation{
			observation("t1", "Song One", "Band A", 3000),
			observation("t2", "Unknown Song", "Band B", 2000),
			observation("t3", "Song Three", "Band C", 1000),
		}}
		metadata := &fakeMetadata{
			tracks: map[string]*lastfm.Track{
				"Song One":   lastfmTrack("m1", "Song One", "Band A"),
				"Song Three": lastfmTrack("m3", "Song Three", "Band C"),
			},
			missing: map[string]bool{"Unknown Song": true},
		}
		service := New(staticTokens{}, plays, metadata, store.TrackCache(), store.History(), testLogger())

		result, err := service.ReconcileRecent(ctx, "user-1", 10)
		if err != nil {
			t.Fatalf("ReconcileRecent() error = %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("got %d plays, want 2", len(result))
		}
		if result[0].Track.SpotifyID != "t1" || result[1].Track.SpotifyID != "t3" {
			t.Errorf("order = [%s %s], want [t1 t3]", result[0].Track.SpotifyID, result[1].Track.SpotifyID)
		}

		// The skipped play must not reach the ledger either.
		exists, err := store.History().Exists(ctx, "user-1", "t2", 2000)
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if exists {
			t.Error("unresolved play was recorded in the ledger")
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		store := db.NewMemory()
		service := New(staticTokens{}, &fakePlays{}, &fakeMetadata{}, store.TrackCache(), store.History(), testLogger())
		if _, err := service.ReconcileRecent(ctx, "user-1", 0); err == nil {
			t.Error("ReconcileRecent(0) error = nil, want error")
		}
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemory()
	service := New(staticTokens{}, &fakePlays{}, &fakeMetadata{}, store.TrackCache(), store.History(), testLogger())

	plays, err := service.List(ctx, "user-1", 10, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if plays == nil {
		t.Error("List() = nil, want empty slice")
	}
	if len(plays) != 0 {
		t.Errorf("List() on empty ledger returned %d plays", len(plays))
	}
}
