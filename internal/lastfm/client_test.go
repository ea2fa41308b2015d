package lastfm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_TrackInfo(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("method") != "track.getInfo" {
				t.Errorf("method = %q, want track.getInfo", q.Get("method"))
			}
			if q.Get("artist") != "Band A" || q.Get("track") != "Song One" {
				t.Errorf("artist/track = %q/%q", q.Get("artist"), q.Get("track"))
			}
			if q.Get("api_key") != "key-1" {
				t.Errorf("api_key = %q, want key-1", q.Get("api_key"))
			}
			fmt.Fprint(w, `{"track":{
				"mbid":"mbid-1","name":"Song One",
				"artist":{"mbid":"artist-mbid","name":"Band A"},
				"album":{"mbid":"album-mbid","title":"Album A","image":[
					{"#text":"http://img/small","size":"small"},
					{"#text":"","size":"large"}
				]},
				"toptags":{"tag":[{"name":"rock"},{"name":"indie"}]}
			}}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		track, err := client.TrackInfo(context.Background(), "Band A", "Song One")
		if err != nil {
			t.Fatalf("TrackInfo() error = %v", err)
		}
		if track.MBID != "mbid-1" || track.Title != "Song One" {
			t.Errorf("track = %+v, want mbid-1/Song One", track)
		}
		if track.Artist.Name != "Band A" {
			t.Errorf("Artist.Name = %q, want Band A", track.Artist.Name)
		}
		// The image with an empty URL is filtered out.
		if len(track.Album.Images) != 1 || track.Album.Images[0].URL != "http://img/small" {
			t.Errorf("Album.Images = %+v, want only the small image", track.Album.Images)
		}
		if len(track.Genres) != 2 || track.Genres[0] != "rock" {
			t.Errorf("Genres = %v, want [rock indie]", track.Genres)
		}
	})

	t.Run("sparse response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"track":{"name":"Obscure Song"}}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		track, err := client.TrackInfo(context.Background(), "Nobody", "Obscure Song")
		if err != nil {
			t.Fatalf("TrackInfo() error = %v", err)
		}
		if track.Title != "Obscure Song" {
			t.Errorf("Title = %q, want Obscure Song", track.Title)
		}
		if track.Genres == nil || len(track.Genres) != 0 {
			t.Errorf("Genres = %#v, want empty non-nil slice", track.Genres)
		}
	})

	t.Run("unknown track", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":6,"message":"Track not found"}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		if _, err := client.TrackInfo(context.Background(), "x", "y"); !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("TrackInfo() error = %v, want ErrTrackNotFound", err)
		}
	})

	t.Run("rejected api key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":10,"message":"Invalid API key"}`)
		}))
		defer server.Close()

		client := NewClient("bad-key", WithBaseURL(server.URL))
		if _, err := client.TrackInfo(context.Background(), "x", "y"); !errors.Is(err, ErrInvalidAPIKey) {
			t.Errorf("TrackInfo() error = %v, want ErrInvalidAPIKey", err)
		}
	})
}

func TestClient_SimilarTracks(t *testing.T) {
	t.Run("by artist and title", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("method") != "track.getsimilar" {
				t.Errorf("method = %q, want track.getsimilar", q.Get("method"))
			}
			if q.Get("artist") != "Band A" || q.Get("track") != "Song One" {
				t.Errorf("artist/track = %q/%q", q.Get("artist"), q.Get("track"))
			}
			if q.Get("limit") != "5" {
				t.Errorf("limit = %q, want 5", q.Get("limit"))
			}
			fmt.Fprint(w, `{"similartracks":{"track":[
				{"mbid":"m1","name":"Track One","match":"0.95","duration":"210000",
				 "artist":{"name":"Band B"},
				 "image":[{"#text":"http://img/1","size":"medium"}]},
				{"mbid":"m2","name":"Track Two","match":"0.5","duration":"180000",
				 "artist":{"name":"Band C"}}
			]}}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		tracks, err := client.SimilarTracks(context.Background(), SimilarParams{
			Artist: "Band A", Title: "Song One", Limit: 5,
		})
		if err != nil {
			t.Fatalf("SimilarTracks() error = %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("got %d tracks, want 2", len(tracks))
		}
		if tracks[0].Match != 0.95 || tracks[0].DurationMs != 210000 {
			t.Errorf("tracks[0] = %+v, want match 0.95 duration 210000", tracks[0])
		}
		if tracks[1].Artist.Name != "Band C" {
			t.Errorf("tracks[1].Artist.Name = %q, want Band C", tracks[1].Artist.Name)
		}
	})

	t.Run("by mbid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("mbid") != "seed-mbid" {
				t.Errorf("mbid = %q, want seed-mbid", q.Get("mbid"))
			}
			if q.Get("artist") != "" || q.Get("track") != "" {
				t.Error("artist/track set alongside mbid")
			}
			fmt.Fprint(w, `{"similartracks":{"track":[]}}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		tracks, err := client.SimilarTracks(context.Background(), SimilarParams{MBID: "seed-mbid"})
		if err != nil {
			t.Fatalf("SimilarTracks() error = %v", err)
		}
		if len(tracks) != 0 {
			t.Errorf("got %d tracks, want 0", len(tracks))
		}
	})

	t.Run("unknown seed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":6,"message":"Track not found"}`)
		}))
		defer server.Close()

		client := NewClient("key-1", WithBaseURL(server.URL))
		if _, err := client.SimilarTracks(context.Background(), SimilarParams{MBID: "bogus"}); !errors.Is(err, ErrTrackNotFound) {
			t.Errorf("SimilarTracks() error = %v, want ErrTrackNotFound", err)
		}
	})
}
