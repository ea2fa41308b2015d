package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_AuthURL(t *testing.T) {
	client := NewClient("client-id", "secret", "http://127.0.0.1:8080/callback")

	u := client.AuthURL("some-state")
	for _, want := range []string{
		"client_id=client-id",
		"state=some-state",
		"user-read-recently-played",
		"response_type=code",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthURL() = %q, missing %q", u, want)
		}
	}
}

func TestClient_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotForm string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			gotForm = string(body)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600,"scope":"user-read-email"}`)
		}))
		defer server.Close()

		client := NewClient("client-id", "secret", "http://cb", WithTokenURL(server.URL))
		token, err := client.Refresh(context.Background(), "old-refresh")
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if token.AccessToken != "new-access" {
			t.Errorf("AccessToken = %q, want %q", token.AccessToken, "new-access")
		}
		if token.ExpiresIn != 3600 {
			t.Errorf("ExpiresIn = %d, want 3600", token.ExpiresIn)
		}
		// The response omitted refresh_token; the field stays empty here
		// and the caller decides what to do with it.
		if token.RefreshToken != "" {
			t.Errorf("RefreshToken = %q, want empty", token.RefreshToken)
		}

		for _, want := range []string{"grant_type=refresh_token", "refresh_token=old-refresh", "client_id=client-id"} {
			if !strings.Contains(gotForm, want) {
				t.Errorf("refresh form = %q, missing %q", gotForm, want)
			}
		}
	})

	t.Run("provider rejects the grant", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
		}))
		defer server.Close()

		client := NewClient("client-id", "secret", "http://cb", WithTokenURL(server.URL))
		_, err := client.Refresh(context.Background(), "revoked")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Refresh() error = %v, want APIError", err)
		}
		if apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
		}
	})

	t.Run("missing access token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"token_type":"Bearer"}`)
		}))
		defer server.Close()

		client := NewClient("client-id", "secret", "http://cb", WithTokenURL(server.URL))
		if _, err := client.Refresh(context.Background(), "r"); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("Refresh() error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestClient_CurrentUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
				t.Errorf("Authorization = %q, want Bearer token-1", got)
			}
			fmt.Fprint(w, `{"id":"user-1","display_name":"Parker","email":"p@example.com","images":[{"url":"http://img","height":64,"width":64}]}`)
		}))
		defer server.Close()

		client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))
		profile, err := client.CurrentUser(context.Background(), "token-1")
		if err != nil {
			t.Fatalf("CurrentUser() error = %v", err)
		}
		if profile.ID != "user-1" || profile.DisplayName != "Parker" {
			t.Errorf("profile = %+v, want user-1/Parker", profile)
		}
		if len(profile.Images) != 1 || profile.Images[0].Height == nil || *profile.Images[0].Height != 64 {
			t.Errorf("images = %+v, want one 64px image", profile.Images)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"display_name":"Parker"}`)
		}))
		defer server.Close()

		client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))
		if _, err := client.CurrentUser(context.Background(), "t"); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("CurrentUser() error = %v, want ErrMalformedResponse", err)
		}
	})
}

func TestClient_RecentlyPlayed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		fmt.Fprint(w, `{"items":[
			{"track":{"id":"t1","name":"Song One","duration_ms":200000,
				"artists":[{"name":"Band A"}],"album":{"name":"Album A"}},
			 "played_at":"2026-03-01T12:00:00Z"},
			{"track":{"id":"","name":"broken"},"played_at":"2026-03-01T11:00:00Z"},
			{"track":{"id":"t2","name":"Song Two","duration_ms":180000,
				"artists":[{"name":"Band B"}],"album":{"name":"Album B"}},
			 "played_at":"2026-03-01T10:00:00Z"}
		]}`)
	}))
	defer server.Close()

	client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))
	plays, err := client.RecentlyPlayed(context.Background(), "token", 2)
	if err != nil {
		t.Fatalf("RecentlyPlayed() error = %v", err)
	}

	// The item without a track id is dropped.
	if len(plays) != 2 {
		t.Fatalf("got %d plays, want 2", len(plays))
	}
	if plays[0].TrackID != "t1" || plays[0].Artist != "Band A" {
		t.Errorf("plays[0] = %+v, want t1 by Band A", plays[0])
	}
	wantMs := int64(1772366400000) // 2026-03-01T12:00:00Z
	if plays[0].PlayedAtMs != wantMs {
		t.Errorf("PlayedAtMs = %d, want %d", plays[0].PlayedAtMs, wantMs)
	}
}

func TestClient_SearchTrack(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if got := q.Get("q"); got != "track:Song One artist:Band A" {
				t.Errorf("q = %q", got)
			}
			if got := q.Get("limit"); got != "1" {
				t.Errorf("limit = %q, want 1", got)
			}
			fmt.Fprint(w, `{"tracks":{"items":[{"id":"t1","name":"Song One","duration_ms":200000,"artists":[{"name":"Band A"}],"album":{"name":"Album A"}}]}}`)
		}))
		defer server.Close()

		client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))
		result, err := client.SearchTrack(context.Background(), "token", "Band A", "Song One")
		if err != nil {
			t.Fatalf("SearchTrack() error = %v", err)
		}
		if result.ID != "t1" || result.Artist != "Band A" {
			t.Errorf("result = %+v, want t1 by Band A", result)
		}
	})

	t.Run("no match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"tracks":{"items":[]}}`)
		}))
		defer server.Close()

		client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))
		if _, err := client.SearchTrack(context.Background(), "token", "Nobody", "Nothing"); !errors.Is(err, ErrNoMatch) {
			t.Errorf("SearchTrack() error = %v, want ErrNoMatch", err)
		}
	})
}

func TestClient_CreatePlaylistAndAddTracks(t *testing.T) {
	var createBody, addBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/user-1/playlists":
			json.NewDecoder(r.Body).Decode(&createBody)
			fmt.Fprint(w, `{"id":"playlist-1"}`)
		case "/playlists/playlist-1/tracks":
			json.NewDecoder(r.Body).Decode(&addBody)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"snapshot_id":"snap"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient("id", "secret", "http://cb", WithAPIURL(server.URL))

	playlistID, err := client.CreatePlaylist(context.Background(), "token", "user-1", "My Mix", "generated", false)
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if playlistID != "playlist-1" {
		t.Errorf("playlistID = %q, want playlist-1", playlistID)
	}
	if createBody["name"] != "My Mix" || createBody["public"] != false {
		t.Errorf("create body = %+v", createBody)
	}

	if err := client.AddTracksToPlaylist(context.Background(), "token", "playlist-1", []string{"t1", "t2"}); err != nil {
		t.Fatalf("AddTracksToPlaylist() error = %v", err)
	}
	uris, ok := addBody["uris"].([]any)
	if !ok || len(uris) != 2 {
		t.Fatalf("add body uris = %+v, want 2 entries", addBody["uris"])
	}
	if uris[0] != "spotify:track:t1" || uris[1] != "spotify:track:t2" {
		t.Errorf("uris = %+v, want spotify:track prefixed ids", uris)
	}
}
