package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_ID", "client-id")
	t.Setenv("SPOTIFY_SECRET", "client-secret")
	t.Setenv("LASTFM_API_KEY", "lastfm-key")
	t.Setenv("SESSION_SECRET", "session-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.SessionTTL != DefaultSessionTTL {
		t.Errorf("SessionTTL = %v, want %v", cfg.SessionTTL, DefaultSessionTTL)
	}
	if cfg.FrontendURL != DefaultFrontendURL {
		t.Errorf("FrontendURL = %q, want %q", cfg.FrontendURL, DefaultFrontendURL)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("LASTFM_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want missing-variable error")
	}
	if !strings.Contains(err.Error(), "LASTFM_API_KEY") {
		t.Errorf("Load() error = %v, want it to name LASTFM_API_KEY", err)
	}
}

func TestLoad_SessionTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL_MIN", "120")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL)
	}

	t.Setenv("SESSION_TTL_MIN", "zero")
	if _, err := Load(); err == nil {
		t.Error("Load() with bad SESSION_TTL_MIN: error = nil, want error")
	}
}
