// Package config reads the application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the optional settings.
const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultRedirectURI = "http://127.0.0.1:8080/callback"
	DefaultFrontendURL = "http://localhost:5173"
	DefaultSessionTTL  = 60 * time.Minute
)

// Config holds everything the application needs to run.
type Config struct {
	Addr string

	// DatabaseURL is optional; when empty the application runs on the
	// in-memory store.
	DatabaseURL string

	SpotifyID          string
	SpotifySecret      string
	SpotifyRedirectURI string

	LastfmAPIKey string

	SessionSecret string
	SessionTTL    time.Duration

	// FrontendURL is where the browser is sent after a completed login.
	FrontendURL string
}

// Load reads configuration from a .env file, if present, and then from the
// environment. Missing required settings are reported as errors.
func Load() (*Config, error) {
	// A missing .env file is fine; deployments set real environment
	// variables instead.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               envOr("ADDR", DefaultAddr),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SpotifyID:          os.Getenv("SPOTIFY_ID"),
		SpotifySecret:      os.Getenv("SPOTIFY_SECRET"),
		SpotifyRedirectURI: envOr("SPOTIFY_REDIRECT_URI", DefaultRedirectURI),
		LastfmAPIKey:       os.Getenv("LASTFM_API_KEY"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionTTL:         DefaultSessionTTL,
		FrontendURL:        envOr("FRONTEND_URL", DefaultFrontendURL),
	}

	for _, required := range []struct{ name, value string }{
		{"SPOTIFY_ID", cfg.SpotifyID},
		{"SPOTIFY_SECRET", cfg.SpotifySecret},
		{"LASTFM_API_KEY", cfg.LastfmAPIKey},
		{"SESSION_SECRET", cfg.SessionSecret},
	} {
		if required.value == "" {
			return nil, fmt.Errorf("missing %s environment variable", required.name)
		}
	}

	if raw := os.Getenv("SESSION_TTL_MIN"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL_MIN value %q", raw)
		}
		cfg.SessionTTL = time.Duration(minutes) * time.Minute
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}
