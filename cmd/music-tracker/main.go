// Command music-tracker runs the music tracking API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/parkerlane/music-tracker/internal/auth"
	"github.com/parkerlane/music-tracker/internal/config"
	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/spotify"
	"github.com/parkerlane/music-tracker/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}

	spotifyClient := spotify.NewClient(cfg.SpotifyID, cfg.SpotifySecret, cfg.SpotifyRedirectURI)
	lastfmClient := lastfm.NewClient(cfg.LastfmAPIKey)
	issuer := auth.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL)

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr,
		Store:       store,
		Spotify:     spotifyClient,
		Lastfm:      lastfmClient,
		Issuer:      issuer,
		Logger:      logger,
		FrontendURL: cfg.FrontendURL,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// openStore connects to Postgres when a database URL is configured and runs
// pending migrations; otherwise it falls back to the in-memory store.
func openStore(cfg *config.Config, logger *log.Logger) (db.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data will not survive restarts")
		return db.NewMemory(), nil
	}

	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return database, nil
}
