// Package web is the HTTP facade: routing, session middleware and the JSON
// handlers over the auth, history and similar services.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parkerlane/music-tracker/internal/auth"
	"github.com/parkerlane/music-tracker/internal/db"
	"github.com/parkerlane/music-tracker/internal/history"
	"github.com/parkerlane/music-tracker/internal/lastfm"
	"github.com/parkerlane/music-tracker/internal/similar"
	"github.com/parkerlane/music-tracker/internal/spotify"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	Store       db.Store
	Spotify     *spotify.Client
	Lastfm      *lastfm.Client
	Issuer      *auth.SessionIssuer
	Logger      *log.Logger
	FrontendURL string
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	issuer   *auth.SessionIssuer
	logger   *log.Logger
}

// NewServer wires the services together and builds the router.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Spotify == nil || cfg.Lastfm == nil || cfg.Issuer == nil {
		return nil, fmt.Errorf("incomplete server configuration")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	authManager := auth.NewManager(cfg.Store.Users(), cfg.Spotify, cfg.Logger)
	historyService := history.New(authManager, cfg.Spotify, cfg.Lastfm,
		cfg.Store.TrackCache(), cfg.Store.History(), cfg.Logger)
	similarService := similar.New(authManager, cfg.Lastfm, cfg.Spotify, cfg.Logger)

	handlers := NewHandlers(authManager, cfg.Issuer, cfg.Store.Users(),
		cfg.Spotify, historyService, similarService, cfg.Logger, cfg.FrontendURL)

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: handlers,
		issuer:   cfg.Issuer,
		logger:   cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	// Auth routes
	s.router.Get("/login", s.handlers.Login)
	s.router.Get("/callback", s.handlers.Callback)
	s.router.Get("/auth-status", s.handlers.AuthStatus)
	s.router.Post("/logout", s.handlers.Logout)

	// Everything else needs a session
	s.router.Group(func(r chi.Router) {
		r.Use(requireSession(s.issuer))
		r.Get("/user-info", s.handlers.UserInfo)
		r.Get("/recent", s.handlers.Recent)
		r.Get("/get-listening-history", s.handlers.ListeningHistory)
		r.Get("/get-similar", s.handlers.Similar)
		r.Post("/generate-spotify-playlist", s.handlers.GeneratePlaylist)
	})
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
