// Package control serves a local HTTP API for driving a running session,
// e.g. from a browser page or a hotkey daemon.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"

	"clipdeck/internal/app"
	"clipdeck/internal/downloader"
	"clipdeck/internal/downloads"
	"clipdeck/internal/player"
	"clipdeck/pkg/models"
)

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
)

// Session is the part of app.App the API drives
type Session interface {
	Snapshot() (app.Snapshot, error)
	Select(id models.AssetID) error
	TogglePlay() error
	Seek(dir player.Direction) error
	ToggleMute() error
	Download() error
}

// Server represents the control HTTP server
type Server struct {
	port     int
	session  Session
	dl       *downloader.Downloader
	store    *downloads.Store
	logger   *slog.Logger
	router   *chi.Mux
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	running  bool
	mu       sync.RWMutex
}

// NewServer creates a control server on 127.0.0.1:port. dl may be nil, in
// which case the downloads routes are not mounted.
func NewServer(port int, session Session, dl *downloader.Downloader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:    port,
		session: session,
		dl:      dl,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	if dl != nil {
		s.store = dl.Store()
	}

	s.setupRoutes()

	s.handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(s.router)

	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/media", s.handleMedia)

		r.Post("/select/{id}", s.handleSelect)
		r.Post("/play-pause", s.handlePlayPause)
		r.Post("/seek", s.handleSeek)
		r.Post("/mute", s.handleMute)
		r.Post("/download", s.handleDownload)

		if s.store != nil {
			r.Get("/downloads", s.handleListDownloads)
			r.Get("/downloads/status/{name}", s.handleDownloadStatus)
			r.Delete("/downloads/{name}", s.handleDeleteDownload)
		}
	})

	// Saved files
	if s.store != nil {
		fileServer := http.StripPrefix("/downloads/", http.FileServer(http.Dir(s.store.Dir())))
		s.router.Handle("/downloads/*", fileServer)
	}
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.GetAddr())
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	httpServer := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.server = httpServer
	s.running = true

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", "error", err)
		}
	}()

	s.logger.Info("control API listening", "addr", listener.Addr().String())

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrServerNotRunning
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.running = false
	s.server = nil
	s.listener = nil

	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetAddr returns the configured address
func (s *Server) GetAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// GetActualAddr returns the listening address (useful when port is 0)
func (s *Server) GetActualAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.GetAddr()
}
