// Package server provides the HTTP API for historias.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/historias/internal/archive"
	"github.com/hyperjump/historias/internal/config"
	"github.com/hyperjump/historias/internal/remote"
	"github.com/hyperjump/historias/internal/search"
	"github.com/hyperjump/historias/internal/session"
	"github.com/hyperjump/historias/internal/workflow"
)

// userHeader names the caller when the API sits behind an authenticating proxy.
const userHeader = "X-User-ID"

// maxUploadBytes bounds multipart request bodies (images and audio).
const maxUploadBytes = 20 << 20

// Server is the HTTP server for the historias API.
type Server struct {
	config   *config.Config
	workflow *workflow.Service
	archive  *archive.Archive
	search   *search.Engine
	remote   *remote.Client
	sessions *session.Store
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server. search and remote may be nil; the routes that
// need them then answer 501.
func NewServer(
	cfg *config.Config,
	wf *workflow.Service,
	arch *archive.Archive,
	engine *search.Engine,
	rc *remote.Client,
	sessions *session.Store,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config:   cfg,
		workflow: wf,
		archive:  arch,
		search:   engine,
		remote:   rc,
		sessions: sessions,
		logger:   logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.config.LLM.TimeoutSeconds+30) * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/generate", s.handleGenerate)
			r.Put("/story", s.handleEditStory)
			r.Post("/approve", s.handleApprove)
			r.Post("/save", s.handleSave)
			r.Post("/template", s.handleTemplate)
		})

		r.Get("/archive", s.handleArchiveList)
		r.Get("/archive/search", s.handleArchiveSearch)
		r.Get("/archive/{key}", s.handleArchiveGet)
		r.Delete("/archive/{key}", s.handleArchiveDelete)

		r.Get("/stories", s.handleStoriesList)
		r.Get("/stories/{id}", s.handleStoryGet)
		r.Delete("/stories/{id}", s.handleStoryDelete)

		r.Post("/transcribe", s.handleTranscribe)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// userID returns the caller's user id, falling back to the configured one.
func (s *Server) userID(r *http.Request) string {
	if u := r.Header.Get(userHeader); u != "" {
		return u
	}
	return s.config.Storage.UserID
}
