// Package api is the HTTP surface of dvl-api: it maps generate, refine and
// undo requests onto per-session orchestrators.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cns-iu/dvl-llm/history"
	"github.com/cns-iu/dvl-llm/llm"
	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/gorilla/mux"
)

var ErrSessionNotFound = errors.New("api: session not found")

// GeneratorFactory builds a generator for a request. model may be empty to
// use the configured default.
type GeneratorFactory func(ctx context.Context, model string) (llm.Generator, error)

// VersionStore is the persisted history the versions endpoint reads.
type VersionStore interface {
	Versions(ctx context.Context, sessionID string) ([]history.Version, error)
}

// Deps wires the server. Only NewGenerator and Executor are required.
type Deps struct {
	NewGenerator GeneratorFactory
	Executor     sandbox.Executor
	// Options apply to every new orchestrator (prompts, retries, remover).
	Options []orchestrator.Option
	// Listeners returns per-session listeners (history, events, mirror).
	Listeners func(sessionID string) []orchestrator.Listener
	Versions  VersionStore
	// ArtifactURL turns an artifact path into a shareable link.
	ArtifactURL   func(ctx context.Context, path string) (string, error)
	MaxSessions   int
	MaxConcurrent int
}

type Server struct {
	deps      Deps
	router    *mux.Router
	sessions  *sessionRegistry
	semaphore chan struct{}
	newID     func() string
}

func NewServer(deps Deps) (*Server, error) {
	if deps.NewGenerator == nil || deps.Executor == nil {
		return nil, fmt.Errorf("api: generator factory and executor are required")
	}
	sessions, err := newSessionRegistry(deps.MaxSessions)
	if err != nil {
		return nil, err
	}
	maxConcurrent := deps.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s := &Server{
		deps:      deps,
		router:    mux.NewRouter(),
		sessions:  sessions,
		semaphore: make(chan struct{}, maxConcurrent),
		newID:     newSessionID,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/generate", s.handleGenerate).Methods("POST")
	s.router.HandleFunc("/api/refine", s.handleRefine).Methods("POST")
	s.router.HandleFunc("/api/undo", s.handleUndo).Methods("POST")
	s.router.HandleFunc("/api/sessions/{id}/versions", s.handleVersions).Methods("GET")
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 [API] Starting HTTP server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Printf("🛑 [API] Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// acquireSlot bounds the number of iterations running at once.
func (s *Server) acquireSlot() (func(), bool) {
	select {
	case s.semaphore <- struct{}{}:
		return func() { <-s.semaphore }, true
	default:
		return nil, false
	}
}

func (s *Server) newSession(ctx context.Context, id string, req GenerateRequest) (*session, error) {
	gen, err := s.deps.NewGenerator(ctx, req.Model)
	if err != nil {
		return nil, err
	}
	opts := append([]orchestrator.Option{}, s.deps.Options...)
	if req.Task != "" {
		opts = append(opts, orchestrator.WithTask(req.Task))
	}
	if s.deps.Listeners != nil {
		for _, l := range s.deps.Listeners(id) {
			opts = append(opts, orchestrator.WithListener(l))
		}
	}
	return &session{id: id, orch: orchestrator.New(gen, s.deps.Executor, opts...)}, nil
}

func (s *Server) artifactURL(ctx context.Context, out sandbox.Outcome) string {
	if s.deps.ArtifactURL == nil || !out.IsSuccess() {
		return ""
	}
	u, err := s.deps.ArtifactURL(ctx, out.OutputArtifactPath)
	if err != nil {
		log.Printf("⚠️ [API] Could not sign %s: %v", out.OutputArtifactPath, err)
		return ""
	}
	return u
}
