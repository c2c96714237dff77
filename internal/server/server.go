package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stwalsh4118/repolens/internal/git"
	"github.com/stwalsh4118/repolens/internal/logging"
)

const (
	// maxRequestBody caps JSON request bodies
	maxRequestBody = 1 << 20
	// writeWait bounds a single websocket write
	writeWait = 10 * time.Second
)

// Server exposes one engine over HTTP and WebSocket. Mutating endpoints are
// serialised per repository path.
type Server struct {
	engine *git.Engine
	logger logging.Logger
	mux    *http.ServeMux
	locks  *keyedMutex
	hub    *hub

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a server around engine
func NewServer(engine *git.Engine, logger logging.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &Server{
		engine:  engine,
		logger:  logger.With("component", "server"),
		mux:     http.NewServeMux(),
		locks:   newKeyedMutex(),
		hub:     newHub(),
		closing: make(chan struct{}),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/changes", s.handleChanges)
	s.mux.HandleFunc("GET /api/branches", s.handleBranches)
	s.mux.HandleFunc("GET /api/commits", s.handleCommits)
	s.mux.HandleFunc("GET /api/analysis", s.handleAnalysis)

	s.mux.HandleFunc("POST /api/push", s.handlePush)
	s.mux.HandleFunc("POST /api/push-upstream", s.handlePushUpstream)
	s.mux.HandleFunc("POST /api/pull-push", s.handlePullPush)
	s.mux.HandleFunc("POST /api/stage", s.handleStage)
	s.mux.HandleFunc("POST /api/unstage", s.handleUnstage)
	s.mux.HandleFunc("POST /api/commit", s.handleCommit)

	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// lockRepository serialises mutations per working tree, so subdirectories
// of one repository share a lock.
func (s *Server) lockRepository(repo git.Repository) func() {
	return s.locks.Lock(git.RepositoryRoot(repo.Path))
}

// Notify pushes a fresh snapshot of the repository at path to its
// WebSocket subscribers. It is a no-op when nobody is subscribed.
func (s *Server) Notify(ctx context.Context, path string) {
	if !s.hub.hasSubscribers(path) {
		return
	}
	repo, err := git.NewRepository(path)
	if err != nil {
		s.logger.Debug("notify for invalid path", "path", path, "error", err)
		return
	}
	snapshot := s.engine.Status(ctx, repo)
	if ctx.Err() != nil {
		return
	}
	dropped := s.hub.broadcast(repo.Path, statusMessage(repo.Path, snapshot))
	if dropped > 0 {
		s.logger.Debug("slow websocket subscribers skipped", "path", repo.Path, "dropped", dropped)
	}
}

// Close disconnects WebSocket clients. http.Server.Shutdown does not track
// hijacked connections, so callers invoke this alongside it.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
}
