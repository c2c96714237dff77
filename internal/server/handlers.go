package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stwalsh4118/repolens/internal/git"
)

// syncRequest is the body of the push endpoints
type syncRequest struct {
	Repo   string `json:"repo"`
	Remote string `json:"remote,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// pathsRequest is the body of stage and unstage
type pathsRequest struct {
	Repo  string   `json:"repo"`
	Paths []string `json:"paths,omitempty"`
}

type commitRequest struct {
	Repo    string `json:"repo"`
	Message string `json:"message"`
}

type commitResponse struct {
	Hash string `json:"hash"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Status(r.Context(), repo))
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	changes := s.engine.Probe.ListChanges(r.Context(), repo)
	if changes == nil {
		changes = []git.FileChangeEntry{}
	}
	s.writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	branches := s.engine.Probe.ListBranches(r.Context(), repo)
	if branches == nil {
		branches = []git.BranchInfo{}
	}
	s.writeJSON(w, http.StatusOK, branches)
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	opts, err := walkOptionsFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	commits, err := s.engine.Commits(r.Context(), repo, opts)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if commits == nil {
		commits = []git.CommitMetadata{}
	}
	s.writeJSON(w, http.StatusOK, commits)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	opts, err := walkOptionsFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	analysis, err := s.engine.Analyze(r.Context(), repo, opts)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	s.handleSync(w, r, s.engine.Sync.Push)
}

func (s *Server) handlePushUpstream(w http.ResponseWriter, r *http.Request) {
	s.handleSync(w, r, s.engine.Sync.PushWithUpstream)
}

func (s *Server) handlePullPush(w http.ResponseWriter, r *http.Request) {
	s.handleSync(w, r, s.engine.Sync.PullAndPush)
}

type syncFunc func(ctx context.Context, repo git.Repository, remote, branch string) git.SyncOutcome

// handleSync runs one sync operation under the repository lock. The outcome
// is always a definite result, so it is returned with 200 whatever its kind.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, op syncFunc) {
	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}
	repo, ok := s.repoFromBody(w, req.Repo)
	if !ok {
		return
	}

	unlock := s.lockRepository(repo)
	outcome := op(r.Context(), repo, req.Remote, req.Branch)
	unlock()

	s.logger.Info("sync finished", "path", repo.Path, "kind", outcome.Kind, "reason", outcome.Reason)
	s.Notify(r.Context(), repo.Path)
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req pathsRequest
	if !s.decode(w, r, &req) {
		return
	}
	repo, ok := s.repoFromBody(w, req.Repo)
	if !ok {
		return
	}

	unlock := s.lockRepository(repo)
	err := s.engine.Sync.Stage(r.Context(), repo, req.Paths)
	unlock()

	s.finishMutation(w, r, repo, err, nil)
}

func (s *Server) handleUnstage(w http.ResponseWriter, r *http.Request) {
	var req pathsRequest
	if !s.decode(w, r, &req) {
		return
	}
	repo, ok := s.repoFromBody(w, req.Repo)
	if !ok {
		return
	}

	unlock := s.lockRepository(repo)
	err := s.engine.Sync.Unstage(r.Context(), repo, req.Paths)
	unlock()

	s.finishMutation(w, r, repo, err, nil)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if !s.decode(w, r, &req) {
		return
	}
	repo, ok := s.repoFromBody(w, req.Repo)
	if !ok {
		return
	}

	unlock := s.lockRepository(repo)
	hash, err := s.engine.Sync.Commit(r.Context(), repo, req.Message)
	unlock()

	s.finishMutation(w, r, repo, err, commitResponse{Hash: hash})
}

// finishMutation reports a mutation result and refreshes subscribers
func (s *Server) finishMutation(w http.ResponseWriter, r *http.Request, repo git.Repository, err error, body any) {
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, git.ErrEmptyCommitMessage) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("mutation failed", "path", repo.Path, "endpoint", r.URL.Path, "error", err)
		s.writeError(w, status, err)
		return
	}
	s.Notify(r.Context(), repo.Path)
	if body == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repoFromQuery(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := &subscriber{send: make(chan Message, 16)}
	s.hub.add(repo.Path, sub)
	defer s.hub.remove(repo.Path, sub)
	s.logger.Debug("websocket client connected", "path", repo.Path)

	sub.send <- statusMessage(repo.Path, s.engine.Status(r.Context(), repo))

	// the read loop only detects disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			s.logger.Debug("websocket client disconnected", "path", repo.Path)
			return
		case <-s.closing:
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			return
		case msg := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", "path", repo.Path, "error", err)
				return
			}
		}
	}
}

func (s *Server) repoFromQuery(w http.ResponseWriter, r *http.Request) (git.Repository, bool) {
	return s.repoFromBody(w, r.URL.Query().Get("repo"))
}

func (s *Server) repoFromBody(w http.ResponseWriter, path string) (git.Repository, bool) {
	if strings.TrimSpace(path) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("repo parameter is required"))
		return git.Repository{}, false
	}
	repo, err := git.NewRepository(path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return git.Repository{}, false
	}
	return repo, true
}

func walkOptionsFromQuery(r *http.Request) (git.WalkOptions, error) {
	q := r.URL.Query()
	opts := git.WalkOptions{
		Since:  q.Get("since"),
		Until:  q.Get("until"),
		Author: q.Get("author"),
	}
	if raw := q.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid max %q", raw)
		}
		opts.MaxCount = n
	}
	return opts, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
