package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/stwalsh4118/repolens/internal/config"
	"github.com/stwalsh4118/repolens/internal/git"
	"github.com/stwalsh4118/repolens/internal/logging"
	"github.com/stwalsh4118/repolens/internal/server"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrAlreadyRun is returned when Run is called on a daemon that has already run
var ErrAlreadyRun = errors.New("daemon has already been run")

// Daemon runs the HTTP transport and keeps WebSocket subscribers current by
// watching or polling the configured repositories.
type Daemon struct {
	config  *config.Config
	logger  logging.Logger
	engine  *git.Engine
	server  *server.Server
	pidFile *PIDFile
	repos   []git.Repository

	ready chan struct{}
	mu    sync.Mutex
	addr  string
	ran   bool
}

// NewDaemon wires a daemon for repos
func NewDaemon(cfg *config.Config, engine *git.Engine, repos []git.Repository, logger logging.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	srv, err := server.NewServer(engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	pidFile, err := NewPIDFile(cfg.Storage.BasePath)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		config:  cfg,
		logger:  logger.With("component", "daemon"),
		engine:  engine,
		server:  srv,
		pidFile: pidFile,
		repos:   repos,
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the bound listen address, empty before Ready
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// the HTTP server down within shutdownTimeout and stops every watcher. A
// Daemon runs at most once.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.ran {
		d.mu.Unlock()
		return ErrAlreadyRun
	}
	d.ran = true
	d.mu.Unlock()

	ctx, stop := WithShutdownSignals(ctx)
	defer stop()

	state, err := Inspect(d.pidFile)
	if err != nil {
		return fmt.Errorf("failed to check server state: %w", err)
	}
	if state.Running && state.PID != os.Getpid() {
		return fmt.Errorf("server is already running (PID: %d)", state.PID)
	}

	listener, err := net.Listen("tcp", d.config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", d.config.Server.Address, err)
	}

	if err := d.pidFile.Write(os.Getpid()); err != nil {
		listener.Close()
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			d.logger.Error("failed to remove PID file", "error", err)
		}
	}()

	sourceCtx, cancelSources := context.WithCancel(ctx)
	var sources sync.WaitGroup
	stopSources := d.startChangeSources(sourceCtx, &sources)

	httpServer := &http.Server{
		Handler:           d.server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	d.mu.Lock()
	d.addr = listener.Addr().String()
	d.mu.Unlock()
	close(d.ready)
	d.logger.Info("server started", "address", d.Addr(), "pid", os.Getpid(), "repositories", len(d.repos), "watch_mode", d.config.Watch.Mode)

	var runErr error
	select {
	case <-ctx.Done():
		d.logger.Info("shutdown initiated")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.server.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("graceful shutdown timed out, closing connections", "error", err)
		_ = httpServer.Close()
	}

	cancelSources()
	stopSources()
	sources.Wait()

	d.logger.Info("shutdown completed")
	return runErr
}

// startChangeSources starts watchers or the poller and forwards their
// changes to the server. The returned function releases them.
func (d *Daemon) startChangeSources(ctx context.Context, wg *sync.WaitGroup) func() {
	if len(d.repos) == 0 {
		return func() {}
	}

	if d.config.Watch.Mode == config.WatchModePoll {
		return d.startPoller(ctx, wg)
	}
	return d.startWatchers(ctx, wg)
}

func (d *Daemon) startWatchers(ctx context.Context, wg *sync.WaitGroup) func() {
	debounce := time.Duration(d.config.Watch.DebounceMillis) * time.Millisecond
	var watchers []*git.RepoWatcher

	for _, repo := range d.repos {
		w, err := git.NewRepoWatcher(repo, debounce, d.logger)
		if err != nil {
			d.logger.Warn("failed to create watcher", "repository", repo.Path, "error", err)
			continue
		}
		if err := w.Start(); err != nil {
			d.logger.Warn("failed to start watcher", "repository", repo.Path, "error", err)
			continue
		}
		watchers = append(watchers, w)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range w.Events() {
				d.server.Notify(ctx, ev.Repository.Path)
			}
		}()
	}

	return func() {
		for _, w := range watchers {
			if err := w.Stop(); err != nil {
				d.logger.Warn("failed to stop watcher", "error", err)
			}
		}
	}
}

func (d *Daemon) startPoller(ctx context.Context, wg *sync.WaitGroup) func() {
	interval := time.Duration(d.config.Git.PollIntervalSeconds) * time.Second
	poller, err := git.NewStatusPoller(d.engine.Probe, interval, d.logger)
	if err != nil {
		d.logger.Warn("failed to create status poller", "error", err)
		return func() {}
	}
	if err := poller.Start(ctx, d.repos); err != nil {
		d.logger.Warn("failed to start status poller", "error", err)
		return func() {}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for change := range poller.Changes() {
			d.server.Notify(ctx, change.Repository.Path)
		}
	}()

	return func() {
		if err := poller.Stop(); err != nil {
			d.logger.Warn("failed to stop status poller", "error", err)
		}
	}
}
