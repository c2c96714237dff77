package git

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/repolens/internal/logging"
)

const (
	// defaultPollInterval is used when no interval is configured
	defaultPollInterval = 30 * time.Second
	// minPollInterval is the minimum allowed polling interval
	minPollInterval = 1 * time.Second
	// statusChangeBuffer is the buffer size for the change channel
	statusChangeBuffer = 16
)

// StatusChange reports a repository whose snapshot differs from the last one seen
type StatusChange struct {
	Repository Repository
	Previous   StatusSnapshot
	Current    StatusSnapshot
}

// StatusPoller periodically re-probes a fixed set of repositories
type StatusPoller interface {
	Start(ctx context.Context, repos []Repository) error
	// PollNow runs one probe pass synchronously
	PollNow(ctx context.Context)
	Changes() <-chan StatusChange
	Stop() error
}

type statusPoller struct {
	probe    StatusProbe
	logger   logging.Logger
	interval time.Duration
	changes  chan StatusChange

	mu      sync.Mutex
	started bool
	stopped bool
	repos   []Repository
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stateMu  sync.Mutex
	lastSeen map[string]StatusSnapshot
}

// NewStatusPoller creates a poller; intervals below one second are raised to it
func NewStatusPoller(probe StatusProbe, interval time.Duration, logger logging.Logger) (StatusPoller, error) {
	if probe == nil {
		return nil, fmt.Errorf("probe cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	componentLogger := logger.With("component", "status_poller")

	if interval <= 0 {
		interval = defaultPollInterval
	}
	if interval < minPollInterval {
		componentLogger.Warn("polling interval too small, using minimum", "requested_ms", interval.Milliseconds(), "minimum_seconds", int(minPollInterval.Seconds()))
		interval = minPollInterval
	}

	return &statusPoller{
		probe:    probe,
		logger:   componentLogger,
		interval: interval,
		changes:  make(chan StatusChange, statusChangeBuffer),
		lastSeen: make(map[string]StatusSnapshot),
	}, nil
}

// Start records a baseline snapshot for every repository and begins polling
func (p *statusPoller) Start(ctx context.Context, repos []Repository) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("poller is already started")
	}
	if p.stopped {
		return fmt.Errorf("poller has been stopped")
	}

	p.repos = append([]Repository(nil), repos...)
	for _, repo := range p.repos {
		snap := p.probe.Snapshot(ctx, repo)
		p.stateMu.Lock()
		p.lastSeen[repo.Path] = snap
		p.stateMu.Unlock()
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.pollLoop(pollCtx)

	p.started = true
	p.logger.Info("poller started", "interval_seconds", int(p.interval.Seconds()), "repository_count", len(repos))
	return nil
}

func (p *statusPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("polling loop stopped")
			return
		case <-ticker.C:
			p.PollNow(ctx)
		}
	}
}

func (p *statusPoller) PollNow(ctx context.Context) {
	p.mu.Lock()
	repos := p.repos
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, repo := range repos {
		wg.Add(1)
		go func(r Repository) {
			defer wg.Done()
			p.pollRepository(ctx, r)
		}(repo)
	}
	wg.Wait()
}

func (p *statusPoller) pollRepository(ctx context.Context, repo Repository) {
	current := p.probe.Snapshot(ctx, repo)
	if ctx.Err() != nil {
		return
	}

	p.stateMu.Lock()
	previous, seen := p.lastSeen[repo.Path]
	p.lastSeen[repo.Path] = current
	p.stateMu.Unlock()

	if seen && previous == current {
		return
	}
	p.logger.Debug("repository status changed", "repository", repo.Path, "dirty", current.IsDirty(), "branch", current.CurrentBranch)
	p.emit(StatusChange{Repository: repo, Previous: previous, Current: current})
}

// emit never blocks; a slow consumer loses intermediate changes, not the latest state
func (p *statusPoller) emit(change StatusChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	select {
	case p.changes <- change:
	default:
		p.logger.Warn("status change channel full, dropping change", "repository", change.Repository.Path)
	}
}

func (p *statusPoller) Changes() <-chan StatusChange {
	return p.changes
}

// Stop halts polling and closes the change channel. It is safe to call twice.
func (p *statusPoller) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	close(p.changes)
	p.started = false
	p.mu.Unlock()

	p.logger.Info("poller stopped")
	return nil
}
