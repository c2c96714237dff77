package git

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stwalsh4118/repolens/internal/logging"
)

const (
	// defaultDebounce coalesces editor save bursts and multi-step git writes
	defaultDebounce = 250 * time.Millisecond
	// watchEventBuffer is the buffer size for the event channel
	watchEventBuffer = 8
)

// WatchEvent is emitted once per debounced burst of filesystem activity
type WatchEvent struct {
	Repository Repository
	Paths      []string
	At         time.Time
}

// RepoWatcher is a caller-owned handle watching one working tree and its
// git directory. Stop releases the fsnotify resources and closes Events.
type RepoWatcher struct {
	repo     Repository
	gitDir   string
	debounce time.Duration
	logger   logging.Logger

	events chan WatchEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	started   bool
	stopOnce  sync.Once
}

// NewRepoWatcher creates a watcher for repo; a non-positive debounce uses the default
func NewRepoWatcher(repo Repository, debounce time.Duration, logger logging.Logger) (*RepoWatcher, error) {
	if repo.Path == "" {
		return nil, fmt.Errorf("repository path cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	gitDir := repo.GitDir
	if gitDir == "" {
		gitDir = filepath.Join(repo.Path, ".git")
	}
	return &RepoWatcher{
		repo:     repo,
		gitDir:   gitDir,
		debounce: debounce,
		logger:   logger.With("component", "repo_watcher", "repository", repo.Path),
		events:   make(chan WatchEvent, watchEventBuffer),
		done:     make(chan struct{}),
	}, nil
}

// Start registers watches and begins delivering events
func (w *RepoWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("watcher is already started")
	}
	select {
	case <-w.done:
		return fmt.Errorf("watcher has been stopped")
	default:
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.addTree(fsWatcher, w.repo.Path); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("failed to watch working tree: %w", err)
	}
	w.addGitDir(fsWatcher)

	w.fsWatcher = fsWatcher
	w.started = true
	w.wg.Add(1)
	go w.loop(fsWatcher)

	w.logger.Debug("watcher started", "watch_count", len(fsWatcher.WatchList()))
	return nil
}

// Events delivers debounced change notifications until Stop
func (w *RepoWatcher) Events() <-chan WatchEvent {
	return w.events
}

// Stop is idempotent
func (w *RepoWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()

		w.mu.Lock()
		if w.fsWatcher != nil {
			err = w.fsWatcher.Close()
		}
		w.started = false
		w.mu.Unlock()

		close(w.events)
		w.logger.Debug("watcher stopped")
	})
	return err
}

// addTree watches root and every directory below it outside .git
func (w *RepoWatcher) addTree(fsWatcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (d.Name() == ".git" || skippedDirs[d.Name()]) {
			return filepath.SkipDir
		}
		if err := fsWatcher.Add(path); err != nil {
			w.logger.Debug("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// addGitDir watches the files that move HEAD, the index and refs
func (w *RepoWatcher) addGitDir(fsWatcher *fsnotify.Watcher) {
	if err := fsWatcher.Add(w.gitDir); err != nil {
		w.logger.Debug("git directory not watchable", "path", w.gitDir, "error", err)
		return
	}
	for _, sub := range []string{"refs/heads", "refs/remotes", "refs/tags"} {
		w.addRefDirs(fsWatcher, filepath.Join(w.gitDir, filepath.FromSlash(sub)))
	}
}

// addRefDirs watches dir and every directory below it
func (w *RepoWatcher) addRefDirs(fsWatcher *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}
		if d.IsDir() {
			_ = fsWatcher.Add(path)
		}
		return nil
	})
}

// underRefs reports whether path lies below the refs directory of gitDir
func (w *RepoWatcher) underRefs(path string) bool {
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(filepath.ToSlash(rel), "refs/")
}

func (w *RepoWatcher) loop(fsWatcher *fsnotify.Watcher) {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-w.done:
			timer.Stop()
			return

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			if w.ignore(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.watchNewDirectory(fsWatcher, event.Name)
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			w.emit(pending)
			pending = make(map[string]struct{})

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *RepoWatcher) watchNewDirectory(fsWatcher *fsnotify.Watcher, path string) {
	if w.insideGitDir(path) {
		// namespaced branches such as feature/x live in new ref directories
		if w.underRefs(path) {
			w.addRefDirs(fsWatcher, path)
		}
		return
	}
	if err := w.addTree(fsWatcher, path); err != nil {
		// not a directory, or already gone
		return
	}
}

func (w *RepoWatcher) emit(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	select {
	case w.events <- WatchEvent{Repository: w.repo, Paths: paths, At: time.Now()}:
	default:
		w.logger.Debug("watch event channel full, dropping burst", "paths", len(paths))
	}
}

// ignore drops metadata-only events and git's transient internals
func (w *RepoWatcher) ignore(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".lock") {
		return true
	}
	if w.insideGitDir(event.Name) {
		rel, err := filepath.Rel(w.gitDir, event.Name)
		if err != nil {
			return true
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, "objects/") || strings.HasPrefix(rel, "logs/") || rel == "objects" || rel == "logs" {
			return true
		}
	}
	return false
}

func (w *RepoWatcher) insideGitDir(path string) bool {
	return path == w.gitDir || strings.HasPrefix(path, w.gitDir+string(filepath.Separator))
}
