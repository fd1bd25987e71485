package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mouthsync/internal/fileutil"
	"mouthsync/internal/logging"
)

// DefaultDebounce is the quiet period before a change is acted on.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc handles a debounced batch of changed files.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher observes a fixed set of files.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	digests map[string]string
}

// New watches paths. Empty entries are skipped; at least one path is required.
func New(paths []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	digests := make(map[string]string, len(paths))
	dirs := map[string]struct{}{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		digest, err := fileutil.Digest(abs)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		digests[abs] = digest
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if len(digests) == 0 {
		return nil, errors.New("watch: no files to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger.With(logging.String(logging.FieldComponent, "watch")),
		digests:  digests,
	}, nil
}

// Files returns the watched paths in sorted order.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	files := make([]string, 0, len(w.digests))
	for path := range w.digests {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Run blocks until ctx is done, calling fn once per debounced batch of real
// content changes. Errors from fn are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	defer w.fsw.Close()

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			pending[filepath.Clean(event.Name)] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
				logging.String(logging.FieldErrorHint, "events may have been dropped; save the file again"),
			)
		case <-timer.C:
			changed := w.collect(pending)
			pending = map[string]struct{}{}
			if len(changed) == 0 {
				continue
			}
			w.logger.Info("inputs changed", logging.Any("files", changed))
			if err := fn(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Warn("change handler failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "watch_handler_failed"),
					logging.String(logging.FieldImpact, "waiting for the next change"),
				)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.digests[filepath.Clean(event.Name)]
	return ok
}

// collect returns the pending paths whose content differs from the last seen
// digest, updating the digests. Files that vanished are skipped until they
// reappear.
func (w *Watcher) collect(pending map[string]struct{}) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var changed []string
	for path := range pending {
		digest, err := fileutil.Digest(path)
		if err != nil {
			w.logger.Debug("skipping unreadable file", logging.String("path", path), logging.Error(err))
			continue
		}
		if digest == w.digests[path] {
			continue
		}
		w.digests[path] = digest
		changed = append(changed, path)
	}
	sort.Strings(changed)
	return changed
}
