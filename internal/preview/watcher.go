package preview

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	derrors "github.com/climaterisk/sitedeploy/internal/errors"
	"github.com/climaterisk/sitedeploy/internal/logfields"
)

// debounceInterval coalesces bursts of file events into one reload.
const debounceInterval = 300 * time.Millisecond

// siteWatcher watches the site root recursively and calls onChange once per
// burst of changes.
type siteWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func newSiteWatcher(root string, onChange func(), logger *slog.Logger) (*siteWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	sw := &siteWatcher{watcher: w, onChange: onChange, logger: logger}
	if err := sw.addRecursive(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return sw, nil
}

func (sw *siteWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return derrors.WrapError(err, derrors.CategoryFileSystem, "cannot watch site directory").
					WithContext("path", root).Build()
			}
			return nil
		}
		if d.IsDir() {
			if err := sw.watcher.Add(path); err != nil {
				sw.logger.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// run consumes watcher events until ctx is done or the watcher is closed.
func (sw *siteWatcher) run(ctx context.Context) {
	defer sw.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(ev)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (sw *siteWatcher) handle(ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = sw.addRecursive(ev.Name)
		}
	}
	sw.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	sw.trigger()
}

func (sw *siteWatcher) trigger() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.timer != nil {
		sw.timer.Stop()
	}
	sw.timer = time.AfterFunc(debounceInterval, sw.onChange)
}

func (sw *siteWatcher) stopTimer() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.timer != nil {
		sw.timer.Stop()
	}
}

func (sw *siteWatcher) Close() error {
	return sw.watcher.Close()
}

// shouldIgnoreEvent skips hidden files and editor temp files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	default:
		return false
	}
}
