package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nextlevelbuilder/agentrt/internal/extension"
)

// defaultDebounce absorbs the burst of Create/Write events an editor
// produces for a single logical save (write to temp file, rename over
// target) into one reload.
const defaultDebounce = 250 * time.Millisecond

// ManifestWatcher watches a manifest directory and reloads an
// extension.Manager whenever a .json5/.json file inside it changes.
type ManifestWatcher struct {
	dir      string
	manager  *extension.Manager
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManifestWatcher builds a watcher for dir. Call Start to begin
// watching; it is a no-op until then.
func NewManifestWatcher(dir string, manager *extension.Manager) *ManifestWatcher {
	return &ManifestWatcher{dir: dir, manager: manager, debounce: defaultDebounce}
}

// Start begins watching dir in the background, reloading manager every
// time the debounce window closes after a change. Start is idempotent;
// calling it twice on an already-started watcher is a no-op.
func (w *ManifestWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = fw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fw)
	return nil
}

// Close stops the watch goroutine and releases the underlying
// fsnotify.Watcher.
func (w *ManifestWatcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fw == nil {
		return nil
	}
	err := fw.Close()
	w.wg.Wait()
	return err
}

func (w *ManifestWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config.manifest.watch_error", "error", err)
		}
	}
}

func (w *ManifestWatcher) reload(ctx context.Context) {
	manifest, err := LoadManifest(w.dir)
	if err != nil {
		slog.Warn("config.manifest.reload_failed", "dir", w.dir, "error", err)
		return
	}
	if err := w.manager.Reload(ctx, manifest.ToServerConfigs()); err != nil {
		slog.Warn("config.manifest.reload_partial_failure", "dir", w.dir, "error", err)
		return
	}
	slog.Info("config.manifest.reloaded", "dir", w.dir, "servers", len(manifest))
}
