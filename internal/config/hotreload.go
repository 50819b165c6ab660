package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is called when the config file changes.
// It receives the newly loaded config.
type ChangeHandler func(cfg *Config)

// Watcher watches a config file for changes and reloads it.
// Changes are debounced (300ms) to avoid rapid reloads. The parent directory
// is watched so editors that replace the file by rename are seen too.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handlers []ChangeHandler
	debounce time.Duration
	lastHash string
	stopChan chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewWatcher creates a config file watcher. current, if non-nil, seeds the
// hash so a write that changes nothing does not fire handlers.
func NewWatcher(configPath string, current *Config) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &Watcher{
		path:     filepath.Clean(ExpandHome(configPath)),
		watcher:  w,
		debounce: 300 * time.Millisecond,
	}
	if current != nil {
		cw.lastHash = current.Hash()
	}
	return cw, nil
}

// OnChange registers a handler to be called when config changes.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// Start begins watching the config file for changes.
func (cw *Watcher) Start() error {
	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		return err
	}

	cw.stopChan = make(chan struct{})
	go cw.watchLoop()

	slog.Debug("config watcher started", "path", cw.path)
	return nil
}

// Stop halts the file watcher. Safe to call more than once.
func (cw *Watcher) Stop() {
	cw.stopOnce.Do(func() {
		if cw.stopChan != nil {
			close(cw.stopChan)
		}
		cw.watcher.Close()
		slog.Debug("config watcher stopped")
	})
}

func (cw *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-cw.stopChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounce, cw.reload)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (cw *Watcher) reload() {
	cfg, err := Load(cw.path)
	if err != nil {
		slog.Error("config reload failed", "error", err)
		return
	}

	cw.mu.Lock()
	hash := cfg.Hash()
	if hash == cw.lastHash {
		cw.mu.Unlock()
		return
	}
	cw.lastHash = hash
	handlers := make([]ChangeHandler, len(cw.handlers))
	copy(handlers, cw.handlers)
	cw.mu.Unlock()

	for _, h := range handlers {
		h(cfg)
	}

	slog.Info("config reloaded", "path", cw.path)
}
