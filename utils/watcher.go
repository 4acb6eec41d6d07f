package utils

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the config file when it changes on disk and hands the
// new value to a callback. The parent directory is watched because editors
// usually replace the file instead of writing it in place.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *Logger
	debounce time.Duration
	onChange func(*Config)

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// WatchConfig starts watching configPath. onChange runs on a background
// goroutine.
func WatchConfig(configPath string, logger *Logger, onChange func(*Config)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(configPath)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &ConfigWatcher{
		path:     filepath.Clean(configPath),
		watcher:  w,
		logger:   logger,
		debounce: 300 * time.Millisecond,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	SafeGo(logger, "config watcher", cw.loop)
	return cw, nil
}

func (cw *ConfigWatcher) loop() {
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				cw.schedule()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("Config watcher error: %v", err)
		}
	}
}

func (cw *ConfigWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, cw.reload)
}

func (cw *ConfigWatcher) reload() {
	defer RecoverFromPanic(cw.logger, "config reload")

	cfg, err := LoadConfig(cw.path)
	if err != nil {
		// half-written file; the next event will retry
		cw.logger.Warn("Ignoring config change: %v", err)
		return
	}
	cfg.Normalize()
	cw.logger.Info("Config reloaded from %s", cw.path)
	cw.onChange(cfg)
}

// Close stops the watcher.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()

	select {
	case <-cw.done:
	default:
		close(cw.done)
	}
	return cw.watcher.Close()
}
