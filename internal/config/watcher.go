package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands each new
// valid version to a callback together with the one it replaces. Edits that
// fail to parse or validate are logged and skipped; the last good config
// stays current.
//
// The containing directory is watched, not the file, so rename-based saves
// and symlink swaps are seen.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(old, next *Config)
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
	digest  [sha256.Size]byte

	quit     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period after the last event before the file
// is re-read. Non-positive values keep the default of 200ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher loads path once and fails if that load fails. onChange may be
// nil. It runs on the watcher goroutine, outside the watcher's lock.
func NewWatcher(path string, onChange func(old, next *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		onChange: onChange,
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	var err error
	if w.current, w.digest, err = w.read(); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", w.path, err)
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", w.path, err)
	}
	if err = w.fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = w.fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", w.path, err)
	}

	go w.run()
	return w, nil
}

// Current returns the last config that loaded cleanly.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends watching and waits for the goroutine. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
		_ = w.fsw.Close()
	})
	<-w.exited
}

func (w *Watcher) run() {
	defer close(w.exited)

	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-w.quit:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.touches(ev) {
				settle.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "path", w.path, "err", err)

		case <-settle.C:
			w.reload()
		}
	}
}

func (w *Watcher) touches(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	cfg, digest, err := w.read()
	if err != nil {
		slog.Warn("config reload rejected, keeping previous", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if digest == w.digest {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.digest = cfg, digest
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read parses and validates the file and returns it with the SHA-256 of its
// raw bytes.
func (w *Watcher) read() (*Config, [sha256.Size]byte, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(raw), nil
}
