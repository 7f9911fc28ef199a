// Package watcher reports recording files that appear in a directory.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type fileState struct {
	size    int64
	modTime time.Time
}

// PollingWatcher scans a directory for *.json files on an interval. A file
// is only reported once its size and mtime are unchanged across two scans,
// so recordings still being written are not picked up early.
type PollingWatcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	callback func(path string, event EventType)
	seen     map[string]fileState
	pending  map[string]fileState
	stop     chan struct{}
	stopOnce sync.Once
}

func NewPollingWatcher(interval time.Duration, logger *slog.Logger) *PollingWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollingWatcher{
		interval: interval,
		logger:   logger,
		seen:     make(map[string]fileState),
		pending:  make(map[string]fileState),
		stop:     make(chan struct{}),
	}
}

func (w *PollingWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = callback
}

// Watch blocks, scanning path until ctx is done or Stop is called.
func (w *PollingWatcher) Watch(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	w.logger.Info("watching for recordings", "path", path, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Scan(path); err != nil {
			w.logger.Warn("watch scan failed", "path", path, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			return nil
		case <-ticker.C:
		}
	}
}

func (w *PollingWatcher) Stop() error {
	w.stopOnce.Do(func() { close(w.stop) })
	return nil
}

// Scan runs one pass over dir and fires callbacks for settled changes.
func (w *PollingWatcher) Scan(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	current := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		current[filepath.Join(dir, e.Name())] = fileState{size: info.Size(), modTime: info.ModTime()}
	}

	w.mu.Lock()
	type change struct {
		path  string
		event EventType
	}
	var changes []change

	for path, st := range current {
		prev, known := w.seen[path]
		if known && prev == st {
			continue
		}
		if p, ok := w.pending[path]; !ok || p != st {
			w.pending[path] = st
			continue
		}
		delete(w.pending, path)
		w.seen[path] = st
		if known {
			changes = append(changes, change{path, EventModify})
		} else {
			changes = append(changes, change{path, EventCreate})
		}
	}
	for path := range w.seen {
		if _, ok := current[path]; !ok {
			delete(w.seen, path)
			changes = append(changes, change{path, EventDelete})
		}
	}
	for path := range w.pending {
		if _, ok := current[path]; !ok {
			delete(w.pending, path)
		}
	}
	cb := w.callback
	w.mu.Unlock()

	if cb == nil {
		return nil
	}
	for _, c := range changes {
		cb(c.path, c.event)
	}
	return nil
}
