package config

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader holds the current Configuration and rebuilds it whenever the
// backing file changes. A reload is always build-and-swap: a failed rebuild
// logs the error and keeps serving the old graph, and no entity is ever
// shared between the old and new Configurations.
type Reloader struct {
	path    string
	log     *zap.Logger
	current atomic.Pointer[Configuration]
}

// NewReloader builds the initial configuration; a broken file at startup is
// an error rather than an empty site.
func NewReloader(path string, log *zap.Logger) (*Reloader, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	r := &Reloader{path: path, log: log}
	r.current.Store(cfg)
	return r, nil
}

// Current returns the live Configuration.
func (r *Reloader) Current() *Configuration {
	return r.current.Load()
}

// Watch blocks until ctx is done, swapping in a freshly built Configuration
// on every write to the config file.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadFile(r.path)
			if err != nil {
				r.log.Error("configuration rebuild failed, keeping previous",
					zap.String("path", r.path), zap.Error(err))
				continue
			}
			r.current.Store(cfg)
			r.log.Info("configuration rebuilt",
				zap.String("path", r.path), zap.Strings("layers", cfg.Layers.Names()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("configuration watcher error", zap.Error(err))
		}
	}
}
