package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileConfigProvider watches a configuration file and fans out validated
// snapshots to subscribers. A rewrite that fails to parse or validate is
// logged and skipped, keeping the last good configuration in effect.
type FileConfigProvider struct {
	path        string
	logger      *slog.Logger
	mu          sync.RWMutex
	current     *Config
	subscribers []chan *Config
	watcher     *fsnotify.Watcher
	cancel      context.CancelFunc
}

// NewFileConfigProvider creates a new provider watching the specified file.
func NewFileConfigProvider(path string) (*FileConfigProvider, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &FileConfigProvider{
		path:    absPath,
		logger:  slog.Default().With("component", "config"),
		watcher: watcher,
		cancel:  cancel,
	}

	// Initial load. A missing or broken file is not fatal: the provider
	// starts from defaults and keeps watching for a valid rewrite.
	if err := p.load(); err != nil {
		p.logger.Warn("Initial config load failed, starting with defaults", "path", absPath, "error", err)
		p.current = Default()
	}

	// Watch the directory, not the file: editors and configmap mounts
	// replace the file, which would invalidate a file-level watch.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	go p.watchLoop(ctx)

	return p, nil
}

// Current returns the most recent valid configuration snapshot. Callers must
// treat the returned value as read-only.
func (p *FileConfigProvider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe returns a channel that receives configuration updates. The
// current snapshot is delivered immediately.
func (p *FileConfigProvider) Subscribe() <-chan *Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *Config, 1)
	p.subscribers = append(p.subscribers, ch)
	ch <- p.current
	return ch
}

// Close stops the watcher and cleans up resources.
func (p *FileConfigProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileConfigProvider) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}

			// Only our specific file matters; the directory watch sees
			// sibling churn too.
			if filepath.Clean(event.Name) != p.path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := p.load(); err != nil {
						p.logger.Error("Config reload failed, keeping previous configuration", "path", p.path, "error", err)
					} else {
						p.logger.Info("Configuration reloaded", "path", p.path)
					}
				})
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Watcher error", "error", err)
		}
	}
}

func (p *FileConfigProvider) load() error {
	cfg, err := Load(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = cfg
	subscribers := make([]chan *Config, len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cfg:
		default:
			// Skip slow consumers rather than blocking the watch loop.
		}
	}

	return nil
}
