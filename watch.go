package winsvc

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent is one observation of a service's persisted configuration
type WatchEvent struct {
	// Config is the re-loaded configuration, nil when Err is set
	Config *ServiceConfig
	// Err is a load or watch failure
	Err error
}

// WatchCleanupFunc stops a watch and releases its resources
type WatchCleanupFunc func() error

// Watch observes the named service's record and emits a WatchEvent for the
// initial state and after every change, debounced to coalesce rapid
// rewrites. The returned cleanup function must be called to stop the
// watch; the event channel is closed on cleanup or context cancellation.
//
// A running host does not re-read configuration mid-run; Watch exists so
// debug tooling can tell the operator a restart is needed to apply changes.
func (s *FileStore) Watch(ctx context.Context, name string) (<-chan WatchEvent, WatchCleanupFunc, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpWatch, Service: name, Err: err}
	}

	if err := watcher.Add(s.Dir); err != nil {
		_ = watcher.Close()
		return nil, nil, &OpError{Op: OpWatch, Service: name, Err: err}
	}

	ch := make(chan WatchEvent, 10)
	recordName := name + recordExt

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	var mu sync.Mutex
	var debouncer *time.Timer

	readAndSend := func() {
		if sctx.IsStopping() {
			return
		}

		cfg, err := s.Load(name)
		ev := WatchEvent{Config: cfg, Err: err}
		if err != nil {
			ev.Config = nil
		}

		select {
		case ch <- ev:
		case <-sctx.Stopping():
		}
	}

	readAndSend()

	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			mu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			mu.Unlock()
		})

		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != recordName {
					continue
				}

				mu.Lock()
				if debouncer != nil {
					debouncer.Stop()
				}
				// The read runs as a tracked task so the channel close in
				// the stop path waits for it instead of racing it.
				debouncer = time.AfterFunc(s.WatchDebounce, func() {
					sctx.Go(func(*stopper.Context) error {
						readAndSend()
						return nil
					})
				})
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				select {
				case ch <- WatchEvent{Err: &OpError{Op: OpWatch, Service: name, Err: err}}:
				case <-sctx.Stopping():
					return nil
				}
			}
		}
	})

	return ch, cleanup, nil
}
