package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// settleDelay coalesces the create/write/rename bursts diskv produces for a
// single document.
const settleDelay = 20 * time.Millisecond

// Listen watches the day directory and calls onUpdate with the day's full
// task set once after subscribing and again after each burst of changes.
func (s *Store) Listen(ctx context.Context, userID string, day timeutil.Day, onUpdate func([]task.Task)) (remote.Handle, error) {
	if err := ctx.Err(); err != nil {
		return remote.Handle{}, err
	}
	dir := s.dayDir(userID, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return remote.Handle{}, fmt.Errorf("disk: ensure day directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return remote.Handle{}, fmt.Errorf("disk: create watcher: %w", err)
	}
	// diskv prunes empty directories on erase, so the chain from the base
	// path down is watched and re-added when it reappears.
	userDir := filepath.Dir(dir)
	for _, p := range []string{s.basePath, userDir, dir} {
		if err := watcher.Add(p); err != nil {
			_ = watcher.Close()
			return remote.Handle{}, fmt.Errorf("disk: watch %s: %w", p, err)
		}
	}
	rewatch := func() {
		for _, p := range []string{userDir, dir} {
			if _, err := os.Stat(p); err == nil {
				_ = watcher.Add(p)
			}
		}
	}

	h := remote.NewHandle(userID, day)
	lctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listeners[h.ID] = cancel
	s.mu.Unlock()

	// A pending signal means "refetch"; one is queued for the initial snapshot.
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}
	mark := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	throttle := newThrottle(settleDelay)

	go func() {
		defer func() {
			throttle.Stop()
			if err := watcher.Close(); err != nil {
				s.log.Warn("watcher close", "err", err)
			}
		}()
		for {
			select {
			case <-lctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Unclassified failure: refetch to stay in sync.
				s.log.Warn("watcher error", "dir", dir, "err", err)
				throttle.Enqueue(mark)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Clean(evt.Name)
				if evt.Op&fsnotify.Create == fsnotify.Create && (name == userDir || name == dir) {
					rewatch()
					throttle.Enqueue(mark)
					continue
				}
				if name == dir || filepath.Dir(name) == dir {
					throttle.Enqueue(mark)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-lctx.Done():
				return
			case <-dirty:
				tasks, err := s.Fetch(lctx, userID, day)
				if err != nil {
					if lctx.Err() == nil {
						s.log.Warn("listener fetch failed", "user", userID, "day", day, "err", err)
					}
					continue
				}
				if lctx.Err() != nil {
					return
				}
				onUpdate(tasks)
			}
		}
	}()

	return h, nil
}

func (s *Store) StopListening(h remote.Handle) {
	s.mu.Lock()
	cancel, ok := s.listeners[h.ID]
	delete(s.listeners, h.ID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close cancels every live subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.listeners {
		cancel()
		delete(s.listeners, id)
	}
	return nil
}

// throttle runs the latest enqueued func once per quiet period.
type throttle struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fn    func()
}

func newThrottle(delay time.Duration) *throttle {
	return &throttle{delay: delay}
}

func (t *throttle) Enqueue(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, t.flush)
	}
}

func (t *throttle) flush() {
	t.mu.Lock()
	fn := t.fn
	t.fn = nil
	t.timer = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *throttle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.fn = nil
	t.mu.Unlock()
}
