// Package repository pairs the local cache with the remote store. Reads are
// cache first; writes land in the cache synchronously and are mirrored to the
// remote store in the background. The cache is never rolled back.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// DefaultTimeout bounds every remote call.
const DefaultTimeout = 15 * time.Second

// Stage names the half of a cross-day update that failed.
type Stage int

const (
	// StageSave means the new version was never written remotely.
	StageSave Stage = iota + 1
	// StageCleanup means the new version was written but the old one could
	// not be removed, so the task exists remotely on both days.
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageSave:
		return "save"
	case StageCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// UpdateError reports a failed remote update.
type UpdateError struct {
	Stage Stage
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("repository: update %s: %v", e.Stage, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// IsCleanupFailure reports whether err is an update whose new version was
// written remotely while the old copy was left behind.
func IsCleanupFailure(err error) bool {
	var ue *UpdateError
	return errors.As(err, &ue) && ue.Stage == StageCleanup
}

// Options configures a Repository.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Metrics *metrics.Sync
}

// Repository is safe for concurrent use.
type Repository struct {
	cache   cache.Store
	remote  remote.Client
	log     *slog.Logger
	timeout time.Duration
	metrics *metrics.Sync

	// load serializes window shifts with the fetch that follows.
	load     sync.Mutex
	inflight sync.WaitGroup

	// Remote writes for one task id run in call order.
	mu   sync.Mutex
	tail map[string]chan struct{}
}

// New returns a Repository over c and r.
func New(c cache.Store, r remote.Client, o Options) *Repository {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Repository{
		cache:   c,
		remote:  r,
		log:     log.With("component", "repository"),
		timeout: timeout,
		metrics: o.Metrics,
		tail:    make(map[string]chan struct{}),
	}
}

// LoadTasks returns the tasks of day. A day inside the cache window whose
// bucket was loaded is served from the cache without touching the network,
// even when the bucket is empty. Anything else is fetched: a day outside the
// window recentres it, but only once the fetch has succeeded, so a failed
// fetch leaves nothing behind that later reads could mistake for data.
func (r *Repository) LoadTasks(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error) {
	r.load.Lock()
	defer r.load.Unlock()

	w, ok := r.cache.Window()
	inWindow := ok && w.Contains(day)
	if inWindow {
		if tasks, loaded := r.cache.Get(day); loaded {
			return tasks, nil
		}
	}

	tasks, err := r.fetch(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	if !inWindow {
		r.cache.CurrentWindow(day)
	}
	return r.fill(day, tasks), nil
}

// Prefetch recentres the window on pivot and fills every day of it from the
// remote store.
func (r *Repository) Prefetch(ctx context.Context, userID string, pivot timeutil.Day) (cache.Window, error) {
	r.load.Lock()
	defer r.load.Unlock()

	w, _ := r.cache.CurrentWindow(pivot)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, day := range w.Days() {
		day := day
		g.Go(func() error {
			tasks, err := r.fetch(gctx, userID, day)
			if err != nil {
				return err
			}
			r.fill(day, tasks)
			return nil
		})
	}
	return w, g.Wait()
}

// fill stores a fetched bucket and marks it loaded. While a bucket has never
// been loaded the only tasks in it are local writes made since it entered
// the window; those are kept when the remote copy does not have them yet.
func (r *Repository) fill(day timeutil.Day, fetched []task.Task) []task.Task {
	out := fetched
	if local, loaded := r.cache.Get(day); !loaded && len(local) > 0 {
		out = append([]task.Task(nil), fetched...)
		for _, t := range local {
			if task.IndexOf(fetched, t.ID) < 0 {
				out = append(out, t)
			}
		}
	}
	if err := r.cache.Put(day, out); err != nil {
		r.log.Warn("cache put failed", "day", day, "err", err)
	}
	return out
}

func (r *Repository) fetch(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	tasks, err := r.remote.Fetch(ctx, userID, day)
	if err != nil {
		r.metrics.RemoteFailed(metrics.OpFetch)
		return nil, fmt.Errorf("repository: fetch %s: %w", day, err)
	}
	return tasks, nil
}

// SaveTask writes t to the cache and, when syncToCloud is set, to the remote
// store in the background. done, if non-nil, is called exactly once from a
// background goroutine.
func (r *Repository) SaveTask(userID string, t task.Task, day timeutil.Day, syncToCloud bool, done func(error)) {
	if err := r.cache.PutTask(t, day); err != nil {
		r.log.Warn("cache write failed", "op", "save", "id", t.ID, "day", day, "err", err)
	}
	r.background(t.ID, syncToCloud, done, func(ctx context.Context) error {
		if err := r.remote.Save(ctx, userID, t, day); err != nil {
			r.metrics.RemoteFailed(metrics.OpSave)
			return fmt.Errorf("repository: save %s: %w", t.ID, err)
		}
		return nil
	})
}

// DeleteTask is the counterpart of SaveTask.
func (r *Repository) DeleteTask(userID, taskID string, day timeutil.Day, syncToCloud bool, done func(error)) {
	if err := r.cache.Remove(taskID, day); err != nil {
		r.log.Warn("cache write failed", "op", "delete", "id", taskID, "day", day, "err", err)
	}
	r.background(taskID, syncToCloud, done, func(ctx context.Context) error {
		if err := r.remote.Delete(ctx, userID, taskID, day); err != nil {
			r.metrics.RemoteFailed(metrics.OpDelete)
			return fmt.Errorf("repository: delete %s: %w", taskID, err)
		}
		return nil
	})
}

// UpdateTask replaces oldT with newT. When the day changes the task moves
// between buckets; remotely the new copy is saved first and the old one is
// deleted only after that save succeeds, so a failure can duplicate the
// task but never lose it. Remote failures are reported as *UpdateError.
func (r *Repository) UpdateTask(userID string, newT, oldT task.Task, syncToCloud bool, done func(error)) {
	oldDay, newDay := oldT.DateKey(), newT.DateKey()
	moved := oldDay != newDay
	if moved {
		if err := r.cache.Remove(oldT.ID, oldDay); err != nil {
			r.log.Warn("cache write failed", "op", "update", "id", oldT.ID, "day", oldDay, "err", err)
		}
		if err := r.cache.PutTask(newT, newDay); err != nil {
			r.log.Warn("cache write failed", "op", "update", "id", newT.ID, "day", newDay, "err", err)
		}
	} else if err := r.cache.Replace(newT, newDay); err != nil {
		r.log.Warn("cache write failed", "op", "update", "id", newT.ID, "day", newDay, "err", err)
	}

	r.background(newT.ID, syncToCloud, done, func(ctx context.Context) error {
		if err := r.remote.Save(ctx, userID, newT, newDay); err != nil {
			r.metrics.RemoteFailed(metrics.OpSave)
			return &UpdateError{Stage: StageSave, Err: err}
		}
		if !moved {
			return nil
		}
		if err := r.remote.Delete(ctx, userID, oldT.ID, oldDay); err != nil {
			r.metrics.RemoteFailed(metrics.OpDelete)
			return &UpdateError{Stage: StageCleanup, Err: err}
		}
		return nil
	})
}

// CachedWindow recentres the cache window on pivot and returns every resident
// bucket.
func (r *Repository) CachedWindow(pivot timeutil.Day) (cache.Window, map[timeutil.Day][]task.Task) {
	r.load.Lock()
	defer r.load.Unlock()
	return r.cache.CurrentWindow(pivot)
}

// StoreBucket replaces the cached bucket of day.
func (r *Repository) StoreBucket(day timeutil.Day, tasks []task.Task) error {
	if err := r.cache.Put(day, tasks); err != nil {
		return fmt.Errorf("repository: store bucket %s: %w", day, err)
	}
	return nil
}

// Wait blocks until every background remote call has finished.
func (r *Repository) Wait() {
	r.inflight.Wait()
}

func (r *Repository) background(id string, syncToCloud bool, done func(error), call func(ctx context.Context) error) {
	r.inflight.Add(1)
	r.mu.Lock()
	prev := r.tail[id]
	mine := make(chan struct{})
	r.tail[id] = mine
	r.mu.Unlock()

	go func() {
		defer r.inflight.Done()
		defer func() {
			close(mine)
			r.mu.Lock()
			if r.tail[id] == mine {
				delete(r.tail, id)
			}
			r.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		var err error
		if syncToCloud {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			err = call(ctx)
			cancel()
			if err != nil {
				r.log.Warn("remote write failed", "err", err)
			}
		}
		if done != nil {
			done(err)
		}
	}()
}
