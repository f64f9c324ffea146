// Package cache is the bounded, day-keyed local persistence layer. It keeps a
// sliding window of buckets around a pivot day; shifting the pivot is the only
// way buckets leave the cache.
package cache

import (
	"log/slog"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// DefaultRadius is the number of days kept on each side of the pivot.
const DefaultRadius = 7

// Store is the cache contract used by the repository. Reads never fail: an
// I/O error is logged and reported as a miss so callers fall back to the
// remote store.
type Store interface {
	// Get returns the bucket for day. ok is false when the bucket was never
	// filled by Put since it entered the window, or could not be read; the
	// tasks returned then are only what single-task writes left behind.
	Get(day timeutil.Day) (tasks []task.Task, ok bool)
	// Put replaces the whole bucket for day and marks it loaded.
	Put(day timeutil.Day, tasks []task.Task) error
	// PutTask inserts or overwrites a single task in the bucket for day.
	PutTask(t task.Task, day timeutil.Day) error
	// Remove deletes a single task from the bucket for day.
	Remove(id string, day timeutil.Day) error
	// Replace overwrites the task with the same id in the bucket for day.
	Replace(t task.Task, day timeutil.Day) error
	// CurrentWindow recentres the window on pivot, evicts every bucket
	// outside it, loaded marks included, and returns what is still
	// resident.
	CurrentWindow(pivot timeutil.Day) (Window, map[timeutil.Day][]task.Task)
	// Window reports the current window without moving it. The boolean is
	// false until the first CurrentWindow call.
	Window() (Window, bool)
	Close() error
}

// Options configures a Store.
type Options struct {
	// Radius is the number of days on each side of the pivot. Zero means
	// DefaultRadius.
	Radius int
	Logger *slog.Logger
}

func (o Options) radius() int {
	if o.Radius <= 0 {
		return DefaultRadius
	}
	return o.Radius
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Window is the inclusive span of resident days.
type Window struct {
	Pivot timeutil.Day
	Min   timeutil.Day
	Max   timeutil.Day
}

// NewWindow centres a window of the given radius on pivot.
func NewWindow(pivot timeutil.Day, radius int) Window {
	return Window{
		Pivot: pivot,
		Min:   pivot.AddDays(-radius),
		Max:   pivot.AddDays(radius),
	}
}

// Contains reports whether day is inside the window.
func (w Window) Contains(day timeutil.Day) bool {
	return InWindow(day, w.Min, w.Max)
}

// Width is the number of days the window spans.
func (w Window) Width() int {
	return w.Min.DaysUntil(w.Max) + 1
}

// Days lists every day of the window in order.
func (w Window) Days() []timeutil.Day {
	out := make([]timeutil.Day, 0, w.Width())
	for d := w.Min; !d.After(w.Max); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// InWindow reports whether min <= day <= max.
func InWindow(day, min, max timeutil.Day) bool {
	return !day.Before(min) && !day.After(max)
}
