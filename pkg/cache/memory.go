package cache

import (
	"log/slog"
	"sort"
	"sync"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Memory is a process-local Store with the same window semantics as SQLite.
// Nothing survives a restart.
type Memory struct {
	radius int
	log    *slog.Logger

	mu        sync.Mutex
	buckets   map[timeutil.Day]map[string]task.Task
	loaded    map[timeutil.Day]struct{}
	window    Window
	hasWindow bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory cache.
func NewMemory(o Options) *Memory {
	return &Memory{
		radius:  o.radius(),
		log:     o.logger(),
		buckets: make(map[timeutil.Day]map[string]task.Task),
		loaded:  make(map[timeutil.Day]struct{}),
	}
}

func (m *Memory) Get(day timeutil.Day) ([]task.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[day]
	return sortedBucket(m.buckets[day]), ok
}

func (m *Memory) Put(day timeutil.Day, tasks []task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		bucket[t.ID] = t.Clone()
	}
	m.buckets[day] = bucket
	m.loaded[day] = struct{}{}
	return nil
}

func (m *Memory) PutTask(t task.Task, day timeutil.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucketLocked(day)[t.ID] = t.Clone()
	return nil
}

func (m *Memory) Replace(t task.Task, day timeutil.Day) error {
	return m.PutTask(t, day)
}

func (m *Memory) Remove(id string, day timeutil.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[day], id)
	return nil
}

func (m *Memory) CurrentWindow(pivot timeutil.Day) (Window, map[timeutil.Day][]task.Task) {
	w := NewWindow(pivot, m.radius)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.window, m.hasWindow = w, true

	for day := range m.loaded {
		if !w.Contains(day) {
			delete(m.loaded, day)
		}
	}
	out := make(map[timeutil.Day][]task.Task)
	for day, bucket := range m.buckets {
		if !w.Contains(day) {
			delete(m.buckets, day)
			m.log.Debug("cache: evicted bucket", "day", day, "tasks", len(bucket))
			continue
		}
		if len(bucket) > 0 {
			out[day] = sortedBucket(bucket)
		}
	}
	return w, out
}

func (m *Memory) Window() (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window, m.hasWindow
}

func (m *Memory) Close() error { return nil }

func (m *Memory) bucketLocked(day timeutil.Day) map[string]task.Task {
	bucket, ok := m.buckets[day]
	if !ok {
		bucket = make(map[string]task.Task)
		m.buckets[day] = bucket
	}
	return bucket
}

func sortedBucket(bucket map[string]task.Task) []task.Task {
	if len(bucket) == 0 {
		return nil
	}
	out := make([]task.Task, 0, len(bucket))
	for _, t := range bucket {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
