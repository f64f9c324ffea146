package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Memory is an in-process remote store. Every write notifies the listeners of
// the written day with the day's full task set, delivered in order on one
// goroutine per subscription. The failure hooks and Latency let callers
// simulate a flaky network.
type Memory struct {
	// Latency delays every call. Set it before first use.
	Latency time.Duration

	mu         sync.Mutex
	failFetch  func(userID string, day timeutil.Day) error
	failSave   func(userID string, t task.Task, day timeutil.Day) error
	failDelete func(userID, taskID string, day timeutil.Day) error
	docs      map[docKey]map[string]task.Task
	listeners map[uint64]*memoryListener
}

type docKey struct {
	user string
	day  timeutil.Day
}

type memoryListener struct {
	handle Handle
	queue  chan []task.Task
	cancel context.CancelFunc
}

var _ Client = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs:      make(map[docKey]map[string]task.Task),
		listeners: make(map[uint64]*memoryListener),
	}
}

// SetFailFetch installs a hook consulted before every Fetch; a non-nil
// result aborts the call. Pass nil to clear it.
func (m *Memory) SetFailFetch(fn func(userID string, day timeutil.Day) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFetch = fn
}

// SetFailSave installs a hook consulted before every Save.
func (m *Memory) SetFailSave(fn func(userID string, t task.Task, day timeutil.Day) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = fn
}

// SetFailDelete installs a hook consulted before every Delete.
func (m *Memory) SetFailDelete(fn func(userID, taskID string, day timeutil.Day) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete = fn
}

func (m *Memory) Fetch(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	hook := m.failFetch
	m.mu.Unlock()
	if hook != nil {
		if err := hook(userID, day); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(docKey{userID, day}), nil
}

func (m *Memory) Save(ctx context.Context, userID string, t task.Task, day timeutil.Day) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	hook := m.failSave
	m.mu.Unlock()
	if hook != nil {
		if err := hook(userID, t, day); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{userID, day}
	bucket, ok := m.docs[key]
	if !ok {
		bucket = make(map[string]task.Task)
		m.docs[key] = bucket
	}
	bucket[t.ID] = t.Clone()
	m.notifyLocked(key)
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID, taskID string, day timeutil.Day) error {
	if err := m.wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	hook := m.failDelete
	m.mu.Unlock()
	if hook != nil {
		if err := hook(userID, taskID, day); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := docKey{userID, day}
	if _, ok := m.docs[key][taskID]; !ok {
		return nil
	}
	delete(m.docs[key], taskID)
	m.notifyLocked(key)
	return nil
}

func (m *Memory) Listen(ctx context.Context, userID string, day timeutil.Day, onUpdate func([]task.Task)) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	lctx, cancel := context.WithCancel(context.Background())
	l := &memoryListener{
		handle: NewHandle(userID, day),
		queue:  make(chan []task.Task, 64),
		cancel: cancel,
	}

	m.mu.Lock()
	m.listeners[l.handle.ID] = l
	// Initial snapshot, delivered by the goroutine below like any other.
	l.queue <- m.snapshotLocked(docKey{userID, day})
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-lctx.Done():
				return
			case tasks := <-l.queue:
				if lctx.Err() != nil {
					return
				}
				onUpdate(tasks)
			}
		}
	}()
	return l.handle, nil
}

func (m *Memory) StopListening(h Handle) {
	m.mu.Lock()
	l, ok := m.listeners[h.ID]
	delete(m.listeners, h.ID)
	m.mu.Unlock()
	if ok {
		l.cancel()
	}
}

// Listeners reports the number of live subscriptions.
func (m *Memory) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Push delivers tasks to every listener of userID/day without storing them.
// It simulates a payload that raced with a local write.
func (m *Memory) Push(userID string, day timeutil.Day, tasks []task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listeners {
		if l.handle.UserID == userID && l.handle.Day == day {
			enqueue(l, task.CloneAll(tasks))
		}
	}
}

func (m *Memory) notifyLocked(key docKey) {
	var snapshot []task.Task
	for _, l := range m.listeners {
		if l.handle.UserID != key.user || l.handle.Day != key.day {
			continue
		}
		if snapshot == nil {
			snapshot = m.snapshotLocked(key)
		}
		enqueue(l, task.CloneAll(snapshot))
	}
}

// enqueue never blocks a writer: when a slow consumer fills its queue the
// oldest payload is dropped, which is safe because every payload is a full
// snapshot.
func enqueue(l *memoryListener, tasks []task.Task) {
	for {
		select {
		case l.queue <- tasks:
			return
		default:
		}
		select {
		case <-l.queue:
		default:
		}
	}
}

func (m *Memory) snapshotLocked(key docKey) []task.Task {
	bucket := m.docs[key]
	out := make([]task.Task, 0, len(bucket))
	for _, t := range bucket {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
