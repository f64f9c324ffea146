package tasklist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/repository"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

const user = "u1"

var (
	jan1 = timeutil.Date(2024, 1, 1)
	jan2 = timeutil.Date(2024, 1, 2)
	jan3 = timeutil.Date(2024, 1, 3)
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type evaluation struct {
	day   timeutil.Day
	count int
}

type recordingEvaluator struct {
	mu    sync.Mutex
	calls []evaluation
}

func (e *recordingEvaluator) EvaluateDay(day timeutil.Day, tasks []task.Task, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, evaluation{day: day, count: len(tasks)})
}

func (e *recordingEvaluator) last() (evaluation, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.calls) == 0 {
		return evaluation{}, 0
	}
	return e.calls[len(e.calls)-1], len(e.calls)
}

type recordingChallenges struct {
	mu        sync.Mutex
	completed map[string]bool
	deleted   []string
}

func (r *recordingChallenges) UpdateChallengeCompletion(id string, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed == nil {
		r.completed = make(map[string]bool)
	}
	r.completed[id] = done
}

func (r *recordingChallenges) HandleChallengeTaskDeleted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

type harness struct {
	c          *Coordinator
	repo       *repository.Repository
	remote     *remote.Memory
	cache      *cache.Memory
	metrics    *metrics.Sync
	evaluator  *recordingEvaluator
	challenges *recordingChallenges
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		remote:     remote.NewMemory(),
		cache:      cache.NewMemory(cache.Options{Radius: 3}),
		metrics:    metrics.New(prometheus.NewRegistry()),
		evaluator:  &recordingEvaluator{},
		challenges: &recordingChallenges{},
	}
	h.repo = repository.New(h.cache, h.remote, repository.Options{Metrics: h.metrics})
	cfg := Config{
		Repository: h.repo,
		Remote:     h.remote,
		Auth:       StaticUser(user),
		Evaluator:  h.evaluator,
		Challenges: h.challenges,
		Metrics:    h.metrics,
		Now:        func() time.Time { return jan1.At(12, 0) },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h.c = New(cfg)
	t.Cleanup(func() { _ = h.c.Close() })
	return h
}

func (h *harness) listenOn(t *testing.T, day timeutil.Day) {
	t.Helper()
	h.c.HandleDateChange(context.Background(), day)
	require.Eventually(t, func() bool {
		d, st := h.c.Session()
		return d == day && st == StateActive
	}, waitFor, tick)
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func assertNoDuplicates(t *testing.T, snap map[timeutil.Day][]task.Task) {
	t.Helper()
	seen := make(map[string]timeutil.Day)
	for day, tasks := range snap {
		for _, tk := range tasks {
			if prev, dup := seen[tk.ID]; dup {
				t.Fatalf("task %s in both %s and %s", tk.ID, prev, day)
			}
			seen[tk.ID] = day
		}
	}
}

func TestAddTaskIsOptimistic(t *testing.T) {
	h := newHarness(t)
	tk := task.New("Oats", jan1.At(8, 0))
	tk.Category = task.CategoryDiet
	tk.DietItems = []task.DietItem{{Name: "oats", Calories: 300}, {Name: "milk", Calories: 120}}

	added := h.c.AddTask(tk)

	require.Equal(t, []string{tk.ID}, ids(h.c.Tasks(jan1)))
	assert.Equal(t, 420, h.c.TodayCalories())
	ev, n := h.evaluator.last()
	require.Equal(t, 1, n, "day evaluation runs inside the mutation")
	assert.Equal(t, evaluation{day: jan1, count: 1}, ev)
	assert.Equal(t, tk.ID, added.ID)

	h.repo.Wait()
	got, err := h.remote.Fetch(context.Background(), user, jan1)
	require.NoError(t, err)
	assert.Equal(t, []string{tk.ID}, ids(got))
}

func TestAddTaskAssignsID(t *testing.T) {
	h := newHarness(t)
	added := h.c.AddTask(task.Task{Title: "No id", TimeDate: jan1.At(9, 0)})
	require.NotEmpty(t, added.ID)
	assert.Equal(t, []string{added.ID}, ids(h.c.Tasks(jan1)))
}

func TestNoDuplicationAcrossDays(t *testing.T) {
	h := newHarness(t)
	a := h.c.AddTask(task.New("a", jan1.At(8, 0)))
	b := h.c.AddTask(task.New("b", jan1.At(9, 0)))

	a2 := a.MoveTo(jan2)
	h.c.UpdateTask(a2, a)
	assertNoDuplicates(t, h.c.Snapshot())
	a3 := a2.MoveTo(jan3)
	h.c.UpdateTask(a3, a)
	assertNoDuplicates(t, h.c.Snapshot())
	// Re-adding a known id moves it rather than copying it.
	h.c.AddTask(b.MoveTo(jan3))
	assertNoDuplicates(t, h.c.Snapshot())
	h.c.RemoveTask(a3)
	assertNoDuplicates(t, h.c.Snapshot())

	assert.Empty(t, h.c.Tasks(jan1))
	assert.Equal(t, []string{b.ID}, ids(h.c.Tasks(jan3)))
	h.repo.Wait()
}

func TestCrossDateUpdate(t *testing.T) {
	h := newHarness(t)
	old := task.Task{ID: "7", Title: "Stretch", TimeDate: jan1.At(8, 0)}
	h.c.AddTask(old)
	h.repo.Wait()

	moved := old.MoveTo(jan3)
	h.c.UpdateTask(moved, old)

	assert.Empty(t, h.c.Tasks(jan1))
	got := h.c.Tasks(jan3)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, jan3, got[0].DateKey())
	onOld, _ := h.cache.Get(jan1)
	onNew, _ := h.cache.Get(jan3)
	assert.Empty(t, onOld, "cache moves synchronously")
	assert.Len(t, onNew, 1)

	h.repo.Wait()
	onOld, err := h.remote.Fetch(context.Background(), user, jan1)
	require.NoError(t, err)
	assert.Empty(t, onOld)
	onNew, err = h.remote.Fetch(context.Background(), user, jan3)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, ids(onNew))
}

func TestUpdateRollsBackWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	old := task.Task{ID: "7", Title: "Stretch", TimeDate: jan1.At(8, 0)}
	h.c.AddTask(old)
	h.repo.Wait()
	h.remote.SetFailSave(func(string, task.Task, timeutil.Day) error { return errors.New("offline") })

	h.c.UpdateTask(old.MoveTo(jan3), old)
	require.Len(t, h.c.Tasks(jan3), 1, "applied optimistically")

	require.Eventually(t, func() bool {
		return len(h.c.Tasks(jan3)) == 0 && len(h.c.Tasks(jan1)) == 1
	}, waitFor, tick)
	restored := h.c.Tasks(jan1)[0]
	assert.True(t, restored.Equivalent(old))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Rollbacks))
}

func TestRollbackRestoresChallengeCompletion(t *testing.T) {
	h := newHarness(t)
	old := task.New("Challenge", jan1.At(8, 0))
	old.IsDailyChallenge = true
	h.c.AddTask(old)
	h.repo.Wait()
	h.remote.SetFailSave(func(string, task.Task, timeutil.Day) error { return errors.New("offline") })

	_, ok := h.c.ToggleCompletion(old.ID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		got := h.c.Tasks(jan1)
		return len(got) == 1 && !got[0].IsCompleted
	}, waitFor, tick)

	h.challenges.mu.Lock()
	defer h.challenges.mu.Unlock()
	assert.False(t, h.challenges.completed[old.ID], "inverse completion reported on rollback")
}

func TestRollbackSkippedWhenTaskDeleted(t *testing.T) {
	h := newHarness(t)
	old := task.New("Walk", jan1.At(18, 0))
	h.c.AddTask(old)
	h.repo.Wait()

	release := make(chan struct{})
	h.remote.SetFailSave(func(string, task.Task, timeutil.Day) error {
		<-release
		return errors.New("offline")
	})
	moved := old.MoveTo(jan3)
	h.c.UpdateTask(moved, old)
	h.c.RemoveTask(moved)
	close(release)
	h.repo.Wait()

	// Give a late rollback the chance to run.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.c.Snapshot())
	assert.Zero(t, testutil.ToFloat64(h.metrics.Rollbacks))
}

func TestCleanupFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	old := task.New("Swim", jan1.At(7, 0))
	h.c.AddTask(old)
	h.repo.Wait()
	h.remote.SetFailDelete(func(string, string, timeutil.Day) error { return errors.New("offline") })

	h.c.UpdateTask(old.MoveTo(jan3), old)
	h.repo.Wait()
	time.Sleep(20 * time.Millisecond)

	assert.Len(t, h.c.Tasks(jan3), 1)
	assert.Empty(t, h.c.Tasks(jan1))
	assert.Zero(t, testutil.ToFloat64(h.metrics.Rollbacks))
}

func TestFlickerSuppression(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	x := h.c.AddTask(task.New("X", jan1.At(10, 0)))
	h.repo.Wait()

	release := make(chan struct{})
	h.remote.SetFailDelete(func(string, string, timeutil.Day) error {
		<-release
		return errors.New("offline")
	})
	h.c.RemoveTask(x)
	require.Equal(t, []string{x.ID}, h.c.PendingDeletions())

	// A stale snapshot still holding X must not bring it back.
	h.remote.Push(user, jan1, []task.Task{x})
	time.Sleep(3 * DefaultDebounce)
	assert.Empty(t, h.c.Tasks(jan1))
	assert.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.FlickerSuppressed), 1.0)

	// The delete fails, so the pending entry clears and X is still remote.
	close(release)
	require.Eventually(t, func() bool { return len(h.c.PendingDeletions()) == 0 }, waitFor, tick)
	h.remote.Push(user, jan1, []task.Task{x})
	require.Eventually(t, func() bool { return len(h.c.Tasks(jan1)) == 1 }, waitFor, tick)
}

func TestPendingDeletionTimesOut(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.DeletionTimeout = 50 * time.Millisecond })
	x := h.c.AddTask(task.New("X", jan1.At(10, 0)))
	h.repo.Wait()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h.remote.SetFailDelete(func(string, string, timeutil.Day) error {
		<-release
		return nil
	})
	h.c.RemoveTask(x)
	require.Len(t, h.c.PendingDeletions(), 1)
	require.Eventually(t, func() bool { return len(h.c.PendingDeletions()) == 0 }, waitFor, tick)
}

func TestNewerDeletionOutlivesOlderTimer(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.DeletionTimeout = 200 * time.Millisecond })
	x := h.c.AddTask(task.New("X", jan1.At(10, 0)))
	h.repo.Wait()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	h.remote.SetFailDelete(func(string, string, timeutil.Day) error {
		<-release
		return nil
	})
	h.c.RemoveTask(x)
	time.Sleep(120 * time.Millisecond)
	h.c.AddTask(x)
	h.c.RemoveTask(x)
	// The first timer would have fired by now; the second still holds.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []string{x.ID}, h.c.PendingDeletions())
}

func TestDebounceCollapsesBursts(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	time.Sleep(2 * DefaultDebounce)
	base := testutil.ToFloat64(h.metrics.Reconciliations)

	p1 := []task.Task{{ID: "a", Title: "one", TimeDate: jan1.At(8, 0)}}
	p2 := append(task.CloneAll(p1), task.Task{ID: "b", Title: "two", TimeDate: jan1.At(9, 0)})
	p3 := append(task.CloneAll(p2), task.Task{ID: "c", Title: "three", TimeDate: jan1.At(10, 0)})
	h.remote.Push(user, jan1, p1)
	time.Sleep(10 * time.Millisecond)
	h.remote.Push(user, jan1, p2)
	time.Sleep(10 * time.Millisecond)
	h.remote.Push(user, jan1, p3)

	require.Eventually(t, func() bool { return len(h.c.Tasks(jan1)) == 3 }, waitFor, tick)
	time.Sleep(2 * DefaultDebounce)
	assert.Equal(t, base+1, testutil.ToFloat64(h.metrics.Reconciliations))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(h.c.Tasks(jan1)))
}

func TestIdempotentReconciliation(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	time.Sleep(2 * DefaultDebounce)
	base := testutil.ToFloat64(h.metrics.Reconciliations)

	payload := []task.Task{{ID: "a", Title: "one", TimeDate: jan1.At(8, 0)}}
	h.remote.Push(user, jan1, payload)
	require.Eventually(t, func() bool { return len(h.c.Tasks(jan1)) == 1 }, waitFor, tick)
	h.remote.Push(user, jan1, payload)
	time.Sleep(3 * DefaultDebounce)

	assert.Equal(t, base+1, testutil.ToFloat64(h.metrics.Reconciliations))
	assert.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.SkippedReconciles), 1.0)
}

func TestReconcileMovesTaskFromOtherBucket(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	a := task.Task{ID: "a", Title: "moved elsewhere", TimeDate: jan2.At(8, 0)}
	h.c.AddTask(a)
	h.repo.Wait()

	h.remote.Push(user, jan1, []task.Task{a.MoveTo(jan1)})
	require.Eventually(t, func() bool { return len(h.c.Tasks(jan1)) == 1 }, waitFor, tick)
	assert.Empty(t, h.c.Tasks(jan2))
	assertNoDuplicates(t, h.c.Snapshot())
}

// capturingRemote keeps every listener callback so a test can invoke one
// after its session was torn down.
type capturingRemote struct {
	*remote.Memory
	mu        sync.Mutex
	callbacks map[timeutil.Day]func([]task.Task)
}

func (r *capturingRemote) Listen(ctx context.Context, userID string, day timeutil.Day, onUpdate func([]task.Task)) (remote.Handle, error) {
	r.mu.Lock()
	r.callbacks[day] = onUpdate
	r.mu.Unlock()
	return r.Memory.Listen(ctx, userID, day, onUpdate)
}

func (r *capturingRemote) callback(day timeutil.Day) func([]task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callbacks[day]
}

func TestStaleCallbackIsDropped(t *testing.T) {
	capture := &capturingRemote{Memory: remote.NewMemory(), callbacks: make(map[timeutil.Day]func([]task.Task))}
	h := newHarness(t, func(c *Config) { c.Remote = capture })
	h.remote = capture.Memory

	h.listenOn(t, jan1)
	h.listenOn(t, jan2)
	assert.Equal(t, 1, capture.Listeners(), "previous session unsubscribed")

	before := testutil.ToFloat64(h.metrics.StaleCallbacks)
	stale := capture.callback(jan1)
	require.NotNil(t, stale)
	stale([]task.Task{{ID: "ghost", Title: "late", TimeDate: jan1.At(8, 0)}})
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.StaleCallbacks) > before
	}, waitFor, tick)
	time.Sleep(2 * DefaultDebounce)
	assert.Empty(t, h.c.Tasks(jan1))
}

func TestHandleDateChangeSameDayKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	h.c.HandleDateChange(context.Background(), jan1)
	d, st := h.c.Session()
	assert.Equal(t, jan1, d)
	assert.Equal(t, StateActive, st)
	assert.Equal(t, 1, h.remote.Listeners())
	assert.Equal(t, jan1, h.c.SelectedDay())
}

// staleLoadRepo answers LoadTasks with a fixed, outdated result.
type staleLoadRepo struct {
	*repository.Repository
	stale []task.Task
}

func (r staleLoadRepo) LoadTasks(context.Context, string, timeutil.Day) ([]task.Task, error) {
	return task.CloneAll(r.stale), nil
}

func TestHandleDateChangeHydratesWithoutClobbering(t *testing.T) {
	stored := task.Task{ID: "a", Title: "stored", TimeDate: jan1.At(8, 0)}
	other := task.Task{ID: "b", Title: "other", TimeDate: jan1.At(9, 0)}
	h := newHarness(t, func(c *Config) {
		c.Repository = staleLoadRepo{Repository: c.Repository.(*repository.Repository), stale: []task.Task{stored, other}}
	})

	local := stored
	local.Title = "edited locally"
	h.c.AddTask(local)
	h.c.AddTask(other)
	h.repo.Wait()

	h.c.HandleDateChange(context.Background(), jan1)
	got := h.c.Tasks(jan1)
	require.Len(t, got, 2)
	assert.Equal(t, "edited locally", got[task.IndexOf(got, "a")].Title)
}

func TestHydrateWindow(t *testing.T) {
	h := newHarness(t)
	h.repo.SaveTask(user, task.New("a", jan1.At(8, 0)), jan1, false, nil)
	h.repo.SaveTask(user, task.New("b", jan3.At(8, 0)), jan3, false, nil)
	h.repo.Wait()

	w := h.c.HydrateWindow(jan2)
	assert.True(t, w.Contains(jan1))
	snap := h.c.Snapshot()
	assert.Len(t, snap[jan1], 1)
	assert.Len(t, snap[jan3], 1)
}

func TestChallengeHooks(t *testing.T) {
	h := newHarness(t)
	ch := task.New("10k steps", jan1.At(20, 0))
	ch.IsDailyChallenge = true
	h.c.AddTask(ch)

	toggled, ok := h.c.ToggleCompletion(ch.ID)
	require.True(t, ok)
	assert.True(t, toggled.IsCompleted)
	h.c.RemoveTask(toggled)
	h.repo.Wait()

	h.challenges.mu.Lock()
	defer h.challenges.mu.Unlock()
	assert.True(t, h.challenges.completed[ch.ID])
	assert.Equal(t, []string{ch.ID}, h.challenges.deleted)
}

func TestSignedOutIsNoop(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Auth = StaticUser("") })
	h.c.HandleDateChange(context.Background(), jan1)
	h.c.AddTask(task.New("ignored", jan1.At(8, 0)))
	h.repo.Wait()

	assert.Empty(t, h.c.Snapshot())
	_, st := h.c.Session()
	assert.Equal(t, StateIdle, st)
	assert.Zero(t, h.remote.Listeners())
}

func TestConsumeNotifications(t *testing.T) {
	h := newHarness(t)
	ch := make(chan task.Task, 2)
	ch <- task.New("reminder 1", jan1.At(8, 0))
	ch <- task.New("reminder 2", jan1.At(9, 0))
	close(ch)

	h.c.ConsumeNotifications(context.Background(), ch)
	assert.Len(t, h.c.Tasks(jan1), 2)
}

func TestChangesAreEmitted(t *testing.T) {
	h := newHarness(t)
	tk := h.c.AddTask(task.New("a", jan1.At(8, 0)))
	select {
	case ch := <-h.c.Changes():
		assert.Equal(t, Change{Kind: ChangeAdded, Day: jan1, TaskID: tk.ID}, ch)
	case <-time.After(waitFor):
		t.Fatal("no change emitted")
	}
}

func TestCloseReleasesListener(t *testing.T) {
	h := newHarness(t)
	h.listenOn(t, jan1)
	require.NoError(t, h.c.Close())
	require.NoError(t, h.c.Close())
	assert.Zero(t, h.remote.Listeners())
	assert.Empty(t, h.c.Tasks(jan1), "reads after close return nothing")
}

func TestMidnightReevaluatesSelectedDay(t *testing.T) {
	almostMidnight := jan1.At(23, 59).Add(59*time.Second + 950*time.Millisecond)
	h := newHarness(t, func(c *Config) {
		c.Now = func() time.Time { return almostMidnight }
	})
	h.listenOn(t, jan1)
	_, before := h.evaluator.last()

	// The clock never advances, so every settlement schedules the next one
	// 50ms later.
	require.Eventually(t, func() bool {
		last, n := h.evaluator.last()
		return n >= before+2 && last.day == jan1
	}, waitFor, tick)
}
