// Package tasklist owns the in-memory, day-keyed projection of a user's tasks.
//
// A Coordinator applies user mutations optimistically, persists them through
// a Repository, keeps one remote listener subscribed to the selected day and
// reconciles its payloads back into the projection. All state is owned by a
// single goroutine; public methods hand it a closure and wait for it to run,
// so a mutation is visible to readers as soon as the method returns.
package tasklist

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

const (
	// DefaultDebounce is the quiet period before a listener payload is
	// reconciled.
	DefaultDebounce = 100 * time.Millisecond
	// DefaultDeletionTimeout bounds how long a deleted id suppresses
	// listener payloads when the delete never completes.
	DefaultDeletionTimeout = 10 * time.Second
)

// ErrClosed is returned by operations on a closed Coordinator.
var ErrClosed = errors.New("tasklist: coordinator closed")

// Config wires a Coordinator. Repository and Remote are required.
type Config struct {
	Repository Repository
	Remote     remote.Client
	Auth       Auth
	Evaluator  DayEvaluator
	Challenges ChallengeService
	Generator  Generator
	Logger     *slog.Logger
	Metrics    *metrics.Sync

	Debounce        time.Duration
	DeletionTimeout time.Duration
	// Offline keeps writes in the local cache only.
	Offline bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator is the task list view-model.
type Coordinator struct {
	repo       Repository
	remote     remote.Client
	auth       Auth
	evaluator  DayEvaluator
	challenges ChallengeService
	generator  Generator
	log        *slog.Logger
	metrics    *metrics.Sync

	debounceDelay   time.Duration
	deletionTimeout time.Duration
	syncToCloud     bool
	now             func() time.Time

	mailbox   chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	changes   chan Change

	// Owned by the run goroutine.
	tasks         map[timeutil.Day][]task.Task
	selected      timeutil.Day
	session       session
	debounce      *time.Timer
	debounceGen   uint64
	pending       map[string]uint64
	pendingTimers map[string]*time.Timer
	pendingSeq    uint64
	replacing     map[string]struct{}
	todayCalories int
	midnight      *time.Timer
}

// New starts a Coordinator. Call Close to release it.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		repo:            cfg.Repository,
		remote:          cfg.Remote,
		auth:            cfg.Auth,
		evaluator:       cfg.Evaluator,
		challenges:      cfg.Challenges,
		generator:       cfg.Generator,
		log:             cfg.Logger,
		metrics:         cfg.Metrics,
		debounceDelay:   cfg.Debounce,
		deletionTimeout: cfg.DeletionTimeout,
		syncToCloud:     !cfg.Offline,
		now:             cfg.Now,

		mailbox: make(chan func(), 64),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		changes: make(chan Change, 64),

		tasks:         make(map[timeutil.Day][]task.Task),
		pending:       make(map[string]uint64),
		pendingTimers: make(map[string]*time.Timer),
		replacing:     make(map[string]struct{}),
	}
	if c.auth == nil {
		c.auth = StaticUser("")
	}
	if c.evaluator == nil {
		c.evaluator = nopEvaluator{}
	}
	if c.challenges == nil {
		c.challenges = nopChallenges{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "tasklist")
	if c.debounceDelay <= 0 {
		c.debounceDelay = DefaultDebounce
	}
	if c.deletionTimeout <= 0 {
		c.deletionTimeout = DefaultDeletionTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	defer close(c.stopped)
	for {
		select {
		case fn := <-c.mailbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// call runs fn on the owner goroutine and waits for it. It reports false if
// the coordinator closed first.
func (c *Coordinator) call(fn func()) bool {
	done := make(chan struct{})
	select {
	case c.mailbox <- func() { fn(); close(done) }:
	case <-c.quit:
		return false
	}
	select {
	case <-done:
		return true
	case <-c.stopped:
		return false
	}
}

// post queues fn without waiting. Used by timers, listeners and repository
// completions; it must never be called from the owner goroutine. It reports
// false once the coordinator is closed.
func (c *Coordinator) post(fn func()) bool {
	select {
	case c.mailbox <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// Close tears down the listener and every timer, then stops the owner
// goroutine. Background repository calls already issued keep running.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.call(func() {
			c.teardownSession()
			if c.midnight != nil {
				c.midnight.Stop()
				c.midnight = nil
			}
			for id, t := range c.pendingTimers {
				t.Stop()
				delete(c.pendingTimers, id)
			}
		})
		close(c.quit)
		<-c.stopped
	})
	return nil
}

// Changes streams projection changes. Delivery is best effort.
func (c *Coordinator) Changes() <-chan Change {
	return c.changes
}

// Tasks returns the tasks of day in display order.
func (c *Coordinator) Tasks(day timeutil.Day) []task.Task {
	var out []task.Task
	c.call(func() {
		out = task.CloneAll(c.tasks[day])
	})
	task.SortForDisplay(out)
	return out
}

// Snapshot copies the whole projection.
func (c *Coordinator) Snapshot() map[timeutil.Day][]task.Task {
	out := make(map[timeutil.Day][]task.Task)
	c.call(func() {
		for day, tasks := range c.tasks {
			if len(tasks) > 0 {
				out[day] = task.CloneAll(tasks)
			}
		}
	})
	return out
}

// TodayCalories is the calorie total of today's tasks.
func (c *Coordinator) TodayCalories() int {
	var n int
	c.call(func() { n = c.todayCalories })
	return n
}

// Replacing lists the ids being replaced by a generation run.
func (c *Coordinator) Replacing() []string {
	var out []string
	c.call(func() { out = sortedKeys(c.replacing) })
	return out
}

// PendingDeletions lists the ids whose deletes have not settled.
func (c *Coordinator) PendingDeletions() []string {
	var out []string
	c.call(func() {
		for id := range c.pending {
			out = append(out, id)
		}
	})
	sort.Strings(out)
	return out
}

// SelectedDay is the day last passed to HandleDateChange.
func (c *Coordinator) SelectedDay() timeutil.Day {
	var d timeutil.Day
	c.call(func() { d = c.selected })
	return d
}

// Session reports the listener day and state.
func (c *Coordinator) Session() (timeutil.Day, SessionState) {
	var (
		d  timeutil.Day
		st SessionState
	)
	c.call(func() { d, st = c.session.day, c.session.state })
	return d, st
}

func (c *Coordinator) userID() (string, bool) {
	id, ok := c.auth.CurrentUserID()
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// locate finds the bucket holding id.
func (c *Coordinator) locate(id string) (timeutil.Day, int, bool) {
	for day, tasks := range c.tasks {
		if i := task.IndexOf(tasks, id); i >= 0 {
			return day, i, true
		}
	}
	return timeutil.Day{}, -1, false
}

// removeEverywhere drops id from every bucket except keep, returning the
// days it was removed from.
func (c *Coordinator) removeEverywhere(id string, keep timeutil.Day) []timeutil.Day {
	var days []timeutil.Day
	for day, tasks := range c.tasks {
		if day == keep {
			continue
		}
		if i := task.IndexOf(tasks, id); i >= 0 {
			c.tasks[day] = append(tasks[:i:i], tasks[i+1:]...)
			days = append(days, day)
		}
	}
	return days
}

// place moves t into its own day bucket, removing any other copy.
func (c *Coordinator) place(t task.Task) []timeutil.Day {
	day := t.DateKey()
	touched := append(c.removeEverywhere(t.ID, day), day)
	bucket := c.tasks[day]
	if i := task.IndexOf(bucket, t.ID); i >= 0 {
		bucket[i] = t.Clone()
	} else {
		c.tasks[day] = append(bucket, t.Clone())
	}
	return touched
}

// recompute refreshes derived state after a mutation of days.
func (c *Coordinator) recompute(days ...timeutil.Day) {
	today := timeutil.DayOf(c.now())
	c.todayCalories = task.TotalCalories(c.tasks[today])
	user, ok := c.userID()
	if !ok {
		return
	}
	seen := make(map[timeutil.Day]struct{}, len(days))
	for _, day := range days {
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		c.evaluator.EvaluateDay(day, task.CloneAll(c.tasks[day]), user)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
