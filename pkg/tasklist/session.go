package tasklist

import (
	"context"
	"time"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/metrics"
	"tableflip.dev/daylog/pkg/remote"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// SessionState is the lifecycle of the listener subscription.
type SessionState int

const (
	StateIdle SessionState = iota
	StateStarting
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

type session struct {
	day    timeutil.Day
	user   string
	handle remote.Handle
	state  SessionState
	// gen changes on every start and teardown; callbacks and timers carry
	// the gen they were created under.
	gen uint64
	// early holds the newest payload that arrived while Starting.
	early []task.Task
}

// HandleDateChange selects day: the listener moves to it, the midnight timer
// is rescheduled, and the day's tasks are loaded and merged into the
// projection without overwriting anything already there.
func (c *Coordinator) HandleDateChange(ctx context.Context, day timeutil.Day) {
	var (
		user string
		ok   bool
	)
	if !c.call(func() {
		c.selected = day
		c.scheduleMidnight()
		c.emit(Change{Kind: ChangeDayChanged, Day: day})
		user, ok = c.userID()
		if !ok {
			c.log.Info("no signed-in user, not syncing", "day", day)
			c.teardownSession()
			c.recompute()
			return
		}
		c.startSession(user, day)
	}) || !ok {
		return
	}

	tasks, err := c.repo.LoadTasks(ctx, user, day)
	if err != nil {
		c.log.Warn("load tasks failed", "day", day, "err", err)
		return
	}
	c.call(func() {
		if c.merge(day, tasks) {
			c.emit(Change{Kind: ChangeHydrated, Day: day})
		}
		c.recompute(day)
	})
}

// HydrateWindow merges every cached bucket of the window around pivot into
// the projection.
func (c *Coordinator) HydrateWindow(pivot timeutil.Day) cache.Window {
	w, all := c.repo.CachedWindow(pivot)
	c.call(func() {
		days := make([]timeutil.Day, 0, len(all))
		for day, tasks := range all {
			if c.merge(day, tasks) {
				c.emit(Change{Kind: ChangeHydrated, Day: day})
				days = append(days, day)
			}
		}
		c.recompute(days...)
	})
	return w
}

// merge adds loaded tasks that the projection does not know about yet.
func (c *Coordinator) merge(day timeutil.Day, loaded []task.Task) bool {
	changed := false
	for _, t := range loaded {
		if _, deleting := c.pending[t.ID]; deleting {
			continue
		}
		if _, _, found := c.locate(t.ID); found {
			continue
		}
		c.tasks[day] = append(c.tasks[day], t.Clone())
		changed = true
	}
	return changed
}

func (c *Coordinator) startSession(user string, day timeutil.Day) {
	s := c.session
	if s.day == day && s.user == user && (s.state == StateActive || s.state == StateStarting) {
		return
	}
	c.teardownSession()
	c.session.gen++
	gen := c.session.gen
	c.session.day, c.session.user, c.session.state = day, user, StateStarting

	go func() {
		h, err := c.remote.Listen(context.Background(), user, day, func(tasks []task.Task) {
			c.post(func() { c.onPayload(gen, day, tasks) })
		})
		if !c.post(func() { c.onListening(gen, h, err) }) && err == nil {
			c.remote.StopListening(h)
		}
	}()
}

func (c *Coordinator) onListening(gen uint64, h remote.Handle, err error) {
	if err != nil {
		c.metrics.RemoteFailed(metrics.OpListen)
		c.log.Warn("listen failed", "day", c.session.day, "err", err)
		if gen == c.session.gen && c.session.state == StateStarting {
			c.session.state = StateIdle
		}
		return
	}
	if gen != c.session.gen || c.session.state != StateStarting {
		// Superseded while subscribing.
		c.remote.StopListening(h)
		return
	}
	c.session.handle = h
	c.session.state = StateActive
	c.log.Debug("listening", "day", c.session.day, "handle", h.ID)
	if early := c.session.early; early != nil {
		c.session.early = nil
		c.accept(gen, c.session.day, early)
	}
}

func (c *Coordinator) onPayload(gen uint64, day timeutil.Day, tasks []task.Task) {
	if gen != c.session.gen || day != c.session.day {
		c.metrics.Stale()
		c.log.Debug("dropping stale listener payload", "day", day)
		return
	}
	switch c.session.state {
	case StateStarting:
		c.session.early = tasks
	case StateActive:
		c.accept(gen, day, tasks)
	default:
		c.metrics.Stale()
	}
}

// accept restarts the debounce timer with the newest payload.
func (c *Coordinator) accept(gen uint64, day timeutil.Day, tasks []task.Task) {
	if c.debounce != nil {
		c.debounce.Stop()
		c.metrics.Debounced()
	}
	c.debounceGen++
	dg := c.debounceGen
	c.debounce = time.AfterFunc(c.debounceDelay, func() {
		c.post(func() {
			if dg != c.debounceGen || gen != c.session.gen || c.session.state != StateActive {
				return
			}
			c.debounce = nil
			c.reconcile(day, tasks)
		})
	})
}

func (c *Coordinator) teardownSession() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.debounceGen++
	if c.session.state == StateActive && !c.session.handle.IsZero() {
		c.remote.StopListening(c.session.handle)
	}
	// A subscription still Starting is stopped by onListening once the gen
	// no longer matches.
	c.session = session{gen: c.session.gen + 1}
}

// reconcile applies an authoritative payload for day.
func (c *Coordinator) reconcile(day timeutil.Day, incoming []task.Task) {
	current := c.tasks[day]
	if task.SameSet(incoming, current) {
		c.metrics.Skipped()
		return
	}
	filtered := make([]task.Task, 0, len(incoming))
	suppressed := 0
	for _, t := range incoming {
		if _, deleting := c.pending[t.ID]; deleting {
			suppressed++
			continue
		}
		filtered = append(filtered, t.Clone())
	}
	c.metrics.Suppressed(suppressed)
	if suppressed > 0 && task.SameSet(filtered, current) {
		c.metrics.Skipped()
		return
	}

	if err := c.repo.StoreBucket(day, filtered); err != nil {
		c.log.Warn("cache write failed", "day", day, "err", err)
	}
	touched := []timeutil.Day{day}
	for _, t := range filtered {
		touched = append(touched, c.removeEverywhere(t.ID, day)...)
	}
	c.tasks[day] = filtered
	c.recompute(touched...)
	c.metrics.Reconciled()
	c.emit(Change{Kind: ChangeReconciled, Day: day})
}

func (c *Coordinator) scheduleMidnight() {
	if c.midnight != nil {
		c.midnight.Stop()
	}
	now := c.now()
	var t *time.Timer
	t = time.AfterFunc(timeutil.NextMidnight(now).Sub(now), func() {
		c.post(func() {
			if c.midnight == t {
				c.settleMidnight()
			}
		})
	})
	c.midnight = t
}

// settleMidnight re-evaluates the selected day once the calendar day rolls
// over and refreshes today's totals.
func (c *Coordinator) settleMidnight() {
	c.midnight = nil
	if c.selected.IsZero() {
		return
	}
	c.recompute(c.selected)
	c.scheduleMidnight()
}
