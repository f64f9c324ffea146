package tasklist

import (
	"time"

	"tableflip.dev/daylog/pkg/repository"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// AddTask inserts t into its day and persists it. A missing id is assigned.
// The returned task carries the id.
func (c *Coordinator) AddTask(t task.Task) task.Task {
	if t.ID == "" {
		t.ID = task.NewID()
	}
	c.call(func() { c.add(t) })
	return t
}

func (c *Coordinator) add(t task.Task) {
	user, ok := c.userID()
	if !ok {
		c.log.Info("no signed-in user, add skipped", "id", t.ID)
		return
	}
	day := t.DateKey()
	c.recompute(c.place(t)...)
	c.emit(Change{Kind: ChangeAdded, Day: day, TaskID: t.ID})

	id := t.ID
	c.repo.SaveTask(user, t.Clone(), day, c.syncToCloud, func(err error) {
		if err != nil {
			c.log.Warn("add not synced", "id", id, "day", day, "err", err)
		}
	})
}

// UpdateTask replaces oldT with newT, moving it between days when the
// scheduled date changed. If the remote save fails the move is undone.
func (c *Coordinator) UpdateTask(newT, oldT task.Task) {
	c.call(func() { c.update(newT, oldT) })
}

// ToggleCompletion flips the completion flag of id.
func (c *Coordinator) ToggleCompletion(id string) (task.Task, bool) {
	var (
		out task.Task
		ok  bool
	)
	c.call(func() {
		day, i, found := c.locate(id)
		if !found {
			return
		}
		old := c.tasks[day][i].Clone()
		next := old.Clone()
		next.IsCompleted = !next.IsCompleted
		if c.update(next, old) {
			out, ok = next, true
		}
	})
	return out, ok
}

func (c *Coordinator) update(newT, oldT task.Task) bool {
	user, ok := c.userID()
	if !ok {
		c.log.Info("no signed-in user, update skipped", "id", oldT.ID)
		return false
	}
	if newT.ID == "" {
		newT.ID = oldT.ID
	}
	if newT.ID != oldT.ID {
		c.log.Warn("update cannot change a task id", "old", oldT.ID, "new", newT.ID)
		return false
	}

	touched := append(c.place(newT), oldT.DateKey())
	c.recompute(touched...)
	if newT.IsCompleted != oldT.IsCompleted {
		c.challenges.UpdateChallengeCompletion(newT.ID, newT.IsCompleted)
	}
	c.emit(Change{Kind: ChangeUpdated, Day: newT.DateKey(), TaskID: newT.ID})

	newT, oldT = newT.Clone(), oldT.Clone()
	c.repo.UpdateTask(user, newT, oldT, c.syncToCloud, func(err error) {
		if err == nil {
			return
		}
		if repository.IsCleanupFailure(err) {
			c.log.Warn("update saved but old copy not removed", "id", oldT.ID, "day", oldT.DateKey(), "err", err)
			return
		}
		c.post(func() { c.rollback(newT, oldT, err) })
	})
	return true
}

// rollback restores oldT unless the task was deleted or changed again since
// the failed update.
func (c *Coordinator) rollback(newT, oldT task.Task, cause error) {
	if _, deleting := c.pending[newT.ID]; deleting {
		c.log.Info("rollback skipped, task deleted", "id", newT.ID)
		return
	}
	day, i, found := c.locate(newT.ID)
	if !found {
		c.log.Info("rollback skipped, task deleted", "id", newT.ID)
		return
	}
	if day != newT.DateKey() || !c.tasks[day][i].Equivalent(newT) {
		c.log.Info("rollback skipped, task changed since", "id", newT.ID)
		return
	}

	touched := append(c.place(oldT), day)
	c.recompute(touched...)
	if newT.IsCompleted != oldT.IsCompleted {
		c.challenges.UpdateChallengeCompletion(oldT.ID, oldT.IsCompleted)
	}
	c.metrics.RolledBack()
	c.log.Warn("update rolled back", "id", oldT.ID, "day", oldT.DateKey(), "err", cause)
	c.emit(Change{Kind: ChangeRolledBack, Day: oldT.DateKey(), TaskID: oldT.ID})
}

// RemoveTask deletes t. Until the delete settles, or DeletionTimeout
// passes, listener payloads that still contain t are filtered.
func (c *Coordinator) RemoveTask(t task.Task) {
	c.call(func() { c.remove(t, nil) })
}

// remove reports whether a delete was issued; done, when non-nil, then
// receives its outcome.
func (c *Coordinator) remove(t task.Task, done func(error)) bool {
	user, ok := c.userID()
	if !ok {
		c.log.Info("no signed-in user, remove skipped", "id", t.ID)
		return false
	}
	id := t.ID
	day := t.DateKey()
	if d, i, found := c.locate(id); found {
		day = d
		t = c.tasks[d][i]
	}

	c.pendingSeq++
	token := c.pendingSeq
	c.pending[id] = token
	if prev := c.pendingTimers[id]; prev != nil {
		prev.Stop()
	}
	c.pendingTimers[id] = time.AfterFunc(c.deletionTimeout, func() {
		c.post(func() { c.clearPending(id, token) })
	})

	touched := append(c.removeEverywhere(id, timeutil.Day{}), day)
	c.recompute(touched...)
	if t.IsDailyChallenge {
		c.challenges.HandleChallengeTaskDeleted(id)
	}
	c.emit(Change{Kind: ChangeRemoved, Day: day, TaskID: id})

	c.repo.DeleteTask(user, id, day, c.syncToCloud, func(err error) {
		if err != nil {
			c.log.Warn("delete not synced", "id", id, "day", day, "err", err)
		}
		c.post(func() { c.clearPending(id, token) })
		if done != nil {
			done(err)
		}
	})
	return true
}

func (c *Coordinator) clearPending(id string, token uint64) {
	if c.pending[id] != token {
		return
	}
	delete(c.pending, id)
	if t := c.pendingTimers[id]; t != nil {
		t.Stop()
		delete(c.pendingTimers, id)
	}
}
