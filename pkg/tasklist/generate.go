package tasklist

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// GenerateTasks fills day with generated tasks. An empty day gets a full
// batch. A day that already holds generated tasks has them deleted, waits
// for those deletes to settle, then gets a full batch. Otherwise only the
// categories the day lacks are generated.
func (c *Coordinator) GenerateTasks(ctx context.Context, day timeutil.Day) error {
	if c.generator == nil {
		return errors.New("tasklist: no generator configured")
	}
	var (
		existing []task.Task
		signedIn bool
	)
	if !c.call(func() {
		existing = task.CloneAll(c.tasks[day])
		_, signedIn = c.userID()
	}) {
		return ErrClosed
	}
	if !signedIn {
		c.log.Info("no signed-in user, generation skipped", "day", day)
		return nil
	}

	var generated []task.Task
	for _, t := range existing {
		if t.IsAIGenerated {
			generated = append(generated, t)
		}
	}

	categories := task.AllCategories()
	switch {
	case len(existing) == 0:
	case len(generated) > 0:
		if err := c.replace(generated); err != nil {
			return err
		}
	default:
		categories = missingCategories(existing)
		if len(categories) == 0 {
			return nil
		}
	}

	batch, err := c.generator.Generate(ctx, day, categories)
	if err != nil {
		return fmt.Errorf("tasklist: generate %s: %w", day, err)
	}
	for _, t := range batch {
		t.ID = ""
		t.IsAIGenerated = true
		if t.TimeDate.IsZero() {
			t.TimeDate = day.At(9, 0)
		} else if t.DateKey() != day {
			t = t.MoveTo(day)
		}
		c.AddTask(t)
	}
	return nil
}

// replace marks old as replacing, deletes each and waits for every delete
// to complete before clearing the mark.
func (c *Coordinator) replace(old []task.Task) error {
	day := old[0].DateKey()
	if !c.call(func() {
		for _, t := range old {
			c.replacing[t.ID] = struct{}{}
		}
		c.emit(Change{Kind: ChangeReplacing, Day: day})
	}) {
		return ErrClosed
	}
	defer c.call(func() {
		for _, t := range old {
			delete(c.replacing, t.ID)
		}
		c.emit(Change{Kind: ChangeReplacing, Day: day})
	})

	var g errgroup.Group
	for _, t := range old {
		t := t
		g.Go(func() error {
			res := make(chan error, 1)
			issued := false
			if !c.call(func() { issued = c.remove(t, func(err error) { res <- err }) }) {
				return ErrClosed
			}
			if !issued {
				return nil
			}
			return <-res
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		// The local copies are gone; the remote ones reconverge through the
		// listener.
		c.log.Warn("replaced task not deleted remotely", "day", day, "err", err)
	}
	return nil
}

func missingCategories(existing []task.Task) []task.Category {
	have := make(map[task.Category]bool, len(existing))
	for _, t := range existing {
		cat := t.Category
		if cat == "" {
			cat = task.CategoryGeneric
		}
		have[cat] = true
	}
	var out []task.Category
	for _, cat := range task.AllCategories() {
		if !have[cat] {
			out = append(out, cat)
		}
	}
	return out
}

// HandleNotification adds a task delivered by a fired notification.
func (c *Coordinator) HandleNotification(t task.Task) {
	c.AddTask(t)
}

// ConsumeNotifications feeds every task from ch into HandleNotification
// until ctx is done or ch is closed.
func (c *Coordinator) ConsumeNotifications(ctx context.Context, ch <-chan task.Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-ch:
			if !ok {
				return
			}
			c.HandleNotification(t)
		}
	}
}
