package app

import (
	"context"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// MigrationCandidates returns the open tasks of day, excluding daily
// challenges, which belong to their own day.
func (s *Service) MigrationCandidates(ctx context.Context, day timeutil.Day) []task.Task {
	var out []task.Task
	for _, t := range s.Day(ctx, day) {
		if t.IsCompleted || t.IsDailyChallenge {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Migrate moves every migration candidate of from onto to and returns the
// moved tasks.
func (s *Service) Migrate(ctx context.Context, from, to timeutil.Day) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if from == to {
		return nil, nil
	}
	candidates := s.MigrationCandidates(ctx, from)
	moved := make([]task.Task, 0, len(candidates))
	for _, t := range candidates {
		next := t.MoveTo(to)
		s.Tasks.UpdateTask(next, t)
		moved = append(moved, next)
	}
	return moved, nil
}
