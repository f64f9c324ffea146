package app

import (
	"context"
	"sort"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// DayReport summarizes one day of the window.
type DayReport struct {
	Day       timeutil.Day
	Total     int
	Completed int
	Calories  int
	Tasks     []task.Task
}

// ReportResult is a per-day summary of the cache window.
type ReportResult struct {
	Window cache.Window
	Days   []DayReport
	Total  int
}

// Report summarizes every day of the window around pivot. With prefetch the
// window is first filled from the remote store; otherwise only what the
// cache holds is reported.
func (s *Service) Report(ctx context.Context, pivot timeutil.Day, prefetch bool) (ReportResult, error) {
	if prefetch {
		if _, err := s.Repository.Prefetch(ctx, s.Config.User, pivot); err != nil {
			return ReportResult{}, err
		}
	}
	w := s.Tasks.HydrateWindow(pivot)
	snapshot := s.Tasks.Snapshot()

	result := ReportResult{Window: w}
	for _, day := range w.Days() {
		tasks := snapshot[day]
		task.SortForDisplay(tasks)
		r := DayReport{Day: day, Total: len(tasks), Calories: task.TotalCalories(tasks), Tasks: tasks}
		for _, t := range tasks {
			if t.IsCompleted {
				r.Completed++
			}
		}
		result.Total += r.Total
		result.Days = append(result.Days, r)
	}
	sort.SliceStable(result.Days, func(i, j int) bool {
		return result.Days[i].Day.Before(result.Days[j].Day)
	})
	return result, nil
}
