package tasklist

import (
	"context"

	"tableflip.dev/daylog/pkg/cache"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Repository is the persistence surface the coordinator drives.
// *repository.Repository satisfies it.
type Repository interface {
	LoadTasks(ctx context.Context, userID string, day timeutil.Day) ([]task.Task, error)
	SaveTask(userID string, t task.Task, day timeutil.Day, syncToCloud bool, done func(error))
	DeleteTask(userID, taskID string, day timeutil.Day, syncToCloud bool, done func(error))
	UpdateTask(userID string, newT, oldT task.Task, syncToCloud bool, done func(error))
	CachedWindow(pivot timeutil.Day) (cache.Window, map[timeutil.Day][]task.Task)
	StoreBucket(day timeutil.Day, tasks []task.Task) error
}

// Auth supplies the signed-in user. Without one every persistence operation
// is skipped.
type Auth interface {
	CurrentUserID() (string, bool)
}

// StaticUser is an Auth for a fixed user id. The empty id means signed out.
type StaticUser string

func (u StaticUser) CurrentUserID() (string, bool) {
	return string(u), u != ""
}

// DayEvaluator persists a completion verdict for a day. Implementations must
// not block; they are called from inside every mutation.
type DayEvaluator interface {
	EvaluateDay(day timeutil.Day, tasks []task.Task, userID string)
}

// ChallengeService keeps daily-challenge state linked to tasks.
type ChallengeService interface {
	UpdateChallengeCompletion(taskID string, completed bool)
	HandleChallengeTaskDeleted(taskID string)
}

// Generator produces suggested tasks for a day, one or more per category.
type Generator interface {
	Generate(ctx context.Context, day timeutil.Day, categories []task.Category) ([]task.Task, error)
}

type nopEvaluator struct{}

func (nopEvaluator) EvaluateDay(timeutil.Day, []task.Task, string) {}

type nopChallenges struct{}

func (nopChallenges) UpdateChallengeCompletion(string, bool) {}
func (nopChallenges) HandleChallengeTaskDeleted(string)      {}
