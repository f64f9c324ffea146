// Package task defines the day-scheduled task model shared by the cache, the
// remote store and the task list.
package task

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableflip.dev/daylog/pkg/timeutil"
)

// Category tags a task for the peripheral calculators.
type Category string

const (
	CategoryGeneric Category = "generic"
	CategoryDiet    Category = "diet"
	CategoryFitness Category = "fitness"
)

// AllCategories lists the categories a default generated batch covers.
func AllCategories() []Category {
	return []Category{CategoryGeneric, CategoryDiet, CategoryFitness}
}

// ParseCategory converts a string to a Category. Empty input is generic.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if c == "" {
		return CategoryGeneric, nil
	}
	for _, candidate := range AllCategories() {
		if candidate == c {
			return candidate, nil
		}
	}
	return CategoryGeneric, fmt.Errorf("task: unknown category %q", raw)
}

// DietItem is a single line of a diet task.
type DietItem struct {
	Name     string `json:"name"`
	Calories int    `json:"calories"`
	Quantity string `json:"quantity,omitempty"`
}

// ExerciseSet is a single set of a fitness task.
type ExerciseSet struct {
	Name     string        `json:"name"`
	Reps     int           `json:"reps,omitempty"`
	Weight   float64       `json:"weight,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Task is one scheduled item. It belongs to the local calendar day of
// TimeDate.
type Task struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Subtitle         string        `json:"subtitle,omitempty"`
	Metadata         string        `json:"metadata,omitempty"`
	TimeDate         time.Time     `json:"timeDate"`
	IsCompleted      bool          `json:"isCompleted"`
	Category         Category      `json:"category,omitempty"`
	IsAIGenerated    bool          `json:"isAIGenerated,omitempty"`
	IsDailyChallenge bool          `json:"isDailyChallenge,omitempty"`
	DietItems        []DietItem    `json:"dietItems,omitempty"`
	ExerciseSets     []ExerciseSet `json:"exerciseSets,omitempty"`
}

// New returns a generic task scheduled at when with a fresh id.
func New(title string, when time.Time) Task {
	return Task{
		ID:       NewID(),
		Title:    title,
		TimeDate: when,
		Category: CategoryGeneric,
	}
}

// NewID returns a fresh opaque task id.
func NewID() string {
	return uuid.NewString()
}

// DateKey is the day bucket the task is indexed under.
func (t Task) DateKey() timeutil.Day {
	return timeutil.DayOf(t.TimeDate)
}

// MoveTo returns a copy of t rescheduled onto day, keeping its clock time.
func (t Task) MoveTo(day timeutil.Day) Task {
	local := t.TimeDate.In(time.Local)
	moved := t.Clone()
	moved.TimeDate = day.At(local.Hour(), local.Minute())
	return moved
}

// Clone deep-copies the sub-entry slices.
func (t Task) Clone() Task {
	out := t
	if t.DietItems != nil {
		out.DietItems = append([]DietItem(nil), t.DietItems...)
	}
	if t.ExerciseSets != nil {
		out.ExerciseSets = append([]ExerciseSet(nil), t.ExerciseSets...)
	}
	return out
}

// Calories is the sum of the task's diet items.
func (t Task) Calories() int {
	total := 0
	for _, item := range t.DietItems {
		total += item.Calories
	}
	return total
}

// Equivalent compares the fields a listener payload is checked against:
// id, title, subtitle, completion, scheduled time and metadata.
func (t Task) Equivalent(o Task) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Subtitle == o.Subtitle &&
		t.IsCompleted == o.IsCompleted &&
		t.TimeDate.Equal(o.TimeDate) &&
		t.Metadata == o.Metadata
}

func (t Task) String() string {
	mark := " "
	if t.IsCompleted {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %s %s", mark, t.TimeDate.In(time.Local).Format("15:04"), t.Title)
}

// SameSet reports whether a and b hold equivalent tasks, ignoring order.
func SameSet(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[string]Task, len(a))
	for _, t := range a {
		index[t.ID] = t
	}
	if len(index) != len(a) {
		return false
	}
	for _, t := range b {
		prev, ok := index[t.ID]
		if !ok || !prev.Equivalent(t) {
			return false
		}
	}
	return true
}

// SortForDisplay orders tasks in place: daily challenges last, the rest by
// scheduled time, ties broken by id.
func SortForDisplay(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		left, right := tasks[i], tasks[j]
		if left.IsDailyChallenge != right.IsDailyChallenge {
			return right.IsDailyChallenge
		}
		if !left.TimeDate.Equal(right.TimeDate) {
			return left.TimeDate.Before(right.TimeDate)
		}
		return left.ID < right.ID
	})
}

// TotalCalories sums the diet calories of every task.
func TotalCalories(tasks []Task) int {
	total := 0
	for _, t := range tasks {
		total += t.Calories()
	}
	return total
}

// IndexOf returns the position of id in tasks, or -1.
func IndexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneAll deep-copies a slice of tasks. A nil input stays nil.
func CloneAll(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
