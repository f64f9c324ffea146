package printers

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

func init() {
	color.NoColor = true
}

func TestDay(t *testing.T) {
	day := timeutil.Date(2024, 3, 5)
	a := task.New("Stretch", day.At(7, 30))
	a.ID = "0123456789abcdef"
	a.Subtitle = "ten minutes"
	b := task.New("Lunch", day.At(12, 0))
	b.Category = task.CategoryDiet
	b.IsCompleted = true
	b.DietItems = []task.DietItem{{Name: "soup", Calories: 320}}

	var buf bytes.Buffer
	pp := PrettyPrint{ShowID: true, Out: &buf}
	pp.Day(day, []task.Task{a, b})

	out := buf.String()
	assert.Contains(t, out, "Tuesday, March 5, 2024 - 2 tasks")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "[ ]  07:30  Stretch")
	assert.Contains(t, out, "[x]  12:00  Lunch")
	assert.Contains(t, out, "(diet, 320 kcal)")
	assert.Contains(t, out, "ten minutes")
	assert.Contains(t, out, "320 kcal\n")
}

func TestDayEmpty(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Day(timeutil.Date(2024, 3, 5), nil)
	assert.Contains(t, buf.String(), "0 tasks")
	assert.Contains(t, buf.String(), "none")
}

func TestWindow(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Window([]DaySummary{
		{Day: timeutil.Date(2024, 2, 28)},
		{Day: timeutil.Date(2024, 2, 29), Total: 3, Completed: 1},
		{Day: timeutil.Date(2024, 3, 1), Total: 1, Completed: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "February 28 - March 1")
	assert.Contains(t, out, " 28  29   1 ")
	assert.Contains(t, out, "   - 1/3 1/1")
	assert.Equal(t, 29, DaysIn(timeutil.Date(2024, 2, 10).Time()))
}
