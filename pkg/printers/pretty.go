// Package printers renders task days and windows for the terminal.
package printers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

const defaultWidth = 80

// shortID is how much of an id is shown with ShowID.
const shortID = 8

type PrettyPrint struct {
	ShowID bool
	// Width wraps subtitles. Zero means 80 columns.
	Width int
	// Out defaults to color.Output.
	Out io.Writer
}

// Interactive reports whether f is a terminal.
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (pp *PrettyPrint) out() io.Writer {
	if pp.Out != nil {
		return pp.Out
	}
	return color.Output
}

func (pp *PrettyPrint) width() int {
	if pp.Width > 0 {
		return pp.Width
	}
	return defaultWidth
}

func (pp *PrettyPrint) NewLine() {
	_, _ = fmt.Fprintln(pp.out())
}

func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.out(), title)
}

func (pp *PrettyPrint) TitleWithCount(title string, count int) {
	t := color.New(color.Bold, color.Underline)
	c := color.New(color.Faint)

	_, _ = t.Fprint(pp.out(), title)
	_, _ = c.Fprintf(pp.out(), " - %d", count)

	switch count {
	case 1:
		_, _ = c.Fprintln(pp.out(), " task")
	default:
		_, _ = c.Fprintln(pp.out(), " tasks")
	}
}

// Day prints the tasks of day as a numbered table. Numbers match the
// positions the verbs accept as task references.
func (pp *PrettyPrint) Day(day timeutil.Day, tasks []task.Task) {
	pp.TitleWithCount(dayTitle(day), len(tasks))

	if len(tasks) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.out(), " none\n\n")
		return
	}

	faint := color.New(color.Faint)
	y := color.New(color.FgHiYellow, color.Italic, color.Faint)
	done := color.New(color.CrossedOut, color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	for i, t := range tasks {
		row := []interface{}{faint.Sprintf("%d", i+1)}
		if pp.ShowID {
			row = append(row, y.Sprint(abbrev(t.ID)))
		}
		title := t.Title
		if t.IsCompleted {
			title = done.Sprint(title)
		}
		row = append(row, mark(t), t.TimeDate.Local().Format("15:04"), title, badge(t))
		tbl.AddRow(row...)
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.out(), tbl)

	for i, t := range tasks {
		if strings.TrimSpace(t.Subtitle) == "" {
			continue
		}
		wrapped := wordwrap.String(t.Subtitle, pp.width()-6)
		for _, line := range strings.Split(wrapped, "\n") {
			_, _ = faint.Fprintf(pp.out(), "  %2d  %s\n", i+1, line)
		}
	}
	if kcal := task.TotalCalories(tasks); kcal > 0 {
		_, _ = faint.Fprintf(pp.out(), "  %d kcal\n", kcal)
	}
	pp.NewLine()
}

// Task prints a single task line.
func (pp *PrettyPrint) Task(t task.Task) {
	id := ""
	if pp.ShowID {
		id = color.New(color.FgHiYellow, color.Faint).Sprint(abbrev(t.ID)) + "  "
	}
	_, _ = fmt.Fprintf(pp.out(), "%s%s %s %s %s\n", id, mark(t), t.TimeDate.Local().Format("2006-01-02 15:04"), t.Title, badge(t))
}

func dayTitle(day timeutil.Day) string {
	label := day.Time().Format("Monday, January 2, 2006")
	switch timeutil.Today().DaysUntil(day) {
	case 0:
		return label + " (today)"
	case 1:
		return label + " (tomorrow)"
	case -1:
		return label + " (yesterday)"
	}
	return label
}

func mark(t task.Task) string {
	if t.IsCompleted {
		return color.GreenString("[x]")
	}
	return "[ ]"
}

func badge(t task.Task) string {
	var parts []string
	if t.Category != "" && t.Category != task.CategoryGeneric {
		parts = append(parts, string(t.Category))
	}
	if t.IsDailyChallenge {
		parts = append(parts, "challenge")
	}
	if t.IsAIGenerated {
		parts = append(parts, "generated")
	}
	if kcal := t.Calories(); kcal > 0 {
		parts = append(parts, fmt.Sprintf("%d kcal", kcal))
	}
	if len(parts) == 0 {
		return ""
	}
	return color.New(color.Faint).Sprintf("(%s)", strings.Join(parts, ", "))
}

func abbrev(id string) string {
	if len(id) > shortID {
		return id[:shortID]
	}
	return id
}
