package printers

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/daylog/pkg/timeutil"
)

// DaySummary is one column of a window strip.
type DaySummary struct {
	Day       timeutil.Day
	Total     int
	Completed int
	Calories  int
}

const cell = len(" 28 ") // one day column

// Window prints the days as a strip: weekday initials, day numbers, and
// completed/total counts. Today is bold, empty days are faint.
func (pp *PrettyPrint) Window(days []DaySummary) {
	if len(days) == 0 {
		return
	}
	tf := color.New(color.FgWhite, color.Italic)
	l1 := color.New(color.Faint, color.FgWhite)
	l2 := color.New(color.Bold, color.FgHiWhite)
	today := color.New(color.Bold, color.Underline, color.FgHiWhite)

	first, last := days[0].Day.Time(), days[len(days)-1].Day.Time()
	title := first.Format("January 2")
	if last.Month() != first.Month() || last.Year() != first.Year() {
		title += " - " + last.Format("January 2")
	} else if len(days) > 1 {
		title += fmt.Sprintf(" - %d", last.Day())
	}
	width := cell * len(days)
	mid := (width - len(title)) / 2
	if mid < 0 {
		mid = 0
	}
	_, _ = tf.Fprintf(pp.out(), "%s%s\n", strings.Repeat(" ", mid), title)

	now := timeutil.Today()
	for _, d := range days {
		_, _ = l1.Fprintf(pp.out(), " %2s ", d.Day.Time().Weekday().String()[0:1])
	}
	pp.NewLine()
	for _, d := range days {
		p := l1
		switch {
		case d.Day == now:
			p = today
		case d.Total > 0:
			p = l2
		}
		_, _ = p.Fprintf(pp.out(), " %2d ", d.Day.Time().Day())
	}
	pp.NewLine()
	for _, d := range days {
		p := l1
		if d.Total > 0 {
			p = l2
		}
		_, _ = p.Fprintf(pp.out(), "%4s", counts(d))
	}
	pp.NewLine()
	pp.NewLine()
}

func counts(d DaySummary) string {
	if d.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", d.Completed, d.Total)
}

// DaysIn returns the number of days in the month of then.
func DaysIn(then time.Time) int {
	return time.Date(then.Year(), then.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
