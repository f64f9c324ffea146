package options

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/timeutil"
)

const (
	layoutISO      = "2006-1-2"
	layoutISOShort = "1/2"
)

// OnOptions selects the day a verb works on.
type OnOptions struct {
	OnString string
}

func AddOnArgs(cmd *cobra.Command, o *OnOptions) {
	cmd.Flags().StringVar(&o.OnString, "on", "today",
		`Specify a day, example: --on="2020-2-28", --on="2/28", --on=tomorrow or --on=+3.`)
}

// GetOn resolves the --on value against today.
func (o *OnOptions) GetOn() (timeutil.Day, error) {
	return ParseOn(o.OnString, timeutil.Today())
}

// ParseOn reads a day relative to today. It accepts today, tomorrow,
// yesterday, a signed day offset, YYYY-M-D, and M/D.
func ParseOn(s string, today timeutil.Day) (timeutil.Day, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	if s[0] == '+' || s[0] == '-' {
		n, err := strconv.Atoi(s)
		if err != nil {
			return timeutil.Day{}, fmt.Errorf("invalid day offset %q", s)
		}
		return today.AddDays(n), nil
	}
	t, err := time.ParseInLocation(layoutISO, s, time.Local)
	if err == nil {
		return timeutil.DayOf(t), nil
	}
	t, err = time.ParseInLocation(layoutISOShort, s, time.Local)
	if err != nil {
		return timeutil.Day{}, fmt.Errorf("invalid day %q", s)
	}
	d := timeutil.Date(today.Time().Year(), t.Month(), t.Day())
	// I am gonna assume if you said 1/3 on 12/5, you meant next year, not 11 months ago.
	if d.Before(today) {
		d = timeutil.Date(today.Time().Year()+1, t.Month(), t.Day())
	}
	return d, nil
}
