// Package window prints a summary of the cached window around a day.
package window

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Window prints the strip of days around Pivot. With Prefetch the window is
// first filled from the remote store.
type Window struct {
	Pivot    timeutil.Day
	Prefetch bool
	Service  *app.Service
}

func (n *Window) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not summarize, no service")
	}
	r, err := n.Service.Report(ctx, n.Pivot, n.Prefetch)
	if err != nil {
		return err
	}
	days := make([]printers.DaySummary, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, printers.DaySummary{
			Day:       d.Day,
			Total:     d.Total,
			Completed: d.Completed,
			Calories:  d.Calories,
		})
	}
	pp := printers.PrettyPrint{}
	pp.NewLine()
	pp.TitleWithCount("Window "+r.Window.Min.String()+" .. "+r.Window.Max.String(), r.Total)
	pp.Window(days)
	return nil
}
