// Package get prints the tasks of a day.
package get

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Get prints one day, or every day of its window with All.
type Get struct {
	ShowID  bool
	All     bool
	Day     timeutil.Day
	Service *app.Service
}

func (n *Get) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not get, no service")
	}
	pp := printers.PrettyPrint{ShowID: n.ShowID}
	pp.NewLine()

	if !n.All {
		pp.Day(n.Day, n.Service.Day(ctx, n.Day))
		return nil
	}

	r, err := n.Service.Report(ctx, n.Day, true)
	if err != nil {
		return err
	}
	for _, d := range r.Days {
		pp.Day(d.Day, d.Tasks)
	}
	return nil
}
