// Package add provides the runner that creates tasks.
package add

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Add creates one task and reprints its day.
type Add struct {
	Day       timeutil.Day
	Title     string
	Subtitle  string
	Category  task.Category
	Challenge bool
	Hour      int
	Minute    int
	Calories  int

	Service *app.Service
}

func (n *Add) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not add, no service")
	}
	o := app.AddOptions{
		Subtitle:  n.Subtitle,
		Category:  n.Category,
		Challenge: n.Challenge,
		Hour:      n.Hour,
		Minute:    n.Minute,
	}
	if n.Calories > 0 {
		o.DietItems = []task.DietItem{{Name: n.Title, Calories: n.Calories}}
	}
	if _, err := n.Service.Add(ctx, n.Day, n.Title, o); err != nil {
		return err
	}

	pp := printers.PrettyPrint{}
	pp.NewLine()
	pp.Day(n.Day, n.Service.Tasks.Tasks(n.Day))
	return nil
}
