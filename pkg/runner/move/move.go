// Package move provides the runner that reschedules a task onto another day.
package move

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

type Move struct {
	From    timeutil.Day
	To      timeutil.Day
	Ref     string
	Service *app.Service
}

func (n *Move) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not move, no service")
	}
	moved, err := n.Service.Move(ctx, n.From, n.Ref, n.To)
	if err != nil {
		return err
	}
	pp := printers.PrettyPrint{ShowID: true}
	pp.NewLine()
	pp.Task(moved)
	pp.NewLine()
	pp.Day(n.From, n.Service.Tasks.Tasks(n.From))
	pp.Day(n.To, n.Service.Tasks.Tasks(n.To))
	return nil
}
