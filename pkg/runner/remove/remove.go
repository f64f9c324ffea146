// Package remove provides the runner that deletes tasks.
package remove

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

type Remove struct {
	Day     timeutil.Day
	Ref     string
	Service *app.Service
}

func (n *Remove) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not remove, no service")
	}
	if _, err := n.Service.Remove(ctx, n.Day, n.Ref); err != nil {
		return err
	}
	pp := printers.PrettyPrint{ShowID: true}
	pp.NewLine()
	pp.Day(n.Day, n.Service.Tasks.Tasks(n.Day))
	return nil
}
