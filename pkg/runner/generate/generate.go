// Package generate provides the runner that fills a day with generated tasks.
package generate

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

type Generate struct {
	Day     timeutil.Day
	Service *app.Service
}

func (n *Generate) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not generate, no service")
	}
	tasks, err := n.Service.Generate(ctx, n.Day)
	if err != nil {
		return err
	}
	pp := printers.PrettyPrint{}
	pp.NewLine()
	pp.Day(n.Day, tasks)
	return nil
}
