// Package complete provides the runner for toggling task completion.
package complete

import (
	"context"
	"errors"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Complete toggles the completion of the referenced tasks.
type Complete struct {
	Day     timeutil.Day
	Refs    []string
	Service *app.Service
}

// Do resolves every reference before changing anything, so positions refer
// to the listing the user saw.
func (n *Complete) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not complete, no service")
	}
	if len(n.Refs) == 0 {
		return errors.New("requires a task reference")
	}
	ids := make([]string, 0, len(n.Refs))
	for _, ref := range n.Refs {
		t, err := n.Service.Find(ctx, n.Day, ref)
		if err != nil {
			return err
		}
		ids = append(ids, t.ID)
	}
	for _, id := range ids {
		if _, err := n.Service.Complete(ctx, n.Day, id); err != nil {
			return err
		}
	}

	pp := printers.PrettyPrint{ShowID: true}
	pp.NewLine()
	pp.Day(n.Day, n.Service.Tasks.Tasks(n.Day))
	return nil
}
