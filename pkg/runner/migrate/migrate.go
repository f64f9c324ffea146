// Package migrate provides the runner that carries open tasks to another day.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/printers"
	"tableflip.dev/daylog/pkg/timeutil"
)

// Migrate moves the open tasks of From onto To. With DryRun the candidates
// are only listed.
type Migrate struct {
	From    timeutil.Day
	To      timeutil.Day
	DryRun  bool
	Service *app.Service
}

func (n *Migrate) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not migrate, no service")
	}
	pp := printers.PrettyPrint{ShowID: true}
	pp.NewLine()

	if n.DryRun {
		candidates := n.Service.MigrationCandidates(ctx, n.From)
		pp.TitleWithCount(fmt.Sprintf("Migration candidates %s -> %s", n.From, n.To), len(candidates))
		for _, t := range candidates {
			pp.Task(t)
		}
		pp.NewLine()
		return nil
	}

	moved, err := n.Service.Migrate(ctx, n.From, n.To)
	if err != nil {
		return err
	}
	if len(moved) == 0 {
		_, _ = fmt.Fprintf(color.Output, "Nothing to migrate from %s.\n\n", n.From)
		return nil
	}
	pp.Day(n.To, n.Service.Tasks.Tasks(n.To))
	return nil
}
