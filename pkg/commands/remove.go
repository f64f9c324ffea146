package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/remove"
)

func addRemove(topLevel *cobra.Command) {
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:     "remove <task>",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a task",
		Example: `
daylog remove 3
daylog rm 6f1c --on yesterday
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := remove.Remove{Day: day, Ref: args[0], Service: svc}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	topLevel.AddCommand(cmd)
}
