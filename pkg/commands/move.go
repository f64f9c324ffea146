package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/move"
)

func addMove(topLevel *cobra.Command) {
	on := &options.OnOptions{}
	to := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:     "move <task>",
		Aliases: []string{"mv", "reschedule"},
		Short:   "Move a task to another day, keeping its time",
		Example: `
daylog move 2 --to tomorrow
daylog move 6f1c --on 2024-3-1 --to 3/4
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			from, err := on.GetOn()
			if err != nil {
				return err
			}
			dest, err := to.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := move.Move{
					From:    from,
					To:      dest,
					Ref:     args[0],
					Service: svc,
				}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	cmd.Flags().StringVar(&to.OnString, "to", "tomorrow", "Day to move the task to.")
	topLevel.AddCommand(cmd)
}
