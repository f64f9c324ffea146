package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/complete"
)

func addComplete(topLevel *cobra.Command) {
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:     "complete <task>...",
		Aliases: []string{"completed", "done"},
		Short:   "Toggle the completion of tasks",
		Long: `Toggle the completion of tasks. A task is referenced by its position in
'daylog get', by its id, or by a unique id prefix.`,
		Example: `
daylog complete 2
daylog complete 1 3 --on yesterday
daylog complete 6f1c
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a task reference")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := complete.Complete{
					Day:     day,
					Refs:    args,
					Service: svc,
				}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	topLevel.AddCommand(cmd)
}
