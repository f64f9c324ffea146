package commands

import (
	"context"
	"errors"
	"strings"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/add"
)

func addAdd(topLevel *cobra.Command) {
	ao := &options.AddOptions{}
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Example: `
daylog add stretch for ten minutes --at 7:30
daylog add lunch --category diet --kcal 650 --at 12:30
daylog add plan the week --on tomorrow
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a title")
			}
			ao.Title = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			hour, minute, err := ao.Clock()
			if err != nil {
				return err
			}
			category, err := ao.GetCategory()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := add.Add{
					Day:       day,
					Title:     ao.Title,
					Subtitle:  ao.Subtitle,
					Category:  category,
					Challenge: ao.Challenge,
					Hour:      hour,
					Minute:    minute,
					Calories:  ao.Calories,
					Service:   svc,
				}
				return s.Do(ctx)
			})
		},
	}

	options.AddAddArgs(cmd, ao)
	options.AddOnArgs(cmd, on)
	base.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
