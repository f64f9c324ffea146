package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/get"
)

func addGet(topLevel *cobra.Command) {
	io := &options.IDOptions{}
	on := &options.OnOptions{}
	all := false

	cmd := &cobra.Command{
		Use:     "get",
		Aliases: []string{"ls", "list"},
		Short:   "List the tasks of a day",
		Example: `
daylog get
daylog get --on tomorrow --show-id
daylog get --all
daylog get --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				if oo.JSON {
					b, err := json.MarshalIndent(svc.Day(ctx, day), "", "  ")
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(color.Output, string(b))
					return nil
				}
				s := get.Get{
					ShowID:  io.ShowID,
					All:     all,
					Day:     day,
					Service: svc,
				}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().BoolVar(&all, "all", false, "Show every day of the cache window.")
	base.AddOutputArg(cmd, oo)
	topLevel.AddCommand(cmd)
}
