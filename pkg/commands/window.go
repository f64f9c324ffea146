package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/window"
)

func addWindow(topLevel *cobra.Command) {
	on := &options.OnOptions{}
	cached := false

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Summarize the days cached around a day",
		Example: `
daylog window
daylog window --on +7 --window 1w
daylog window --cached
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := window.Window{Pivot: day, Prefetch: !cached, Service: svc}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	cmd.Flags().BoolVar(&cached, "cached", false, "Only report what the local cache holds.")
	topLevel.AddCommand(cmd)
}
