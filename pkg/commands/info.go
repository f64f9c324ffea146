package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/runner/info"
)

func addInfo(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Details about the configuration and where tasks are stored.",
		Example: `
daylog info
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := info.Info{
					ConfigFile: v.ConfigFileUsed(),
					Service:    svc,
				}
				return s.Do(ctx)
			})
		},
	}

	topLevel.AddCommand(cmd)
}
