package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/runner/migrate"
)

func addMigrate(topLevel *cobra.Command) {
	from := &options.OnOptions{}
	to := &options.OnOptions{}
	dryRun := false

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Carry the open tasks of one day to another",
		Example: `
daylog migrate
daylog migrate --from 2024-3-1 --to today --dry-run
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			src, err := from.GetOn()
			if err != nil {
				return err
			}
			dest, err := to.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := migrate.Migrate{From: src, To: dest, DryRun: dryRun, Service: svc}
				return s.Do(ctx)
			})
		},
	}

	cmd.Flags().StringVar(&from.OnString, "from", "yesterday", "Day to migrate from.")
	cmd.Flags().StringVar(&to.OnString, "to", "today", "Day to migrate to.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list the tasks that would move.")
	topLevel.AddCommand(cmd)
}
