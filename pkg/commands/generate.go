package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/config"
	"tableflip.dev/daylog/pkg/runner/generate"
)

func addGenerate(topLevel *cobra.Command) {
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Fill a day with generated tasks",
		Long: `Generate tasks for a day. An empty day gets one task per category. A day
that already holds generated tasks has them replaced. Otherwise only the
missing categories are generated.`,
		Example: `
daylog generate
daylog generate --on tomorrow --catalog ./plans.yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := generate.Generate{Day: day, Service: svc}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	cmd.Flags().String("catalog", "", "YAML template catalog. Defaults to the built-in one.")
	_ = v.BindPFlag(config.KeyCatalog, cmd.Flags().Lookup("catalog"))
	topLevel.AddCommand(cmd)
}
