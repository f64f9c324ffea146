package commands

import (
	"context"

	"github.com/spf13/cobra"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/config"
	"tableflip.dev/daylog/pkg/runner/watch"
)

func addWatch(topLevel *cobra.Command) {
	io := &options.IDOptions{}
	on := &options.OnOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a day and reprint it as it changes",
		Example: `
daylog watch
daylog watch --on tomorrow --metrics-addr :9090
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			day, err := on.GetOn()
			if err != nil {
				return err
			}
			return withService(func(ctx context.Context, svc *app.Service) error {
				s := watch.Watch{
					Day:         day,
					ShowID:      io.ShowID,
					MetricsAddr: svc.Config.Metrics.Addr,
					Service:     svc,
				}
				return s.Do(ctx)
			})
		},
	}

	options.AddOnArgs(cmd, on)
	options.AddShowIDArgs(cmd, io)
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address.")
	_ = v.BindPFlag(config.KeyMetricsAddr, cmd.Flags().Lookup("metrics-addr"))
	topLevel.AddCommand(cmd)
}
