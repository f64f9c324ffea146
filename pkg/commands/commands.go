package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/commands/options"
	"tableflip.dev/daylog/pkg/config"
)

var (
	oo    = &base.OutputOptions{}
	gopts = &options.GlobalOptions{}
	v     *viper.Viper
)

func New() *cobra.Command {
	v = config.New()

	cmd := &cobra.Command{
		Use:   "daylog",
		Short: base.Wrap80("Day-scheduled tasks, kept in a local cache and synced with a remote store."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	options.AddGlobalArgs(cmd, gopts, v)
	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addAdd(topLevel)
	addGet(topLevel)
	addComplete(topLevel)
	addMove(topLevel)
	addRemove(topLevel)
	addGenerate(topLevel)
	addMigrate(topLevel)
	addWindow(topLevel)
	addWatch(topLevel)
	addInfo(topLevel)
	addKey(topLevel)
	addVersion(topLevel)
	addCompletions(topLevel)
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if gopts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withService loads the configuration, opens the service, and runs fn until
// it returns or the process is interrupted.
func withService(fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(v)
	if err != nil {
		return oo.HandleError(err)
	}
	svc, err := app.Open(ctx, cfg, logger())
	if err != nil {
		return oo.HandleError(err)
	}
	err = fn(ctx, svc)
	if cerr := svc.Close(); err == nil {
		err = cerr
	}
	return oo.HandleError(err)
}
