// Package info prints where daylog keeps its data and how it is configured.
package info

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/daylog/pkg/app"
	"tableflip.dev/daylog/pkg/config"
	"tableflip.dev/daylog/pkg/timeutil"
)

type Info struct {
	ConfigFile string
	Service    *app.Service
}

func (n *Info) Do(ctx context.Context) error {
	if n.Service == nil {
		return errors.New("can not describe, no service")
	}
	cfg := n.Service.Config
	bold := color.New(color.Bold)

	if override := os.Getenv("DAYLOG_CONFIG_PATH"); override != "" {
		fmt.Println("DAYLOG_CONFIG_PATH found on env, using", override)
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("Setting"), bold.Sprint("Value"))
	file := n.ConfigFile
	if file == "" {
		file = "(none)"
	}
	tbl.AddRow("config file", file)
	tbl.AddRow(config.KeyUser, cfg.User)
	tbl.AddRow(config.KeyCacheMode, cfg.Cache.Mode)
	if cfg.Cache.Mode == config.CacheSQLite {
		tbl.AddRow(config.KeyCachePath, cfg.Cache.Path)
	}
	tbl.AddRow(config.KeyCacheWindow, fmt.Sprintf("%s (%d days each side)", timeutil.FormatWindow(cfg.Cache.Window), cfg.Cache.Radius()))
	tbl.AddRow(config.KeyRemoteKind, cfg.Remote.Kind)
	switch cfg.Remote.Kind {
	case config.RemoteDisk:
		tbl.AddRow(config.KeyRemotePath, cfg.Remote.Path)
	case config.RemotePostgres:
		tbl.AddRow(config.KeyRemoteDSN, "(set)")
	}
	tbl.AddRow(config.KeyOffline, fmt.Sprint(cfg.Remote.Offline))
	tbl.AddRow(config.KeyDebounce, cfg.Sync.Debounce.String())
	tbl.AddRow(config.KeyDeletionTimeout, cfg.Sync.DeletionTimeout.String())

	w, ok := n.Service.Cache.Window()
	if ok {
		tbl.AddRow("cached window", fmt.Sprintf("%s .. %s", w.Min, w.Max))
	} else {
		tbl.AddRow("cached window", "(empty)")
	}
	_, _ = fmt.Fprintln(color.Output, tbl)
	return nil
}
