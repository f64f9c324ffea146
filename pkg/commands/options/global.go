package options

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableflip.dev/daylog/pkg/config"
)

// GlobalOptions are the flags every verb shares.
type GlobalOptions struct {
	Verbose bool
}

// AddGlobalArgs registers the persistent flags and binds the ones that
// mirror configuration keys to v, so flags win over the config file and the
// environment.
func AddGlobalArgs(cmd *cobra.Command, o *GlobalOptions, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.BoolVarP(&o.Verbose, "verbose", "v", false, "Log sync activity to stderr.")

	f.String("user", "", "User whose tasks are synced. Defaults to $USER.")
	f.String("cache-mode", "", "Local cache, sqlite or memory.")
	f.String("cache-path", "", "Path of the sqlite cache.")
	f.String("window", "", "How far around the viewed day the cache reaches, example: 3d or 1w.")
	f.String("remote", "", "Remote store, disk, memory or postgres.")
	f.String("remote-path", "", "Directory of the disk remote.")
	f.String("dsn", "", "Connection string of the postgres remote.")
	f.Bool("offline", false, "Keep writes in the local cache only.")

	bind := map[string]string{
		"user":        config.KeyUser,
		"cache-mode":  config.KeyCacheMode,
		"cache-path":  config.KeyCachePath,
		"window":      config.KeyCacheWindow,
		"remote":      config.KeyRemoteKind,
		"remote-path": config.KeyRemotePath,
		"dsn":         config.KeyRemoteDSN,
		"offline":     config.KeyOffline,
	}
	for flag, key := range bind {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}
