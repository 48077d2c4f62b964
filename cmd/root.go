package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/williamokano/backup_receiver/pkg/reload"
	"github.com/williamokano/backup_receiver/pkg/server"
)

// Version is overridden at build time
var Version = "dev"

// envPrefix namespaces environment overrides, e.g. BACKUP_RECEIVER_LOG_LEVEL
const envPrefix = "BACKUP_RECEIVER"

// rootCmd runs the receiver when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "backup_receiver",
	Short: "Receive backup uploads over HTTP(S) and store them",
	Long: `backup_receiver accepts uploads at /backup/<id>[/<filename>] and streams
them into the storage backend configured for <id>: a local directory, an
S3-compatible bucket, Backblaze B2, an SFTP server or any gocloud.dev blob URL.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "config.yml", "path to the configuration file")
	flags.String("log-level", "", "debug, info, warn or error (default from config, then info)")
	flags.String("log-format", "", "json or console (default from config, then json)")
	flags.Duration("reload-delay", reload.DefaultDelay, "quiet period before a changed file is reloaded")
	flags.Duration("shutdown-timeout", server.DefaultShutdownTimeout, "how long in-flight uploads may drain on shutdown")

	for _, name := range []string{"config", "log-level", "log-format", "reload-delay", "shutdown-timeout"} {
		viper.BindPFlag(name, flags.Lookup(name)) //nolint:errcheck
	}

	rootCmd.AddCommand(serveCmd, validateCmd, pushCmd, serviceCmd)
}

// initConfig wires environment overrides for the process settings. The
// service document itself is read by pkg/config.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

type settings struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	ReloadDelay     time.Duration
	ShutdownTimeout time.Duration
}

func loadSettings() settings {
	return settings{
		ConfigPath:      viper.GetString("config"),
		LogLevel:        viper.GetString("log-level"),
		LogFormat:       viper.GetString("log-format"),
		ReloadDelay:     viper.GetDuration("reload-delay"),
		ShutdownTimeout: viper.GetDuration("shutdown-timeout"),
	}
}
