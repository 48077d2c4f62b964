package cmd

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/dispatch"
	"github.com/williamokano/backup_receiver/pkg/logger"
	"github.com/williamokano/backup_receiver/pkg/reload"
	"github.com/williamokano/backup_receiver/pkg/server"
	"github.com/williamokano/backup_receiver/pkg/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the receiver (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
		defer stop()
		return serve(ctx, loadSettings())
	},
}

// serve runs until ctx is done. Startup failures, including a listener that
// cannot bind, are returned.
func serve(ctx context.Context, s settings) error {
	cfg, err := config.ParseConfig(s.ConfigPath)
	if err != nil {
		return err
	}

	level, format := s.LogLevel, s.LogFormat
	if level == "" {
		level = cfg.GetLogLevel()
	}
	if format == "" {
		format = cfg.GetLogFormat()
	}
	logger.Init(level, format)
	log := *logger.Get()

	log.Info().
		Str("config_file", s.ConfigPath).
		Str("version", Version).
		Msg("starting backup_receiver")

	reg, routes := state.Build(ctx, cfg, log)
	holder := state.NewHolder(reg, routes, log)
	defer holder.Close()

	var certs *state.CertHolder
	if cfg.Server.HTTPS != nil {
		cert, err := state.LoadCertificate(cfg.Server.HTTPS.Cert, cfg.Server.HTTPS.Key)
		if err != nil {
			return fmt.Errorf("https: %w", err)
		}
		certs = state.NewCertHolder(cert)
	}

	metrics := &dispatch.Metrics{}

	coordinator, err := reload.New(reload.Options{
		ConfigPath: s.ConfigPath,
		Config:     cfg,
		Holder:     holder,
		Certs:      certs,
		Delay:      s.ReloadDelay,
		Recorder:   metrics,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Config:          cfg.Server,
		Handler:         dispatch.New(holder, metrics, log),
		Certs:           certs,
		ShutdownTimeout: s.ShutdownTimeout,
		Logger:          log,
	})
	if err := srv.Listen(); err != nil {
		coordinator.Close()
		return err
	}

	err = srv.Serve(ctx, coordinator.Run)
	log.Info().Msg("backup_receiver stopped")
	return err
}
