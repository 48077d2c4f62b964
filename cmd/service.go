package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/williamokano/backup_receiver/pkg/logger"
)

const serviceName = "backup_receiver"

// program implements service.Interface around serve
type program struct {
	settings settings

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := serve(ctx, p.settings); err != nil {
			logger.Get().Error().Err(err).Msg("backup_receiver exited")
			// the service manager calls back into program.Stop, which waits on this goroutine
			go s.Stop() //nolint:errcheck
		}
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func newService(s settings) (service.Service, error) {
	configPath, err := filepath.Abs(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	s.ConfigPath = configPath

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "Backup Receiver",
		Description: "Receives backup uploads over HTTP(S) and stores them in the configured backends.",
		Arguments:   []string{"service", "run", "--config", configPath},
	}

	return service.New(&program{settings: s}, svcConfig)
}

var serviceCmd = &cobra.Command{
	Use:       "service <install|uninstall|start|stop|restart|run>",
	Short:     "Manage backup_receiver as a system service",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: append([]string{"run"}, service.ControlAction[:]...),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newService(loadSettings())
		if err != nil {
			return err
		}

		action := args[0]
		if action == "run" {
			return s.Run()
		}

		if err := service.Control(s, action); err != nil {
			return fmt.Errorf("service %s: %w", action, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Service %s: ok (config %s)\n", action, viper.GetString("config"))
		return nil
	},
}
