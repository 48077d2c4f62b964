package reload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/state"
)

// Recorder counts reload outcomes
type Recorder interface {
	RecordReload(err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordReload(error) {}

// Options configures a Coordinator
type Options struct {
	ConfigPath string
	Config     *config.Config    // the config the process started with
	Holder     *state.Holder     // receives rebuilt registry and route table
	Certs      *state.CertHolder // receives reloaded certificates; nil without https
	Delay      time.Duration     // debounce delay (default: DefaultDelay)
	Recorder   Recorder
	Logger     zerolog.Logger
}

// Coordinator watches the config file and the TLS key pair and republishes
// state once a burst of changes settles. Which watchers exist is decided
// by the reload flags of the startup config and does not change afterwards.
type Coordinator struct {
	configPath string
	certFile   string
	keyFile    string

	holder   *state.Holder
	certs    *state.CertHolder
	recorder Recorder
	log      zerolog.Logger

	configWatcher  *Watcher
	configDebounce *Debouncer
	tlsWatcher     *Watcher
	tlsDebounce    *Debouncer

	baseCtx context.Context
}

// New installs the watchers enabled by opts.Config.Reload. Changes made after
// New returns are observed once Run is called.
func New(opts Options) (*Coordinator, error) {
	c := &Coordinator{
		configPath: opts.ConfigPath,
		holder:     opts.Holder,
		certs:      opts.Certs,
		recorder:   opts.Recorder,
		log:        opts.Logger.With().Str("component", "reload").Logger(),
		baseCtx:    context.Background(),
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}

	cfg := opts.Config

	if cfg.Reload.StorageAndBackups {
		w, err := NewWatcher([]string{opts.ConfigPath}, c.log)
		if err != nil {
			return nil, err
		}
		c.configWatcher = w
		c.configDebounce = NewDebouncer(opts.Delay, func() {
			c.ReloadConfig(c.baseCtx) //nolint:errcheck
		})
		c.log.Info().Str("file", opts.ConfigPath).Msg("Watching configuration for changes")
	}

	if cfg.Reload.SSL {
		switch {
		case cfg.Server.HTTPS == nil || opts.Certs == nil:
			c.log.Warn().Msg("reload.ssl is set but no https listener is configured")
		default:
			c.certFile, c.keyFile = cfg.Server.HTTPS.Cert, cfg.Server.HTTPS.Key
			w, err := NewWatcher([]string{c.certFile, c.keyFile}, c.log)
			if err != nil {
				c.Close()
				return nil, err
			}
			c.tlsWatcher = w
			c.tlsDebounce = NewDebouncer(opts.Delay, func() {
				c.ReloadCertificate() //nolint:errcheck
			})
			c.log.Info().
				Str("cert", c.certFile).
				Str("key", c.keyFile).
				Msg("Watching TLS key pair for changes")
		}
	}

	return c, nil
}

// Run drives the installed watchers until ctx is done
func (c *Coordinator) Run(ctx context.Context) error {
	// a reload that has started is not interrupted by shutdown
	c.baseCtx = context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	run := func(w *Watcher, d *Debouncer) {
		if w == nil {
			return
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			w.Run(ctx, func(string) { d.Trigger() })
		}()
	}

	run(c.configWatcher, c.configDebounce)
	run(c.tlsWatcher, c.tlsDebounce)

	wg.Wait()
	return nil
}

// ReloadConfig re-reads the config file and publishes a new registry and
// route table. On failure the current state is left untouched.
func (c *Coordinator) ReloadConfig(ctx context.Context) error {
	cfg, err := config.ParseConfig(c.configPath)
	if err != nil {
		c.recorder.RecordReload(err)
		c.log.Error().
			Err(err).
			Str("file", c.configPath).
			Uint64("generation", c.holder.Generation()).
			Msg("Failed to reload configuration, keeping current state")
		return err
	}

	reg, routes := state.Build(ctx, cfg, c.log)
	generation := c.holder.Publish(reg, routes)
	c.recorder.RecordReload(nil)

	c.log.Info().
		Uint64("generation", generation).
		Int("backends", reg.Len()).
		Int("backups", routes.Len()).
		Msg("Configuration reloaded")
	return nil
}

// ReloadCertificate re-reads the key pair and serves it to new handshakes.
// On failure the current certificate keeps being served.
func (c *Coordinator) ReloadCertificate() error {
	if c.certs == nil {
		return errors.New("no certificate holder configured")
	}

	cert, err := state.LoadCertificate(c.certFile, c.keyFile)
	if err != nil {
		c.recorder.RecordReload(err)
		c.log.Error().
			Err(err).
			Str("cert", c.certFile).
			Str("key", c.keyFile).
			Msg("Failed to reload TLS key pair, keeping current certificate")
		return err
	}

	c.certs.Store(cert)
	c.recorder.RecordReload(nil)
	c.log.Info().Str("cert", c.certFile).Msg("TLS key pair reloaded")
	return nil
}

// Close releases watchers when Run is never called
func (c *Coordinator) Close() {
	for _, w := range []*Watcher{c.configWatcher, c.tlsWatcher} {
		if w != nil {
			w.Close() //nolint:errcheck
		}
	}
}
