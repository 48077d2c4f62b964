package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/williamokano/backup_receiver/pkg/config"
	"github.com/williamokano/backup_receiver/pkg/state"
)

// DefaultShutdownTimeout bounds how long in-flight uploads may drain
const DefaultShutdownTimeout = 30 * time.Second

// Options configures a Server
type Options struct {
	Config          config.ServerConfig
	Handler         http.Handler
	Certs           *state.CertHolder // required when Config.HTTPS is set
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

type listener struct {
	scheme string
	srv    *http.Server
	ln     net.Listener
}

// Server runs the HTTP and HTTPS listeners
type Server struct {
	opts      Options
	log       zerolog.Logger
	listeners []*listener
}

// New creates a server. Nothing is bound until Listen.
func New(opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		opts: opts,
		log:  opts.Logger.With().Str("component", "server").Logger(),
	}
}

// Listen binds every configured listener. A failure closes whatever was
// already bound and is returned.
func (s *Server) Listen() error {
	cfg := s.opts.Config

	if cfg.HTTP != nil {
		if err := s.bind("http", cfg.HTTP.Addr(), nil); err != nil {
			return err
		}
	}

	if cfg.HTTPS != nil {
		if s.opts.Certs == nil {
			s.closeListeners()
			return errors.New("https listener configured without a certificate")
		}
		if err := s.bind("https", cfg.HTTPS.Addr(), s.opts.Certs); err != nil {
			return err
		}
	}

	if len(s.listeners) == 0 {
		return errors.New("no listener configured")
	}
	return nil
}

func (s *Server) bind(scheme, addr string, certs *state.CertHolder) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.closeListeners()
		return fmt.Errorf("%s server failed to start on %s: %w", scheme, addr, err)
	}

	srv := &http.Server{
		Handler:           s.opts.Handler,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	if certs != nil {
		srv.TLSConfig = certs.TLSConfig()
	}

	s.listeners = append(s.listeners, &listener{scheme: scheme, srv: srv, ln: ln})
	return nil
}

func (s *Server) closeListeners() {
	for _, l := range s.listeners {
		l.ln.Close() //nolint:errcheck
	}
	s.listeners = nil
}

// Addrs returns the bound addresses keyed by scheme
func (s *Server) Addrs() map[string]net.Addr {
	out := make(map[string]net.Addr, len(s.listeners))
	for _, l := range s.listeners {
		out[l.scheme] = l.ln.Addr()
	}
	return out
}

// Serve runs the bound listeners and workers in one group until ctx is done
// or one of them fails, then shuts the listeners down gracefully.
func (s *Server) Serve(ctx context.Context, workers ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, l := range s.listeners {
		g.Go(func() error {
			s.log.Info().Str("addr", l.ln.Addr().String()).Msgf("%s server started", l.scheme)

			var err error
			if l.srv.TLSConfig != nil {
				err = l.srv.ServeTLS(l.ln, "", "")
			} else {
				err = l.srv.Serve(l.ln)
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", l.scheme, err)
			}
			return nil
		})
	}

	for _, worker := range workers {
		g.Go(func() error { return worker(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info().Msg("Shutting down, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, l := range s.listeners {
			if err := l.srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("%s shutdown: %w", l.scheme, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Run binds and serves. A bind failure is returned before anything is served.
func (s *Server) Run(ctx context.Context, workers ...func(context.Context) error) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx, workers...)
}
