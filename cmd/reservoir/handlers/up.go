package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/reservoir/internal/config"
	"github.com/imamik/reservoir/internal/inventory"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/synchronizer"
)

// UpOptions are the flags of the up command.
type UpOptions struct {
	ForceDeploy bool
	// Start overrides the configured start date.
	Start *time.Time
	// Window overrides the configured search window.
	Window time.Duration
	// Output overrides the configured inventory file.
	Output        string
	MetricsListen string
}

// Up handles the up command.
//
// A single provider is reserved and prepared directly. Several providers
// are first synchronized on a common start date. The resulting inventory
// is published and summarized.
func Up(ctx context.Context, configPath string, opts UpOptions) error {
	s, err := prepare(configPath)
	if err != nil {
		return err
	}
	if opts.Start != nil {
		s.cfg.Start = opts.Start
	}
	if opts.Window > 0 {
		s.cfg.Window = config.Duration(opts.Window)
	}

	listen := opts.MetricsListen
	if listen == "" {
		listen = s.cfg.Metrics.Listen
	}
	if listen != "" {
		stop, err := serveMetrics(listen)
		if err != nil {
			return err
		}
		defer stop()
		s.log.Info("serving metrics", "address", listen)
	}

	sinks, err := s.sinks(ctx, opts.Output)
	if err != nil {
		return err
	}

	roles, nets, err := s.reserve(ctx, opts.ForceDeploy)
	if err != nil {
		return fmt.Errorf("up failed: %w", err)
	}

	doc := inventory.Build(s.cfg.Name, roles, nets, now())
	if err := inventory.Publish(ctx, doc, sinks...); err != nil {
		return fmt.Errorf("failed to publish inventory: %w", err)
	}
	for _, sink := range sinks {
		s.log.Info("inventory published", "to", sink.String())
	}

	_, err = fmt.Fprint(stdout, renderSummary(doc, isTerminal()))
	return err
}

func (s *setup) reserve(ctx context.Context, force bool) (network.Roles, network.Networks, error) {
	if len(s.providers) == 1 {
		return s.providers[0].Init(ctx, force, s.cfg.Start)
	}

	retries := s.timeouts.SlotRetries
	if retries <= 0 {
		retries = synchronizer.NoRetries
	}
	opts := synchronizer.Options{
		Window:        s.cfg.Window.Std(),
		Increment:     s.timeouts.SlotIncrement,
		MaxRetries:    retries,
		StartMargin:   s.timeouts.StartMargin,
		ForceRedeploy: force,
		Now:           now,
		Log:           s.log,
	}
	if s.cfg.Start != nil {
		opts.Start = *s.cfg.Start
	}
	return synchronizer.Synchronize(ctx, s.providers, opts)
}

// serveMetrics exposes the default Prometheus registry until stop is
// called.
func serveMetrics(address string) (stop func(), err error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			newLogger().Error(err, "metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
