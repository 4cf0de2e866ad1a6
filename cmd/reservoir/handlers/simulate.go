package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/imamik/reservoir/internal/simulator"
)

// SimulateOptions are the flags of the simulate command.
type SimulateOptions struct {
	Listen    string
	Inventory string
	// Database is the sqlite file holding jobs. Empty keeps them in memory.
	Database string
	Token    string
}

// Factory function variables for simulate - can be replaced in tests.
var (
	// listen opens the simulator socket.
	listen = func(address string) (net.Listener, error) {
		return net.Listen("tcp", address)
	}

	// simulatorReady is called once the simulator accepts connections.
	simulatorReady = func(net.Addr) {}
)

// Simulate handles the simulate command.
//
// It serves a local testbed until ctx is cancelled.
func Simulate(ctx context.Context, opts SimulateOptions) error {
	log := newLogger().WithName("simulator")

	inv, err := simulator.LoadInventory(opts.Inventory)
	if err != nil {
		return err
	}
	store, err := simulator.OpenStore(ctx, opts.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	token := opts.Token
	if token == "" {
		token = loadSecrets().OARToken
	}
	srv, err := simulator.NewServer(simulator.Options{Inventory: inv, Store: store, Token: token, Log: log})
	if err != nil {
		return err
	}

	ln, err := listen(opts.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()
	log.Info("simulator listening", "address", ln.Addr().String(), "sites", inv.SiteNames())
	simulatorReady(ln.Addr())

	select {
	case err := <-errCh:
		return fmt.Errorf("simulator stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to stop simulator: %w", err)
	}
	log.Info("simulator stopped")
	return nil
}
