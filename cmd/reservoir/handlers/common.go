// Package handlers implements the business logic behind the CLI commands.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/mattn/go-isatty"

	"github.com/imamik/reservoir/internal/config"
	"github.com/imamik/reservoir/internal/inventory"
	"github.com/imamik/reservoir/internal/platform/s3"
	"github.com/imamik/reservoir/internal/platform/ssh"
	"github.com/imamik/reservoir/internal/provider"
	"github.com/imamik/reservoir/internal/synchronizer"
)

// Factory function variables - can be replaced in tests.
var (
	// findConfigFile locates reservoir.yaml when no path is given.
	findConfigFile = config.FindConfigFile

	// loadConfigFile reads and validates an experiment file.
	loadConfigFile = config.Load

	// loadSecrets reads credentials from the environment.
	loadSecrets = config.LoadSecrets

	// loadTimeouts reads durations and retry ceilings from the environment.
	loadTimeouts = config.LoadTimeouts

	// newProviders builds the providers of an experiment.
	newProviders = func(cfg *config.Config, deps provider.Deps) ([]synchronizer.Provider, error) {
		providers, err := provider.FromConfig(cfg, deps)
		if err != nil {
			return nil, err
		}
		out := make([]synchronizer.Provider, len(providers))
		for i, p := range providers {
			out[i] = p
		}
		return out, nil
	}

	// newObjectStore connects to the S3-compatible inventory bucket.
	newObjectStore = func(ctx context.Context, cfg *config.S3Config, secrets config.Secrets) (inventory.ObjectStore, error) {
		return s3.NewClient(ctx, cfg.Endpoint, cfg.Region, secrets.S3AccessKey, secrets.S3SecretKey, s3.WithPathStyle())
	}

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// stderr receives logs.
	stderr io.Writer = os.Stderr

	// isTerminal reports whether output is styled.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// now is the clock used for default start dates and inventories.
	now = time.Now
)

var verbosity int

// SetVerbosity sets the level of V-logs written to stderr.
func SetVerbosity(v int) {
	verbosity = v
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(stderr, "%s %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(stderr, args)
	}, funcr.Options{Verbosity: verbosity, LogTimestamp: true, TimestampFormat: time.TimeOnly})
}

// loadConfig loads the experiment at configPath, or reservoir.yaml from the
// current directory upwards when configPath is empty.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		path, err := findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("no config file found: %w", err)
		}
		configPath = path
	}
	return loadConfigFile(configPath)
}

// newFleet connects the SSH settings of the experiment. A nil fleet means
// hosts are neither probed nor prepared.
func newFleet(cfg config.SSHConfig, t *config.Timeouts, log logr.Logger) (*ssh.Fleet, error) {
	if cfg.PrivateKeyFile == "" {
		return nil, nil
	}
	key, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}
	user := cfg.User
	if user == "" {
		user = os.Getenv("USER")
	}
	return ssh.NewFleet(ssh.FleetConfig{
		User:        user,
		PrivateKey:  key,
		DialTimeout: t.SSHDial,
		MaxRetries:  t.RetryMaxAttempts,
		RetryDelay:  t.RetryInitialDelay,
	}, log)
}

// setup is what every experiment command needs.
type setup struct {
	cfg       *config.Config
	secrets   config.Secrets
	timeouts  *config.Timeouts
	log       logr.Logger
	providers []synchronizer.Provider
}

func prepare(configPath string) (*setup, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	s := &setup{
		cfg:      cfg,
		secrets:  loadSecrets(),
		timeouts: loadTimeouts(),
		log:      newLogger().WithValues("experiment", cfg.Name),
	}

	deps := provider.Deps{Secrets: s.secrets, Timeouts: s.timeouts, Log: s.log}
	fleet, err := newFleet(cfg.SSH, s.timeouts, s.log)
	if err != nil {
		return nil, err
	}
	if fleet != nil {
		deps.Prober = fleet
		deps.Executor = fleet
	}

	if s.providers, err = newProviders(cfg, deps); err != nil {
		return nil, err
	}
	return s, nil
}

// sinks lists where the inventory of the experiment goes. output, when
// set, replaces the configured file.
func (s *setup) sinks(ctx context.Context, output string) ([]inventory.Sink, error) {
	var sinks []inventory.Sink
	file := s.cfg.Publish.File
	if output != "" {
		file = output
	}
	if file != "" {
		sinks = append(sinks, inventory.FileSink{Path: file})
	}
	if b := s.cfg.Publish.S3; b != nil {
		store, err := newObjectStore(ctx, b, s.secrets)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to object storage: %w", err)
		}
		sinks = append(sinks, inventory.BucketSink{Store: store, Bucket: b.Bucket, Key: b.Key})
	}
	return sinks, nil
}
