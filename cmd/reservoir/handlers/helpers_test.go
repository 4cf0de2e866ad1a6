package handlers

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imamik/reservoir/internal/config"
	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/provider"
	"github.com/imamik/reservoir/internal/synchronizer"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// stubProvider is a scripted synchronizer.Provider.
type stubProvider struct {
	name string
	fits func(start time.Time) bool

	mu        sync.Mutex
	res       driver.Reservation
	created   bool
	initStart *time.Time
	destroyed bool
	roles     network.Roles
	nets      network.Networks
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Init(_ context.Context, _ bool, start *time.Time) (network.Roles, network.Networks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initStart = start
	s.created = true
	return s.roles, s.nets, nil
}

func (s *stubProvider) AsyncInit(_ context.Context, _ *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

func (s *stubProvider) Destroy(_ context.Context, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.created = false
	return nil
}

func (s *stubProvider) IsCreated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

func (s *stubProvider) TestSlot(_ context.Context, start, _ time.Time) bool {
	if s.fits == nil {
		return true
	}
	return s.fits(start)
}

func (s *stubProvider) SetReservation(start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res.Start = &start
}

func (s *stubProvider) OffsetWalltime(delta time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.res.Walltime+delta <= 0 {
		return errors.New("negative walltime")
	}
	s.res.Walltime += delta
	return nil
}

func (s *stubProvider) Snapshot() driver.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

func (s *stubProvider) Restore(r driver.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res = r
}

func newStub(name string, hosts ...*network.Host) *stubProvider {
	roles := network.Roles{}
	for _, h := range hosts {
		roles.Add(h, h.Roles...)
	}
	return &stubProvider{name: name, res: driver.Reservation{Walltime: time.Hour}, roles: roles}
}

func host(id, address string, status network.Status, roles ...string) *network.Host {
	return &network.Host{ID: id, SSHAddress: address, Status: status, Roles: roles}
}

// stubExperiment replaces the factories so that prepare returns cfg and
// providers. Output written by the handlers is returned.
func stubExperiment(t *testing.T, cfg *config.Config, providers ...synchronizer.Provider) *bytes.Buffer {
	t.Helper()

	origFind, origLoad := findConfigFile, loadConfigFile
	origSecrets, origTimeouts := loadSecrets, loadTimeouts
	origProviders, origStore := newProviders, newObjectStore
	origStdout, origStderr := stdout, stderr
	origTerminal, origNow := isTerminal, now
	t.Cleanup(func() {
		findConfigFile, loadConfigFile = origFind, origLoad
		loadSecrets, loadTimeouts = origSecrets, origTimeouts
		newProviders, newObjectStore = origProviders, origStore
		stdout, stderr = origStdout, origStderr
		isTerminal, now = origTerminal, origNow
	})

	var out bytes.Buffer
	findConfigFile = func() (string, error) { return "reservoir.yaml", nil }
	loadConfigFile = func(string) (*config.Config, error) { return cfg, nil }
	loadSecrets = func() config.Secrets { return config.Secrets{} }
	loadTimeouts = func() *config.Timeouts {
		return &config.Timeouts{
			SlotIncrement:     5 * time.Minute,
			SlotRetries:       2,
			StartMargin:       time.Minute,
			RetryMaxAttempts:  1,
			RetryInitialDelay: time.Millisecond,
		}
	}
	newProviders = func(*config.Config, provider.Deps) ([]synchronizer.Provider, error) {
		return providers, nil
	}
	stdout = &out
	stderr = &bytes.Buffer{}
	isTerminal = func() bool { return false }
	now = func() time.Time { return t0 }
	return &out
}
