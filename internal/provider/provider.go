package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/provisioning"
	"github.com/imamik/reservoir/internal/provisioning/deploy"
	"github.com/imamik/reservoir/internal/spec"
)

// ErrNegativeWalltime is returned when shifting the walltime would bring it
// to zero or below.
var ErrNegativeWalltime = errors.New("walltime would drop to zero or below")

// Executor prepares hosts once they are reachable.
type Executor interface {
	// GrantRoot lets the caller's key log in as root on every address.
	GrantRoot(ctx context.Context, addresses []string) error
	// EnableDHCP brings up, per address, the listed devices.
	EnableDHCP(ctx context.Context, devices map[string][]string) error
}

// Options configure a Provider.
type Options struct {
	Walltime time.Duration
	Start    *time.Time

	// Deploy images the nodes with Image before handing them out.
	Deploy      bool
	Image       string
	PublicKey   string
	ForceDeploy bool
	// DHCP brings secondary interfaces up on imaged nodes. Nodes that are
	// not imaged get a root-access grant instead.
	DHCP              bool
	MaxDeployAttempts int

	Prober   deploy.Prober
	Executor Executor
	Observer provisioning.Observer
}

// Provider runs reservations on one testbed.
type Provider struct {
	name string
	drv  driver.Driver
	res  *spec.Resources
	opts Options

	mu          sync.Mutex
	reservation driver.Reservation
}

// New returns a Provider reserving res through drv.
func New(name string, drv driver.Driver, res *spec.Resources, opts Options) *Provider {
	if opts.Observer == nil {
		opts.Observer = provisioning.NewLogObserver(logr.Discard())
	}
	p := &Provider{
		name: name,
		drv:  drv,
		res:  res,
		opts: opts,
	}
	p.reservation = driver.Reservation{Start: cloneTime(opts.Start), Walltime: opts.Walltime}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Driver returns the backend driver.
func (p *Provider) Driver() driver.Driver { return p.drv }

// Init reserves, waits for and prepares the resources. Reserving an
// existing reservation reloads it, so calling Init twice yields the same
// hosts. A non-nil start overrides the configured start date.
func (p *Provider) Init(ctx context.Context, forceRedeploy bool, start *time.Time) (network.Roles, network.Networks, error) {
	if start != nil {
		p.SetReservation(*start)
	}
	obs := p.opts.Observer.WithFields(map[string]string{"provider": p.name})
	r := &run{force: forceRedeploy || p.opts.ForceDeploy}

	if err := provisioning.RunPhases(provisioning.NewContext(ctx, obs), p.phases(r)); err != nil {
		return nil, nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	return r.roles, r.networks, nil
}

// AsyncInit submits the reservation without waiting for it to start.
func (p *Provider) AsyncInit(ctx context.Context, start *time.Time) error {
	if start != nil {
		p.SetReservation(*start)
	}
	if err := p.drv.Reserve(ctx, p.Snapshot()); err != nil {
		return fmt.Errorf("provider %s: %w", p.name, err)
	}
	return nil
}

// Destroy releases the reservation.
func (p *Provider) Destroy(ctx context.Context, wait bool) error {
	if err := p.drv.Destroy(ctx, wait); err != nil {
		return fmt.Errorf("provider %s: %w", p.name, err)
	}
	provisioning.LogResourceDeleted(p.opts.Observer, "destroy", "reservation", p.drv.Name())
	return nil
}

// IsCreated reports whether the backend acknowledged a reservation that
// has not been destroyed since.
func (p *Provider) IsCreated() bool {
	return p.drv.State() == driver.StateActive
}

// TestSlot reports whether the resources fit from start for the whole
// walltime. windowEnd bounds the probe when no walltime is set. Probe
// failures count as "does not fit".
func (p *Provider) TestSlot(ctx context.Context, start, windowEnd time.Time) bool {
	end := windowEnd
	if w := p.Snapshot().Walltime; w > 0 {
		end = start.Add(w)
	}
	ok, err := p.drv.Feasible(ctx, start, end)
	if err != nil {
		p.opts.Observer.Printf("provider %s: probing slot at %s failed: %v", p.name, start.UTC().Format(time.RFC3339), err)
		return false
	}
	return ok
}

// SetReservation sets the start date of the next reservation.
func (p *Provider) SetReservation(start time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reservation.Start = &start
}

// OffsetWalltime adds delta to the walltime. The walltime is left alone
// when the result would not be positive.
func (p *Provider) OffsetWalltime(delta time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := p.reservation.Walltime + delta
	if next <= 0 {
		return fmt.Errorf("provider %s: %w (walltime %s, offset %s)", p.name, ErrNegativeWalltime, p.reservation.Walltime, delta)
	}
	p.reservation.Walltime = next
	return nil
}

// Snapshot returns a copy of the reservation settings.
func (p *Provider) Snapshot() driver.Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return driver.Reservation{Start: cloneTime(p.reservation.Start), Walltime: p.reservation.Walltime}
}

// Restore replaces the reservation settings with s.
func (p *Provider) Restore(s driver.Reservation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reservation = driver.Reservation{Start: cloneTime(s.Start), Walltime: s.Walltime}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
