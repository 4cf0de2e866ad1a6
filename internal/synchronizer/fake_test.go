package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
)

var errNegativeWalltime = errors.New("negative walltime")

// fakeProvider is a scripted Provider.
type fakeProvider struct {
	name string

	mu        sync.Mutex
	res       driver.Reservation
	created   bool
	probes    []time.Time
	ends      []time.Time
	commits   []time.Time
	destroyed int
	inits     int

	fits      func(start time.Time) bool
	commitErr func(start time.Time) error
	initErr   error
	roles     network.Roles
	nets      network.Networks
}

func newFake(name string, walltime time.Duration) *fakeProvider {
	return &fakeProvider{name: name, res: driver.Reservation{Walltime: walltime}}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Init(_ context.Context, _ bool, _ *time.Time) (network.Roles, network.Networks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	if f.initErr != nil {
		f.created = false
		return nil, nil, f.initErr
	}
	return f.roles, f.nets, nil
}

func (f *fakeProvider) AsyncInit(_ context.Context, start *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, *start)
	if f.commitErr != nil {
		if err := f.commitErr(*start); err != nil {
			return err
		}
	}
	f.created = true
	return nil
}

func (f *fakeProvider) Destroy(_ context.Context, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	f.created = false
	return nil
}

func (f *fakeProvider) IsCreated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *fakeProvider) TestSlot(_ context.Context, start, windowEnd time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, start)
	f.ends = append(f.ends, windowEnd)
	if f.fits == nil {
		return true
	}
	return f.fits(start)
}

func (f *fakeProvider) SetReservation(start time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res.Start = &start
}

func (f *fakeProvider) OffsetWalltime(delta time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.res.Walltime+delta <= 0 {
		return errNegativeWalltime
	}
	f.res.Walltime += delta
	return nil
}

func (f *fakeProvider) Snapshot() driver.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

func (f *fakeProvider) Restore(r driver.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res = r
}

func (f *fakeProvider) walltime() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res.Walltime
}
