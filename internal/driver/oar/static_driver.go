package oar

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/reservoir/internal/driver"
	oarapi "github.com/imamik/reservoir/internal/platform/oar"
)

// JobRef identifies an existing job.
type JobRef struct {
	Site string
	ID   int64
}

// StaticDriver reloads jobs created outside of reservoir.
type StaticDriver struct {
	base
	name string
	refs []JobRef
}

var _ driver.Driver = (*StaticDriver)(nil)

// NewStaticDriver returns a driver bound to refs. name only shows in logs.
func NewStaticDriver(api API, name string, refs []JobRef, meta *Metadata, timing Timing, log logr.Logger) *StaticDriver {
	d := &StaticDriver{
		base: newBase(api, meta, timing, log.WithValues("job", name)),
		name: name,
		refs: refs,
	}
	for _, r := range refs {
		d.setJob(r.Site, r.ID)
	}
	return d
}

func (d *StaticDriver) Name() string {
	return d.name
}

// Reserve checks that every referenced job is still alive. Timing is
// ignored: the jobs already exist.
func (d *StaticDriver) Reserve(ctx context.Context, _ driver.Reservation) error {
	if err := d.lc.Transition(driver.StateReserving); err != nil {
		return err
	}
	if len(d.refs) == 0 {
		d.lc.Fail()
		return fmt.Errorf("%s: %w: no job identifiers", d.name, driver.ErrNotReserved)
	}
	for _, r := range d.refs {
		j, err := d.api.Job(ctx, r.Site, r.ID)
		if err != nil {
			d.lc.Fail()
			return fmt.Errorf("reloading job %d on %s: %w", r.ID, r.Site, err)
		}
		if j.State == oarapi.StateTerminated || j.State == oarapi.StateError {
			d.lc.Fail()
			return fmt.Errorf("%w: job %d on %s is %s", driver.ErrJobFailed, r.ID, r.Site, j.State)
		}
		d.log.Info("reloaded job", "site", r.Site, "id", r.ID, "state", j.State)
	}
	return d.lc.Transition(driver.StateActive)
}

// Feasible is always true: the jobs are already scheduled.
func (d *StaticDriver) Feasible(context.Context, time.Time, time.Time) (bool, error) {
	return true, nil
}

// Exists reports whether any referenced job is alive.
func (d *StaticDriver) Exists(ctx context.Context) (bool, error) {
	for _, r := range d.refs {
		j, err := d.api.Job(ctx, r.Site, r.ID)
		if oarapi.IsNotFound(err) {
			continue
		}
		if err != nil {
			return false, err
		}
		if j.State != oarapi.StateTerminated && j.State != oarapi.StateError {
			return true, nil
		}
	}
	return false, nil
}

// Destroy leaves the jobs alone; they belong to whoever created them.
func (d *StaticDriver) Destroy(context.Context, bool) error {
	if err := d.lc.Transition(driver.StateDestroying); err != nil {
		return err
	}
	d.log.Info("static jobs are not deleted", "jobs", len(d.refs))
	return d.lc.Transition(driver.StateDestroyed)
}
