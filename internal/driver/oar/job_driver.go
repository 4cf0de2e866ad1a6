package oar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"

	"github.com/imamik/reservoir/internal/driver"
	oarapi "github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/spec"
	"github.com/imamik/reservoir/internal/util/async"
	"github.com/imamik/reservoir/internal/util/retry"
)

// JobConfig describes the jobs a JobDriver submits.
type JobConfig struct {
	// Name is the job name on every site.
	Name      string
	Resources *spec.Resources
	Queue     string
	Project   string
	Types     []string
}

// JobDriver submits one job per site, reloading jobs that already carry
// its name.
type JobDriver struct {
	base
	cfg JobConfig
}

var _ driver.Driver = (*JobDriver)(nil)

// NewJobDriver returns a driver for cfg.
func NewJobDriver(api API, cfg JobConfig, meta *Metadata, timing Timing, log logr.Logger) *JobDriver {
	return &JobDriver{
		base: newBase(api, meta, timing, log.WithValues("job", cfg.Name)),
		cfg:  cfg,
	}
}

func (d *JobDriver) Name() string {
	return d.cfg.Name
}

// Reserve reloads or submits the job of every site concurrently.
func (d *JobDriver) Reserve(ctx context.Context, r driver.Reservation) error {
	if err := d.lc.Transition(driver.StateReserving); err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		submitted = make(map[string]int64)
	)
	sites := d.cfg.Resources.Sites()
	tasks := make([]async.Task, len(sites))
	for i, site := range sites {
		tasks[i] = async.Task{Name: site, Func: func(ctx context.Context) error {
			id, fresh, err := d.reserveSite(ctx, site, r)
			if err == nil && fresh {
				mu.Lock()
				submitted[site] = id
				mu.Unlock()
			}
			return err
		}}
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		err = fmt.Errorf("reserving %s: %w", d.cfg.Name, err)
		if wErr := d.withdraw(ctx, submitted); wErr != nil {
			err = multierror.Append(err, wErr)
		}
		d.lc.Fail()
		return err
	}
	return d.lc.Transition(driver.StateActive)
}

// reserveSite returns the job of site and whether it was submitted by this
// call rather than reloaded.
func (d *JobDriver) reserveSite(ctx context.Context, site string, r driver.Reservation) (int64, bool, error) {
	existing, err := d.api.Jobs(ctx, site, d.cfg.Name, activeStates...)
	if err != nil {
		return 0, false, err
	}
	if len(existing) > 0 {
		d.log.Info("reloading existing job", "site", site, "id", existing[0].ID)
		d.setJob(site, existing[0].ID)
		return existing[0].ID, false, nil
	}

	req := d.request(site, r)
	job, err := d.api.SubmitJob(ctx, site, req)
	if err != nil {
		return 0, false, translateSubmitError(site, err)
	}
	d.log.Info("job submitted", "site", site, "id", job.ID, "reservation", req.Reservation, "walltime", req.Walltime)
	d.setJob(site, job.ID)
	return job.ID, true, nil
}

// withdraw deletes the jobs a refused Reserve submitted, so that no site
// keeps a job at a start date the other sites rejected.
func (d *JobDriver) withdraw(ctx context.Context, submitted map[string]int64) error {
	var result *multierror.Error
	for site, id := range submitted {
		if err := d.api.DeleteJob(ctx, site, id); err != nil && !oarapi.IsNotFound(err) {
			result = multierror.Append(result, fmt.Errorf("withdrawing job %d on %s: %w", id, site, err))
			continue
		}
		d.log.Info("job withdrawn", "site", site, "id", id)
		d.dropJob(site)
	}
	return result.ErrorOrNil()
}

func (d *JobDriver) request(site string, r driver.Reservation) oarapi.JobRequest {
	res := d.cfg.Resources.OnSite(site)
	req := oarapi.JobRequest{
		Name:     d.cfg.Name,
		Walltime: int64(r.Walltime / time.Second),
		Types:    d.cfg.Types,
		Queue:    d.cfg.Queue,
		Project:  d.cfg.Project,
	}
	if r.Start != nil {
		req.Reservation = r.Start.Unix()
	}

	for _, m := range res.Machines() {
		nr := oarapi.NodeRequest{ReservableDisks: m.ReservableDisks}
		if m.Explicit() {
			nr.Servers = m.Servers
		} else {
			nr.Cluster, nr.Count, nr.Min = m.Cluster, m.Count, m.Minimum()
		}
		req.Nodes = append(req.Nodes, nr)
	}

	for _, n := range res.Networks() {
		if n.Kind == spec.KindProduction {
			continue
		}
		req.Networks = append(req.Networks, oarapi.NetworkRequest{Kind: string(n.Kind), Count: n.Kind.Descriptors()})
	}
	return req
}

func translateSubmitError(site string, err error) error {
	if hint, ok := oarapi.IsInvalidReservationTime(err); ok {
		rt := &driver.InvalidReservationTimeError{Site: site}
		if hint > 0 {
			rt.Hint = time.Unix(hint, 0)
		}
		return rt
	}
	if oarapi.IsReservationTooOld(err) {
		return fmt.Errorf("site %s: %w", site, driver.ErrReservationTooOld)
	}
	return err
}

// Feasible checks the published availability of every site.
func (d *JobDriver) Feasible(ctx context.Context, start, end time.Time) (bool, error) {
	sites := d.cfg.Resources.Sites()
	results := async.Map(ctx, sites, func(ctx context.Context, site string) error {
		avail, err := d.api.Availability(ctx, site, start, end)
		if err != nil {
			return err
		}
		if !fits(d.cfg.Resources.OnSite(site), avail) {
			return errNoRoom
		}
		return nil
	})

	var errs []error
	for _, err := range results {
		if errors.Is(err, errNoRoom) {
			return false, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}
	return true, nil
}

var errNoRoom = errors.New("not enough free resources")

// fits reports whether the requested counts fit in avail.
func fits(res *spec.Resources, avail *oarapi.Availability) bool {
	free := make(map[string]map[string]bool)
	for cluster, nodes := range avail.FreeNodes {
		free[cluster] = make(map[string]bool, len(nodes))
		for _, n := range nodes {
			free[cluster][n] = true
		}
	}

	for _, m := range res.Machines() {
		if !m.Explicit() {
			continue
		}
		for _, s := range m.Servers {
			c := spec.ClusterOf(s)
			if !free[c][s] {
				return false
			}
			delete(free[c], s)
		}
	}
	for _, m := range res.Machines() {
		if m.Explicit() {
			continue
		}
		if len(free[m.Cluster]) < m.Count {
			return false
		}
		taken := 0
		for n := range free[m.Cluster] {
			if taken == m.Count {
				break
			}
			delete(free[m.Cluster], n)
			taken++
		}
	}

	needed := make(map[string]int)
	for _, n := range res.Networks() {
		if n.Kind != spec.KindProduction {
			needed[string(n.Kind)] += n.Kind.Descriptors()
		}
	}
	for kind, count := range needed {
		if avail.FreeNetworks[kind] < count {
			return false
		}
	}
	return true
}

// Exists reports whether a job with the driver's name is alive on any site.
func (d *JobDriver) Exists(ctx context.Context) (bool, error) {
	for _, site := range d.cfg.Resources.Sites() {
		jobs, err := d.api.Jobs(ctx, site, d.cfg.Name, activeStates...)
		if err != nil {
			return false, err
		}
		if len(jobs) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Destroy deletes every job carrying the driver's name.
func (d *JobDriver) Destroy(ctx context.Context, wait bool) error {
	if err := d.lc.Transition(driver.StateDestroying); err != nil {
		return err
	}

	sites := d.cfg.Resources.Sites()
	tasks := make([]async.Task, len(sites))
	for i, site := range sites {
		tasks[i] = async.Task{Name: site, Func: func(ctx context.Context) error {
			return d.destroySite(ctx, site, wait)
		}}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		d.lc.Fail()
		return fmt.Errorf("destroying %s: %w", d.cfg.Name, err)
	}

	d.clearJobs()
	return d.lc.Transition(driver.StateDestroyed)
}

func (d *JobDriver) destroySite(ctx context.Context, site string, wait bool) error {
	jobs, err := d.api.Jobs(ctx, site, d.cfg.Name, activeStates...)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(jobs)+1)
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if id, ok := d.jobIDs()[site]; ok && !containsID(ids, id) {
		ids = append(ids, id)
	}

	for _, id := range ids {
		if err := d.api.DeleteJob(ctx, site, id); err != nil && !oarapi.IsNotFound(err) {
			return err
		}
		d.log.Info("job deleted", "site", site, "id", id)
	}
	if !wait {
		return nil
	}

	return retry.Poll(ctx, d.timing.PollInterval, d.timing.WaitTimeout, func(ctx context.Context) (bool, error) {
		for _, id := range ids {
			j, err := d.api.Job(ctx, site, id)
			if oarapi.IsNotFound(err) {
				continue
			}
			if err != nil {
				return false, err
			}
			if j.State != oarapi.StateTerminated && j.State != oarapi.StateError {
				return false, nil
			}
		}
		return true, nil
	})
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
