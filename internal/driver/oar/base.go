package oar

import (
	"context"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	oarapi "github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/sitecache"
	"github.com/imamik/reservoir/internal/spec"
	"github.com/imamik/reservoir/internal/util/async"
	"github.com/imamik/reservoir/internal/util/retry"
)

// API is the subset of the testbed client the drivers use.
type API interface {
	Site(ctx context.Context, site string) (*oarapi.Site, error)
	VLAN(ctx context.Context, site, id string) (*oarapi.VLAN, error)
	SetVLANMembers(ctx context.Context, site, id string, members []oarapi.VLANMember) error
	SubmitJob(ctx context.Context, site string, req oarapi.JobRequest) (*oarapi.Job, error)
	Jobs(ctx context.Context, site, name string, states ...string) ([]oarapi.Job, error)
	Job(ctx context.Context, site string, id int64) (*oarapi.Job, error)
	DeleteJob(ctx context.Context, site string, id int64) error
	Deploy(ctx context.Context, site string, req oarapi.DeploymentRequest) (*oarapi.Deployment, error)
	Deployment(ctx context.Context, site, id string) (*oarapi.Deployment, error)
	Availability(ctx context.Context, site string, start, end time.Time) (*oarapi.Availability, error)
}

var _ API = (*oarapi.Client)(nil)

// activeStates are the states of a job that still holds, or will hold,
// resources.
var activeStates = []string{oarapi.StateWaiting, oarapi.StateLaunching, oarapi.StateRunning}

// Metadata caches site and VLAN descriptions. One Metadata may be shared by
// the drivers talking to the same API.
type Metadata struct {
	Sites *sitecache.Cache[string, *oarapi.Site]
	VLANs *sitecache.Cache[string, *oarapi.VLAN]
}

// NewMetadata returns empty caches whose entries live for ttl.
func NewMetadata(ttl time.Duration) *Metadata {
	return &Metadata{
		Sites: sitecache.New[string, *oarapi.Site](ttl),
		VLANs: sitecache.New[string, *oarapi.VLAN](ttl),
	}
}

// Timing configures polling.
type Timing struct {
	PollInterval  time.Duration
	WaitTimeout   time.Duration
	DeployTimeout time.Duration
}

// DefaultTiming polls every 5 seconds.
func DefaultTiming() Timing {
	return Timing{
		PollInterval:  5 * time.Second,
		WaitTimeout:   2 * time.Hour,
		DeployTimeout: 30 * time.Minute,
	}
}

// base holds what both driver flavors share: the jobs per site and every
// operation that only needs their identifiers.
type base struct {
	api    API
	meta   *Metadata
	timing Timing
	log    logr.Logger

	lc driver.Lifecycle

	mu   sync.Mutex
	jobs map[string]int64
}

func newBase(api API, meta *Metadata, timing Timing, log logr.Logger) base {
	if meta == nil {
		meta = NewMetadata(0)
	}
	return base{
		api:    api,
		meta:   meta,
		timing: timing,
		log:    log,
		jobs:   make(map[string]int64),
	}
}

func (b *base) State() driver.State {
	return b.lc.State()
}

func (b *base) setJob(site string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jobs[site] = id
}

func (b *base) jobIDs() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.jobs)
}

func (b *base) dropJob(site string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.jobs, site)
}

func (b *base) clearJobs() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.jobs)
}

func (b *base) site(ctx context.Context, site string) (*oarapi.Site, error) {
	return b.meta.Sites.Get(ctx, site, func(ctx context.Context) (*oarapi.Site, error) {
		return b.api.Site(ctx, site)
	})
}

func (b *base) vlan(ctx context.Context, site, id string) (*oarapi.VLAN, error) {
	return b.meta.VLANs.Get(ctx, site+"/"+id, func(ctx context.Context) (*oarapi.VLAN, error) {
		return b.api.VLAN(ctx, site, id)
	})
}

// Jobs fetches the current state of every known job.
func (b *base) Jobs(ctx context.Context) ([]*driver.Job, error) {
	ids := b.jobIDs()
	if len(ids) == 0 {
		return nil, driver.ErrNotReserved
	}

	sites := slices.Sorted(maps.Keys(ids))
	out := make([]*driver.Job, len(sites))
	tasks := make([]async.Task, len(sites))
	for i, site := range sites {
		tasks[i] = async.Task{Name: site, Func: func(ctx context.Context) error {
			raw, err := b.api.Job(ctx, site, ids[site])
			if err != nil {
				return err
			}
			job, err := b.convertJob(ctx, raw)
			if err != nil {
				return err
			}
			out[i] = job
			return nil
		}}
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return nil, fmt.Errorf("fetching jobs: %w", err)
	}
	return out, nil
}

// Wait polls every job until all of them run.
func (b *base) Wait(ctx context.Context) error {
	b.log.V(1).Info("waiting for jobs", "sites", slices.Sorted(maps.Keys(b.jobIDs())))
	if err := driver.WaitRunning(ctx, b.timing.PollInterval, b.timing.WaitTimeout, b.Jobs); err != nil {
		b.lc.Fail()
		return err
	}
	return nil
}

// Resources collects nodes and networks of every job.
func (b *base) Resources(ctx context.Context) (*driver.Allocation, error) {
	jobs, err := b.Jobs(ctx)
	if err != nil {
		return nil, err
	}

	alloc := &driver.Allocation{Interfaces: make(map[string][]string)}
	for _, j := range jobs {
		if j.State != driver.JobRunning {
			return nil, fmt.Errorf("job %s is %s, not running", j, j.State)
		}
		alloc.Nodes = append(alloc.Nodes, j.Nodes...)
		alloc.Networks = append(alloc.Networks, j.Networks...)

		site, err := b.site(ctx, j.Site)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", j.Site, err)
		}
		for _, node := range j.Nodes {
			for _, c := range site.Clusters {
				if c.UID == spec.ClusterOf(node) {
					alloc.Interfaces[node] = slices.Clone(c.Interfaces)
				}
			}
		}
	}
	return alloc, nil
}

func (b *base) convertJob(ctx context.Context, raw *oarapi.Job) (*driver.Job, error) {
	job := &driver.Job{
		ID:       fmt.Sprint(raw.ID),
		Site:     raw.Site,
		Name:     raw.Name,
		State:    jobState(raw.State),
		Walltime: time.Duration(raw.Walltime) * time.Second,
		Nodes:    slices.Clone(raw.Nodes),
	}
	if raw.ScheduledAt > 0 {
		job.StartAt = time.Unix(raw.ScheduledAt, 0)
	}

	site, err := b.site(ctx, raw.Site)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", raw.Site, err)
	}
	job.Networks = append(job.Networks, network.Descriptor{
		Site:    raw.Site,
		Kind:    spec.KindProduction,
		ID:      raw.Site,
		CIDR:    parsePrefix(site.Production.CIDR),
		Gateway: parseAddr(site.Production.Gateway),
		DNS:     parseAddr(site.Production.DNS),
	})

	for _, id := range raw.VLANs {
		v, err := b.vlan(ctx, raw.Site, id)
		if err != nil {
			return nil, fmt.Errorf("vlan %s on %s: %w", id, raw.Site, err)
		}
		job.Networks = append(job.Networks, network.Descriptor{
			Site:    raw.Site,
			Kind:    spec.NetworkKind(v.Kind),
			ID:      v.ID,
			CIDR:    parsePrefix(v.CIDR),
			Gateway: parseAddr(v.Gateway),
			DNS:     parseAddr(v.DNS),
		})
	}
	for _, s := range raw.Subnets {
		job.Networks = append(job.Networks, network.Descriptor{
			Site:    raw.Site,
			Kind:    spec.NetworkKind(s.Kind),
			ID:      s.CIDR,
			CIDR:    parsePrefix(s.CIDR),
			Gateway: parseAddr(s.Gateway),
			DNS:     parseAddr(s.DNS),
		})
	}
	return job, nil
}

func jobState(s string) driver.JobState {
	switch s {
	case oarapi.StateRunning:
		return driver.JobRunning
	case oarapi.StateError:
		return driver.JobError
	case oarapi.StateTerminated:
		return driver.JobDone
	default:
		return driver.JobPending
	}
}

// Deploy images nodes and polls the deployment until it leaves the
// processing state.
func (b *base) Deploy(ctx context.Context, site string, nodes []string, opts driver.DeployOptions) ([]string, []string, error) {
	dep, err := b.api.Deploy(ctx, site, oarapi.DeploymentRequest{
		Nodes:       nodes,
		Environment: opts.Image,
		Key:         opts.PublicKey,
		VLAN:        opts.VLAN,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("deploying on %s: %w", site, err)
	}
	b.log.Info("deployment submitted", "site", site, "deployment", dep.ID, "nodes", len(nodes))

	err = retry.Poll(ctx, b.timing.PollInterval, b.timing.DeployTimeout, func(ctx context.Context) (bool, error) {
		cur, err := b.api.Deployment(ctx, site, dep.ID)
		if err != nil {
			return false, err
		}
		dep = cur
		b.log.V(1).Info("deployment status", "site", site, "deployment", dep.ID, "status", dep.Status)
		return dep.Status != oarapi.DeploymentProcessing, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("deployment %s on %s: %w", dep.ID, site, err)
	}

	var deployed, undeployed []string
	for _, n := range nodes {
		if dep.Result[n] == oarapi.NodeOK {
			deployed = append(deployed, n)
		} else {
			undeployed = append(undeployed, n)
		}
	}
	return deployed, undeployed, nil
}

// AttachNetwork moves host devices into a VLAN. Production networks need
// nothing.
func (b *base) AttachNetwork(ctx context.Context, site string, net network.Descriptor, attachments []network.Attachment) error {
	switch {
	case net.Kind == spec.KindProduction:
		return nil
	case !net.Kind.IsVLAN():
		return fmt.Errorf("cannot attach hosts to %s network %s", net.Kind, net.ID)
	}

	members := make([]oarapi.VLANMember, len(attachments))
	for i, a := range attachments {
		members[i] = oarapi.VLANMember{Node: a.Host, Interface: a.Device}
	}
	if err := b.api.SetVLANMembers(ctx, site, net.ID, members); err != nil {
		return fmt.Errorf("attaching %d devices to vlan %s on %s: %w", len(members), net.ID, site, err)
	}
	return nil
}

func parsePrefix(s string) netip.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}
	}
	return p
}

func parseAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return a
}
