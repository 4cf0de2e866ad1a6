package cloud

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/netutil"
	"github.com/imamik/reservoir/internal/network"
	hcloudapi "github.com/imamik/reservoir/internal/platform/hcloud"
	"github.com/imamik/reservoir/internal/spec"
	"github.com/imamik/reservoir/internal/util/async"
	"github.com/imamik/reservoir/internal/util/labels"
	"github.com/imamik/reservoir/internal/util/naming"
)

// Config describes what a Driver reserves.
type Config struct {
	// Job names the reservation. Every resource is labelled with it.
	Job       string
	Resources *spec.Resources
	// Image is installed on creation. Deploy reinstalls the image it is
	// given.
	Image     string
	PublicKey string
}

// Timing configures polling.
type Timing struct {
	PollInterval time.Duration
	WaitTimeout  time.Duration
	// SSHPort, when set, is awaited on every public address before Wait
	// returns.
	SSHPort int
}

// Driver implements driver.Driver on Hetzner Cloud.
type Driver struct {
	client hcloudapi.Client
	cfg    Config
	timing Timing
	log    logr.Logger

	lc driver.Lifecycle
}

var _ driver.Driver = (*Driver)(nil)

// NewDriver returns a driver for cfg.
func NewDriver(client hcloudapi.Client, cfg Config, timing Timing, log logr.Logger) *Driver {
	cfg.Job = naming.Job(cfg.Job)
	return &Driver{
		client: client,
		cfg:    cfg,
		timing: timing,
		log:    log.WithValues("job", cfg.Job, "backend", "hcloud"),
	}
}

func (d *Driver) Name() string {
	return d.cfg.Job
}

func (d *Driver) State() driver.State {
	return d.lc.State()
}

func (d *Driver) jobLabels() map[string]string {
	return labels.NewLabelBuilder(d.cfg.Job).Build()
}

// Reserve creates the private networks, then the servers of every machine
// group. Existing resources with the same names are reused.
func (d *Driver) Reserve(ctx context.Context, r driver.Reservation) error {
	if err := d.lc.Transition(driver.StateReserving); err != nil {
		return err
	}
	if r.Start != nil && r.Start.After(time.Now()) {
		d.log.Info("cloud reservations start immediately", "requested", r.Start.UTC())
	}

	if err := d.reserve(ctx); err != nil {
		d.lc.Fail()
		return fmt.Errorf("reserving %s: %w", d.cfg.Job, err)
	}
	return d.lc.Transition(driver.StateActive)
}

func (d *Driver) reserve(ctx context.Context) error {
	var keys []string
	if d.cfg.PublicKey != "" {
		key, err := d.client.EnsureSSHKey(ctx, d.cfg.Job, d.cfg.PublicKey, d.jobLabels())
		if err != nil {
			return err
		}
		keys = []string{key.Name}
	}

	for i, n := range d.privateNetworks() {
		if err := d.ensureNetwork(ctx, i, n); err != nil {
			return err
		}
	}

	var tasks []async.Task
	for _, m := range d.cfg.Resources.Machines() {
		for _, name := range serverNames(d.cfg.Job, m) {
			opts := hcloudapi.ServerCreateOpts{
				Name:       name,
				Image:      d.cfg.Image,
				ServerType: spec.ClusterOf(name),
				Location:   m.Site,
				SSHKeys:    keys,
				Labels: labels.NewLabelBuilder(d.cfg.Job).
					WithGroup(m.ID).
					WithSite(m.Site).
					Build(),
			}
			tasks = append(tasks, async.Task{Name: name, Func: func(ctx context.Context) error {
				_, err := d.client.CreateServer(ctx, opts)
				if err == nil {
					d.log.Info("server ready", "server", name)
				}
				return err
			}})
		}
	}

	failed := map[string]error{}
	for _, res := range async.RunAll(ctx, tasks) {
		if res.Err != nil {
			failed[res.Name] = res.Err
			d.log.Error(res.Err, "creating server failed", "server", res.Name)
		}
	}

	// Groups may accept fewer servers than requested; only a group falling
	// below its minimum fails the reservation.
	for _, m := range d.cfg.Resources.Machines() {
		names := serverNames(d.cfg.Job, m)
		got := 0
		var lastErr error
		for _, n := range names {
			if err, ok := failed[n]; ok {
				lastErr = err
				continue
			}
			got++
		}
		if got < m.Minimum() {
			return fmt.Errorf("group %s: %d of %d servers created, need %d: %w", m.ID, got, len(names), m.Minimum(), lastErr)
		}
	}
	return ctx.Err()
}

// privateNetworks returns the network groups backed by private networks,
// in declaration order.
func (d *Driver) privateNetworks() []spec.NetworkGroupSpec {
	var out []spec.NetworkGroupSpec
	for _, n := range d.cfg.Resources.Networks() {
		if n.Kind != spec.KindProduction {
			out = append(out, n)
		}
	}
	return out
}

func (d *Driver) ensureNetwork(ctx context.Context, index int, n spec.NetworkGroupSpec) error {
	ipRange := networkRange(index)
	net, err := d.client.EnsureNetwork(ctx, naming.PrivateNetwork(d.cfg.Job, n.ID), ipRange.String(),
		labels.NewLabelBuilder(d.cfg.Job).WithNetwork(n.ID).WithSite(n.Site).Build())
	if err != nil {
		return err
	}
	if err := d.client.EnsureSubnet(ctx, net, ipRange.String(), hcloudapi.NetworkZone(n.Site)); err != nil {
		return err
	}
	d.log.Info("private network ready", "network", n.ID, "range", ipRange)
	return nil
}

// networkRange returns the /16 of the index-th private network.
func networkRange(index int) netip.Prefix {
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(100 + index), 0, 0}), 16)
}

func serverNames(job string, m spec.MachineGroupSpec) []string {
	if m.Explicit() {
		return slices.Clone(m.Servers)
	}
	names := make([]string, m.Count)
	for i := range names {
		names[i] = naming.Server(job, m.Site, m.Cluster, i+1)
	}
	return names
}

// Wait polls until every server runs and, when SSHPort is set, accepts
// connections.
func (d *Driver) Wait(ctx context.Context) error {
	if err := driver.WaitRunning(ctx, d.timing.PollInterval, d.timing.WaitTimeout, d.Jobs); err != nil {
		d.lc.Fail()
		return err
	}
	if d.timing.SSHPort == 0 {
		return nil
	}

	servers, err := d.client.GetServersByLabel(ctx, d.jobLabels())
	if err != nil {
		return err
	}
	var tasks []async.Task
	for _, s := range servers {
		ip := hcloudapi.ServerIPv4(s)
		if ip == "" {
			continue
		}
		tasks = append(tasks, async.Task{Name: s.Name, Func: func(ctx context.Context) error {
			return netutil.WaitForPort(ctx, ip, d.timing.SSHPort, d.timing.PollInterval, d.timing.WaitTimeout)
		}})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		d.lc.Fail()
		return fmt.Errorf("servers unreachable: %w", err)
	}
	return nil
}

// Jobs returns one job per location, derived from the state of its
// servers.
func (d *Driver) Jobs(ctx context.Context) ([]*driver.Job, error) {
	servers, err := d.client.GetServersByLabel(ctx, d.jobLabels())
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		return nil, driver.ErrNotReserved
	}

	bySite := map[string]*driver.Job{}
	var sites []string
	for _, s := range servers {
		site := s.Labels[labels.KeySite]
		j, ok := bySite[site]
		if !ok {
			j = &driver.Job{ID: d.cfg.Job, Site: site, Name: d.cfg.Job, State: driver.JobRunning, StartAt: s.Created}
			bySite[site] = j
			sites = append(sites, site)
		}
		j.Nodes = append(j.Nodes, s.Name)
		j.State = worse(j.State, serverState(s.Status))
		if s.Created.Before(j.StartAt) {
			j.StartAt = s.Created
		}
	}

	slices.Sort(sites)
	jobs := make([]*driver.Job, len(sites))
	for i, site := range sites {
		slices.Sort(bySite[site].Nodes)
		jobs[i] = bySite[site]
	}
	return jobs, nil
}

func serverState(s hcloud.ServerStatus) driver.JobState {
	switch s {
	case hcloud.ServerStatusRunning, hcloud.ServerStatusRebuilding:
		return driver.JobRunning
	case hcloud.ServerStatusInitializing, hcloud.ServerStatusStarting:
		return driver.JobPending
	case hcloud.ServerStatusDeleting:
		return driver.JobDone
	default:
		return driver.JobError
	}
}

var stateRank = map[driver.JobState]int{
	driver.JobRunning: 0,
	driver.JobPending: 1,
	driver.JobDone:    2,
	driver.JobError:   3,
}

func worse(a, b driver.JobState) driver.JobState {
	if stateRank[b] > stateRank[a] {
		return b
	}
	return a
}

// Resources lists the servers and the descriptors of every network group.
func (d *Driver) Resources(ctx context.Context) (*driver.Allocation, error) {
	servers, err := d.client.GetServersByLabel(ctx, d.jobLabels())
	if err != nil {
		return nil, err
	}
	networks, err := d.client.GetNetworksByLabel(ctx, d.jobLabels())
	if err != nil {
		return nil, err
	}

	alloc := &driver.Allocation{
		Interfaces: map[string][]string{},
		Addresses:  map[string]string{},
	}
	for _, s := range servers {
		alloc.Nodes = append(alloc.Nodes, s.Name)
		if ip := hcloudapi.ServerIPv4(s); ip != "" {
			alloc.Addresses[s.Name] = ip
		}
		// Hetzner names private interfaces in attachment order.
		alloc.Interfaces[s.Name] = []string{"enp7s0", "enp8s0", "enp9s0"}
	}
	slices.Sort(alloc.Nodes)

	for _, site := range d.cfg.Resources.Sites() {
		alloc.Networks = append(alloc.Networks, network.Descriptor{
			Site: site, Kind: spec.KindProduction, ID: "public",
		})
	}

	byGroup := map[string]*hcloud.Network{}
	for _, n := range networks {
		byGroup[n.Labels[labels.KeyNetwork]] = n
	}
	for _, g := range d.privateNetworks() {
		n, ok := byGroup[g.ID]
		if !ok || n.IPRange == nil {
			continue
		}
		prefix, err := netip.ParsePrefix(n.IPRange.String())
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", n.Name, err)
		}
		alloc.Networks = append(alloc.Networks, descriptors(g, n.ID, prefix)...)
	}
	return alloc, nil
}

// descriptors carves the descriptors of group g out of its private
// network. Subnet kinds are served as /22 blocks.
func descriptors(g spec.NetworkGroupSpec, id int64, prefix netip.Prefix) []network.Descriptor {
	gateway := prefix.Masked().Addr().Next()
	if g.Kind.IsVLAN() {
		return []network.Descriptor{{
			Site: g.Site, Kind: g.Kind, ID: strconv.FormatInt(id, 10),
			CIDR: prefix.Masked(), Gateway: gateway,
		}}
	}

	out := make([]network.Descriptor, 0, g.Kind.Descriptors())
	base := prefix.Masked().Addr().As4()
	for i := range g.Kind.Descriptors() {
		block := netip.PrefixFrom(netip.AddrFrom4([4]byte{base[0], base[1], byte(i * 4), 0}), 22)
		out = append(out, network.Descriptor{
			Site: g.Site, Kind: g.Kind, ID: block.String(),
			CIDR: block, Gateway: gateway,
		})
	}
	return out
}

// Deploy rebuilds every node with opts.Image. Failed rebuilds are reported
// as undeployed.
func (d *Driver) Deploy(ctx context.Context, site string, nodes []string, opts driver.DeployOptions) ([]string, []string, error) {
	image := opts.Image
	if image == "" {
		image = d.cfg.Image
	}

	errs := async.Map(ctx, nodes, func(ctx context.Context, node string) error {
		return d.client.RebuildServer(ctx, node, image)
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var deployed, undeployed []string
	for i, err := range errs {
		if err != nil {
			d.log.Error(err, "rebuild failed", "site", site, "server", nodes[i])
			undeployed = append(undeployed, nodes[i])
			continue
		}
		deployed = append(deployed, nodes[i])
	}
	return deployed, undeployed, nil
}

// AttachNetwork attaches servers to the private network behind net.
func (d *Driver) AttachNetwork(ctx context.Context, site string, net network.Descriptor, attachments []network.Attachment) error {
	if net.Kind == spec.KindProduction {
		return nil
	}

	networks, err := d.client.GetNetworksByLabel(ctx, d.jobLabels())
	if err != nil {
		return err
	}
	var target *hcloud.Network
	for _, n := range networks {
		if strconv.FormatInt(n.ID, 10) == net.ID || (n.IPRange != nil && net.CIDR.IsValid() && n.IPRange.Contains(net.CIDR.Addr().AsSlice())) {
			target = n
			break
		}
	}
	if target == nil {
		return fmt.Errorf("site %s: no private network for %s", site, net)
	}

	tasks := make([]async.Task, len(attachments))
	for i, a := range attachments {
		tasks[i] = async.Task{Name: a.Host, Func: func(ctx context.Context) error {
			return d.client.AttachServerToNetwork(ctx, a.Host, target.ID)
		}}
	}
	return async.RunParallel(ctx, tasks)
}

// Feasible reports whether every server type can be ordered now. The
// interval is ignored.
func (d *Driver) Feasible(ctx context.Context, _, _ time.Time) (bool, error) {
	for _, site := range d.cfg.Resources.Sites() {
		var types []string
		for _, m := range d.cfg.Resources.OnSite(site).Machines() {
			for _, name := range serverNames(d.cfg.Job, m) {
				if t := spec.ClusterOf(name); !slices.Contains(types, t) {
					types = append(types, t)
				}
			}
		}
		ok, err := d.client.ServerTypesAvailable(ctx, site, types)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Exists reports whether servers labelled with the job exist.
func (d *Driver) Exists(ctx context.Context) (bool, error) {
	servers, err := d.client.GetServersByLabel(ctx, d.jobLabels())
	if err != nil {
		return false, err
	}
	return len(servers) > 0, nil
}

// Destroy deletes everything labelled with the job. Deletions are always
// awaited, so wait has no effect.
func (d *Driver) Destroy(ctx context.Context, _ bool) error {
	if err := d.lc.Transition(driver.StateDestroying); err != nil {
		return err
	}
	if err := d.client.CleanupByLabel(ctx, d.jobLabels()); err != nil {
		d.lc.Fail()
		return fmt.Errorf("destroying %s: %w", d.cfg.Job, err)
	}
	d.log.Info("reservation destroyed")
	return d.lc.Transition(driver.StateDestroyed)
}
