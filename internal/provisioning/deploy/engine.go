package deploy

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/provisioning"
)

// DefaultMaxAttempts is the number of imaging attempts per partition.
const DefaultMaxAttempts = 3

// Deployer images nodes of one site. Every driver is a Deployer.
type Deployer interface {
	Deploy(ctx context.Context, site string, nodes []string, opts driver.DeployOptions) (deployed, undeployed []string, err error)
}

// Prober reports which of addresses already run the requested image.
type Prober interface {
	Deployed(ctx context.Context, addresses []string) (map[string]bool, error)
}

// Options configure a deployment.
type Options struct {
	Image         string
	PublicKey     string
	ForceRedeploy bool
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// Addresses overrides, by host ID, the address a host is probed and
	// reached at.
	Addresses map[string]string
}

// Engine drives deployments.
type Engine struct {
	deployer Deployer
	prober   Prober
	observer provisioning.Observer
}

// NewEngine returns an engine. prober may be nil, in which case every host
// is imaged.
func NewEngine(deployer Deployer, prober Prober, observer provisioning.Observer) *Engine {
	return &Engine{deployer: deployer, prober: prober, observer: observer}
}

type partitionKey struct {
	site    string
	network string
}

// Deploy images hosts and rewrites their SSH addresses through their
// primary network. The returned error is only set when ctx ends.
func (e *Engine) Deploy(ctx context.Context, hosts []*network.Host, opts Options) (deployed, undeployed []*network.Host, err error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	partitions := make(map[partitionKey][]*network.Host)
	for _, h := range hosts {
		k := partitionKey{site: h.Site}
		if h.Primary != nil {
			k.network = h.Primary.GroupID()
		}
		partitions[k] = append(partitions[k], h)
	}
	keys := make([]partitionKey, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b partitionKey) int {
		return cmp.Or(cmp.Compare(a.site, b.site), cmp.Compare(a.network, b.network))
	})

	for _, k := range keys {
		ok, failed, err := e.deployPartition(ctx, k, partitions[k], opts)
		if err != nil {
			return nil, nil, err
		}
		deployed = append(deployed, ok...)
		undeployed = append(undeployed, failed...)
	}
	return deployed, undeployed, nil
}

func (e *Engine) deployPartition(ctx context.Context, k partitionKey, hosts []*network.Host, opts Options) ([]*network.Host, []*network.Host, error) {
	var primary network.Network
	if len(hosts) > 0 {
		primary = hosts[0].Primary
	}
	obs := e.observer.WithFields(map[string]string{"site": k.site, "network": k.network})

	var already, pending []*network.Host
	if opts.ForceRedeploy || e.prober == nil {
		pending = slices.Clone(hosts)
	} else {
		already, pending = e.checkExisting(ctx, obs, hosts, opts.Addresses)
	}

	deployOpts := driver.DeployOptions{Image: opts.Image, PublicKey: opts.PublicKey}
	if vlan, ok := primary.(*network.VLANNetwork); ok {
		deployOpts.VLAN = vlan.VLANID()
	}

	imaged := map[string]bool{}
	for _, h := range already {
		imaged[h.ID] = true
	}

	for attempt := 1; attempt <= opts.MaxAttempts && len(pending) > 0; attempt++ {
		ids := hostIDs(pending)
		obs.Printf("imaging %d hosts with %s (attempt %d/%d)", len(ids), opts.Image, attempt, opts.MaxAttempts)

		ok, _, err := e.deployer.Deploy(ctx, k.site, ids, deployOpts)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if err != nil {
			provisioning.LogResourceFailed(obs, "deploy", "deployment", k.site, err)
			continue
		}

		for _, id := range ok {
			imaged[id] = true
		}
		pending = slices.DeleteFunc(pending, func(h *network.Host) bool { return imaged[h.ID] })
	}

	var deployed, undeployed []*network.Host
	for _, h := range hosts {
		if imaged[h.ID] {
			h.Status = network.StatusDeployed
			deployed = append(deployed, h)
		} else {
			h.Status = network.StatusUndeployed
			undeployed = append(undeployed, h)
		}
		Finalize(h, opts.Addresses)
	}

	if len(undeployed) > 0 {
		obs.Printf("giving up on %d hosts after %d attempts: %v", len(undeployed), opts.MaxAttempts, hostIDs(undeployed))
	}
	return deployed, undeployed, nil
}

// checkExisting splits hosts into those already carrying the image and
// those needing it. A failed probe sends every host to imaging.
func (e *Engine) checkExisting(ctx context.Context, obs provisioning.Observer, hosts []*network.Host, overrides map[string]string) (already, pending []*network.Host) {
	addrs := make([]string, len(hosts))
	for i, h := range hosts {
		switch {
		case overrides[h.ID] != "":
			addrs[i] = overrides[h.ID]
		case h.Primary != nil:
			addrs[i] = h.NameIn(h.Primary)
		default:
			addrs[i] = h.ID
		}
	}

	found, err := e.prober.Deployed(ctx, addrs)
	if err != nil {
		obs.Printf("probing deployed hosts failed, imaging all of them: %v", err)
		return nil, slices.Clone(hosts)
	}

	for i, h := range hosts {
		if found[addrs[i]] {
			already = append(already, h)
		} else {
			pending = append(pending, h)
		}
	}
	if len(already) > 0 {
		obs.Printf("%d hosts already deployed", len(already))
	}
	return already, pending
}

// Finalize rewrites the SSH address of h through its primary network,
// unless overrides names another address for it.
func Finalize(h *network.Host, overrides map[string]string) {
	h.Finalize()
	if addr := overrides[h.ID]; addr != "" {
		h.SSHAddress = addr
	}
}

func hostIDs(hosts []*network.Host) []string {
	ids := make([]string, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
	}
	return ids
}

// Summary formats counts for logs.
func Summary(deployed, undeployed []*network.Host) string {
	return fmt.Sprintf("%d deployed, %d undeployed", len(deployed), len(undeployed))
}
