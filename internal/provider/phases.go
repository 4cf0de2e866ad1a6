package provider

import (
	"fmt"

	"github.com/imamik/reservoir/internal/driver"
	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/provisioning"
	"github.com/imamik/reservoir/internal/provisioning/concretize"
	"github.com/imamik/reservoir/internal/provisioning/deploy"
)

// run carries what one Init pass learns from phase to phase.
type run struct {
	force bool

	alloc  *driver.Allocation
	groups []concretize.ConcreteGroup
	nets   []network.Network
	hosts  []*network.Host

	deployed   []*network.Host
	undeployed []*network.Host
	imaged     bool

	roles    network.Roles
	networks network.Networks
}

func (p *Provider) phases(r *run) []provisioning.Phase {
	return []provisioning.Phase{
		provisioning.NewPhase("reserve", func(ctx *provisioning.Context) error {
			res := p.Snapshot()
			provisioning.LogResourceCreating(ctx.Observer, "reserve", "reservation", p.drv.Name())
			if err := p.drv.Reserve(ctx, res); err != nil {
				return err
			}
			provisioning.LogResourceCreated(ctx.Observer, "reserve", "reservation", p.drv.Name(), string(p.drv.State()))
			return nil
		}),
		provisioning.NewPhase("wait", func(ctx *provisioning.Context) error {
			return p.drv.Wait(ctx)
		}),
		provisioning.NewPhase("concretize", func(ctx *provisioning.Context) error {
			return p.concretize(ctx, r)
		}),
		provisioning.NewPhase("join", func(ctx *provisioning.Context) error {
			hosts, err := concretize.Join(r.groups, r.nets, r.alloc.Interfaces)
			if err != nil {
				return err
			}
			r.hosts = hosts
			ctx.Observer.Printf("%d hosts on %d networks", len(hosts), len(r.nets))
			return nil
		}),
		provisioning.NewPhase("mirror", func(ctx *provisioning.Context) error {
			return p.mirror(ctx, r)
		}),
		provisioning.NewPhase("deploy", func(ctx *provisioning.Context) error {
			return p.deploy(ctx, r)
		}),
		provisioning.NewPhase("finalize", func(ctx *provisioning.Context) error {
			return p.finalize(ctx, r)
		}),
	}
}

func (p *Provider) concretize(ctx *provisioning.Context, r *run) error {
	alloc, err := p.drv.Resources(ctx)
	if err != nil {
		return err
	}
	groups, err := concretize.Nodes(p.res.Machines(), alloc.Nodes)
	if err != nil {
		return err
	}
	nets, err := concretize.Networks(p.res.Networks(), alloc.Networks)
	if err != nil {
		return err
	}
	r.alloc, r.groups, r.nets = alloc, groups, nets
	return nil
}

// mirror pushes every secondary attachment to the backend. Primary
// attachments are applied by the deployment itself.
func (p *Provider) mirror(ctx *provisioning.Context, r *run) error {
	for _, n := range r.nets {
		if !n.Kind().Attachable() {
			continue
		}
		var secondary []network.Attachment
		for _, a := range n.Attachments() {
			if a.Device != "" {
				secondary = append(secondary, a)
			}
		}
		if len(secondary) == 0 {
			continue
		}
		desc := n.Descriptors()[0]
		if err := p.drv.AttachNetwork(ctx, n.Site(), desc, secondary); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "mirror", "attachment", n.GroupID(), err)
			return fmt.Errorf("attaching %d devices to %s: %w", len(secondary), n.GroupID(), err)
		}
		provisioning.LogResourceCreated(ctx.Observer, "mirror", "attachment", n.GroupID(), desc.ID)
	}
	return nil
}

func (p *Provider) deploy(ctx *provisioning.Context, r *run) error {
	if !p.opts.Deploy {
		for _, h := range r.hosts {
			deploy.Finalize(h, r.alloc.Addresses)
		}
		r.deployed = r.hosts
		return nil
	}

	engine := deploy.NewEngine(p.drv, p.opts.Prober, ctx.Observer)
	deployed, undeployed, err := engine.Deploy(ctx, r.hosts, deploy.Options{
		Image:         p.opts.Image,
		PublicKey:     p.opts.PublicKey,
		ForceRedeploy: r.force,
		MaxAttempts:   p.opts.MaxDeployAttempts,
		Addresses:     r.alloc.Addresses,
	})
	if err != nil {
		return err
	}
	r.deployed, r.undeployed, r.imaged = deployed, undeployed, true
	ctx.Observer.Printf("deployment: %s", deploy.Summary(deployed, undeployed))
	return nil
}

// finalize prepares the reachable hosts and builds the role views. Hosts
// that could not be imaged stay in the roles, marked undeployed.
func (p *Provider) finalize(ctx *provisioning.Context, r *run) error {
	if exec := p.opts.Executor; exec != nil && len(r.deployed) > 0 {
		switch {
		case r.imaged && p.opts.DHCP:
			devices := map[string][]string{}
			for _, h := range r.deployed {
				for i := range h.Secondaries {
					devices[h.SSHAddress] = append(devices[h.SSHAddress], h.Device(i))
				}
			}
			if len(devices) > 0 {
				if err := exec.EnableDHCP(ctx, devices); err != nil {
					return err
				}
				ctx.Observer.Printf("dhcp enabled on %d hosts", len(devices))
			}
		case !r.imaged:
			addrs := make([]string, len(r.deployed))
			for i, h := range r.deployed {
				addrs[i] = h.SSHAddress
			}
			if err := exec.GrantRoot(ctx, addrs); err != nil {
				return err
			}
			ctx.Observer.Printf("root access granted on %d hosts", len(addrs))
		}
	}

	r.roles = network.Roles{}
	for _, h := range r.hosts {
		r.roles.Add(h, h.Roles...)
	}
	r.networks = network.NetworksOf(r.nets)
	return nil
}
