package network

import (
	"fmt"
	"iter"
	"net"
	"net/netip"
	"slices"
	"sync"

	"github.com/imamik/reservoir/internal/spec"
)

// Translation maps a hostname to its name inside a network.
type Translation struct {
	From string
	To   string
}

// Attachment records that a host joined a network through device. An empty
// device means the primary interface.
type Attachment struct {
	Host   string
	Device string
}

// Network is a concrete network bound to backend descriptors.
type Network interface {
	// GroupID is the ID of the network group the network was bound to.
	GroupID() string
	Site() string
	Kind() spec.NetworkKind
	Roles() []string
	Descriptors() []Descriptor
	Prefixes() []netip.Prefix
	Gateway() netip.Addr
	DNSServer() netip.Addr

	HasFreeIPs() bool
	FreeIPs() iter.Seq[netip.Addr]
	HasFreeMACs() bool
	FreeMACs() iter.Seq[net.HardwareAddr]

	// Translate returns the names the hosts have inside the network. With
	// reverse set it maps network names back to the original hostnames.
	Translate(hostnames []string, reverse bool) []Translation
	Attach(hostnames []string, device string)
	Attachments() []Attachment
	Hosts() []string

	AddressRange() AddressRange
}

// New wraps descriptors bound to group g. VLAN and production networks take
// exactly one descriptor, subnets take one or more blocks.
func New(g spec.NetworkGroupSpec, descs []Descriptor) (Network, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("network %q: no descriptor", g.ID)
	}
	for _, d := range descs {
		if d.Kind != g.Kind || d.Site != g.Site {
			return nil, fmt.Errorf("network %q: descriptor %s does not match %s on %s", g.ID, d, g.Kind, g.Site)
		}
	}

	b := newBase(g, descs)
	switch {
	case g.Kind == spec.KindProduction:
		return &ProductionNetwork{base: b}, nil
	case g.Kind.IsVLAN():
		if len(descs) != 1 {
			return nil, fmt.Errorf("network %q: a VLAN takes one descriptor, got %d", g.ID, len(descs))
		}
		return &VLANNetwork{base: b}, nil
	case g.Kind.IsSubnet():
		return &SubnetNetwork{base: b}, nil
	}
	return nil, fmt.Errorf("network %q: unknown kind %q", g.ID, g.Kind)
}

type base struct {
	group spec.NetworkGroupSpec
	descs []Descriptor

	mu          sync.Mutex
	attachments []Attachment
}

func newBase(g spec.NetworkGroupSpec, descs []Descriptor) base {
	return base{
		group: g,
		descs: slices.Clone(descs),
	}
}

func (b *base) GroupID() string        { return b.group.ID }
func (b *base) Site() string           { return b.group.Site }
func (b *base) Kind() spec.NetworkKind { return b.group.Kind }
func (b *base) Roles() []string        { return slices.Clone(b.group.Roles) }

func (b *base) Descriptors() []Descriptor { return slices.Clone(b.descs) }

func (b *base) Prefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(b.descs))
	for _, d := range b.descs {
		if d.CIDR.IsValid() {
			out = append(out, d.CIDR)
		}
	}
	return out
}

func (b *base) Gateway() netip.Addr   { return b.descs[0].Gateway }
func (b *base) DNSServer() netip.Addr { return b.descs[0].DNS }

func (b *base) Attach(hostnames []string, device string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range hostnames {
		a := Attachment{Host: h, Device: device}
		if !slices.Contains(b.attachments, a) {
			b.attachments = append(b.attachments, a)
		}
	}
}

func (b *base) Attachments() []Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.attachments)
}

func (b *base) Hosts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var hosts []string
	for _, a := range b.attachments {
		if !slices.Contains(hosts, a.Host) {
			hosts = append(hosts, a.Host)
		}
	}
	return hosts
}

func identity(hostnames []string) []Translation {
	out := make([]Translation, len(hostnames))
	for i, h := range hostnames {
		out[i] = Translation{From: h, To: h}
	}
	return out
}

func noAddrs(func(netip.Addr) bool) {}

func noMACs(func(net.HardwareAddr) bool) {}
