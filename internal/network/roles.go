package network

import (
	"net"
	"net/netip"
	"slices"
	"sort"
	"strings"

	"github.com/imamik/reservoir/internal/spec"
)

// AddressRange is the role-facing description of a network.
type AddressRange struct {
	Network  string           `json:"network" yaml:"network"`
	Kind     spec.NetworkKind `json:"kind" yaml:"kind"`
	Site     string           `json:"site" yaml:"site"`
	VLAN     string           `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	CIDRs    []string         `json:"cidrs,omitempty" yaml:"cidrs,omitempty"`
	Gateway  string           `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	DNS      string           `json:"dns,omitempty" yaml:"dns,omitempty"`
	IPStart  string           `json:"ip_start,omitempty" yaml:"ip_start,omitempty"`
	IPEnd    string           `json:"ip_end,omitempty" yaml:"ip_end,omitempty"`
	MACStart string           `json:"mac_start,omitempty" yaml:"mac_start,omitempty"`
	MACEnd   string           `json:"mac_end,omitempty" yaml:"mac_end,omitempty"`
}

// newAddressRange fills the free-address bounds from the host space of
// free. mac, when set, derives the MAC bounds from the IP bounds.
func newAddressRange(n Network, free []netip.Prefix, mac func(netip.Addr) net.HardwareAddr) AddressRange {
	ar := AddressRange{
		Network: n.GroupID(),
		Kind:    n.Kind(),
		Site:    n.Site(),
	}
	if v, ok := n.(*VLANNetwork); ok {
		ar.VLAN = v.VLANID()
	}
	for _, p := range n.Prefixes() {
		ar.CIDRs = append(ar.CIDRs, p.String())
	}
	if gw := n.Gateway(); gw.IsValid() {
		ar.Gateway = gw.String()
	}
	if dns := n.DNSServer(); dns.IsValid() {
		ar.DNS = dns.String()
	}

	var start, end netip.Addr
	for _, p := range free {
		first, last := hostBounds(p)
		if !first.IsValid() {
			continue
		}
		if !start.IsValid() {
			start = first
		}
		end = last
	}
	if start.IsValid() {
		ar.IPStart, ar.IPEnd = start.String(), end.String()
		if mac != nil {
			ar.MACStart, ar.MACEnd = mac(start).String(), mac(end).String()
		}
	}
	return ar
}

// Roles maps a role to the hosts carrying it, in insertion order and
// without duplicates.
type Roles map[string][]*Host

// Add appends h under every role, skipping hosts already present.
func (r Roles) Add(h *Host, roles ...string) {
	for _, role := range roles {
		if !slices.ContainsFunc(r[role], func(o *Host) bool { return o.ID == h.ID }) {
			r[role] = append(r[role], h)
		}
	}
}

// Merge adds every host of other.
func (r Roles) Merge(other Roles) {
	for _, role := range other.Names() {
		for _, h := range other[role] {
			r.Add(h, role)
		}
	}
}

// Names returns the sorted role names.
func (r Roles) Names() []string {
	names := make([]string, 0, len(r))
	for role := range r {
		names = append(names, role)
	}
	sort.Strings(names)
	return names
}

// Hosts returns every distinct host, sorted by ID.
func (r Roles) Hosts() []*Host {
	var hosts []*Host
	seen := map[string]bool{}
	for _, role := range r.Names() {
		for _, h := range r[role] {
			if !seen[h.ID] {
				seen[h.ID] = true
				hosts = append(hosts, h)
			}
		}
	}
	slices.SortFunc(hosts, func(a, b *Host) int { return strings.Compare(a.ID, b.ID) })
	return hosts
}

// Networks maps a role to the address ranges of the networks carrying it.
type Networks map[string][]AddressRange

// Add appends ar under every role, skipping duplicates.
func (n Networks) Add(ar AddressRange, roles ...string) {
	for _, role := range roles {
		if !slices.ContainsFunc(n[role], func(o AddressRange) bool { return sameRange(o, ar) }) {
			n[role] = append(n[role], ar)
		}
	}
}

// Merge adds every range of other.
func (n Networks) Merge(other Networks) {
	for role, ranges := range other {
		for _, ar := range ranges {
			n.Add(ar, role)
		}
	}
}

// NetworksOf builds the role view of nets.
func NetworksOf(nets []Network) Networks {
	out := Networks{}
	for _, net := range nets {
		out.Add(net.AddressRange(), net.Roles()...)
	}
	return out
}

func sameRange(a, b AddressRange) bool {
	return a.Site == b.Site && a.Kind == b.Kind && a.Network == b.Network && slices.Equal(a.CIDRs, b.CIDRs)
}
