package simulator

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"strconv"

	sideronet "github.com/siderolabs/net"
	"go4.org/netipx"
	"gopkg.in/yaml.v3"

	"github.com/imamik/reservoir/internal/platform/oar"
	"github.com/imamik/reservoir/internal/spec"
)

// Block sizes of reservable subnets. A large subnet is made of
// spec.LargeSubnetBlocks consecutive small blocks.
const (
	smallSubnetBits = 22
	largeSubnetBits = 16
)

// Inventory describes the simulated testbed.
type Inventory struct {
	// Domain, when set, is appended to every node name.
	Domain string     `yaml:"domain,omitempty"`
	Sites  []SiteSpec `yaml:"sites"`
	// FailDeploy lists nodes whose deployments always fail.
	FailDeploy []string `yaml:"fail_deploy,omitempty"`
}

// SiteSpec describes one site.
type SiteSpec struct {
	UID        string        `yaml:"uid"`
	Production NetworkSpec   `yaml:"production"`
	Clusters   []ClusterSpec `yaml:"clusters"`
	VLANs      []VLANSpec    `yaml:"vlans,omitempty"`
	Subnets    []SubnetPool  `yaml:"subnets,omitempty"`

	domain string
}

// NetworkSpec is an addressed network.
type NetworkSpec struct {
	CIDR    string `yaml:"cidr"`
	Gateway string `yaml:"gateway,omitempty"`
	DNS     string `yaml:"dns,omitempty"`
}

// ClusterSpec describes Nodes identical machines named
// <uid>-<n>.<site>[.<domain>].
type ClusterSpec struct {
	UID        string   `yaml:"uid"`
	Nodes      int      `yaml:"nodes"`
	Interfaces []string `yaml:"interfaces,omitempty"`
}

// VLANSpec is one reservable VLAN.
type VLANSpec struct {
	ID      string           `yaml:"id"`
	Kind    spec.NetworkKind `yaml:"kind"`
	CIDR    string           `yaml:"cidr"`
	Gateway string           `yaml:"gateway,omitempty"`
}

// SubnetPool is carved into reservable subnets of Kind.
type SubnetPool struct {
	Kind spec.NetworkKind `yaml:"kind"`
	CIDR string           `yaml:"cidr"`
}

// LoadInventory reads and validates an inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory decodes and validates an inventory.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	for i := range inv.Sites {
		inv.Sites[i].domain = inv.Domain
	}
	return &inv, nil
}

// Validate checks names, counts and addresses.
func (inv *Inventory) Validate() error {
	var errs []error
	if len(inv.Sites) == 0 {
		errs = append(errs, errors.New("inventory has no site"))
	}

	seen := map[string]bool{}
	for _, s := range inv.Sites {
		if s.UID == "" {
			errs = append(errs, errors.New("site without uid"))
			continue
		}
		if seen[s.UID] {
			errs = append(errs, fmt.Errorf("site %s: duplicate", s.UID))
		}
		seen[s.UID] = true

		if _, err := netip.ParsePrefix(s.Production.CIDR); err != nil {
			errs = append(errs, fmt.Errorf("site %s: production cidr: %w", s.UID, err))
		}
		clusters := map[string]bool{}
		for _, c := range s.Clusters {
			if c.UID == "" || c.Nodes <= 0 {
				errs = append(errs, fmt.Errorf("site %s: cluster %q needs a uid and nodes", s.UID, c.UID))
			}
			if clusters[c.UID] {
				errs = append(errs, fmt.Errorf("site %s: duplicate cluster %s", s.UID, c.UID))
			}
			clusters[c.UID] = true
		}
		for _, v := range s.VLANs {
			if !v.Kind.IsVLAN() {
				errs = append(errs, fmt.Errorf("site %s: vlan %s: %q is not a vlan kind", s.UID, v.ID, v.Kind))
			}
			if _, err := netip.ParsePrefix(v.CIDR); err != nil {
				errs = append(errs, fmt.Errorf("site %s: vlan %s: %w", s.UID, v.ID, err))
			}
		}
		for _, p := range s.Subnets {
			if !p.Kind.IsSubnet() {
				errs = append(errs, fmt.Errorf("site %s: pool %s: %q is not a subnet kind", s.UID, p.CIDR, p.Kind))
			}
			prefix, err := netip.ParsePrefix(p.CIDR)
			if err != nil {
				errs = append(errs, fmt.Errorf("site %s: pool: %w", s.UID, err))
				continue
			}
			if prefix.Bits() > unitBits(p.Kind) {
				errs = append(errs, fmt.Errorf("site %s: pool %s is smaller than one %s", s.UID, p.CIDR, p.Kind))
			}
		}
	}
	return errors.Join(errs...)
}

// Site returns the site named uid.
func (inv *Inventory) Site(uid string) (*SiteSpec, bool) {
	for i := range inv.Sites {
		if inv.Sites[i].UID == uid {
			return &inv.Sites[i], true
		}
	}
	return nil, false
}

// SiteNames returns the site uids in inventory order.
func (inv *Inventory) SiteNames() []string {
	names := make([]string, len(inv.Sites))
	for i, s := range inv.Sites {
		names[i] = s.UID
	}
	return names
}

// FailsDeploy reports whether deployments of node always fail.
func (inv *Inventory) FailsDeploy(node string) bool {
	return slices.Contains(inv.FailDeploy, node)
}

// NodeNames returns the node names of c.
func (s *SiteSpec) NodeNames(c *ClusterSpec) []string {
	suffix := "." + s.UID
	if s.domain != "" {
		suffix += "." + s.domain
	}
	names := make([]string, c.Nodes)
	for i := range c.Nodes {
		names[i] = c.UID + "-" + strconv.Itoa(i+1) + suffix
	}
	return names
}

// Cluster returns the cluster named uid.
func (s *SiteSpec) Cluster(uid string) (*ClusterSpec, bool) {
	for i := range s.Clusters {
		if s.Clusters[i].UID == uid {
			return &s.Clusters[i], true
		}
	}
	return nil, false
}

// HasNode reports whether node belongs to the site.
func (s *SiteSpec) HasNode(node string) bool {
	c, ok := s.Cluster(spec.ClusterOf(node))
	return ok && slices.Contains(s.NodeNames(c), node)
}

// VLAN returns the VLAN with id.
func (s *SiteSpec) VLAN(id string) (*VLANSpec, bool) {
	for i := range s.VLANs {
		if s.VLANs[i].ID == id {
			return &s.VLANs[i], true
		}
	}
	return nil, false
}

// API renders the site the way the scheduler publishes it.
func (s *SiteSpec) API() *oar.Site {
	out := &oar.Site{
		UID: s.UID,
		Production: oar.Network{
			CIDR:    s.Production.CIDR,
			Gateway: s.Production.Gateway,
			DNS:     s.Production.DNS,
		},
	}
	for i := range s.Clusters {
		c := &s.Clusters[i]
		out.Clusters = append(out.Clusters, oar.Cluster{
			UID:        c.UID,
			Nodes:      s.NodeNames(c),
			Interfaces: slices.Clone(c.Interfaces),
		})
	}
	return out
}

// APIVLAN renders a VLAN. A missing gateway defaults to the last host of
// the VLAN.
func (s *SiteSpec) APIVLAN(v *VLANSpec) *oar.VLAN {
	gw := v.Gateway
	if gw == "" {
		gw = lastHost(netip.MustParsePrefix(v.CIDR)).String()
	}
	return &oar.VLAN{ID: v.ID, Kind: string(v.Kind), CIDR: v.CIDR, Gateway: gw, DNS: s.Production.DNS}
}

// units lists the reservable networks of kind, identified by VLAN id or
// by the CIDR of the subnet unit.
func (s *SiteSpec) units(kind spec.NetworkKind) []string {
	var ids []string
	switch {
	case kind.IsVLAN():
		for _, v := range s.VLANs {
			if v.Kind == kind {
				ids = append(ids, v.ID)
			}
		}
	case kind.IsSubnet():
		for _, p := range s.Subnets {
			if p.Kind != kind {
				continue
			}
			for _, u := range carve(netip.MustParsePrefix(p.CIDR), unitBits(kind)) {
				ids = append(ids, u.String())
			}
		}
	}
	return ids
}

// subnets renders a subnet unit as the small blocks it is made of.
func (s *SiteSpec) subnets(kind spec.NetworkKind, unit string) []oar.Subnet {
	var out []oar.Subnet
	for _, b := range carve(netip.MustParsePrefix(unit), smallSubnetBits) {
		out = append(out, oar.Subnet{
			CIDR:    b.String(),
			Kind:    string(kind),
			Gateway: lastHost(b).String(),
			DNS:     s.Production.DNS,
		})
	}
	return out
}

// unitsFor converts a descriptor count into reservable units of kind.
func unitsFor(kind spec.NetworkKind, descriptors int) int {
	per := kind.Descriptors()
	return (descriptors + per - 1) / per
}

func unitBits(kind spec.NetworkKind) int {
	if kind == spec.KindSubnetLarge {
		return largeSubnetBits
	}
	return smallSubnetBits
}

// carve cuts p into consecutive prefixes of length bits.
func carve(p netip.Prefix, bits int) []netip.Prefix {
	p = p.Masked()
	if p.Bits() >= bits {
		return []netip.Prefix{p}
	}
	size := 1 << (p.Addr().BitLen() - bits)
	var out []netip.Prefix
	for i := range 1 << (bits - p.Bits()) {
		start, err := sideronet.NthIPInNetwork(p, i*size)
		if err != nil {
			break
		}
		out = append(out, netip.PrefixFrom(start, bits))
	}
	return out
}

func lastHost(p netip.Prefix) netip.Addr {
	return netipx.PrefixLastIP(p.Masked()).Prev()
}
