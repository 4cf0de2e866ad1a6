package network

import (
	"cmp"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/imamik/reservoir/internal/spec"
)

// Descriptor is a network as reported by a backend.
type Descriptor struct {
	Site string           `json:"site" yaml:"site"`
	Kind spec.NetworkKind `json:"kind" yaml:"kind"`
	// ID is the VLAN number for VLANs, the CIDR for subnets and the site
	// name for production networks.
	ID      string       `json:"id" yaml:"id"`
	CIDR    netip.Prefix `json:"cidr" yaml:"cidr"`
	Gateway netip.Addr   `json:"gateway" yaml:"gateway"`
	DNS     netip.Addr   `json:"dns" yaml:"dns"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s/%s", d.Site, d.Kind, d.ID)
}

// Compare orders descriptors by site, kind and ID. VLAN IDs compare
// numerically when both parse as integers.
func Compare(a, b Descriptor) int {
	if c := cmp.Compare(a.Site, b.Site); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if a.CIDR.IsValid() && b.CIDR.IsValid() && a.Kind.IsSubnet() {
		if c := a.CIDR.Addr().Compare(b.CIDR.Addr()); c != 0 {
			return c
		}
	}
	x, errX := strconv.Atoi(a.ID)
	y, errY := strconv.Atoi(b.ID)
	if errX == nil && errY == nil {
		return cmp.Compare(x, y)
	}
	return cmp.Compare(a.ID, b.ID)
}
