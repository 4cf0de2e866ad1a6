package spec

import "fmt"

// NetworkKind is the closed set of network flavors a testbed hands out.
type NetworkKind string

const (
	KindProduction  NetworkKind = "prod"
	KindVLANLocal   NetworkKind = "vlan-local"
	KindVLANGlobal  NetworkKind = "vlan-global"
	KindSubnetSmall NetworkKind = "subnet-small"
	KindSubnetLarge NetworkKind = "subnet-large"
)

// LargeSubnetBlocks is the number of /22 blocks a large subnet is made of.
const LargeSubnetBlocks = 64

// Kinds lists every known kind.
var Kinds = []NetworkKind{KindProduction, KindVLANLocal, KindVLANGlobal, KindSubnetSmall, KindSubnetLarge}

// ParseKind validates s.
func ParseKind(s string) (NetworkKind, error) {
	k := NetworkKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown network kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of [Kinds].
func (k NetworkKind) Valid() bool {
	switch k {
	case KindProduction, KindVLANLocal, KindVLANGlobal, KindSubnetSmall, KindSubnetLarge:
		return true
	}
	return false
}

// IsVLAN reports whether k is a local or global VLAN.
func (k NetworkKind) IsVLAN() bool {
	return k == KindVLANLocal || k == KindVLANGlobal
}

// IsSubnet reports whether k is a small or large subnet.
func (k NetworkKind) IsSubnet() bool {
	return k == KindSubnetSmall || k == KindSubnetLarge
}

// Attachable reports whether machine interfaces can be placed in a network
// of this kind. Subnets only provide addresses for virtual machines.
func (k NetworkKind) Attachable() bool {
	return k == KindProduction || k.IsVLAN()
}

// Descriptors returns how many backend descriptors one network group of
// this kind consumes.
func (k NetworkKind) Descriptors() int {
	if k == KindSubnetLarge {
		return LargeSubnetBlocks
	}
	return 1
}

func (k NetworkKind) String() string { return string(k) }
