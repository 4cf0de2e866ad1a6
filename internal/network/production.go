package network

import (
	"iter"
	"net"
	"net/netip"
)

// ProductionNetwork is the shared, infrastructure-managed network of a site.
// Addresses are assigned by the testbed, so nothing is free to hand out.
type ProductionNetwork struct {
	base
}

func (p *ProductionNetwork) HasFreeIPs() bool {
	return false
}

func (p *ProductionNetwork) FreeIPs() iter.Seq[netip.Addr] {
	return noAddrs
}

func (p *ProductionNetwork) HasFreeMACs() bool {
	return false
}

func (p *ProductionNetwork) FreeMACs() iter.Seq[net.HardwareAddr] {
	return noMACs
}

// Translate is the identity: production names are the node identifiers.
func (p *ProductionNetwork) Translate(hostnames []string, _ bool) []Translation {
	return identity(hostnames)
}

func (p *ProductionNetwork) AddressRange() AddressRange {
	return newAddressRange(p, nil, nil)
}
