package network

import (
	"iter"
	"net"
	"net/netip"
)

// MACPrefix is the vendor prefix of MAC addresses derived from subnet IPs.
var MACPrefix = [3]byte{0x00, 0x16, 0x3e}

// SubnetNetwork is a routed block of addresses reserved for virtual
// machines. A large subnet holds several blocks.
type SubnetNetwork struct {
	base
}

func (s *SubnetNetwork) HasFreeIPs() bool {
	for _, p := range s.Prefixes() {
		if first, _ := hostBounds(p); first.IsValid() {
			return true
		}
	}
	return false
}

func (s *SubnetNetwork) FreeIPs() iter.Seq[netip.Addr] {
	return hostsOf(s.Prefixes())
}

func (s *SubnetNetwork) HasFreeMACs() bool {
	return s.HasFreeIPs()
}

// FreeMACs yields one MAC per free IP, in the same order.
func (s *SubnetNetwork) FreeMACs() iter.Seq[net.HardwareAddr] {
	return func(yield func(net.HardwareAddr) bool) {
		for ip := range s.FreeIPs() {
			if !yield(MACFor(ip)) {
				return
			}
		}
	}
}

// Translate is the identity: subnets carry no machine interfaces.
func (s *SubnetNetwork) Translate(hostnames []string, _ bool) []Translation {
	return identity(hostnames)
}

func (s *SubnetNetwork) AddressRange() AddressRange {
	return newAddressRange(s, s.Prefixes(), MACFor)
}

// MACFor derives a MAC address from the low 24 bits of ip under
// [MACPrefix].
func MACFor(ip netip.Addr) net.HardwareAddr {
	b := ip.As16()
	return net.HardwareAddr{MACPrefix[0], MACPrefix[1], MACPrefix[2], b[13], b[14], b[15]}
}
