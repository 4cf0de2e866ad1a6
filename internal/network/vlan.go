package network

import (
	"iter"
	"net"
	"net/netip"
	"strings"

	sideronet "github.com/siderolabs/net"
	"go4.org/netipx"

	"github.com/imamik/reservoir/internal/spec"
)

// Portions of a VLAN's address space left to machines. The head of every
// VLAN is reserved by the testbed for its own services.
const (
	localChunkBits  = 24
	localChunkSkip  = 4
	localChunkUse   = 3
	globalChunkBits = 23
	globalChunkSkip = 13
)

// VLANNetwork is a layer-2 isolated network, local to a site or spanning
// every site.
type VLANNetwork struct {
	base
}

// VLANID returns the backend VLAN number.
func (v *VLANNetwork) VLANID() string {
	return v.descs[0].ID
}

// Chunks returns the sub-blocks of the VLAN whose hosts are free for
// machine use.
func (v *VLANNetwork) Chunks() []netip.Prefix {
	cidr := v.descs[0].CIDR
	if !cidr.IsValid() {
		return nil
	}

	chunkBits := localChunkBits
	if v.Kind() == spec.KindVLANGlobal {
		chunkBits = globalChunkBits
	}
	all := split(cidr, chunkBits)

	var lo, hi int
	if v.Kind() == spec.KindVLANGlobal {
		lo, hi = globalChunkSkip, len(all)-1
	} else {
		lo, hi = localChunkSkip, localChunkSkip+localChunkUse
	}
	hi = min(hi, len(all))
	if lo >= hi {
		return nil
	}
	return all[lo:hi]
}

func (v *VLANNetwork) HasFreeIPs() bool {
	for _, c := range v.Chunks() {
		if first, _ := hostBounds(c); first.IsValid() {
			return true
		}
	}
	return false
}

func (v *VLANNetwork) FreeIPs() iter.Seq[netip.Addr] {
	return hostsOf(v.Chunks())
}

func (v *VLANNetwork) HasFreeMACs() bool {
	return false
}

func (v *VLANNetwork) FreeMACs() iter.Seq[net.HardwareAddr] {
	return noMACs
}

// Translate inserts "-vlan-<id>" at the end of the first DNS label, so
// "paravance-1.rennes.grid5000.fr" becomes
// "paravance-1-vlan-4.rennes.grid5000.fr". Reverse strips one such infix.
func (v *VLANNetwork) Translate(hostnames []string, reverse bool) []Translation {
	infix := "-vlan-" + v.VLANID()
	out := make([]Translation, len(hostnames))
	for i, h := range hostnames {
		label, rest, dotted := strings.Cut(h, ".")
		if reverse {
			label = strings.TrimSuffix(label, infix)
		} else {
			label += infix
		}
		if dotted {
			label += "." + rest
		}
		out[i] = Translation{From: h, To: label}
	}
	return out
}

func (v *VLANNetwork) AddressRange() AddressRange {
	return newAddressRange(v, v.Chunks(), nil)
}

// split cuts p into consecutive prefixes of length bits. A prefix already
// longer than bits is returned as is.
func split(p netip.Prefix, bits int) []netip.Prefix {
	p = p.Masked()
	if p.Bits() >= bits {
		return []netip.Prefix{p}
	}
	count := 1 << (bits - p.Bits())
	size := 1 << (p.Addr().BitLen() - bits)

	out := make([]netip.Prefix, 0, count)
	for i := range count {
		start, err := sideronet.NthIPInNetwork(p, i*size)
		if err != nil {
			break
		}
		out = append(out, netip.PrefixFrom(start, bits))
	}
	return out
}

// hostsOf yields the host addresses of every prefix, skipping the network
// and broadcast addresses.
func hostsOf(prefixes []netip.Prefix) iter.Seq[netip.Addr] {
	return func(yield func(netip.Addr) bool) {
		for _, p := range prefixes {
			first, last := hostBounds(p)
			if !first.IsValid() {
				continue
			}
			for a := first; a.Compare(last) <= 0; a = a.Next() {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// hostBounds returns the first and last host address of p. Both are invalid
// when p has no room for hosts.
func hostBounds(p netip.Prefix) (netip.Addr, netip.Addr) {
	p = p.Masked()
	if p.Addr().BitLen()-p.Bits() < 2 {
		return netip.Addr{}, netip.Addr{}
	}
	return p.Addr().Next(), netipx.PrefixLastIP(p).Prev()
}
