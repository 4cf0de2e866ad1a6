package concretize

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/network"
	"github.com/imamik/reservoir/internal/spec"
)

func vlanDesc(site string, kind spec.NetworkKind, id string) network.Descriptor {
	return network.Descriptor{Site: site, Kind: kind, ID: id}
}

func TestNetworks_PopsInDeclarationOrder(t *testing.T) {
	t.Parallel()
	specs := []spec.NetworkGroupSpec{
		{ID: "first", Roles: []string{"a"}, Kind: spec.KindVLANLocal, Site: "rennes"},
		{ID: "second", Roles: []string{"b"}, Kind: spec.KindVLANLocal, Site: "rennes"},
		{ID: "prod", Roles: []string{"p"}, Kind: spec.KindProduction, Site: "rennes"},
	}
	descs := []network.Descriptor{
		vlanDesc("rennes", spec.KindVLANLocal, "10"),
		vlanDesc("rennes", spec.KindProduction, "rennes"),
		vlanDesc("rennes", spec.KindVLANLocal, "4"),
	}

	nets, err := Networks(specs, descs)
	require.NoError(t, err)
	require.Len(t, nets, 3)

	assert.Equal(t, "first", nets[0].GroupID())
	assert.Equal(t, "4", nets[0].(*network.VLANNetwork).VLANID())
	assert.Equal(t, "10", nets[1].(*network.VLANNetwork).VLANID())
	assert.IsType(t, &network.ProductionNetwork{}, nets[2])
}

func TestNetworks_ProductionIsShared(t *testing.T) {
	t.Parallel()
	specs := []spec.NetworkGroupSpec{
		{ID: "admin", Roles: []string{"a"}, Kind: spec.KindProduction, Site: "rennes"},
		{ID: "data", Roles: []string{"d"}, Kind: spec.KindProduction, Site: "rennes"},
	}
	nets, err := Networks(specs, []network.Descriptor{vlanDesc("rennes", spec.KindProduction, "rennes")})
	require.NoError(t, err)
	assert.Len(t, nets, 2)
}

func TestNetworks_LargeSubnetTakesSixtyFourBlocks(t *testing.T) {
	t.Parallel()
	var descs []network.Descriptor
	for i := range spec.LargeSubnetBlocks + 1 {
		p := netip.PrefixFrom(netip.AddrFrom4([4]byte{10, byte(160 + i/64), byte(i % 64 * 4), 0}), 22)
		descs = append(descs, network.Descriptor{Site: "nancy", Kind: spec.KindSubnetLarge, ID: p.String(), CIDR: p})
	}
	specs := []spec.NetworkGroupSpec{{ID: "vms", Roles: []string{"vm"}, Kind: spec.KindSubnetLarge, Site: "nancy"}}

	nets, err := Networks(specs, descs)
	require.NoError(t, err)
	require.Len(t, nets, 1)
	prefixes := nets[0].Prefixes()
	require.Len(t, prefixes, 64)
	assert.Equal(t, "10.160.0.0/22", prefixes[0].String())
	assert.Equal(t, "10.160.252.0/22", prefixes[63].String())
}

func TestNetworks_MissingNetworkIsFatal(t *testing.T) {
	t.Parallel()
	specs := []spec.NetworkGroupSpec{
		{ID: "prod", Roles: []string{"p"}, Kind: spec.KindProduction, Site: "lyon"},
		{ID: "global", Roles: []string{"g"}, Kind: spec.KindVLANGlobal, Site: "lyon"},
	}
	descs := []network.Descriptor{
		vlanDesc("lyon", spec.KindProduction, "lyon"),
		vlanDesc("lyon", spec.KindVLANLocal, "3"),
		vlanDesc("rennes", spec.KindVLANGlobal, "16"),
	}

	nets, err := Networks(specs, descs)
	assert.Nil(t, nets)
	var mne *MissingNetworkError
	require.ErrorAs(t, err, &mne)
	assert.Equal(t, "lyon", mne.Site)
	assert.Equal(t, spec.KindVLANGlobal, mne.Kind)
}

func TestNetworks_NotEnoughForSecondGroup(t *testing.T) {
	t.Parallel()
	specs := []spec.NetworkGroupSpec{
		{ID: "a", Roles: []string{"a"}, Kind: spec.KindVLANLocal, Site: "rennes"},
		{ID: "b", Roles: []string{"b"}, Kind: spec.KindVLANLocal, Site: "rennes"},
	}
	_, err := Networks(specs, []network.Descriptor{vlanDesc("rennes", spec.KindVLANLocal, "4")})

	var mne *MissingNetworkError
	require.ErrorAs(t, err, &mne)
	assert.Equal(t, "b", mne.Network)
}
