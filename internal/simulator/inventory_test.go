package simulator

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/spec"
)

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory([]byte(testInventory))
	require.NoError(t, err)

	assert.Equal(t, []string{"rennes", "lyon"}, inv.SiteNames())
	assert.True(t, inv.FailsDeploy("paravance-3.rennes.grid5000.fr"))
	assert.False(t, inv.FailsDeploy("paravance-1.rennes.grid5000.fr"))

	rennes, ok := inv.Site("rennes")
	require.True(t, ok)
	c, ok := rennes.Cluster("paravance")
	require.True(t, ok)
	assert.Equal(t, []string{
		"paravance-1.rennes.grid5000.fr",
		"paravance-2.rennes.grid5000.fr",
		"paravance-3.rennes.grid5000.fr",
	}, rennes.NodeNames(c))
	assert.True(t, rennes.HasNode("parasilo-1.rennes.grid5000.fr"))
	assert.False(t, rennes.HasNode("parasilo-2.rennes.grid5000.fr"))
	assert.False(t, rennes.HasNode("nova-1.lyon.grid5000.fr"))

	_, ok = inv.Site("nancy")
	assert.False(t, ok)
}

func TestLoadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testInventory), 0o600))

	inv, err := LoadInventory(path)
	require.NoError(t, err)
	assert.Len(t, inv.Sites, 2)

	_, err = LoadInventory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read inventory")
}

func TestInventory_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no site", `sites: []`, "no site"},
		{"duplicate site", `
sites:
  - {uid: a, production: {cidr: 10.0.0.0/8}}
  - {uid: a, production: {cidr: 10.0.0.0/8}}`, "duplicate"},
		{"bad production", `
sites:
  - {uid: a, production: {cidr: nope}}`, "production cidr"},
		{"empty cluster", `
sites:
  - uid: a
    production: {cidr: 10.0.0.0/8}
    clusters: [{uid: c, nodes: 0}]`, "needs a uid and nodes"},
		{"subnet kind on vlan", `
sites:
  - uid: a
    production: {cidr: 10.0.0.0/8}
    vlans: [{id: "1", kind: subnet-small, cidr: 10.1.0.0/18}]`, "is not a vlan kind"},
		{"pool too small", `
sites:
  - uid: a
    production: {cidr: 10.0.0.0/8}
    subnets: [{kind: subnet-large, cidr: 10.1.0.0/18}]`, "smaller than one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInventory([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSiteSpec_Networks(t *testing.T) {
	inv, err := ParseInventory([]byte(testInventory))
	require.NoError(t, err)
	rennes, _ := inv.Site("rennes")

	assert.Equal(t, []string{"4"}, rennes.units(spec.KindVLANLocal))
	assert.Equal(t, []string{"16"}, rennes.units(spec.KindVLANGlobal))
	assert.Equal(t, []string{"10.158.0.0/22", "10.158.4.0/22"}, rennes.units(spec.KindSubnetSmall))
	assert.Equal(t, []string{"10.160.0.0/16"}, rennes.units(spec.KindSubnetLarge))
	assert.Empty(t, rennes.units(spec.KindProduction))

	v, _ := rennes.VLAN("4")
	api := rennes.APIVLAN(v)
	assert.Equal(t, "10.24.63.254", api.Gateway)
	assert.Equal(t, "172.16.111.118", api.DNS)

	v, _ = rennes.VLAN("16")
	assert.Equal(t, "10.27.127.254", rennes.APIVLAN(v).Gateway)

	blocks := rennes.subnets(spec.KindSubnetLarge, "10.160.0.0/16")
	require.Len(t, blocks, spec.LargeSubnetBlocks)
	assert.Equal(t, "10.160.0.0/22", blocks[0].CIDR)
	assert.Equal(t, "10.160.3.254", blocks[0].Gateway)
	assert.Equal(t, "10.160.252.0/22", blocks[63].CIDR)
}

func TestCarve(t *testing.T) {
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/22")}, carve(netip.MustParsePrefix("10.0.1.0/22"), 22))
	assert.Len(t, carve(netip.MustParsePrefix("10.0.0.0/20"), 22), 4)
}

func TestUnitsFor(t *testing.T) {
	assert.Equal(t, 1, unitsFor(spec.KindSubnetLarge, spec.LargeSubnetBlocks))
	assert.Equal(t, 2, unitsFor(spec.KindSubnetLarge, spec.LargeSubnetBlocks+1))
	assert.Equal(t, 3, unitsFor(spec.KindSubnetSmall, 3))
}
