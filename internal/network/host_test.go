package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/reservoir/internal/spec"
)

func TestHost_RegisterAndFinalize(t *testing.T) {
	t.Parallel()
	vlan := mustNew(t, group("v", spec.KindVLANLocal, "rennes"), Descriptor{Site: "rennes", Kind: spec.KindVLANLocal, ID: "7"})
	sec := mustNew(t, group("v2", spec.KindVLANLocal, "rennes"), Descriptor{Site: "rennes", Kind: spec.KindVLANLocal, ID: "8"})
	g := spec.MachineGroupSpec{ID: "g", Roles: []string{"server"}, Cluster: "paravance", Count: 1, Site: "rennes"}

	h := NewHost("paravance-3.rennes.grid5000.fr", g, vlan, []Network{sec}, []string{"eno2"})
	h.Register()

	assert.Equal(t, "paravance", h.Cluster)
	assert.Equal(t, StatusUnknown, h.Status)
	assert.Equal(t, []Attachment{{Host: h.ID}}, vlan.Attachments())
	assert.Equal(t, []Attachment{{Host: h.ID, Device: "eno2"}}, sec.Attachments())
	assert.Equal(t, h.ID, h.SSHAddress)

	h.Finalize()
	assert.Equal(t, "paravance-3-vlan-7.rennes.grid5000.fr", h.SSHAddress)
	assert.Equal(t, "paravance-3-vlan-8.rennes.grid5000.fr", h.NameIn(sec))
}

func TestHost_DefaultDevice(t *testing.T) {
	t.Parallel()
	h := &Host{Interfaces: []string{"eno2"}}
	assert.Equal(t, "eno2", h.Device(0))
	assert.Equal(t, "eth2", h.Device(1))
}

func TestRoles(t *testing.T) {
	t.Parallel()
	a := &Host{ID: "a-1"}
	b := &Host{ID: "b-1"}

	r := Roles{}
	r.Add(a, "server", "all")
	r.Add(a, "server")
	r.Add(b, "client", "all")

	other := Roles{}
	other.Add(&Host{ID: "a-1"}, "all")
	other.Add(&Host{ID: "c-1"}, "all")
	r.Merge(other)

	assert.Equal(t, []string{"all", "client", "server"}, r.Names())
	require.Len(t, r["all"], 3)
	assert.Equal(t, "c-1", r["all"][2].ID)
	assert.Len(t, r["server"], 1)
	assert.Len(t, r.Hosts(), 3)
}

func TestNetworksOf(t *testing.T) {
	t.Parallel()
	prod := mustNew(t, spec.NetworkGroupSpec{ID: "prod", Roles: []string{"net", "admin"}, Kind: spec.KindProduction, Site: "rennes"},
		Descriptor{Site: "rennes", Kind: spec.KindProduction, ID: "rennes", CIDR: netip.MustParsePrefix("172.16.96.0/20")})

	nets := NetworksOf([]Network{prod})
	require.Len(t, nets["net"], 1)
	require.Len(t, nets["admin"], 1)

	nets.Merge(NetworksOf([]Network{prod}))
	assert.Len(t, nets["net"], 1)
}
