package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func validBuilder() *Builder {
	return NewBuilder("exp").
		AddNetwork(NetworkGroupSpec{ID: "prod-rennes", Roles: []string{"prod"}, Kind: KindProduction, Site: "rennes"}).
		AddNetwork(NetworkGroupSpec{ID: "vlan", Roles: []string{"exp"}, Kind: KindVLANLocal, Site: "rennes"}).
		AddMachine(MachineGroupSpec{
			Roles:             []string{"server"},
			Cluster:           "paravance",
			Count:             3,
			PrimaryNetwork:    "prod-rennes",
			SecondaryNetworks: []string{"vlan"},
		})
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()
	res, err := validBuilder().Build()
	require.NoError(t, err)

	machines := res.Machines()
	require.Len(t, machines, 1)
	assert.Equal(t, "rennes", machines[0].Site)
	assert.NotEmpty(t, machines[0].ID)
	assert.Equal(t, 3, machines[0].Minimum())
	assert.False(t, machines[0].HasMin())
	assert.Equal(t, []string{"rennes"}, res.Sites())
}

func TestBuilder_IDsAreStableAcrossBuilds(t *testing.T) {
	t.Parallel()
	a, err := validBuilder().Build()
	require.NoError(t, err)
	b, err := validBuilder().Build()
	require.NoError(t, err)

	assert.Equal(t, a.Machines()[0].ID, b.Machines()[0].ID)

	other, err := NewBuilder("other").
		AddNetwork(NetworkGroupSpec{ID: "n", Roles: []string{"r"}, Kind: KindProduction, Site: "lyon"}).
		AddMachine(MachineGroupSpec{Roles: []string{"r"}, Cluster: "nova", Count: 1, PrimaryNetwork: "n"}).
		Build()
	require.NoError(t, err)
	assert.NotEqual(t, a.Machines()[0].ID, other.Machines()[0].ID)
}

func TestBuilder_KeepsExplicitID(t *testing.T) {
	t.Parallel()
	res, err := NewBuilder("exp").
		AddNetwork(NetworkGroupSpec{ID: "n", Roles: []string{"r"}, Kind: KindProduction, Site: "lyon"}).
		AddMachine(MachineGroupSpec{ID: "g1", Roles: []string{"r"}, Cluster: "nova", Count: 1, PrimaryNetwork: "n"}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "g1", res.Machines()[0].ID)
}

func TestBuilder_ValidationErrors(t *testing.T) {
	t.Parallel()
	prod := NetworkGroupSpec{ID: "prod", Roles: []string{"p"}, Kind: KindProduction, Site: "rennes"}

	tests := []struct {
		name    string
		machine MachineGroupSpec
		extra   []NetworkGroupSpec
		field   string
	}{
		{
			name:    "missing roles",
			machine: MachineGroupSpec{Cluster: "c", Count: 1, PrimaryNetwork: "prod"},
			field:   "machines[0].roles",
		},
		{
			name:    "cluster and servers",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Servers: []string{"c-1.rennes.x"}, PrimaryNetwork: "prod"},
			field:   "machines[0]",
		},
		{
			name:    "no selection",
			machine: MachineGroupSpec{Roles: []string{"r"}, PrimaryNetwork: "prod"},
			field:   "machines[0]",
		},
		{
			name:    "zero count",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", PrimaryNetwork: "prod"},
			field:   "machines[0].count",
		},
		{
			name:    "min above count",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 2, Min: intPtr(3), PrimaryNetwork: "prod"},
			field:   "machines[0].min",
		},
		{
			name:    "negative min",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 2, Min: intPtr(-1), PrimaryNetwork: "prod"},
			field:   "machines[0].min",
		},
		{
			name:    "unknown primary",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 1, PrimaryNetwork: "nope"},
			field:   "machines[0].primary_network",
		},
		{
			name:    "secondary equals primary",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 1, PrimaryNetwork: "prod", SecondaryNetworks: []string{"prod"}},
			field:   "machines[0].secondary_networks[0]",
		},
		{
			name:    "secondary on other site",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 1, PrimaryNetwork: "prod", SecondaryNetworks: []string{"far"}},
			extra:   []NetworkGroupSpec{{ID: "far", Roles: []string{"f"}, Kind: KindVLANLocal, Site: "lyon"}},
			field:   "machines[0].secondary_networks[0]",
		},
		{
			name:    "subnet as primary",
			machine: MachineGroupSpec{Roles: []string{"r"}, Cluster: "c", Count: 1, PrimaryNetwork: "sub"},
			extra:   []NetworkGroupSpec{{ID: "sub", Roles: []string{"s"}, Kind: KindSubnetSmall, Site: "rennes"}},
			field:   "machines[0].primary_network",
		},
		{
			name:    "explicit server on other site",
			machine: MachineGroupSpec{Roles: []string{"r"}, Servers: []string{"nova-1.lyon.grid5000.fr"}, PrimaryNetwork: "prod"},
			field:   "machines[0].servers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder("exp").AddNetwork(prod)
			for _, n := range tt.extra {
				b.AddNetwork(n)
			}
			_, err := b.AddMachine(tt.machine).Build()

			require.ErrorIs(t, err, ErrInvalid)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestBuilder_NetworkValidation(t *testing.T) {
	t.Parallel()
	_, err := NewBuilder("exp").
		AddNetwork(NetworkGroupSpec{ID: "a", Roles: []string{"r"}, Kind: KindProduction, Site: "rennes"}).
		AddNetwork(NetworkGroupSpec{ID: "a", Roles: []string{"r"}, Kind: "weird"}).
		Build()

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
}

func TestResources_AccessorsReturnCopies(t *testing.T) {
	t.Parallel()
	res, err := validBuilder().Build()
	require.NoError(t, err)

	m := res.Machines()
	m[0].Roles[0] = "mutated"
	assert.Equal(t, "server", res.Machines()[0].Roles[0])

	n, ok := res.Network("vlan")
	require.True(t, ok)
	n.Roles[0] = "mutated"
	n2, _ := res.Network("vlan")
	assert.Equal(t, "exp", n2.Roles[0])
}

func TestResources_OnSite(t *testing.T) {
	t.Parallel()
	res, err := validBuilder().
		AddNetwork(NetworkGroupSpec{ID: "prod-lyon", Roles: []string{"p"}, Kind: KindProduction, Site: "lyon"}).
		AddMachine(MachineGroupSpec{Roles: []string{"client"}, Cluster: "nova", Count: 1, PrimaryNetwork: "prod-lyon"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"lyon", "rennes"}, res.Sites())
	lyon := res.OnSite("lyon")
	require.Len(t, lyon.Machines(), 1)
	assert.Equal(t, "nova", lyon.Machines()[0].Cluster)
	require.Len(t, lyon.Networks(), 1)
}

func TestMachineGroupSpec_Explicit(t *testing.T) {
	t.Parallel()
	m := MachineGroupSpec{Servers: []string{"a-1.s.x", "a-2.s.x"}}
	assert.True(t, m.Explicit())
	assert.Equal(t, 2, m.Wanted())
	assert.Equal(t, 2, m.Minimum())

	m.Min = intPtr(0)
	assert.Equal(t, 0, m.Minimum())
	assert.True(t, m.HasMin())
}

func TestClusterOf(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"paravance-12.rennes.grid5000.fr": "paravance",
		"gros-uc-3.nancy.grid5000.fr":     "gros-uc",
		"paravance-12":                    "paravance",
		"cx22-1.fsn1.exp":                 "cx22",
		"standalone":                      "standalone",
		"node-a.site":                     "node-a",
		"-1.site":                         "-1",
	}
	for in, want := range tests {
		assert.Equal(t, want, ClusterOf(in), in)
	}
}

func TestSiteOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "rennes", SiteOf("paravance-12.rennes.grid5000.fr"))
	assert.Equal(t, "fsn1", SiteOf("cx22-1.fsn1.exp"))
	assert.Equal(t, "", SiteOf("paravance-12"))
}

func TestNetworkKind(t *testing.T) {
	t.Parallel()
	for _, k := range Kinds {
		parsed, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("vlan")
	require.Error(t, err)

	assert.Equal(t, 64, KindSubnetLarge.Descriptors())
	assert.Equal(t, 1, KindSubnetSmall.Descriptors())
	assert.True(t, KindVLANGlobal.IsVLAN())
	assert.True(t, KindSubnetLarge.IsSubnet())
	assert.False(t, KindSubnetSmall.Attachable())
	assert.True(t, KindProduction.Attachable())
}
