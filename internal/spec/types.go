package spec

import (
	"slices"
	"strings"
)

// MachineGroupSpec describes one group of machines sharing the same roles.
type MachineGroupSpec struct {
	// ID re-identifies the group after a round trip through a backend.
	ID    string   `yaml:"id,omitempty"`
	Roles []string `yaml:"roles"`

	// Cluster and Count select nodes by cluster. Servers selects them by
	// name. Exactly one of the two forms is used.
	Cluster string   `yaml:"cluster,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Servers []string `yaml:"servers,omitempty"`

	// Min is the smallest acceptable number of nodes. It defaults to the
	// requested count.
	Min *int `yaml:"min,omitempty"`

	ReservableDisks bool `yaml:"reservable_disks,omitempty"`

	PrimaryNetwork    string   `yaml:"primary_network"`
	SecondaryNetworks []string `yaml:"secondary_networks,omitempty"`

	// Site is filled in by [Builder.Build] from the primary network.
	Site string `yaml:"-"`
}

// Explicit reports whether the group names its servers.
func (m MachineGroupSpec) Explicit() bool {
	return len(m.Servers) > 0
}

// Wanted is the number of nodes requested for the group.
func (m MachineGroupSpec) Wanted() int {
	if m.Explicit() {
		return len(m.Servers)
	}
	return m.Count
}

// Minimum is the effective minimum number of nodes.
func (m MachineGroupSpec) Minimum() int {
	if m.Min != nil {
		return *m.Min
	}
	return m.Wanted()
}

// HasMin reports whether a minimum was set explicitly.
func (m MachineGroupSpec) HasMin() bool {
	return m.Min != nil
}

// Networks returns the primary network followed by the secondaries.
func (m MachineGroupSpec) Networks() []string {
	return append([]string{m.PrimaryNetwork}, m.SecondaryNetworks...)
}

func (m MachineGroupSpec) clone() MachineGroupSpec {
	c := m
	c.Roles = slices.Clone(m.Roles)
	c.Servers = slices.Clone(m.Servers)
	c.SecondaryNetworks = slices.Clone(m.SecondaryNetworks)
	if m.Min != nil {
		v := *m.Min
		c.Min = &v
	}
	return c
}

// NetworkGroupSpec describes one network the experiment needs.
type NetworkGroupSpec struct {
	ID    string      `yaml:"id"`
	Roles []string    `yaml:"roles"`
	Kind  NetworkKind `yaml:"kind"`
	Site  string      `yaml:"site"`
}

func (n NetworkGroupSpec) clone() NetworkGroupSpec {
	c := n
	c.Roles = slices.Clone(n.Roles)
	return c
}

// ClusterOf returns the cluster name of a node identifier such as
// "paravance-12.rennes.grid5000.fr": the first DNS label without its
// trailing "-<number>".
func ClusterOf(nodeID string) string {
	label, _, _ := strings.Cut(nodeID, ".")
	i := strings.LastIndexByte(label, '-')
	if i <= 0 || i == len(label)-1 {
		return label
	}
	for _, r := range label[i+1:] {
		if r < '0' || r > '9' {
			return label
		}
	}
	return label[:i]
}

// SiteOf returns the second DNS label of a node identifier, or "" when the
// identifier is not qualified.
func SiteOf(nodeID string) string {
	_, rest, ok := strings.Cut(nodeID, ".")
	if !ok {
		return ""
	}
	site, _, _ := strings.Cut(rest, ".")
	return site
}
