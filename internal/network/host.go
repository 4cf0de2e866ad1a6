package network

import (
	"fmt"
	"slices"

	"github.com/imamik/reservoir/internal/spec"
)

// Status tells whether a host carries the requested image.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusDeployed   Status = "deployed"
	StatusUndeployed Status = "undeployed"
)

// Host is a concrete machine. It references its networks but does not own
// them.
type Host struct {
	ID      string
	Site    string
	Cluster string
	Roles   []string
	GroupID string

	Primary     Network
	Secondaries []Network
	// Interfaces names the devices backing the secondary networks, by
	// position.
	Interfaces []string

	// SSHAddress starts as ID and is rewritten once the primary network
	// is known to be final.
	SSHAddress string
	Status     Status
}

// NewHost binds node id of group g to its networks.
func NewHost(id string, g spec.MachineGroupSpec, primary Network, secondaries []Network, interfaces []string) *Host {
	return &Host{
		ID:          id,
		Site:        g.Site,
		Cluster:     spec.ClusterOf(id),
		Roles:       slices.Clone(g.Roles),
		GroupID:     g.ID,
		Primary:     primary,
		Secondaries: slices.Clone(secondaries),
		Interfaces:  slices.Clone(interfaces),
		SSHAddress:  id,
		Status:      StatusUnknown,
	}
}

// Device returns the device used for the i-th secondary network.
func (h *Host) Device(i int) string {
	if i < len(h.Interfaces) && h.Interfaces[i] != "" {
		return h.Interfaces[i]
	}
	return fmt.Sprintf("eth%d", i+1)
}

// Register attaches the host to its primary and secondary networks.
func (h *Host) Register() {
	if h.Primary != nil {
		h.Primary.Attach([]string{h.ID}, "")
	}
	for i, n := range h.Secondaries {
		n.Attach([]string{h.ID}, h.Device(i))
	}
}

// NameIn returns the host name inside n.
func (h *Host) NameIn(n Network) string {
	return n.Translate([]string{h.ID}, false)[0].To
}

// Finalize rewrites SSHAddress through the primary network.
func (h *Host) Finalize() {
	if h.Primary != nil {
		h.SSHAddress = h.NameIn(h.Primary)
	}
}

func (h *Host) String() string {
	return h.ID
}
