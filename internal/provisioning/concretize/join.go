package concretize

import (
	"fmt"

	"github.com/imamik/reservoir/internal/network"
)

// Join turns concrete groups into hosts attached to their networks. nets
// must hold every network group referenced by the groups. interfaces maps
// a node to the devices backing its secondary networks.
func Join(groups []ConcreteGroup, nets []network.Network, interfaces map[string][]string) ([]*network.Host, error) {
	byID := make(map[string]network.Network, len(nets))
	for _, n := range nets {
		byID[n.GroupID()] = n
	}

	var hosts []*network.Host
	for _, g := range groups {
		primary, ok := byID[g.Spec.PrimaryNetwork]
		if !ok {
			return nil, fmt.Errorf("group %s: primary network %q not bound", g.Spec.ID, g.Spec.PrimaryNetwork)
		}
		secondaries := make([]network.Network, 0, len(g.Spec.SecondaryNetworks))
		for _, id := range g.Spec.SecondaryNetworks {
			n, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("group %s: secondary network %q not bound", g.Spec.ID, id)
			}
			secondaries = append(secondaries, n)
		}

		for _, node := range g.Nodes {
			h := network.NewHost(node, g.Spec, primary, secondaries, interfaces[node])
			h.Register()
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}
